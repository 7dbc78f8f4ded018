package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/openaid/bulletin/internal/classify"
	"github.com/openaid/bulletin/internal/middleware"
)

// SuggestRequest is the body for the suggest-as-you-type classification
// endpoint. Either field may be empty, but not both.
type SuggestRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SuggestHandlers holds dependencies for the classification endpoint.
type SuggestHandlers struct{}

// NewSuggestHandlers creates a new SuggestHandlers instance.
func NewSuggestHandlers() *SuggestHandlers {
	return &SuggestHandlers{}
}

// Suggest handles POST /posts/suggest - returns the classifier's suggestion
// verbatim for client-side pre-fill. Rejects requests where both fields are
// empty; anything else degrades gracefully inside the classifier.
func (h *SuggestHandlers) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeMissingText)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeMissingText,
			"At least one of title or description must be provided")
		return
	}

	suggestion := classify.Classify(req.Title, req.Description)
	writeJSON(w, r.Context(), http.StatusOK, suggestion)
}
