package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openaid/bulletin/internal/classify"
	"github.com/openaid/bulletin/internal/geo"
	"github.com/openaid/bulletin/internal/middleware"
	"github.com/openaid/bulletin/internal/post"
	"github.com/openaid/bulletin/internal/validate"
)

// Post text validation constraints.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
)

// MinAutoApplyConfidence is the classifier confidence required before a
// suggested urgency is merged into a new post.
const MinAutoApplyConfidence = 50

// CreatePostRequest represents the request body for creating a post.
// Category and urgency are optional; when urgency is left unset the
// classifier's suggestion may fill it in.
type CreatePostRequest struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Category     string      `json:"category,omitempty"`
	Urgency      string      `json:"urgency,omitempty"`
	City         string      `json:"city,omitempty"`
	Coordinates  *post.Point `json:"coordinates,omitempty"`
	CreatorID    string      `json:"creator_id,omitempty"`
	CreatorEmail string      `json:"creator_email,omitempty"`
}

// UpdatePostRequest represents the request body for updating a post.
type UpdatePostRequest struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Category    *string     `json:"category,omitempty"`
	Urgency     *string     `json:"urgency,omitempty"`
	City        *string     `json:"city,omitempty"`
	Status      *string     `json:"status,omitempty"`
	Coordinates *post.Point `json:"coordinates,omitempty"`
}

// PostResponse is a post annotated with its coarse public location.
type PostResponse struct {
	*post.Post
	CoarseGeohash string `json:"coarse_geohash,omitempty"`
}

// newPostResponse wraps a post, encoding a precision-6 geohash for coarse
// display when coordinates are present.
func newPostResponse(p *post.Post) *PostResponse {
	resp := &PostResponse{Post: p}
	if p.Coordinates != nil {
		resp.CoarseGeohash = geo.Encode(p.Coordinates.Lat, p.Coordinates.Lng, geo.DefaultPrecision)
	}
	return resp
}

// CreatePostResponse carries the created post plus the classifier suggestion
// that informed it. The suggested category is informational only; it is
// never applied to the record, even at high confidence.
type CreatePostResponse struct {
	Post       *PostResponse        `json:"post"`
	Suggestion *classify.Suggestion `json:"suggestion,omitempty"`
}

// PostHandlers holds dependencies for post HTTP handlers.
type PostHandlers struct {
	repo post.Repository
}

// NewPostHandlers creates a new PostHandlers instance.
func NewPostHandlers(repo post.Repository) *PostHandlers {
	return &PostHandlers{
		repo: repo,
	}
}

// validatePostText validates title and description.
// Returns an error message if validation fails, empty string if valid.
func validatePostText(title, description string) string {
	if _, err := validate.String(title, validate.StringConstraints{
		MaxLength: MaxTitleLength,
		TrimSpace: true,
	}); err != nil {
		if errors.Is(err, validate.ErrEmpty) {
			return "title is required"
		}
		return fmt.Sprintf("title must not exceed %d characters", MaxTitleLength)
	}

	if _, err := validate.String(description, validate.StringConstraints{
		MaxLength:  MaxDescriptionLength,
		AllowEmpty: true,
		TrimSpace:  true,
	}); err != nil {
		return fmt.Sprintf("description must not exceed %d characters", MaxDescriptionLength)
	}

	return ""
}

// sanitizeText escapes HTML entities to prevent stored XSS.
// Should be called after validation passes.
func sanitizeText(text string) string {
	return html.EscapeString(strings.TrimSpace(text))
}

// extractPostID extracts the post ID from the URL path.
// Returns the post ID and the remaining subpath ("view", "report" or "").
func extractPostID(r *http.Request) (string, string) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/posts/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", ""
	}
	if len(parts) > 1 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// CreatePost handles POST /posts - creates a new post.
//
// When the author leaves urgency unset, the classifier runs over the text
// and its suggested urgency is applied if confidence exceeds
// MinAutoApplyConfidence. The category suggestion is returned but not
// applied; the author's stated category (or the default) stands.
func (h *PostHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if errMsg := validatePostText(req.Title, req.Description); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	if req.Coordinates != nil {
		if err := validate.Coordinates(req.Coordinates.Lat, req.Coordinates.Lng); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
	}

	title := sanitizeText(req.Title)
	description := sanitizeText(req.Description)

	category, _ := post.ParseCategory(req.Category)
	urgency, _ := post.ParseUrgency(req.Urgency)

	var suggestion *classify.Suggestion
	if strings.TrimSpace(req.Urgency) == "" {
		s := classify.Classify(title, description)
		suggestion = &s
		if s.ConfidenceScore > MinAutoApplyConfidence {
			urgency = s.SuggestedUrgency
		}
	}

	newPost := &post.Post{
		Title:        title,
		Description:  description,
		Category:     category,
		Urgency:      urgency,
		City:         sanitizeText(req.City),
		Status:       post.StatusActive,
		CreatorID:    req.CreatorID,
		CreatorEmail: req.CreatorEmail,
		Coordinates:  req.Coordinates,
	}

	if err := h.repo.Create(newPost); err != nil {
		slog.ErrorContext(r.Context(), "failed to create post", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create post")
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, CreatePostResponse{
		Post:       newPostResponse(newPost),
		Suggestion: suggestion,
	})
}

// HandlePostByID routes /posts/{id} and /posts/{id}/{action} requests.
func (h *PostHandlers) HandlePostByID(w http.ResponseWriter, r *http.Request) {
	id, action := extractPostID(r)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Post ID is required")
		return
	}

	switch {
	case action == "view" && r.Method == http.MethodPost:
		h.viewPost(w, r, id)
	case action == "report" && r.Method == http.MethodPost:
		h.reportPost(w, r, id)
	case action == "" && r.Method == http.MethodGet:
		h.getPost(w, r, id)
	case action == "" && r.Method == http.MethodPut:
		h.updatePost(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		h.deletePost(w, r, id)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// getPost handles GET /posts/{id}.
func (h *PostHandlers) getPost(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.repo.GetByID(id)
	if err != nil {
		h.writeRepoError(w, r, err, "failed to get post")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, newPostResponse(p))
}

// updatePost handles PUT /posts/{id}. Only provided fields change; priority
// is recomputed by the repository on every update.
func (h *PostHandlers) updatePost(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	p, err := h.repo.GetByID(id)
	if err != nil {
		h.writeRepoError(w, r, err, "failed to get post")
		return
	}

	if req.Title != nil {
		p.Title = sanitizeText(*req.Title)
	}
	if req.Description != nil {
		p.Description = sanitizeText(*req.Description)
	}
	if req.Category != nil {
		p.Category, _ = post.ParseCategory(*req.Category)
	}
	if req.Urgency != nil {
		p.Urgency, _ = post.ParseUrgency(*req.Urgency)
	}
	if req.City != nil {
		p.City = sanitizeText(*req.City)
	}
	if req.Status != nil {
		p.Status = post.Status(strings.ToLower(strings.TrimSpace(*req.Status)))
	}
	if req.Coordinates != nil {
		if err := validate.Coordinates(req.Coordinates.Lat, req.Coordinates.Lng); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		p.Coordinates = req.Coordinates
	}

	if errMsg := validatePostText(p.Title, p.Description); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	if err := h.repo.Update(p); err != nil {
		h.writeRepoError(w, r, err, "failed to update post")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, newPostResponse(p))
}

// deletePost handles DELETE /posts/{id}.
func (h *PostHandlers) deletePost(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(id); err != nil {
		h.writeRepoError(w, r, err, "failed to delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// viewPost handles POST /posts/{id}/view - bumps the view counter.
func (h *PostHandlers) viewPost(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.repo.IncrementViews(id)
	if err != nil {
		h.writeRepoError(w, r, err, "failed to record view")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, newPostResponse(p))
}

// reportPost handles POST /posts/{id}/report - bumps the report counter.
func (h *PostHandlers) reportPost(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.repo.Report(id)
	if err != nil {
		h.writeRepoError(w, r, err, "failed to record report")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, newPostResponse(p))
}

// writeRepoError maps repository errors to HTTP responses.
func (h *PostHandlers) writeRepoError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	if errors.Is(err, post.ErrPostNotFound) || errors.Is(err, post.ErrPostDeleted) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
		return
	}
	slog.ErrorContext(r.Context(), logMsg, "error", err)
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
	WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
}
