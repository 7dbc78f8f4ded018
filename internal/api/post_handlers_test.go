package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openaid/bulletin/internal/post"
)

func newTestRepo() *post.InMemoryRepository {
	// A fixed priority function keeps handler tests independent of the
	// scoring defaults.
	return post.NewInMemoryRepository(func(p *post.Post) int {
		return p.Views
	})
}

func createPost(t *testing.T, h *PostHandlers, body string) CreatePostResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreatePost(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreatePostResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, body *bytes.Buffer) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

// TestCreatePost tests the happy path with explicit category and urgency.
func TestCreatePost(t *testing.T) {
	h := NewPostHandlers(newTestRepo())

	resp := createPost(t, h, `{
		"title": "Ride needed to the clinic",
		"description": "Tuesday morning, wheelchair accessible",
		"category": "help_needed",
		"urgency": "low",
		"city": "Springfield"
	}`)

	p := resp.Post
	if p.ID == "" {
		t.Error("expected a generated ID")
	}
	if p.Category != post.CategoryHelpNeeded {
		t.Errorf("expected help_needed, got %q", p.Category)
	}
	if p.Urgency != post.UrgencyLow {
		t.Errorf("expected low urgency, got %q", p.Urgency)
	}
	if p.Status != post.StatusActive {
		t.Errorf("expected active status, got %q", p.Status)
	}
	// Explicit urgency means the classifier never ran
	if resp.Suggestion != nil {
		t.Errorf("expected no suggestion, got %+v", resp.Suggestion)
	}
}

// TestCreatePostAppliesSuggestedUrgency tests that a confident classifier
// suggestion fills in a missing urgency, while the suggested category is
// returned but never applied.
func TestCreatePostAppliesSuggestedUrgency(t *testing.T) {
	h := NewPostHandlers(newTestRepo())

	resp := createPost(t, h, `{
		"title": "need blood for surgery",
		"description": "urgent, any donor welcome"
	}`)

	if resp.Suggestion == nil {
		t.Fatal("expected a suggestion when urgency is unset")
	}
	if resp.Suggestion.ConfidenceScore <= MinAutoApplyConfidence {
		t.Fatalf("test text should classify confidently, got %d", resp.Suggestion.ConfidenceScore)
	}
	if resp.Suggestion.SuggestedCategory != post.CategoryBloodNeeded {
		t.Errorf("expected blood suggestion, got %q", resp.Suggestion.SuggestedCategory)
	}

	if resp.Post.Urgency != post.UrgencyHigh {
		t.Errorf("expected suggested urgency applied, got %q", resp.Post.Urgency)
	}
	// Category suggestion is informational only
	if resp.Post.Category != post.DefaultCategory {
		t.Errorf("expected default category despite suggestion, got %q", resp.Post.Category)
	}
}

// TestCreatePostLowConfidenceSuggestion tests that a low-confidence
// suggestion is returned but the default urgency stands.
func TestCreatePostLowConfidenceSuggestion(t *testing.T) {
	h := NewPostHandlers(newTestRepo())

	resp := createPost(t, h, `{
		"title": "garden plot update",
		"description": "the tomatoes are doing fine"
	}`)

	if resp.Suggestion == nil {
		t.Fatal("expected a suggestion even at zero confidence")
	}
	if resp.Suggestion.ConfidenceScore > MinAutoApplyConfidence {
		t.Fatalf("test text should not classify confidently, got %d", resp.Suggestion.ConfidenceScore)
	}
	if resp.Post.Urgency != post.DefaultUrgency {
		t.Errorf("expected default urgency, got %q", resp.Post.Urgency)
	}
}

// TestCreatePostSanitizesHTML tests stored-XSS protection on text fields.
func TestCreatePostSanitizesHTML(t *testing.T) {
	h := NewPostHandlers(newTestRepo())

	resp := createPost(t, h, `{
		"title": "<script>alert(1)</script>",
		"description": "plain",
		"urgency": "low"
	}`)

	if strings.Contains(resp.Post.Title, "<script>") {
		t.Errorf("title was not sanitized: %q", resp.Post.Title)
	}
	if !strings.Contains(resp.Post.Title, "&lt;script&gt;") {
		t.Errorf("expected escaped title, got %q", resp.Post.Title)
	}
}

// TestCreatePostValidation tests the rejection paths.
func TestCreatePostValidation(t *testing.T) {
	h := NewPostHandlers(newTestRepo())

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid JSON", `{not json`, ErrCodeBadRequest},
		{"missing title", `{"description": "something"}`, ErrCodeValidation},
		{"blank title", `{"title": "   "}`, ErrCodeValidation},
		{"title too long", `{"title": "` + strings.Repeat("x", MaxTitleLength+1) + `"}`, ErrCodeValidation},
		{"latitude out of range", `{"title": "ok", "coordinates": {"lat": 95, "lng": 0}}`, ErrCodeValidation},
		{"longitude out of range", `{"title": "ok", "coordinates": {"lat": 0, "lng": 199}}`, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.CreatePost(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if errResp := decodeError(t, rec.Body); errResp.Error.Code != tt.wantCode {
				t.Errorf("expected error code %q, got %q", tt.wantCode, errResp.Error.Code)
			}
		})
	}
}

// TestGetPost tests GET /posts/{id} including the coarse geohash annotation.
func TestGetPost(t *testing.T) {
	h := NewPostHandlers(newTestRepo())

	created := createPost(t, h, `{
		"title": "Free moving boxes",
		"urgency": "low",
		"coordinates": {"lat": 48.8566, "lng": 2.3522}
	}`)

	req := httptest.NewRequest(http.MethodGet, "/posts/"+created.Post.ID, nil)
	rec := httptest.NewRecorder()
	h.HandlePostByID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp PostResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != created.Post.ID {
		t.Errorf("expected ID %q, got %q", created.Post.ID, resp.ID)
	}
	if len(resp.CoarseGeohash) != 6 {
		t.Errorf("expected a 6-character coarse geohash, got %q", resp.CoarseGeohash)
	}
}

// TestGetPostNotFound tests the 404 mapping.
func TestGetPostNotFound(t *testing.T) {
	h := NewPostHandlers(newTestRepo())

	req := httptest.NewRequest(http.MethodGet, "/posts/nonexistent", nil)
	rec := httptest.NewRecorder()
	h.HandlePostByID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if errResp := decodeError(t, rec.Body); errResp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected error code %q, got %q", ErrCodeNotFound, errResp.Error.Code)
	}
}

// TestUpdatePost tests partial updates via PUT /posts/{id}.
func TestUpdatePost(t *testing.T) {
	h := NewPostHandlers(newTestRepo())
	created := createPost(t, h, `{"title": "Old title", "description": "desc", "urgency": "low"}`)

	body := `{"title": "New title", "status": "resolved"}`
	req := httptest.NewRequest(http.MethodPut, "/posts/"+created.Post.ID, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandlePostByID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp PostResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Title != "New title" {
		t.Errorf("expected updated title, got %q", resp.Title)
	}
	if resp.Status != post.StatusResolved {
		t.Errorf("expected resolved status, got %q", resp.Status)
	}
	// Untouched fields survive
	if resp.Description != "desc" {
		t.Errorf("expected untouched description, got %q", resp.Description)
	}
	if resp.Urgency != post.UrgencyLow {
		t.Errorf("expected untouched urgency, got %q", resp.Urgency)
	}
}

// TestDeletePost tests DELETE /posts/{id} and that the post is gone after.
func TestDeletePost(t *testing.T) {
	h := NewPostHandlers(newTestRepo())
	created := createPost(t, h, `{"title": "Temporary", "urgency": "low"}`)

	req := httptest.NewRequest(http.MethodDelete, "/posts/"+created.Post.ID, nil)
	rec := httptest.NewRecorder()
	h.HandlePostByID(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/posts/"+created.Post.ID, nil)
	rec = httptest.NewRecorder()
	h.HandlePostByID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", rec.Code)
	}
}

// TestViewAndReportCounters tests the counter endpoints and that the
// priority field moves with them.
func TestViewAndReportCounters(t *testing.T) {
	h := NewPostHandlers(newTestRepo())
	created := createPost(t, h, `{"title": "Counter test", "urgency": "low"}`)

	var resp PostResponse
	for i := 1; i <= 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/posts/"+created.Post.ID+"/view", nil)
		rec := httptest.NewRecorder()
		h.HandlePostByID(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Views != i {
			t.Errorf("expected %d views, got %d", i, resp.Views)
		}
	}
	// Test repo priority function is the raw view count
	if resp.Priority != 3 {
		t.Errorf("expected priority recomputed to 3, got %d", resp.Priority)
	}

	req := httptest.NewRequest(http.MethodPost, "/posts/"+created.Post.ID+"/report", nil)
	rec := httptest.NewRecorder()
	h.HandlePostByID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reported != 1 {
		t.Errorf("expected 1 report, got %d", resp.Reported)
	}
}

// TestHandlePostByIDRouting tests the routing fallthroughs.
func TestHandlePostByIDRouting(t *testing.T) {
	h := NewPostHandlers(newTestRepo())
	created := createPost(t, h, `{"title": "Routing test", "urgency": "low"}`)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"missing ID", http.MethodGet, "/posts/", http.StatusBadRequest},
		{"unknown action", http.MethodPost, "/posts/" + created.Post.ID + "/upvote", http.StatusNotFound},
		{"view with wrong method", http.MethodGet, "/posts/" + created.Post.ID + "/view", http.StatusNotFound},
		{"unsupported method on post", http.MethodPatch, "/posts/" + created.Post.ID, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			h.HandlePostByID(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
