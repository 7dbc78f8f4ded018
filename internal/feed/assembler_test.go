package feed

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openaid/bulletin/internal/post"
)

// stubRepo is a fixed-content post.Repository for assembler tests. Only List
// is exercised by the assembler; writes are unsupported.
type stubRepo struct {
	posts []*post.Post
	err   error
}

func (s *stubRepo) Create(*post.Post) error                   { return errors.New("not supported") }
func (s *stubRepo) Update(*post.Post) error                   { return errors.New("not supported") }
func (s *stubRepo) Delete(string) error                       { return errors.New("not supported") }
func (s *stubRepo) GetByID(string) (*post.Post, error)        { return nil, post.ErrPostNotFound }
func (s *stubRepo) IncrementViews(string) (*post.Post, error) { return nil, post.ErrPostNotFound }
func (s *stubRepo) Report(string) (*post.Post, error)         { return nil, post.ErrPostNotFound }
func (s *stubRepo) List() ([]*post.Post, error)               { return s.posts, s.err }

func activePost(id string, createdAt time.Time) *post.Post {
	return &post.Post{
		ID:        id,
		Title:     "post " + id,
		Category:  post.CategoryHelpNeeded,
		Urgency:   post.UrgencyMedium,
		Status:    post.StatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// TestAssembleRecentOrder tests the default sort: newest first, ID ascending
// on equal timestamps.
func TestAssembleRecentOrder(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{posts: []*post.Post{
		activePost("a", now.Add(-2*time.Hour)),
		activePost("b", now),
		activePost("c", now.Add(-1*time.Hour)),
	}}
	a := NewAssembler(repo)

	results, total, err := a.Assemble(Filter{}, SortRecent, 1, 10, nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}

	wantOrder := []string{"b", "c", "a"}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, results[i].ID)
		}
	}
}

// TestAssembleOldestOrder tests the oldest-first sort.
func TestAssembleOldestOrder(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{posts: []*post.Post{
		activePost("a", now.Add(-2*time.Hour)),
		activePost("b", now),
		activePost("c", now.Add(-1*time.Hour)),
	}}
	a := NewAssembler(repo)

	results, _, err := a.Assemble(Filter{}, SortOldest, 1, 10, nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	wantOrder := []string{"a", "c", "b"}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, results[i].ID)
		}
	}
}

// TestAssemblePriorityOrder tests priority-descending sort with newer-first
// tie-breaking.
func TestAssemblePriorityOrder(t *testing.T) {
	now := time.Now()

	older := activePost("older-tied", now.Add(-2*time.Hour))
	older.Priority = 80
	newer := activePost("newer-tied", now.Add(-1*time.Hour))
	newer.Priority = 80
	low := activePost("low", now)
	low.Priority = 40

	repo := &stubRepo{posts: []*post.Post{older, low, newer}}
	a := NewAssembler(repo)

	results, _, err := a.Assemble(Filter{}, SortPriority, 1, 10, nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	wantOrder := []string{"newer-tied", "older-tied", "low"}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("position %d: expected %q, got %q (priority %d)", i, want, results[i].ID, results[i].Priority)
		}
	}
}

// TestAssembleNearest tests ascending distance order with coordinate-less
// posts pushed to the end, and the distance annotation itself.
func TestAssembleNearest(t *testing.T) {
	now := time.Now()
	viewer := &post.Point{Lat: 48.8566, Lng: 2.3522} // Paris

	far := activePost("berlin", now)
	far.Coordinates = &post.Point{Lat: 52.52, Lng: 13.405}
	near := activePost("versailles", now)
	near.Coordinates = &post.Point{Lat: 48.8049, Lng: 2.1204}
	nowhere := activePost("nowhere", now.Add(time.Minute)) // newest, but no coords

	repo := &stubRepo{posts: []*post.Post{far, nowhere, near}}
	a := NewAssembler(repo)

	results, _, err := a.Assemble(Filter{}, SortNearest, 1, 10, viewer)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	wantOrder := []string{"versailles", "berlin", "nowhere"}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, results[i].ID)
		}
	}

	if results[0].DistanceKm == nil || *results[0].DistanceKm > 30 {
		t.Errorf("expected a short distance for versailles, got %v", results[0].DistanceKm)
	}
	if results[1].DistanceKm == nil || *results[1].DistanceKm < 800 {
		t.Errorf("expected a long distance for berlin, got %v", results[1].DistanceKm)
	}
	if results[2].DistanceKm != nil {
		t.Errorf("expected nil distance for coordinate-less post, got %v", *results[2].DistanceKm)
	}
}

// TestAssembleNearestRequiresViewer tests that nearest sort without viewer
// coordinates is rejected rather than silently falling back.
func TestAssembleNearestRequiresViewer(t *testing.T) {
	repo := &stubRepo{posts: []*post.Post{activePost("a", time.Now())}}
	a := NewAssembler(repo)

	_, _, err := a.Assemble(Filter{}, SortNearest, 1, 10, nil)
	if !errors.Is(err, ErrViewerLocationRequired) {
		t.Errorf("expected ErrViewerLocationRequired, got %v", err)
	}
}

// TestAssembleDistanceIgnoredForOtherSorts tests that distances are only
// computed when the nearest sort asks for them.
func TestAssembleDistanceIgnoredForOtherSorts(t *testing.T) {
	p := activePost("a", time.Now())
	p.Coordinates = &post.Point{Lat: 48.8566, Lng: 2.3522}
	repo := &stubRepo{posts: []*post.Post{p}}
	a := NewAssembler(repo)

	results, _, err := a.Assemble(Filter{}, SortRecent, 1, 10, &post.Point{Lat: 0, Lng: 0})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if results[0].DistanceKm != nil {
		t.Errorf("expected nil distance under recent sort, got %v", *results[0].DistanceKm)
	}
}

// TestAssemblePagination tests page windows and the total count over a
// dataset larger than one max-size page.
func TestAssemblePagination(t *testing.T) {
	now := time.Now()
	var posts []*post.Post
	for i := 0; i < 75; i++ {
		posts = append(posts, activePost(fmt.Sprintf("p%03d", i), now.Add(-time.Duration(i)*time.Minute)))
	}
	a := NewAssembler(&stubRepo{posts: posts})

	tests := []struct {
		name     string
		page     int
		pageSize int
		wantLen  int
		wantID   string // first ID on the page, empty to skip
	}{
		{"first page of 50", 1, 50, 50, "p000"},
		{"second page holds the remainder", 2, 50, 25, "p050"},
		{"page past the end is empty", 3, 50, 0, ""},
		{"zero page clamps to first", 0, 50, 50, "p000"},
		{"negative page clamps to first", -5, 50, 50, "p000"},
		{"oversized page size is capped", 1, 500, MaxPageSize, "p000"},
		{"zero page size uses default", 1, 0, DefaultPageSize, "p000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, total, err := a.Assemble(Filter{}, SortRecent, tt.page, tt.pageSize, nil)
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			if total != 75 {
				t.Errorf("expected total 75, got %d", total)
			}
			if len(results) != tt.wantLen {
				t.Fatalf("expected %d results, got %d", tt.wantLen, len(results))
			}
			if tt.wantID != "" && results[0].ID != tt.wantID {
				t.Errorf("expected first result %q, got %q", tt.wantID, results[0].ID)
			}
		})
	}
}

// TestAssembleFilters tests each filter criterion in isolation and combined.
func TestAssembleFilters(t *testing.T) {
	now := time.Now()

	blood := activePost("blood", now)
	blood.Category = post.CategoryBloodNeeded
	blood.Urgency = post.UrgencyHigh
	blood.City = "New Springfield"
	blood.Title = "need O- donors"
	blood.CreatorID = "user-1"
	blood.CreatorEmail = "one@example.com"

	lost := activePost("lost", now)
	lost.Category = post.CategoryItemLost
	lost.City = "Shelbyville"
	lost.Description = "lost a red bike near the park"
	lost.CreatorID = "user-2"

	resolved := activePost("resolved", now)
	resolved.Status = post.StatusResolved

	a := NewAssembler(&stubRepo{posts: []*post.Post{blood, lost, resolved}})

	category := post.CategoryBloodNeeded
	urgency := post.UrgencyHigh

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
	}{
		{"no filter excludes non-active", Filter{}, []string{"blood", "lost"}},
		{"status resolved", Filter{Status: post.StatusResolved}, []string{"resolved"}},
		{"city substring case-insensitive", Filter{City: "springfield"}, []string{"blood"}},
		{"category exact", Filter{Category: &category}, []string{"blood"}},
		{"urgency exact", Filter{Urgency: &urgency}, []string{"blood"}},
		{"query matches title", Filter{Query: "DONORS"}, []string{"blood"}},
		{"query matches description", Filter{Query: "red bike"}, []string{"lost"}},
		{"creator id", Filter{CreatorID: "user-2"}, []string{"lost"}},
		{"creator email", Filter{CreatorEmail: "one@example.com"}, []string{"blood"}},
		{"combined filters AND together", Filter{City: "springfield", Query: "bike"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, total, err := a.Assemble(tt.filter, SortRecent, 1, 10, nil)
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			if total != len(tt.wantIDs) {
				t.Errorf("expected total %d, got %d", len(tt.wantIDs), total)
			}

			got := make(map[string]bool, len(results))
			for _, r := range results {
				got[r.ID] = true
			}
			for _, id := range tt.wantIDs {
				if !got[id] {
					t.Errorf("expected %q in results, got %v", id, keys(got))
				}
			}
			if len(results) != len(tt.wantIDs) {
				t.Errorf("expected %d results, got %v", len(tt.wantIDs), keys(got))
			}
		})
	}
}

// TestAssembleRepoError tests that storage errors propagate.
func TestAssembleRepoError(t *testing.T) {
	wantErr := errors.New("storage down")
	a := NewAssembler(&stubRepo{err: wantErr})

	_, _, err := a.Assemble(Filter{}, SortRecent, 1, 10, nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected storage error, got %v", err)
	}
}

// TestParseSortMode tests sort mode parsing and its never-fail fallback.
func TestParseSortMode(t *testing.T) {
	tests := []struct {
		input string
		want  SortMode
	}{
		{"recent", SortRecent},
		{"priority", SortPriority},
		{"NEAREST", SortNearest},
		{" oldest ", SortOldest},
		{"", SortRecent},
		{"bogus", SortRecent},
	}

	for _, tt := range tests {
		if got := ParseSortMode(tt.input); got != tt.want {
			t.Errorf("ParseSortMode(%q) = %q, expected %q", tt.input, got, tt.want)
		}
	}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
