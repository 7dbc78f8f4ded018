// Package feed assembles the filtered, sorted, paginated view of active
// posts presented to a viewer. It composes the priority scorer's precomputed
// field and the geo ranker's per-request distances into one ordering policy.
package feed

import (
	"errors"
	"sort"
	"strings"

	"github.com/openaid/bulletin/internal/geo"
	"github.com/openaid/bulletin/internal/post"
)

// ErrViewerLocationRequired is returned when sort=nearest is requested
// without viewer coordinates. Silently falling back to another sort would
// violate the caller's expectation, so the assembler always rejects.
var ErrViewerLocationRequired = errors.New("nearest sort requires viewer coordinates")

// SortMode selects the feed ordering.
type SortMode string

// Supported sort modes.
const (
	SortRecent   SortMode = "recent"
	SortPriority SortMode = "priority"
	SortNearest  SortMode = "nearest"
	SortOldest   SortMode = "oldest"
)

// ParseSortMode parses a sort mode string case-insensitively.
// Unknown values clamp to SortRecent so feed browsing never hard-fails on a
// malformed query parameter.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortPriority:
		return SortPriority
	case SortNearest:
		return SortNearest
	case SortOldest:
		return SortOldest
	default:
		return SortRecent
	}
}

// Pagination bounds. PageSize is capped regardless of caller input to bound
// result-set cost.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Filter holds the AND-combined feed criteria. All fields are optional;
// Status defaults to active, the only status the feed surfaces by default.
type Filter struct {
	City         string         // case-insensitive substring
	Category     *post.Category // exact
	Urgency      *post.Urgency  // exact
	Query        string         // case-insensitive substring over title OR description
	Status       post.Status    // exact; empty means active
	CreatorID    string         // exact
	CreatorEmail string         // exact
}

// RankedResult is a post annotated with its distance from the viewer when a
// geo sort was requested. It lives for a single request/response cycle.
type RankedResult struct {
	*post.Post
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Assembler produces ordered, paginated feed pages from the post store.
type Assembler struct {
	repo post.Repository
}

// NewAssembler creates a new feed assembler.
func NewAssembler(repo post.Repository) *Assembler {
	return &Assembler{repo: repo}
}

// Assemble returns one page of ranked results plus the total number of posts
// matching the filter (so callers can compute total pages).
//
// page is 1-indexed; out-of-range pagination values are clamped, never
// rejected. viewer is required for SortNearest and ignored otherwise.
func (a *Assembler) Assemble(filter Filter, sortMode SortMode, page, pageSize int, viewer *post.Point) ([]*RankedResult, int, error) {
	if sortMode == SortNearest && viewer == nil {
		return nil, 0, ErrViewerLocationRequired
	}

	posts, err := a.repo.List()
	if err != nil {
		return nil, 0, err
	}

	var results []*RankedResult
	for _, p := range posts {
		if !matchesFilter(p, filter) {
			continue
		}
		r := &RankedResult{Post: p}
		if sortMode == SortNearest && p.Coordinates != nil {
			d := geo.DistanceKm(viewer.Lat, viewer.Lng, p.Coordinates.Lat, p.Coordinates.Lng)
			r.DistanceKm = &d
		}
		results = append(results, r)
	}
	total := len(results)

	// Normalize to recency order first so the mode-specific stable sort has
	// a deterministic base: coordinate-less posts under nearest, and equal
	// keys everywhere, come out in recency order.
	sortByCreatedDesc(results)

	switch sortMode {
	case SortOldest:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		})
	case SortPriority:
		sort.SliceStable(results, func(i, j int) bool {
			// Higher priority first; ties already in created_at DESC order
			return results[i].Priority > results[j].Priority
		})
	case SortNearest:
		sort.SliceStable(results, func(i, j int) bool {
			// Posts without coordinates sort last
			if results[i].DistanceKm == nil {
				return false
			}
			if results[j].DistanceKm == nil {
				return true
			}
			return *results[i].DistanceKm < *results[j].DistanceKm
		})
	}

	return paginate(results, page, pageSize), total, nil
}

// matchesFilter reports whether a post satisfies every set filter field.
func matchesFilter(p *post.Post, f Filter) bool {
	status := f.Status
	if status == "" {
		status = post.StatusActive
	}
	if p.Status != status {
		return false
	}

	if f.City != "" && !strings.Contains(strings.ToLower(p.City), strings.ToLower(f.City)) {
		return false
	}
	if f.Category != nil && p.Category != *f.Category {
		return false
	}
	if f.Urgency != nil && p.Urgency != *f.Urgency {
		return false
	}
	if f.CreatorID != "" && p.CreatorID != f.CreatorID {
		return false
	}
	if f.CreatorEmail != "" && p.CreatorEmail != f.CreatorEmail {
		return false
	}

	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}

	return true
}

// paginate clamps pagination input and returns the requested window.
func paginate(results []*RankedResult, page, pageSize int) []*RankedResult {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	skip := (page - 1) * pageSize
	if skip >= len(results) {
		return []*RankedResult{}
	}

	end := skip + pageSize
	if end > len(results) {
		end = len(results)
	}
	return results[skip:end]
}

// sortByCreatedDesc sorts results by created_at DESC, then by ID ASC for
// tie-breaking, giving every sort mode a stable deterministic base order.
func sortByCreatedDesc(results []*RankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.After(results[j].CreatedAt) {
			return true
		}
		if results[i].CreatedAt.Before(results[j].CreatedAt) {
			return false
		}
		return results[i].ID < results[j].ID
	})
}
