package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/openaid/bulletin/internal/feed"
	"github.com/openaid/bulletin/internal/geo"
	"github.com/openaid/bulletin/internal/middleware"
	"github.com/openaid/bulletin/internal/post"
	"github.com/openaid/bulletin/internal/validate"
)

// FeedHandlers holds dependencies for feed HTTP handlers.
type FeedHandlers struct {
	assembler *feed.Assembler
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(assembler *feed.Assembler) *FeedHandlers {
	return &FeedHandlers{
		assembler: assembler,
	}
}

// FeedPostResponse is one feed entry: the post, its coarse location, and -
// for nearest sort - the distance from the viewer.
type FeedPostResponse struct {
	*post.Post
	CoarseGeohash string   `json:"coarse_geohash,omitempty"`
	DistanceKm    *float64 `json:"distance_km,omitempty"`
	Distance      string   `json:"distance,omitempty"`
}

// Pagination is the page window block returned alongside feed results.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// FeedResponse is the feed endpoint's response body.
type FeedResponse struct {
	Posts      []*FeedPostResponse `json:"posts"`
	Pagination Pagination          `json:"pagination"`
}

// GetFeed handles GET /posts/feed - the filtered, sorted, paginated feed.
//
// Query parameters: city, category, urgency, q, page, limit,
// sort (recent|priority|nearest|oldest), lat, lng, status, userId, userEmail.
// Malformed pagination values are clamped; nearest without coordinates is
// rejected.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := feed.Filter{
		City:         strings.TrimSpace(query.Get("city")),
		Query:        strings.TrimSpace(query.Get("q")),
		CreatorID:    strings.TrimSpace(query.Get("userId")),
		CreatorEmail: strings.TrimSpace(query.Get("userEmail")),
	}

	// Enum filters are parsed with the engine's never-fail fallback so a
	// garbled value narrows the feed instead of breaking it.
	if c := query.Get("category"); c != "" {
		category, _ := post.ParseCategory(c)
		filter.Category = &category
	}
	if u := query.Get("urgency"); u != "" {
		urgency, _ := post.ParseUrgency(u)
		filter.Urgency = &urgency
	}
	if s := query.Get("status"); s != "" {
		filter.Status = post.Status(strings.ToLower(strings.TrimSpace(s)))
	}

	sortMode := feed.ParseSortMode(query.Get("sort"))

	// Clamped, never rejected: feed browsing must not hard-fail on a
	// malformed pagination parameter.
	page := 1
	if p, err := strconv.Atoi(query.Get("page")); err == nil {
		page = p
	}
	limit := feed.DefaultPageSize
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > feed.MaxPageSize {
		limit = feed.MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	viewer, errMsg := parseViewerCoords(query.Get("lat"), query.Get("lng"))
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	results, total, err := h.assembler.Assemble(filter, sortMode, page, limit, viewer)
	if err != nil {
		if errors.Is(err, feed.ErrViewerLocationRequired) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMissingLocation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeMissingLocation,
				"sort=nearest requires lat and lng query parameters")
			return
		}
		slog.ErrorContext(r.Context(), "failed to assemble feed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load feed")
		return
	}

	posts := make([]*FeedPostResponse, 0, len(results))
	for _, res := range results {
		entry := &FeedPostResponse{
			Post:       res.Post,
			DistanceKm: res.DistanceKm,
		}
		if res.Coordinates != nil {
			entry.CoarseGeohash = geo.Encode(res.Coordinates.Lat, res.Coordinates.Lng, geo.DefaultPrecision)
		}
		if res.DistanceKm != nil {
			entry.Distance = geo.FormatDistance(*res.DistanceKm)
		}
		posts = append(posts, entry)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	writeJSON(w, r.Context(), http.StatusOK, FeedResponse{
		Posts: posts,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasMore:    page*limit < total,
		},
	})
}

// parseViewerCoords parses optional lat/lng query parameters.
// Returns nil when neither is provided; returns an error message when only
// one is present or either fails to parse or is out of range.
func parseViewerCoords(latStr, lngStr string) (*post.Point, string) {
	if latStr == "" && lngStr == "" {
		return nil, ""
	}
	if latStr == "" || lngStr == "" {
		return nil, "lat and lng must be provided together"
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil, "Invalid lat"
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return nil, "Invalid lng"
	}
	if err := validate.Coordinates(lat, lng); err != nil {
		return nil, err.Error()
	}

	return &post.Point{Lat: lat, Lng: lng}, ""
}
