// Package post provides the post model and repository for the community
// bulletin board, including the typed category/urgency/status enums.
package post

import (
	"strings"
	"time"
)

// Category classifies what kind of request a post is.
type Category string

// Known post categories. Declaration order matters for classifier tie-breaking:
// blood > lost > offer > help when accumulator scores are equal.
const (
	CategoryBloodNeeded Category = "blood_needed"
	CategoryItemLost    Category = "item_lost"
	CategoryOffer       Category = "offer"
	CategoryHelpNeeded  Category = "help_needed"
)

// DefaultCategory is the fallback when input text matches no category keywords
// or an unrecognized category string reaches the engine.
const DefaultCategory = CategoryHelpNeeded

// ParseCategory parses a category string case-insensitively.
// Returns the parsed category and true, or DefaultCategory and false for
// unrecognized input. It never fails so the feed stays renderable on bad data.
func ParseCategory(s string) (Category, bool) {
	switch Category(normalizeEnum(s)) {
	case CategoryBloodNeeded:
		return CategoryBloodNeeded, true
	case CategoryItemLost:
		return CategoryItemLost, true
	case CategoryOffer:
		return CategoryOffer, true
	case CategoryHelpNeeded:
		return CategoryHelpNeeded, true
	default:
		return DefaultCategory, false
	}
}

// Urgency is the severity tier of a post, independent of category.
type Urgency string

// Known urgency tiers.
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// DefaultUrgency is the fallback for unmatched text and unrecognized strings.
const DefaultUrgency = UrgencyMedium

// ParseUrgency parses an urgency string case-insensitively.
// Returns the parsed urgency and true, or DefaultUrgency and false for
// unrecognized input.
func ParseUrgency(s string) (Urgency, bool) {
	switch Urgency(normalizeEnum(s)) {
	case UrgencyLow:
		return UrgencyLow, true
	case UrgencyMedium:
		return UrgencyMedium, true
	case UrgencyHigh:
		return UrgencyHigh, true
	default:
		return DefaultUrgency, false
	}
}

// Status is the lifecycle state of a post.
type Status string

// Known post statuses. The feed only surfaces StatusActive by default.
const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

// Point is a geographic coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Post is a bulletin board entry. All counter fields are monotonically
// increasing; Priority is owned by the ranking engine and recomputed on
// every write.
type Post struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Urgency     Urgency  `json:"urgency"`
	City        string   `json:"city,omitempty"`
	Status      Status   `json:"status"`

	CreatorID    string `json:"creator_id,omitempty"`
	CreatorEmail string `json:"creator_email,omitempty"`

	Coordinates *Point `json:"coordinates,omitempty"`

	Views    int `json:"views"`
	Reported int `json:"reported"`
	Priority int `json:"priority"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// normalizeEnum normalizes query/body enum input for matching.
func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
