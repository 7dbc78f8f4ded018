package ranking

import (
	"math"
	"time"

	"github.com/openaid/bulletin/internal/post"
)

// Weights holds the additive scoring constants. All components sum into a
// single priority, rounded to the nearest integer and clamped to >= 0.
type Weights struct {
	// Urgency base scores.
	UrgencyHigh   float64 `json:"urgency_high"`   // default: 100
	UrgencyMedium float64 `json:"urgency_medium"` // default: 50
	UrgencyLow    float64 `json:"urgency_low"`    // default: 20

	// Category bonuses.
	CategoryBlood float64 `json:"category_blood"` // default: 50
	CategoryHelp  float64 `json:"category_help"`  // default: 30
	CategoryLost  float64 `json:"category_lost"`  // default: 20
	CategoryOffer float64 `json:"category_offer"` // default: 10

	// Recency boost: linear decay from RecencyBase to 0 over
	// RecencyWindowHours elapsed hours, never negative.
	RecencyBase        float64 `json:"recency_base"`         // default: 50
	RecencyWindowHours float64 `json:"recency_window_hours"` // default: 48

	// Engagement boost: ViewWeight per view, capped at EngagementCap.
	ViewWeight    float64 `json:"view_weight"`    // default: 0.5
	EngagementCap float64 `json:"engagement_cap"` // default: 20

	// Report penalty: subtracted per report.
	ReportPenalty float64 `json:"report_penalty"` // default: 10
}

// DefaultWeights returns the default scoring configuration.
//
// The original scoring logic disagreed between 10 and 20 for the Low urgency
// base; 20 is the canonical default here and the calibration file is the one
// place to change it.
//
// With these defaults a fresh high-urgency blood request scores
// 100 + 50 + 50 = 200 before engagement, and the recency boost reaches zero
// after 48 hours (about 1.04 points per hour).
func DefaultWeights() *Weights {
	return &Weights{
		UrgencyHigh:        100,
		UrgencyMedium:      50,
		UrgencyLow:         20,
		CategoryBlood:      50,
		CategoryHelp:       30,
		CategoryLost:       20,
		CategoryOffer:      10,
		RecencyBase:        50,
		RecencyWindowHours: 48,
		ViewWeight:         0.5,
		EngagementCap:      20,
		ReportPenalty:      10,
	}
}

// Params holds the post attributes the scorer evaluates. Now is the
// evaluation instant; passing it explicitly keeps Score pure and testable.
type Params struct {
	Category  post.Category
	Urgency   post.Urgency
	CreatedAt time.Time
	Views     int
	Reported  int
	Now       time.Time
}

// UrgencyBase returns the base score for an urgency tier.
// Unrecognized values fall back to the Medium base so scoring stays total.
func UrgencyBase(u post.Urgency, w *Weights) float64 {
	switch u {
	case post.UrgencyHigh:
		return w.UrgencyHigh
	case post.UrgencyLow:
		return w.UrgencyLow
	default:
		return w.UrgencyMedium
	}
}

// CategoryBonus returns the additive bonus for a category.
// Unrecognized values fall back to the 20-point ItemLost-level default.
func CategoryBonus(c post.Category, w *Weights) float64 {
	switch c {
	case post.CategoryBloodNeeded:
		return w.CategoryBlood
	case post.CategoryHelpNeeded:
		return w.CategoryHelp
	case post.CategoryItemLost:
		return w.CategoryLost
	case post.CategoryOffer:
		return w.CategoryOffer
	default:
		return w.CategoryLost
	}
}

// RecencyBoost computes the linear recency component: RecencyBase at the
// moment of creation, decaying to zero once RecencyWindowHours have elapsed.
// Posts created in the future (clock skew) get the full boost.
func RecencyBoost(createdAt, now time.Time, w *Weights) float64 {
	if w.RecencyWindowHours <= 0 {
		return 0
	}

	elapsed := now.Sub(createdAt).Hours()
	if elapsed <= 0 {
		return w.RecencyBase
	}

	boost := w.RecencyBase * (1 - elapsed/w.RecencyWindowHours)
	if boost < 0 {
		return 0
	}
	return boost
}

// EngagementBoost computes the view-count component, capped so heavily
// viewed posts cannot crowd out urgent ones.
func EngagementBoost(views int, w *Weights) float64 {
	boost := w.ViewWeight * float64(views)
	if boost > w.EngagementCap {
		return w.EngagementCap
	}
	return boost
}

// Score computes the priority for a post: urgency base + category bonus +
// recency boost + engagement boost - report penalty, rounded and clamped
// to >= 0. It is evaluated on every write and may be re-evaluated at read
// time; both paths use this one function.
func Score(p Params, w *Weights) int {
	if w == nil {
		w = DefaultWeights()
	}

	score := UrgencyBase(p.Urgency, w) +
		CategoryBonus(p.Category, w) +
		RecencyBoost(p.CreatedAt, p.Now, w) +
		EngagementBoost(p.Views, w) -
		w.ReportPenalty*float64(p.Reported)

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	return rounded
}
