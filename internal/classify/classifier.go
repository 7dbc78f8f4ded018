// Package classify maps free post text to a category/urgency suggestion
// using fixed, hand-authored keyword tables. It is a heuristic pre-fill for
// the posting form, not a trained model.
package classify

import (
	"strings"

	"github.com/openaid/bulletin/internal/post"
)

// Suggestion is the classifier output. ConfidenceScore is a 0-100 heuristic;
// DetectedKeywords is the deduplicated set of matched keywords.
type Suggestion struct {
	SuggestedCategory post.Category `json:"suggested_category"`
	SuggestedUrgency  post.Urgency  `json:"suggested_urgency"`
	ConfidenceScore   int           `json:"confidence_score"`
	DetectedKeywords  []string      `json:"detected_keywords"`
	Reasoning         string        `json:"reasoning"`
}

// Urgency keyword weights and thresholds.
const (
	highUrgencyWeight   = 2
	mediumUrgencyWeight = 1
	highUrgencyCutoff   = 3 // accumulator >= cutoff classifies as high
)

// Confidence scoring constants: each distinct matched keyword is worth
// keywordConfidence points, plus a flat bonus when any category keyword hit.
const (
	keywordConfidence  = 15
	categoryMatchBonus = 30
	maxConfidence      = 100
)

// highUrgencyKeywords each add 2 to the urgency accumulator.
var highUrgencyKeywords = []string{
	"urgent", "emergency", "immediately", "asap", "critical",
	"life threatening", "right now", "serious condition",
}

// mediumUrgencyKeywords each add 1 to the urgency accumulator.
var mediumUrgencyKeywords = []string{
	"soon", "today", "needed", "quickly", "please help", "as early as possible",
}

// categoryRule binds a category to its keyword table and accumulator weight.
type categoryRule struct {
	category post.Category
	weight   int
	keywords []string
	reason   string
}

// categoryRules in fixed evaluation order. Ties on accumulator score resolve
// to the earlier rule (blood > lost > offer > help), which must be preserved
// for deterministic output.
var categoryRules = []categoryRule{
	{
		category: post.CategoryBloodNeeded,
		weight:   3,
		keywords: []string{
			"blood", "donor", "transfusion", "plasma", "platelets",
			"blood group", "blood bank", "units of blood",
		},
		reason: "blood request keywords detected",
	},
	{
		category: post.CategoryItemLost,
		weight:   2,
		keywords: []string{
			"lost", "missing", "misplaced", "stolen", "last seen",
			"wallet", "found near",
		},
		reason: "lost item keywords detected",
	},
	{
		category: post.CategoryOffer,
		weight:   2,
		keywords: []string{
			"offer", "offering", "free", "giving away", "donate",
			"available for", "volunteer",
		},
		reason: "offer keywords detected",
	},
	{
		category: post.CategoryHelpNeeded,
		weight:   1,
		keywords: []string{
			"help", "need", "assist", "assistance", "support", "request",
		},
		reason: "help request keywords detected",
	},
}

// Classify maps free text to a category/urgency suggestion with a confidence
// score. It never fails: empty or unmatched input degrades to the default
// category and urgency with confidence 0.
//
// The function is pure over its two inputs and the fixed keyword tables, so
// identical text always yields an identical Suggestion.
func Classify(title, description string) Suggestion {
	text := strings.ToLower(title + " " + description)

	seen := make(map[string]bool)
	var detected []string
	match := func(keyword string) bool {
		if !strings.Contains(text, keyword) {
			return false
		}
		if !seen[keyword] {
			seen[keyword] = true
			detected = append(detected, keyword)
		}
		return true
	}

	// Urgency pass: fixed weights per table.
	urgencyScore := 0
	highMatched := false
	for _, kw := range highUrgencyKeywords {
		if match(kw) {
			urgencyScore += highUrgencyWeight
			highMatched = true
		}
	}
	mediumMatched := false
	for _, kw := range mediumUrgencyKeywords {
		if match(kw) {
			urgencyScore += mediumUrgencyWeight
			mediumMatched = true
		}
	}

	// Category pass: highest accumulator wins, earlier rule wins ties.
	category := post.DefaultCategory
	categoryMatched := false
	bestScore := 0
	bestReason := ""
	for _, rule := range categoryRules {
		score := 0
		for _, kw := range rule.keywords {
			if match(kw) {
				score += rule.weight
			}
		}
		if score > 0 {
			categoryMatched = true
		}
		if score > bestScore {
			bestScore = score
			category = rule.category
			bestReason = rule.reason
		}
	}

	// Nothing matched at all: low-confidence defaults.
	if len(detected) == 0 {
		return Suggestion{
			SuggestedCategory: post.DefaultCategory,
			SuggestedUrgency:  post.DefaultUrgency,
			ConfidenceScore:   0,
			DetectedKeywords:  []string{},
			Reasoning:         "no keywords matched",
		}
	}

	urgency := post.UrgencyMedium
	switch {
	case urgencyScore >= highUrgencyCutoff:
		urgency = post.UrgencyHigh
	case urgencyScore <= 0:
		urgency = post.UrgencyLow
	}

	var reasons []string
	if highMatched {
		reasons = append(reasons, "high urgency keywords detected")
	}
	if mediumMatched {
		reasons = append(reasons, "medium urgency keywords detected")
	}
	if bestReason != "" {
		reasons = append(reasons, bestReason)
	}

	// Blood requests are always treated as urgent regardless of the
	// urgency accumulator.
	if category == post.CategoryBloodNeeded {
		urgency = post.UrgencyHigh
		reasons = append(reasons, "blood requests are always high urgency")
	}

	confidence := keywordConfidence * len(detected)
	if categoryMatched {
		confidence += categoryMatchBonus
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return Suggestion{
		SuggestedCategory: category,
		SuggestedUrgency:  urgency,
		ConfidenceScore:   confidence,
		DetectedKeywords:  detected,
		Reasoning:         strings.Join(reasons, "; "),
	}
}
