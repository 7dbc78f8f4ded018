package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight overrides
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// Partial configurations are merged with defaults for graceful degradation.
// On any error the defaults are returned alongside the error so callers can
// log and continue.
func LoadCalibration(filePath string) (*Weights, error) {
	// Return defaults if no file path provided
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied, allowing partial
// overrides in the calibration file. A zero weight cannot be expressed this
// way; none of the scoring terms is meaningfully disabled by zeroing.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	// Guard against nil base to avoid panics; fall back to defaults.
	if base == nil {
		return DefaultWeights()
	}

	if override == nil {
		result := *base
		return &result
	}

	result := *base // Copy base

	if override.UrgencyHigh != 0 {
		result.UrgencyHigh = override.UrgencyHigh
	}
	if override.UrgencyMedium != 0 {
		result.UrgencyMedium = override.UrgencyMedium
	}
	if override.UrgencyLow != 0 {
		result.UrgencyLow = override.UrgencyLow
	}
	if override.CategoryBlood != 0 {
		result.CategoryBlood = override.CategoryBlood
	}
	if override.CategoryHelp != 0 {
		result.CategoryHelp = override.CategoryHelp
	}
	if override.CategoryLost != 0 {
		result.CategoryLost = override.CategoryLost
	}
	if override.CategoryOffer != 0 {
		result.CategoryOffer = override.CategoryOffer
	}
	if override.RecencyBase != 0 {
		result.RecencyBase = override.RecencyBase
	}
	if override.RecencyWindowHours != 0 {
		result.RecencyWindowHours = override.RecencyWindowHours
	}
	if override.ViewWeight != 0 {
		result.ViewWeight = override.ViewWeight
	}
	if override.EngagementCap != 0 {
		result.EngagementCap = override.EngagementCap
	}
	if override.ReportPenalty != 0 {
		result.ReportPenalty = override.ReportPenalty
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	fields := []struct {
		name       string
		def, value float64
	}{
		{"urgency_high", defaults.UrgencyHigh, loaded.UrgencyHigh},
		{"urgency_medium", defaults.UrgencyMedium, loaded.UrgencyMedium},
		{"urgency_low", defaults.UrgencyLow, loaded.UrgencyLow},
		{"category_blood", defaults.CategoryBlood, loaded.CategoryBlood},
		{"category_help", defaults.CategoryHelp, loaded.CategoryHelp},
		{"category_lost", defaults.CategoryLost, loaded.CategoryLost},
		{"category_offer", defaults.CategoryOffer, loaded.CategoryOffer},
		{"recency_base", defaults.RecencyBase, loaded.RecencyBase},
		{"recency_window_hours", defaults.RecencyWindowHours, loaded.RecencyWindowHours},
		{"view_weight", defaults.ViewWeight, loaded.ViewWeight},
		{"engagement_cap", defaults.EngagementCap, loaded.EngagementCap},
		{"report_penalty", defaults.ReportPenalty, loaded.ReportPenalty},
	}

	var overrides []string
	for _, f := range fields {
		if f.value != f.def {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, f.def, f.value))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded scoring calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded scoring calibration (using all defaults)")
	}
}
