// Package ranking computes the decaying numeric priority score that orders
// the default feed, with calibration support for deploy-time weight tuning.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	// Score a post at write or read time
//	priority := ranking.Score(ranking.Params{
//		Category:  p.Category,
//		Urgency:   p.Urgency,
//		CreatedAt: p.CreatedAt,
//		Views:     p.Views,
//		Reported:  p.Reported,
//		Now:       time.Now(),
//	}, weights)
//
// The score is a pure function of its inputs: no accumulated state, so it
// may be recomputed at any time without reconciliation logic. Higher scores
// sort first.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of scoring weights via a
// JSON configuration file loaded at startup. Partial files merge over the
// defaults; a restart is required to pick up changes.
package ranking
