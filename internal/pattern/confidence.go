package pattern

import (
	"context"
	"time"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
)

// Base pattern scores. The ready-state triple is authoritative: it always
// scores 100 before adjustments.
const (
	baseScoreReadyState     = 100.0
	baseScoreLaunchSequence = 75.0
	baseScorePreReady       = 55.0
	baseScoreRiskWarning    = 25.0

	// Advance-notice bonus: points per hour of lead time, capped.
	advanceBonusPerHour = 2.0
	advanceBonusCap     = 10.0

	// Data quality contribution.
	completeDataScore   = 5.0
	incompleteDataScore = -10.0

	// Bounds on the optional external adjustment.
	minExternalAdjustment = -10.0
	maxExternalAdjustment = 15.0
)

// Calculator composes the 0-100 confidence score for a classified
// snapshot: base pattern score + advance-notice bonus + data quality
// score + optional bounded external adjustment, clamped to [0,100].
type Calculator struct {
	logger   ports.Logger
	enhancer ports.ConfidenceEnhancer // optional, advisory only
}

// NewCalculator creates a confidence calculator. enhancer may be nil.
func NewCalculator(logger ports.Logger, enhancer ports.ConfidenceEnhancer) *Calculator {
	return &Calculator{logger: logger, enhancer: enhancer}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func advanceNoticeBonus(lead time.Duration) float64 {
	if lead <= 0 {
		return 0
	}
	return clamp(lead.Hours()*advanceBonusPerHour, 0, advanceBonusCap)
}

func dataQualityScore(snap domain.StatusSnapshot) float64 {
	if snap.HasCompleteData() {
		return completeDataScore
	}
	return incompleteDataScore
}

// Score computes the confidence for a snapshot already classified as
// patternType with the given base score. lead is the advance notice to
// launch; negative or unknown lead earns no bonus. The external enhancer
// is consulted only when one is configured; its failure or an
// out-of-bounds answer degrades to no adjustment.
func (c *Calculator) Score(ctx context.Context, target domain.MonitoredTarget, snap domain.StatusSnapshot, patternType domain.PatternType, base float64, lead time.Duration) float64 {
	score := base + advanceNoticeBonus(lead) + dataQualityScore(snap)

	if c.enhancer != nil {
		enh, err := c.enhancer.EnhanceConfidence(ctx, snap.Symbol, clamp(score, 0, 100), ports.EnhancementContext{
			PatternType:  string(patternType),
			AdvanceHours: lead.Hours(),
			ProjectName:  target.Candidate.ProjectName,
		})
		if err != nil {
			// Advisory input only: proceed without it.
			c.logger.Warn(ctx, "Confidence enhancement unavailable", map[string]interface{}{
				"id": snap.ID, "error": err.Error(),
			})
		} else if enh != nil {
			score += clamp(enh.Adjustment, minExternalAdjustment, maxExternalAdjustment)
		}
	}

	return clamp(score, 0, 100)
}
