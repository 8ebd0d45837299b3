// Package pattern classifies symbol status snapshots into pattern matches
// and scores them with the confidence calculator. The ready-state rule is
// a hard rule: tradingStatus=2, stateFlag=2, timeFlag=4 always yields a
// ready_state match with base score 100. Everything on top (advance
// bonus, data quality, external enrichment) is a bounded adjustment.
package pattern

import (
	"context"
	"fmt"
	"time"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
)

// defaultTimeToReady is the fallback pre-ready transition estimate used
// when no structurally similar history exists yet.
const defaultTimeToReady = 30 * time.Minute

// AnalysisResult is the outcome of one evaluation cycle. The analyzer
// never fails the cycle: malformed inputs shrink the match set and add a
// warning, and the next poll retries naturally.
type AnalysisResult struct {
	Matches  []*domain.PatternMatch // at most one per target, best confidence
	Warnings []string
}

// Config holds the analyzer's tunables.
type Config struct {
	// MinAdvanceNotice is the lead time below which a match is flagged
	// low-advance. Zero disables the flag.
	MinAdvanceNotice time.Duration
}

// Analyzer classifies status snapshots for monitored targets.
type Analyzer struct {
	cfg     Config
	logger  ports.Logger
	calc    *Calculator
	history *History
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config, logger ports.Logger, calc *Calculator, history *History) (*Analyzer, error) {
	if logger == nil || calc == nil || history == nil {
		return nil, fmt.Errorf("missing required dependencies for analyzer")
	}
	return &Analyzer{cfg: cfg, logger: logger, calc: calc, history: history}, nil
}

// classify maps a snapshot onto a pattern type and base score.
// ok is false when the snapshot matches no known pattern.
func classify(snap domain.StatusSnapshot) (domain.PatternType, float64, bool) {
	switch {
	case snap.IsReadyState():
		return domain.PatternReadyState, baseScoreReadyState, true
	case snap.TradingStatus == domain.SuspendedStatus || snap.StateFlag == domain.SuspendedStatus:
		return domain.PatternRiskWarning, baseScoreRiskWarning, true
	case snap.TradingStatus == domain.ReadyTradingStatus && snap.StateFlag == domain.ReadyStateFlag:
		// Both core flags are set but the time flag has not flipped yet:
		// the listing is in its final launch sequence.
		return domain.PatternLaunchSequence, baseScoreLaunchSequence, true
	case snap.TradingStatus == domain.ReadyTradingStatus && snap.StateFlag == 1:
		// State flag trending toward ready.
		return domain.PatternPreReady, baseScorePreReady, true
	}
	return "", 0, false
}

func riskLevelFor(patternType domain.PatternType) domain.RiskLevel {
	switch patternType {
	case domain.PatternReadyState:
		return domain.RiskLow
	case domain.PatternLaunchSequence, domain.PatternPreReady:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func recommendationFor(patternType domain.PatternType) string {
	switch patternType {
	case domain.PatternReadyState:
		return "execute snipe when gate approves"
	case domain.PatternLaunchSequence:
		return "tighten polling, launch imminent"
	case domain.PatternPreReady:
		return "continue monitoring"
	default:
		return "avoid entry, risk flags active"
	}
}

// Analyze runs one evaluation cycle over the given targets and their
// fresh status snapshots. It returns at most one match per target: when
// multiple snapshots for the same target score equal confidence, the one
// observed for the earlier-discovered candidate record wins and later
// duplicates are discarded, so a single promotion candidate remains.
func (a *Analyzer) Analyze(ctx context.Context, targets map[string]domain.MonitoredTarget, snapshots []domain.StatusSnapshot, now time.Time) AnalysisResult {
	var res AnalysisResult
	best := make(map[string]*domain.PatternMatch)

	for _, snap := range snapshots {
		if snap.ID == "" {
			res.Warnings = append(res.Warnings, "snapshot missing coin id, skipped")
			continue
		}
		target, ok := targets[snap.ID]
		if !ok {
			// Snapshot for something we are not tracking; ignore.
			continue
		}
		if snap.TradingStatus < 0 || snap.StateFlag < 0 || snap.TimeFlag < 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("malformed snapshot for %s, skipped", snap.ID))
			continue
		}

		patternType, base, matched := classify(snap)
		if !matched {
			continue
		}

		lead := launchLead(target, snap, now)
		confidence := a.calc.Score(ctx, target, snap, patternType, base, lead)

		match := &domain.PatternMatch{
			TargetID:         snap.ID,
			PatternType:      patternType,
			Confidence:       confidence,
			Indicators:       snap,
			RiskLevel:        riskLevelFor(patternType),
			Recommendation:   recommendationFor(patternType),
			DetectedAt:       now,
			LowAdvanceNotice: a.cfg.MinAdvanceNotice > 0 && lead < a.cfg.MinAdvanceNotice,
		}
		if patternType == domain.PatternPreReady || patternType == domain.PatternLaunchSequence {
			if mean, ok := a.history.MeanTransitionDuration(snap); ok {
				match.EstimatedTimeToReady = mean
			} else {
				match.EstimatedTimeToReady = defaultTimeToReady
			}
		}

		prev, exists := best[snap.ID]
		if !exists || match.Confidence > prev.Confidence {
			best[snap.ID] = match
			continue
		}
		// Equal confidence in the same cycle: the earlier discovery wins;
		// the later snapshot is a duplicate and is dropped.
		if match.Confidence == prev.Confidence {
			a.logger.Debug(ctx, "Duplicate equal-confidence match discarded", map[string]interface{}{"id": snap.ID})
		}
	}

	for _, match := range best {
		a.history.Record(ctx, match)
		res.Matches = append(res.Matches, match)
	}
	return res
}

// launchLead computes the advance notice between now and the best-known
// launch time: the snapshot's own launch timestamp when present,
// otherwise the target's.
func launchLead(target domain.MonitoredTarget, snap domain.StatusSnapshot, now time.Time) time.Duration {
	if lt := snap.LaunchTime(); !lt.IsZero() {
		return lt.Sub(now)
	}
	return target.AdvanceNotice(now)
}
