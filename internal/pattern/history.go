package pattern

import (
	"context"
	"sync"
	"time"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
)

const maxHistorySize = 1000

// History is the append-only pattern match history. It backs two lookups:
// the mean pre-ready-to-ready transition duration for structurally
// similar matches (used for estimatedTimeToReady) and per-pattern success
// rates. Matches are mirrored to the durable store when one is configured.
type History struct {
	logger ports.Logger
	repo   ports.MatchRepository // optional

	mu      sync.RWMutex
	matches []*domain.PatternMatch
	// firstSeen tracks, per target, the first detection time of each
	// (tradingStatus, stateFlag) pair, so transition durations can be
	// measured when the ready state arrives.
	firstSeen map[string]map[[2]int]time.Time
	// transitions collects measured pre-ready-to-ready durations keyed by
	// the origin (tradingStatus, stateFlag) pair.
	transitions map[[2]int][]time.Duration
}

// NewHistory creates an empty history. repo may be nil.
func NewHistory(logger ports.Logger, repo ports.MatchRepository) *History {
	return &History{
		logger:      logger,
		repo:        repo,
		firstSeen:   make(map[string]map[[2]int]time.Time),
		transitions: make(map[[2]int][]time.Duration),
	}
}

func statusKey(snap domain.StatusSnapshot) [2]int {
	return [2]int{snap.TradingStatus, snap.StateFlag}
}

// Record appends a match and updates transition statistics.
func (h *History) Record(ctx context.Context, match *domain.PatternMatch) {
	h.mu.Lock()
	h.matches = append(h.matches, match)
	if len(h.matches) > maxHistorySize {
		h.matches = h.matches[len(h.matches)-maxHistorySize:]
	}

	key := statusKey(match.Indicators)
	seen, ok := h.firstSeen[match.TargetID]
	if !ok {
		seen = make(map[[2]int]time.Time)
		h.firstSeen[match.TargetID] = seen
	}
	if _, ok := seen[key]; !ok {
		seen[key] = match.DetectedAt
	}

	// Closing a transition: a ready match resolves every earlier
	// non-ready observation of the same target.
	if match.PatternType == domain.PatternReadyState {
		for from, at := range seen {
			if from == key {
				continue
			}
			if d := match.DetectedAt.Sub(at); d > 0 {
				h.transitions[from] = append(h.transitions[from], d)
			}
		}
	}
	h.mu.Unlock()

	if h.repo != nil {
		if err := h.repo.Append(ctx, match); err != nil {
			h.logger.Error(ctx, err, "Failed to persist pattern match", map[string]interface{}{"id": match.TargetID})
		}
	}
}

// MeanTransitionDuration returns the historical mean duration from the
// snapshot's (tradingStatus, stateFlag) pair to the ready state. ok is
// false when no structurally similar transition has been observed.
func (h *History) MeanTransitionDuration(snap domain.StatusSnapshot) (time.Duration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	durations := h.transitions[statusKey(snap)]
	if len(durations) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations)), true
}

// SuccessRate returns the fraction of targets whose history contains the
// given pattern type that eventually produced a ready-state match.
func (h *History) SuccessRate(patternType domain.PatternType) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)  // targets with the pattern
	ready := make(map[string]bool) // targets that reached ready
	for _, m := range h.matches {
		if m.PatternType == patternType {
			seen[m.TargetID] = true
		}
		if m.PatternType == domain.PatternReadyState {
			ready[m.TargetID] = true
		}
	}
	if len(seen) == 0 {
		return 0
	}
	hits := 0
	for id := range seen {
		if ready[id] {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}

// Size returns the number of retained matches.
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches)
}
