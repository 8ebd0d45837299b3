// Package registry implements the authoritative lifecycle store for
// listing candidates. Mutations are serialized per target ID so that
// concurrent promote/execute/expire calls can never interleave into an
// inconsistent stage; reads hand out copies.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
)

// Config holds the registry's tunables.
type Config struct {
	// GraceWindow is how long past its launch time a non-executed target
	// may linger before ExpireStale sweeps it.
	GraceWindow time.Duration
	// MaxConcurrentTargets caps how many live (non-terminal) targets are
	// tracked at once. Zero means unlimited.
	MaxConcurrentTargets int
}

type entry struct {
	mu     sync.Mutex
	target domain.MonitoredTarget
}

// Registry is the single-writer-per-id store of monitored targets.
type Registry struct {
	cfg    Config
	logger ports.Logger
	repo   ports.TargetRepository // optional durable mirror

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty registry. repo may be nil; when set, every
// mutation is mirrored to it best-effort.
func New(cfg Config, logger ports.Logger, repo ports.TargetRepository) (*Registry, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for registry")
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 5 * time.Minute
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		entries: make(map[string]*entry),
	}, nil
}

// IngestResult summarizes one calendar ingestion pass.
type IngestResult struct {
	New     int // Targets newly tracked
	Known   int // Entries already tracked (deduplicated)
	Skipped int // Entries rejected (past launch, invalid, or over capacity)
}

// IngestCalendar deduplicates calendar entries by ID and starts tracking
// the new ones. Entries whose scheduled launch is not in the future are
// skipped. New targets enter at stage calendar and immediately move to
// monitoring for status tracking. Idempotent: re-ingesting an identical
// entry set changes nothing.
func (r *Registry) IngestCalendar(ctx context.Context, entries []domain.CalendarCandidate, now time.Time) IngestResult {
	var res IngestResult
	for _, cand := range entries {
		if cand.ID == "" || !cand.ScheduledLaunchTime.After(now) {
			res.Skipped++
			continue
		}

		r.mu.Lock()
		if _, ok := r.entries[cand.ID]; ok {
			r.mu.Unlock()
			res.Known++
			continue
		}
		if r.cfg.MaxConcurrentTargets > 0 && r.liveCountLocked() >= r.cfg.MaxConcurrentTargets {
			r.mu.Unlock()
			res.Skipped++
			r.logger.Warn(ctx, "Calendar entry skipped, target capacity reached", map[string]interface{}{
				"id": cand.ID, "symbol": cand.Symbol, "cap": r.cfg.MaxConcurrentTargets,
			})
			continue
		}
		if cand.DiscoveredAt.IsZero() {
			cand.DiscoveredAt = now
		}
		e := &entry{target: domain.MonitoredTarget{
			Candidate: cand,
			Stage:     domain.StageMonitoring, // calendar -> monitoring on ingest
			UpdatedAt: now,
		}}
		r.entries[cand.ID] = e
		r.mu.Unlock()

		res.New++
		r.persist(ctx, &e.target)
		r.logger.Info(ctx, "New listing discovered", map[string]interface{}{
			"id": cand.ID, "symbol": cand.Symbol, "project": cand.ProjectName,
			"launch": cand.ScheduledLaunchTime,
		})
	}
	return res
}

// liveCountLocked counts non-terminal targets. Caller holds r.mu.
func (r *Registry) liveCountLocked() int {
	n := 0
	for _, e := range r.entries {
		if !e.target.Stage.IsTerminal() {
			n++
		}
	}
	return n
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Promote moves a monitoring target to ready on the strength of a pattern
// match. Fails with ErrInvalidTransition unless the target is currently
// monitoring, and with ErrBelowThreshold when the match's confidence does
// not reach the given promotion threshold. At most one Promote per target
// ever succeeds.
func (r *Registry) Promote(ctx context.Context, id string, match *domain.PatternMatch, threshold float64) error {
	e, ok := r.lookup(id)
	if !ok {
		return fmt.Errorf("target %s: %w", id, ports.ErrNotFound)
	}
	if match == nil {
		return fmt.Errorf("target %s: promotion requires a pattern match: %w", id, ports.ErrValidation)
	}
	if match.Confidence < threshold {
		return fmt.Errorf("target %s: confidence %.1f < threshold %.1f: %w", id, match.Confidence, threshold, ports.ErrBelowThreshold)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.target.Stage.CanTransitionTo(domain.StageReady) {
		return fmt.Errorf("target %s: cannot promote from stage %s: %w", id, e.target.Stage, ports.ErrInvalidTransition)
	}

	e.target.Stage = domain.StageReady
	e.target.ReadyMatch = match
	e.target.UpdatedAt = time.Now().UTC()
	if snap := match.Indicators; snap.HasCompleteData() {
		e.target.PricePrecision = snap.PricePrecision
		e.target.QuantityPrecision = snap.QuantityPrecision
		e.target.ActualLaunchTime = snap.LaunchTime()
		if e.target.Candidate.Symbol == "" {
			e.target.Candidate.Symbol = snap.Symbol
		}
	}
	snapshot := e.target
	r.persist(ctx, &snapshot)

	r.logger.Info(ctx, "Target promoted to ready", map[string]interface{}{
		"id": id, "confidence": match.Confidence, "pattern": string(match.PatternType),
	})
	return nil
}

// MarkExecuted moves a ready target to executed. Allowed only from ready.
func (r *Registry) MarkExecuted(ctx context.Context, id string) error {
	e, ok := r.lookup(id)
	if !ok {
		return fmt.Errorf("target %s: %w", id, ports.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.target.Stage != domain.StageReady {
		return fmt.Errorf("target %s: cannot mark executed from stage %s: %w", id, e.target.Stage, ports.ErrInvalidTransition)
	}
	e.target.Stage = domain.StageExecuted
	e.target.UpdatedAt = time.Now().UTC()
	snapshot := e.target
	r.persist(ctx, &snapshot)
	return nil
}

// UpdateSnapshotMeta records trading metadata (precisions, actual launch
// time, symbol) learned from a status snapshot before promotion.
func (r *Registry) UpdateSnapshotMeta(ctx context.Context, snap domain.StatusSnapshot) {
	e, ok := r.lookup(snap.ID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.target.Stage.IsTerminal() {
		return
	}
	if snap.PricePrecision > 0 {
		e.target.PricePrecision = snap.PricePrecision
	}
	if snap.QuantityPrecision > 0 {
		e.target.QuantityPrecision = snap.QuantityPrecision
	}
	if lt := snap.LaunchTime(); !lt.IsZero() {
		e.target.ActualLaunchTime = lt
	}
	if snap.Symbol != "" && e.target.Candidate.Symbol == "" {
		e.target.Candidate.Symbol = snap.Symbol
	}
}

// ExpireStale sweeps targets whose launch time plus the grace window has
// passed while still in calendar, monitoring or ready, moving them to
// expired. Returns the IDs expired by this sweep.
func (r *Registry) ExpireStale(ctx context.Context, now time.Time) []string {
	r.mu.RLock()
	candidates := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		candidates = append(candidates, e)
	}
	r.mu.RUnlock()

	var expired []string
	for _, e := range candidates {
		e.mu.Lock()
		stale := !e.target.Stage.IsTerminal() &&
			now.After(e.target.LaunchTime().Add(r.cfg.GraceWindow))
		if stale {
			e.target.Stage = domain.StageExpired
			e.target.UpdatedAt = now
			expired = append(expired, e.target.Candidate.ID)
			snapshot := e.target
			e.mu.Unlock()
			r.persist(ctx, &snapshot)
			r.logger.Info(ctx, "Target expired", map[string]interface{}{
				"id": snapshot.Candidate.ID, "launch": snapshot.LaunchTime(),
			})
			continue
		}
		e.mu.Unlock()
	}
	return expired
}

// Get returns a copy of the target with the given ID.
func (r *Registry) Get(id string) (domain.MonitoredTarget, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return domain.MonitoredTarget{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target, true
}

// ByStage returns copies of all targets in the given stage, ordered by
// discovery time.
func (r *Registry) ByStage(stage domain.TargetStage) []domain.MonitoredTarget {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []domain.MonitoredTarget
	for _, e := range entries {
		e.mu.Lock()
		if e.target.Stage == stage {
			out = append(out, e.target)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Candidate.DiscoveredAt.Before(out[j].Candidate.DiscoveredAt)
	})
	return out
}

// PendingIDs returns the IDs of targets still awaiting promotion.
func (r *Registry) PendingIDs() []string {
	monitoring := r.ByStage(domain.StageMonitoring)
	ids := make([]string, 0, len(monitoring))
	for _, t := range monitoring {
		ids = append(ids, t.Candidate.ID)
	}
	return ids
}

// persist mirrors a target to the durable store. Failures are logged and
// swallowed: the in-memory registry stays authoritative and the next
// mutation retries naturally.
func (r *Registry) persist(ctx context.Context, target *domain.MonitoredTarget) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Upsert(ctx, target); err != nil {
		r.logger.Error(ctx, err, "Failed to persist target", map[string]interface{}{"id": target.Candidate.ID})
	}
}
