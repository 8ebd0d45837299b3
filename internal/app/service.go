// Package app wires the discovery, analysis, execution and safety
// components into the sniper's polling pipeline.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mexcSniperBot/config"
	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/execution"
	"mexcSniperBot/internal/pattern"
	"mexcSniperBot/internal/ports"
	"mexcSniperBot/internal/position"
	"mexcSniperBot/internal/registry"
	"mexcSniperBot/internal/safety"
	"mexcSniperBot/internal/scheduler"
)

// consecutive recoverable failures from one source before the safety
// coordinator is alerted
const failureAlertThreshold = 3

// DiscoveryStats summarizes the pipeline's progress for reporting.
type DiscoveryStats struct {
	TotalDiscovered  int
	SkippedEntries   int
	Monitoring       int
	Ready            int
	Executed         int
	Expired          int
	Errors           int     // recoverable poll failures seen so far
	AvgAdvanceHours  float64 // mean lead time of promoted targets
	LastCalendarPoll time.Time
	LastStatusPoll   time.Time
}

// Service orchestrates the sniper's polling pipeline.
type Service struct {
	cfg          *config.Config
	logger       ports.Logger
	market       ports.MarketDataClient
	registry     *registry.Registry
	analyzer     *pattern.Analyzer
	orchestrator *execution.Orchestrator
	safety       *safety.Coordinator
	positions    *position.Manager
	sched        *scheduler.Scheduler
	strategies   *domain.StrategyStore

	mu            sync.Mutex
	stats         DiscoveryStats
	failures      map[string]int
	failureAlerts map[string]string // source -> open alert ID
	lastStatusRun time.Time
	reports       []domain.CorrelationReport
	liquidated    bool
	advanceSum    float64
	advanceCount  int
}

// New creates the application service.
func New(cfg *config.Config, logger ports.Logger, market ports.MarketDataClient,
	reg *registry.Registry, analyzer *pattern.Analyzer, orch *execution.Orchestrator,
	coord *safety.Coordinator, positions *position.Manager, sched *scheduler.Scheduler,
	strategies *domain.StrategyStore) (*Service, error) {

	if cfg == nil || logger == nil || market == nil || reg == nil || analyzer == nil ||
		orch == nil || coord == nil || positions == nil || sched == nil || strategies == nil {
		return nil, fmt.Errorf("missing required dependencies for service")
	}
	if _, ok := strategies.Get(cfg.ActiveStrategy); !ok {
		return nil, fmt.Errorf("configured strategy %q does not exist", cfg.ActiveStrategy)
	}
	return &Service{
		cfg:           cfg,
		logger:        logger,
		market:        market,
		registry:      reg,
		analyzer:      analyzer,
		orchestrator:  orch,
		safety:        coord,
		positions:     positions,
		sched:         sched,
		strategies:    strategies,
		failures:      make(map[string]int),
		failureAlerts: make(map[string]string),
	}, nil
}

// Start runs the pipeline until the context is cancelled or a shutdown
// signal arrives.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting sniper service...", map[string]interface{}{
		"strategy": s.cfg.ActiveStrategy, "buyAmountUSDT": s.cfg.BuyAmountUSDT,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.market.Ping(ctx); err != nil {
		s.logger.Error(ctx, err, "Exchange connectivity check failed")
		return fmt.Errorf("exchange is unreachable at startup: %w", err)
	}
	s.logger.Info(ctx, "Exchange connectivity verified")

	if err := s.strategies.SetActive(s.cfg.ActiveStrategy); err != nil {
		return fmt.Errorf("failed to activate strategy: %w", err)
	}

	if err := s.positions.Restore(ctx); err != nil {
		// Monitoring of new fills still works; existing positions are at risk.
		s.logger.Error(ctx, err, "Failed to restore active positions")
		s.safety.RaiseAlert(ctx, domain.SeverityHigh, "persistence",
			"active positions could not be restored from storage")
	}

	s.sched.Schedule(ctx, "calendar-poll", s.cfg.CalendarPollInterval, true, s.calendarCycle)
	// The status schedule ticks at the near-launch cadence and skips runs
	// internally until the effective interval has elapsed.
	s.sched.Schedule(ctx, "status-poll", s.cfg.NearLaunchPollInterval, true, s.statusCycle)
	s.sched.Schedule(ctx, "health-check", s.cfg.HealthCheckInterval, false, s.healthCycle)

	<-ctx.Done()
	s.logger.Info(context.Background(), "Shutting down sniper service...")
	s.sched.Shutdown()
	s.logger.Info(context.Background(), "Sniper service stopped")
	return nil
}

// calendarCycle is one discovery pass over the new-coin calendar.
func (s *Service) calendarCycle(ctx context.Context) {
	op := "calendarCycle"
	now := time.Now().UTC()

	entries, err := s.market.GetCalendar(ctx)
	if err != nil {
		s.recordFailure(ctx, "calendar", err)
		return
	}
	s.recordSuccess(ctx, "calendar")

	res := s.registry.IngestCalendar(ctx, entries, now)
	s.mu.Lock()
	s.stats.TotalDiscovered += res.New
	s.stats.SkippedEntries += res.Skipped
	s.stats.LastCalendarPoll = now
	s.mu.Unlock()

	if res.New > 0 {
		s.logger.Info(ctx, op+": new listings ingested", map[string]interface{}{
			"new": res.New, "known": res.Known, "skipped": res.Skipped,
		})
	}
}

// effectiveStatusInterval tightens the status poll cadence when any
// pending target launches inside the near-launch window.
func (s *Service) effectiveStatusInterval(now time.Time) time.Duration {
	for _, target := range s.registry.ByStage(domain.StageMonitoring) {
		lead := target.AdvanceNotice(now)
		if lead > 0 && lead <= s.cfg.NearLaunchWindow {
			return s.cfg.NearLaunchPollInterval
		}
	}
	return s.cfg.SymbolsPollInterval
}

// statusCycle is one evaluation pass: fetch snapshots for pending
// targets, classify them, promote and hand ready targets to execution,
// and expire targets whose launch has passed.
func (s *Service) statusCycle(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	due := s.lastStatusRun.IsZero() || now.Sub(s.lastStatusRun) >= s.effectiveStatusInterval(now)
	if due {
		s.lastStatusRun = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	// Expiry first so a missed launch never reaches execution.
	if expired := s.registry.ExpireStale(ctx, now); len(expired) > 0 {
		s.mu.Lock()
		s.stats.Expired += len(expired)
		s.mu.Unlock()
	}

	if ids := s.registry.PendingIDs(); len(ids) > 0 {
		s.evaluatePending(ctx, ids, now)
	}

	// Gate-held orders are re-evaluated every cycle, even once nothing is
	// left in monitoring, so a held order always either clears or runs its
	// retry budget down to rejection.
	s.orchestrator.Tick(ctx)

	s.mu.Lock()
	s.stats.LastStatusPoll = now
	s.reports = pattern.Correlate(s.registry.ByStage(domain.StageMonitoring), now)
	s.mu.Unlock()
	s.updateStageStats()
}

// evaluatePending fetches fresh snapshots for the monitored targets,
// classifies them and promotes ready matches into execution.
func (s *Service) evaluatePending(ctx context.Context, ids []string, now time.Time) {
	snapshots, err := s.market.GetSymbolStatus(ctx, ids)
	if err != nil {
		s.recordFailure(ctx, "symbols", err)
		return
	}
	s.recordSuccess(ctx, "symbols")

	targets := make(map[string]domain.MonitoredTarget, len(ids))
	for _, id := range ids {
		if target, ok := s.registry.Get(id); ok && target.Stage == domain.StageMonitoring {
			targets[id] = target
		}
	}

	for _, snap := range snapshots {
		s.registry.UpdateSnapshotMeta(ctx, snap)
	}

	result := s.analyzer.Analyze(ctx, targets, snapshots, now)
	for _, warning := range result.Warnings {
		s.logger.Warn(ctx, "Snapshot skipped during analysis", map[string]interface{}{"reason": warning})
	}

	threshold := s.strategies.Active().ConfidenceThreshold
	for _, match := range result.Matches {
		if match.PatternType != domain.PatternReadyState {
			continue
		}
		if err := s.promoteAndExecute(ctx, match, threshold); err != nil {
			s.logger.Warn(ctx, "Promotion not executed", map[string]interface{}{
				"targetID": match.TargetID, "confidence": match.Confidence, "reason": err.Error(),
			})
		}
	}
}

func (s *Service) promoteAndExecute(ctx context.Context, match *domain.PatternMatch, threshold float64) error {
	if err := s.registry.Promote(ctx, match.TargetID, match, threshold); err != nil {
		return err
	}
	target, ok := s.registry.Get(match.TargetID)
	if !ok {
		return fmt.Errorf("target %s vanished after promotion: %w", match.TargetID, ports.ErrSystemFault)
	}
	s.mu.Lock()
	s.advanceSum += target.AdvanceNotice(time.Now().UTC()).Hours()
	s.advanceCount++
	s.mu.Unlock()
	s.logger.Info(ctx, "Target promoted to ready", map[string]interface{}{
		"targetID": match.TargetID, "symbol": target.Candidate.Symbol, "confidence": match.Confidence,
	})
	if _, err := s.orchestrator.HandleReady(ctx, target); err != nil {
		return err
	}
	return nil
}

// healthCycle checks connectivity, recomputes the safety level, and
// carries out a pending liquidation when one was ordered.
func (s *Service) healthCycle(ctx context.Context) {
	if err := s.market.Ping(ctx); err != nil {
		s.recordFailure(ctx, "connectivity", err)
	} else {
		s.recordSuccess(ctx, "connectivity")
	}

	level := s.safety.RunHealthCheck(ctx)
	if level != domain.SafetyLevelSafe {
		s.logger.Warn(ctx, "Safety level degraded", map[string]interface{}{"level": string(level)})
	}

	if s.safety.ShouldLiquidate() {
		s.mu.Lock()
		pending := !s.liquidated
		s.liquidated = true
		s.mu.Unlock()
		if pending {
			s.logger.Warn(ctx, "Emergency liquidation ordered, closing all positions")
			s.positions.LiquidateAll(ctx)
		}
	} else {
		s.mu.Lock()
		s.liquidated = false
		s.mu.Unlock()
	}
}

// recordFailure counts consecutive recoverable failures per source and
// raises a safety alert once the threshold is crossed.
func (s *Service) recordFailure(ctx context.Context, source string, err error) {
	s.logger.Warn(ctx, "Recoverable poll failure", map[string]interface{}{
		"source": source, "error": err.Error(),
	})

	s.mu.Lock()
	s.failures[source]++
	s.stats.Errors++
	count := s.failures[source]
	_, alerted := s.failureAlerts[source]
	s.mu.Unlock()

	if count >= failureAlertThreshold && !alerted {
		alert := s.safety.RaiseAlert(ctx, domain.SeverityHigh, "api_failures",
			fmt.Sprintf("%d consecutive %s poll failures", count, source))
		s.mu.Lock()
		s.failureAlerts[source] = alert.ID
		s.mu.Unlock()
	}
}

// recordSuccess resets the failure counter for a source and resolves its
// open alert, if any.
func (s *Service) recordSuccess(ctx context.Context, source string) {
	s.mu.Lock()
	s.failures[source] = 0
	alertID, alerted := s.failureAlerts[source]
	delete(s.failureAlerts, source)
	s.mu.Unlock()

	if alerted {
		if err := s.safety.ResolveAlert(ctx, alertID, "system", source+" polling recovered"); err != nil {
			s.logger.Warn(ctx, "Failed to resolve recovery alert", map[string]interface{}{"alertID": alertID})
		}
	}
}

func (s *Service) updateStageStats() {
	monitoring := len(s.registry.ByStage(domain.StageMonitoring))
	ready := len(s.registry.ByStage(domain.StageReady))
	executed := len(s.registry.ByStage(domain.StageExecuted))

	s.mu.Lock()
	s.stats.Monitoring = monitoring
	s.stats.Ready = ready
	s.stats.Executed = executed
	s.mu.Unlock()
}

// Stats returns a snapshot of the discovery statistics.
func (s *Service) Stats() DiscoveryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	if s.advanceCount > 0 {
		out.AvgAdvanceHours = s.advanceSum / float64(s.advanceCount)
	}
	return out
}

// CorrelationReports returns the reports from the latest evaluation cycle.
func (s *Service) CorrelationReports() []domain.CorrelationReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CorrelationReport, len(s.reports))
	copy(out, s.reports)
	return out
}
