package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type memTargets struct {
	mu sync.Mutex
	m  map[string]domain.MonitoredTarget
}

func newMemTargets() *memTargets { return &memTargets{m: make(map[string]domain.MonitoredTarget)} }

func (r *memTargets) Upsert(ctx context.Context, target *domain.MonitoredTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[target.Candidate.ID] = *target
	return nil
}

func (r *memTargets) FindByID(ctx context.Context, id string) (*domain.MonitoredTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.m[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r *memTargets) FindByStage(ctx context.Context, stage domain.TargetStage) ([]*domain.MonitoredTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.MonitoredTarget
	for _, t := range r.m {
		if t.Stage == stage {
			c := t
			out = append(out, &c)
		}
	}
	return out, nil
}

type memMatches struct {
	mu      sync.Mutex
	matches []*domain.PatternMatch
}

func (r *memMatches) Append(ctx context.Context, match *domain.PatternMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, match)
	return nil
}

func (r *memMatches) FindByTarget(ctx context.Context, targetID string) ([]*domain.PatternMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PatternMatch
	for _, m := range r.matches {
		if m.TargetID == targetID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMatches) FindByType(ctx context.Context, patternType domain.PatternType, limit int) ([]*domain.PatternMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PatternMatch
	for i := len(r.matches) - 1; i >= 0 && len(out) < limit; i-- {
		if r.matches[i].PatternType == patternType {
			out = append(out, r.matches[i])
		}
	}
	return out, nil
}

type memPositions struct {
	mu sync.Mutex
	m  map[string]domain.Position
}

func newMemPositions() *memPositions { return &memPositions{m: make(map[string]domain.Position)} }

func (r *memPositions) Create(ctx context.Context, pos *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[pos.ID] = *pos
	return nil
}

func (r *memPositions) Update(ctx context.Context, pos *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[pos.ID]; !ok {
		return ports.ErrNotFound
	}
	r.m[pos.ID] = *pos
	return nil
}

func (r *memPositions) FindActive(ctx context.Context) ([]*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Position
	for _, p := range r.m {
		if p.Status == domain.StatusActive {
			c := p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memPositions) FindByID(ctx context.Context, id string) (*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.m[id]; ok {
		return &p, nil
	}
	return nil, nil
}

type memTrades struct {
	mu     sync.Mutex
	trades []*domain.TradeResult
}

func (r *memTrades) Create(ctx context.Context, trade *domain.TradeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return nil
}

func (r *memTrades) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TradeResult
	for i := len(r.trades) - 1; i >= 0 && len(out) < limit; i-- {
		if r.trades[i].Symbol == symbol {
			out = append(out, r.trades[i])
		}
	}
	return out, nil
}

func (r *memTrades) CountSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.trades {
		if !t.ExitTime.Before(since) {
			n++
		}
	}
	return n, nil
}

type memAlerts struct {
	mu sync.Mutex
	m  map[string]domain.SafetyAlert
}

func newMemAlerts() *memAlerts { return &memAlerts{m: make(map[string]domain.SafetyAlert)} }

func (r *memAlerts) Create(ctx context.Context, alert *domain.SafetyAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[alert.ID] = *alert
	return nil
}

func (r *memAlerts) Update(ctx context.Context, alert *domain.SafetyAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[alert.ID]; !ok {
		return ports.ErrNotFound
	}
	r.m[alert.ID] = *alert
	return nil
}

func (r *memAlerts) FindUnresolved(ctx context.Context) ([]*domain.SafetyAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SafetyAlert
	for _, a := range r.m {
		if a.ResolvedAt.IsZero() {
			c := a
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeMarket struct {
	mu            sync.Mutex
	calendar      []domain.CalendarCandidate
	calendarErr   error
	snapshots     []domain.StatusSnapshot
	statusErr     error
	price         float64
	pingErr       error
	calendarCalls int
	statusCalls   int
}

func (m *fakeMarket) GetCalendar(ctx context.Context) ([]domain.CalendarCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calendarCalls++
	return m.calendar, m.calendarErr
}

func (m *fakeMarket) GetSymbolStatus(ctx context.Context, ids []string) ([]domain.StatusSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	return m.snapshots, m.statusErr
}

func (m *fakeMarket) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price, nil
}

func (m *fakeMarket) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

type fakeExec struct {
	mu       sync.Mutex
	requests []ports.OrderRequest
}

func (m *fakeExec) SubmitOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	qty := req.Quantity
	if req.QuoteAmount > 0 {
		qty = req.QuoteAmount // price of 1.0 in the fixture
	}
	return &ports.OrderResult{Success: true, OrderID: "ord", FilledPrice: 1.0, FilledQuantity: qty}, nil
}

type serviceFixture struct {
	svc    *Service
	market *fakeMarket
	exec   *fakeExec
	reg    *registry.Registry
	coord  *safety.Coordinator
	posMgr *position.Manager
	orch   *execution.Orchestrator
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	cfg := &config.Config{
		APIKey:                 "key",
		SecretKey:              "secret",
		BuyAmountUSDT:          100,
		ActiveStrategy:         "balanced",
		MaxConcurrentTargets:   5,
		CalendarPollInterval:   time.Hour,
		SymbolsPollInterval:    30 * time.Second,
		NearLaunchPollInterval: 5 * time.Second,
		NearLaunchWindow:       time.Hour,
		PositionCheckInterval:  time.Hour, // positions driven manually in tests
		HealthCheckInterval:    time.Minute,
		ExpiryGraceWindow:      5 * time.Minute,
	}

	log := nopLogger{}
	market := &fakeMarket{price: 1.0}
	exec := &fakeExec{}

	sched := scheduler.New(log)
	t.Cleanup(sched.Shutdown)

	reg, err := registry.New(registry.Config{
		GraceWindow:          cfg.ExpiryGraceWindow,
		MaxConcurrentTargets: cfg.MaxConcurrentTargets,
	}, log, newMemTargets())
	require.NoError(t, err)

	analyzer, err := pattern.NewAnalyzer(
		pattern.Config{MinAdvanceNotice: time.Duration(cfg.TargetAdvanceHours * float64(time.Hour))},
		log,
		pattern.NewCalculator(log, nil),
		pattern.NewHistory(log, &memMatches{}))
	require.NoError(t, err)

	coord, err := safety.New(log, newMemAlerts(), safety.DefaultThresholds())
	require.NoError(t, err)

	vol := safety.NewVolatilityTracker(10*time.Minute, 10.0)

	posMgr, err := position.NewManager(position.Config{
		CheckInterval:            cfg.PositionCheckInterval,
		DefaultStopLossPercent:   cfg.DefaultStopLossPercent,
		DefaultTakeProfitPercent: cfg.DefaultTakeProfitPercent,
	}, log, market, exec, newMemPositions(), &memTrades{}, sched, vol.Observe)
	require.NoError(t, err)

	strategies := domain.NewStrategyStore()
	conditions := func(symbol string) domain.TradingConditions {
		return domain.TradingConditions{
			RapidPriceMovement: vol.RapidMovement(symbol),
			Volatility:         vol.Volatility(symbol),
			PortfolioRisk:      posMgr.Exposure() / cfg.BuyAmountUSDT,
		}
	}

	orch, err := execution.New(
		execution.Config{BuyAmountUSDT: cfg.BuyAmountUSDT, MaxGateRetries: 3, SubmitTimeout: time.Second},
		log, exec, market, coord, reg, posMgr, strategies, conditions,
		execution.NewPerformanceTracker())
	require.NoError(t, err)

	svc, err := New(cfg, log, market, reg, analyzer, orch, coord, posMgr, sched, strategies)
	require.NoError(t, err)

	return &serviceFixture{svc: svc, market: market, exec: exec, reg: reg, coord: coord, posMgr: posMgr, orch: orch}
}

func listingEntry(id string, launchIn time.Duration) domain.CalendarCandidate {
	now := time.Now().UTC()
	return domain.CalendarCandidate{
		ID:                  id,
		Symbol:              id + "USDT",
		ProjectName:         id + " Protocol",
		ScheduledLaunchTime: now.Add(launchIn),
		DiscoveredAt:        now,
	}
}

func readySnapshot(id string, launchIn time.Duration) domain.StatusSnapshot {
	return domain.StatusSnapshot{
		ID:                id,
		Symbol:            id + "USDT",
		TradingStatus:     domain.ReadyTradingStatus,
		StateFlag:         domain.ReadyStateFlag,
		TimeFlag:          domain.ReadyTimeFlag,
		PricePrecision:    4,
		QuantityPrecision: 2,
		LaunchTimestamp:   time.Now().UTC().Add(launchIn).UnixMilli(),
		ObservedAt:        time.Now().UTC(),
	}
}

func resetStatusClock(svc *Service) {
	svc.mu.Lock()
	svc.lastStatusRun = time.Time{}
	svc.mu.Unlock()
}

func TestCalendarCycleIngestsListings(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.calendar = []domain.CalendarCandidate{
		listingEntry("AAA", 2*time.Hour),
		listingEntry("BBB", 3*time.Hour),
	}

	f.svc.calendarCycle(ctx)

	stats := f.svc.Stats()
	assert.Equal(t, 2, stats.TotalDiscovered)
	assert.Len(t, f.reg.PendingIDs(), 2)
	assert.False(t, stats.LastCalendarPoll.IsZero())

	// The same entries on the next poll are deduplicated.
	f.svc.calendarCycle(ctx)
	assert.Equal(t, 2, f.svc.Stats().TotalDiscovered)
}

func TestStatusCycleExecutesReadyTarget(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.calendar = []domain.CalendarCandidate{listingEntry("AAA", 2*time.Hour)}
	f.svc.calendarCycle(ctx)

	f.market.snapshots = []domain.StatusSnapshot{readySnapshot("AAA", 2 * time.Hour)}
	f.svc.statusCycle(ctx)

	target, ok := f.reg.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, domain.StageExecuted, target.Stage)
	require.NotNil(t, target.ReadyMatch)
	assert.GreaterOrEqual(t, target.ReadyMatch.Confidence, 75.0)

	f.exec.mu.Lock()
	submissions := len(f.exec.requests)
	f.exec.mu.Unlock()
	assert.Greater(t, submissions, 0)

	assert.Len(t, f.posMgr.Active(), 1)
	stats := f.svc.Stats()
	assert.Equal(t, 1, stats.Executed)
	assert.InDelta(t, 2.0, stats.AvgAdvanceHours, 0.1)
}

func TestStatusCycleKeepsNonReadyTargets(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.calendar = []domain.CalendarCandidate{listingEntry("AAA", 2*time.Hour)}
	f.svc.calendarCycle(ctx)

	snap := readySnapshot("AAA", 2*time.Hour)
	snap.TradingStatus = 1 // launch sequence, not executable yet
	f.market.snapshots = []domain.StatusSnapshot{snap}
	f.svc.statusCycle(ctx)

	target, ok := f.reg.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, domain.StageMonitoring, target.Stage)

	f.exec.mu.Lock()
	defer f.exec.mu.Unlock()
	assert.Empty(t, f.exec.requests)
}

func TestStatusCycleSkipsWithoutPendingTargets(t *testing.T) {
	f := newServiceFixture(t)
	f.svc.statusCycle(context.Background())

	f.market.mu.Lock()
	defer f.market.mu.Unlock()
	assert.Equal(t, 0, f.market.statusCalls)
}

func TestStatusCycleDrainsHeldOrderAfterGateRecovers(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.calendar = []domain.CalendarCandidate{listingEntry("AAA", 2*time.Hour)}
	f.svc.calendarCycle(ctx)

	// Halt trading before the target turns ready: promotion still
	// happens, but the gate holds the queued order.
	f.coord.TriggerEmergencyProcedure(ctx, domain.EmergencyHaltTrading)
	f.market.snapshots = []domain.StatusSnapshot{readySnapshot("AAA", 2 * time.Hour)}
	f.svc.statusCycle(ctx)

	order, ok := f.orch.Order("AAA")
	require.True(t, ok)
	assert.Equal(t, domain.OrderQueued, order.State)
	f.exec.mu.Lock()
	assert.Empty(t, f.exec.requests)
	f.exec.mu.Unlock()

	// Lift the halt and clear its critical alert so the gate approves.
	f.coord.DeactivateEmergency(ctx)
	for _, alert := range f.coord.ActiveAlerts() {
		if alert.Category == "emergency" {
			require.NoError(t, f.coord.ResolveAlert(ctx, alert.ID, "operator", "halt lifted"))
		}
	}

	// The promoted target has left monitoring, so the next cycles carry
	// no status polling, yet the held order must still be re-evaluated.
	resetStatusClock(f.svc)
	f.svc.statusCycle(ctx)

	order, ok = f.orch.Order("AAA")
	require.True(t, ok)
	assert.Equal(t, domain.OrderFilled, order.State)
	f.exec.mu.Lock()
	assert.NotEmpty(t, f.exec.requests)
	f.exec.mu.Unlock()

	target, ok := f.reg.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, domain.StageExecuted, target.Stage)
	assert.Len(t, f.posMgr.Active(), 1)
}

func TestStatusCycleRejectsHeldOrderAfterRetryBudget(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.calendar = []domain.CalendarCandidate{listingEntry("AAA", 2*time.Hour)}
	f.svc.calendarCycle(ctx)

	f.coord.TriggerEmergencyProcedure(ctx, domain.EmergencyHaltTrading)
	f.market.snapshots = []domain.StatusSnapshot{readySnapshot("AAA", 2 * time.Hour)}

	// Fixture budget is three gate evaluations; the halt never lifts.
	for i := 0; i < 3; i++ {
		resetStatusClock(f.svc)
		f.svc.statusCycle(ctx)
	}

	order, ok := f.orch.Order("AAA")
	require.True(t, ok)
	assert.Equal(t, domain.OrderRejected, order.State)
	assert.NotEmpty(t, order.RejectReasons)
	assert.Equal(t, 0, f.orch.QueuedCount())
	f.exec.mu.Lock()
	defer f.exec.mu.Unlock()
	assert.Empty(t, f.exec.requests)
}

func TestStatusCycleHonorsPollCadence(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.calendar = []domain.CalendarCandidate{listingEntry("AAA", 5*time.Hour)}
	f.svc.calendarCycle(ctx)
	f.market.snapshots = []domain.StatusSnapshot{}

	// First run is always due; an immediate second run inside the
	// 30-second cadence is skipped.
	f.svc.statusCycle(ctx)
	f.svc.statusCycle(ctx)

	f.market.mu.Lock()
	calls := f.market.statusCalls
	f.market.mu.Unlock()
	assert.Equal(t, 1, calls)

	resetStatusClock(f.svc)
	f.svc.statusCycle(ctx)
	f.market.mu.Lock()
	defer f.market.mu.Unlock()
	assert.Equal(t, 2, f.market.statusCalls)
}

func TestEffectiveStatusIntervalTightensNearLaunch(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.market.calendar = []domain.CalendarCandidate{listingEntry("FAR", 5*time.Hour)}
	f.svc.calendarCycle(ctx)
	assert.Equal(t, 30*time.Second, f.svc.effectiveStatusInterval(now))

	f.market.calendar = []domain.CalendarCandidate{listingEntry("SOON", 30*time.Minute)}
	f.svc.calendarCycle(ctx)
	assert.Equal(t, 5*time.Second, f.svc.effectiveStatusInterval(now))
}

func TestRepeatedPollFailuresRaiseAndResolveAlert(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.calendarErr = errors.New("upstream 502")

	for i := 0; i < failureAlertThreshold; i++ {
		f.svc.calendarCycle(ctx)
	}
	alerts := f.coord.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "api_failures", alerts[0].Category)

	// Further failures do not duplicate the alert.
	f.svc.calendarCycle(ctx)
	assert.Len(t, f.coord.ActiveAlerts(), 1)
	assert.Equal(t, failureAlertThreshold+1, f.svc.Stats().Errors)

	f.market.mu.Lock()
	f.market.calendarErr = nil
	f.market.mu.Unlock()
	f.svc.calendarCycle(ctx)
	assert.Empty(t, f.coord.ActiveAlerts())
}

func TestHealthCycleLiquidatesOnEmergency(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.posMgr.OpenPosition(ctx, &domain.Position{
		Symbol:          "AAAUSDT",
		Side:            domain.Buy,
		EntryPrice:      1.0,
		Quantity:        50,
		StopLossPrice:   0.9,
		TakeProfitPrice: 1.25,
		Status:          domain.StatusActive,
		EntryTime:       time.Now().UTC(),
	}))
	require.Len(t, f.posMgr.Active(), 1)

	f.coord.TriggerEmergencyProcedure(ctx, domain.EmergencyLiquidateAll)
	f.svc.healthCycle(ctx)

	assert.Empty(t, f.posMgr.Active())

	f.exec.mu.Lock()
	defer f.exec.mu.Unlock()
	require.Len(t, f.exec.requests, 1)
	assert.Equal(t, domain.Sell, f.exec.requests[0].Side)
}

func TestHealthCycleCountsConnectivityFailures(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.market.pingErr = errors.New("dial tcp: timeout")

	for i := 0; i < failureAlertThreshold; i++ {
		f.svc.healthCycle(ctx)
	}
	alerts := f.coord.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "api_failures", alerts[0].Category)
}
