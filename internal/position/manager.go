// Package position tracks filled positions and enforces their
// stop-loss/take-profit exits. The position table is mutated only here;
// every open position gets its own periodic price check.
package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
	"mexcSniperBot/internal/scheduler"
)

// PriceObserver receives every successfully fetched price sample, letting
// the safety side derive volatility without reaching into this package.
type PriceObserver func(symbol string, price float64, at time.Time)

// Config holds the manager's tunables.
type Config struct {
	CheckInterval time.Duration // per-position evaluation period, default 5s

	// Fallback exit thresholds, in percent of the entry price. Applied
	// only when a position arrives without its own stop-loss or
	// take-profit; positions opened by a strategy always carry both.
	DefaultStopLossPercent   float64
	DefaultTakeProfitPercent float64
}

// Manager owns the active position table and its check schedules.
type Manager struct {
	cfg      Config
	logger   ports.Logger
	market   ports.MarketDataClient
	exec     ports.TradeExecutionClient
	posRepo  ports.PositionRepository
	trades   ports.TradeRepository
	sched    *scheduler.Scheduler
	observer PriceObserver // optional

	mu        sync.Mutex
	positions map[string]*domain.Position
	tickets   map[string]*scheduler.Ticket
}

// NewManager creates a position manager. observer may be nil.
func NewManager(cfg Config, logger ports.Logger, market ports.MarketDataClient, exec ports.TradeExecutionClient,
	posRepo ports.PositionRepository, trades ports.TradeRepository, sched *scheduler.Scheduler, observer PriceObserver) (*Manager, error) {

	if logger == nil || market == nil || exec == nil || posRepo == nil || trades == nil || sched == nil {
		return nil, fmt.Errorf("missing required dependencies for position manager")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		market:    market,
		exec:      exec,
		posRepo:   posRepo,
		trades:    trades,
		sched:     sched,
		observer:  observer,
		positions: make(map[string]*domain.Position),
		tickets:   make(map[string]*scheduler.Ticket),
	}, nil
}

// Restore loads active positions from the durable store and resumes
// their monitoring. Called once at startup.
func (m *Manager) Restore(ctx context.Context) error {
	active, err := m.posRepo.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active positions: %w", err)
	}
	for _, pos := range active {
		m.track(ctx, pos)
		m.logger.Info(ctx, "Resumed monitoring for existing position", map[string]interface{}{
			"positionID": pos.ID, "symbol": pos.Symbol, "entryPrice": pos.EntryPrice,
		})
	}
	return nil
}

// OpenPosition registers a freshly filled position and starts its
// periodic check. Implements the execution orchestrator's PositionSink.
func (m *Manager) OpenPosition(ctx context.Context, pos *domain.Position) error {
	if pos == nil || pos.Quantity <= 0 {
		return fmt.Errorf("position must have positive quantity: %w", ports.ErrValidation)
	}
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	m.applyDefaultExits(pos)
	if err := m.posRepo.Create(ctx, pos); err != nil {
		m.logger.Error(ctx, err, "Failed to persist new position", map[string]interface{}{"positionID": pos.ID})
		// Keep monitoring regardless: exits matter more than bookkeeping.
	}
	m.track(ctx, pos)
	m.logger.Info(ctx, "Position opened", map[string]interface{}{
		"positionID": pos.ID, "symbol": pos.Symbol, "quantity": pos.Quantity,
		"entryPrice": pos.EntryPrice, "stopLoss": pos.StopLossPrice, "takeProfit": pos.TakeProfitPrice,
	})
	return nil
}

// applyDefaultExits fills missing exit thresholds from the configured
// percentage defaults. Requires a known entry price; short positions
// invert the direction of both thresholds.
func (m *Manager) applyDefaultExits(pos *domain.Position) {
	if pos.EntryPrice <= 0 {
		return
	}
	sl, tp := m.cfg.DefaultStopLossPercent, m.cfg.DefaultTakeProfitPercent
	if pos.Side == domain.Sell {
		sl, tp = -sl, -tp
	}
	if pos.StopLossPrice == 0 && sl != 0 {
		pos.StopLossPrice = pos.EntryPrice * (1 - sl/100)
	}
	if pos.TakeProfitPrice == 0 && tp != 0 {
		pos.TakeProfitPrice = pos.EntryPrice * (1 + tp/100)
	}
}

func (m *Manager) track(ctx context.Context, pos *domain.Position) {
	m.mu.Lock()
	m.positions[pos.ID] = pos
	ticket := m.sched.Schedule(ctx, "position-check-"+pos.ID, m.cfg.CheckInterval, false, func(tickCtx context.Context) {
		m.checkPosition(tickCtx, pos.ID)
	})
	m.tickets[pos.ID] = ticket
	m.mu.Unlock()
}

// checkPosition is one evaluation tick for one position: fetch the
// current price and close on a stop-loss/take-profit trigger. A failed
// price fetch skips the tick; a missing price is never a trigger.
func (m *Manager) checkPosition(ctx context.Context, id string) {
	m.mu.Lock()
	pos, ok := m.positions[id]
	if !ok || !pos.IsActive() {
		m.mu.Unlock()
		return
	}
	snapshot := *pos
	m.mu.Unlock()

	price, err := m.market.GetCurrentPrice(ctx, snapshot.Symbol)
	if err != nil {
		m.logger.Warn(ctx, "Price fetch failed, skipping position check", map[string]interface{}{
			"positionID": id, "symbol": snapshot.Symbol, "error": err.Error(),
		})
		return
	}
	if m.observer != nil {
		m.observer(snapshot.Symbol, price, time.Now().UTC())
	}

	if triggered, reason := snapshot.ShouldClose(price); triggered {
		m.logger.Info(ctx, "Exit threshold triggered", map[string]interface{}{
			"positionID": id, "price": price, "reason": string(reason),
		})
		if err := m.Close(ctx, id, price, reason); err != nil {
			m.logger.Error(ctx, err, "Failed to close triggered position, will retry next tick", map[string]interface{}{"positionID": id})
		}
	}
}

// Close submits the closing order for a position. The position leaves
// active tracking only after the close is acknowledged by the exchange;
// on failure it stays active and the next tick retries the trigger.
func (m *Manager) Close(ctx context.Context, id string, price float64, reason domain.CloseReason) error {
	op := "close"
	m.mu.Lock()
	pos, ok := m.positions[id]
	if !ok || !pos.IsActive() {
		m.mu.Unlock()
		return fmt.Errorf("position %s is not active: %w", id, ports.ErrNotFound)
	}
	snapshot := *pos
	m.mu.Unlock()

	result, err := m.exec.SubmitOrder(ctx, ports.OrderRequest{
		Symbol:   snapshot.Symbol,
		Side:     snapshot.Side.Opposite(),
		Type:     "MARKET",
		Quantity: snapshot.Quantity,
	})
	if err != nil {
		return fmt.Errorf("closing order for position %s failed: %w", id, err)
	}
	if !result.Success {
		return fmt.Errorf("closing order for position %s rejected: %s: %w", id, result.Error, ports.ErrOrderPlacementFailed)
	}

	exitPrice := result.FilledPrice
	if exitPrice == 0 {
		exitPrice = price
	}

	m.mu.Lock()
	pos.Status = domain.StatusClosed
	pos.ExitPrice = exitPrice
	pos.ExitTime = time.Now().UTC()
	pos.CloseReason = reason
	pos.PNL = pnl(pos.Side, pos.EntryPrice, exitPrice, pos.Quantity)
	closed := *pos
	ticket := m.tickets[id]
	delete(m.tickets, id)
	delete(m.positions, id)
	m.mu.Unlock()

	// Cancel this position's check schedule now that the close is done.
	if ticket != nil {
		go ticket.Cancel()
	}

	if err := m.posRepo.Update(ctx, &closed); err != nil {
		m.logger.Error(ctx, err, op+": Failed to persist closed position", map[string]interface{}{"positionID": id})
	}
	trade := &domain.TradeResult{
		ID:          uuid.NewString(),
		PositionID:  closed.ID,
		TargetID:    closed.TargetID,
		Symbol:      closed.Symbol,
		Side:        closed.Side,
		EntryPrice:  closed.EntryPrice,
		ExitPrice:   closed.ExitPrice,
		Quantity:    closed.Quantity,
		PNL:         closed.PNL,
		EntryTime:   closed.EntryTime,
		ExitTime:    closed.ExitTime,
		CloseReason: closed.CloseReason,
	}
	if err := m.trades.Create(ctx, trade); err != nil {
		m.logger.Error(ctx, err, op+": Failed to persist trade result", map[string]interface{}{"positionID": id})
	}

	m.logger.Info(ctx, op+": Position closed", map[string]interface{}{
		"positionID": id, "exitPrice": exitPrice, "pnl": closed.PNL, "reason": string(reason),
	})
	return nil
}

func pnl(side domain.OrderSide, entry, exit, qty float64) float64 {
	if side == domain.Buy {
		return (exit - entry) * qty
	}
	return (entry - exit) * qty
}

// UpdateStopLoss replaces only the stop-loss threshold of an active
// position; identity, schedule and the take-profit stay untouched.
func (m *Manager) UpdateStopLoss(ctx context.Context, id string, price float64) error {
	return m.updateThreshold(ctx, id, price, true)
}

// UpdateTakeProfit replaces only the take-profit threshold of an active
// position; identity, schedule and the stop-loss stay untouched.
func (m *Manager) UpdateTakeProfit(ctx context.Context, id string, price float64) error {
	return m.updateThreshold(ctx, id, price, false)
}

func (m *Manager) updateThreshold(ctx context.Context, id string, price float64, stopLoss bool) error {
	if price < 0 {
		return fmt.Errorf("threshold price cannot be negative: %w", ports.ErrValidation)
	}
	m.mu.Lock()
	pos, ok := m.positions[id]
	if !ok || !pos.IsActive() {
		m.mu.Unlock()
		return fmt.Errorf("position %s is not active: %w", id, ports.ErrNotFound)
	}
	if stopLoss {
		pos.StopLossPrice = price
	} else {
		pos.TakeProfitPrice = price
	}
	snapshot := *pos
	m.mu.Unlock()

	if err := m.posRepo.Update(ctx, &snapshot); err != nil {
		m.logger.Error(ctx, err, "Failed to persist threshold update", map[string]interface{}{"positionID": id})
	}
	return nil
}

// Get returns a copy of an active position.
func (m *Manager) Get(id string) (domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Active returns copies of all active positions.
func (m *Manager) Active() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}

// Exposure returns the total open notional, the portfolio-risk input for
// the safety gate.
func (m *Manager) Exposure() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, pos := range m.positions {
		total += pos.EntryPrice * pos.Quantity
	}
	return total
}

// LiquidateAll market-closes every active position. Used only when an
// emergency procedure explicitly requests liquidation.
func (m *Manager) LiquidateAll(ctx context.Context) {
	for _, pos := range m.Active() {
		price, err := m.market.GetCurrentPrice(ctx, pos.Symbol)
		if err != nil {
			price = pos.EntryPrice
		}
		if err := m.Close(ctx, pos.ID, price, domain.CloseReasonEmergency); err != nil {
			m.logger.Error(ctx, err, "Forced liquidation failed", map[string]interface{}{"positionID": pos.ID})
		}
	}
}
