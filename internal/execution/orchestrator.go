// Package execution converts ready targets into orders under the active
// strategy, gated by the safety coordinator. Order lifecycle:
// Queued -> Submitted -> {Filled | Rejected | TimedOut}; a queued order
// that keeps failing the gate is rejected once its retry budget runs out.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
)

// Gate is the safety coordinator surface the orchestrator depends on.
type Gate interface {
	AssessTradingConditions(ctx context.Context, cond domain.TradingConditions) domain.GateDecision
}

// PositionSink receives positions opened by filled orders (the position
// manager).
type PositionSink interface {
	OpenPosition(ctx context.Context, pos *domain.Position) error
}

// TargetRegistry is the registry surface the orchestrator depends on.
type TargetRegistry interface {
	MarkExecuted(ctx context.Context, id string) error
}

// ConditionsFunc supplies the current trading conditions for a symbol,
// typically backed by the volatility tracker and open-position exposure.
type ConditionsFunc func(symbol string) domain.TradingConditions

// Config holds the orchestrator's tunables.
type Config struct {
	BuyAmountUSDT  float64       // total intended spend per snipe before strategy sizing
	MaxGateRetries int           // queued gate evaluations before rejection
	SubmitTimeout  time.Duration // per-submission deadline
}

// Orchestrator manages the order state machine for ready targets.
type Orchestrator struct {
	cfg        Config
	logger     ports.Logger
	exec       ports.TradeExecutionClient
	market     ports.MarketDataClient
	gate       Gate
	registry   TargetRegistry
	positions  PositionSink
	strategies *domain.StrategyStore
	conditions ConditionsFunc
	perf       *PerformanceTracker

	mu     sync.Mutex
	orders map[string]*domain.Order // keyed by target ID
	queue  []*queuedOrder
}

type queuedOrder struct {
	target     domain.MonitoredTarget
	order      *domain.Order
	promotedAt time.Time
}

// New creates an orchestrator.
func New(cfg Config, logger ports.Logger, exec ports.TradeExecutionClient, market ports.MarketDataClient,
	gate Gate, registry TargetRegistry, positions PositionSink, strategies *domain.StrategyStore,
	conditions ConditionsFunc, perf *PerformanceTracker) (*Orchestrator, error) {

	if logger == nil || exec == nil || market == nil || gate == nil || registry == nil ||
		positions == nil || strategies == nil || conditions == nil || perf == nil {
		return nil, fmt.Errorf("missing required dependencies for orchestrator")
	}
	if cfg.BuyAmountUSDT <= 0 {
		return nil, fmt.Errorf("configuration BuyAmountUSDT must be positive")
	}
	if cfg.MaxGateRetries <= 0 {
		cfg.MaxGateRetries = 3
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Second
	}
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		exec:       exec,
		market:     market,
		gate:       gate,
		registry:   registry,
		positions:  positions,
		strategies: strategies,
		conditions: conditions,
		perf:       perf,
		orders:     make(map[string]*domain.Order),
	}, nil
}

// HandleReady queues an execution for a freshly promoted target. A second
// call for a target with a non-terminal order is rejected immediately,
// which together with the registry's single-writer discipline makes
// execution idempotent per target.
func (o *Orchestrator) HandleReady(ctx context.Context, target domain.MonitoredTarget) (*domain.Order, error) {
	if target.Stage != domain.StageReady {
		return nil, fmt.Errorf("target %s is not ready (stage %s): %w", target.Candidate.ID, target.Stage, ports.ErrInvalidTransition)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.orders[target.Candidate.ID]; ok && !existing.State.IsTerminal() {
		return nil, fmt.Errorf("target %s: %w", target.Candidate.ID, ports.ErrOrderInFlight)
	}

	strategy := o.strategies.Active()
	order := &domain.Order{
		ID:          uuid.NewString(),
		TargetID:    target.Candidate.ID,
		Symbol:      target.Candidate.Symbol,
		Side:        domain.Buy,
		QuoteAmount: o.cfg.BuyAmountUSDT * strategy.MaxPositionSize,
		State:       domain.OrderQueued,
		CreatedAt:   time.Now().UTC(),
	}
	order.Phases = buildPhases(order.QuoteAmount, strategy)

	o.orders[target.Candidate.ID] = order
	o.queue = append(o.queue, &queuedOrder{target: target, order: order, promotedAt: order.CreatedAt})

	o.logger.Info(ctx, "Order queued for ready target", map[string]interface{}{
		"orderID": order.ID, "targetID": order.TargetID, "symbol": order.Symbol,
		"quoteAmount": order.QuoteAmount, "phases": len(order.Phases),
	})
	return order, nil
}

// buildPhases splits the quote amount into sequential submissions.
func buildPhases(quoteAmount float64, strategy domain.StrategyConfig) []domain.OrderPhase {
	count := 1
	if strategy.EnableMultiPhase && strategy.PhaseCount > 1 {
		count = strategy.PhaseCount
	}
	per := quoteAmount / float64(count)
	phases := make([]domain.OrderPhase, count)
	for i := range phases {
		phases[i] = domain.OrderPhase{Index: i, Quantity: per}
	}
	return phases
}

// Tick re-evaluates every queued order against the safety gate and
// submits the approved ones. Gate-denied orders stay queued until their
// retry budget is spent, then become Rejected with the gate's reasons.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.mu.Lock()
	pending := o.queue
	o.queue = nil
	o.mu.Unlock()

	for _, q := range pending {
		if ctx.Err() != nil {
			return
		}
		o.process(ctx, q)
	}
}

func (o *Orchestrator) process(ctx context.Context, q *queuedOrder) {
	order := q.order

	decision := o.gate.AssessTradingConditions(ctx, o.conditions(order.Symbol))
	if !decision.Approved {
		o.mu.Lock()
		order.GateAttempts++
		attempts := order.GateAttempts
		o.mu.Unlock()
		if attempts >= o.cfg.MaxGateRetries {
			o.finishOrder(ctx, order, domain.OrderRejected, decision.Reasons)
			o.logger.Warn(ctx, "Order rejected, gate retry budget exhausted", map[string]interface{}{
				"orderID": order.ID, "targetID": order.TargetID, "reasons": decision.Reasons,
			})
			return
		}
		o.mu.Lock()
		o.queue = append(o.queue, q) // re-evaluated next tick
		o.mu.Unlock()
		o.logger.Info(ctx, "Order held by safety gate", map[string]interface{}{
			"orderID": order.ID, "attempt": attempts, "reasons": decision.Reasons,
		})
		return
	}

	o.submit(ctx, q)
}

func (o *Orchestrator) submit(ctx context.Context, q *queuedOrder) {
	op := "submit"
	order := q.order
	o.mu.Lock()
	order.State = domain.OrderSubmitted
	o.mu.Unlock()

	// Reference price for realized slippage; best-effort.
	refPrice, refErr := o.market.GetCurrentPrice(ctx, order.Symbol)
	if refErr != nil {
		refPrice = 0
	}

	var filledQuote, filledQty, weightedPrice float64
	for i := range order.Phases {
		phase := &order.Phases[i]
		if i > 0 {
			strategy := o.strategies.Active()
			select {
			case <-time.After(time.Duration(strategy.PhaseDelayMs) * time.Millisecond):
			case <-ctx.Done():
				o.mu.Lock()
				order.PartialFill = filledQty > 0
				o.mu.Unlock()
				o.settle(ctx, q, filledQty, weightedPrice, filledQuote, refPrice)
				return
			}
		}

		subCtx, cancel := context.WithTimeout(ctx, o.cfg.SubmitTimeout)
		result, err := o.exec.SubmitOrder(subCtx, ports.OrderRequest{
			Symbol:            order.Symbol,
			Side:              order.Side,
			Type:              "MARKET",
			QuoteAmount:       phase.Quantity,
			PricePrecision:    q.target.PricePrecision,
			QuantityPrecision: q.target.QuantityPrecision,
		})
		cancel()

		o.mu.Lock()
		phase.Submitted = true
		phase.SubmittedAt = time.Now().UTC()
		o.mu.Unlock()

		if err != nil {
			o.mu.Lock()
			phase.Error = err.Error()
			// A failed phase halts the remaining ones; whatever filled
			// already becomes a partially-filled position.
			order.PartialFill = filledQty > 0
			o.mu.Unlock()
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ports.ErrTimeout) {
				o.finishOrder(ctx, order, domain.OrderTimedOut, []string{fmt.Sprintf("phase %d timed out", i)})
			} else {
				o.finishOrder(ctx, order, domain.OrderRejected, []string{fmt.Sprintf("phase %d failed: %v", i, err)})
			}
			o.logger.Error(ctx, err, op+": Phase submission failed, halting remaining phases", map[string]interface{}{
				"orderID": order.ID, "phase": i,
			})
			o.settle(ctx, q, filledQty, weightedPrice, filledQuote, refPrice)
			return
		}
		if !result.Success {
			o.mu.Lock()
			phase.Error = result.Error
			order.PartialFill = filledQty > 0
			o.mu.Unlock()
			o.finishOrder(ctx, order, domain.OrderRejected, []string{fmt.Sprintf("phase %d rejected by exchange: %s", i, result.Error)})
			o.settle(ctx, q, filledQty, weightedPrice, filledQuote, refPrice)
			return
		}

		o.mu.Lock()
		phase.Success = true
		phase.FilledQuantity = result.FilledQuantity
		phase.FilledPrice = result.FilledPrice
		o.mu.Unlock()
		filledQty += result.FilledQuantity
		filledQuote += result.FilledQuantity * result.FilledPrice
		if filledQty > 0 {
			weightedPrice = filledQuote / filledQty
		}
	}

	o.finishOrder(ctx, order, domain.OrderFilled, nil)
	o.settle(ctx, q, filledQty, weightedPrice, filledQuote, refPrice)
}

// settle opens a position for whatever quantity filled, marks the target
// executed and records performance. A zero fill skips the position.
func (o *Orchestrator) settle(ctx context.Context, q *queuedOrder, filledQty, avgPrice, filledQuote, refPrice float64) {
	op := "settle"
	order := q.order
	o.mu.Lock()
	order.FilledQuantity = filledQty
	order.AvgFilledPrice = avgPrice
	state := order.State
	partial := order.PartialFill
	o.mu.Unlock()

	slippage := 0.0
	if refPrice > 0 && avgPrice > 0 {
		slippage = (avgPrice - refPrice) / refPrice * 100
	}
	latency := time.Since(q.promotedAt)

	o.perf.Record(domain.ExecutionReport{
		TargetID:        order.TargetID,
		OrderID:         order.ID,
		Strategy:        o.strategies.Active().Name,
		Success:         state == domain.OrderFilled,
		Latency:         latency,
		SlippagePercent: slippage,
		AdvanceHours:    q.target.AdvanceNotice(q.promotedAt).Hours(),
		ExecutedAt:      time.Now().UTC(),
	})

	if filledQty <= 0 {
		return
	}

	strategy := o.strategies.Active()
	pos := &domain.Position{
		ID:              uuid.NewString(),
		TargetID:        order.TargetID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		EntryPrice:      avgPrice,
		Quantity:        filledQty,
		StopLossPrice:   avgPrice * (1 - strategy.StopLossPercent/100),
		TakeProfitPrice: avgPrice * (1 + strategy.TakeProfitPercent/100),
		Status:          domain.StatusActive,
		PartialFill:     partial,
		EntryTime:       time.Now().UTC(),
	}
	if err := o.positions.OpenPosition(ctx, pos); err != nil {
		o.logger.Error(ctx, err, op+": Failed to hand filled position to position manager", map[string]interface{}{
			"orderID": order.ID, "positionID": pos.ID,
		})
	}

	if err := o.registry.MarkExecuted(ctx, order.TargetID); err != nil {
		o.logger.Error(ctx, err, op+": Failed to mark target executed", map[string]interface{}{"targetID": order.TargetID})
	}

	o.logger.Info(ctx, op+": Execution settled", map[string]interface{}{
		"orderID": order.ID, "state": string(state), "filledQty": filledQty,
		"avgPrice": avgPrice, "slippagePct": slippage, "latency": latency.String(),
		"partial": partial,
	})
}

func (o *Orchestrator) finishOrder(ctx context.Context, order *domain.Order, state domain.OrderState, reasons []string) {
	o.mu.Lock()
	order.State = state
	order.RejectReasons = reasons
	order.CompletedAt = time.Now().UTC()
	o.mu.Unlock()
}

// Order returns a copy of the order for a target, if any. The phases are
// copied too, so the caller never shares backing storage with a
// submission in flight.
func (o *Orchestrator) Order(targetID string) (domain.Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[targetID]
	if !ok {
		return domain.Order{}, false
	}
	cp := *order
	cp.Phases = append([]domain.OrderPhase(nil), order.Phases...)
	cp.RejectReasons = append([]string(nil), order.RejectReasons...)
	return cp, true
}

// QueuedCount returns the number of orders awaiting gate approval.
func (o *Orchestrator) QueuedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Performance exposes the tracker for reporting.
func (o *Orchestrator) Performance() *PerformanceTracker {
	return o.perf
}
