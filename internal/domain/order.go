package domain

import "time"

// OrderState represents the execution state of an order.
// Legal transitions: Queued -> Submitted -> {Filled | Rejected | TimedOut},
// plus Queued -> Rejected when the safety gate's retry budget is exhausted.
type OrderState string

const (
	OrderQueued    OrderState = "Queued"
	OrderSubmitted OrderState = "Submitted"
	OrderFilled    OrderState = "Filled"
	OrderRejected  OrderState = "Rejected"
	OrderTimedOut  OrderState = "TimedOut"
)

// IsTerminal reports whether the order can no longer change state.
func (s OrderState) IsTerminal() bool {
	return s == OrderFilled || s == OrderRejected || s == OrderTimedOut
}

// OrderPhase is one partial submission of a multi-phase order.
type OrderPhase struct {
	Index          int
	Quantity       float64
	FilledQuantity float64
	FilledPrice    float64
	Submitted      bool
	Success        bool
	Error          string
	SubmittedAt    time.Time
}

// Order is an execution attempt for a ready target under the active
// strategy. At most one non-terminal order exists per target ID.
type Order struct {
	ID             string
	TargetID       string
	Symbol         string
	Side           OrderSide
	QuoteAmount    float64 // Intended spend in quote currency (USDT)
	Quantity       float64 // Requested base quantity; 0 for quote-amount market buys
	Phases         []OrderPhase
	State          OrderState
	GateAttempts   int      // Safety-gate evaluations consumed while Queued
	RejectReasons  []string // Populated when State == OrderRejected
	FilledQuantity float64
	AvgFilledPrice float64
	PartialFill    bool // A phase failed and the remainder was abandoned
	CreatedAt      time.Time
	CompletedAt    time.Time
}

// ExecutionReport captures the measured quality of one completed execution,
// recorded for strategy performance reporting.
type ExecutionReport struct {
	TargetID        string
	OrderID         string
	Strategy        string
	Success         bool
	Latency         time.Duration // Promotion-to-fill
	SlippagePercent float64       // Realized fill price vs. reference price
	AdvanceHours    float64
	ExecutedAt      time.Time
}
