package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the closing side for a position opened on this side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TargetStage represents the lifecycle stage of a monitored listing target.
// Transitions are monotonic: calendar -> monitoring -> ready -> executed,
// or any non-terminal stage -> expired.
type TargetStage string

const (
	StageCalendar   TargetStage = "calendar"
	StageMonitoring TargetStage = "monitoring"
	StageReady      TargetStage = "ready"
	StageExecuted   TargetStage = "executed"
	StageExpired    TargetStage = "expired"
)

// IsTerminal reports whether no further stage transition is possible.
func (s TargetStage) IsTerminal() bool {
	return s == StageExecuted || s == StageExpired
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition. Regressions are never legal.
func (s TargetStage) CanTransitionTo(next TargetStage) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StageExpired {
		return true
	}
	switch s {
	case StageCalendar:
		return next == StageMonitoring
	case StageMonitoring:
		return next == StageReady
	case StageReady:
		return next == StageExecuted
	}
	return false
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusActive PositionStatus = "active"
	StatusClosed PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "SL"
	CloseReasonTakeProfit CloseReason = "TP"
	CloseReasonManual     CloseReason = "MANUAL"
	CloseReasonEmergency  CloseReason = "EMERGENCY"
	CloseReasonUnknown    CloseReason = "Unknown"
)
