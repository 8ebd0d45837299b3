package domain

import "time"

// Position represents a filled entry that the position manager is
// responsible for exiting. Mutated only by the position manager.
type Position struct {
	ID              string
	TargetID        string
	Symbol          string
	Side            OrderSide
	EntryPrice      float64
	ExitPrice       float64 // 0 while active
	Quantity        float64
	StopLossPrice   float64 // 0 disables the stop-loss trigger
	TakeProfitPrice float64 // 0 disables the take-profit trigger
	Status          PositionStatus
	PartialFill     bool
	EntryTime       time.Time
	ExitTime        time.Time
	CloseReason     CloseReason
	PNL             float64
}

// IsActive reports whether the position is still open.
func (p *Position) IsActive() bool {
	return p.Status == StatusActive
}

// ShouldClose applies the stop-loss/take-profit trigger rule for the
// given price. For a BUY position the stop triggers at or below the
// stop-loss price and the take-profit at or above its price; signs
// invert for SELL. A zero threshold never triggers.
func (p *Position) ShouldClose(price float64) (bool, CloseReason) {
	if p.Side == Buy {
		if p.StopLossPrice > 0 && price <= p.StopLossPrice {
			return true, CloseReasonStopLoss
		}
		if p.TakeProfitPrice > 0 && price >= p.TakeProfitPrice {
			return true, CloseReasonTakeProfit
		}
		return false, ""
	}
	if p.StopLossPrice > 0 && price >= p.StopLossPrice {
		return true, CloseReasonStopLoss
	}
	if p.TakeProfitPrice > 0 && price <= p.TakeProfitPrice {
		return true, CloseReasonTakeProfit
	}
	return false, ""
}

// TradeResult records a completed round trip for reporting.
type TradeResult struct {
	ID          string
	PositionID  string
	TargetID    string
	Symbol      string
	Side        OrderSide
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64
	PNL         float64
	EntryTime   time.Time
	ExitTime    time.Time
	CloseReason CloseReason
}
