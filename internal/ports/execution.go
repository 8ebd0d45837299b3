package ports

import (
	"context"

	"mexcSniperBot/internal/domain"
)

// OrderRequest describes a single order submission to the exchange.
// Exactly one of Quantity or QuoteAmount is set: market buys for new
// listings are sized in quote currency, closes in base quantity.
type OrderRequest struct {
	Symbol            string
	Side              domain.OrderSide
	Type              string // "MARKET" only for now
	Quantity          float64
	QuoteAmount       float64
	PricePrecision    int
	QuantityPrecision int
}

// OrderResult is the exchange's response to a submission.
type OrderResult struct {
	Success        bool
	OrderID        string
	FilledPrice    float64
	FilledQuantity float64
	Error          string
}

// TradeExecutionClient defines the interface for routing orders to the
// exchange. Implementations must be safe for concurrent use.
type TradeExecutionClient interface {
	// SubmitOrder places an order and reports the fill outcome.
	// A rejection by the exchange returns Success=false with Error set
	// and a nil Go error; transport failures return a Go error.
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}
