package ports

import (
	"context"

	"mexcSniperBot/internal/domain"
)

// MarketDataClient defines the interface to the exchange's public market
// data: the upcoming-listing calendar, per-symbol status snapshots and
// current prices. All calls use bounded timeouts with bounded retries;
// a recoverable failure surfaces as ErrDataUnavailable.
type MarketDataClient interface {
	// GetCalendar retrieves the upcoming-listing calendar.
	GetCalendar(ctx context.Context) ([]domain.CalendarCandidate, error)

	// GetSymbolStatus retrieves status snapshots for the given coin IDs.
	// IDs unknown to the exchange are simply absent from the result;
	// that is not an error.
	GetSymbolStatus(ctx context.Context, ids []string) ([]domain.StatusSnapshot, error)

	// GetCurrentPrice retrieves the latest trade price for a symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// Ping checks connectivity to the exchange API.
	Ping(ctx context.Context) error
}
