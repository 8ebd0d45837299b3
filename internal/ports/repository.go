package ports

import (
	"context"
	"time"

	"mexcSniperBot/internal/domain"
)

// TargetRepository persists monitored targets. The registry remains the
// authoritative in-memory store; persistence mirrors it durably.
type TargetRepository interface {
	// Upsert saves or replaces the target keyed by its candidate ID.
	Upsert(ctx context.Context, target *domain.MonitoredTarget) error
	// FindByID retrieves a target by candidate ID. Returns nil, nil when absent.
	FindByID(ctx context.Context, id string) (*domain.MonitoredTarget, error)
	// FindByStage retrieves all targets in the given stage.
	FindByStage(ctx context.Context, stage domain.TargetStage) ([]*domain.MonitoredTarget, error)
}

// MatchRepository persists the pattern match history used for historical
// success-rate lookups.
type MatchRepository interface {
	// Append stores an immutable pattern match.
	Append(ctx context.Context, match *domain.PatternMatch) error
	// FindByTarget retrieves the match history for one target, oldest first.
	FindByTarget(ctx context.Context, targetID string) ([]*domain.PatternMatch, error)
	// FindByType retrieves the most recent matches of one pattern type, up to limit.
	FindByType(ctx context.Context, patternType domain.PatternType, limit int) ([]*domain.PatternMatch, error)
}

// PositionRepository persists positions managed by the position manager.
type PositionRepository interface {
	// Create saves a new position.
	Create(ctx context.Context, pos *domain.Position) error
	// Update modifies an existing position.
	Update(ctx context.Context, pos *domain.Position) error
	// FindActive retrieves all active positions.
	FindActive(ctx context.Context) ([]*domain.Position, error)
	// FindByID retrieves a position by ID. Returns nil, nil when absent.
	FindByID(ctx context.Context, id string) (*domain.Position, error)
}

// TradeRepository persists completed trade results.
type TradeRepository interface {
	// Create saves a new trade result.
	Create(ctx context.Context, trade *domain.TradeResult) error
	// FindBySymbol retrieves recent trades for a symbol, newest first, up to limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeResult, error)
	// CountSince counts trades executed at or after the given time.
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// AlertRepository persists safety alerts.
type AlertRepository interface {
	// Create saves a new alert.
	Create(ctx context.Context, alert *domain.SafetyAlert) error
	// Update modifies an existing alert (acknowledge/resolve).
	Update(ctx context.Context, alert *domain.SafetyAlert) error
	// FindUnresolved retrieves all alerts that have not been resolved.
	FindUnresolved(ctx context.Context) ([]*domain.SafetyAlert, error)
}
