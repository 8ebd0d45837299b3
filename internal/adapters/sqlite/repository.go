package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the persistence ports (targets, matches,
// positions, trades, alerts) using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/sniper_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS monitored_targets (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		project_name TEXT NOT NULL,
		scheduled_launch_time TIMESTAMP NOT NULL,
		discovered_at TIMESTAMP NOT NULL,
		stage TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		price_precision INTEGER NOT NULL DEFAULT 0,
		quantity_precision INTEGER NOT NULL DEFAULT 0,
		actual_launch_time TIMESTAMP DEFAULT NULL,
		ready_confidence REAL DEFAULT NULL,
		ready_detected_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS pattern_matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		risk_level TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		detected_at TIMESTAMP NOT NULL,
		estimated_ready_ms INTEGER NOT NULL DEFAULT 0,
		low_advance INTEGER NOT NULL DEFAULT 0,
		symbol TEXT NOT NULL DEFAULT '',
		trading_status INTEGER NOT NULL,
		state_flag INTEGER NOT NULL,
		time_flag INTEGER NOT NULL,
		price_precision INTEGER NOT NULL DEFAULT 0,
		quantity_precision INTEGER NOT NULL DEFAULT 0,
		launch_timestamp INTEGER NOT NULL DEFAULT 0,
		observed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		quantity REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		status TEXT NOT NULL,
		partial_fill INTEGER NOT NULL DEFAULT 0,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		close_reason TEXT DEFAULT NULL,
		pnl REAL DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_results (
		id TEXT PRIMARY KEY,
		position_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		pnl REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		close_reason TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS safety_alerts (
		id TEXT PRIMARY KEY,
		severity TEXT NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		acknowledged_by TEXT NOT NULL DEFAULT '',
		acknowledged_at TIMESTAMP DEFAULT NULL,
		resolved_by TEXT NOT NULL DEFAULT '',
		resolved_at TIMESTAMP DEFAULT NULL,
		resolution TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_targets_stage ON monitored_targets (stage);
	CREATE INDEX IF NOT EXISTS idx_matches_target ON pattern_matches (target_id, detected_at);
	CREATE INDEX IF NOT EXISTS idx_matches_type ON pattern_matches (pattern_type, detected_at);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_exit ON trade_results (symbol, exit_time);
	CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON safety_alerts (resolved_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TargetRepository ---

// Upsert saves or replaces the target keyed by its candidate ID.
func (r *Repository) Upsert(ctx context.Context, target *domain.MonitoredTarget) error {
	const query = `
	INSERT INTO monitored_targets (id, symbol, project_name, scheduled_launch_time, discovered_at,
		stage, updated_at, price_precision, quantity_precision, actual_launch_time,
		ready_confidence, ready_detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		symbol = excluded.symbol,
		stage = excluded.stage,
		updated_at = excluded.updated_at,
		price_precision = excluded.price_precision,
		quantity_precision = excluded.quantity_precision,
		actual_launch_time = excluded.actual_launch_time,
		ready_confidence = excluded.ready_confidence,
		ready_detected_at = excluded.ready_detected_at`

	var actualLaunch sql.NullTime
	if !target.ActualLaunchTime.IsZero() {
		actualLaunch = sql.NullTime{Time: target.ActualLaunchTime, Valid: true}
	}
	var readyConfidence sql.NullFloat64
	var readyDetected sql.NullTime
	if target.ReadyMatch != nil {
		readyConfidence = sql.NullFloat64{Float64: target.ReadyMatch.Confidence, Valid: true}
		readyDetected = sql.NullTime{Time: target.ReadyMatch.DetectedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		target.Candidate.ID, target.Candidate.Symbol, target.Candidate.ProjectName,
		target.Candidate.ScheduledLaunchTime, target.Candidate.DiscoveredAt,
		target.Stage, target.UpdatedAt, target.PricePrecision, target.QuantityPrecision,
		actualLaunch, readyConfidence, readyDetected)
	if err != nil {
		return fmt.Errorf("failed to upsert target %s: %w: %w", target.Candidate.ID, ports.ErrUpdateFailed, err)
	}
	return nil
}

// FindByID retrieves a target by candidate ID. Returns nil, nil when absent.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.MonitoredTarget, error) {
	const query = targetSelect + ` WHERE id = ?`
	target, err := scanTarget(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query target %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return target, nil
}

// FindByStage retrieves all targets in the given stage.
func (r *Repository) FindByStage(ctx context.Context, stage domain.TargetStage) ([]*domain.MonitoredTarget, error) {
	const query = targetSelect + ` WHERE stage = ? ORDER BY discovered_at`
	rows, err := r.db.QueryContext(ctx, query, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets by stage %s: %w: %w", stage, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	targets := make([]*domain.MonitoredTarget, 0)
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target rows: %w", err)
	}
	return targets, nil
}

const targetSelect = `
	SELECT id, symbol, project_name, scheduled_launch_time, discovered_at,
	       stage, updated_at, price_precision, quantity_precision,
	       actual_launch_time, ready_confidence, ready_detected_at
	FROM monitored_targets`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (*domain.MonitoredTarget, error) {
	var target domain.MonitoredTarget
	var actualLaunch, readyDetected sql.NullTime
	var readyConfidence sql.NullFloat64

	err := row.Scan(
		&target.Candidate.ID, &target.Candidate.Symbol, &target.Candidate.ProjectName,
		&target.Candidate.ScheduledLaunchTime, &target.Candidate.DiscoveredAt,
		&target.Stage, &target.UpdatedAt, &target.PricePrecision, &target.QuantityPrecision,
		&actualLaunch, &readyConfidence, &readyDetected)
	if err != nil {
		return nil, err
	}
	if actualLaunch.Valid {
		target.ActualLaunchTime = actualLaunch.Time
	}
	if readyConfidence.Valid {
		target.ReadyMatch = &domain.PatternMatch{
			TargetID:    target.Candidate.ID,
			PatternType: domain.PatternReadyState,
			Confidence:  readyConfidence.Float64,
			DetectedAt:  readyDetected.Time,
		}
	}
	return &target, nil
}

// --- MatchRepository ---

// Append stores an immutable pattern match.
func (r *Repository) Append(ctx context.Context, match *domain.PatternMatch) error {
	const query = `
	INSERT INTO pattern_matches (target_id, pattern_type, confidence, risk_level, recommendation,
		detected_at, estimated_ready_ms, low_advance, symbol, trading_status, state_flag, time_flag,
		price_precision, quantity_precision, launch_timestamp, observed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		match.TargetID, match.PatternType, match.Confidence, match.RiskLevel, match.Recommendation,
		match.DetectedAt, match.EstimatedTimeToReady.Milliseconds(), match.LowAdvanceNotice,
		match.Indicators.Symbol, match.Indicators.TradingStatus, match.Indicators.StateFlag,
		match.Indicators.TimeFlag, match.Indicators.PricePrecision, match.Indicators.QuantityPrecision,
		match.Indicators.LaunchTimestamp, match.Indicators.ObservedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pattern match for target %s: %w: %w", match.TargetID, ports.ErrUpdateFailed, err)
	}
	return nil
}

// FindByTarget retrieves the match history for one target, oldest first.
func (r *Repository) FindByTarget(ctx context.Context, targetID string) ([]*domain.PatternMatch, error) {
	const query = matchSelect + ` WHERE target_id = ? ORDER BY detected_at`
	return r.queryMatches(ctx, query, targetID)
}

// FindByType retrieves the most recent matches of one pattern type, up to limit.
func (r *Repository) FindByType(ctx context.Context, patternType domain.PatternType, limit int) ([]*domain.PatternMatch, error) {
	const query = matchSelect + ` WHERE pattern_type = ? ORDER BY detected_at DESC LIMIT ?`
	return r.queryMatches(ctx, query, patternType, limit)
}

const matchSelect = `
	SELECT target_id, pattern_type, confidence, risk_level, recommendation, detected_at,
	       estimated_ready_ms, low_advance, symbol, trading_status, state_flag, time_flag,
	       price_precision, quantity_precision, launch_timestamp, observed_at
	FROM pattern_matches`

func (r *Repository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*domain.PatternMatch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern matches: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	matches := make([]*domain.PatternMatch, 0)
	for rows.Next() {
		var match domain.PatternMatch
		var estimatedMs int64
		err := rows.Scan(
			&match.TargetID, &match.PatternType, &match.Confidence, &match.RiskLevel,
			&match.Recommendation, &match.DetectedAt, &estimatedMs, &match.LowAdvanceNotice,
			&match.Indicators.Symbol, &match.Indicators.TradingStatus, &match.Indicators.StateFlag,
			&match.Indicators.TimeFlag, &match.Indicators.PricePrecision, &match.Indicators.QuantityPrecision,
			&match.Indicators.LaunchTimestamp, &match.Indicators.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern match row: %w", err)
		}
		match.Indicators.ID = match.TargetID
		match.EstimatedTimeToReady = time.Duration(estimatedMs) * time.Millisecond
		matches = append(matches, &match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern match rows: %w", err)
	}
	return matches, nil
}

// --- PositionRepository ---

// Create saves a new position.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (id, target_id, symbol, side, entry_price, quantity,
		stop_loss, take_profit, status, partial_fill, entry_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		pos.ID, pos.TargetID, pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity,
		pos.StopLossPrice, pos.TakeProfitPrice, pos.Status, pos.PartialFill, pos.EntryTime)
	if err != nil {
		return fmt.Errorf("failed to insert position %s: %w: %w", pos.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
	return nil
}

// Update modifies an existing position.
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET exit_price = ?, stop_loss = ?, take_profit = ?, status = ?,
	    exit_time = ?, close_reason = ?, pnl = ?
	WHERE id = ?`

	var exitTime sql.NullTime
	if !pos.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: pos.ExitTime, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		pos.ExitPrice, pos.StopLossPrice, pos.TakeProfitPrice, pos.Status,
		exitTime, string(pos.CloseReason), pos.PNL, pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w: %w", pos.ID, ports.ErrUpdateFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %s: %w", pos.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("position %s not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	return nil
}

// FindActive retrieves all active positions.
func (r *Repository) FindActive(ctx context.Context) ([]*domain.Position, error) {
	const query = positionSelect + ` WHERE status = ? ORDER BY entry_time`
	rows, err := r.db.QueryContext(ctx, query, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// FindPositionByID retrieves a position by ID. Returns nil, nil when absent.
func (r *Repository) FindPositionByID(ctx context.Context, id string) (*domain.Position, error) {
	const query = positionSelect + ` WHERE id = ?`
	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return pos, nil
}

const positionSelect = `
	SELECT id, target_id, symbol, side, entry_price, COALESCE(exit_price, 0), quantity,
	       stop_loss, take_profit, status, partial_fill, entry_time, exit_time,
	       COALESCE(close_reason, ''), COALESCE(pnl, 0)
	FROM positions`

func scanPosition(row rowScanner) (*domain.Position, error) {
	var pos domain.Position
	var exitTime sql.NullTime
	err := row.Scan(
		&pos.ID, &pos.TargetID, &pos.Symbol, &pos.Side, &pos.EntryPrice, &pos.ExitPrice,
		&pos.Quantity, &pos.StopLossPrice, &pos.TakeProfitPrice, &pos.Status,
		&pos.PartialFill, &pos.EntryTime, &exitTime, &pos.CloseReason, &pos.PNL)
	if err != nil {
		return nil, err
	}
	if exitTime.Valid {
		pos.ExitTime = exitTime.Time
	}
	return &pos, nil
}

// --- TradeRepository ---

// CreateTrade saves a completed trade result.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.TradeResult) error {
	const query = `
	INSERT INTO trade_results (id, position_id, target_id, symbol, side, entry_price,
		exit_price, quantity, pnl, entry_time, exit_time, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.PositionID, trade.TargetID, trade.Symbol, trade.Side,
		trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.PNL,
		trade.EntryTime, trade.ExitTime, string(trade.CloseReason))
	if err != nil {
		return fmt.Errorf("failed to insert trade result %s: %w: %w", trade.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Trade result recorded", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "pnl": trade.PNL})
	return nil
}

// FindBySymbol retrieves recent trades for a symbol, newest first, up to limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeResult, error) {
	const query = `
	SELECT id, position_id, target_id, symbol, side, entry_price, exit_price,
	       quantity, pnl, entry_time, exit_time, close_reason
	FROM trade_results
	WHERE symbol = ? ORDER BY exit_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeResult, 0)
	for rows.Next() {
		var trade domain.TradeResult
		err := rows.Scan(
			&trade.ID, &trade.PositionID, &trade.TargetID, &trade.Symbol, &trade.Side,
			&trade.EntryPrice, &trade.ExitPrice, &trade.Quantity, &trade.PNL,
			&trade.EntryTime, &trade.ExitTime, &trade.CloseReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, &trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// CountSince counts trades closed at or after the given time.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM trade_results WHERE exit_time >= ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w: %w", ports.ErrQueryFailed, err)
	}
	return count, nil
}

// --- AlertRepository ---

// CreateAlert saves a new safety alert.
func (r *Repository) CreateAlert(ctx context.Context, alert *domain.SafetyAlert) error {
	const query = `
	INSERT INTO safety_alerts (id, severity, category, message, created_at,
		acknowledged_by, acknowledged_at, resolved_by, resolved_at, resolution)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.Severity, alert.Category, alert.Message, alert.CreatedAt,
		alert.AcknowledgedBy, nullTime(alert.AcknowledgedAt),
		alert.ResolvedBy, nullTime(alert.ResolvedAt), alert.Resolution)
	if err != nil {
		return fmt.Errorf("failed to insert alert %s: %w: %w", alert.ID, ports.ErrUpdateFailed, err)
	}
	return nil
}

// UpdateAlert modifies an existing alert (acknowledge/resolve).
func (r *Repository) UpdateAlert(ctx context.Context, alert *domain.SafetyAlert) error {
	const query = `
	UPDATE safety_alerts
	SET acknowledged_by = ?, acknowledged_at = ?, resolved_by = ?, resolved_at = ?, resolution = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		alert.AcknowledgedBy, nullTime(alert.AcknowledgedAt),
		alert.ResolvedBy, nullTime(alert.ResolvedAt), alert.Resolution, alert.ID)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w: %w", alert.ID, ports.ErrUpdateFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for alert %s: %w", alert.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("alert %s not found for update: %w", alert.ID, ports.ErrNotFound)
	}
	return nil
}

// FindUnresolved retrieves all alerts that have not been resolved.
func (r *Repository) FindUnresolved(ctx context.Context) ([]*domain.SafetyAlert, error) {
	const query = `
	SELECT id, severity, category, message, created_at, acknowledged_by, acknowledged_at,
	       resolved_by, resolved_at, resolution
	FROM safety_alerts
	WHERE resolved_at IS NULL ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved alerts: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	alerts := make([]*domain.SafetyAlert, 0)
	for rows.Next() {
		var alert domain.SafetyAlert
		var ackAt, resolvedAt sql.NullTime
		err := rows.Scan(
			&alert.ID, &alert.Severity, &alert.Category, &alert.Message, &alert.CreatedAt,
			&alert.AcknowledgedBy, &ackAt, &alert.ResolvedBy, &resolvedAt, &alert.Resolution)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		if ackAt.Valid {
			alert.AcknowledgedAt = ackAt.Time
		}
		if resolvedAt.Valid {
			alert.ResolvedAt = resolvedAt.Time
		}
		alerts = append(alerts, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// The position, trade and alert ports all name their methods Create and
// Update, so they are exposed as typed views over the shared connection.

// Positions returns the position persistence view.
func (r *Repository) Positions() ports.PositionRepository { return positionsView{r} }

type positionsView struct{ r *Repository }

func (v positionsView) Create(ctx context.Context, pos *domain.Position) error { return v.r.Create(ctx, pos) }
func (v positionsView) Update(ctx context.Context, pos *domain.Position) error { return v.r.Update(ctx, pos) }
func (v positionsView) FindActive(ctx context.Context) ([]*domain.Position, error) {
	return v.r.FindActive(ctx)
}
func (v positionsView) FindByID(ctx context.Context, id string) (*domain.Position, error) {
	return v.r.FindPositionByID(ctx, id)
}

// Trades returns the trade persistence view.
func (r *Repository) Trades() ports.TradeRepository { return tradesView{r} }

type tradesView struct{ r *Repository }

func (v tradesView) Create(ctx context.Context, trade *domain.TradeResult) error {
	return v.r.CreateTrade(ctx, trade)
}
func (v tradesView) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeResult, error) {
	return v.r.FindBySymbol(ctx, symbol, limit)
}
func (v tradesView) CountSince(ctx context.Context, since time.Time) (int, error) {
	return v.r.CountSince(ctx, since)
}

// Alerts returns the safety alert persistence view.
func (r *Repository) Alerts() ports.AlertRepository { return alertsView{r} }

type alertsView struct{ r *Repository }

func (v alertsView) Create(ctx context.Context, alert *domain.SafetyAlert) error {
	return v.r.CreateAlert(ctx, alert)
}
func (v alertsView) Update(ctx context.Context, alert *domain.SafetyAlert) error {
	return v.r.UpdateAlert(ctx, alert)
}
func (v alertsView) FindUnresolved(ctx context.Context) ([]*domain.SafetyAlert, error) {
	return v.r.FindUnresolved(ctx)
}

var (
	_ ports.TargetRepository = (*Repository)(nil)
	_ ports.MatchRepository  = (*Repository)(nil)
)
