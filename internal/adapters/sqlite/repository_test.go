package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mexcSniperBot/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sniper-bot-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	})
	return repo
}

func sampleTarget(id string, stage domain.TargetStage) *domain.MonitoredTarget {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.MonitoredTarget{
		Candidate: domain.CalendarCandidate{
			ID:                  id,
			Symbol:              "NEWUSDT",
			ProjectName:         "New Project",
			ScheduledLaunchTime: now.Add(4 * time.Hour),
			DiscoveredAt:        now,
		},
		Stage:     stage,
		UpdatedAt: now,
	}
}

func TestRepository_UpsertAndFindTarget(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	target := sampleTarget("NEW123", domain.StageMonitoring)
	require.NoError(t, repo.Upsert(ctx, target))

	found, err := repo.FindByID(ctx, "NEW123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "NEWUSDT", found.Candidate.Symbol)
	assert.Equal(t, domain.StageMonitoring, found.Stage)
	assert.Nil(t, found.ReadyMatch)

	// Upsert replaces mutable fields keyed by the same ID.
	target.Stage = domain.StageReady
	target.PricePrecision = 6
	target.QuantityPrecision = 2
	target.ActualLaunchTime = target.Candidate.ScheduledLaunchTime.Add(30 * time.Minute)
	target.ReadyMatch = &domain.PatternMatch{
		TargetID:    "NEW123",
		PatternType: domain.PatternReadyState,
		Confidence:  100,
		DetectedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Upsert(ctx, target))

	found, err = repo.FindByID(ctx, "NEW123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.StageReady, found.Stage)
	assert.Equal(t, 6, found.PricePrecision)
	assert.False(t, found.ActualLaunchTime.IsZero())
	require.NotNil(t, found.ReadyMatch)
	assert.Equal(t, 100.0, found.ReadyMatch.Confidence)
}

func TestRepository_FindTargetByIDMissing(t *testing.T) {
	repo := setupTestDB(t)

	found, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_FindTargetsByStage(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, sampleTarget("A", domain.StageMonitoring)))
	require.NoError(t, repo.Upsert(ctx, sampleTarget("B", domain.StageMonitoring)))
	require.NoError(t, repo.Upsert(ctx, sampleTarget("C", domain.StageExpired)))

	monitoring, err := repo.FindByStage(ctx, domain.StageMonitoring)
	require.NoError(t, err)
	assert.Len(t, monitoring, 2)

	expired, err := repo.FindByStage(ctx, domain.StageExpired)
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestRepository_AppendAndFindMatches(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	match := &domain.PatternMatch{
		TargetID:       "NEW123",
		PatternType:    domain.PatternPreReady,
		Confidence:     58,
		RiskLevel:      domain.RiskMedium,
		Recommendation: "monitor_closely",
		DetectedAt:     now,
		Indicators: domain.StatusSnapshot{
			ID:            "NEW123",
			Symbol:        "NEWUSDT",
			TradingStatus: 2,
			StateFlag:     1,
			ObservedAt:    now,
		},
		EstimatedTimeToReady: 30 * time.Minute,
		LowAdvanceNotice:     true,
	}
	require.NoError(t, repo.Append(ctx, match))

	ready := *match
	ready.PatternType = domain.PatternReadyState
	ready.Confidence = 100
	ready.DetectedAt = now.Add(10 * time.Minute)
	ready.EstimatedTimeToReady = 0
	ready.LowAdvanceNotice = false
	require.NoError(t, repo.Append(ctx, &ready))

	history, err := repo.FindByTarget(ctx, "NEW123")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.PatternPreReady, history[0].PatternType)
	assert.Equal(t, 30*time.Minute, history[0].EstimatedTimeToReady)
	assert.Equal(t, 2, history[0].Indicators.TradingStatus)
	assert.True(t, history[0].LowAdvanceNotice)
	assert.Equal(t, domain.PatternReadyState, history[1].PatternType)
	assert.False(t, history[1].LowAdvanceNotice)

	byType, err := repo.FindByType(ctx, domain.PatternReadyState, 10)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, 100.0, byType[0].Confidence)
}

func TestRepository_PositionLifecycle(t *testing.T) {
	repo := setupTestDB(t)
	positions := repo.Positions()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	pos := &domain.Position{
		ID:              "pos-1",
		TargetID:        "NEW123",
		Symbol:          "NEWUSDT",
		Side:            domain.Buy,
		EntryPrice:      1.0,
		Quantity:        100,
		StopLossPrice:   0.9,
		TakeProfitPrice: 1.25,
		Status:          domain.StatusActive,
		EntryTime:       now,
	}
	require.NoError(t, positions.Create(ctx, pos))

	active, err := positions.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "pos-1", active[0].ID)
	assert.True(t, active[0].ExitTime.IsZero())

	pos.Status = domain.StatusClosed
	pos.ExitPrice = 1.25
	pos.ExitTime = now.Add(time.Hour)
	pos.CloseReason = domain.CloseReasonTakeProfit
	pos.PNL = 25
	require.NoError(t, positions.Update(ctx, pos))

	active, err = positions.FindActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	found, err := positions.FindByID(ctx, "pos-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.StatusClosed, found.Status)
	assert.Equal(t, domain.CloseReasonTakeProfit, found.CloseReason)
	assert.Equal(t, 25.0, found.PNL)
}

func TestRepository_UpdateMissingPosition(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.Positions().Update(context.Background(), &domain.Position{ID: "missing"})
	assert.Error(t, err)
}

func TestRepository_TradeResults(t *testing.T) {
	repo := setupTestDB(t)
	trades := repo.Trades()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, symbol := range []string{"NEWUSDT", "NEWUSDT", "OTHERUSDT"} {
		require.NoError(t, trades.Create(ctx, &domain.TradeResult{
			ID:          "trade-" + symbol + string(rune('0'+i)),
			PositionID:  "pos-1",
			TargetID:    "NEW123",
			Symbol:      symbol,
			Side:        domain.Buy,
			EntryPrice:  1.0,
			ExitPrice:   1.1,
			Quantity:    100,
			PNL:         10,
			EntryTime:   now.Add(-time.Hour),
			ExitTime:    now.Add(time.Duration(i) * time.Minute),
			CloseReason: domain.CloseReasonTakeProfit,
		}))
	}

	recent, err := trades.FindBySymbol(ctx, "NEWUSDT", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first.
	assert.True(t, !recent[0].ExitTime.Before(recent[1].ExitTime))

	count, err := trades.CountSince(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = trades.CountSince(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRepository_AlertLifecycle(t *testing.T) {
	repo := setupTestDB(t)
	alerts := repo.Alerts()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	alert := &domain.SafetyAlert{
		ID:        "alert-1",
		Severity:  domain.SeverityHigh,
		Category:  "api_failures",
		Message:   "repeated calendar poll failures",
		CreatedAt: now,
	}
	require.NoError(t, alerts.Create(ctx, alert))

	unresolved, err := alerts.FindUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, domain.SeverityHigh, unresolved[0].Severity)

	alert.AcknowledgedBy = "operator"
	alert.AcknowledgedAt = now.Add(time.Minute)
	require.NoError(t, alerts.Update(ctx, alert))

	unresolved, err = alerts.FindUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "operator", unresolved[0].AcknowledgedBy)

	alert.ResolvedBy = "operator"
	alert.ResolvedAt = now.Add(2 * time.Minute)
	alert.Resolution = "connectivity restored"
	require.NoError(t, alerts.Update(ctx, alert))

	unresolved, err = alerts.FindUnresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
}
