package mexcclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mexcSniperBot/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		APIKey:      "k",
		SecretKey:   "s",
		WebBaseURL:  server.URL,
		Logger:      nopLogger{},
		RetryMin:    time.Millisecond,
		RetryMax:    5 * time.Millisecond,
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	return client
}

func TestGetCalendarParsesEntries(t *testing.T) {
	launch := time.Now().Add(4 * time.Hour).UnixMilli()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, calendarPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"vcoinId":"NEW123","symbol":"NEWUSDT","projectName":"New Project","firstOpenTime":` + itoa(launch) + `},
			{"vcoinId":"","symbol":"BADUSDT","projectName":"Broken","firstOpenTime":0}
		]}`))
	}))

	candidates, err := client.GetCalendar(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "NEW123", candidates[0].ID)
	assert.Equal(t, "NEWUSDT", candidates[0].Symbol)
	assert.Equal(t, "New Project", candidates[0].ProjectName)
	assert.Equal(t, time.UnixMilli(launch).UTC(), candidates[0].ScheduledLaunchTime)
	assert.False(t, candidates[0].DiscoveredAt.IsZero())
}

func TestGetCalendarRetriesThenFails(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.GetCalendar(context.Background())
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGetCalendarRecoversWithinRetryBudget(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))

	candidates, err := client.GetCalendar(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGetSymbolStatusFiltersByID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, symbolsPath, r.URL.Path)
		w.Write([]byte(`{"data":{"symbols":[
			{"cd":"NEW123","ca":"NEWUSDT","ps":6,"qs":2,"sts":2,"st":2,"tt":4,"ot":1700000000000},
			{"cd":"OTHER","ca":"OTHERUSDT","ps":4,"qs":2,"sts":1,"st":1,"tt":1,"ot":0},
			{"cd":"PENDING","sts":2,"st":1,"tt":0}
		]}}`))
	}))

	snaps, err := client.GetSymbolStatus(context.Background(), []string{"NEW123", "PENDING", "UNKNOWN"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, "NEW123", snaps[0].ID)
	assert.Equal(t, "NEWUSDT", snaps[0].Symbol)
	assert.True(t, snaps[0].IsReadyState())
	assert.True(t, snaps[0].HasCompleteData())
	assert.Equal(t, 6, snaps[0].PricePrecision)
	assert.Equal(t, 2, snaps[0].QuantityPrecision)
	assert.Equal(t, int64(1700000000000), snaps[0].LaunchTimestamp)

	// Missing optional fields decode to zero values, not errors.
	assert.Equal(t, "PENDING", snaps[1].ID)
	assert.Empty(t, snaps[1].Symbol)
	assert.False(t, snaps[1].HasCompleteData())
}

func TestGetSymbolStatusEmptyIDList(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	snaps, err := client.GetSymbolStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, snaps)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00", formatAmount(100, 2))
	assert.Equal(t, "33.333333", formatAmount(33.333333, 6))
	assert.Equal(t, "0.50000000", formatAmount(0.5, 0))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
