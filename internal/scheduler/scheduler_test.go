package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestScheduleRunsPeriodically(t *testing.T) {
	s := New(nopLogger{})
	defer s.Shutdown()

	var runs int64
	ticket := s.Schedule(context.Background(), "tick", 10*time.Millisecond, false, func(ctx context.Context) {
		atomic.AddInt64(&runs, 1)
	})

	time.Sleep(60 * time.Millisecond)
	ticket.Cancel()

	got := atomic.LoadInt64(&runs)
	assert.GreaterOrEqual(t, got, int64(2), "expected at least two runs")
}

func TestCancelStopsTask(t *testing.T) {
	s := New(nopLogger{})
	defer s.Shutdown()

	var runs int64
	ticket := s.Schedule(context.Background(), "tick", 5*time.Millisecond, false, func(ctx context.Context) {
		atomic.AddInt64(&runs, 1)
	})

	time.Sleep(20 * time.Millisecond)
	ticket.Cancel()
	after := atomic.LoadInt64(&runs)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&runs), "task ran after cancellation")
	assert.Equal(t, 0, s.ActiveCount())
}

func TestImmediateRun(t *testing.T) {
	s := New(nopLogger{})
	defer s.Shutdown()

	ran := make(chan struct{})
	s.Schedule(context.Background(), "once", time.Hour, true, func(ctx context.Context) {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("immediate task did not run")
	}
}

func TestShutdownCancelsEverything(t *testing.T) {
	s := New(nopLogger{})

	for i := 0; i < 3; i++ {
		s.Schedule(context.Background(), "tick", time.Minute, false, func(ctx context.Context) {})
	}
	assert.Equal(t, 3, s.ActiveCount())

	s.Shutdown()
	assert.Equal(t, 0, s.ActiveCount())

	// Scheduling after shutdown returns an already-cancelled ticket.
	ticket := s.Schedule(context.Background(), "late", time.Minute, false, func(ctx context.Context) {})
	ticket.Cancel()
	assert.Equal(t, 0, s.ActiveCount())
}
