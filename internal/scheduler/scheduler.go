// Package scheduler provides a cancellable interval scheduler. Every
// scheduled task returns a Ticket handle; revoking the ticket stops the
// task's timer immediately, and Shutdown revokes everything at once.
package scheduler

import (
	"context"
	"sync"
	"time"

	"mexcSniperBot/internal/ports"
)

// Task is a unit of periodic work. The context is cancelled when the
// ticket is revoked or the scheduler shuts down; in-flight work may
// finish but its results should be discarded.
type Task func(ctx context.Context)

// Ticket is the handle for one scheduled task.
type Ticket struct {
	name   string
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Name returns the name the task was scheduled under.
func (t *Ticket) Name() string { return t.name }

// Cancel revokes the ticket, stopping the task's timer. Safe to call
// multiple times. Returns once the task loop has exited.
func (t *Ticket) Cancel() {
	t.once.Do(t.cancel)
	<-t.done
}

// Scheduler tracks active tickets. Safe for concurrent use.
type Scheduler struct {
	logger ports.Logger

	mu      sync.Mutex
	tickets map[*Ticket]struct{}
	closed  bool
}

// New creates an empty scheduler.
func New(logger ports.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		tickets: make(map[*Ticket]struct{}),
	}
}

// Schedule runs task every interval until the returned ticket is
// cancelled or the scheduler shuts down. When immediate is true the
// first run happens right away instead of after one interval.
func (s *Scheduler) Schedule(parent context.Context, name string, interval time.Duration, immediate bool, task Task) *Ticket {
	ctx, cancel := context.WithCancel(parent)
	ticket := &Ticket{name: name, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		close(ticket.done)
		return ticket
	}
	s.tickets[ticket] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.tickets, ticket)
			s.mu.Unlock()
			close(ticket.done)
		}()

		if immediate {
			task(ctx)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				task(ctx)
			case <-ctx.Done():
				s.logger.Debug(ctx, "Scheduled task stopped", map[string]interface{}{"task": name})
				return
			}
		}
	}()

	return ticket
}

// ActiveCount returns the number of live tickets.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// Shutdown revokes all tickets and rejects future Schedule calls.
// Blocks until every task loop has exited.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	pending := make([]*Ticket, 0, len(s.tickets))
	for t := range s.tickets {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	for _, t := range pending {
		t.Cancel()
	}
}
