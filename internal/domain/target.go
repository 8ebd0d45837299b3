package domain

import "time"

// CalendarCandidate is a single upcoming-listing entry from the exchange's
// new-coin calendar. Immutable after first sighting; superseded only by expiry.
type CalendarCandidate struct {
	ID                  string    // Exchange-assigned coin identifier (unique per listing)
	Symbol              string    // Announced trading symbol (e.g., "NEWUSDT")
	ProjectName         string    // Human-readable project name
	ScheduledLaunchTime time.Time // Announced launch time (UTC)
	DiscoveredAt        time.Time // First time the calendar poll saw this entry
}

// MonitoredTarget wraps a CalendarCandidate with its lifecycle stage.
// Exactly one live target exists per candidate ID.
type MonitoredTarget struct {
	Candidate CalendarCandidate
	Stage     TargetStage
	UpdatedAt time.Time

	// Populated once the ready-state pattern has been detected.
	ReadyMatch *PatternMatch

	// Trading metadata from the symbol status snapshot, needed to format
	// orders. Zero values until a snapshot with complete data is seen.
	PricePrecision    int
	QuantityPrecision int
	ActualLaunchTime  time.Time // Launch time from symbol status ("ot"), may refine the calendar's
}

// LaunchTime returns the most precise launch time known for the target:
// the actual time from the symbol status when present, otherwise the
// calendar's scheduled time.
func (t *MonitoredTarget) LaunchTime() time.Time {
	if !t.ActualLaunchTime.IsZero() {
		return t.ActualLaunchTime
	}
	return t.Candidate.ScheduledLaunchTime
}

// AdvanceNotice returns the lead time between now and the target's launch.
// Negative when the launch has already passed.
func (t *MonitoredTarget) AdvanceNotice(now time.Time) time.Duration {
	return t.LaunchTime().Sub(now)
}
