package domain

import "time"

// Ready-state status codes. A listing is live and tradable exactly when
// tradingStatus=2, stateFlag=2 and timeFlag=4 are seen together.
const (
	ReadyTradingStatus = 2
	ReadyStateFlag     = 2
	ReadyTimeFlag      = 4

	// SuspendedStatus marks a halted or risk-flagged listing in either
	// the tradingStatus or stateFlag field.
	SuspendedStatus = 4
)

// StatusSnapshot is a point-in-time view of a listing's exchange status,
// as returned by the market data collaborator's symbol status endpoint.
type StatusSnapshot struct {
	ID                string // Coin identifier, matches CalendarCandidate.ID
	Symbol            string // Trading symbol; empty until assigned by the exchange
	TradingStatus     int    // "sts"
	StateFlag         int    // "st"
	TimeFlag          int    // "tt"
	PricePrecision    int    // "ps"; decimal places for price
	QuantityPrecision int    // "qs"; decimal places for quantity
	LaunchTimestamp   int64  // "ot"; launch time in Unix milliseconds, 0 when unknown
	ObservedAt        time.Time
}

// IsReadyState reports whether the snapshot matches the exact ready-state triple.
func (s StatusSnapshot) IsReadyState() bool {
	return s.TradingStatus == ReadyTradingStatus &&
		s.StateFlag == ReadyStateFlag &&
		s.TimeFlag == ReadyTimeFlag
}

// HasCompleteData reports whether the snapshot carries everything needed
// to actually place an order: a symbol, both precisions, and a launch time.
func (s StatusSnapshot) HasCompleteData() bool {
	return s.Symbol != "" && s.PricePrecision > 0 && s.QuantityPrecision > 0 && s.LaunchTimestamp > 0
}

// LaunchTime converts the millisecond launch timestamp to a time.Time.
// Returns the zero time when the timestamp is unknown.
func (s StatusSnapshot) LaunchTime() time.Time {
	if s.LaunchTimestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.LaunchTimestamp).UTC()
}

// PatternType classifies a status snapshot.
type PatternType string

const (
	PatternReadyState     PatternType = "ready_state"
	PatternPreReady       PatternType = "pre_ready"
	PatternLaunchSequence PatternType = "launch_sequence"
	PatternRiskWarning    PatternType = "risk_warning"
)

// RiskLevel is the coarse risk classification attached to a pattern match.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PatternMatch is the immutable result of classifying one status snapshot
// for one target. Appended to the match history for success-rate lookups.
type PatternMatch struct {
	TargetID       string
	PatternType    PatternType
	Confidence     float64 // Composite score, always within [0,100]
	Indicators     StatusSnapshot
	RiskLevel      RiskLevel
	Recommendation string
	DetectedAt     time.Time

	// LowAdvanceNotice flags a match whose launch lead time fell below the
	// configured minimum advance notice. Advisory only; the advance bonus
	// already scores short notice down, so promotion is not blocked.
	LowAdvanceNotice bool

	// EstimatedTimeToReady is populated for pre_ready and launch_sequence
	// matches: the predicted remaining time until the ready state, derived
	// from the historical mean transition duration.
	EstimatedTimeToReady time.Duration
}

// CorrelationReport groups concurrently near-ready targets by shared
// heuristics. Advisory output only; it never blocks promotion.
type CorrelationReport struct {
	TargetIDs []string
	Strength  float64 // [0,1]
	Insights  []string
	CreatedAt time.Time
}
