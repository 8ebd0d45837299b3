package domain

import "time"

// AlertSeverity grades a safety alert.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// SafetyAlert is a risk signal tracked by the safety coordinator.
// Lifecycle: created -> acknowledged (optional) -> resolved.
type SafetyAlert struct {
	ID             string
	Severity       AlertSeverity
	Category       string
	Message        string
	CreatedAt      time.Time
	AcknowledgedBy string
	AcknowledgedAt time.Time
	ResolvedBy     string
	ResolvedAt     time.Time
	Resolution     string
}

// IsResolved reports whether the alert has been explicitly resolved.
func (a *SafetyAlert) IsResolved() bool {
	return !a.ResolvedAt.IsZero()
}

// SafetyLevel is the aggregate risk classification derived from active alerts.
type SafetyLevel string

const (
	SafetyLevelSafe     SafetyLevel = "safe"
	SafetyLevelModerate SafetyLevel = "moderate"
	SafetyLevelHighRisk SafetyLevel = "high_risk"
	SafetyLevelCritical SafetyLevel = "critical"
)

// TradingConditions is the market/portfolio context supplied to the
// safety coordinator's gate ahead of an execution attempt.
type TradingConditions struct {
	RapidPriceMovement bool
	Volatility         float64 // Recent relative price volatility, e.g. 0.2 = 20%
	LowLiquidity       bool
	PortfolioRisk      float64 // Aggregate open exposure score
}

// GateDecision is the gate's verdict on a proposed execution. Reasons are
// always populated when Approved is false.
type GateDecision struct {
	Approved        bool
	Reasons         []string
	Recommendations []string
}

// EmergencyType identifies an emergency procedure.
type EmergencyType string

const (
	EmergencyHaltTrading      EmergencyType = "halt_trading"
	EmergencyLiquidateAll     EmergencyType = "liquidate_all"
	EmergencyConnectivityLoss EmergencyType = "connectivity_loss"
)
