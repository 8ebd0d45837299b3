// Package safety aggregates risk and alert signals into a system-wide
// safety level and gates all new trade submissions. The coordinator only
// reads cross-cutting signals from the other components; the alert and
// emergency state here is the only state it mutates.
package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/ports"
)

// Thresholds configures how alert counts and trading conditions map onto
// safety levels and gate rejections.
type Thresholds struct {
	HighAlertsForHighRisk   int     // more than this many unresolved high alerts forces high_risk
	MediumAlertsForModerate int     // more than this many unresolved medium alerts forces moderate
	MaxVolatility           float64 // gate rejects above this relative volatility
	MaxPortfolioRisk        float64 // gate rejects above this aggregate risk score
}

// DefaultThresholds returns the standard threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighAlertsForHighRisk:   2,
		MediumAlertsForModerate: 3,
		MaxVolatility:           0.15,
		MaxPortfolioRisk:        5.0,
	}
}

// Coordinator implements the safety coordinator: alert lifecycle, safety
// level derivation, the trading-conditions gate and emergency procedures.
type Coordinator struct {
	logger     ports.Logger
	repo       ports.AlertRepository // optional durable mirror
	thresholds Thresholds

	mu              sync.RWMutex
	alerts          map[string]*domain.SafetyAlert
	level           domain.SafetyLevel
	emergencyActive bool
	emergencyType   domain.EmergencyType
	emergencyAt     time.Time
}

// New creates a coordinator at level safe with no alerts. repo may be nil.
func New(logger ports.Logger, repo ports.AlertRepository, thresholds Thresholds) (*Coordinator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for safety coordinator")
	}
	if thresholds.MaxVolatility <= 0 {
		thresholds = DefaultThresholds()
	}
	return &Coordinator{
		logger:     logger,
		repo:       repo,
		thresholds: thresholds,
		alerts:     make(map[string]*domain.SafetyAlert),
		level:      domain.SafetyLevelSafe,
	}, nil
}

// RaiseAlert creates a new alert and re-derives the safety level.
func (c *Coordinator) RaiseAlert(ctx context.Context, severity domain.AlertSeverity, category, message string) *domain.SafetyAlert {
	alert := &domain.SafetyAlert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Category:  category,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.alerts[alert.ID] = alert
	c.recomputeLevelLocked()
	level := c.level
	c.mu.Unlock()

	c.persist(ctx, alert, false)
	c.logger.Warn(ctx, "Safety alert raised", map[string]interface{}{
		"alertID": alert.ID, "severity": string(severity), "category": category,
		"message": message, "safetyLevel": string(level),
	})
	return alert
}

// AcknowledgeAlert marks an alert acknowledged. Acknowledgement is
// optional in the lifecycle and does not change the safety level.
func (c *Coordinator) AcknowledgeAlert(ctx context.Context, id, by string) error {
	c.mu.Lock()
	alert, ok := c.alerts[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("alert %s: %w", id, ports.ErrNotFound)
	}
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = time.Now().UTC()
	snapshot := *alert
	c.mu.Unlock()

	c.persist(ctx, &snapshot, true)
	return nil
}

// ResolveAlert resolves an alert and re-derives the safety level. An
// unresolved critical alert keeps the level at critical until this is
// called for it.
func (c *Coordinator) ResolveAlert(ctx context.Context, id, by, resolution string) error {
	c.mu.Lock()
	alert, ok := c.alerts[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("alert %s: %w", id, ports.ErrNotFound)
	}
	alert.ResolvedBy = by
	alert.ResolvedAt = time.Now().UTC()
	alert.Resolution = resolution
	snapshot := *alert
	c.recomputeLevelLocked()
	level := c.level
	c.mu.Unlock()

	c.persist(ctx, &snapshot, true)
	c.logger.Info(ctx, "Safety alert resolved", map[string]interface{}{
		"alertID": id, "by": by, "safetyLevel": string(level),
	})
	return nil
}

// ActiveAlerts returns copies of all unresolved alerts.
func (c *Coordinator) ActiveAlerts() []domain.SafetyAlert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.SafetyAlert
	for _, a := range c.alerts {
		if !a.IsResolved() {
			out = append(out, *a)
		}
	}
	return out
}

// Level returns the current system safety level.
func (c *Coordinator) Level() domain.SafetyLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// RunHealthCheck re-derives the safety level from the live alert set.
// Called by the periodic health cycle; level changes are logged.
func (c *Coordinator) RunHealthCheck(ctx context.Context) domain.SafetyLevel {
	c.mu.Lock()
	before := c.level
	c.recomputeLevelLocked()
	after := c.level
	c.mu.Unlock()

	if before != after {
		c.logger.Warn(ctx, "Safety level changed", map[string]interface{}{
			"from": string(before), "to": string(after),
		})
	}
	return after
}

// recomputeLevelLocked derives the safety level from unresolved alert
// counts against the thresholds. Caller holds c.mu.
func (c *Coordinator) recomputeLevelLocked() {
	var critical, high, medium int
	for _, a := range c.alerts {
		if a.IsResolved() {
			continue
		}
		switch a.Severity {
		case domain.SeverityCritical:
			critical++
		case domain.SeverityHigh:
			high++
		case domain.SeverityMedium:
			medium++
		}
	}

	switch {
	case critical > 0 || c.emergencyActive:
		c.level = domain.SafetyLevelCritical
	case high > c.thresholds.HighAlertsForHighRisk:
		c.level = domain.SafetyLevelHighRisk
	case high > 0 || medium > c.thresholds.MediumAlertsForModerate:
		c.level = domain.SafetyLevelModerate
	default:
		c.level = domain.SafetyLevelSafe
	}
}

// AssessTradingConditions is the execution gate. It rejects when any of
// the risk conditions hold; reasons are always populated on rejection.
func (c *Coordinator) AssessTradingConditions(ctx context.Context, cond domain.TradingConditions) domain.GateDecision {
	var reasons, recommendations []string

	c.mu.RLock()
	emergency := c.emergencyActive
	emergencyType := c.emergencyType
	level := c.level
	c.mu.RUnlock()

	if emergency {
		reasons = append(reasons, fmt.Sprintf("emergency procedure %s is active", emergencyType))
		recommendations = append(recommendations, "resolve the emergency and deactivate it before trading")
	}
	if cond.RapidPriceMovement {
		reasons = append(reasons, "rapid price movement detected")
		recommendations = append(recommendations, "wait for price action to stabilize")
	}
	if cond.Volatility > c.thresholds.MaxVolatility {
		reasons = append(reasons, fmt.Sprintf("volatility %.3f exceeds threshold %.3f", cond.Volatility, c.thresholds.MaxVolatility))
		recommendations = append(recommendations, "reduce position size or wait for calmer conditions")
	}
	if cond.LowLiquidity {
		reasons = append(reasons, "liquidity below acceptable threshold")
		recommendations = append(recommendations, "avoid market orders until depth recovers")
	}
	if cond.PortfolioRisk > c.thresholds.MaxPortfolioRisk {
		reasons = append(reasons, fmt.Sprintf("portfolio risk %.1f exceeds threshold %.1f", cond.PortfolioRisk, c.thresholds.MaxPortfolioRisk))
		recommendations = append(recommendations, "close or reduce existing positions first")
	}
	if level == domain.SafetyLevelCritical && !emergency {
		reasons = append(reasons, "system safety level is critical")
		recommendations = append(recommendations, "resolve outstanding critical alerts")
	}

	decision := domain.GateDecision{
		Approved:        len(reasons) == 0,
		Reasons:         reasons,
		Recommendations: recommendations,
	}
	if !decision.Approved {
		c.logger.Info(ctx, "Trading conditions rejected by gate", map[string]interface{}{"reasons": reasons})
	}
	return decision
}

// TriggerEmergencyProcedure activates an emergency: all new submissions
// are refused while active. Existing positions keep being monitored and
// may still close on their own stop-loss/take-profit; no forced
// liquidation happens unless the procedure type requests it.
func (c *Coordinator) TriggerEmergencyProcedure(ctx context.Context, emergencyType domain.EmergencyType) {
	c.mu.Lock()
	c.emergencyActive = true
	c.emergencyType = emergencyType
	c.emergencyAt = time.Now().UTC()
	c.recomputeLevelLocked()
	c.mu.Unlock()

	c.logger.Error(ctx, ports.ErrSafetyViolation, "EMERGENCY PROCEDURE TRIGGERED", map[string]interface{}{
		"type": string(emergencyType),
	})
	c.RaiseAlert(ctx, domain.SeverityCritical, "emergency", fmt.Sprintf("emergency procedure %s activated", emergencyType))
}

// DeactivateEmergency clears the emergency flag. The safety level still
// reflects any unresolved critical alerts.
func (c *Coordinator) DeactivateEmergency(ctx context.Context) {
	c.mu.Lock()
	c.emergencyActive = false
	c.emergencyType = ""
	c.recomputeLevelLocked()
	c.mu.Unlock()
	c.logger.Info(ctx, "Emergency procedure deactivated")
}

// EmergencyActive reports whether an emergency procedure is in effect,
// and which one.
func (c *Coordinator) EmergencyActive() (bool, domain.EmergencyType) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emergencyActive, c.emergencyType
}

// ShouldLiquidate reports whether the active emergency explicitly
// requests position liquidation.
func (c *Coordinator) ShouldLiquidate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emergencyActive && c.emergencyType == domain.EmergencyLiquidateAll
}

func (c *Coordinator) persist(ctx context.Context, alert *domain.SafetyAlert, update bool) {
	if c.repo == nil {
		return
	}
	var err error
	if update {
		err = c.repo.Update(ctx, alert)
	} else {
		err = c.repo.Create(ctx, alert)
	}
	if err != nil {
		c.logger.Error(ctx, err, "Failed to persist safety alert", map[string]interface{}{"alertID": alert.ID})
	}
}
