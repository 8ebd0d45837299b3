package domain

import (
	"fmt"
	"strings"
	"sync"
)

// StrategyConfig is a named risk profile driving promotion thresholds,
// position sizing and exit management.
type StrategyConfig struct {
	Name                string
	MaxPositionSize     float64 // Fraction of the configured buy amount, (0,1]
	StopLossPercent     float64 // e.g. 10.0 for -10%
	TakeProfitPercent   float64 // Must exceed StopLossPercent
	MaxDrawdownPercent  float64
	ConfidenceThreshold float64 // Minimum pattern confidence for promotion, [0,100]
	EnableMultiPhase    bool
	PhaseCount          int // Number of partial submissions when multi-phase
	PhaseDelayMs        int // Delay between phases
	SlippageTolerance   float64 // Max acceptable fill slippage percent
}

const (
	minPhaseCount   = 2
	maxPhaseCount   = 10
	minPhaseDelayMs = 100
	maxPhaseDelayMs = 60000
)

// Validate checks all strategy parameters against their defined ranges.
func (c *StrategyConfig) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, "name must not be empty")
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		errs = append(errs, "maxPositionSize must be in (0,1]")
	}
	if c.StopLossPercent <= 0 || c.StopLossPercent >= 100 {
		errs = append(errs, "stopLossPercent must be in (0,100)")
	}
	if c.TakeProfitPercent <= 0 {
		errs = append(errs, "takeProfitPercent must be positive")
	}
	if c.TakeProfitPercent <= c.StopLossPercent {
		errs = append(errs, "takeProfitPercent must be greater than stopLossPercent")
	}
	if c.MaxDrawdownPercent <= 0 || c.MaxDrawdownPercent > 100 {
		errs = append(errs, "maxDrawdownPercent must be in (0,100]")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		errs = append(errs, "confidenceThreshold must be in [0,100]")
	}
	if c.SlippageTolerance < 0 || c.SlippageTolerance > 10 {
		errs = append(errs, "slippageTolerance must be in [0,10]")
	}
	if c.EnableMultiPhase {
		if c.PhaseCount < minPhaseCount || c.PhaseCount > maxPhaseCount {
			errs = append(errs, fmt.Sprintf("phaseCount must be in [%d,%d]", minPhaseCount, maxPhaseCount))
		}
		if c.PhaseDelayMs < minPhaseDelayMs || c.PhaseDelayMs > maxPhaseDelayMs {
			errs = append(errs, fmt.Sprintf("phaseDelayMs must be in [%d,%d]", minPhaseDelayMs, maxPhaseDelayMs))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid strategy %q: %s", c.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Built-in strategy names. Built-ins are immutable by name.
const (
	StrategyConservative = "conservative"
	StrategyBalanced     = "balanced"
	StrategyAggressive   = "aggressive"
)

func builtinStrategies() map[string]StrategyConfig {
	return map[string]StrategyConfig{
		StrategyConservative: {
			Name:                StrategyConservative,
			MaxPositionSize:     0.25,
			StopLossPercent:     8.0,
			TakeProfitPercent:   15.0,
			MaxDrawdownPercent:  10.0,
			ConfidenceThreshold: 85.0,
			EnableMultiPhase:    false,
			SlippageTolerance:   1.0,
		},
		StrategyBalanced: {
			Name:                StrategyBalanced,
			MaxPositionSize:     0.5,
			StopLossPercent:     10.0,
			TakeProfitPercent:   25.0,
			MaxDrawdownPercent:  15.0,
			ConfidenceThreshold: 75.0,
			EnableMultiPhase:    true,
			PhaseCount:          2,
			PhaseDelayMs:        1000,
			SlippageTolerance:   2.0,
		},
		StrategyAggressive: {
			Name:                StrategyAggressive,
			MaxPositionSize:     1.0,
			StopLossPercent:     15.0,
			TakeProfitPercent:   50.0,
			MaxDrawdownPercent:  25.0,
			ConfidenceThreshold: 65.0,
			EnableMultiPhase:    true,
			PhaseCount:          3,
			PhaseDelayMs:        500,
			SlippageTolerance:   5.0,
		},
	}
}

// StrategyStore holds the built-in and custom strategy configurations and
// tracks which one is active. Safe for concurrent use.
type StrategyStore struct {
	mu         sync.RWMutex
	strategies map[string]StrategyConfig
	active     string
}

// NewStrategyStore creates a store seeded with the built-in strategies.
// The active strategy defaults to "balanced" unless another built-in or
// previously-added name is selected via SetActive.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{
		strategies: builtinStrategies(),
		active:     StrategyBalanced,
	}
}

func isBuiltin(name string) bool {
	switch name {
	case StrategyConservative, StrategyBalanced, StrategyAggressive:
		return true
	}
	return false
}

// Get returns the strategy with the given name.
func (s *StrategyStore) Get(name string) (StrategyConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.strategies[name]
	return cfg, ok
}

// Active returns the currently active strategy configuration.
func (s *StrategyStore) Active() StrategyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategies[s.active]
}

// SetActive switches the active strategy to an existing name.
func (s *StrategyStore) SetActive(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[name]; !ok {
		return fmt.Errorf("strategy %q does not exist", name)
	}
	s.active = name
	return nil
}

// Put adds or updates a custom strategy. Built-ins cannot be overwritten.
func (s *StrategyStore) Put(cfg StrategyConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if isBuiltin(cfg.Name) {
		return fmt.Errorf("built-in strategy %q is immutable", cfg.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[cfg.Name] = cfg
	return nil
}

// Remove deletes a custom strategy. Built-ins and the active strategy
// cannot be removed.
func (s *StrategyStore) Remove(name string) error {
	if isBuiltin(name) {
		return fmt.Errorf("built-in strategy %q cannot be removed", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.active {
		return fmt.Errorf("strategy %q is active and cannot be removed", name)
	}
	if _, ok := s.strategies[name]; !ok {
		return fmt.Errorf("strategy %q does not exist", name)
	}
	delete(s.strategies, name)
	return nil
}

// Names returns all known strategy names.
func (s *StrategyStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.strategies))
	for name := range s.strategies {
		names = append(names, name)
	}
	return names
}
