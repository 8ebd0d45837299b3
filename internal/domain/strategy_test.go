package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCustomStrategy() StrategyConfig {
	return StrategyConfig{
		Name:                "custom",
		MaxPositionSize:     0.4,
		StopLossPercent:     5.0,
		TakeProfitPercent:   20.0,
		MaxDrawdownPercent:  12.0,
		ConfidenceThreshold: 70.0,
		EnableMultiPhase:    true,
		PhaseCount:          4,
		PhaseDelayMs:        750,
		SlippageTolerance:   2.5,
	}
}

func TestStrategyConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StrategyConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *StrategyConfig) {}},
		{
			name:    "empty name",
			mutate:  func(c *StrategyConfig) { c.Name = "  " },
			wantErr: "name must not be empty",
		},
		{
			name:    "position size above one",
			mutate:  func(c *StrategyConfig) { c.MaxPositionSize = 1.5 },
			wantErr: "maxPositionSize",
		},
		{
			name:    "position size zero",
			mutate:  func(c *StrategyConfig) { c.MaxPositionSize = 0 },
			wantErr: "maxPositionSize",
		},
		{
			name:    "stop loss out of range",
			mutate:  func(c *StrategyConfig) { c.StopLossPercent = 100 },
			wantErr: "stopLossPercent",
		},
		{
			name: "take profit not above stop loss",
			mutate: func(c *StrategyConfig) {
				c.StopLossPercent = 20
				c.TakeProfitPercent = 20
			},
			wantErr: "takeProfitPercent must be greater",
		},
		{
			name:    "confidence threshold above 100",
			mutate:  func(c *StrategyConfig) { c.ConfidenceThreshold = 101 },
			wantErr: "confidenceThreshold",
		},
		{
			name:    "slippage above 10",
			mutate:  func(c *StrategyConfig) { c.SlippageTolerance = 11 },
			wantErr: "slippageTolerance",
		},
		{
			name: "phase count too low",
			mutate: func(c *StrategyConfig) {
				c.PhaseCount = 1
			},
			wantErr: "phaseCount",
		},
		{
			name: "phase delay too low",
			mutate: func(c *StrategyConfig) {
				c.PhaseDelayMs = 50
			},
			wantErr: "phaseDelayMs",
		},
		{
			name: "phase bounds ignored when single phase",
			mutate: func(c *StrategyConfig) {
				c.EnableMultiPhase = false
				c.PhaseCount = 0
				c.PhaseDelayMs = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCustomStrategy()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuiltinStrategiesAreValid(t *testing.T) {
	store := NewStrategyStore()
	for _, name := range []string{StrategyConservative, StrategyBalanced, StrategyAggressive} {
		cfg, ok := store.Get(name)
		require.True(t, ok, name)
		assert.NoError(t, cfg.Validate(), name)
	}
}

func TestStrategyStoreDefaultsToBalanced(t *testing.T) {
	store := NewStrategyStore()
	assert.Equal(t, StrategyBalanced, store.Active().Name)
	assert.Equal(t, 0.5, store.Active().MaxPositionSize)
}

func TestStrategyStoreSetActive(t *testing.T) {
	store := NewStrategyStore()

	require.NoError(t, store.SetActive(StrategyAggressive))
	assert.Equal(t, StrategyAggressive, store.Active().Name)
	assert.Equal(t, 65.0, store.Active().ConfidenceThreshold)

	assert.Error(t, store.SetActive("nonexistent"))
	assert.Equal(t, StrategyAggressive, store.Active().Name)
}

func TestStrategyStoreBuiltinsImmutable(t *testing.T) {
	store := NewStrategyStore()

	overwrite := validCustomStrategy()
	overwrite.Name = StrategyBalanced
	assert.Error(t, store.Put(overwrite))

	assert.Error(t, store.Remove(StrategyConservative))
}

func TestStrategyStoreCustomLifecycle(t *testing.T) {
	store := NewStrategyStore()

	custom := validCustomStrategy()
	require.NoError(t, store.Put(custom))

	got, ok := store.Get("custom")
	require.True(t, ok)
	assert.Equal(t, custom, got)

	require.NoError(t, store.SetActive("custom"))
	assert.Error(t, store.Remove("custom"))

	require.NoError(t, store.SetActive(StrategyBalanced))
	require.NoError(t, store.Remove("custom"))
	_, ok = store.Get("custom")
	assert.False(t, ok)
}

func TestStrategyStorePutRejectsInvalid(t *testing.T) {
	store := NewStrategyStore()
	bad := validCustomStrategy()
	bad.TakeProfitPercent = 1.0
	assert.Error(t, store.Put(bad))
	_, ok := store.Get("custom")
	assert.False(t, ok)
}
