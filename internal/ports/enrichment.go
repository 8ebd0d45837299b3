package ports

import "context"

// EnhancementContext carries the signals handed to the external
// confidence enhancer alongside the current score.
type EnhancementContext struct {
	PatternType  string
	AdvanceHours float64
	ProjectName  string
}

// Enhancement is the enhancer's bounded, advisory output. Adjustment is
// clamped to [-10,15] by the caller and never overrides a hard pattern
// rule mismatch.
type Enhancement struct {
	Adjustment float64
	Reasoning  string
	Factors    []string
}

// ConfidenceEnhancer is the optional external enrichment collaborator.
// Failures are advisory: callers proceed without the adjustment.
type ConfidenceEnhancer interface {
	EnhanceConfidence(ctx context.Context, symbol string, currentConfidence float64, ec EnhancementContext) (*Enhancement, error)
}
