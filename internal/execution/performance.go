package execution

import (
	"sync"
	"time"

	"mexcSniperBot/internal/domain"
)

// PerformanceSummary aggregates execution quality per strategy.
type PerformanceSummary struct {
	Strategy        string
	Executions      int
	Successes       int
	SuccessRate     float64
	AvgLatency      time.Duration // promotion-to-fill
	AvgSlippagePct  float64
	AvgAdvanceHours float64
}

// PerformanceTracker records execution reports for strategy performance
// reporting. Safe for concurrent use.
type PerformanceTracker struct {
	mu      sync.RWMutex
	reports []domain.ExecutionReport
}

// NewPerformanceTracker creates an empty tracker.
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{}
}

// Record appends an execution report.
func (p *PerformanceTracker) Record(report domain.ExecutionReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, report)
}

// Summary computes the aggregate statistics for one strategy. Latency and
// slippage averages only cover successful executions.
func (p *PerformanceTracker) Summary(strategy string) PerformanceSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary := PerformanceSummary{Strategy: strategy}
	var totalLatency time.Duration
	var totalSlippage, totalAdvance float64
	for _, r := range p.reports {
		if r.Strategy != strategy {
			continue
		}
		summary.Executions++
		totalAdvance += r.AdvanceHours
		if r.Success {
			summary.Successes++
			totalLatency += r.Latency
			totalSlippage += r.SlippagePercent
		}
	}
	if summary.Executions > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.Executions)
		summary.AvgAdvanceHours = totalAdvance / float64(summary.Executions)
	}
	if summary.Successes > 0 {
		summary.AvgLatency = totalLatency / time.Duration(summary.Successes)
		summary.AvgSlippagePct = totalSlippage / float64(summary.Successes)
	}
	return summary
}
