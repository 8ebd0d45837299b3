package safety

import (
	"math"
	"sync"
	"time"
)

// pricePoint is one observed price sample.
type pricePoint struct {
	price float64
	at    time.Time
}

// VolatilityTracker keeps a rolling window of price samples per symbol
// and derives two gate inputs: relative volatility (stddev of returns
// over the window) and a rapid-movement flag when the latest move exceeds
// a per-sample threshold.
type VolatilityTracker struct {
	window       time.Duration
	rapidMovePct float64 // single-sample move treated as rapid, e.g. 5.0

	mu      sync.Mutex
	samples map[string][]pricePoint
}

// NewVolatilityTracker creates a tracker with the given sample window.
func NewVolatilityTracker(window time.Duration, rapidMovePct float64) *VolatilityTracker {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if rapidMovePct <= 0 {
		rapidMovePct = 5.0
	}
	return &VolatilityTracker{
		window:       window,
		rapidMovePct: rapidMovePct,
		samples:      make(map[string][]pricePoint),
	}
}

// Observe records a price sample and drops samples older than the window.
func (v *VolatilityTracker) Observe(symbol string, price float64, at time.Time) {
	if price <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	pts := append(v.samples[symbol], pricePoint{price: price, at: at})
	cutoff := at.Add(-v.window)
	for len(pts) > 0 && pts[0].at.Before(cutoff) {
		pts = pts[1:]
	}
	v.samples[symbol] = pts
}

// Volatility returns the standard deviation of sample-to-sample relative
// returns within the window. Zero until at least three samples exist.
func (v *VolatilityTracker) Volatility(symbol string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	pts := v.samples[symbol]
	if len(pts) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		if pts[i-1].price == 0 {
			continue
		}
		returns = append(returns, (pts[i].price-pts[i-1].price)/pts[i-1].price)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

// RapidMovement reports whether the most recent sample moved more than
// the rapid-move threshold relative to its predecessor.
func (v *VolatilityTracker) RapidMovement(symbol string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	pts := v.samples[symbol]
	if len(pts) < 2 {
		return false
	}
	prev := pts[len(pts)-2].price
	last := pts[len(pts)-1].price
	if prev == 0 {
		return false
	}
	return math.Abs(last-prev)/prev*100 >= v.rapidMovePct
}
