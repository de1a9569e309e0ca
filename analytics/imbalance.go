package analytics

import (
	"sim-exchange/orderbook"

	"github.com/shopspring/decimal"
)

// DefaultLevels is the window used when an analyzer is built with levels <= 0
const DefaultLevels = 10

// Analyzer measures liquidity imbalance over the top levels of a depth snapshot.
// It only reads snapshots, so it never contends with the matching goroutine.
type Analyzer struct {
	levels int
}

// NewAnalyzer creates an analyzer over the top levels of each side
func NewAnalyzer(levels int) *Analyzer {
	if levels <= 0 {
		levels = DefaultLevels
	}
	return &Analyzer{levels: levels}
}

// Levels returns the window size
func (a *Analyzer) Levels() int {
	return a.levels
}

// Volumes sums resting volume over the top levels of each side
func (a *Analyzer) Volumes(d orderbook.Depth) (bid, ask decimal.Decimal) {
	return sum(d.Bids, a.levels), sum(d.Asks, a.levels)
}

// Imbalance returns (bid - ask) / (bid + ask) in [-1, 1].
// +1 means only bids, -1 only asks, 0 balanced or both sides empty.
func (a *Analyzer) Imbalance(d orderbook.Depth) float64 {
	bid, ask := a.Volumes(d)
	total := bid.Add(ask)
	if total.IsZero() {
		return 0
	}
	ratio, _ := bid.Sub(ask).DivRound(total, 16).Float64()
	return ratio
}

func sum(levels []orderbook.Level, n int) decimal.Decimal {
	total := decimal.Zero
	for i, l := range levels {
		if i == n {
			break
		}
		total = total.Add(l.Volume)
	}
	return total
}
