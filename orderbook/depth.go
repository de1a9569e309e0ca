package orderbook

import "github.com/shopspring/decimal"

// Level is the aggregated view of one price level
type Level struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
	Orders int // number of orders at this level
}

// Depth is a point-in-time copy of the top levels of both sides, best first.
// It shares no memory with the book.
type Depth struct {
	Bids []Level
	Asks []Level
}

// BestBid returns the first bid level of the snapshot
func (d Depth) BestBid() (Level, bool) {
	if len(d.Bids) == 0 {
		return Level{}, false
	}
	return d.Bids[0], true
}

// BestAsk returns the first ask level of the snapshot
func (d Depth) BestAsk() (Level, bool) {
	if len(d.Asks) == 0 {
		return Level{}, false
	}
	return d.Asks[0], true
}

// Spread returns best ask minus best bid when both sides are present
func (d Depth) Spread() (decimal.Decimal, bool) {
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}
