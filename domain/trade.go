package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one fill.
// Price is always the maker's posted price.
type Trade struct {
	ID           string
	Seq          uint64 // position in the trade feed, assigned on publish
	MakerOrderID string
	TakerOrderID string
	MakerOwner   string
	TakerOwner   string
	Price        decimal.Decimal
	Size         decimal.Decimal
	TakerSide    Side
	Timestamp    int64
	ExecutedAt   time.Time
}

// NewTrade builds the trade for qty executed between an incoming taker and a resting maker
func NewTrade(id string, maker, taker *Order, qty decimal.Decimal, ts int64) Trade {
	return Trade{
		ID:           id,
		MakerOrderID: maker.ID,
		TakerOrderID: taker.ID,
		MakerOwner:   maker.Owner,
		TakerOwner:   taker.Owner,
		Price:        maker.Price,
		Size:         qty,
		TakerSide:    taker.Side,
		Timestamp:    ts,
		ExecutedAt:   time.Unix(0, ts),
	}
}

// BuyOrderID returns the ID of the bid side of the trade
func (t Trade) BuyOrderID() string {
	if t.TakerSide == SideBid {
		return t.TakerOrderID
	}
	return t.MakerOrderID
}

// SellOrderID returns the ID of the ask side of the trade
func (t Trade) SellOrderID() string {
	if t.TakerSide == SideAsk {
		return t.TakerOrderID
	}
	return t.MakerOrderID
}

// Notional returns price * size
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Size)
}
