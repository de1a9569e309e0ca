package orderbook

import (
	"fmt"

	"sim-exchange/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// side holds one half of the book: the priority index over occupied prices
// and the price -> level lookup.
type side struct {
	index  *PriceIndex
	levels map[string]*PriceLevel
}

func newSide(priority Priority) *side {
	return &side{
		index:  NewPriceIndex(priority),
		levels: make(map[string]*PriceLevel),
	}
}

func (s *side) best() *PriceLevel {
	price, ok := s.index.Best()
	if !ok {
		return nil
	}
	return s.levels[priceKey(price)]
}

// resting locates a resting order: its level and its handle inside the level queue
type resting struct {
	order  *domain.Order
	level  *PriceLevel
	handle Handle
}

// OrderBook implements a price-time priority order book.
// Not safe for concurrent use: only the matching goroutine may touch it.
// It stores and retrieves orders; it never creates trades.
type OrderBook struct {
	bids   *side // highest price first
	asks   *side // lowest price first
	orders map[string]*resting
	arena  *Arena
}

// NewOrderBook creates an empty order book.
// arenaCapacity pre-sizes the queue storage; the arena grows past it on demand.
func NewOrderBook(arenaCapacity int) *OrderBook {
	return &OrderBook{
		bids:   newSide(HigherFirst),
		asks:   newSide(LowerFirst),
		orders: make(map[string]*resting),
		arena:  NewArena(arenaCapacity),
	}
}

func (ob *OrderBook) side(s domain.Side) *side {
	if s == domain.SideBid {
		return ob.bids
	}
	return ob.asks
}

// BestBid returns the highest bid level
// Performance: O(1) heap peek + map lookup
func (ob *OrderBook) BestBid() (Level, bool) {
	return ob.bestLevel(ob.bids)
}

// BestAsk returns the lowest ask level
// Performance: O(1) heap peek + map lookup
func (ob *OrderBook) BestAsk() (Level, bool) {
	return ob.bestLevel(ob.asks)
}

func (ob *OrderBook) bestLevel(s *side) (Level, bool) {
	level := s.best()
	if level == nil {
		return Level{}, false
	}
	return level.view(), true
}

// Head returns the earliest order at the best price of a side
func (ob *OrderBook) Head(s domain.Side) (*domain.Order, bool) {
	level := ob.side(s).best()
	if level == nil {
		return nil, false
	}
	return level.Head()
}

// InsertResting adds a limit order at the tail of its price level, creating the level if absent
// Performance: O(1) for an existing level, O(log n) for a new one
func (ob *OrderBook) InsertResting(o *domain.Order) error {
	if o.Type != domain.OrderTypeLimit || !o.Price.IsPositive() || domain.IsDust(o.Remaining) {
		return errors.Wrapf(domain.ErrInvalidOrder, "order %s cannot rest", o.ID)
	}
	if _, exists := ob.orders[o.ID]; exists {
		return errors.Wrapf(domain.ErrDuplicateOrder, "order %s", o.ID)
	}

	s := ob.side(o.Side)
	key := priceKey(o.Price)
	level, exists := s.levels[key]
	if !exists {
		level = newPriceLevel(o.Price, ob.arena)
		s.levels[key] = level
		s.index.Insert(o.Price)
	}

	h := level.queue.Append(o)
	ob.orders[o.ID] = &resting{order: o, level: level, handle: h}
	return nil
}

// RemoveByID removes a resting order through its handle, dropping the level if it empties
// Performance: O(1) unlink, O(log n) amortized when the level goes away
func (ob *OrderBook) RemoveByID(orderID string) (*domain.Order, error) {
	r, exists := ob.orders[orderID]
	if !exists {
		return nil, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	ob.remove(r)
	return r.order, nil
}

// Fill reduces a resting order by qty and keeps its level volume in step.
// A fully filled order leaves the book.
func (ob *OrderBook) Fill(o *domain.Order, qty decimal.Decimal) error {
	r, exists := ob.orders[o.ID]
	if !exists || r.order != o {
		return errors.Wrapf(domain.ErrNotFound, "order %s", o.ID)
	}
	if !qty.IsPositive() || qty.GreaterThan(o.Remaining) {
		return errors.Wrapf(domain.ErrInvalidOrder, "fill %s of order %s with %s remaining", qty, o.ID, o.Remaining)
	}

	if domain.IsDust(o.Remaining.Sub(qty)) {
		// unlink first: the queue subtracts the pre-fill remaining size
		ob.remove(r)
		o.Fill(qty)
		return nil
	}
	o.Fill(qty)
	r.level.queue.Reduce(qty)
	return nil
}

func (ob *OrderBook) remove(r *resting) {
	r.level.queue.RemoveByHandle(r.handle)
	delete(ob.orders, r.order.ID)

	if r.level.IsEmpty() {
		s := ob.side(r.order.Side)
		delete(s.levels, r.level.key)
		s.index.Remove(r.level.price)
	}
}

// Order returns the resting order with the given ID
func (ob *OrderBook) Order(orderID string) (*domain.Order, bool) {
	r, exists := ob.orders[orderID]
	if !exists {
		return nil, false
	}
	return r.order, true
}

// Level returns the level resting at price on a side
func (ob *OrderBook) Level(s domain.Side, price decimal.Decimal) (*PriceLevel, bool) {
	level, exists := ob.side(s).levels[priceKey(price)]
	return level, exists
}

// Len returns the number of resting orders
func (ob *OrderBook) Len() int {
	return len(ob.orders)
}

// LevelCount returns the number of occupied prices on a side
func (ob *OrderBook) LevelCount(s domain.Side) int {
	return ob.side(s).index.Len()
}

// DepthSnapshot returns up to n levels per side, best first
// Performance: O(L + n log L) per side, L = occupied prices
func (ob *OrderBook) DepthSnapshot(n int) Depth {
	return Depth{
		Bids: ob.depth(ob.bids, n),
		Asks: ob.depth(ob.asks, n),
	}
}

func (ob *OrderBook) depth(s *side, n int) []Level {
	prices := s.index.Top(n)
	levels := make([]Level, 0, len(prices))
	for _, p := range prices {
		if level, ok := s.levels[priceKey(p)]; ok {
			levels = append(levels, level.view())
		}
	}
	return levels
}

// Reset drops every resting order and level
func (ob *OrderBook) Reset() {
	for _, r := range ob.orders {
		r.order.Cancel()
	}
	capacity := cap(ob.arena.slots)
	ob.bids = newSide(HigherFirst)
	ob.asks = newSide(LowerFirst)
	ob.orders = make(map[string]*resting)
	ob.arena = NewArena(capacity)
}

// CheckTop verifies the uncrossed-book and volume invariants on the best levels only.
// It is cheap enough to run after every submission.
func (ob *OrderBook) CheckTop() error {
	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()

	if hasBid && hasAsk && bid.Price.GreaterThanOrEqual(ask.Price) {
		return ob.violation("crossed book")
	}
	if hasBid && !bid.Volume.IsPositive() {
		return ob.violation(fmt.Sprintf("non-positive volume %s at best bid", bid.Volume))
	}
	if hasAsk && !ask.Volume.IsPositive() {
		return ob.violation(fmt.Sprintf("non-positive volume %s at best ask", ask.Volume))
	}
	return nil
}

// Validate walks the whole book and checks every structural invariant
func (ob *OrderBook) Validate() error {
	if err := ob.CheckTop(); err != nil {
		return err
	}

	count := 0
	for _, s := range []*side{ob.bids, ob.asks} {
		if s.index.Len() != len(s.levels) {
			return ob.violation(fmt.Sprintf("index holds %d prices, %d levels exist", s.index.Len(), len(s.levels)))
		}
		for key, level := range s.levels {
			if level.IsEmpty() {
				return ob.violation("empty level " + key)
			}
			if !s.index.Contains(level.price) {
				return ob.violation("level " + key + " missing from index")
			}

			sum := decimal.Zero
			var lastTS int64
			for i, o := range level.Orders() {
				if o.Remaining.IsNegative() || o.Remaining.GreaterThan(o.Size) {
					return ob.violation(fmt.Sprintf("order %s remaining %s of %s", o.ID, o.Remaining, o.Size))
				}
				if i > 0 && o.Timestamp < lastTS {
					return ob.violation("level " + key + " not in arrival order")
				}
				lastTS = o.Timestamp
				sum = sum.Add(o.Remaining)
				count++
			}
			if !sum.Equal(level.Volume()) {
				return ob.violation(fmt.Sprintf("level %s volume %s, members sum %s", key, level.Volume(), sum))
			}
		}
	}

	if count != len(ob.orders) {
		return ob.violation(fmt.Sprintf("%d queued orders, %d indexed", count, len(ob.orders)))
	}
	return nil
}

func (ob *OrderBook) violation(reason string) error {
	v := &domain.InvariantViolation{
		Reason:  reason,
		BestBid: "-",
		BestAsk: "-",
	}
	if bid, ok := ob.BestBid(); ok {
		v.BestBid = fmt.Sprintf("%s x %s", bid.Price, bid.Volume)
	}
	if ask, ok := ob.BestAsk(); ok {
		v.BestAsk = fmt.Sprintf("%s x %s", ask.Price, ask.Volume)
	}

	depth := ob.DepthSnapshot(5)
	for _, l := range depth.Bids {
		v.Detail = append(v.Detail, fmt.Sprintf("bid %s x %s (%d)", l.Price, l.Volume, l.Orders))
	}
	for _, l := range depth.Asks {
		v.Detail = append(v.Detail, fmt.Sprintf("ask %s x %s (%d)", l.Price, l.Volume, l.Orders))
	}
	return errors.WithStack(v)
}
