package orderbook

import (
	"github.com/emirpasic/gods/v2/trees/binaryheap"
	"github.com/shopspring/decimal"
)

// Priority reports whether price a ranks ahead of price b on a side
type Priority func(a, b decimal.Decimal) bool

var (
	// HigherFirst orders bids: the highest price is best
	HigherFirst Priority = func(a, b decimal.Decimal) bool { return a.GreaterThan(b) }

	// LowerFirst orders asks: the lowest price is best
	LowerFirst Priority = func(a, b decimal.Decimal) bool { return a.LessThan(b) }
)

// compactMin is the number of stale heap entries tolerated before compaction is considered
const compactMin = 64

type indexEntry struct {
	price decimal.Decimal
	live  bool
}

// PriceIndex keeps the occupied prices of one book side in a binary heap.
//
// Removal is lazy: a removed price is marked stale and stays in the heap until it
// surfaces. Stale entries are pruned off the top on every removal, so Best always
// returns a live price. The heap is rebuilt once stale entries outnumber live ones.
//
// Performance:
//   - Best: O(1)
//   - Insert: O(log n)
//   - Remove: O(log n) amortized
type PriceIndex struct {
	priority Priority
	heap     *binaryheap.Heap[decimal.Decimal]
	entries  map[string]*indexEntry // one entry per price present in the heap
	stale    int
}

// NewPriceIndex creates an empty index ordered by priority
func NewPriceIndex(priority Priority) *PriceIndex {
	return &PriceIndex{
		priority: priority,
		heap:     binaryheap.NewWith[decimal.Decimal](comparator(priority)),
		entries:  make(map[string]*indexEntry),
	}
}

func comparator(p Priority) func(a, b decimal.Decimal) int {
	return func(a, b decimal.Decimal) int {
		switch {
		case p(a, b):
			return -1
		case p(b, a):
			return 1
		}
		return 0
	}
}

// Insert adds price to the index. Inserting a live price is a no-op.
func (x *PriceIndex) Insert(price decimal.Decimal) {
	key := priceKey(price)
	if e, ok := x.entries[key]; ok {
		if !e.live {
			// the stale copy is still in the heap; revive it instead of pushing a duplicate
			e.live = true
			x.stale--
		}
		return
	}
	x.entries[key] = &indexEntry{price: price, live: true}
	x.heap.Push(price)
}

// Remove drops price from the index and reports whether it was present
func (x *PriceIndex) Remove(price decimal.Decimal) bool {
	e, ok := x.entries[priceKey(price)]
	if !ok || !e.live {
		return false
	}
	e.live = false
	x.stale++
	x.prune()

	if x.stale > compactMin && x.stale > x.Len() {
		x.compact()
	}
	return true
}

// Best returns the best live price
func (x *PriceIndex) Best() (decimal.Decimal, bool) {
	return x.heap.Peek()
}

// Contains reports whether price is live in the index
func (x *PriceIndex) Contains(price decimal.Decimal) bool {
	e, ok := x.entries[priceKey(price)]
	return ok && e.live
}

// Len returns the number of live prices
func (x *PriceIndex) Len() int {
	return len(x.entries) - x.stale
}

func (x *PriceIndex) IsEmpty() bool {
	return x.Len() == 0
}

// Top returns up to n live prices, best first.
// It works on a copy of the live set and leaves the index untouched.
func (x *PriceIndex) Top(n int) []decimal.Decimal {
	if n <= 0 || x.IsEmpty() {
		return nil
	}

	tmp := binaryheap.NewWith[decimal.Decimal](comparator(x.priority))
	tmp.Push(x.livePrices()...)

	if n > tmp.Size() {
		n = tmp.Size()
	}
	out := make([]decimal.Decimal, 0, n)
	for len(out) < n {
		p, ok := tmp.Pop()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

// Clear removes every price
func (x *PriceIndex) Clear() {
	x.heap.Clear()
	x.entries = make(map[string]*indexEntry)
	x.stale = 0
}

// prune pops stale entries until the top is live or the heap is empty
func (x *PriceIndex) prune() {
	for {
		top, ok := x.heap.Peek()
		if !ok {
			return
		}
		key := priceKey(top)
		e := x.entries[key]
		if e != nil && e.live {
			return
		}
		x.heap.Pop()
		if e != nil {
			delete(x.entries, key)
			x.stale--
		}
	}
}

// compact rebuilds the heap from live entries only
func (x *PriceIndex) compact() {
	live := x.livePrices()
	for key, e := range x.entries {
		if !e.live {
			delete(x.entries, key)
		}
	}
	x.heap.Clear()
	if len(live) > 0 {
		x.heap.Push(live...)
	}
	x.stale = 0
}

func (x *PriceIndex) livePrices() []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, x.Len())
	for _, e := range x.entries {
		if e.live {
			prices = append(prices, e.price)
		}
	}
	return prices
}
