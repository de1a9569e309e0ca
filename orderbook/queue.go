package orderbook

import (
	"sim-exchange/domain"

	"github.com/shopspring/decimal"
)

const nilSlot int32 = -1

// Handle addresses one queued order inside an Arena.
// The generation makes handles of released slots stale instead of aliasing a new order.
type Handle struct {
	slot int32
	gen  uint32
}

type slot struct {
	order *domain.Order
	queue *OrderQueue
	prev  int32
	next  int32
	gen   uint32
}

// Arena owns the link storage for every queue of one book.
// Queues are intrusive doubly linked lists threaded through arena slots by index,
// so append and remove-by-handle are O(1) without per-order list nodes.
type Arena struct {
	slots []slot
	free  []int32
}

// NewArena creates an arena with room for capacity orders before it grows
func NewArena(capacity int) *Arena {
	return &Arena{
		slots: make([]slot, 0, capacity),
	}
}

func (a *Arena) alloc(o *domain.Order, q *OrderQueue) int32 {
	var i int32
	if n := len(a.free); n > 0 {
		i = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot{})
		i = int32(len(a.slots) - 1)
	}
	s := &a.slots[i]
	s.order = o
	s.queue = q
	s.prev = nilSlot
	s.next = nilSlot
	return i
}

func (a *Arena) release(i int32) {
	s := &a.slots[i]
	s.order = nil
	s.queue = nil
	s.prev = nilSlot
	s.next = nilSlot
	s.gen++
	a.free = append(a.free, i)
}

// lookup returns the slot for h, or nil if h is stale or out of range
func (a *Arena) lookup(h Handle) *slot {
	if h.slot < 0 || int(h.slot) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.slot]
	if s.gen != h.gen || s.order == nil {
		return nil
	}
	return s
}

// Live returns the number of occupied slots
func (a *Arena) Live() int {
	return len(a.slots) - len(a.free)
}

// OrderQueue is the FIFO of resting orders at one price.
// It tracks the aggregate remaining volume of its members.
type OrderQueue struct {
	arena  *Arena
	head   int32
	tail   int32
	length int
	volume decimal.Decimal
}

// NewOrderQueue creates an empty queue backed by arena
func NewOrderQueue(arena *Arena) *OrderQueue {
	return &OrderQueue{
		arena:  arena,
		head:   nilSlot,
		tail:   nilSlot,
		volume: decimal.Zero,
	}
}

// Append adds o at the tail and returns the handle for O(1) removal
func (q *OrderQueue) Append(o *domain.Order) Handle {
	i := q.arena.alloc(o, q)
	s := &q.arena.slots[i]

	if q.tail == nilSlot {
		q.head = i
	} else {
		q.arena.slots[q.tail].next = i
		s.prev = q.tail
	}
	q.tail = i
	q.length++
	q.volume = q.volume.Add(o.Remaining)

	return Handle{slot: i, gen: s.gen}
}

// RemoveByHandle unlinks the order behind h.
// It returns false for stale handles and for handles owned by another queue.
func (q *OrderQueue) RemoveByHandle(h Handle) (*domain.Order, bool) {
	s := q.arena.lookup(h)
	if s == nil || s.queue != q {
		return nil, false
	}

	if s.prev != nilSlot {
		q.arena.slots[s.prev].next = s.next
	} else {
		q.head = s.next
	}
	if s.next != nilSlot {
		q.arena.slots[s.next].prev = s.prev
	} else {
		q.tail = s.prev
	}

	o := s.order
	q.length--
	q.volume = q.volume.Sub(o.Remaining)
	if q.length == 0 {
		q.volume = decimal.Zero
	}
	q.arena.release(h.slot)

	return o, true
}

// PeekHead returns the earliest queued order
func (q *OrderQueue) PeekHead() (*domain.Order, bool) {
	if q.head == nilSlot {
		return nil, false
	}
	return q.arena.slots[q.head].order, true
}

// Reduce lowers the aggregate volume after a member was partially filled in place
func (q *OrderQueue) Reduce(qty decimal.Decimal) {
	q.volume = q.volume.Sub(qty)
}

func (q *OrderQueue) IsEmpty() bool {
	return q.length == 0
}

func (q *OrderQueue) Len() int {
	return q.length
}

func (q *OrderQueue) Volume() decimal.Decimal {
	return q.volume
}

// Orders returns the queued orders in arrival order
func (q *OrderQueue) Orders() []*domain.Order {
	orders := make([]*domain.Order, 0, q.length)
	for i := q.head; i != nilSlot; i = q.arena.slots[i].next {
		orders = append(orders, q.arena.slots[i].order)
	}
	return orders
}
