package orderbook

import (
	"sim-exchange/domain"

	"github.com/shopspring/decimal"
)

// PriceLevel represents all orders resting at one price.
// It exists only while its queue is non-empty.
type PriceLevel struct {
	price decimal.Decimal
	key   string
	queue *OrderQueue
}

func newPriceLevel(price decimal.Decimal, arena *Arena) *PriceLevel {
	return &PriceLevel{
		price: price,
		key:   priceKey(price),
		queue: NewOrderQueue(arena),
	}
}

// priceKey is the canonical map key of a price: 100, 100.0 and 100.00 share one level
func priceKey(p decimal.Decimal) string {
	return p.String()
}

func (l *PriceLevel) Price() decimal.Decimal {
	return l.price
}

// Volume returns the sum of remaining sizes at this level
func (l *PriceLevel) Volume() decimal.Decimal {
	return l.queue.Volume()
}

func (l *PriceLevel) Len() int {
	return l.queue.Len()
}

func (l *PriceLevel) IsEmpty() bool {
	return l.queue.IsEmpty()
}

// Head returns the earliest order at this price
func (l *PriceLevel) Head() (*domain.Order, bool) {
	return l.queue.PeekHead()
}

// Orders returns the resting orders in FIFO order
func (l *PriceLevel) Orders() []*domain.Order {
	return l.queue.Orders()
}

func (l *PriceLevel) view() Level {
	return Level{
		Price:  l.price,
		Volume: l.queue.Volume(),
		Orders: l.queue.Len(),
	}
}
