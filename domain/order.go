package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Side represents the order side (Bid or Ask)
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// Opposite returns the side an order of this side trades against
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "unknown"
	}
}

// OrderType represents the type of order
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) Valid() bool {
	return t == OrderTypeLimit || t == OrderTypeMarket
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	default:
		return "unknown"
	}
}

// OrderStatus represents the current status of an order
type OrderStatus int

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusPartial
	OrderStatusFilled
	OrderStatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "new"
	case OrderStatusPartial:
		return "partial"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// QuantityPrecision is the number of decimal places sizes are quantized to on entry.
const QuantityPrecision int32 = 9

// QuantityEpsilon is the smallest size the book distinguishes from zero.
// A remaining size below it is treated as fully filled.
var QuantityEpsilon = decimal.New(1, -QuantityPrecision)

// IsDust reports whether q is too small to be a real quantity.
func IsDust(q decimal.Decimal) bool {
	return q.Abs().LessThan(QuantityEpsilon)
}

// Order represents one resting or incoming instruction.
// Only the matching engine and the book mutate Remaining and Status.
type Order struct {
	ID        string
	Owner     string
	Type      OrderType
	Side      Side
	Price     decimal.Decimal // zero for market orders
	Size      decimal.Decimal // original size
	Remaining decimal.Decimal
	Status    OrderStatus
	Timestamp int64 // arrival order, from the engine clock
	CreatedAt time.Time
}

// NewOrder validates and builds an order. Sizes are quantized to QuantityPrecision;
// the price of a market order is ignored.
func NewOrder(id, owner string, typ OrderType, side Side, price, size decimal.Decimal, ts int64) (*Order, error) {
	if !side.Valid() {
		return nil, errors.Wrapf(ErrInvalidOrder, "unknown side %d", side)
	}
	if !typ.Valid() {
		return nil, errors.Wrapf(ErrInvalidOrder, "unknown order type %d", typ)
	}

	size = size.Round(QuantityPrecision)
	if !size.IsPositive() {
		return nil, errors.Wrapf(ErrInvalidOrder, "size %s must be positive", size)
	}

	switch typ {
	case OrderTypeLimit:
		if !price.IsPositive() {
			return nil, errors.Wrapf(ErrInvalidOrder, "limit price %s must be positive", price)
		}
	case OrderTypeMarket:
		price = decimal.Zero
	}

	return &Order{
		ID:        id,
		Owner:     owner,
		Type:      typ,
		Side:      side,
		Price:     price,
		Size:      size,
		Remaining: size,
		Status:    OrderStatusNew,
		Timestamp: ts,
		CreatedAt: time.Unix(0, ts),
	}, nil
}

// NewLimitOrder is a convenience wrapper around NewOrder for tests and tools
func NewLimitOrder(id, owner string, side Side, price, size decimal.Decimal, ts int64) (*Order, error) {
	return NewOrder(id, owner, OrderTypeLimit, side, price, size, ts)
}

// NewMarketOrder is a convenience wrapper around NewOrder for tests and tools
func NewMarketOrder(id, owner string, side Side, size decimal.Decimal, ts int64) (*Order, error) {
	return NewOrder(id, owner, OrderTypeMarket, side, decimal.Zero, size, ts)
}

// IsFilled returns true if the order is fully filled
func (o *Order) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// Filled returns the executed quantity
func (o *Order) Filled() decimal.Decimal {
	return o.Size.Sub(o.Remaining)
}

// Fill reduces the remaining size and moves the status to Partial or Filled.
// The caller guarantees 0 < qty <= Remaining.
func (o *Order) Fill(qty decimal.Decimal) {
	o.Remaining = o.Remaining.Sub(qty)
	if IsDust(o.Remaining) {
		o.Remaining = decimal.Zero
		o.Status = OrderStatusFilled
		return
	}
	o.Status = OrderStatusPartial
}

// Cancel marks the order as cancelled. Remaining is kept for reporting.
func (o *Order) Cancel() {
	o.Status = OrderStatusCancelled
}

// Crosses reports whether this incoming order can execute against a resting
// order at price on the opposite side.
func (o *Order) Crosses(price decimal.Decimal) bool {
	if o.Type == OrderTypeMarket {
		return true
	}
	if o.Side == SideBid {
		return price.LessThanOrEqual(o.Price)
	}
	return price.GreaterThanOrEqual(o.Price)
}
