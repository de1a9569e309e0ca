package matching

import (
	"sim-exchange/domain"
	"sim-exchange/orderbook"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderRequest is what a collaborator submits. The engine assigns ID and timestamp.
type OrderRequest struct {
	Owner string
	Type  domain.OrderType
	Side  domain.Side
	Price decimal.Decimal // ignored for market orders
	Size  decimal.Decimal
}

// SubmitResult reports the outcome of one submission.
// Order and Trades are copies; later book activity never changes them.
type SubmitResult struct {
	Order   domain.Order
	Trades  []domain.Trade
	Rested  bool            // the limit remainder entered the book
	Expired decimal.Decimal // market remainder discarded for lack of liquidity
}

// Stats is a snapshot of engine counters
type Stats struct {
	Session   string
	Submitted uint64
	Rejected  uint64
	Cancelled uint64
	Expired   uint64
	Trades    uint64
	Volume    decimal.Decimal
	Resting   int
	BidLevels int
	AskLevels int
	Faulted   bool
}

type options struct {
	clock         Clock
	logger        *zap.Logger
	feed          *TradeFeed
	orderPrefix   string
	tradePrefix   string
	arenaCapacity int
}

// Option configures an Engine
type Option func(*options)

// WithClock replaces the default monotonic wall clock
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTradeFeed publishes trades to an existing feed
func WithTradeFeed(f *TradeFeed) Option {
	return func(o *options) { o.feed = f }
}

// WithIDPrefixes sets the prefixes of generated order and trade IDs
func WithIDPrefixes(order, trade string) Option {
	return func(o *options) {
		o.orderPrefix = order
		o.tradePrefix = trade
	}
}

// WithArenaCapacity pre-sizes the book's queue storage
func WithArenaCapacity(n int) Option {
	return func(o *options) { o.arenaCapacity = n }
}

// Engine matches orders for ONE instrument under price-time priority.
// Not safe for concurrent use: wrap it in an Exchange to serialize producers.
//
// Each Submit runs to completion before the next starts:
//  1. validate and stamp the order
//  2. execute against the opposite side while it crosses, best price first, FIFO within a price
//  3. rest the limit remainder / expire the market remainder
//  4. check the top of book, then publish the trades
type Engine struct {
	session  string
	book     *orderbook.OrderBook
	clock    Clock
	orderIDs *IDGenerator
	tradeIDs *IDGenerator
	feed     *TradeFeed
	logger   *zap.Logger

	fault error // set on invariant violation, cleared by Reset
	stats Stats
}

// NewEngine creates an engine with an empty book
func NewEngine(opts ...Option) *Engine {
	o := options{
		orderPrefix:   "O",
		tradePrefix:   "T",
		arenaCapacity: 4096,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = NewMonotonicClock()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.feed == nil {
		o.feed = NewTradeFeed()
	}

	session := uuid.NewString()
	return &Engine{
		session:  session,
		book:     orderbook.NewOrderBook(o.arenaCapacity),
		clock:    o.clock,
		orderIDs: NewIDGenerator(o.orderPrefix),
		tradeIDs: NewIDGenerator(o.tradePrefix),
		feed:     o.feed,
		logger:   o.logger.With(zap.String("session", session)),
		stats:    Stats{Session: session, Volume: decimal.Zero},
	}
}

// Session returns the unique ID of this engine instance
func (e *Engine) Session() string {
	return e.session
}

// Feed returns the trade feed the engine publishes to
func (e *Engine) Feed() *TradeFeed {
	return e.feed
}

// Submit validates, matches and possibly rests one order.
// Invalid input returns ErrInvalidOrder and leaves the book untouched.
func (e *Engine) Submit(req OrderRequest) (SubmitResult, error) {
	if e.fault != nil {
		return SubmitResult{}, e.fault
	}

	order, err := domain.NewOrder(e.orderIDs.Next(), req.Owner, req.Type, req.Side, req.Price, req.Size, e.clock.Now())
	if err != nil {
		e.stats.Rejected++
		e.logger.Debug("order rejected", zap.String("owner", req.Owner), zap.Error(err))
		return SubmitResult{}, err
	}
	e.stats.Submitted++

	trades, err := e.match(order)
	if err != nil {
		return e.halt(order, trades, err)
	}

	result := SubmitResult{Expired: decimal.Zero}
	if !order.IsFilled() {
		switch order.Type {
		case domain.OrderTypeLimit:
			if err := e.book.InsertResting(order); err != nil {
				return e.halt(order, trades, err)
			}
			result.Rested = true
			e.logger.Debug("order rested",
				zap.String("order_id", order.ID),
				zap.Stringer("side", order.Side),
				zap.Stringer("price", order.Price),
				zap.Stringer("remaining", order.Remaining),
			)
		case domain.OrderTypeMarket:
			order.Cancel()
			result.Expired = order.Remaining
			e.stats.Expired++
			e.logger.Info("market order remainder expired",
				zap.String("order_id", order.ID),
				zap.Stringer("side", order.Side),
				zap.Stringer("expired", order.Remaining),
				zap.Int("trades", len(trades)),
			)
		}
	}

	if err := e.book.CheckTop(); err != nil {
		return e.halt(order, trades, err)
	}

	result.Order = *order
	result.Trades = e.publish(trades)
	return result, nil
}

// match executes the incoming order against the opposite side
// Performance: O(1) per fill at an existing level, O(log n) when a level empties
func (e *Engine) match(taker *domain.Order) ([]domain.Trade, error) {
	var trades []domain.Trade
	opposite := taker.Side.Opposite()

	for !taker.IsFilled() {
		maker, ok := e.book.Head(opposite)
		if !ok || !taker.Crosses(maker.Price) {
			break
		}

		qty := decimal.Min(taker.Remaining, maker.Remaining)
		trade := domain.NewTrade(e.tradeIDs.Next(), maker, taker, qty, e.clock.Now())

		if err := e.book.Fill(maker, qty); err != nil {
			return trades, err
		}
		taker.Fill(qty)
		trades = append(trades, trade)

		e.logger.Debug("trade",
			zap.String("trade_id", trade.ID),
			zap.String("maker", maker.ID),
			zap.String("taker", taker.ID),
			zap.Stringer("price", trade.Price),
			zap.Stringer("size", qty),
		)
	}
	return trades, nil
}

func (e *Engine) publish(trades []domain.Trade) []domain.Trade {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		e.stats.Trades++
		e.stats.Volume = e.stats.Volume.Add(t.Size)
	}
	trades = e.feed.Publish(trades...)

	out := make([]domain.Trade, len(trades))
	copy(out, trades)
	return out
}

// halt faults the engine. Trades that already executed are still published:
// the fills they record were applied to the book.
func (e *Engine) halt(order *domain.Order, trades []domain.Trade, err error) (SubmitResult, error) {
	if !errors.Is(err, domain.ErrBookInvariant) {
		err = errors.Wrapf(domain.ErrBookInvariant, "submit %s: %v", order.ID, err)
	}
	e.fault = err

	fields := []zap.Field{
		zap.String("order_id", order.ID),
		zap.Int("trades", len(trades)),
		zap.Error(err),
	}
	var v *domain.InvariantViolation
	if errors.As(err, &v) {
		fields = append(fields,
			zap.String("best_bid", v.BestBid),
			zap.String("best_ask", v.BestAsk),
			zap.Strings("depth", v.Detail),
		)
	}
	e.logger.Error("book invariant violated, engine halted", fields...)

	return SubmitResult{Order: *order, Trades: e.publish(trades), Expired: decimal.Zero}, err
}

// Cancel removes a resting order. An order that already filled, was already
// cancelled or never existed reports ErrNotFound; repeating a cancel is harmless.
// Performance: O(1), O(log n) when the level empties
func (e *Engine) Cancel(orderID string) error {
	if e.fault != nil {
		return e.fault
	}

	order, err := e.book.RemoveByID(orderID)
	if err != nil {
		return err
	}
	order.Cancel()
	e.stats.Cancelled++
	e.logger.Debug("order cancelled",
		zap.String("order_id", orderID),
		zap.Stringer("remaining", order.Remaining),
	)
	return nil
}

// Depth returns up to n levels per side, best first
func (e *Engine) Depth(n int) orderbook.Depth {
	return e.book.DepthSnapshot(n)
}

// Order returns a copy of a resting order
func (e *Engine) Order(orderID string) (domain.Order, bool) {
	o, ok := e.book.Order(orderID)
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Stats returns the engine counters and book occupancy
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Resting = e.book.Len()
	s.BidLevels = e.book.LevelCount(domain.SideBid)
	s.AskLevels = e.book.LevelCount(domain.SideAsk)
	s.Faulted = e.fault != nil
	return s
}

// Validate runs the full consistency check over the book
func (e *Engine) Validate() error {
	return e.book.Validate()
}

// Err returns the invariant violation that halted the engine, if any
func (e *Engine) Err() error {
	return e.fault
}

// Reset empties the book and clears a fault. IDs, the clock and the trade feed carry on.
func (e *Engine) Reset() {
	dropped := e.book.Len()
	e.book.Reset()
	e.fault = nil
	e.logger.Info("engine reset", zap.Int("dropped_orders", dropped))
}
