package matching

import (
	"context"
	"runtime"
	"sync"

	"sim-exchange/domain"
	"sim-exchange/orderbook"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrExchangeStopped is returned by calls made after Stop
var ErrExchangeStopped = errors.New("exchange stopped")

// command is one unit of work for the matching goroutine
type command struct {
	run  func(e *Engine)
	done chan struct{}
}

// Exchange is the single logical queue in front of an Engine.
// Architecture:
//   - Any number of producers call Submit/Cancel/Depth concurrently
//   - Calls become commands on one channel, consumed by one goroutine
//   - That goroutine runs with runtime.LockOSThread() and executes each command to completion,
//     so no order is ever touched by two submissions at once and depth reads are never torn
//
// The context passed to a call bounds admission only: once the command is queued,
// it runs to completion and the caller gets its result.
type Exchange struct {
	engine   *Engine
	commands chan command
	stop     chan struct{}
	exited   chan struct{}
	logger   *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewExchange wraps engine. queueSize bounds the number of admitted, not yet executed commands.
func NewExchange(engine *Engine, queueSize int) *Exchange {
	if queueSize < 0 {
		queueSize = 0
	}
	return &Exchange{
		engine:   engine,
		commands: make(chan command, queueSize),
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
		logger:   engine.logger,
	}
}

// Start starts the matching loop in a dedicated goroutine
func (x *Exchange) Start() {
	x.startOnce.Do(func() {
		go x.loop()
	})
}

func (x *Exchange) loop() {
	// Lock this goroutine to an OS thread to reduce context switches
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(x.exited)

	x.logger.Info("exchange started")
	for {
		select {
		case cmd := <-x.commands:
			x.execute(cmd)
		case <-x.stop:
			// finish what was admitted before the stop
			for {
				select {
				case cmd := <-x.commands:
					x.execute(cmd)
				default:
					x.logger.Info("exchange stopped", zap.Uint64("trades", uint64(x.engine.feed.Len())))
					return
				}
			}
		}
	}
}

func (x *Exchange) execute(cmd command) {
	cmd.run(x.engine)
	close(cmd.done)
}

// Stop stops the matching loop, waits for it to exit and closes the trade feed.
// Safe to call more than once, and before Start.
func (x *Exchange) Stop() {
	x.stopOnce.Do(func() {
		close(x.stop)
		x.startOnce.Do(func() {
			close(x.exited)
		})
		<-x.exited
		x.engine.feed.Close()
	})
}

func (x *Exchange) do(ctx context.Context, fn func(e *Engine)) error {
	select {
	case <-x.stop:
		return ErrExchangeStopped
	default:
	}

	cmd := command{run: fn, done: make(chan struct{})}
	select {
	case x.commands <- cmd:
	case <-x.stop:
		return ErrExchangeStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-x.exited:
		// the loop may have run the command just before exiting
		select {
		case <-cmd.done:
			return nil
		default:
			return ErrExchangeStopped
		}
	}
}

// Submit queues an order and returns its result once matched
func (x *Exchange) Submit(ctx context.Context, req OrderRequest) (SubmitResult, error) {
	var (
		res SubmitResult
		err error
	)
	if qerr := x.do(ctx, func(e *Engine) { res, err = e.Submit(req) }); qerr != nil {
		return SubmitResult{}, qerr
	}
	return res, err
}

// Cancel removes a resting order. A cancel that loses the race against a fill reports ErrNotFound.
func (x *Exchange) Cancel(ctx context.Context, orderID string) error {
	var err error
	if qerr := x.do(ctx, func(e *Engine) { err = e.Cancel(orderID) }); qerr != nil {
		return qerr
	}
	return err
}

// Depth returns a point-in-time copy of the top n levels per side
func (x *Exchange) Depth(ctx context.Context, n int) (orderbook.Depth, error) {
	var d orderbook.Depth
	err := x.do(ctx, func(e *Engine) { d = e.Depth(n) })
	return d, err
}

// Order returns a copy of a resting order
func (x *Exchange) Order(ctx context.Context, orderID string) (domain.Order, bool, error) {
	var (
		o  domain.Order
		ok bool
	)
	err := x.do(ctx, func(e *Engine) { o, ok = e.Order(orderID) })
	return o, ok, err
}

// Stats returns the engine counters
func (x *Exchange) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := x.do(ctx, func(e *Engine) { s = e.Stats() })
	return s, err
}

// Validate runs the full book consistency check inside the matching loop
func (x *Exchange) Validate(ctx context.Context) error {
	var err error
	if qerr := x.do(ctx, func(e *Engine) { err = e.Validate() }); qerr != nil {
		return qerr
	}
	return err
}

// Reset empties the book and clears a halted engine
func (x *Exchange) Reset(ctx context.Context) error {
	return x.do(ctx, func(e *Engine) { e.Reset() })
}

// Feed returns the trade feed; it is safe to read from any goroutine
func (x *Exchange) Feed() *TradeFeed {
	return x.engine.feed
}

// Session returns the engine session ID
func (x *Exchange) Session() string {
	return x.engine.session
}
