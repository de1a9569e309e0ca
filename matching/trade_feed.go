package matching

import (
	"context"
	"sync"

	"sim-exchange/domain"

	"github.com/pkg/errors"
)

// ErrFeedClosed is returned by a subscription once the feed is closed and fully read
var ErrFeedClosed = errors.New("trade feed closed")

// TradeFeed is the append-only, ordered log of every trade the engine produced.
// The engine appends; any number of subscribers read at their own pace through a cursor.
// Readers never block the engine and never change what other readers see.
type TradeFeed struct {
	mu     sync.RWMutex
	trades []domain.Trade
	wake   chan struct{} // closed and replaced on every append
	closed bool
}

// NewTradeFeed creates an empty feed
func NewTradeFeed() *TradeFeed {
	return &TradeFeed{
		wake: make(chan struct{}),
	}
}

// Publish appends trades in order and assigns their sequence numbers.
// Publishing to a closed feed drops the trades.
func (f *TradeFeed) Publish(trades ...domain.Trade) []domain.Trade {
	if len(trades) == 0 {
		return trades
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return trades
	}

	for i := range trades {
		trades[i].Seq = uint64(len(f.trades)) + 1
		f.trades = append(f.trades, trades[i])
	}
	close(f.wake)
	f.wake = make(chan struct{})
	return trades
}

// Len returns the number of trades published so far
func (f *TradeFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.trades)
}

// Since returns a copy of the trades with Seq > seq
func (f *TradeFeed) Since(seq uint64) []domain.Trade {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if seq >= uint64(len(f.trades)) {
		return nil
	}
	out := make([]domain.Trade, len(f.trades)-int(seq))
	copy(out, f.trades[seq:])
	return out
}

// Close wakes blocked subscribers. They drain what was published, then get ErrFeedClosed.
func (f *TradeFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.wake)
}

// Subscribe returns a reader positioned after trade seq (0 reads from the start)
func (f *TradeFeed) Subscribe(seq uint64) *Subscription {
	return &Subscription{feed: f, next: seq}
}

// Subscription reads the feed in order. It is not safe for concurrent use;
// give each consumer its own subscription.
type Subscription struct {
	feed *TradeFeed
	next uint64 // number of trades already consumed
}

// TryNext returns the next trade without blocking
func (s *Subscription) TryNext() (domain.Trade, bool) {
	s.feed.mu.RLock()
	defer s.feed.mu.RUnlock()
	if s.next >= uint64(len(s.feed.trades)) {
		return domain.Trade{}, false
	}
	t := s.feed.trades[s.next]
	s.next++
	return t, true
}

// Next blocks until a trade is available, ctx is done, or the feed is closed and drained
func (s *Subscription) Next(ctx context.Context) (domain.Trade, error) {
	for {
		s.feed.mu.RLock()
		if s.next < uint64(len(s.feed.trades)) {
			t := s.feed.trades[s.next]
			s.next++
			s.feed.mu.RUnlock()
			return t, nil
		}
		closed := s.feed.closed
		wake := s.feed.wake
		s.feed.mu.RUnlock()

		if closed {
			return domain.Trade{}, ErrFeedClosed
		}

		select {
		case <-ctx.Done():
			return domain.Trade{}, ctx.Err()
		case <-wake:
		}
	}
}

// Position returns the sequence number of the last trade consumed
func (s *Subscription) Position() uint64 {
	return s.next
}
