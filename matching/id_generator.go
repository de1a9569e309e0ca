package matching

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// IDGenerator generates unique IDs for trades and orders
// Performance optimization:
//   - Uses strings.Builder + sync.Pool to avoid allocations
//   - Uses atomic counter only (no timestamp needed - counter guarantees uniqueness)
//   - Uses strconv instead of fmt for number formatting
type IDGenerator struct {
	prefix      string
	counter     atomic.Uint64
	builderPool sync.Pool
}

// NewIDGenerator creates a new ID generator
func NewIDGenerator(prefix string) *IDGenerator {
	gen := &IDGenerator{
		prefix: prefix,
	}

	gen.builderPool = sync.Pool{
		New: func() any {
			b := &strings.Builder{}
			b.Grow(len(prefix) + 20) // prefix + max uint64 digits
			return b
		},
	}

	return gen
}

// Next generates the next unique ID
// Format: prefix + counter (e.g., "T1", "T2", "T3"...)
// Unique for the lifetime of the generator; never reused
func (g *IDGenerator) Next() string {
	count := g.counter.Add(1)

	b := g.builderPool.Get().(*strings.Builder)
	defer func() {
		b.Reset()
		g.builderPool.Put(b)
	}()

	b.WriteString(g.prefix)
	b.WriteString(strconv.FormatUint(count, 10))

	return b.String()
}

// Issued returns how many IDs have been handed out
func (g *IDGenerator) Issued() uint64 {
	return g.counter.Load()
}
