package orderbook

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceIndexOrdering(t *testing.T) {
	bids := NewPriceIndex(HigherFirst)
	asks := NewPriceIndex(LowerFirst)
	for _, p := range []string{"100", "102", "99.5", "101"} {
		bids.Insert(dec(p))
		asks.Insert(dec(p))
	}

	best, ok := bids.Best()
	require.True(t, ok)
	assert.True(t, best.Equal(dec("102")))

	best, ok = asks.Best()
	require.True(t, ok)
	assert.True(t, best.Equal(dec("99.5")))

	assert.Equal(t, []string{"102", "101", "100"}, strs(bids.Top(3)))
	assert.Equal(t, []string{"99.5", "100", "101", "102"}, strs(asks.Top(10)))
}

func TestPriceIndexRemoveArbitrary(t *testing.T) {
	x := NewPriceIndex(LowerFirst)
	for _, p := range []string{"5", "3", "4", "1", "2"} {
		x.Insert(dec(p))
	}

	assert.True(t, x.Remove(dec("3")))
	assert.False(t, x.Remove(dec("3")))
	assert.False(t, x.Contains(dec("3")))
	assert.Equal(t, 4, x.Len())

	assert.True(t, x.Remove(dec("1")))
	best, _ := x.Best()
	assert.True(t, best.Equal(dec("2")))

	assert.Equal(t, []string{"2", "4", "5"}, strs(x.Top(3)))
}

func TestPriceIndexReviveStalePrice(t *testing.T) {
	x := NewPriceIndex(HigherFirst)
	x.Insert(dec("10"))
	x.Insert(dec("5"))

	// 5 becomes stale but stays buried under 10
	x.Remove(dec("5"))
	x.Insert(dec("5.0"))
	assert.Equal(t, 2, x.Len())

	x.Remove(dec("10"))
	best, ok := x.Best()
	require.True(t, ok)
	assert.True(t, best.Equal(dec("5")))

	x.Remove(dec("5"))
	_, ok = x.Best()
	assert.False(t, ok)
	assert.True(t, x.IsEmpty())
}

func TestPriceIndexDuplicateInsert(t *testing.T) {
	x := NewPriceIndex(LowerFirst)
	x.Insert(dec("7"))
	x.Insert(dec("7.00"))
	assert.Equal(t, 1, x.Len())
	assert.Len(t, x.Top(5), 1)
}

// TestPriceIndexMatchesSortedReference drives random inserts and removals
// through the index and a sorted reference set.
func TestPriceIndexMatchesSortedReference(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	x := NewPriceIndex(HigherFirst)
	ref := map[int64]bool{}

	for i := 0; i < 5000; i++ {
		p := r.Int63n(300) + 1
		if r.Intn(3) == 0 {
			assert.Equal(t, ref[p], x.Remove(decimal.NewFromInt(p)))
			delete(ref, p)
		} else {
			x.Insert(decimal.NewFromInt(p))
			ref[p] = true
		}

		require.Equal(t, len(ref), x.Len())
		if len(ref) == 0 {
			_, ok := x.Best()
			require.False(t, ok)
			continue
		}
		var max int64
		for k := range ref {
			if k > max {
				max = k
			}
		}
		best, ok := x.Best()
		require.True(t, ok)
		require.True(t, best.Equal(decimal.NewFromInt(max)), "step %d: best %s, want %d", i, best, max)
	}

	keys := make([]int64, 0, len(ref))
	for k := range ref {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	want := make([]string, len(keys))
	for i, k := range keys {
		want[i] = fmt.Sprint(k)
	}
	assert.Equal(t, want, strs(x.Top(len(keys))))
}

func TestPriceIndexClear(t *testing.T) {
	x := NewPriceIndex(LowerFirst)
	x.Insert(dec("1"))
	x.Clear()
	assert.True(t, x.IsEmpty())
	assert.Nil(t, x.Top(3))
}

func strs(prices []decimal.Decimal) []string {
	out := make([]string, len(prices))
	for i, p := range prices {
		out[i] = p.String()
	}
	return out
}
