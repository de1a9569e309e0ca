package orderbook

import (
	"errors"
	"fmt"
	"testing"

	"sim-exchange/domain"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testTS int64

func limit(t testing.TB, id string, side domain.Side, price, size string) *domain.Order {
	t.Helper()
	testTS++
	o, err := domain.NewLimitOrder(id, "user-"+id, side, dec(price), dec(size), testTS)
	if err != nil {
		t.Fatalf("new order %s: %v", id, err)
	}
	return o
}

func mustInsert(t testing.TB, ob *OrderBook, o *domain.Order) {
	t.Helper()
	if err := ob.InsertResting(o); err != nil {
		t.Fatalf("insert %s: %v", o.ID, err)
	}
}

// TestAddOrder checks best prices after inserting on both sides
func TestAddOrder(t *testing.T) {
	ob := NewOrderBook(16)

	mustInsert(t, ob, limit(t, "sell1", domain.SideAsk, "50000", "1"))
	ask, ok := ob.BestAsk()
	if !ok || !ask.Price.Equal(dec("50000")) {
		t.Errorf("expected best ask 50000, got %v (ok=%v)", ask.Price, ok)
	}

	mustInsert(t, ob, limit(t, "buy1", domain.SideBid, "49000", "1"))
	bid, ok := ob.BestBid()
	if !ok || !bid.Price.Equal(dec("49000")) {
		t.Errorf("expected best bid 49000, got %v (ok=%v)", bid.Price, ok)
	}

	if err := ob.Validate(); err != nil {
		t.Errorf("unexpected violation: %v", err)
	}
}

// TestCancelOrder checks that removal by ID empties the level and the side
func TestCancelOrder(t *testing.T) {
	ob := NewOrderBook(16)
	mustInsert(t, ob, limit(t, "order1", domain.SideAsk, "50000", "1"))

	if _, err := ob.RemoveByID("order1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := ob.BestAsk(); ok {
		t.Error("expected asks to be empty after cancel")
	}
	if ob.LevelCount(domain.SideAsk) != 0 {
		t.Errorf("expected no ask levels, got %d", ob.LevelCount(domain.SideAsk))
	}

	_, err := ob.RemoveByID("order1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
}

// TestPricePriority checks that the lowest ask wins regardless of arrival
func TestPricePriority(t *testing.T) {
	ob := NewOrderBook(16)

	mustInsert(t, ob, limit(t, "sell1", domain.SideAsk, "51000", "1"))
	mustInsert(t, ob, limit(t, "sell2", domain.SideAsk, "50000", "1")) // best
	mustInsert(t, ob, limit(t, "sell3", domain.SideAsk, "52000", "1"))

	ask, _ := ob.BestAsk()
	if !ask.Price.Equal(dec("50000")) {
		t.Errorf("expected best ask 50000, got %s", ask.Price)
	}
	head, _ := ob.Head(domain.SideAsk)
	if head.ID != "sell2" {
		t.Errorf("expected head sell2, got %s", head.ID)
	}
}

// TestGetLevel checks level lookup and aggregate volume
func TestGetLevel(t *testing.T) {
	ob := NewOrderBook(16)
	mustInsert(t, ob, limit(t, "order1", domain.SideAsk, "50000", "1.5"))
	mustInsert(t, ob, limit(t, "order2", domain.SideAsk, "50000.00", "2.25"))

	level, ok := ob.Level(domain.SideAsk, dec("50000"))
	if !ok {
		t.Fatal("expected level to exist")
	}
	if !level.Price().Equal(dec("50000")) {
		t.Errorf("expected price 50000, got %s", level.Price())
	}
	if !level.Volume().Equal(dec("3.75")) {
		t.Errorf("expected volume 3.75, got %s", level.Volume())
	}
	if level.Len() != 2 {
		t.Errorf("expected 2 orders, got %d", level.Len())
	}
}

// TestGetDepth checks truncation and ordering of the snapshot
func TestGetDepth(t *testing.T) {
	ob := NewOrderBook(16)
	mustInsert(t, ob, limit(t, "sell1", domain.SideAsk, "50000", "1"))
	mustInsert(t, ob, limit(t, "sell2", domain.SideAsk, "50100", "1"))
	mustInsert(t, ob, limit(t, "sell3", domain.SideAsk, "50200", "1"))

	depth := ob.DepthSnapshot(2)
	if len(depth.Asks) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(depth.Asks))
	}
	if !depth.Asks[0].Price.Equal(dec("50000")) {
		t.Errorf("expected first level at 50000, got %s", depth.Asks[0].Price)
	}
	if !depth.Asks[1].Price.Equal(dec("50100")) {
		t.Errorf("expected second level at 50100, got %s", depth.Asks[1].Price)
	}
	if len(depth.Bids) != 0 {
		t.Errorf("expected no bids, got %d", len(depth.Bids))
	}
}

// TestFIFOOrder checks time priority inside one level
func TestFIFOOrder(t *testing.T) {
	ob := NewOrderBook(16)
	mustInsert(t, ob, limit(t, "sell1", domain.SideAsk, "50000", "0.5"))
	mustInsert(t, ob, limit(t, "sell2", domain.SideAsk, "50000", "0.5"))
	mustInsert(t, ob, limit(t, "sell3", domain.SideAsk, "50000", "0.5"))

	level, ok := ob.Level(domain.SideAsk, dec("50000"))
	if !ok {
		t.Fatal("expected level to exist")
	}

	orders := level.Orders()
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	for i, want := range []string{"sell1", "sell2", "sell3"} {
		if orders[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, orders[i].ID)
		}
	}

	// removing the middle order keeps the others in arrival order
	if _, err := ob.RemoveByID("sell2"); err != nil {
		t.Fatal(err)
	}
	orders = level.Orders()
	if len(orders) != 2 || orders[0].ID != "sell1" || orders[1].ID != "sell3" {
		t.Errorf("unexpected queue after middle removal: %v", ids(orders))
	}
}

// TestBidsDepth checks that bids come out highest first
func TestBidsDepth(t *testing.T) {
	ob := NewOrderBook(16)
	mustInsert(t, ob, limit(t, "buy1", domain.SideBid, "49000", "1"))
	mustInsert(t, ob, limit(t, "buy2", domain.SideBid, "50000", "1")) // highest
	mustInsert(t, ob, limit(t, "buy3", domain.SideBid, "48000", "1"))

	bid, _ := ob.BestBid()
	if !bid.Price.Equal(dec("50000")) {
		t.Errorf("expected best bid 50000, got %s", bid.Price)
	}

	depth := ob.DepthSnapshot(3)
	if len(depth.Bids) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(depth.Bids))
	}
	for i, want := range []string{"50000", "49000", "48000"} {
		if !depth.Bids[i].Price.Equal(dec(want)) {
			t.Errorf("level %d: expected %s, got %s", i, want, depth.Bids[i].Price)
		}
		if !depth.Bids[i].Volume.Equal(dec("1")) {
			t.Errorf("level %d: expected volume 1, got %s", i, depth.Bids[i].Volume)
		}
	}
}

// TestAsksDepth checks that asks come out lowest first
func TestAsksDepth(t *testing.T) {
	ob := NewOrderBook(16)
	mustInsert(t, ob, limit(t, "sell1", domain.SideAsk, "51000", "1"))
	mustInsert(t, ob, limit(t, "sell2", domain.SideAsk, "50000", "1")) // lowest
	mustInsert(t, ob, limit(t, "sell3", domain.SideAsk, "52000", "1"))

	depth := ob.DepthSnapshot(3)
	if len(depth.Asks) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(depth.Asks))
	}
	for i, want := range []string{"50000", "51000", "52000"} {
		if !depth.Asks[i].Price.Equal(dec(want)) {
			t.Errorf("level %d: expected %s, got %s", i, want, depth.Asks[i].Price)
		}
	}
}

// TestDepthSnapshotIsPointInTime checks that later mutations do not leak into a snapshot
func TestDepthSnapshotIsPointInTime(t *testing.T) {
	ob := NewOrderBook(16)
	o := limit(t, "sell1", domain.SideAsk, "100", "10")
	mustInsert(t, ob, o)

	snap := ob.DepthSnapshot(5)
	if err := ob.Fill(o, dec("4")); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, ob, limit(t, "sell2", domain.SideAsk, "99", "1"))

	if len(snap.Asks) != 1 || !snap.Asks[0].Volume.Equal(dec("10")) {
		t.Errorf("snapshot changed after mutation: %+v", snap.Asks)
	}
}

// TestFillUpdatesLevelVolume checks partial and full fills of resting orders
func TestFillUpdatesLevelVolume(t *testing.T) {
	ob := NewOrderBook(16)
	first := limit(t, "a1", domain.SideAsk, "101", "10")
	second := limit(t, "a2", domain.SideAsk, "101", "5")
	mustInsert(t, ob, first)
	mustInsert(t, ob, second)

	if err := ob.Fill(first, dec("10")); err != nil {
		t.Fatal(err)
	}
	if first.Status != domain.OrderStatusFilled {
		t.Errorf("expected first filled, got %s", first.Status)
	}
	if _, ok := ob.Order("a1"); ok {
		t.Error("filled order still resting")
	}

	if err := ob.Fill(second, dec("2")); err != nil {
		t.Fatal(err)
	}
	ask, _ := ob.BestAsk()
	if !ask.Volume.Equal(dec("3")) || ask.Orders != 1 {
		t.Errorf("expected 3 across 1 order, got %s across %d", ask.Volume, ask.Orders)
	}
	if err := ob.Validate(); err != nil {
		t.Errorf("unexpected violation: %v", err)
	}

	if err := ob.Fill(second, dec("4")); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("expected overfill to be rejected, got %v", err)
	}
}

// TestInsertRestingRejects checks the guards on resting insertion
func TestInsertRestingRejects(t *testing.T) {
	ob := NewOrderBook(16)
	o := limit(t, "x", domain.SideBid, "10", "1")
	mustInsert(t, ob, o)

	if err := ob.InsertResting(o); !errors.Is(err, domain.ErrDuplicateOrder) {
		t.Errorf("expected ErrDuplicateOrder, got %v", err)
	}

	mkt, _ := domain.NewMarketOrder("m", "u", domain.SideBid, dec("1"), 99)
	if err := ob.InsertResting(mkt); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("expected market order to be refused, got %v", err)
	}
}

// TestValidateDetectsCrossedBook checks that the invariant check reports diagnostics
func TestValidateDetectsCrossedBook(t *testing.T) {
	ob := NewOrderBook(16)
	mustInsert(t, ob, limit(t, "b", domain.SideBid, "101", "1"))
	mustInsert(t, ob, limit(t, "a", domain.SideAsk, "100", "1"))

	err := ob.CheckTop()
	var v *domain.InvariantViolation
	if !errors.As(err, &v) {
		t.Fatalf("expected InvariantViolation, got %v", err)
	}
	if v.Reason != "crossed book" || v.BestBid == "-" || v.BestAsk == "-" {
		t.Errorf("unexpected diagnostics: %+v", v)
	}
	if !errors.Is(err, domain.ErrBookInvariant) {
		t.Error("expected ErrBookInvariant in chain")
	}
}

// TestReset checks that reset empties the book and cancels what was resting
func TestReset(t *testing.T) {
	ob := NewOrderBook(16)
	o := limit(t, "b", domain.SideBid, "100", "1")
	mustInsert(t, ob, o)
	mustInsert(t, ob, limit(t, "a", domain.SideAsk, "101", "1"))

	ob.Reset()
	if ob.Len() != 0 || ob.LevelCount(domain.SideBid) != 0 || ob.LevelCount(domain.SideAsk) != 0 {
		t.Errorf("book not empty after reset")
	}
	if o.Status != domain.OrderStatusCancelled {
		t.Errorf("expected resting order cancelled, got %s", o.Status)
	}
	mustInsert(t, ob, limit(t, "b2", domain.SideBid, "100", "1"))
}

// TestManyLevelsChurn exercises lazy deletion with many level removals
func TestManyLevelsChurn(t *testing.T) {
	ob := NewOrderBook(16)
	for i := 0; i < 500; i++ {
		mustInsert(t, ob, limit(t, fmt.Sprintf("b%d", i), domain.SideBid, fmt.Sprintf("%d", 1000+i), "1"))
	}
	// remove from the worst end so stale entries sit deep in the heap
	for i := 0; i < 450; i++ {
		if _, err := ob.RemoveByID(fmt.Sprintf("b%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	bid, _ := ob.BestBid()
	if !bid.Price.Equal(dec("1499")) {
		t.Errorf("expected best bid 1499, got %s", bid.Price)
	}
	if ob.LevelCount(domain.SideBid) != 50 {
		t.Errorf("expected 50 levels, got %d", ob.LevelCount(domain.SideBid))
	}
	if err := ob.Validate(); err != nil {
		t.Errorf("unexpected violation: %v", err)
	}
}

func ids(orders []*domain.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}
