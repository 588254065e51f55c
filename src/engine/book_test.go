package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testSeq uint64

func newTestOrder(user string, side Side, price, qty string) *Order {
	testSeq++
	return &Order{
		ID:       uuid.New().String(),
		UserID:   user,
		Symbol:   "AAPL",
		Side:     side,
		Price:    d(price),
		Quantity: d(qty),
		Filled:   decimal.Zero,
		Status:   StatusOpen,
		Seq:      testSeq,
	}
}

func TestBookPeekBestRanksByPrice(t *testing.T) {
	book := NewBook("AAPL")

	book.Insert(newTestOrder("a", SideBuy, "100.50", "10"))
	best := newTestOrder("b", SideBuy, "100.60", "20")
	book.Insert(best)
	book.Insert(newTestOrder("c", SideBuy, "100.40", "30"))

	got := book.PeekBest(SideBuy)
	if got == nil {
		t.Fatal("expected a best bid")
	}
	if got.ID != best.ID {
		t.Errorf("expected highest-priced bid to win, got price %s", got.Price)
	}

	book.Insert(newTestOrder("d", SideSell, "101.00", "10"))
	lowAsk := newTestOrder("e", SideSell, "100.90", "10")
	book.Insert(lowAsk)

	got = book.PeekBest(SideSell)
	if got == nil || got.ID != lowAsk.ID {
		t.Error("expected lowest-priced ask to win")
	}
}

func TestBookPeekBestFIFOWithinLevel(t *testing.T) {
	book := NewBook("AAPL")

	first := newTestOrder("a", SideSell, "50.00", "10")
	second := newTestOrder("b", SideSell, "50.00", "10")
	book.Insert(first)
	book.Insert(second)

	if got := book.PeekBest(SideSell); got.ID != first.ID {
		t.Error("earliest arrival at a price must have priority")
	}

	book.Remove(first.ID)
	if got := book.PeekBest(SideSell); got.ID != second.ID {
		t.Error("second arrival should be head after the first is removed")
	}
}

func TestBookRemove(t *testing.T) {
	book := NewBook("AAPL")

	o := newTestOrder("a", SideBuy, "100.00", "10")
	book.Insert(o)

	if !book.Remove(o.ID) {
		t.Error("expected removal of a resting order to report true")
	}
	if book.Remove(o.ID) {
		t.Error("expected repeat removal to be a silent no-op reporting false")
	}
	if book.Len() != 0 {
		t.Errorf("expected empty book, got %d resting orders", book.Len())
	}
	if _, ok := book.BestBid(); ok {
		t.Error("expected no best bid after the only level emptied")
	}
}

func TestSnapshotLevelsAggregation(t *testing.T) {
	book := NewBook("AAPL")

	book.Insert(newTestOrder("a", SideBuy, "100.00", "10"))
	book.Insert(newTestOrder("b", SideBuy, "100.00", "5"))
	book.Insert(newTestOrder("c", SideBuy, "99.50", "7"))
	book.Insert(newTestOrder("d", SideSell, "101.00", "3"))

	snap := book.SnapshotLevels(10)

	if len(snap.Bids) != 2 {
		t.Fatalf("expected 2 bid levels, got %d", len(snap.Bids))
	}
	if !snap.Bids[0].Price.Equal(d("100.00")) || !snap.Bids[0].Quantity.Equal(d("15")) {
		t.Errorf("expected best bid level 100.00 x 15, got %s x %s",
			snap.Bids[0].Price, snap.Bids[0].Quantity)
	}
	if !snap.Bids[1].Price.Equal(d("99.50")) {
		t.Errorf("expected second bid level 99.50, got %s", snap.Bids[1].Price)
	}
	if len(snap.Asks) != 1 || !snap.Asks[0].Quantity.Equal(d("3")) {
		t.Error("expected a single ask level of 3")
	}
}

func TestSnapshotLevelsDepthLimit(t *testing.T) {
	book := NewBook("AAPL")

	book.Insert(newTestOrder("a", SideBuy, "100", "1"))
	book.Insert(newTestOrder("a", SideBuy, "99", "1"))
	book.Insert(newTestOrder("a", SideBuy, "98", "1"))

	snap := book.SnapshotLevels(2)
	if len(snap.Bids) != 2 {
		t.Fatalf("expected depth-limited 2 levels, got %d", len(snap.Bids))
	}
	if !snap.Bids[0].Price.Equal(d("100")) || !snap.Bids[1].Price.Equal(d("99")) {
		t.Error("expected best-to-worst ordering after depth cut")
	}
}

func TestSnapshotOmitsZeroQuantityLevels(t *testing.T) {
	book := NewBook("AAPL")

	o := newTestOrder("a", SideSell, "101.00", "4")
	book.Insert(o)
	o.fill(d("4")) // fully filled but not yet removed

	snap := book.SnapshotLevels(10)
	if len(snap.Asks) != 0 {
		t.Errorf("expected zero-quantity level to be omitted, got %d levels", len(snap.Asks))
	}
}

func TestBookEquivalentDecimalPricesShareALevel(t *testing.T) {
	book := NewBook("AAPL")

	// 100.0 and 100.00 are the same price and must aggregate together
	book.Insert(newTestOrder("a", SideBuy, "100.0", "1"))
	book.Insert(newTestOrder("b", SideBuy, "100.00", "2"))

	snap := book.SnapshotLevels(10)
	if len(snap.Bids) != 1 {
		t.Fatalf("expected a single aggregated level, got %d", len(snap.Bids))
	}
	if !snap.Bids[0].Quantity.Equal(d("3")) {
		t.Errorf("expected aggregate quantity 3, got %s", snap.Bids[0].Quantity)
	}
}

func TestRemoveLeavesIndexIntactOnLevelMiss(t *testing.T) {
	book := NewBook("AAPL")
	o := newTestOrder("a", SideBuy, "100.00", "10")
	book.Insert(o)

	// force the level out from under the index
	book.tree(o.Side).Delete(book.probe(o.Side, o.Price))

	if book.Remove(o.ID) {
		t.Error("remove must report false when the level is gone")
	}
	if _, ok := book.Get(o.ID); !ok {
		t.Error("failed remove must not drop the order from the id index")
	}
}
