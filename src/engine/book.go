package engine

import (
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// priceLevel groups resting orders at an identical price. The slice is
// FIFO: earliest arrival first, which is what makes time priority hold
// within a level.
type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

func (pl *priceLevel) totalRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, o := range pl.orders {
		total = total.Add(o.Remaining())
	}
	return total
}

type bidLevel struct {
	level *priceLevel
}

func (b *bidLevel) Less(than btree.Item) bool {
	return b.level.price.GreaterThan(than.(*bidLevel).level.price)
}

type askLevel struct {
	level *priceLevel
}

func (a *askLevel) Less(than btree.Item) bool {
	return a.level.price.LessThan(than.(*askLevel).level.price)
}

// Level is one aggregated price level of a snapshot.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"qty"`
}

// Snapshot is the externally consumed book view: up to depth aggregated
// levels per side, best-to-worst. Decimals marshal as quoted strings, so
// no binary floats ever cross the wire.
type Snapshot struct {
	Symbol    string  `json:"symbol"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	Timestamp int64   `json:"ts"`
}

// Book holds the two ranked sides of resting orders for one symbol. Both
// trees order best-first, so Min() is always the top of the side.
//
// Book is not safe for concurrent use; the owning market serializes all
// access (see Exchange).
type Book struct {
	symbol string
	bids   *btree.BTree
	asks   *btree.BTree
	orders map[string]*Order
}

func NewBook(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   btree.New(32),
		asks:   btree.New(32),
		orders: make(map[string]*Order),
	}
}

func (b *Book) probe(side Side, price decimal.Decimal) btree.Item {
	if side == SideBuy {
		return &bidLevel{level: &priceLevel{price: price}}
	}
	return &askLevel{level: &priceLevel{price: price}}
}

func (b *Book) tree(side Side) *btree.BTree {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

func levelOf(item btree.Item) *priceLevel {
	switch it := item.(type) {
	case *bidLevel:
		return it.level
	case *askLevel:
		return it.level
	default:
		return nil
	}
}

// Insert adds a non-terminal order to its side, appended behind any
// earlier arrivals at the same price.
func (b *Book) Insert(o *Order) {
	tree := b.tree(o.Side)
	item := tree.Get(b.probe(o.Side, o.Price))
	if item == nil {
		pl := &priceLevel{price: o.Price}
		if o.Side == SideBuy {
			item = &bidLevel{level: pl}
		} else {
			item = &askLevel{level: pl}
		}
		tree.ReplaceOrInsert(item)
	}
	pl := levelOf(item)
	pl.orders = append(pl.orders, o)
	b.orders[o.ID] = o
}

// PeekBest returns the price-time priority winner on the given side, or
// nil if the side is empty. No mutation.
func (b *Book) PeekBest(side Side) *Order {
	item := b.tree(side).Min()
	if item == nil {
		return nil
	}
	pl := levelOf(item)
	if len(pl.orders) == 0 {
		return nil
	}
	return pl.orders[0]
}

// BestBid returns the highest resting bid price, if any.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	if o := b.PeekBest(SideBuy); o != nil {
		return o.Price, true
	}
	return decimal.Zero, false
}

// BestAsk returns the lowest resting ask price, if any.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	if o := b.PeekBest(SideSell); o != nil {
		return o.Price, true
	}
	return decimal.Zero, false
}

// Remove takes an order off the book. It reports whether the order was
// resting; a miss is a silent no-op so cancel-vs-fill races never surface
// as errors here.
func (b *Book) Remove(orderID string) bool {
	o, ok := b.orders[orderID]
	if !ok {
		return false
	}

	tree := b.tree(o.Side)
	probe := b.probe(o.Side, o.Price)
	item := tree.Get(probe)
	if item == nil {
		// edge case: keep the id index untouched so both structures stay
		// consistent when the level is missing
		return false
	}
	delete(b.orders, orderID)
	pl := levelOf(item)
	for i, rest := range pl.orders {
		if rest.ID == orderID {
			pl.orders = append(pl.orders[:i], pl.orders[i+1:]...)
			break
		}
	}
	// edge case: drop the level once its queue empties
	if len(pl.orders) == 0 {
		tree.Delete(probe)
	}
	return true
}

// Get looks up a resting order by id.
func (b *Book) Get(orderID string) (*Order, bool) {
	o, ok := b.orders[orderID]
	return o, ok
}

// Len is the number of resting orders across both sides.
func (b *Book) Len() int {
	return len(b.orders)
}

// SnapshotLevels aggregates remaining quantity per price, up to depth
// levels per side, best-to-worst. Levels that aggregate to zero are
// omitted.
func (b *Book) SnapshotLevels(depth int) Snapshot {
	snap := Snapshot{
		Symbol:    b.symbol,
		Bids:      make([]Level, 0, depth),
		Asks:      make([]Level, 0, depth),
		Timestamp: time.Now().UnixMilli(),
	}

	collect := func(tree *btree.BTree, out *[]Level) {
		tree.Ascend(func(item btree.Item) bool {
			if len(*out) >= depth {
				return false
			}
			pl := levelOf(item)
			total := pl.totalRemaining()
			if total.IsPositive() {
				*out = append(*out, Level{Price: pl.price, Quantity: total})
			}
			return true
		})
	}

	collect(b.bids, &snap.Bids)
	collect(b.asks, &snap.Asks)
	return snap
}

// OpenOrdersForUser returns the user's resting orders on this book.
func (b *Book) OpenOrdersForUser(userID string) []Order {
	var out []Order
	for _, o := range b.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out
}
