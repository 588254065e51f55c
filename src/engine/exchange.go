package engine

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Journal durably records fills and status changes. Implementations must
// not block: a match already returned to the caller is authoritative and
// a slow or failing journal never rolls it back.
type Journal interface {
	RecordTrade(t Trade)
	UpdateOrder(o Order)
}

// Broadcaster delivers a fresh snapshot to subscribers after every
// state-changing operation on a symbol. Fire-and-forget.
type Broadcaster interface {
	Broadcast(symbol string, snap Snapshot)
}

// FundsSource answers the optional affordability check before matching.
type FundsSource interface {
	Available(userID string) (decimal.Decimal, error)
}

const DefaultSnapshotDepth = 10

// market is one symbol's book behind its own lock: mutations on a symbol
// are serialized, different symbols never contend.
type market struct {
	mu   sync.Mutex
	book *Book
}

// Exchange is the order lifecycle manager: it owns the per-symbol book
// registry, validates submissions, runs the matching algorithm, and hands
// results to the journal and broadcaster collaborators.
type Exchange struct {
	mu       sync.RWMutex
	markets  map[string]*market
	resting  map[string]string // order id -> symbol, ids currently on a book
	symbols  map[string]struct{}
	seq      atomic.Uint64
	depth    int

	journal     Journal
	broadcaster Broadcaster
	funds       FundsSource
}

type Option func(*Exchange)

func WithJournal(j Journal) Option {
	return func(e *Exchange) { e.journal = j }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(e *Exchange) { e.broadcaster = b }
}

// WithFunds enables the affordability pre-check for BUY submissions.
func WithFunds(f FundsSource) Option {
	return func(e *Exchange) { e.funds = f }
}

func WithSnapshotDepth(depth int) Option {
	return func(e *Exchange) {
		if depth > 0 {
			e.depth = depth
		}
	}
}

// New builds an Exchange restricted to the given tradable symbols. An
// empty symbol list leaves the exchange open: books are then created
// lazily for any symbol.
func New(symbols []string, opts ...Option) *Exchange {
	e := &Exchange{
		markets: make(map[string]*market),
		resting: make(map[string]string),
		symbols: make(map[string]struct{}, len(symbols)),
		depth:   DefaultSnapshotDepth,
	}
	for _, s := range symbols {
		e.symbols[s] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exchange) tradable(symbol string) bool {
	if len(e.symbols) == 0 {
		return true
	}
	_, ok := e.symbols[symbol]
	return ok
}

// Symbols returns the configured tradable symbols.
func (e *Exchange) Symbols() []string {
	out := make([]string, 0, len(e.symbols))
	for s := range e.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (e *Exchange) market(symbol string) *market {
	e.mu.RLock()
	if m, ok := e.markets[symbol]; ok {
		e.mu.RUnlock()
		return m
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	// edge case: double-check after acquiring the write lock
	if m, ok := e.markets[symbol]; ok {
		return m
	}
	m := &market{book: NewBook(symbol)}
	e.markets[symbol] = m
	return m
}

func (e *Exchange) track(orderID, symbol string) {
	e.mu.Lock()
	e.resting[orderID] = symbol
	e.mu.Unlock()
}

func (e *Exchange) untrack(orderID string) {
	e.mu.Lock()
	delete(e.resting, orderID)
	e.mu.Unlock()
}

func (e *Exchange) lookup(orderID string) (string, bool) {
	e.mu.RLock()
	symbol, ok := e.resting[orderID]
	e.mu.RUnlock()
	return symbol, ok
}

func validateSubmission(userID, symbol string, side Side, price, qty decimal.Decimal) error {
	if userID == "" {
		return &ValidationError{Reason: "user id is required"}
	}
	if symbol == "" {
		return &ValidationError{Reason: "symbol is required"}
	}
	if side != SideBuy && side != SideSell {
		return &ValidationError{Reason: "side must be BUY or SELL"}
	}
	if !price.IsPositive() {
		return &ValidationError{Reason: "price must be positive"}
	}
	if !qty.IsPositive() {
		return &ValidationError{Reason: "quantity must be positive"}
	}
	return nil
}

// SubmitOrder validates, matches, and rests the remainder of a limit
// order. It returns the submitted order with fills applied, the trades
// generated, and a fresh snapshot. A rejected submission never touches
// the book.
func (e *Exchange) SubmitOrder(userID, symbol string, side Side, price, qty decimal.Decimal) (Order, []Trade, Snapshot, error) {
	if err := validateSubmission(userID, symbol, side, price, qty); err != nil {
		return Order{}, nil, Snapshot{}, err
	}
	if !e.tradable(symbol) {
		return Order{}, nil, Snapshot{}, &UnknownSymbolError{Symbol: symbol}
	}
	if e.funds != nil && side == SideBuy {
		available, err := e.funds.Available(userID)
		if err != nil {
			return Order{}, nil, Snapshot{}, &ValidationError{Reason: "balance lookup failed: " + err.Error()}
		}
		cost := price.Mul(qty)
		if available.LessThan(cost) {
			return Order{}, nil, Snapshot{}, &InsufficientFundsError{
				UserID:    userID,
				Required:  cost,
				Available: available,
			}
		}
	}

	m := e.market(symbol)
	m.mu.Lock()

	order := &Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Filled:    decimal.Zero,
		Status:    StatusOpen,
		Seq:       e.seq.Add(1),
		Timestamp: time.Now().UnixMilli(),
	}

	trades, makers := matchLimit(m.book, order)
	if order.Status == StatusOpen {
		// partial fills rest too: the unmatched remainder always posts
		m.book.Insert(order)
		e.track(order.ID, symbol)
	}
	for _, maker := range makers {
		if maker.Status == StatusFilled {
			e.untrack(maker.ID)
		}
	}
	snap := m.book.SnapshotLevels(e.depth)
	taker := *order

	// publish while still holding the lock: collaborators are non-blocking
	// by contract, and releasing first would let a later mutation's journal
	// upserts and snapshot overtake this one's
	e.publish(symbol, snap, append([]Order{taker}, makers...), trades)
	m.mu.Unlock()

	return taker, trades, snap, nil
}

// CancelOrder withdraws the remaining quantity of a resting order. A
// cancel that arrives after the order fully matched reports NotFoundError
// rather than silently succeeding.
func (e *Exchange) CancelOrder(userID, orderID string) (Order, error) {
	symbol, ok := e.lookup(orderID)
	if !ok {
		return Order{}, &NotFoundError{OrderID: orderID}
	}
	m := e.market(symbol)
	m.mu.Lock()

	o, ok := m.book.Get(orderID)
	if !ok {
		// edge case: lost the race to an in-flight match between lookup
		// and lock acquisition
		m.mu.Unlock()
		return Order{}, &NotFoundError{OrderID: orderID}
	}
	if o.UserID != userID {
		m.mu.Unlock()
		return Order{}, &AuthorizationError{OrderID: orderID, UserID: userID}
	}

	o.Status = StatusCancelled
	m.book.Remove(orderID)
	e.untrack(orderID)
	snap := m.book.SnapshotLevels(e.depth)
	cancelled := *o
	e.publish(symbol, snap, []Order{cancelled}, nil)
	m.mu.Unlock()

	return cancelled, nil
}

// Snapshot returns up to depth aggregated levels per side, atomically as
// of the call. depth <= 0 falls back to the configured default.
func (e *Exchange) Snapshot(symbol string, depth int) (Snapshot, error) {
	if !e.tradable(symbol) {
		return Snapshot{}, &UnknownSymbolError{Symbol: symbol}
	}
	if depth <= 0 {
		depth = e.depth
	}
	m := e.market(symbol)
	m.mu.Lock()
	snap := m.book.SnapshotLevels(depth)
	m.mu.Unlock()
	return snap, nil
}

// OpenOrders lists the user's resting orders across all symbols, newest
// first.
func (e *Exchange) OpenOrders(userID string) []Order {
	e.mu.RLock()
	markets := make([]*market, 0, len(e.markets))
	for _, m := range e.markets {
		markets = append(markets, m)
	}
	e.mu.RUnlock()

	var out []Order
	for _, m := range markets {
		m.mu.Lock()
		out = append(out, m.book.OpenOrdersForUser(userID)...)
		m.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

// RestingCount is the number of orders currently on any book.
func (e *Exchange) RestingCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.resting)
}

func (e *Exchange) publish(symbol string, snap Snapshot, orders []Order, trades []Trade) {
	if e.journal != nil {
		for _, o := range orders {
			e.journal.UpdateOrder(o)
		}
		for _, t := range trades {
			e.journal.RecordTrade(t)
		}
	}
	if e.broadcaster != nil {
		e.broadcaster.Broadcast(symbol, snap)
	}
}
