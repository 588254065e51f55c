package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mini-exchange/src/engine"
)

// Store persists orders, trades, and user balances in SQLite. Writes
// arrive through a buffered queue drained by a single worker goroutine,
// so the matching path never blocks on disk: a completed match is
// authoritative in memory and a failed write is logged, not propagated.
type Store struct {
	db             *gorm.DB
	log            zerolog.Logger
	jobs           chan func(*gorm.DB) error
	done           chan struct{}
	defaultBalance decimal.Decimal
}

const queueDepth = 1024

// Open connects to the SQLite database at path, creating directories and
// migrating the schema as needed.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&UserRow{}, &OrderRow{}, &TradeRow{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	s := &Store{
		db:             db,
		log:            log,
		jobs:           make(chan func(*gorm.DB) error, queueDepth),
		done:           make(chan struct{}),
		defaultBalance: decimal.NewFromInt(10000),
	}
	go s.drain()
	return s, nil
}

// SetDefaultBalance overrides the balance seeded for first-seen users.
func (s *Store) SetDefaultBalance(balance decimal.Decimal) {
	s.defaultBalance = balance
}

// Close flushes the write queue and stops the worker.
func (s *Store) Close() {
	close(s.jobs)
	<-s.done
}

func (s *Store) drain() {
	defer close(s.done)
	for job := range s.jobs {
		if err := job(s.db); err != nil {
			s.log.Error().Err(err).Msg("journal write failed")
		}
	}
}

func (s *Store) enqueue(job func(*gorm.DB) error) {
	select {
	case s.jobs <- job:
	default:
		// edge case: a full queue sheds the write instead of stalling the
		// matching path
		s.log.Warn().Msg("journal queue full, dropping write")
	}
}

// UpdateOrder upserts the order's current state. Asynchronous.
func (s *Store) UpdateOrder(o engine.Order) {
	row := OrderRow{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Symbol:   o.Symbol,
		Side:     string(o.Side),
		Price:    o.Price,
		Quantity: o.Quantity,
		Filled:   o.Filled,
		Status:   string(o.Status),
	}
	s.enqueue(func(db *gorm.DB) error {
		return db.Save(&row).Error
	})
}

// RecordTrade appends the trade and settles both counterparties' cash
// balances: the buyer pays price*qty, the seller receives it.
// Asynchronous.
func (s *Store) RecordTrade(t engine.Trade) {
	row := TradeRow{
		TradeID:     t.ID,
		Symbol:      t.Symbol,
		Price:       t.Price,
		Quantity:    t.Quantity,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		ExecutedAt:  time.UnixMilli(t.Timestamp),
	}
	notional := t.Price.Mul(t.Quantity)
	s.enqueue(func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if err := s.adjustBalance(tx, t.BuyerID, notional.Neg()); err != nil {
				return err
			}
			return s.adjustBalance(tx, t.SellerID, notional)
		})
	})
}

func (s *Store) adjustBalance(tx *gorm.DB, userID string, delta decimal.Decimal) error {
	user, err := s.ensureUser(tx, userID)
	if err != nil {
		return err
	}
	user.Balance = user.Balance.Add(delta)
	return tx.Save(user).Error
}

func (s *Store) ensureUser(db *gorm.DB, userID string) (*UserRow, error) {
	var user UserRow
	err := db.First(&user, "user_id = ?", userID).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user = UserRow{UserID: userID, Balance: s.defaultBalance}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Available reports the user's cash balance, seeding first-seen users
// with the default balance. Synchronous: it backs the affordability
// pre-check, not the matching path.
func (s *Store) Available(userID string) (decimal.Decimal, error) {
	user, err := s.ensureUser(s.db, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// RecentTrades lists the newest trades for a symbol, most recent first.
func (s *Store) RecentTrades(symbol string, limit int) ([]TradeRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []TradeRow
	err := s.db.
		Where("symbol = ?", symbol).
		Order("executed_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// OrdersForUser lists the user's persisted order history, newest first.
func (s *Store) OrdersForUser(userID string, limit int) ([]OrderRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []OrderRow
	err := s.db.
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
