package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRow carries the tradable balance. New users are seeded with the
// configured default balance on first lookup.
type UserRow struct {
	UserID    string          `gorm:"primaryKey"`
	Balance   decimal.Decimal `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserRow) TableName() string { return "users" }

// OrderRow mirrors an engine order; it is upserted on every status or
// fill change so order history stays queryable after the book lets go of
// the order.
type OrderRow struct {
	OrderID   string          `gorm:"primaryKey"`
	UserID    string          `gorm:"index"`
	Symbol    string          `gorm:"index"`
	Side      string
	Price     decimal.Decimal `gorm:"type:text"`
	Quantity  decimal.Decimal `gorm:"type:text"`
	Filled    decimal.Decimal `gorm:"type:text"`
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (OrderRow) TableName() string { return "orders" }

// TradeRow is append-only trade history.
type TradeRow struct {
	TradeID     string          `gorm:"primaryKey"`
	Symbol      string          `gorm:"index"`
	Price       decimal.Decimal `gorm:"type:text"`
	Quantity    decimal.Decimal `gorm:"type:text"`
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	ExecutedAt  time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (TradeRow) TableName() string { return "trades" }
