package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one currently open contract. Positions are always refetched
// wholesale after a confirmed transaction, never patched in place.
type Position struct {
	ContractID   int64
	Symbol       string
	ContractType string
	BuyPrice     decimal.Decimal
	Payout       decimal.Decimal
	Description  string
	PurchaseTime time.Time
	ExpiryTime   time.Time
}

// Portfolio is the full set of open positions for the account.
type Portfolio struct {
	Positions []Position
}

// ProfitTableEntry is a closed-position record. The profit table is
// bounded to a recent window and replaced wholesale on refresh.
type ProfitTableEntry struct {
	ContractID   int64
	Description  string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	PurchaseTime time.Time
	SellTime     time.Time
}

// Profit returns sell price minus buy price.
func (e ProfitTableEntry) Profit() decimal.Decimal {
	return e.SellPrice.Sub(e.BuyPrice)
}

// Transaction is a confirmed buy or sell reported by the venue.
type Transaction struct {
	ContractID   int64
	IsSale       bool
	Price        decimal.Decimal
	BalanceAfter decimal.Decimal
	LongCode     string
}
