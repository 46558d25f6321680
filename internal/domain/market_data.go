package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is the latest price update for a subscribed symbol. Single-slot:
// only the newest tick matters, superseded ticks are discarded.
type Tick struct {
	Symbol string
	Quote  decimal.Decimal
	Epoch  int64
}

// Time returns the tick timestamp.
func (t Tick) Time() time.Time {
	return time.Unix(t.Epoch, 0)
}

// Proposal is a venue-quoted, time-limited price for one specific
// parameter combination. The venue keeps re-quoting it over the standing
// subscription until it is forgotten or invalidated.
type Proposal struct {
	ID           string
	ContractType string
	AskPrice     decimal.Decimal
	Payout       decimal.Decimal
	Spot         decimal.Decimal
	DisplayText  string
}

// Balance is the account cash balance pushed on the standing subscription
// established at authentication time.
type Balance struct {
	Amount   decimal.Decimal
	Currency string
	LoginID  string
}

// Account identifies the authenticated account, as returned by the
// authorize handshake.
type Account struct {
	LoginID  string
	Currency string
	Email    string
	IsDemo   bool
}
