package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Duration units accepted by the venue.
const (
	DurationTicks   = "t"
	DurationSeconds = "s"
	DurationMinutes = "m"
	DurationHours   = "h"
	DurationDays    = "d"
)

// TradeParameters is the editable order-ticket state a proposal request is
// built from. It is the single source of truth for the ticket: any change
// to a pricing-relevant field invalidates all outstanding proposals.
type TradeParameters struct {
	Symbol       string
	ContractType string
	Stake        decimal.Decimal
	Currency     string
	Duration     int
	DurationUnit string

	// Contract-specific fields. Zero values mean "not set".
	Barrier    string
	Multiplier int
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
}

// Complete reports whether the mandatory fields for a quote are present.
// An incomplete ticket is the normal state while the user is still typing,
// so callers treat false as "do nothing", not as an error.
func (p TradeParameters) Complete() bool {
	return p.Symbol != "" &&
		p.ContractType != "" &&
		p.Stake.IsPositive() &&
		p.Duration > 0 &&
		p.DurationUnit != ""
}

// Validate checks the fields that are present for well-formedness.
// Unlike Complete, a Validate failure is a caller bug worth surfacing.
func (p TradeParameters) Validate() error {
	if p.Stake.IsNegative() {
		return fmt.Errorf("stake must not be negative, got %s", p.Stake)
	}
	if p.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %d", p.Duration)
	}
	if p.DurationUnit != "" {
		switch p.DurationUnit {
		case DurationTicks, DurationSeconds, DurationMinutes, DurationHours, DurationDays:
		default:
			return fmt.Errorf("unknown duration unit %q", p.DurationUnit)
		}
	}
	if p.Multiplier < 0 {
		return fmt.Errorf("multiplier must not be negative, got %d", p.Multiplier)
	}
	return nil
}

// PricingKey returns a string that changes whenever a pricing-relevant
// field changes. The ticket uses it to decide when live proposals for the
// previous parameter set must be forgotten.
func (p TradeParameters) PricingKey() string {
	return strings.Join([]string{
		p.Symbol,
		p.ContractType,
		p.Stake.String(),
		fmt.Sprintf("%d%s", p.Duration, p.DurationUnit),
		p.Barrier,
		fmt.Sprintf("x%d", p.Multiplier),
		p.TakeProfit.String(),
		p.StopLoss.String(),
	}, "|")
}
