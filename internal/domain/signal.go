package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TradeIdea is an externally generated trade suggestion (a "signal"):
// a direction on a symbol with a suggested stake. The venue has no notion
// of a signal; an idea only ever seeds the order ticket.
type TradeIdea struct {
	Symbol    string
	Direction string // "rise" or "fall"
	Stake     decimal.Decimal
}

const (
	DirectionRise = "rise"
	DirectionFall = "fall"
)

// SeedParameters maps a trade idea onto a pre-filled order ticket.
// Rise maps to CALL, fall maps to PUT; duration defaults to 5 ticks, the
// shortest ticket the venue quotes, and stays editable like any other field.
func SeedParameters(idea TradeIdea, currency string) (TradeParameters, error) {
	var contractType string
	switch strings.ToLower(idea.Direction) {
	case DirectionRise:
		contractType = "CALL"
	case DirectionFall:
		contractType = "PUT"
	default:
		return TradeParameters{}, fmt.Errorf("unknown signal direction %q", idea.Direction)
	}
	if idea.Symbol == "" {
		return TradeParameters{}, fmt.Errorf("signal has no symbol")
	}

	stake := idea.Stake
	if !stake.IsPositive() {
		stake = decimal.NewFromInt(10)
	}

	return TradeParameters{
		Symbol:       idea.Symbol,
		ContractType: contractType,
		Stake:        stake,
		Currency:     currency,
		Duration:     5,
		DurationUnit: DurationTicks,
	}, nil
}

// ParseTradeIdea parses the "direction:symbol[:stake]" form used by the
// command-line flags, e.g. "rise:R_100:10".
func ParseTradeIdea(s string) (TradeIdea, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TradeIdea{}, fmt.Errorf("signal must be direction:symbol[:stake], got %q", s)
	}
	idea := TradeIdea{Direction: parts[0], Symbol: parts[1]}
	if len(parts) == 3 {
		stake, err := decimal.NewFromString(parts[2])
		if err != nil {
			return TradeIdea{}, fmt.Errorf("bad signal stake %q: %w", parts[2], err)
		}
		idea.Stake = stake
	}
	return idea, nil
}
