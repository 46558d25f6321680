package ticket

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/signalbot/gotrade/internal/common"
	"github.com/signalbot/gotrade/internal/domain"
)

// DefaultDebounce is the quiet window applied to rapid parameter edits
// before fresh proposals are requested, so a subscription is not opened
// on every keystroke.
const DefaultDebounce = 300 * time.Millisecond

// TradeAPI is the slice of the streaming session a ticket drives.
type TradeAPI interface {
	SubscribeTicks(symbol string) error
	UnsubscribeTicks() error
	GetContractCatalog(symbol string) error
	GetProposal(p domain.TradeParameters) error
	ForgetProposal(proposalID string) error
	ForgetAllProposals() error
	BuyContract(proposalID string, price decimal.Decimal) error
	SellContract(contractID int64, price decimal.Decimal) error
}

// Ticket is the order-ticket state machine: it owns the editable
// TradeParameters, keeps the venue subscriptions consistent with them,
// and caches the latest quote per contract type so a buy always commits
// to the price the user saw.
//
// Every pricing-relevant edit deterministically (1) forgets the standing
// proposal subscriptions for the old parameters, (2) clears the quotes
// visible to the UI, (3) requests fresh proposals — in that order, so a
// stale quote never momentarily appears valid for new parameters.
type Ticket struct {
	api      TradeAPI
	log      *logrus.Entry
	debounce *common.Debouncer

	mu            sync.Mutex
	params        domain.TradeParameters
	contractTypes []string
	quotes        map[string]domain.Proposal
	catalog       *domain.ContractCatalog
	quotedKey     string
}

// Option configures a Ticket.
type Option func(*Ticket)

// WithDebounce overrides the edit debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(t *Ticket) { t.debounce.SetInterval(d) }
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Logger) Option {
	return func(t *Ticket) { t.log = log.WithField("component", "order_ticket") }
}

// New creates a ticket bound to a trade session.
func New(api TradeAPI, params domain.TradeParameters, opts ...Option) *Ticket {
	t := &Ticket{
		api:      api,
		log:      logrus.StandardLogger().WithField("component", "order_ticket"),
		debounce: common.NewDebouncer(DefaultDebounce),
		params:   params,
		quotes:   make(map[string]domain.Proposal),
	}
	if params.ContractType != "" {
		t.contractTypes = []string{params.ContractType}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Parameters returns a copy of the current order-ticket state.
func (t *Ticket) Parameters() domain.TradeParameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

// Catalog returns the contract catalog for the current symbol, if loaded.
func (t *Ticket) Catalog() *domain.ContractCatalog {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.catalog
}

// SetSymbol switches the ticket to a new instrument. Subscriptions for
// the previous symbol are cancelled before anything touches the new one:
// old ticks are unsubscribed, old proposals forgotten and cleared, then
// the new catalog is requested and the new tick stream subscribed.
func (t *Ticket) SetSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol must not be empty")
	}

	t.mu.Lock()
	if t.params.Symbol == symbol {
		t.mu.Unlock()
		return nil
	}
	t.params.Symbol = symbol
	t.catalog = nil
	t.quotes = make(map[string]domain.Proposal)
	t.quotedKey = t.pricingKeyLocked()
	t.mu.Unlock()

	if err := t.api.UnsubscribeTicks(); err != nil {
		return err
	}
	if err := t.api.ForgetAllProposals(); err != nil {
		return err
	}
	if err := t.api.GetContractCatalog(symbol); err != nil {
		return err
	}
	if err := t.api.SubscribeTicks(symbol); err != nil {
		return err
	}

	t.scheduleRequote()
	return nil
}

// QuoteContractTypes sets which contract types the ticket keeps live
// quotes for (the original trading screen quotes the rise/fall pair at
// once).
func (t *Ticket) QuoteContractTypes(types ...string) {
	t.mu.Lock()
	t.contractTypes = append([]string(nil), types...)
	if len(types) > 0 {
		t.params.ContractType = types[0]
	}
	t.mu.Unlock()

	t.invalidateQuotes()
}

// SetStake updates the stake amount.
func (t *Ticket) SetStake(stake decimal.Decimal) {
	t.mu.Lock()
	t.params.Stake = stake
	t.mu.Unlock()
	t.invalidateQuotes()
}

// SetDuration updates the contract duration.
func (t *Ticket) SetDuration(n int, unit string) {
	t.mu.Lock()
	t.params.Duration = n
	t.params.DurationUnit = unit
	t.mu.Unlock()
	t.invalidateQuotes()
}

// SetBarrier updates the barrier for touch/no-touch style contracts.
func (t *Ticket) SetBarrier(barrier string) {
	t.mu.Lock()
	t.params.Barrier = barrier
	t.mu.Unlock()
	t.invalidateQuotes()
}

// SetMultiplier updates the multiplier for leveraged contracts.
func (t *Ticket) SetMultiplier(m int) {
	t.mu.Lock()
	t.params.Multiplier = m
	t.mu.Unlock()
	t.invalidateQuotes()
}

// SetLimits updates take-profit/stop-loss for leveraged contracts.
func (t *Ticket) SetLimits(takeProfit, stopLoss decimal.Decimal) {
	t.mu.Lock()
	t.params.TakeProfit = takeProfit
	t.params.StopLoss = stopLoss
	t.mu.Unlock()
	t.invalidateQuotes()
}

// invalidateQuotes is the edit path: forget old subscriptions, clear
// visible quotes, then re-quote after the debounce window. An edit that
// leaves the pricing key unchanged (e.g. re-entering the same stake)
// keeps the live quotes instead of churning the subscriptions.
func (t *Ticket) invalidateQuotes() {
	t.mu.Lock()
	key := t.pricingKeyLocked()
	if key == t.quotedKey {
		t.mu.Unlock()
		return
	}
	t.quotedKey = key
	t.quotes = make(map[string]domain.Proposal)
	t.mu.Unlock()

	if err := t.api.ForgetAllProposals(); err != nil {
		t.log.WithError(err).Warn("failed to forget stale proposals")
	}

	t.scheduleRequote()
}

// pricingKeyLocked extends the parameter pricing key with the quoted
// contract-type set, so widening rise/fall quoting re-quotes even when
// the primary parameters are untouched. Callers hold t.mu.
func (t *Ticket) pricingKeyLocked() string {
	return t.params.PricingKey() + "|" + strings.Join(t.contractTypes, ",")
}

func (t *Ticket) scheduleRequote() {
	t.debounce.Trigger(t.requestQuotes)
}

// requestQuotes opens one proposal subscription per selected contract
// type. Incomplete parameters are a silent no-op inside the session.
func (t *Ticket) requestQuotes() {
	t.mu.Lock()
	params := t.params
	types := append([]string(nil), t.contractTypes...)
	t.mu.Unlock()

	for _, ct := range types {
		p := params
		p.ContractType = ct
		if err := t.api.GetProposal(p); err != nil {
			t.log.WithError(err).WithField("contract_type", ct).Warn("proposal request failed")
		}
	}
}

// HandleProposal records a fresh quote. Wire it to the session's
// OnProposal callback.
func (t *Ticket) HandleProposal(p domain.Proposal) {
	if p.ContractType == "" {
		return
	}
	t.mu.Lock()
	t.quotes[p.ContractType] = p
	t.mu.Unlock()
}

// HandleCatalog records the contract catalog if it still matches the
// selected symbol; a catalog for a previously selected symbol is never
// presented as valid.
func (t *Ticket) HandleCatalog(c domain.ContractCatalog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.Symbol != "" && c.Symbol != t.params.Symbol {
		return
	}
	t.catalog = &c
}

// Quote returns the latest live quote for a contract type.
func (t *Ticket) Quote(contractType string) (domain.Proposal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.quotes[contractType]
	return q, ok
}

// Buy commits to the most recent quote for the given contract type at
// the quoted ask price.
func (t *Ticket) Buy(contractType string) error {
	t.mu.Lock()
	q, ok := t.quotes[contractType]
	if ok {
		delete(t.quotes, contractType)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("no live quote for %s", contractType)
	}
	return t.api.BuyContract(q.ID, q.AskPrice)
}

// Sell requests closing an open position at current market price.
func (t *Ticket) Sell(contractID int64) error {
	return t.api.SellContract(contractID, decimal.Zero)
}

// Close cancels any pending debounced re-quote.
func (t *Ticket) Close() {
	t.debounce.Stop()
}
