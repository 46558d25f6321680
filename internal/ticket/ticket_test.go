package ticket

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalbot/gotrade/internal/domain"
)

// recordingAPI captures every call a ticket makes, in order.
type recordingAPI struct {
	mu    sync.Mutex
	calls []string

	proposals []domain.TradeParameters
	buys      []string
	buyPrices []decimal.Decimal
	sells     []int64
}

func (r *recordingAPI) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingAPI) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingAPI) Proposals() []domain.TradeParameters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TradeParameters(nil), r.proposals...)
}

func (r *recordingAPI) SubscribeTicks(symbol string) error {
	r.record("subscribe_ticks:" + symbol)
	return nil
}

func (r *recordingAPI) UnsubscribeTicks() error {
	r.record("unsubscribe_ticks")
	return nil
}

func (r *recordingAPI) GetContractCatalog(symbol string) error {
	r.record("contracts_for:" + symbol)
	return nil
}

func (r *recordingAPI) GetProposal(p domain.TradeParameters) error {
	r.mu.Lock()
	r.proposals = append(r.proposals, p)
	r.mu.Unlock()
	r.record("proposal:" + p.ContractType)
	return nil
}

func (r *recordingAPI) ForgetProposal(id string) error {
	r.record("forget:" + id)
	return nil
}

func (r *recordingAPI) ForgetAllProposals() error {
	r.record("forget_all_proposals")
	return nil
}

func (r *recordingAPI) BuyContract(id string, price decimal.Decimal) error {
	r.mu.Lock()
	r.buys = append(r.buys, id)
	r.buyPrices = append(r.buyPrices, price)
	r.mu.Unlock()
	r.record("buy:" + id)
	return nil
}

func (r *recordingAPI) SellContract(contractID int64, price decimal.Decimal) error {
	r.mu.Lock()
	r.sells = append(r.sells, contractID)
	r.mu.Unlock()
	r.record("sell")
	return nil
}

func baseParams() domain.TradeParameters {
	return domain.TradeParameters{
		Symbol:       "R_100",
		ContractType: "CALL",
		Stake:        decimal.NewFromInt(10),
		Currency:     "USD",
		Duration:     5,
		DurationUnit: domain.DurationTicks,
	}
}

func newTestTicket(api TradeAPI, params domain.TradeParameters) *Ticket {
	// Zero debounce runs re-quotes synchronously, which keeps call
	// ordering deterministic in tests.
	return New(api, params, WithDebounce(0))
}

func TestSetSymbolTeardownOrdering(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	require.NoError(t, tk.SetSymbol("R_50"))

	calls := api.Calls()
	require.Len(t, calls, 5)
	assert.Equal(t, "unsubscribe_ticks", calls[0])
	assert.Equal(t, "forget_all_proposals", calls[1])
	assert.Equal(t, "contracts_for:R_50", calls[2])
	assert.Equal(t, "subscribe_ticks:R_50", calls[3])
	assert.Equal(t, "proposal:CALL", calls[4])
	assert.Equal(t, "R_50", tk.Parameters().Symbol)
}

func TestSetSymbolSameSymbolNoOp(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	require.NoError(t, tk.SetSymbol("R_100"))
	assert.Empty(t, api.Calls())
}

func TestSetSymbolClearsQuotesAndCatalog(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	tk.HandleCatalog(domain.ContractCatalog{Symbol: "R_100"})
	tk.HandleProposal(domain.Proposal{ID: "p1", ContractType: "CALL", AskPrice: decimal.NewFromInt(10)})

	require.NoError(t, tk.SetSymbol("R_50"))

	assert.Nil(t, tk.Catalog())
	_, ok := tk.Quote("CALL")
	assert.False(t, ok)
}

func TestStaleCatalogRejected(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	require.NoError(t, tk.SetSymbol("R_50"))

	// Catalog for the previously selected symbol arrives late.
	tk.HandleCatalog(domain.ContractCatalog{Symbol: "R_100"})
	assert.Nil(t, tk.Catalog())

	tk.HandleCatalog(domain.ContractCatalog{Symbol: "R_50"})
	require.NotNil(t, tk.Catalog())
	assert.Equal(t, "R_50", tk.Catalog().Symbol)
}

func TestEditInvalidatesThenRequotes(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	tk.HandleProposal(domain.Proposal{ID: "p1", ContractType: "CALL", AskPrice: decimal.NewFromInt(10)})
	tk.SetStake(decimal.NewFromInt(25))

	_, ok := tk.Quote("CALL")
	assert.False(t, ok, "stale quote must be cleared on edit")

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "forget_all_proposals", calls[0])
	assert.Equal(t, "proposal:CALL", calls[1])

	require.Len(t, api.Proposals(), 1)
	assert.True(t, api.Proposals()[0].Stake.Equal(decimal.NewFromInt(25)))
}

func TestUnchangedEditKeepsQuotes(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	tk.SetStake(decimal.NewFromInt(25))
	tk.HandleProposal(domain.Proposal{ID: "p1", ContractType: "CALL", AskPrice: decimal.NewFromInt(12)})
	before := len(api.Calls())

	// Re-entering the identical stake leaves the live subscriptions and
	// the cached quote alone.
	tk.SetStake(decimal.NewFromInt(25))

	assert.Len(t, api.Calls(), before)
	_, ok := tk.Quote("CALL")
	assert.True(t, ok)
}

func TestLimitOrderEditRequotes(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	tk.SetLimits(decimal.NewFromInt(20), decimal.NewFromInt(5))

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "forget_all_proposals", calls[0])
	assert.Equal(t, "proposal:CALL", calls[1])
}

func TestQuoteContractTypesPair(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	tk.QuoteContractTypes("CALL", "PUT")

	calls := api.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "forget_all_proposals", calls[0])
	assert.Equal(t, "proposal:CALL", calls[1])
	assert.Equal(t, "proposal:PUT", calls[2])
}

func TestDebouncedEditsCoalesce(t *testing.T) {
	api := &recordingAPI{}
	tk := New(api, baseParams(), WithDebounce(30*time.Millisecond))
	defer tk.Close()

	tk.SetStake(decimal.NewFromInt(11))
	tk.SetStake(decimal.NewFromInt(12))
	tk.SetStake(decimal.NewFromInt(13))

	time.Sleep(120 * time.Millisecond)

	var quotes int
	for _, c := range api.Calls() {
		if c == "proposal:CALL" {
			quotes++
		}
	}
	assert.Equal(t, 1, quotes, "burst of edits should produce a single re-quote")
	require.Len(t, api.Proposals(), 1)
	assert.True(t, api.Proposals()[0].Stake.Equal(decimal.NewFromInt(13)))
}

func TestBuyUsesLatestQuote(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	tk.HandleProposal(domain.Proposal{ID: "p1", ContractType: "CALL", AskPrice: decimal.NewFromFloat(5.12)})
	tk.HandleProposal(domain.Proposal{ID: "p2", ContractType: "CALL", AskPrice: decimal.NewFromFloat(5.33)})

	require.NoError(t, tk.Buy("CALL"))

	require.Len(t, api.buys, 1)
	assert.Equal(t, "p2", api.buys[0])
	assert.True(t, api.buyPrices[0].Equal(decimal.NewFromFloat(5.33)))

	// The quote is consumed; a second buy needs a fresh one.
	assert.Error(t, tk.Buy("CALL"))
}

func TestBuyWithoutQuoteFails(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	assert.Error(t, tk.Buy("CALL"))
	assert.Empty(t, api.buys)
}

func TestSellAtMarket(t *testing.T) {
	api := &recordingAPI{}
	tk := newTestTicket(api, baseParams())
	defer tk.Close()

	require.NoError(t, tk.Sell(42))
	require.Len(t, api.sells, 1)
	assert.Equal(t, int64(42), api.sells[0])
}
