package stream

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/signalbot/gotrade/internal/domain"
)

// Outbound request frames. Amounts and prices are sent as JSON numbers,
// so decimal values go through json.Number rather than quoted strings.

type authorizeRequest struct {
	Authorize string `json:"authorize"`
	ReqID     int64  `json:"req_id,omitempty"`
}

type balanceRequest struct {
	Balance   int   `json:"balance"`
	Subscribe int   `json:"subscribe,omitempty"`
	ReqID     int64 `json:"req_id,omitempty"`
}

type activeSymbolsRequest struct {
	ActiveSymbols string `json:"active_symbols"`
	ProductType   string `json:"product_type,omitempty"`
	ReqID         int64  `json:"req_id,omitempty"`
}

type contractsForRequest struct {
	ContractsFor string `json:"contracts_for"`
	ReqID        int64  `json:"req_id,omitempty"`
}

type ticksRequest struct {
	Ticks     string `json:"ticks"`
	Subscribe int    `json:"subscribe"`
	ReqID     int64  `json:"req_id,omitempty"`
}

type forgetRequest struct {
	Forget string `json:"forget"`
}

type forgetAllRequest struct {
	ForgetAll string `json:"forget_all"`
}

type limitOrder struct {
	TakeProfit json.Number `json:"take_profit,omitempty"`
	StopLoss   json.Number `json:"stop_loss,omitempty"`
}

type proposalRequest struct {
	Proposal     int         `json:"proposal"`
	Subscribe    int         `json:"subscribe"`
	Amount       json.Number `json:"amount"`
	Basis        string      `json:"basis"`
	ContractType string      `json:"contract_type"`
	Currency     string      `json:"currency"`
	Duration     int         `json:"duration"`
	DurationUnit string      `json:"duration_unit"`
	Symbol       string      `json:"symbol"`
	Barrier      string      `json:"barrier,omitempty"`
	Multiplier   int         `json:"multiplier,omitempty"`
	LimitOrder   *limitOrder `json:"limit_order,omitempty"`
	ReqID        int64       `json:"req_id,omitempty"`
}

type buyRequest struct {
	Buy   string      `json:"buy"`
	Price json.Number `json:"price"`
	ReqID int64       `json:"req_id,omitempty"`
}

type sellRequest struct {
	Sell  int64       `json:"sell"`
	Price json.Number `json:"price"`
	ReqID int64       `json:"req_id,omitempty"`
}

type portfolioRequest struct {
	Portfolio int   `json:"portfolio"`
	ReqID     int64 `json:"req_id,omitempty"`
}

type profitTableRequest struct {
	ProfitTable int    `json:"profit_table"`
	Description int    `json:"description"`
	Limit       int    `json:"limit"`
	Sort        string `json:"sort"`
	ReqID       int64  `json:"req_id,omitempty"`
}

func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// SubscribeTicks cancels any existing tick subscription, then subscribes
// to the new symbol's tick stream. A session holds at most one tick
// subscription; ticks for a previously subscribed symbol never reach the
// callbacks once this returns.
func (s *Session) SubscribeTicks(symbol string) error {
	if symbol == "" {
		return ErrEmptySymbol
	}
	if err := s.requireAuth(); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.tickSymbol
	subID := s.tickSubID
	s.tickSymbol = symbol
	s.tickSubID = ""
	s.mu.Unlock()

	if err := s.forgetTickStream(prev, subID); err != nil {
		return err
	}
	return s.send(ticksRequest{Ticks: symbol, Subscribe: 1, ReqID: s.nextReqID()})
}

// forgetTickStream cancels the previous tick subscription, by id once
// the stream has confirmed one, or with a blanket cancel when the switch
// happens before the first tick arrives.
func (s *Session) forgetTickStream(prevSymbol, subID string) error {
	switch {
	case subID != "":
		return s.send(forgetRequest{Forget: subID})
	case prevSymbol != "":
		return s.send(forgetAllRequest{ForgetAll: "ticks"})
	}
	return nil
}

// UnsubscribeTicks cancels the active tick subscription; safe to call
// when none exists.
func (s *Session) UnsubscribeTicks() error {
	if err := s.requireAuth(); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.tickSymbol
	subID := s.tickSubID
	s.tickSymbol = ""
	s.tickSubID = ""
	s.mu.Unlock()

	return s.forgetTickStream(prev, subID)
}

// GetContractCatalog issues a one-shot request for the contract types
// tradable on symbol. Only the response to the most recent catalog
// request is delivered; responses for previously selected symbols are
// dropped as stale.
func (s *Session) GetContractCatalog(symbol string) error {
	if symbol == "" {
		return ErrEmptySymbol
	}
	if err := s.requireAuth(); err != nil {
		return err
	}

	id := s.nextReqID()
	s.pendingMu.Lock()
	s.pendingCatalog = id
	s.pendingMu.Unlock()

	return s.send(contractsForRequest{ContractsFor: symbol, ReqID: id})
}

// GetProposal opens (or re-opens) a push subscription quoting the given
// parameters. An incomplete ticket is the normal state while the user is
// typing, so it is a silent no-op, not an error. At most one proposal
// subscription is live per contract type: an existing one for the same
// contract type is forgotten before the new request goes out.
func (s *Session) GetProposal(p domain.TradeParameters) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.Complete() {
		return nil
	}

	s.mu.Lock()
	oldID := s.proposals[p.ContractType]
	delete(s.proposals, p.ContractType)
	s.mu.Unlock()

	if oldID != "" {
		if err := s.send(forgetRequest{Forget: oldID}); err != nil {
			return err
		}
	}

	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	req := proposalRequest{
		Proposal:     1,
		Subscribe:    1,
		Amount:       num(p.Stake),
		Basis:        "stake",
		ContractType: p.ContractType,
		Currency:     currency,
		Duration:     p.Duration,
		DurationUnit: p.DurationUnit,
		Symbol:       p.Symbol,
		Barrier:      p.Barrier,
		Multiplier:   p.Multiplier,
		ReqID:        s.nextReqID(),
	}
	if p.TakeProfit.IsPositive() || p.StopLoss.IsPositive() {
		lo := &limitOrder{}
		if p.TakeProfit.IsPositive() {
			lo.TakeProfit = num(p.TakeProfit)
		}
		if p.StopLoss.IsPositive() {
			lo.StopLoss = num(p.StopLoss)
		}
		req.LimitOrder = lo
	}
	return s.send(req)
}

// ForgetProposal cancels one standing proposal subscription by its
// identifier. Safe to call with an id that is no longer live.
func (s *Session) ForgetProposal(proposalID string) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if proposalID == "" {
		return nil
	}

	s.mu.Lock()
	for ct, id := range s.proposals {
		if id == proposalID {
			delete(s.proposals, ct)
		}
	}
	s.mu.Unlock()

	return s.send(forgetRequest{Forget: proposalID})
}

// ForgetAllProposals cancels every standing proposal subscription.
func (s *Session) ForgetAllProposals() error {
	if err := s.requireAuth(); err != nil {
		return err
	}

	s.mu.Lock()
	active := len(s.proposals) > 0
	s.proposals = make(map[string]string)
	s.mu.Unlock()

	if !active {
		return nil
	}
	return s.send(forgetAllRequest{ForgetAll: "proposal"})
}

// BuyContract commits to the most recently quoted price for a proposal.
// If the quote has moved the venue rejects the buy and the rejection
// surfaces through OnError.
func (s *Session) BuyContract(proposalID string, price decimal.Decimal) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if proposalID == "" {
		return fmt.Errorf("proposal id must not be empty")
	}

	// Buying consumes the proposal subscription.
	s.mu.Lock()
	for ct, id := range s.proposals {
		if id == proposalID {
			delete(s.proposals, ct)
		}
	}
	s.mu.Unlock()

	return s.send(buyRequest{Buy: proposalID, Price: num(price), ReqID: s.nextReqID()})
}

// SellContract requests closing an open position. A zero price means
// "accept current market price".
func (s *Session) SellContract(contractID int64, price decimal.Decimal) error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if contractID <= 0 {
		return fmt.Errorf("contract id must be positive, got %d", contractID)
	}
	return s.send(sellRequest{Sell: contractID, Price: num(price), ReqID: s.nextReqID()})
}

// GetPortfolio fetches the full set of open positions. The result
// replaces prior portfolio state wholesale.
func (s *Session) GetPortfolio() error {
	if err := s.requireAuth(); err != nil {
		return err
	}

	id := s.nextReqID()
	s.pendingMu.Lock()
	s.pendingPortfolio = id
	s.pendingMu.Unlock()

	return s.send(portfolioRequest{Portfolio: 1, ReqID: id})
}

// GetProfitTable fetches the recent closed-position window. The result
// replaces prior profit-table state wholesale.
func (s *Session) GetProfitTable() error {
	if err := s.requireAuth(); err != nil {
		return err
	}

	id := s.nextReqID()
	s.pendingMu.Lock()
	s.pendingProfitTable = id
	s.pendingMu.Unlock()

	return s.send(profitTableRequest{
		ProfitTable: 1,
		Description: 1,
		Limit:       s.cfg.ProfitTableLimit,
		Sort:        "DESC",
		ReqID:       id,
	})
}

// requestSymbolList asks for the venue's full tradable symbol list.
// Issued automatically after authentication.
func (s *Session) requestSymbolList() error {
	id := s.nextReqID()
	s.pendingMu.Lock()
	s.pendingSymbols = id
	s.pendingMu.Unlock()

	return s.send(activeSymbolsRequest{ActiveSymbols: "brief", ProductType: "basic", ReqID: id})
}
