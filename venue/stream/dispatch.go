package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalbot/gotrade/internal/domain"
)

// dispatchTable maps msg_type tags to handlers. A tag with no entry is
// ignored for forward compatibility.
var dispatchTable = map[string]func(*Session, *envelope){
	msgAuthorize:     (*Session).handleAuthorize,
	msgBalance:       (*Session).handleBalance,
	msgActiveSymbols: (*Session).handleActiveSymbols,
	msgContractsFor:  (*Session).handleContractsFor,
	msgTick:          (*Session).handleTick,
	msgProposal:      (*Session).handleProposal,
	msgBuy:           (*Session).handleBuy,
	msgSell:          (*Session).handleSell,
	msgPortfolio:     (*Session).handlePortfolio,
	msgProfitTable:   (*Session).handleProfitTable,
	msgForget:        (*Session).handleForgetAck,
	msgForgetAll:     (*Session).handleForgetAck,
}

// dispatch decodes one inbound frame and routes it. An error payload
// always takes precedence over type-based dispatch: the message is
// reported through OnError and never partially processed as a success.
func (s *Session) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.emitError(fmt.Sprintf("malformed venue message: %v", err))
		return
	}
	if env.MsgType == "" {
		s.log.WithField("frame", string(data)).Debug("ignoring untagged message")
		return
	}

	if env.Error != nil {
		s.handleVenueError(&env)
		return
	}

	handler, ok := dispatchTable[env.MsgType]
	if !ok {
		s.log.WithField("msg_type", env.MsgType).Debug("ignoring unrecognized message type")
		return
	}
	handler(s, &env)
}

// handleVenueError routes an error payload. An authentication rejection
// is terminal for the Session; every other venue error leaves it usable.
func (s *Session) handleVenueError(env *envelope) {
	msg := env.Error.Message
	if msg == "" {
		msg = env.Error.Code
	}
	s.log.WithField("msg_type", env.MsgType).WithField("code", env.Error.Code).Warn("venue error")

	if env.MsgType == msgAuthorize {
		s.teardown(StateFailed)
		s.emitError(fmt.Sprintf("authentication failed: %s", msg))
		return
	}
	s.emitError(msg)
}

// handleAuthorize completes the handshake: the Session becomes
// Authenticated, establishes the standing balance subscription, requests
// the symbol list, and only then reports open.
func (s *Session) handleAuthorize(env *envelope) {
	if env.Authorize == nil {
		return
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.log.WithField("loginid", env.Authorize.LoginID).Info("authenticated")

	if s.callbacks.OnAccount != nil {
		s.callbacks.OnAccount(domain.Account{
			LoginID:  env.Authorize.LoginID,
			Currency: env.Authorize.Currency,
			Email:    env.Authorize.Email,
			IsDemo:   env.Authorize.IsVirtual == 1,
		})
	}

	if err := s.send(balanceRequest{Balance: 1, Subscribe: 1, ReqID: s.nextReqID()}); err != nil {
		s.emitError(fmt.Sprintf("balance subscription failed: %v", err))
	}
	if err := s.requestSymbolList(); err != nil {
		s.emitError(fmt.Sprintf("symbol list request failed: %v", err))
	}
	s.emitOpen()
}

func (s *Session) handleBalance(env *envelope) {
	if env.Balance == nil || s.callbacks.OnBalance == nil {
		return
	}
	s.callbacks.OnBalance(domain.Balance{
		Amount:   env.Balance.Balance.Decimal(),
		Currency: env.Balance.Currency,
		LoginID:  env.Balance.LoginID,
	})
}

func (s *Session) handleActiveSymbols(env *envelope) {
	if !s.acceptOneShot(&s.pendingSymbols, env.echo().ReqID) {
		return
	}
	if s.callbacks.OnActiveSymbols == nil {
		return
	}
	symbols := make([]domain.Symbol, 0, len(env.ActiveSymbols))
	for _, as := range env.ActiveSymbols {
		symbols = append(symbols, domain.Symbol{
			Code:        as.Symbol,
			DisplayName: as.DisplayName,
			Market:      as.Market,
			Submarket:   as.Submarket,
			IsOpen:      as.ExchangeIsOpen == 1,
		})
	}
	s.callbacks.OnActiveSymbols(symbols)
}

func (s *Session) handleContractsFor(env *envelope) {
	if env.ContractsFor == nil {
		return
	}
	echo := env.echo()
	if !s.acceptOneShot(&s.pendingCatalog, echo.ReqID) {
		s.log.WithField("symbol", echo.ContractsFor).Debug("dropping stale contract catalog")
		return
	}
	if s.callbacks.OnContractsFor == nil {
		return
	}
	catalog := domain.ContractCatalog{Symbol: echo.ContractsFor}
	for _, ac := range env.ContractsFor.Available {
		catalog.Contracts = append(catalog.Contracts, domain.ContractType{
			Code:        ac.ContractType,
			DisplayName: ac.ContractDisplay,
			Category:    ac.ContractCategory,
			Sentiment:   ac.Sentiment,
		})
	}
	s.callbacks.OnContractsFor(catalog)
}

// handleTick delivers the latest quote for the currently subscribed
// symbol. Ticks for any other symbol are stale leftovers from a previous
// subscription and never reach the UI.
func (s *Session) handleTick(env *envelope) {
	if env.Tick == nil {
		return
	}

	s.mu.Lock()
	current := s.tickSymbol
	if env.Tick.Symbol == current && env.Tick.ID != "" {
		s.tickSubID = env.Tick.ID
	}
	s.mu.Unlock()

	if env.Tick.Symbol != current {
		s.log.WithField("symbol", env.Tick.Symbol).Debug("dropping tick for unsubscribed symbol")
		return
	}
	if s.callbacks.OnTick == nil {
		return
	}
	s.callbacks.OnTick(domain.Tick{
		Symbol: env.Tick.Symbol,
		Quote:  env.Tick.Quote.Decimal(),
		Epoch:  env.Tick.Epoch,
	})
}

func (s *Session) handleProposal(env *envelope) {
	if env.Proposal == nil {
		return
	}
	echo := env.echo()

	s.mu.Lock()
	if echo.ContractType != "" {
		s.proposals[echo.ContractType] = env.Proposal.ID
	}
	s.mu.Unlock()

	if s.callbacks.OnProposal == nil {
		return
	}
	s.callbacks.OnProposal(domain.Proposal{
		ID:           env.Proposal.ID,
		ContractType: echo.ContractType,
		AskPrice:     env.Proposal.AskPrice.Decimal(),
		Payout:       env.Proposal.Payout.Decimal(),
		Spot:         env.Proposal.Spot.Decimal(),
		DisplayText:  env.Proposal.Longcode,
	})
}

// handleBuy confirms a purchase. Positions are never patched in place
// from the confirmation: the Session immediately issues fresh portfolio
// and profit-table fetches, then reports the transaction.
func (s *Session) handleBuy(env *envelope) {
	if env.Buy == nil {
		return
	}
	s.refreshAfterTrade()
	if s.callbacks.OnTransaction != nil {
		s.callbacks.OnTransaction(domain.Transaction{
			ContractID:   env.Buy.ContractID,
			IsSale:       false,
			Price:        env.Buy.BuyPrice.Decimal(),
			BalanceAfter: env.Buy.BalanceAfter.Decimal(),
			LongCode:     env.Buy.Longcode,
		})
	}
}

func (s *Session) handleSell(env *envelope) {
	if env.Sell == nil {
		return
	}
	s.refreshAfterTrade()
	if s.callbacks.OnTransaction != nil {
		s.callbacks.OnTransaction(domain.Transaction{
			ContractID:   env.Sell.ContractID,
			IsSale:       true,
			Price:        env.Sell.SoldFor.Decimal(),
			BalanceAfter: env.Sell.BalanceAfter.Decimal(),
		})
	}
}

func (s *Session) refreshAfterTrade() {
	if err := s.GetPortfolio(); err != nil {
		s.log.WithError(err).Warn("post-trade portfolio refresh failed")
	}
	if err := s.GetProfitTable(); err != nil {
		s.log.WithError(err).Warn("post-trade profit table refresh failed")
	}
}

func (s *Session) handlePortfolio(env *envelope) {
	if env.Portfolio == nil {
		return
	}
	if !s.acceptOneShot(&s.pendingPortfolio, env.echo().ReqID) {
		return
	}
	if s.callbacks.OnPortfolio == nil {
		return
	}
	portfolio := domain.Portfolio{}
	for _, c := range env.Portfolio.Contracts {
		portfolio.Positions = append(portfolio.Positions, domain.Position{
			ContractID:   c.ContractID,
			Symbol:       c.Symbol,
			ContractType: c.ContractType,
			BuyPrice:     c.BuyPrice.Decimal(),
			Payout:       c.Payout.Decimal(),
			Description:  c.Longcode,
			PurchaseTime: time.Unix(c.PurchaseTime, 0),
			ExpiryTime:   time.Unix(c.ExpiryTime, 0),
		})
	}
	s.callbacks.OnPortfolio(portfolio)
}

func (s *Session) handleProfitTable(env *envelope) {
	if env.ProfitTable == nil {
		return
	}
	if !s.acceptOneShot(&s.pendingProfitTable, env.echo().ReqID) {
		return
	}
	if s.callbacks.OnProfitTable == nil {
		return
	}
	entries := make([]domain.ProfitTableEntry, 0, len(env.ProfitTable.Transactions))
	for _, tx := range env.ProfitTable.Transactions {
		entries = append(entries, domain.ProfitTableEntry{
			ContractID:   tx.ContractID,
			Description:  tx.Longcode,
			BuyPrice:     tx.BuyPrice.Decimal(),
			SellPrice:    tx.SellPrice.Decimal(),
			PurchaseTime: time.Unix(tx.PurchaseTime, 0),
			SellTime:     time.Unix(tx.SellTime, 0),
		})
	}
	s.callbacks.OnProfitTable(entries)
}

func (s *Session) handleForgetAck(env *envelope) {
	s.log.WithField("msg_type", env.MsgType).Debug("subscription cancel acknowledged")
}

// acceptOneShot correlates a one-shot response with the latest
// outstanding request of its kind. Responses carrying a req_id that is
// not the latest are stale and rejected; responses without a req_id are
// accepted as unsolicited for forward compatibility.
func (s *Session) acceptOneShot(pending *int64, respID int64) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if respID == 0 || *pending == 0 {
		return true
	}
	if respID != *pending {
		return false
	}
	*pending = 0
	return true
}
