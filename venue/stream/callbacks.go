package stream

import "github.com/signalbot/gotrade/internal/domain"

// Callbacks is the event interface a Session exposes to its UI layer.
// Handlers run synchronously on the inbound dispatch goroutine, in
// transport-delivery order; they should do state updates only and return
// quickly. Nil handlers are skipped.
type Callbacks struct {
	// OnOpen fires once, after the authenticate handshake succeeds and the
	// standing balance subscription and symbol-list fetch have been issued.
	OnOpen func()

	// OnAccount delivers the authenticated account's identity once per
	// successful handshake, before OnOpen.
	OnAccount func(domain.Account)

	OnBalance       func(domain.Balance)
	OnActiveSymbols func([]domain.Symbol)
	OnContractsFor  func(domain.ContractCatalog)
	OnTick          func(domain.Tick)
	OnProposal      func(domain.Proposal)
	OnPortfolio     func(domain.Portfolio)
	OnProfitTable   func([]domain.ProfitTableEntry)

	// OnTransaction fires on every confirmed buy (isSale=false) or sell
	// (isSale=true). The Session has already issued the portfolio and
	// profit-table refreshes by the time this fires.
	OnTransaction func(tx domain.Transaction)

	// OnError receives venue-level and decode errors as human-readable
	// text. The Session stays usable unless the error was fatal to the
	// handshake or transport.
	OnError func(message string)

	// OnClose fires once when the transport is lost after authentication.
	// It does not fire on an explicit Disconnect.
	OnClose func()
}

func (s *Session) emitOpen() {
	if s.callbacks.OnOpen != nil {
		s.callbacks.OnOpen()
	}
}

func (s *Session) emitError(message string) {
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(message)
	}
}

func (s *Session) emitClose() {
	if s.callbacks.OnClose != nil {
		s.callbacks.OnClose()
	}
}
