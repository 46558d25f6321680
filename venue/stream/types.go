package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultEndpoint is the venue's WebSocket endpoint. The application
// identifier is appended as a query parameter on dial.
const DefaultEndpoint = "wss://ws.derivws.com/websockets/v3"

// Message type tags used on the wire. Inbound envelopes carry one of these
// in msg_type with the payload under a field of the same name.
const (
	msgAuthorize     = "authorize"
	msgBalance       = "balance"
	msgActiveSymbols = "active_symbols"
	msgContractsFor  = "contracts_for"
	msgTick          = "tick"
	msgProposal      = "proposal"
	msgBuy           = "buy"
	msgSell          = "sell"
	msgPortfolio     = "portfolio"
	msgProfitTable   = "profit_table"
	msgForget        = "forget"
	msgForgetAll     = "forget_all"
)

// flexDecimal decodes venue numbers that may arrive as JSON numbers or as
// numeric strings, depending on the field and API version.
type flexDecimal decimal.Decimal

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		*f = flexDecimal(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into flexDecimal", string(b))
	}
	*f = flexDecimal(d)
	return nil
}

func (f flexDecimal) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(f).String()), nil
}

// Decimal returns the underlying decimal value.
func (f flexDecimal) Decimal() decimal.Decimal { return decimal.Decimal(f) }

// APIError is the error payload a venue response may carry in place of its
// expected body. When present it always overrides normal payload handling.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// envelope is the inbound message frame. Exactly one payload field is set,
// named after msg_type; error takes precedence over all of them.
type envelope struct {
	MsgType string          `json:"msg_type"`
	ReqID   int64           `json:"req_id,omitempty"`
	EchoReq json.RawMessage `json:"echo_req,omitempty"`
	Error   *APIError       `json:"error,omitempty"`

	Authorize     *authorizePayload   `json:"authorize,omitempty"`
	Balance       *balancePayload     `json:"balance,omitempty"`
	ActiveSymbols []activeSymbol      `json:"active_symbols,omitempty"`
	ContractsFor  *contractsFor       `json:"contracts_for,omitempty"`
	Tick          *tickPayload        `json:"tick,omitempty"`
	Proposal      *proposalPayload    `json:"proposal,omitempty"`
	Buy           *buyPayload         `json:"buy,omitempty"`
	Sell          *sellPayload        `json:"sell,omitempty"`
	Portfolio     *portfolioPayload   `json:"portfolio,omitempty"`
	ProfitTable   *profitTablePayload `json:"profit_table,omitempty"`
}

// requestEcho is the subset of the echoed request the dispatcher needs:
// the correlation id plus the identifying fields of subscription requests.
type requestEcho struct {
	ReqID        int64  `json:"req_id"`
	Ticks        string `json:"ticks"`
	ContractsFor string `json:"contracts_for"`
	ContractType string `json:"contract_type"`
	Symbol       string `json:"symbol"`
}

func (e *envelope) echo() requestEcho {
	var echo requestEcho
	if len(e.EchoReq) > 0 {
		_ = json.Unmarshal(e.EchoReq, &echo)
	}
	if echo.ReqID == 0 {
		echo.ReqID = e.ReqID
	}
	return echo
}

type authorizePayload struct {
	LoginID   string      `json:"loginid"`
	Currency  string      `json:"currency"`
	Email     string      `json:"email"`
	IsVirtual int         `json:"is_virtual"`
	Balance   flexDecimal `json:"balance"`
}

type balancePayload struct {
	Balance  flexDecimal `json:"balance"`
	Currency string      `json:"currency"`
	LoginID  string      `json:"loginid"`
}

type activeSymbol struct {
	Symbol         string `json:"symbol"`
	DisplayName    string `json:"display_name"`
	Market         string `json:"market"`
	Submarket      string `json:"submarket"`
	ExchangeIsOpen int    `json:"exchange_is_open"`
}

type contractsFor struct {
	Available []availableContract `json:"available"`
}

type availableContract struct {
	ContractType     string `json:"contract_type"`
	ContractDisplay  string `json:"contract_display"`
	ContractCategory string `json:"contract_category"`
	Sentiment        string `json:"sentiment"`
}

type tickPayload struct {
	ID     string      `json:"id"`
	Symbol string      `json:"symbol"`
	Quote  flexDecimal `json:"quote"`
	Epoch  int64       `json:"epoch"`
}

type proposalPayload struct {
	ID       string      `json:"id"`
	AskPrice flexDecimal `json:"ask_price"`
	Payout   flexDecimal `json:"payout"`
	Spot     flexDecimal `json:"spot"`
	Longcode string      `json:"longcode"`
}

type buyPayload struct {
	ContractID    int64       `json:"contract_id"`
	BuyPrice      flexDecimal `json:"buy_price"`
	BalanceAfter  flexDecimal `json:"balance_after"`
	Longcode      string      `json:"longcode"`
	TransactionID int64       `json:"transaction_id"`
}

type sellPayload struct {
	ContractID    int64       `json:"contract_id"`
	SoldFor       flexDecimal `json:"sold_for"`
	BalanceAfter  flexDecimal `json:"balance_after"`
	TransactionID int64       `json:"transaction_id"`
}

type portfolioPayload struct {
	Contracts []portfolioContract `json:"contracts"`
}

type portfolioContract struct {
	ContractID   int64       `json:"contract_id"`
	Symbol       string      `json:"symbol"`
	ContractType string      `json:"contract_type"`
	BuyPrice     flexDecimal `json:"buy_price"`
	Payout       flexDecimal `json:"payout"`
	Longcode     string      `json:"longcode"`
	PurchaseTime int64       `json:"purchase_time"`
	ExpiryTime   int64       `json:"expiry_time"`
}

type profitTablePayload struct {
	Transactions []profitTransaction `json:"transactions"`
}

type profitTransaction struct {
	ContractID   int64       `json:"contract_id"`
	Longcode     string      `json:"longcode"`
	BuyPrice     flexDecimal `json:"buy_price"`
	SellPrice    flexDecimal `json:"sell_price"`
	PurchaseTime int64       `json:"purchase_time"`
	SellTime     int64       `json:"sell_time"`
}
