package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/signalbot/gotrade/internal/domain"
	"github.com/signalbot/gotrade/internal/journal"
	"github.com/signalbot/gotrade/internal/ticket"
	"github.com/signalbot/gotrade/pkg/config"
	"github.com/signalbot/gotrade/venue/stream"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	riseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2"))

	fallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)
)

// Messages pushed into the TUI from the session callbacks.
type (
	openedMsg      struct{}
	closedMsg      struct{}
	accountMsg     domain.Account
	venueErrMsg    string
	balanceMsg     domain.Balance
	tickMsg        domain.Tick
	proposalMsg    domain.Proposal
	catalogMsg     domain.ContractCatalog
	symbolsMsg     []domain.Symbol
	portfolioMsg   domain.Portfolio
	profitTableMsg []domain.ProfitTableEntry
	txMsg          domain.Transaction
	clockMsg       time.Time
)

type model struct {
	session *stream.Session
	ticket  *ticket.Ticket
	journal *journal.Journal

	connected bool
	account   domain.Account
	balance   domain.Balance
	lastTick  *domain.Tick
	symbols   []domain.Symbol
	portfolio domain.Portfolio
	profits   []domain.ProfitTableEntry
	lastErr   string
	status    string

	// stake entry buffer while the user is typing
	stakeInput string
	editing    bool
}

func clockCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return clockCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case clockMsg:
		return m, clockCmd()
	case openedMsg:
		m.connected = true
		m.status = "authenticated"
		return m, nil
	case closedMsg:
		m.connected = false
		m.status = "connection lost"
		return m, nil
	case accountMsg:
		m.account = domain.Account(msg)
		return m, nil
	case venueErrMsg:
		m.lastErr = string(msg)
		return m, nil
	case balanceMsg:
		m.balance = domain.Balance(msg)
		return m, nil
	case tickMsg:
		t := domain.Tick(msg)
		m.lastTick = &t
		return m, nil
	case proposalMsg:
		m.ticket.HandleProposal(domain.Proposal(msg))
		return m, nil
	case catalogMsg:
		m.ticket.HandleCatalog(domain.ContractCatalog(msg))
		return m, nil
	case symbolsMsg:
		m.symbols = msg
		return m, nil
	case portfolioMsg:
		m.portfolio = domain.Portfolio(msg)
		return m, nil
	case profitTableMsg:
		m.profits = msg
		return m, nil
	case txMsg:
		tx := domain.Transaction(msg)
		if m.journal != nil {
			if err := m.journal.RecordTransaction(tx); err != nil {
				logrus.WithError(err).Warn("journal write failed")
			}
		}
		side := "bought"
		if tx.IsSale {
			side = "sold"
		}
		m.status = fmt.Sprintf("%s contract %d for %s", side, tx.ContractID, tx.Price)
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			if stake, err := decimal.NewFromString(m.stakeInput); err == nil && stake.IsPositive() {
				m.ticket.SetStake(stake)
				m.status = "stake set to " + stake.String()
			} else {
				m.lastErr = fmt.Sprintf("bad stake %q", m.stakeInput)
			}
			m.editing = false
			m.stakeInput = ""
		case "esc":
			m.editing = false
			m.stakeInput = ""
		case "backspace":
			if len(m.stakeInput) > 0 {
				m.stakeInput = m.stakeInput[:len(m.stakeInput)-1]
			}
		default:
			if len(msg.String()) == 1 && strings.ContainsAny(msg.String(), "0123456789.") {
				m.stakeInput += msg.String()
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.ticket.Close()
		m.session.Disconnect()
		return m, tea.Quit
	case "s":
		m.editing = true
		m.stakeInput = ""
	case "r":
		if err := m.ticket.Buy("CALL"); err != nil {
			m.lastErr = err.Error()
		}
	case "f":
		if err := m.ticket.Buy("PUT"); err != nil {
			m.lastErr = err.Error()
		}
	case "+":
		p := m.ticket.Parameters()
		m.ticket.SetDuration(p.Duration+1, p.DurationUnit)
	case "-":
		p := m.ticket.Parameters()
		if p.Duration > 1 {
			m.ticket.SetDuration(p.Duration-1, p.DurationUnit)
		}
	case "c":
		if len(m.portfolio.Positions) > 0 {
			if err := m.ticket.Sell(m.portfolio.Positions[0].ContractID); err != nil {
				m.lastErr = err.Error()
			}
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	status := "connecting..."
	if m.connected {
		status = fmt.Sprintf("%s  %s %s", m.account.LoginID, m.balance.Amount, m.balance.Currency)
		if m.account.IsDemo {
			status += "  " + dimStyle.Render("demo")
		}
	}
	b.WriteString(headerStyle.Render("gotrade") + "  " + status + "\n\n")

	p := m.ticket.Parameters()
	tickLine := "waiting for ticks..."
	if m.lastTick != nil {
		tickLine = fmt.Sprintf("%s  %s  %s",
			titleStyle.Render(p.Symbol),
			m.lastTick.Quote.String(),
			dimStyle.Render(m.lastTick.Time().Format("15:04:05")))
	}
	b.WriteString(borderStyle.Render(tickLine) + "\n\n")

	ticketBody := fmt.Sprintf("stake %s %s   duration %d%s",
		p.Stake, p.Currency, p.Duration, p.DurationUnit)
	if m.editing {
		ticketBody += "   " + titleStyle.Render("stake> "+m.stakeInput+"_")
	}
	b.WriteString(ticketBody + "\n")

	rise, riseOK := m.ticket.Quote("CALL")
	fall, fallOK := m.ticket.Quote("PUT")
	riseLine := riseStyle.Render("rise  --")
	if riseOK {
		riseLine = riseStyle.Render(fmt.Sprintf("rise  %s -> %s", rise.AskPrice, rise.Payout))
	}
	fallLine := fallStyle.Render("fall  --")
	if fallOK {
		fallLine = fallStyle.Render(fmt.Sprintf("fall  %s -> %s", fall.AskPrice, fall.Payout))
	}
	b.WriteString(riseLine + "\n" + fallLine + "\n\n")

	if len(m.portfolio.Positions) > 0 {
		b.WriteString(titleStyle.Render("open positions") + "\n")
		for _, pos := range m.portfolio.Positions {
			b.WriteString(fmt.Sprintf("  #%d %s %s  buy %s  payout %s\n",
				pos.ContractID, pos.Symbol, pos.ContractType, pos.BuyPrice, pos.Payout))
		}
		b.WriteString("\n")
	}

	if len(m.profits) > 0 {
		b.WriteString(titleStyle.Render("recent results") + "\n")
		shown := m.profits
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, e := range shown {
			profit := e.Profit()
			style := riseStyle
			if profit.IsNegative() {
				style = fallStyle
			}
			b.WriteString(fmt.Sprintf("  #%d  %s\n", e.ContractID, style.Render(profit.String())))
		}
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(dimStyle.Render(m.status) + "\n")
	}
	if m.lastErr != "" {
		b.WriteString(errStyle.Render(m.lastErr) + "\n")
	}
	b.WriteString(dimStyle.Render("[r]ise buy  [f]all buy  [s]take  [+/-] duration  [c]lose first  [q]uit"))
	return b.String()
}

func redirectLogsToFile() {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logDir = os.TempDir()
	}
	file, err := os.OpenFile(filepath.Join(logDir, "trader-tui.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return
	}
	logrus.SetOutput(file)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	symbol := flag.String("symbol", "R_100", "instrument to trade")
	signalSpec := flag.String("signal", "", "seed the ticket from a signal, direction:symbol[:stake], e.g. rise:R_100:10")
	flag.Parse()

	_ = godotenv.Load()

	// The TUI owns the terminal; everything logrus goes to a file.
	redirectLogsToFile()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	token := config.APIToken()
	if token == "" {
		log.Fatal("GOTRADE_API_TOKEN is not set")
	}

	var params domain.TradeParameters
	if *signalSpec != "" {
		idea, err := domain.ParseTradeIdea(*signalSpec)
		if err != nil {
			log.Fatalf("bad -signal: %v", err)
		}
		params, err = domain.SeedParameters(idea, cfg.Venue.Currency)
		if err != nil {
			log.Fatalf("bad -signal: %v", err)
		}
	} else {
		stake, err := decimal.NewFromString(cfg.Ticket.DefaultStake)
		if err != nil {
			stake = decimal.NewFromInt(10)
		}
		params = domain.TradeParameters{
			Symbol:       *symbol,
			ContractType: "CALL",
			Stake:        stake,
			Currency:     cfg.Venue.Currency,
			Duration:     cfg.Ticket.DefaultDuration,
			DurationUnit: cfg.Ticket.DefaultDurUnit,
		}
	}

	jnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer jnl.Close()

	// Declared up front so the callbacks can push into the program.
	var program *tea.Program

	sessionCfg := stream.DefaultConfig()
	sessionCfg.Endpoint = cfg.Venue.Endpoint
	sessionCfg.AppID = cfg.Venue.AppID
	sessionCfg.ProfitTableLimit = cfg.Ticket.ProfitTableLimit

	session := stream.NewSession(sessionCfg, stream.Callbacks{
		OnOpen:          func() { program.Send(openedMsg{}) },
		OnClose:         func() { program.Send(closedMsg{}) },
		OnAccount:       func(a domain.Account) { program.Send(accountMsg(a)) },
		OnError:         func(msg string) { program.Send(venueErrMsg(msg)) },
		OnBalance:       func(b domain.Balance) { program.Send(balanceMsg(b)) },
		OnTick:          func(t domain.Tick) { program.Send(tickMsg(t)) },
		OnProposal:      func(p domain.Proposal) { program.Send(proposalMsg(p)) },
		OnContractsFor:  func(c domain.ContractCatalog) { program.Send(catalogMsg(c)) },
		OnActiveSymbols: func(s []domain.Symbol) { program.Send(symbolsMsg(s)) },
		OnPortfolio:     func(p domain.Portfolio) { program.Send(portfolioMsg(p)) },
		OnProfitTable:   func(e []domain.ProfitTableEntry) { program.Send(profitTableMsg(e)) },
		OnTransaction:   func(tx domain.Transaction) { program.Send(txMsg(tx)) },
	})

	tkt := ticket.New(session, params,
		ticket.WithDebounce(time.Duration(cfg.Ticket.DebounceMS)*time.Millisecond))
	tkt.QuoteContractTypes("CALL", "PUT")

	m := model{session: session, ticket: tkt, journal: jnl}
	program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		if err := session.Connect(context.Background(), token); err != nil {
			program.Send(venueErrMsg(err.Error()))
			return
		}
	}()

	// Once authenticated, bring up the catalog, ticks and quotes for the
	// seeded symbol.
	go func() {
		for session.State() != stream.StateAuthenticated {
			if session.State() == stream.StateFailed {
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
		if err := session.GetContractCatalog(params.Symbol); err != nil {
			program.Send(venueErrMsg(err.Error()))
		}
		if err := session.SubscribeTicks(params.Symbol); err != nil {
			program.Send(venueErrMsg(err.Error()))
		}
		tkt.QuoteContractTypes("CALL", "PUT")
		if err := session.GetPortfolio(); err != nil {
			program.Send(venueErrMsg(err.Error()))
		}
		if err := session.GetProfitTable(); err != nil {
			program.Send(venueErrMsg(err.Error()))
		}
	}()

	if _, err := program.Run(); err != nil {
		log.Fatalf("run program: %v", err)
	}
}
