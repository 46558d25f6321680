package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/signalbot/gotrade/pkg/syncgroup"
)

var (
	ErrNotConnected     = errors.New("session is not connected")
	ErrNotAuthenticated = errors.New("session is not authenticated")
	ErrAlreadyConnected = errors.New("session already has an active connection")
	ErrEmptyCredential  = errors.New("credential must not be empty")
	ErrEmptySymbol      = errors.New("symbol must not be empty")
)

// State is the Session lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the duplex transport the Session drives. *websocket.Conn
// satisfies it; tests inject a scripted fake.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a transport to the venue endpoint.
type Dialer func(ctx context.Context, endpoint string) (Conn, error)

func gorillaDialer(ctx context.Context, endpoint string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config configures a Session.
type Config struct {
	Endpoint         string
	AppID            string
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	ProfitTableLimit int
	Dialer           Dialer // nil means gorilla/websocket
	Logger           *logrus.Logger
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:         DefaultEndpoint,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		ProfitTableLimit: 50,
	}
}

// Session owns one persistent duplex connection to the venue: it
// authenticates, frames outbound requests, demultiplexes inbound messages
// to typed callbacks, and tracks subscription identifiers so they can be
// explicitly torn down. One Session per trading screen; a Session that
// loses its transport cannot be resumed, a new Connect starts a new one.
type Session struct {
	id        string
	cfg       Config
	dial      Dialer
	callbacks Callbacks
	log       *logrus.Entry

	mu         sync.RWMutex
	conn       Conn
	state      State
	cancel     context.CancelFunc
	closeOnce  *sync.Once
	tickSymbol string
	tickSubID  string
	proposals  map[string]string // contract type -> live proposal subscription id

	writeMu sync.Mutex
	sg      *syncgroup.SyncGroup

	reqID atomic.Int64

	// Latest outstanding one-shot request id per kind. A response whose
	// req_id does not match the latest request of its kind is stale and
	// dropped, so e.g. a catalog for a previously selected symbol never
	// reaches the UI.
	pendingMu          sync.Mutex
	pendingSymbols     int64
	pendingCatalog     int64
	pendingPortfolio   int64
	pendingProfitTable int64
}

// NewSession creates a Session with the given configuration and callback
// set. Nothing touches the network until Connect.
func NewSession(cfg *Config, callbacks Callbacks) *Session {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.ProfitTableLimit == 0 {
		cfg.ProfitTableLimit = def.ProfitTableLimit
	}
	dial := cfg.Dialer
	if dial == nil {
		dial = gorillaDialer
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       *cfg,
		dial:      dial,
		callbacks: callbacks,
		log:       log.WithField("component", "trade_session").WithField("session", id[:8]),
		state:     StateDisconnected,
		sg:        syncgroup.NewSyncGroup(),
		proposals: make(map[string]string),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) endpointURL() string {
	if s.cfg.AppID == "" {
		return s.cfg.Endpoint
	}
	return s.cfg.Endpoint + "?app_id=" + url.QueryEscape(s.cfg.AppID)
}

// Connect opens the transport and sends the authenticate request. The
// Session reaches Authenticated only when the venue confirms the
// credential; until then every other operation is rejected. A second
// Connect on an active Session is a caller error.
func (s *Session) Connect(ctx context.Context, credential string) error {
	if credential == "" {
		return ErrEmptyCredential
	}

	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateAuthenticated {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = StateConnecting
	s.mu.Unlock()

	endpoint := s.endpointURL()
	s.log.WithField("endpoint", s.cfg.Endpoint).Info("connecting to venue")

	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.mu.Unlock()
		s.emitError(fmt.Sprintf("connect failed: %v", err))
		return fmt.Errorf("dial venue: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.closeOnce = &sync.Once{}
	s.mu.Unlock()

	s.sg.Add(func() { s.readLoop(connCtx, conn) })
	s.sg.Add(func() { s.pingLoop(connCtx, conn) })
	s.sg.Run()

	if err := s.send(authorizeRequest{Authorize: credential, ReqID: s.nextReqID()}); err != nil {
		s.teardown(StateFailed)
		s.emitError(fmt.Sprintf("authenticate request failed: %v", err))
		return err
	}
	return nil
}

// Disconnect closes the transport unconditionally and releases all
// subscription bookkeeping. Idempotent: disconnecting an already
// disconnected Session is a no-op.
func (s *Session) Disconnect() {
	s.teardown(StateDisconnected)

	// Give the read/ping goroutines a bounded window to exit.
	done := make(chan struct{})
	go func() {
		s.sg.WaitAndClear()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		s.log.Warn("timed out waiting for connection goroutines to exit")
	}
}

// teardown moves the Session to a terminal state, closing the transport
// and dropping all subscription ids so the Session cannot be resumed.
func (s *Session) teardown(next State) {
	s.mu.Lock()
	conn := s.conn
	cancel := s.cancel
	s.conn = nil
	s.cancel = nil
	s.state = next
	s.clearSubscriptionsLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}

	s.pendingMu.Lock()
	s.pendingSymbols = 0
	s.pendingCatalog = 0
	s.pendingPortfolio = 0
	s.pendingProfitTable = 0
	s.pendingMu.Unlock()
}

func (s *Session) clearSubscriptionsLocked() {
	s.tickSymbol = ""
	s.tickSubID = ""
	s.proposals = make(map[string]string)
}

func (s *Session) requireAuth() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated {
		return ErrNotAuthenticated
	}
	return nil
}

func (s *Session) nextReqID() int64 {
	return s.reqID.Add(1)
}

// send marshals and writes one frame. Writes are serialized; the venue
// protocol has no frame-level interleaving concerns beyond that.
func (s *Session) send(v any) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.log.WithField("frame", string(data)).Debug("sent")
	return nil
}

// readLoop reads inbound frames one at a time, in transport-delivery
// order, and hands each to the dispatcher. Any read failure, including a
// deadline expiry, is terminal for the Session; there is no automatic
// reconnect here. ReadMessage errors are permanent in gorilla/websocket,
// so retrying a failed read would spin. The deadline is extended by
// inbound frames and by pongs answering the ping loop, so a healthy but
// quiet connection stays up.
func (s *Session) readLoop(ctx context.Context, conn Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.handleTransportLoss(err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.dispatch(data)
	}
}

func (s *Session) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.handleTransportLoss(err)
				return
			}
		}
	}
}

// handleTransportLoss reports a dropped transport exactly once. Before
// authentication it is an error (the handshake never completed); after,
// it is a close. Either way the Session is finished.
func (s *Session) handleTransportLoss(err error) {
	s.mu.RLock()
	prev := s.state
	once := s.closeOnce
	s.mu.RUnlock()

	if once == nil {
		return
	}
	once.Do(func() {
		s.log.WithError(err).Warn("transport lost")
		if prev == StateConnecting {
			s.teardown(StateFailed)
			s.emitError(fmt.Sprintf("connection lost before authentication: %v", err))
			return
		}
		s.teardown(StateDisconnected)
		s.emitClose()
	})
}
