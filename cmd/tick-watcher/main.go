package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/signalbot/gotrade/internal/domain"
	"github.com/signalbot/gotrade/pkg/config"
	"github.com/signalbot/gotrade/pkg/logger"
	"github.com/signalbot/gotrade/venue/stream"
)

// tick-watcher is a headless monitor: it authenticates, subscribes to one
// symbol's tick stream plus the balance feed, and logs everything. Useful
// for checking venue connectivity and credentials without the full TUI.
func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	symbol := flag.String("symbol", "R_100", "instrument to watch")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}

	token := config.APIToken()
	if token == "" {
		logger.Error("GOTRADE_API_TOKEN is not set")
		os.Exit(1)
	}

	sessionCfg := stream.DefaultConfig()
	sessionCfg.Endpoint = cfg.Venue.Endpoint
	sessionCfg.AppID = cfg.Venue.AppID

	done := make(chan struct{})
	session := stream.NewSession(sessionCfg, stream.Callbacks{
		OnOpen: func() {
			logger.Infof("authenticated, watching %s", *symbol)
		},
		OnAccount: func(a domain.Account) {
			logger.WithFields(logrus.Fields{
				"loginid": a.LoginID,
				"demo":    a.IsDemo,
			}).Info("account")
		},
		OnBalance: func(b domain.Balance) {
			logger.WithFields(logrus.Fields{
				"loginid":  b.LoginID,
				"currency": b.Currency,
			}).Infof("balance %s", b.Amount)
		},
		OnTick: func(t domain.Tick) {
			logger.WithField("symbol", t.Symbol).
				Infof("tick %s @ %s", t.Quote, t.Time().Format("15:04:05"))
		},
		OnActiveSymbols: func(symbols []domain.Symbol) {
			logger.Infof("venue lists %d tradable symbols", len(symbols))
		},
		OnError: func(msg string) {
			logger.Errorf("venue error: %s", msg)
		},
		OnClose: func() {
			logger.Warn("connection lost")
			close(done)
		},
	})

	if err := session.Connect(context.Background(), token); err != nil {
		logger.Errorf("connect: %v", err)
		os.Exit(1)
	}

	// Subscribe once the handshake completes; a failed handshake surfaces
	// through OnError and leaves the session in the failed state.
	go func() {
		for {
			switch session.State() {
			case stream.StateAuthenticated:
				if err := session.SubscribeTicks(*symbol); err != nil {
					logger.Errorf("subscribe %s: %v", *symbol, err)
				}
				return
			case stream.StateFailed, stream.StateDisconnected:
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutting down")
	case <-done:
	}
	session.Disconnect()
}
