package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Venue.Endpoint != "wss://ws.derivws.com/websockets/v3" {
		t.Errorf("endpoint = %q", cfg.Venue.Endpoint)
	}
	if cfg.Ticket.DebounceMS != 300 {
		t.Errorf("debounce = %d, want 300", cfg.Ticket.DebounceMS)
	}
	if cfg.Ticket.ProfitTableLimit != 50 {
		t.Errorf("profit table limit = %d, want 50", cfg.Ticket.ProfitTableLimit)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
venue:
  endpoint: wss://example.test/ws
  currency: EUR
ticket:
  debounce_ms: 150
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Venue.Endpoint != "wss://example.test/ws" {
		t.Errorf("endpoint = %q", cfg.Venue.Endpoint)
	}
	if cfg.Venue.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", cfg.Venue.Currency)
	}
	if cfg.Ticket.DebounceMS != 150 {
		t.Errorf("debounce = %d, want 150", cfg.Ticket.DebounceMS)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	// Untouched fields keep their defaults.
	if cfg.Journal.Path != "data/journal.db" {
		t.Errorf("journal path = %q", cfg.Journal.Path)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("GOTRADE_CURRENCY", "GBP")
	t.Setenv("GOTRADE_DEBOUNCE_MS", "75")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Venue.Currency != "GBP" {
		t.Errorf("currency = %q, want GBP", cfg.Venue.Currency)
	}
	if cfg.Ticket.DebounceMS != 75 {
		t.Errorf("debounce = %d, want 75", cfg.Ticket.DebounceMS)
	}
}

func TestValidateRejectsBadEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Venue.Endpoint = "https://not-a-websocket"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-websocket endpoint")
	}
}

func TestAPITokenFromEnvOnly(t *testing.T) {
	t.Setenv("GOTRADE_API_TOKEN", "  tok_abc  ")
	if got := APIToken(); got != "tok_abc" {
		t.Errorf("APIToken = %q, want tok_abc", got)
	}
}
