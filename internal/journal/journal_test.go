package journal

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/signalbot/gotrade/internal/domain"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndReadBack(t *testing.T) {
	j := openTestJournal(t)

	buy := domain.Transaction{
		ContractID:   101,
		IsSale:       false,
		Price:        decimal.NewFromFloat(5.12),
		BalanceAfter: decimal.NewFromFloat(494.88),
		LongCode:     "Win payout if Volatility 100 Index rises",
	}
	if err := j.RecordTransaction(buy); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	entries, err := j.RecentTrades(10)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ContractID != 101 {
		t.Errorf("contract id = %d, want 101", e.ContractID)
	}
	if e.Side != "buy" {
		t.Errorf("side = %q, want buy", e.Side)
	}
	if !e.Price.Equal(decimal.NewFromFloat(5.12)) {
		t.Errorf("price = %s, want 5.12", e.Price)
	}
	if !e.BalanceAfter.Equal(decimal.NewFromFloat(494.88)) {
		t.Errorf("balance = %s, want 494.88", e.BalanceAfter)
	}
	if e.ID == "" {
		t.Error("entry id should be assigned")
	}
}

func TestRecentTradesNewestFirstAndLimited(t *testing.T) {
	j := openTestJournal(t)

	for i := int64(1); i <= 5; i++ {
		tx := domain.Transaction{
			ContractID:   i,
			IsSale:       i%2 == 0,
			Price:        decimal.NewFromInt(i),
			BalanceAfter: decimal.NewFromInt(100 - i),
		}
		if err := j.RecordTransaction(tx); err != nil {
			t.Fatalf("RecordTransaction(%d): %v", i, err)
		}
	}

	entries, err := j.RecentTrades(3)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
}

func TestSellSide(t *testing.T) {
	j := openTestJournal(t)

	sell := domain.Transaction{
		ContractID:   7,
		IsSale:       true,
		Price:        decimal.NewFromInt(9),
		BalanceAfter: decimal.NewFromInt(509),
	}
	if err := j.RecordTransaction(sell); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	entries, err := j.RecentTrades(1)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if entries[0].Side != "sell" {
		t.Errorf("side = %q, want sell", entries[0].Side)
	}
}
