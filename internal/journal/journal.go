package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/signalbot/gotrade/internal/domain"
)

// Journal is a local append-only record of confirmed trades. It exists
// for the user's own bookkeeping; the venue's profit table remains the
// source of truth for account state.
type Journal struct {
	db *sql.DB
}

// Entry is one journalled trade confirmation.
type Entry struct {
	ID           string
	ContractID   int64
	Side         string // "buy" or "sell"
	Price        decimal.Decimal
	BalanceAfter decimal.Decimal
	LongCode     string
	RecordedAt   time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id            TEXT PRIMARY KEY,
	contract_id   INTEGER NOT NULL,
	side          TEXT NOT NULL,
	price         TEXT NOT NULL,
	balance_after TEXT NOT NULL,
	long_code     TEXT NOT NULL,
	recorded_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_recorded_at ON trades(recorded_at);
`

// Open opens (creating if necessary) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create journal directory")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, "open journal database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping journal database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply journal schema")
	}
	return &Journal{db: db}, nil
}

// RecordTransaction appends a confirmed buy or sell to the journal.
func (j *Journal) RecordTransaction(tx domain.Transaction) error {
	side := "buy"
	if tx.IsSale {
		side = "sell"
	}
	_, err := j.db.Exec(
		`INSERT INTO trades (id, contract_id, side, price, balance_after, long_code, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		tx.ContractID,
		side,
		tx.Price.String(),
		tx.BalanceAfter.String(),
		tx.LongCode,
		time.Now().Unix(),
	)
	return errors.Wrap(err, "record transaction")
}

// RecentTrades returns up to limit journal entries, newest first.
func (j *Journal) RecentTrades(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, contract_id, side, price, balance_after, long_code, recorded_at
		 FROM trades ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent trades")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			price      string
			balance    string
			recordedAt int64
		)
		if err := rows.Scan(&e.ID, &e.ContractID, &e.Side, &price, &balance, &e.LongCode, &recordedAt); err != nil {
			return nil, errors.Wrap(err, "scan trade row")
		}
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrapf(err, "parse price %q", price)
		}
		if e.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
			return nil, errors.Wrapf(err, "parse balance %q", balance)
		}
		e.RecordedAt = time.Unix(recordedAt, 0)
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate trade rows")
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
