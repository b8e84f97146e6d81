// Package store persists users, accounts and the trade journal in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Roy-Barak/Mystock-Backend/internal/ledger"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
	// ErrConflict means the account changed between load and save.
	ErrConflict = errors.New("account modified concurrently")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	email         TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	password_hash BLOB NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS portfolios (
	email   TEXT PRIMARY KEY REFERENCES users(email),
	balance TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS holdings (
	email     TEXT NOT NULL REFERENCES portfolios(email),
	symbol    TEXT NOT NULL,
	shares    INTEGER NOT NULL CHECK (shares > 0),
	buy_price TEXT NOT NULL,
	PRIMARY KEY (email, symbol)
);
CREATE TABLE IF NOT EXISTS trades (
	id         TEXT PRIMARY KEY,
	account    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	side       TEXT NOT NULL,
	shares     INTEGER NOT NULL,
	price      TEXT NOT NULL,
	total      TEXT NOT NULL,
	cost_basis TEXT NOT NULL,
	processed  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_account_idx ON trades (account, created_at);
CREATE TABLE IF NOT EXISTS account_stats (
	account TEXT PRIMARY KEY,
	trades  INTEGER NOT NULL,
	profit  REAL NOT NULL
);
`

type User struct {
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is one row of the trade journal.
type Trade struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	CreatedAt time.Time       `json:"created_at"`
}

type Stats struct {
	Account string  `json:"email"`
	Trades  int     `json:"trades"`
	Profit  float64 `json:"realized_profit"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Open opens the SQLite database at path and verifies the connection.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// CreateUser registers a user and seeds their portfolio with balance.
func (s *Store) CreateUser(ctx context.Context, u User, balance decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, u.Email).Scan(&exists)
	if err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isConstraint(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO portfolios (email, balance, version) VALUES (?, ?, 0)`, u.Email, balance)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `SELECT email, name, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	} else if err != nil {
		return User{}, fmt.Errorf("failed to fetch user: %w", err)
	}
	return u, nil
}

// LoadAccount returns the current snapshot of an account, including the
// version SaveTrade checks against.
func (s *Store) LoadAccount(ctx context.Context, identity string) (ledger.Account, error) {
	acc := ledger.NewAccount(identity, decimal.Zero)
	err := s.db.QueryRowContext(ctx, `SELECT balance, version FROM portfolios WHERE email = ?`, identity).
		Scan(&acc.Balance, &acc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ErrNotFound
	} else if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to fetch portfolio: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT symbol, shares, buy_price FROM holdings WHERE email = ?`, identity)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h ledger.Holding
		if err := rows.Scan(&h.Symbol, &h.Shares, &h.BuyPrice); err != nil {
			return ledger.Account{}, fmt.Errorf("failed to scan holding: %w", err)
		}
		acc.Holdings[h.Symbol] = h
	}
	if err := rows.Err(); err != nil {
		return ledger.Account{}, fmt.Errorf("failed to read holdings: %w", err)
	}
	return acc, nil
}

// SaveTrade writes acc and appends t to the journal in one transaction.
// The write only succeeds if the stored version still equals acc.Version.
func (s *Store) SaveTrade(ctx context.Context, acc ledger.Account, t Trade) (Trade, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.Account = acc.Identity

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Trade{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE portfolios SET balance = ?, version = version + 1
		WHERE email = ? AND version = ?`,
		acc.Balance, acc.Identity, acc.Version)
	if err != nil {
		return Trade{}, fmt.Errorf("failed to update portfolio: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Trade{}, fmt.Errorf("failed to update portfolio: %w", err)
	}
	if n == 0 {
		return Trade{}, ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE email = ?`, acc.Identity); err != nil {
		return Trade{}, fmt.Errorf("failed to clear holdings: %w", err)
	}
	for _, h := range acc.Holdings {
		_, err := tx.ExecContext(ctx, `INSERT INTO holdings (email, symbol, shares, buy_price) VALUES (?, ?, ?, ?)`,
			acc.Identity, h.Symbol, h.Shares, h.BuyPrice)
		if err != nil {
			return Trade{}, fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (id, account, symbol, side, shares, price, total, cost_basis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Account, t.Symbol, string(t.Side), t.Shares, t.Price, t.Total, t.CostBasis, t.CreatedAt)
	if err != nil {
		return Trade{}, fmt.Errorf("failed to save trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Trade{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

// Trades lists an account's journal, newest first.
func (s *Store) Trades(ctx context.Context, identity string, limit int) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, symbol, side, shares, price, total, cost_basis, created_at
		FROM trades WHERE account = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	out := make([]Trade, 0)
	for rows.Next() {
		var t Trade
		var side string
		if err := rows.Scan(&t.ID, &t.Account, &t.Symbol, &side, &t.Shares, &t.Price, &t.Total, &t.CostBasis, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context, identity string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, "SELECT account, trades, profit FROM account_stats WHERE account = ?", identity).
		Scan(&st.Account, &st.Trades, &st.Profit)
	if errors.Is(err, sql.ErrNoRows) {
		return Stats{}, ErrNotFound
	} else if err != nil {
		return Stats{}, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return st, nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
