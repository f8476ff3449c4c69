package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// sqlQuerier is the slice of database/sql shared by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLiteStore persists accounts and ledger entries in an embedded SQLite
// file, for single-node deployments that don't warrant PostgreSQL.
type SQLiteStore struct {
	db *sql.DB
	q  sqlQuerier
}

// OpenSQLite opens (creating if needed) the database file with the settings
// the store expects: WAL journaling, foreign keys, a busy timeout, and a
// single writer connection.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLiteStore creates a store on an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, q: db}
}

// SetupSchema creates the accounts and transactions tables when absent.
func (s *SQLiteStore) SetupSchema(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			account_number TEXT UNIQUE NOT NULL,
			balance TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			amount TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('DEPOSIT', 'WITHDRAWAL')),
			ts TIMESTAMP NOT NULL,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			transfer_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS transactions_account_idx ON transactions (account_id);`,
	}
	for _, m := range migrations {
		if _, err := s.q.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ReadAccount(ctx context.Context, id string) (*Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, account_number, balance, owner_id, created_at FROM accounts WHERE id = ?`, id)
	return scanSQLiteAccount(row)
}

func (s *SQLiteStore) ReadAccountByNumber(ctx context.Context, number string) (*Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, account_number, balance, owner_id, created_at FROM accounts WHERE account_number = ?`, number)
	return scanSQLiteAccount(row)
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, a *Account) (*Account, error) {
	cp := stampAccount(a)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, account_number, balance, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, cp.ID, cp.AccountNumber, cp.Balance.StringFixed(2), cp.OwnerID, cp.CreatedAt)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	return cp, nil
}

func (s *SQLiteStore) WriteAccount(ctx context.Context, a *Account) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, owner_id = ? WHERE id = ?`,
		a.Balance.StringFixed(2), a.OwnerID, a.ID)
	if err != nil {
		return classifySQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, account_number, balance, owner_id, created_at FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanSQLiteAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return classifySQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) AppendTransaction(ctx context.Context, t *Transaction) (*Transaction, error) {
	cp := stampEntry(t)

	var transferID any
	if cp.TransferID != "" {
		transferID = cp.TransferID
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, kind, ts, account_id, transfer_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cp.ID, cp.Amount.StringFixed(2), string(cp.Kind), cp.Timestamp, cp.AccountID, transferID)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	return cp, nil
}

func (s *SQLiteStore) FindTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, amount, kind, ts, account_id, transfer_id FROM transactions WHERE id = ?`, id)
	return scanSQLiteTransaction(row)
}

func (s *SQLiteStore) TransactionsByAccount(ctx context.Context, accountID string) ([]*Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, amount, kind, ts, account_id, transfer_id FROM transactions WHERE account_id = ? ORDER BY rowid`, accountID)
}

func (s *SQLiteStore) TransactionsByKind(ctx context.Context, kind Kind) ([]*Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, amount, kind, ts, account_id, transfer_id FROM transactions WHERE kind = ? ORDER BY rowid`, string(kind))
}

func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, amount, kind, ts, account_id, transfer_id FROM transactions ORDER BY rowid`)
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanSQLiteTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Atomic runs fn against an immediate-mode transaction view. Any error rolls
// the whole unit back.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classifySQLiteError(err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanSQLiteAccount(row rowScanner) (*Account, error) {
	var a Account
	var balance string
	err := row.Scan(&a.ID, &a.AccountNumber, &balance, &a.OwnerID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	return &a, nil
}

func scanSQLiteTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	var amount, kind string
	var transferID sql.NullString
	err := row.Scan(&t.ID, &amount, &kind, &t.Timestamp, &t.AccountID, &transferID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Kind = Kind(kind)
	t.TransferID = transferID.String
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &t, nil
}

// classifySQLiteError maps SQLite errors onto the engine taxonomy: constraint
// violations on account_number are duplicates, busy/locked databases are
// retryable conflicts.
func classifySQLiteError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code {
	case sqlite3.ErrConstraint:
		if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%v: %w", se, ErrDuplicateAccount)
		}
		return err
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%v: %w", se, ErrConflict)
	}
	return err
}
