package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// pgQuerier is the slice of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same queries serve both the pooled store and its transactional views.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists accounts and ledger entries in PostgreSQL. Atomic
// units run as SERIALIZABLE transactions; serialization failures surface as
// ErrConflict for the engine's bounded retry.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   pgQuerier
}

// NewPostgresStore creates a store on an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

// SetupSchema creates the accounts and transactions tables when absent.
func (s *PostgresStore) SetupSchema(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			account_number TEXT UNIQUE NOT NULL,
			balance NUMERIC(15, 2) NOT NULL CHECK (balance >= 0),
			owner_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			amount NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
			kind TEXT NOT NULL CHECK (kind IN ('DEPOSIT', 'WITHDRAWAL')),
			ts TIMESTAMPTZ NOT NULL,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			transfer_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS transactions_account_idx ON transactions (account_id, seq);`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(ctx, m); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

const accountColumns = `id, account_number, balance::text, owner_id, created_at`

func (s *PostgresStore) ReadAccount(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *PostgresStore) ReadAccountByNumber(ctx context.Context, number string) (*Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	return scanAccount(row)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *Account) (*Account, error) {
	cp := stampAccount(a)
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, account_number, balance, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, cp.ID, cp.AccountNumber, cp.Balance.StringFixed(2), cp.OwnerID, cp.CreatedAt)
	if err != nil {
		return nil, classifyPgError(err)
	}
	return cp, nil
}

func (s *PostgresStore) WriteAccount(ctx context.Context, a *Account) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET balance = $2, owner_id = $3 WHERE id = $1
	`, a.ID, a.Balance.StringFixed(2), a.OwnerID)
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const transactionColumns = `id, amount::text, kind, ts, account_id, COALESCE(transfer_id, '')`

func (s *PostgresStore) AppendTransaction(ctx context.Context, t *Transaction) (*Transaction, error) {
	cp := stampEntry(t)

	var transferID any
	if cp.TransferID != "" {
		transferID = cp.TransferID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO transactions (id, amount, kind, ts, account_id, transfer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cp.ID, cp.Amount.StringFixed(2), string(cp.Kind), cp.Timestamp, cp.AccountID, transferID)
	if err != nil {
		return nil, classifyPgError(err)
	}
	return cp, nil
}

func (s *PostgresStore) FindTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (s *PostgresStore) TransactionsByAccount(ctx context.Context, accountID string) ([]*Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY seq`, accountID)
}

func (s *PostgresStore) TransactionsByKind(ctx context.Context, kind Kind) ([]*Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE kind = $1 ORDER BY seq`, string(kind))
}

func (s *PostgresStore) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY seq`)
}

func (s *PostgresStore) queryTransactions(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Atomic runs fn against a SERIALIZABLE transaction view of the store. Any
// error from fn or from commit rolls everything back.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// Already inside a transaction view; the enclosing unit applies.
		return fn(s)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyPgError(err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var balance string
	err := row.Scan(&a.ID, &a.AccountNumber, &balance, &a.OwnerID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var amount, kind string
	err := row.Scan(&t.ID, &amount, &kind, &t.Timestamp, &t.AccountID, &t.TransferID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Kind = Kind(kind)
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &t, nil
}

// classifyPgError maps PostgreSQL error codes onto the engine taxonomy:
// serialization failures and deadlocks are retryable conflicts, unique
// violations on the account number are duplicate accounts.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return fmt.Errorf("%s: %w", pgErr.Message, ErrConflict)
	case "23505":
		return fmt.Errorf("%s: %w", pgErr.Message, ErrDuplicateAccount)
	}
	return err
}
