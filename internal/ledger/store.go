package ledger

import "context"

// AccountStore owns account records keyed by id and by business account
// number. WriteAccount replaces the full snapshot; it does not guarantee
// atomicity of a read-modify-write on its own, so concurrent writers to the
// same account must be serialized by the caller (the Service holds a
// per-account lock across the whole sequence).
type AccountStore interface {
	// ReadAccount returns the account with the given id, or ErrNotFound.
	ReadAccount(ctx context.Context, id string) (*Account, error)

	// ReadAccountByNumber returns the account with the given business
	// account number, or ErrNotFound.
	ReadAccountByNumber(ctx context.Context, number string) (*Account, error)

	// CreateAccount persists a new account, assigning ID and CreatedAt when
	// unset. Returns ErrDuplicateAccount if the account number is taken.
	CreateAccount(ctx context.Context, a *Account) (*Account, error)

	// WriteAccount replaces the stored snapshot of an existing account.
	WriteAccount(ctx context.Context, a *Account) error

	// ListAccounts returns all accounts.
	ListAccounts(ctx context.Context) ([]*Account, error)

	// DeleteAccount removes an account, or ErrNotFound.
	DeleteAccount(ctx context.Context, id string) error
}

// TransactionLedger is the append-only store of balance-changing events.
// Entries are created once and never mutated or deleted.
type TransactionLedger interface {
	// AppendTransaction persists a new entry, assigning ID always and
	// Timestamp only when unset so both legs of a transfer can share one.
	AppendTransaction(ctx context.Context, t *Transaction) (*Transaction, error)

	// FindTransaction returns the entry with the given id, or ErrNotFound.
	FindTransaction(ctx context.Context, id string) (*Transaction, error)

	// TransactionsByAccount returns the entries referencing an account in
	// insertion order.
	TransactionsByAccount(ctx context.Context, accountID string) ([]*Transaction, error)

	// TransactionsByKind returns all entries of one kind.
	TransactionsByKind(ctx context.Context, kind Kind) ([]*Transaction, error)

	// ListTransactions returns all entries in insertion order.
	ListTransactions(ctx context.Context) ([]*Transaction, error)
}

// Store bundles the persistence contracts the engine composes. Atomic runs fn
// against a transactional view of the store: either every write fn performed
// is made visible at once, or none of them are. No other reader observes an
// intermediate state.
type Store interface {
	AccountStore
	TransactionLedger

	Atomic(ctx context.Context, fn func(Store) error) error
}
