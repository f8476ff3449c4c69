package ledger

import "errors"

// Sentinel errors returned by the ledger engine. Callers classify them with
// errors.Is after unwrapping.
var (
	// ErrNotFound is returned when an account or transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAccount is returned when an account number is already taken.
	ErrDuplicateAccount = errors.New("account number already exists")

	// ErrInsufficientFunds is returned when a withdrawal or transfer would
	// drive an account balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSameAccountTransfer is returned when a transfer names the same
	// account on both sides.
	ErrSameAccountTransfer = errors.New("source and destination accounts must be different")

	// ErrInvalidAmount is returned for non-positive amounts. Requests are
	// validated upstream; this is a defensive check in the core.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrConflict is returned when lock or transaction contention could not
	// be resolved within the bounded retry budget. The operation left no
	// state behind and may be retried by the caller.
	ErrConflict = errors.New("operation conflicted with a concurrent update")
)
