package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a balance-changing ledger entry.
type Kind string

const (
	KindDeposit    Kind = "DEPOSIT"
	KindWithdrawal Kind = "WITHDRAWAL"
)

// Valid reports whether k is a known transaction kind.
func (k Kind) Valid() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Account is a bank account record. ID and AccountNumber are immutable after
// creation; Balance carries two decimal digits and never goes negative.
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	OwnerID       string          `json:"owner_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Clone returns a copy of the account so callers never alias store-internal
// state.
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

// Transaction is one append-only ledger entry. TransferID links the two legs
// of a transfer; it is empty for single-account operations.
type Transaction struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       Kind            `json:"kind"`
	Timestamp  time.Time       `json:"timestamp"`
	AccountID  string          `json:"account_id"`
	TransferID string          `json:"transfer_id,omitempty"`
}

// Clone returns a copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}
