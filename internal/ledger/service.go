package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxRetries      = 3
	retryBackoff    = 10 * time.Millisecond
	defaultLockWait = 2 * time.Second
)

// Service is the ledger consistency engine. It serializes every
// read-modify-write of a balance under that account's exclusive lock,
// validates the non-negative invariant immediately before mutating, and
// persists the account mutation together with its ledger entries as one
// atomic unit. Conflicts are retried a bounded number of times before
// surfacing ErrConflict.
type Service struct {
	store Store
	locks *lockTable
}

// NewService creates an engine on top of the given store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: newLockTable(defaultLockWait),
	}
}

// CreateAccountRequest carries the validated inputs for account creation.
type CreateAccountRequest struct {
	AccountNumber  string          `json:"account_number"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	OwnerID        string          `json:"owner_id"`
}

// CreateAccount opens a new account. The initial balance must be
// non-negative with at most two decimal digits.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if req.InitialBalance.Sign() < 0 {
		return nil, fmt.Errorf("initial balance %s: %w", req.InitialBalance, ErrInvalidAmount)
	}
	if !req.InitialBalance.Equal(req.InitialBalance.Round(2)) {
		return nil, fmt.Errorf("initial balance %s exceeds two decimal digits: %w", req.InitialBalance, ErrInvalidAmount)
	}

	account, err := s.store.CreateAccount(ctx, &Account{
		AccountNumber: req.AccountNumber,
		Balance:       req.InitialBalance,
		OwnerID:       req.OwnerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create account %s: %w", req.AccountNumber, err)
	}
	return account, nil
}

// CreateTransactionRequest carries the validated inputs for a single-account
// deposit or withdrawal.
type CreateTransactionRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      Kind            `json:"kind"`
}

// CreateTransaction applies one deposit or withdrawal. Deposits always pass;
// withdrawals consult the balance guard and fail with ErrInsufficientFunds
// without any state change. The read, guard check, balance mutation, and
// ledger append run under the account's lock as one atomic unit.
func (s *Service) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*Transaction, error) {
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unknown transaction kind %q", req.Kind)
	}

	var entry *Transaction
	err := s.withRetry(ctx, func(ctx context.Context) error {
		release, err := s.locks.acquire(ctx, req.AccountID)
		if err != nil {
			return err
		}
		defer release()

		return s.store.Atomic(ctx, func(tx Store) error {
			account, err := tx.ReadAccount(ctx, req.AccountID)
			if err != nil {
				return fmt.Errorf("account %s: %w", req.AccountID, err)
			}

			delta := req.Amount
			if req.Kind == KindWithdrawal {
				delta = delta.Neg()
			}
			if err := Authorize(account.Balance, delta); err != nil {
				return err
			}

			account.Balance = account.Balance.Add(delta)
			if err := tx.WriteAccount(ctx, account); err != nil {
				return fmt.Errorf("write account %s: %w", account.ID, err)
			}

			entry, err = tx.AppendTransaction(ctx, &Transaction{
				Amount:    req.Amount,
				Kind:      req.Kind,
				AccountID: account.ID,
			})
			if err != nil {
				return fmt.Errorf("append %s entry: %w", req.Kind, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// TransferRequest carries the validated inputs for a two-account transfer.
type TransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransferResult reports a completed transfer: the post-transfer account
// snapshots and the two ledger legs sharing one correlation id.
type TransferResult struct {
	TransferID string       `json:"transfer_id"`
	From       *Account     `json:"from"`
	To         *Account     `json:"to"`
	Withdrawal *Transaction `json:"withdrawal"`
	Deposit    *Transaction `json:"deposit"`
}

// Transfer atomically moves amount between two accounts. Both account locks
// are taken in ascending id order regardless of direction, the balance guard
// is re-checked under the held locks, and the two balance mutations plus the
// two ledger legs commit as one unit. No observer ever sees funds leave the
// source without having arrived at the destination.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, ErrSameAccountTransfer
	}

	var result *TransferResult
	err := s.withRetry(ctx, func(ctx context.Context) error {
		release, err := s.locks.acquire(ctx, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return err
		}
		defer release()

		return s.store.Atomic(ctx, func(tx Store) error {
			from, err := tx.ReadAccount(ctx, req.FromAccountID)
			if err != nil {
				return fmt.Errorf("source account %s: %w", req.FromAccountID, err)
			}
			to, err := tx.ReadAccount(ctx, req.ToAccountID)
			if err != nil {
				return fmt.Errorf("destination account %s: %w", req.ToAccountID, err)
			}

			// The guard runs under both held locks; a check made before
			// acquisition could be stale by now.
			if err := Authorize(from.Balance, req.Amount.Neg()); err != nil {
				return err
			}

			from.Balance = from.Balance.Sub(req.Amount)
			to.Balance = to.Balance.Add(req.Amount)
			if err := tx.WriteAccount(ctx, from); err != nil {
				return fmt.Errorf("write source account %s: %w", from.ID, err)
			}
			if err := tx.WriteAccount(ctx, to); err != nil {
				return fmt.Errorf("write destination account %s: %w", to.ID, err)
			}

			transferID := uuid.NewString()
			now := time.Now().UTC()

			withdrawal, err := tx.AppendTransaction(ctx, &Transaction{
				Amount:     req.Amount,
				Kind:       KindWithdrawal,
				Timestamp:  now,
				AccountID:  from.ID,
				TransferID: transferID,
			})
			if err != nil {
				return fmt.Errorf("append withdrawal leg: %w", err)
			}
			deposit, err := tx.AppendTransaction(ctx, &Transaction{
				Amount:     req.Amount,
				Kind:       KindDeposit,
				Timestamp:  now,
				AccountID:  to.ID,
				TransferID: transferID,
			})
			if err != nil {
				return fmt.Errorf("append deposit leg: %w", err)
			}

			result = &TransferResult{
				TransferID: transferID,
				From:       from,
				To:         to,
				Withdrawal: withdrawal,
				Deposit:    deposit,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetAccount returns the account with the given id.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	account, err := s.store.ReadAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	return account, nil
}

// GetAccountByNumber returns the account with the given business number.
func (s *Service) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	account, err := s.store.ReadAccountByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("account number %s: %w", number, err)
	}
	return account, nil
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	return s.store.ListAccounts(ctx)
}

// UpdateAccountOwner reassigns an account to a different owner. The account
// number and id stay immutable; balance changes go through transactions only.
func (s *Service) UpdateAccountOwner(ctx context.Context, id, ownerID string) (*Account, error) {
	release, err := s.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	account, err := s.store.ReadAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	account.OwnerID = ownerID
	if err := s.store.WriteAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("write account %s: %w", id, err)
	}
	return account, nil
}

// DeleteAccount removes an account record. The lock serializes the delete
// against in-flight balance operations.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	release, err := s.locks.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return nil
}

// GetTransaction returns one ledger entry.
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	entry, err := s.store.FindTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", id, err)
	}
	return entry, nil
}

// TransactionsByAccount returns the ledger entries of one account in
// insertion order. The account must exist.
func (s *Service) TransactionsByAccount(ctx context.Context, accountID string) ([]*Transaction, error) {
	if _, err := s.store.ReadAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("account %s: %w", accountID, err)
	}
	return s.store.TransactionsByAccount(ctx, accountID)
}

// TransactionsByKind returns all entries of one kind.
func (s *Service) TransactionsByKind(ctx context.Context, kind Kind) ([]*Transaction, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
	return s.store.TransactionsByKind(ctx, kind)
}

// ListTransactions returns every ledger entry.
func (s *Service) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// withRetry runs op up to maxRetries times, backing off linearly between
// attempts that failed with a retryable conflict. Exhaustion surfaces
// ErrConflict; any other error propagates as is.
func (s *Service) withRetry(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = op(ctx)
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		if attempt < maxRetries-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * retryBackoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrConflict, ctx.Err())
			}
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxRetries, err)
}

func checkAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("amount %s: %w", amount, ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("amount %s exceeds two decimal digits: %w", amount, ErrInvalidAmount)
	}
	return nil
}
