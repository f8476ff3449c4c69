package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It backs unit tests and the dev mode of
// the API binary. A single mutex serializes commits, so an Atomic unit is
// all-or-nothing with respect to every other reader.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	numbers  map[string]string // account number -> account id
	entries  []*Transaction
	byID     map[string]*Transaction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		numbers:  make(map[string]string),
		byID:     make(map[string]*Transaction),
	}
}

func (s *MemoryStore) ReadAccount(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ReadAccountByNumber(ctx context.Context, number string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.numbers[number]
	if !ok {
		return nil, ErrNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, a *Account) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.numbers[a.AccountNumber]; taken {
		return nil, ErrDuplicateAccount
	}
	cp := stampAccount(a)
	s.accounts[cp.ID] = cp
	s.numbers[cp.AccountNumber] = cp.ID
	return cp.Clone(), nil
}

func (s *MemoryStore) WriteAccount(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	s.accounts[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.numbers, a.AccountNumber)
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) AppendTransaction(ctx context.Context, t *Transaction) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := stampEntry(t)
	s.entries = append(s.entries, cp)
	s.byID[cp.ID] = cp
	return cp.Clone(), nil
}

func (s *MemoryStore) FindTransaction(ctx context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) TransactionsByAccount(ctx context.Context, accountID string) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, t := range s.entries {
		if t.AccountID == accountID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) TransactionsByKind(ctx context.Context, kind Kind) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, t := range s.entries {
		if t.Kind == kind {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Transaction, 0, len(s.entries))
	for _, t := range s.entries {
		out = append(out, t.Clone())
	}
	return out, nil
}

// Atomic holds the store lock for the whole unit and stages every write in a
// transactional overlay. The overlay is merged on success and discarded on
// error, so no partial unit is ever observable.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:   s,
		staged:  make(map[string]*Account),
		created: make(map[string]string),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, a := range tx.staged {
		s.accounts[id] = a
	}
	for number, id := range tx.created {
		s.numbers[number] = id
	}
	for _, t := range tx.appended {
		s.entries = append(s.entries, t)
		s.byID[t.ID] = t
	}
	return nil
}

func stampAccount(a *Account) *Account {
	cp := a.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	return cp
}

func stampEntry(t *Transaction) *Transaction {
	cp := t.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	return cp
}

// memTx is the transactional overlay handed to Atomic callbacks. The store
// mutex is already held, so its methods do not lock.
type memTx struct {
	store    *MemoryStore
	staged   map[string]*Account
	created  map[string]string
	appended []*Transaction
}

func (tx *memTx) ReadAccount(ctx context.Context, id string) (*Account, error) {
	if a, ok := tx.staged[id]; ok {
		return a.Clone(), nil
	}
	a, ok := tx.store.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (tx *memTx) ReadAccountByNumber(ctx context.Context, number string) (*Account, error) {
	if id, ok := tx.created[number]; ok {
		return tx.staged[id].Clone(), nil
	}
	id, ok := tx.store.numbers[number]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.ReadAccount(ctx, id)
}

func (tx *memTx) CreateAccount(ctx context.Context, a *Account) (*Account, error) {
	if _, taken := tx.store.numbers[a.AccountNumber]; taken {
		return nil, ErrDuplicateAccount
	}
	if _, taken := tx.created[a.AccountNumber]; taken {
		return nil, ErrDuplicateAccount
	}
	cp := stampAccount(a)
	tx.staged[cp.ID] = cp
	tx.created[cp.AccountNumber] = cp.ID
	return cp.Clone(), nil
}

func (tx *memTx) WriteAccount(ctx context.Context, a *Account) error {
	if _, ok := tx.staged[a.ID]; !ok {
		if _, ok := tx.store.accounts[a.ID]; !ok {
			return ErrNotFound
		}
	}
	tx.staged[a.ID] = a.Clone()
	return nil
}

func (tx *memTx) ListAccounts(ctx context.Context) ([]*Account, error) {
	var out []*Account
	for id, a := range tx.store.accounts {
		if staged, ok := tx.staged[id]; ok {
			out = append(out, staged.Clone())
			continue
		}
		out = append(out, a.Clone())
	}
	for id, a := range tx.staged {
		if _, ok := tx.store.accounts[id]; !ok {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (tx *memTx) DeleteAccount(ctx context.Context, id string) error {
	// Deletes never run inside engine units; route to an immediate error
	// rather than supporting tombstones in the overlay.
	return ErrConflict
}

func (tx *memTx) AppendTransaction(ctx context.Context, t *Transaction) (*Transaction, error) {
	cp := stampEntry(t)
	tx.appended = append(tx.appended, cp)
	return cp.Clone(), nil
}

func (tx *memTx) FindTransaction(ctx context.Context, id string) (*Transaction, error) {
	for _, t := range tx.appended {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	t, ok := tx.store.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (tx *memTx) TransactionsByAccount(ctx context.Context, accountID string) ([]*Transaction, error) {
	var out []*Transaction
	for _, t := range tx.store.entries {
		if t.AccountID == accountID {
			out = append(out, t.Clone())
		}
	}
	for _, t := range tx.appended {
		if t.AccountID == accountID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (tx *memTx) TransactionsByKind(ctx context.Context, kind Kind) ([]*Transaction, error) {
	var out []*Transaction
	for _, t := range tx.store.entries {
		if t.Kind == kind {
			out = append(out, t.Clone())
		}
	}
	for _, t := range tx.appended {
		if t.Kind == kind {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (tx *memTx) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	out := make([]*Transaction, 0, len(tx.store.entries)+len(tx.appended))
	for _, t := range tx.store.entries {
		out = append(out, t.Clone())
	}
	for _, t := range tx.appended {
		out = append(out, t.Clone())
	}
	return out, nil
}

// Atomic on an overlay just runs fn against the same overlay; the enclosing
// unit already provides atomicity.
func (tx *memTx) Atomic(ctx context.Context, fn func(Store) error) error {
	return fn(tx)
}
