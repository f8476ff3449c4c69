package users

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the user directory in process memory. Reads hand out
// copies so callers cannot mutate stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	emails map[string]string // lowercased email -> user id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*User),
		emails: make(map[string]string),
	}
}

func (s *MemoryStore) ReadUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *MemoryStore) ReadUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("user email %s: %w", email, ErrNotFound)
	}
	return s.users[id].Clone(), nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(u.Email)
	if _, exists := s.emails[key]; exists {
		return nil, fmt.Errorf("email %s: %w", u.Email, ErrDuplicateEmail)
	}
	stored := u.Clone()
	stampUser(stored)
	s.users[stored.ID] = stored
	s.emails[key] = stored.ID
	return stored.Clone(), nil
}

func (s *MemoryStore) WriteUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	key := normalizeEmail(u.Email)
	if owner, exists := s.emails[key]; exists && owner != u.ID {
		return fmt.Errorf("email %s: %w", u.Email, ErrDuplicateEmail)
	}
	delete(s.emails, normalizeEmail(current.Email))
	s.emails[key] = u.ID
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(s.emails, normalizeEmail(u.Email))
	delete(s.users, id)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func stampUser(u *User) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
}
