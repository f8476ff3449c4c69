// Package users manages the account-holder directory backing the ledger
// engine. Users own accounts; the ledger references them by owner id only.
package users

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches the given id or email.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when a create or update would reuse an
	// email address already registered to another user.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidInput is returned when a request fails field validation.
	ErrInvalidInput = errors.New("invalid input")
)

// User is an account holder. PasswordHash never leaves the process in API
// responses.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Clone returns an independent copy.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Store is the persistence contract for the user directory.
type Store interface {
	ReadUser(ctx context.Context, id string) (*User, error)
	ReadUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) (*User, error)
	WriteUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]*User, error)
	DeleteUser(ctx context.Context, id string) error
}
