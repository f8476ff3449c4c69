package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndReadUser(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, CreateUserRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	found, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Name)

	byEmail, err := svc.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{Name: "", Email: "a@example.com", Password: "long enough"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Name: "   ", Email: "a@example.com", Password: "long enough"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Name: "Bob", Email: "not-an-email", Password: "long enough"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Name: "Bob", Email: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPasswordHashing(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, CreateUserRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	stored, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.True(t, svc.CheckPassword(stored, "correct horse"))
	assert.False(t, svc.CheckPassword(stored, "wrong"))
}

func TestDuplicateEmailRejected(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Name: "Other", Email: "Alice@Example.com", Password: "battery staple"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateUser(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a, err := svc.CreateUser(ctx, CreateUserRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	b, err := svc.CreateUser(ctx, CreateUserRequest{Name: "Bob", Email: "bob@example.com", Password: "battery staple"})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, a.ID, UpdateUserRequest{Name: "Alicia"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "alice@example.com", updated.Email)

	// Moving to an email held by another user fails.
	_, err = svc.UpdateUser(ctx, b.ID, UpdateUserRequest{Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	// Rewriting your own email is fine.
	_, err = svc.UpdateUser(ctx, a.ID, UpdateUserRequest{Email: "Alice@example.com"})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, "missing", UpdateUserRequest{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUserFreesEmail(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	a, err := svc.CreateUser(ctx, CreateUserRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, a.ID))

	assert.ErrorIs(t, svc.DeleteUser(ctx, a.ID), ErrNotFound)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Name: "Alice II", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
}
