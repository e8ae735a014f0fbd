package users_test

import (
	"testing"

	"github.com/jrsteele09/go-reader-client/internal/fakeapi/users"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, username, email, password string) *users.User {
	t.Helper()
	hash, err := users.HashPassword(password)
	require.NoError(t, err)
	return &users.User{Username: username, Email: email, PasswordHash: hash, Role: "user", IsActive: true}
}

func TestCreateAssignsIDAndRejectsDuplicates(t *testing.T) {
	repo := users.NewInMemoryRepo()
	alice := newUser(t, "alice", "alice@example.com", "pw")
	require.NoError(t, repo.Create(alice))
	require.NotEmpty(t, alice.ID)

	require.ErrorIs(t, repo.Create(newUser(t, "ALICE", "other@example.com", "pw")), users.ErrUsernameTaken)
	require.ErrorIs(t, repo.Create(newUser(t, "bob", "Alice@Example.com", "pw")), users.ErrEmailTaken)

	found, err := repo.GetByID(alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", found.Username)

	_, err = repo.GetByUsername("nobody")
	require.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestAuthenticate(t *testing.T) {
	repo := users.NewInMemoryRepo()
	require.NoError(t, repo.Create(newUser(t, "alice", "alice@example.com", "pw")))

	user, err := users.Authenticate(repo, "Alice", "pw")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	_, err = users.Authenticate(repo, "alice", "wrong")
	require.ErrorIs(t, err, users.ErrBadCredentials)
	_, err = users.Authenticate(repo, "nobody", "pw")
	require.ErrorIs(t, err, users.ErrBadCredentials)

	inactive := newUser(t, "carol", "carol@example.com", "pw")
	inactive.IsActive = false
	require.NoError(t, repo.Create(inactive))
	_, err = users.Authenticate(repo, "carol", "pw")
	require.ErrorIs(t, err, users.ErrBadCredentials)
}
