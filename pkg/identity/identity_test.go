package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-recovery/pkg/database/dbtest"
)

func TestInMemStore(t *testing.T) {
	store := NewInMemStore()
	ctx := context.Background()

	userID, err := store.CreateUser("User@Example.com", "old-secret")
	require.NoError(t, err)

	_, err = store.CreateUser("user@example.com", "again")
	assert.Error(t, err)

	got, err := store.LookupUserByEmail(ctx, "  USER@example.com ")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = store.LookupUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, store.ResetCredential(ctx, userID, "new-secret"))
	assert.True(t, store.VerifyCredential(userID, "new-secret"))
	assert.False(t, store.VerifyCredential(userID, "old-secret"))

	assert.ErrorIs(t, store.ResetCredential(ctx, uuid.New(), "x"), ErrUserNotFound)
}

func TestHashCredential(t *testing.T) {
	hashed, err := HashCredential("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hashed)
	assert.True(t, CredentialMatches(hashed, "correct horse"))
	assert.False(t, CredentialMatches(hashed, "Correct horse"))
}

func TestPostgresStore(t *testing.T) {
	pool := dbtest.NewPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "Someone@Example.com", "old-secret")
	require.NoError(t, err)

	got, err := store.LookupUserByEmail(ctx, "someone@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = store.LookupUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, store.ResetCredential(ctx, userID, "new-secret"))
	ok, err := store.VerifyCredential(ctx, userID, "new-secret")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, store.ResetCredential(ctx, uuid.New(), "x"), ErrUserNotFound)
}
