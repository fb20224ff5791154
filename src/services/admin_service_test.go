package services

import (
	"context"
	"testing"

	"github.com/pageforge/pageforge/src/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticate(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAdminService(tdb.Pool)

		admin, err := as.CreateAdminUser(ctx, "operator", "correct horse battery")
		require.NoError(t, err)
		assert.NotEqual(t, "correct horse battery", admin.PasswordHash)

		authed, err := as.Authenticate(ctx, "operator", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, authed.ID)

		_, err = as.Authenticate(ctx, "operator", "wrong password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = as.Authenticate(ctx, "nobody", "correct horse battery")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestCreateAdminUser_Validation(t *testing.T) {
	as := NewAdminService(nil)

	_, err := as.CreateAdminUser(context.Background(), "", "long enough password")
	assert.Error(t, err)

	_, err = as.CreateAdminUser(context.Background(), "operator", "short")
	assert.Error(t, err)
}

func TestHasAdmins(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAdminService(tdb.Pool)

		has, err := as.HasAdmins(ctx)
		require.NoError(t, err)
		assert.False(t, has)

		_, err = as.CreateAdminUser(ctx, "operator", "long enough password")
		require.NoError(t, err)

		has, err = as.HasAdmins(ctx)
		require.NoError(t, err)
		assert.True(t, has)
	})
}
