package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-recovery/pkg/database"
	"github.com/tendant/simple-recovery/pkg/database/dbtest"
)

func TestMigrate(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()

	for _, table := range []string{"users", "recovery_method", "security_question", "recovery_contact", "recovery_request", "trusted_device", "auth_event"} {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}

	// Applying again is a no-op
	require.NoError(t, database.Migrate(ctx, pool))
}

func TestMigrateDown(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()

	require.NoError(t, database.MigrateDown(ctx, pool))

	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'auth_event')`).Scan(&exists)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, database.Migrate(ctx, pool))
}
