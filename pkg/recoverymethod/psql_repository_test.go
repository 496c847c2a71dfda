package recoverymethod

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-recovery/pkg/database/dbtest"
	"github.com/tendant/simple-recovery/pkg/hasher"
)

func TestPostgresRecoveryMethodRepository(t *testing.T) {
	pool := dbtest.NewPool(t)
	repo := NewPostgresRecoveryMethodRepository(pool)
	svc := NewRecoveryMethodService(repo)
	ctx := context.Background()

	userID := uuid.New()
	dbtest.CreateUser(t, pool, userID.String(), "user@example.com")

	questions, err := svc.AddSecurityQuestions(ctx, userID, []QuestionInput{{"City?", "Paris"}, {"Pet?", "Rex"}}, rc)
	require.NoError(t, err)
	email, err := svc.AddRecoveryEmail(ctx, userID, "backup@example.com", rc)
	require.NoError(t, err)

	t.Run("replace keeps one method per type", func(t *testing.T) {
		again, err := svc.AddRecoveryEmail(ctx, userID, "other@example.com", rc)
		require.NoError(t, err)
		assert.Equal(t, email.ID, again.ID)

		contact, err := svc.GetContact(ctx, email.ID)
		require.NoError(t, err)
		assert.Equal(t, "other@example.com", contact)

		var rows int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM recovery_contact WHERE recovery_method_id = $1`, email.ID).Scan(&rows))
		assert.Equal(t, 1, rows)
	})

	t.Run("questions are stored hashed and ordered", func(t *testing.T) {
		stored, err := repo.FindQuestions(ctx, questions.ID)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, "City?", stored[0].QuestionText)
		assert.True(t, hasher.Matches(" paris ", stored[0].AnswerHash))
	})

	t.Run("set primary leaves exactly one", func(t *testing.T) {
		require.NoError(t, svc.SetPrimary(ctx, questions.ID, userID, rc))
		require.NoError(t, svc.SetPrimary(ctx, email.ID, userID, rc))
		require.NoError(t, svc.SetPrimary(ctx, email.ID, userID, rc))

		var primaries int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM recovery_method WHERE user_id = $1 AND is_primary`, userID).Scan(&primaries))
		assert.Equal(t, 1, primaries)

		selected, found, err := svc.SelectForRecovery(ctx, userID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, email.ID, selected.ID)
	})

	t.Run("rollback on error", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx RecoveryMethodRepository) error {
			if err := tx.ClearPrimary(ctx, userID, time.Now()); err != nil {
				return err
			}
			return fmt.Errorf("abort")
		})
		require.Error(t, err)

		var primaries int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM recovery_method WHERE user_id = $1 AND is_primary`, userID).Scan(&primaries))
		assert.Equal(t, 1, primaries)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, svc.DeleteMethod(ctx, questions.ID, userID, rc))
		var rows int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM security_question WHERE recovery_method_id = $1`, questions.ID).Scan(&rows))
		assert.Zero(t, rows)

		assert.ErrorIs(t, repo.DeleteMethod(ctx, questions.ID, userID), ErrMethodNotFound)
	})
}
