package recoverymethod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresRecoveryMethodRepository struct {
	db DBTX
}

// NewPostgresRecoveryMethodRepository needs a db that can begin transactions,
// such as *pgxpool.Pool, for WithinTx.
func NewPostgresRecoveryMethodRepository(db DBTX) *PostgresRecoveryMethodRepository {
	return &PostgresRecoveryMethodRepository{db: db}
}

func (r *PostgresRecoveryMethodRepository) WithinTx(ctx context.Context, fn func(repo RecoveryMethodRepository) error) error {
	beginner, ok := r.db.(txBeginner)
	if !ok {
		return fmt.Errorf("recovery method repository cannot begin a transaction")
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op once committed
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&PostgresRecoveryMethodRepository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const methodColumns = `id, user_id, method_type, is_verified, is_primary, created_at, updated_at`

func scanMethod(row pgx.Row, extra ...interface{}) (RecoveryMethod, error) {
	var (
		m          RecoveryMethod
		methodType string
	)
	dest := []interface{}{&m.ID, &m.UserID, &methodType, &m.IsVerified, &m.IsPrimary, &m.CreatedAt, &m.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return RecoveryMethod{}, err
	}
	m.MethodType = MethodType(methodType)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func (r *PostgresRecoveryMethodRepository) GetMethod(ctx context.Context, id uuid.UUID) (RecoveryMethod, error) {
	m, err := scanMethod(r.db.QueryRow(ctx, `SELECT `+methodColumns+` FROM recovery_method WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return RecoveryMethod{}, ErrMethodNotFound
	}
	if err != nil {
		return RecoveryMethod{}, fmt.Errorf("failed to get recovery method: %w", err)
	}
	return m, nil
}

func (r *PostgresRecoveryMethodRepository) FindMethodsByUser(ctx context.Context, userID uuid.UUID) ([]RecoveryMethod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+methodColumns+` FROM recovery_method
		WHERE user_id = $1
		ORDER BY is_primary DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery methods: %w", err)
	}
	defer rows.Close()

	methods := make([]RecoveryMethod, 0)
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recovery method: %w", err)
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recovery methods: %w", err)
	}
	return methods, nil
}

func (r *PostgresRecoveryMethodRepository) UpsertMethod(ctx context.Context, method RecoveryMethod) (RecoveryMethod, bool, error) {
	if method.ID == uuid.Nil {
		method.ID = uuid.New()
	}

	// The conflicting row stays locked until the surrounding transaction ends
	row := r.db.QueryRow(ctx, `
		INSERT INTO recovery_method (`+methodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, method_type) DO UPDATE SET
			is_verified = EXCLUDED.is_verified,
			updated_at = EXCLUDED.updated_at
		RETURNING `+methodColumns+`, (xmax = 0) AS inserted`,
		method.ID, method.UserID, string(method.MethodType), method.IsVerified, method.IsPrimary,
		method.CreatedAt, method.UpdatedAt)

	var inserted bool
	saved, err := scanMethod(row, &inserted)
	if err != nil {
		return RecoveryMethod{}, false, fmt.Errorf("failed to upsert recovery method: %w", err)
	}
	return saved, inserted, nil
}

func (r *PostgresRecoveryMethodRepository) DeleteMethod(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recovery_method WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete recovery method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMethodNotFound
	}
	return nil
}

func (r *PostgresRecoveryMethodRepository) ClearPrimary(ctx context.Context, userID uuid.UUID, updatedAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE recovery_method SET is_primary = false, updated_at = $2
		WHERE user_id = $1 AND is_primary`, userID, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to clear primary recovery method: %w", err)
	}
	return nil
}

func (r *PostgresRecoveryMethodRepository) MarkPrimary(ctx context.Context, id uuid.UUID, userID uuid.UUID, updatedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE recovery_method SET is_primary = true, updated_at = $3
		WHERE id = $1 AND user_id = $2`, id, userID, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to set primary recovery method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMethodNotFound
	}
	return nil
}

func (r *PostgresRecoveryMethodRepository) ReplaceQuestions(ctx context.Context, methodID uuid.UUID, questions []SecurityQuestion) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM security_question WHERE recovery_method_id = $1`, methodID); err != nil {
		return fmt.Errorf("failed to delete security questions: %w", err)
	}

	for _, q := range questions {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		_, err := r.db.Exec(ctx, `
			INSERT INTO security_question (id, recovery_method_id, question, answer_hash, position)
			VALUES ($1, $2, $3, $4, $5)`,
			q.ID, methodID, q.QuestionText, q.AnswerHash, q.Position)
		if err != nil {
			return fmt.Errorf("failed to insert security question: %w", err)
		}
	}
	return nil
}

func (r *PostgresRecoveryMethodRepository) FindQuestions(ctx context.Context, methodID uuid.UUID) ([]SecurityQuestion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, recovery_method_id, question, answer_hash, position
		FROM security_question
		WHERE recovery_method_id = $1
		ORDER BY position`, methodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list security questions: %w", err)
	}
	defer rows.Close()

	questions := make([]SecurityQuestion, 0)
	for rows.Next() {
		var q SecurityQuestion
		if err := rows.Scan(&q.ID, &q.RecoveryMethodID, &q.QuestionText, &q.AnswerHash, &q.Position); err != nil {
			return nil, fmt.Errorf("failed to scan security question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read security questions: %w", err)
	}
	return questions, nil
}

func (r *PostgresRecoveryMethodRepository) ReplaceContact(ctx context.Context, methodID uuid.UUID, value string) (RecoveryContact, error) {
	if _, err := r.db.Exec(ctx, `DELETE FROM recovery_contact WHERE recovery_method_id = $1`, methodID); err != nil {
		return RecoveryContact{}, fmt.Errorf("failed to delete recovery contact: %w", err)
	}

	contact := RecoveryContact{ID: uuid.New(), RecoveryMethodID: methodID, Value: value}
	_, err := r.db.Exec(ctx, `
		INSERT INTO recovery_contact (id, recovery_method_id, contact_value)
		VALUES ($1, $2, $3)`, contact.ID, methodID, value)
	if err != nil {
		return RecoveryContact{}, fmt.Errorf("failed to insert recovery contact: %w", err)
	}
	return contact, nil
}

func (r *PostgresRecoveryMethodRepository) GetContact(ctx context.Context, methodID uuid.UUID) (RecoveryContact, error) {
	var c RecoveryContact
	err := r.db.QueryRow(ctx, `
		SELECT id, recovery_method_id, contact_value FROM recovery_contact
		WHERE recovery_method_id = $1`, methodID).Scan(&c.ID, &c.RecoveryMethodID, &c.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		return RecoveryContact{}, ErrContactNotFound
	}
	if err != nil {
		return RecoveryContact{}, fmt.Errorf("failed to get recovery contact: %w", err)
	}
	return c, nil
}
