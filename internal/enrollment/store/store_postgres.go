package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civicpulse/internal/enrollment/models"
	id "civicpulse/pkg/domain"
	"civicpulse/pkg/platform/sentinel"
	txcontext "civicpulse/pkg/platform/tx"
)

// PostgresStore persists enrollments in the enrollments table, one row per user.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Upsert replaces the row in one statement. xmax is non-zero on the
// conflict path, which tells replace apart from insert.
func (s *PostgresStore) Upsert(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	query := `
		INSERT INTO enrollments (user_id, template, fingerprint, enrolled_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			template = EXCLUDED.template,
			fingerprint = EXCLUDED.fingerprint,
			enrolled_at = EXCLUDED.enrolled_at
		RETURNING (xmax <> 0) AS replaced
	`
	var replaced bool
	err := s.querier(ctx).QueryRowContext(ctx, query,
		enrollment.UserID.String(),
		enrollment.Template,
		enrollment.Fingerprint,
		enrollment.EnrolledAt,
	).Scan(&replaced)
	if err != nil {
		return false, fmt.Errorf("upsert enrollment: %w", err)
	}
	return replaced, nil
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (*models.Enrollment, error) {
	query := `
		SELECT user_id, template, fingerprint, enrolled_at
		FROM enrollments
		WHERE user_id = $1
	`
	var (
		enrollment models.Enrollment
		rawUserID  string
	)
	err := s.querier(ctx).QueryRowContext(ctx, query, userID.String()).Scan(
		&rawUserID,
		&enrollment.Template,
		&enrollment.Fingerprint,
		&enrollment.EnrolledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	enrollment.UserID = id.UserID(rawUserID)
	return &enrollment, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID) (bool, error) {
	res, err := s.querier(ctx).ExecContext(ctx, `DELETE FROM enrollments WHERE user_id = $1`, userID.String())
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment rows affected: %w", err)
	}
	return rows > 0, nil
}
