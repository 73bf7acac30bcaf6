package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civicpulse/internal/rating/models"
	id "civicpulse/pkg/domain"
	"civicpulse/pkg/platform/sentinel"
	txcontext "civicpulse/pkg/platform/tx"
)

// PostgresStore persists ratings in the ratings table. The user_id primary
// key is what guarantees one row per citizen.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Upsert is a single INSERT ... ON CONFLICT statement; xmax = 0 only on the
// insert path.
func (s *PostgresStore) Upsert(ctx context.Context, rating *models.Rating) (bool, error) {
	query := `
		INSERT INTO ratings (user_id, score, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			score = EXCLUDED.score,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS created
	`
	var created bool
	err := s.querier(ctx).QueryRowContext(ctx, query,
		rating.UserID.String(),
		rating.Score,
		nullableComment(rating.Comment),
		rating.CreatedAt,
		rating.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert rating: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (*models.Rating, error) {
	query := `
		SELECT user_id, score, comment, created_at, updated_at
		FROM ratings
		WHERE user_id = $1
	`
	var (
		rating    models.Rating
		rawUserID string
		comment   sql.NullString
	)
	err := s.querier(ctx).QueryRowContext(ctx, query, userID.String()).Scan(
		&rawUserID,
		&rating.Score,
		&comment,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find rating: %w", err)
	}
	rating.UserID = id.UserID(rawUserID)
	rating.Comment = comment.String
	return &rating, nil
}

// ScoreCounts reads all per-score counts in one statement, which Postgres
// evaluates against a single snapshot.
func (s *PostgresStore) ScoreCounts(ctx context.Context) (models.ScoreCounts, error) {
	var counts models.ScoreCounts
	rows, err := s.querier(ctx).QueryContext(ctx, `SELECT score, COUNT(*) FROM ratings GROUP BY score`)
	if err != nil {
		return counts, fmt.Errorf("count ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			score int
			n     int64
		)
		if err := rows.Scan(&score, &n); err != nil {
			return models.ScoreCounts{}, fmt.Errorf("scan rating count: %w", err)
		}
		counts.Add(score, n)
	}
	if err := rows.Err(); err != nil {
		return models.ScoreCounts{}, fmt.Errorf("iterate rating counts: %w", err)
	}
	return counts, nil
}

func nullableComment(comment string) sql.NullString {
	return sql.NullString{String: comment, Valid: comment != ""}
}
