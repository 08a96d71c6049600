package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnloop-backend/internal/models"
)

// PostgresStore keeps each aggregate as a JSONB document so a merge stays
// shallow field replacement, identical in behavior to the redis backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*models.DailyActivityAggregate, error) {
	var doc []byte
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT doc, updated_at FROM daily_activity WHERE key = $1", key,
	).Scan(&doc, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var agg models.DailyActivityAggregate
	if err := json.Unmarshal(doc, &agg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	agg.UpdatedAt = updatedAt
	return &agg, nil
}

func (s *PostgresStore) Merge(ctx context.Context, key string, patch Patch) error {
	if err := validatePatch(patch); err != nil {
		return err
	}

	doc, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch for %s: %w", key, err)
	}

	// jsonb || is exactly a shallow top-level merge; updated_at comes from
	// the database server.
	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_activity (key, doc)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET doc = daily_activity.doc || EXCLUDED.doc,
			updated_at = NOW()
	`, key, doc)
	if err != nil {
		return fmt.Errorf("merge %s: %w", key, err)
	}
	return nil
}
