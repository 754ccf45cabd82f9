// AngelaMos | 2026
// postgres.go

package throttle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type postgresStore struct {
	db core.DBTX
}

func NewPostgresStore(db core.DBTX) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Get(
	ctx context.Context,
	key string,
	purpose Purpose,
) (*Record, error) {
	query := `
		SELECT key, purpose, count, last_attempt
		FROM attempt_records
		WHERE key = $1 AND purpose = $2`

	var rec Record
	err := s.db.GetContext(ctx, &rec, query, key, purpose)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt record: %w", err)
	}

	return &rec, nil
}

func (s *postgresStore) Increment(
	ctx context.Context,
	key string,
	purpose Purpose,
	now time.Time,
	window time.Duration,
) (int, error) {
	query := `
		INSERT INTO attempt_records (key, purpose, count, last_attempt)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (key, purpose) DO UPDATE
		SET count = CASE
		        WHEN attempt_records.last_attempt <= $4 THEN 1
		        ELSE attempt_records.count + 1
		    END,
		    last_attempt = EXCLUDED.last_attempt
		RETURNING count`

	var count int
	err := s.db.GetContext(ctx, &count, query,
		key,
		purpose,
		now,
		now.Add(-window),
	)
	if err != nil {
		return 0, fmt.Errorf("increment attempt record: %w", err)
	}

	return count, nil
}

func (s *postgresStore) Delete(
	ctx context.Context,
	key string,
	purpose Purpose,
) error {
	query := `DELETE FROM attempt_records WHERE key = $1 AND purpose = $2`

	if _, err := s.db.ExecContext(ctx, query, key, purpose); err != nil {
		return fmt.Errorf("delete attempt record: %w", err)
	}

	return nil
}

func (s *postgresStore) DeleteStale(
	ctx context.Context,
	before time.Time,
) (int64, error) {
	query := `DELETE FROM attempt_records WHERE last_attempt <= $1`

	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale attempt records: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale attempt records: %w", err)
	}

	return n, nil
}
