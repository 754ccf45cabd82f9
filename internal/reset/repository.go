// AngelaMos | 2026
// repository.go

package reset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type Repository interface {
	Replace(ctx context.Context, code *Code) error
	Latest(ctx context.Context, email string) (*Code, error)
	DeleteForEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Replace deletes every code for the email and inserts the new one in a
// single transaction, so at most one code exists per email.
func (r *repository) Replace(ctx context.Context, code *Code) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM password_resets WHERE email = $1`,
			code.Email,
		); err != nil {
			return fmt.Errorf("delete prior codes: %w", err)
		}

		query := `
			INSERT INTO password_resets (email, code, expires_at, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`

		if err := tx.QueryRowxContext(
			ctx,
			query,
			code.Email,
			code.Code,
			code.ExpiresAt,
			code.CreatedAt,
		).Scan(&code.ID); err != nil {
			return fmt.Errorf("insert reset code: %w", err)
		}

		return nil
	})
}

func (r *repository) Latest(ctx context.Context, email string) (*Code, error) {
	query := `
		SELECT id, email, code, expires_at, created_at
		FROM password_resets
		WHERE email = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var code Code
	err := r.db.GetContext(ctx, &code, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest reset code: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest reset code: %w", err)
	}

	return &code, nil
}

func (r *repository) DeleteForEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(
		ctx,
		`DELETE FROM password_resets WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("delete reset codes: %w", err)
	}
	return nil
}

func (r *repository) DeleteExpired(
	ctx context.Context,
	now time.Time,
) (int64, error) {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM password_resets WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("purge reset codes: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge reset codes: %w", err)
	}

	return n, nil
}
