// AngelaMos | 2026
// repository.go

package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, e *Entitlement) (bool, error)
	Get(ctx context.Context, userID, resourceID int64) (*Entitlement, error)
	ListActive(ctx context.Context, userID int64, now time.Time) ([]Entitlement, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Upsert writes the grant for the (user, resource) pair. An existing row
// is overwritten unless it already expires later, so a re-ordered older
// event cannot shorten a newer grant. The bool reports whether a row was
// written.
func (r *repository) Upsert(ctx context.Context, e *Entitlement) (bool, error) {
	query := `
		INSERT INTO entitlements (
			user_id, resource_id, expires_at, session_ref, payment_intent_ref, granted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, resource_id) DO UPDATE SET
			expires_at         = EXCLUDED.expires_at,
			session_ref        = EXCLUDED.session_ref,
			payment_intent_ref = EXCLUDED.payment_intent_ref,
			granted_at         = EXCLUDED.granted_at
		WHERE entitlements.expires_at <= EXCLUDED.expires_at`

	result, err := r.db.ExecContext(ctx, query,
		e.UserID,
		e.ResourceID,
		e.ExpiresAt,
		e.SessionRef,
		e.PaymentIntentRef,
		e.GrantedAt,
	)
	if err != nil {
		if core.ForeignKeyViolation(err) {
			return false, fmt.Errorf("upsert entitlement: %w", core.ErrNotFound)
		}
		return false, fmt.Errorf("upsert entitlement: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert entitlement: %w", err)
	}

	return n > 0, nil
}

func (r *repository) Get(
	ctx context.Context,
	userID, resourceID int64,
) (*Entitlement, error) {
	query := `
		SELECT user_id, resource_id, expires_at, session_ref, payment_intent_ref, granted_at
		FROM entitlements
		WHERE user_id = $1 AND resource_id = $2`

	var e Entitlement
	err := r.db.GetContext(ctx, &e, query, userID, resourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get entitlement: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}

	return &e, nil
}

func (r *repository) ListActive(
	ctx context.Context,
	userID int64,
	now time.Time,
) ([]Entitlement, error) {
	query := `
		SELECT user_id, resource_id, expires_at, session_ref, payment_intent_ref, granted_at
		FROM entitlements
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY expires_at ASC`

	var out []Entitlement
	if err := r.db.SelectContext(ctx, &out, query, userID, now); err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	return out, nil
}

func (r *repository) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE expires_at > $1)  AS active,
			COUNT(*) FILTER (WHERE expires_at <= $1) AS expired,
			COUNT(*)                                 AS total
		FROM entitlements`

	var stats Stats
	if err := r.db.GetContext(ctx, &stats, query, now); err != nil {
		return nil, fmt.Errorf("entitlement stats: %w", err)
	}

	return &stats, nil
}
