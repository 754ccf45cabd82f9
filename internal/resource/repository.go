// AngelaMos | 2026
// repository.go

package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Resource, error)
	List(ctx context.Context) ([]Resource, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Resource, error) {
	query := `
		SELECT id, name, logo, price_ref, content_url, free, created_at
		FROM resources
		WHERE id = $1`

	var res Resource
	err := r.db.GetContext(ctx, &res, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get resource: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}

	return &res, nil
}

func (r *repository) List(ctx context.Context) ([]Resource, error) {
	query := `
		SELECT id, name, logo, price_ref, content_url, free, created_at
		FROM resources
		ORDER BY name ASC, id ASC`

	var out []Resource
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	return out, nil
}
