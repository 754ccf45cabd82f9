// AngelaMos | 2026
// entity.go

package resource

import (
	"time"
)

// Resource is a purchasable location pack. Free resources need no
// entitlement.
type Resource struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Logo      *string   `db:"logo"       json:"logo,omitempty"`
	PriceRef  *string   `db:"price_ref"  json:"-"`
	Content   *string   `db:"content_url" json:"-"`
	Free      bool      `db:"free"       json:"free"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Price returns the provider price reference, or "" when none is set.
func (r *Resource) Price() string {
	if r.PriceRef == nil {
		return ""
	}
	return *r.PriceRef
}
