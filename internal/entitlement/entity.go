// AngelaMos | 2026
// entity.go

package entitlement

import (
	"time"
)

// DefaultDurationDays applies when neither the price nor the config sets a
// duration.
const DefaultDurationDays = 3

type Entitlement struct {
	UserID           int64     `db:"user_id"`
	ResourceID       int64     `db:"resource_id"`
	ExpiresAt        time.Time `db:"expires_at"`
	SessionRef       string    `db:"session_ref"`
	PaymentIntentRef string    `db:"payment_intent_ref"`
	GrantedAt        time.Time `db:"granted_at"`
}

// Active is true strictly before the expiry instant.
func (e *Entitlement) Active(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Refs are the provider references of the payment behind a grant.
type Refs struct {
	SessionID       string
	PaymentIntentID string
}

type GrantRequest struct {
	UserID       int64
	ResourceID   int64
	DurationDays int
	Refs         Refs
	// IssuedAt is the confirmation event time. Redelivery of one event
	// carries the same value, so the computed expiry does not move.
	IssuedAt time.Time
}

type Stats struct {
	Active  int64 `db:"active"  json:"active"`
	Expired int64 `db:"expired" json:"expired"`
	Total   int64 `db:"total"   json:"total"`
}
