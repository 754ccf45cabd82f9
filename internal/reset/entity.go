// AngelaMos | 2026
// entity.go

package reset

import (
	"time"
)

type Code struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired is true from the expiry instant onward.
func (c *Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type outcome int

const (
	codeValid outcome = iota
	codeMissing
	codeExpired
	codeMismatch
)

func (o outcome) String() string {
	switch o {
	case codeValid:
		return "valid"
	case codeMissing:
		return "missing"
	case codeExpired:
		return "expired"
	case codeMismatch:
		return "mismatch"
	}
	return "unknown"
}
