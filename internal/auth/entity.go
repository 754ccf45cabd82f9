// AngelaMos | 2026
// entity.go

package auth

import (
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

// Session is the server-side record behind a session token. Revoking a
// session means deleting this record; the token alone grants nothing.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      core.Role `json:"role"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type UserInfo struct {
	ID           int64
	Pseudo       string
	Email        string
	PasswordHash string
	Role         core.Role
	CreatedAt    time.Time
}
