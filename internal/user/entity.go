// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type User struct {
	ID           int64     `db:"id"`
	Pseudo       string    `db:"pseudo"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         core.Role `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

const (
	constraintEmail  = "users_email_key"
	constraintPseudo = "users_pseudo_key"
)
