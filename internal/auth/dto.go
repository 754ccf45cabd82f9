// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=255"`
}

type RegisterRequest struct {
	Pseudo   string `json:"pseudo"   validate:"required,min=2,max=50"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=255"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=128"`
}

type ClientInfo struct {
	IP        string
	UserAgent string
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Pseudo    string    `json:"pseudo"`
	Email     string    `json:"email"`
	Role      core.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginResult struct {
	User      UserResponse
	Token     string
	ExpiresAt time.Time
}

type LoginResponse struct {
	Success   bool         `json:"success"`
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type RegisterResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

type SessionsResponse struct {
	Success  bool          `json:"success"`
	Sessions []SessionInfo `json:"sessions"`
}

// toUserResponse strips the hash and re-normalizes the role.
func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Pseudo:    u.Pseudo,
		Email:     u.Email,
		Role:      core.ParseRole(string(u.Role)),
		CreatedAt: u.CreatedAt,
	}
}
