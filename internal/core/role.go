// AngelaMos | 2026
// role.go

package core

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole never fails. Anything other than a recognised role, in any
// case, becomes RoleUser.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

func (r Role) String() string {
	return string(ParseRole(string(r)))
}

func (r Role) IsAdmin() bool {
	return ParseRole(string(r)) == RoleAdmin
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = RoleUser
	case string:
		*r = ParseRole(v)
	case []byte:
		*r = ParseRole(string(v))
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
	return nil
}

func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
