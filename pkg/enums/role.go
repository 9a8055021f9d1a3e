package enums

import (
	"fmt"
	"strings"
)

// Role is the role claim carried by identity-provider tokens.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleStaff
}

func ParseRole(value string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	if r.IsValid() {
		return r, nil
	}
	return "", fmt.Errorf("invalid role %q", value)
}
