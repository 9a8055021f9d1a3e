package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

// AccessTokenPayload captures the identity written into a minted token.
type AccessTokenPayload struct {
	Subject string
	Email   string
	Role    enums.Role
	JTI     string
}

// AccessTokenClaims is the bearer token issued by the identity provider.
// The subject lives in RegisteredClaims.Subject.
type AccessTokenClaims struct {
	Email string     `json:"email,omitempty"`
	Role  enums.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// EffectiveRole falls back to staff when the token carries no recognised role.
func (c *AccessTokenClaims) EffectiveRole() enums.Role {
	if c == nil || !c.Role.IsValid() {
		return enums.RoleStaff
	}
	return c.Role
}

// Actor is the name recorded as performed_by: the email when present, else the subject.
func (c *AccessTokenClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
