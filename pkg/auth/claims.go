package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims represents the typed JWT minted by the identity provider.
// This service only verifies tokens; it never issues them.
type SessionClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalID returns the stable identifier for the authenticated user,
// falling back to the registered subject when the custom claim is absent.
func (c *SessionClaims) PrincipalID() string {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}
