package auth

// Principal is the authenticated identity resolved from a session token.
type Principal struct {
	ID    string
	Email string
	Name  string
}

// Principal derives the request principal from verified claims.
func (c *SessionClaims) Principal() Principal {
	return Principal{
		ID:    c.PrincipalID(),
		Email: c.Email,
		Name:  c.Name,
	}
}
