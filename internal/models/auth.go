package models

import "github.com/golang-jwt/jwt/v5"

// ActorClaims is the access token payload of a depot operator. Tokens are minted by the identity
// provider; this service only verifies them.
type ActorClaims struct {
	ActorID string   `json:"actor_id"`
	Role    UserRole `json:"role"`
	Name    string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor names who performed an operation in audit logs and job metadata. Tokens without actor_id
// fall back to the registered subject.
func (c *ActorClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.ActorID != "" {
		return c.ActorID
	}
	return c.Subject
}
