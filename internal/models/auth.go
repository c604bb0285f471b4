package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the payload of access tokens issued by the external
// identity provider. The service only validates the signature and extracts
// the opaque user id; it performs no credential verification of its own.
type IdentityClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
