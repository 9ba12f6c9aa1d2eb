package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token type markers carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims are the signed claims of both access and refresh tokens.
// Access tokens carry the role; refresh tokens carry the bound device id.
type TokenClaims struct {
	Type     string `json:"type"`
	Role     string `json:"role,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}
