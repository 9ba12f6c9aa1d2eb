package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mpole/hdt-auth/internal/models"
)

// TokenManager signs and validates access and refresh tokens.
// The signing key is fixed at construction and safe for concurrent use.
type TokenManager struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             []byte(secret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
	}
}

// GenerateAccessToken creates a short-lived access token carrying the
// subject's role.
func (tm *TokenManager) GenerateAccessToken(loginID, role string) (string, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		Type: models.TokenTypeAccess,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   loginID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// GenerateRefreshToken creates a long-lived refresh token bound to one
// device. The device id in the claims prevents replay against another
// device's session record.
func (tm *TokenManager) GenerateRefreshToken(loginID, deviceID string) (string, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		Type:     models.TokenTypeRefresh,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   loginID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.refreshTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token's signature, structure and expiry and
// returns its claims. All failures map to ErrInvalidToken.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})

	if err != nil {
		return nil, models.ErrInvalidToken
	}

	if !token.Valid {
		return nil, models.ErrInvalidToken
	}

	if claims.Type != models.TokenTypeAccess && claims.Type != models.TokenTypeRefresh {
		return nil, models.ErrInvalidToken
	}

	return claims, nil
}

// AccessTokenExpiry returns the configured access token lifetime.
func (tm *TokenManager) AccessTokenExpiry() time.Duration {
	return tm.accessTokenExpiry
}

// RefreshTokenExpiry returns the configured refresh token lifetime.
func (tm *TokenManager) RefreshTokenExpiry() time.Duration {
	return tm.refreshTokenExpiry
}
