package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mpole/hdt-auth/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// PrincipalContextKey is the key for storing the authenticated principal in context
	PrincipalContextKey contextKey = "principal"
)

// Principal is the authenticated subject established from a bearer token.
// DeviceID is only set for refresh tokens.
type Principal struct {
	LoginID   string
	DeviceID  string
	Role      string
	TokenType string
}

// Authenticate verifies a raw bearer token and projects its claims into a
// Principal. This is the token verification primitive exposed to the
// transport layer.
func Authenticate(tm *TokenManager, bearerToken string) (*Principal, error) {
	claims, err := tm.ValidateToken(bearerToken)
	if err != nil {
		return nil, models.ErrInvalidToken
	}

	return &Principal{
		LoginID:   claims.Subject,
		DeviceID:  claims.DeviceID,
		Role:      claims.Role,
		TokenType: claims.Type,
	}, nil
}

// Middleware validates the Authorization bearer token and injects the
// principal into the request context. Both token types are accepted here;
// route-level middleware below narrows them.
func Middleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			principal, err := Authenticate(tm, parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccessToken rejects refresh tokens; protected API routes accept
// access tokens only.
func RequireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r)
		if principal == nil || principal.TokenType != models.TokenTypeAccess {
			http.Error(w, "access token required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRefreshToken restricts a route to refresh tokens, which carry the
// device binding the session layer needs.
func RequireRefreshToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r)
		if principal == nil || principal.TokenType != models.TokenTypeRefresh || principal.DeviceID == "" {
			http.Error(w, "refresh token required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole enforces role-based access using the role claim.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r)
			if principal == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if principal.Role != role {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the request context.
// Returns nil if not present (e.g., middleware not applied).
func GetPrincipal(r *http.Request) *Principal {
	principal, ok := r.Context().Value(PrincipalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}
