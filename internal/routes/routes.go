package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mpole/hdt-auth/internal/auth"
	"github.com/mpole/hdt-auth/internal/handlers"
	"github.com/mpole/hdt-auth/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
) {
	rateLimitConfig := middleware.DefaultLoginRateLimit()

	// Public routes - only login takes unauthenticated traffic
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/api/auth/login", authHandler.Login)

	// Routes that take a bearer token of either type
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		// Refresh and logout present the device-bound refresh token
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRefreshToken)

			r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/api/auth/refresh", authHandler.Refresh)
			r.Post("/api/auth/logout", authHandler.Logout)
		})

		// Everything else requires a live access token
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAccessToken)

			r.Post("/api/auth/logout/all", authHandler.LogoutAll)
			r.Get("/api/auth/sessions", authHandler.Sessions)
			r.Delete("/api/auth/sessions/{deviceId}", authHandler.RevokeDevice)
			r.Post("/api/auth/change-password", authHandler.ChangePassword)
			r.Get("/api/auth/me", authHandler.Me)

			// Admin-only
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole("ADMIN"))
				r.Post("/api/auth/unlock/{loginId}", authHandler.Unlock)
			})
		})
	})
}
