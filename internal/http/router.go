package http

import (
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/storefront/identity/internal/http/handlers"
	"github.com/storefront/identity/internal/middleware"
	"github.com/storefront/identity/internal/model"
)

// NewRouter creates a new HTTP router with all routes configured. A nil
// limiter disables rate limiting. Forwarding headers are honored only from
// trustedProxies.
func NewRouter(
	accountHandler *handlers.AccountHandler,
	healthHandler *handlers.HealthHandler,
	authenticator middleware.Authenticator,
	limiter *middleware.RateLimiter,
	trustedProxies []netip.Prefix,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.TrustedRealIP(trustedProxies))
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", accountHandler.HandleSignup)
		r.Post("/refresh", accountHandler.HandleRefresh)
		r.Post("/continue-with-google", accountHandler.HandleGoogle)
		r.Post("/continue-with-apple", accountHandler.HandleApple)

		// Credential and OTP endpoints are limited per client IP
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(middleware.RateLimitMiddleware(limiter, middleware.GetIPKey))
			}
			r.Post("/login", accountHandler.HandleLogin)
			r.Post("/otp", accountHandler.HandleRequestOTP)
			r.Post("/otp/verify", accountHandler.HandleVerifyOTP)
		})

		// Protected routes (require a live session)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authenticator, logger))
			r.Get("/me", accountHandler.HandleMe)
			r.Post("/logout", accountHandler.HandleLogout)
			r.With(middleware.RequireRole(model.RoleAdmin)).Delete("/{id}/session", accountHandler.HandleRevokeSession)
		})
	})

	return r
}
