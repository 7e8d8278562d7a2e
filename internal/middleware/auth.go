package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/storefront/identity/internal/auth"
	"github.com/storefront/identity/internal/model"
)

type contextKey string

const (
	accountIDKey contextKey = "account_id"
	roleKey      contextKey = "role"
)

// Authenticator validates a bearer access token against the live session marker
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.TokenClaims, error)
}

// AuthMiddleware validates the bearer token and its session marker, and
// attaches the account id and role to the request context
func AuthMiddleware(authenticator Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respondWithError(w, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := authenticator.Authenticate(r.Context(), tokenString)
			if errors.Is(err, auth.ErrUnauthorized) {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if err != nil {
				logger.Error("authenticate request", zap.Error(err))
				respondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, claims.UserID)
			ctx = context.WithValue(ctx, roleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request only when the authenticated role is one of roles.
// It must run after AuthMiddleware.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRole(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondWithError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// GetAccountID extracts the account ID from context
func GetAccountID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(accountIDKey).(int64)
	return id, ok
}

// GetRole extracts the role from context
func GetRole(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleKey).(model.Role)
	return role, ok
}

// WithAccount returns ctx carrying an authenticated account, as AuthMiddleware would
func WithAccount(ctx context.Context, accountID int64, role model.Role) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	return context.WithValue(ctx, roleKey, role)
}
