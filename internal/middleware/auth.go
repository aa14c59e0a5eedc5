// Package middleware provides HTTP middleware for the chat API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nordveil/sitechat/internal/service"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// ContextKeyRole is the context key for the authenticated role.
const ContextKeyRole contextKey = "role"

// RoleFromContext extracts the role from the request context.
// Returns empty string if not present.
func RoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ContextKeyRole).(string)
	return v
}

// RequireAdmin validates the admin JWT and injects the role into the
// request context. Requests without a valid admin token get 401/403.
func RequireAdmin(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "invalid Authorization header format (expected: Bearer <token>)")
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == "" {
				writeAuthError(w, http.StatusUnauthorized, "empty bearer token")
				return
			}

			claims, err := authSvc.VerifyToken(tokenStr)
			if err != nil {
				slog.Debug("JWT verification failed", "error", err)
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if claims.Role != "admin" {
				writeAuthError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Plain concatenation to avoid an import cycle with the handler package
	w.Write([]byte(`{"error":"` + http.StatusText(status) + `","message":"` + message + `"}`))
}
