package middleware

import (
	"context"
	"net/http"
	"strings"
)

type key string

const contextUserIDKey key = "user_id"

// TokenValidator returns the user id carried by a bearer token.
type TokenValidator interface {
	ValidateToken(tokenStr string) (string, error)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(contextUserIDKey).(string)
	return uid, ok && uid != ""
}

// WithUserID stores userID the way AuthMiddleware does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextUserIDKey, userID)
}

func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "missing or malformed token", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			userID, err := tokens.ValidateToken(tokenStr)
			if err != nil || userID == "" {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
