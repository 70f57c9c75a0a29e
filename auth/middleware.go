package auth

import (
	"chat-service/errors"
	"context"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// DenyFunc writes the response of a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware requires a valid "Authorization: Bearer <token>" header and
// stores the caller's user id in the request context.
func Middleware(tokens *TokenManager, deny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				deny(w, r, fmt.Errorf("%w: authorization token is missing", errors.ErrUnauthenticated))
				return
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				deny(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated caller, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
