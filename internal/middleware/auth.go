package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hongminglow/taheel-be/internal/http/respond"
)

type contextKey string

const accountIDKey = contextKey("accountID")

// TokenParser verifies a bearer token and returns the account id it was issued for.
type TokenParser interface {
	Parse(raw string) (string, error)
}

// RequireAccount rejects requests without a valid bearer token and stores the
// token's account id in the request context.
func RequireAccount(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respond.Error(w, http.StatusUnauthorized, "authorization header required")
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == header || strings.TrimSpace(raw) == "" {
				respond.Error(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			accountID, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}

// WithAccountID returns a context carrying the authenticated account id.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// AccountID returns the authenticated account id, if any.
func AccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}
