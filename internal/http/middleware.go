package http

import (
	"context"
	"net/http"
	"strings"
)

const UserIDHeader = "X-User-ID"

type ctxKey int

const userIDKey ctxKey = iota

// UserIDMiddleware takes the acting user from the header set by the gateway.
// The gateway authenticates; the value is trusted as given.
func UserIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "User not authenticated or ID missing")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}
