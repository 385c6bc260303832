package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/Antone-2/supplies-core/internal/identity"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityMiddleware resolves the caller's shopping identity: an
// authenticated user id from the session header, otherwise the guest token
// the client sent along. Requests carrying neither still pass through;
// handlers that need an identity reject them.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id identity.Identity

		if userID := r.Header.Get("X-User-ID"); userID != "" {
			id = identity.User(userID)
		} else if guestID := guestIDFrom(r); guestID != "" {
			id = identity.Guest(guestID)
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func guestIDFrom(r *http.Request) string {
	if guestID := r.Header.Get("X-Guest-ID"); guestID != "" {
		return guestID
	}
	return r.URL.Query().Get("guest_id")
}

func identityFromContext(ctx context.Context) identity.Identity {
	if id, ok := ctx.Value(identityKey).(identity.Identity); ok {
		return id
	}
	return identity.Identity{}
}

// RequireAdmin gates back-office operations behind a shared admin token.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Token")
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondError(w, http.StatusForbidden, "permission_denied", "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
