package api

import (
	"context"
	"errors"
	"net/http"
)

// userIDHeader carries the acting user id, resolved by the upstream
// authentication gateway. Session establishment is not this service's job.
const userIDHeader = "X-User-ID"

// ErrNoIdentity is returned when no user id is present on the context.
var ErrNoIdentity = errors.New("api: no authenticated user in context")

type userIDKey struct{}

// WithUserID returns a context carrying the acting user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID extracts the acting user id from the context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// requireUser rejects requests without a user id header and stores the id on
// the request context for downstream handlers and the identity provider.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(userIDHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

// Identity resolves the acting user id from the request context.
// It implements attachment.Identity.
type Identity struct{}

func (Identity) CurrentUserID(ctx context.Context) (string, error) {
	id, ok := UserID(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id, nil
}
