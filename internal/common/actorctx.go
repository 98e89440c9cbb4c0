package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const actorEmailKey ctxKey = "actor/email"

// ActorHeader is set by the upstream gateway after it has authenticated the caller.
const ActorHeader = "X-User-Email"

// WithActorEmail stores the acting user's email on the provided context.
func WithActorEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorEmailKey, email)
}

// ActorEmail extracts the acting user's email from the context if present.
func ActorEmail(ctx context.Context) (string, bool) {
	v := ctx.Value(actorEmailKey)
	if v == nil {
		return "", false
	}
	email, ok := v.(string)
	return email, ok && email != ""
}

// ActorMiddleware copies the gateway identity header into the request context.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.Header.Get(ActorHeader))
		if email != "" {
			r = r.WithContext(WithActorEmail(r.Context(), email))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects requests that carry no gateway identity.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorEmail(r.Context()); !ok {
			JSONError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
