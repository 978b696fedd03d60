package middleware

import (
	"context"
	"net/http"

	tendergate "github.com/procurity/tendergate"
	"github.com/procurity/tendergate/permission"
)

type sessionContextKey struct{}

// SessionFromContext returns the session snapshot a guard injected for
// this request.
func SessionFromContext(ctx context.Context) (tendergate.SessionState, bool) {
	state, ok := ctx.Value(sessionContextKey{}).(tendergate.SessionState)
	return state, ok
}

// RequireSession rejects requests with 401 while the engine has no live
// session, and injects the session snapshot otherwise.
func RequireSession(engine *tendergate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			state := engine.Session()
			if !state.Authenticated() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability rejects with 401 when signed out and 403 when the
// current subject lacks the capability.
func RequireCapability(engine *tendergate.Engine, c permission.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			state := engine.Session()
			if !state.Authenticated() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !engine.HasPermission(c) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
