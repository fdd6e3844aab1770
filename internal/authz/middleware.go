package authz

import (
	"log/slog"
	"net/http"
)

// Middleware wires authorization guards for HTTP handlers. The identity
// is resolved upstream by the auth identity loader; a missing identity
// fails closed.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
}

// RequireAny admits requests whose identity satisfies at least one key.
func (m Middleware) RequireAny(keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			id := IdentityFromContext(r.Context())
			if m.Evaluator.AnySatisfied(id, keys...) {
				next.ServeHTTP(w, r)
				return
			}
			m.forbid(w, r, keys)
		})
	}
}

// RequireAll admits requests whose identity satisfies every key.
func (m Middleware) RequireAll(keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if m.Evaluator.AllSatisfied(id, keys...) {
				next.ServeHTTP(w, r)
				return
			}
			m.forbid(w, r, keys)
		})
	}
}

func (m Middleware) forbid(w http.ResponseWriter, r *http.Request, keys []string) {
	if m.Logger != nil {
		m.Logger.Info("request denied",
			slog.String("path", r.URL.Path),
			slog.Any("required", keys))
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}
