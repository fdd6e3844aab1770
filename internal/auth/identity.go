package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// IdentitySource assembles the evaluator input for a user id.
// Implemented by the grants service.
type IdentitySource interface {
	Identity(ctx context.Context, userID string) (*authz.Identity, error)
}

// IdentityLoader resolves the session's user into an authz.Identity and
// stores it in the request context. Concurrent requests for the same
// user share one fetch. Any load failure leaves the identity nil, which
// every downstream check treats as deny.
type IdentityLoader struct {
	source IdentitySource
	logger *slog.Logger
	group  singleflight.Group
}

// NewIdentityLoader constructs an IdentityLoader.
func NewIdentityLoader(source IdentitySource, logger *slog.Logger) *IdentityLoader {
	return &IdentityLoader{source: source, logger: logger}
}

// Middleware attaches the resolved identity to the request context.
func (l *IdentityLoader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID := sess.User()
		value, err, _ := l.group.Do(userID, func() (any, error) {
			return l.source.Identity(r.Context(), userID)
		})
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) && l.logger != nil {
				l.logger.Error("load identity", slog.String("user_id", userID), slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		id, _ := value.(*authz.Identity)
		next.ServeHTTP(w, r.WithContext(authz.ContextWithIdentity(r.Context(), id)))
	})
}
