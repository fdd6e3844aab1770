package grants

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newTestService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, authz.Middleware{Evaluator: svc.evaluator, Logger: logger})

	admin := &authz.Identity{ID: actorID, Role: authz.RoleAdmin, Active: true}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(authz.ContextWithIdentity(req.Context(), admin)))
		})
	})
	r.Route("/admin/users", h.MountRoutes)
	return r
}

func TestGrantPresetUnknownNameListsValidPresets(t *testing.T) {
	router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/users/"+targetID+"/permissions/preset",
		strings.NewReader(`{"preset":"full-access"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "no preset named full-access")
	require.Contains(t, rec.Body.String(), PresetWorkMode)
}

func TestGrantPresetAppliesKnownPreset(t *testing.T) {
	router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/users/"+targetID+"/permissions/preset",
		strings.NewReader(`{"preset":"work-mode"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"hasWorkMode":true`)
}
