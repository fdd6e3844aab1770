package mode_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/mode"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
	_ "github.com/Corner-venturo/venturo-sub001/testing"
)

func newSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func newController(t *testing.T) *mode.Controller {
	t.Helper()
	catalog, err := authz.NewCatalog(authz.DefaultDefinitions())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return mode.NewController(authz.NewEvaluator(catalog, nil))
}

func eligible() *authz.Identity {
	return &authz.Identity{ID: "u1", Role: authz.RoleStaff, Active: true}
}

func ineligible() *authz.Identity {
	return &authz.Identity{ID: "u2", Role: authz.RolePublic, Active: true}
}

func TestFreshSessionStartsInLife(t *testing.T) {
	ctrl := newController(t)
	if got := ctrl.Current(newSession(t)); got != mode.Life {
		t.Fatalf("fresh session mode = %s, want life", got)
	}
	if got := ctrl.Current(nil); got != mode.Life {
		t.Fatalf("nil session mode = %s, want life", got)
	}
}

func TestSwitchToWorkRequiresEligibility(t *testing.T) {
	ctrl := newController(t)
	sess := newSession(t)

	if err := ctrl.Switch(sess, ineligible(), mode.Work); err != mode.ErrWorkModeUnavailable {
		t.Fatalf("expected ErrWorkModeUnavailable, got %v", err)
	}
	if got := ctrl.Current(sess); got != mode.Life {
		t.Fatalf("refused switch must leave mode life, got %s", got)
	}

	if err := ctrl.Switch(sess, eligible(), mode.Work); err != nil {
		t.Fatalf("eligible switch failed: %v", err)
	}
	if got := ctrl.Current(sess); got != mode.Work {
		t.Fatalf("mode = %s, want work", got)
	}
}

func TestSwitchToLifeAlwaysSucceeds(t *testing.T) {
	ctrl := newController(t)
	sess := newSession(t)
	if err := ctrl.Switch(sess, eligible(), mode.Work); err != nil {
		t.Fatalf("switch work: %v", err)
	}
	if err := ctrl.Switch(sess, ineligible(), mode.Life); err != nil {
		t.Fatalf("switch life must always succeed: %v", err)
	}
	if got := ctrl.Current(sess); got != mode.Life {
		t.Fatalf("mode = %s, want life", got)
	}
}

func TestSwitchExplicitGrantUnlocksWork(t *testing.T) {
	ctrl := newController(t)
	sess := newSession(t)
	id := &authz.Identity{
		ID:     "u3",
		Role:   authz.RolePublic,
		Active: true,
		Grants: map[string]struct{}{authz.PermWorkMode: {}},
	}
	if err := ctrl.Switch(sess, id, mode.Work); err != nil {
		t.Fatalf("granted mode.work must unlock work mode: %v", err)
	}
}

func TestSwitchRejectsUnknownTarget(t *testing.T) {
	ctrl := newController(t)
	sess := newSession(t)
	if err := ctrl.Switch(sess, eligible(), mode.Mode("vacation")); err != mode.ErrUnknownMode {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if got := ctrl.Current(sess); got != mode.Life {
		t.Fatalf("mode = %s, want life", got)
	}
}

func TestRebindingSessionUserResetsMode(t *testing.T) {
	ctrl := newController(t)
	sess := newSession(t)
	sess.SetUser("u1")
	if err := ctrl.Switch(sess, eligible(), mode.Work); err != nil {
		t.Fatalf("switch work: %v", err)
	}
	sess.SetUser("u2")
	if got := ctrl.Current(sess); got != mode.Life {
		t.Fatalf("new identity must not inherit work mode, got %s", got)
	}
}

func TestParse(t *testing.T) {
	if m, err := mode.Parse(""); err != nil || m != mode.Life {
		t.Fatalf("Parse(\"\") = %s, %v", m, err)
	}
	if m, err := mode.Parse(" WORK "); err != nil || m != mode.Work {
		t.Fatalf("Parse(WORK) = %s, %v", m, err)
	}
	if _, err := mode.Parse("weekend"); err != mode.ErrUnknownMode {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}
