package grants

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/observability"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
	_ "github.com/Corner-venturo/venturo-sub001/testing"
)

type memoryGrantsRepo struct {
	profiles map[string]Profile
	grants   map[string]map[string]struct{}

	insertCalls int
	failOnKey   string
	promotions  []string
}

func newMemoryGrantsRepo() *memoryGrantsRepo {
	return &memoryGrantsRepo{
		profiles: make(map[string]Profile),
		grants:   make(map[string]map[string]struct{}),
	}
}

func (r *memoryGrantsRepo) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryGrantsRepo) FetchGrants(ctx context.Context, userID string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(r.grants[userID]))
	for k := range r.grants[userID] {
		out[k] = struct{}{}
	}
	return out, nil
}

func (r *memoryGrantsRepo) FetchAllGrants(ctx context.Context) (map[string][]string, error) {
	all := make(map[string][]string)
	for user, set := range r.grants {
		for k := range set {
			all[user] = append(all[user], k)
		}
	}
	return all, nil
}

func (r *memoryGrantsRepo) FetchDefinitions(ctx context.Context) ([]authz.Definition, error) {
	return authz.DefaultDefinitions(), nil
}

func (r *memoryGrantsRepo) InsertGrant(ctx context.Context, userID, key string) (bool, error) {
	r.insertCalls++
	if r.failOnKey != "" && key == r.failOnKey {
		return false, fmt.Errorf("insert grant: %w: connection refused", ErrStoreUnavailable)
	}
	if r.grants[userID] == nil {
		r.grants[userID] = make(map[string]struct{})
	}
	if _, held := r.grants[userID][key]; held {
		return false, nil
	}
	r.grants[userID][key] = struct{}{}
	return true, nil
}

func (r *memoryGrantsRepo) DeleteGrant(ctx context.Context, userID, key string) (bool, error) {
	if _, held := r.grants[userID][key]; !held {
		return false, nil
	}
	delete(r.grants[userID], key)
	return true, nil
}

func (r *memoryGrantsRepo) PromoteToAdmin(ctx context.Context, actorID, userID string) error {
	p, ok := r.profiles[userID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Role = authz.RoleAdmin
	r.profiles[userID] = p
	r.promotions = append(r.promotions, userID)
	return nil
}

type stubEnqueuer struct {
	calls int
}

func (s *stubEnqueuer) EnqueueIntegrityScan(ctx context.Context) error {
	s.calls++
	return nil
}

const (
	actorID  = "00000000-0000-0000-0000-00000000000a"
	targetID = "00000000-0000-0000-0000-000000000001"
)

func newTestService(t *testing.T) (*Service, *memoryGrantsRepo) {
	t.Helper()
	catalog, err := authz.NewCatalog(authz.DefaultDefinitions())
	require.NoError(t, err)
	repo := newMemoryGrantsRepo()
	repo.profiles[targetID] = Profile{ID: targetID, Email: "friend@venturo.local", DisplayName: "Friend", Role: authz.RolePublic, Active: true}
	return NewService(repo, authz.NewEvaluator(catalog, nil), nil, nil), repo
}

func TestGrantByPresetSkipsHeldKeys(t *testing.T) {
	svc, repo := newTestService(t)
	repo.grants[targetID] = map[string]struct{}{"orders.view": {}}

	outcome, err := svc.GrantByPreset(context.Background(), actorID, targetID, []string{authz.PermWorkMode, "orders.view"})
	require.NoError(t, err)
	require.Equal(t, []string{authz.PermWorkMode}, outcome.Applied)
	require.Empty(t, outcome.Failed)
	require.True(t, outcome.Features.HasWorkMode)
}

func TestGrantByPresetIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	keys, ok := Preset(PresetWorkMode)
	require.True(t, ok)

	first, err := svc.GrantByPreset(context.Background(), actorID, targetID, keys)
	require.NoError(t, err)
	require.Len(t, first.Applied, len(keys))

	writesAfterFirst := repo.insertCalls
	second, err := svc.GrantByPreset(context.Background(), actorID, targetID, keys)
	require.NoError(t, err)
	require.Empty(t, second.Applied)
	require.Equal(t, writesAfterFirst, repo.insertCalls, "second invocation must perform zero writes")
}

func TestGrantByPresetStopsAtFirstFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.failOnKey = "projects.view"
	keys := []string{authz.PermWorkMode, "projects.view", "orders.view"}

	outcome, err := svc.GrantByPreset(context.Background(), actorID, targetID, keys)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, []string{authz.PermWorkMode}, outcome.Applied, "applied list must be the prefix before the failure")
	require.Equal(t, []string{"projects.view"}, outcome.Failed)
	// The applied prefix stays in place: best-effort batch, no rollback.
	_, held := repo.grants[targetID][authz.PermWorkMode]
	require.True(t, held)
	// The step after the failure was never issued.
	_, held = repo.grants[targetID]["orders.view"]
	require.False(t, held)
}

func TestGrantUnknownKeyRejectedBeforeWrites(t *testing.T) {
	svc, repo := newTestService(t)
	outcome, err := svc.GrantByPreset(context.Background(), actorID, targetID, []string{"orders.view", "no.such.key"})
	require.ErrorIs(t, err, ErrUnknownPermission)
	require.Empty(t, outcome.Applied)
	require.Equal(t, []string{"no.such.key"}, outcome.Failed)
	require.Zero(t, repo.insertCalls)
}

func TestGrantAllPromotesToAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	enq := &stubEnqueuer{}
	svc.SetEnqueuer(enq)

	outcome, err := svc.GrantAll(context.Background(), actorID, targetID, true)
	require.NoError(t, err)
	require.True(t, outcome.Features.HasWorkMode)
	require.True(t, outcome.Features.CanManageUsers)
	require.Equal(t, authz.RoleAdmin, repo.profiles[targetID].Role)
	require.Equal(t, []string{targetID}, repo.promotions)
	require.Equal(t, 1, enq.calls)

	catalog, err := authz.NewCatalog(authz.DefaultDefinitions())
	require.NoError(t, err)
	require.Len(t, repo.grants[targetID], len(catalog.Keys()))
}

func TestGrantAllRequiresConfirmation(t *testing.T) {
	svc, repo := newTestService(t)
	_, err := svc.GrantAll(context.Background(), actorID, targetID, false)
	require.ErrorIs(t, err, ErrNotConfirmed)
	require.Zero(t, repo.insertCalls)
}

func TestGrantAllNoOpForExistingAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	profile := repo.profiles[targetID]
	profile.Role = authz.RoleAdmin
	repo.profiles[targetID] = profile

	outcome, err := svc.GrantAll(context.Background(), actorID, targetID, true)
	require.ErrorIs(t, err, ErrAlreadyAdmin)
	require.Empty(t, outcome.Applied)
	require.Zero(t, repo.insertCalls)
	require.Empty(t, repo.promotions)
	require.Empty(t, repo.grants[targetID])
}

func TestRevokeIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	repo.grants[targetID] = map[string]struct{}{authz.PermWorkMode: {}}

	first, err := svc.Revoke(context.Background(), actorID, targetID, authz.PermWorkMode)
	require.NoError(t, err)
	require.Equal(t, []string{authz.PermWorkMode}, first.Applied)
	require.False(t, first.Features.HasWorkMode)

	second, err := svc.Revoke(context.Background(), actorID, targetID, authz.PermWorkMode)
	require.NoError(t, err)
	require.Empty(t, second.Applied)
}

func TestRevokeUnknownKey(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Revoke(context.Background(), actorID, targetID, "no.such.key")
	require.ErrorIs(t, err, ErrUnknownPermission)
}

func TestFeaturesRecomputedAfterMutation(t *testing.T) {
	svc, _ := newTestService(t)

	before, err := svc.Features(context.Background(), targetID)
	require.NoError(t, err)
	require.False(t, before.HasWorkMode)

	granted, err := svc.Grant(context.Background(), actorID, targetID, authz.PermWorkMode)
	require.NoError(t, err)
	require.True(t, granted.Features.HasWorkMode)

	revoked, err := svc.Revoke(context.Background(), actorID, targetID, authz.PermWorkMode)
	require.NoError(t, err)
	require.False(t, revoked.Features.HasWorkMode)
}

func TestStoreWritesCountedByOperationAndResult(t *testing.T) {
	svc, repo := newTestService(t)
	metrics := observability.NewMetrics()
	svc.SetMetrics(metrics)
	repo.failOnKey = "projects.view"

	_, err := svc.GrantByPreset(context.Background(), actorID, targetID, []string{authz.PermWorkMode, "projects.view"})
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.Revoke(context.Background(), actorID, targetID, authz.PermWorkMode)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, `venturo_grant_operations_total{operation="grant",result="error"} 1`)
	require.Contains(t, body, `venturo_grant_operations_total{operation="grant",result="ok"} 1`)
	require.Contains(t, body, `venturo_grant_operations_total{operation="revoke",result="ok"} 1`)
}

func TestGrantMissingUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Grant(context.Background(), actorID, "00000000-0000-0000-0000-0000000000ff", authz.PermWorkMode)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
