package grants

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/observability"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// IntegrityEnqueuer schedules a background catalog-consistency scan.
// Implemented by the jobs client; nil disables scheduling.
type IntegrityEnqueuer interface {
	EnqueueIntegrityScan(ctx context.Context) error
}

// Service orchestrates grant/revoke operations and the administrator
// bulk batches. All writes go through the Repository one row at a time,
// sequentially: each step completes before the next is issued, so the
// Applied list is always a prefix-consistent snapshot of real state.
type Service struct {
	repo      Repository
	evaluator *authz.Evaluator
	audit     *shared.AuditLogger
	logger    *slog.Logger
	enqueuer  IntegrityEnqueuer
	metrics   *observability.Metrics
}

// NewService constructs a Service.
func NewService(repo Repository, evaluator *authz.Evaluator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, audit: audit, logger: logger}
}

// SetEnqueuer wires the background-job client after construction.
func (s *Service) SetEnqueuer(e IntegrityEnqueuer) {
	s.enqueuer = e
}

// SetMetrics wires the metrics registry after construction. Every store
// write is counted by operation and result; a nil registry records
// nothing.
func (s *Service) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Identity assembles the evaluator input for one user: profile plus the
// explicit grant set, freshly fetched. Callers re-run this after any
// mutation; nothing here is cached.
func (s *Service) Identity(ctx context.Context, userID string) (*authz.Identity, error) {
	profile, err := s.repo.FetchProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	grantSet, err := s.repo.FetchGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &authz.Identity{
		ID:          profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Role:        profile.Role,
		Active:      profile.Active,
		Grants:      grantSet,
	}, nil
}

// Features re-derives the feature surface for one user.
func (s *Service) Features(ctx context.Context, userID string) (authz.FeatureSet, error) {
	id, err := s.Identity(ctx, userID)
	if err != nil {
		return authz.FeatureSet{}, err
	}
	return s.evaluator.DeriveFeatures(id), nil
}

// Grants returns the explicit grant keys held by one user, catalog order.
func (s *Service) Grants(ctx context.Context, userID string) ([]string, error) {
	held, err := s.repo.FetchGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(held))
	for _, key := range s.evaluator.Catalog().Keys() {
		if _, ok := held[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// AllGrants returns every user's grant list for administrative views.
func (s *Service) AllGrants(ctx context.Context) (map[string][]string, error) {
	return s.repo.FetchAllGrants(ctx)
}

// Definitions exposes the validated catalog.
func (s *Service) Definitions() []authz.Definition {
	return s.evaluator.Catalog().Definitions()
}

// Grant applies a single permission grant.
func (s *Service) Grant(ctx context.Context, actorID, userID, key string) (Outcome, error) {
	return s.grantKeys(ctx, actorID, userID, []string{key})
}

// GrantByPreset grants every key of the preset the user does not already
// hold. Re-invoking against an unchanged target performs zero writes and
// reports an empty Applied list. On a mid-batch store failure the
// operation stops; applied grants are kept (each is individually safe to
// hold), nothing is rolled back.
func (s *Service) GrantByPreset(ctx context.Context, actorID, userID string, presetKeys []string) (Outcome, error) {
	return s.grantKeys(ctx, actorID, userID, presetKeys)
}

// GrantAll grants every catalog permission the user does not hold, then
// promotes the role to ADMIN. The confirmation gate is mandatory: this
// hands out the entire permission surface and is hard to reverse. A
// target already holding ADMIN is an explicit no-op signal.
func (s *Service) GrantAll(ctx context.Context, actorID, userID string, confirmed bool) (Outcome, error) {
	if !confirmed {
		return Outcome{}, ErrNotConfirmed
	}
	profile, err := s.repo.FetchProfile(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	if profile.Role == authz.RoleAdmin {
		return Outcome{}, ErrAlreadyAdmin
	}

	outcome, err := s.grantKeys(ctx, actorID, userID, s.evaluator.Catalog().Keys())
	if err != nil {
		return outcome, err
	}
	if err := s.repo.PromoteToAdmin(ctx, actorID, userID); err != nil {
		return outcome, err
	}
	outcome.Features, err = s.Features(ctx, userID)
	if err != nil {
		return outcome, err
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueIntegrityScan(ctx); err != nil && s.logger != nil {
			s.logger.Warn("enqueue integrity scan", slog.Any("error", err))
		}
	}
	return outcome, nil
}

// Revoke removes a single grant. Revoking an absent grant succeeds with
// an empty Applied list.
func (s *Service) Revoke(ctx context.Context, actorID, userID, key string) (Outcome, error) {
	if !s.evaluator.Catalog().Contains(key) {
		if s.logger != nil {
			s.logger.Warn("revoke of unknown permission key", slog.String("key", key))
		}
		return Outcome{Failed: []string{key}}, fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	if _, err := s.repo.FetchProfile(ctx, userID); err != nil {
		return Outcome{}, err
	}

	removed, err := s.repo.DeleteGrant(ctx, userID, key)
	if err != nil {
		s.metrics.RecordGrantOp("revoke", "error")
		return Outcome{Failed: []string{key}}, err
	}

	outcome := Outcome{}
	if removed {
		outcome.Applied = []string{key}
		s.metrics.RecordGrantOp("revoke", "ok")
		s.record(ctx, actorID, userID, "permission.revoke", key)
	}
	outcome.Features, err = s.Features(ctx, userID)
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// grantKeys is the sequential write loop shared by all grant operations.
// Unknown keys are rejected before any write: they are a caller bug, not
// a transient condition worth a partial batch.
func (s *Service) grantKeys(ctx context.Context, actorID, userID string, keys []string) (Outcome, error) {
	for _, key := range keys {
		if !s.evaluator.Catalog().Contains(key) {
			if s.logger != nil {
				s.logger.Warn("grant of unknown permission key", slog.String("key", key))
			}
			return Outcome{Failed: []string{key}}, fmt.Errorf("%w: %s", ErrUnknownPermission, key)
		}
	}
	if _, err := s.repo.FetchProfile(ctx, userID); err != nil {
		return Outcome{}, err
	}
	held, err := s.repo.FetchGrants(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{}
	for _, key := range keys {
		if _, ok := held[key]; ok {
			continue
		}
		inserted, err := s.repo.InsertGrant(ctx, userID, key)
		if err != nil {
			s.metrics.RecordGrantOp("grant", "error")
			outcome.Failed = []string{key}
			return outcome, err
		}
		if inserted {
			outcome.Applied = append(outcome.Applied, key)
			s.metrics.RecordGrantOp("grant", "ok")
			s.record(ctx, actorID, userID, "permission.grant", key)
		}
	}

	outcome.Features, err = s.Features(ctx, userID)
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// record writes the audit trail best-effort; a failed audit write never
// unwinds an applied grant.
func (s *Service) record(ctx context.Context, actorID, userID, action, key string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user_permission",
		EntityID: userID,
		Meta:     map[string]any{"permission": key},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
