package users

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// ErrSelfDemotion indicates an administrator tried to change their own
// role away from ADMIN. Refused so a tenant cannot lock out its last
// administrator by accident.
var ErrSelfDemotion = errors.New("users: administrators cannot change their own role")

// ErrUnknownRole indicates a role value outside the business set.
var ErrUnknownRole = errors.New("users: unknown role")

// Service handles administrative user management.
type Service struct {
	repo     Repository
	audit    *shared.AuditLogger
	logger   *slog.Logger
	collator *collate.Collator
}

// NewService builds a Service instance.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		audit:    audit,
		logger:   logger,
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
}

// ListUsers returns all users sorted by collated display name, email as
// tiebreaker.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	list, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		if c := s.collator.CompareString(list[i].DisplayName, list[j].DisplayName); c != 0 {
			return c < 0
		}
		return list[i].Email < list[j].Email
	})
	return list, nil
}

// GetUser fetches a single user with their explicit grants.
func (s *Service) GetUser(ctx context.Context, id string) (*Detail, error) {
	return s.repo.GetUser(ctx, id)
}

// ChangeRole updates a user's role and records the change in the audit
// trail. Administrators may not change their own role.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID, rawRole string) (*Detail, error) {
	if !authz.ValidRole(rawRole) {
		return nil, ErrUnknownRole
	}
	role := authz.ParseRole(rawRole)
	if actorID == userID {
		return nil, ErrSelfDemotion
	}
	before, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if before.Role == role {
		return before, nil
	}
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "user.role_changed", userID, map[string]any{
		"from": string(before.Role),
		"to":   string(role),
	})
	return s.repo.GetUser(ctx, userID)
}

// SetActive toggles the active flag. Deactivated accounts evaluate as
// deny-everything on their next request.
func (s *Service) SetActive(ctx context.Context, actorID, userID string, active bool) (*Detail, error) {
	if actorID == userID && !active {
		return nil, ErrSelfDemotion
	}
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return nil, err
	}
	action := "user.deactivated"
	if active {
		action = "user.activated"
	}
	s.record(ctx, actorID, action, userID, nil)
	return s.repo.GetUser(ctx, userID)
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "profile",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
