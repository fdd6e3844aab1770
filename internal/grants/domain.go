// Package grants owns the durable per-user permission overrides and the
// administrator bulk operations layered on top of them.
package grants

import (
	"errors"
	"time"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
)

// Profile is the persisted user record as the permission store sees it.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	Role        authz.Role
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Outcome reports the result of a grant/revoke operation. Applied is a
// prefix-consistent snapshot of writes that actually happened; Failed
// names the step that stopped the batch. Steps after a failure are never
// guessed at and appear in neither list. Features is the surface derived
// after the mutation so callers never act on stale flags.
type Outcome struct {
	Applied  []string         `json:"appliedKeys"`
	Failed   []string         `json:"failedKeys"`
	Features authz.FeatureSet `json:"features"`
}

var (
	// ErrStoreUnavailable marks a network/backend failure on a store
	// call. Retryable by the caller.
	ErrStoreUnavailable = errors.New("grants: permission store unavailable")
	// ErrUnknownPermission marks a key with no catalog entry, a
	// caller/catalog mismatch rather than an authorization outcome.
	ErrUnknownPermission = errors.New("grants: permission key not in catalog")
	// ErrAlreadyAdmin signals a grant-all against a user who already
	// holds ADMIN. Explicit no-op, not silent success.
	ErrAlreadyAdmin = errors.New("grants: user already holds the ADMIN role")
	// ErrNotConfirmed rejects a grant-all issued without the explicit
	// confirmation gate.
	ErrNotConfirmed = errors.New("grants: grant-all requires explicit confirmation")
)
