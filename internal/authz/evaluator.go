package authz

import "log/slog"

// Identity is the authenticated actor as seen by the evaluator: the
// profile row plus its explicit grant set, fetched before evaluation.
// Evaluation itself never touches the network.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	Active      bool
	Grants      map[string]struct{}
}

// HasGrant reports whether the identity holds an explicit grant row.
func (id *Identity) HasGrant(key string) bool {
	if id == nil {
		return false
	}
	_, ok := id.Grants[key]
	return ok
}

// Decision is the evaluator verdict. Deny is a value, never an error.
type Decision struct {
	Allowed bool
	Reason  string
}

var (
	allow            = Decision{Allowed: true}
	denyNoIdentity   = Decision{Reason: "no authenticated identity"}
	denyInactive     = Decision{Reason: "account deactivated"}
	denyInsufficient = Decision{Reason: "role below required tier"}
	denyNotGranted   = Decision{Reason: "permission not granted"}
	denyUnknownKey   = Decision{Reason: "unknown permission key"}
)

// Evaluator is the pure allow/deny decision function over an identity.
type Evaluator struct {
	catalog *Catalog
	logger  *slog.Logger
	onDeny  func(key, reason string)
}

// NewEvaluator constructs an Evaluator over a validated catalog.
func NewEvaluator(catalog *Catalog, logger *slog.Logger) *Evaluator {
	return &Evaluator{catalog: catalog, logger: logger}
}

// OnDeny installs an observer invoked for every deny (metrics hook).
func (e *Evaluator) OnDeny(fn func(key, reason string)) {
	e.onDeny = fn
}

// Catalog exposes the catalog backing this evaluator.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// Evaluate decides whether the identity may exercise the permission key.
// Absent or inactive identities are denied before any other check.
// Unknown keys are denied and logged: they indicate a caller/catalog
// mismatch, not an authorization question.
func (e *Evaluator) Evaluate(id *Identity, key string) Decision {
	if id == nil {
		return e.deny(key, denyNoIdentity)
	}
	if !id.Active {
		return e.deny(key, denyInactive)
	}
	if required, ok := requiredRole[key]; ok {
		if AtLeast(id.Role, required) {
			return allow
		}
		return e.deny(key, denyInsufficient)
	}
	if GrantGated(key) {
		if id.HasGrant(key) || roleImplies(id.Role, key) {
			return allow
		}
		return e.deny(key, denyNotGranted)
	}
	if e.logger != nil {
		e.logger.Warn("permission key without catalog strategy",
			slog.String("key", key))
	}
	return e.deny(key, denyUnknownKey)
}

// AllSatisfied is a short-circuit AND over Evaluate. The empty key list
// is allowed (identity element of AND).
func (e *Evaluator) AllSatisfied(id *Identity, keys ...string) bool {
	for _, key := range keys {
		if !e.Evaluate(id, key).Allowed {
			return false
		}
	}
	return true
}

// AnySatisfied is a short-circuit OR over Evaluate. The empty key list
// is denied (identity element of OR).
func (e *Evaluator) AnySatisfied(id *Identity, keys ...string) bool {
	for _, key := range keys {
		if e.Evaluate(id, key).Allowed {
			return true
		}
	}
	return false
}

func (e *Evaluator) deny(key string, d Decision) Decision {
	if e.onDeny != nil {
		e.onDeny(key, d.Reason)
	}
	return d
}

// roleImplies covers the grants a role carries implicitly: every employee
// tier may enter work mode, and ADMIN holds every grant-gated key without
// explicit rows.
func roleImplies(role Role, key string) bool {
	if AtLeast(role, RoleAdmin) {
		return GrantGated(key)
	}
	if key == PermWorkMode {
		return AtLeast(role, RoleStaff)
	}
	return false
}
