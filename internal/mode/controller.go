// Package mode holds the per-session life/work context. The mode is the
// single switch the navigation layer consults to decide which feature
// surface is visible.
package mode

import (
	"errors"
	"strings"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// Mode is the session-local UI context.
type Mode string

const (
	// Life is the default context for every new session.
	Life Mode = "life"
	// Work is the gated context requiring work-mode eligibility.
	Work Mode = "work"
)

var (
	// ErrWorkModeUnavailable reports a refused switch into work mode.
	// It is a refusal outcome, not a fault: the session stays in its
	// current mode and the caller surfaces the denial.
	ErrWorkModeUnavailable = errors.New("mode: account is not eligible for work mode")
	// ErrUnknownMode reports a target outside {life, work}.
	ErrUnknownMode = errors.New("mode: unknown target mode")
	// ErrNoSession reports a switch attempt without a session.
	ErrNoSession = errors.New("mode: no session")
)

// Parse normalizes a mode string. Empty input parses as Life so fresh
// sessions need no initialisation step.
func Parse(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Life:
		return Life, nil
	case Work:
		return Work, nil
	default:
		return Life, ErrUnknownMode
	}
}

// Controller arbitrates mode transitions against the derived feature
// surface. It owns no state of its own; the session record is the only
// place a mode lives.
type Controller struct {
	evaluator *authz.Evaluator
}

// NewController constructs a Controller over the evaluator.
func NewController(evaluator *authz.Evaluator) *Controller {
	return &Controller{evaluator: evaluator}
}

// Current returns the session mode. A fresh session, a corrupted value,
// or no session at all always read as Life.
func (c *Controller) Current(sess *shared.Session) Mode {
	if sess == nil {
		return Life
	}
	current, err := Parse(sess.Mode())
	if err != nil {
		return Life
	}
	return current
}

// Switch moves the session to the target mode. Life always succeeds.
// Work requires the identity's feature surface to report work-mode
// eligibility at the moment of the call; otherwise the switch is refused
// and the session keeps its current mode.
func (c *Controller) Switch(sess *shared.Session, id *authz.Identity, target Mode) error {
	if sess == nil {
		return ErrNoSession
	}
	switch target {
	case Life:
		sess.SetMode(string(Life))
		return nil
	case Work:
		if !c.evaluator.DeriveFeatures(id).HasWorkMode {
			return ErrWorkModeUnavailable
		}
		sess.SetMode(string(Work))
		return nil
	default:
		return ErrUnknownMode
	}
}
