package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/mode"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/httpx"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// Handler wires HTTP endpoints for authentication and the session
// surface (identity, feature flags, mode switching).
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	evaluator      *authz.Evaluator
	modes          *mode.Controller
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, evaluator *authz.Evaluator, modes *mode.Controller) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		evaluator:      evaluator,
		modes:          modes,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router. Login and
// registration carry a tighter rate limit than the global one.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	r.Group(func(r chi.Router) {
		r.Use(limiter)
		r.Post("/login", h.handleLogin)
		r.Post("/register", h.handleRegister)
	})
	r.Post("/logout", h.handleLogout)
}

// MountSession registers the identity/mode surface consumed by the
// navigation layer.
func (h *Handler) MountSession(r chi.Router) {
	r.Get("/", h.handleMe)
	r.Post("/mode", h.handleSwitchMode)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=100"`
	Password    string `json:"password" validate:"required,min=8"`
}

type switchModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", shared.UserSafeMessage(shared.ErrInvalidCredentials))
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}
	sess.SetUser(user.ID)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"user": userView{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName, Role: string(user.Role)},
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httpx.Problem(w, http.StatusConflict, "Email Taken", "an account with this email already exists")
			return
		}
		h.logger.Error("register", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"user": userView{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName, Role: string(user.Role)},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if sess.ID != "" {
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		// Destroying the session discards the mode and any derived
		// state with it; the next sign-in starts from life mode.
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id := authz.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":     userView{ID: id.ID, Email: id.Email, DisplayName: id.DisplayName, Role: string(id.Role)},
		"features": h.evaluator.DeriveFeatures(id),
		"mode":     h.modes.Current(sess),
	})
}

func (h *Handler) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	id := authz.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req switchModeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	target, err := mode.Parse(req.Mode)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Mode", "mode must be life or work")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if err := h.modes.Switch(sess, id, target); err != nil {
		if errors.Is(err, mode.ErrWorkModeUnavailable) {
			// A refusal, not a fault: mode is unchanged and the client
			// renders an inline warning.
			httpx.Problem(w, http.StatusConflict, "Mode Switch Refused", "work mode is not available for this account")
			return
		}
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"mode":     h.modes.Current(sess),
		"features": h.evaluator.DeriveFeatures(id),
	})
}
