package grants

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/httpx"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// Handler exposes grant administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers grant administration routes, all gated on the
// user-management capability.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermManageUsers))
		r.Get("/{id}/permissions", h.listGrants)
		r.Post("/{id}/permissions", h.grant)
		r.Delete("/{id}/permissions/{key}", h.revoke)
		r.Post("/{id}/permissions/preset", h.grantPreset)
		r.Post("/{id}/permissions/grant-all", h.grantAll)
	})
}

// MountCatalog registers the read-only permission catalog listing.
func (h *Handler) MountCatalog(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermManageUsers))
		r.Get("/", h.listDefinitions)
	})
}

type grantRequest struct {
	Key string `json:"key" validate:"required"`
}

type presetRequest struct {
	Preset string `json:"preset" validate:"required"`
}

type grantAllRequest struct {
	Confirm bool `json:"confirm"`
}

type outcomeResponse struct {
	Outcome
	Error string `json:"error,omitempty"`
}

func (h *Handler) listDefinitions(w http.ResponseWriter, r *http.Request) {
	type definitionView struct {
		Key         string `json:"key"`
		Category    string `json:"category"`
		Label       string `json:"label"`
		Description string `json:"description"`
	}
	defs := h.service.Definitions()
	views := make([]definitionView, len(defs))
	for i, def := range defs {
		views[i] = definitionView{Key: def.Key, Category: def.Category, Label: def.Label, Description: def.Description}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"definitions": views})
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	keys, err := h.service.Grants(r.Context(), userID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	features, err := h.service.Features(r.Context(), userID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": keys, "features": features})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	outcome, err := h.service.Grant(r.Context(), h.actorID(r), userID, req.Key)
	h.respondOutcome(w, outcome, err)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	outcome, err := h.service.Revoke(r.Context(), h.actorID(r), userID, key)
	h.respondOutcome(w, outcome, err)
}

func (h *Handler) grantPreset(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	var req presetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	keys, ok := Preset(req.Preset)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Preset",
			"no preset named "+req.Preset+"; valid presets: "+strings.Join(PresetNames(), ", "))
		return
	}
	outcome, err := h.service.GrantByPreset(r.Context(), h.actorID(r), userID, keys)
	h.respondOutcome(w, outcome, err)
}

func (h *Handler) grantAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	var req grantAllRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	outcome, err := h.service.GrantAll(r.Context(), h.actorID(r), userID, req.Confirm)
	h.respondOutcome(w, outcome, err)
}

func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "user id must be a UUID")
		return "", false
	}
	return id.String(), true
}

func (h *Handler) actorID(r *http.Request) string {
	if id := authz.IdentityFromContext(r.Context()); id != nil {
		return id.ID
	}
	return ""
}

func (h *Handler) respondOutcome(w http.ResponseWriter, outcome Outcome, err error) {
	if err == nil {
		httpx.JSON(w, http.StatusOK, outcomeResponse{Outcome: outcome})
		return
	}
	if h.logger != nil {
		h.logger.Error("grant operation", slog.Any("error", err))
	}
	status := http.StatusInternalServerError
	message := shared.UserSafeMessage(err)
	switch {
	case errors.Is(err, ErrNotConfirmed), errors.Is(err, ErrUnknownPermission):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, ErrAlreadyAdmin):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		message = "Permission store unavailable, please retry."
	}
	httpx.JSON(w, status, outcomeResponse{Outcome: outcome, Error: message})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if h.logger != nil {
		h.logger.Error("grants handler", slog.Any("error", err))
	}
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrStoreUnavailable):
		httpx.RespondError(w, httpx.ErrUnavailable)
	default:
		httpx.RespondError(w, err)
	}
}
