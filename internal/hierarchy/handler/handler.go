package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bonifica/internal/hierarchy/models"
	"bonifica/internal/platform/middleware"
	"bonifica/internal/transport/http/cache"
	"bonifica/internal/transport/http/shared"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
	"bonifica/pkg/requestcontext"
)

// Service defines the hierarchy operations the handler needs.
type Service interface {
	CreateOrganization(ctx context.Context, actor domain.Actor, name, taxID string, kind models.OrgKind, parentID *domain.OrgID) (*models.Organization, error)
	GetOrganization(ctx context.Context, actor domain.Actor, id domain.OrgID) (*models.Organization, error)
	ListManaged(ctx context.Context, actor domain.Actor) ([]*models.Organization, error)
	UpdateOrganization(ctx context.Context, actor domain.Actor, id domain.OrgID, name, taxID *string) (*models.Organization, error)
}

// Handler handles organization endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	cache   *cache.Entity
}

// New creates a new hierarchy Handler.
func New(service Service, logger *slog.Logger, entityCache *cache.Entity) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		cache:   entityCache,
	}
}

// Register registers the organization routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/organizations", h.handleCreate)
	r.Get("/organizations", h.handleList)
	r.Get("/organizations/{orgID}", h.handleGet)
	r.Patch("/organizations/{orgID}", h.handleUpdate)
}

type createOrganizationRequest struct {
	Name     string  `json:"name"`
	TaxID    string  `json:"tax_id"`
	Kind     string  `json:"kind"`
	ParentID *string `json:"parent_id,omitempty"`
}

type updateOrganizationRequest struct {
	Name  *string `json:"name,omitempty"`
	TaxID *string `json:"tax_id,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	var parentID *domain.OrgID
	if req.ParentID != nil && *req.ParentID != "" {
		id, err := domain.ParseOrgID(*req.ParentID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		parentID = &id
	}

	org, err := h.service.CreateOrganization(ctx, actor,
		strings.TrimSpace(req.Name), strings.TrimSpace(req.TaxID),
		models.OrgKind(req.Kind), parentID)
	if err != nil {
		h.logError(ctx, "failed to create organization", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// Per-entity cache; the permission check still runs on every request.
	var cached models.Organization
	if h.cache.Get(ctx, "organization", id.String(), &cached) {
		if _, err := h.service.GetOrganization(ctx, actor, id); err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, &cached)
		return
	}

	org, err := h.service.GetOrganization(ctx, actor, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.cache.Set(ctx, "organization", id.String(), org)
	shared.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	orgs, err := h.service.ListManaged(ctx, actor)
	if err != nil {
		h.logError(ctx, "failed to list organizations", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req updateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	org, err := h.service.UpdateOrganization(ctx, actor, id, req.Name, req.TaxID)
	if err != nil {
		h.logError(ctx, "failed to update organization", err)
		shared.WriteError(w, err)
		return
	}
	h.cache.Invalidate(ctx, "organization", id.String())
	shared.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
