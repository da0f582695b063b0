package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bonifica/internal/compliance/service"
	ledgermodels "bonifica/internal/ledger/models"
	"bonifica/internal/platform/middleware"
	trainingmodels "bonifica/internal/training/models"
	"bonifica/internal/transport/http/cache"
	"bonifica/internal/transport/http/shared"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
	"bonifica/pkg/requestcontext"
)

// Service defines the compliance operations the handler needs.
type Service interface {
	CreateTrainingAction(ctx context.Context, actor domain.Actor, req service.CreateActionRequest) (*trainingmodels.TrainingAction, error)
	GetTrainingAction(ctx context.Context, actor domain.Actor, id domain.ActionID) (*trainingmodels.TrainingAction, error)
	CreateGroup(ctx context.Context, actor domain.Actor, req service.SaveGroupRequest) (*trainingmodels.DeliveryGroup, error)
	UpdateGroup(ctx context.Context, actor domain.Actor, groupID domain.GroupID, req service.SaveGroupRequest) (*trainingmodels.DeliveryGroup, error)
	GetGroup(ctx context.Context, actor domain.Actor, id domain.GroupID) (*trainingmodels.DeliveryGroup, error)
	SuggestGroupCode(ctx context.Context, actor domain.Actor, actionID domain.ActionID, propertyOrgID *domain.OrgID, startDate time.Time) (string, error)
	CreateLink(ctx context.Context, actor domain.Actor, groupID domain.GroupID, orgID domain.OrgID) (*ledgermodels.OrganizationGroupLink, error)
	DeclareCost(ctx context.Context, actor domain.Actor, linkID domain.LinkID, total domain.Money) (*ledgermodels.CostDeclaration, error)
	RecordSubsidyEntry(ctx context.Context, actor domain.Actor, req service.RecordEntryRequest) (*ledgermodels.SubsidyEntry, error)
	DeleteSubsidyEntry(ctx context.Context, actor domain.Actor, entryID domain.EntryID) error
	LinkBalance(ctx context.Context, actor domain.Actor, linkID domain.LinkID) (*ledgermodels.LinkBalance, error)
}

// Handler handles training action, group, and ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	cache   *cache.Entity
}

// New creates a new compliance Handler.
func New(service Service, logger *slog.Logger, entityCache *cache.Entity) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		cache:   entityCache,
	}
}

// Register registers the compliance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/training-actions", h.handleCreateAction)
	r.Get("/training-actions/{actionID}", h.handleGetAction)
	r.Get("/training-actions/{actionID}/suggest-group-code", h.handleSuggestCode)

	r.Post("/groups", h.handleCreateGroup)
	r.Put("/groups/{groupID}", h.handleUpdateGroup)
	r.Get("/groups/{groupID}", h.handleGetGroup)

	r.Post("/links", h.handleCreateLink)
	r.Post("/links/{linkID}/cost", h.handleDeclareCost)
	r.Post("/links/{linkID}/subsidies", h.handleRecordEntry)
	r.Get("/links/{linkID}/balance", h.handleBalance)

	r.Delete("/subsidies/{entryID}", h.handleDeleteEntry)
}

const dateLayout = "2006-01-02"

type createActionRequest struct {
	OwnerOrgID  string  `json:"owner_org_id"`
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Modality    string  `json:"modality"`
	Hours       int     `json:"hours"`
	PeriodStart *string `json:"period_start,omitempty"`
	PeriodEnd   *string `json:"period_end,omitempty"`
}

type saveGroupRequest struct {
	TrainingActionID string  `json:"training_action_id"`
	PropertyOrgID    *string `json:"property_org_id,omitempty"`
	Code             string  `json:"code,omitempty"`
	StartDate        string  `json:"start_date"`
	PlannedEndDate   string  `json:"planned_end_date"`
	ActualEndDate    *string `json:"actual_end_date,omitempty"`

	ParticipantCountPlanned  int `json:"participant_count_planned"`
	ParticipantCountFinished int `json:"participant_count_finished"`
	PassedCount              int `json:"passed_count"`
	FailedCount              int `json:"failed_count"`
}

type createLinkRequest struct {
	GroupID string `json:"group_id"`
	OrgID   string `json:"org_id"`
}

type declareCostRequest struct {
	TotalCents int64 `json:"total_cents"`
}

type recordEntryRequest struct {
	Month       int   `json:"month"`
	AmountCents int64 `json:"amount_cents"`
}

func (h *Handler) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var body createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	ownerID, err := domain.ParseOrgID(body.OwnerOrgID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	periodStart, err := parseOptionalDate(body.PeriodStart, "period_start")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	periodEnd, err := parseOptionalDate(body.PeriodEnd, "period_end")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	action, err := h.service.CreateTrainingAction(ctx, actor, service.CreateActionRequest{
		OwnerOrgID:  ownerID,
		Code:        body.Code,
		Title:       body.Title,
		Modality:    trainingmodels.Modality(body.Modality),
		Hours:       body.Hours,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		h.logError(ctx, "failed to create training action", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, action)
}

func (h *Handler) handleGetAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParseActionID(chi.URLParam(r, "actionID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var cached trainingmodels.TrainingAction
	if h.cache.Get(ctx, "training_action", id.String(), &cached) {
		if _, err := h.service.GetTrainingAction(ctx, actor, id); err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, &cached)
		return
	}

	action, err := h.service.GetTrainingAction(ctx, actor, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.cache.Set(ctx, "training_action", id.String(), action)
	shared.WriteJSON(w, http.StatusOK, action)
}

func (h *Handler) handleSuggestCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	actionID, err := domain.ParseActionID(chi.URLParam(r, "actionID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var propertyOrgID *domain.OrgID
	if raw := r.URL.Query().Get("property_org_id"); raw != "" {
		id, err := domain.ParseOrgID(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		propertyOrgID = &id
	}

	startDate := time.Now()
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		startDate, err = time.Parse(dateLayout, raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "start_date must be YYYY-MM-DD"))
			return
		}
	}

	code, err := h.service.SuggestGroupCode(ctx, actor, actionID, propertyOrgID, startDate)
	if err != nil {
		h.logError(ctx, "failed to suggest group code", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	req, err := decodeGroupRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	group, err := h.service.CreateGroup(ctx, actor, req)
	if err != nil {
		h.logError(ctx, "failed to create group", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, group)
}

func (h *Handler) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	groupID, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	req, err := decodeGroupRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	group, err := h.service.UpdateGroup(ctx, actor, groupID, req)
	if err != nil {
		h.logError(ctx, "failed to update group", err)
		shared.WriteError(w, err)
		return
	}
	h.cache.Invalidate(ctx, "delivery_group", groupID.String())
	shared.WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var cached trainingmodels.DeliveryGroup
	if h.cache.Get(ctx, "delivery_group", id.String(), &cached) {
		if _, err := h.service.GetGroup(ctx, actor, id); err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, &cached)
		return
	}

	group, err := h.service.GetGroup(ctx, actor, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.cache.Set(ctx, "delivery_group", id.String(), group)
	shared.WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var body createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	groupID, err := domain.ParseGroupID(body.GroupID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	orgID, err := domain.ParseOrgID(body.OrgID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	link, err := h.service.CreateLink(ctx, actor, groupID, orgID)
	if err != nil {
		h.logError(ctx, "failed to create link", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, link)
}

func (h *Handler) handleDeclareCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	linkID, err := domain.ParseLinkID(chi.URLParam(r, "linkID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var body declareCostRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	cost, err := h.service.DeclareCost(ctx, actor, linkID, domain.Money(body.TotalCents))
	if err != nil {
		h.logError(ctx, "failed to declare cost", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cost)
}

func (h *Handler) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	linkID, err := domain.ParseLinkID(chi.URLParam(r, "linkID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var body recordEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	entry, err := h.service.RecordSubsidyEntry(ctx, actor, service.RecordEntryRequest{
		LinkID: linkID,
		Month:  time.Month(body.Month),
		Amount: domain.Money(body.AmountCents),
	})
	if err != nil {
		h.logError(ctx, "failed to record subsidy entry", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	entryID, err := domain.ParseEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.DeleteSubsidyEntry(ctx, actor, entryID); err != nil {
		h.logError(ctx, "failed to delete subsidy entry", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	linkID, err := domain.ParseLinkID(chi.URLParam(r, "linkID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	balance, err := h.service.LinkBalance(ctx, actor, linkID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, balance)
}

func decodeGroupRequest(r *http.Request) (service.SaveGroupRequest, error) {
	var body saveGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.SaveGroupRequest{}, dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}

	actionID, err := domain.ParseActionID(body.TrainingActionID)
	if err != nil {
		return service.SaveGroupRequest{}, err
	}
	var propertyOrgID *domain.OrgID
	if body.PropertyOrgID != nil && *body.PropertyOrgID != "" {
		id, err := domain.ParseOrgID(*body.PropertyOrgID)
		if err != nil {
			return service.SaveGroupRequest{}, err
		}
		propertyOrgID = &id
	}

	startDate, err := time.Parse(dateLayout, body.StartDate)
	if err != nil {
		return service.SaveGroupRequest{}, dErrors.New(dErrors.CodeInvalidInput, "start_date must be YYYY-MM-DD")
	}
	plannedEnd, err := time.Parse(dateLayout, body.PlannedEndDate)
	if err != nil {
		return service.SaveGroupRequest{}, dErrors.New(dErrors.CodeInvalidInput, "planned_end_date must be YYYY-MM-DD")
	}
	actualEnd, err := parseOptionalDate(body.ActualEndDate, "actual_end_date")
	if err != nil {
		return service.SaveGroupRequest{}, err
	}

	return service.SaveGroupRequest{
		TrainingActionID:         actionID,
		PropertyOrgID:            propertyOrgID,
		Code:                     body.Code,
		StartDate:                startDate,
		PlannedEndDate:           plannedEnd,
		ActualEndDate:            actualEnd,
		ParticipantCountPlanned:  body.ParticipantCountPlanned,
		ParticipantCountFinished: body.ParticipantCountFinished,
		PassedCount:              body.PassedCount,
		FailedCount:              body.FailedCount,
	}, nil
}

func parseOptionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
