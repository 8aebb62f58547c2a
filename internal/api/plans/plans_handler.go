package plans

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appMiddleware "github.com/wayfarer-labs/wayfarer-api/app/middleware"
	"github.com/wayfarer-labs/wayfarer-api/internal/api"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	SavePlan(w http.ResponseWriter, r *http.Request)
	GetPlan(w http.ResponseWriter, r *http.Request)
	GetSharedPlan(w http.ResponseWriter, r *http.Request)
	ListMyPlans(w http.ResponseWriter, r *http.Request)
	ListPublicPlans(w http.ResponseWriter, r *http.Request)
	UpdatePlan(w http.ResponseWriter, r *http.Request)
	DeletePlan(w http.ResponseWriter, r *http.Request)
	Favorite(w http.ResponseWriter, r *http.Request)
	Unfavorite(w http.ResponseWriter, r *http.Request)
	ListFavorites(w http.ResponseWriter, r *http.Request)
	Like(w http.ResponseWriter, r *http.Request)
	Unlike(w http.ResponseWriter, r *http.Request)
	GetQuota(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	plansService PlansService
	logger       *slog.Logger
}

func NewHandlerImpl(plansService PlansService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		plansService: plansService,
		logger:       logger,
	}
}

func (h *HandlerImpl) SavePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SavePlanRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.plansService.SavePlan(ctx, userID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "save plan failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, plan)
}

func (h *HandlerImpl) GetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	plan, err := h.plansService.GetPlan(ctx, planID, userID)
	if err != nil {
		h.respondPlanError(w, r, err, "get plan failed")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, plan)
}

func (h *HandlerImpl) GetSharedPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, err := h.plansService.GetSharedPlan(ctx, chi.URLParam(r, "shareCode"))
	if err != nil {
		h.respondPlanError(w, r, err, "get shared plan failed")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, plan)
}

func (h *HandlerImpl) ListMyPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	limit, offset := pagination(r)

	plans, err := h.plansService.ListMyPlans(ctx, userID, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "list my plans failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list plans")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, plans)
}

func (h *HandlerImpl) ListPublicPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := pagination(r)

	plans, err := h.plansService.ListPublicPlans(ctx, r.URL.Query().Get("destination"), limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "list public plans failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list public plans")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, plans)
}

func (h *HandlerImpl) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	var update types.PlanUpdate
	if err := api.DecodeJSONBody(w, r, &update); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.plansService.UpdatePlan(ctx, planID, userID, update)
	if err != nil {
		h.respondPlanError(w, r, err, "update plan failed")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, plan)
}

func (h *HandlerImpl) DeletePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	if err := h.plansService.DeletePlan(ctx, planID, userID); err != nil {
		h.respondPlanError(w, r, err, "delete plan failed")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) Favorite(w http.ResponseWriter, r *http.Request) {
	h.togglePlanRelation(w, r, h.plansService.Favorite)
}

func (h *HandlerImpl) Unfavorite(w http.ResponseWriter, r *http.Request) {
	h.togglePlanRelation(w, r, h.plansService.Unfavorite)
}

func (h *HandlerImpl) Like(w http.ResponseWriter, r *http.Request) {
	h.togglePlanRelation(w, r, h.plansService.Like)
}

func (h *HandlerImpl) Unlike(w http.ResponseWriter, r *http.Request) {
	h.togglePlanRelation(w, r, h.plansService.Unlike)
}

func (h *HandlerImpl) ListFavorites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	limit, offset := pagination(r)

	plans, err := h.plansService.ListFavorites(ctx, userID, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "list favorites failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list favorites")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, plans)
}

func (h *HandlerImpl) GetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	tier, _ := appMiddleware.GetMembershipTierFromContext(ctx)

	quota, err := h.plansService.CheckQuota(ctx, userID, tier)
	if err != nil {
		h.logger.ErrorContext(ctx, "quota check failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to check quota")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, quota)
}

func (h *HandlerImpl) togglePlanRelation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, planID uuid.UUID) error) {
	ctx := r.Context()
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	if err := op(ctx, userID, planID); err != nil {
		h.respondPlanError(w, r, err, "plan relation toggle failed")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (h *HandlerImpl) respondPlanError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Plan not found")
	case errors.Is(err, types.ErrForbidden):
		api.ErrorResponse(w, r, http.StatusForbidden, "Not your plan")
	default:
		h.logger.ErrorContext(r.Context(), logMsg, slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Request failed")
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxPageSize)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// authenticatedUserID reads the user ID stored by the Authenticate
// middleware.
func authenticatedUserID(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := appMiddleware.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}
