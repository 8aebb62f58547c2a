package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	appMiddleware "github.com/wayfarer-labs/wayfarer-api/app/middleware"
	"github.com/wayfarer-labs/wayfarer-api/internal/api"
	generativeAI "github.com/wayfarer-labs/wayfarer-api/internal/api/generative_ai"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// QuotaKeeper is the slice of the plans service the generation
// endpoint needs: the daily budget gate and the usage record.
type QuotaKeeper interface {
	CheckQuota(ctx context.Context, userID uuid.UUID, tier string) (*types.GenerationQuota, error)
	RecordGeneration(ctx context.Context, userID uuid.UUID, destination string) error
}

// GenerateRequest is the generation endpoint body.
type GenerateRequest struct {
	types.PlanRequest
	Mode string `json:"mode,omitempty"`
}

// ChatStreamRequest is the streaming chat endpoint body.
type ChatStreamRequest struct {
	Message string              `json:"message"`
	History []types.ChatMessage `json:"history,omitempty"`
}

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GeneratePlan(w http.ResponseWriter, r *http.Request)
	ChatStream(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	plannerService Service
	chat           generativeAI.ChatClient
	quota          QuotaKeeper
	logger         *slog.Logger
}

func NewHandlerImpl(plannerService Service, chat generativeAI.ChatClient, quota QuotaKeeper, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		plannerService: plannerService,
		chat:           chat,
		quota:          quota,
		logger:         logger,
	}
}

// GeneratePlan gates the request on the caller's daily quota, runs the
// pipeline, and records the usage on success.
func (h *HandlerImpl) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GeneratePlan"))

	userID, ok := authenticatedUser(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	tier, _ := appMiddleware.GetMembershipTierFromContext(ctx)

	var req GenerateRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Normalize(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Mode != "" && !Mode(req.Mode).Valid() {
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("unknown plan mode %q", req.Mode))
		return
	}

	quota, err := h.quota.CheckQuota(ctx, userID, tier)
	if err != nil {
		l.ErrorContext(ctx, "quota check failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to check quota")
		return
	}
	if !quota.CanGenerate {
		api.WriteJSONResponse(w, r, http.StatusTooManyRequests, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("今日生成次数已用完（%s每日%d次）", quota.TierName, quota.DailyLimit),
			"quota":   quota,
		})
		return
	}

	result, err := h.plannerService.CreatePlan(ctx, req.PlanRequest, Mode(req.Mode))
	if err != nil {
		if errors.Is(err, generativeAI.ErrUnauthorized) {
			l.ErrorContext(ctx, "chat provider rejected request", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadGateway, "AI provider rejected the request")
			return
		}
		l.ErrorContext(ctx, "plan generation failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Plan generation failed")
		return
	}

	if err := h.quota.RecordGeneration(ctx, userID, req.Destination); err != nil {
		l.WarnContext(ctx, "failed to record generation", slog.Any("error", err))
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// ChatStream forwards the model's streamed reply as SSE data events,
// ending with [DONE].
func (h *HandlerImpl) ChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ChatStream"))

	if _, ok := authenticatedUser(ctx); !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChatStreamRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Message == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	stream, err := h.chat.CompleteStream(ctx, "", req.History, req.Message)
	if err != nil {
		if errors.Is(err, generativeAI.ErrUnauthorized) {
			api.ErrorResponse(w, r, http.StatusBadGateway, "AI provider rejected the request")
			return
		}
		l.ErrorContext(ctx, "chat stream failed to start", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to start stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range stream {
		if chunk.Err != nil {
			l.WarnContext(ctx, "chat stream interrupted", slog.Any("error", chunk.Err))
			writeSSE(w, map[string]string{"error": "stream interrupted"})
			flusher.Flush()
			return
		}
		writeSSE(w, map[string]string{"content": chunk.Content})
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func authenticatedUser(ctx context.Context) (uuid.UUID, bool) {
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
