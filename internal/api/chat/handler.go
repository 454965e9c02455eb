package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/pkg/logger"
	"github.com/futig/manual-assistant/internal/pkg/response"
)

type Handler struct {
	usecase ChatUsecase
}

func NewHandler(usecase ChatUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// Chat handles POST /api/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Chat")

	var req entity.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	resp, err := h.usecase.Chat(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, resp)
}

// Summarize handles POST /api/summarize
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Summarize")

	var req entity.SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	resp, err := h.usecase.Summarize(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "conversation summarized", zap.Int("messages", len(req.Messages)))
	response.JSON(w, http.StatusOK, resp)
}

// History handles GET /api/sessions/{session_id}/history?limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx := h.sessionContext(r, "History")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.handleUsecaseError(ctx, w, fmt.Errorf("%w: limit %q", entity.ErrInvalidParameter, v))
			return
		}
		limit = n
	}

	history, err := h.usecase.History(ctx, chi.URLParam(r, "session_id"), limit)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, history)
}

// Stats handles GET /api/sessions/{session_id}/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := h.sessionContext(r, "MemoryStats")

	stats, err := h.usecase.Stats(ctx, chi.URLParam(r, "session_id"))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, stats)
}

// Export handles GET /api/sessions/{session_id}/export?format=
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := h.sessionContext(r, "ExportTranscript")
	format := entity.ResultFormat(r.URL.Query().Get("format"))

	file, err := h.usecase.Export(ctx, chi.URLParam(r, "session_id"), format)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Content); err != nil {
		ctxzap.Warn(ctx, "failed to write transcript", zap.Error(err))
	}
}

// ClearMemory handles POST /api/clear-memory
func (h *Handler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ClearMemory")

	var req entity.ClearMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	if err := h.usecase.ClearMemory(ctx, req.SessionID); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, &entity.StatusResponse{
		Status:  "cleared",
		Message: "Conversation memory cleared",
	})
}

func (h *Handler) sessionContext(r *http.Request, action string) context.Context {
	return logger.AddFields(r.Context(),
		zap.String("session_id", chi.URLParam(r, "session_id")),
		zap.String("action", action),
	)
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	response.FromUsecase(ctx, w, err)
}
