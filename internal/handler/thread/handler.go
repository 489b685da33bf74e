package thread

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/model/chat"
	chatService "github.com/zhouzirui/tuft-client/internal/service/chat"
	"github.com/zhouzirui/tuft-client/internal/service/responder"
	"github.com/zhouzirui/tuft-client/pkg/utils"
)

// ThreadStore 线程存储
type ThreadStore interface {
	CreateSession(ctx context.Context, metadata map[string]any) (chat.Session, error)
}

// Runner 执行一次对话运行
type Runner interface {
	Run(ctx context.Context, threadID string, req responder.RunRequest) (map[string]any, error)
}

// Handler 线程与运行接口的HTTP处理器
type Handler struct {
	threads ThreadStore
	runner  Runner
	logger  *zap.Logger
}

// New 创建线程处理器
func New(threads ThreadStore, runner Runner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{threads: threads, runner: runner, logger: logger}
}

// RegisterRoutes 注册线程相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/threads", h.handleCreateThread)
	r.Post("/threads/{threadID}/runs/wait", h.handleRunWait)
}

// handleCreateThread 创建线程
func (h *Handler) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Metadata map[string]any `json:"metadata"`
	}

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.threads.CreateSession(r.Context(), payload.Metadata)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("thread created", zap.String("thread_id", session.ID))
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleRunWait 执行运行并等待结果
func (h *Handler) handleRunWait(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var payload responder.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body, err := h.runner.Run(r.Context(), threadID, payload)
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "thread not found: "+threadID)
		return
	case errors.Is(err, responder.ErrNoInput):
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("run failed", zap.String("thread_id", threadID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "run failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, body)
}
