package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/handler/thread"
	middlewarePkg "github.com/zhouzirui/tuft-client/internal/middleware"
	chatService "github.com/zhouzirui/tuft-client/internal/service/chat"
	"github.com/zhouzirui/tuft-client/internal/service/responder"
	"github.com/zhouzirui/tuft-client/pkg/utils"
)

// NewRouter wires the agent service routes to the thread store and responder.
func NewRouter(chatSvc *chatService.Service, runner *responder.Responder, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	threadHandler := thread.New(chatSvc, runner, logger)
	threadHandler.RegisterRoutes(r)

	return r
}
