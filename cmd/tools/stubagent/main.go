// Command stubagent runs a local stand-in for the agent service so the
// client can be exercised without the upstream deployment.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/config"
	"github.com/zhouzirui/tuft-client/internal/handler"
	"github.com/zhouzirui/tuft-client/internal/model/persona"
	"github.com/zhouzirui/tuft-client/internal/service/ai"
	"github.com/zhouzirui/tuft-client/internal/service/chat"
	"github.com/zhouzirui/tuft-client/internal/service/responder"
	"github.com/zhouzirui/tuft-client/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.LevelOr("info"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("failed to load .env file, continuing with system environment variables only", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shape, err := responder.ParseShape(cfg.Stub.Shape)
	if err != nil {
		return err
	}

	p := persona.Resolve(persona.NewMemoryStore(persona.Seed()), cfg.Client.Persona)
	chatService := chat.NewService()

	opts := []responder.Option{
		responder.WithPersona(p),
		responder.WithAssistantID(cfg.Client.AssistantID),
		responder.WithShape(shape),
		responder.WithLogger(logger),
	}

	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, ai.WithLogger(logger))
		if err != nil {
			logger.Warn("failed to initialize AI service, continuing with canned replies - 请检查 Ark 模型相关环境变量", zap.Error(err))
		} else {
			opts = append(opts, responder.WithGenerator(aiService))
			logger.Info("AI service initialized successfully", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("Ark 凭证未配置，使用内置回复")
	}

	router := handler.NewRouter(chatService, responder.New(chatService, opts...), logger)

	srv := &http.Server{
		Addr:              cfg.Stub.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("stub agent listening",
		zap.String("addr", cfg.Stub.Addr),
		zap.String("shape", string(shape)),
		zap.String("assistant_id", cfg.Client.AssistantID))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
