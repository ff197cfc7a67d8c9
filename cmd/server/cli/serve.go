package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storyline-server/internal/handler"
	"storyline-server/internal/middleware"
	"storyline-server/internal/orchestrator"
	"storyline-server/internal/prompts"
	"storyline-server/internal/service"
	"storyline-server/internal/sweeper"
	"storyline-server/pkg/ai"
	"storyline-server/pkg/taskmanager"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	httpShutdownTimeout  = 10 * time.Second
	tasksShutdownTimeout = 30 * time.Second
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "Apply database migrations before serving")
}

func loadPrompts() (*prompts.Set, error) {
	if cfg.PromptsFile == "" {
		return prompts.Default()
	}
	log.Info("Loading prompt templates", zap.String("path", cfg.PromptsFile))
	return prompts.LoadFile(cfg.PromptsFile)
}

func newAIClient(ctx context.Context) (ai.StreamingClient, error) {
	aiCfg := ai.Config{
		Type:    cfg.AIClientType,
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.AITimeout,
	}
	if cfg.AIClientType == "scripted" {
		aiCfg.Script = prompts.DemoScript()
	}
	return ai.NewClient(ctx, aiCfg, log)
}

func runServer(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.repo.Close()
	if migrateOnStart {
		if err := st.migrator.Up(ctx); err != nil {
			return err
		}
	}

	channel, closeChannel, err := openChannel(ctx)
	if err != nil {
		return fmt.Errorf("open progress channel: %w", err)
	}
	defer closeChannel()

	client, err := newAIClient(ctx)
	if err != nil {
		return fmt.Errorf("create AI client: %w", err)
	}
	if closer, ok := client.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Warn("Failed to close AI client", zap.Error(err))
			}
		}()
	}
	promptSet, err := loadPrompts()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	orch := orchestrator.New(client, st.repo, channel, promptSet, orchestrator.Config{
		NodeNum:           cfg.NodeNum,
		MaxAttempts:       cfg.AIMaxAttempts,
		BaseRetryDelay:    cfg.AIBaseRetryDelay,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, log)
	tasks := taskmanager.New(taskmanager.Config{MaxTasks: cfg.MaxConcurrentPipelines}, log)
	gameService := service.NewGameService(st.repo, orch, tasks, channel, log)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sw := sweeper.New(st.repo, tasks, cfg.CleanupThreshold(), cfg.CleanupThreshold(), log)
	go sw.Run(sweepCtx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.EchoZapLogger(log))
	e.Use(echoMiddleware.CORS())
	gameHandler := handler.NewGameHandler(gameService, log)
	gameHandler.RegisterRoutes(e)
	e.Server.RegisterOnShutdown(gameHandler.CloseStreams)

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	stopSweeper()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancelHTTP()
	if err := e.Shutdown(httpCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	tasksCtx, cancelTasks := context.WithTimeout(context.Background(), tasksShutdownTimeout)
	defer cancelTasks()
	if err := tasks.Shutdown(tasksCtx); err != nil {
		log.Warn("Creation pipelines did not finish in time", zap.Error(err))
	}

	log.Info("Server stopped")
	return nil
}
