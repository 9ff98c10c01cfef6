package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"scribehq.app/scribe/common/id"
	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/common/logger"
	"scribehq.app/scribe/common/otel"
	"scribehq.app/scribe/core/config"
	"scribehq.app/scribe/core/db"
	"scribehq.app/scribe/internal/http/handler"
	httprouter "scribehq.app/scribe/internal/http/router"
	"scribehq.app/scribe/internal/news"
	"scribehq.app/scribe/internal/pipeline"
	"scribehq.app/scribe/internal/queue"
	"scribehq.app/scribe/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "scribe starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream)
	defer producer.Close()

	clients, err := buildClients(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build inference clients", "error", err)
		os.Exit(1)
	}

	runs := store.NewRunStore(database)
	pipe := pipeline.New(clients, news.NewClient(cfg.News), runs)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	runHandler := handler.NewRunHandler(pipe, producer, runs, cfg.AdminAPIKey)
	router := setupRouter(cfg, runHandler)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Synchronous generation holds the request across several inference
		// calls, so the write timeout is generous.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func buildClients(cfg config.Config) (pipeline.Clients, error) {
	researcher, err := llm.New(llm.Config{
		APIKey:  cfg.ResearcherLLM.APIKey,
		BaseURL: cfg.ResearcherLLM.BaseURL,
		Model:   cfg.ResearcherLLM.Model,
	})
	if err != nil {
		return pipeline.Clients{}, fmt.Errorf("researcher client: %w", err)
	}
	writer, err := llm.New(llm.Config{
		APIKey:  cfg.WriterLLM.APIKey,
		BaseURL: cfg.WriterLLM.BaseURL,
		Model:   cfg.WriterLLM.Model,
	})
	if err != nil {
		return pipeline.Clients{}, fmt.Errorf("writer client: %w", err)
	}
	reviewer, err := llm.New(llm.Config{
		APIKey:  cfg.ReviewerLLM.APIKey,
		BaseURL: cfg.ReviewerLLM.BaseURL,
		Model:   cfg.ReviewerLLM.Model,
	})
	if err != nil {
		return pipeline.Clients{}, fmt.Errorf("reviewer client: %w", err)
	}
	return pipeline.Clients{Researcher: researcher, Writer: writer, Reviewer: reviewer}, nil
}

func setupRouter(cfg config.Config, runHandler *handler.RunHandler) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(gin.Recovery())

	httprouter.SetupRoutes(router, runHandler)

	return router
}

const banner = `
███████╗ ██████╗██████╗ ██╗██████╗ ███████╗
██╔════╝██╔════╝██╔══██╗██║██╔══██╗██╔════╝
███████╗██║     ██████╔╝██║██████╔╝█████╗
╚════██║██║     ██╔══██╗██║██╔══██╗██╔══╝
███████║╚██████╗██║  ██║██║██████╔╝███████╗
╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝╚═════╝ ╚══════╝
`
