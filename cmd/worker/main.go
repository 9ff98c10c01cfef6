package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"scribehq.app/scribe/common/id"
	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/common/logger"
	"scribehq.app/scribe/common/otel"
	"scribehq.app/scribe/core/config"
	"scribehq.app/scribe/core/db"
	"scribehq.app/scribe/internal/news"
	"scribehq.app/scribe/internal/pipeline"
	"scribehq.app/scribe/internal/queue"
	"scribehq.app/scribe/internal/store"
	"scribehq.app/scribe/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "scribe worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Different node ID than the server so snowflake IDs never collide
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
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
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer,
		DLQStream: cfg.Pipeline.RedisDLQStream,
		// One run at a time: a run holds several inference calls in flight
		BatchSize:    1,
		Block:        5 * time.Second,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	clients, err := buildClients(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build inference clients", "error", err)
		os.Exit(1)
	}

	runs := store.NewRunStore(database)
	pipe := pipeline.New(clients, news.NewClient(cfg.News), runs)

	w := worker.New(consumer, pipe, worker.Config{MaxAttempts: 3})

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
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

const banner = `
███████╗ ██████╗██████╗ ██╗██████╗ ███████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔════╝██╔════╝██╔══██╗██║██╔══██╗██╔════╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
███████╗██║     ██████╔╝██║██████╔╝█████╗      ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
╚════██║██║     ██╔══██╗██║██╔══██╗██╔══╝      ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
███████║╚██████╗██║  ██║██║██████╔╝███████╗    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝╚═════╝ ╚══════╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
