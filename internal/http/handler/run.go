package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribehq.app/scribe/common/id"
	"scribehq.app/scribe/internal/http/dto"
	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/queue"
	"scribehq.app/scribe/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// RunGenerator runs one generation attempt synchronously. The pipeline
// satisfies this.
type RunGenerator interface {
	Generate(ctx context.Context, runID int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile, options model.Options) model.Outcome
}

type RunHandler struct {
	generator   RunGenerator
	producer    queue.Producer
	runs        store.RunStore
	adminAPIKey string
}

func NewRunHandler(generator RunGenerator, producer queue.Producer, runs store.RunStore, adminAPIKey string) *RunHandler {
	return &RunHandler{
		generator:   generator,
		producer:    producer,
		runs:        runs,
		adminAPIKey: adminAPIKey,
	}
}

// Generate starts a run. With ?async=true the task is enqueued and the run ID
// returned immediately; otherwise the pipeline runs in-request and the full
// outcome is returned.
func (h *RunHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid generate request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender, recipient, org, options := req.Profiles()
	runID := id.New()

	if c.Query("async") == "true" {
		if h.producer == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "async generation not configured"})
			return
		}
		payload := queue.GeneratePayload{
			Sender:       sender,
			Recipient:    recipient,
			Organization: org,
			Options:      options,
		}
		if err := h.producer.EnqueueGenerate(ctx, runID, payload); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue generate task", "error", err, "run_id", runID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue run"})
			return
		}
		c.JSON(http.StatusAccepted, dto.RunQueuedResponse{RunID: runID, Status: "queued"})
		return
	}

	outcome := h.generator.Generate(ctx, runID, sender, recipient, org, options)
	c.JSON(http.StatusOK, dto.ToOutcomeResponse(outcome))
}

// Get returns the outcome of a finished run, or the current phase of a run
// still in flight.
func (h *RunHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	outcome, err := h.runs.GetOutcome(ctx, runID)
	if err == nil {
		c.JSON(http.StatusOK, dto.ToOutcomeResponse(outcome))
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to load outcome", "error", err, "run_id", runID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	run, err := h.runs.GetRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load run", "error", err, "run_id", runID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, dto.RunStatusResponse{
		RunID:  run.ID,
		Status: "processing",
		Phase:  string(run.State.Phase),
	})
}

// List returns the most recent run outcomes, newest first.
func (h *RunHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit := int64(defaultListLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxListLimit)
	}

	outcomes, err := h.runs.ListRecent(ctx, int32(limit))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	responses := make([]dto.OutcomeResponse, 0, len(outcomes))
	for _, outcome := range outcomes {
		responses = append(responses, dto.ToOutcomeResponse(outcome))
	}
	c.JSON(http.StatusOK, gin.H{"runs": responses})
}

// RequireAdminAPIKey middleware checks for a valid admin API key.
func (h *RunHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminAPIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = c.GetHeader("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}

		if apiKey != h.adminAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
