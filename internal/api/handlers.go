package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/models"
	"github.com/gopost/repost/internal/pipeline"
	"github.com/gopost/repost/internal/queue"
)

const defaultHistoryPageSize = 30

// Runner executes one selection-and-dispatch cycle.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Reporter produces the diagnostics report.
type Reporter interface {
	Report(ctx context.Context) models.DiagnosticsReport
}

// HistoryLister serves the recent publish history.
type HistoryLister interface {
	RecentHistory(ctx context.Context, limit int) ([]models.RecentPost, error)
}

// Handlers provides HTTP handlers for the API
type Handlers struct {
	queue    *queue.Queue
	runner   Runner
	reporter Reporter
	history  HistoryLister
	logger   logger.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(q *queue.Queue, runner Runner, reporter Reporter, history HistoryLister, log logger.Logger) *Handlers {
	return &Handlers{
		queue:    q,
		runner:   runner,
		reporter: reporter,
		history:  history,
		logger:   log,
	}
}

// RunPipeline handles POST /api/v1/pipeline/run. The run is queued, not
// executed inline; the response carries the job ID for polling.
func (h *Handlers) RunPipeline(c *gin.Context) {
	jobID := h.queue.Enqueue(func(ctx context.Context) (any, error) {
		return h.runner.Run(ctx)
	})

	h.logger.Info("Pipeline run requested",
		logger.String("job_id", jobID.String()),
		logger.String("remote_addr", c.ClientIP()),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID.String(),
		"status": string(models.JobQueued),
	})
}

// GetQueueStatus handles GET /api/v1/queue/status
func (h *Handlers) GetQueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Snapshot())
}

// GetJobStatus handles GET /api/v1/jobs/:id
func (h *Handlers) GetJobStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid job ID format",
		})
		return
	}

	job, ok := h.queue.Status(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetDiagnostics handles GET /api/v1/diagnostics
func (h *Handlers) GetDiagnostics(c *gin.Context) {
	report := h.reporter.Report(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

// GetHistory handles GET /api/v1/history
func (h *Handlers) GetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryPageSize
	}

	posts, err := h.history.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to get publish history",
			logger.Error(err),
			logger.String("path", c.Request.URL.Path),
			logger.Int("limit", limit),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve publish history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": posts,
		"count": len(posts),
	})
}
