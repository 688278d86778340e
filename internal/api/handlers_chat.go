package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"querydeck/internal/chat"
	"querydeck/internal/metrics"
	"querydeck/internal/queue"
)

type ChatHandler struct {
	orch    *chat.Orchestrator
	limiter *queue.RateLimiter
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewChatHandler(orch *chat.Orchestrator, limiter *queue.RateLimiter, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{orch: orch, limiter: limiter, logger: logger, metrics: metrics.Global()}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask runs one chat turn. Turns that fail inside the pipeline still
// come back 200 with the failure attached; the client renders the
// remediation text in place of rows.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	uid := userID(c)

	if h.limiter != nil {
		allowed, used, resetAt, err := h.limiter.Allow(c.Request.Context(), uid, time.Now())
		if err != nil {
			// Redis trouble must not take chat down with it.
			h.logger.Error().Err(err).Msg("rate limit check failed, allowing turn")
		} else if !allowed {
			h.metrics.RateLimited.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":    "hourly question limit reached",
				"used":     used,
				"reset_at": resetAt.UTC().Format(time.RFC3339),
			})
			return
		}
	}

	turn, err := h.orch.Ask(c.Request.Context(), uid, c.Param("id"), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}
