package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sqlxpert/lights-off-aws/internal/queue"
)

// QueueHandler exposes the dead-letter channel spec.md §6 requires an
// operator be able to inspect and replay.
type QueueHandler struct {
	rdb       *redis.Client
	queueName string
}

func NewQueueHandler(rdb *redis.Client, queueName string) *QueueHandler {
	return &QueueHandler{rdb: rdb, queueName: queueName}
}

// GET /api/v1/dlq?count=50
func (h *QueueHandler) ListDLQ(c *gin.Context) {
	count := int64(50)
	if v, err := strconv.Atoi(c.Query("count")); err == nil && v > 0 {
		count = int64(v)
	}
	items, err := queue.ListDLQ(c.Request.Context(), h.rdb, h.queueName, count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list dlq failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": h.queueName, "count": len(items), "items": items})
}

// ReplayDLQRequest is the body for POST /api/v1/dlq/replay.
type ReplayDLQRequest struct {
	Count int `json:"count"`
}

// POST /api/v1/dlq/replay
func (h *QueueHandler) ReplayDLQ(c *gin.Context) {
	var req ReplayDLQRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Count <= 0 {
		req.Count = 1
	}
	moved, err := queue.ReplayDLQ(c.Request.Context(), h.rdb, h.queueName, int64(req.Count))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "replay dlq failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": h.queueName, "moved": moved})
}
