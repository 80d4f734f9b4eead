package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sqlxpert/lights-off-aws/internal/repo"
)

// OperationHandler exposes the Postgres audit trail the Doer writes, the
// view an operator reaches for after a dead-letter alert.
type OperationHandler struct {
	repo *repo.OperationRepo
}

func NewOperationHandler(r *repo.OperationRepo) *OperationHandler {
	return &OperationHandler{repo: r}
}

// GET /api/v1/operations?limit=100
func (h *OperationHandler) ListRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	recs, err := h.repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list operations failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "items": recs})
}

// GET /api/v1/resources/:id/operations?limit=50
func (h *OperationHandler) ListByResource(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	recs, err := h.repo.ListByResource(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list operations failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rsrc_id": c.Param("id"), "count": len(recs), "items": recs})
}
