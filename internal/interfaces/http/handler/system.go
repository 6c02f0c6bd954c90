package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subsync/backend/internal/infrastructure/persistence"
)

// SystemHandler serves liveness and readiness probes.
type SystemHandler struct {
	db *persistence.Database
}

func NewSystemHandler(db *persistence.Database) *SystemHandler {
	return &SystemHandler{db: db}
}

// Health handles GET /health. The database ping makes it double as a
// readiness probe.
func (h *SystemHandler) Health(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}
