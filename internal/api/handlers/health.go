package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Liveness handles GET /api/v1/health/live.
func (s *Server) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /api/v1/health/ready.
func (s *Server) Readiness(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.pools != nil {
		body["workers"] = s.pools.Metrics()
	}
	c.JSON(http.StatusOK, body)
}
