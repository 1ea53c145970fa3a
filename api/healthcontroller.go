package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHealthRoutes registers the health endpoint.
func RegisterHealthRoutes(r *gin.Engine, h HealthChecker) {
	r.GET("/api/health", func(c *gin.Context) {
		resp := gin.H{"status": "ok"}
		if h == nil {
			resp["render_server"] = gin.H{"status": "not configured"}
			c.JSON(http.StatusOK, resp)
			return
		}

		health, err := h.Health(c.Request.Context())
		if err != nil {
			resp["status"] = "degraded"
			resp["render_server"] = gin.H{"status": "unavailable", "error": err.Error()}
			c.JSON(http.StatusOK, resp)
			return
		}
		resp["render_server"] = health
		c.JSON(http.StatusOK, resp)
	})
}
