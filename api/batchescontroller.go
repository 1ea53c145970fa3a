package api

import (
	"net/http"

	"reelforge/executor"
	"reelforge/state"

	"github.com/gin-gonic/gin"
)

// RegisterBatchRoutes registers batch submission.
func RegisterBatchRoutes(r *gin.Engine, m *state.Manager) {
	g := r.Group("/api/batches")
	g.POST("", handleSubmitBatch(m))
}

// handleSubmitBatch validates and starts a batch. It returns 202 with the
// run id immediately, or waits for the batch result when ?wait=true.
func handleSubmitBatch(m *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req executor.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		if c.Query("wait") == "true" {
			res, err := m.Execute(c.Request.Context(), req)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, res)
			return
		}

		runID, err := m.Submit(req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"run_id":     runID,
			"status_url": "/api/runs/" + runID,
		})
	}
}
