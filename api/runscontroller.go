package api

import (
	"net/http"

	"reelforge/state"

	"github.com/gin-gonic/gin"
)

// RegisterRunRoutes registers run inspection and control endpoints.
func RegisterRunRoutes(r *gin.Engine, m *state.Manager) {
	g := r.Group("/api/runs")
	g.GET("", handleListRuns(m))
	g.GET("/:id", handleGetRun(m))
	g.POST("/:id/jobs/:jobId/retry", handleRetryJob(m))
	g.POST("/:id/retry-failed", handleRetryFailed(m))
	g.POST("/:id/pause", handlePause(m))
	g.POST("/:id/resume", handleResume(m))
}

func handleListRuns(m *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"runs": m.Runs()})
	}
}

func handleGetRun(m *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := m.Run(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// handleRetryJob re-dispatches one failed job in the background.
func handleRetryJob(m *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.RetryJob(c.Param("id"), c.Param("jobId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "retrying", "job_id": c.Param("jobId")})
	}
}

func handleRetryFailed(m *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := m.RetryFailed(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "retrying", "retrying": n})
	}
}

func handlePause(m *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.Pause(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"paused": true})
	}
}

func handleResume(m *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.Resume(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"paused": false})
	}
}
