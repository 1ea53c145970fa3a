package api

import (
	"net/http"

	"reelforge/engines"
	"reelforge/types"

	"github.com/gin-gonic/gin"
)

// RegisterEngineRoutes registers catalog and selection endpoints.
func RegisterEngineRoutes(r *gin.Engine, s *engines.Selector) {
	g := r.Group("/api/engines")
	g.GET("", handleListEngines(s))
	g.POST("/select", handleSelectEngine(s))
}

func handleListEngines(s *engines.Selector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"engines": s.Catalog().List()})
	}
}

// handleSelectEngine returns the engine a batch with these constraints
// would use, plus every other eligible engine in rank order.
func handleSelectEngine(s *engines.Selector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req engines.SelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
		if req.TierCeiling == "" {
			req.TierCeiling = types.TierAIChooses
		}
		if req.Backend == "" {
			req.Backend = types.LocationAuto
		}

		candidates := s.Candidates(req)
		if len(candidates) == 0 {
			respondError(c, types.ValidationError(types.CodeNoEligibleEngine, "selection",
				"no engine matches tier %s, backend %s and %d second(s)", req.TierCeiling, req.Backend, req.DurationSeconds))
			return
		}
		c.JSON(http.StatusOK, gin.H{"engine": candidates[0], "candidates": candidates})
	}
}
