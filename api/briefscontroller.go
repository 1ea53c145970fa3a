package api

import (
	"net/http"

	"reelforge/briefs"

	"github.com/gin-gonic/gin"
)

// RegisterBriefRoutes registers feed import. Nothing is registered when no
// importer is configured.
func RegisterBriefRoutes(r *gin.Engine, imp *briefs.Importer) {
	if imp == nil {
		return
	}
	g := r.Group("/api/briefs")
	g.POST("/import", handleImportBriefs(imp))
	g.GET("/feeds", handleListFeeds)
}

// handleImportBriefs turns the items of an RSS/Atom feed into briefs.
func handleImportBriefs(imp *briefs.Importer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req briefs.ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
		if req.Feed == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "feed is required"}})
			return
		}

		items, err := imp.FromFeed(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(items), "briefs": items})
	}
}

func handleListFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feeds": briefs.Presets})
}
