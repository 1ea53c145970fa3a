package api

import (
	"context"

	"reelforge/briefs"
	"reelforge/engines"
	"reelforge/state"
	"reelforge/types"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports render server health.
type HealthChecker interface {
	Health(ctx context.Context) (types.HealthResponse, error)
}

// Deps are the services the API exposes. Health and Briefs may be nil.
type Deps struct {
	State    *state.Manager
	Selector *engines.Selector
	Briefs   *briefs.Importer
	Health   HealthChecker
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	RegisterBatchRoutes(r, d.State)
	RegisterRunRoutes(r, d.State)
	RegisterEngineRoutes(r, d.Selector)
	RegisterBriefRoutes(r, d.Briefs)
	RegisterHealthRoutes(r, d.Health)
	return r
}
