package executor

import (
	"context"

	"reelforge/types"
)

// StatusFunc receives intermediate job states observed while a plan renders.
type StatusFunc func(types.StatusEvent)

// RenderAdapter renders one execution plan on a backend. Implementations
// never return an unstructured failure: every problem is reported through the
// result's Error.
type RenderAdapter interface {
	Render(ctx context.Context, plan types.ExecutionPlan, observe StatusFunc) types.EngineResult
}

// LocalBackend is the self-hosted render server. Health and Upload return a
// *types.RenderError when they fail.
type LocalBackend interface {
	RenderAdapter
	Health(ctx context.Context) (HealthStatus, error)
	Upload(ctx context.Context, path string) (string, error)
}

// CloudBackend renders through third-party provider APIs.
type CloudBackend interface {
	RenderAdapter
	Supports(p types.ProviderID) bool
}

// adapterFor returns the adapter for a backend.
func (o *Orchestrator) adapterFor(b types.Backend) (RenderAdapter, bool) {
	switch b.Kind {
	case types.BackendLocalServer:
		if o.local == nil {
			return nil, false
		}
		return o.local, true
	case types.BackendCloudAPI:
		if o.cloud == nil || !o.cloud.Supports(b.Provider) {
			return nil, false
		}
		return o.cloud, true
	}
	return nil, false
}

func notify(observe StatusFunc, ev types.StatusEvent) {
	if observe != nil {
		observe(ev)
	}
}
