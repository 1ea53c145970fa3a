package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelforge/config"
	"reelforge/engines"
	"reelforge/planner"
	"reelforge/types"
)

// MaxVariations caps the number of variations in one batch.
const MaxVariations = 50

// ScenePlanner builds the base scene list for a brief.
type ScenePlanner interface {
	Plan(ctx context.Context, brief types.Brief) (types.SceneList, error)
}

// ProgressFunc receives batch progress as a fraction in [0, 1]. Successive
// calls within one batch always carry strictly increasing fractions.
type ProgressFunc func(fraction float64, message string)

// Hooks let callers observe a batch while it runs. All hooks are optional.
type Hooks struct {
	// OnPlanned is called once with every plan of a batch before dispatch.
	OnPlanned func(req BatchRequest, plans []types.ExecutionPlan)
	// OnStatus receives intermediate job states reported by backends.
	OnStatus StatusFunc
	// OnResult receives every dispatch outcome, including retries.
	OnResult func(types.EngineResult)
}

// BatchRequest asks for Variations renders of one brief.
type BatchRequest struct {
	BatchID      string             `json:"batch_id,omitempty"`
	Brief        types.Brief        `json:"brief"`
	Variations   int                `json:"variations"`
	Sources      []string           `json:"sources,omitempty"`
	Tier         types.Tier         `json:"tier"`
	Backend      types.Location     `json:"backend"`
	Capabilities []types.Capability `json:"capabilities,omitempty"`
	AspectRatios []string           `json:"aspect_ratios"`
	Seed         int64              `json:"seed"`
	DryRun       bool               `json:"dry_run,omitempty"`
}

// Normalize fills defaults that do not change the meaning of the request.
func (r BatchRequest) Normalize() BatchRequest {
	if r.Tier == "" {
		r.Tier = types.TierAIChooses
	}
	if r.Backend == "" {
		r.Backend = types.LocationAuto
	}
	if len(r.Sources) == 0 {
		for _, a := range r.Brief.Assets {
			if a.Path != "" {
				r.Sources = append(r.Sources, a.Path)
			}
		}
	}
	if r.Seed == 0 {
		r.Seed = r.Brief.Seed
	}
	r.Brief.Seed = r.Seed
	return r
}

// Validate checks the request without touching any backend.
func (r BatchRequest) Validate() error {
	const stage = "validation"
	if r.Variations < 1 || r.Variations > MaxVariations {
		return types.ValidationError(types.CodeInvalidRequest, stage, "variations must be between 1 and %d, got %d", MaxVariations, r.Variations)
	}
	if len(r.Sources) == 0 {
		return types.ValidationError(types.CodeNoSourceAsset, stage, "at least one source asset is required")
	}
	for _, s := range r.Sources {
		if strings.TrimSpace(s) == "" {
			return types.ValidationError(types.CodeNoSourceAsset, stage, "source asset path is empty")
		}
	}
	if len(r.AspectRatios) == 0 {
		return types.ValidationError(types.CodeInvalidRequest, stage, "at least one aspect ratio is required")
	}
	if r.Tier != types.TierAIChooses && !r.Tier.Valid() {
		return types.ValidationError(types.CodeInvalidRequest, stage, "unknown tier %q", r.Tier)
	}
	if r.Backend != types.LocationAuto && !r.Backend.Valid() {
		return types.ValidationError(types.CodeInvalidRequest, stage, "unknown backend %q", r.Backend)
	}
	if r.Brief.DurationMs < planner.MinDurationMs {
		return types.ValidationError(types.CodeInvalidBrief, stage, "duration must be at least %dms", planner.MinDurationMs)
	}
	return nil
}

// BatchResult is the outcome of a batch. Results are in variation order.
type BatchResult struct {
	BatchID       string                `json:"batch_id"`
	Engine        types.EngineSpec      `json:"engine"`
	Backend       types.Backend         `json:"backend"`
	Scenes        types.SceneList       `json:"scenes"`
	Plans         []types.ExecutionPlan `json:"plans"`
	Results       []types.EngineResult  `json:"results"`
	Succeeded     int                   `json:"succeeded"`
	Failed        int                   `json:"failed"`
	EstimatedCost float64               `json:"estimated_cost"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
}

// Config wires an Orchestrator. Local and Cloud may be nil when that
// backend is not deployed.
type Config struct {
	Planner       ScenePlanner
	Selector      *engines.Selector
	Local         LocalBackend
	Cloud         CloudBackend
	Hooks         Hooks
	MaxConcurrent int
}

// Orchestrator turns batch requests into dispatched renders.
type Orchestrator struct {
	planner       ScenePlanner
	selector      *engines.Selector
	local         LocalBackend
	cloud         CloudBackend
	hooks         Hooks
	maxConcurrent int
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = config.MaxConcurrentDispatch
	}
	return &Orchestrator{
		planner:       cfg.Planner,
		selector:      cfg.Selector,
		local:         cfg.Local,
		cloud:         cfg.Cloud,
		hooks:         cfg.Hooks,
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// SetHooks replaces the observation hooks. It must not be called while a
// batch is running.
func (o *Orchestrator) SetHooks(h Hooks) {
	o.hooks = h
}

// Selector returns the engine selector.
func (o *Orchestrator) Selector() *engines.Selector {
	return o.selector
}

// Local returns the local render server backend, or nil.
func (o *Orchestrator) Local() LocalBackend {
	return o.local
}

// Run executes a batch. A non-nil error is always a *types.RenderError and
// means nothing was dispatched; per-variation failures are reported in the
// result instead.
func (o *Orchestrator) Run(ctx context.Context, req BatchRequest, progress ProgressFunc) (*BatchResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}

	report := &progressReporter{fn: progress, last: -1, total: req.Variations}
	started := time.Now()
	report.step(0, fmt.Sprintf("starting batch %s", req.BatchID))
	log.Printf("🎬 Starting batch %s: %d variation(s), tier %s, backend %s", req.BatchID, req.Variations, req.Tier, req.Backend)

	if o.local != nil && !req.DryRun {
		h, err := o.local.Health(ctx)
		if err != nil {
			log.Printf("❌ Batch %s blocked by health check: %v", req.BatchID, err)
			return nil, asRenderError(err, types.CodeVPSUnreachable, "health")
		}
		log.Printf("✅ Render server healthy (encoder %s, queue %d)", h.EncoderVersion, h.QueueLength)
	}
	report.step(0.1, "render server ready")

	scenes, err := o.planner.Plan(ctx, req.Brief)
	if err != nil {
		return nil, asRenderError(err, types.CodeInvalidBrief, "planning")
	}

	engine, ok := o.selector.Select(engines.SelectionRequest{
		TierCeiling:          req.Tier,
		Backend:              req.Backend,
		RequiredCapabilities: req.Capabilities,
		DurationSeconds:      req.Brief.DurationSeconds(),
	})
	if !ok {
		return nil, types.ValidationError(types.CodeNoEligibleEngine, "selection",
			"no engine matches tier %s, backend %s and %d second(s)", req.Tier, req.Backend, req.Brief.DurationSeconds())
	}
	backend := types.BackendFor(engine)
	if _, ok := o.adapterFor(backend); !ok && !req.DryRun {
		return nil, types.ValidationError(types.CodeNoAdapter, "selection", "engine %s needs %s, which is not configured", engine.ID, backend)
	}
	report.step(0.2, fmt.Sprintf("planned %d scenes on %s", len(scenes), engine.ID))
	log.Printf("🧩 Batch %s planned %d scenes, engine %s (%s)", req.BatchID, len(scenes), engine.ID, backend)

	sources := req.Sources
	if !req.DryRun {
		sources, err = o.prepareSources(ctx, req.Sources, backend)
		if err != nil {
			log.Printf("❌ Batch %s source upload failed: %v", req.BatchID, err)
			return nil, err
		}
	}

	plans := buildPlans(req, scenes, engine, backend, sources)
	if o.hooks.OnPlanned != nil {
		o.hooks.OnPlanned(req, plans)
	}

	results := make([]types.EngineResult, len(plans))
	if req.DryRun {
		for i, p := range plans {
			results[i] = planResult(p)
			if o.hooks.OnResult != nil {
				o.hooks.OnResult(results[i])
			}
			report.variationDone(results[i])
		}
	} else {
		var wg sync.WaitGroup
		semaphore := make(chan struct{}, o.maxConcurrent)
		for i, plan := range plans {
			wg.Add(1)
			go func(idx int, p types.ExecutionPlan) {
				defer wg.Done()

				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				results[idx] = o.Dispatch(ctx, p)
				report.variationDone(results[idx])
			}(i, plan)
		}
		wg.Wait()
	}

	out := &BatchResult{
		BatchID:       req.BatchID,
		Engine:        engine,
		Backend:       backend,
		Scenes:        scenes,
		Plans:         plans,
		Results:       results,
		EstimatedCost: engine.EstimateCost(float64(req.Brief.DurationMs)/1000, req.Variations),
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}
	for _, r := range results {
		if r.Succeeded() {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	log.Printf("🎉 Batch %s finished: %d succeeded, %d failed", req.BatchID, out.Succeeded, out.Failed)
	return out, nil
}

// Dispatch renders one plan. A cloud plan refused with PROVIDER_BLOCKED is
// retried once on the local render server when one is configured; no other
// failure is retried here.
func (o *Orchestrator) Dispatch(ctx context.Context, plan types.ExecutionPlan) types.EngineResult {
	result := o.dispatch(ctx, plan)
	if o.hooks.OnResult != nil {
		o.hooks.OnResult(result)
	}
	return result
}

func (o *Orchestrator) dispatch(ctx context.Context, plan types.ExecutionPlan) types.EngineResult {
	adapter, ok := o.adapterFor(plan.Backend)
	if !ok {
		return types.FailedResult(plan, types.ValidationError(types.CodeNoAdapter, "dispatch", "no adapter for %s", plan.Backend))
	}

	result := adapter.Render(ctx, plan, o.hooks.OnStatus)
	if result.Succeeded() || result.Error == nil || result.Error.Code != types.CodeProviderBlocked {
		return result
	}
	if plan.Backend.Kind != types.BackendCloudAPI || o.local == nil {
		return result
	}

	log.Printf("⚠️ %s blocked plan %s, falling back to local server", plan.Backend, plan.PlanID)
	logs := append([]string{}, result.Logs...)
	logs = append(logs, fmt.Sprintf("%s blocked: %s; retrying on local server", plan.Backend, result.Error.Message))

	spec, ok := o.fallbackEngine(plan)
	if !ok {
		return types.FailedResult(plan, types.ValidationError(types.CodeNoEligibleEngine, "fallback",
			"no local engine can render plan %s after %s blocked it", plan.PlanID, plan.Backend), logs...)
	}
	fallback := plan
	fallback.Backend = types.LocalServer()
	fallback.EngineID = spec.ID

	// Cloud plans carry the caller's path; the render server needs its own copy.
	if isLocalFile(plan.SourcePath) {
		log.Printf("📤 Uploading source %s for fallback", plan.SourcePath)
		remote, err := o.local.Upload(ctx, plan.SourcePath)
		if err != nil {
			return types.FailedResult(plan, asRenderError(err, types.CodeUploadFailed, "upload"), logs...)
		}
		fallback.SourcePath = remote
	}

	second := o.local.Render(ctx, fallback, o.hooks.OnStatus)
	second.Logs = append(logs, second.Logs...)
	return second
}

func (o *Orchestrator) fallbackEngine(plan types.ExecutionPlan) (types.EngineSpec, bool) {
	return o.selector.Select(engines.SelectionRequest{
		TierCeiling:     types.TierAIChooses,
		Backend:         types.LocationLocalServer,
		DurationSeconds: int((plan.Scenes.TotalMs() + 999) / 1000),
	})
}

// prepareSources uploads local files once each when the local render server
// is the backend, returning the source list rewritten to server paths.
func (o *Orchestrator) prepareSources(ctx context.Context, sources []string, backend types.Backend) ([]string, error) {
	if o.local == nil || backend.Kind != types.BackendLocalServer {
		return sources, nil
	}
	uploaded := make(map[string]string)
	out := make([]string, len(sources))
	for i, src := range sources {
		if remote, ok := uploaded[src]; ok {
			out[i] = remote
			continue
		}
		if !isLocalFile(src) {
			out[i] = src
			continue
		}
		log.Printf("📤 Uploading source %s", src)
		remote, err := o.local.Upload(ctx, src)
		if err != nil {
			return nil, asRenderError(err, types.CodeUploadFailed, "upload")
		}
		uploaded[src] = remote
		out[i] = remote
	}
	return out, nil
}

func buildPlans(req BatchRequest, base types.SceneList, engine types.EngineSpec, backend types.Backend, sources []string) []types.ExecutionPlan {
	plans := make([]types.ExecutionPlan, req.Variations)
	for i := range plans {
		aspect := req.AspectRatios[i%len(req.AspectRatios)]
		plans[i] = types.ExecutionPlan{
			PlanID:      uuid.NewString(),
			BatchID:     req.BatchID,
			Variation:   i,
			Scenes:      planner.Vary(base, i, req.Seed),
			AspectRatio: aspect,
			EngineID:    engine.ID,
			Backend:     backend,
			SourcePath:  sources[i%len(sources)],
			OutputName:  outputName(req.BatchID, i, aspect),
		}
	}
	return plans
}

func outputName(batchID string, variation int, aspect string) string {
	short := batchID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_v%02d_%s.mp4", short, variation+1, strings.ReplaceAll(aspect, ":", "x"))
}

func planResult(p types.ExecutionPlan) types.EngineResult {
	return types.EngineResult{
		PlanID:     p.PlanID,
		Variation:  p.Variation,
		EngineID:   p.EngineID,
		Backend:    p.Backend,
		Status:     types.ResultSuccess,
		OutputType: types.OutputPlan,
		Logs:       []string{"dry run: plan not dispatched"},
	}
}

// asRenderError keeps structured errors as they are and wraps anything else.
func asRenderError(err error, code, stage string) *types.RenderError {
	var re *types.RenderError
	if errors.As(err, &re) {
		return re
	}
	return types.InfrastructureError(code, stage, "%v", err)
}

type progressReporter struct {
	mu    sync.Mutex
	fn    ProgressFunc
	last  float64
	total int
	done  int
}

func (r *progressReporter) step(fraction float64, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(fraction, msg)
}

func (r *progressReporter) variationDone(res types.EngineResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	msg := fmt.Sprintf("variation %d/%d %s", r.done, r.total, res.Status)
	fraction := 0.2 + 0.8*float64(r.done)/float64(r.total)
	if r.done >= r.total {
		fraction = 1
	}
	r.emit(fraction, msg)
}

func (r *progressReporter) emit(fraction float64, msg string) {
	if r.fn == nil || fraction <= r.last {
		return
	}
	r.last = fraction
	r.fn(fraction, msg)
}
