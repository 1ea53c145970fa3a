package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"reelforge/config"
	"reelforge/executor"
	"reelforge/shared/kafka"
	"reelforge/tracker"
	"reelforge/types"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunExists   = errors.New("run already exists")
)

// Executor runs batches and single plans. *executor.Orchestrator satisfies it.
type Executor interface {
	Run(ctx context.Context, req executor.BatchRequest, progress executor.ProgressFunc) (*executor.BatchResult, error)
	Dispatch(ctx context.Context, plan types.ExecutionPlan) types.EngineResult
}

// JobSource reads back the stored job records of a run.
type JobSource interface {
	ListRun(ctx context.Context, runID string) ([]types.StatusEvent, error)
}

// Feed reports whether pushed status updates are currently flowing.
type Feed interface {
	Connected() bool
}

// Publisher distributes a finished video and returns where it was published.
type Publisher interface {
	Publish(ctx context.Context, videoURL, title, description string) (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithJobSource enables the poll fallback.
func WithJobSource(s JobSource) Option {
	return func(m *Manager) { m.source = s }
}

// WithFeed lets the poll fallback stand down while the change feed is live.
func WithFeed(f Feed) Option {
	return func(m *Manager) { m.feed = f }
}

// WithPublisher publishes every ready video.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithMaxLogs bounds the log ring buffer.
func WithMaxLogs(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxLogs = n
		}
	}
}

// RunSummary is the list view of a run.
type RunSummary struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title,omitempty"`
	State     types.RunState         `json:"state"`
	Fraction  float64                `json:"fraction"`
	Message   string                 `json:"message,omitempty"`
	Progress  types.PipelineProgress `json:"progress"`
	Paused    bool                   `json:"paused"`
	Engine    string                 `json:"engine,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Error     *types.RenderError     `json:"error,omitempty"`
}

// RunDetail is a run with its jobs, batch result and log lines.
type RunDetail struct {
	RunSummary
	Jobs   []types.VideoJobStatus `json:"jobs"`
	Result *executor.BatchResult  `json:"result,omitempty"`
	Logs   []types.LogEntry       `json:"logs"`
}

type run struct {
	id        string
	request   executor.BatchRequest
	tracker   *tracker.Tracker
	state     types.RunState
	fraction  float64
	message   string
	engine    string
	result    *executor.BatchResult
	err       *types.RenderError
	createdAt time.Time
	done      chan struct{}
}

// Manager holds every run of the process with thread-safe access. It routes
// status events to the run they belong to, keeps the plan of every job for
// retries and falls back to polling stored job records while the change feed
// is down.
type Manager struct {
	mu sync.RWMutex

	exec  Executor
	runs  map[string]*run
	order []string
	plans map[string]types.ExecutionPlan

	// Logs (ring buffer)
	logs    []types.LogEntry
	maxLogs int

	source    JobSource
	feed      Feed
	publisher Publisher

	baseCtx context.Context
	cron    *cron.Cron
}

// NewManager creates a new state manager
func NewManager(exec Executor, opts ...Option) *Manager {
	m := &Manager{
		exec:    exec,
		runs:    make(map[string]*run),
		plans:   make(map[string]types.ExecutionPlan),
		logs:    make([]types.LogEntry, 0),
		maxLogs: config.LogBufferSize,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hooks returns the orchestrator hooks that feed this manager.
func (m *Manager) Hooks() executor.Hooks {
	return executor.Hooks{
		OnPlanned: m.onPlanned,
		OnStatus:  func(ev types.StatusEvent) { m.ApplyStatusEvent(ev) },
		OnResult:  m.onResult,
	}
}

// Start schedules the elapsed tick and the poll fallback. Background runs
// and retries use ctx.
func (m *Manager) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(config.ElapsedTickSchedule, func() { m.Tick(time.Now()) }); err != nil {
		return fmt.Errorf("failed to add tick job: %w", err)
	}
	if _, err := c.AddFunc(config.PollFallbackSchedule, func() { m.PollOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to add poll job: %w", err)
	}

	m.mu.Lock()
	m.baseCtx = ctx
	m.cron = c
	m.mu.Unlock()

	c.Start()
	log.Printf("⏱️  State manager scheduled (tick %s, poll fallback %s)", config.ElapsedTickSchedule, config.PollFallbackSchedule)
	return nil
}

// Stop stops the scheduler and waits for running jobs to return.
func (m *Manager) Stop() {
	m.mu.RLock()
	c := m.cron
	m.mu.RUnlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Submit validates req and runs it in the background. It returns the run id
// immediately; a validation error means no run was created.
func (m *Manager) Submit(req executor.BatchRequest) (string, error) {
	r, err := m.register(req)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	ctx := m.baseCtx
	m.mu.RUnlock()
	go m.execute(ctx, r)
	return r.id, nil
}

// Execute runs req and waits for the batch to finish.
func (m *Manager) Execute(ctx context.Context, req executor.BatchRequest) (*executor.BatchResult, error) {
	r, err := m.register(req)
	if err != nil {
		return nil, err
	}
	m.execute(ctx, r)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// Wait blocks until the batch of runID returns or ctx is done.
func (m *Manager) Wait(ctx context.Context, runID string) error {
	r, err := m.lookup(runID)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) register(req executor.BatchRequest) (*run, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}

	r := &run{
		id:        req.BatchID,
		request:   req,
		state:     types.RunPlanning,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
	runID := r.id
	r.tracker = tracker.New(runID, tracker.Callbacks{
		OnComplete: func(p types.PipelineProgress) {
			m.AddRunLog(runID, fmt.Sprintf("Run complete: %d of %d video(s) ready, %d failed", p.CompletedJobs, p.TotalJobs, p.FailedJobs))
		},
		OnError: func(job types.VideoJobStatus) {
			m.AddRunLog(runID, fmt.Sprintf("Variation %d failed [%s]: %s", job.Variation, job.ErrorCode, job.ErrorMessage))
		},
		OnVideoReady: func(job types.VideoJobStatus) {
			m.AddRunLog(runID, fmt.Sprintf("Variation %d ready: %s", job.Variation, job.VideoURL))
			m.publish(runID, job)
		},
	}, tracker.WithDispatcher(m))

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, r.id)
	}
	m.runs[r.id] = r
	m.order = append(m.order, r.id)
	return r, nil
}

func (m *Manager) execute(ctx context.Context, r *run) {
	m.AddRunLog(r.id, fmt.Sprintf("Batch submitted: %d variation(s)", r.request.Variations))

	res, err := m.exec.Run(ctx, r.request, func(fraction float64, msg string) {
		m.mu.Lock()
		r.fraction = fraction
		r.message = msg
		if fraction >= 0.2 && r.state == types.RunPlanning {
			r.state = types.RunDispatching
		}
		m.mu.Unlock()
	})

	m.mu.Lock()
	if err != nil {
		r.state = types.RunBlocked
		r.err = asRenderError(err)
		r.message = r.err.Message
	} else {
		r.state = types.RunFinished
		r.result = res
		r.engine = res.Engine.ID
	}
	m.mu.Unlock()
	close(r.done)

	if err != nil {
		m.AddRunLog(r.id, fmt.Sprintf("Batch blocked: %v", err))
		return
	}
	m.AddRunLog(r.id, fmt.Sprintf("Batch dispatched on %s: %d succeeded, %d failed", res.Engine.ID, res.Succeeded, res.Failed))
}

func (m *Manager) onPlanned(req executor.BatchRequest, plans []types.ExecutionPlan) {
	m.mu.Lock()
	for _, p := range plans {
		m.plans[p.PlanID] = p
	}
	r := m.runs[req.BatchID]
	m.mu.Unlock()

	if r == nil {
		log.Printf("⚠️  Plans for unknown run %s", req.BatchID)
		return
	}
	for _, p := range plans {
		r.tracker.Observe(p.PlanID, p.Variation)
	}
}

func (m *Manager) onResult(res types.EngineResult) {
	m.mu.RLock()
	plan, ok := m.plans[res.PlanID]
	var r *run
	if ok {
		r = m.runs[plan.BatchID]
	}
	m.mu.RUnlock()
	if r == nil {
		return
	}
	r.tracker.ApplyResult(res, plan.Attempt)
}

// ApplyStatusEvent routes a job record to its run by project id, or by the
// job's plan when the project id is missing.
func (m *Manager) ApplyStatusEvent(ev types.StatusEvent) bool {
	m.mu.RLock()
	r := m.runs[ev.ProjectID]
	if r == nil {
		if plan, ok := m.plans[ev.ID]; ok {
			r = m.runs[plan.BatchID]
		}
	}
	m.mu.RUnlock()
	if r == nil {
		return false
	}
	return r.tracker.ApplyStatusEvent(ev)
}

// StatusHandler consumes the job status change feed.
func (m *Manager) StatusHandler() *kafka.TypedMessageHandler[types.StatusEvent] {
	return &kafka.TypedMessageHandler[types.StatusEvent]{
		Validate: func(ev *types.StatusEvent) bool { return ev.ID != "" },
		Process: func(ctx context.Context, ev *types.StatusEvent) error {
			m.ApplyStatusEvent(*ev)
			return nil
		},
		AlwaysMark: true,
	}
}

// Redispatch renders the plan behind jobID again as the given attempt.
func (m *Manager) Redispatch(ctx context.Context, jobID string, attempt int) (types.EngineResult, error) {
	m.mu.Lock()
	plan, ok := m.plans[jobID]
	if ok {
		plan.Attempt = attempt
		m.plans[jobID] = plan
	}
	m.mu.Unlock()
	if !ok {
		return types.EngineResult{}, fmt.Errorf("%w: no plan for %s", tracker.ErrJobNotFound, jobID)
	}

	m.AddRunLog(plan.BatchID, fmt.Sprintf("Retrying variation %d (attempt %d)", plan.Variation, attempt))
	return m.exec.Dispatch(ctx, plan), nil
}

// Tick refreshes elapsed time on every run with unfinished jobs.
func (m *Manager) Tick(now time.Time) {
	for _, r := range m.snapshotRuns() {
		r.tracker.Tick(now)
	}
}

// PollOnce reads stored job records for runs with unfinished jobs and applies
// them. It does nothing while the change feed is connected. It returns how
// many records changed a job.
func (m *Manager) PollOnce(ctx context.Context) int {
	if m.source == nil || (m.feed != nil && m.feed.Connected()) {
		return 0
	}
	applied := 0
	for _, r := range m.snapshotRuns() {
		if len(r.tracker.Pending()) == 0 {
			continue
		}
		events, err := m.source.ListRun(ctx, r.id)
		if err != nil {
			log.Printf("⚠️  Poll for run %s failed: %v", r.id, err)
			continue
		}
		for _, ev := range events {
			if ev.ProjectID == "" {
				ev.ProjectID = r.id
			}
			if r.tracker.ApplyStatusEvent(ev) {
				applied++
			}
		}
	}
	return applied
}

// RetryJob validates that jobID can be retried and dispatches the retry in
// the background.
func (m *Manager) RetryJob(runID, jobID string) error {
	r, err := m.lookup(runID)
	if err != nil {
		return err
	}
	job, ok := r.tracker.Job(jobID)
	switch {
	case !ok:
		return fmt.Errorf("%w: %s", tracker.ErrJobNotFound, jobID)
	case job.Stage != types.StageFailed:
		return fmt.Errorf("%w: %s is %s", tracker.ErrJobNotFailed, jobID, job.Stage)
	case r.tracker.Paused():
		return tracker.ErrPaused
	}

	ctx := m.context()
	go func() {
		if err := r.tracker.RetryJob(ctx, jobID); err != nil {
			m.AddRunLog(runID, fmt.Sprintf("Retry of %s failed: %v", jobID, err))
		}
	}()
	return nil
}

// RetryFailed retries every failed job of a run one after another in the
// background and returns how many are queued for retry.
func (m *Manager) RetryFailed(runID string) (int, error) {
	r, err := m.lookup(runID)
	if err != nil {
		return 0, err
	}
	if r.tracker.Paused() {
		return 0, tracker.ErrPaused
	}
	failed := r.tracker.Progress().FailedJobs
	if failed == 0 {
		return 0, nil
	}

	ctx := m.context()
	go func() {
		n, err := r.tracker.RetryAllFailed(ctx)
		if err != nil {
			m.AddRunLog(runID, fmt.Sprintf("Retried %d job(s) with errors: %v", n, err))
			return
		}
		m.AddRunLog(runID, fmt.Sprintf("Retried %d job(s)", n))
	}()
	return failed, nil
}

// Pause blocks new retries of a run.
func (m *Manager) Pause(runID string) error {
	r, err := m.lookup(runID)
	if err != nil {
		return err
	}
	r.tracker.Pause()
	m.AddRunLog(runID, "Run paused")
	return nil
}

// Resume allows retries of a run again.
func (m *Manager) Resume(runID string) error {
	r, err := m.lookup(runID)
	if err != nil {
		return err
	}
	r.tracker.Resume()
	m.AddRunLog(runID, "Run resumed")
	return nil
}

// AddLog adds a log entry (thread-safe)
func (m *Manager) AddLog(message string) {
	m.AddRunLog("", message)
}

// AddRunLog adds a log entry attributed to a run.
func (m *Manager) AddRunLog(runID, message string) {
	if runID != "" {
		log.Printf("[%s] %s", runID, message)
	} else {
		log.Println(message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, types.LogEntry{
		Timestamp: time.Now(),
		RunID:     runID,
		Message:   message,
	})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

// Logs returns a copy of the log buffer.
func (m *Manager) Logs() []types.LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.LogEntry{}, m.logs...)
}

// Runs returns every run, newest first.
func (m *Manager) Runs() []RunSummary {
	runs := m.snapshotRuns()
	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, m.summary(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Run returns one run with its jobs.
func (m *Manager) Run(runID string) (RunDetail, error) {
	r, err := m.lookup(runID)
	if err != nil {
		return RunDetail{}, err
	}
	d := RunDetail{
		RunSummary: m.summary(r),
		Jobs:       r.tracker.Jobs(),
	}

	m.mu.RLock()
	d.Result = r.result
	for _, e := range m.logs {
		if e.RunID == runID {
			d.Logs = append(d.Logs, e)
		}
	}
	m.mu.RUnlock()
	return d, nil
}

func (m *Manager) summary(r *run) RunSummary {
	progress := r.tracker.Progress()
	paused := r.tracker.Paused()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return RunSummary{
		ID:        r.id,
		Title:     r.request.Brief.Title,
		State:     r.state,
		Fraction:  r.fraction,
		Message:   r.message,
		Progress:  progress,
		Paused:    paused,
		Engine:    r.engine,
		CreatedAt: r.createdAt,
		Error:     r.err,
	}
}

func (m *Manager) publish(runID string, job types.VideoJobStatus) {
	if m.publisher == nil || job.VideoURL == "" {
		return
	}
	r, err := m.lookup(runID)
	if err != nil {
		return
	}
	brief := r.request.Brief
	title := brief.Title
	if title == "" {
		title = brief.ID
	}
	title = fmt.Sprintf("%s #%d", title, job.Variation+1)

	ctx := m.context()
	go func() {
		id, err := m.publisher.Publish(ctx, job.VideoURL, title, brief.Script)
		if err != nil {
			m.AddRunLog(runID, fmt.Sprintf("Publishing variation %d failed: %v", job.Variation, err))
			return
		}
		m.AddRunLog(runID, fmt.Sprintf("Variation %d published: %s", job.Variation, id))
	}()
}

func (m *Manager) lookup(runID string) (*run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, nil
}

func (m *Manager) snapshotRuns() []*run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*run, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.runs[id])
	}
	return out
}

func (m *Manager) context() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseCtx
}

func asRenderError(err error) *types.RenderError {
	var re *types.RenderError
	if errors.As(err, &re) {
		return re
	}
	return types.InfrastructureError(types.CodeRenderFailed, "batch", "%v", err)
}
