package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"reelforge/config"
	"reelforge/types"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrJobNotFailed = errors.New("only failed jobs can be retried")
	ErrPaused       = errors.New("run is paused")
	ErrNoDispatcher = errors.New("no dispatcher configured")
)

// Callbacks receive tracker notifications. They run after the tracker has
// released its lock, in the order the changes happened.
type Callbacks struct {
	OnProgress   func(types.PipelineProgress)
	OnComplete   func(types.PipelineProgress)
	OnError      func(types.VideoJobStatus)
	OnVideoReady func(types.VideoJobStatus)
}

// Dispatcher re-runs the render behind a job for a retry attempt.
type Dispatcher interface {
	Redispatch(ctx context.Context, jobID string, attempt int) (types.EngineResult, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDispatcher enables RetryJob and RetryAllFailed.
func WithDispatcher(d Dispatcher) Option {
	return func(t *Tracker) { t.dispatcher = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker follows the jobs of one run and derives their overall progress.
// It holds job identifiers only; everything else arrives as status events.
type Tracker struct {
	mu         sync.Mutex
	runID      string
	jobs       map[string]*types.VideoJobStatus
	order      []string
	callbacks  Callbacks
	dispatcher Dispatcher
	now        func() time.Time
	paused     bool
	progress   types.PipelineProgress
}

// New creates a tracker for runID.
func New(runID string, callbacks Callbacks, opts ...Option) *Tracker {
	t := &Tracker{
		runID:     runID,
		jobs:      make(map[string]*types.VideoJobStatus),
		callbacks: callbacks,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.progress = types.PipelineProgress{RunID: runID}
	return t
}

// RunID returns the run the tracker follows.
func (t *Tracker) RunID() string {
	return t.runID
}

// Observe registers a job in the queued stage. Observing a known job is a
// no-op.
func (t *Tracker) Observe(jobID string, variation int) {
	t.mu.Lock()
	if _, ok := t.jobs[jobID]; ok {
		t.mu.Unlock()
		return
	}
	now := t.now()
	t.jobs[jobID] = &types.VideoJobStatus{
		ID:        jobID,
		RunID:     t.runID,
		Variation: variation,
		Stage:     types.StageQueued,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.order = append(t.order, jobID)
	notes := t.recomputeLocked()
	t.mu.Unlock()
	notes.fire()
}

// ApplyStatusEvent folds a raw job record into the job's state. It is the
// single entry point for pushed and polled updates and reports whether the
// event changed anything. Events for unknown jobs or stages, events from an
// older attempt, backwards non-failure moves and anything aimed at a
// terminal job are ignored.
func (t *Tracker) ApplyStatusEvent(ev types.StatusEvent) bool {
	t.mu.Lock()
	notes, applied := t.applyLocked(ev)
	t.mu.Unlock()
	notes.fire()
	return applied
}

// ApplyResult records a dispatch outcome for the given attempt.
func (t *Tracker) ApplyResult(res types.EngineResult, attempt int) bool {
	return t.ApplyStatusEvent(resultEvent(res, t.runID, attempt))
}

func (t *Tracker) applyLocked(ev types.StatusEvent) (notifications, bool) {
	job, ok := t.jobs[ev.ID]
	if !ok || ev.Attempt < job.RetryCount || job.Stage.Terminal() {
		return nil, false
	}
	stage, ok := eventStage(ev)
	if !ok {
		return nil, false
	}
	if stage != types.StageFailed && stageIndex(stage) < stageIndex(job.Stage) {
		return nil, false
	}

	now := t.now()
	job.Stage = stage
	job.StageWeight = StageWeight(stage)
	job.UpdatedAt = now
	if !ev.StartedAt.IsZero() && ev.StartedAt.Before(job.StartedAt) {
		job.StartedAt = ev.StartedAt
	}

	var notes notifications
	switch stage {
	case types.StageFailed:
		job.ErrorCode = ev.ErrorCode
		if job.ErrorCode == "" {
			job.ErrorCode = types.CodeRenderFailed
		}
		job.ErrorMessage = ev.ErrorMessage
		job.ElapsedSeconds = elapsed(job.StartedAt, now)
		if cb := t.callbacks.OnError; cb != nil {
			snapshot := *job
			notes = append(notes, func() { cb(snapshot) })
		}
	case types.StageCompleted:
		job.VideoURL = ev.VideoURL
		job.ElapsedSeconds = elapsed(job.StartedAt, now)
		// Dry-run plans complete without a video.
		if cb := t.callbacks.OnVideoReady; cb != nil && job.VideoURL != "" {
			snapshot := *job
			notes = append(notes, func() { cb(snapshot) })
		}
	}
	return append(notes, t.recomputeLocked()...), true
}

// Tick refreshes ElapsedSeconds of every non-terminal job.
func (t *Tracker) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, job := range t.jobs {
		if !job.Stage.Terminal() {
			job.ElapsedSeconds = elapsed(job.StartedAt, now)
		}
	}
}

// RetryJob resets a failed job to queued, bumps its retry count and
// dispatches it again. The outcome of the new attempt is applied before
// RetryJob returns. Other jobs are not touched.
func (t *Tracker) RetryJob(ctx context.Context, jobID string) error {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	switch {
	case !ok:
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	case job.Stage != types.StageFailed:
		t.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrJobNotFailed, jobID, job.Stage)
	case t.paused:
		t.mu.Unlock()
		return ErrPaused
	case t.dispatcher == nil:
		t.mu.Unlock()
		return ErrNoDispatcher
	}

	now := t.now()
	job.Stage = types.StageQueued
	job.StageWeight = 0
	job.RetryCount++
	job.ErrorCode = ""
	job.ErrorMessage = ""
	job.VideoURL = ""
	job.StartedAt = now
	job.UpdatedAt = now
	job.ElapsedSeconds = 0
	attempt := job.RetryCount
	notes := t.recomputeLocked()
	t.mu.Unlock()
	notes.fire()

	res, err := t.dispatcher.Redispatch(ctx, jobID, attempt)
	if err != nil {
		t.ApplyStatusEvent(types.StatusEvent{
			ID:           jobID,
			ProjectID:    t.runID,
			Status:       string(types.StageFailed),
			Attempt:      attempt,
			ErrorCode:    types.CodeRenderFailed,
			ErrorMessage: err.Error(),
		})
		return fmt.Errorf("retry %s: %w", jobID, err)
	}
	t.ApplyResult(res, attempt)
	return nil
}

// RetryAllFailed retries every failed job one after another and returns how
// many were dispatched. It stops early when the run is paused.
func (t *Tracker) RetryAllFailed(ctx context.Context) (int, error) {
	var failed []string
	t.mu.Lock()
	for _, id := range t.order {
		if t.jobs[id].Stage == types.StageFailed {
			failed = append(failed, id)
		}
	}
	t.mu.Unlock()

	var errs []error
	retried := 0
	for _, id := range failed {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := t.RetryJob(ctx, id)
		if errors.Is(err, ErrPaused) || errors.Is(err, ErrNoDispatcher) {
			errs = append(errs, err)
			break
		}
		if errors.Is(err, ErrJobNotFailed) {
			continue
		}
		retried++
		if err != nil {
			errs = append(errs, err)
		}
	}
	return retried, errors.Join(errs...)
}

// Pause stops new retries from being dispatched. Work already in flight
// keeps running.
func (t *Tracker) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// Resume allows retries again.
func (t *Tracker) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

// Paused reports whether the run is paused.
func (t *Tracker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Progress returns the last computed progress.
func (t *Tracker) Progress() types.PipelineProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Jobs returns a copy of every job in the order they were observed.
func (t *Tracker) Jobs() []types.VideoJobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.VideoJobStatus, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.jobs[id])
	}
	return out
}

// Job returns a copy of one job.
func (t *Tracker) Job(jobID string) (types.VideoJobStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return types.VideoJobStatus{}, false
	}
	return *job, true
}

// Pending returns the ids of jobs that have not reached a terminal stage.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, id := range t.order {
		if !t.jobs[id].Stage.Terminal() {
			out = append(out, id)
		}
	}
	return out
}

// recomputeLocked derives progress from every job and returns the
// notifications the change implies.
func (t *Tracker) recomputeLocked() notifications {
	prev := t.progress
	next := computeProgress(t.runID, t.jobs)
	t.progress = next

	var notes notifications
	if cb := t.callbacks.OnProgress; cb != nil {
		notes = append(notes, func() { cb(next) })
	}
	if next.IsComplete && !prev.IsComplete {
		if cb := t.callbacks.OnComplete; cb != nil {
			notes = append(notes, func() { cb(next) })
		}
	}
	return notes
}

func computeProgress(runID string, jobs map[string]*types.VideoJobStatus) types.PipelineProgress {
	p := types.PipelineProgress{RunID: runID, TotalJobs: len(jobs)}
	advanced := 0
	for _, job := range jobs {
		switch job.Stage {
		case types.StageCompleted:
			p.CompletedJobs++
			advanced++
		case types.StageFailed:
			p.FailedJobs++
		case types.StageQueued:
		case types.StageValidate:
			p.ProcessingJobs++
			advanced++
		default:
			p.ProcessingJobs++
		}
	}
	if p.TotalJobs > 0 {
		pct := int(math.Round(100 * float64(advanced) / float64(p.TotalJobs)))
		if p.CompletedJobs < p.TotalJobs && pct > config.ProgressCap {
			pct = config.ProgressCap
		}
		p.OverallProgressPct = pct
	}
	p.IsComplete = p.TotalJobs > 0 && p.CompletedJobs+p.FailedJobs == p.TotalJobs
	p.HasErrors = p.FailedJobs > 0
	return p
}

func resultEvent(res types.EngineResult, runID string, attempt int) types.StatusEvent {
	ev := types.StatusEvent{
		ID:        res.PlanID,
		ProjectID: runID,
		Attempt:   attempt,
		UpdatedAt: time.Now(),
	}
	if res.Succeeded() {
		ev.Status = string(types.StageCompleted)
		ev.VideoURL = res.VideoURL
		return ev
	}
	ev.Status = string(types.StageFailed)
	if res.Error != nil {
		ev.ErrorCode = res.Error.Code
		ev.ErrorMessage = res.Error.Message
	}
	return ev
}

func elapsed(start, now time.Time) int {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return int(now.Sub(start).Seconds())
}

type notifications []func()

func (n notifications) fire() {
	for _, fn := range n {
		fn()
	}
}
