package renderd

import (
	"sync"
	"time"

	"reelforge/types"
)

// Job is one render request and its current state.
type Job struct {
	ID        string
	Request   types.ExecuteRequest
	Status    string
	Stage     string
	Progress  int
	Output    string
	VideoURL  string
	Error     string
	ErrorCode string
	Logs      []string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool {
	return j.Status == types.JobCompleted || j.Status == types.JobFailed
}

// Response is the GET /job/:id body.
func (j *Job) Response() types.JobResponse {
	return types.JobResponse{
		ID:        j.ID,
		Status:    j.Status,
		Stage:     j.Stage,
		Progress:  j.Progress,
		Output:    j.Output,
		VideoURL:  j.VideoURL,
		Error:     j.Error,
		ErrorCode: j.ErrorCode,
		Logs:      append([]string{}, j.Logs...),
	}
}

// Event is the job record written to the store and the change feed.
func (j *Job) Event() types.StatusEvent {
	return types.StatusEvent{
		ID:           j.ID,
		ProjectID:    j.Request.Config.RunID,
		Status:       j.Status,
		StageName:    j.Stage,
		Progress:     j.Progress,
		StartedAt:    j.StartedAt,
		UpdatedAt:    j.UpdatedAt,
		Attempt:      j.Request.Config.Attempt,
		ErrorCode:    j.ErrorCode,
		ErrorMessage: j.Error,
		VideoURL:     firstNonEmpty(j.VideoURL, j.Output),
	}
}

// stageProgress is the progress reported when the encoder enters a stage.
var stageProgress = map[string]int{
	"queued":     0,
	"analyzing":  10,
	"assembling": 30,
	"rendering":  50,
	"upload":     90,
	"completed":  100,
}

// jobTable holds every job of this process.
type jobTable struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobTable() *jobTable {
	return &jobTable{jobs: make(map[string]*Job)}
}

// put stores job unless a job with the same id is still running.
func (t *jobTable) put(job *Job) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.jobs[job.ID]; ok && !old.Terminal() {
		return false
	}
	t.jobs[job.ID] = job
	return true
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// get returns a snapshot of a job.
func (t *jobTable) get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	snapshot := *job
	snapshot.Logs = append([]string{}, job.Logs...)
	return snapshot, true
}

// update applies fn under the lock and returns a snapshot.
func (t *jobTable) update(id string, fn func(*Job)) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	fn(job)
	job.UpdatedAt = time.Now()
	snapshot := *job
	snapshot.Logs = append([]string{}, job.Logs...)
	return snapshot, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
