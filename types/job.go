package types

import "time"

// PipelineStage is one step of a video's rendering lifecycle.
type PipelineStage string

const (
	StageQueued       PipelineStage = "queued"
	StageAnalyzing    PipelineStage = "analyzing"
	StageRewriting    PipelineStage = "rewriting"
	StageVoice        PipelineStage = "voice"
	StageAssembling   PipelineStage = "assembling"
	StageRendering    PipelineStage = "rendering"
	StageSubtitleBurn PipelineStage = "subtitle-burn"
	StageUpload       PipelineStage = "upload"
	StageValidate     PipelineStage = "validate"
	StageCompleted    PipelineStage = "completed"
	StageFailed       PipelineStage = "failed"
)

// Terminal reports whether no further status events may change the stage.
func (s PipelineStage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// VideoJobStatus is the tracked state of one rendered video.
type VideoJobStatus struct {
	ID             string        `json:"id"`
	RunID          string        `json:"run_id"`
	Variation      int           `json:"variation"`
	Stage          PipelineStage `json:"stage"`
	StageWeight    int           `json:"stage_weight"`
	StartedAt      time.Time     `json:"started_at"`
	ElapsedSeconds int           `json:"elapsed_seconds"`
	RetryCount     int           `json:"retry_count"`
	ErrorCode      string        `json:"error_code,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	VideoURL       string        `json:"video_url,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// PipelineProgress is derived from the full set of job statuses of a run.
type PipelineProgress struct {
	RunID              string `json:"run_id"`
	TotalJobs          int    `json:"total_jobs"`
	CompletedJobs      int    `json:"completed_jobs"`
	FailedJobs         int    `json:"failed_jobs"`
	ProcessingJobs     int    `json:"processing_jobs"`
	OverallProgressPct int    `json:"overall_progress_pct"`
	IsComplete         bool   `json:"is_complete"`
	HasErrors          bool   `json:"has_errors"`
}

// StatusEvent is a raw job record as delivered by the change feed or read
// back by the poller. Stage names are backend specific.
type StatusEvent struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Status       string    `json:"status"`
	StageName    string    `json:"stage_name,omitempty"`
	Progress     int       `json:"progress"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	Attempt      int       `json:"attempt"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	VideoURL     string    `json:"video_url,omitempty"`
}
