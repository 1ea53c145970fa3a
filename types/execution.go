package types

import "fmt"

// BackendKind is the tag of the Backend union.
type BackendKind int

const (
	BackendLocalServer BackendKind = iota
	BackendCloudAPI
)

// Backend is the execution target of a plan: the local render server, or a
// cloud provider identified by Provider.
type Backend struct {
	Kind     BackendKind `json:"kind"`
	Provider ProviderID  `json:"provider,omitempty"`
}

// LocalServer returns the local render server backend.
func LocalServer() Backend {
	return Backend{Kind: BackendLocalServer}
}

// CloudAPI returns the backend for a cloud provider.
func CloudAPI(p ProviderID) Backend {
	return Backend{Kind: BackendCloudAPI, Provider: p}
}

// BackendFor derives the backend an engine runs on.
func BackendFor(e EngineSpec) Backend {
	if e.Location == LocationCloudAPI {
		return CloudAPI(e.Provider)
	}
	return LocalServer()
}

func (b Backend) String() string {
	if b.Kind == BackendCloudAPI {
		return "cloud-api:" + string(b.Provider)
	}
	return string(LocationLocalServer)
}

// ExecutionPlan is everything needed to render one variation. It is built
// once and dispatched once.
type ExecutionPlan struct {
	PlanID      string    `json:"plan_id"`
	BatchID     string    `json:"batch_id"`
	Variation   int       `json:"variation"`
	Scenes      SceneList `json:"scenes"`
	AspectRatio string    `json:"aspect_ratio"`
	EngineID    string    `json:"engine_id"`
	Backend     Backend   `json:"backend"`
	SourcePath  string    `json:"source_path"`
	OutputName  string    `json:"output_name"`
	Attempt     int       `json:"attempt"`
}

// ResultStatus is the terminal outcome of one dispatch.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

// OutputType describes what a successful result carries.
type OutputType string

const (
	OutputVideo     OutputType = "video"
	OutputPlan      OutputType = "plan"
	OutputJobHandle OutputType = "job-handle"
)

// ErrorClass groups error codes by how callers must react to them.
type ErrorClass string

const (
	ClassValidation     ErrorClass = "VALIDATION"
	ClassInfrastructure ErrorClass = "INFRASTRUCTURE"
	ClassExecution      ErrorClass = "EXECUTION"
	ClassTimeout        ErrorClass = "TIMEOUT"
)

// Error codes surfaced to callers.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidBrief     = "INVALID_BRIEF"
	CodeNoSourceAsset    = "NO_SOURCE_ASSET"
	CodeNoEligibleEngine = "NO_ELIGIBLE_ENGINE"
	CodeNoAdapter        = "NO_ADAPTER"
	CodeVPSUnreachable   = "VPS_UNREACHABLE"
	CodeFFmpegUnavail    = "FFMPEG_UNAVAILABLE"
	CodeUploadFailed     = "UPLOAD_FAILED"
	CodeInvalidResponse  = "INVALID_RESPONSE"
	CodeRenderFailed     = "RENDER_FAILED"
	CodeRenderTimeout    = "RENDER_TIMEOUT"
	CodeProviderBlocked  = "PROVIDER_BLOCKED"
	CodeProviderError    = "PROVIDER_ERROR"
)

// RenderError is the structured error every backend boundary produces.
type RenderError struct {
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Stage     string     `json:"stage,omitempty"`
	Retryable bool       `json:"retryable"`
	Class     ErrorClass `json:"class"`
}

func (e *RenderError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s] at %s: %s", e.Class, e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Class, e.Code, e.Message)
}

// ValidationError builds a non-retryable input error.
func ValidationError(code, stage, format string, args ...any) *RenderError {
	return &RenderError{Code: code, Stage: stage, Class: ClassValidation, Message: fmt.Sprintf(format, args...)}
}

// InfrastructureError builds a fail-fast infrastructure error. It is only
// retried through an explicit user action.
func InfrastructureError(code, stage, format string, args ...any) *RenderError {
	return &RenderError{Code: code, Stage: stage, Class: ClassInfrastructure, Message: fmt.Sprintf(format, args...)}
}

// ExecutionError builds a per-variation render failure.
func ExecutionError(code, stage string, retryable bool, format string, args ...any) *RenderError {
	return &RenderError{Code: code, Stage: stage, Class: ClassExecution, Retryable: retryable, Message: fmt.Sprintf(format, args...)}
}

// TimeoutError builds a transient timeout failure.
func TimeoutError(stage, format string, args ...any) *RenderError {
	return &RenderError{Code: CodeRenderTimeout, Stage: stage, Class: ClassTimeout, Retryable: true, Message: fmt.Sprintf(format, args...)}
}

// EngineResult is the normalized outcome of rendering one plan.
type EngineResult struct {
	PlanID     string       `json:"plan_id"`
	Variation  int          `json:"variation"`
	EngineID   string       `json:"engine_id"`
	Backend    Backend      `json:"backend"`
	Status     ResultStatus `json:"status"`
	OutputType OutputType   `json:"output_type,omitempty"`
	VideoURL   string       `json:"video_url,omitempty"`
	JobID      string       `json:"job_id,omitempty"`
	Error      *RenderError `json:"error,omitempty"`
	Logs       []string     `json:"logs"`
}

// Succeeded reports whether the result carries usable output.
func (r EngineResult) Succeeded() bool {
	return r.Status == ResultSuccess
}

// FailedResult builds a failed result for plan.
func FailedResult(plan ExecutionPlan, err *RenderError, logs ...string) EngineResult {
	return EngineResult{
		PlanID:    plan.PlanID,
		Variation: plan.Variation,
		EngineID:  plan.EngineID,
		Backend:   plan.Backend,
		Status:    ResultFailed,
		Error:     err,
		Logs:      append([]string{}, logs...),
	}
}
