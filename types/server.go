package types

// Encoder states reported by the render server.
const (
	EncoderReady       = "ready"
	EncoderUnavailable = "unavailable"
)

// Render server job states.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// HealthResponse is the body of GET /health on the render server.
type HealthResponse struct {
	OK             bool   `json:"ok"`
	EncoderStatus  string `json:"encoderStatus"`
	EncoderPath    string `json:"encoderPath,omitempty"`
	EncoderVersion string `json:"encoderVersion,omitempty"`
	QueueLength    int    `json:"queueLength"`
}

// RenderConfig carries per-job encoding options.
type RenderConfig struct {
	AspectRatio string `json:"aspectRatio"`
	EngineID    string `json:"engineId,omitempty"`
	Async       bool   `json:"async"`
	RunID       string `json:"runId,omitempty"`
	Variation   int    `json:"variation"`
	Attempt     int    `json:"attempt"`
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	SourcePath string       `json:"sourcePath"`
	OutputName string       `json:"outputName"`
	Config     RenderConfig `json:"config"`
	Scenes     SceneList    `json:"scenes"`
	JobID      string       `json:"jobId,omitempty"`
}

// ExecuteResponse is returned by POST /execute. Synchronous renders fill
// Success and OutputPath; asynchronous ones return a queued job handle.
type ExecuteResponse struct {
	Success    bool     `json:"success"`
	OutputPath string   `json:"outputPath,omitempty"`
	VideoURL   string   `json:"videoUrl,omitempty"`
	Error      string   `json:"error,omitempty"`
	Logs       []string `json:"logs,omitempty"`
	JobID      string   `json:"jobId,omitempty"`
	Status     string   `json:"status,omitempty"`
	StatusURL  string   `json:"statusUrl,omitempty"`
}

// JobResponse is the body of GET /job/:jobId.
type JobResponse struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	Stage     string   `json:"stage,omitempty"`
	Progress  int      `json:"progress"`
	Output    string   `json:"output,omitempty"`
	VideoURL  string   `json:"videoUrl,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorCode string   `json:"errorCode,omitempty"`
	Logs      []string `json:"logs,omitempty"`
}

// UploadResponse is the body of POST /upload.
type UploadResponse struct {
	OK       bool   `json:"ok"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Error    string `json:"error,omitempty"`
}
