package renderd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelforge/config"
	"reelforge/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RecordSink persists the latest record of every job.
type RecordSink interface {
	Save(ctx context.Context, ev types.StatusEvent) error
}

// EventPublisher publishes job records to the change feed.
type EventPublisher interface {
	PublishJSON(key string, v interface{}) error
}

// OutputStore keeps finished videos and hands out download links.
type OutputStore interface {
	PutFile(ctx context.Context, localPath, contentType string) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config wires a Server. Records, Events and Outputs are optional.
type Config struct {
	Encoder       Encoder
	Records       RecordSink
	Events        EventPublisher
	Outputs       OutputStore
	UploadDir     string
	OutputDir     string
	Workers       int
	QueueSize     int
	RenderTimeout time.Duration
}

// Server is the local render server: it accepts uploads, renders scene lists
// synchronously or through a bounded worker pool and reports job status.
type Server struct {
	encoder       Encoder
	records       RecordSink
	events        EventPublisher
	outputs       OutputStore
	uploadDir     string
	outputDir     string
	workers       int
	renderTimeout time.Duration
	jobs          *jobTable
	queue         chan string
}

// NewServer creates the upload and output directories and the job queue.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Encoder == nil {
		return nil, errors.New("encoder is required")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = config.UploadDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = config.OutputDir
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.RenderWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.RenderQueueSize
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = config.RenderTimeout
	}
	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return &Server{
		encoder:       cfg.Encoder,
		records:       cfg.Records,
		events:        cfg.Events,
		outputs:       cfg.Outputs,
		uploadDir:     cfg.UploadDir,
		outputDir:     cfg.OutputDir,
		workers:       cfg.Workers,
		renderTimeout: cfg.RenderTimeout,
		jobs:          newJobTable(),
		queue:         make(chan string, cfg.QueueSize),
	}, nil
}

// Router constructs a Gin engine with the render server routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the render server endpoints.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	r.POST("/upload", s.handleUpload)
	r.POST("/execute", s.handleExecute)
	r.GET("/job/:jobId", s.handleJob)
}

// Start launches the render workers. They stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-s.queue:
					log.Printf("[Worker %d] Rendering job %s", workerID, id)
					s.process(ctx, id)
				}
			}
		}(i)
	}
	log.Printf("🎞️  Render workers started (%d workers, queue %d)", s.workers, cap(s.queue))
}

// handleHealth reports whether the encoder can run.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.HealthTimeout)
	defer cancel()

	resp := types.HealthResponse{OK: true, EncoderStatus: types.EncoderReady, QueueLength: len(s.queue)}
	path, version, err := s.encoder.Version(ctx)
	resp.EncoderPath = path
	resp.EncoderVersion = version
	if err != nil {
		log.Printf("⚠️  Encoder unavailable: %v", err)
		resp.EncoderStatus = types.EncoderUnavailable
	}
	c.JSON(http.StatusOK, resp)
}

// handleUpload stores a multipart "file" under the upload directory.
func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.UploadResponse{Error: "multipart field \"file\" is required: " + err.Error()})
		return
	}

	name := uuid.NewString()[:8] + "_" + filepath.Base(fh.Filename)
	dst := filepath.Join(s.uploadDir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		c.JSON(http.StatusInternalServerError, types.UploadResponse{Error: "failed to store upload: " + err.Error()})
		return
	}

	log.Printf("📥 Stored upload %s (%.2f MB)", dst, float64(fh.Size)/(1024*1024))
	c.JSON(http.StatusOK, types.UploadResponse{OK: true, Path: dst, Filename: name, Size: fh.Size})
}

// handleExecute renders a scene list. Async requests are queued and return
// a job handle; sync requests block until the render finishes.
func (s *Server) handleExecute(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ExecuteResponse{Error: "invalid JSON payload: " + err.Error()})
		return
	}
	if err := s.validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ExecuteResponse{Error: err.Error()})
		return
	}

	now := time.Now()
	job := &Job{
		ID:        req.JobID,
		Request:   req,
		Status:    types.JobQueued,
		Stage:     "queued",
		StartedAt: now,
		UpdatedAt: now,
	}
	if !s.jobs.put(job) {
		c.JSON(http.StatusConflict, types.ExecuteResponse{JobID: job.ID, Error: fmt.Sprintf("job %s is already running", job.ID)})
		return
	}

	if req.Config.Async {
		select {
		case s.queue <- job.ID:
		default:
			s.jobs.remove(job.ID)
			c.JSON(http.StatusServiceUnavailable, types.ExecuteResponse{JobID: job.ID, Error: "render queue is full"})
			return
		}
		snap, _ := s.jobs.get(job.ID)
		s.emit(snap)
		c.JSON(http.StatusAccepted, types.ExecuteResponse{
			JobID:     job.ID,
			Status:    types.JobQueued,
			StatusURL: "/job/" + job.ID,
		})
		return
	}

	s.process(c.Request.Context(), job.ID)
	snap, _ := s.jobs.get(job.ID)
	if snap.Status != types.JobCompleted {
		c.JSON(http.StatusInternalServerError, types.ExecuteResponse{JobID: snap.ID, Error: snap.Error, Logs: snap.Logs})
		return
	}
	c.JSON(http.StatusOK, types.ExecuteResponse{
		Success:    true,
		JobID:      snap.ID,
		Status:     snap.Status,
		OutputPath: snap.Output,
		VideoURL:   snap.VideoURL,
		Logs:       snap.Logs,
	})
}

// handleJob returns the current state of a job.
func (s *Server) handleJob(c *gin.Context) {
	job, ok := s.jobs.get(c.Param("jobId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job.Response())
}

func (s *Server) validate(req *types.ExecuteRequest) error {
	if strings.TrimSpace(req.SourcePath) == "" {
		return errors.New("sourcePath is required")
	}
	if len(req.Scenes) == 0 {
		return errors.New("at least one scene is required")
	}
	if !req.Scenes.Contiguous() {
		return errors.New("scenes must be contiguous and start at zero")
	}
	if info, err := os.Stat(req.SourcePath); err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("source %s not found", req.SourcePath)
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if req.OutputName == "" {
		req.OutputName = req.JobID + ".mp4"
	}
	req.OutputName = filepath.Base(req.OutputName)
	if req.Config.AspectRatio == "" {
		req.Config.AspectRatio = config.DefaultAspectRatio
	}
	return nil
}

// process renders one job and records every transition.
func (s *Server) process(ctx context.Context, id string) {
	job, ok := s.jobs.get(id)
	if !ok {
		return
	}
	req := job.Request

	ctx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	defer cancel()

	outputPath := filepath.Join(s.outputDir, req.OutputName)
	logs, err := s.encoder.Encode(ctx, EncodeRequest{
		SourcePath:  req.SourcePath,
		OutputPath:  outputPath,
		AspectRatio: req.Config.AspectRatio,
		Scenes:      req.Scenes,
	}, func(stage string) { s.advance(id, stage) })
	if err != nil {
		code := types.CodeRenderFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = types.CodeRenderTimeout
		}
		s.fail(id, code, err.Error(), logs)
		return
	}

	videoURL := ""
	if s.outputs != nil {
		s.advance(id, "upload")
		key, err := s.outputs.PutFile(ctx, outputPath, "video/mp4")
		if err == nil {
			videoURL, err = s.outputs.PresignGet(ctx, key, config.PresignExpiry)
		}
		if err != nil {
			s.fail(id, types.CodeUploadFailed, err.Error(), logs)
			return
		}
	}

	snap, _ := s.jobs.update(id, func(j *Job) {
		j.Status = types.JobCompleted
		j.Stage = "completed"
		j.Progress = 100
		j.Output = outputPath
		j.VideoURL = videoURL
		j.Logs = append(j.Logs, logs...)
	})
	log.Printf("✅ Job %s rendered to %s", id, outputPath)
	s.emit(snap)
}

func (s *Server) advance(id, stage string) {
	snap, ok := s.jobs.update(id, func(j *Job) {
		j.Status = types.JobProcessing
		j.Stage = stage
		if p, ok := stageProgress[stage]; ok && p > j.Progress {
			j.Progress = p
		}
	})
	if ok {
		s.emit(snap)
	}
}

func (s *Server) fail(id, code, message string, logs []string) {
	snap, ok := s.jobs.update(id, func(j *Job) {
		j.Status = types.JobFailed
		j.Stage = "failed"
		j.Error = message
		j.ErrorCode = code
		j.Logs = append(j.Logs, logs...)
	})
	if ok {
		log.Printf("❌ Job %s failed [%s]: %s", id, code, message)
		s.emit(snap)
	}
}

// emit writes the job record to the store and the change feed. Failures are
// logged; the in-memory record stays authoritative for GET /job.
func (s *Server) emit(job Job) {
	ev := job.Event()
	if s.records != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.records.Save(ctx, ev); err != nil {
			log.Printf("⚠️  Failed to store job %s: %v", job.ID, err)
		}
		cancel()
	}
	if s.events != nil {
		if err := s.events.PublishJSON(job.ID, ev); err != nil {
			log.Printf("⚠️  Failed to publish job %s: %v", job.ID, err)
		}
	}
}
