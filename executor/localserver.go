package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelforge/config"
	"reelforge/types"
)

// HealthStatus is the render server health report.
type HealthStatus = types.HealthResponse

// LocalServerAdapter talks to the self-hosted render server.
type LocalServerAdapter struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// LocalOption configures a LocalServerAdapter.
type LocalOption func(*LocalServerAdapter)

// WithPollInterval sets the wait between job status checks.
func WithPollInterval(d time.Duration) LocalOption {
	return func(a *LocalServerAdapter) { a.pollInterval = d }
}

// WithRenderTimeout sets how long a queued job may be polled.
func WithRenderTimeout(d time.Duration) LocalOption {
	return func(a *LocalServerAdapter) { a.timeout = d }
}

// WithHTTPClient replaces the client used for JSON calls.
func WithHTTPClient(c *http.Client) LocalOption {
	return func(a *LocalServerAdapter) { a.httpClient = c }
}

// NewLocalServerAdapter creates an adapter for the render server at baseURL.
func NewLocalServerAdapter(baseURL string, opts ...LocalOption) *LocalServerAdapter {
	a := &LocalServerAdapter{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		uploadClient: &http.Client{Timeout: config.UploadTimeout},
		pollInterval: config.PollInterval,
		timeout:      config.RenderTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BaseURL returns the render server address.
func (a *LocalServerAdapter) BaseURL() string {
	return a.baseURL
}

// Health checks that the server is reachable and its encoder is usable.
func (a *LocalServerAdapter) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, config.HealthTimeout)
	defer cancel()

	var h HealthStatus
	if err := doJSONRequest(ctx, a.httpClient, http.MethodGet, a.baseURL+"/health", nil, nil, &h); err != nil {
		return h, types.InfrastructureError(types.CodeVPSUnreachable, "health",
			"render server at %s is unreachable: %v", a.baseURL, err)
	}
	if h.EncoderStatus != types.EncoderReady {
		return h, types.InfrastructureError(types.CodeFFmpegUnavail, "health",
			"render server encoder is %s", orDefault(h.EncoderStatus, "unknown"))
	}
	if !h.OK {
		return h, types.InfrastructureError(types.CodeVPSUnreachable, "health", "render server reports not ok")
	}
	return h, nil
}

// Upload sends a local source file to the server and returns the path the
// server stored it under.
func (a *LocalServerAdapter) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", types.ValidationError(types.CodeNoSourceAsset, "upload", "cannot open source %s: %v", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload", pr)
	if err != nil {
		return "", types.InfrastructureError(types.CodeUploadFailed, "upload", "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := a.uploadClient.Do(req)
	if err != nil {
		return "", types.InfrastructureError(types.CodeUploadFailed, "upload", "failed to send %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out types.UploadResponse
	if err := decodeResponse(resp, &out); err != nil {
		if errors.Is(err, errInvalidJSON) {
			return "", types.InfrastructureError(types.CodeInvalidResponse, "upload", "%v", err)
		}
		return "", types.InfrastructureError(types.CodeUploadFailed, "upload", "%v", err)
	}
	if !out.OK || out.Path == "" {
		return "", types.InfrastructureError(types.CodeUploadFailed, "upload", "server rejected %s: %s", path, orDefault(out.Error, "no path returned"))
	}
	return out.Path, nil
}

// Render implements RenderAdapter. Queued jobs are polled until they finish
// or the render timeout elapses.
func (a *LocalServerAdapter) Render(ctx context.Context, plan types.ExecutionPlan, observe StatusFunc) types.EngineResult {
	logs := []string{fmt.Sprintf("dispatching %s to local server (engine %s, %s)", plan.PlanID, plan.EngineID, plan.AspectRatio)}

	req := types.ExecuteRequest{
		SourcePath: plan.SourcePath,
		OutputName: plan.OutputName,
		Config: types.RenderConfig{
			AspectRatio: plan.AspectRatio,
			EngineID:    plan.EngineID,
			Async:       true,
			RunID:       plan.BatchID,
			Variation:   plan.Variation,
			Attempt:     plan.Attempt,
		},
		Scenes: plan.Scenes,
		JobID:  plan.PlanID,
	}

	var resp types.ExecuteResponse
	if err := doJSONRequest(ctx, a.httpClient, http.MethodPost, a.baseURL+"/execute", nil, req, &resp); err != nil {
		return types.FailedResult(plan, classify(err, "execute", types.CodeVPSUnreachable), logs...)
	}
	logs = append(logs, resp.Logs...)

	if resp.Status == types.JobQueued && resp.JobID != "" {
		logs = append(logs, fmt.Sprintf("job %s queued", resp.JobID))
		return a.poll(ctx, plan, resp.JobID, observe, logs)
	}
	if !resp.Success {
		return types.FailedResult(plan, types.ExecutionError(types.CodeRenderFailed, "execute", true,
			"%s", orDefault(resp.Error, "render failed")), logs...)
	}
	return videoResult(plan, firstNonEmpty(resp.VideoURL, resp.OutputPath), "", logs)
}

func (a *LocalServerAdapter) poll(ctx context.Context, plan types.ExecutionPlan, jobID string, observe StatusFunc, logs []string) types.EngineResult {
	deadline := time.NewTimer(a.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	jobURL := a.baseURL + "/job/" + url.PathEscape(jobID)
	lastStage := ""

	for {
		select {
		case <-ctx.Done():
			return types.FailedResult(plan, types.ExecutionError(types.CodeRenderFailed, "poll", true,
				"stopped waiting for job %s: %v", jobID, ctx.Err()), logs...)
		case <-deadline.C:
			return types.FailedResult(plan, types.TimeoutError("poll",
				"job %s did not finish within %s", jobID, a.timeout), logs...)
		case <-ticker.C:
		}

		var job types.JobResponse
		if err := doJSONRequest(ctx, a.httpClient, http.MethodGet, jobURL, nil, nil, &job); err != nil {
			re := classify(err, "poll", types.CodeVPSUnreachable)
			var se *statusError
			if re.Code == types.CodeInvalidResponse || errors.As(err, &se) {
				return types.FailedResult(plan, re, logs...)
			}
			logs = append(logs, fmt.Sprintf("poll failed, retrying: %v", err))
			continue
		}

		if stage := firstNonEmpty(job.Stage, job.Status); stage != lastStage {
			logs = append(logs, fmt.Sprintf("job %s: %s (%d%%)", jobID, stage, job.Progress))
			lastStage = stage
		}
		notify(observe, types.StatusEvent{
			ID:           jobID,
			ProjectID:    plan.BatchID,
			Status:       job.Status,
			StageName:    job.Stage,
			Progress:     job.Progress,
			UpdatedAt:    time.Now(),
			Attempt:      plan.Attempt,
			ErrorCode:    job.ErrorCode,
			ErrorMessage: job.Error,
			VideoURL:     firstNonEmpty(job.VideoURL, job.Output),
		})

		switch job.Status {
		case types.JobCompleted:
			logs = append(logs, job.Logs...)
			return videoResult(plan, firstNonEmpty(job.VideoURL, job.Output), jobID, logs)
		case types.JobFailed:
			logs = append(logs, job.Logs...)
			return types.FailedResult(plan, types.ExecutionError(orDefault(job.ErrorCode, types.CodeRenderFailed), "render", true,
				"%s", orDefault(job.Error, "render failed")), logs...)
		}
	}
}

func videoResult(plan types.ExecutionPlan, videoURL, jobID string, logs []string) types.EngineResult {
	return types.EngineResult{
		PlanID:     plan.PlanID,
		Variation:  plan.Variation,
		EngineID:   plan.EngineID,
		Backend:    plan.Backend,
		Status:     types.ResultSuccess,
		OutputType: types.OutputVideo,
		VideoURL:   videoURL,
		JobID:      jobID,
		Logs:       logs,
	}
}

// isLocalFile reports whether path names a regular file on this machine.
func isLocalFile(path string) bool {
	if strings.Contains(path, "://") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
