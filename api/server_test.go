package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reelforge/briefs"
	"reelforge/engines"
	"reelforge/executor"
	"reelforge/state"
	"reelforge/types"

	"github.com/gin-gonic/gin"
)

type fakeExec struct {
	mu    sync.Mutex
	hooks executor.Hooks
	fail  map[int]bool
}

func (f *fakeExec) Run(ctx context.Context, req executor.BatchRequest, progress executor.ProgressFunc) (*executor.BatchResult, error) {
	plans := make([]types.ExecutionPlan, req.Variations)
	for v := range plans {
		plans[v] = types.ExecutionPlan{PlanID: fmt.Sprintf("%s-v%d", req.BatchID, v), BatchID: req.BatchID, Variation: v, EngineID: "ffmpeg-basic"}
	}
	f.hooks.OnPlanned(req, plans)
	progress(0.2, "planned")

	out := &executor.BatchResult{BatchID: req.BatchID, Engine: types.EngineSpec{ID: "ffmpeg-basic"}, Plans: plans}
	for _, p := range plans {
		res := f.Dispatch(ctx, p)
		out.Results = append(out.Results, res)
		if res.Succeeded() {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	progress(1, "done")
	return out, nil
}

func (f *fakeExec) Dispatch(ctx context.Context, plan types.ExecutionPlan) types.EngineResult {
	f.mu.Lock()
	failing := f.fail[plan.Variation]
	f.mu.Unlock()

	res := types.EngineResult{PlanID: plan.PlanID, Variation: plan.Variation, Status: types.ResultSuccess, OutputType: types.OutputVideo, VideoURL: "https://cdn.example/" + plan.PlanID + ".mp4"}
	if failing {
		res = types.FailedResult(plan, types.ExecutionError(types.CodeRenderFailed, "render", true, "encoder crashed"))
	}
	f.hooks.OnResult(res)
	return res
}

type fakeHealth struct {
	err error
}

func (h fakeHealth) Health(ctx context.Context) (types.HealthResponse, error) {
	if h.err != nil {
		return types.HealthResponse{}, h.err
	}
	return types.HealthResponse{OK: true, EncoderStatus: types.EncoderReady, EncoderVersion: "6.1"}, nil
}

func newTestRouter(t *testing.T, health HealthChecker) (*gin.Engine, *state.Manager, *fakeExec) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	exec := &fakeExec{fail: make(map[int]bool)}
	m := state.NewManager(exec)
	exec.hooks = m.Hooks()
	r := NewRouter(Deps{
		State:    m,
		Selector: engines.NewSelector(engines.Default()),
		Briefs:   briefs.NewImporter(),
		Health:   health,
	})
	return r, m, exec
}

func batch(id string, variations int) executor.BatchRequest {
	return executor.BatchRequest{
		BatchID:      id,
		Brief:        types.Brief{ID: "brief-1", Title: "Launch", Script: "Meet the product.", DurationMs: 30000},
		Variations:   variations,
		Sources:      []string{"uploads/source.mp4"},
		AspectRatios: []string{"9:16"},
	}
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitBatchReturnsRunID(t *testing.T) {
	r, m, _ := newTestRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/batches", batch("run-1", 2))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		RunID     string `json:"run_id"`
		StatusURL string `json:"status_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "run-1" || resp.StatusURL != "/api/runs/run-1" {
		t.Fatalf("resp = %+v", resp)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Wait(ctx, "run-1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	w = doJSON(r, http.MethodGet, "/api/runs/run-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get run status = %d", w.Code)
	}
	var detail state.RunDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.State != types.RunFinished || len(detail.Jobs) != 2 || !detail.Progress.IsComplete {
		t.Fatalf("detail = %+v", detail.RunSummary)
	}
}

func TestSubmitBatchWaitReturnsResult(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/batches?wait=true", batch("run-w", 3))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var res executor.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Succeeded != 3 || len(res.Plans) != 3 {
		t.Fatalf("result = %+v", res)
	}
}

func TestSubmitBatchErrors(t *testing.T) {
	r, m, _ := newTestRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/batches", batch("bad", 0))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation status = %d", w.Code)
	}
	var resp struct {
		Error types.RenderError `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != types.CodeInvalidRequest || resp.Error.Class != types.ClassValidation {
		t.Fatalf("error = %+v", resp.Error)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/batches", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed status = %d", rec.Code)
	}

	if _, err := m.Execute(context.Background(), batch("dup", 1)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if w := doJSON(r, http.MethodPost, "/api/batches", batch("dup", 1)); w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", w.Code)
	}
}

func TestRunControlEndpoints(t *testing.T) {
	r, m, exec := newTestRouter(t, nil)
	exec.fail[0] = true
	if _, err := m.Execute(context.Background(), batch("run-c", 2)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown run", http.MethodGet, "/api/runs/nope", http.StatusNotFound},
		{"unknown job", http.MethodPost, "/api/runs/run-c/jobs/missing/retry", http.StatusNotFound},
		{"completed job", http.MethodPost, "/api/runs/run-c/jobs/run-c-v1/retry", http.StatusConflict},
		{"pause", http.MethodPost, "/api/runs/run-c/pause", http.StatusOK},
		{"paused retry", http.MethodPost, "/api/runs/run-c/jobs/run-c-v0/retry", http.StatusConflict},
		{"resume", http.MethodPost, "/api/runs/run-c/resume", http.StatusOK},
		{"pause unknown", http.MethodPost, "/api/runs/nope/pause", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doJSON(r, tc.method, tc.path, nil); w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}

	exec.mu.Lock()
	exec.fail[0] = false
	exec.mu.Unlock()
	w := doJSON(r, http.MethodPost, "/api/runs/run-c/retry-failed", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry-failed status = %d", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		d, _ := m.Run("run-c")
		if d.Progress.CompletedJobs == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("retry did not complete: %+v", d.Progress)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = doJSON(r, http.MethodGet, "/api/runs", nil)
	var list struct {
		Runs []state.RunSummary `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].ID != "run-c" {
		t.Fatalf("runs = %+v", list.Runs)
	}
}

func TestEngineRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)

	w := doJSON(r, http.MethodGet, "/api/engines", nil)
	var list struct {
		Engines []types.EngineSpec `json:"engines"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || len(list.Engines) != len(engines.Default().List()) {
		t.Fatalf("status=%d engines=%d", w.Code, len(list.Engines))
	}

	w = doJSON(r, http.MethodPost, "/api/engines/select", engines.SelectionRequest{Backend: types.LocationLocalServer})
	if w.Code != http.StatusOK {
		t.Fatalf("select status = %d body=%s", w.Code, w.Body.String())
	}
	var sel struct {
		Engine     types.EngineSpec   `json:"engine"`
		Candidates []types.EngineSpec `json:"candidates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel.Engine.ID == "" || sel.Engine.ID != sel.Candidates[0].ID {
		t.Fatalf("selection = %+v", sel)
	}
	for _, c := range sel.Candidates {
		if c.Location != types.LocationLocalServer {
			t.Fatalf("candidate %s runs at %s", c.ID, c.Location)
		}
	}

	w = doJSON(r, http.MethodPost, "/api/engines/select", engines.SelectionRequest{DurationSeconds: 1 << 20})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("impossible selection status = %d", w.Code)
	}
}

func TestHealthRoute(t *testing.T) {
	cases := []struct {
		name   string
		health HealthChecker
		want   string
	}{
		{"not configured", nil, "ok"},
		{"ready", fakeHealth{}, "ok"},
		{"down", fakeHealth{err: errors.New("connection refused")}, "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _, _ := newTestRouter(t, tc.health)
			w := doJSON(r, http.MethodGet, "/api/health", nil)
			var resp struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if w.Code != http.StatusOK || resp.Status != tc.want {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestImportBriefsFromFeed(t *testing.T) {
	feed := `<?xml version="1.0"?><rss version="2.0"><channel><title>News</title>
<item><title>First story</title><link>https://example.com/1</link><description>One sentence here.</description></item>
<item><title>Second story</title><link>https://example.com/2</link><description>Another sentence.</description></item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	r, _, _ := newTestRouter(t, nil)
	w := doJSON(r, http.MethodPost, "/api/briefs/import", briefs.ImportRequest{Feed: srv.URL})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Count  int           `json:"count"`
		Briefs []types.Brief `json:"briefs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || resp.Briefs[0].Title != "First story" {
		t.Fatalf("resp = %+v", resp)
	}

	if w := doJSON(r, http.MethodPost, "/api/briefs/import", briefs.ImportRequest{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing feed status = %d", w.Code)
	}
}
