package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reelforge/config"
	"reelforge/types"
)

// ProviderCredentials configures access to one cloud provider.
type ProviderCredentials struct {
	APIKey  string
	BaseURL string
}

// CloudAPIAdapter renders plans through third-party provider APIs. Each
// provider gets a single POST whose response is normalised into an
// EngineResult carrying the provider's job handle.
type CloudAPIAdapter struct {
	httpClient *http.Client
	providers  map[types.ProviderID]ProviderCredentials
}

// NewCloudAPIAdapter creates an adapter for the providers with an API key.
func NewCloudAPIAdapter(providers map[types.ProviderID]ProviderCredentials) *CloudAPIAdapter {
	configured := make(map[types.ProviderID]ProviderCredentials)
	for id, creds := range providers {
		if creds.APIKey != "" && creds.BaseURL != "" {
			creds.BaseURL = strings.TrimRight(creds.BaseURL, "/")
			configured[id] = creds
		}
	}
	return &CloudAPIAdapter{
		httpClient: &http.Client{Timeout: config.CloudRequestTimeout},
		providers:  configured,
	}
}

// Supports reports whether credentials are configured for p.
func (c *CloudAPIAdapter) Supports(p types.ProviderID) bool {
	_, ok := c.providers[p]
	return ok
}

// Providers lists the configured providers.
func (c *CloudAPIAdapter) Providers() []types.ProviderID {
	out := make([]types.ProviderID, 0, len(c.providers))
	for id := range c.providers {
		out = append(out, id)
	}
	return out
}

// Render implements RenderAdapter.
func (c *CloudAPIAdapter) Render(ctx context.Context, plan types.ExecutionPlan, observe StatusFunc) types.EngineResult {
	provider := plan.Backend.Provider
	creds, ok := c.providers[provider]
	if !ok {
		return types.FailedResult(plan, types.ValidationError(types.CodeNoAdapter, "dispatch",
			"no credentials configured for provider %q", provider))
	}
	logs := []string{fmt.Sprintf("dispatching %s to %s (engine %s, %s)", plan.PlanID, provider, plan.EngineID, plan.AspectRatio)}

	var (
		jobID string
		rerr  *types.RenderError
	)
	switch provider {
	case types.ProviderRunway:
		jobID, rerr = c.renderRunway(ctx, creds, plan)
	case types.ProviderHeyGen:
		jobID, rerr = c.renderHeyGen(ctx, creds, plan)
	case types.ProviderShotstack:
		jobID, rerr = c.renderShotstack(ctx, creds, plan)
	default:
		rerr = types.ValidationError(types.CodeNoAdapter, "dispatch", "unknown provider %q", provider)
	}
	if rerr != nil {
		return types.FailedResult(plan, rerr, logs...)
	}

	logs = append(logs, fmt.Sprintf("%s accepted job %s", provider, jobID))
	notify(observe, types.StatusEvent{
		ID:        plan.PlanID,
		ProjectID: plan.BatchID,
		Status:    types.JobProcessing,
		StageName: "rendering",
		UpdatedAt: time.Now(),
		Attempt:   plan.Attempt,
	})
	return types.EngineResult{
		PlanID:     plan.PlanID,
		Variation:  plan.Variation,
		EngineID:   plan.EngineID,
		Backend:    plan.Backend,
		Status:     types.ResultSuccess,
		OutputType: types.OutputJobHandle,
		JobID:      jobID,
		Logs:       logs,
	}
}

func (c *CloudAPIAdapter) renderRunway(ctx context.Context, creds ProviderCredentials, plan types.ExecutionPlan) (string, *types.RenderError) {
	seconds := plan.Scenes.TotalMs() / 1000
	duration := 5
	if seconds > 5 {
		duration = 10
	}
	payload := map[string]interface{}{
		"model":       "gen3a_turbo",
		"promptImage": plan.SourcePath,
		"promptText":  promptText(plan.Scenes),
		"duration":    duration,
		"ratio":       runwayRatio(plan.AspectRatio),
	}
	headers := map[string]string{
		"Authorization":    "Bearer " + creds.APIKey,
		"X-Runway-Version": "2024-11-06",
	}

	var resp struct {
		ID    string `json:"id"`
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := doJSONRequest(ctx, c.httpClient, http.MethodPost, creds.BaseURL+"/v1/image_to_video", headers, payload, &resp); err != nil {
		return "", providerError(types.ProviderRunway, err)
	}
	if isBlockedCode(resp.Code) {
		return "", blocked(types.ProviderRunway, resp.Error)
	}
	if resp.ID == "" {
		return "", types.ExecutionError(types.CodeProviderError, "dispatch", false, "runway returned no task id: %s", resp.Error)
	}
	return resp.ID, nil
}

func (c *CloudAPIAdapter) renderHeyGen(ctx context.Context, creds ProviderCredentials, plan types.ExecutionPlan) (string, *types.RenderError) {
	w, h := dimensions(plan.AspectRatio)
	payload := map[string]interface{}{
		"video_inputs": []map[string]interface{}{{
			"character": map[string]string{"type": "avatar", "avatar_id": "default", "avatar_style": "normal"},
			"voice":     map[string]string{"type": "text", "input_text": narration(plan.Scenes)},
		}},
		"dimension": map[string]int{"width": w, "height": h},
		"title":     plan.OutputName,
	}
	headers := map[string]string{"X-Api-Key": creds.APIKey}

	var resp struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Data struct {
			VideoID string `json:"video_id"`
		} `json:"data"`
	}
	if err := doJSONRequest(ctx, c.httpClient, http.MethodPost, creds.BaseURL+"/v2/video/generate", headers, payload, &resp); err != nil {
		return "", providerError(types.ProviderHeyGen, err)
	}
	if resp.Error != nil {
		if isBlockedCode(resp.Error.Code) {
			return "", blocked(types.ProviderHeyGen, resp.Error.Message)
		}
		return "", types.ExecutionError(types.CodeProviderError, "dispatch", false, "heygen %s: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Data.VideoID == "" {
		return "", types.ExecutionError(types.CodeProviderError, "dispatch", false, "heygen returned no video id")
	}
	return resp.Data.VideoID, nil
}

func (c *CloudAPIAdapter) renderShotstack(ctx context.Context, creds ProviderCredentials, plan types.ExecutionPlan) (string, *types.RenderError) {
	clips := make([]map[string]interface{}, 0, len(plan.Scenes))
	for _, s := range plan.Scenes {
		clip := map[string]interface{}{
			"asset": map[string]interface{}{
				"type": "video",
				"src":  plan.SourcePath,
				"trim": float64(s.StartMs) / 1000,
			},
			"start":  float64(s.StartMs) / 1000,
			"length": float64(s.DurationMs()) / 1000,
		}
		if s.TransitionIntoNext != "" {
			clip["transition"] = map[string]string{"out": shotstackTransition(s.TransitionIntoNext)}
		}
		clips = append(clips, clip)
	}
	tracks := []map[string]interface{}{{"clips": clips}}
	if overlays := overlayClips(plan.Scenes); len(overlays) > 0 {
		tracks = append([]map[string]interface{}{{"clips": overlays}}, tracks...)
	}
	payload := map[string]interface{}{
		"timeline": map[string]interface{}{"tracks": tracks},
		"output":   map[string]interface{}{"format": "mp4", "aspectRatio": plan.AspectRatio, "resolution": "hd"},
	}
	headers := map[string]string{"x-api-key": creds.APIKey}

	var resp struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Response struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		} `json:"response"`
	}
	if err := doJSONRequest(ctx, c.httpClient, http.MethodPost, creds.BaseURL+"/edit/v1/render", headers, payload, &resp); err != nil {
		return "", providerError(types.ProviderShotstack, err)
	}
	if !resp.Success || resp.Response.ID == "" {
		if isBlockedCode(resp.Message) {
			return "", blocked(types.ProviderShotstack, resp.Message)
		}
		return "", types.ExecutionError(types.CodeProviderError, "dispatch", false, "shotstack rejected render: %s", resp.Message)
	}
	return resp.Response.ID, nil
}

// blockedStatus lists HTTP statuses that mean the provider refuses service.
var blockedStatus = map[int]bool{
	http.StatusForbidden:                  true,
	http.StatusTooManyRequests:            true,
	http.StatusUnavailableForLegalReasons: true,
	http.StatusServiceUnavailable:         true,
}

func providerError(p types.ProviderID, err error) *types.RenderError {
	var se *statusError
	if errors.As(err, &se) {
		if blockedStatus[se.StatusCode] || isBlockedCode(bodyCode(se.Body)) {
			return blocked(p, truncate(se.Body, 200))
		}
		if !looksLikeJSON(se.Body) {
			return types.InfrastructureError(types.CodeInvalidResponse, "dispatch", "%s: %v", p, err)
		}
		return types.ExecutionError(types.CodeProviderError, "dispatch", se.StatusCode >= 500, "%s: %v", p, err)
	}
	re := classify(err, "dispatch", types.CodeProviderError)
	if re.Code == types.CodeProviderError {
		re.Class = types.ClassExecution
		re.Retryable = true
	}
	return re
}

func blocked(p types.ProviderID, detail string) *types.RenderError {
	return types.ExecutionError(types.CodeProviderBlocked, "dispatch", false, "%s refused the request: %s", p, orDefault(detail, "blocked"))
}

func isBlockedCode(code string) bool {
	code = strings.ToLower(code)
	return strings.Contains(code, "blocked") || strings.Contains(code, "unavailable")
}

// bodyCode extracts an error code from common provider error bodies.
func bodyCode(body string) string {
	var v struct {
		Code  string `json:"code"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return ""
	}
	return firstNonEmpty(v.Code, v.Error.Code)
}

func promptText(scenes types.SceneList) string {
	parts := make([]string, 0, len(scenes))
	for _, s := range scenes {
		parts = append(parts, fmt.Sprintf("%s shot, %s", s.Type, s.MotionStyle))
	}
	return truncate(strings.Join(parts, "; "), 500)
}

func narration(scenes types.SceneList) string {
	parts := make([]string, 0, len(scenes))
	for _, s := range scenes {
		if s.Narration != "" {
			parts = append(parts, s.Narration)
		}
	}
	return strings.Join(parts, " ")
}

func overlayClips(scenes types.SceneList) []map[string]interface{} {
	var out []map[string]interface{}
	for _, s := range scenes {
		if s.Overlay == nil || s.Overlay.Text == "" {
			continue
		}
		out = append(out, map[string]interface{}{
			"asset":  map[string]interface{}{"type": "title", "text": s.Overlay.Text, "position": s.Overlay.Position},
			"start":  float64(s.StartMs) / 1000,
			"length": float64(s.DurationMs()) / 1000,
		})
	}
	return out
}

func shotstackTransition(name string) string {
	switch name {
	case "slide":
		return "slideLeft"
	case "zoom", "zoom-punch":
		return "zoom"
	case "whip":
		return "carouselLeft"
	}
	return "fade"
}

func runwayRatio(aspect string) string {
	if w, h := dimensions(aspect); w > h {
		return "1280:768"
	}
	return "768:1280"
}

// dimensions maps an aspect ratio to output pixels. Unknown ratios use 9:16.
func dimensions(aspect string) (int, int) {
	switch aspect {
	case "16:9":
		return 1920, 1080
	case "1:1":
		return 1080, 1080
	case "4:5":
		return 1080, 1350
	default:
		return 1080, 1920
	}
}
