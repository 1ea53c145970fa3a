package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"reelforge/types"
)

// errInvalidJSON marks a backend response that could not be decoded.
var errInvalidJSON = errors.New("response is not valid JSON")

// statusError is a non-2xx response from a backend.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// doJSONRequest performs a JSON request and decodes the response into result.
// Headers are applied after the content type. If result is nil the response
// body is not decoded.
func doJSONRequest(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, result)
}

func decodeResponse(resp *http.Response, result interface{}) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return fmt.Errorf("%w: %s", errInvalidJSON, truncate(string(bodyBytes), 120))
		}
	}
	return nil
}

// classify turns a transport or decode failure into a RenderError. Non-JSON
// responses are always INVALID_RESPONSE; unreachable servers use
// unreachableCode.
func classify(err error, stage, unreachableCode string) *types.RenderError {
	var se *statusError
	switch {
	case errors.Is(err, errInvalidJSON):
		return types.InfrastructureError(types.CodeInvalidResponse, stage, "%v", err)
	case errors.As(err, &se):
		if !looksLikeJSON(se.Body) {
			return types.InfrastructureError(types.CodeInvalidResponse, stage, "%v", err)
		}
		return types.ExecutionError(types.CodeRenderFailed, stage, se.StatusCode >= 500, "%v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return types.TimeoutError(stage, "%v", err)
	default:
		return types.InfrastructureError(unreachableCode, stage, "%v", err)
	}
}

func looksLikeJSON(body string) bool {
	body = strings.TrimSpace(body)
	return json.Valid([]byte(body)) && (strings.HasPrefix(body, "{") || strings.HasPrefix(body, "["))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
