package watch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelforge/state"
)

// Client is a thin HTTP client for the orchestrator API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new orchestrator client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Run fetches the current state of a run
func (c *Client) Run(runID string) (*state.RunDetail, error) {
	resp, err := c.client.Get(c.baseURL + "/api/runs/" + runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var run state.RunDetail
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &run, nil
}

// RetryFailed asks the orchestrator to retry every failed job of a run
func (c *Client) RetryFailed(runID string) error {
	return c.post("/api/runs/"+runID+"/retry-failed", http.StatusAccepted)
}

// Pause stops retries of a run
func (c *Client) Pause(runID string) error {
	return c.post("/api/runs/"+runID+"/pause", http.StatusOK)
}

// Resume allows retries of a run again
func (c *Client) Resume(runID string) error {
	return c.post("/api/runs/"+runID+"/resume", http.StatusOK)
}

func (c *Client) post(path string, want int) error {
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
