package planner

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"reelforge/types"
)

// DefaultCohereModel is used when no model is configured.
const DefaultCohereModel = "command-r"

// CohereOptimizer asks a Cohere chat model for a stronger narrative order.
type CohereOptimizer struct {
	client *cohereclient.Client
	model  string
}

// NewCohereOptimizer returns an optimizer, or nil when apiKey is empty.
func NewCohereOptimizer(apiKey, model string) *CohereOptimizer {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = DefaultCohereModel
	}
	// Force HTTP/1.1 to avoid HTTP/2 protocol errors.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereOptimizer{client: client, model: model}
}

// Reorder implements NarrativeOptimizer.
func (c *CohereOptimizer) Reorder(ctx context.Context, brief types.Brief, skeleton types.SceneList) ([]int, error) {
	temperature := 0.0
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:     reorderPrompt(brief, skeleton),
		Model:       &c.model,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil {
		return nil, errors.New("cohere chat returned empty response")
	}
	return parseOrder(resp.Text)
}

func reorderPrompt(brief types.Brief, skeleton types.SceneList) string {
	var b strings.Builder
	b.WriteString("You order scenes of a short marketing video for maximum retention.\n")
	if brief.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", brief.Title)
	}
	if brief.Market != "" {
		fmt.Fprintf(&b, "Market: %s\n", brief.Market)
	}
	if brief.Persona != "" {
		fmt.Fprintf(&b, "Audience: %s\n", brief.Persona)
	}
	fmt.Fprintf(&b, "Script: %s\n\nScenes:\n", brief.Script)
	for _, s := range skeleton {
		fmt.Fprintf(&b, "%d. %s (%dms)\n", s.Index, s.Type, s.DurationMs())
	}
	b.WriteString("\nReply with only a JSON array containing every scene index exactly once, in the order they should play.")
	return b.String()
}

// parseOrder extracts the first JSON integer array from a model reply.
func parseOrder(text string) ([]int, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no index array in reply %q", text)
	}
	var order []int
	if err := json.Unmarshal([]byte(text[start:end+1]), &order); err != nil {
		return nil, fmt.Errorf("decode index array: %w", err)
	}
	return order, nil
}
