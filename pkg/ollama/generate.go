// Package ollama provides a text-generation client for Ollama's HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client calls Ollama's /api/generate endpoint. Requests are rate limited so
// a burst of chat traffic cannot overwhelm the model server.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// Opts configures a Client. Zero values fall back to sensible defaults.
type Opts struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// RequestsPerSec bounds outbound generation calls.
	RequestsPerSec float64
	Burst          int
}

// New creates a generation client.
func New(opts Opts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.Model == "" {
		opts.Model = "llama3.1:8b"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 4
	}
	return &Client{
		baseURL: opts.BaseURL,
		model:   opts.Model,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
	}
}

type generateReq struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResp struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete sends a prompt and returns the full generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	body, _ := json.Marshal(generateReq{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: 0.7,
			NumPredict:  800,
		},
	})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("ollama generate: status %d", resp.StatusCode)
	}

	var result generateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}
	return result.Response, nil
}

// Model reports the configured model name.
func (c *Client) Model() string { return c.model }
