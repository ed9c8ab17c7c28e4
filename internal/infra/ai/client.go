// Package ai calls the hosted text-completion API. Failures are mapped
// into the closed error-code set here, at the boundary; callers never
// see raw HTTP or transport errors.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/rewriter/internal/core/apierror"
)

// Config holds completion API settings.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Client is an HTTP client for the completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a completion client. A missing endpoint or API key
// is a construction-time error, not a first-use one.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("completion endpoint is not set")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("completion API key is not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type completionRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// Rewrite sends the prompt and optional context text to the completion
// API and returns the rewritten text.
func (c *Client) Rewrite(ctx context.Context, prompt, contextText string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Context: contextText,
	})
	if err != nil {
		return "", apierror.From(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apierror.From(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apierror.From(fmt.Errorf("completion call: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apierror.From(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", apierror.New(apierror.CodeForStatus(resp.StatusCode),
			fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(respBody), 256)))
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", apierror.From(fmt.Errorf("decode response: %w", err))
	}
	return out.Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
