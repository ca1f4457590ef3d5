package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/content-dashboard/internal/retry"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ClientConfig struct {
	APIKey  string
	Model   string // empty uses the account default
	BaseURL string
	// Timeout defaults to 60s; LLM calls are slow.
	Timeout time.Duration
	Limiter *rate.Limiter
}

// Client calls an OpenRouter-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 2)
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   base + "/chat/completions",
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message and returns the first
// choice. 429 and 5xx answers are retryable; other failures are permanent.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("analysis: waiting for rate limiter: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("analysis: encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("analysis: building request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis: calling model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("analysis: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("analysis: model returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", err
		}
		return "", retry.Permanent(err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", retry.Permanent(fmt.Errorf("analysis: decoding response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", retry.Permanent(fmt.Errorf("analysis: model returned no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
