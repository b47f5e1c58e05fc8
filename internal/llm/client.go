package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobsync/internal/config"
)

// Request is a single-turn completion.
type Request struct {
	Prompt      string
	Temperature float64
}

// Completer is the one call the extractor needs from a chat provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint (OpenRouter by default).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *RateLimiter
}

var _ Completer = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatError struct {
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *chatError `json:"error"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.OpenRouterBaseURL, "/"),
		apiKey:     cfg.OpenRouterKey,
		model:      cfg.OpenRouterModel,
		httpClient: &http.Client{Timeout: time.Duration(cfg.LLMTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.LLMRateLimitRPS),
	}
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("missing OPENROUTER_KEY")
	}
	if strings.TrimSpace(c.model) == "" {
		return "", errors.New("missing OPENROUTER_MODEL")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	if err := c.limiter.WaitTurn(ctx); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newProviderError(resp.StatusCode, errorMessage(payload))
	}

	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("%w: decode completion: %v", ErrMalformedOutput, err)
	}
	// OpenRouter reports upstream throttling inside a 200 body.
	if out.Error != nil {
		msg := out.Error.Message
		if code := strings.Trim(string(out.Error.Code), `"`); code != "" && code != "null" {
			msg = code + " " + msg
		}
		return "", newProviderError(0, msg)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion", ErrMalformedOutput)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func errorMessage(payload []byte) string {
	var out chatResponse
	if err := json.Unmarshal(payload, &out); err == nil && out.Error != nil && out.Error.Message != "" {
		return out.Error.Message
	}
	msg := strings.TrimSpace(string(payload))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
