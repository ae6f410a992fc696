// Package openai talks to any endpoint speaking the chat-completions API:
// OpenAI itself, or a self-hosted gateway configured through EVALUATION_URL.
package openai

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

	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/shared/telemetry"
)

const (
	DefaultURL     = "https://api.openai.com/v1/chat/completions"
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 1 << 20
	maxErrorChars  = 200
)

var defaultTemperature = float32(0.2)

type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

// NewClient requires a model. The key may be empty for gateways that do
// their own auth.
func NewClient(endpoint, apiKey, model string, timeout time.Duration) (*Client, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("LLM_MODEL is required for the openai provider")
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		endpoint = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(apiKey),
		model:    model,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		Prompt     int `json:"prompt_tokens"`
		Completion int `json:"completion_tokens"`
		Total      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) Evaluate(ctx context.Context, in llm.EvaluateInput) (string, error) {
	body, err := json.Marshal(c.request(in))
	if err != nil {
		return "", err
	}
	raw, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai: %s (%s)", out.Error.Message, out.Error.Type)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai: empty completion")
	}
	telemetry.Info("llm.response", map[string]any{
		"provider":          "openai",
		"model":             c.model,
		"response_id":       out.ID,
		"prompt_tokens":     out.Usage.Prompt,
		"completion_tokens": out.Usage.Completion,
		"total_tokens":      out.Usage.Total,
	})
	return text, nil
}

func (c *Client) request(in llm.EvaluateInput) completionRequest {
	req := completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: llm.SystemPrompt()},
			{Role: "user", Content: llm.UserPrompt(in)},
		},
	}
	// gpt-5 models only accept the default temperature.
	if !fixedTemperature(c.model) {
		t := defaultTemperature
		req.Temperature = &t
	}
	return req
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(raw)
		if len(msg) > maxErrorChars {
			msg = msg[:maxErrorChars]
		}
		return nil, &llm.StatusError{Provider: "openai", Code: resp.StatusCode, Message: msg}
	}
	return raw, nil
}

func fixedTemperature(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Evaluator = (*Client)(nil)
