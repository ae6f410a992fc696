package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobboard-backend/internal/llm"
)

func TestFixedTemperature(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := fixedTemperature(tt.model); got != tt.want {
				t.Fatalf("fixedTemperature(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestEvaluateSendsChatCompletion(t *testing.T) {
	var got completionRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r1","choices":[{"message":{"role":"assistant","content":" Хорошо.\nОценка: 7/10 "}}],"usage":{"total_tokens":42}}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "key", "gpt-4o-mini", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := c.Evaluate(context.Background(), llm.EvaluateInput{Question: "Q?", Technology: "go", Complexity: "easy", Answer: "A"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out != "Хорошо.\nОценка: 7/10" {
		t.Fatalf("unexpected content %q", out)
	}
	if auth != "Bearer key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || !strings.Contains(got.Messages[1].Content, "Q?") {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.Temperature == nil {
		t.Fatalf("expected temperature for non gpt-5 model")
	}
}

func TestEvaluateOmitsKeyAndTemperature(t *testing.T) {
	var raw map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, "", "gpt-5-mini", time.Second)
	if _, err := c.Evaluate(context.Background(), llm.EvaluateInput{}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if auth != "" {
		t.Fatalf("expected no auth header, got %q", auth)
	}
	if _, ok := raw["temperature"]; ok {
		t.Fatalf("expected temperature to be omitted for gpt-5 models")
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{name: "server error", status: http.StatusBadGateway, body: "upstream", retryable: true},
		{name: "throttled", status: http.StatusTooManyRequests, body: "slow down", retryable: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"bad"}}`},
		{name: "api error body", status: http.StatusOK, body: `{"error":{"message":"quota","type":"insufficient_quota"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, _ := NewClient(server.URL, "k", "m", time.Second)
			_, err := c.Evaluate(context.Background(), llm.EvaluateInput{})
			if err == nil {
				t.Fatalf("expected error")
			}
			if llm.ShouldRetry(err) != tt.retryable {
				t.Fatalf("ShouldRetry(%v) = %v, want %v", err, !tt.retryable, tt.retryable)
			}
		})
	}
}

func TestNewClientRequiresModel(t *testing.T) {
	if _, err := NewClient("", "", " ", 0); err == nil {
		t.Fatalf("expected error for empty model")
	}
	c, err := NewClient("", "", "gpt-4o", 0)
	if err != nil || c.endpoint != DefaultURL || c.http.Timeout != defaultTimeout {
		t.Fatalf("unexpected defaults %+v err=%v", c, err)
	}
}
