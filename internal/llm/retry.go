package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"jobboard-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// sleep is swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.Code, e.Message)
}

// Temporary reports whether the provider asked us to come back later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type retrying struct {
	base Evaluator
}

// WithRetry retries a failed evaluation once when the error looks transient.
func WithRetry(base Evaluator) Evaluator {
	if base == nil {
		return nil
	}
	return retrying{base: base}
}

func (r retrying) Evaluate(ctx context.Context, in EvaluateInput) (string, error) {
	out, err := r.base.Evaluate(ctx, in)
	if err == nil || !ShouldRetry(err) {
		return out, err
	}

	telemetry.Warn("llm.retry", map[string]any{"attempt": 1, "error": err})
	if err := sleep(ctx, retryBaseDelay); err != nil {
		return "", err
	}
	return r.base.Evaluate(ctx, in)
}

// ShouldRetry reports whether err is a timeout, a throttled or 5xx provider
// status, or a dropped connection.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"connection closed",
		"broken pipe",
		"unexpected eof",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
