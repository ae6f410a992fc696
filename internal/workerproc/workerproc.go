// Package workerproc consumes the evaluation queue: it parses deliveries,
// runs the evaluation and decides whether a message is acked, retried or
// dropped.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"jobboard-backend/internal/interview"
	"jobboard-backend/internal/queue"
	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/worker"
)

const (
	defaultConcurrency     = 4
	defaultMaxAttempts     = 3
	defaultShutdownTimeout = 30 * time.Second
	receiveBackoff         = time.Second
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingAnswerID indicates a message without an answer id.
type ErrMissingAnswerID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingAnswerID) Error() string { return "missing answer id" }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.AnswerID == "" {
		return msg, meta, ErrMissingAnswerID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Evaluator is the part of the interview service the worker drives.
type Evaluator interface {
	Evaluate(ctx context.Context, answerID, chatID string) error
}

// Outcome is what the runner did with one delivery.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetried   Outcome = "retried"
	OutcomeDropped   Outcome = "dropped"
)

// Runner polls a queue.Consumer with bounded concurrency.
type Runner struct {
	Consumer        queue.Consumer
	Evaluator       Evaluator
	Concurrency     int
	MaxAttempts     int
	ShutdownTimeout time.Duration
}

// Run polls until ctx is cancelled, then waits up to ShutdownTimeout for
// in-flight jobs. Jobs run on a worker.Pool, detached from ctx, so a SIGTERM
// does not abort an evaluation halfway.
func (r *Runner) Run(ctx context.Context) {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	shutdown := r.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	pool := worker.NewPool(concurrency, 0, 0)
	pool.Start()
	telemetry.Info("worker.started", map[string]any{"concurrency": concurrency, "max_attempts": r.maxAttempts()})

	for ctx.Err() == nil {
		deliveries, err := r.Consumer.Receive(ctx, concurrency)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err})
			select {
			case <-ctx.Done():
			case <-time.After(receiveBackoff):
			}
			continue
		}

		for _, d := range deliveries {
			if ctx.Err() != nil {
				// Not started: hand it back for another consumer.
				r.release(context.Background(), d, "", "")
				continue
			}
			metrics.IncQueueJobsReceived()
			// Blocks until a worker is free.
			pool.Enqueue(worker.JobFunc(func(jobCtx context.Context) error {
				r.Handle(jobCtx, d)
				return nil
			}))
		}
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": shutdown.String()})
	waitDone := make(chan struct{})
	go func() {
		pool.Stop()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		telemetry.Info("worker.stopped", nil)
	case <-time.After(shutdown):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

// Handle processes one delivery and acks, releases or drops it.
func (r *Runner) Handle(ctx context.Context, d queue.Delivery) Outcome {
	msg, meta, err := ParseMessage(d.Body)
	if err != nil {
		fields := map[string]any{"body_len": meta.BodyLen, "error": err}
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		var missing ErrMissingAnswerID
		if errors.As(err, &missing) && missing.RequestID != "" {
			fields["request_id"] = missing.RequestID
		}
		telemetry.Error("worker.evaluation.decode_failed", fields)
		r.drop(ctx, d, "", "")
		return OutcomeDropped
	}

	fields := baseFields(msg, d)
	telemetry.Info("worker.evaluation.received", fields)

	jobCtx := telemetry.WithRequestID(ctx, msg.RequestID)
	if err := r.Evaluator.Evaluate(jobCtx, msg.AnswerID, msg.ChatID); err != nil {
		fields["error"] = err
		if errors.Is(err, interview.ErrAnswerNotFound) || d.Attempt >= r.maxAttempts() {
			telemetry.Error("worker.evaluation.dropped", fields)
			r.drop(ctx, d, msg.AnswerID, msg.RequestID)
			return OutcomeDropped
		}
		telemetry.Warn("worker.evaluation.failed", fields)
		metrics.IncQueueJobsFailed()
		r.release(ctx, d, msg.AnswerID, msg.RequestID)
		return OutcomeRetried
	}

	if err := r.Consumer.Ack(ctx, d); err != nil {
		fields["error"] = err
		telemetry.Error("worker.evaluation.ack_failed", fields)
		return OutcomeCompleted
	}
	telemetry.Info("worker.evaluation.completed", fields)
	metrics.IncQueueJobsCompleted()
	return OutcomeCompleted
}

func (r *Runner) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return r.MaxAttempts
}

func (r *Runner) drop(ctx context.Context, d queue.Delivery, answerID, requestID string) {
	if err := r.Consumer.Ack(ctx, d); err != nil {
		telemetry.Error("worker.evaluation.delete_failed", map[string]any{
			"answer_id":  answerID,
			"request_id": requestID,
			"error":      err,
		})
		return
	}
	metrics.IncQueueJobsDeletedUnrecoverable()
}

func (r *Runner) release(ctx context.Context, d queue.Delivery, answerID, requestID string) {
	if err := r.Consumer.Release(ctx, d); err != nil {
		telemetry.Error("worker.evaluation.release_failed", map[string]any{
			"answer_id":  answerID,
			"request_id": requestID,
			"error":      err,
		})
	}
}

func baseFields(msg queue.Message, d queue.Delivery) map[string]any {
	fields := map[string]any{
		"answer_id": msg.AnswerID,
		"chat_id":   msg.ChatID,
		"attempt":   d.Attempt,
	}
	if msg.RequestID != "" {
		fields["request_id"] = msg.RequestID
	}
	if msg.EnqueuedAt != "" {
		if at, err := time.Parse(time.RFC3339, msg.EnqueuedAt); err == nil {
			fields["queued_ms"] = time.Since(at).Milliseconds()
		}
	}
	return fields
}
