package interview

import (
	"context"
	"time"

	"jobboard-backend/internal/queue"
	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/worker"
)

// Evaluation modes selected by EVALUATION_MODE.
const (
	ModeInline = "inline"
	ModeAsync  = "async"
	ModeQueue  = "queue"
)

// EvaluateFunc grades one answer; Service.Evaluate is the production one.
type EvaluateFunc func(ctx context.Context, answerID, chatID string) error

// Dispatcher decides when and where an answer gets evaluated.
type Dispatcher interface {
	Dispatch(ctx context.Context, answerID, chatID string)
}

// InlineDispatcher evaluates before the answer request returns.
type InlineDispatcher struct {
	Evaluate EvaluateFunc
}

func (d InlineDispatcher) Dispatch(ctx context.Context, answerID, chatID string) {
	// Evaluation failures are already logged and metered by Evaluate.
	_ = d.Evaluate(ctx, answerID, chatID)
}

// PoolDispatcher hands evaluations to an in-process worker pool.
type PoolDispatcher struct {
	Pool     *worker.Pool
	Evaluate EvaluateFunc
}

func (d PoolDispatcher) Dispatch(ctx context.Context, answerID, chatID string) {
	requestID := telemetry.RequestID(ctx)
	job := worker.JobFunc(func(jobCtx context.Context) error {
		return d.Evaluate(telemetry.WithRequestID(jobCtx, requestID), answerID, chatID)
	})
	if !d.Pool.TryEnqueue(job) {
		telemetry.Warn("interview.evaluation.pool_full", map[string]any{"answer_id": answerID})
		metrics.IncEvaluationFailed("pool_full")
	}
}

// QueueDispatcher publishes evaluation jobs for cmd/worker.
type QueueDispatcher struct {
	Client queue.Client
	// Fallback runs when the queue rejects the message; nil drops the job.
	Fallback Dispatcher
}

func (d QueueDispatcher) Dispatch(ctx context.Context, answerID, chatID string) {
	msg := queue.NewMessage(answerID, chatID, telemetry.RequestID(ctx))
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := d.Client.Send(sendCtx, msg)
	if err == nil {
		telemetry.Info("interview.evaluation.enqueued", map[string]any{"answer_id": answerID, "chat_id": chatID})
		return
	}
	telemetry.Error("interview.evaluation.enqueue_failed", map[string]any{"answer_id": answerID, "error": err})
	metrics.IncEvaluationFailed("enqueue")
	if d.Fallback != nil {
		d.Fallback.Dispatch(ctx, answerID, chatID)
	}
}
