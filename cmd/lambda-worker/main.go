package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
//
// The function is subscribed to the SQS evaluation queue with
// ReportBatchItemFailures enabled.

import (
	"context"
	"log"
	"strconv"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/queue"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	runner   *workerproc.Runner
	batch    *batchConsumer
)

// batchConsumer adapts a Lambda SQS batch to queue.Consumer: Lambda deletes
// every record not reported as failed, so Ack is a no-op and Release marks
// the record for redelivery.
type batchConsumer struct {
	mu     sync.Mutex
	failed []string
}

func (b *batchConsumer) Receive(context.Context, int) ([]queue.Delivery, error) { return nil, nil }
func (b *batchConsumer) Ack(context.Context, queue.Delivery) error               { return nil }

func (b *batchConsumer) Release(_ context.Context, d queue.Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = append(b.failed, d.Receipt)
	return nil
}

func (b *batchConsumer) drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.failed
	b.failed = nil
	return out
}

func initApp() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		initErr = err
		return
	}
	app, err := bootstrap.Build(cfg,
		bootstrap.WithDBOptions(db.Defaults(db.ProfileWorker).FromEnv()),
		bootstrap.WithoutRouter(),
	)
	if err != nil {
		initErr = err
		return
	}
	batch = &batchConsumer{}
	runner = &workerproc.Runner{
		Consumer:    batch,
		Evaluator:   app.Interview,
		MaxAttempts: cfg.QueueMaxAttempts,
	}
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, runner, batch, event), nil
}

func handleBatch(ctx context.Context, r *workerproc.Runner, b *batchConsumer, event events.SQSEvent) events.SQSEventResponse {
	for _, record := range event.Records {
		r.Handle(ctx, queue.Delivery{
			Body:    record.Body,
			Receipt: record.MessageId,
			Attempt: receiveCount(record),
		})
	}
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, id := range b.drain() {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func receiveCount(record events.SQSMessage) int {
	n, err := strconv.Atoi(record.Attributes["ApproximateReceiveCount"])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func main() {
	lambda.Start(handler)
}
