package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobboard-backend/internal/queue"
	"jobboard-backend/internal/shared/config"
)

type fakeQueue struct {
	recovered int
	err       error
}

func (f *fakeQueue) Receive(context.Context, int) ([]queue.Delivery, error) { return nil, nil }
func (f *fakeQueue) Ack(context.Context, queue.Delivery) error               { return nil }
func (f *fakeQueue) Release(context.Context, queue.Delivery) error           { return nil }

func (f *fakeQueue) Recover(context.Context) (int, error) {
	f.recovered++
	return 2, f.err
}

type noopEvaluator struct{}

func (noopEvaluator) Evaluate(context.Context, string, string) error { return nil }

func TestNewRunnerUsesWorkerSettings(t *testing.T) {
	cfg := config.Config{WorkerConcurrency: 7, QueueMaxAttempts: 5, ShutdownTimeout: 12 * time.Second}
	q := &fakeQueue{}

	r := newRunner(cfg, q, noopEvaluator{})

	if r.Concurrency != 7 || r.MaxAttempts != 5 || r.ShutdownTimeout != 12*time.Second {
		t.Fatalf("unexpected runner settings: %+v", r)
	}
	if r.Consumer != q {
		t.Fatalf("expected runner to consume the given queue")
	}
}

func TestRecoverInFlight(t *testing.T) {
	q := &fakeQueue{}
	recoverInFlight(context.Background(), q)
	if q.recovered != 1 {
		t.Fatalf("expected Recover to run once, got %d", q.recovered)
	}

	failing := &fakeQueue{err: errors.New("redis down")}
	recoverInFlight(context.Background(), failing)
	if failing.recovered != 1 {
		t.Fatalf("expected Recover attempt on failing queue")
	}
}
