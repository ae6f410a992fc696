package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/queue"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/workerproc"
)

// recoverer is implemented by backends that park in-flight messages, such as
// the Redis list queue.
type recoverer interface {
	Recover(ctx context.Context) (int, error)
}

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg,
		bootstrap.WithDBOptions(db.Defaults(db.ProfileWorker).FromEnv()),
		bootstrap.WithoutRouter(),
	)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	q := app.Queue
	if q == nil {
		q, err = bootstrap.BuildQueue(ctx, cfg, app.Redis)
		if err != nil {
			log.Fatalf("build queue: %v", err)
		}
	}

	recoverInFlight(ctx, q)
	newRunner(cfg, q, app.Interview).Run(ctx)
}

func newRunner(cfg config.Config, q queue.Consumer, eval workerproc.Evaluator) *workerproc.Runner {
	return &workerproc.Runner{
		Consumer:        q,
		Evaluator:       eval,
		Concurrency:     cfg.WorkerConcurrency,
		MaxAttempts:     cfg.QueueMaxAttempts,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// recoverInFlight requeues messages a previous worker took but never acked.
// Only one worker per queue should run it at start.
func recoverInFlight(ctx context.Context, q queue.Consumer) {
	r, ok := q.(recoverer)
	if !ok {
		return
	}
	n, err := r.Recover(ctx)
	if err != nil {
		telemetry.Error("worker.recover_failed", map[string]any{"error": err})
		return
	}
	if n > 0 {
		telemetry.Warn("worker.recovered", map[string]any{"count": n})
	}
}
