package workerproc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-backend/internal/interview"
	"jobboard-backend/internal/queue"
)

type fakeConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Delivery
	acked    []string
	released []string
}

func (f *fakeConsumer) Receive(ctx context.Context, _ int) ([]queue.Delivery, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeConsumer) Ack(_ context.Context, d queue.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, d.Receipt)
	return nil
}

func (f *fakeConsumer) Release(_ context.Context, d queue.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, d.Receipt)
	return nil
}

type fakeEvaluator struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, answerID, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, answerID+"@"+chatID)
	return f.err
}

func delivery(t *testing.T, receipt, answerID string, attempt int) queue.Delivery {
	t.Helper()
	body, err := queue.EncodeMessage(queue.NewMessage(answerID, "chat-1", "req-1"))
	require.NoError(t, err)
	return queue.Delivery{Body: string(body), Receipt: receipt, Attempt: attempt}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{name: "empty", body: "  ", want: ErrEmptyBody{}},
		{name: "garbage", body: "{", want: ErrDecode{}},
		{name: "missing id", body: `{"chat_id":"c","request_id":"r","version":1}`, want: ErrMissingAnswerID{}},
		{name: "future version", body: `{"answer_id":"a","version":9}`, want: ErrDecode{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseMessage(tt.body)
			require.Error(t, err)
			assert.IsType(t, tt.want, err)
		})
	}

	msg, meta, err := ParseMessage(`{"answer_id":" a1 ","chat_id":"c1","version":1}`)
	require.NoError(t, err)
	assert.Equal(t, "a1", msg.AnswerID)
	assert.Len(t, meta.BodySHA, 64)
}

func TestHandleOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		d        func(t *testing.T) queue.Delivery
		evalErr  error
		want     Outcome
		acked    int
		released int
	}{
		{name: "success", d: func(t *testing.T) queue.Delivery { return delivery(t, "r1", "a1", 1) }, want: OutcomeCompleted, acked: 1},
		{name: "undecodable", d: func(*testing.T) queue.Delivery { return queue.Delivery{Body: "nope", Receipt: "r2", Attempt: 1} }, want: OutcomeDropped, acked: 1},
		{name: "transient", d: func(t *testing.T) queue.Delivery { return delivery(t, "r3", "a3", 1) }, evalErr: errors.New("timeout"), want: OutcomeRetried, released: 1},
		{name: "attempts exhausted", d: func(t *testing.T) queue.Delivery { return delivery(t, "r4", "a4", 3) }, evalErr: errors.New("timeout"), want: OutcomeDropped, acked: 1},
		{name: "answer gone", d: func(t *testing.T) queue.Delivery { return delivery(t, "r5", "a5", 1) }, evalErr: fmt.Errorf("load: %w", interview.ErrAnswerNotFound), want: OutcomeDropped, acked: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			consumer := &fakeConsumer{}
			r := &Runner{Consumer: consumer, Evaluator: &fakeEvaluator{err: tt.evalErr}, MaxAttempts: 3}

			got := r.Handle(context.Background(), tt.d(t))

			assert.Equal(t, tt.want, got)
			assert.Len(t, consumer.acked, tt.acked)
			assert.Len(t, consumer.released, tt.released)
		})
	}
}

func TestRunProcessesAndDrains(t *testing.T) {
	consumer := &fakeConsumer{batches: [][]queue.Delivery{
		{delivery(t, "r1", "a1", 1), delivery(t, "r2", "a2", 1)},
		{delivery(t, "r3", "a3", 1)},
	}}
	eval := &fakeEvaluator{}
	r := &Runner{Consumer: consumer, Evaluator: eval, Concurrency: 2, ShutdownTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		consumer.mu.Lock()
		defer consumer.mu.Unlock()
		return len(consumer.acked) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	assert.ElementsMatch(t, []string{"a1@chat-1", "a2@chat-1", "a3@chat-1"}, eval.calls)
}
