package queue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/redis/go-redis/v9"
)

// fakeLists keeps lists with index 0 as the LEFT end.
type fakeLists struct {
	lists map[string][]string
}

func newFakeLists() *fakeLists { return &fakeLists{lists: map[string][]string{}} }

func (f *fakeLists) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		var s string
		switch t := v.(type) {
		case []byte:
			s = string(t)
		case string:
			s = t
		}
		f.lists[key] = append([]string{s}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeLists) pop(key, pos string) (string, bool) {
	l := f.lists[key]
	if len(l) == 0 {
		return "", false
	}
	var v string
	if pos == "LEFT" {
		v, f.lists[key] = l[0], l[1:]
	} else {
		v, f.lists[key] = l[len(l)-1], l[:len(l)-1]
	}
	return v, true
}

func (f *fakeLists) push(key, pos, v string) {
	if pos == "LEFT" {
		f.lists[key] = append([]string{v}, f.lists[key]...)
		return
	}
	f.lists[key] = append(f.lists[key], v)
}

func (f *fakeLists) LMove(_ context.Context, src, dst, srcpos, dstpos string) *redis.StringCmd {
	v, ok := f.pop(src, srcpos)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	f.push(dst, dstpos, v)
	return redis.NewStringResult(v, nil)
}

func (f *fakeLists) BLMove(ctx context.Context, src, dst, srcpos, dstpos string, _ time.Duration) *redis.StringCmd {
	return f.LMove(ctx, src, dst, srcpos, dstpos)
}

func (f *fakeLists) LRem(_ context.Context, key string, count int64, value interface{}) *redis.IntCmd {
	var removed int64
	out := f.lists[key][:0]
	for _, v := range f.lists[key] {
		if v == value && removed < count {
			removed++
			continue
		}
		out = append(out, v)
	}
	f.lists[key] = out
	return redis.NewIntResult(removed, nil)
}

func TestRedisQueueFIFOAndAck(t *testing.T) {
	ctx := context.Background()
	lists := newFakeLists()
	q := newRedisQueue(lists, "evaluations", time.Millisecond)

	for _, id := range []string{"a1", "a2", "a3"} {
		if err := q.Send(ctx, NewMessage(id, "c1", "")); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	got, err := q.Receive(ctx, 2)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	first, _ := DecodeMessage([]byte(got[0].Body))
	if first.AnswerID != "a1" || got[0].Attempt != 1 {
		t.Fatalf("expected oldest message first, got %+v attempt %d", first, got[0].Attempt)
	}
	if len(lists.lists["evaluations:processing"]) != 2 {
		t.Fatalf("expected deliveries in processing list")
	}

	if err := q.Ack(ctx, got[0]); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if len(lists.lists["evaluations:processing"]) != 1 {
		t.Fatalf("ack must remove the entry from the processing list")
	}
}

func TestRedisQueueReleaseBumpsAttempt(t *testing.T) {
	ctx := context.Background()
	q := newRedisQueue(newFakeLists(), "q", time.Millisecond)
	_ = q.Send(ctx, NewMessage("a1", "c1", ""))

	got, _ := q.Receive(ctx, 1)
	if err := q.Release(ctx, got[0]); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, _ := q.Receive(ctx, 1)
	if len(again) != 1 || again[0].Attempt != 2 {
		t.Fatalf("expected redelivery with attempt 2, got %+v", again)
	}
}

func TestRedisQueueEmptyAndRecover(t *testing.T) {
	ctx := context.Background()
	lists := newFakeLists()
	q := newRedisQueue(lists, "q", time.Millisecond)

	got, err := q.Receive(ctx, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty receive, got %v err=%v", got, err)
	}

	_ = q.Send(ctx, NewMessage("a1", "c1", ""))
	_, _ = q.Receive(ctx, 1)
	n, err := q.Recover(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Recover = %d, %v", n, err)
	}
	if len(lists.lists["q"]) != 1 || len(lists.lists["q:processing"]) != 0 {
		t.Fatalf("unexpected lists after recover: %+v", lists.lists)
	}
}

type fakeSQS struct {
	sent     []string
	messages []types.Message
	deleted  []string
	released []int32
	err      error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if in.MaxNumberOfMessages > sqsMaxBatch {
		return nil, errors.New("batch too large")
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(_ context.Context, in *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	f.released = append(f.released, in.VisibilityTimeout)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func TestSQSClient(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSQS{messages: []types.Message{{
		Body:          aws.String(`{"answer_id":"a1","chat_id":"c1","version":1}`),
		ReceiptHandle: aws.String("rh-1"),
		Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
	}}}
	s := &SQSClient{client: fake, queueURL: "https://sqs/q"}

	if err := s.Send(ctx, NewMessage("a1", "c1", "r1")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.sent) != 1 || !strings.Contains(fake.sent[0], `"answer_id":"a1"`) {
		t.Fatalf("unexpected sent bodies %v", fake.sent)
	}

	got, err := s.Receive(ctx, 50)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(got) != 1 || got[0].Receipt != "rh-1" || got[0].Attempt != 3 {
		t.Fatalf("unexpected deliveries %+v", got)
	}

	if err := s.Ack(ctx, got[0]); err != nil || len(fake.deleted) != 1 {
		t.Fatalf("Ack: %v deleted=%v", err, fake.deleted)
	}
	if err := s.Release(ctx, got[0]); err != nil || len(fake.released) != 1 || fake.released[0] != 30 {
		t.Fatalf("Release: %v released=%v", err, fake.released)
	}
}

func TestSQSSendError(t *testing.T) {
	s := &SQSClient{client: &fakeSQS{err: errors.New("boom")}, queueURL: "q"}
	if err := s.Send(context.Background(), Message{}); err == nil || !strings.Contains(err.Error(), "sqs send message") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "", " "); err == nil {
		t.Fatalf("expected error without queue url")
	}
}
