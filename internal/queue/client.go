package queue

import "context"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Delivery is one received message. Receipt identifies it to Ack/Release.
type Delivery struct {
	Body    string
	Receipt string
	// Attempt is 1 on the first delivery.
	Attempt int
}

// Consumer pulls messages for the worker. Receive blocks for at most the
// backend's wait time and may return no deliveries.
type Consumer interface {
	Receive(ctx context.Context, max int) ([]Delivery, error)
	// Ack removes a handled message.
	Ack(ctx context.Context, d Delivery) error
	// Release makes a failed message available for another attempt.
	Release(ctx context.Context, d Delivery) error
}

// Queue is a backend that both produces and consumes.
type Queue interface {
	Client
	Consumer
}
