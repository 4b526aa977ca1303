package consumer

import (
	"context"
	"errors"
	"strconv"

	"tdp/internal/messaging"
)

// ErrClosed is returned by Consume once the consumer has been closed and drained
var ErrClosed = errors.New("consumer closed")

// Delivery is one delivered copy of a queued message
type Delivery struct {
	MessageID  string
	Data       []byte
	Attributes map[string]string
	Attempt    int // Starts at 1, incremented on every redelivery of the same message
}

// Size is the number of payload bytes counted against flow control
func (d *Delivery) Size() int {
	if d == nil {
		return 0
	}
	return len(d.Data)
}

// Consumer defines the interface for message queue consumers.
type Consumer interface {
	// Consume blocks until a message is received or the context is cancelled.
	// It returns the delivery, an acknowledgement callback, and any error that occurred.
	// The ack callback: ack(true) for successful processing (message will not be redelivered);
	// ack(false) for temporary failure (message will be redelivered with Attempt+1).
	// The callback may be invoked from any goroutine, exactly once.
	Consume(ctx context.Context) (msg *Delivery, ack func(success bool), err error)

	// Close gracefully shuts down the consumer connection.
	Close() error
}

// AttemptFromAttributes reads the broker delivery counter, defaulting to 1
func AttemptFromAttributes(attrs map[string]string) int {
	n, err := strconv.Atoi(attrs[messaging.AttrDeliveryAttempt])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ShouldDeadLetter reports whether a nacked delivery has used up its attempts.
// maxAttempts <= 0 means redeliver forever.
func ShouldDeadLetter(attempt, maxAttempts int) bool {
	return maxAttempts > 0 && attempt >= maxAttempts
}
