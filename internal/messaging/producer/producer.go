package producer

import (
	"context"

	"tdp/internal/messaging"
)

// Producer defines the interface for message queue producer
type Producer interface {
	// Publish sends a message and blocks until the broker confirms it,
	// returning the broker-assigned message id
	Publish(ctx context.Context, msg *messaging.Message) (string, error)

	// Close closes the producer connection
	Close() error
}
