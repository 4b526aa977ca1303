package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// BrokerCheckTimeout bounds the startup connectivity check
const BrokerCheckTimeout = 10 * time.Second

// CheckTopic dials the brokers in order and reads the topic's partitions from
// the first one that answers. It fails when no broker is reachable or the
// topic has no partitions.
func CheckTopic(ctx context.Context, dialer *kafka.Dialer, brokers []string, topic string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	ctx, cancel := context.WithTimeout(ctx, BrokerCheckTimeout)
	defer cancel()

	var errs []error
	for _, broker := range brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("dial %s: %w", broker, err))
			continue
		}
		partitions, err := conn.ReadPartitions(topic)
		conn.Close()
		if err != nil {
			return fmt.Errorf("read partitions of %s from %s: %w", topic, broker, err)
		}
		if len(partitions) == 0 {
			return fmt.Errorf("topic %s has no partitions", topic)
		}
		return nil
	}
	return fmt.Errorf("kafka brokers unreachable: %w", errors.Join(errs...))
}
