package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"tdp/config"
	"tdp/internal/messaging"
	"tdp/internal/messaging/producer"
)

// KafkaConsumer implements the Consumer interface on a consumer group.
// Kafka has no per-record redelivery, so a nack re-publishes the record with
// its delivery_attempt header incremented and then lets the offset advance.
type KafkaConsumer struct {
	reader     *kafka.Reader
	redeliver  recordWriter
	logger     *log.Logger
	tracker    *offsetTracker
	commitMu   sync.Mutex
	topic      string
	retryTopic string
	deadLetter string
	maxAttempt int

	redeliverTries   int
	redeliverBackoff time.Duration
}

// recordWriter is the part of kafka.Writer used for redelivery
type recordWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Defaults for re-publishing a nacked record
const (
	defaultRedeliverTries   = 5
	defaultRedeliverBackoff = 200 * time.Millisecond
	redeliverWriteTimeout   = 10 * time.Second
)

// NewKafkaConsumer creates a new KafkaConsumer instance.
// It fails when the brokers cannot be reached or a configured topic is missing.
func NewKafkaConsumer(ctx context.Context, cfg config.KafkaConsumerConfig, logger *log.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("incomplete kafka configuration: brokers, topic, group_id are all required")
	}

	retryTopic := cfg.RetryTopic
	if retryTopic == "" {
		retryTopic = cfg.Topic
	}

	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: 10 * time.Second}
	for _, topic := range checkedTopics(cfg.Topic, retryTopic, cfg.DeadLetterTopic) {
		if err := producer.CheckTopic(ctx, dialer, cfg.Brokers, topic); err != nil {
			return nil, err
		}
	}

	// Configure Kafka reader
	readerConfig := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		Topic:             cfg.Topic,
		MinBytes:          1,
		MaxBytes:          10e6,            // 10MB
		MaxWait:           1 * time.Second, // Max wait time for message fetch
		CommitInterval:    time.Second,     // Commits are flushed in the background
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Dialer:            dialer,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Printf("Kafka Reader Error: "+msg, args...)
		}),
	}

	// Set start offset based on autoOffsetReset
	switch cfg.AutoOffsetReset {
	case "latest":
		readerConfig.StartOffset = kafka.LastOffset
	case "earliest", "":
		readerConfig.StartOffset = kafka.FirstOffset
	default:
		logger.Printf("Warning: Unknown auto_offset_reset '%s', using earliest", cfg.AutoOffsetReset)
		readerConfig.StartOffset = kafka.FirstOffset
	}

	k := &KafkaConsumer{
		reader: kafka.NewReader(readerConfig),
		redeliver: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			Transport:    &kafka.Transport{ClientID: cfg.ClientID},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Printf("Kafka Redelivery Writer Error: "+msg, args...)
			}),
		},
		logger:     logger,
		tracker:    newOffsetTracker(),
		topic:      cfg.Topic,
		retryTopic: retryTopic,
		deadLetter: cfg.DeadLetterTopic,
		maxAttempt: cfg.MaxDeliveryAttempts,

		redeliverTries:   defaultRedeliverTries,
		redeliverBackoff: defaultRedeliverBackoff,
	}

	logger.Printf("Kafka consumer created, connected to Brokers: %v, Topic: %s, GroupID: %s, RetryTopic: %s", cfg.Brokers, cfg.Topic, cfg.GroupID, retryTopic)
	if cfg.MaxDeliveryAttempts > 0 {
		logger.Printf("Kafka consumer: dead-lettering to %s after %d attempts", cfg.DeadLetterTopic, cfg.MaxDeliveryAttempts)
	}
	return k, nil
}

// checkedTopics lists the distinct non-empty topics the consumer touches
func checkedTopics(topics ...string) []string {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Consume implements the Consumer interface by fetching the next record
func (k *KafkaConsumer) Consume(ctx context.Context) (msg *Delivery, ack func(success bool), err error) {
	kafkaMsg, err := k.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			k.logger.Println("Kafka consumer: Context cancelled, stopping consumption.")
			return nil, nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrClosed
		}
		return nil, nil, err
	}
	k.tracker.track(kafkaMsg.Partition, kafkaMsg.Offset)

	attrs := producer.FromHeaders(kafkaMsg.Headers)
	delivery := &Delivery{
		MessageID:  producer.MessageID(kafkaMsg.Topic, kafkaMsg.Partition, kafkaMsg.Offset),
		Data:       kafkaMsg.Value,
		Attributes: attrs,
		Attempt:    AttemptFromAttributes(attrs),
	}

	var once sync.Once
	ackCallback := func(success bool) {
		once.Do(func() {
			if !success {
				if err := k.republish(kafkaMsg, delivery.Attempt); err != nil {
					// Offset stays uncommitted; the record comes back after a restart or rebalance
					k.logger.Printf("Kafka consumer: Failed to redeliver %s, partition %d commits are held until restart: %v",
						delivery.MessageID, kafkaMsg.Partition, err)
					return
				}
			}
			k.markDone(kafkaMsg)
		})
	}

	return delivery, ackCallback, nil
}

// republish puts a nacked record back on the retry topic, or on the
// dead-letter topic once it has used its attempts. Failed writes are retried
// with doubling backoff up to redeliverTries times.
func (k *KafkaConsumer) republish(m kafka.Message, attempt int) error {
	topic, next := redeliveryTarget(k.retryTopic, k.deadLetter, attempt, k.maxAttempt)

	headers := make([]kafka.Header, 0, len(m.Headers)+1)
	for _, h := range m.Headers {
		if h.Key != messaging.AttrDeliveryAttempt {
			headers = append(headers, h)
		}
	}
	headers = append(headers, kafka.Header{Key: messaging.AttrDeliveryAttempt, Value: []byte(strconv.Itoa(next))})

	record := kafka.Message{Topic: topic, Key: m.Key, Value: m.Value, Headers: headers}
	if err := k.writeWithRetry(record); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	if topic == k.deadLetter && topic != k.retryTopic {
		k.logger.Printf("Kafka consumer: %s dead-lettered to %s after %d attempts", producer.MessageID(m.Topic, m.Partition, m.Offset), topic, attempt)
	}
	return nil
}

func (k *KafkaConsumer) writeWithRetry(record kafka.Message) error {
	tries := k.redeliverTries
	if tries < 1 {
		tries = 1
	}
	backoff := k.redeliverBackoff

	var err error
	for i := 1; i <= tries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), redeliverWriteTimeout)
		err = k.redeliver.WriteMessages(ctx, record)
		cancel()
		if err == nil {
			return nil
		}
		if i == tries {
			break
		}
		k.logger.Printf("Kafka consumer: Redelivery write %d/%d to %s failed: %v. Retrying in %s", i, tries, record.Topic, err, backoff)
		time.Sleep(backoff)
		backoff *= 2
	}
	return fmt.Errorf("after %d attempts: %w", tries, err)
}

// redeliveryTarget picks the topic and attempt number for a nacked record
func redeliveryTarget(retryTopic, deadLetterTopic string, attempt, maxAttempts int) (string, int) {
	if ShouldDeadLetter(attempt, maxAttempts) && deadLetterTopic != "" {
		return deadLetterTopic, attempt
	}
	return retryTopic, attempt + 1
}

func (k *KafkaConsumer) markDone(m kafka.Message) {
	k.commitMu.Lock()
	defer k.commitMu.Unlock()

	offset, ok := k.tracker.complete(m.Partition, m.Offset)
	if !ok {
		return
	}
	commit := kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: offset}
	if err := k.reader.CommitMessages(context.Background(), commit); err != nil {
		k.logger.Printf("Kafka consumer: Failed to commit partition %d offset %d: %v", m.Partition, offset, err)
	}
}

// Close implements the Consumer interface by closing the Kafka reader
func (k *KafkaConsumer) Close() error {
	k.logger.Println("Closing Kafka consumer...")
	werr := k.redeliver.Close()
	if err := k.reader.Close(); err != nil {
		return err
	}
	return werr
}

// Ensure KafkaConsumer implements the Consumer interface
var _ Consumer = (*KafkaConsumer)(nil)
