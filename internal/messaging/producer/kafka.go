package producer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"tdp/config"
	"tdp/internal/messaging"
)

// publishTokenHeader correlates a written record with the completion callback
const publishTokenHeader = "publish_token"

// KafkaProducer implements the Producer interface
type KafkaProducer struct {
	writer *kafka.Writer
	logger *log.Logger
	topic  string

	mu      sync.Mutex
	offsets map[string]string // publish token -> topic/partition/offset
}

// NewKafkaProducer creates a new KafkaProducer after checking that the topic
// is reachable. Writes are synchronous so Publish only returns once the broker
// has the record.
func NewKafkaProducer(ctx context.Context, cfg config.KafkaProducerConfig, logger *log.Logger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka producer configuration incomplete: both brokers and topic are required")
	}

	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: BrokerCheckTimeout}
	if err := CheckTopic(ctx, dialer, cfg.Brokers, cfg.Topic); err != nil {
		return nil, err
	}

	// Parse required_acks setting
	var requiredAcks kafka.RequiredAcks
	switch cfg.RequiredAcks {
	case "none":
		requiredAcks = kafka.RequireNone
	case "one":
		requiredAcks = kafka.RequireOne
	default:
		requiredAcks = kafka.RequireAll
	}

	p := &KafkaProducer{
		logger:  logger,
		topic:   cfg.Topic,
		offsets: make(map[string]string),
	}

	transport := &kafka.Transport{ClientID: cfg.ClientID}

	p.writer = &kafka.Writer{
		Addr:      kafka.TCP(cfg.Brokers...),
		Topic:     cfg.Topic,
		Balancer:  &kafka.Hash{}, // Keyed by tenant_id so a tenant stays on one partition
		Transport: transport,

		BatchTimeout: cfg.BatchTimeout,

		// Reliability settings
		RequiredAcks: requiredAcks,
		Async:        false,

		// Performance settings
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,

		Completion: p.complete,

		// Error handling
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Printf("Kafka Writer Error: "+msg, args...)
		}),
	}

	logger.Printf("Kafka producer created, connected to Brokers: %v, Topic: %s", cfg.Brokers, cfg.Topic)
	return p, nil
}

// complete runs on the writer goroutine before WriteMessages returns
func (p *KafkaProducer) complete(messages []kafka.Message, err error) {
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range messages {
		token := headerValue(m.Headers, publishTokenHeader)
		if token == "" {
			continue
		}
		p.offsets[token] = MessageID(m.Topic, m.Partition, m.Offset)
	}
}

func (p *KafkaProducer) takeMessageID(token string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.offsets[token]
	delete(p.offsets, token)
	return id, ok
}

// Publish writes a message and waits for the broker acknowledgement
func (p *KafkaProducer) Publish(ctx context.Context, msg *messaging.Message) (string, error) {
	token := uuid.NewString()
	kafkaMsg := kafka.Message{
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: ToHeaders(msg.Attributes, kafka.Header{Key: publishTokenHeader, Value: []byte(token)}),
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		p.takeMessageID(token)
		p.logger.Printf("Failed to publish Kafka message (key: %s): %v", msg.Key, err)
		return "", fmt.Errorf("failed to write to Kafka: %w", err)
	}

	id, ok := p.takeMessageID(token)
	if !ok {
		// Completion is not invoked for RequireNone writes
		id = token
	}
	return id, nil
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	p.logger.Println("Closing Kafka producer...")
	return p.writer.Close()
}

// MessageID formats the broker coordinates of a record
func MessageID(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s/%d/%d", topic, partition, offset)
}

// ToHeaders converts attributes into Kafka record headers, appending extra as-is
func ToHeaders(attrs map[string]string, extra ...kafka.Header) []kafka.Header {
	headers := make([]kafka.Header, 0, len(attrs)+len(extra))
	for k, v := range attrs {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return append(headers, extra...)
}

// FromHeaders converts Kafka record headers into attributes; later keys win
func FromHeaders(headers []kafka.Header) map[string]string {
	attrs := make(map[string]string, len(headers))
	for _, h := range headers {
		attrs[h.Key] = string(h.Value)
	}
	return attrs
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

var _ Producer = (*KafkaProducer)(nil) // Compile-time interface check
