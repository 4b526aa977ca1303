package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// KafkaConsumerConfig defines configuration for Kafka consumer
type KafkaConsumerConfig struct {
	Brokers           []string      `yaml:"brokers"`            // e.g., ["kafka1:9092", "kafka2:9092"]
	Topic             string        `yaml:"topic"`              // Topic to consume from
	GroupID           string        `yaml:"group_id"`           // Consumer group ID (the subscription)
	ClientID          string        `yaml:"client_id"`          // Reported to the brokers
	SessionTimeout    time.Duration `yaml:"session_timeout"`    // Kafka session timeout
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Kafka heartbeat interval
	AutoOffsetReset   string        `yaml:"auto_offset_reset"`  // earliest/latest

	// Redelivery policy
	RetryTopic          string `yaml:"retry_topic"`           // Nacked messages are re-published here; defaults to Topic
	DeadLetterTopic     string `yaml:"dead_letter_topic"`     // Receives messages past MaxDeliveryAttempts
	MaxDeliveryAttempts int    `yaml:"max_delivery_attempts"` // 0 disables dead-lettering
}

// IsMock reports whether the consumer should use the in-process broker
func (c *KafkaConsumerConfig) IsMock() bool {
	return len(c.Brokers) > 0 && c.Brokers[0] == MockBroker
}

// SetDefaults sets reasonable default values for Kafka consumer configuration
func (c *KafkaConsumerConfig) SetDefaults() {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
		fmt.Printf("Warning: kafka_consumer.session_timeout not set, defaulting to %s\n", c.SessionTimeout)
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 3 * time.Second
		fmt.Printf("Warning: kafka_consumer.heartbeat_interval not set, defaulting to %s\n", c.HeartbeatInterval)
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
		fmt.Printf("Warning: kafka_consumer.auto_offset_reset not set, defaulting to %s\n", c.AutoOffsetReset)
	}
	if c.RetryTopic == "" {
		c.RetryTopic = c.Topic
	}
}

// FlowControlConfig caps the work a worker accepts from the broker at once
type FlowControlConfig struct {
	MaxMessages int   `yaml:"max_messages"` // Envelopes in flight
	MaxBytes    int64 `yaml:"max_bytes"`    // Payload bytes in flight
}

// SetDefaults sets the 100 messages / 100 MB ceiling
func (c *FlowControlConfig) SetDefaults() {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 100
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 100 * 1024 * 1024
	}
}

// FaultInjectionConfig drives the deterministic crash path used to exercise redelivery
type FaultInjectionConfig struct {
	Disabled           bool   `yaml:"disabled"`
	Trigger            string `yaml:"trigger"`              // Case-insensitive substring
	MaxFailingAttempts int    `yaml:"max_failing_attempts"` // Attempts up to and including this one fail
}

// SetDefaults sets the crash_test trigger failing the first five attempts
func (c *FaultInjectionConfig) SetDefaults() {
	if c.Trigger == "" {
		c.Trigger = "crash_test"
	}
	if c.MaxFailingAttempts <= 0 {
		c.MaxFailingAttempts = 5
	}
}

// WorkerConfig defines configuration for worker processing
type WorkerConfig struct {
	ProcessingPerChar  time.Duration `yaml:"processing_per_char"`  // Simulated cost per character
	ConsumerRetryDelay time.Duration `yaml:"consumer_retry_delay"` // Delay when consumer encounters errors
	ShutdownGrace      time.Duration `yaml:"shutdown_grace"`       // How long in-flight work may finish on shutdown
	Filter             string        `yaml:"filter"`               // CEL expression over message attributes
}

// SetDefaults sets reasonable default values for worker configuration
func (c *WorkerConfig) SetDefaults() {
	if c.ProcessingPerChar <= 0 {
		c.ProcessingPerChar = 50 * time.Millisecond
	}
	if c.ConsumerRetryDelay <= 0 {
		c.ConsumerRetryDelay = 5 * time.Second
		fmt.Printf("Warning: worker.consumer_retry_delay not set, defaulting to %s\n", c.ConsumerRetryDelay)
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
		fmt.Printf("Warning: worker.shutdown_grace not set, defaulting to %s\n", c.ShutdownGrace)
	}
}

// WorkerMonitoringConfig defines the liveness surfaces of the worker
type WorkerMonitoringConfig struct {
	HealthListenAddr string `yaml:"health_listen_addr"` // HTTP liveness endpoint
	GrpcListenAddr   string `yaml:"grpc_listen_addr"`   // Optional gRPC health endpoint
	ServiceName      string `yaml:"service_name"`
}

// SetDefaults sets reasonable default values for monitoring configuration
func (c *WorkerMonitoringConfig) SetDefaults() {
	if c.HealthListenAddr == "" {
		c.HealthListenAddr = ":8080"
		fmt.Printf("Warning: monitoring.health_listen_addr not set, defaulting to %s\n", c.HealthListenAddr)
	}
	if c.ServiceName == "" {
		c.ServiceName = "data-processor-worker"
	}
}

// EngineConfig defines all configuration for the processing worker
type EngineConfig struct {
	ProjectID string `yaml:"project_id"`

	KafkaConsumer  KafkaConsumerConfig    `yaml:"kafka_consumer"`
	FlowControl    FlowControlConfig      `yaml:"flow_control"`
	Worker         WorkerConfig           `yaml:"worker"`
	FaultInjection FaultInjectionConfig   `yaml:"fault_injection"`
	Monitoring     WorkerMonitoringConfig `yaml:"monitoring"`
	Store          StoreConfig            `yaml:"store"`
}

// SetDefaults applies defaults to every section
func (c *EngineConfig) SetDefaults() {
	if c.KafkaConsumer.ClientID == "" {
		c.KafkaConsumer.ClientID = c.ProjectID
	}
	c.KafkaConsumer.SetDefaults()
	c.FlowControl.SetDefaults()
	c.Worker.SetDefaults()
	c.FaultInjection.SetDefaults()
	c.Monitoring.SetDefaults()
	c.Store.SetDefaults()
}

// Validate checks the fields the worker cannot run without
func (c *EngineConfig) Validate() error {
	if len(c.KafkaConsumer.Brokers) == 0 {
		return fmt.Errorf("configuration error: kafka_consumer.brokers is required")
	}
	if !c.KafkaConsumer.IsMock() {
		if c.KafkaConsumer.Topic == "" || c.KafkaConsumer.GroupID == "" {
			return fmt.Errorf("configuration error: kafka_consumer.topic and kafka_consumer.group_id are required")
		}
		if c.KafkaConsumer.MaxDeliveryAttempts > 0 && c.KafkaConsumer.DeadLetterTopic == "" {
			return fmt.Errorf("configuration error: kafka_consumer.dead_letter_topic is required when max_delivery_attempts is set")
		}
	}
	if c.KafkaConsumer.MaxDeliveryAttempts < 0 {
		return fmt.Errorf("configuration error: kafka_consumer.max_delivery_attempts cannot be negative")
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration error: %w", err)
	}
	return nil
}

// LoadEngineConfig loads configuration from the specified YAML file path
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg EngineConfig
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}

	ApplyEngineEnv(&cfg, NewEnv())
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
