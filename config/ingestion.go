package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// MockBroker selects the in-process broker instead of Kafka
const MockBroker = "mock://local"

// KafkaProducerConfig defines configuration for Kafka producer
type KafkaProducerConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`

	BatchTimeout time.Duration `yaml:"batch_timeout"` // How long the writer waits to fill a batch
	RequiredAcks string        `yaml:"required_acks"` // none, one or all

	// Performance settings
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

// IsMock reports whether the producer should use the in-process broker
func (c *KafkaProducerConfig) IsMock() bool {
	return len(c.Brokers) > 0 && c.Brokers[0] == MockBroker
}

// SetDefaults sets reasonable default values for Kafka producer configuration
func (c *KafkaProducerConfig) SetDefaults() {
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
		fmt.Printf("Warning: kafka_producer.required_acks not set, defaulting to %s\n", c.RequiredAcks)
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
}

// HttpServerConfig defines HTTP server configuration
type HttpServerConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// SetDefaults fills zero timeouts
func (c *HttpServerConfig) SetDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = 1 << 20 // 1 MB
	}
}

// ApiGatewayConfig defines all configurations required for the ingestion gateway
type ApiGatewayConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`
	GrpcListenAddr string `yaml:"grpc_listen_addr"` // Optional gRPC health endpoint

	ProjectID   string `yaml:"project_id"`
	ServiceName string `yaml:"service_name"`
	Version     string `yaml:"version"`

	PublishTimeout time.Duration `yaml:"publish_timeout"` // Bound on waiting for broker confirmation
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`

	KafkaProducer KafkaProducerConfig `yaml:"kafka_producer"`
	HttpServer    HttpServerConfig    `yaml:"http_server"`
}

// SetDefaults sets reasonable default values for the gateway configuration
func (c *ApiGatewayConfig) SetDefaults() {
	if c.HttpListenAddr == "" {
		c.HttpListenAddr = ":8080"
		fmt.Printf("Warning: http_listen_addr not set, defaulting to %s\n", c.HttpListenAddr)
	}
	if c.ServiceName == "" {
		c.ServiceName = "data-processor-api"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.KafkaProducer.ClientID == "" {
		c.KafkaProducer.ClientID = c.ProjectID
	}
	c.KafkaProducer.SetDefaults()
	c.HttpServer.SetDefaults()
}

// Validate checks the fields the gateway cannot run without
func (c *ApiGatewayConfig) Validate() error {
	if len(c.KafkaProducer.Brokers) == 0 {
		return fmt.Errorf("configuration error: kafka_producer.brokers is required")
	}
	if !c.KafkaProducer.IsMock() && c.KafkaProducer.Topic == "" {
		return fmt.Errorf("configuration error: kafka_producer.topic is required")
	}
	switch c.KafkaProducer.RequiredAcks {
	case "none", "one", "all":
	default:
		return fmt.Errorf("configuration error: unknown kafka_producer.required_acks %q", c.KafkaProducer.RequiredAcks)
	}
	return nil
}

// LoadApiGatewayConfig loads API gateway configuration from the specified YAML file path
// Environment overrides are applied before defaults and validation
func LoadApiGatewayConfig(path string) (*ApiGatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API Gateway config file '%s': %w", path, err)
	}

	var cfg ApiGatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse API Gateway YAML config file: %w", err)
	}

	ApplyGatewayEnv(&cfg, NewEnv())
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
