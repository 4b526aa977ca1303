package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// clearEnv blanks the overlay variables; viper treats empty values as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvPort, EnvProjectID, EnvTopicID, EnvSubscriptionID, EnvKafkaBrokers, EnvStoreDriver, EnvStoreDSN, EnvStorePath} {
		t.Setenv(k, "")
	}
}

func TestLoadApiGatewayConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), GatewayConfigFile, `
kafka_producer:
  brokers: ["kafka:9092"]
  topic: "ingest"
`)

	cfg, err := LoadApiGatewayConfig(path)
	if err != nil {
		t.Fatalf("LoadApiGatewayConfig: %v", err)
	}
	if cfg.HttpListenAddr != ":8080" {
		t.Errorf("HttpListenAddr = %q, want :8080", cfg.HttpListenAddr)
	}
	if cfg.PublishTimeout != 5*time.Second {
		t.Errorf("PublishTimeout = %v, want 5s", cfg.PublishTimeout)
	}
	if cfg.KafkaProducer.RequiredAcks != "all" {
		t.Errorf("RequiredAcks = %q, want all", cfg.KafkaProducer.RequiredAcks)
	}
	if cfg.MaxBodyBytes != 10*1024*1024 {
		t.Errorf("MaxBodyBytes = %d", cfg.MaxBodyBytes)
	}
}

func TestLoadApiGatewayConfigRequiresTopic(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), GatewayConfigFile, `
kafka_producer:
  brokers: ["kafka:9092"]
`)
	if _, err := LoadApiGatewayConfig(path); err == nil {
		t.Fatal("expected error for missing topic")
	}
}

func TestGatewayEnvOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9090")
	t.Setenv(EnvTopicID, "from-env")
	t.Setenv(EnvKafkaBrokers, "a:9092, b:9092")
	t.Setenv(EnvProjectID, "proj-1")

	path := writeFile(t, t.TempDir(), GatewayConfigFile, `
http_listen_addr: ":8080"
kafka_producer:
  brokers: ["kafka:9092"]
  topic: "ingest"
`)
	cfg, err := LoadApiGatewayConfig(path)
	if err != nil {
		t.Fatalf("LoadApiGatewayConfig: %v", err)
	}
	if cfg.HttpListenAddr != ":9090" {
		t.Errorf("HttpListenAddr = %q, want :9090", cfg.HttpListenAddr)
	}
	if cfg.KafkaProducer.Topic != "from-env" {
		t.Errorf("Topic = %q, want from-env", cfg.KafkaProducer.Topic)
	}
	if len(cfg.KafkaProducer.Brokers) != 2 || cfg.KafkaProducer.Brokers[1] != "b:9092" {
		t.Errorf("Brokers = %v", cfg.KafkaProducer.Brokers)
	}
	if cfg.KafkaProducer.ClientID != "proj-1" {
		t.Errorf("ClientID = %q, want proj-1", cfg.KafkaProducer.ClientID)
	}
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), EngineConfigFile, `
kafka_consumer:
  brokers: ["kafka:9092"]
  topic: "ingest"
  group_id: "ingest-sub"
`)

	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if cfg.FlowControl.MaxMessages != 100 || cfg.FlowControl.MaxBytes != 100*1024*1024 {
		t.Errorf("FlowControl = %+v", cfg.FlowControl)
	}
	if cfg.FaultInjection.Trigger != "crash_test" || cfg.FaultInjection.MaxFailingAttempts != 5 || cfg.FaultInjection.Disabled {
		t.Errorf("FaultInjection = %+v", cfg.FaultInjection)
	}
	if cfg.Worker.ProcessingPerChar != 50*time.Millisecond {
		t.Errorf("ProcessingPerChar = %v", cfg.Worker.ProcessingPerChar)
	}
	if cfg.KafkaConsumer.RetryTopic != "ingest" {
		t.Errorf("RetryTopic = %q, want ingest", cfg.KafkaConsumer.RetryTopic)
	}
	if cfg.Store.Driver != StoreDriverMemory {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
}

func TestEngineEnvOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSubscriptionID, "sub-from-env")
	t.Setenv(EnvStoreDriver, StoreDriverPebble)
	t.Setenv(EnvStorePath, "/tmp/pebble")
	t.Setenv(EnvPort, "7070")

	path := writeFile(t, t.TempDir(), EngineConfigFile, `
kafka_consumer:
  brokers: ["kafka:9092"]
  topic: "ingest"
`)
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if cfg.KafkaConsumer.GroupID != "sub-from-env" {
		t.Errorf("GroupID = %q", cfg.KafkaConsumer.GroupID)
	}
	if cfg.Store.Driver != StoreDriverPebble || cfg.Store.Path != "/tmp/pebble" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Monitoring.HealthListenAddr != ":7070" {
		t.Errorf("HealthListenAddr = %q", cfg.Monitoring.HealthListenAddr)
	}
}

func TestEngineConfigValidation(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"no brokers": `
kafka_consumer:
  topic: "ingest"
  group_id: "sub"
`,
		"dead letter without topic": `
kafka_consumer:
  brokers: ["kafka:9092"]
  topic: "ingest"
  group_id: "sub"
  max_delivery_attempts: 5
`,
		"postgres without dsn": `
kafka_consumer:
  brokers: ["kafka:9092"]
  topic: "ingest"
  group_id: "sub"
store:
  driver: postgres
`,
		"unknown driver": `
kafka_consumer:
  brokers: ["mock://local"]
store:
  driver: cassandra
`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), EngineConfigFile, body)
			if _, err := LoadEngineConfig(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfigDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, EngineConfigFile, `
kafka_consumer:
  brokers: ["mock://local"]
`)

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine == nil {
		t.Fatal("expected engine config")
	}
	if cfg.ApiGateway != nil {
		t.Error("expected nil gateway config when file is absent")
	}
	if !cfg.Engine.KafkaConsumer.IsMock() {
		t.Error("expected mock broker")
	}
}
