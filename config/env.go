package config

import (
	"net"
	"strings"

	"github.com/spf13/viper"
)

// Environment variables understood by both processes
const (
	EnvPort           = "PORT"
	EnvProjectID      = "PROJECT_ID"
	EnvTopicID        = "TOPIC_ID"
	EnvSubscriptionID = "SUBSCRIPTION_ID"
	EnvKafkaBrokers   = "KAFKA_BROKERS"
	EnvStoreDriver    = "STORE_DRIVER"
	EnvStoreDSN       = "STORE_DSN"
	EnvStorePath      = "STORE_PATH"
)

// NewEnv returns a viper instance bound to the environment variables above
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	for key, env := range map[string]string{
		"port":            EnvPort,
		"project-id":      EnvProjectID,
		"topic-id":        EnvTopicID,
		"subscription-id": EnvSubscriptionID,
		"kafka-brokers":   EnvKafkaBrokers,
		"store-driver":    EnvStoreDriver,
		"store-dsn":       EnvStoreDSN,
		"store-path":      EnvStorePath,
	} {
		_ = v.BindEnv(key, env)
	}
	return v
}

// ApplyGatewayEnv overlays environment settings onto cfg
func ApplyGatewayEnv(cfg *ApiGatewayConfig, v *viper.Viper) {
	if v.IsSet("port") {
		cfg.HttpListenAddr = net.JoinHostPort("", v.GetString("port"))
	}
	if v.IsSet("project-id") {
		cfg.ProjectID = v.GetString("project-id")
	}
	if v.IsSet("topic-id") {
		cfg.KafkaProducer.Topic = v.GetString("topic-id")
	}
	if v.IsSet("kafka-brokers") {
		cfg.KafkaProducer.Brokers = splitList(v.GetString("kafka-brokers"))
	}
}

// ApplyEngineEnv overlays environment settings onto cfg
func ApplyEngineEnv(cfg *EngineConfig, v *viper.Viper) {
	if v.IsSet("port") {
		cfg.Monitoring.HealthListenAddr = net.JoinHostPort("", v.GetString("port"))
	}
	if v.IsSet("project-id") {
		cfg.ProjectID = v.GetString("project-id")
	}
	if v.IsSet("topic-id") {
		cfg.KafkaConsumer.Topic = v.GetString("topic-id")
	}
	if v.IsSet("subscription-id") {
		cfg.KafkaConsumer.GroupID = v.GetString("subscription-id")
	}
	if v.IsSet("kafka-brokers") {
		cfg.KafkaConsumer.Brokers = splitList(v.GetString("kafka-brokers"))
	}
	if v.IsSet("store-driver") {
		cfg.Store.Driver = v.GetString("store-driver")
	}
	if v.IsSet("store-dsn") {
		cfg.Store.DSN = v.GetString("store-dsn")
	}
	if v.IsSet("store-path") {
		cfg.Store.Path = v.GetString("store-path")
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
