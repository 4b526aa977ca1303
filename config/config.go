package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default file names inside a configuration directory
const (
	GatewayConfigFile = "ingestion.defaults.yml"
	EngineConfigFile  = "worker.defaults.yml"
)

// Config represents the complete application configuration
type Config struct {
	Engine     *EngineConfig
	ApiGateway *ApiGatewayConfig
}

// LoadConfig loads all configuration files from a directory
// Missing files leave the matching section nil
func LoadConfig(configDir string) (*Config, error) {
	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of config directory: %w", err)
	}

	config := &Config{}

	// Load engine config
	enginePath := filepath.Join(absDir, EngineConfigFile)
	if _, err := os.Stat(enginePath); err == nil {
		engineCfg, err := LoadEngineConfig(enginePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load engine config: %w", err)
		}
		config.Engine = engineCfg
	}

	// Load API gateway config
	apiGatewayPath := filepath.Join(absDir, GatewayConfigFile)
	if _, err := os.Stat(apiGatewayPath); err == nil {
		apiGatewayCfg, err := LoadApiGatewayConfig(apiGatewayPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load API gateway config: %w", err)
		}
		config.ApiGateway = apiGatewayCfg
	}

	return config, nil
}
