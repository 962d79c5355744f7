package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
}

func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/payments.yaml"
	}

	// Ensure absolute path
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Payment.RenewalLookahead == 0 {
		c.Service.Payment.RenewalLookahead = 7 * 24 * time.Hour
	}
	if c.Service.VAT.Timeout == 0 {
		c.Service.VAT.Timeout = 5 * time.Second
	}
	if c.Service.VAT.URL == "" {
		c.Service.VAT.URL = "https://ec.europa.eu/taxation_customs/vies/rest-api"
	}
	if c.Service.Payment.ThePay.GateURL == "" {
		c.Service.Payment.ThePay.GateURL = "https://www.thepay.cz/gate/"
	}
	if c.Service.Payment.HostedOrigin == "" {
		c.Service.Payment.HostedOrigin = c.Service.Payment.NotifyURL
	}
}
