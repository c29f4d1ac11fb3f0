package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

var structValidator = validator.New()

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if cfg.Settings.Backend == "" {
		cfg.Settings.Backend = BackendFile
	}
	if cfg.Transport.Protocol == "" {
		cfg.Transport.Protocol = ProtocolHTTP
	}
	if cfg.Transport.RateLimit > 0 && cfg.Transport.RateBurst <= 0 {
		cfg.Transport.RateBurst = 1
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := structValidator.Struct(cfg); err != nil {
		return err
	}

	if cfg.Settings.Backend != BackendMemory && cfg.Settings.Path == "" {
		return fmt.Errorf("settings.path is required for the %s backend", cfg.Settings.Backend)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address == "" {
			return fmt.Errorf("metrics.address is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /")
		}
	}

	return nil
}
