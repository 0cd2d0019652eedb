package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Signaling struct {
		Server string `yaml:"server"`
		Port   int    `yaml:"port"`
	} `yaml:"signaling"`

	STUN struct {
		Enabled bool   `yaml:"enabled"`
		Server  string `yaml:"server"`
		Port    int    `yaml:"port"`
	} `yaml:"stun"`

	Benchmark struct {
		DurationSeconds int    `yaml:"duration_seconds"`
		MessageSize     int    `yaml:"message_size"`
		LowThreshold    int    `yaml:"buffered_amount_low_threshold"`
		ChannelLabel    string `yaml:"channel_label"`
	} `yaml:"benchmark"`

	Monitoring struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
	} `yaml:"monitoring"`

	Results struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
		MaxRuns int    `yaml:"max_runs"`
	} `yaml:"results"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Signaling.Server == "" {
		return fmt.Errorf("signaling.server must not be empty")
	}
	if c.Signaling.Port <= 0 || c.Signaling.Port > 65535 {
		return fmt.Errorf("signaling.port must be in 1..65535")
	}

	if c.STUN.Enabled {
		if c.STUN.Server == "" {
			return fmt.Errorf("stun.server must not be empty when stun.enabled=true")
		}
		if c.STUN.Port <= 0 || c.STUN.Port > 65535 {
			return fmt.Errorf("stun.port must be in 1..65535 when stun.enabled=true")
		}
	}

	if c.Benchmark.DurationSeconds < 0 {
		return fmt.Errorf("benchmark.duration_seconds must be >= 0 (0 = run indefinitely)")
	}
	if c.Benchmark.MessageSize <= 0 {
		return fmt.Errorf("benchmark.message_size must be > 0")
	}
	if c.Benchmark.LowThreshold < 0 {
		return fmt.Errorf("benchmark.buffered_amount_low_threshold must be >= 0")
	}
	if c.Benchmark.ChannelLabel == "" {
		return fmt.Errorf("benchmark.channel_label must not be empty")
	}

	if c.Monitoring.Enabled && c.Monitoring.Address == "" {
		return fmt.Errorf("monitoring.address must not be empty when monitoring.enabled=true")
	}

	if c.Results.Enabled {
		if c.Results.Path == "" {
			return fmt.Errorf("results.path must not be empty when results.enabled=true")
		}
		if c.Results.MaxRuns < 0 {
			return fmt.Errorf("results.max_runs must be >= 0")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Signaling.Server = "localhost"
	cfg.Signaling.Port = 8000

	cfg.STUN.Enabled = true
	cfg.STUN.Server = "stun.l.google.com"
	cfg.STUN.Port = 19302

	cfg.Benchmark.DurationSeconds = 0 // run until interrupted
	cfg.Benchmark.MessageSize = 65535
	cfg.Benchmark.LowThreshold = 0
	cfg.Benchmark.ChannelLabel = "benchmark"

	cfg.Monitoring.Enabled = false
	cfg.Monitoring.Address = ":9091"

	cfg.Results.Enabled = false
	cfg.Results.Path = "dcbench.db"
	cfg.Results.MaxRuns = 100

	cfg.Logging.Level = "info"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if server := os.Getenv("DCBENCH_SIGNALING_SERVER"); server != "" {
		c.Signaling.Server = server
	}
	if port := os.Getenv("DCBENCH_SIGNALING_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Signaling.Port = p
		}
	}
	if server := os.Getenv("DCBENCH_STUN_SERVER"); server != "" {
		c.STUN.Server = server
	}
	if level := os.Getenv("DCBENCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// SignalingURL builds the websocket URL for the local peer, normalizing a
// missing ws:// scheme the way users tend to write bare host names.
func (c *Config) SignalingURL(localID string) string {
	server := c.Signaling.Server
	if !strings.HasPrefix(server, "ws://") && !strings.HasPrefix(server, "wss://") {
		server = "ws://" + server
	}
	return fmt.Sprintf("%s:%d/%s", server, c.Signaling.Port, localID)
}

// STUNURL builds the stun: URL, or "" when STUN is disabled.
func (c *Config) STUNURL() string {
	if !c.STUN.Enabled {
		return ""
	}
	server := c.STUN.Server
	if !strings.HasPrefix(server, "stun:") {
		server = "stun:" + server
	}
	return fmt.Sprintf("%s:%d", server, c.STUN.Port)
}
