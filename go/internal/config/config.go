package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig holds the rate limiter parameters for one upstream API.
type ProviderConfig struct {
	Capacity int     `yaml:"capacity"`
	FillRate float64 `yaml:"fill_rate"`
}

// League identifies a TheSportsDB league season to sweep during collection.
type League struct {
	ID     string `yaml:"id"`
	Season string `yaml:"season"`
}

type Config struct {
	Providers struct {
		Sofascore struct {
			ProviderConfig `yaml:",inline"`
			// Monitor overrides the bucket for the live monitor, which polls
			// event detail one request at a time and tolerates a slower rate
			// than the bulk sweep.
			Monitor ProviderConfig `yaml:"monitor"`
		} `yaml:"sofascore"`
		SportsDB struct {
			ProviderConfig `yaml:",inline"`
			APIKey         string   `yaml:"api_key"`
			Leagues        []League `yaml:"leagues"`
		} `yaml:"thesportsdb"`
	} `yaml:"providers"`

	Monitor struct {
		ActivePollIntervalSeconds      int `yaml:"active_poll_interval_seconds"`
		HibernationPollIntervalSeconds int `yaml:"hibernation_poll_interval_seconds"`
		ProximityBufferMinutes         int `yaml:"proximity_buffer_minutes"`
		CycleFailureBackoffSeconds     int `yaml:"cycle_failure_backoff_seconds"`
	} `yaml:"monitor"`

	Publish struct {
		// Backend selects the update transport: redis, nats or log.
		Backend string `yaml:"backend"`
		Topic   string `yaml:"topic"`
	} `yaml:"publish"`
}

// Load reads and validates a YAML config file, filling in defaults for any
// omitted values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Providers.Sofascore.Capacity == 0 {
		c.Providers.Sofascore.Capacity = 20
	}
	if c.Providers.Sofascore.FillRate == 0 {
		c.Providers.Sofascore.FillRate = 1.0
	}
	if c.Providers.Sofascore.Monitor.Capacity == 0 {
		c.Providers.Sofascore.Monitor.Capacity = 5
	}
	if c.Providers.Sofascore.Monitor.FillRate == 0 {
		c.Providers.Sofascore.Monitor.FillRate = 0.2
	}
	if c.Providers.SportsDB.Capacity == 0 {
		c.Providers.SportsDB.Capacity = 10
	}
	if c.Providers.SportsDB.FillRate == 0 {
		c.Providers.SportsDB.FillRate = 0.5
	}
	if c.Monitor.ActivePollIntervalSeconds == 0 {
		c.Monitor.ActivePollIntervalSeconds = 15
	}
	if c.Monitor.HibernationPollIntervalSeconds == 0 {
		c.Monitor.HibernationPollIntervalSeconds = 300
	}
	if c.Monitor.ProximityBufferMinutes == 0 {
		c.Monitor.ProximityBufferMinutes = 30
	}
	if c.Monitor.CycleFailureBackoffSeconds == 0 {
		c.Monitor.CycleFailureBackoffSeconds = 30
	}
	if c.Publish.Backend == "" {
		c.Publish.Backend = "redis"
	}
	if c.Publish.Topic == "" {
		c.Publish.Topic = "match_updates"
	}
}

func (c *Config) validate() error {
	for name, p := range map[string]ProviderConfig{
		"sofascore":           c.Providers.Sofascore.ProviderConfig,
		"sofascore (monitor)": c.Providers.Sofascore.Monitor,
		"thesportsdb":         c.Providers.SportsDB.ProviderConfig,
	} {
		if p.Capacity < 1 {
			return fmt.Errorf("provider %s: capacity must be at least 1, got %d", name, p.Capacity)
		}
		if p.FillRate <= 0 {
			return fmt.Errorf("provider %s: fill_rate must be positive, got %v", name, p.FillRate)
		}
	}

	if c.Monitor.ActivePollIntervalSeconds < 1 {
		return fmt.Errorf("monitor: active_poll_interval_seconds must be positive")
	}
	if c.Monitor.HibernationPollIntervalSeconds < 1 {
		return fmt.Errorf("monitor: hibernation_poll_interval_seconds must be positive")
	}
	if c.Monitor.ProximityBufferMinutes < 1 {
		return fmt.Errorf("monitor: proximity_buffer_minutes must be positive")
	}

	switch c.Publish.Backend {
	case "redis", "nats", "log":
	default:
		return fmt.Errorf("publish: unknown backend %q, expected redis, nats or log", c.Publish.Backend)
	}
	return nil
}

// ActivePollInterval returns the active poll interval as a duration.
func (c *Config) ActivePollInterval() time.Duration {
	return time.Duration(c.Monitor.ActivePollIntervalSeconds) * time.Second
}

// HibernationInterval returns the hibernation ceiling as a duration.
func (c *Config) HibernationInterval() time.Duration {
	return time.Duration(c.Monitor.HibernationPollIntervalSeconds) * time.Second
}

// ProximityBuffer returns the pre-kickoff attention window as a duration.
func (c *Config) ProximityBuffer() time.Duration {
	return time.Duration(c.Monitor.ProximityBufferMinutes) * time.Minute
}

// CycleFailureBackoff returns the post-failure sleep as a duration.
func (c *Config) CycleFailureBackoff() time.Duration {
	return time.Duration(c.Monitor.CycleFailureBackoffSeconds) * time.Second
}

// RedisAddr reads the Redis address from REDIS_HOST/REDIS_PORT.
func RedisAddr() string {
	return fmt.Sprintf("%s:%s", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379"))
}

// NATSURL reads the NATS server URL from NATS_URL.
func NATSURL() string {
	return getEnv("NATS_URL", "nats://localhost:4222")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
