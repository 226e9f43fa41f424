package config

import (
	"fmt"
	"os"
	"time"

	"deskrelay/pkg/validation"

	"gopkg.in/yaml.v2"
)

// DefaultSecret is the placeholder shared secret shipped in DefaultConfig.
// Binaries warn loudly when they start with it.
const DefaultSecret = "change-me"

type Config struct {
	Server struct {
		Address           string        `yaml:"address"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Session struct {
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"session"`

	Auth struct {
		Secret  string        `yaml:"secret"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"auth"`

	Capture struct {
		Backend     string        `yaml:"backend"` // screen | synthetic
		Display     int           `yaml:"display"`
		Interval    time.Duration `yaml:"interval"`
		RetryDelay  time.Duration `yaml:"retry_delay"`
		ErrorDelay  time.Duration `yaml:"error_delay"`
		Quality     int           `yaml:"quality"`
		Downscale   int           `yaml:"downscale"`
		Filter      string        `yaml:"filter"` // nearest | lanczos
		BusCapacity int           `yaml:"bus_capacity"`
	} `yaml:"capture"`

	Input struct {
		Backend     string  `yaml:"backend"` // robotgo | log
		DeviceScale float64 `yaml:"device_scale"` // 0 = ask the display
	} `yaml:"input"`

	Relay struct {
		QueueSize int `yaml:"queue_size"`
		Redis     struct {
			Enabled  bool   `yaml:"enabled"`
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
			Channel  string `yaml:"channel"`
		} `yaml:"redis"`
	} `yaml:"relay"`

	Agent struct {
		RelayURL       string        `yaml:"relay_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		ReconnectMax   time.Duration `yaml:"reconnect_max"`
		MetricsAddress string        `yaml:"metrics_address"`
	} `yaml:"agent"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		FrameStaleAfter   time.Duration `yaml:"frame_stale_after"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if err := validation.ValidateListenAddress(c.Server.Address); err != nil {
		return fmt.Errorf("server.address: %w", err)
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("server.read_header_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Session
	if c.Session.PingInterval < 0 {
		return fmt.Errorf("session.ping_interval must be >= 0")
	}
	if c.Session.PingInterval > 0 && c.Session.PongTimeout <= c.Session.PingInterval {
		return fmt.Errorf("session.pong_timeout must be > session.ping_interval")
	}
	if c.Session.WriteTimeout <= 0 {
		return fmt.Errorf("session.write_timeout must be > 0")
	}
	if c.Session.MaxMessageBytes < 0 {
		return fmt.Errorf("session.max_message_bytes must be >= 0")
	}
	for _, origin := range c.Session.AllowedOrigins {
		if err := validation.ValidateOrigin(origin); err != nil {
			return fmt.Errorf("session.allowed_origins: %w", err)
		}
	}

	// Auth
	if err := validation.ValidateSecret(c.Auth.Secret); err != nil {
		return fmt.Errorf("auth.secret: %w", err)
	}
	if c.Auth.Timeout < 0 {
		return fmt.Errorf("auth.timeout must be >= 0")
	}

	// Capture
	switch c.Capture.Backend {
	case "screen", "synthetic":
	default:
		return fmt.Errorf("capture.backend must be one of screen, synthetic (got %q)", c.Capture.Backend)
	}
	if c.Capture.Display < 0 {
		return fmt.Errorf("capture.display must be >= 0")
	}
	if c.Capture.Interval <= 0 {
		return fmt.Errorf("capture.interval must be > 0")
	}
	if c.Capture.RetryDelay <= 0 {
		return fmt.Errorf("capture.retry_delay must be > 0")
	}
	if c.Capture.ErrorDelay <= 0 {
		return fmt.Errorf("capture.error_delay must be > 0")
	}
	if err := validation.ValidateRange(c.Capture.Quality, 1, 100, "capture.quality"); err != nil {
		return err
	}
	if c.Capture.Downscale < 1 {
		return fmt.Errorf("capture.downscale must be >= 1")
	}
	switch c.Capture.Filter {
	case "nearest", "lanczos":
	default:
		return fmt.Errorf("capture.filter must be one of nearest, lanczos (got %q)", c.Capture.Filter)
	}
	if c.Capture.BusCapacity <= 0 {
		return fmt.Errorf("capture.bus_capacity must be > 0")
	}

	// Input
	switch c.Input.Backend {
	case "robotgo", "log":
	default:
		return fmt.Errorf("input.backend must be one of robotgo, log (got %q)", c.Input.Backend)
	}
	if c.Input.DeviceScale < 0 {
		return fmt.Errorf("input.device_scale must be >= 0")
	}

	// Relay
	if c.Relay.QueueSize <= 0 {
		return fmt.Errorf("relay.queue_size must be > 0")
	}
	if c.Relay.Redis.Enabled {
		if c.Relay.Redis.Address == "" {
			return fmt.Errorf("relay.redis.address must not be empty when relay.redis.enabled=true")
		}
		if c.Relay.Redis.PoolSize <= 0 {
			return fmt.Errorf("relay.redis.pool_size must be > 0 when relay.redis.enabled=true")
		}
		if c.Relay.Redis.Channel == "" {
			return fmt.Errorf("relay.redis.channel must not be empty when relay.redis.enabled=true")
		}
	}

	// Agent
	if err := validation.ValidateRelayURL(c.Agent.RelayURL); err != nil {
		return fmt.Errorf("agent.relay_url: %w", err)
	}
	if c.Agent.ReconnectDelay <= 0 {
		return fmt.Errorf("agent.reconnect_delay must be > 0")
	}
	if c.Agent.ReconnectMax < c.Agent.ReconnectDelay {
		return fmt.Errorf("agent.reconnect_max must be >= agent.reconnect_delay")
	}
	if c.Agent.MetricsAddress != "" {
		if err := validation.ValidateListenAddress(c.Agent.MetricsAddress); err != nil {
			return fmt.Errorf("agent.metrics_address: %w", err)
		}
	}

	// Monitoring
	if c.Monitoring.FrameStaleAfter <= 0 {
		return fmt.Errorf("monitoring.frame_stale_after must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within 0..1")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
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

// LoadFirst tries each path in order and returns the first configuration that loads.
func LoadFirst(paths ...string) (*Config, string, error) {
	var lastErr error
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			lastErr = err
			continue
		}
		return cfg, path, nil
	}
	if lastErr != nil {
		return nil, "", lastErr
	}

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, "", nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = "0.0.0.0:8080"
	cfg.Server.ReadHeaderTimeout = 10 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Session.PingInterval = 30 * time.Second
	cfg.Session.PongTimeout = 60 * time.Second
	cfg.Session.WriteTimeout = 10 * time.Second
	cfg.Session.MaxMessageBytes = 16 * 1024 * 1024
	cfg.Session.AllowedOrigins = []string{"*"}

	cfg.Auth.Secret = DefaultSecret
	cfg.Auth.Timeout = 10 * time.Second

	cfg.Capture.Backend = "screen"
	cfg.Capture.Display = 0
	cfg.Capture.Interval = 33 * time.Millisecond
	cfg.Capture.RetryDelay = 10 * time.Millisecond
	cfg.Capture.ErrorDelay = 100 * time.Millisecond
	cfg.Capture.Quality = 70
	cfg.Capture.Downscale = 2
	cfg.Capture.Filter = "nearest"
	cfg.Capture.BusCapacity = 16

	cfg.Input.Backend = "robotgo"
	cfg.Input.DeviceScale = 0

	cfg.Relay.QueueSize = 256
	cfg.Relay.Redis.Enabled = false
	cfg.Relay.Redis.Address = "localhost:6379"
	cfg.Relay.Redis.DB = 0
	cfg.Relay.Redis.PoolSize = 10
	cfg.Relay.Redis.Channel = "deskrelay:relay"

	cfg.Agent.RelayURL = "ws://127.0.0.1:8080/"
	cfg.Agent.ReconnectDelay = 500 * time.Millisecond
	cfg.Agent.ReconnectMax = 10 * time.Second
	cfg.Agent.MetricsAddress = ""

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.FrameStaleAfter = 5 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "deskrelay"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("DESKRELAY_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if secret := os.Getenv("DESKRELAY_AUTH_SECRET"); secret != "" {
		c.Auth.Secret = secret
	}
	if level := os.Getenv("DESKRELAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if url := os.Getenv("DESKRELAY_RELAY_URL"); url != "" {
		c.Agent.RelayURL = url
	}
	if addr := os.Getenv("DESKRELAY_REDIS_ADDRESS"); addr != "" {
		c.Relay.Redis.Address = addr
	}
}
