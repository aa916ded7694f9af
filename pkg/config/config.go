package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	WebSocket struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		SendBufferSize int           `yaml:"send_buffer_size"`
	} `yaml:"websocket"`

	Sessions struct {
		// IdleTimeout force-ends an active session whose roster has been
		// empty at least this long. Zero disables the janitor.
		IdleTimeout   time.Duration `yaml:"idle_timeout"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"sessions"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int     `yaml:"connections_per_minute"`
			MessagesPerSecond    float64 `yaml:"messages_per_second"`
			Burst                int     `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Reliability struct {
		Retry struct {
			Enabled      bool          `yaml:"enabled"`
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
			Multiplier   float64       `yaml:"multiplier"`
			Jitter       bool          `yaml:"jitter"`
		} `yaml:"retry"`

		CircuitBreaker struct {
			FailureThreshold    int           `yaml:"failure_threshold"`
			SuccessThreshold    int           `yaml:"success_threshold"`
			Timeout             time.Duration `yaml:"timeout"`
			MaxRequestsHalfOpen int           `yaml:"max_requests_half_open"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Cluster struct {
		// StickySecret signs the affinity cookie that keeps websocket
		// reconnects on the instance holding the client's peer state.
		StickySecret string `yaml:"sticky_secret"`
		StickyCookie string `yaml:"sticky_cookie"`
		StickyMaxAge int    `yaml:"sticky_max_age"`
	} `yaml:"cluster"`

	Archive struct {
		Enabled       bool          `yaml:"enabled"`
		Path          string        `yaml:"path"`
		RetentionDays int           `yaml:"retention_days"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"archive"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket.ping_interval must be > 0")
	}
	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket.pong_timeout must be > websocket.ping_interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket.write_timeout must be > 0")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket.send_buffer_size must be > 0")
	}

	if c.Sessions.IdleTimeout < 0 {
		return fmt.Errorf("sessions.idle_timeout must be >= 0")
	}
	if c.Sessions.IdleTimeout > 0 && c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be > 0 when idle_timeout is set")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Reliability.Retry.Enabled {
		if c.Reliability.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("reliability.retry.max_attempts must be > 0 when retry is enabled")
		}
		if c.Reliability.Retry.InitialDelay <= 0 {
			return fmt.Errorf("reliability.retry.initial_delay must be > 0 when retry is enabled")
		}
	}

	if c.Cluster.StickyMaxAge < 0 {
		return fmt.Errorf("cluster.sticky_max_age must be >= 0")
	}

	if c.Archive.Enabled {
		if c.Archive.Path == "" {
			return fmt.Errorf("archive.path must not be empty when archive.enabled=true")
		}
		if c.Archive.RetentionDays <= 0 {
			return fmt.Errorf("archive.retention_days must be > 0 when archive.enabled=true")
		}
		if c.Archive.SweepInterval <= 0 {
			return fmt.Errorf("archive.sweep_interval must be > 0 when archive.enabled=true")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
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

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.WebSocket.PingInterval = 30 * time.Second
	cfg.WebSocket.PongTimeout = 60 * time.Second
	cfg.WebSocket.WriteTimeout = 10 * time.Second
	cfg.WebSocket.SendBufferSize = 64

	cfg.Sessions.IdleTimeout = 30 * time.Minute
	cfg.Sessions.SweepInterval = time.Minute

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour

	cfg.RateLimiting.Enabled = false

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Reliability.Retry.Enabled = false
	cfg.Reliability.Retry.MaxAttempts = 3
	cfg.Reliability.Retry.InitialDelay = 100 * time.Millisecond
	cfg.Reliability.Retry.MaxDelay = 2 * time.Second
	cfg.Reliability.Retry.Multiplier = 2.0
	cfg.Reliability.Retry.Jitter = true

	cfg.Reliability.CircuitBreaker.FailureThreshold = 5
	cfg.Reliability.CircuitBreaker.SuccessThreshold = 2
	cfg.Reliability.CircuitBreaker.Timeout = 30 * time.Second
	cfg.Reliability.CircuitBreaker.MaxRequestsHalfOpen = 3

	cfg.Cluster.StickySecret = "change-me-in-production"
	cfg.Cluster.StickyCookie = "liveclass_affinity"
	cfg.Cluster.StickyMaxAge = 86400

	cfg.Archive.Enabled = false
	cfg.Archive.Path = "data/archives"
	cfg.Archive.RetentionDays = 30
	cfg.Archive.SweepInterval = 12 * time.Hour

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LIVECLASS_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("LIVECLASS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("LIVECLASS_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("LIVECLASS_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
	if password := os.Getenv("LIVECLASS_REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
}
