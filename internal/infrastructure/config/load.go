package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	// .env entries become plain env vars; already-set env still wins.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ReadTimeout, err = time.ParseDuration(cfg.Server.ReadTimeoutStr); err != nil {
		return fmt.Errorf("server.read_timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = time.ParseDuration(cfg.Server.WriteTimeoutStr); err != nil {
		return fmt.Errorf("server.write_timeout: %w", err)
	}
	if cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutStr); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}

	if cfg.Upstream.ReconnectMin, err = time.ParseDuration(cfg.Upstream.ReconnectMinStr); err != nil {
		return fmt.Errorf("upstream.reconnect_min: %w", err)
	}
	if cfg.Upstream.ReconnectMax, err = time.ParseDuration(cfg.Upstream.ReconnectMaxStr); err != nil {
		return fmt.Errorf("upstream.reconnect_max: %w", err)
	}
	if cfg.Upstream.PingInterval, err = time.ParseDuration(cfg.Upstream.PingIntervalStr); err != nil {
		return fmt.Errorf("upstream.ping_interval: %w", err)
	}
	if cfg.Upstream.PingTimeout, err = time.ParseDuration(cfg.Upstream.PingTimeoutStr); err != nil {
		return fmt.Errorf("upstream.ping_timeout: %w", err)
	}

	if cfg.Websocket.KeepaliveInterval, err = time.ParseDuration(cfg.Websocket.KeepaliveIntervalStr); err != nil {
		return fmt.Errorf("websocket.keepalive_interval: %w", err)
	}

	if cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowStr); err != nil {
		return fmt.Errorf("rate_limit.window: %w", err)
	}

	if cfg.Redis.TTL, err = time.ParseDuration(cfg.Redis.TTLStr); err != nil {
		return fmt.Errorf("redis.ttl: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("APP_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Upstream
	if v := os.Getenv("APP_UPSTREAM_MODE"); v != "" {
		cfg.Upstream.Mode = v
	}
	if v := os.Getenv("APP_BINANCE_WS_BASE"); v != "" {
		cfg.Upstream.URL = v
	}
	if v := os.Getenv("APP_SYMBOLS"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		if len(symbols) > 0 {
			cfg.Upstream.Symbols = symbols
		}
	}

	// Websocket
	if v := os.Getenv("APP_CLIENT_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Websocket.QueueSize = n
		}
	}
	if v := os.Getenv("APP_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Websocket.MaxConnections = n
		}
	}
	if v := os.Getenv("APP_MAX_CONNECTIONS_PER_IP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Websocket.MaxConnectionsPerIP = n
		}
	}

	// Redis
	if v := os.Getenv("APP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("APP_REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("APP_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("APP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Logging
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("APP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Upstream.Mode {
	case ModeBinance, ModeSynthetic:
	default:
		return fmt.Errorf("upstream.mode %q must be %q or %q", c.Upstream.Mode, ModeBinance, ModeSynthetic)
	}

	if len(c.Upstream.Symbols) == 0 {
		return fmt.Errorf("upstream.symbols must not be empty")
	}
	for i, s := range c.Upstream.Symbols {
		c.Upstream.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
		if c.Upstream.Symbols[i] == "" {
			return fmt.Errorf("upstream.symbols contains an empty entry")
		}
	}

	if c.Upstream.Mode == ModeBinance && !strings.HasPrefix(c.Upstream.URL, "ws") {
		return fmt.Errorf("upstream.url %q must be a ws:// or wss:// URL", c.Upstream.URL)
	}

	if c.Upstream.ReconnectMin <= 0 || c.Upstream.ReconnectMax < c.Upstream.ReconnectMin {
		return fmt.Errorf("upstream reconnect bounds invalid: min=%s max=%s", c.Upstream.ReconnectMin, c.Upstream.ReconnectMax)
	}

	if c.Websocket.QueueSize <= 0 {
		return fmt.Errorf("websocket.queue_size must be positive")
	}
	if c.Websocket.KeepaliveInterval <= 0 {
		return fmt.Errorf("websocket.keepalive_interval must be positive")
	}

	if c.RateLimit.PriceRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit must have positive price_requests and window")
	}

	if c.Redis.Enabled && c.Redis.Workers <= 0 {
		return fmt.Errorf("redis.workers must be positive when redis is enabled")
	}

	return nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
