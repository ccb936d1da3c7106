package config

import "time"

const (
	ModeBinance   = "binance"
	ModeSynthetic = "synthetic"
)

type Config struct {
	Server struct {
		Host               string        `yaml:"host"`
		Port               int           `yaml:"port"`
		ReadTimeoutStr     string        `yaml:"read_timeout"`
		WriteTimeoutStr    string        `yaml:"write_timeout"`
		ShutdownTimeoutStr string        `yaml:"shutdown_timeout"`
		ReadTimeout        time.Duration `yaml:"-"`
		WriteTimeout       time.Duration `yaml:"-"`
		ShutdownTimeout    time.Duration `yaml:"-"`
	} `yaml:"server"`

	Upstream struct {
		Mode            string        `yaml:"mode"`
		URL             string        `yaml:"url"`
		Symbols         []string      `yaml:"symbols"`
		ReconnectMinStr string        `yaml:"reconnect_min"`
		ReconnectMaxStr string        `yaml:"reconnect_max"`
		PingIntervalStr string        `yaml:"ping_interval"`
		PingTimeoutStr  string        `yaml:"ping_timeout"`
		ReconnectMin    time.Duration `yaml:"-"`
		ReconnectMax    time.Duration `yaml:"-"`
		PingInterval    time.Duration `yaml:"-"`
		PingTimeout     time.Duration `yaml:"-"`
	} `yaml:"upstream"`

	Websocket struct {
		QueueSize            int           `yaml:"queue_size"`
		MaxConnections       int           `yaml:"max_connections"`
		MaxConnectionsPerIP  int           `yaml:"max_connections_per_ip"`
		KeepaliveIntervalStr string        `yaml:"keepalive_interval"`
		KeepaliveInterval    time.Duration `yaml:"-"`
	} `yaml:"websocket"`

	RateLimit struct {
		PriceRequests int           `yaml:"price_requests"`
		WindowStr     string        `yaml:"window"`
		Window        time.Duration `yaml:"-"`
	} `yaml:"rate_limit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Workers  int           `yaml:"workers"`
		TTLStr   string        `yaml:"ttl"`
		TTL      time.Duration `yaml:"-"`
	} `yaml:"redis"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}
