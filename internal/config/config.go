package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// DBPath is the SQLite file backing participant identity.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// JWTSecret signs and verifies auth tokens. JWTIssuer/JWTAudience are
	// checked on validation; JWTTTL is the token lifetime.
	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// RoomHistoryWindow bounds how many recent messages a room retains for
	// request_history and late joiners.
	RoomHistoryWindow int `mapstructure:"room_history_window" yaml:"room_history_window"`

	// CausalBufferCapacity bounds a client's causal engine buffer; 0 is
	// unbounded. cmd/chatclient's --buffer-cap flag defaults from this
	// value.
	CausalBufferCapacity int `mapstructure:"causal_buffer_capacity" yaml:"causal_buffer_capacity"`

	// MaxSimulatedDelay caps the delay_ms a chat frame's metadata may
	// request; requests above this are clamped, not rejected.
	MaxSimulatedDelay time.Duration `mapstructure:"max_simulated_delay" yaml:"max_simulated_delay"`

	// PingInterval and PingMissLimit drive the liveness watchdog.
	PingInterval  time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PingMissLimit int           `mapstructure:"ping_miss_limit" yaml:"ping_miss_limit"`

	// RateLimitPerSecond and RateLimitBurst bound inbound chat frames per
	// session (other frame types are not limited); 0 in either disables
	// rate limiting.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		DBPath:               "causalchat.db",
		JWTSecret:            "change-me-in-production",
		JWTIssuer:            "causalchat",
		JWTAudience:          "causalchat-clients",
		JWTTTL:               24 * time.Hour,
		RoomHistoryWindow:    50,
		CausalBufferCapacity: 256,
		MaxSimulatedDelay:    10 * time.Second,
		PingInterval:         30 * time.Second,
		PingMissLimit:        2,
		RateLimitPerSecond:   20,
		RateLimitBurst:       40,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DBPath != "" {
		c.DBPath = other.DBPath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.RoomHistoryWindow != 0 {
		c.RoomHistoryWindow = other.RoomHistoryWindow
	}
	if other.CausalBufferCapacity != 0 {
		c.CausalBufferCapacity = other.CausalBufferCapacity
	}
	if other.MaxSimulatedDelay != 0 {
		c.MaxSimulatedDelay = other.MaxSimulatedDelay
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.PingMissLimit != 0 {
		c.PingMissLimit = other.PingMissLimit
	}
	if other.RateLimitPerSecond != 0 {
		c.RateLimitPerSecond = other.RateLimitPerSecond
	}
	if other.RateLimitBurst != 0 {
		c.RateLimitBurst = other.RateLimitBurst
	}
}
