package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" yaml:"rate_limit_window"`
	RateLimitMax    int           `mapstructure:"rate_limit_max" yaml:"rate_limit_max"`

	PresenceTTL time.Duration `mapstructure:"presence_ttl" yaml:"presence_ttl"`

	SMTPHost     string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	SMTPEmail    string `mapstructure:"smtp_email" yaml:"smtp_email"`
	SMTPPassword string `mapstructure:"smtp_password" yaml:"smtp_password"`
	AppName      string `mapstructure:"app_name" yaml:"app_name"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "pulsechat.db",
		RedisAddr:         "localhost:6379",
		JWTSecret:         "change-me",
		JWTIssuer:         "pulsechat",
		JWTAudience:       "pulsechat-clients",
		JWTTTL:            time.Hour,
		RateLimitWindow:   5 * time.Second,
		RateLimitMax:      5,
		PresenceTTL:       time.Hour,
		SMTPHost:          "smtp.gmail.com",
		SMTPPort:          587,
		AppName:           "PulseChat",
	}
}
