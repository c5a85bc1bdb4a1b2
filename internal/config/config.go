package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Mailer   MailerConfig   `mapstructure:"mailer"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds HTTP API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BaseURL      string        `mapstructure:"base_url"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// WorkerConfig holds issue delivery worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker loops run by one process.
	Concurrency int `mapstructure:"concurrency"`
	// PollInterval is how long a worker sleeps after finding the queue empty.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// ErrorBackoff is how long a worker sleeps after an unexpected error.
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

// MailerConfig holds outbound email configuration.
type MailerConfig struct {
	// Mode selects the mail client implementation: "smtp" or "stdout".
	Mode        string        `mapstructure:"mode"`
	SenderEmail string        `mapstructure:"sender_email"`
	SenderName  string        `mapstructure:"sender_name"`
	SMTPHost    string        `mapstructure:"smtp_host"`
	SMTPPort    int           `mapstructure:"smtp_port"`
	SMTPUser    string        `mapstructure:"smtp_user"`
	SMTPPass    string        `mapstructure:"smtp_pass"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// AuthConfig holds operator authentication configuration.
type AuthConfig struct {
	SigningKey  string        `mapstructure:"signing_key"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	Issuer      string        `mapstructure:"issuer"`
	// RedisAddr enables login rate limiting when non-empty.
	RedisAddr          string        `mapstructure:"redis_addr"`
	RedisPassword      string        `mapstructure:"redis_password"`
	LoginAttemptsLimit int           `mapstructure:"login_attempts_limit"`
	LoginWindow        time.Duration `mapstructure:"login_window"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix NEWSLETTER_ override file values.
// For example, NEWSLETTER_DATABASE_URL overrides database.url.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("NEWSLETTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 10*time.Second)
	v.SetDefault("database.pool_min", 2)
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.poll_interval", 10*time.Second)
	v.SetDefault("worker.error_backoff", 1*time.Second)
	v.SetDefault("mailer.mode", "stdout")
	v.SetDefault("mailer.send_timeout", 10*time.Second)
	v.SetDefault("auth.token_expiry", 24*time.Hour)
	v.SetDefault("auth.issuer", "newsletter")
	v.SetDefault("auth.login_attempts_limit", 5)
	v.SetDefault("auth.login_window", 15*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")
}
