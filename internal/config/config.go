package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment override, e.g. GRC_DATABASE_PATH
const EnvPrefix = "GRC"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StreamHeartbeat time.Duration `mapstructure:"stream_heartbeat"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// AutoMigrate applies pending migrations when the server starts
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig holds stale instance detection settings
type WorkflowConfig struct {
	StaleAfter         time.Duration `mapstructure:"stale_after"`
	StaleCheckInterval time.Duration `mapstructure:"stale_check_interval"`
	StaleBatchSize     int           `mapstructure:"stale_batch_size"`
}

// FeedConfig holds the NATS change feed bridge settings
type FeedConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`
}

// ExportConfig holds audit trail export settings
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
	// ArchiveOnClose writes an xlsx audit trail when an instance completes or is rejected
	ArchiveOnClose bool          `mapstructure:"archive_on_close"`
	ArchiveTimeout time.Duration `mapstructure:"archive_timeout"`
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process environment.
// Variables already set are not overwritten. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from file and environment variables.
// An empty configPath uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.stream_heartbeat", 25*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/grc-approval.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Workflow defaults
	v.SetDefault("workflow.stale_after", 72*time.Hour)
	v.SetDefault("workflow.stale_check_interval", 5*time.Minute)
	v.SetDefault("workflow.stale_batch_size", 100)

	// Feed defaults
	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("feed.nats_subject", "grc.workflow")

	// Export defaults
	v.SetDefault("export.dir", "data/exports")
	v.SetDefault("export.archive_on_close", true)
	v.SetDefault("export.archive_timeout", 30*time.Second)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	if c.Workflow.StaleAfter <= 0 {
		return fmt.Errorf("workflow.stale_after must be positive")
	}
	if c.Workflow.StaleCheckInterval <= 0 {
		return fmt.Errorf("workflow.stale_check_interval must be positive")
	}
	if c.Workflow.StaleBatchSize <= 0 {
		return fmt.Errorf("workflow.stale_batch_size must be positive")
	}

	if c.Feed.Enabled && c.Feed.NATSURL == "" {
		return fmt.Errorf("feed.nats_url is required when the feed is enabled")
	}
	if c.Export.ArchiveOnClose && c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required when archive_on_close is set")
	}

	return nil
}
