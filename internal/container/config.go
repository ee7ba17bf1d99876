// Package container provides dependency injection and lifecycle management
// for the GRC approval service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Workflow configuration (stale detection)
	Workflow WorkflowConfig

	// Feed configuration (NATS bridge)
	Feed FeedConfig

	// Export configuration (xlsx audit trails)
	Export ExportConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// AutoMigrate applies embedded migrations on start
	AutoMigrate bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	StreamHeartbeat time.Duration
}

// WorkflowConfig holds stale detection settings.
type WorkflowConfig struct {
	// StaleAfter is how long an open instance may sit without progress
	StaleAfter time.Duration

	// StaleCheckInterval is the polling period of the stale worker
	StaleCheckInterval time.Duration

	// StaleBatchSize caps instances examined per poll
	StaleBatchSize int
}

// FeedConfig holds the NATS change feed settings.
type FeedConfig struct {
	Enabled bool
	URL     string
	Subject string
}

// ExportConfig holds audit trail export settings.
type ExportConfig struct {
	// Dir is the base directory for archived exports
	Dir string

	// ArchiveOnClose archives an instance when it completes or is rejected
	ArchiveOnClose bool

	// ArchiveTimeout bounds a single archive write
	ArchiveTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/grc-approval.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			StreamHeartbeat: 25 * time.Second,
		},
		Workflow: WorkflowConfig{
			StaleAfter:         72 * time.Hour,
			StaleCheckInterval: 5 * time.Minute,
			StaleBatchSize:     100,
		},
		Feed: FeedConfig{
			Subject: "grc.workflow",
		},
		Export: ExportConfig{
			Dir:            "data/exports",
			ArchiveOnClose: true,
			ArchiveTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.StaleAfter <= 0 || c.Workflow.StaleCheckInterval <= 0 {
		return fmt.Errorf("workflow stale thresholds must be positive")
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required when the feed is enabled")
	}
	if c.Export.ArchiveOnClose && c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required when archive_on_close is set")
	}

	return nil
}
