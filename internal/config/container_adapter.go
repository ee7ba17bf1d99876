package config

import (
	"github.com/garyjia/grc-approval/internal/container"
	"github.com/garyjia/grc-approval/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
// This keeps the container free of viper and mapstructure tags.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			StreamHeartbeat: c.Server.StreamHeartbeat,
		},
		Workflow: container.WorkflowConfig{
			StaleAfter:         c.Workflow.StaleAfter,
			StaleCheckInterval: c.Workflow.StaleCheckInterval,
			StaleBatchSize:     c.Workflow.StaleBatchSize,
		},
		Feed: container.FeedConfig{
			Enabled: c.Feed.Enabled,
			URL:     c.Feed.NATSURL,
			Subject: c.Feed.NATSSubject,
		},
		Export: container.ExportConfig{
			Dir:            c.Export.Dir,
			ArchiveOnClose: c.Export.ArchiveOnClose,
			ArchiveTimeout: c.Export.ArchiveTimeout,
		},
	}
}

// ToLoggerConfig converts the logger section for utils.NewLogger
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}
