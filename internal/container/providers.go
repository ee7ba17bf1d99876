package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/application/service"
	"github.com/garyjia/grc-approval/internal/application/workflow"
	"github.com/garyjia/grc-approval/internal/infrastructure/feed"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/grc-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/grc-approval/internal/infrastructure/storage"
	"github.com/garyjia/grc-approval/internal/infrastructure/worker"
	httpapi "github.com/garyjia/grc-approval/internal/interfaces/http"
	"github.com/garyjia/grc-approval/pkg/database"
	"github.com/garyjia/grc-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the sqlite store and, when migrate is set, applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, migrate bool, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if migrate {
		if _, err := database.NewMigrator(db, logger).Run(ctx, database.Migrations()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil || db.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Definition:   repository.NewDefinitionRepository(db.DB, logger),
		Instance:     repository.NewInstanceRepository(db.DB, logger),
		Approval:     repository.NewApprovalRepository(db.DB, logger),
		History:      repository.NewHistoryRepository(db.DB, logger),
		Notification: repository.NewNotificationRepository(db.DB, logger),
		Role:         repository.NewRoleRepository(db.DB, logger),
	}, nil
}

// ProvideDispatcher creates the in-process change feed.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))))
}

// ProvideStorage creates archive storage. An empty directory disables archiving.
func ProvideStorage(cfg *ExportConfig, logger *zap.Logger) port.FileStorage {
	if cfg == nil || cfg.Dir == "" {
		return nil
	}
	return storage.NewLocalFileStorage(cfg.Dir, logger)
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Storage    port.FileStorage
	Logger     *zap.Logger
}

// ProvideServices wires the application services and the workflow engine.
// The engine resolves approver roles through RBAC and sends notices through the notification service.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	rbac := service.NewRBACService(deps.Repos.Role, utils.NewKVLogger(deps.Logger.Named("rbac")))
	notifications := service.NewNotificationService(deps.Repos.Notification, utils.NewKVLogger(deps.Logger.Named("notifications")))
	definitions := service.NewDefinitionService(deps.Repos.Definition, rbac, utils.NewKVLogger(deps.Logger.Named("definitions")))

	opts := []workflow.EngineOption{
		workflow.WithRoleResolver(rbac),
		workflow.WithNotificationSink(notifications),
		workflow.WithLogger(utils.NewKVLogger(deps.Logger.Named("engine"))),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}

	engine := workflow.NewEngine(
		deps.Repos.Definition,
		deps.Repos.Instance,
		deps.Repos.Approval,
		deps.Repos.History,
		deps.TxManager,
		opts...,
	)

	export := service.NewExportService(engine, deps.Storage, utils.NewKVLogger(deps.Logger.Named("export")))

	return &ServiceBundle{
		Engine:        engine,
		Definitions:   definitions,
		Notifications: notifications,
		RBAC:          rbac,
		Export:        export,
	}, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Config     *Config
	Repos      *RepositoryBundle
	Services   *ServiceBundle
	Dispatcher dispatcher.Dispatcher
	Publisher  port.EventPublisher
	Logger     *zap.Logger
}

// ProvideWorkers creates the worker manager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Config == nil || deps.Repos == nil || deps.Services == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	manager.Register(worker.NewStaleInstanceWorker(worker.StaleWorkerConfig{
		PollInterval: deps.Config.Workflow.StaleCheckInterval,
		StaleAfter:   deps.Config.Workflow.StaleAfter,
		BatchSize:    deps.Config.Workflow.StaleBatchSize,
	}, deps.Repos.Instance, deps.Dispatcher, deps.Logger))

	if deps.Config.Export.ArchiveOnClose {
		manager.Register(worker.NewArchiveWorker(
			deps.Services.Export,
			deps.Dispatcher,
			deps.Config.Export.ArchiveTimeout,
			deps.Logger,
		))
	}

	if deps.Publisher != nil {
		manager.Register(feed.NewForwarder(deps.Publisher, deps.Dispatcher, deps.Logger))
	}

	return manager, nil
}

// ProvidePublisher connects the NATS change feed when it is enabled.
func ProvidePublisher(cfg *FeedConfig, logger *zap.Logger) (port.EventPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	publisher, err := feed.ConnectNATS(feed.NATSConfig{
		URL:     cfg.URL,
		Subject: cfg.Subject,
		Name:    "grc-approval",
	}, logger)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// ProvideHTTPServer creates the API server over the application services.
func ProvideHTTPServer(cfg *ServerConfig, services *ServiceBundle, d dispatcher.Dispatcher, logger *zap.Logger) *httpapi.Server {
	return httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		StreamHeartbeat: cfg.StreamHeartbeat,
	}, httpapi.Services{
		Engine:        services.Engine,
		Definitions:   services.Definitions,
		Notifications: services.Notifications,
		RBAC:          services.RBAC,
		Export:        services.Export,
		Dispatcher:    d,
	}, utils.NewKVLogger(logger.Named("http")))
}
