package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/quote-revision/internal/application/dispatcher"
	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/config"
	"github.com/garyjia/quote-revision/internal/infrastructure/external/lark"
	"github.com/garyjia/quote-revision/internal/infrastructure/metrics"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/quote-revision/internal/infrastructure/worker"
	"github.com/garyjia/quote-revision/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	rawDB        *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	integrations *IntegrationBundle
	metrics      *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins background work.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. External integrations and metrics
// 3. Event dispatcher
// 4. Application services
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(runCtx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("quote_store", c.config.Store.Driver))

	if err := c.initIntegrations(); err != nil {
		return fmt.Errorf("failed to initialize integrations: %w", err)
	}
	c.logger.Info("Integrations initialized",
		zap.Bool("lark", c.integrations.LarkClient != nil),
		zap.Bool("interpreter", c.integrations.Interpreter != nil),
		zap.Bool("metrics", c.metrics != nil))

	c.dispatcher = ProvideDispatcher(c.logger)

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(c.config, c.services.Review, c.logger)
	if err := c.workers.StartAll(runCtx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Int("count", c.workers.WorkerCount()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Waits for in-flight async event handlers
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.rawDB != nil {
		if err := c.rawDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.rawDB == nil:
		set("database", false, "not initialized")
	default:
		if err := c.rawDB.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.WorkerCount()))
	}

	set("dispatcher", c.dispatcher != nil, "")
	set("services", c.services != nil, "")

	return status
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(c.config, c.logger)
	if err != nil {
		return err
	}
	c.rawDB = bundle.Raw
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(ctx, c.config, c.db, c.logger)
	if err != nil {
		_ = c.rawDB.Close()
		c.rawDB = nil
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initIntegrations() error {
	integrations, err := ProvideIntegrations(c.config, c.logger)
	if err != nil {
		return err
	}
	c.integrations = integrations
	c.metrics = ProvideMetrics(c.config)
	return nil
}

func (c *Container) initServices() error {
	deps := &ServiceDeps{
		Config:       c.config,
		Repos:        c.repositories,
		Integrations: c.integrations,
		Dispatcher:   c.dispatcher,
		Logger:       c.logger,
	}
	// a nil *metrics.Metrics must not reach the interface
	if c.metrics != nil {
		deps.Metrics = c.metrics
	}

	services, err := ProvideServices(deps)
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Metrics returns the Prometheus metrics, or nil when disabled.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// LarkClient returns the Lark SDK client for the WebSocket adapter, or nil when disabled.
func (c *Container) LarkClient() *lark.SDKClient {
	return c.integrations.LarkClient
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
