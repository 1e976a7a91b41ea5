package container

import (
	"context"
	"fmt"

	"github.com/garyjia/quote-revision/internal/application/dispatcher"
	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/application/service"
	"github.com/garyjia/quote-revision/internal/config"
	"github.com/garyjia/quote-revision/internal/infrastructure/export"
	"github.com/garyjia/quote-revision/internal/infrastructure/external/lark"
	"github.com/garyjia/quote-revision/internal/infrastructure/external/openai"
	"github.com/garyjia/quote-revision/internal/infrastructure/metrics"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/dynamo"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/repository"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/quote-revision/internal/infrastructure/worker"
	"github.com/garyjia/quote-revision/pkg/database"
	"github.com/garyjia/quote-revision/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Quotes    port.QuoteStore
	Templates port.TemplateRepository
	Sessions  port.SessionArchive
}

// IntegrationBundle holds the optional external integrations. Interpreter is
// nil when no API key is configured; LarkClient is nil when Lark is disabled.
type IntegrationBundle struct {
	LarkClient  *lark.SDKClient
	Notifier    port.ConversationNotifier
	Interpreter port.CommandInterpreter
	Exporter    port.QuoteExporter
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Quote        service.QuoteService
	Review       service.ReviewService
	Conversation service.ConversationService
	Notification service.NotificationService
}

// ProvideDatabase opens SQLite, applies the embedded migrations and wraps the
// connection in the context-aware transaction manager.
func ProvideDatabase(cfg *config.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	raw, err := database.New(databaseConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(raw, logger).RunMigrations(database.Migrations()); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Raw:            raw,
		TransactionMgr: sqlite.NewDB(raw.DB, logger,
			sqlite.WithBusyRetry(cfg.Database.BusyRetries, cfg.Database.BusyBackoff),
		),
	}, nil
}

// ProvideRepositories creates the repositories. Quotes live in DynamoDB when
// store.driver selects it; templates and archived sessions always use SQLite.
func ProvideRepositories(ctx context.Context, cfg *config.Config, db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	bundle := &RepositoryBundle{
		Templates: repository.NewTemplateRepository(db, logger),
		Sessions:  repository.NewSessionArchive(db, logger),
	}

	switch cfg.Store.Driver {
	case config.DriverDynamoDB:
		client, err := dynamo.NewClient(ctx, dynamoConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create dynamodb client: %w", err)
		}
		bundle.Quotes = dynamo.NewQuoteStore(client, cfg.Store.DynamoDB.Table, logger)
		logger.Info("Using DynamoDB quote store",
			zap.String("table", cfg.Store.DynamoDB.Table),
			zap.String("region", cfg.Store.DynamoDB.Region))
	default:
		bundle.Quotes = repository.NewQuoteStore(db, logger)
	}

	return bundle, nil
}

// ProvideIntegrations creates the Lark messenger, the OpenAI interpreter and
// the Excel exporter. Disabled integrations fall back or stay nil.
func ProvideIntegrations(cfg *config.Config, logger *zap.Logger) (*IntegrationBundle, error) {
	bundle := &IntegrationBundle{
		Exporter: export.NewExcelExporter(logger),
	}

	if cfg.Lark.Enabled {
		client, err := lark.NewSDKClient(larkConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create lark client: %w", err)
		}
		bundle.LarkClient = client
		bundle.Notifier = lark.NewMessenger(bundle.LarkClient, logger)
	} else {
		bundle.Notifier = lark.NewLogNotifier(logger)
	}

	if cfg.OpenAI.APIKey != "" {
		prompts := openai.DefaultPrompts()
		if cfg.OpenAI.PromptsPath != "" {
			loaded, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load prompts: %w", err)
			}
			prompts = loaded
		}
		bundle.Interpreter = openai.NewInterpreter(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.BaseURL,
			cfg.OpenAI.Model,
			cfg.OpenAI.Timeout,
			prompts,
			logger,
		)
	} else {
		logger.Warn("openai.api_key not set, transcript interpretation disabled")
	}

	return bundle, nil
}

// ProvideDispatcher creates the in-process event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
}

// ServiceDeps holds everything the application services need.
type ServiceDeps struct {
	Config       *config.Config
	Repos        *RepositoryBundle
	Integrations *IntegrationBundle
	Dispatcher   dispatcher.Dispatcher
	Metrics      port.ReviewMetrics
	Logger       *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification relay on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps.Repos == nil || deps.Integrations == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("repositories, integrations and dispatcher are required")
	}
	kv := utils.NewKVLogger(deps.Logger)

	quoteSvc := service.NewQuoteService(
		deps.Repos.Quotes,
		deps.Repos.Templates,
		deps.Integrations.Exporter,
		deps.Integrations.Interpreter,
		deps.Dispatcher,
		kv,
	)

	var opts []service.ReviewOption
	if deps.Metrics != nil {
		opts = append(opts, service.WithMetrics(deps.Metrics))
	}
	reviewSvc := service.NewReviewService(
		deps.Repos.Quotes,
		deps.Repos.Sessions,
		deps.Dispatcher,
		reviewConfig(deps.Config),
		kv,
		opts...,
	)

	notificationSvc := service.NewNotificationService(deps.Integrations.Notifier, kv)
	notificationSvc.Register(deps.Dispatcher)

	return &ServiceBundle{
		Quote:        quoteSvc,
		Review:       reviewSvc,
		Conversation: service.NewConversationService(reviewSvc, quoteSvc, deps.Integrations.Notifier, kv),
		Notification: notificationSvc,
	}, nil
}

// ProvideWorkers registers the background workers. The idle session sweeper
// only runs when sessions can expire.
func ProvideWorkers(cfg *config.Config, review service.ReviewService, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg.Review.IdleTimeout > 0 {
		manager.Register(worker.NewSessionSweeper(review, cfg.Review.SweepInterval, logger))
	}
	return manager
}

// ProvideMetrics creates the Prometheus metrics when enabled.
func ProvideMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewMetrics()
}
