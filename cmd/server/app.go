package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/medflow/priorauth/internal/api"
	"github.com/medflow/priorauth/internal/auth"
	"github.com/medflow/priorauth/internal/broker"
	"github.com/medflow/priorauth/internal/config"
	"github.com/medflow/priorauth/internal/notification"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/platform/postgres"
	"github.com/medflow/priorauth/internal/workflow"
)

// Queue topology. Concurrency × prefetch bounds unacknowledged in-flight
// tasks per queue; the notifications queue runs wide with prefetch 1 so a
// slow delivery never starves its siblings' redelivery budget.
const (
	queuePriorAuth     = "prior_auth"
	queueNotifications = "notifications"
	queueDocuments     = "documents"
)

// documentsCleanupTask is scheduled but owns no documents subsystem here;
// its handler acknowledges the invocation so the task never dead-letters.
const documentsCleanupTask = "documents.cleanup_expired"

// application holds the fully wired server: shared infrastructure, one
// executor pool per queue, the scheduler, and the HTTP surface.
type application struct {
	cfg    *config.Config
	logger *slog.Logger

	db     *sql.DB
	broker broker.Broker

	submitter *orchestrator.TaskSubmitter
	pools     []*orchestrator.ExecutorPool
	scheduler *orchestrator.Scheduler

	taskHandler         *api.TaskHandler
	requestHandler      *api.RequestHandler
	notificationHandler *api.NotificationHandler
	tokens              auth.TokenService
}

// newApplication wires every component from configuration: database, broker,
// queue registry, router, retry policy, stores, workflow service, task
// handlers, executor pools, scheduler, and HTTP handlers. Nothing is started
// yet; start launches the pools and the scheduler.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	b, err := openBroker(cfg.Broker, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app, err := assembleApplication(ctx, cfg, log, db, b)
	if err != nil {
		_ = b.Close()
		_ = db.Close()
		return nil, err
	}

	return app, nil
}

// openBroker selects the broker backend from configuration.
func openBroker(cfg config.BrokerConfig, log *slog.Logger) (broker.Broker, error) {
	switch cfg.Kind {
	case "memory":
		return broker.NewMemoryBroker(cfg.VisibilityTimeout, log), nil
	case "amqp":
		return broker.NewAMQPBroker(cfg.URL, log)
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}

func assembleApplication(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	db *sql.DB,
	b broker.Broker,
) (*application, error) {
	// Queue topology and routing rules.
	registry := orchestrator.NewQueueRegistry()
	queues := []struct {
		name        string
		concurrency int
		prefetch    int
	}{
		{queuePriorAuth, 4, 2},
		{queueNotifications, 8, 1},
		{queueDocuments, 2, 1},
	}

	for _, q := range queues {
		if err := registry.Register(q.name, q.concurrency, q.prefetch); err != nil {
			return nil, fmt.Errorf("failed to register queue %q: %w", q.name, err)
		}

		if err := b.Declare(ctx, q.name); err != nil {
			return nil, fmt.Errorf("failed to declare queue %q: %w", q.name, err)
		}
	}

	router := orchestrator.NewRouter(registry)
	rules := []struct {
		pattern  string
		queue    string
		priority int
	}{
		{"prior_auth.*", queuePriorAuth, orchestrator.DefaultPriority},
		{"notifications.*", queueNotifications, orchestrator.DefaultPriority},
		{"documents.*", queueDocuments, orchestrator.DefaultPriority},
	}

	for _, r := range rules {
		if err := router.AddRule(r.pattern, r.queue, r.priority); err != nil {
			return nil, fmt.Errorf("failed to add routing rule %q: %w", r.pattern, err)
		}
	}

	submitter := orchestrator.NewTaskSubmitter(
		router,
		registry,
		b,
		cfg.Orchestrator.MaxAttempts,
		cfg.Orchestrator.TaskTimeout,
		log,
	)

	// Stores and domain services.
	requestStore := postgres.NewPostgresRequestStore(db, log)
	notificationStore := postgres.NewPostgresNotificationStore(db, log)
	deadLetterStore := postgres.NewPostgresDeadLetterStore(db, log)

	dispatcher, err := notification.NewDispatcher(
		notificationStore,
		submitter,
		cfg.Orchestrator.DedupWindow,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification dispatcher: %w", err)
	}

	workflowSvc, err := workflow.NewService(requestStore, dispatcher, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow service: %w", err)
	}

	// Task handlers.
	handlers := orchestrator.NewHandlerRegistry()
	registrations := map[string]orchestrator.Handler{
		workflow.TaskUpdateRequestStatus: workflow.UpdateRequestStatusHandler(workflowSvc),
		workflow.TaskExpireStale: workflow.ExpireStaleHandler(workflowSvc, workflow.ExpireStaleConfig{
			Deadline: cfg.Orchestrator.PendingInfoDeadline,
		}),
		notification.DeliverTaskName: notification.DeliverHandler(notification.LogDeliverer{}),
		notification.PurgeTaskName:   notification.PurgeExpiredHandler(notificationStore),
		documentsCleanupTask:         documentsCleanupHandler(log),
	}

	for name, h := range registrations {
		if err := handlers.Register(name, h); err != nil {
			return nil, fmt.Errorf("failed to register handler %q: %w", name, err)
		}
	}

	// Retry policy shared by every pool.
	retry := orchestrator.NewRetryManager(orchestrator.RetryPolicy{
		Initial:     cfg.Orchestrator.RetryInitial,
		Step:        cfg.Orchestrator.RetryStep,
		Max:         cfg.Orchestrator.RetryMax,
		MaxAttempts: cfg.Orchestrator.MaxAttempts,
	})

	pools := make([]*orchestrator.ExecutorPool, 0, len(queues))
	for _, name := range registry.Names() {
		queueCfg, err := registry.Lookup(name)
		if err != nil {
			return nil, err
		}

		pools = append(pools, orchestrator.NewExecutorPool(
			queueCfg,
			b,
			handlers,
			retry,
			deadLetterStore,
			cfg.Orchestrator.TaskTimeout,
			log,
		))
	}

	scheduler, err := orchestrator.NewScheduler(scheduleTable(), submitter, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Every scheduled name must resolve to a handler at boot, not at the
	// first tick.
	if err := handlers.ValidateNames(scheduler.EntryNames()); err != nil {
		return nil, fmt.Errorf("schedule references unknown handler: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	return &application{
		cfg:                 cfg,
		logger:              log,
		db:                  db,
		broker:              b,
		submitter:           submitter,
		pools:               pools,
		scheduler:           scheduler,
		taskHandler:         api.NewTaskHandler(submitter, deadLetterStore, log),
		requestHandler:      api.NewRequestHandler(workflowSvc, log),
		notificationHandler: api.NewNotificationHandler(notificationStore, log),
		tokens:              tokens,
	}, nil
}

// start launches the executor pools and the scheduler.
func (a *application) start() error {
	for _, pool := range a.pools {
		if err := pool.Start(); err != nil {
			return err
		}
	}

	a.scheduler.Start()
	return nil
}

// stop shuts down in dependency order: scheduler first so no new periodic
// tasks enter, then the pools drain their in-flight work, then the broker
// and database close.
func (a *application) stop() {
	a.scheduler.Stop()

	for _, pool := range a.pools {
		pool.Stop()
	}

	if err := a.broker.Close(); err != nil {
		a.logger.Warn("broker close failed", "error", err)
	}

	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}
}
