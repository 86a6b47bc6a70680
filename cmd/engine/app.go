package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/api"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain/recurrence"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/idempotency"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/lease"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/notify"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/notify/email"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/notify/push"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/outbox"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/dynamo"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/kafka"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/postgres"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/recurring"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/scheduler"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/worker"
)

// backends are the stateful dependencies the engine runs against. In
// production they come from PostgreSQL, Redis and DynamoDB; tests supply
// in-memory implementations.
type backends struct {
	tx          store.Transactor
	outbox      store.OutboxStore
	contacts    store.ContactStore
	ledger      idempotency.Ledger
	deadLetters events.DeadLetterSink
	lease       lease.Lease
	ready       api.ReadinessFunc
	closers     []func() error
}

// application holds every long-running component and the resources that
// must be released on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	backends backends
	channels []notify.Channel

	// bus is where the relay publishes; it is the Kafka producer or the
	// in-memory bus.
	bus      events.Publisher
	pool     *worker.KeyedPool
	producer *kafka.Producer
	groups   []*kafka.Group

	relay       *outbox.Relay
	scheduler   *scheduler.Scheduler
	dispatcher  *notify.Dispatcher
	regenerator *recurring.Regenerator
	reaper      *idempotency.Reaper

	handler http.Handler
}

// newApplication builds the production backends and channels from cfg and
// assembles the engine.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	b, err := newBackends(ctx, cfg, logger, db)
	if err != nil {
		return nil, err
	}
	channels, err := newChannels(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, logger, b, channels), nil
}

func newBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (backends, error) {
	stores := store.Stores{
		Tasks:     postgres.NewPostgresTaskStore(db, logger),
		Rules:     postgres.NewPostgresRuleStore(db, logger),
		Reminders: postgres.NewPostgresReminderStore(db, logger),
		Outbox:    postgres.NewPostgresOutboxStore(db, logger),
	}
	b := backends{
		tx:          postgres.NewTransactor(db, stores),
		outbox:      stores.Outbox,
		contacts:    postgres.NewPostgresContactStore(db, logger),
		deadLetters: postgres.NewDeadLetterStore(db, logger),
		closers:     []func() error{db.Close},
	}

	switch cfg.Ledger.Driver {
	case "dynamodb":
		client, err := dynamo.NewClient(ctx, cfg.Ledger.DynamoDB)
		if err != nil {
			return backends{}, fmt.Errorf("failed to create DynamoDB client: %w", err)
		}
		b.ledger = dynamo.NewLedger(client, cfg.Ledger.DynamoDB.Table, cfg.Ledger.Retention, logger)
	default:
		b.ledger = postgres.NewLedger(db, logger)
	}

	var rdb *redis.Client
	switch cfg.Lease.Driver {
	case "redis":
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Lease.RedisAddr, DB: cfg.Lease.RedisDB})
		b.lease = lease.NewRedis(rdb, cfg.Lease.Key, cfg.Lease.TTL, logger)
		b.closers = append(b.closers, rdb.Close)
	default:
		b.lease = lease.Static{}
	}

	b.ready = func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
	return b, nil
}

func newChannels(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]notify.Channel, error) {
	var channels []notify.Channel
	if cfg.Email.Enabled {
		client, err := email.NewClient(ctx, cfg.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES client: %w", err)
		}
		channels = append(channels, email.New(client, cfg.Email.From, logger))
	}
	if cfg.Push.Enabled {
		client := &http.Client{Timeout: cfg.Dispatcher.SendTimeout}
		channels = append(channels, push.New(cfg.Push, client, logger))
	}
	if len(channels) == 0 {
		logger.Warn("no notification channels enabled, every reminder will fail delivery")
	}
	return channels, nil
}

// assemble wires the event pipeline:
//
//	scheduler / regenerator -> outbox -> relay -> bus -> processor -> handlers
//
// Result events from the dispatcher go back through the outbox.
func assemble(cfg *config.Config, logger *slog.Logger, b backends, channels []notify.Channel) *application {
	app := &application{
		config:   cfg,
		logger:   logger,
		backends: b,
		channels: channels,
	}

	policy := events.RetryPolicy{
		MaxAttempts: cfg.Bus.MaxAttempts,
		BaseDelay:   cfg.Bus.RetryBackoff,
	}

	regenRouter := events.NewRouter()
	dispatchRouter := events.NewRouter()

	switch cfg.Bus.Driver {
	case "kafka":
		topics := kafka.TopicsFromConfig(cfg.Bus.Kafka)
		app.producer = kafka.NewProducer(kafka.NewWriter(cfg.Bus.Kafka), topics, logger)
		app.bus = app.producer

		count := cfg.Bus.Kafka.ConsumersPerGroup
		app.groups = []*kafka.Group{
			kafka.NewGroup(cfg.Bus.Kafka, topics.Tasks, idempotency.GroupRegenerator, count,
				events.NewProcessor(regenRouter, app.producer, policy, logger), logger),
			kafka.NewGroup(cfg.Bus.Kafka, topics.Reminders, idempotency.GroupDispatcher, count,
				events.NewProcessor(dispatchRouter, app.producer, policy, logger), logger),
		}
	default:
		// One process hosts every consumer, so a single router serves both.
		app.pool = worker.NewKeyedPool(worker.Config{
			WorkerCount: cfg.Bus.WorkerCount,
			QueueSize:   cfg.Bus.QueueSize,
		}, logger)
		regenRouter = dispatchRouter
		app.bus = events.NewInMemoryBus(app.pool,
			events.NewProcessor(dispatchRouter, b.deadLetters, policy, logger), logger)
	}

	app.relay = outbox.NewRelay(b.tx, b.outbox, app.bus, cfg.Outbox.BatchSize, cfg.Outbox.RelayInterval, logger)

	app.dispatcher = notify.NewDispatcher(
		b.ledger,
		notify.NewStoreResolver(b.contacts),
		outbox.NewPublisher(b.outbox, app.relay),
		notify.OptionsFromConfig(cfg.Dispatcher),
		logger,
		channels...,
	)
	app.regenerator = recurring.New(b.tx, b.ledger, recurrence.NewCalculator(), app.relay, logger)
	dispatchRouter.Subscribe(events.ReminderDue, app.dispatcher)
	regenRouter.Subscribe(events.TaskCompleted, app.regenerator)

	app.scheduler = scheduler.New(b.tx, b.lease, app.relay, cfg.Scheduler, logger)
	app.reaper = idempotency.NewReaper(b.ledger, cfg.Ledger.Retention, cfg.Ledger.ReapInterval, logger)

	app.handler = api.NewRouter(api.NewOpsHandler(b.ready, app.status), logger)
	return app
}

// status builds the /status snapshot.
func (app *application) status(ctx context.Context) (*api.EngineStatus, error) {
	pending, err := app.relay.Pending(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(app.channels))
	for _, ch := range app.channels {
		names = append(names, string(ch.Name()))
	}
	return &api.EngineStatus{
		BusDriver:     app.config.Bus.Driver,
		LedgerDriver:  app.config.Ledger.Driver,
		LeaseDriver:   app.config.Lease.Driver,
		LeaseHeld:     app.backends.lease.Held(),
		Channels:      names,
		Scheduler:     app.scheduler.Status(),
		OutboxPending: pending,
	}, nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails, then shuts the rest down.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if app.pool != nil {
		app.pool.Start()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.startHTTPServer(ctx, app.handler) })
	g.Go(func() error { return app.relay.Run(ctx) })
	g.Go(func() error { return app.scheduler.Run(ctx) })
	g.Go(func() error { return app.reaper.Run(ctx) })
	for _, group := range app.groups {
		group := group
		g.Go(func() error { return group.Run(ctx) })
	}

	app.logger.Info("engine started",
		"bus_driver", app.config.Bus.Driver,
		"channels", len(app.channels))

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("engine stopped: %w", err)
	}
	return nil
}

// cleanup drains in-process work and releases resources.
func (app *application) cleanup() {
	if app.pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		app.pool.Stop(ctx)
		cancel()
	}
	if app.producer != nil {
		if err := app.producer.Close(); err != nil {
			app.logger.Error("error closing Kafka producer", "error", err)
		}
	}
	for _, closeFn := range app.backends.closers {
		if err := closeFn(); err != nil {
			app.logger.Error("error closing resource", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
