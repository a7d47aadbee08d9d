package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/crafter"
	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/handler"
	"idmanager/internal/issuance/lock"
	"idmanager/internal/issuance/metrics"
	"idmanager/internal/issuance/notify"
	"idmanager/internal/issuance/service"
	"idmanager/internal/issuance/store"
	"idmanager/internal/issuance/webhook"
	"idmanager/internal/issuance/workflow"
	"idmanager/internal/platform/config"
	"idmanager/internal/platform/database"
	"idmanager/internal/platform/health"
	"idmanager/internal/platform/kafka/producer"
	platformredis "idmanager/internal/platform/redis"
	"idmanager/internal/platform/tracer"
	httptransport "idmanager/internal/transport/http"
	request "idmanager/pkg/platform/middleware/request"
)

// scheduler is the offer scheduler seen by the server lifecycle.
type scheduler interface {
	webhook.Scheduler
	Shutdown(ctx context.Context) error
}

// blockingScheduler has nothing to drain: offers run inside the delivery.
type blockingScheduler struct {
	*webhook.BlockingScheduler
}

func (blockingScheduler) Shutdown(context.Context) error { return nil }

type app struct {
	router    http.Handler
	scheduler scheduler
	db        *database.Pool
	redis     *platformredis.Client
	producer  *producer.Producer
}

// close releases infrastructure clients in reverse order of creation.
func (a *app) close() error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checks := health.New(cfg.Environment)

	st, err := buildStore(ctx, cfg, a, checks)
	if err != nil {
		return nil, err
	}
	locker, err := buildLocker(ctx, cfg, reg, a, checks)
	if err != nil {
		a.close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, err
	}
	publisher, err := buildPublisher(cfg, log, a, checks)
	if err != nil {
		a.close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, err
	}

	agentClient := agent.NewClient(agent.Config{
		BaseURL:      cfg.Agent.URL,
		TransportURL: cfg.Agent.TransportURL,
		APIKey:       cfg.Agent.AuthToken,
		Timeout:      cfg.Agent.Timeout,
	}, agent.WithTracer(tracer.NewOTel()), agent.WithMetrics(agent.NewMetrics(reg)))
	checks.RegisterCheck("agent", func(ctx context.Context) error {
		_, err := agentClient.PublicDID(ctx)
		return err
	})

	bindings, err := crafter.ParseBindings(cfg.CredentialCrafters)
	if err != nil {
		// Resolution failures fall back to the default crafter.
		log.Warn("ignoring malformed CREDENTIAL_CRAFTERS", "error", err)
		bindings = nil
	}
	crafters := crafter.NewRegistry(bindings, crafter.Builtins(time.Now))

	issuanceMetrics := metrics.New(reg)
	engine := workflow.NewEngine(st, agentClient, crafters,
		workflow.WithLogger(log),
		workflow.WithMetrics(issuanceMetrics),
		workflow.WithPublisher(publisher),
		workflow.WithLocker(locker),
	)

	switch cfg.Offers.DispatchMode {
	case config.DispatchBlocking:
		a.scheduler = blockingScheduler{webhook.NewBlockingScheduler(engine, cfg.Offers.Delay, log, issuanceMetrics)}
	default:
		a.scheduler = webhook.NewAsyncScheduler(engine,
			webhook.WithDelay(cfg.Offers.Delay),
			webhook.WithRetryMaxElapsed(cfg.Offers.RetryMaxElapsed),
			webhook.WithAttemptTimeout(cfg.Agent.Timeout),
			webhook.WithSchedulerLogger(log),
			webhook.WithSchedulerMetrics(issuanceMetrics),
		)
	}

	dispatcher := webhook.NewDispatcher(engine, a.scheduler,
		webhook.WithDispatcherLogger(log),
		webhook.WithDispatcherMetrics(issuanceMetrics),
	)
	if cfg.Agent.WebhooksAPIKey == "" {
		log.Warn("ACA_PY_WEBHOOKS_API_KEY is not set, agent callbacks will be ignored")
	}

	svc := service.New(st, engine, agentClient,
		service.WithLogger(log),
		service.WithNotifier(notify.NewLogNotifier(log)),
		service.WithSiteURL(cfg.SiteURL),
	)

	a.router = httptransport.NewRouter(httptransport.Config{
		Issuance:   handler.New(svc, cfg.SiteURL, log),
		Webhooks:   webhook.NewHandler(dispatcher, cfg.Agent.WebhooksAPIKey, log, issuanceMetrics),
		Health:     checks,
		AdminToken: cfg.AdminAPIToken,
		Gatherer:   reg,
		Metrics:    request.NewMetrics(reg),
		Logger:     log,
	})
	return a, nil
}

func buildStore(ctx context.Context, cfg config.Server, a *app, checks *health.Handler) (store.Store, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	pool, err := database.New(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if pool == nil {
		return store.NewInMemoryStore(), nil
	}
	a.db = pool
	checks.RegisterCheck("database", pool.Health)
	return store.NewPostgres(pool.DB()), nil
}

func buildLocker(ctx context.Context, cfg config.Server, reg prometheus.Registerer, a *app, checks *health.Handler) (lock.Locker, error) {
	client, err := platformredis.New(ctx, cfg.Redis, reg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return lock.NewLocalLocker(), nil
	}
	a.redis = client
	checks.RegisterCheck("redis", client.Health)
	return lock.NewRedisLocker(client.Client), nil
}

func buildPublisher(cfg config.Server, log *slog.Logger, a *app, checks *health.Handler) (events.Publisher, error) {
	if cfg.Kafka.Brokers == "" {
		return events.NoopPublisher{}, nil
	}
	p, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	a.producer = p
	checks.RegisterCheck("kafka", p.Ping)
	return events.NewKafkaPublisher(p, cfg.Kafka.Topic), nil
}
