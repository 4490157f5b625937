package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"custos/internal/artifact"
	artifactstore "custos/internal/artifact/store"
	"custos/internal/batch"
	escstore "custos/internal/escalation/store"
	"custos/internal/jobs"
	"custos/internal/notify"
	"custos/internal/notify/kafka"
	"custos/internal/platform/config"
	"custos/internal/platform/redis"
	riskstore "custos/internal/risk/store"
	"custos/internal/rules"
	subjectstore "custos/internal/subject/store"
	tenantstore "custos/internal/tenant/store"
	"custos/migrations"
)

// app holds the wired engine and the resources it owns.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	runner *jobs.Runner

	// Orchestrators are built per operation because onboarding eligibility
	// differs between them.
	uow      batch.UnitOfWork
	orchOpts []batch.Option
	tenants  tenantstore.Store

	db        *sql.DB
	redis     *redis.Client
	publisher *kafka.Publisher
}

// newApp wires stores, notifier, locker, and orchestrator from config.
// Postgres, Redis, and Kafka are each optional; missing ones degrade to
// in-process equivalents.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	r, err := loadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	var (
		subjects  subjectstore.Store
		artifacts artifactstore.Store
		plans     escstore.PlanStore
		incidents escstore.IncidentStore
		risks     riskstore.Store
		uow       batch.UnitOfWork
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		a.db = db

		subjects = subjectstore.NewPostgres(db)
		artifacts = artifactstore.NewPostgres(db)
		plans = escstore.NewPlanPostgres(db)
		incidents = escstore.NewIncidentPostgres(db)
		risks = riskstore.NewPostgres(db)
		a.tenants = tenantstore.NewPostgres(db)
		uow = batch.SQLUnitOfWork{DB: db}
	} else {
		log.Warn("no postgres dsn configured, using in-memory stores")
		subjects = subjectstore.NewMemory()
		artifacts = artifactstore.NewMemory()
		plans = escstore.NewPlanMemory()
		incidents = escstore.NewIncidentMemory()
		risks = riskstore.NewMemory()
		a.tenants = tenantstore.NewMemory()
		uow = batch.NoopUnitOfWork{}
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	generator, err := artifact.NewGenerator(artifacts, artifact.WithLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner, err = jobs.NewRunner(jobs.Deps{
		Rules:     r,
		Subjects:  subjects,
		Artifacts: artifacts,
		Generator: generator,
		Plans:     plans,
		Incidents: incidents,
		Risks:     risks,
		Notifier:  notifier,
	}, jobs.WithLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}

	orchOpts := []batch.Option{
		batch.WithLogger(log),
		batch.WithParallelism(cfg.Parallelism),
		batch.WithLockTTL(cfg.LockTTL),
	}
	if cfg.RedisURL != "" {
		client, err := redis.New(ctx, cfg.RedisURL, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		orchOpts = append(orchOpts, batch.WithLocker(batch.NewRedisLocker(client.Client)))
	} else {
		log.Warn("no redis url configured, run lock is per-process only")
	}
	a.uow = uow
	a.orchOpts = orchOpts
	return a, nil
}

// orchestratorFor builds the orchestrator for one operation, carrying its
// onboarding eligibility.
func (a *app) orchestratorFor(op jobs.Operation) (*batch.Orchestrator, error) {
	opts := append([]batch.Option{batch.WithRequireOnboarded(op.RequireOnboarded)}, a.orchOpts...)
	return batch.NewOrchestrator(a.tenants, a.uow, opts...)
}

// runOperation executes one named operation once and returns its report.
func (a *app) runOperation(ctx context.Context, op jobs.Operation) (*batch.Report, error) {
	orch, err := a.orchestratorFor(op)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, op.Name, op.Func)
}

func (a *app) buildNotifier() (notify.Notifier, error) {
	if len(a.cfg.KafkaBrokers) == 0 {
		log := a.log
		log.Warn("no kafka brokers configured, notifications go to the log")
		return notify.Func(func(ctx context.Context, req notify.Request) error {
			log.InfoContext(ctx, "notification",
				"tenant_id", req.TenantID,
				"recipient_id", req.RecipientID,
				"category", req.Category,
				"urgency", req.Urgency,
				"title", req.Title,
			)
			return nil
		}), nil
	}
	pub, err := kafka.NewPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, kafka.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	a.publisher = pub
	return pub, nil
}

// migrate applies the embedded schema. Postgres must be configured.
func (a *app) migrate(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("migrate requires a postgres dsn")
	}
	return migrations.Apply(ctx, a.db)
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func loadRules(path string) (rules.Rules, error) {
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}
