package batch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	tenantmodels "custos/internal/tenant/models"
	tenantstore "custos/internal/tenant/store"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/tx"
	"custos/pkg/runcontext"
)

// UnitOfWork wraps one tenant's pass in a persistence boundary.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLUnitOfWork commits or rolls back each tenant pass as one transaction.
type SQLUnitOfWork struct {
	DB *sql.DB
}

func (u SQLUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Execute(ctx, u.DB, fn)
}

// NoopUnitOfWork runs the pass directly. Memory stores mutate as they go, so
// isolation there relies on operations failing fast before writing.
type NoopUnitOfWork struct{}

func (NoopUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// TenantFunc is one operation's work for a single tenant.
type TenantFunc func(ctx context.Context, tenant *tenantmodels.Tenant) (Counts, error)

const defaultLockTTL = 10 * time.Minute

// Orchestrator fans an operation out over every eligible tenant.
type Orchestrator struct {
	tenants     tenantstore.Store
	uow         UnitOfWork
	locker      Locker
	log         *slog.Logger
	parallelism int
	lockTTL     time.Duration

	// requireOnboarded excludes tenants that have not finished onboarding.
	requireOnboarded bool
}

type Option func(*Orchestrator)

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func WithLocker(locker Locker) Option {
	return func(o *Orchestrator) { o.locker = locker }
}

func WithParallelism(n int) Option {
	return func(o *Orchestrator) { o.parallelism = n }
}

func WithLockTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.lockTTL = ttl }
}

func WithRequireOnboarded(require bool) Option {
	return func(o *Orchestrator) { o.requireOnboarded = require }
}

func NewOrchestrator(tenants tenantstore.Store, uow UnitOfWork, opts ...Option) (*Orchestrator, error) {
	if tenants == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant store is required")
	}
	if uow == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unit of work is required")
	}
	o := &Orchestrator{
		tenants:          tenants,
		uow:              uow,
		locker:           NewMemoryLocker(),
		log:              slog.Default(),
		parallelism:      4,
		lockTTL:          defaultLockTTL,
		requireOnboarded: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes fn once per eligible tenant and returns the aggregate report.
// A tenant error is captured in the report; it never stops other tenants.
func (o *Orchestrator) Run(ctx context.Context, operation string, fn TenantFunc) (*Report, error) {
	runID := uuid.NewString()
	// Freeze the logical clock for the whole run so every due-date and
	// freshness decision agrees, even when the run crosses midnight. A clock
	// already stamped by the caller is kept.
	startedAt := runcontext.Now(ctx)
	ctx = runcontext.WithRunID(ctx, runID)
	ctx = runcontext.WithOperation(ctx, operation)
	ctx = runcontext.WithTime(ctx, startedAt)

	tracer := otel.Tracer("custos/batch")
	ctx, span := tracer.Start(ctx, "batch.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.operation", operation),
		attribute.String("batch.run_id", runID),
	)

	report := &Report{
		Operation: operation,
		RunID:     runID,
		StartedAt: startedAt,
	}

	release, acquired, err := o.locker.Acquire(ctx, operation, o.lockTTL)
	if err != nil {
		runsTotal.WithLabelValues(operation, "error").Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire run lock")
	}
	if !acquired {
		o.log.InfoContext(ctx, "run skipped, lock held elsewhere", "operation", operation)
		runsTotal.WithLabelValues(operation, "skipped").Inc()
		report.Skipped = true
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			o.log.WarnContext(ctx, "release run lock", "operation", operation, "error", err)
		}
	}()

	tenants, err := o.tenants.ListEligible(ctx, o.requireOnboarded)
	if err != nil {
		runsTotal.WithLabelValues(operation, "error").Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list eligible tenants")
	}

	start := time.Now()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for _, tenant := range tenants {
		g.Go(func() error {
			outcome := o.runTenant(gctx, operation, tenant, fn)
			mu.Lock()
			report.Tenants = append(report.Tenants, outcome)
			if outcome.Err != nil {
				report.Failed++
			} else {
				report.Succeeded++
				report.Totals.Add(outcome.Counts)
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	runDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	artifactsCreatedTotal.WithLabelValues(operation).Add(float64(report.Totals.Created))
	notificationsSentTotal.WithLabelValues(operation).Add(float64(report.Totals.Notified))

	outcome := "ok"
	if report.Failed > 0 {
		outcome = "partial_failure"
		span.SetStatus(codes.Error, "one or more tenants failed")
	}
	runsTotal.WithLabelValues(operation, outcome).Inc()

	o.log.InfoContext(ctx, "run finished",
		"operation", operation,
		"run_id", runID,
		"tenants", len(tenants),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"created", report.Totals.Created,
		"notified", report.Totals.Notified,
	)
	return report, nil
}

func (o *Orchestrator) runTenant(ctx context.Context, operation string, tenant *tenantmodels.Tenant, fn TenantFunc) TenantOutcome {
	tracer := otel.Tracer("custos/batch")
	ctx, span := tracer.Start(ctx, "batch.tenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenant.ID.String()))

	ctx = runcontext.WithTenantID(ctx, tenant.ID)
	outcome := TenantOutcome{TenantID: tenant.ID}

	err := o.uow.Execute(ctx, func(ctx context.Context) error {
		counts, err := fn(ctx, tenant)
		if err != nil {
			return err
		}
		outcome.Counts = counts
		return nil
	})
	if err != nil {
		outcome.Err = err
		tenantFailuresTotal.WithLabelValues(operation).Inc()
		span.SetStatus(codes.Error, err.Error())
		o.log.ErrorContext(ctx, "tenant pass failed",
			"operation", operation,
			"tenant_id", tenant.ID.String(),
			"error", err,
		)
	}
	return outcome
}

// TenantIDs lists the tenants a report touched, for callers that log or test
// against membership rather than order.
func (r *Report) TenantIDs() []id.TenantID {
	out := make([]id.TenantID, 0, len(r.Tenants))
	for _, t := range r.Tenants {
		out = append(out, t.TenantID)
	}
	return out
}
