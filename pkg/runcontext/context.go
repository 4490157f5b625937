// Package runcontext provides context accessors for run-scoped values.
//
// A batch run stamps its id, operation name, and logical "now" into the
// context once at the top; every component downstream reads the same clock
// instead of calling time.Now, which keeps due-date and freshness decisions
// consistent within a run and deterministic in tests.
//
// Usage in jobs (read values):
//
//	now := runcontext.Now(ctx)
//	runID := runcontext.RunID(ctx)
//
// Usage in the orchestrator (set values):
//
//	ctx = runcontext.WithRunID(ctx, runID)
//	ctx = runcontext.WithTime(ctx, startedAt)
//
// Usage in tests (inject a fixed clock):
//
//	ctx = runcontext.WithTime(ctx, fixedTime)
package runcontext

import (
	"context"
	"time"

	id "custos/pkg/domain"
)

type (
	runIDKey     struct{}
	operationKey struct{}
	runTimeKey   struct{}
	tenantIDKey  struct{}
)

// WithRunID stamps the run identifier into the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run identifier, or "" when unset.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}

// WithOperation stamps the named operation into the context.
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, name)
}

// Operation returns the named operation, or "" when unset.
func Operation(ctx context.Context) string {
	v, _ := ctx.Value(operationKey{}).(string)
	return v
}

// WithTime fixes the logical clock for the run.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, runTimeKey{}, t)
}

// Now returns the run's logical time, falling back to the wall clock when a
// run time was never stamped.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(runTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// Today returns the run's logical time truncated to midnight UTC. Reminder
// and due-date arithmetic works in whole calendar days.
func Today(ctx context.Context) time.Time {
	now := Now(ctx)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// WithTenantID records the tenant currently being processed.
func WithTenantID(ctx context.Context, tenantID id.TenantID) context.Context {
	return context.WithValue(ctx, tenantIDKey{}, tenantID)
}

// TenantID returns the tenant in scope, or the zero id when outside a tenant
// unit of work.
func TenantID(ctx context.Context) id.TenantID {
	v, _ := ctx.Value(tenantIDKey{}).(id.TenantID)
	return v
}
