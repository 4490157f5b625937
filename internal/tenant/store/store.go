// Package store persists tenants. The engine itself never creates or
// deletes tenants; it only enumerates them for batch runs.
package store

import (
	"context"

	"custos/internal/tenant/models"
	id "custos/pkg/domain"
)

// Store is the tenant persistence contract consumed by the orchestrator.
type Store interface {
	// ListEligible returns the tenants that participate in a run.
	// requireOnboarded excludes tenants still in onboarding.
	ListEligible(ctx context.Context, requireOnboarded bool) ([]*models.Tenant, error)

	// Get returns one tenant or nil when absent.
	Get(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)

	// Put inserts or replaces a tenant. Used by provisioning and tests.
	Put(ctx context.Context, tenant *models.Tenant) error
}
