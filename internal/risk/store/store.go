package store

import (
	"context"
	"time"

	"custos/internal/risk/models"
	id "custos/pkg/domain"
)

// Store persists the risk register: risks, their control links, the
// per-tenant profile aggregate, and KRI definitions.
type Store interface {
	// ListStale returns non-terminal risks whose last recalculation predates
	// the cutoff (or never happened), oldest-first, capped at limit.
	ListStale(ctx context.Context, tenantID id.TenantID, before time.Time, limit int) ([]*models.Risk, error)

	// ListByTenant returns all risks for a tenant, ordered by id. Used to
	// rebuild the tenant profile aggregate.
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Risk, error)

	// ControlLinks returns the control links for a risk.
	ControlLinks(ctx context.Context, riskID id.RiskID) ([]models.ControlLink, error)

	Update(ctx context.Context, risk *models.Risk) error
	Put(ctx context.Context, risk *models.Risk) error
	PutControlLink(ctx context.Context, link models.ControlLink) error

	// OpenCriticalRiskCount counts non-terminal risks in the Critical tier.
	OpenCriticalRiskCount(ctx context.Context, tenantID id.TenantID) (int, error)

	UpsertProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, tenantID id.TenantID) (*models.Profile, error)

	// ListKRIs returns all KRI definitions for a tenant, ordered by id.
	ListKRIs(ctx context.Context, tenantID id.TenantID) ([]*models.KRIDefinition, error)
	UpdateKRI(ctx context.Context, kri *models.KRIDefinition) error
	PutKRI(ctx context.Context, kri *models.KRIDefinition) error
}
