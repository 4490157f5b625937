package store

import (
	"context"

	"custos/internal/escalation/models"
	id "custos/pkg/domain"
)

// PlanStore persists remediation action plans.
type PlanStore interface {
	// ListActionable returns non-terminal plans with a due date, ordered by id.
	ListActionable(ctx context.Context, tenantID id.TenantID) ([]*models.ActionPlan, error)

	Update(ctx context.Context, plan *models.ActionPlan) error
	Put(ctx context.Context, plan *models.ActionPlan) error
}

// IncidentStore persists incidents.
type IncidentStore interface {
	// ListOpen returns open incidents for a tenant, ordered by id.
	ListOpen(ctx context.Context, tenantID id.TenantID) ([]*models.Incident, error)

	Update(ctx context.Context, incident *models.Incident) error
	Put(ctx context.Context, incident *models.Incident) error
}
