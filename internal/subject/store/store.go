// Package store persists cadence subjects.
package store

import (
	"context"

	"custos/internal/subject/models"
	id "custos/pkg/domain"
)

// Store is the subject persistence contract.
type Store interface {
	// ListActive returns the tenant's active subjects of one kind.
	ListActive(ctx context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Subject, error)

	// Update replaces a subject's mutable bookkeeping fields.
	Update(ctx context.Context, subject *models.Subject) error

	// Put inserts or replaces a subject. Used by provisioning and tests.
	Put(ctx context.Context, subject *models.Subject) error

	// ExpiredEvidenceCount counts evidence packs past their validity date
	// as of the run's logical clock.
	ExpiredEvidenceCount(ctx context.Context, tenantID id.TenantID) (int, error)

	// ComplianceGapPercent returns the percentage of applicable controls
	// that are not compliant (0 when the tenant has no applicable controls).
	ComplianceGapPercent(ctx context.Context, tenantID id.TenantID) (float64, error)
}
