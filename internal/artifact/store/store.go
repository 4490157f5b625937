package store

import (
	"context"
	"time"

	"custos/internal/artifact/models"
	id "custos/pkg/domain"
)

// Store persists generated work items.
type Store interface {
	// Add inserts a new artifact.
	Add(ctx context.Context, artifact *models.Artifact) error

	// Update persists mutations to an existing artifact.
	Update(ctx context.Context, artifact *models.Artifact) error

	// Get returns the artifact by id, or a not-found error.
	Get(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error)

	// ExistsOpen reports whether an open artifact of the given kind already
	// exists for the subject. Generators use it to keep scheduling idempotent.
	ExistsOpen(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, kind models.Kind) (bool, error)

	// ListOpen returns all open artifacts of a kind for a tenant, ordered by id.
	ListOpen(ctx context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Artifact, error)

	// ListOpenDueWithin returns open artifacts of a kind whose due date falls
	// at or before the cutoff, ordered by id.
	ListOpenDueWithin(ctx context.Context, tenantID id.TenantID, kind models.Kind, until time.Time) ([]*models.Artifact, error)

	// ListCompletedUnreviewed returns completed artifacts of a kind whose
	// review is still outstanding and whose completion predates the cutoff.
	ListCompletedUnreviewed(ctx context.Context, tenantID id.TenantID, kind models.Kind, before time.Time) ([]*models.Artifact, error)

	// OverdueTaskCount counts open tasks past their due date.
	OverdueTaskCount(ctx context.Context, tenantID id.TenantID) (int, error)
}
