package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"custos/internal/tenant/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/tx"
)

// Postgres persists tenants in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) ListEligible(ctx context.Context, requireOnboarded bool) ([]*models.Tenant, error) {
	query := `
		SELECT id, name, status, onboarding_status, created_at, updated_at
		FROM tenants
		WHERE status = $1
	`
	args := []any{string(models.TenantStatusActive)}
	if requireOnboarded {
		query += ` AND onboarding_status = $2`
		args = append(args, string(models.OnboardingCompleted))
	}
	query += ` ORDER BY id`

	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list eligible tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list eligible tenants: %w", err)
	}
	return out, nil
}

func (s *Postgres) Get(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, name, status, onboarding_status, created_at, updated_at
		FROM tenants WHERE id = $1
	`, uuid.UUID(tenantID))

	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Postgres) Put(ctx context.Context, tenant *models.Tenant) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tenants (id, name, status, onboarding_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			onboarding_status = EXCLUDED.onboarding_status,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(tenant.ID), tenant.Name, string(tenant.Status), string(tenant.Onboarding), tenant.CreatedAt, tenant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put tenant: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*models.Tenant, error) {
	var (
		t          models.Tenant
		rawID      uuid.UUID
		status     string
		onboarding string
	)
	if err := row.Scan(&rawID, &t.Name, &status, &onboarding, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	t.ID = id.TenantID(rawID)
	t.Status = models.TenantStatus(status)
	t.Onboarding = models.OnboardingStatus(onboarding)
	return &t, nil
}
