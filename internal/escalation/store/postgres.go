package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custos/internal/escalation/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/tx"
)

// PlanPostgres persists action plans in PostgreSQL.
type PlanPostgres struct {
	db *sql.DB
}

func NewPlanPostgres(db *sql.DB) *PlanPostgres {
	return &PlanPostgres{db: db}
}

var terminalPlanStatuses = []string{
	string(models.PlanStatusCompleted), string(models.PlanStatusCancelled),
}

func (s *PlanPostgres) ListActionable(ctx context.Context, tenantID id.TenantID) ([]*models.ActionPlan, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT id, tenant_id, title, status, escalation_level, due_date, owner_id, created_at, updated_at
		FROM action_plans
		WHERE tenant_id = $1 AND status <> ALL($2) AND due_date IS NOT NULL
		ORDER BY id
	`, uuid.UUID(tenantID), pq.Array(terminalPlanStatuses))
	if err != nil {
		return nil, fmt.Errorf("list actionable plans: %w", err)
	}
	defer rows.Close()

	var out []*models.ActionPlan
	for rows.Next() {
		var (
			p       models.ActionPlan
			rawID   uuid.UUID
			rawTen  uuid.UUID
			status  string
			ownerID uuid.NullUUID
		)
		if err := rows.Scan(&rawID, &rawTen, &p.Title, &status, &p.EscalationLevel,
			&p.DueDate, &ownerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan action plan: %w", err)
		}
		p.ID = id.PlanID(rawID)
		p.TenantID = id.TenantID(rawTen)
		p.Status = models.PlanStatus(status)
		if ownerID.Valid {
			p.OwnerID = id.UserID(ownerID.UUID)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list actionable plans: %w", err)
	}
	return out, nil
}

func (s *PlanPostgres) Update(ctx context.Context, plan *models.ActionPlan) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE action_plans SET
			status = $2,
			escalation_level = $3,
			updated_at = $4
		WHERE id = $1
	`, uuid.UUID(plan.ID), string(plan.Status), plan.EscalationLevel, plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update action plan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "action plan not found")
	}
	return nil
}

func (s *PlanPostgres) Put(ctx context.Context, plan *models.ActionPlan) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO action_plans (id, tenant_id, title, status, escalation_level, due_date, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			escalation_level = EXCLUDED.escalation_level,
			due_date = EXCLUDED.due_date,
			owner_id = EXCLUDED.owner_id,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(plan.ID), uuid.UUID(plan.TenantID), plan.Title, string(plan.Status),
		plan.EscalationLevel, plan.DueDate, nullableUUID(uuid.UUID(plan.OwnerID)),
		plan.CreatedAt, plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put action plan: %w", err)
	}
	return nil
}

// IncidentPostgres persists incidents in PostgreSQL.
type IncidentPostgres struct {
	db *sql.DB
}

func NewIncidentPostgres(db *sql.DB) *IncidentPostgres {
	return &IncidentPostgres{db: db}
}

var closedIncidentStatuses = []string{
	string(models.IncidentStatusResolved), string(models.IncidentStatusClosed),
}

func (s *IncidentPostgres) ListOpen(ctx context.Context, tenantID id.TenantID) ([]*models.Incident, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT id, tenant_id, title, severity, status, assigned_to_id, created_at,
		       first_responded_at, response_sla_breached, resolution_sla_breached,
		       escalation_level, updated_at
		FROM incidents
		WHERE tenant_id = $1 AND status <> ALL($2)
		ORDER BY id
	`, uuid.UUID(tenantID), pq.Array(closedIncidentStatuses))
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}
	defer rows.Close()

	var out []*models.Incident
	for rows.Next() {
		var (
			inc        models.Incident
			rawID      uuid.UUID
			rawTen     uuid.UUID
			severity   string
			status     string
			assignedTo uuid.NullUUID
		)
		if err := rows.Scan(&rawID, &rawTen, &inc.Title, &severity, &status,
			&assignedTo, &inc.CreatedAt, &inc.FirstRespondedAt,
			&inc.ResponseSLABreached, &inc.ResolutionSLABreached,
			&inc.EscalationLevel, &inc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.ID = id.IncidentID(rawID)
		inc.TenantID = id.TenantID(rawTen)
		inc.Severity = models.Severity(severity)
		inc.Status = models.IncidentStatus(status)
		if assignedTo.Valid {
			inc.AssignedToID = id.UserID(assignedTo.UUID)
		}
		out = append(out, &inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}
	return out, nil
}

func (s *IncidentPostgres) Update(ctx context.Context, incident *models.Incident) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE incidents SET
			response_sla_breached = $2,
			resolution_sla_breached = $3,
			escalation_level = $4,
			updated_at = $5
		WHERE id = $1
	`, uuid.UUID(incident.ID), incident.ResponseSLABreached,
		incident.ResolutionSLABreached, incident.EscalationLevel, incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "incident not found")
	}
	return nil
}

func (s *IncidentPostgres) Put(ctx context.Context, incident *models.Incident) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO incidents (id, tenant_id, title, severity, status, assigned_to_id,
			created_at, first_responded_at, response_sla_breached,
			resolution_sla_breached, escalation_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			severity = EXCLUDED.severity,
			status = EXCLUDED.status,
			assigned_to_id = EXCLUDED.assigned_to_id,
			first_responded_at = EXCLUDED.first_responded_at,
			response_sla_breached = EXCLUDED.response_sla_breached,
			resolution_sla_breached = EXCLUDED.resolution_sla_breached,
			escalation_level = EXCLUDED.escalation_level,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(incident.ID), uuid.UUID(incident.TenantID), incident.Title,
		string(incident.Severity), string(incident.Status),
		nullableUUID(uuid.UUID(incident.AssignedToID)), incident.CreatedAt,
		incident.FirstRespondedAt, incident.ResponseSLABreached,
		incident.ResolutionSLABreached, incident.EscalationLevel, incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put incident: %w", err)
	}
	return nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
