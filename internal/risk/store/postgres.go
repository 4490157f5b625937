package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custos/internal/risk/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/tx"
)

// Postgres persists the risk register in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var terminalRiskStatuses = []string{
	string(models.RiskStatusClosed), string(models.RiskStatusAccepted),
}

const riskColumns = `
	id, tenant_id, title, status, likelihood, impact, inherent_score,
	residual_score, residual_tier, control_effectiveness, owner_id,
	last_recalculated_at, updated_at`

func (s *Postgres) ListStale(ctx context.Context, tenantID id.TenantID, before time.Time, limit int) ([]*models.Risk, error) {
	return s.queryRisks(ctx, `
		SELECT `+riskColumns+` FROM risks
		WHERE tenant_id = $1 AND status <> ALL($2)
		  AND (last_recalculated_at IS NULL OR last_recalculated_at < $3)
		ORDER BY last_recalculated_at NULLS FIRST, id
		LIMIT $4
	`, uuid.UUID(tenantID), pq.Array(terminalRiskStatuses), before, limit)
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Risk, error) {
	return s.queryRisks(ctx, `
		SELECT `+riskColumns+` FROM risks
		WHERE tenant_id = $1
		ORDER BY id
	`, uuid.UUID(tenantID))
}

func (s *Postgres) ControlLinks(ctx context.Context, riskID id.RiskID) ([]models.ControlLink, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT risk_id, control_name, active, implementation_status, compliance_status, weight
		FROM risk_control_links
		WHERE risk_id = $1
		ORDER BY control_name
	`, uuid.UUID(riskID))
	if err != nil {
		return nil, fmt.Errorf("list control links: %w", err)
	}
	defer rows.Close()

	var out []models.ControlLink
	for rows.Next() {
		var (
			link   models.ControlLink
			rawID  uuid.UUID
			impl   string
			comp   string
			weight sql.NullFloat64
		)
		if err := rows.Scan(&rawID, &link.ControlName, &link.Active, &impl, &comp, &weight); err != nil {
			return nil, fmt.Errorf("scan control link: %w", err)
		}
		link.RiskID = id.RiskID(rawID)
		link.Implementation = models.ImplementationStatus(impl)
		link.Compliance = models.ComplianceStatus(comp)
		if weight.Valid {
			w := weight.Float64
			link.Weight = &w
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list control links: %w", err)
	}
	return out, nil
}

func (s *Postgres) Update(ctx context.Context, risk *models.Risk) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE risks SET
			inherent_score = $2,
			residual_score = $3,
			residual_tier = $4,
			control_effectiveness = $5,
			last_recalculated_at = $6,
			updated_at = $7
		WHERE id = $1
	`, uuid.UUID(risk.ID), risk.InherentScore, risk.ResidualScore,
		string(risk.ResidualTier), risk.ControlEffectiveness,
		risk.LastRecalculatedAt, risk.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update risk: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "risk not found")
	}
	return nil
}

func (s *Postgres) Put(ctx context.Context, risk *models.Risk) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO risks (`+riskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			likelihood = EXCLUDED.likelihood,
			impact = EXCLUDED.impact,
			inherent_score = EXCLUDED.inherent_score,
			residual_score = EXCLUDED.residual_score,
			residual_tier = EXCLUDED.residual_tier,
			control_effectiveness = EXCLUDED.control_effectiveness,
			owner_id = EXCLUDED.owner_id,
			last_recalculated_at = EXCLUDED.last_recalculated_at,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(risk.ID), uuid.UUID(risk.TenantID), risk.Title,
		string(risk.Status), risk.Likelihood, risk.Impact, risk.InherentScore,
		risk.ResidualScore, string(risk.ResidualTier), risk.ControlEffectiveness,
		nullableUUID(uuid.UUID(risk.OwnerID)), risk.LastRecalculatedAt, risk.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put risk: %w", err)
	}
	return nil
}

func (s *Postgres) PutControlLink(ctx context.Context, link models.ControlLink) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO risk_control_links (risk_id, control_name, active, implementation_status, compliance_status, weight)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (risk_id, control_name) DO UPDATE SET
			active = EXCLUDED.active,
			implementation_status = EXCLUDED.implementation_status,
			compliance_status = EXCLUDED.compliance_status,
			weight = EXCLUDED.weight
	`, uuid.UUID(link.RiskID), link.ControlName, link.Active,
		string(link.Implementation), string(link.Compliance), link.Weight)
	if err != nil {
		return fmt.Errorf("put control link: %w", err)
	}
	return nil
}

func (s *Postgres) OpenCriticalRiskCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM risks
		WHERE tenant_id = $1 AND status <> ALL($2) AND residual_tier = $3
	`, uuid.UUID(tenantID), pq.Array(terminalRiskStatuses),
		string(models.TierCritical)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count critical risks: %w", err)
	}
	return count, nil
}

func (s *Postgres) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tenant_risk_profiles (tenant_id, total_risks, critical_risks,
			high_risks, medium_risks, low_risks, average_residual, last_calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
			total_risks = EXCLUDED.total_risks,
			critical_risks = EXCLUDED.critical_risks,
			high_risks = EXCLUDED.high_risks,
			medium_risks = EXCLUDED.medium_risks,
			low_risks = EXCLUDED.low_risks,
			average_residual = EXCLUDED.average_residual,
			last_calculated_at = EXCLUDED.last_calculated_at
	`, uuid.UUID(profile.TenantID), profile.TotalRisks, profile.CriticalRisks,
		profile.HighRisks, profile.MediumRisks, profile.LowRisks,
		profile.AverageResidual, profile.LastCalculatedAt)
	if err != nil {
		return fmt.Errorf("upsert tenant profile: %w", err)
	}
	return nil
}

func (s *Postgres) GetProfile(ctx context.Context, tenantID id.TenantID) (*models.Profile, error) {
	var (
		profile models.Profile
		rawTen  uuid.UUID
	)
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT tenant_id, total_risks, critical_risks, high_risks, medium_risks,
		       low_risks, average_residual, last_calculated_at
		FROM tenant_risk_profiles
		WHERE tenant_id = $1
	`, uuid.UUID(tenantID)).Scan(&rawTen, &profile.TotalRisks,
		&profile.CriticalRisks, &profile.HighRisks, &profile.MediumRisks,
		&profile.LowRisks, &profile.AverageResidual, &profile.LastCalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant profile: %w", err)
	}
	profile.TenantID = id.TenantID(rawTen)
	return &profile, nil
}

const kriColumns = `
	id, tenant_id, name, calculation, current_value, warning_threshold,
	critical_threshold, status, owner_id, last_calculated_at`

func (s *Postgres) ListKRIs(ctx context.Context, tenantID id.TenantID) ([]*models.KRIDefinition, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT `+kriColumns+` FROM kri_definitions
		WHERE tenant_id = $1
		ORDER BY id
	`, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list kris: %w", err)
	}
	defer rows.Close()

	var out []*models.KRIDefinition
	for rows.Next() {
		var (
			kri     models.KRIDefinition
			rawID   uuid.UUID
			rawTen  uuid.UUID
			calc    string
			status  string
			ownerID uuid.NullUUID
		)
		if err := rows.Scan(&rawID, &rawTen, &kri.Name, &calc, &kri.CurrentValue,
			&kri.WarningThreshold, &kri.CriticalThreshold, &status, &ownerID,
			&kri.LastCalculatedAt); err != nil {
			return nil, fmt.Errorf("scan kri: %w", err)
		}
		kri.ID = id.KRIID(rawID)
		kri.TenantID = id.TenantID(rawTen)
		kri.Calculation = models.KRICalculation(calc)
		kri.Status = models.KRIStatus(status)
		if ownerID.Valid {
			kri.OwnerID = id.UserID(ownerID.UUID)
		}
		out = append(out, &kri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list kris: %w", err)
	}
	return out, nil
}

func (s *Postgres) UpdateKRI(ctx context.Context, kri *models.KRIDefinition) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE kri_definitions SET
			current_value = $2,
			status = $3,
			last_calculated_at = $4
		WHERE id = $1
	`, uuid.UUID(kri.ID), kri.CurrentValue, string(kri.Status), kri.LastCalculatedAt)
	if err != nil {
		return fmt.Errorf("update kri: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "kri not found")
	}
	return nil
}

func (s *Postgres) PutKRI(ctx context.Context, kri *models.KRIDefinition) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO kri_definitions (`+kriColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			calculation = EXCLUDED.calculation,
			current_value = EXCLUDED.current_value,
			warning_threshold = EXCLUDED.warning_threshold,
			critical_threshold = EXCLUDED.critical_threshold,
			status = EXCLUDED.status,
			owner_id = EXCLUDED.owner_id,
			last_calculated_at = EXCLUDED.last_calculated_at
	`, uuid.UUID(kri.ID), uuid.UUID(kri.TenantID), kri.Name,
		string(kri.Calculation), kri.CurrentValue, kri.WarningThreshold,
		kri.CriticalThreshold, string(kri.Status),
		nullableUUID(uuid.UUID(kri.OwnerID)), kri.LastCalculatedAt)
	if err != nil {
		return fmt.Errorf("put kri: %w", err)
	}
	return nil
}

func (s *Postgres) queryRisks(ctx context.Context, q string, args ...any) ([]*models.Risk, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query risks: %w", err)
	}
	defer rows.Close()

	var out []*models.Risk
	for rows.Next() {
		var (
			risk    models.Risk
			rawID   uuid.UUID
			rawTen  uuid.UUID
			status  string
			tier    string
			ownerID uuid.NullUUID
		)
		if err := rows.Scan(&rawID, &rawTen, &risk.Title, &status,
			&risk.Likelihood, &risk.Impact, &risk.InherentScore,
			&risk.ResidualScore, &tier, &risk.ControlEffectiveness, &ownerID,
			&risk.LastRecalculatedAt, &risk.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}
		risk.ID = id.RiskID(rawID)
		risk.TenantID = id.TenantID(rawTen)
		risk.Status = models.RiskStatus(status)
		risk.ResidualTier = models.Tier(tier)
		if ownerID.Valid {
			risk.OwnerID = id.UserID(ownerID.UUID)
		}
		out = append(out, &risk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query risks: %w", err)
	}
	return out, nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
