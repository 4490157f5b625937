package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"custos/internal/subject/models"
	id "custos/pkg/domain"
	"custos/pkg/platform/tx"
	"custos/pkg/runcontext"
)

// Postgres persists subjects in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed subject store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const subjectColumns = `
	id, tenant_id, kind, name, code, cadence_code, active, owner_id,
	last_activity_at, next_review_at, valid_until, last_attestation_at,
	next_assessment_at, review_reminder_sent, renewal_scheduled,
	applicable, compliance_status, updated_at`

func (s *Postgres) ListActive(ctx context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Subject, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT `+subjectColumns+`
		FROM cadence_subjects
		WHERE tenant_id = $1 AND kind = $2 AND active
		ORDER BY id
	`, uuid.UUID(tenantID), string(kind))
	if err != nil {
		return nil, fmt.Errorf("list active subjects: %w", err)
	}
	defer rows.Close()

	var out []*models.Subject
	for rows.Next() {
		subj, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, subj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active subjects: %w", err)
	}
	return out, nil
}

func (s *Postgres) Update(ctx context.Context, subject *models.Subject) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE cadence_subjects SET
			last_activity_at = $2,
			next_review_at = $3,
			valid_until = $4,
			last_attestation_at = $5,
			next_assessment_at = $6,
			review_reminder_sent = $7,
			renewal_scheduled = $8,
			compliance_status = $9,
			updated_at = $10
		WHERE id = $1
	`, uuid.UUID(subject.ID), subject.LastActivityAt, subject.NextReviewAt,
		subject.ValidUntil, subject.LastAttestationAt, subject.NextAssessmentAt,
		subject.ReviewReminderSent, subject.RenewalScheduled,
		subject.ComplianceStatus, subject.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

func (s *Postgres) Put(ctx context.Context, subject *models.Subject) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO cadence_subjects (`+subjectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			code = EXCLUDED.code,
			cadence_code = EXCLUDED.cadence_code,
			active = EXCLUDED.active,
			owner_id = EXCLUDED.owner_id,
			last_activity_at = EXCLUDED.last_activity_at,
			next_review_at = EXCLUDED.next_review_at,
			valid_until = EXCLUDED.valid_until,
			last_attestation_at = EXCLUDED.last_attestation_at,
			next_assessment_at = EXCLUDED.next_assessment_at,
			review_reminder_sent = EXCLUDED.review_reminder_sent,
			renewal_scheduled = EXCLUDED.renewal_scheduled,
			applicable = EXCLUDED.applicable,
			compliance_status = EXCLUDED.compliance_status,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(subject.ID), uuid.UUID(subject.TenantID), string(subject.Kind),
		subject.Name, subject.Code, subject.CadenceCode, subject.Active,
		nullableUUID(uuid.UUID(subject.OwnerID)), subject.LastActivityAt,
		subject.NextReviewAt, subject.ValidUntil, subject.LastAttestationAt,
		subject.NextAssessmentAt, subject.ReviewReminderSent,
		subject.RenewalScheduled, subject.Applicable, subject.ComplianceStatus,
		subject.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put subject: %w", err)
	}
	return nil
}

func (s *Postgres) ExpiredEvidenceCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cadence_subjects
		WHERE tenant_id = $1 AND kind = $2 AND active AND valid_until < $3
	`, uuid.UUID(tenantID), string(models.KindEvidencePack), runcontext.Now(ctx)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expired evidence: %w", err)
	}
	return count, nil
}

func (s *Postgres) ComplianceGapPercent(ctx context.Context, tenantID id.TenantID) (float64, error) {
	var total, compliant int
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE UPPER(compliance_status) = 'COMPLIANT')
		FROM cadence_subjects
		WHERE tenant_id = $1 AND kind = $2 AND active AND applicable
	`, uuid.UUID(tenantID), string(models.KindControl)).Scan(&total, &compliant)
	if err != nil {
		return 0, fmt.Errorf("compliance gap: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return 100 - float64(compliant)/float64(total)*100, nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}

func scanSubject(rows *sql.Rows) (*models.Subject, error) {
	var (
		subj    models.Subject
		rawID   uuid.UUID
		rawTen  uuid.UUID
		kind    string
		ownerID uuid.NullUUID
	)
	err := rows.Scan(&rawID, &rawTen, &kind, &subj.Name, &subj.Code,
		&subj.CadenceCode, &subj.Active, &ownerID, &subj.LastActivityAt,
		&subj.NextReviewAt, &subj.ValidUntil, &subj.LastAttestationAt,
		&subj.NextAssessmentAt, &subj.ReviewReminderSent, &subj.RenewalScheduled,
		&subj.Applicable, &subj.ComplianceStatus, &subj.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	subj.ID = id.SubjectID(rawID)
	subj.TenantID = id.TenantID(rawTen)
	subj.Kind = models.Kind(kind)
	if ownerID.Valid {
		subj.OwnerID = id.UserID(ownerID.UUID)
	}
	return &subj, nil
}
