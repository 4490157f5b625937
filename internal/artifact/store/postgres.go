package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custos/internal/artifact/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/tx"
	"custos/pkg/runcontext"
)

// Postgres persists artifacts in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const artifactColumns = `
	id, tenant_id, subject_id, kind, title, status, priority, assignee_id,
	start_at, due_at, last_reminder_at, reminder_count, event_type,
	task_created, completed_at, review_completed, payload, created_at, updated_at`

var openStatuses = []string{
	string(models.StatusDraft), string(models.StatusScheduled),
	string(models.StatusPending), string(models.StatusInProgress),
}

func (s *Postgres) Add(ctx context.Context, a *models.Artifact) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, uuid.UUID(a.ID), uuid.UUID(a.TenantID), nullableUUID(uuid.UUID(a.SubjectID)),
		string(a.Kind), a.Title, string(a.Status), string(a.Priority),
		nullableUUID(uuid.UUID(a.AssigneeID)), a.StartAt, a.DueAt,
		a.LastReminderAt, a.ReminderCount, a.EventType, a.TaskCreated,
		a.CompletedAt, a.ReviewCompleted, a.Payload, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("add artifact: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, a *models.Artifact) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE artifacts SET
			status = $2,
			priority = $3,
			assignee_id = $4,
			due_at = $5,
			last_reminder_at = $6,
			reminder_count = $7,
			task_created = $8,
			completed_at = $9,
			review_completed = $10,
			payload = $11,
			updated_at = $12
		WHERE id = $1
	`, uuid.UUID(a.ID), string(a.Status), string(a.Priority),
		nullableUUID(uuid.UUID(a.AssigneeID)), a.DueAt, a.LastReminderAt,
		a.ReminderCount, a.TaskCreated, a.CompletedAt, a.ReviewCompleted,
		a.Payload, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "artifact not found")
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+artifactColumns+` FROM artifacts WHERE id = $1
	`, uuid.UUID(artifactID))
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found")
	}
	return a, err
}

func (s *Postgres) ExistsOpen(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, kind models.Kind) (bool, error) {
	var exists bool
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM artifacts
			WHERE tenant_id = $1 AND subject_id = $2 AND kind = $3
			  AND status = ANY($4)
		)
	`, uuid.UUID(tenantID), uuid.UUID(subjectID), string(kind),
		pq.Array(openStatuses)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists open artifact: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListOpen(ctx context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Artifact, error) {
	return s.query(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE tenant_id = $1 AND kind = $2 AND status = ANY($3)
		ORDER BY id
	`, uuid.UUID(tenantID), string(kind), pq.Array(openStatuses))
}

func (s *Postgres) ListOpenDueWithin(ctx context.Context, tenantID id.TenantID, kind models.Kind, until time.Time) ([]*models.Artifact, error) {
	return s.query(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE tenant_id = $1 AND kind = $2 AND status = ANY($3)
		  AND due_at IS NOT NULL AND due_at <= $4
		ORDER BY id
	`, uuid.UUID(tenantID), string(kind), pq.Array(openStatuses), until)
}

func (s *Postgres) ListCompletedUnreviewed(ctx context.Context, tenantID id.TenantID, kind models.Kind, before time.Time) ([]*models.Artifact, error) {
	return s.query(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE tenant_id = $1 AND kind = $2 AND status = $3
		  AND NOT review_completed
		  AND completed_at IS NOT NULL AND completed_at < $4
		ORDER BY id
	`, uuid.UUID(tenantID), string(kind), string(models.StatusCompleted), before)
}

func (s *Postgres) OverdueTaskCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM artifacts
		WHERE tenant_id = $1 AND kind = $2 AND status = ANY($3)
		  AND due_at IS NOT NULL AND due_at < $4
	`, uuid.UUID(tenantID), string(models.KindTask), pq.Array(openStatuses),
		runcontext.Now(ctx)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count overdue tasks: %w", err)
	}
	return count, nil
}

func (s *Postgres) query(ctx context.Context, q string, args ...any) ([]*models.Artifact, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	return out, nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*models.Artifact, error) {
	var (
		a          models.Artifact
		rawID      uuid.UUID
		rawTen     uuid.UUID
		subjectID  uuid.NullUUID
		assigneeID uuid.NullUUID
		kind       string
		status     string
		priority   string
	)
	err := row.Scan(&rawID, &rawTen, &subjectID, &kind, &a.Title, &status,
		&priority, &assigneeID, &a.StartAt, &a.DueAt, &a.LastReminderAt,
		&a.ReminderCount, &a.EventType, &a.TaskCreated, &a.CompletedAt,
		&a.ReviewCompleted, &a.Payload, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	a.ID = id.ArtifactID(rawID)
	a.TenantID = id.TenantID(rawTen)
	a.Kind = models.Kind(kind)
	a.Status = models.Status(status)
	a.Priority = models.Priority(priority)
	if subjectID.Valid {
		a.SubjectID = id.SubjectID(subjectID.UUID)
	}
	if assigneeID.Valid {
		a.AssigneeID = id.UserID(assigneeID.UUID)
	}
	return &a, nil
}
