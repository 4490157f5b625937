// Package artifact creates and tracks generated work items.
package artifact

import (
	"context"
	"log/slog"
	"time"

	"custos/internal/artifact/models"
	"custos/internal/artifact/store"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// Generator creates work items while guaranteeing that a subject never
// accumulates more than one open artifact of the same kind.
type Generator struct {
	store store.Store
	log   *slog.Logger
}

type Option func(*Generator)

func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) { g.log = log }
}

func NewGenerator(s store.Store, opts ...Option) (*Generator, error) {
	if s == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "artifact store is required")
	}
	g := &Generator{store: s, log: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Draft describes the artifact to create. ID and timestamps are assigned by
// the generator.
type Draft struct {
	TenantID   id.TenantID
	SubjectID  id.SubjectID
	Kind       models.Kind
	Title      string
	Status     models.Status
	Priority   models.Priority
	AssigneeID id.UserID
	StartAt    *time.Time
	DueAt      *time.Time
	EventType  string
}

// CreateIfAbsent creates the drafted artifact unless an open one of the same
// kind already exists for the subject. It returns the created artifact and
// true, or nil and false when the draft was skipped.
func (g *Generator) CreateIfAbsent(ctx context.Context, draft Draft) (*models.Artifact, bool, error) {
	if draft.TenantID.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if draft.Kind == "" {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "artifact kind is required")
	}

	exists, err := g.store.ExistsOpen(ctx, draft.TenantID, draft.SubjectID, draft.Kind)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "check open artifact")
	}
	if exists {
		return nil, false, nil
	}

	now := runcontext.Now(ctx)
	status := draft.Status
	if status == "" {
		status = models.StatusScheduled
	}
	a := &models.Artifact{
		ID:         id.NewArtifactID(),
		TenantID:   draft.TenantID,
		SubjectID:  draft.SubjectID,
		Kind:       draft.Kind,
		Title:      draft.Title,
		Status:     status,
		Priority:   draft.Priority,
		AssigneeID: draft.AssigneeID,
		StartAt:    draft.StartAt,
		DueAt:      draft.DueAt,
		EventType:  draft.EventType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := g.store.Add(ctx, a); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "add artifact")
	}

	g.log.InfoContext(ctx, "artifact created",
		"artifact_id", a.ID.String(),
		"tenant_id", a.TenantID.String(),
		"subject_id", a.SubjectID.String(),
		"kind", string(a.Kind),
	)
	return a, true, nil
}

// PriorityForDays maps days until due to a work item priority.
func PriorityForDays(days int) models.Priority {
	switch {
	case days <= 7:
		return models.PriorityCritical
	case days <= 14:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}
