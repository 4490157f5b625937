package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custos/internal/artifact/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// Memory is an in-memory artifact store used in unit tests and local runs.
type Memory struct {
	mu        sync.RWMutex
	artifacts map[id.ArtifactID]*models.Artifact
}

func NewMemory() *Memory {
	return &Memory{artifacts: make(map[id.ArtifactID]*models.Artifact)}
}

func (m *Memory) Add(ctx context.Context, artifact *models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.artifacts[artifact.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "artifact already exists")
	}
	m.artifacts[artifact.ID] = cloneArtifact(artifact)
	return nil
}

func (m *Memory) Update(ctx context.Context, artifact *models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.artifacts[artifact.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "artifact not found")
	}
	m.artifacts[artifact.ID] = cloneArtifact(artifact)
	return nil
}

func (m *Memory) Get(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	artifact, ok := m.artifacts[artifactID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found")
	}
	return cloneArtifact(artifact), nil
}

func (m *Memory) ExistsOpen(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, kind models.Kind) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.artifacts {
		if a.TenantID == tenantID && a.SubjectID == subjectID && a.Kind == kind && a.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListOpen(ctx context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Artifact, error) {
	return m.list(func(a *models.Artifact) bool {
		return a.TenantID == tenantID && a.Kind == kind && a.Status.IsOpen()
	}), nil
}

func (m *Memory) ListOpenDueWithin(ctx context.Context, tenantID id.TenantID, kind models.Kind, until time.Time) ([]*models.Artifact, error) {
	return m.list(func(a *models.Artifact) bool {
		return a.TenantID == tenantID && a.Kind == kind && a.Status.IsOpen() &&
			a.DueAt != nil && !a.DueAt.After(until)
	}), nil
}

func (m *Memory) ListCompletedUnreviewed(ctx context.Context, tenantID id.TenantID, kind models.Kind, before time.Time) ([]*models.Artifact, error) {
	return m.list(func(a *models.Artifact) bool {
		return a.TenantID == tenantID && a.Kind == kind &&
			a.Status == models.StatusCompleted && !a.ReviewCompleted &&
			a.CompletedAt != nil && a.CompletedAt.Before(before)
	}), nil
}

func (m *Memory) OverdueTaskCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	now := runcontext.Now(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.artifacts {
		if a.TenantID == tenantID && a.Kind == models.KindTask && a.Status.IsOpen() &&
			a.DueAt != nil && a.DueAt.Before(now) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) list(keep func(*models.Artifact) bool) []*models.Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Artifact
	for _, a := range m.artifacts {
		if keep(a) {
			out = append(out, cloneArtifact(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func cloneArtifact(a *models.Artifact) *models.Artifact {
	clone := *a
	clone.StartAt = cloneTime(a.StartAt)
	clone.DueAt = cloneTime(a.DueAt)
	clone.LastReminderAt = cloneTime(a.LastReminderAt)
	clone.CompletedAt = cloneTime(a.CompletedAt)
	if a.Payload != nil {
		clone.Payload = append([]byte(nil), a.Payload...)
	}
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
