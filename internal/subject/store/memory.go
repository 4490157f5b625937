package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"custos/internal/subject/models"
	id "custos/pkg/domain"
	"custos/pkg/runcontext"
)

// Memory is an in-memory subject store.
type Memory struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]*models.Subject
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{subjects: make(map[id.SubjectID]*models.Subject)}
}

func (m *Memory) ListActive(_ context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Subject
	for _, s := range m.subjects {
		if s.TenantID == tenantID && s.Kind == kind && s.Active {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) Update(_ context.Context, subject *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *subject
	m.subjects[subject.ID] = &clone
	return nil
}

func (m *Memory) Put(ctx context.Context, subject *models.Subject) error {
	return m.Update(ctx, subject)
}

func (m *Memory) ExpiredEvidenceCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	now := runcontext.Now(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.subjects {
		if s.TenantID != tenantID || s.Kind != models.KindEvidencePack || !s.Active {
			continue
		}
		if s.ValidUntil != nil && s.ValidUntil.Before(now) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ComplianceGapPercent(_ context.Context, tenantID id.TenantID) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total, compliant := 0, 0
	for _, s := range m.subjects {
		if s.TenantID != tenantID || s.Kind != models.KindControl || !s.Active || !s.Applicable {
			continue
		}
		total++
		if strings.EqualFold(s.ComplianceStatus, "COMPLIANT") {
			compliant++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return 100 - float64(compliant)/float64(total)*100, nil
}
