package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custos/internal/risk/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Memory is an in-memory risk store used in unit tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	risks    map[id.RiskID]*models.Risk
	links    map[id.RiskID][]models.ControlLink
	profiles map[id.TenantID]*models.Profile
	kris     map[id.KRIID]*models.KRIDefinition
}

func NewMemory() *Memory {
	return &Memory{
		risks:    make(map[id.RiskID]*models.Risk),
		links:    make(map[id.RiskID][]models.ControlLink),
		profiles: make(map[id.TenantID]*models.Profile),
		kris:     make(map[id.KRIID]*models.KRIDefinition),
	}
}

func (m *Memory) ListStale(ctx context.Context, tenantID id.TenantID, before time.Time, limit int) ([]*models.Risk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Risk
	for _, r := range m.risks {
		if r.TenantID != tenantID || r.Status.IsTerminal() {
			continue
		}
		if r.LastRecalculatedAt == nil || r.LastRecalculatedAt.Before(before) {
			out = append(out, cloneRisk(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastRecalculatedAt == nil && b.LastRecalculatedAt == nil:
			return a.ID.String() < b.ID.String()
		case a.LastRecalculatedAt == nil:
			return true
		case b.LastRecalculatedAt == nil:
			return false
		case a.LastRecalculatedAt.Equal(*b.LastRecalculatedAt):
			return a.ID.String() < b.ID.String()
		default:
			return a.LastRecalculatedAt.Before(*b.LastRecalculatedAt)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Risk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Risk
	for _, r := range m.risks {
		if r.TenantID == tenantID {
			out = append(out, cloneRisk(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) ControlLinks(ctx context.Context, riskID id.RiskID) ([]models.ControlLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	links := m.links[riskID]
	out := make([]models.ControlLink, len(links))
	copy(out, links)
	return out, nil
}

func (m *Memory) Update(ctx context.Context, risk *models.Risk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.risks[risk.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "risk not found")
	}
	m.risks[risk.ID] = cloneRisk(risk)
	return nil
}

func (m *Memory) Put(ctx context.Context, risk *models.Risk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.risks[risk.ID] = cloneRisk(risk)
	return nil
}

func (m *Memory) PutControlLink(ctx context.Context, link models.ControlLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.links[link.RiskID] {
		if existing.ControlName == link.ControlName {
			m.links[link.RiskID][i] = link
			return nil
		}
	}
	m.links[link.RiskID] = append(m.links[link.RiskID], link)
	return nil
}

func (m *Memory) OpenCriticalRiskCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, r := range m.risks {
		if r.TenantID == tenantID && !r.Status.IsTerminal() && r.ResidualTier == models.TierCritical {
			count++
		}
	}
	return count, nil
}

func (m *Memory) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *profile
	m.profiles[profile.TenantID] = &clone
	return nil
}

func (m *Memory) GetProfile(ctx context.Context, tenantID id.TenantID) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[tenantID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant profile not found")
	}
	clone := *profile
	return &clone, nil
}

func (m *Memory) ListKRIs(ctx context.Context, tenantID id.TenantID) ([]*models.KRIDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.KRIDefinition
	for _, kri := range m.kris {
		if kri.TenantID == tenantID {
			out = append(out, cloneKRI(kri))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) UpdateKRI(ctx context.Context, kri *models.KRIDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kris[kri.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "kri not found")
	}
	m.kris[kri.ID] = cloneKRI(kri)
	return nil
}

func (m *Memory) PutKRI(ctx context.Context, kri *models.KRIDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kris[kri.ID] = cloneKRI(kri)
	return nil
}

func cloneRisk(r *models.Risk) *models.Risk {
	clone := *r
	clone.Likelihood = cloneInt(r.Likelihood)
	clone.Impact = cloneInt(r.Impact)
	clone.ResidualScore = cloneInt(r.ResidualScore)
	clone.LastRecalculatedAt = cloneTime(r.LastRecalculatedAt)
	return &clone
}

func cloneKRI(k *models.KRIDefinition) *models.KRIDefinition {
	clone := *k
	clone.CurrentValue = cloneFloat(k.CurrentValue)
	clone.WarningThreshold = cloneFloat(k.WarningThreshold)
	clone.CriticalThreshold = cloneFloat(k.CriticalThreshold)
	clone.LastCalculatedAt = cloneTime(k.LastCalculatedAt)
	return &clone
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
