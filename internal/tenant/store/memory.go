package store

import (
	"context"
	"sort"
	"sync"

	"custos/internal/tenant/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Memory is an in-memory tenant store. It backs unit tests and single-node
// deployments without a database.
type Memory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tenants: make(map[id.TenantID]*models.Tenant)}
}

func (m *Memory) ListEligible(_ context.Context, requireOnboarded bool) ([]*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		if t.IsEligible(requireOnboarded) {
			clone := *t
			out = append(out, &clone)
		}
	}
	// Deterministic order keeps run logs and tests stable.
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) Get(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	clone := *t
	return &clone, nil
}

func (m *Memory) Put(_ context.Context, tenant *models.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *tenant
	m.tenants[tenant.ID] = &clone
	return nil
}
