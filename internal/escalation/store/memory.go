package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custos/internal/escalation/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// PlanMemory is an in-memory action plan store used in unit tests.
type PlanMemory struct {
	mu    sync.RWMutex
	plans map[id.PlanID]*models.ActionPlan
}

func NewPlanMemory() *PlanMemory {
	return &PlanMemory{plans: make(map[id.PlanID]*models.ActionPlan)}
}

func (m *PlanMemory) ListActionable(ctx context.Context, tenantID id.TenantID) ([]*models.ActionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ActionPlan
	for _, p := range m.plans {
		if p.TenantID == tenantID && !p.Status.IsTerminal() && p.DueDate != nil {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *PlanMemory) Update(ctx context.Context, plan *models.ActionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[plan.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "action plan not found")
	}
	m.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (m *PlanMemory) Put(ctx context.Context, plan *models.ActionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = clonePlan(plan)
	return nil
}

func clonePlan(p *models.ActionPlan) *models.ActionPlan {
	clone := *p
	if p.DueDate != nil {
		d := *p.DueDate
		clone.DueDate = &d
	}
	return &clone
}

// IncidentMemory is an in-memory incident store used in unit tests.
type IncidentMemory struct {
	mu        sync.RWMutex
	incidents map[id.IncidentID]*models.Incident
}

func NewIncidentMemory() *IncidentMemory {
	return &IncidentMemory{incidents: make(map[id.IncidentID]*models.Incident)}
}

func (m *IncidentMemory) ListOpen(ctx context.Context, tenantID id.TenantID) ([]*models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Incident
	for _, inc := range m.incidents {
		if inc.TenantID == tenantID && inc.Status.IsOpen() {
			out = append(out, cloneIncident(inc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *IncidentMemory) Update(ctx context.Context, incident *models.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.incidents[incident.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "incident not found")
	}
	m.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

func (m *IncidentMemory) Put(ctx context.Context, incident *models.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

func cloneIncident(inc *models.Incident) *models.Incident {
	clone := *inc
	clone.FirstRespondedAt = cloneTime(inc.FirstRespondedAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
