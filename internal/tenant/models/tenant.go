// Package models defines the tenant aggregate.
package models

import (
	"time"

	id "custos/pkg/domain"
)

// TenantStatus is the activation state of a tenant.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// OnboardingStatus tracks how far a tenant has progressed through setup.
// Generation operations only run for completed tenants so half-configured
// organizations do not receive auto-created work items.
type OnboardingStatus string

const (
	OnboardingPending   OnboardingStatus = "PENDING"
	OnboardingCompleted OnboardingStatus = "COMPLETED"
)

// Tenant is one isolated customer organization. All engine state is
// partitioned by tenant and no operation reads or writes across tenants.
type Tenant struct {
	ID         id.TenantID
	Name       string
	Status     TenantStatus
	Onboarding OnboardingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive reports whether the tenant participates in batch runs at all.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// IsEligible reports whether the tenant participates in the given kind of
// run. Operations that generate new work additionally require completed
// onboarding; monitoring operations only require an active tenant.
func (t *Tenant) IsEligible(requireOnboarded bool) bool {
	if !t.IsActive() {
		return false
	}
	if requireOnboarded {
		return t.Onboarding == OnboardingCompleted
	}
	return true
}
