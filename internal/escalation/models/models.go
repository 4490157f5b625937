// Package models defines the escalation subjects: remediation action plans
// and incidents.
package models

import (
	"time"

	id "custos/pkg/domain"
)

// PlanStatus is the lifecycle state of a remediation action plan.
type PlanStatus string

const (
	PlanStatusOpen              PlanStatus = "Open"
	PlanStatusInProgress        PlanStatus = "InProgress"
	PlanStatusOverdue           PlanStatus = "Overdue"
	PlanStatusCriticallyOverdue PlanStatus = "CriticallyOverdue"
	PlanStatusCompleted         PlanStatus = "Completed"
	PlanStatusCancelled         PlanStatus = "Cancelled"
)

// IsTerminal reports whether the plan has left the escalation loop.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusCancelled
}

// severityRank orders plan statuses so escalation never moves backwards.
func (s PlanStatus) severityRank() int {
	switch s {
	case PlanStatusCriticallyOverdue:
		return 2
	case PlanStatusOverdue:
		return 1
	default:
		return 0
	}
}

// AtOrAbove reports whether s is already at least as severe as target.
func (s PlanStatus) AtOrAbove(target PlanStatus) bool {
	return s.severityRank() >= target.severityRank()
}

// ActionPlan is a gap-remediation plan tracked for overdue escalation.
//
// Invariant: EscalationLevel is monotonically non-decreasing while the plan
// is open; the status never reverts from a higher severity without an
// external resolution action.
type ActionPlan struct {
	ID              id.PlanID
	TenantID        id.TenantID
	Title           string
	Status          PlanStatus
	EscalationLevel int
	DueDate         *time.Time
	OwnerID         id.UserID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasOwner reports whether the plan has someone to notify.
func (p *ActionPlan) HasOwner() bool {
	return !p.OwnerID.IsNil()
}

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "Open"
	IncidentStatusResolved IncidentStatus = "Resolved"
	IncidentStatusClosed   IncidentStatus = "Closed"
)

// IsOpen reports whether the incident is still in the SLA loop.
func (s IncidentStatus) IsOpen() bool {
	return s != IncidentStatusResolved && s != IncidentStatusClosed
}

// Severity is the incident severity used to index the SLA table.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Incident carries the two independent SLA axes: response and resolution.
// Response breach is a one-shot flag; resolution breach is cumulative and
// bumps EscalationLevel on every evaluation while still breached.
type Incident struct {
	ID                    id.IncidentID
	TenantID              id.TenantID
	Title                 string
	Severity              Severity
	Status                IncidentStatus
	AssignedToID          id.UserID
	CreatedAt             time.Time
	FirstRespondedAt      *time.Time
	ResponseSLABreached   bool
	ResolutionSLABreached bool
	EscalationLevel       int
	UpdatedAt             time.Time
}

// HasAssignee reports whether the incident has someone to notify.
func (i *Incident) HasAssignee() bool {
	return !i.AssignedToID.IsNil()
}
