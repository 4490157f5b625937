// Package models defines the generated work items the engine manages:
// assessments, drills, calendar events, tasks, reports, and attestations.
package models

import (
	"time"

	id "custos/pkg/domain"
)

// Kind distinguishes the families of generated work items.
type Kind string

const (
	KindAssessment      Kind = "assessment"
	KindControlTest     Kind = "control_test"
	KindEvidenceRenewal Kind = "evidence_renewal"
	KindDrill           Kind = "drill"
	KindCalendarEvent   Kind = "calendar_event"
	KindTask            Kind = "task"
	KindReport          Kind = "report"
	KindAttestation     Kind = "attestation"
)

// Status is the lifecycle state of an artifact.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusScheduled  Status = "SCHEDULED"
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusApproved   Status = "APPROVED"
)

// IsOpen reports whether the artifact still demands work.
func (s Status) IsOpen() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPending, StatusInProgress:
		return true
	}
	return false
}

// Priority orders work items for assignees.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Artifact is a single generated work item. The optional fields are used by
// a subset of kinds: EventType and TaskCreated by calendar events, CompletedAt
// and ReviewCompleted by drills, Payload by reports.
type Artifact struct {
	ID         id.ArtifactID
	TenantID   id.TenantID
	SubjectID  id.SubjectID
	Kind       Kind
	Title      string
	Status     Status
	Priority   Priority
	AssigneeID id.UserID

	StartAt *time.Time
	DueAt   *time.Time

	// Reminder track. LastReminderAt records the most recent reminder day
	// so a second run on the same day does not fire twice.
	LastReminderAt *time.Time
	ReminderCount  int

	EventType   string
	TaskCreated bool

	CompletedAt     *time.Time
	ReviewCompleted bool

	Payload []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAssignee reports whether the artifact has someone to notify.
func (a *Artifact) HasAssignee() bool {
	return !a.AssigneeID.IsNil()
}
