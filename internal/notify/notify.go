// Package notify defines the notification contract consumed by the engine.
//
// Delivery is fire-and-forget from the engine's perspective: a failed send is
// the notification subsystem's concern and is never retried within a run.
package notify

import (
	"context"

	id "custos/pkg/domain"
)

// Urgency orders notification importance.
type Urgency string

const (
	UrgencyLow      Urgency = "Low"
	UrgencyMedium   Urgency = "Medium"
	UrgencyHigh     Urgency = "High"
	UrgencyCritical Urgency = "Critical"
)

// Category names the kind of event a notification reports.
type Category string

const (
	CategoryAssessmentReminder    Category = "AssessmentReminder"
	CategoryComplianceReminder    Category = "ComplianceReminder"
	CategoryDrillScheduled        Category = "DrillScheduled"
	CategoryDrillReminder         Category = "DrillReminder"
	CategoryDrillReviewNeeded     Category = "DrillReviewNeeded"
	CategoryRemediationOverdue    Category = "RemediationOverdue"
	CategoryRemediationCritical   Category = "RemediationCritical"
	CategoryIncidentResponseSLA   Category = "IncidentSlaBreached"
	CategoryIncidentResolutionSLA Category = "IncidentResolutionSlaBreached"
	CategoryRiskAlert             Category = "RiskAlert"
	CategoryKRIAlert              Category = "KRIAlert"
	CategoryPolicyReviewDue       Category = "PolicyReviewDue"
	CategoryReviewScheduled       Category = "QuarterlyReviewScheduled"
)

// Request is one notification to be delivered to a tenant user.
type Request struct {
	TenantID    id.TenantID
	RecipientID id.UserID
	SubjectID   string
	Category    Category
	Title       string
	Body        string
	Urgency     Urgency
}

// Notifier dispatches notification requests. Implementations must treat the
// call as best-effort; the engine does not retry.
type Notifier interface {
	Send(ctx context.Context, req Request) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, req Request) error

func (f Func) Send(ctx context.Context, req Request) error { return f(ctx, req) }

// Discard is a Notifier that drops every request. Useful as a default when
// no transport is wired.
var Discard Notifier = Func(func(context.Context, Request) error { return nil })
