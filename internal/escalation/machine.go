// Package escalation implements the pure state machines that move overdue
// remediation plans and SLA-breached incidents through severity levels.
package escalation

import (
	"fmt"
	"time"

	"custos/internal/escalation/models"
	"custos/internal/notify"
	"custos/internal/rules"
)

// PlanTransition describes the outcome of evaluating one action plan.
type PlanTransition struct {
	Transitioned    bool
	NextStatus      models.PlanStatus
	EscalationLevel int
	DaysOverdue     int
	Notify          bool
	Urgency         notify.Urgency
	Category        notify.Category
}

// IncidentTransition describes the outcome of evaluating one incident.
type IncidentTransition struct {
	Changed            bool
	ResponseBreached   bool
	ResolutionBreached bool
	EscalationLevel    int
	HoursOpen          float64
	Notifications      []IncidentNotice
}

// IncidentNotice is one SLA notification owed for a transition.
type IncidentNotice struct {
	Category notify.Category
	Urgency  notify.Urgency
	Title    string
	Body     string
}

// Machine evaluates escalation transitions against injected rule tables.
// It is pure: callers persist the resulting state and emit notifications.
type Machine struct {
	escalation rules.EscalationRules
	sla        rules.SLATable
}

// NewMachine builds a machine over the given rule tables.
func NewMachine(escalation rules.EscalationRules, sla rules.SLATable) Machine {
	return Machine{escalation: escalation, sla: sla}
}

// EvaluatePlan decides the next status for an action plan. Transitions are
// idempotent: a plan already at or above the target severity does not
// transition again and owes no notification, so repeated runs never
// re-notify.
func (m Machine) EvaluatePlan(plan models.ActionPlan, today time.Time) PlanTransition {
	out := PlanTransition{NextStatus: plan.Status, EscalationLevel: plan.EscalationLevel}
	if plan.Status.IsTerminal() || plan.DueDate == nil {
		return out
	}

	due := *plan.DueDate
	if !due.Before(today) {
		return out
	}
	out.DaysOverdue = int(today.Sub(due).Hours() / 24)

	switch {
	case out.DaysOverdue >= m.escalation.CriticalAfterDays &&
		!plan.Status.AtOrAbove(models.PlanStatusCriticallyOverdue):
		out.Transitioned = true
		out.NextStatus = models.PlanStatusCriticallyOverdue
		out.EscalationLevel = maxInt(plan.EscalationLevel, m.escalation.CriticalLevel)
		out.Notify = true
		out.Urgency = notify.UrgencyCritical
		out.Category = notify.CategoryRemediationCritical

	case out.DaysOverdue >= m.escalation.OverdueAfterDays &&
		!plan.Status.AtOrAbove(models.PlanStatusOverdue):
		out.Transitioned = true
		out.NextStatus = models.PlanStatusOverdue
		out.EscalationLevel = maxInt(plan.EscalationLevel, m.escalation.OverdueLevel)
		out.Notify = true
		out.Urgency = notify.UrgencyHigh
		out.Category = notify.CategoryRemediationOverdue
	}
	return out
}

// SLAFor returns the SLA entry for a severity, defaulting for unknown ones.
func (m Machine) SLAFor(severity models.Severity) rules.SLAEntry {
	if entry, ok := m.sla.BySeverity[string(severity)]; ok {
		return entry
	}
	return m.sla.Default
}

// EvaluateIncident checks both SLA axes for an open incident.
//
// Response: breached once when no first response exists past the response
// SLA; the stored flag is the de-dup guard, so an already-flagged incident
// owes nothing even while still unresponded.
//
// Resolution: while unresolved past the resolution SLA the escalation level
// increments on every evaluation and a notification is owed each time. The
// asymmetry with the response axis is deliberate and load-bearing for
// downstream paging behavior.
func (m Machine) EvaluateIncident(inc models.Incident, now time.Time) IncidentTransition {
	out := IncidentTransition{
		ResponseBreached:   inc.ResponseSLABreached,
		ResolutionBreached: inc.ResolutionSLABreached,
		EscalationLevel:    inc.EscalationLevel,
	}
	if !inc.Status.IsOpen() {
		return out
	}

	out.HoursOpen = now.Sub(inc.CreatedAt).Hours()
	entry := m.SLAFor(inc.Severity)

	if inc.FirstRespondedAt == nil &&
		!inc.ResponseSLABreached &&
		out.HoursOpen > float64(entry.ResponseHours) {
		out.Changed = true
		out.ResponseBreached = true
		out.Notifications = append(out.Notifications, IncidentNotice{
			Category: notify.CategoryIncidentResponseSLA,
			Urgency:  notify.UrgencyCritical,
			Title:    fmt.Sprintf("[SLA BREACH] Incident Response: %s", inc.Title),
			Body: fmt.Sprintf("Response SLA has been breached.\n\nIncident: %s\nSeverity: %s\nHours Open: %.0f\nResponse SLA: %d hours",
				inc.Title, inc.Severity, out.HoursOpen, entry.ResponseHours),
		})
	}

	if out.HoursOpen > float64(entry.ResolutionHours) {
		out.Changed = true
		out.ResolutionBreached = true
		out.EscalationLevel = inc.EscalationLevel + 1
		out.Notifications = append(out.Notifications, IncidentNotice{
			Category: notify.CategoryIncidentResolutionSLA,
			Urgency:  notify.UrgencyCritical,
			Title:    fmt.Sprintf("[CRITICAL] Resolution SLA Breach: %s", inc.Title),
			Body: fmt.Sprintf("Resolution SLA has been breached.\n\nIncident: %s\nSeverity: %s\nHours Open: %.0f\nResolution SLA: %d hours\nEscalation Level: %d",
				inc.Title, inc.Severity, out.HoursOpen, entry.ResolutionHours, inc.EscalationLevel+1),
		})
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
