// Package jobs implements the named batch operations: cadence-driven
// scheduling, reminders, escalation, risk recalculation, KRI monitoring,
// and report generation. Each operation is a per-tenant pass invoked by the
// batch orchestrator.
package jobs

import (
	"log/slog"
	"time"

	"custos/internal/artifact"
	artifactmodels "custos/internal/artifact/models"
	artifactstore "custos/internal/artifact/store"
	"custos/internal/batch"
	"custos/internal/escalation"
	escstore "custos/internal/escalation/store"
	"custos/internal/notify"
	"custos/internal/risk"
	riskstore "custos/internal/risk/store"
	"custos/internal/rules"
	subjectstore "custos/internal/subject/store"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Deps are the stores and ports every operation shares.
type Deps struct {
	Rules     rules.Rules
	Subjects  subjectstore.Store
	Artifacts artifactstore.Store
	Generator *artifact.Generator
	Plans     escstore.PlanStore
	Incidents escstore.IncidentStore
	Risks     riskstore.Store
	Notifier  notify.Notifier
}

// Runner holds the operations. Engines are constructed once from the rule
// tables; all per-run state travels in the context.
type Runner struct {
	rules     rules.Rules
	subjects  subjectstore.Store
	artifacts artifactstore.Store
	generator *artifact.Generator
	plans     escstore.PlanStore
	incidents escstore.IncidentStore
	risks     riskstore.Store
	notifier  notify.Notifier
	log       *slog.Logger

	machine    escalation.Machine
	riskEngine risk.Engine
}

type Option func(*Runner)

func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

func NewRunner(deps Deps, opts ...Option) (*Runner, error) {
	switch {
	case deps.Subjects == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject store is required")
	case deps.Artifacts == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "artifact store is required")
	case deps.Generator == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "artifact generator is required")
	case deps.Plans == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "plan store is required")
	case deps.Incidents == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "incident store is required")
	case deps.Risks == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "risk store is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	r := &Runner{
		rules:      deps.Rules,
		subjects:   deps.Subjects,
		artifacts:  deps.Artifacts,
		generator:  deps.Generator,
		plans:      deps.Plans,
		incidents:  deps.Incidents,
		risks:      deps.Risks,
		notifier:   deps.Notifier,
		log:        slog.Default(),
		machine:    escalation.NewMachine(deps.Rules.Escalation, deps.Rules.SLA),
		riskEngine: risk.NewEngine(deps.Rules.Risk),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Operation is one named batch operation.
type Operation struct {
	Name        string
	Description string
	// RequireOnboarded excludes tenants still in onboarding. Generation
	// operations require it; monitoring operations run for any active tenant.
	RequireOnboarded bool
	Func             batch.TenantFunc
}

// Operations lists every operation in a stable order.
func (r *Runner) Operations() []Operation {
	return []Operation{
		{"schedule_assessments", "generate assessments for frameworks whose cadence has elapsed", true, r.ScheduleAssessments},
		{"assessment_reminders", "send due-date reminders for open assessments", true, r.AssessmentReminders},
		{"schedule_drills", "generate continuity drills, remind, and chase unreviewed completions", true, r.ScheduleDrills},
		{"compliance_calendar", "spawn renewal events, preparation tasks, and deadline reminders", true, r.ComplianceCalendar},
		{"evidence_renewals", "open renewal work for evidence nearing expiry", true, r.EvidenceRenewals},
		{"process_escalations", "escalate overdue action plans and SLA-breached incidents", false, r.ProcessEscalations},
		{"recalculate_risk", "rescore stale risks and refresh tenant profiles", false, r.RecalculateRisk},
		{"monitor_kris", "evaluate key risk indicators against their thresholds", false, r.MonitorKRIs},
		{"quarterly_review", "schedule quarterly reviews, policy refreshes, and attestations", true, r.QuarterlyReview},
		{"generate_reports", "produce periodic compliance report snapshots", false, r.GenerateReports},
	}
}

// Operation returns the named operation.
func (r *Runner) Operation(name string) (Operation, bool) {
	for _, op := range r.Operations() {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// artifactDraft builds the common draft shape used by scheduling passes.
func artifactDraft(tenantID id.TenantID, subjectID id.SubjectID, kind artifactmodels.Kind, title string, assignee id.UserID, start, due *time.Time) artifact.Draft {
	return artifact.Draft{
		TenantID:   tenantID,
		SubjectID:  subjectID,
		Kind:       kind,
		Title:      title,
		AssigneeID: assignee,
		StartAt:    start,
		DueAt:      due,
	}
}

// daysUntil counts whole calendar days from today to due, negative when due
// is in the past.
func daysUntil(due, today time.Time) int {
	d := midnight(due).Sub(midnight(today))
	return int(d / (24 * time.Hour))
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func maxOffset(offsets []int) int {
	max := 0
	for _, o := range offsets {
		if o > max {
			max = o
		}
	}
	return max
}
