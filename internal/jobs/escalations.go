package jobs

import (
	"context"
	"fmt"

	"custos/internal/batch"
	"custos/internal/notify"
	tenantmodels "custos/internal/tenant/models"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// ProcessEscalations walks overdue action plans and open incidents through
// the escalation state machine, persisting transitions and emitting the
// notifications each transition owes.
func (r *Runner) ProcessEscalations(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	counts, err := r.escalatePlans(ctx, tenant)
	if err != nil {
		return counts, err
	}
	incidentCounts, err := r.escalateIncidents(ctx, tenant)
	counts.Add(incidentCounts)
	return counts, err
}

func (r *Runner) escalatePlans(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	today := runcontext.Today(ctx)
	now := runcontext.Now(ctx)

	plans, err := r.plans.ListActionable(ctx, tenant.ID)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list action plans")
	}

	for _, plan := range plans {
		counts.Processed++
		transition := r.machine.EvaluatePlan(*plan, today)
		if !transition.Transitioned {
			counts.RecordSkipped(plan.ID.String(), "no transition")
			continue
		}

		plan.Status = transition.NextStatus
		plan.EscalationLevel = transition.EscalationLevel
		plan.UpdatedAt = now
		if err := r.plans.Update(ctx, plan); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update action plan")
		}

		r.log.WarnContext(ctx, "action plan escalated",
			"tenant_id", tenant.ID.String(),
			"plan_id", plan.ID.String(),
			"status", string(plan.Status),
			"level", plan.EscalationLevel,
			"days_overdue", transition.DaysOverdue,
		)

		if transition.Notify && plan.HasOwner() {
			if err := r.notifier.Send(ctx, notify.Request{
				TenantID:    tenant.ID,
				RecipientID: plan.OwnerID,
				SubjectID:   plan.ID.String(),
				Category:    transition.Category,
				Title:       plan.Title,
				Body:        fmt.Sprintf("%s is %d days overdue", plan.Title, transition.DaysOverdue),
				Urgency:     transition.Urgency,
			}); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "notify plan escalation")
			}
			counts.RecordNotified(plan.ID.String())
		}
	}
	return counts, nil
}

func (r *Runner) escalateIncidents(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	now := runcontext.Now(ctx)

	incidents, err := r.incidents.ListOpen(ctx, tenant.ID)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list open incidents")
	}

	for _, incident := range incidents {
		counts.Processed++
		transition := r.machine.EvaluateIncident(*incident, now)
		if !transition.Changed {
			counts.RecordSkipped(incident.ID.String(), "no change")
			continue
		}

		if transition.ResponseBreached {
			incident.ResponseSLABreached = true
		}
		if transition.ResolutionBreached {
			incident.ResolutionSLABreached = true
		}
		incident.EscalationLevel = transition.EscalationLevel
		incident.UpdatedAt = now
		if err := r.incidents.Update(ctx, incident); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update incident")
		}

		if !incident.HasAssignee() {
			continue
		}
		for _, notice := range transition.Notifications {
			if err := r.notifier.Send(ctx, notify.Request{
				TenantID:    tenant.ID,
				RecipientID: incident.AssignedToID,
				SubjectID:   incident.ID.String(),
				Category:    notice.Category,
				Title:       notice.Title,
				Body:        notice.Body,
				Urgency:     notice.Urgency,
			}); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "notify incident breach")
			}
			counts.RecordNotified(incident.ID.String())
		}
	}
	return counts, nil
}
