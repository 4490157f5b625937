package jobs

import (
	"context"
	"fmt"

	"custos/internal/artifact"
	artifactmodels "custos/internal/artifact/models"
	"custos/internal/batch"
	"custos/internal/notify"
	"custos/internal/reminder"
	subjectmodels "custos/internal/subject/models"
	tenantmodels "custos/internal/tenant/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// ComplianceCalendar maintains the compliance calendar: spawns renewal
// events for expiring frameworks, opens preparation tasks once an event is
// inside its lead time, and fires deadline reminders.
func (r *Runner) ComplianceCalendar(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	counts, err := r.spawnRenewalEvents(ctx, tenant)
	if err != nil {
		return counts, err
	}
	eventCounts, err := r.processCalendarEvents(ctx, tenant)
	counts.Add(eventCounts)
	return counts, err
}

// spawnRenewalEvents opens a RENEWAL calendar event for every framework
// whose validity ends within the renewal horizon.
func (r *Runner) spawnRenewalEvents(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	today := runcontext.Today(ctx)
	horizon := today.AddDate(0, 0, r.rules.Calendar.RenewalHorizonDays)

	frameworks, err := r.subjects.ListActive(ctx, tenant.ID, subjectmodels.KindFramework)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list frameworks")
	}

	for _, framework := range frameworks {
		counts.Processed++
		if framework.ValidUntil == nil || framework.ValidUntil.Before(today) || framework.ValidUntil.After(horizon) {
			counts.RecordSkipped(framework.ID.String(), "outside renewal horizon")
			continue
		}

		draft := artifactDraft(tenant.ID, framework.ID, artifactmodels.KindCalendarEvent,
			fmt.Sprintf("%s renewal", framework.Name), framework.OwnerID,
			nil, framework.ValidUntil)
		draft.EventType = "RENEWAL"
		created, ok, err := r.generator.CreateIfAbsent(ctx, draft)
		if err != nil {
			return counts, err
		}
		if ok {
			counts.RecordCreated(created.ID.String())
		} else {
			counts.RecordSkipped(framework.ID.String(), "renewal event exists")
		}
	}
	return counts, nil
}

func (r *Runner) processCalendarEvents(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	planner := reminder.NewPlanner(r.rules.RemindersFor("calendar"))
	today := runcontext.Today(ctx)
	now := runcontext.Now(ctx)

	cutoff := today.AddDate(0, 0, maxOffset(r.rules.RemindersFor("calendar").OffsetDays))
	events, err := r.artifacts.ListOpenDueWithin(ctx, tenant.ID, artifactmodels.KindCalendarEvent, cutoff)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list calendar events")
	}

	for _, event := range events {
		counts.Processed++
		days := daysUntil(*event.DueAt, today)
		dirty := false

		if !event.TaskCreated && days <= r.rules.LeadTimes.For(event.EventType) {
			task, err := r.createPreparationTask(ctx, tenant.ID, event, days)
			if err != nil {
				return counts, err
			}
			event.TaskCreated = true
			dirty = true
			counts.RecordCreated(task.ID.String())
		}

		if decision := planner.Plan(*event.DueAt, today, event.LastReminderAt); decision.Fire && event.HasAssignee() {
			if err := r.notifier.Send(ctx, notify.Request{
				TenantID:    tenant.ID,
				RecipientID: event.AssigneeID,
				SubjectID:   event.ID.String(),
				Category:    notify.CategoryComplianceReminder,
				Title:       event.Title,
				Body:        reminderBody(event.Title, decision.DaysRemaining),
				Urgency:     decision.Urgency,
			}); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "send calendar reminder")
			}
			event.LastReminderAt = &today
			event.ReminderCount++
			dirty = true
			counts.RecordNotified(event.ID.String())
		}

		if dirty {
			event.UpdatedAt = now
			if err := r.artifacts.Update(ctx, event); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update calendar event")
			}
		}
	}
	return counts, nil
}

// createPreparationTask opens the task that gets an event's deliverables
// ready ahead of the deadline. The task is due before the event itself.
func (r *Runner) createPreparationTask(ctx context.Context, tenantID id.TenantID, event *artifactmodels.Artifact, daysToEvent int) (*artifactmodels.Artifact, error) {
	now := runcontext.Now(ctx)
	due := event.DueAt.AddDate(0, 0, -r.rules.Calendar.TaskDueOffsetDays)
	task := &artifactmodels.Artifact{
		ID:         id.NewArtifactID(),
		TenantID:   tenantID,
		SubjectID:  event.SubjectID,
		Kind:       artifactmodels.KindTask,
		Title:      fmt.Sprintf("Prepare: %s", event.Title),
		Status:     artifactmodels.StatusPending,
		Priority:   artifact.PriorityForDays(daysToEvent),
		AssigneeID: event.AssigneeID,
		DueAt:      &due,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.artifacts.Add(ctx, task); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "add preparation task")
	}
	return task, nil
}

// EvidenceRenewals opens renewal work for evidence packs nearing expiry.
func (r *Runner) EvidenceRenewals(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	today := runcontext.Today(ctx)
	now := runcontext.Now(ctx)
	horizon := today.AddDate(0, 0, r.rules.Evidence.RenewalLeadDays)

	packs, err := r.subjects.ListActive(ctx, tenant.ID, subjectmodels.KindEvidencePack)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list evidence packs")
	}

	for _, pack := range packs {
		counts.Processed++
		if pack.RenewalScheduled || pack.ValidUntil == nil || pack.ValidUntil.After(horizon) {
			counts.RecordSkipped(pack.ID.String(), "not expiring or already scheduled")
			continue
		}

		created, ok, err := r.generator.CreateIfAbsent(ctx, artifactDraft(
			tenant.ID, pack.ID, artifactmodels.KindEvidenceRenewal,
			fmt.Sprintf("Renew evidence: %s", pack.Name), pack.OwnerID,
			nil, pack.ValidUntil,
		))
		if err != nil {
			return counts, err
		}
		if !ok {
			counts.RecordSkipped(pack.ID.String(), "open renewal exists")
			continue
		}

		pack.RenewalScheduled = true
		pack.UpdatedAt = now
		if err := r.subjects.Update(ctx, pack); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update evidence pack")
		}
		counts.RecordCreated(created.ID.String())
	}
	return counts, nil
}
