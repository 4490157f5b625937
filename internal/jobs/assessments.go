package jobs

import (
	"context"
	"fmt"
	"strings"

	artifactmodels "custos/internal/artifact/models"
	"custos/internal/batch"
	"custos/internal/cadence"
	"custos/internal/notify"
	"custos/internal/reminder"
	subjectmodels "custos/internal/subject/models"
	tenantmodels "custos/internal/tenant/models"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// ScheduleAssessments opens an assessment for every framework whose cadence
// has elapsed since its last assessment activity.
func (r *Runner) ScheduleAssessments(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	resolver := cadence.NewResolver(r.rules.CadenceFor("assessment"))
	now := runcontext.Now(ctx)

	frameworks, err := r.subjects.ListActive(ctx, tenant.ID, subjectmodels.KindFramework)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list frameworks")
	}

	for _, framework := range frameworks {
		counts.Processed++
		if !resolver.IsDue(framework.CadenceCode, framework.LastActivityAt, now) {
			counts.RecordSkipped(framework.ID.String(), "cadence not elapsed")
			continue
		}

		due := now.AddDate(0, 0, r.assessmentWindowDays(framework.CadenceCode))
		start := now
		created, ok, err := r.generator.CreateIfAbsent(ctx, artifactDraft(
			tenant.ID, framework.ID, artifactmodels.KindAssessment,
			fmt.Sprintf("%s assessment", framework.Name), framework.OwnerID,
			&start, &due,
		))
		if err != nil {
			return counts, err
		}
		if !ok {
			counts.RecordSkipped(framework.ID.String(), "open assessment exists")
			continue
		}

		framework.NextAssessmentAt = &due
		framework.UpdatedAt = now
		if err := r.subjects.Update(ctx, framework); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update framework")
		}
		counts.RecordCreated(created.ID.String())
		r.log.InfoContext(ctx, "assessment scheduled",
			"tenant_id", tenant.ID.String(),
			"framework", framework.Name,
			"artifact_id", created.ID.String(),
			"due", due,
		)
	}
	return counts, nil
}

// AssessmentReminders fires due-date reminders for open assessments at the
// configured offsets, at most once per day per assessment.
func (r *Runner) AssessmentReminders(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	return r.remindArtifacts(ctx, tenant, artifactmodels.KindAssessment, "assessment",
		notify.CategoryAssessmentReminder)
}

// remindArtifacts is the shared reminder pass for due-dated artifact kinds.
func (r *Runner) remindArtifacts(ctx context.Context, tenant *tenantmodels.Tenant, kind artifactmodels.Kind, domain string, category notify.Category) (batch.Counts, error) {
	var counts batch.Counts
	planner := reminder.NewPlanner(r.rules.RemindersFor(domain))
	today := runcontext.Today(ctx)
	now := runcontext.Now(ctx)

	cutoff := today.AddDate(0, 0, maxOffset(r.rules.RemindersFor(domain).OffsetDays))
	open, err := r.artifacts.ListOpenDueWithin(ctx, tenant.ID, kind, cutoff)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list open artifacts")
	}

	for _, a := range open {
		counts.Processed++
		decision := planner.Plan(*a.DueAt, today, a.LastReminderAt)
		if !decision.Fire {
			counts.RecordSkipped(a.ID.String(), "no reminder due")
			continue
		}
		// Nobody to notify: no send, no reminder stamp.
		if !a.HasAssignee() {
			counts.RecordSkipped(a.ID.String(), "no assignee")
			continue
		}

		if err := r.notifier.Send(ctx, notify.Request{
			TenantID:    tenant.ID,
			RecipientID: a.AssigneeID,
			SubjectID:   a.ID.String(),
			Category:    category,
			Title:       a.Title,
			Body:        reminderBody(a.Title, decision.DaysRemaining),
			Urgency:     decision.Urgency,
		}); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "send reminder")
		}

		a.LastReminderAt = &today
		a.ReminderCount++
		a.UpdatedAt = now
		if err := r.artifacts.Update(ctx, a); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update reminder track")
		}
		counts.RecordNotified(a.ID.String())
	}
	return counts, nil
}

func reminderBody(title string, daysRemaining int) string {
	switch {
	case daysRemaining < 0:
		return fmt.Sprintf("%s is %d days overdue", title, -daysRemaining)
	case daysRemaining == 0:
		return fmt.Sprintf("%s is due today", title)
	case daysRemaining == 1:
		return fmt.Sprintf("%s is due tomorrow", title)
	default:
		return fmt.Sprintf("%s is due in %d days", title, daysRemaining)
	}
}

func (r *Runner) assessmentWindowDays(cadenceCode string) int {
	if strings.EqualFold(strings.TrimSpace(cadenceCode), "MONTHLY") {
		return r.rules.Assessments.WindowMonthlyDays
	}
	return r.rules.Assessments.WindowDefaultDays
}
