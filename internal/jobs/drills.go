package jobs

import (
	"context"
	"fmt"
	"time"

	artifactmodels "custos/internal/artifact/models"
	"custos/internal/batch"
	"custos/internal/cadence"
	"custos/internal/notify"
	subjectmodels "custos/internal/subject/models"
	tenantmodels "custos/internal/tenant/models"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// ScheduleDrills generates continuity drills for plans whose drill cadence
// has elapsed, reminds assignees of upcoming drills, and chases drills that
// were completed but never reviewed.
func (r *Runner) ScheduleDrills(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	counts, err := r.scheduleDueDrills(ctx, tenant)
	if err != nil {
		return counts, err
	}

	remindCounts, err := r.remindArtifacts(ctx, tenant, artifactmodels.KindDrill, "drill",
		notify.CategoryDrillReminder)
	counts.Add(remindCounts)
	if err != nil {
		return counts, err
	}

	reviewCounts, err := r.chaseUnreviewedDrills(ctx, tenant)
	counts.Add(reviewCounts)
	return counts, err
}

func (r *Runner) scheduleDueDrills(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	resolver := cadence.NewResolver(r.rules.CadenceFor("drill"))
	now := runcontext.Now(ctx)
	today := runcontext.Today(ctx)

	plans, err := r.subjects.ListActive(ctx, tenant.ID, subjectmodels.KindContinuityPlan)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list continuity plans")
	}

	for _, plan := range plans {
		counts.Processed++
		if !resolver.IsDue(plan.CadenceCode, plan.LastActivityAt, now) {
			counts.RecordSkipped(plan.ID.String(), "cadence not elapsed")
			continue
		}

		drillDate := nextBusinessDay(today.AddDate(0, 0, r.rules.Drills.ScheduleAheadDays))
		created, ok, err := r.generator.CreateIfAbsent(ctx, artifactDraft(
			tenant.ID, plan.ID, artifactmodels.KindDrill,
			fmt.Sprintf("%s continuity drill", plan.Name), plan.OwnerID,
			&drillDate, &drillDate,
		))
		if err != nil {
			return counts, err
		}
		if !ok {
			counts.RecordSkipped(plan.ID.String(), "open drill exists")
			continue
		}
		counts.RecordCreated(created.ID.String())

		if plan.HasOwner() {
			if err := r.notifier.Send(ctx, notify.Request{
				TenantID:    tenant.ID,
				RecipientID: plan.OwnerID,
				SubjectID:   created.ID.String(),
				Category:    notify.CategoryDrillScheduled,
				Title:       created.Title,
				Body:        fmt.Sprintf("%s scheduled for %s", created.Title, drillDate.Format("2006-01-02")),
				Urgency:     notify.UrgencyMedium,
			}); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "notify drill scheduled")
			}
			counts.RecordNotified(created.ID.String())

			// The scheduling notice doubles as today's reminder so the
			// reminder pass does not fire again for the same drill.
			created.LastReminderAt = &today
			created.ReminderCount = 1
			created.UpdatedAt = now
			if err := r.artifacts.Update(ctx, created); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update drill")
			}
		}
	}
	return counts, nil
}

// chaseUnreviewedDrills notifies owners of drills completed without a review
// after the configured lag. A reminder stamp newer than the completion keeps
// the chase one-shot.
func (r *Runner) chaseUnreviewedDrills(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	now := runcontext.Now(ctx)
	cutoff := now.AddDate(0, 0, -r.rules.Escalation.DrillReviewLagDays)

	stale, err := r.artifacts.ListCompletedUnreviewed(ctx, tenant.ID, artifactmodels.KindDrill, cutoff)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list unreviewed drills")
	}

	for _, drill := range stale {
		counts.Processed++
		if drill.LastReminderAt != nil && drill.LastReminderAt.After(*drill.CompletedAt) {
			counts.RecordSkipped(drill.ID.String(), "already chased")
			continue
		}
		if !drill.HasAssignee() {
			counts.RecordSkipped(drill.ID.String(), "no assignee")
			continue
		}

		if err := r.notifier.Send(ctx, notify.Request{
			TenantID:    tenant.ID,
			RecipientID: drill.AssigneeID,
			SubjectID:   drill.ID.String(),
			Category:    notify.CategoryDrillReviewNeeded,
			Title:       drill.Title,
			Body:        fmt.Sprintf("%s was completed but its review is still outstanding", drill.Title),
			Urgency:     notify.UrgencyHigh,
		}); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "notify drill review")
		}

		drill.LastReminderAt = &now
		drill.ReminderCount++
		drill.UpdatedAt = now
		if err := r.artifacts.Update(ctx, drill); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update drill")
		}
		counts.RecordNotified(drill.ID.String())
	}
	return counts, nil
}

// nextBusinessDay rolls a weekend date forward to Monday.
func nextBusinessDay(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}
