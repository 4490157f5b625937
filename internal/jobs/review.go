package jobs

import (
	"context"
	"fmt"
	"time"

	artifactmodels "custos/internal/artifact/models"
	"custos/internal/batch"
	"custos/internal/notify"
	subjectmodels "custos/internal/subject/models"
	tenantmodels "custos/internal/tenant/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// QuarterlyReview opens the tenant's quarterly compliance review task at the
// start of each quarter, reminds policy owners of upcoming review dates, and
// opens annual attestations for policies whose last attestation has lapsed.
func (r *Runner) QuarterlyReview(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	counts, err := r.openQuarterlyReviewTask(ctx, tenant)
	if err != nil {
		return counts, err
	}

	policyCounts, err := r.processPolicies(ctx, tenant)
	counts.Add(policyCounts)
	return counts, err
}

func (r *Runner) openQuarterlyReviewTask(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	today := runcontext.Today(ctx)

	start := quarterStart(today)
	if daysUntil(today, start) > r.rules.Review.ReviewTaskLookbackDays {
		// Too deep into the quarter; the window for opening the review has
		// passed and the next quarter will open its own.
		return counts, nil
	}

	counts.Processed++
	due := start.AddDate(0, 0, r.rules.Review.ReviewTaskLookbackDays)
	draft := artifactDraft(tenant.ID, id.SubjectID{}, artifactmodels.KindTask,
		fmt.Sprintf("%s compliance review", quarterLabel(start)), id.UserID{},
		&start, &due)
	draft.Status = artifactmodels.StatusPending
	draft.Priority = artifactmodels.PriorityHigh
	created, ok, err := r.generator.CreateIfAbsent(ctx, draft)
	if err != nil {
		return counts, err
	}
	if ok {
		counts.RecordCreated(created.ID.String())
	} else {
		counts.RecordSkipped(tenant.ID.String(), "review task exists")
	}
	return counts, nil
}

func (r *Runner) processPolicies(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	today := runcontext.Today(ctx)
	now := runcontext.Now(ctx)
	reviewHorizon := today.AddDate(0, 0, r.rules.Review.PolicyReviewWindowDays)
	attestationCutoff := today.AddDate(0, 0, -r.rules.Review.AttestationIntervalDays)

	policies, err := r.subjects.ListActive(ctx, tenant.ID, subjectmodels.KindPolicy)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list policies")
	}

	for _, policy := range policies {
		counts.Processed++

		if policy.NextReviewAt != nil && !policy.NextReviewAt.After(reviewHorizon) && !policy.ReviewReminderSent && policy.HasOwner() {
			if err := r.notifier.Send(ctx, notify.Request{
				TenantID:    tenant.ID,
				RecipientID: policy.OwnerID,
				SubjectID:   policy.ID.String(),
				Category:    notify.CategoryPolicyReviewDue,
				Title:       policy.Name,
				Body:        reminderBody(fmt.Sprintf("%s review", policy.Name), daysUntil(*policy.NextReviewAt, today)),
				Urgency:     notify.UrgencyMedium,
			}); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "notify policy review")
			}
			policy.ReviewReminderSent = true
			policy.UpdatedAt = now
			if err := r.subjects.Update(ctx, policy); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update policy")
			}
			counts.RecordNotified(policy.ID.String())
		}

		if policy.LastAttestationAt == nil || policy.LastAttestationAt.Before(attestationCutoff) {
			due := today.AddDate(0, 0, r.rules.Review.AttestationLeadDays)
			created, ok, err := r.generator.CreateIfAbsent(ctx, artifactDraft(
				tenant.ID, policy.ID, artifactmodels.KindAttestation,
				fmt.Sprintf("Annual attestation: %s", policy.Name), policy.OwnerID,
				nil, &due,
			))
			if err != nil {
				return counts, err
			}
			if ok {
				counts.RecordCreated(created.ID.String())
			}
		}
	}
	return counts, nil
}

// quarterStart returns the first day of t's calendar quarter.
func quarterStart(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

func quarterLabel(start time.Time) string {
	q := (int(start.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d %d", q, start.Year())
}
