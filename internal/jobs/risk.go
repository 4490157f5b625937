package jobs

import (
	"context"
	"fmt"
	"time"

	artifactstore "custos/internal/artifact/store"
	"custos/internal/batch"
	"custos/internal/notify"
	"custos/internal/risk"
	riskmodels "custos/internal/risk/models"
	riskstore "custos/internal/risk/store"
	subjectstore "custos/internal/subject/store"
	tenantmodels "custos/internal/tenant/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// RecalculateRisk rescores every stale risk in the tenant, capped per run,
// and refreshes the tenant risk profile when anything changed.
func (r *Runner) RecalculateRisk(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	now := runcontext.Now(ctx)
	cutoff := now.Add(-r.rules.Risk.FreshnessWindow())

	stale, err := r.risks.ListStale(ctx, tenant.ID, cutoff, r.rules.Risk.MaxPerTenantPerRun)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list stale risks")
	}

	for _, rk := range stale {
		counts.Processed++
		links, err := r.risks.ControlLinks(ctx, rk.ID)
		if err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list control links")
		}

		result := r.riskEngine.Recalculate(*rk, links)
		residual := result.ResidualScore
		rk.InherentScore = result.InherentScore
		rk.ResidualScore = &residual
		rk.ResidualTier = result.Tier
		rk.ControlEffectiveness = result.Effectiveness
		rk.LastRecalculatedAt = &now
		rk.UpdatedAt = now
		if err := r.risks.Update(ctx, rk); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update risk")
		}

		if result.Notify && rk.HasOwner() {
			if err := r.notifier.Send(ctx, notify.Request{
				TenantID:    tenant.ID,
				RecipientID: rk.OwnerID,
				SubjectID:   rk.ID.String(),
				Category:    notify.CategoryRiskAlert,
				Title:       rk.Title,
				Body:        fmt.Sprintf("%s residual score rose to %d (%s)", rk.Title, residual, result.Tier),
				Urgency:     result.Urgency,
			}); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "notify risk alert")
			}
			counts.RecordNotified(rk.ID.String())
		}
	}

	if counts.Processed > 0 {
		if err := r.refreshProfile(ctx, tenant, now); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

// refreshProfile rebuilds the tenant aggregate from the full register.
func (r *Runner) refreshProfile(ctx context.Context, tenant *tenantmodels.Tenant, now time.Time) error {
	all, err := r.risks.ListByTenant(ctx, tenant.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list tenant risks")
	}
	profile := risk.Aggregate(derefRisks(all), now)
	if err := r.risks.UpsertProfile(ctx, &profile); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert tenant profile")
	}
	return nil
}

// MonitorKRIs recomputes every key risk indicator from the live aggregates
// and notifies owners on the transition into a breach state.
func (r *Runner) MonitorKRIs(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	now := runcontext.Now(ctx)
	source := aggregateSource{artifacts: r.artifacts, risks: r.risks, subjects: r.subjects}

	kris, err := r.risks.ListKRIs(ctx, tenant.ID)
	if err != nil {
		return counts, dErrors.Wrap(err, dErrors.CodeInternal, "list kris")
	}

	for _, kri := range kris {
		counts.Processed++
		result, err := r.riskEngine.EvaluateKRI(ctx, *kri, source)
		if err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "evaluate kri")
		}

		value := result.Value
		kri.CurrentValue = &value
		kri.Status = result.Status
		kri.LastCalculatedAt = &now
		if err := r.risks.UpdateKRI(ctx, kri); err != nil {
			return counts, dErrors.Wrap(err, dErrors.CodeInternal, "update kri")
		}

		if result.Notify && kri.HasOwner() {
			if err := r.notifier.Send(ctx, notify.Request{
				TenantID:    tenant.ID,
				RecipientID: kri.OwnerID,
				SubjectID:   kri.ID.String(),
				Category:    notify.CategoryKRIAlert,
				Title:       kri.Name,
				Body:        fmt.Sprintf("%s is %s at %.1f", kri.Name, result.Status, value),
				Urgency:     result.Urgency,
			}); err != nil {
				return counts, dErrors.Wrap(err, dErrors.CodeUnavailable, "notify kri alert")
			}
			counts.RecordNotified(kri.ID.String())
		}
	}
	return counts, nil
}

// aggregateSource feeds KRI calculations from the live stores.
type aggregateSource struct {
	artifacts artifactstore.Store
	risks     riskstore.Store
	subjects  subjectstore.Store
}

var _ risk.AggregateSource = aggregateSource{}

func (s aggregateSource) OverdueTaskCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	return s.artifacts.OverdueTaskCount(ctx, tenantID)
}

func (s aggregateSource) OpenCriticalRiskCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	return s.risks.OpenCriticalRiskCount(ctx, tenantID)
}

func (s aggregateSource) ExpiredEvidenceCount(ctx context.Context, tenantID id.TenantID) (int, error) {
	return s.subjects.ExpiredEvidenceCount(ctx, tenantID)
}

func (s aggregateSource) ComplianceGapPercent(ctx context.Context, tenantID id.TenantID) (float64, error) {
	return s.subjects.ComplianceGapPercent(ctx, tenantID)
}

func derefRisks(risks []*riskmodels.Risk) []riskmodels.Risk {
	out := make([]riskmodels.Risk, 0, len(risks))
	for _, rk := range risks {
		out = append(out, *rk)
	}
	return out
}
