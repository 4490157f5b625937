package risk

import (
	"context"

	"custos/internal/notify"
	"custos/internal/risk/models"
	id "custos/pkg/domain"
)

// AggregateSource supplies the tenant-scoped aggregate queries that feed
// KRI values. The artifact, risk, and subject stores implement the pieces;
// callers compose them.
type AggregateSource interface {
	OverdueTaskCount(ctx context.Context, tenantID id.TenantID) (int, error)
	OpenCriticalRiskCount(ctx context.Context, tenantID id.TenantID) (int, error)
	ExpiredEvidenceCount(ctx context.Context, tenantID id.TenantID) (int, error)
	ComplianceGapPercent(ctx context.Context, tenantID id.TenantID) (float64, error)
}

// KRIResult is the outcome of evaluating one indicator.
type KRIResult struct {
	Value  float64
	Status models.KRIStatus

	// Notify is set on the transition edge into a breach state. Re-entering
	// the same breach level without leaving it owes nothing.
	Notify  bool
	Urgency notify.Urgency
}

// EvaluateKRI computes an indicator's current value and threshold status.
// An indicator with an unknown calculation type keeps its previous value,
// so a misconfigured definition degrades to a no-op instead of failing the
// batch.
func (e Engine) EvaluateKRI(ctx context.Context, kri models.KRIDefinition, src AggregateSource) (KRIResult, error) {
	value, err := e.kriValue(ctx, kri, src)
	if err != nil {
		return KRIResult{}, err
	}

	status := models.KRIStatusNormal
	if kri.CriticalThreshold != nil && value >= *kri.CriticalThreshold {
		status = models.KRIStatusCritical
	} else if kri.WarningThreshold != nil && value >= *kri.WarningThreshold {
		status = models.KRIStatusWarning
	}

	out := KRIResult{Value: value, Status: status}
	if status != kri.Status && status != models.KRIStatusNormal {
		out.Notify = true
		out.Urgency = notify.UrgencyHigh
		if status == models.KRIStatusCritical {
			out.Urgency = notify.UrgencyCritical
		}
	}
	return out, nil
}

func (e Engine) kriValue(ctx context.Context, kri models.KRIDefinition, src AggregateSource) (float64, error) {
	switch kri.Calculation {
	case models.KRIOverdueTasks:
		n, err := src.OverdueTaskCount(ctx, kri.TenantID)
		return float64(n), err
	case models.KRICriticalRisks:
		n, err := src.OpenCriticalRiskCount(ctx, kri.TenantID)
		return float64(n), err
	case models.KRIExpiredEvidence:
		n, err := src.ExpiredEvidenceCount(ctx, kri.TenantID)
		return float64(n), err
	case models.KRIComplianceGap:
		return src.ComplianceGapPercent(ctx, kri.TenantID)
	default:
		if kri.CurrentValue != nil {
			return *kri.CurrentValue, nil
		}
		return 0, nil
	}
}
