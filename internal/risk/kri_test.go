package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/internal/notify"
	"custos/internal/risk/models"
	id "custos/pkg/domain"
)

type stubAggregates struct {
	overdueTasks    int
	criticalRisks   int
	expiredEvidence int
	gapPercent      float64
}

func (s stubAggregates) OverdueTaskCount(context.Context, id.TenantID) (int, error) {
	return s.overdueTasks, nil
}

func (s stubAggregates) OpenCriticalRiskCount(context.Context, id.TenantID) (int, error) {
	return s.criticalRisks, nil
}

func (s stubAggregates) ExpiredEvidenceCount(context.Context, id.TenantID) (int, error) {
	return s.expiredEvidence, nil
}

func (s stubAggregates) ComplianceGapPercent(context.Context, id.TenantID) (float64, error) {
	return s.gapPercent, nil
}

func TestEvaluateKRI(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	src := stubAggregates{overdueTasks: 12, criticalRisks: 2, expiredEvidence: 5, gapPercent: 35.5}

	kri := func(calc models.KRICalculation, warning, critical float64, status models.KRIStatus) models.KRIDefinition {
		return models.KRIDefinition{
			ID:                id.NewKRIID(),
			TenantID:          id.NewTenantID(),
			Name:              "overdue tasks",
			Calculation:       calc,
			WarningThreshold:  floatPtr(warning),
			CriticalThreshold: floatPtr(critical),
			Status:            status,
		}
	}

	t.Run("below thresholds is normal", func(t *testing.T) {
		out, err := e.EvaluateKRI(ctx, kri(models.KRIOverdueTasks, 20, 40, models.KRIStatusNormal), src)
		require.NoError(t, err)
		assert.Equal(t, 12.0, out.Value)
		assert.Equal(t, models.KRIStatusNormal, out.Status)
		assert.False(t, out.Notify)
	})

	t.Run("crossing warning notifies at high urgency", func(t *testing.T) {
		out, err := e.EvaluateKRI(ctx, kri(models.KRIOverdueTasks, 10, 40, models.KRIStatusNormal), src)
		require.NoError(t, err)
		assert.Equal(t, models.KRIStatusWarning, out.Status)
		assert.True(t, out.Notify)
		assert.Equal(t, notify.UrgencyHigh, out.Urgency)
	})

	t.Run("crossing critical notifies at critical urgency", func(t *testing.T) {
		out, err := e.EvaluateKRI(ctx, kri(models.KRIOverdueTasks, 5, 10, models.KRIStatusNormal), src)
		require.NoError(t, err)
		assert.Equal(t, models.KRIStatusCritical, out.Status)
		assert.True(t, out.Notify)
		assert.Equal(t, notify.UrgencyCritical, out.Urgency)
	})

	t.Run("staying in the same breach state does not re-notify", func(t *testing.T) {
		out, err := e.EvaluateKRI(ctx, kri(models.KRIOverdueTasks, 10, 40, models.KRIStatusWarning), src)
		require.NoError(t, err)
		assert.Equal(t, models.KRIStatusWarning, out.Status)
		assert.False(t, out.Notify)
	})

	t.Run("recovering to normal does not notify", func(t *testing.T) {
		out, err := e.EvaluateKRI(ctx, kri(models.KRIOverdueTasks, 20, 40, models.KRIStatusCritical), src)
		require.NoError(t, err)
		assert.Equal(t, models.KRIStatusNormal, out.Status)
		assert.False(t, out.Notify)
	})

	t.Run("compliance gap feeds from percentage query", func(t *testing.T) {
		out, err := e.EvaluateKRI(ctx, kri(models.KRIComplianceGap, 50, 80, models.KRIStatusNormal), src)
		require.NoError(t, err)
		assert.InDelta(t, 35.5, out.Value, 1e-9)
	})

	t.Run("unknown calculation keeps the previous value", func(t *testing.T) {
		def := kri("NoSuchCalc", 50, 80, models.KRIStatusNormal)
		def.CurrentValue = floatPtr(7.5)
		out, err := e.EvaluateKRI(ctx, def, src)
		require.NoError(t, err)
		assert.Equal(t, 7.5, out.Value)
	})

	t.Run("missing thresholds never breach", func(t *testing.T) {
		def := models.KRIDefinition{Calculation: models.KRIOverdueTasks, Status: models.KRIStatusNormal}
		out, err := e.EvaluateKRI(ctx, def, src)
		require.NoError(t, err)
		assert.Equal(t, models.KRIStatusNormal, out.Status)
	})
}
