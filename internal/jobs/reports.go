package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	artifactmodels "custos/internal/artifact/models"
	"custos/internal/batch"
	tenantmodels "custos/internal/tenant/models"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

// reportSnapshot is the metrics payload embedded in a generated report.
type reportSnapshot struct {
	Period            string    `json:"period"`
	GeneratedAt       time.Time `json:"generated_at"`
	OverdueTasks      int       `json:"overdue_tasks"`
	OpenCriticalRisks int       `json:"open_critical_risks"`
	ExpiredEvidence   int       `json:"expired_evidence"`
	ComplianceGapPct  float64   `json:"compliance_gap_pct"`
	TotalRisks        int       `json:"total_risks"`
	AverageResidual   float64   `json:"average_residual"`
}

// GenerateReports produces the periodic report artifacts owed today: daily
// always, weekly on Mondays, monthly on the 1st, and quarterly on the first
// day of January, April, July, and October.
func (r *Runner) GenerateReports(ctx context.Context, tenant *tenantmodels.Tenant) (batch.Counts, error) {
	var counts batch.Counts
	today := runcontext.Today(ctx)

	for _, period := range periodsDue(today) {
		counts.Processed++
		report, err := r.generateReport(ctx, tenant, period)
		if err != nil {
			return counts, err
		}
		counts.RecordCreated(report.ID.String())
	}
	return counts, nil
}

func (r *Runner) generateReport(ctx context.Context, tenant *tenantmodels.Tenant, period string) (*artifactmodels.Artifact, error) {
	now := runcontext.Now(ctx)
	today := runcontext.Today(ctx)
	source := aggregateSource{artifacts: r.artifacts, risks: r.risks, subjects: r.subjects}

	snapshot := reportSnapshot{Period: period, GeneratedAt: now}
	var err error
	if snapshot.OverdueTasks, err = source.OverdueTaskCount(ctx, tenant.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count overdue tasks")
	}
	if snapshot.OpenCriticalRisks, err = source.OpenCriticalRiskCount(ctx, tenant.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count critical risks")
	}
	if snapshot.ExpiredEvidence, err = source.ExpiredEvidenceCount(ctx, tenant.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count expired evidence")
	}
	if snapshot.ComplianceGapPct, err = source.ComplianceGapPercent(ctx, tenant.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "compute compliance gap")
	}
	if profile, err := r.risks.GetProfile(ctx, tenant.ID); err == nil {
		snapshot.TotalRisks = profile.TotalRisks
		snapshot.AverageResidual = profile.AverageResidual
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load tenant profile")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal report payload")
	}

	report := &artifactmodels.Artifact{
		ID:          id.NewArtifactID(),
		TenantID:    tenant.ID,
		Kind:        artifactmodels.KindReport,
		Title:       fmt.Sprintf("%s compliance report %s", titleCase(period), today.Format("2006-01-02")),
		Status:      artifactmodels.StatusCompleted,
		CompletedAt: &now,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	report.EventType = period
	if err := r.artifacts.Add(ctx, report); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "add report")
	}

	r.log.InfoContext(ctx, "report generated",
		"tenant_id", tenant.ID.String(),
		"period", period,
		"artifact_id", report.ID.String(),
	)
	return report, nil
}

// periodsDue returns the report periods owed on the given day.
func periodsDue(today time.Time) []string {
	periods := []string{"daily"}
	if today.Weekday() == time.Monday {
		periods = append(periods, "weekly")
	}
	if today.Day() == 1 {
		periods = append(periods, "monthly")
		switch today.Month() {
		case time.January, time.April, time.July, time.October:
			periods = append(periods, "quarterly")
		}
	}
	return periods
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
