package jobs

import (
	"time"

	riskmodels "custos/internal/risk/models"
	id "custos/pkg/domain"
)

func (s *JobsSuite) addRisk(title string, likelihood, impact int, lastRecalc *time.Time) *riskmodels.Risk {
	rk := &riskmodels.Risk{
		ID:                 id.NewRiskID(),
		TenantID:           s.tenant.ID,
		Title:              title,
		Status:             riskmodels.RiskStatusOpen,
		Likelihood:         &likelihood,
		Impact:             &impact,
		OwnerID:            id.NewUserID(),
		LastRecalculatedAt: lastRecalc,
	}
	s.Require().NoError(s.risks.Put(s.ctx, rk))
	return rk
}

// ---------------------------------------------------------------------------
// recalculate_risk
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestRecalculateRisk_ScoresStaleRisk() {
	rk := s.addRisk("Vendor breach", 3, 4, nil)

	counts, err := s.runner.RecalculateRisk(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Processed)

	stored, err := s.risks.ListByTenant(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(12, stored[0].InherentScore)
	s.Require().NotNil(stored[0].ResidualScore)
	s.Equal(12, *stored[0].ResidualScore)
	s.Equal(riskmodels.TierHigh, stored[0].ResidualTier)
	s.Require().NotNil(stored[0].LastRecalculatedAt)
	s.Equal(s.now, *stored[0].LastRecalculatedAt)

	// Rising into High owes the owner an alert.
	s.Equal(1, s.recorder.Count())
	s.Equal(rk.OwnerID, s.recorder.Sent()[0].RecipientID)

	profile, err := s.risks.GetProfile(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(1, profile.TotalRisks)
	s.Equal(1, profile.HighRisks)
	s.Equal(12.0, profile.AverageResidual)
}

func (s *JobsSuite) TestRecalculateRisk_MitigatedControlsZeroResidual() {
	rk := s.addRisk("Phishing", 4, 5, nil)
	s.Require().NoError(s.risks.PutControlLink(s.ctx, riskmodels.ControlLink{
		RiskID:         rk.ID,
		ControlName:    "MFA",
		Active:         true,
		Implementation: riskmodels.ImplementationFull,
		Compliance:     riskmodels.ComplianceCompliant,
	}))

	_, err := s.runner.RecalculateRisk(s.ctx, s.tenant)
	s.Require().NoError(err)

	stored, err := s.risks.ListByTenant(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(20, stored[0].InherentScore)
	s.Equal(0, *stored[0].ResidualScore)
	s.Equal(riskmodels.TierLow, stored[0].ResidualTier)
	s.Zero(s.recorder.Count())
}

func (s *JobsSuite) TestRecalculateRisk_FreshRiskSkipped() {
	recent := s.now.Add(-24 * time.Hour)
	s.addRisk("Stable risk", 2, 2, &recent)

	counts, err := s.runner.RecalculateRisk(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Processed)
}

func (s *JobsSuite) TestRecalculateRisk_TerminalRiskIgnored() {
	rk := s.addRisk("Retired system", 5, 5, nil)
	rk.Status = riskmodels.RiskStatusClosed
	s.Require().NoError(s.risks.Put(s.ctx, rk))

	counts, err := s.runner.RecalculateRisk(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Processed)
}

func (s *JobsSuite) TestRecalculateRisk_CapsBatchSize() {
	for i := 0; i < 105; i++ {
		s.addRisk("bulk", 2, 3, nil)
	}

	counts, err := s.runner.RecalculateRisk(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(100, counts.Processed)
}

func (s *JobsSuite) TestRecalculateRisk_NoAlertWhenScoreDoesNotRise() {
	rk := s.addRisk("Known high", 4, 4, nil)
	prev := 16
	rk.ResidualScore = &prev
	s.Require().NoError(s.risks.Put(s.ctx, rk))

	_, err := s.runner.RecalculateRisk(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(s.recorder.Count())
}

func (s *JobsSuite) TestRecalculateRisk_OwnerlessRiskScoredSilently() {
	rk := s.addRisk("Orphaned risk", 3, 4, nil)
	rk.OwnerID = id.UserID{}
	s.Require().NoError(s.risks.Put(s.ctx, rk))

	counts, err := s.runner.RecalculateRisk(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Processed)
	s.Zero(counts.Notified)
	s.Zero(s.recorder.Count())

	// Scoring still lands even without an owner to alert.
	stored, err := s.risks.ListByTenant(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(riskmodels.TierHigh, stored[0].ResidualTier)
}

// ---------------------------------------------------------------------------
// monitor_kris
// ---------------------------------------------------------------------------

func (s *JobsSuite) addKRI(name string, calc riskmodels.KRICalculation, warning, critical float64) *riskmodels.KRIDefinition {
	kri := &riskmodels.KRIDefinition{
		ID:                id.NewKRIID(),
		TenantID:          s.tenant.ID,
		Name:              name,
		Calculation:       calc,
		WarningThreshold:  &warning,
		CriticalThreshold: &critical,
		Status:            riskmodels.KRIStatusNormal,
		OwnerID:           id.NewUserID(),
	}
	s.Require().NoError(s.risks.PutKRI(s.ctx, kri))
	return kri
}

func (s *JobsSuite) TestMonitorKRIs_CriticalBreachNotifiesOnce() {
	s.addKRI("Critical risks", riskmodels.KRICriticalRisks, 1, 2)

	critical := 25
	for i := 0; i < 3; i++ {
		rk := s.addRisk("bad", 5, 5, nil)
		rk.ResidualScore = &critical
		rk.ResidualTier = riskmodels.TierCritical
		s.Require().NoError(s.risks.Put(s.ctx, rk))
	}

	counts, err := s.runner.MonitorKRIs(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)

	kris, err := s.risks.ListKRIs(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(riskmodels.KRIStatusCritical, kris[0].Status)
	s.Equal(3.0, *kris[0].CurrentValue)
	s.Equal(s.now, *kris[0].LastCalculatedAt)

	// Still critical on the next run: no new alert.
	counts, err = s.runner.MonitorKRIs(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Equal(1, s.recorder.Count())
}

func (s *JobsSuite) TestMonitorKRIs_NormalValueStaysQuiet() {
	s.addKRI("Overdue tasks", riskmodels.KRIOverdueTasks, 5, 10)

	counts, err := s.runner.MonitorKRIs(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Processed)
	s.Zero(counts.Notified)

	kris, err := s.risks.ListKRIs(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(riskmodels.KRIStatusNormal, kris[0].Status)
	s.Equal(0.0, *kris[0].CurrentValue)
}

func (s *JobsSuite) TestMonitorKRIs_OwnerlessBreachStaysSilent() {
	kri := s.addKRI("Overdue tasks", riskmodels.KRIOverdueTasks, 2, 10)
	kri.OwnerID = id.UserID{}
	s.Require().NoError(s.risks.PutKRI(s.ctx, kri))

	for i := 0; i < 3; i++ {
		s.addOpenArtifact("task", "late task", s.now.AddDate(0, 0, -2))
	}

	counts, err := s.runner.MonitorKRIs(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Zero(s.recorder.Count())

	kris, err := s.risks.ListKRIs(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(riskmodels.KRIStatusWarning, kris[0].Status)
}

func (s *JobsSuite) TestMonitorKRIs_WarningFromOverdueTasks() {
	s.addKRI("Overdue tasks", riskmodels.KRIOverdueTasks, 2, 10)

	for i := 0; i < 3; i++ {
		s.addOpenArtifact("task", "late task", s.now.AddDate(0, 0, -2))
	}

	counts, err := s.runner.MonitorKRIs(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)

	sent := s.recorder.Sent()
	s.Require().Len(sent, 1)
	s.Equal("High", string(sent[0].Urgency))
}
