package jobs

import (
	"encoding/json"
	"time"

	artifactmodels "custos/internal/artifact/models"
	subjectmodels "custos/internal/subject/models"
	id "custos/pkg/domain"
)

// ---------------------------------------------------------------------------
// quarterly_review
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestQuarterlyReview_OpensReviewTaskEarlyInQuarter() {
	// 2026-01-15 is inside the 30-day window after the Q1 start.
	s.setNow(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))

	counts, err := s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)

	tasks := s.listAll(artifactmodels.KindTask)
	s.Require().Len(tasks, 1)
	s.Equal("Q1 2026 compliance review", tasks[0].Title)
	s.Equal(artifactmodels.PriorityHigh, tasks[0].Priority)

	// Re-running the same quarter does not duplicate.
	counts, err = s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Created)
	s.Len(s.listAll(artifactmodels.KindTask), 1)
}

func (s *JobsSuite) TestQuarterlyReview_LateInQuarterSkipsTask() {
	// 2026-02-10 is 40 days into Q1.
	counts, err := s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Created)
	s.Empty(s.listAll(artifactmodels.KindTask))
}

func (s *JobsSuite) TestQuarterlyReview_PolicyReviewReminderOneShot() {
	policy := s.addSubject(subjectmodels.KindPolicy, "Access control policy", "", nil)
	review := s.now.AddDate(0, 0, 20)
	policy.NextReviewAt = &review
	recent := s.now.AddDate(0, 0, -30)
	policy.LastAttestationAt = &recent
	s.Require().NoError(s.subjects.Put(s.ctx, policy))

	counts, err := s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)

	sent := s.recorder.Sent()
	s.Require().Len(sent, 1)
	s.Equal("PolicyReviewDue", string(sent[0].Category))
	s.Equal(policy.OwnerID, sent[0].RecipientID)

	// The one-shot flag suppresses repeats.
	counts, err = s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Equal(1, s.recorder.Count())
}

func (s *JobsSuite) TestQuarterlyReview_OwnerlessPolicyReviewStaysSilent() {
	policy := s.addSubject(subjectmodels.KindPolicy, "Orphaned policy", "", nil)
	review := s.now.AddDate(0, 0, 20)
	policy.NextReviewAt = &review
	recent := s.now.AddDate(0, 0, -30)
	policy.LastAttestationAt = &recent
	policy.OwnerID = id.UserID{}
	s.Require().NoError(s.subjects.Put(s.ctx, policy))

	counts, err := s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Zero(s.recorder.Count())

	// The one-shot flag stays clear until someone owns the policy.
	updated, err := s.subjects.ListActive(s.ctx, s.tenant.ID, subjectmodels.KindPolicy)
	s.Require().NoError(err)
	s.False(updated[0].ReviewReminderSent)
}

func (s *JobsSuite) TestQuarterlyReview_PolicyReviewFarOutIgnored() {
	policy := s.addSubject(subjectmodels.KindPolicy, "Data retention policy", "", nil)
	review := s.now.AddDate(0, 0, 60)
	policy.NextReviewAt = &review
	recent := s.now.AddDate(0, 0, -30)
	policy.LastAttestationAt = &recent
	s.Require().NoError(s.subjects.Put(s.ctx, policy))

	_, err := s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(s.recorder.Count())
}

func (s *JobsSuite) TestQuarterlyReview_LapsedAttestationOpensArtifact() {
	policy := s.addSubject(subjectmodels.KindPolicy, "Security policy", "", nil)
	old := s.now.AddDate(-1, 0, -10)
	policy.LastAttestationAt = &old
	s.Require().NoError(s.subjects.Put(s.ctx, policy))

	counts, err := s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)

	attestations := s.listAll(artifactmodels.KindAttestation)
	s.Require().Len(attestations, 1)
	s.Equal(policy.ID, attestations[0].SubjectID)

	today := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	s.Equal(today.AddDate(0, 0, 30), *attestations[0].DueAt)
}

func (s *JobsSuite) TestQuarterlyReview_NeverAttestedOpensArtifact() {
	s.addSubject(subjectmodels.KindPolicy, "BYOD policy", "", nil)

	counts, err := s.runner.QuarterlyReview(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)
	s.Len(s.listAll(artifactmodels.KindAttestation), 1)
}

// ---------------------------------------------------------------------------
// generate_reports
// ---------------------------------------------------------------------------

// reports lists generated reports; they are stored completed and unreviewed.
func (s *JobsSuite) reports() []*artifactmodels.Artifact {
	out, err := s.artifacts.ListCompletedUnreviewed(s.ctx, s.tenant.ID,
		artifactmodels.KindReport, s.now.Add(time.Second))
	s.Require().NoError(err)
	return out
}

func (s *JobsSuite) TestGenerateReports_DailyOnly() {
	// Tuesday 2026-02-10: only the daily report is owed.
	counts, err := s.runner.GenerateReports(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)
}

func (s *JobsSuite) TestGenerateReports_MondayAddsWeekly() {
	s.setNow(time.Date(2026, 2, 9, 7, 0, 0, 0, time.UTC))
	counts, err := s.runner.GenerateReports(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(2, counts.Created)
}

func (s *JobsSuite) TestGenerateReports_QuarterStartAddsMonthlyAndQuarterly() {
	// 2026-04-01 is a Wednesday and the first day of Q2.
	s.setNow(time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC))
	counts, err := s.runner.GenerateReports(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(3, counts.Created) // daily, monthly, quarterly
}

func (s *JobsSuite) TestGenerateReports_PayloadCarriesSnapshot() {
	s.addOpenArtifact(artifactmodels.KindTask, "late task", s.now.AddDate(0, 0, -1))

	_, err := s.runner.GenerateReports(s.ctx, s.tenant)
	s.Require().NoError(err)

	generated := s.reports()
	s.Require().Len(generated, 1)
	report := generated[0]
	s.Equal(artifactmodels.StatusCompleted, report.Status)

	var snapshot struct {
		Period       string `json:"period"`
		OverdueTasks int    `json:"overdue_tasks"`
	}
	s.Require().NoError(json.Unmarshal(report.Payload, &snapshot))
	s.Equal("daily", snapshot.Period)
	s.Equal(1, snapshot.OverdueTasks)
}
