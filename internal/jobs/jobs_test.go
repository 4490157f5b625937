package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/artifact"
	artifactmodels "custos/internal/artifact/models"
	"custos/internal/batch"
	artifactstore "custos/internal/artifact/store"
	escmodels "custos/internal/escalation/models"
	escstore "custos/internal/escalation/store"
	"custos/internal/notify/notifytest"
	riskstore "custos/internal/risk/store"
	"custos/internal/rules"
	subjectmodels "custos/internal/subject/models"
	subjectstore "custos/internal/subject/store"
	tenantmodels "custos/internal/tenant/models"
	id "custos/pkg/domain"
	"custos/pkg/runcontext"
)

// JobsSuite wires a full in-memory engine around a single tenant.
type JobsSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	tenant    *tenantmodels.Tenant
	subjects  *subjectstore.Memory
	artifacts *artifactstore.Memory
	plans     *escstore.PlanMemory
	incidents *escstore.IncidentMemory
	risks     *riskstore.Memory
	recorder  *notifytest.Recorder
	runner    *Runner
}

func TestJobsSuite(t *testing.T) {
	suite.Run(t, new(JobsSuite))
}

func (s *JobsSuite) SetupTest() {
	// A Tuesday, mid-quarter, not the 1st.
	s.setNow(time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC))
	s.tenant = &tenantmodels.Tenant{
		ID:         id.NewTenantID(),
		Name:       "acme",
		Status:     tenantmodels.TenantStatusActive,
		Onboarding: tenantmodels.OnboardingCompleted,
	}
	s.subjects = subjectstore.NewMemory()
	s.artifacts = artifactstore.NewMemory()
	s.plans = escstore.NewPlanMemory()
	s.incidents = escstore.NewIncidentMemory()
	s.risks = riskstore.NewMemory()
	s.recorder = notifytest.NewRecorder()

	gen, err := artifact.NewGenerator(s.artifacts)
	s.Require().NoError(err)
	runner, err := NewRunner(Deps{
		Rules:     rules.Default(),
		Subjects:  s.subjects,
		Artifacts: s.artifacts,
		Generator: gen,
		Plans:     s.plans,
		Incidents: s.incidents,
		Risks:     s.risks,
		Notifier:  s.recorder,
	})
	s.Require().NoError(err)
	s.runner = runner
}

func (s *JobsSuite) setNow(t time.Time) {
	s.now = t
	s.ctx = runcontext.WithTime(context.Background(), t)
}

func (s *JobsSuite) addSubject(kind subjectmodels.Kind, name, cadenceCode string, lastActivity *time.Time) *subjectmodels.Subject {
	subj := &subjectmodels.Subject{
		ID:             id.NewSubjectID(),
		TenantID:       s.tenant.ID,
		Kind:           kind,
		Name:           name,
		CadenceCode:    cadenceCode,
		Active:         true,
		OwnerID:        id.NewUserID(),
		LastActivityAt: lastActivity,
	}
	s.Require().NoError(s.subjects.Put(s.ctx, subj))
	return subj
}

func (s *JobsSuite) daysAgo(n int) *time.Time {
	t := s.now.AddDate(0, 0, -n)
	return &t
}

func (s *JobsSuite) listAll(kind artifactmodels.Kind) []*artifactmodels.Artifact {
	open, err := s.artifacts.ListOpen(s.ctx, s.tenant.ID, kind)
	s.Require().NoError(err)
	return open
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestOperations_AllNamed() {
	ops := s.runner.Operations()
	s.Len(ops, 10)
	seen := map[string]bool{}
	for _, op := range ops {
		s.NotEmpty(op.Description)
		s.NotNil(op.Func)
		s.False(seen[op.Name], "duplicate operation %s", op.Name)
		seen[op.Name] = true
	}

	op, ok := s.runner.Operation("recalculate_risk")
	s.True(ok)
	s.False(op.RequireOnboarded)

	_, ok = s.runner.Operation("no_such_operation")
	s.False(ok)
}

// ---------------------------------------------------------------------------
// schedule_assessments
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestScheduleAssessments_CadenceElapsed() {
	framework := s.addSubject(subjectmodels.KindFramework, "ISO 27001", "QUARTERLY", s.daysAgo(90))

	counts, err := s.runner.ScheduleAssessments(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)

	open := s.listAll(artifactmodels.KindAssessment)
	s.Require().Len(open, 1)
	s.Equal(framework.ID, open[0].SubjectID)
	s.Equal(s.now.AddDate(0, 0, 90), *open[0].DueAt)

	updated, err := s.subjects.ListActive(s.ctx, s.tenant.ID, subjectmodels.KindFramework)
	s.Require().NoError(err)
	s.Require().NotNil(updated[0].NextAssessmentAt)
	s.Equal(*open[0].DueAt, *updated[0].NextAssessmentAt)
}

func (s *JobsSuite) TestScheduleAssessments_MonthlyGetsShortWindow() {
	s.addSubject(subjectmodels.KindFramework, "SOC 2", "MONTHLY", s.daysAgo(30))

	counts, err := s.runner.ScheduleAssessments(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)

	open := s.listAll(artifactmodels.KindAssessment)
	s.Require().Len(open, 1)
	s.Equal(s.now.AddDate(0, 0, 21), *open[0].DueAt)
}

func (s *JobsSuite) TestScheduleAssessments_NotDueYet() {
	s.addSubject(subjectmodels.KindFramework, "ISO 27001", "QUARTERLY", s.daysAgo(30))

	counts, err := s.runner.ScheduleAssessments(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Created)
	s.Equal(1, counts.Skipped)
	s.Empty(s.listAll(artifactmodels.KindAssessment))
}

func (s *JobsSuite) TestScheduleAssessments_NeverAssessedIsDue() {
	s.addSubject(subjectmodels.KindFramework, "HIPAA", "ANNUAL", nil)

	counts, err := s.runner.ScheduleAssessments(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)
}

func (s *JobsSuite) TestScheduleAssessments_ItemResultsMatchCounters() {
	s.addSubject(subjectmodels.KindFramework, "ISO 27001", "QUARTERLY", s.daysAgo(90))
	s.addSubject(subjectmodels.KindFramework, "SOC 2", "QUARTERLY", s.daysAgo(30))

	counts, err := s.runner.ScheduleAssessments(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Len(counts.Items, 2)
	s.Equal(counts.Created, itemTally(counts, batch.ItemCreated))
	s.Equal(counts.Skipped, itemTally(counts, batch.ItemSkipped))

	for _, item := range counts.Items {
		s.NotEmpty(item.ItemID)
		if item.Status == batch.ItemSkipped {
			s.Equal("cadence not elapsed", item.Reason)
		}
	}
}

func itemTally(counts batch.Counts, status batch.ItemStatus) int {
	n := 0
	for _, item := range counts.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func (s *JobsSuite) TestScheduleAssessments_Idempotent() {
	s.addSubject(subjectmodels.KindFramework, "ISO 27001", "QUARTERLY", s.daysAgo(90))

	for i := 0; i < 3; i++ {
		_, err := s.runner.ScheduleAssessments(s.ctx, s.tenant)
		s.Require().NoError(err)
	}
	s.Len(s.listAll(artifactmodels.KindAssessment), 1)
}

// ---------------------------------------------------------------------------
// assessment_reminders
// ---------------------------------------------------------------------------

func (s *JobsSuite) addOpenArtifact(kind artifactmodels.Kind, title string, due time.Time) *artifactmodels.Artifact {
	a := &artifactmodels.Artifact{
		ID:         id.NewArtifactID(),
		TenantID:   s.tenant.ID,
		SubjectID:  id.NewSubjectID(),
		Kind:       kind,
		Title:      title,
		Status:     artifactmodels.StatusScheduled,
		AssigneeID: id.NewUserID(),
		DueAt:      &due,
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
	s.Require().NoError(s.artifacts.Add(s.ctx, a))
	return a
}

func (s *JobsSuite) TestAssessmentReminders_FiresAtOffset() {
	a := s.addOpenArtifact(artifactmodels.KindAssessment, "ISO 27001 assessment", s.now.AddDate(0, 0, 7))

	counts, err := s.runner.AssessmentReminders(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)

	sent := s.recorder.Sent()
	s.Require().Len(sent, 1)
	s.Equal(a.AssigneeID, sent[0].RecipientID)
	s.Contains(sent[0].Body, "due in 7 days")

	stored, err := s.artifacts.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.NotNil(stored.LastReminderAt)
	s.Equal(1, stored.ReminderCount)
}

func (s *JobsSuite) TestAssessmentReminders_SilentBetweenOffsets() {
	s.addOpenArtifact(artifactmodels.KindAssessment, "ISO 27001 assessment", s.now.AddDate(0, 0, 5))

	counts, err := s.runner.AssessmentReminders(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Zero(s.recorder.Count())
}

func (s *JobsSuite) TestAssessmentReminders_OncePerDay() {
	s.addOpenArtifact(artifactmodels.KindAssessment, "ISO 27001 assessment", s.now.AddDate(0, 0, 1))

	for i := 0; i < 2; i++ {
		_, err := s.runner.AssessmentReminders(s.ctx, s.tenant)
		s.Require().NoError(err)
	}
	s.Equal(1, s.recorder.Count())
}

func (s *JobsSuite) TestAssessmentReminders_DueTodayIsCritical() {
	s.addOpenArtifact(artifactmodels.KindAssessment, "ISO 27001 assessment", s.now)

	_, err := s.runner.AssessmentReminders(s.ctx, s.tenant)
	s.Require().NoError(err)
	sent := s.recorder.Sent()
	s.Require().Len(sent, 1)
	s.Equal("Critical", string(sent[0].Urgency))
	s.Contains(sent[0].Body, "due today")
}

func (s *JobsSuite) TestAssessmentReminders_UnassignedStaysSilent() {
	a := s.addOpenArtifact(artifactmodels.KindAssessment, "ISO 27001 assessment", s.now.AddDate(0, 0, 7))
	a.AssigneeID = id.UserID{}
	s.Require().NoError(s.artifacts.Update(s.ctx, a))

	counts, err := s.runner.AssessmentReminders(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Equal(1, counts.Skipped)
	s.Zero(s.recorder.Count())

	// No recipient means no reminder state either.
	stored, err := s.artifacts.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Nil(stored.LastReminderAt)
	s.Zero(stored.ReminderCount)
}

// ---------------------------------------------------------------------------
// schedule_drills
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestScheduleDrills_CreatesAndNotifiesOwner() {
	plan := s.addSubject(subjectmodels.KindContinuityPlan, "DR plan", "QUARTERLY", s.daysAgo(85))

	counts, err := s.runner.ScheduleDrills(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)

	drills := s.listAll(artifactmodels.KindDrill)
	s.Require().Len(drills, 1)
	s.Equal(plan.ID, drills[0].SubjectID)

	// 2026-02-10 is a Tuesday; 14 days out is Tuesday 2026-02-24.
	s.Equal(time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC), *drills[0].DueAt)

	sent := s.recorder.Sent()
	s.Require().Len(sent, 1)
	s.Equal(plan.OwnerID, sent[0].RecipientID)
}

func (s *JobsSuite) TestScheduleDrills_WeekendRollsToMonday() {
	// Saturday 2026-02-28 + 14 = Saturday 2026-03-14, rolled to Monday 03-16.
	s.setNow(time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC))
	s.addSubject(subjectmodels.KindContinuityPlan, "DR plan", "QUARTERLY", s.daysAgo(85))

	_, err := s.runner.ScheduleDrills(s.ctx, s.tenant)
	s.Require().NoError(err)

	drills := s.listAll(artifactmodels.KindDrill)
	s.Require().Len(drills, 1)
	s.Equal(time.Monday, drills[0].DueAt.Weekday())
	s.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), *drills[0].DueAt)
}

func (s *JobsSuite) TestScheduleDrills_ChasesUnreviewedCompletion() {
	completed := s.now.AddDate(0, 0, -10)
	drill := &artifactmodels.Artifact{
		ID:          id.NewArtifactID(),
		TenantID:    s.tenant.ID,
		SubjectID:   id.NewSubjectID(),
		Kind:        artifactmodels.KindDrill,
		Title:       "DR plan continuity drill",
		Status:      artifactmodels.StatusCompleted,
		AssigneeID:  id.NewUserID(),
		CompletedAt: &completed,
		CreatedAt:   completed,
		UpdatedAt:   completed,
	}
	s.Require().NoError(s.artifacts.Add(s.ctx, drill))

	counts, err := s.runner.ScheduleDrills(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)
	sent := s.recorder.Sent()
	s.Require().Len(sent, 1)
	s.Equal("DrillReviewNeeded", string(sent[0].Category))

	// The chase is one-shot.
	_, err = s.runner.ScheduleDrills(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, s.recorder.Count())
}

func (s *JobsSuite) TestScheduleDrills_RecentCompletionNotChased() {
	completed := s.now.AddDate(0, 0, -3)
	drill := &artifactmodels.Artifact{
		ID:          id.NewArtifactID(),
		TenantID:    s.tenant.ID,
		Kind:        artifactmodels.KindDrill,
		Title:       "DR drill",
		Status:      artifactmodels.StatusCompleted,
		CompletedAt: &completed,
	}
	s.Require().NoError(s.artifacts.Add(s.ctx, drill))

	_, err := s.runner.ScheduleDrills(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(s.recorder.Count())
}

func (s *JobsSuite) TestScheduleDrills_UnassignedChaseStaysSilent() {
	completed := s.now.AddDate(0, 0, -10)
	drill := &artifactmodels.Artifact{
		ID:          id.NewArtifactID(),
		TenantID:    s.tenant.ID,
		Kind:        artifactmodels.KindDrill,
		Title:       "DR drill",
		Status:      artifactmodels.StatusCompleted,
		CompletedAt: &completed,
	}
	s.Require().NoError(s.artifacts.Add(s.ctx, drill))

	_, err := s.runner.ScheduleDrills(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(s.recorder.Count())

	stored, err := s.artifacts.Get(s.ctx, drill.ID)
	s.Require().NoError(err)
	s.Nil(stored.LastReminderAt)
}

// ---------------------------------------------------------------------------
// compliance_calendar
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestComplianceCalendar_SpawnsRenewalEvent() {
	framework := s.addSubject(subjectmodels.KindFramework, "ISO 27001", "ANNUAL", s.daysAgo(10))
	validUntil := s.now.AddDate(0, 0, 60)
	framework.ValidUntil = &validUntil
	s.Require().NoError(s.subjects.Put(s.ctx, framework))

	counts, err := s.runner.ComplianceCalendar(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.GreaterOrEqual(counts.Created, 1)

	events := s.listAll(artifactmodels.KindCalendarEvent)
	s.Require().Len(events, 1)
	s.Equal("RENEWAL", events[0].EventType)
	s.Equal(validUntil, *events[0].DueAt)

	// A RENEWAL event 60 days out sits inside its 60-day lead time, so the
	// preparation task opens in the same pass, due a week before the event.
	tasks := s.listAll(artifactmodels.KindTask)
	s.Require().Len(tasks, 1)
	s.Equal(validUntil.AddDate(0, 0, -7), *tasks[0].DueAt)
}

func (s *JobsSuite) TestComplianceCalendar_FrameworkExpiringBeyondHorizonIgnored() {
	framework := s.addSubject(subjectmodels.KindFramework, "ISO 27001", "ANNUAL", s.daysAgo(10))
	validUntil := s.now.AddDate(0, 0, 120)
	framework.ValidUntil = &validUntil
	s.Require().NoError(s.subjects.Put(s.ctx, framework))

	_, err := s.runner.ComplianceCalendar(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Empty(s.listAll(artifactmodels.KindCalendarEvent))
}

func (s *JobsSuite) TestComplianceCalendar_TaskOutsideLeadTimeWaits() {
	// An AUDIT event 95 days out is outside its 90-day lead time but inside
	// the 90-day reminder horizon only at exactly 90; use 60 for reminders.
	event := s.addOpenArtifact(artifactmodels.KindCalendarEvent, "Surveillance audit", s.now.AddDate(0, 0, 89))
	event.EventType = "SUBMISSION" // 30-day lead
	s.Require().NoError(s.artifacts.Update(s.ctx, event))

	_, err := s.runner.ComplianceCalendar(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Empty(s.listAll(artifactmodels.KindTask))

	stored, err := s.artifacts.Get(s.ctx, event.ID)
	s.Require().NoError(err)
	s.False(stored.TaskCreated)
}

func (s *JobsSuite) TestComplianceCalendar_TaskCreatedOnceInsideLeadTime() {
	event := s.addOpenArtifact(artifactmodels.KindCalendarEvent, "Report submission", s.now.AddDate(0, 0, 20))
	event.EventType = "SUBMISSION"
	s.Require().NoError(s.artifacts.Update(s.ctx, event))

	for i := 0; i < 2; i++ {
		_, err := s.runner.ComplianceCalendar(s.ctx, s.tenant)
		s.Require().NoError(err)
	}

	tasks := s.listAll(artifactmodels.KindTask)
	s.Require().Len(tasks, 1)
	s.Equal(artifactmodels.PriorityMedium, tasks[0].Priority)

	stored, err := s.artifacts.Get(s.ctx, event.ID)
	s.Require().NoError(err)
	s.True(stored.TaskCreated)
}

func (s *JobsSuite) TestComplianceCalendar_ReminderAtOffset() {
	event := s.addOpenArtifact(artifactmodels.KindCalendarEvent, "Cert renewal", s.now.AddDate(0, 0, 30))
	event.EventType = "CERTIFICATION"
	s.Require().NoError(s.artifacts.Update(s.ctx, event))

	counts, err := s.runner.ComplianceCalendar(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)

	sent := s.recorder.Sent()
	s.Require().Len(sent, 1)
	s.Equal("ComplianceReminder", string(sent[0].Category))
	s.Equal("Low", string(sent[0].Urgency))
}

func (s *JobsSuite) TestComplianceCalendar_UnassignedEventGetsNoReminder() {
	event := s.addOpenArtifact(artifactmodels.KindCalendarEvent, "Cert renewal", s.now.AddDate(0, 0, 30))
	event.EventType = "CERTIFICATION"
	event.AssigneeID = id.UserID{}
	s.Require().NoError(s.artifacts.Update(s.ctx, event))

	counts, err := s.runner.ComplianceCalendar(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Zero(s.recorder.Count())

	// The preparation task still opens; only the send is suppressed.
	s.Len(s.listAll(artifactmodels.KindTask), 1)

	stored, err := s.artifacts.Get(s.ctx, event.ID)
	s.Require().NoError(err)
	s.Nil(stored.LastReminderAt)
	s.Zero(stored.ReminderCount)
}

// ---------------------------------------------------------------------------
// evidence_renewals
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestEvidenceRenewals_OpensRenewalInsideWindow() {
	pack := s.addSubject(subjectmodels.KindEvidencePack, "Pen test report", "", nil)
	validUntil := s.now.AddDate(0, 0, 14)
	pack.ValidUntil = &validUntil
	s.Require().NoError(s.subjects.Put(s.ctx, pack))

	counts, err := s.runner.EvidenceRenewals(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Created)

	renewals := s.listAll(artifactmodels.KindEvidenceRenewal)
	s.Require().Len(renewals, 1)
	s.Equal(validUntil, *renewals[0].DueAt)

	updated, err := s.subjects.ListActive(s.ctx, s.tenant.ID, subjectmodels.KindEvidencePack)
	s.Require().NoError(err)
	s.True(updated[0].RenewalScheduled)

	// The flag keeps later runs from re-creating.
	counts, err = s.runner.EvidenceRenewals(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Created)
}

func (s *JobsSuite) TestEvidenceRenewals_FreshEvidenceUntouched() {
	pack := s.addSubject(subjectmodels.KindEvidencePack, "Pen test report", "", nil)
	validUntil := s.now.AddDate(0, 0, 60)
	pack.ValidUntil = &validUntil
	s.Require().NoError(s.subjects.Put(s.ctx, pack))

	counts, err := s.runner.EvidenceRenewals(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Created)
}

// ---------------------------------------------------------------------------
// process_escalations
// ---------------------------------------------------------------------------

func (s *JobsSuite) TestProcessEscalations_PlanOverdue() {
	due := s.now.AddDate(0, 0, -8)
	plan := &escmodels.ActionPlan{
		ID:       id.NewPlanID(),
		TenantID: s.tenant.ID,
		Title:    "Close access review gap",
		Status:   escmodels.PlanStatusOpen,
		DueDate:  &due,
		OwnerID:  id.NewUserID(),
	}
	s.Require().NoError(s.plans.Put(s.ctx, plan))

	counts, err := s.runner.ProcessEscalations(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)

	stored, err := s.plans.ListActionable(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(escmodels.PlanStatusOverdue, stored[0].Status)
	s.Equal(2, stored[0].EscalationLevel)
}

func (s *JobsSuite) TestProcessEscalations_PlanCriticallyOverdueOnlyOnce() {
	due := s.now.AddDate(0, 0, -20)
	plan := &escmodels.ActionPlan{
		ID:       id.NewPlanID(),
		TenantID: s.tenant.ID,
		Title:    "Patch backlog",
		Status:   escmodels.PlanStatusOpen,
		DueDate:  &due,
		OwnerID:  id.NewUserID(),
	}
	s.Require().NoError(s.plans.Put(s.ctx, plan))

	for i := 0; i < 2; i++ {
		_, err := s.runner.ProcessEscalations(s.ctx, s.tenant)
		s.Require().NoError(err)
	}

	stored, err := s.plans.ListActionable(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(escmodels.PlanStatusCriticallyOverdue, stored[0].Status)
	s.Equal(3, stored[0].EscalationLevel)
	s.Equal(1, s.recorder.Count())
}

func (s *JobsSuite) TestProcessEscalations_OwnerlessPlanTransitionsSilently() {
	due := s.now.AddDate(0, 0, -8)
	plan := &escmodels.ActionPlan{
		ID:       id.NewPlanID(),
		TenantID: s.tenant.ID,
		Title:    "Unowned remediation",
		Status:   escmodels.PlanStatusOpen,
		DueDate:  &due,
	}
	s.Require().NoError(s.plans.Put(s.ctx, plan))

	counts, err := s.runner.ProcessEscalations(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Zero(s.recorder.Count())

	// The overdue transition itself still lands.
	stored, err := s.plans.ListActionable(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.Equal(escmodels.PlanStatusOverdue, stored[0].Status)
	s.Equal(2, stored[0].EscalationLevel)
}

func (s *JobsSuite) TestProcessEscalations_UnassignedIncidentBreachSilent() {
	created := s.now.Add(-5 * time.Hour)
	incident := &escmodels.Incident{
		ID:        id.NewIncidentID(),
		TenantID:  s.tenant.ID,
		Title:     "Unassigned alert",
		Severity:  escmodels.SeverityCritical,
		Status:    escmodels.IncidentStatusOpen,
		CreatedAt: created,
	}
	s.Require().NoError(s.incidents.Put(s.ctx, incident))

	counts, err := s.runner.ProcessEscalations(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Zero(counts.Notified)
	s.Zero(s.recorder.Count())

	stored, err := s.incidents.ListOpen(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.True(stored[0].ResponseSLABreached)
}

func (s *JobsSuite) TestProcessEscalations_IncidentResponseBreach() {
	created := s.now.Add(-5 * time.Hour)
	incident := &escmodels.Incident{
		ID:           id.NewIncidentID(),
		TenantID:     s.tenant.ID,
		Title:        "Data exfiltration alert",
		Severity:     escmodels.SeverityCritical,
		Status:       escmodels.IncidentStatusOpen,
		AssignedToID: id.NewUserID(),
		CreatedAt:    created,
	}
	s.Require().NoError(s.incidents.Put(s.ctx, incident))

	counts, err := s.runner.ProcessEscalations(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, counts.Notified)

	stored, err := s.incidents.ListOpen(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.True(stored[0].ResponseSLABreached)
	s.False(stored[0].ResolutionSLABreached)

	// Response breach is one-shot.
	_, err = s.runner.ProcessEscalations(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(1, s.recorder.Count())
}

func (s *JobsSuite) TestProcessEscalations_ResolutionBreachKeepsEscalating() {
	created := s.now.Add(-30 * time.Hour)
	responded := created.Add(time.Hour)
	incident := &escmodels.Incident{
		ID:                  id.NewIncidentID(),
		TenantID:            s.tenant.ID,
		Title:               "Ransomware containment",
		Severity:            escmodels.SeverityCritical,
		Status:              escmodels.IncidentStatusOpen,
		AssignedToID:        id.NewUserID(),
		CreatedAt:           created,
		FirstRespondedAt:    &responded,
		ResponseSLABreached: false,
	}
	s.Require().NoError(s.incidents.Put(s.ctx, incident))

	for i := 0; i < 3; i++ {
		_, err := s.runner.ProcessEscalations(s.ctx, s.tenant)
		s.Require().NoError(err)
	}

	stored, err := s.incidents.ListOpen(s.ctx, s.tenant.ID)
	s.Require().NoError(err)
	s.True(stored[0].ResolutionSLABreached)
	s.Equal(3, stored[0].EscalationLevel)
	s.Equal(3, s.recorder.Count())
}
