package artifact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/artifact/models"
	"custos/internal/artifact/store"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/runcontext"
)

type GeneratorSuite struct {
	suite.Suite
	ctx   context.Context
	store *store.Memory
	gen   *Generator
	now   time.Time
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

func (s *GeneratorSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = runcontext.WithTime(context.Background(), s.now)
	s.store = store.NewMemory()
	gen, err := NewGenerator(s.store)
	s.Require().NoError(err)
	s.gen = gen
}

func (s *GeneratorSuite) draft() Draft {
	due := s.now.AddDate(0, 0, 21)
	return Draft{
		TenantID:  id.NewTenantID(),
		SubjectID: id.NewSubjectID(),
		Kind:      models.KindAssessment,
		Title:     "ISO 27001 Assessment",
		DueAt:     &due,
	}
}

// ---------------------------------------------------------------------------
// CreateIfAbsent
// ---------------------------------------------------------------------------

func (s *GeneratorSuite) TestCreateIfAbsent_CreatesNew() {
	created, ok, err := s.gen.CreateIfAbsent(s.ctx, s.draft())
	s.Require().NoError(err)
	s.True(ok)
	s.Require().NotNil(created)
	s.Equal(models.StatusScheduled, created.Status)
	s.Equal(s.now, created.CreatedAt)

	stored, err := s.store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Title, stored.Title)
}

func (s *GeneratorSuite) TestCreateIfAbsent_SkipsWhenOpenExists() {
	draft := s.draft()

	_, ok, err := s.gen.CreateIfAbsent(s.ctx, draft)
	s.Require().NoError(err)
	s.True(ok)

	created, ok, err := s.gen.CreateIfAbsent(s.ctx, draft)
	s.Require().NoError(err)
	s.False(ok)
	s.Nil(created)
}

func (s *GeneratorSuite) TestCreateIfAbsent_RepeatedRunsCreateExactlyOne() {
	draft := s.draft()
	created := 0
	for i := 0; i < 5; i++ {
		_, ok, err := s.gen.CreateIfAbsent(s.ctx, draft)
		s.Require().NoError(err)
		if ok {
			created++
		}
	}
	s.Equal(1, created)
}

func (s *GeneratorSuite) TestCreateIfAbsent_AllowsNewAfterCompletion() {
	draft := s.draft()
	first, ok, err := s.gen.CreateIfAbsent(s.ctx, draft)
	s.Require().NoError(err)
	s.Require().True(ok)

	first.Status = models.StatusCompleted
	s.Require().NoError(s.store.Update(s.ctx, first))

	_, ok, err = s.gen.CreateIfAbsent(s.ctx, draft)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *GeneratorSuite) TestCreateIfAbsent_DistinctKindsCoexist() {
	draft := s.draft()
	_, ok, err := s.gen.CreateIfAbsent(s.ctx, draft)
	s.Require().NoError(err)
	s.Require().True(ok)

	draft.Kind = models.KindDrill
	_, ok, err = s.gen.CreateIfAbsent(s.ctx, draft)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *GeneratorSuite) TestCreateIfAbsent_RequiresTenant() {
	draft := s.draft()
	draft.TenantID = id.TenantID{}
	_, _, err := s.gen.CreateIfAbsent(s.ctx, draft)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *GeneratorSuite) TestCreateIfAbsent_RequiresKind() {
	draft := s.draft()
	draft.Kind = ""
	_, _, err := s.gen.CreateIfAbsent(s.ctx, draft)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// ---------------------------------------------------------------------------
// PriorityForDays
// ---------------------------------------------------------------------------

func (s *GeneratorSuite) TestPriorityForDays() {
	s.Equal(models.PriorityCritical, PriorityForDays(0))
	s.Equal(models.PriorityCritical, PriorityForDays(7))
	s.Equal(models.PriorityHigh, PriorityForDays(8))
	s.Equal(models.PriorityHigh, PriorityForDays(14))
	s.Equal(models.PriorityMedium, PriorityForDays(15))
	s.Equal(models.PriorityMedium, PriorityForDays(90))
}
