package group

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bonifica/internal/training/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

type GroupStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	org   domain.OrgID
}

func (s *GroupStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.org = domain.NewOrgID()
}

func TestGroupStoreSuite(t *testing.T) {
	suite.Run(t, new(GroupStoreSuite))
}

func (s *GroupStoreSuite) newGroup(code string, year int) *models.DeliveryGroup {
	return &models.DeliveryGroup{
		ID:               domain.NewGroupID(),
		TrainingActionID: domain.NewActionID(),
		ResponsibleOrgID: s.org,
		SequentialCode:   code,
		CodeYear:         year,
		StartDate:        time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC),
		PlannedEndDate:   time.Date(year, time.May, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

func (s *GroupStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds group by ID", func() {
		g := s.newGroup("1", 2025)
		s.Require().NoError(s.store.Create(s.ctx, g))

		found, err := s.store.FindByID(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(g.SequentialCode, found.SequentialCode)
		s.Equal(g.ResponsibleOrgID, found.ResponsibleOrgID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, domain.NewGroupID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("FindByID returns a copy", func() {
		g := s.newGroup("9", 2025)
		s.Require().NoError(s.store.Create(s.ctx, g))

		found, err := s.store.FindByID(s.ctx, g.ID)
		s.Require().NoError(err)
		found.SequentialCode = "mutated"

		again, err := s.store.FindByID(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal("9", again.SequentialCode)
	})
}

func (s *GroupStoreSuite) TestCodeUniqueness() {
	s.Run("rejects duplicate code in the same scope", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("1", 2025)))

		err := s.store.Create(s.ctx, s.newGroup("1", 2025))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("allows the same code in another year", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("2", 2025)))
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("2", 2026)))
	})

	s.Run("allows the same code under another responsible organization", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("3", 2025)))

		other := s.newGroup("3", 2025)
		other.ResponsibleOrgID = domain.NewOrgID()
		s.Require().NoError(s.store.Create(s.ctx, other))
	})

	s.Run("update excludes the group from its own uniqueness check", func() {
		g := s.newGroup("4", 2025)
		s.Require().NoError(s.store.Create(s.ctx, g))

		g.ParticipantCountPlanned = 12
		s.Require().NoError(s.store.Update(s.ctx, g))
	})

	s.Run("update onto a taken code conflicts", func() {
		a := s.newGroup("5", 2025)
		b := s.newGroup("6", 2025)
		s.Require().NoError(s.store.Create(s.ctx, a))
		s.Require().NoError(s.store.Create(s.ctx, b))

		b.SequentialCode = "5"
		s.Require().ErrorIs(s.store.Update(s.ctx, b), sentinel.ErrConflict)
	})
}

func (s *GroupStoreSuite) TestScopeQueries() {
	s.Run("lists codes in a scope", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("1", 2025)))
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("3", 2025)))
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("1", 2024)))

		codes, err := s.store.ListCodesInScope(s.ctx, s.org, 2025)
		s.Require().NoError(err)
		s.ElementsMatch([]string{"1", "3"}, codes)
	})

	s.Run("reports code existence with exclusion", func() {
		g := s.newGroup("7", 2025)
		s.Require().NoError(s.store.Create(s.ctx, g))

		taken, err := s.store.CodeExistsInScope(s.ctx, s.org, 2025, "7", domain.GroupID{})
		s.Require().NoError(err)
		s.True(taken)

		taken, err = s.store.CodeExistsInScope(s.ctx, s.org, 2025, "7", g.ID)
		s.Require().NoError(err)
		s.False(taken)
	})
}

func (s *GroupStoreSuite) TestDelete() {
	g := s.newGroup("8", 2025)
	s.Require().NoError(s.store.Create(s.ctx, g))
	s.Require().NoError(s.store.Delete(s.ctx, g.ID))

	_, err := s.store.FindByID(s.ctx, g.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, g.ID), sentinel.ErrNotFound)
}
