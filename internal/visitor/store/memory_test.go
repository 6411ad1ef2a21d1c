package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rumbo/internal/visitor/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
)

type VisitorStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *VisitorStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestVisitorStoreSuite(t *testing.T) {
	suite.Run(t, new(VisitorStoreSuite))
}

func (s *VisitorStoreSuite) newVisitor(name string, titular bool) *models.Visitor {
	visitor, err := models.NewVisitor(id.NewVisitorID(), models.VisitorParams{
		Name:        name,
		LastName:    "Gómez",
		DocumentID:  "48291045",
		BirthDate:   time.Date(1994, 3, 12, 0, 0, 0, 0, time.UTC),
		Nationality: "PE",
		IsTitular:   titular,
	}, time.Now())
	s.Require().NoError(err)
	return visitor
}

func (s *VisitorStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds visitor by ID", func() {
		visitor := s.newVisitor("Ana", true)
		s.Require().NoError(s.store.Create(s.ctx, visitor))

		found, err := s.store.FindByID(s.ctx, visitor.ID)
		s.Require().NoError(err)
		s.Equal(visitor.Name, found.Name)
		s.Nil(found.BookingID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewVisitorID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate id", func() {
		visitor := s.newVisitor("Ana", true)
		s.Require().NoError(s.store.Create(s.ctx, visitor))
		s.Require().ErrorIs(s.store.Create(s.ctx, visitor), sentinel.ErrConflict)
	})

	s.Run("returned copies do not alias store state", func() {
		visitor := s.newVisitor("Ana", true)
		s.Require().NoError(s.store.Create(s.ctx, visitor))

		found, err := s.store.FindByID(s.ctx, visitor.ID)
		s.Require().NoError(err)
		found.Name = "mutated"

		again, err := s.store.FindByID(s.ctx, visitor.ID)
		s.Require().NoError(err)
		s.Equal("Ana", again.Name)
	})
}

func (s *VisitorStoreSuite) TestLink() {
	bookingID := id.NewBookingID()

	s.Run("links an unattached visitor", func() {
		visitor := s.newVisitor("Ana", true)
		s.Require().NoError(s.store.Create(s.ctx, visitor))
		s.Require().NoError(s.store.Link(s.ctx, visitor.ID, bookingID))

		found, err := s.store.FindByID(s.ctx, visitor.ID)
		s.Require().NoError(err)
		s.Require().NotNil(found.BookingID)
		s.Equal(bookingID, *found.BookingID)
	})

	s.Run("second link attempt fails with ErrInvalidState", func() {
		visitor := s.newVisitor("Luis", false)
		s.Require().NoError(s.store.Create(s.ctx, visitor))
		s.Require().NoError(s.store.Link(s.ctx, visitor.ID, bookingID))
		s.Require().ErrorIs(s.store.Link(s.ctx, visitor.ID, id.NewBookingID()), sentinel.ErrInvalidState)
	})

	s.Run("link of unknown visitor fails with ErrNotFound", func() {
		s.Require().ErrorIs(s.store.Link(s.ctx, id.NewVisitorID(), bookingID), sentinel.ErrNotFound)
	})
}

func (s *VisitorStoreSuite) TestListByBooking() {
	bookingID := id.NewBookingID()

	titular := s.newVisitor("Ana", true)
	companion := s.newVisitor("Luis", false)
	companion.CreatedAt = titular.CreatedAt.Add(time.Second)
	unrelated := s.newVisitor("Marta", true)

	s.Require().NoError(s.store.Create(s.ctx, titular))
	s.Require().NoError(s.store.Create(s.ctx, companion))
	s.Require().NoError(s.store.Create(s.ctx, unrelated))

	s.Require().NoError(s.store.Link(s.ctx, companion.ID, bookingID))
	s.Require().NoError(s.store.Link(s.ctx, titular.ID, bookingID))

	roster, err := s.store.ListByBooking(s.ctx, bookingID)
	s.Require().NoError(err)
	s.Require().Len(roster, 2)
	s.True(roster[0].IsTitular, "titular sorts first")
	s.Equal("Ana", roster[0].Name)
	s.Equal("Luis", roster[1].Name)
}
