package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func (s *InMemorySuite) entry(bookingID id.BookingID, authorized bool, at time.Time) *models.HistoryEntry {
	actorID, err := id.ParseActorID("7d5bc6a3-21d4-4f6e-9f0a-56a5f3f3a001")
	s.Require().NoError(err)

	entry, err := models.NewHistoryEntry(id.NewEntryID(), models.HistoryParams{
		BookingID:    bookingID,
		PreviousDate: at.Add(72 * time.Hour),
		NewDate:      at.Add(240 * time.Hour),
		Reason:       "schedule conflict",
		ActorID:      actorID,
		ActorRole:    id.RoleClient,
		Authorized:   authorized,
	}, at)
	s.Require().NoError(err)
	return entry
}

func (s *InMemorySuite) TestAppendAndList() {
	bookingID := id.NewBookingID()
	first := s.entry(bookingID, true, s.now)
	second := s.entry(bookingID, false, s.now.Add(time.Hour))

	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))

	entries, err := s.store.ListByBooking(s.ctx, bookingID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(second.ID, entries[0].ID, "newest entry first")
	s.Equal(first.ID, entries[1].ID)
}

func (s *InMemorySuite) TestListUnknownBookingIsEmpty() {
	entries, err := s.store.ListByBooking(s.ctx, id.NewBookingID())
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *InMemorySuite) TestListDoesNotAliasStoredEntries() {
	bookingID := id.NewBookingID()
	ruleID := id.NewRuleID()
	stored := s.entry(bookingID, false, s.now)
	stored.ViolatedRule = &ruleID
	s.Require().NoError(s.store.Append(s.ctx, stored))

	entries, err := s.store.ListByBooking(s.ctx, bookingID)
	s.Require().NoError(err)
	entries[0].Reason = "mutated"
	*entries[0].ViolatedRule = id.NewRuleID()

	again, err := s.store.ListByBooking(s.ctx, bookingID)
	s.Require().NoError(err)
	s.Equal("schedule conflict", again[0].Reason)
	s.Equal(ruleID, *again[0].ViolatedRule)
}

func (s *InMemorySuite) TestCountAuthorized() {
	bookingID := id.NewBookingID()
	s.Require().NoError(s.store.Append(s.ctx, s.entry(bookingID, true, s.now)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry(bookingID, false, s.now.Add(time.Hour))))
	s.Require().NoError(s.store.Append(s.ctx, s.entry(bookingID, true, s.now.Add(2*time.Hour))))

	count, err := s.store.CountAuthorized(s.ctx, bookingID)
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.CountAuthorized(s.ctx, id.NewBookingID())
	s.Require().NoError(err)
	s.Zero(count)
}
