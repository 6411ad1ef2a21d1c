package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"rumbo/internal/booking/models"
	bookingstore "rumbo/internal/booking/store/booking"
	"rumbo/internal/events"
	"rumbo/internal/platform/idempotency"
	rmodels "rumbo/internal/reprogram/models"
	"rumbo/internal/reprogram/policy"
	historystore "rumbo/internal/reprogram/store/history"
	rulestore "rumbo/internal/reprogram/store/rules"
	visitorservice "rumbo/internal/visitor/service"
	visitorstore "rumbo/internal/visitor/store"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/requestcontext"
)

type eventCollector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCollector) Emit(_ context.Context, event events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) byType(eventType events.Type) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type ControllerSuite struct {
	suite.Suite
	controller *Controller
	bookings   *bookingstore.InMemory
	rules      *rulestore.InMemory
	history    *historystore.InMemory
	collector  *eventCollector
	ctx        context.Context
	now        time.Time
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	s.bookings = bookingstore.NewInMemory()
	s.rules = rulestore.NewInMemory()
	s.history = historystore.NewInMemory()
	s.collector = &eventCollector{}

	registry := visitorservice.NewRegistry(visitorstore.NewInMemory(), s.bookings)
	engine := policy.NewEngine(s.rules, s.history)
	s.controller = NewController(s.bookings, registry, engine, s.history,
		WithEvents(s.collector),
		WithIdempotency(idempotency.NewMemory()),
	)

	actorID, err := id.ParseActorID("7d5bc6a3-21d4-4f6e-9f0a-56a5f3f3a001")
	s.Require().NoError(err)
	ctx := requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActor(ctx, requestcontext.ActorInfo{ID: actorID, Role: id.RoleClient})
}

func (s *ControllerSuite) validIntake() models.Intake {
	birth := time.Date(1990, time.June, 1, 0, 0, 0, 0, time.UTC)
	return models.Intake{
		Titular: models.TravelerInput{
			Name:        "Lucia",
			LastName:    "Paredes",
			DocumentID:  "45871236",
			BirthDate:   birth,
			Nationality: "PE",
			Phone:       "+51 987 654 321",
			Email:       "lucia@example.com",
		},
		Companions: []models.TravelerInput{{
			Name:        "Mateo",
			LastName:    "Paredes",
			DocumentID:  "78123654",
			BirthDate:   time.Date(2012, time.January, 15, 0, 0, 0, 0, time.UTC),
			Nationality: "PE",
		}},
		Trip: models.TripInput{
			StartDate: s.now.AddDate(0, 2, 0),
			LineItems: []models.LineItem{{
				ServiceID:   101,
				Quantity:    2,
				UnitPrice:   decimal.NewFromInt(750),
				ServiceDate: s.now.AddDate(0, 2, 0),
			}},
			Currency: models.CurrencyLocal,
		},
		Consent: models.ConsentInput{TermsAccepted: true, PrivacyAccepted: true},
	}
}

func (s *ControllerSuite) createBooking() *models.Booking {
	result, fieldErrs, err := s.controller.CreateBooking(s.ctx, s.validIntake())
	s.Require().NoError(err)
	s.Require().Empty(fieldErrs)
	return result.Booking
}

func (s *ControllerSuite) paidBooking() *models.Booking {
	booking := s.createBooking()
	paid, err := s.controller.ConfirmPayment(s.ctx, booking.ID)
	s.Require().NoError(err)
	return paid
}

func (s *ControllerSuite) TestCreateBookingBuildsRoster() {
	result, fieldErrs, err := s.controller.CreateBooking(s.ctx, s.validIntake())
	s.Require().NoError(err)
	s.Require().Empty(fieldErrs)
	s.Empty(result.Warnings)

	s.Equal(models.StatePending, result.Booking.State)
	s.Equal("1500", result.Booking.Total.String())
	s.Require().Len(result.Roster, 2)
	s.True(result.Roster[0].IsTitular)

	s.Len(s.collector.byType(events.TypeBookingCreated), 1)
}

func (s *ControllerSuite) TestCreateBookingReturnsFieldErrors() {
	in := s.validIntake()
	in.Titular.Email = "not-an-email"

	result, fieldErrs, err := s.controller.CreateBooking(s.ctx, in)
	s.Require().NoError(err)
	s.Nil(result)
	s.Require().NotEmpty(fieldErrs)
	s.Equal("titular", fieldErrs[0].Stage)
	s.Empty(s.collector.byType(events.TypeBookingCreated))
}

func (s *ControllerSuite) TestConfirmPayment() {
	booking := s.createBooking()

	paid, err := s.controller.ConfirmPayment(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePaid, paid.State)
	s.Len(s.collector.byType(events.TypePaymentConfirmed), 1)

	_, err = s.controller.ConfirmPayment(s.ctx, booking.ID)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "paying twice is not a transition")
}

func (s *ControllerSuite) TestConfirmPaymentUnknownBooking() {
	_, err := s.controller.ConfirmPayment(s.ctx, id.NewBookingID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ControllerSuite) TestCancelBookingIsIdempotent() {
	booking := s.createBooking()

	cancelled, err := s.controller.CancelBooking(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(models.StateCancelled, cancelled.State)

	again, err := s.controller.CancelBooking(s.ctx, booking.ID)
	s.Require().NoError(err, "second cancel is a no-op success")
	s.Equal(models.StateCancelled, again.State)

	s.Len(s.collector.byType(events.TypeBookingCancelled), 1, "the no-op emits no second event")
}

func (s *ControllerSuite) TestCancelledBookingIsTerminal() {
	booking := s.createBooking()
	_, err := s.controller.CancelBooking(s.ctx, booking.ID)
	s.Require().NoError(err)

	_, err = s.controller.ConfirmPayment(s.ctx, booking.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   s.now.AddDate(0, 3, 0),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	entries, err := s.controller.History(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Empty(entries, "attempts rejected by the state machine are not evaluated, so not logged")
}

func (s *ControllerSuite) TestRequestReprogramAuthorized() {
	booking := s.paidBooking()
	newDate := s.now.AddDate(0, 3, 0)

	result, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   newDate,
		Reason:    "flight moved",
	})
	s.Require().NoError(err)
	s.Require().True(result.Accepted)
	s.Equal(models.StateReprogrammed, result.Booking.State)
	s.True(result.Booking.TripStartDate.Equal(newDate))

	entries, err := s.controller.History(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.True(entries[0].Authorized)
	s.True(entries[0].PreviousDate.Equal(booking.TripStartDate))
	s.Equal("flight moved", entries[0].Reason)

	s.Len(s.collector.byType(events.TypeBookingReprogrammed), 1)
}

func (s *ControllerSuite) TestRequestReprogramFromPendingRejected() {
	booking := s.createBooking()

	_, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   s.now.AddDate(0, 3, 0),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "only paid bookings reprogram")
}

func (s *ControllerSuite) TestRequestReprogramDenialRecordedAndBookingUntouched() {
	rule, err := rmodels.NewRule(id.NewRuleID(), rmodels.RuleParams{
		Name:         "no same-week changes",
		AppliesTo:    rmodels.AudienceClient,
		RuleType:     rmodels.RuleMinNoticeTime,
		NumericValue: 24 * 365, // effectively always denies
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.rules.Create(s.ctx, rule))

	booking := s.paidBooking()
	originalDate := booking.TripStartDate

	result, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   s.now.AddDate(0, 3, 0),
	})
	s.Require().NoError(err, "a denial is a result, not an error")
	s.False(result.Accepted)
	s.NotEmpty(result.Reason)
	s.Require().NotNil(result.ViolatedRule)
	s.Equal(rule.ID, *result.ViolatedRule)

	stored, err := s.bookings.FindByID(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePaid, stored.State)
	s.True(stored.TripStartDate.Equal(originalDate))

	entries, err := s.controller.History(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.False(entries[0].Authorized)
	s.Equal(rule.ID, *entries[0].ViolatedRule)

	s.Empty(s.collector.byType(events.TypeBookingReprogrammed))
}

func (s *ControllerSuite) TestRequestReprogramCountLimitAcrossAttempts() {
	rule, err := rmodels.NewRule(id.NewRuleID(), rmodels.RuleParams{
		Name:         "one change only",
		AppliesTo:    rmodels.AudienceAll,
		RuleType:     rmodels.RuleMaxReprogramCount,
		NumericValue: 1,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.rules.Create(s.ctx, rule))

	booking := s.paidBooking()

	first, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   s.now.AddDate(0, 3, 0),
	})
	s.Require().NoError(err)
	s.Require().True(first.Accepted)

	second, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   s.now.AddDate(0, 4, 0),
	})
	s.Require().NoError(err)
	s.False(second.Accepted, "the single allowed change is spent")

	entries, err := s.controller.History(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Len(entries, 2)
}

// slowAppendHistory widens the window between the policy decision and the
// entry landing in the log, so two overlapping requests would both see the
// stale count if the append escaped the booking guard.
type slowAppendHistory struct {
	*historystore.InMemory
	delay time.Duration
}

func (h *slowAppendHistory) Append(ctx context.Context, entry *rmodels.HistoryEntry) error {
	time.Sleep(h.delay)
	return h.InMemory.Append(ctx, entry)
}

func (s *ControllerSuite) TestRequestReprogramConcurrentAttemptsHonorCountLimit() {
	rule, err := rmodels.NewRule(id.NewRuleID(), rmodels.RuleParams{
		Name:         "one change only",
		AppliesTo:    rmodels.AudienceAll,
		RuleType:     rmodels.RuleMaxReprogramCount,
		NumericValue: 1,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.rules.Create(s.ctx, rule))

	slow := &slowAppendHistory{InMemory: s.history, delay: 50 * time.Millisecond}
	registry := visitorservice.NewRegistry(visitorstore.NewInMemory(), s.bookings)
	engine := policy.NewEngine(s.rules, slow)
	controller := NewController(s.bookings, registry, engine, slow, WithEvents(s.collector))

	booking := s.paidBooking()

	type outcome struct {
		result *ReprogramResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			result, err := controller.RequestReprogram(s.ctx, ReprogramRequest{
				BookingID: booking.ID,
				NewDate:   s.now.AddDate(0, 3+offset, 0),
			})
			outcomes <- outcome{result, err}
		}(i)
	}
	wg.Wait()
	close(outcomes)

	accepted := 0
	for out := range outcomes {
		s.Require().NoError(out.err)
		if out.result.Accepted {
			accepted++
		}
	}
	s.Equal(1, accepted, "only one request may consume the last allowed change")

	authorized, err := s.history.CountAuthorized(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(1, authorized)
}

type downCountHistory struct {
	*historystore.InMemory
}

func (downCountHistory) CountAuthorized(context.Context, id.BookingID) (int, error) {
	return 0, errors.New("history store down")
}

func (s *ControllerSuite) TestRequestReprogramUnavailableWhenHistoryCountFails() {
	rule, err := rmodels.NewRule(id.NewRuleID(), rmodels.RuleParams{
		Name:         "two changes max",
		AppliesTo:    rmodels.AudienceAll,
		RuleType:     rmodels.RuleMaxReprogramCount,
		NumericValue: 2,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.rules.Create(s.ctx, rule))

	registry := visitorservice.NewRegistry(visitorstore.NewInMemory(), s.bookings)
	engine := policy.NewEngine(s.rules, downCountHistory{s.history})
	controller := NewController(s.bookings, registry, engine, s.history)

	booking := s.paidBooking()
	originalDate := booking.TripStartDate

	_, err = controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   s.now.AddDate(0, 3, 0),
	})
	s.Require().True(dErrors.HasCode(err, dErrors.CodeUnavailable), "an unevaluated request is not a denial")

	stored, err := s.bookings.FindByID(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePaid, stored.State)
	s.True(stored.TripStartDate.Equal(originalDate))

	entries, err := s.controller.History(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Empty(entries, "infrastructure failures leave no audit entries")
}

func (s *ControllerSuite) TestRequestReprogramDuplicateIdempotencyKey() {
	booking := s.paidBooking()

	first, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID:      booking.ID,
		NewDate:        s.now.AddDate(0, 3, 0),
		IdempotencyKey: "retry-abc",
	})
	s.Require().NoError(err)
	s.True(first.Accepted)

	_, err = s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID:      booking.ID,
		NewDate:        s.now.AddDate(0, 3, 0),
		IdempotencyKey: "retry-abc",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ControllerSuite) TestRequestReprogramKeyReleasedOnPreDecisionFailure() {
	_, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID:      id.NewBookingID(),
		NewDate:        s.now.AddDate(0, 3, 0),
		IdempotencyKey: "retry-xyz",
	})
	s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))

	booking := s.paidBooking()
	result, err := s.controller.RequestReprogram(s.ctx, ReprogramRequest{
		BookingID:      booking.ID,
		NewDate:        s.now.AddDate(0, 3, 0),
		IdempotencyKey: "retry-xyz",
	})
	s.Require().NoError(err, "key freed after a failure that reached no decision")
	s.True(result.Accepted)
}

func (s *ControllerSuite) TestRequestReprogramRequiresActor() {
	booking := s.paidBooking()

	ctx := requestcontext.WithTime(context.Background(), s.now)
	_, err := s.controller.RequestReprogram(ctx, ReprogramRequest{
		BookingID: booking.ID,
		NewDate:   s.now.AddDate(0, 3, 0),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ControllerSuite) TestHistoryUnknownBooking() {
	_, err := s.controller.History(s.ctx, id.NewBookingID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ControllerSuite) TestGetBookingWithRoster() {
	booking := s.createBooking()

	result, err := s.controller.GetBooking(s.ctx, booking.ID)
	s.Require().NoError(err)
	s.Equal(booking.ID, result.Booking.ID)
	s.Len(result.Roster, 2)

	_, err = s.controller.GetBooking(s.ctx, id.NewBookingID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
