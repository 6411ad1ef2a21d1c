package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	bookinghandler "rumbo/internal/booking/handler"
	"rumbo/internal/booking/service"
	bookingstore "rumbo/internal/booking/store/booking"
	"rumbo/internal/platform/middleware"
	reprogramhandler "rumbo/internal/reprogram/handler"
	"rumbo/internal/reprogram/policy"
	reprogramservice "rumbo/internal/reprogram/service"
	historystore "rumbo/internal/reprogram/store/history"
	rulestore "rumbo/internal/reprogram/store/rules"
	visitorhandler "rumbo/internal/visitor/handler"
	visitorservice "rumbo/internal/visitor/service"
	visitorstore "rumbo/internal/visitor/store"
	id "rumbo/pkg/domain"
	"rumbo/pkg/testutil"
)

const signingKey = "router-test-signing-key"

type RouterSuite struct {
	suite.Suite
	handler   http.Handler
	healthErr error
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.healthErr = nil
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	bookings := bookingstore.NewInMemory()
	rules := rulestore.NewInMemory()
	history := historystore.NewInMemory()
	registry := visitorservice.NewRegistry(visitorstore.NewInMemory(), bookings)
	engine := policy.NewEngine(rules, history)
	controller := service.NewController(bookings, registry, engine, history)

	s.handler = NewRouter(Deps{
		Bookings:       bookinghandler.New(controller, log),
		Visitors:       visitorhandler.New(registry, log),
		RuleAdmin:      reprogramhandler.New(reprogramservice.NewAdmin(rules), log),
		ActorValidator: middleware.NewJWTValidator(signingKey),
		AdminToken:     "router-test-admin-token",
		Logger:         log,
		Health:         func() error { return s.healthErr },
	})
}

func (s *RouterSuite) bearerToken(role id.Role) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "7d5bc6a3-21d4-4f6e-9f0a-56a5f3f3a001",
		"role": string(role),
	})
	signed, err := token.SignedString([]byte(signingKey))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) TestHealthz() {
	rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *RouterSuite) TestHealthzDegraded() {
	s.healthErr = errors.New("db unreachable")
	rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
}

func (s *RouterSuite) TestMetricsEndpoint() {
	rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *RouterSuite) TestBookingRoutesRequireBearer() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/bookings/"+id.NewBookingID().String())
	rr := testutil.DoRequest(s.handler, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *RouterSuite) TestBookingRoutesRejectBadToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/bookings/"+id.NewBookingID().String())
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := testutil.DoRequest(s.handler, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *RouterSuite) TestBookingRoutesAcceptValidToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/bookings/"+id.NewBookingID().String())
	req.Header.Set("Authorization", "Bearer "+s.bearerToken(id.RoleClient))
	rr := testutil.DoRequest(s.handler, req)

	// The token passes auth; the unknown booking is the service's answer.
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RouterSuite) TestAdminRoutesRequireToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/reprogram/rules")
	rr := testutil.DoRequest(s.handler, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *RouterSuite) TestAdminRoutesAcceptToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/reprogram/rules")
	req.Header.Set("X-Admin-Token", "router-test-admin-token")
	rr := testutil.DoRequest(s.handler, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *RouterSuite) TestAdminSurfaceDisabledWithoutToken() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rules := rulestore.NewInMemory()

	handler := NewRouter(Deps{
		Bookings: bookinghandler.New(
			service.NewController(bookingstore.NewInMemory(),
				visitorservice.NewRegistry(visitorstore.NewInMemory(), bookingstore.NewInMemory()),
				policy.NewEngine(rules, historystore.NewInMemory()),
				historystore.NewInMemory()), log),
		Visitors: visitorhandler.New(
			visitorservice.NewRegistry(visitorstore.NewInMemory(), bookingstore.NewInMemory()), log),
		RuleAdmin:      reprogramhandler.New(reprogramservice.NewAdmin(rules), log),
		ActorValidator: middleware.NewJWTValidator(signingKey),
		Logger:         log,
	})

	req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/reprogram/rules")
	req.Header.Set("X-Admin-Token", "anything")
	rr := testutil.DoRequest(handler, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}
