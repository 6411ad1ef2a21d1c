package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		BookingID: id.NewBookingID(),
		Amount:    decimal.NewFromInt(1500),
		Currency:  "PEN",
	}
}

func sessionHandler(sessionID string, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(CheckoutSession{
			SessionID:   sessionID,
			RedirectURL: "https://pay.example/" + sessionID,
		})
	}
}

func TestCreateCheckoutUsesFirstWorkingStrategy(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	primary := httptest.NewServer(sessionHandler("sess-primary", &primaryCalls))
	defer primary.Close()
	fallback := httptest.NewServer(sessionHandler("sess-fallback", &fallbackCalls))
	defer fallback.Close()

	client := NewClient([]Strategy{
		{Name: "primary", URL: primary.URL},
		{Name: "fallback", URL: fallback.URL},
	})

	session, err := client.CreateCheckout(context.Background(), checkoutRequest())
	require.NoError(t, err)
	require.Equal(t, "sess-primary", session.SessionID)
	require.EqualValues(t, 1, primaryCalls.Load())
	require.Zero(t, fallbackCalls.Load())
}

func TestCreateCheckoutFallsThroughOnFailure(t *testing.T) {
	var fallbackCalls atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	fallback := httptest.NewServer(sessionHandler("sess-fallback", &fallbackCalls))
	defer fallback.Close()

	client := NewClient([]Strategy{
		{Name: "primary", URL: broken.URL},
		{Name: "fallback", URL: fallback.URL},
	})

	session, err := client.CreateCheckout(context.Background(), checkoutRequest())
	require.NoError(t, err)
	require.Equal(t, "sess-fallback", session.SessionID)
	require.EqualValues(t, 1, fallbackCalls.Load())
}

func TestCreateCheckoutAllStrategiesDown(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	client := NewClient([]Strategy{{Name: "primary", URL: broken.URL}})

	_, err := client.CreateCheckout(context.Background(), checkoutRequest())
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestCreateCheckoutSkipsOpenBreaker(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	fallback := httptest.NewServer(sessionHandler("sess-fallback", &fallbackCalls))
	defer fallback.Close()

	client := NewClient([]Strategy{
		{Name: "primary", URL: broken.URL},
		{Name: "fallback", URL: fallback.URL},
	})

	// Three failures open the primary breaker.
	for i := 0; i < 3; i++ {
		_, err := client.CreateCheckout(context.Background(), checkoutRequest())
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, primaryCalls.Load())

	// Subsequent checkouts go straight to the fallback.
	_, err := client.CreateCheckout(context.Background(), checkoutRequest())
	require.NoError(t, err)
	require.EqualValues(t, 3, primaryCalls.Load())
	require.EqualValues(t, 4, fallbackCalls.Load())
}

func TestCreateCheckoutRejectsEmptySession(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(CheckoutSession{})
	}))
	defer empty.Close()

	client := NewClient([]Strategy{{Name: "primary", URL: empty.URL}})

	_, err := client.CreateCheckout(context.Background(), checkoutRequest())
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
