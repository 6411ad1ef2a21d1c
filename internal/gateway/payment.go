// Package gateway is the HTTP client for the external payment provider.
// The provider exposes several endpoint shapes that drift between
// deployments, so the client walks an explicit ordered list of strategies
// until one succeeds. Every attempt is logged; nothing is retried silently.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/circuit"
	"rumbo/pkg/requestcontext"
)

// CheckoutRequest asks the provider to open a payment session for a booking.
type CheckoutRequest struct {
	BookingID id.BookingID    `json:"booking_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	ReturnURL string          `json:"return_url,omitempty"`
}

// CheckoutSession is the provider's handle for a started payment.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// Strategy is one endpoint shape to try.
type Strategy struct {
	Name string
	URL  string
}

// Client tries each strategy in order. A per-strategy circuit breaker skips
// endpoints that have been failing, so a dead primary stops eating a timeout
// on every checkout.
type Client struct {
	strategies []Strategy
	breakers   []*circuit.Breaker
	http       *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(strategies []Strategy, opts ...Option) *Client {
	c := &Client{
		strategies: strategies,
		http:       &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breakers = make([]*circuit.Breaker, len(strategies))
	for i, strategy := range strategies {
		c.breakers[i] = circuit.New(strategy.Name,
			circuit.WithFailureThreshold(3),
			circuit.WithSuccessThreshold(1),
		)
	}
	return c
}

// CreateCheckout opens a payment session, falling through the strategy list
// until one answers. Open-breaker strategies are skipped unless every
// breaker is open, in which case all are tried anyway.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	requestID := requestcontext.RequestID(ctx)

	session, err := c.walk(ctx, req, requestID, true)
	if session != nil {
		return session, nil
	}
	if allOpen(c.breakers) {
		if session, err = c.walk(ctx, req, requestID, false); session != nil {
			return session, nil
		}
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment gateway unreachable")
	}
	return nil, dErrors.New(dErrors.CodeUnavailable, "payment gateway unreachable")
}

func (c *Client) walk(ctx context.Context, req CheckoutRequest, requestID string, skipOpen bool) (*CheckoutSession, error) {
	var lastErr error
	for i, strategy := range c.strategies {
		breaker := c.breakers[i]
		if skipOpen && breaker.IsOpen() {
			continue
		}

		session, err := c.attempt(ctx, strategy, req)
		if err != nil {
			lastErr = err
			if _, change := breaker.RecordFailure(); change.Opened {
				c.logger.Warn("payment strategy circuit opened",
					slog.String("strategy", strategy.Name))
			}
			c.logger.WarnContext(ctx, "payment checkout attempt failed",
				slog.String("request_id", requestID),
				slog.String("strategy", strategy.Name),
				slog.String("booking_id", req.BookingID.String()),
				slog.Any("error", err),
			)
			continue
		}

		if _, change := breaker.RecordSuccess(); change.Closed {
			c.logger.Info("payment strategy circuit closed",
				slog.String("strategy", strategy.Name))
		}
		c.logger.InfoContext(ctx, "payment checkout created",
			slog.String("request_id", requestID),
			slog.String("strategy", strategy.Name),
			slog.String("booking_id", req.BookingID.String()),
			slog.String("session_id", session.SessionID),
		)
		return session, nil
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, strategy Strategy, req CheckoutRequest) (*CheckoutSession, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strategy.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", strategy.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("strategy %s returned status %d", strategy.Name, resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding checkout response: %w", err)
	}
	if session.SessionID == "" {
		return nil, fmt.Errorf("strategy %s returned an empty session id", strategy.Name)
	}
	return &session, nil
}

func allOpen(breakers []*circuit.Breaker) bool {
	for _, b := range breakers {
		if !b.IsOpen() {
			return false
		}
	}
	return len(breakers) > 0
}
