// Package service is the booking lifecycle controller: intake validation,
// creation with visitor association, state transitions and reprogramming.
// All state writes go through the store's Execute guard so concurrent
// requests against one booking serialize.
package service

import (
	"context"
	"log/slog"
	"time"

	"rumbo/internal/booking/metrics"
	"rumbo/internal/booking/models"
	"rumbo/internal/events"
	"rumbo/internal/gateway"
	rmodels "rumbo/internal/reprogram/models"
	"rumbo/internal/reprogram/policy"
	vmodels "rumbo/internal/visitor/models"
	id "rumbo/pkg/domain"
)

// BookingStore is the persistence contract for booking aggregates.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, bookingID id.BookingID) (*models.Booking, error)
	Exists(ctx context.Context, bookingID id.BookingID) (bool, error)
	// Execute runs validate then mutate atomically against the stored
	// booking. A validate error aborts without mutation. The context passed
	// to validate carries the store's transaction, so collaborator writes
	// made through it commit with the state change.
	Execute(ctx context.Context, bookingID id.BookingID,
		validate func(ctx context.Context, b *models.Booking) error, mutate func(*models.Booking)) (*models.Booking, error)
}

// VisitorRegistry is the visitor collaborator used during booking creation.
type VisitorRegistry interface {
	CreateVisitor(ctx context.Context, params vmodels.VisitorParams) (*vmodels.Visitor, error)
	AssociateVisitor(ctx context.Context, bookingID id.BookingID, visitorID id.VisitorID) error
	Roster(ctx context.Context, bookingID id.BookingID) ([]*vmodels.Visitor, error)
}

// PolicyEngine authorizes reprogramming attempts.
type PolicyEngine interface {
	Authorize(ctx context.Context, req policy.Request) (policy.Decision, error)
}

// HistoryStore is the append-only reprogramming audit log.
type HistoryStore interface {
	Append(ctx context.Context, entry *rmodels.HistoryEntry) error
	ListByBooking(ctx context.Context, bookingID id.BookingID) ([]*rmodels.HistoryEntry, error)
}

// EventPublisher emits lifecycle events. Emission is best-effort and never
// fails the operation.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event)
}

// IdempotencyStore guards reprogram requests against blind retries. Reserve
// returns sentinel.ErrAlreadyUsed for a key still inside its TTL window.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// PaymentGateway opens checkout sessions with the external provider.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error)
}

// Controller orchestrates the booking lifecycle.
type Controller struct {
	bookings    BookingStore
	visitors    VisitorRegistry
	policy      PolicyEngine
	history     HistoryStore
	gateway     PaymentGateway
	events      EventPublisher
	idempotency IdempotencyStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithEvents(publisher EventPublisher) Option {
	return func(c *Controller) { c.events = publisher }
}

func WithIdempotency(store IdempotencyStore) Option {
	return func(c *Controller) { c.idempotency = store }
}

func WithPaymentGateway(gw PaymentGateway) Option {
	return func(c *Controller) { c.gateway = gw }
}

func NewController(bookings BookingStore, visitors VisitorRegistry, engine PolicyEngine, history HistoryStore, opts ...Option) *Controller {
	c := &Controller{
		bookings: bookings,
		visitors: visitors,
		policy:   engine,
		history:  history,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) emit(ctx context.Context, event events.Event) {
	if c.events != nil {
		c.events.Emit(ctx, event)
	}
}
