package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rumbo/internal/visitor/models"
	"rumbo/internal/visitor/store"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

type fakeBookingChecker struct {
	known map[id.BookingID]bool
}

func (f *fakeBookingChecker) Exists(_ context.Context, bookingID id.BookingID) (bool, error) {
	return f.known[bookingID], nil
}

func newRegistry(t *testing.T, known ...id.BookingID) (*Registry, *store.InMemory) {
	t.Helper()
	visitors := store.NewInMemory()
	checker := &fakeBookingChecker{known: make(map[id.BookingID]bool)}
	for _, b := range known {
		checker.known[b] = true
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(visitors, checker, WithLogger(logger)), visitors
}

func validParams(titular bool) models.VisitorParams {
	return models.VisitorParams{
		Name:        "Ana",
		LastName:    "Gómez",
		DocumentID:  "48291045",
		BirthDate:   time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC),
		Nationality: "PE",
		Email:       "ana@example.com",
		IsTitular:   titular,
	}
}

func TestCreateVisitor(t *testing.T) {
	t.Run("creates a visitor independently of any booking", func(t *testing.T) {
		registry, _ := newRegistry(t)

		visitor, err := registry.CreateVisitor(context.Background(), validParams(true))
		require.NoError(t, err)
		assert.False(t, visitor.ID.IsNil())
		assert.Nil(t, visitor.BookingID)

		found, err := registry.GetVisitor(context.Background(), visitor.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", found.Name)
	})

	t.Run("surfaces invariant violations as validation errors", func(t *testing.T) {
		registry, _ := newRegistry(t)

		params := validParams(true)
		params.Name = "  "
		_, err := registry.CreateVisitor(context.Background(), params)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestAssociateVisitor(t *testing.T) {
	t.Run("links visitor to an existing booking", func(t *testing.T) {
		bookingID := id.NewBookingID()
		registry, _ := newRegistry(t, bookingID)

		visitor, err := registry.CreateVisitor(context.Background(), validParams(true))
		require.NoError(t, err)

		require.NoError(t, registry.AssociateVisitor(context.Background(), bookingID, visitor.ID))

		roster, err := registry.Roster(context.Background(), bookingID)
		require.NoError(t, err)
		require.Len(t, roster, 1)
		assert.Equal(t, visitor.ID, roster[0].ID)
	})

	t.Run("association with unknown booking fails but visitor record persists", func(t *testing.T) {
		registry, _ := newRegistry(t)

		visitor, err := registry.CreateVisitor(context.Background(), validParams(true))
		require.NoError(t, err)

		err = registry.AssociateVisitor(context.Background(), id.NewBookingID(), visitor.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

		// The failed association must not roll back creation.
		found, err := registry.GetVisitor(context.Background(), visitor.ID)
		require.NoError(t, err)
		assert.Nil(t, found.BookingID)
	})

	t.Run("double association is a conflict", func(t *testing.T) {
		bookingID := id.NewBookingID()
		registry, _ := newRegistry(t, bookingID)

		visitor, err := registry.CreateVisitor(context.Background(), validParams(false))
		require.NoError(t, err)

		require.NoError(t, registry.AssociateVisitor(context.Background(), bookingID, visitor.ID))
		err = registry.AssociateVisitor(context.Background(), bookingID, visitor.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("unknown visitor is not found", func(t *testing.T) {
		bookingID := id.NewBookingID()
		registry, _ := newRegistry(t, bookingID)

		err := registry.AssociateVisitor(context.Background(), bookingID, id.NewVisitorID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
