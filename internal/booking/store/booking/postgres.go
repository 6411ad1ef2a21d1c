package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"rumbo/internal/booking/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
	txcontext "rumbo/pkg/platform/tx"
)

// Postgres persists bookings in PostgreSQL. Line items are embedded as JSONB:
// they have no identity outside their booking.
//
// Execute serializes per-booking state changes with SELECT ... FOR UPDATE,
// holding the row lock across validate-then-mutate inside one transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

func (s *Postgres) Create(ctx context.Context, b *models.Booking) error {
	items, err := json.Marshal(b.LineItems)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}
	query := `
		INSERT INTO bookings (id, state, trip_start_date, trip_end_date, line_items, total, currency, coupon_ref, notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(b.ID),
		string(b.State),
		b.TripStartDate,
		nullTime(b.TripEndDate),
		items,
		b.Total.String(),
		string(b.Currency),
		nullInt(b.CouponRef),
		b.Notes,
		b.Version,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, bookingID id.BookingID) (*models.Booking, error) {
	return s.findByID(ctx, s.execer(ctx), bookingID, false)
}

func (s *Postgres) Exists(ctx context.Context, bookingID id.BookingID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(bookingID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check booking existence: %w", err)
	}
	return exists, nil
}

// Execute atomically runs validate then mutate under a row lock. A validate
// error rolls back and is returned verbatim so services can branch on it.
// Validate receives a context carrying the open transaction, so collaborator
// stores reached through it read and write inside the same commit.
func (s *Postgres) Execute(
	ctx context.Context,
	bookingID id.BookingID,
	validate func(ctx context.Context, b *models.Booking) error,
	mutate func(*models.Booking),
) (*models.Booking, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	txCtx := txcontext.WithTx(ctx, sqlTx)
	b, err := s.findByID(txCtx, sqlTx, bookingID, true)
	if err != nil {
		return nil, err
	}
	if err := validate(txCtx, b); err != nil {
		return nil, err
	}
	mutate(b)
	b.Version++

	items, err := json.Marshal(b.LineItems)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}
	update := `
		UPDATE bookings
		SET state = $2, trip_start_date = $3, trip_end_date = $4, line_items = $5, version = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := sqlTx.ExecContext(ctx, update,
		uuid.UUID(b.ID),
		string(b.State),
		b.TripStartDate,
		nullTime(b.TripEndDate),
		items,
		b.Version,
		b.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking update: %w", err)
	}
	return b, nil
}

func (s *Postgres) findByID(ctx context.Context, q dbExecutor, bookingID id.BookingID, forUpdate bool) (*models.Booking, error) {
	query := `
		SELECT id, state, trip_start_date, trip_end_date, line_items, total, currency, coupon_ref, notes, version, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		b       models.Booking
		rawID   uuid.UUID
		state   string
		endDate sql.NullTime
		items   []byte
		total   string
		coupon  sql.NullInt64
	)
	err := q.QueryRowContext(ctx, query, uuid.UUID(bookingID)).Scan(
		&rawID,
		&state,
		&b.TripStartDate,
		&endDate,
		&items,
		&total,
		&b.Currency,
		&coupon,
		&b.Notes,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}

	b.ID = id.BookingID(rawID)
	b.State = models.BookingState(state)
	if endDate.Valid {
		b.TripEndDate = &endDate.Time
	}
	if coupon.Valid {
		b.CouponRef = &coupon.Int64
	}
	if err := json.Unmarshal(items, &b.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	b.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse booking total: %w", err)
	}
	return &b, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func nullInt(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
