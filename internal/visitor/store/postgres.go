package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rumbo/internal/visitor/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
	txcontext "rumbo/pkg/platform/tx"
)

// Postgres persists visitors in PostgreSQL. Honors a transaction in context
// so booking creation can enlist visitor writes in its boundary when desired.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

func (s *Postgres) Create(ctx context.Context, visitor *models.Visitor) error {
	query := `
		INSERT INTO visitors (id, name, last_name, document_id, birth_date, nationality, phone, email, is_titular, booking_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var bookingID any
	if visitor.BookingID != nil {
		bookingID = uuid.UUID(*visitor.BookingID)
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(visitor.ID),
		visitor.Name,
		visitor.LastName,
		visitor.DocumentID,
		visitor.BirthDate,
		visitor.Nationality,
		visitor.Phone,
		visitor.Email,
		visitor.IsTitular,
		bookingID,
		visitor.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert visitor: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, visitorID id.VisitorID) (*models.Visitor, error) {
	query := `
		SELECT id, name, last_name, document_id, birth_date, nationality, phone, email, is_titular, booking_id, created_at
		FROM visitors
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(visitorID))
	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find visitor: %w", err)
	}
	return visitor, nil
}

// Link attaches a visitor to a booking. The WHERE clause makes the update
// conditional on the visitor being unattached, so a concurrent double-link
// loses without locking.
func (s *Postgres) Link(ctx context.Context, visitorID id.VisitorID, bookingID id.BookingID) error {
	query := `
		UPDATE visitors SET booking_id = $2
		WHERE id = $1 AND booking_id IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(visitorID), uuid.UUID(bookingID))
	if err != nil {
		return fmt.Errorf("link visitor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link visitor rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing visitor from an already-linked one.
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM visitors WHERE id = $1)`
		if err := s.execer(ctx).QueryRowContext(ctx, check, uuid.UUID(visitorID)).Scan(&exists); err != nil {
			return fmt.Errorf("check visitor existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) ListByBooking(ctx context.Context, bookingID id.BookingID) ([]*models.Visitor, error) {
	query := `
		SELECT id, name, last_name, document_id, birth_date, nationality, phone, email, is_titular, booking_id, created_at
		FROM visitors
		WHERE booking_id = $1
		ORDER BY is_titular DESC, created_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	var roster []*models.Visitor
	for rows.Next() {
		visitor, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		roster = append(roster, visitor)
	}
	return roster, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisitor(row rowScanner) (*models.Visitor, error) {
	var (
		visitor   models.Visitor
		visitorID uuid.UUID
		bookingID uuid.NullUUID
	)
	err := row.Scan(
		&visitorID,
		&visitor.Name,
		&visitor.LastName,
		&visitor.DocumentID,
		&visitor.BirthDate,
		&visitor.Nationality,
		&visitor.Phone,
		&visitor.Email,
		&visitor.IsTitular,
		&bookingID,
		&visitor.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	visitor.ID = id.VisitorID(visitorID)
	if bookingID.Valid {
		linked := id.BookingID(bookingID.UUID)
		visitor.BookingID = &linked
	}
	return &visitor, nil
}
