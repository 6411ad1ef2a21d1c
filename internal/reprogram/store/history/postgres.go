package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/tx"
)

// Postgres persists the reprogramming audit log. The table is insert-only;
// no update or delete statements exist on purpose.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) execer {
	if txn, ok := tx.From(ctx); ok {
		return txn
	}
	return s.db
}

func (s *Postgres) Append(ctx context.Context, entry *models.HistoryEntry) error {
	query := `
		INSERT INTO reprogram_history
			(id, booking_id, previous_date, new_date, reason, actor_id, actor_role,
			 authorized, violated_rule, penalty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var violated uuid.NullUUID
	if entry.ViolatedRule != nil {
		violated = uuid.NullUUID{UUID: uuid.UUID(*entry.ViolatedRule), Valid: true}
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID.String(), entry.BookingID.String(),
		entry.PreviousDate, entry.NewDate, entry.Reason,
		entry.ActorID.String(), string(entry.ActorRole),
		entry.Authorized, violated, entry.Penalty, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("appending history entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListByBooking(ctx context.Context, bookingID id.BookingID) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, booking_id, previous_date, new_date, reason, actor_id, actor_role,
		       authorized, violated_rule, penalty, created_at
		FROM reprogram_history
		WHERE booking_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, bookingID.String())
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	out := make([]*models.HistoryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Postgres) CountAuthorized(ctx context.Context, bookingID id.BookingID) (int, error) {
	query := `SELECT COUNT(*) FROM reprogram_history WHERE booking_id = $1 AND authorized`

	var count int
	if err := s.execer(ctx).QueryRowContext(ctx, query, bookingID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting authorized reprograms: %w", err)
	}
	return count, nil
}

func scanEntry(rows *sql.Rows) (*models.HistoryEntry, error) {
	var (
		entry    models.HistoryEntry
		rawID    string
		rawBkg   string
		rawActor string
		rawRole  string
		reason   sql.NullString
		violated uuid.NullUUID
	)
	err := rows.Scan(&rawID, &rawBkg, &entry.PreviousDate, &entry.NewDate, &reason,
		&rawActor, &rawRole, &entry.Authorized, &violated, &entry.Penalty, &entry.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning history entry: %w", err)
	}

	if entry.ID, err = id.ParseEntryID(rawID); err != nil {
		return nil, fmt.Errorf("parsing stored entry id: %w", err)
	}
	if entry.BookingID, err = id.ParseBookingID(rawBkg); err != nil {
		return nil, fmt.Errorf("parsing stored booking id: %w", err)
	}
	if entry.ActorID, err = id.ParseActorID(rawActor); err != nil {
		return nil, fmt.Errorf("parsing stored actor id: %w", err)
	}
	entry.ActorRole = id.Role(rawRole)
	entry.Reason = reason.String
	if violated.Valid {
		ruleID := id.RuleID(violated.UUID)
		entry.ViolatedRule = &ruleID
	}
	return &entry, nil
}
