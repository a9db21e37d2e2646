package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/bus-pos/internal/model"
)

// TicketRepo provides data access to the tickets table.  The table carries
// a generated active_seat_key column ("trip_id:seat_id" while the status
// is paid or boarded, NULL otherwise) with a UNIQUE index, so two
// concurrent sales of the same seat cannot both commit.
type TicketRepo struct {
	db DBTX
}

// NewTicketRepo returns a new TicketRepo bound to the given database or transaction.
func NewTicketRepo(db DBTX) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, trip_id, seat_id, passenger_name, passenger_document, passenger_phone,
       passenger_email, destination_stop_id, boarding_stop_id, price, itbms, total, status,
       qr_code, sold_by_user_id, terminal_id, created_at, updated_at`

func scanTicket(row rowScanner) (*model.Ticket, error) {
	var (
		t        model.Ticket
		status   string
		phone    sql.NullString
		email    sql.NullString
		boarding sql.NullString
		terminal sql.NullString
	)
	if err := row.Scan(
		&t.ID, &t.TripID, &t.SeatID, &t.PassengerName, &t.PassengerDocument, &phone,
		&email, &t.DestinationStopID, &boarding, &t.Price, &t.ITBMS, &t.Total, &status,
		&t.QRCode, &t.SoldByUserID, &terminal, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Status = model.TicketStatus(status)
	t.PassengerPhone = ptrString(phone)
	t.PassengerEmail = ptrString(email)
	t.BoardingStopID = ptrString(boarding)
	t.TerminalID = ptrString(terminal)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// Create inserts a ticket.  It returns ErrDuplicate when an active ticket
// already exists for the same trip seat.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets
               (id, trip_id, seat_id, passenger_name, passenger_document, passenger_phone,
                passenger_email, destination_stop_id, boarding_stop_id, price, itbms, total, status,
                qr_code, sold_by_user_id, terminal_id, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.TripID, t.SeatID, t.PassengerName, t.PassengerDocument, nullable(t.PassengerPhone),
		nullable(t.PassengerEmail), t.DestinationStopID, nullable(t.BoardingStopID), t.Price, t.ITBMS, t.Total, string(t.Status),
		t.QRCode, t.SoldByUserID, nullable(t.TerminalID), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID returns the ticket with the given ID or ErrNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// FindActiveBySeat returns the paid or boarded ticket of a trip seat, or
// nil when the seat is not sold.
func (r *TicketRepo) FindActiveBySeat(ctx context.Context, tripID, seatID string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets
               WHERE trip_id = ? AND seat_id = ? AND status IN ('paid', 'boarded')
               LIMIT 1`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, tripID, seatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// UpdateStatus moves a ticket from one status to another.  The update only
// applies when the stored status still equals from; otherwise ErrConflict
// (or ErrNotFound for an unknown ticket) is returned.
func (r *TicketRepo) UpdateStatus(ctx context.Context, id string, from, to model.TicketStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), at, id, string(from),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}
