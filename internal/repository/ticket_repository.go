package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/live-event-booking/internal/model"
)

// TicketRepo handles CRUD operations for issued tickets.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo with the given DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

const ticketColumns = `id, event_id, venue_id, user_id, section_name, seat_index, seat_number, price_cents,
	booking_status, payment_status, token_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(s rowScanner) (*model.Ticket, error) {
	var t model.Ticket
	err := s.Scan(&t.ID, &t.EventID, &t.VenueID, &t.UserID, &t.SeatSetName, &t.SeatIndex, &t.SeatNumber,
		&t.PriceCents, &t.BookingStatus, &t.PaymentStatus, &t.TokenHash, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTicket retrieves a ticket by ID.  It returns ErrTicketNotFound if
// there is no matching row.
func (r *TicketRepo) GetTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListTicketsByEvent returns all tickets of an event ordered by ID.
func (r *TicketRepo) ListTicketsByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? ORDER BY id`, eventID)
}

// ListTicketsByUser returns all tickets booked by a user, newest first.
func (r *TicketRepo) ListTicketsByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? ORDER BY id DESC`, userID)
}

// ActiveTicketForSeat returns the confirmed or checked-in ticket holding a
// seat, or ErrTicketNotFound when the seat is free.
func (r *TicketRepo) ActiveTicketForSeat(ctx context.Context, eventID uint64, section string, seatIndex int) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE event_id = ? AND section_name = ? AND seat_index = ? AND booking_status IN (?, ?)`,
		eventID, section, seatIndex, model.BookingConfirmed, model.BookingCheckedIn))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

// UpdateTicket locks the ticket, hands it to fn and writes back the
// booking and payment status.  When fn moves the ticket from an active
// status to cancelled the seat is released in the same transaction: it
// flips back to available, its booked-seat entry is removed and the
// event's analytics are decremented.
func (r *TicketRepo) UpdateTicket(ctx context.Context, id uint64, fn func(t *model.Ticket) error) (*model.Ticket, error) {
	var out *model.Ticket
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		t, err := scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ? FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTicketNotFound
			}
			return err
		}
		wasActive := t.BookingStatus.Active()
		if err := fn(t); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tickets SET booking_status = ?, payment_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			t.BookingStatus, t.PaymentStatus, id); err != nil {
			return err
		}
		if wasActive && t.BookingStatus == model.BookingCancelled {
			if err := releaseSeatTx(ctx, tx, t); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func releaseSeatTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE event_seats SET status = ?, booked_by = NULL
		 WHERE event_id = ? AND section_name = ? AND seat_index = ? AND booked_by = ?`,
		model.SeatAvailable, t.EventID, t.SeatSetName, t.SeatIndex, t.UserID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM booked_seats WHERE ticket_id = ?`, t.ID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE event_analytics SET tickets_sold = tickets_sold - 1, revenue_cents = revenue_cents - ?
		 WHERE event_id = ?`,
		t.PriceCents, t.EventID)
	return err
}

func (r *TicketRepo) list(ctx context.Context, query string, arg uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
