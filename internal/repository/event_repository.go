// Package repository contains data access logic for events. An event
// row carries the lifecycle status; pricing, negotiation history, the
// per-event seat map and analytics live in child tables keyed by event_id.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/live-event-booking/internal/model"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// seatInsertChunk bounds the number of rows per multi-row INSERT.
const seatInsertChunk = 1000

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// CreateEvent inserts an event after checking, under a lock on the venue
// row, that no blocking event at the same venue and date overlaps its
// interval.  The venue's current layout is copied into the event's seat
// map with every seat available.  On overlap an *OverlapError is returned.
func (r *EventRepo) CreateEvent(ctx context.Context, e *model.Event) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var venueID uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM venues WHERE id = ? FOR UPDATE`, e.VenueID).Scan(&venueID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrVenueNotFound
			}
			return err
		}

		blocking := model.BlockingStatuses()
		var existing uint64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM events
			 WHERE venue_id = ? AND event_date = ? AND status IN (?, ?, ?, ?)
			   AND starts_at < ? AND ends_at > ?
			 ORDER BY id LIMIT 1`,
			e.VenueID, e.Date, blocking[0], blocking[1], blocking[2], blocking[3], e.EndsAt, e.StartsAt,
		).Scan(&existing)
		switch {
		case err == nil:
			return &OverlapError{ExistingID: existing}
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (artist_id, venue_id, title, event_date, starts_at, ends_at, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ArtistID, e.VenueID, e.Title, e.Date, e.StartsAt, e.EndsAt, e.Status)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		e.ID = uint64(id)

		if err := replacePricingTx(ctx, tx, e.ID, e.SeatPricing); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_sections (event_id, name, seat_rows, seat_cols, priority)
			 SELECT ?, name, seat_rows, seat_cols, priority FROM venue_sections WHERE venue_id = ?`,
			e.ID, e.VenueID); err != nil {
			return err
		}
		sections, err := loadSections(ctx, tx, "event_sections", "event_id", e.ID)
		if err != nil {
			return err
		}
		if err := insertSeatsTx(ctx, tx, e.ID, sections); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO event_analytics (event_id) VALUES (?)`, e.ID); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM events WHERE id = ?`, e.ID).
			Scan(&e.CreatedAt, &e.UpdatedAt)
	})
}

// GetEvent loads an event with pricing, negotiation history, booked-seat
// summary and analytics.  It returns ErrEventNotFound if there is no
// matching row.
func (r *EventRepo) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	return loadEvent(ctx, r.db, id, false)
}

// UpdateEvent locks the event row, hands the current state to fn and
// persists whatever fn changed.  Negotiation entries beyond those already
// stored are appended; existing entries are never rewritten.  If fn
// returns an error nothing is written and the error is returned as is.
func (r *EventRepo) UpdateEvent(ctx context.Context, id uint64, fn func(e *model.Event) error) (*model.Event, error) {
	var out *model.Event
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		e, err := loadEvent(ctx, tx, id, true)
		if err != nil {
			return err
		}
		stored := len(e.NegotiationHistory)
		before := e.Clone()
		if err := fn(e); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE events SET title = ?, status = ?, approval_date = ?, approved_by = ?, rejection_reason = ?,
			        updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			e.Title, e.Status, e.ApprovalDate, e.ApprovedBy, e.RejectionReason, id); err != nil {
			return err
		}
		if !samePricing(before.SeatPricing, e.SeatPricing) {
			if _, err := tx.ExecContext(ctx, `DELETE FROM event_pricing WHERE event_id = ?`, id); err != nil {
				return err
			}
			if err := replacePricingTx(ctx, tx, id, e.SeatPricing); err != nil {
				return err
			}
		}
		for _, n := range e.NegotiationHistory[stored:] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO negotiation_entries (event_id, seq, proposed_by, actor_id, price_cents, commission_percent, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, n.Seq, n.ProposedBy, n.ActorID, n.PriceCents, n.CommissionPercent, n.CreatedAt); err != nil {
				return err
			}
		}
		e.UpdatedAt = time.Now().UTC()
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListEventsByStatus returns every event currently in the given status.
func (r *EventRepo) ListEventsByStatus(ctx context.Context, status model.EventStatus) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM events WHERE status = ? ORDER BY id`, status)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetEvent(ctx, id)
		if err != nil {
			if errors.Is(err, ErrEventNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func loadEvent(ctx context.Context, q dbtx, id uint64, forUpdate bool) (*model.Event, error) {
	query := `SELECT e.id, e.artist_id, e.venue_id, e.title, e.event_date, e.starts_at, e.ends_at, e.status,
	                 e.approval_date, e.approved_by, e.rejection_reason, e.created_at, e.updated_at,
	                 COALESCE(a.tickets_sold, 0), COALESCE(a.revenue_cents, 0)
	          FROM events e
	          LEFT JOIN event_analytics a ON a.event_id = e.id
	          WHERE e.id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		e        model.Event
		date     time.Time
		apprDate sql.NullTime
		apprBy   sql.NullInt64
		reason   sql.NullString
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.ArtistID, &e.VenueID, &e.Title, &date, &e.StartsAt, &e.EndsAt, &e.Status,
		&apprDate, &apprBy, &reason, &e.CreatedAt, &e.UpdatedAt,
		&e.Analytics.TicketsSold, &e.Analytics.RevenueCents,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	e.Date = model.DateOf(date)
	if apprDate.Valid {
		t := apprDate.Time
		e.ApprovalDate = &t
	}
	if apprBy.Valid {
		v := uint64(apprBy.Int64)
		e.ApprovedBy = &v
	}
	if reason.Valid {
		s := reason.String
		e.RejectionReason = &s
	}

	e.SeatPricing = map[string]uint32{}
	prows, err := q.QueryContext(ctx, `SELECT section_name, price_cents FROM event_pricing WHERE event_id = ?`, id)
	if err != nil {
		return nil, err
	}
	for prows.Next() {
		var name string
		var price uint32
		if err := prows.Scan(&name, &price); err != nil {
			prows.Close()
			return nil, err
		}
		e.SeatPricing[name] = price
	}
	if err := prows.Close(); err != nil {
		return nil, err
	}

	nrows, err := q.QueryContext(ctx,
		`SELECT seq, proposed_by, actor_id, price_cents, commission_percent, created_at
		 FROM negotiation_entries WHERE event_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	for nrows.Next() {
		var n model.NegotiationEntry
		if err := nrows.Scan(&n.Seq, &n.ProposedBy, &n.ActorID, &n.PriceCents, &n.CommissionPercent, &n.CreatedAt); err != nil {
			nrows.Close()
			return nil, err
		}
		e.NegotiationHistory = append(e.NegotiationHistory, n)
	}
	if err := nrows.Close(); err != nil {
		return nil, err
	}

	brows, err := q.QueryContext(ctx,
		`SELECT ticket_id, section_name, seat_number, user_id, booked_at
		 FROM booked_seats WHERE event_id = ? ORDER BY ticket_id`, id)
	if err != nil {
		return nil, err
	}
	for brows.Next() {
		var b model.BookedSeat
		if err := brows.Scan(&b.TicketID, &b.SectionName, &b.SeatNumber, &b.UserID, &b.BookedAt); err != nil {
			brows.Close()
			return nil, err
		}
		e.BookedSeats = append(e.BookedSeats, b)
	}
	if err := brows.Close(); err != nil {
		return nil, err
	}
	return &e, nil
}

func replacePricingTx(ctx context.Context, tx *sql.Tx, eventID uint64, pricing map[string]uint32) error {
	if len(pricing) == 0 {
		return nil
	}
	query := `INSERT INTO event_pricing (event_id, section_name, price_cents) VALUES `
	args := make([]interface{}, 0, len(pricing)*3)
	i := 0
	for name, price := range pricing {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, eventID, name, price)
		i++
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// insertSeatsTx creates one available event_seats row per seat of every
// section, in chunks.
func insertSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, sections []model.Section) error {
	query := ""
	args := make([]interface{}, 0, seatInsertChunk*3)
	flush := func() error {
		if len(args) == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO event_seats (event_id, section_name, seat_index) VALUES `+query, args...)
		query = ""
		args = args[:0]
		return err
	}
	for _, s := range sections {
		for i := 0; i < s.Capacity(); i++ {
			if len(args) > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, eventID, s.Name, i)
			if len(args) >= seatInsertChunk*3 {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

func samePricing(a, b map[string]uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
