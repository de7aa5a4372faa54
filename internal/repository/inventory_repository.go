package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/live-event-booking/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key clash.
const mysqlDuplicateEntry = 1062

// InventoryRepo reads and mutates the per-event seat map.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo constructs an InventoryRepo with the given DB handle.
func NewInventoryRepo(db *sql.DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

// GetSeatMap returns every section of the event with every seat and its
// current status.  The read runs in a single read-only transaction so the
// result is one consistent snapshot.
func (r *InventoryRepo) GetSeatMap(ctx context.Context, eventID uint64) ([]model.Section, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var id uint64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ?`, eventID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	sections, err := loadSections(ctx, tx, "event_sections", "event_id", eventID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*model.Section, len(sections))
	for i := range sections {
		s := &sections[i]
		s.Seats = make([]model.Seat, s.Capacity())
		for j := range s.Seats {
			s.Seats[j] = model.SeatAt(j, s.Columns)
		}
		byName[s.Name] = s
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT section_name, seat_index, status, booked_by FROM event_seats
		 WHERE event_id = ? AND status <> ?`, eventID, model.SeatAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name   string
			idx    int
			status model.SeatStatus
			by     sql.NullInt64
		)
		if err := rows.Scan(&name, &idx, &status, &by); err != nil {
			return nil, err
		}
		s, ok := byName[name]
		if !ok || idx < 0 || idx >= len(s.Seats) {
			continue
		}
		s.Seats[idx].Status = status
		if by.Valid {
			u := uint64(by.Int64)
			s.Seats[idx].BookedBy = &u
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// CommitBooking flips every seat of the batch from available to booked,
// inserts the tickets, records the booked seats and bumps analytics in one
// transaction.  Seats are claimed in (section, index) order so concurrent
// commits lock rows in the same sequence.  The first seat that is not
// available aborts the whole batch with a *SeatUnavailableError.
func (r *InventoryRepo) CommitBooking(ctx context.Context, b *BookingCommit) error {
	order := make([]int, len(b.Tickets))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, c := b.Tickets[order[i]], b.Tickets[order[j]]
		if a.SeatSetName != c.SeatSetName {
			return a.SeatSetName < c.SeatSetName
		}
		return a.SeatIndex < c.SeatIndex
	})

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var status model.EventStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM events WHERE id = ? LOCK IN SHARE MODE`, b.EventID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEventNotFound
			}
			return err
		}
		if !status.Sellable() {
			return ErrEventNotSellable
		}

		for _, i := range order {
			t := &b.Tickets[i]
			res, err := tx.ExecContext(ctx,
				`UPDATE event_seats SET status = ?, booked_by = ?
				 WHERE event_id = ? AND section_name = ? AND seat_index = ? AND status = ?`,
				model.SeatBooked, b.UserID, b.EventID, t.SeatSetName, t.SeatIndex, model.SeatAvailable)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return &SeatUnavailableError{SectionName: t.SeatSetName, SeatNumber: seatNumberOf(t)}
			}
		}

		for _, i := range order {
			t := &b.Tickets[i]
			res, err := tx.ExecContext(ctx,
				`INSERT INTO tickets (event_id, venue_id, user_id, section_name, seat_index, seat_number, price_cents,
				                      booking_status, payment_status, token_hash, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				b.EventID, b.VenueID, b.UserID, t.SeatSetName, t.SeatIndex, seatNumberOf(t), t.PriceCents,
				t.BookingStatus, t.PaymentStatus, t.TokenHash, t.CreatedAt, t.CreatedAt)
			if err != nil {
				var me *mysql.MySQLError
				if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
					return &SeatUnavailableError{SectionName: t.SeatSetName, SeatNumber: seatNumberOf(t)}
				}
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			t.ID = uint64(id)
			t.EventID, t.VenueID, t.UserID = b.EventID, b.VenueID, b.UserID
			t.UpdatedAt = t.CreatedAt
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO booked_seats (ticket_id, event_id, section_name, seat_number, user_id, booked_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				t.ID, b.EventID, t.SeatSetName, seatNumberOf(t), b.UserID, t.CreatedAt); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE event_analytics SET tickets_sold = tickets_sold + ?, revenue_cents = revenue_cents + ?
			 WHERE event_id = ?`,
			len(b.Tickets), b.TotalCents(), b.EventID)
		return err
	})
}

func seatNumberOf(t *model.Ticket) string {
	if t.SeatNumber != "" {
		return t.SeatNumber
	}
	return strconv.Itoa(t.SeatIndex + 1)
}
