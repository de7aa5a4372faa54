package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/live-event-booking/internal/model"
)

func newMock(t *testing.T) (*InventoryRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewInventoryRepo(db), mock, func() { db.Close() }
}

func bookingBatch() *BookingCommit {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(section string, idx int, price uint32) model.Ticket {
		return model.Ticket{
			SeatSetName:   section,
			SeatIndex:     idx,
			PriceCents:    price,
			BookingStatus: model.BookingConfirmed,
			PaymentStatus: model.PaymentPending,
			TokenHash:     "hash",
			CreatedAt:     now,
		}
	}
	// deliberately out of order: the commit must claim B#0, then VIP#1, then VIP#4
	return &BookingCommit{
		EventID: 1,
		VenueID: 2,
		UserID:  7,
		Tickets: []model.Ticket{mk("VIP", 4, 5000), mk("B", 0, 1500), mk("VIP", 1, 5000)},
	}
}

func TestCommitBookingSuccess(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM events WHERE id = ? LOCK IN SHARE MODE")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	for _, seat := range []struct {
		section string
		idx     int
	}{{"B", 0}, {"VIP", 1}, {"VIP", 4}} {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE event_seats SET status = ?, booked_by = ?")).
			WithArgs("booked", 7, 1, seat.section, seat.idx, "available").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for i, seat := range []struct {
		section string
		number  string
	}{{"B", "1"}, {"VIP", "2"}, {"VIP", "5"}} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
			WillReturnResult(sqlmock.NewResult(int64(100+i), 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booked_seats")).
			WithArgs(100+i, 1, seat.section, seat.number, 7, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_analytics SET tickets_sold = tickets_sold + ?")).
		WithArgs(3, 11500, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b := bookingBatch()
	if err := repo.CommitBooking(context.Background(), b); err != nil {
		t.Fatalf("CommitBooking: %v", err)
	}
	if b.Tickets[1].ID != 100 || b.Tickets[2].ID != 101 || b.Tickets[0].ID != 102 {
		t.Fatalf("ticket ids not assigned in claim order: %+v", b.Tickets)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitBookingSeatTakenRollsBack(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM events")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_seats")).
		WithArgs("booked", 7, 1, "B", 0, "available").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_seats")).
		WithArgs("booked", 7, 1, "VIP", 1, "available").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CommitBooking(context.Background(), bookingBatch())
	var sue *SeatUnavailableError
	if !errors.As(err, &sue) {
		t.Fatalf("expected SeatUnavailableError, got %v", err)
	}
	if sue.SectionName != "VIP" || sue.SeatNumber != "2" {
		t.Fatalf("wrong seat named: %+v", sue)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("SeatUnavailableError should match ErrConflict")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitBookingEventNotApproved(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM events")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancelled"))
	mock.ExpectRollback()

	if err := repo.CommitBooking(context.Background(), bookingBatch()); !errors.Is(err, ErrEventNotSellable) {
		t.Fatalf("expected ErrEventNotSellable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSeatMapOverlaysBookedSeats(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM events WHERE id = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, seat_rows, seat_cols, priority FROM event_sections")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name", "seat_rows", "seat_cols", "priority"}).
			AddRow("VIP", 2, 3, 0).
			AddRow("B", 1, 2, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT section_name, seat_index, status, booked_by FROM event_seats")).
		WithArgs(1, "available").
		WillReturnRows(sqlmock.NewRows([]string{"section_name", "seat_index", "status", "booked_by"}).
			AddRow("VIP", 4, "booked", 9))
	mock.ExpectRollback()

	sections, err := repo.GetSeatMap(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetSeatMap: %v", err)
	}
	if len(sections) != 2 || len(sections[0].Seats) != 6 || len(sections[1].Seats) != 2 {
		t.Fatalf("unexpected geometry: %+v", sections)
	}
	seat := sections[0].Seats[4]
	if seat.Status != model.SeatBooked || seat.BookedBy == nil || *seat.BookedBy != 9 {
		t.Fatalf("seat 5 should be booked by 9: %+v", seat)
	}
	if seat.Row != 2 || seat.Column != 2 {
		t.Fatalf("seat 5 position: row %d col %d", seat.Row, seat.Column)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSeatMapUnknownEvent(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM events")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	if _, err := repo.GetSeatMap(context.Background(), 42); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}
