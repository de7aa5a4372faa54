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

var eventCols = []string{
	"id", "artist_id", "venue_id", "title", "event_date", "starts_at", "ends_at", "status",
	"approval_date", "approved_by", "rejection_reason", "created_at", "updated_at",
	"tickets_sold", "revenue_cents",
}

func sampleEvent() *model.Event {
	start := time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)
	return &model.Event{
		ArtistID:    3,
		VenueID:     2,
		Title:       "Night Show",
		Date:        model.DateOf(start),
		StartsAt:    start,
		EndsAt:      start.Add(3 * time.Hour),
		Status:      model.StatusPendingApproval,
		SeatPricing: map[string]uint32{"VIP": 5000},
	}
}

func TestCreateEventRejectsOverlap(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewEventRepo(db)
	e := sampleEvent()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM venues WHERE id = ? FOR UPDATE")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM events")).
		WithArgs(2, "2026-06-01", "pending_approval", "approved_by_admin", "negotiation_pending", "approved", e.EndsAt, e.StartsAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectRollback()

	err = repo.CreateEvent(context.Background(), e)
	var oe *OverlapError
	if !errors.As(err, &oe) || oe.ExistingID != 11 {
		t.Fatalf("expected OverlapError with id 11, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateEventSnapshotsLayout(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewEventRepo(db)
	e := sampleEvent()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM venues")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM events")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs(3, 2, "Night Show", "2026-06-01", e.StartsAt, e.EndsAt, "pending_approval").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_pricing")).
		WithArgs(5, "VIP", 5000).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_sections")).
		WithArgs(5, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM event_sections")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"name", "seat_rows", "seat_cols", "priority"}).AddRow("VIP", 1, 2, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_seats (event_id, section_name, seat_index) VALUES (?, ?, ?),(?, ?, ?)")).
		WithArgs(5, "VIP", 0, 5, "VIP", 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_analytics")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at, updated_at FROM events")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	if err := repo.CreateEvent(context.Background(), e); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if e.ID != 5 {
		t.Fatalf("expected id 5, got %d", e.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func expectLoadEvent(mock sqlmock.Sqlmock, status string, history int) {
	start := time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events e")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(
			1, 3, 2, "Night Show", start, start, start.Add(3*time.Hour), status,
			nil, nil, nil, start, start, 0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM event_pricing")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"section_name", "price_cents"}).AddRow("VIP", 5000))
	nrows := sqlmock.NewRows([]string{"seq", "proposed_by", "actor_id", "price_cents", "commission_percent", "created_at"})
	for i := 1; i <= history; i++ {
		nrows.AddRow(i, "venueManager", 4, 1000, 10.0, start)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM negotiation_entries")).WithArgs(1).WillReturnRows(nrows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM booked_seats")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"ticket_id", "section_name", "seat_number", "user_id", "booked_at"}))
}

func TestUpdateEventAppendsOnlyNewOffers(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewEventRepo(db)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectLoadEvent(mock, "negotiation_pending", 1)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET title = ?, status = ?")).
		WithArgs("Night Show", "negotiation_pending", nil, nil, nil, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO negotiation_entries")).
		WithArgs(1, 2, "artist", 3, 1200, 12.5, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := repo.UpdateEvent(context.Background(), 1, func(e *model.Event) error {
		e.AppendOffer(model.ProposerArtist, 3, 1200, 12.5, at)
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if len(e.NegotiationHistory) != 2 || e.NegotiationHistory[1].Seq != 2 {
		t.Fatalf("unexpected history: %+v", e.NegotiationHistory)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateEventCallbackErrorWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewEventRepo(db)
	boom := errors.New("invalid transition")

	mock.ExpectBegin()
	expectLoadEvent(mock, "approved", 0)
	mock.ExpectRollback()

	_, err = repo.UpdateEvent(context.Background(), 1, func(e *model.Event) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetEventNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM events e")).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(eventCols))

	if _, err := NewEventRepo(db).GetEvent(context.Background(), 9); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}
