package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/live-event-booking/internal/clock"
	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/repository/memory"
)

var (
	admin   = model.Caller{ID: 1, Role: model.RoleAdmin}
	manager = model.Caller{ID: 2, Role: model.RoleVenueManager}
	artist  = model.Caller{ID: 3, Role: model.RoleArtist}
	alice   = model.Caller{ID: 10, Role: model.RoleUser}
	bob     = model.Caller{ID: 11, Role: model.RoleUser}
)

var showStart = time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)

type published struct {
	queue   string
	payload interface{}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, payload interface{}) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{queue, payload})
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) count(queue string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.msgs {
		if m.queue == queue {
			n++
		}
	}
	return n
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls map[uint64]int
}

func (c *countingInvalidator) InvalidateEvent(_ context.Context, id uint64) error {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = map[uint64]int{}
	}
	c.calls[id]++
	c.mu.Unlock()
	return nil
}

type fixture struct {
	clock     *clock.Manual
	store     *memory.Store
	pub       *recordingPublisher
	cache     *countingInvalidator
	layout    *LayoutService
	lifecycle *LifecycleService
	booking   *BookingService
	ledger    *LedgerService
	venue     *model.Venue
}

func newFixture(t *testing.T, extra ...Option) *fixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	f := &fixture{
		clock: clk,
		store: memory.New(memory.WithClock(clk)),
		pub:   &recordingPublisher{},
		cache: &countingInvalidator{},
	}
	opts := append([]Option{
		WithPublisher(f.pub),
		WithCacheInvalidator(f.cache),
		WithTokenCost(bcrypt.MinCost),
	}, extra...)
	f.layout = NewLayoutService(f.store, clk, opts...)
	f.lifecycle = NewLifecycleService(f.store, clk, opts...)
	f.booking = NewBookingService(f.store, clk, opts...)
	f.ledger = NewLedgerService(f.store, clk, opts...)

	v, err := f.layout.CreateVenue(context.Background(), manager, "Arena", []SectionSpec{
		{Name: "VIP", Rows: 2, Columns: 10, Priority: 0},
		{Name: "Balcony", Rows: 5, Columns: 10, Priority: 1},
		{Name: "Standing", Rows: 1, Columns: 100, Priority: 2},
	})
	if err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}
	f.venue = v
	return f
}

// pendingEvent creates an event starting at start that lasts two hours.
func (f *fixture) pendingEvent(t *testing.T, start time.Time) *model.Event {
	t.Helper()
	e, err := f.lifecycle.CreateEvent(context.Background(), artist, CreateEventInput{
		VenueID:     f.venue.ID,
		Title:       "Night Show",
		StartsAt:    start,
		EndsAt:      start.Add(2 * time.Hour),
		SeatPricing: map[string]uint32{"VIP": 5000, "Balcony": 2000},
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return e
}

// approvedEvent creates an event and walks it to approved.
func (f *fixture) approvedEvent(t *testing.T) *model.Event {
	t.Helper()
	ctx := context.Background()
	e := f.pendingEvent(t, showStart)
	if _, err := f.lifecycle.ApproveByAdmin(ctx, admin, e.ID); err != nil {
		t.Fatalf("ApproveByAdmin: %v", err)
	}
	e, err := f.lifecycle.ApproveByVenueManager(ctx, manager, e.ID)
	if err != nil {
		t.Fatalf("ApproveByVenueManager: %v", err)
	}
	return e
}

func (f *fixture) seatStatus(t *testing.T, eventID uint64, section string, number int) model.SeatStatus {
	t.Helper()
	sections, err := f.store.GetSeatMap(context.Background(), eventID)
	if err != nil {
		t.Fatalf("GetSeatMap: %v", err)
	}
	sec, ok := model.FindSection(sections, section)
	if !ok {
		t.Fatalf("section %q missing", section)
	}
	return sec.Seats[number-1].Status
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
