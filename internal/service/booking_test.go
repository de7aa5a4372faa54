package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/queue"
)

func TestBookSeatsHappyPath(t *testing.T) {
	f := newFixture(t)
	e := f.approvedEvent(t)
	ctx := context.Background()

	res, err := f.booking.BookSeats(ctx, alice.ID, e.ID, []SeatRequest{
		{SectionName: "VIP", SeatNumber: "3"},
		{SectionName: "Balcony", SeatNumber: "12"},
	})
	if err != nil {
		t.Fatalf("BookSeats: %v", err)
	}
	if res.TotalPriceCents != 7000 || res.EventTitle != "Night Show" || len(res.Tickets) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, tk := range res.Tickets {
		if tk.ID == 0 || tk.ValidationToken == "" || tk.BookingStatus != model.BookingConfirmed || tk.PaymentStatus != model.PaymentPending {
			t.Fatalf("ticket not issued properly: %+v", tk)
		}
	}
	if f.seatStatus(t, e.ID, "VIP", 3) != model.SeatBooked || f.seatStatus(t, e.ID, "Balcony", 12) != model.SeatBooked {
		t.Fatalf("seats were not flipped")
	}

	got, err := f.lifecycle.GetEvent(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Analytics.TicketsSold != 2 || got.Analytics.RevenueCents != 7000 || len(got.BookedSeats) != 2 {
		t.Fatalf("analytics not updated: %+v %+v", got.Analytics, got.BookedSeats)
	}
	if f.pub.count(queue.BookingConfirmedQueue) != 1 {
		t.Fatalf("expected one booking.confirmed message")
	}
	if f.cache.calls[e.ID] == 0 {
		t.Fatalf("cache was not invalidated")
	}
}

func TestBookSeatsNoDoubleBooking(t *testing.T) {
	f := newFixture(t)
	e := f.approvedEvent(t)

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			// every caller overlaps on VIP seat 5
			_, err := f.booking.BookSeats(context.Background(), uint64(100+n), e.ID, []SeatRequest{
				{SectionName: "VIP", SeatNumber: "5"},
				{SectionName: "Balcony", SeatNumber: strconv.Itoa(n + 1)},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case KindOf(err) == KindConflict:
				seat, ok := SeatOf(err)
				if !ok || seat.SectionName != "VIP" || seat.SeatNumber != "5" {
					t.Errorf("conflict should name VIP seat 5, got %+v (%v)", seat, err)
				}
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != callers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", callers-1, successes, conflicts)
	}
	tickets, err := f.store.ListTicketsByEvent(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("ListTicketsByEvent: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("losers must leave no tickets behind, got %d", len(tickets))
	}
	got, _ := f.lifecycle.GetEvent(context.Background(), e.ID)
	if got.Analytics.TicketsSold != 2 {
		t.Fatalf("analytics counted losers: %+v", got.Analytics)
	}
}

func TestBookSeatsDisjointConcurrentAllSucceed(t *testing.T) {
	f := newFixture(t)
	e := f.approvedEvent(t)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			section := "Balcony"
			if n%2 == 0 {
				section = "Standing"
			}
			_, err := f.booking.BookSeats(context.Background(), uint64(n), e.ID, []SeatRequest{
				{SectionName: section, SeatNumber: strconv.Itoa(n)},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && KindOf(err) != KindConfiguration {
			t.Fatalf("disjoint booking failed: %v", err)
		}
	}
	// Standing has no price, so only the Balcony half went through.
	got, _ := f.lifecycle.GetEvent(context.Background(), e.ID)
	if got.Analytics.TicketsSold != 20 || got.Analytics.RevenueCents != 20*2000 {
		t.Fatalf("unexpected analytics: %+v", got.Analytics)
	}
}

func TestBookSeatsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	e := f.approvedEvent(t)
	ctx := context.Background()

	if _, err := f.booking.BookSeats(ctx, bob.ID, e.ID, []SeatRequest{{SectionName: "VIP", SeatNumber: "2"}}); err != nil {
		t.Fatalf("setup booking: %v", err)
	}

	_, err := f.booking.BookSeats(ctx, alice.ID, e.ID, []SeatRequest{
		{SectionName: "VIP", SeatNumber: "1"},
		{SectionName: "VIP", SeatNumber: "2"},
	})
	wantKind(t, err, KindConflict)
	if !strings.Contains(err.Error(), "seat 2") {
		t.Fatalf("conflict should name seat 2: %v", err)
	}
	if f.seatStatus(t, e.ID, "VIP", 1) != model.SeatAvailable {
		t.Fatalf("seat 1 must stay available")
	}
	mine, _ := f.ledger.ListMyTickets(ctx, alice)
	if len(mine) != 0 {
		t.Fatalf("no ticket may be issued for a failed batch, got %d", len(mine))
	}
	got, _ := f.lifecycle.GetEvent(ctx, e.ID)
	if got.Analytics.TicketsSold != 1 {
		t.Fatalf("analytics changed by failed batch: %+v", got.Analytics)
	}
}

func TestBookSeatsStateGated(t *testing.T) {
	ctx := context.Background()
	seats := []SeatRequest{{SectionName: "VIP", SeatNumber: "1"}}

	steps := []struct {
		name  string
		setup func(f *fixture, id uint64)
	}{
		{"pending_approval", func(*fixture, uint64) {}},
		{"approved_by_admin", func(f *fixture, id uint64) { f.lifecycle.ApproveByAdmin(ctx, admin, id) }},
		{"negotiation_pending", func(f *fixture, id uint64) {
			f.lifecycle.ApproveByAdmin(ctx, admin, id)
			f.lifecycle.ProposeNegotiation(ctx, manager, id, 100, 10)
		}},
		{"rejected", func(f *fixture, id uint64) { f.lifecycle.RejectEvent(ctx, admin, id, "no") }},
		{"cancelled", func(f *fixture, id uint64) { f.lifecycle.CancelEvent(ctx, artist, id, "") }},
	}
	for _, tt := range steps {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := f.pendingEvent(t, showStart)
			tt.setup(f, e.ID)
			got, _ := f.lifecycle.GetEvent(ctx, e.ID)
			if string(got.Status) != tt.name {
				t.Fatalf("setup reached %s", got.Status)
			}
			_, err := f.booking.BookSeats(ctx, alice.ID, e.ID, seats)
			wantKind(t, err, KindPreconditionFailed)
			if f.seatStatus(t, e.ID, "VIP", 1) != model.SeatAvailable {
				t.Fatalf("seat flipped on a non-sellable event")
			}
		})
	}
}

func TestBookSeatsValidation(t *testing.T) {
	f := newFixture(t)
	e := f.approvedEvent(t)
	ctx := context.Background()

	tests := []struct {
		name string
		reqs []SeatRequest
		kind Kind
	}{
		{"empty", nil, KindValidation},
		{"unknown section", []SeatRequest{{"Pit", "1"}}, KindValidation},
		{"not a number", []SeatRequest{{"VIP", "A1"}}, KindValidation},
		{"zero", []SeatRequest{{"VIP", "0"}}, KindValidation},
		{"out of range", []SeatRequest{{"VIP", "21"}}, KindValidation},
		{"duplicate", []SeatRequest{{"VIP", "4"}, {"VIP", "04"}}, KindValidation},
		{"unpriced section", []SeatRequest{{"Standing", "1"}}, KindConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.booking.BookSeats(ctx, alice.ID, e.ID, tt.reqs)
			wantKind(t, err, tt.kind)
		})
	}

	_, err := f.booking.BookSeats(ctx, alice.ID, 999, []SeatRequest{{"VIP", "1"}})
	wantKind(t, err, KindNotFound)

	got, _ := f.lifecycle.GetEvent(ctx, e.ID)
	if got.Analytics.TicketsSold != 0 {
		t.Fatalf("failed requests changed analytics")
	}
}

func TestSeatIndexDeterminism(t *testing.T) {
	sec := model.NewSection("Main", 3, 10, 0)
	tests := []struct {
		number   string
		row, col uint32
		index    int
	}{
		{"23", 3, 3, 22},
		{"10", 1, 10, 9},
		{"1", 1, 1, 0},
		{"11", 2, 1, 10},
		{"30", 3, 10, 29},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			pos, err := sec.Locate(tt.number)
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if pos.Row != tt.row || pos.Column != tt.col || pos.Index != tt.index {
				t.Fatalf("got %+v", pos)
			}
			seat := sec.Seats[pos.Index]
			if seat.Row != tt.row || seat.Column != tt.col || seat.SeatNumber != tt.number {
				t.Fatalf("stored seat disagrees: %+v", seat)
			}
		})
	}

	_, err := resolveSeats([]model.Section{sec}, map[string]uint32{"Main": 1}, []SeatRequest{{"Main", "31"}})
	wantKind(t, err, KindValidation)
}

func TestAvailabilityAndLayout(t *testing.T) {
	f := newFixture(t)
	e := f.approvedEvent(t)
	ctx := context.Background()

	if _, err := f.booking.BookSeats(ctx, alice.ID, e.ID, []SeatRequest{{"VIP", "1"}, {"VIP", "20"}}); err != nil {
		t.Fatalf("BookSeats: %v", err)
	}

	av, err := f.booking.GetAvailableSeats(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetAvailableSeats: %v", err)
	}
	if len(av.Sections) != 3 || av.Sections[0].Name != "VIP" {
		t.Fatalf("sections out of priority order: %+v", av.Sections)
	}
	vip := av.Sections[0]
	if vip.AvailableCount != 18 || vip.PriceCents == nil || *vip.PriceCents != 5000 {
		t.Fatalf("unexpected VIP availability: count=%d price=%v", vip.AvailableCount, vip.PriceCents)
	}
	for _, s := range vip.Seats {
		if s.SeatNumber == "1" || s.SeatNumber == "20" {
			t.Fatalf("booked seat %s listed as available", s.SeatNumber)
		}
	}
	if av.Sections[2].PriceCents != nil {
		t.Fatalf("unpriced section should have no price")
	}

	layout, err := f.booking.GetVenueSeatLayout(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetVenueSeatLayout: %v", err)
	}
	if layout.Capacity != 20+50+100 || len(layout.Sections[0].Seats) != 20 || layout.Sections[0].AvailableCount != 18 {
		t.Fatalf("unexpected layout: capacity=%d", layout.Capacity)
	}
	if s := layout.Sections[0].Seats[19]; s.Status != model.SeatBooked || s.BookedBy == nil || *s.BookedBy != alice.ID {
		t.Fatalf("seat 20 should be booked by alice: %+v", s)
	}

	_, err = f.booking.GetAvailableSeats(ctx, 404)
	wantKind(t, err, KindNotFound)
}

func TestLayoutEditDoesNotTouchExistingEvents(t *testing.T) {
	f := newFixture(t)
	e := f.approvedEvent(t)
	ctx := context.Background()

	if _, err := f.layout.EditLayout(ctx, manager, f.venue.ID, []SectionSpec{{Name: "Floor", Rows: 1, Columns: 5}}); err != nil {
		t.Fatalf("EditLayout: %v", err)
	}
	if _, err := f.booking.BookSeats(ctx, alice.ID, e.ID, []SeatRequest{{"VIP", "1"}}); err != nil {
		t.Fatalf("existing event should keep its seat map: %v", err)
	}
	_, err := f.booking.BookSeats(ctx, alice.ID, e.ID, []SeatRequest{{"Floor", "1"}})
	wantKind(t, err, KindValidation)

	_, err = f.layout.EditLayout(ctx, model.Caller{ID: 77, Role: model.RoleVenueManager}, f.venue.ID, []SectionSpec{{Name: "X", Rows: 1, Columns: 1}})
	wantKind(t, err, KindForbidden)
}

func TestCreateVenueValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		caller model.Caller
		specs  []SectionSpec
		kind   Kind
	}{
		{"artist", artist, []SectionSpec{{Name: "A", Rows: 1, Columns: 1}}, KindForbidden},
		{"no sections", manager, nil, KindValidation},
		{"duplicate", manager, []SectionSpec{{Name: "A", Rows: 1, Columns: 1}, {Name: "A", Rows: 2, Columns: 2}}, KindValidation},
		{"zero rows", manager, []SectionSpec{{Name: "A", Rows: 0, Columns: 1}}, KindValidation},
		{"too wide", manager, []SectionSpec{{Name: "A", Rows: 1, Columns: 1001}}, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.layout.CreateVenue(context.Background(), tt.caller, fmt.Sprintf("Hall %s", tt.name), tt.specs)
			wantKind(t, err, tt.kind)
		})
	}
}
