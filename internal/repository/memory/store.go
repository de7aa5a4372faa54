// Package memory is an in-process implementation of the venue, event,
// inventory and ticket stores.  It backs the server when STORAGE=memory
// and the service tests.
//
// Locking follows one order everywhere so that no two operations can
// wait on each other in a cycle:
//
//	venue.mu -> event.mu -> section.mu (by name) -> ticketsMu -> event.statsMu
//
// s.mu only guards the top-level maps and is never held while waiting
// for any other lock.  Bookings take event.mu for reading so that
// bookings on different sections of the same event run in parallel;
// lifecycle transitions take it for writing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/live-event-booking/internal/clock"
	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/repository"
)

type venueEntry struct {
	mu    sync.Mutex
	venue model.Venue
}

type sectionEntry struct {
	mu      sync.Mutex
	section model.Section
}

type eventEntry struct {
	mu       sync.RWMutex
	event    model.Event
	sections map[string]*sectionEntry
	order    []string // priority order for reads
	names    []string // lexical order for locking

	statsMu     sync.Mutex
	bookedSeats []model.BookedSeat
	analytics   model.Analytics
}

type seatKey struct {
	eventID uint64
	section string
	index   int
}

// Store holds all state in maps.  The zero value is not usable; call New.
type Store struct {
	clock clock.Clock

	mu          sync.RWMutex
	venueSeq    uint64
	eventSeq    uint64
	venues      map[uint64]*venueEntry
	events      map[uint64]*eventEntry
	venueEvents map[uint64][]uint64

	ticketsMu  sync.Mutex
	ticketSeq  uint64
	tickets    map[uint64]*model.Ticket
	activeSeat map[seatKey]uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created/updated timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:       clock.NewSystem(),
		venues:      map[uint64]*venueEntry{},
		events:      map[uint64]*eventEntry{},
		venueEvents: map[uint64][]uint64{},
		tickets:     map[uint64]*model.Ticket{},
		activeSeat:  map[seatKey]uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) venue(id uint64) (*venueEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	return v, ok
}

func (s *Store) event(id uint64) (*eventEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	return e, ok
}

func copySections(in []model.Section) []model.Section {
	out := make([]model.Section, len(in))
	for i, sec := range in {
		out[i] = sec
		out[i].Seats = copySeats(sec.Seats)
	}
	return out
}

func copySeats(in []model.Seat) []model.Seat {
	out := make([]model.Seat, len(in))
	for i, seat := range in {
		out[i] = seat
		if seat.BookedBy != nil {
			u := *seat.BookedBy
			out[i].BookedBy = &u
		}
	}
	return out
}

// CreateVenue stores a copy of v and assigns its ID.
func (s *Store) CreateVenue(_ context.Context, v *model.Venue) error {
	now := s.clock.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.mu.Lock()
	s.venueSeq++
	v.ID = s.venueSeq
	entry := &venueEntry{venue: *v}
	entry.venue.Sections = copySections(v.Sections)
	s.venues[v.ID] = entry
	s.mu.Unlock()
	return nil
}

// GetVenue returns a copy of the venue.
func (s *Store) GetVenue(_ context.Context, id uint64) (*model.Venue, error) {
	entry, ok := s.venue(id)
	if !ok {
		return nil, repository.ErrVenueNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	v := entry.venue
	v.Sections = copySections(entry.venue.Sections)
	return &v, nil
}

// ReplaceLayout swaps the venue's layout template.  Existing events keep
// their own seat maps.
func (s *Store) ReplaceLayout(_ context.Context, venueID uint64, sections []model.Section) error {
	entry, ok := s.venue(venueID)
	if !ok {
		return repository.ErrVenueNotFound
	}
	entry.mu.Lock()
	entry.venue.Sections = copySections(sections)
	entry.venue.UpdatedAt = s.clock.Now()
	entry.mu.Unlock()
	return nil
}

// CreateEvent checks for overlapping blocking events while holding the
// venue lock, then stores the event with a fresh copy of the venue layout.
func (s *Store) CreateEvent(_ context.Context, e *model.Event) error {
	ventry, ok := s.venue(e.VenueID)
	if !ok {
		return repository.ErrVenueNotFound
	}
	ventry.mu.Lock()
	defer ventry.mu.Unlock()

	s.mu.RLock()
	siblings := make([]*eventEntry, 0, len(s.venueEvents[e.VenueID]))
	for _, id := range s.venueEvents[e.VenueID] {
		siblings = append(siblings, s.events[id])
	}
	s.mu.RUnlock()

	var clash uint64
	for _, other := range siblings {
		other.mu.RLock()
		if other.event.Status.BlocksVenue() && other.event.Overlaps(e) && (clash == 0 || other.event.ID < clash) {
			clash = other.event.ID
		}
		other.mu.RUnlock()
	}
	if clash != 0 {
		return &repository.OverlapError{ExistingID: clash}
	}

	now := s.clock.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	entry := &eventEntry{sections: map[string]*sectionEntry{}}
	for _, sec := range ventry.venue.Sections {
		fresh := model.NewSection(sec.Name, sec.Rows, sec.Columns, sec.Priority)
		entry.sections[sec.Name] = &sectionEntry{section: fresh}
		entry.order = append(entry.order, sec.Name)
		entry.names = append(entry.names, sec.Name)
	}
	sort.SliceStable(entry.order, func(i, j int) bool {
		a, b := entry.sections[entry.order[i]].section, entry.sections[entry.order[j]].section
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})
	sort.Strings(entry.names)

	s.mu.Lock()
	s.eventSeq++
	e.ID = s.eventSeq
	entry.event = *e.Clone()
	entry.event.BookedSeats = nil
	entry.event.Analytics = model.Analytics{}
	s.events[e.ID] = entry
	s.venueEvents[e.VenueID] = append(s.venueEvents[e.VenueID], e.ID)
	s.mu.Unlock()
	return nil
}

// snapshot copies the event with its booked seats and analytics.  Caller
// holds entry.mu.
func (entry *eventEntry) snapshot() *model.Event {
	out := entry.event.Clone()
	entry.statsMu.Lock()
	out.BookedSeats = append([]model.BookedSeat(nil), entry.bookedSeats...)
	out.Analytics = entry.analytics
	entry.statsMu.Unlock()
	return out
}

// GetEvent returns a copy of the event.
func (s *Store) GetEvent(_ context.Context, id uint64) (*model.Event, error) {
	entry, ok := s.event(id)
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.snapshot(), nil
}

// UpdateEvent runs fn on a copy of the event under the event's write lock
// and stores the result only if fn succeeds.  Bookings in flight finish
// before fn runs and new bookings wait until it returns.
func (s *Store) UpdateEvent(_ context.Context, id uint64, fn func(e *model.Event) error) (*model.Event, error) {
	entry, ok := s.event(id)
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	working := entry.snapshot()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.clock.Now()
	stored := working.Clone()
	stored.BookedSeats = nil
	stored.Analytics = model.Analytics{}
	entry.event = *stored
	return working, nil
}

// ListEventsByStatus returns copies of every event in the given status,
// ordered by ID.
func (s *Store) ListEventsByStatus(_ context.Context, status model.EventStatus) ([]model.Event, error) {
	s.mu.RLock()
	entries := make([]*eventEntry, 0, len(s.events))
	for _, e := range s.events {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []model.Event
	for _, entry := range entries {
		entry.mu.RLock()
		if entry.event.Status == status {
			out = append(out, *entry.snapshot())
		}
		entry.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSeatMap locks every section of the event and copies it, so the
// result reflects one instant.
func (s *Store) GetSeatMap(_ context.Context, eventID uint64) ([]model.Section, error) {
	entry, ok := s.event(eventID)
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	for _, name := range entry.names {
		entry.sections[name].mu.Lock()
	}
	out := make([]model.Section, 0, len(entry.order))
	for _, name := range entry.order {
		sec := entry.sections[name].section
		sec.Seats = copySeats(sec.Seats)
		out = append(out, sec)
	}
	for _, name := range entry.names {
		entry.sections[name].mu.Unlock()
	}
	return out, nil
}

// CommitBooking claims every seat of the batch or none of them.  Only the
// sections the batch touches are locked, in name order.
func (s *Store) CommitBooking(_ context.Context, b *repository.BookingCommit) error {
	entry, ok := s.event(b.EventID)
	if !ok {
		return repository.ErrEventNotFound
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if !entry.event.Status.Sellable() {
		return repository.ErrEventNotSellable
	}

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

	var locked []*sectionEntry
	defer func() {
		for _, sec := range locked {
			sec.mu.Unlock()
		}
	}()
	for _, i := range order {
		name := b.Tickets[i].SeatSetName
		sec, ok := entry.sections[name]
		if !ok {
			return &repository.SeatUnavailableError{SectionName: name, SeatNumber: b.Tickets[i].SeatNumber}
		}
		if len(locked) == 0 || locked[len(locked)-1] != sec {
			sec.mu.Lock()
			locked = append(locked, sec)
		}
	}

	seen := map[seatKey]bool{}
	for _, i := range order {
		t := &b.Tickets[i]
		seats := entry.sections[t.SeatSetName].section.Seats
		k := seatKey{b.EventID, t.SeatSetName, t.SeatIndex}
		if t.SeatIndex < 0 || t.SeatIndex >= len(seats) || seats[t.SeatIndex].Status != model.SeatAvailable || seen[k] {
			return &repository.SeatUnavailableError{SectionName: t.SeatSetName, SeatNumber: t.SeatNumber}
		}
		seen[k] = true
	}

	for _, i := range order {
		t := &b.Tickets[i]
		seat := &entry.sections[t.SeatSetName].section.Seats[t.SeatIndex]
		seat.Status = model.SeatBooked
		u := b.UserID
		seat.BookedBy = &u
	}

	s.ticketsMu.Lock()
	booked := make([]model.BookedSeat, 0, len(order))
	for _, i := range order {
		t := &b.Tickets[i]
		s.ticketSeq++
		t.ID = s.ticketSeq
		t.EventID, t.VenueID, t.UserID = b.EventID, b.VenueID, b.UserID
		t.UpdatedAt = t.CreatedAt
		stored := *t
		s.tickets[t.ID] = &stored
		s.activeSeat[seatKey{b.EventID, t.SeatSetName, t.SeatIndex}] = t.ID
		booked = append(booked, model.BookedSeat{
			TicketID:    t.ID,
			SectionName: t.SeatSetName,
			SeatNumber:  t.SeatNumber,
			UserID:      b.UserID,
			BookedAt:    t.CreatedAt,
		})
	}
	s.ticketsMu.Unlock()

	entry.statsMu.Lock()
	entry.bookedSeats = append(entry.bookedSeats, booked...)
	entry.analytics.TicketsSold += int64(len(b.Tickets))
	entry.analytics.RevenueCents += b.TotalCents()
	entry.statsMu.Unlock()
	return nil
}

// GetTicket returns a copy of the ticket.
func (s *Store) GetTicket(_ context.Context, id uint64) (*model.Ticket, error) {
	s.ticketsMu.Lock()
	defer s.ticketsMu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	out := *t
	return &out, nil
}

// ListTicketsByEvent returns the event's tickets ordered by ID.
func (s *Store) ListTicketsByEvent(_ context.Context, eventID uint64) ([]model.Ticket, error) {
	return s.filterTickets(func(t *model.Ticket) bool { return t.EventID == eventID }, false), nil
}

// ListTicketsByUser returns the user's tickets, newest first.
func (s *Store) ListTicketsByUser(_ context.Context, userID uint64) ([]model.Ticket, error) {
	return s.filterTickets(func(t *model.Ticket) bool { return t.UserID == userID }, true), nil
}

func (s *Store) filterTickets(keep func(*model.Ticket) bool, desc bool) []model.Ticket {
	s.ticketsMu.Lock()
	var out []model.Ticket
	for _, t := range s.tickets {
		if keep(t) {
			out = append(out, *t)
		}
	}
	s.ticketsMu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ActiveTicketForSeat returns the ticket currently holding a seat.
func (s *Store) ActiveTicketForSeat(_ context.Context, eventID uint64, section string, seatIndex int) (*model.Ticket, error) {
	s.ticketsMu.Lock()
	defer s.ticketsMu.Unlock()
	id, ok := s.activeSeat[seatKey{eventID, section, seatIndex}]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	out := *s.tickets[id]
	return &out, nil
}

// UpdateTicket applies fn to a copy of the ticket.  Cancelling an active
// ticket frees its seat and reverses its analytics contribution in the
// same critical section.
func (s *Store) UpdateTicket(_ context.Context, id uint64, fn func(t *model.Ticket) error) (*model.Ticket, error) {
	s.ticketsMu.Lock()
	t, ok := s.tickets[id]
	var eventID uint64
	var section string
	if ok {
		eventID, section = t.EventID, t.SeatSetName
	}
	s.ticketsMu.Unlock()
	if !ok {
		return nil, repository.ErrTicketNotFound
	}

	entry, ok := s.event(eventID)
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	sec := entry.sections[section]
	if sec != nil {
		sec.mu.Lock()
		defer sec.mu.Unlock()
	}

	s.ticketsMu.Lock()
	defer s.ticketsMu.Unlock()
	current := s.tickets[id]
	working := *current
	wasActive := working.BookingStatus.Active()
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.clock.Now()
	*current = working

	if wasActive && working.BookingStatus == model.BookingCancelled {
		delete(s.activeSeat, seatKey{eventID, section, working.SeatIndex})
		if sec != nil && working.SeatIndex < len(sec.section.Seats) {
			seat := &sec.section.Seats[working.SeatIndex]
			seat.Status = model.SeatAvailable
			seat.BookedBy = nil
		}
		entry.statsMu.Lock()
		for i, bs := range entry.bookedSeats {
			if bs.TicketID == id {
				entry.bookedSeats = append(entry.bookedSeats[:i], entry.bookedSeats[i+1:]...)
				break
			}
		}
		entry.analytics.TicketsSold--
		entry.analytics.RevenueCents -= uint64(working.PriceCents)
		entry.statsMu.Unlock()
	}
	out := working
	return &out, nil
}
