package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/iliyamo/live-event-booking/internal/clock"
	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/queue"
	"github.com/iliyamo/live-event-booking/internal/repository"
	"github.com/iliyamo/live-event-booking/internal/utils"
)

// maxSeatsPerBooking caps one booking request.
const maxSeatsPerBooking = 50

// BookingStore is what the booking engine needs from storage.
type BookingStore interface {
	EventStore
	InventoryStore
}

// BookingService validates seat requests against an event's seat map and
// commits them all or nothing.
type BookingService struct {
	store BookingStore
	clock clock.Clock
	opts  options
}

// NewBookingService wires a BookingService.
func NewBookingService(store BookingStore, clk clock.Clock, opts ...Option) *BookingService {
	return &BookingService{store: store, clock: clk, opts: buildOptions(opts)}
}

// SeatRequest names one seat to book.
type SeatRequest struct {
	SectionName string `json:"section_name"`
	SeatNumber  string `json:"seat_number"`
}

// IssuedTicket is a ticket together with its validation token.  The token
// is only ever returned here; the store keeps its hash.
type IssuedTicket struct {
	model.Ticket
	ValidationToken string `json:"validation_token"`
}

// BookingResult is returned by a successful BookSeats.
type BookingResult struct {
	EventID         uint64         `json:"event_id"`
	EventTitle      string         `json:"event_title"`
	Tickets         []IssuedTicket `json:"tickets"`
	TotalPriceCents uint64         `json:"total_price_cents"`
}

// resolvedSeat is a request after validation.
type resolvedSeat struct {
	section string
	pos     model.SeatPosition
	price   uint32
}

// BookSeats books every requested seat for userID or none of them.
//
// Failures: unknown event is NotFound; an event that is not approved is
// PreconditionFailed; an empty or duplicated request, an unknown section
// or a seat number outside the section is Validation; a section without a
// price is Configuration; a seat that is not available is Conflict naming
// that seat.
func (s *BookingService) BookSeats(ctx context.Context, userID, eventID uint64, reqs []SeatRequest) (*BookingResult, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fromStore("book seats", err)
	}
	if !e.Status.Sellable() {
		return nil, newErr(KindPreconditionFailed, "event is %s, not open for booking", e.Status)
	}
	if len(reqs) == 0 {
		return nil, newErr(KindValidation, "at least one seat is required")
	}
	if len(reqs) > maxSeatsPerBooking {
		return nil, newErr(KindValidation, "at most %d seats per booking", maxSeatsPerBooking)
	}
	sections, err := s.store.GetSeatMap(ctx, eventID)
	if err != nil {
		return nil, fromStore("book seats", err)
	}
	seats, err := resolveSeats(sections, e.SeatPricing, reqs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	commit := &repository.BookingCommit{EventID: e.ID, VenueID: e.VenueID, UserID: userID}
	tokens := make([]string, len(seats))
	for i, rs := range seats {
		tokens[i] = utils.NewValidationToken()
		hash, err := utils.HashToken(tokens[i], s.opts.tokenCost)
		if err != nil {
			return nil, fromStore("book seats", err)
		}
		commit.Tickets = append(commit.Tickets, model.Ticket{
			EventID:       e.ID,
			VenueID:       e.VenueID,
			UserID:        userID,
			SeatSetName:   rs.section,
			SeatIndex:     rs.pos.Index,
			SeatNumber:    strconv.Itoa(rs.pos.Index + 1),
			PriceCents:    rs.price,
			BookingStatus: model.BookingConfirmed,
			PaymentStatus: model.PaymentPending,
			TokenHash:     hash,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.store.CommitBooking(ctx, commit); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.opts.log.Info().Err(err).Uint64("event_id", eventID).Uint64("user_id", userID).Msg("booking rejected")
		}
		return nil, fromStore("book seats", err)
	}

	res := &BookingResult{EventID: e.ID, EventTitle: e.Title, TotalPriceCents: commit.TotalCents()}
	ids := make([]uint64, 0, len(commit.Tickets))
	labels := make([]string, 0, len(commit.Tickets))
	for i, t := range commit.Tickets {
		res.Tickets = append(res.Tickets, IssuedTicket{Ticket: t, ValidationToken: tokens[i]})
		ids = append(ids, t.ID)
		labels = append(labels, seatLabel(t.SeatSetName, t.SeatNumber))
	}

	s.opts.invalidate(ctx, e.ID)
	s.opts.log.Info().
		Uint64("event_id", e.ID).
		Uint64("user_id", userID).
		Strs("seats", labels).
		Uint64("total_cents", res.TotalPriceCents).
		Msg("booking committed")
	s.opts.publish(ctx, queue.BookingConfirmedQueue, queue.BookingConfirmedEvent{
		EventID:          e.ID,
		EventTitle:       e.Title,
		VenueID:          e.VenueID,
		UserID:           userID,
		TicketIDs:        ids,
		SeatLabels:       labels,
		TotalAmountCents: res.TotalPriceCents,
		ConfirmedAt:      now.Format(time.RFC3339),
	})
	return res, nil
}

// resolveSeats validates every request and maps it to a seat position.
func resolveSeats(sections []model.Section, pricing map[string]uint32, reqs []SeatRequest) ([]resolvedSeat, error) {
	type key struct {
		section string
		index   int
	}
	seen := make(map[key]bool, len(reqs))
	out := make([]resolvedSeat, 0, len(reqs))
	for _, r := range reqs {
		sec, ok := model.FindSection(sections, r.SectionName)
		if !ok {
			return nil, newErr(KindValidation, "unknown section %q", r.SectionName)
		}
		price, ok := pricing[sec.Name]
		if !ok {
			return nil, newErr(KindConfiguration, "section %q has no price for this event", sec.Name)
		}
		pos, err := sec.Locate(r.SeatNumber)
		if err != nil {
			return nil, newErr(KindValidation, "section %q seat %q: %v", sec.Name, r.SeatNumber, err)
		}
		k := key{sec.Name, pos.Index}
		if seen[k] {
			return nil, newErr(KindValidation, "seat %d in section %q requested twice", pos.Index+1, sec.Name)
		}
		seen[k] = true
		out = append(out, resolvedSeat{section: sec.Name, pos: pos, price: price})
	}
	return out, nil
}

func seatLabel(section, number string) string {
	return section + "-" + number
}

// SectionAvailability lists the seats of one section that can be booked.
type SectionAvailability struct {
	Name           string       `json:"name"`
	Priority       int          `json:"priority"`
	PriceCents     *uint32      `json:"price_cents"`
	AvailableCount int          `json:"available_count"`
	Seats          []model.Seat `json:"seats"`
}

// Availability is the bookable view of an event.
type Availability struct {
	EventID  uint64                `json:"event_id"`
	Status   model.EventStatus     `json:"status"`
	Sections []SectionAvailability `json:"sections"`
}

// GetAvailableSeats returns each section's available seats with its
// price, read from a single snapshot of the seat map.
func (s *BookingService) GetAvailableSeats(ctx context.Context, eventID uint64) (*Availability, error) {
	e, sections, err := s.eventAndSeats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := &Availability{EventID: e.ID, Status: e.Status}
	for _, sec := range sections {
		sa := SectionAvailability{Name: sec.Name, Priority: sec.Priority, PriceCents: priceOf(e, sec.Name), Seats: []model.Seat{}}
		for _, seat := range sec.Seats {
			if seat.Status == model.SeatAvailable {
				sa.Seats = append(sa.Seats, seat)
			}
		}
		sa.AvailableCount = len(sa.Seats)
		out.Sections = append(out.Sections, sa)
	}
	return out, nil
}

// SectionLayout is one section with every seat and its status.
type SectionLayout struct {
	model.Section
	PriceCents     *uint32 `json:"price_cents"`
	Capacity       int     `json:"capacity"`
	AvailableCount int     `json:"available_count"`
}

// SeatLayout is the full seat map of an event.
type SeatLayout struct {
	EventID    uint64            `json:"event_id"`
	EventTitle string            `json:"event_title"`
	VenueID    uint64            `json:"venue_id"`
	Status     model.EventStatus `json:"status"`
	Capacity   int               `json:"capacity"`
	Sections   []SectionLayout   `json:"sections"`
}

// GetVenueSeatLayout returns the event's full seat map annotated with
// availability and price.
func (s *BookingService) GetVenueSeatLayout(ctx context.Context, eventID uint64) (*SeatLayout, error) {
	e, sections, err := s.eventAndSeats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := &SeatLayout{EventID: e.ID, EventTitle: e.Title, VenueID: e.VenueID, Status: e.Status}
	for _, sec := range sections {
		sl := SectionLayout{Section: sec, PriceCents: priceOf(e, sec.Name), Capacity: sec.Capacity()}
		for _, seat := range sec.Seats {
			if seat.Status == model.SeatAvailable {
				sl.AvailableCount++
			}
		}
		out.Capacity += sl.Capacity
		out.Sections = append(out.Sections, sl)
	}
	return out, nil
}

func (s *BookingService) eventAndSeats(ctx context.Context, eventID uint64) (*model.Event, []model.Section, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fromStore("get seats", err)
	}
	sections, err := s.store.GetSeatMap(ctx, eventID)
	if err != nil {
		return nil, nil, fromStore("get seats", err)
	}
	return e, sections, nil
}

func priceOf(e *model.Event, section string) *uint32 {
	if p, ok := e.SeatPricing[section]; ok {
		return &p
	}
	return nil
}
