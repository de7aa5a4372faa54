package service

import (
	"context"
	"time"

	"github.com/iliyamo/live-event-booking/internal/clock"
	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/queue"
	"github.com/iliyamo/live-event-booking/internal/utils"
)

// LedgerStore is what the ticket ledger needs from storage.
type LedgerStore interface {
	TicketStore
	EventStore
	VenueStore
	InventoryStore
}

// LedgerService answers ticket queries and applies cancel, check-in and
// payment transitions.
type LedgerService struct {
	store LedgerStore
	clock clock.Clock
	opts  options
}

// NewLedgerService wires a LedgerService.
func NewLedgerService(store LedgerStore, clk clock.Clock, opts ...Option) *LedgerService {
	return &LedgerService{store: store, clock: clk, opts: buildOptions(opts)}
}

// GetTicket returns a ticket to its holder or an admin.
func (s *LedgerService) GetTicket(ctx context.Context, caller model.Caller, id uint64) (*model.Ticket, error) {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, fromStore("get ticket", err)
	}
	if t.UserID != caller.ID && !caller.Is(model.RoleAdmin) {
		return nil, newErr(KindForbidden, "ticket belongs to another user")
	}
	return t, nil
}

// ListMyTickets returns the caller's tickets, newest first.
func (s *LedgerService) ListMyTickets(ctx context.Context, caller model.Caller) ([]model.Ticket, error) {
	ts, err := s.store.ListTicketsByUser(ctx, caller.ID)
	if err != nil {
		return nil, fromStore("list tickets", err)
	}
	return ts, nil
}

// ListEventTickets returns every ticket of an event to an admin, the
// event's artist or the hosting venue's manager.
func (s *LedgerService) ListEventTickets(ctx context.Context, caller model.Caller, eventID uint64) ([]model.Ticket, error) {
	if err := s.canSeeEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}
	ts, err := s.store.ListTicketsByEvent(ctx, eventID)
	if err != nil {
		return nil, fromStore("list tickets", err)
	}
	return ts, nil
}

// TicketForSeat returns the active ticket holding a seat of an event.
func (s *LedgerService) TicketForSeat(ctx context.Context, caller model.Caller, eventID uint64, section, seatNumber string) (*model.Ticket, error) {
	if err := s.canSeeEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}
	sections, err := s.store.GetSeatMap(ctx, eventID)
	if err != nil {
		return nil, fromStore("ticket for seat", err)
	}
	sec, ok := model.FindSection(sections, section)
	if !ok {
		return nil, newErr(KindValidation, "unknown section %q", section)
	}
	pos, err := sec.Locate(seatNumber)
	if err != nil {
		return nil, newErr(KindValidation, "section %q seat %q: %v", section, seatNumber, err)
	}
	t, err := s.store.ActiveTicketForSeat(ctx, eventID, sec.Name, pos.Index)
	if err != nil {
		return nil, fromStore("ticket for seat", err)
	}
	return t, nil
}

// CancelTicket cancels a confirmed ticket and returns its seat to sale.  A
// paid ticket is marked refunded.  Checked-in or already cancelled tickets
// are a Conflict.
func (s *LedgerService) CancelTicket(ctx context.Context, caller model.Caller, id uint64) (*model.Ticket, error) {
	current, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, fromStore("cancel ticket", err)
	}
	e, err := s.store.GetEvent(ctx, current.EventID)
	if err != nil {
		return nil, fromStore("cancel ticket", err)
	}
	if e.Status == model.StatusCompleted {
		return nil, newErr(KindPreconditionFailed, "event has already taken place")
	}

	t, err := s.store.UpdateTicket(ctx, id, func(t *model.Ticket) error {
		if t.UserID != caller.ID && !caller.Is(model.RoleAdmin) {
			return newErr(KindForbidden, "ticket belongs to another user")
		}
		switch t.BookingStatus {
		case model.BookingConfirmed:
		case model.BookingCheckedIn:
			return newErr(KindConflict, "ticket is already checked in")
		default:
			return newErr(KindConflict, "ticket is already cancelled")
		}
		t.BookingStatus = model.BookingCancelled
		if t.PaymentStatus == model.PaymentPaid {
			t.PaymentStatus = model.PaymentRefunded
		}
		return nil
	})
	if err != nil {
		return nil, fromStore("cancel ticket", err)
	}

	now := s.clock.Now()
	var refund uint32
	if t.PaymentStatus == model.PaymentRefunded {
		refund = t.PriceCents
	}
	s.opts.invalidate(ctx, t.EventID)
	s.opts.log.Info().
		Uint64("ticket_id", t.ID).
		Uint64("event_id", t.EventID).
		Uint64("cancelled_by", caller.ID).
		Str("seat", seatLabel(t.SeatSetName, t.SeatNumber)).
		Msg("ticket cancelled")
	s.opts.publish(ctx, queue.TicketCancelledQueue, queue.TicketCancelledEvent{
		TicketID:      t.ID,
		EventID:       t.EventID,
		UserID:        t.UserID,
		CancelledBy:   caller.ID,
		SeatLabel:     seatLabel(t.SeatSetName, t.SeatNumber),
		RefundCents:   refund,
		PaymentStatus: string(t.PaymentStatus),
		CancelledAt:   now.Format(time.RFC3339),
	})
	return t, nil
}

// CheckIn admits the holder of a ticket after checking its validation
// token.  Only the hosting venue's manager (or an admin) may check in.
func (s *LedgerService) CheckIn(ctx context.Context, caller model.Caller, id uint64, token string) (*model.Ticket, error) {
	if token == "" {
		return nil, newErr(KindValidation, "validation token is required")
	}
	current, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, fromStore("check in", err)
	}
	if !caller.Is(model.RoleAdmin) {
		if !caller.Is(model.RoleVenueManager) {
			return nil, newErr(KindForbidden, "only the venue manager can check tickets in")
		}
		v, err := s.store.GetVenue(ctx, current.VenueID)
		if err != nil {
			return nil, fromStore("check in", err)
		}
		if v.ManagerID != caller.ID {
			return nil, newErr(KindForbidden, "venue is managed by someone else")
		}
	}
	if !utils.VerifyToken(current.TokenHash, token) {
		return nil, newErr(KindValidation, "validation token does not match")
	}

	t, err := s.store.UpdateTicket(ctx, id, func(t *model.Ticket) error {
		switch t.BookingStatus {
		case model.BookingConfirmed:
		case model.BookingCheckedIn:
			return newErr(KindConflict, "ticket is already checked in")
		default:
			return newErr(KindPreconditionFailed, "ticket is cancelled")
		}
		t.BookingStatus = model.BookingCheckedIn
		return nil
	})
	if err != nil {
		return nil, fromStore("check in", err)
	}
	s.opts.log.Info().Uint64("ticket_id", t.ID).Uint64("event_id", t.EventID).Msg("ticket checked in")
	return t, nil
}

// MarkPaid records the external payment service's confirmation.
func (s *LedgerService) MarkPaid(ctx context.Context, caller model.Caller, id uint64) (*model.Ticket, error) {
	if !caller.Is(model.RoleAdmin) {
		return nil, newErr(KindForbidden, "only the payment service can confirm payments")
	}
	t, err := s.store.UpdateTicket(ctx, id, func(t *model.Ticket) error {
		if t.BookingStatus == model.BookingCancelled {
			return newErr(KindPreconditionFailed, "ticket is cancelled")
		}
		if t.PaymentStatus != model.PaymentPending {
			return newErr(KindConflict, "payment is already %s", t.PaymentStatus)
		}
		t.PaymentStatus = model.PaymentPaid
		return nil
	})
	if err != nil {
		return nil, fromStore("mark paid", err)
	}
	s.opts.log.Info().Uint64("ticket_id", t.ID).Msg("ticket paid")
	return t, nil
}

func (s *LedgerService) canSeeEvent(ctx context.Context, caller model.Caller, eventID uint64) error {
	if caller.Is(model.RoleAdmin) {
		return nil
	}
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return fromStore("load event", err)
	}
	if caller.Is(model.RoleArtist) && e.ArtistID == caller.ID {
		return nil
	}
	if caller.Is(model.RoleVenueManager) {
		v, err := s.store.GetVenue(ctx, e.VenueID)
		if err != nil {
			return fromStore("load venue", err)
		}
		if v.ManagerID == caller.ID {
			return nil
		}
	}
	return newErr(KindForbidden, "not allowed to see this event's tickets")
}
