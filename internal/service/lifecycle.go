package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/live-event-booking/internal/clock"
	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/queue"
)

// systemActor is recorded as the actor of transitions made by the
// negotiation sweeper.
const systemActor = "SYSTEM"

// LifecycleStore is what the lifecycle controller needs from storage.
type LifecycleStore interface {
	VenueStore
	EventStore
	InventoryStore
}

// LifecycleService drives events through approval, negotiation and
// closure.  Every transition re-reads the event's status inside the
// store's exclusive update so concurrent conflicting calls cannot both
// succeed.
type LifecycleService struct {
	store LifecycleStore
	clock clock.Clock
	opts  options
}

// NewLifecycleService wires a LifecycleService.
func NewLifecycleService(store LifecycleStore, clk clock.Clock, opts ...Option) *LifecycleService {
	return &LifecycleService{store: store, clock: clk, opts: buildOptions(opts)}
}

// CreateEventInput carries the fields of a new event.
type CreateEventInput struct {
	VenueID     uint64            `json:"venue_id"`
	Title       string            `json:"title"`
	StartsAt    time.Time         `json:"starts_at"`
	EndsAt      time.Time         `json:"ends_at"`
	SeatPricing map[string]uint32 `json:"seat_pricing"`
}

// CreateEvent registers an event in pending_approval.  It fails with a
// Conflict when the venue already has a blocking event on the same date
// whose interval overlaps [StartsAt, EndsAt).
func (s *LifecycleService) CreateEvent(ctx context.Context, caller model.Caller, in CreateEventInput) (*model.Event, error) {
	if !caller.Is(model.RoleArtist) {
		return nil, newErr(KindForbidden, "only artists can create events")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, newErr(KindValidation, "title is required")
	}
	if in.StartsAt.IsZero() || in.EndsAt.IsZero() {
		return nil, newErr(KindValidation, "starts_at and ends_at are required")
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, newErr(KindValidation, "ends_at must be after starts_at")
	}
	if !in.StartsAt.After(s.clock.Now()) {
		return nil, newErr(KindValidation, "starts_at must be in the future")
	}
	venue, err := s.store.GetVenue(ctx, in.VenueID)
	if err != nil {
		return nil, fromStore("create event", err)
	}
	if err := checkPricing(venue.Sections, in.SeatPricing); err != nil {
		return nil, err
	}

	e := &model.Event{
		ArtistID:    caller.ID,
		VenueID:     in.VenueID,
		Title:       title,
		Date:        model.DateOf(in.StartsAt),
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		Status:      model.StatusPendingApproval,
		SeatPricing: copyPricing(in.SeatPricing),
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, fromStore("create event", err)
	}
	s.opts.log.Info().
		Uint64("event_id", e.ID).
		Uint64("venue_id", e.VenueID).
		Uint64("artist_id", caller.ID).
		Str("date", e.Date).
		Msg("event created")
	return e, nil
}

// GetEvent returns the event with its negotiation history and analytics.
func (s *LifecycleService) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, fromStore("get event", err)
	}
	return e, nil
}

// transition runs fn inside the store's exclusive update and, when the
// status changed, logs and publishes the change.
func (s *LifecycleService) transition(ctx context.Context, op string, id uint64, caller model.Caller, reason string, fn func(e *model.Event) error) (*model.Event, error) {
	var from model.EventStatus
	e, err := s.store.UpdateEvent(ctx, id, func(e *model.Event) error {
		from = e.Status
		if err := fn(e); err != nil {
			return err
		}
		if e.Status != from && !model.CanTransition(from, e.Status) {
			return illegalState(op, from)
		}
		return nil
	})
	if err != nil {
		return nil, fromStore(op, err)
	}
	if e.Status != from {
		s.statusChanged(ctx, e, from, caller.ID, string(caller.Role), reason)
	}
	return e, nil
}

func (s *LifecycleService) statusChanged(ctx context.Context, e *model.Event, from model.EventStatus, actorID uint64, role, reason string) {
	now := s.clock.Now()
	s.opts.log.Info().
		Uint64("event_id", e.ID).
		Str("from", string(from)).
		Str("to", string(e.Status)).
		Uint64("actor_id", actorID).
		Str("actor_role", role).
		Msg("event status changed")
	s.opts.publish(ctx, queue.EventStatusChangedQueue, queue.EventStatusChangedEvent{
		EventID:   e.ID,
		From:      string(from),
		To:        string(e.Status),
		ActorID:   actorID,
		ActorRole: role,
		Reason:    reason,
		ChangedAt: now.Format(time.RFC3339),
	})
	s.opts.invalidate(ctx, e.ID)
}

// ApproveByAdmin moves a pending event to approved_by_admin.  Approving an
// event that is already past that point is a Conflict.
func (s *LifecycleService) ApproveByAdmin(ctx context.Context, caller model.Caller, id uint64) (*model.Event, error) {
	if !caller.Is(model.RoleAdmin) {
		return nil, newErr(KindForbidden, "only admins can approve events")
	}
	return s.transition(ctx, "approve event", id, caller, "", func(e *model.Event) error {
		switch e.Status {
		case model.StatusPendingApproval:
		case model.StatusApprovedByAdmin, model.StatusNegotiationPending, model.StatusApproved:
			return newErr(KindConflict, "event is already approved by admin (status %s)", e.Status)
		default:
			return illegalState("approve event", e.Status)
		}
		now := s.clock.Now()
		e.Status = model.StatusApprovedByAdmin
		e.ApprovalDate = &now
		approver := caller.ID
		e.ApprovedBy = &approver
		return nil
	})
}

// ProposeNegotiation opens a negotiation with the venue manager's offer.
func (s *LifecycleService) ProposeNegotiation(ctx context.Context, caller model.Caller, id uint64, priceCents uint32, commission float64) (*model.Event, error) {
	if err := checkOffer(commission); err != nil {
		return nil, err
	}
	if err := s.requireVenueManager(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.transition(ctx, "propose negotiation", id, caller, "", func(e *model.Event) error {
		if e.Status != model.StatusApprovedByAdmin {
			return illegalState("propose negotiation", e.Status)
		}
		e.AppendOffer(model.ProposerVenueManager, caller.ID, priceCents, commission, s.clock.Now())
		e.Status = model.StatusNegotiationPending
		return nil
	})
}

// NegotiationResponse is the answer to the latest offer.
type NegotiationResponse string

const (
	ResponseAccept  NegotiationResponse = "accept"
	ResponseReject  NegotiationResponse = "reject"
	ResponseCounter NegotiationResponse = "counter"
)

// RespondInput carries a negotiation response.  Price and commission are
// only read for counter offers.
type RespondInput struct {
	Response          NegotiationResponse `json:"response"`
	PriceCents        uint32              `json:"price_cents"`
	CommissionPercent float64             `json:"commission_percent"`
}

// RespondToNegotiation answers the latest offer.  Only the counterparty of
// that offer may respond; answering your own offer is a Conflict.  When a
// negotiation TTL is configured and the latest offer is older than it, the
// negotiation is voided (the event returns to approved_by_admin) and the
// call fails with PreconditionFailed.
func (s *LifecycleService) RespondToNegotiation(ctx context.Context, caller model.Caller, id uint64, in RespondInput) (*model.Event, error) {
	switch in.Response {
	case ResponseAccept, ResponseReject:
	case ResponseCounter:
		if err := checkOffer(in.CommissionPercent); err != nil {
			return nil, err
		}
	default:
		return nil, newErr(KindValidation, "response must be accept, reject or counter")
	}
	current, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, fromStore("respond to negotiation", err)
	}
	role, err := s.negotiatorRole(ctx, caller, current)
	if err != nil {
		return nil, err
	}

	expired := false
	e, err := s.transition(ctx, "respond to negotiation", id, caller, "", func(e *model.Event) error {
		if e.Status == model.StatusApproved && len(e.NegotiationHistory) > 0 {
			return newErr(KindConflict, "negotiation is already settled")
		}
		if e.Status != model.StatusNegotiationPending {
			return illegalState("respond to negotiation", e.Status)
		}
		last, ok := e.LastOffer()
		if !ok {
			return newErr(KindInternal, "negotiation has no offers")
		}
		if s.stale(last) {
			expired = true
			e.Status = model.StatusApprovedByAdmin
			return nil
		}
		if last.ProposedBy.Counterparty() != role {
			return newErr(KindConflict, "waiting for the %s to respond", last.ProposedBy.Counterparty())
		}
		now := s.clock.Now()
		switch in.Response {
		case ResponseAccept:
			e.Status = model.StatusApproved
			e.ApprovalDate = &now
			approver := caller.ID
			e.ApprovedBy = &approver
		case ResponseReject:
			e.Status = model.StatusApprovedByAdmin
		case ResponseCounter:
			e.AppendOffer(role, caller.ID, in.PriceCents, in.CommissionPercent, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, newErr(KindPreconditionFailed, "negotiation expired; the venue manager may propose again")
	}
	return e, nil
}

// ApproveByVenueManager approves an admin-approved event without
// negotiating.
func (s *LifecycleService) ApproveByVenueManager(ctx context.Context, caller model.Caller, id uint64) (*model.Event, error) {
	if err := s.requireVenueManager(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.transition(ctx, "approve event", id, caller, "", func(e *model.Event) error {
		switch e.Status {
		case model.StatusApprovedByAdmin:
		case model.StatusApproved:
			return newErr(KindConflict, "event is already approved")
		default:
			return illegalState("approve event", e.Status)
		}
		now := s.clock.Now()
		e.Status = model.StatusApproved
		e.ApprovalDate = &now
		approver := caller.ID
		e.ApprovedBy = &approver
		return nil
	})
}

// RejectEvent rejects an event that has not yet been approved.  The reason
// is required and rejection is final.
func (s *LifecycleService) RejectEvent(ctx context.Context, caller model.Caller, id uint64, reason string) (*model.Event, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newErr(KindValidation, "reason is required")
	}
	if !caller.Is(model.RoleAdmin) {
		if err := s.requireVenueManager(ctx, caller, id); err != nil {
			return nil, err
		}
	}
	return s.transition(ctx, "reject event", id, caller, reason, func(e *model.Event) error {
		if e.Status == model.StatusRejected {
			return newErr(KindConflict, "event is already rejected")
		}
		if !model.CanTransition(e.Status, model.StatusRejected) {
			return illegalState("reject event", e.Status)
		}
		e.Status = model.StatusRejected
		e.RejectionReason = &reason
		return nil
	})
}

// CancelEvent withdraws an event from any non-terminal state.  Only the
// owning artist or an admin may cancel.
func (s *LifecycleService) CancelEvent(ctx context.Context, caller model.Caller, id uint64, reason string) (*model.Event, error) {
	if !caller.Is(model.RoleAdmin, model.RoleArtist) {
		return nil, newErr(KindForbidden, "only the artist or an admin can cancel an event")
	}
	return s.transition(ctx, "cancel event", id, caller, strings.TrimSpace(reason), func(e *model.Event) error {
		if caller.Is(model.RoleArtist) && e.ArtistID != caller.ID {
			return newErr(KindForbidden, "event belongs to another artist")
		}
		if !model.CanTransition(e.Status, model.StatusCancelled) {
			return illegalState("cancel event", e.Status)
		}
		e.Status = model.StatusCancelled
		return nil
	})
}

// CompleteEvent closes an approved event once it has ended.
func (s *LifecycleService) CompleteEvent(ctx context.Context, caller model.Caller, id uint64) (*model.Event, error) {
	if !caller.Is(model.RoleAdmin) {
		return nil, newErr(KindForbidden, "only admins can complete events")
	}
	return s.transition(ctx, "complete event", id, caller, "", func(e *model.Event) error {
		if e.Status != model.StatusApproved {
			return illegalState("complete event", e.Status)
		}
		if s.clock.Now().Before(e.EndsAt) {
			return newErr(KindPreconditionFailed, "event has not ended yet")
		}
		e.Status = model.StatusCompleted
		return nil
	})
}

// UpdateEventDetails applies the non-nil fields of upd.  Only the owning
// artist may edit, and only before the event is sellable or under
// negotiation.
func (s *LifecycleService) UpdateEventDetails(ctx context.Context, caller model.Caller, id uint64, upd model.EventUpdate) (*model.Event, error) {
	if !caller.Is(model.RoleArtist) {
		return nil, newErr(KindForbidden, "only the artist can edit an event")
	}
	var title string
	if upd.Title != nil {
		title = strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, newErr(KindValidation, "title must not be empty")
		}
	}
	if upd.SeatPricing != nil {
		sections, err := s.store.GetSeatMap(ctx, id)
		if err != nil {
			return nil, fromStore("update event", err)
		}
		if err := checkPricing(sections, upd.SeatPricing); err != nil {
			return nil, err
		}
	}
	e, err := s.store.UpdateEvent(ctx, id, func(e *model.Event) error {
		if e.ArtistID != caller.ID {
			return newErr(KindForbidden, "event belongs to another artist")
		}
		if e.Status != model.StatusPendingApproval && e.Status != model.StatusApprovedByAdmin {
			return illegalState("update event", e.Status)
		}
		if upd.Title != nil {
			e.Title = title
		}
		if upd.SeatPricing != nil {
			e.SeatPricing = copyPricing(upd.SeatPricing)
		}
		return nil
	})
	if err != nil {
		return nil, fromStore("update event", err)
	}
	s.opts.invalidate(ctx, e.ID)
	return e, nil
}

// ExpireStaleNegotiations voids every negotiation whose latest offer is
// older than the configured TTL and returns how many events were reverted.
// It is a no-op when no TTL is set.
func (s *LifecycleService) ExpireStaleNegotiations(ctx context.Context) (int, error) {
	if s.opts.negotiationTTL <= 0 {
		return 0, nil
	}
	pending, err := s.store.ListEventsByStatus(ctx, model.StatusNegotiationPending)
	if err != nil {
		return 0, fromStore("expire negotiations", err)
	}
	n := 0
	for _, candidate := range pending {
		if last, ok := candidate.LastOffer(); !ok || !s.stale(last) {
			continue
		}
		reverted := false
		e, err := s.store.UpdateEvent(ctx, candidate.ID, func(e *model.Event) error {
			last, ok := e.LastOffer()
			if e.Status != model.StatusNegotiationPending || !ok || !s.stale(last) {
				return nil
			}
			e.Status = model.StatusApprovedByAdmin
			reverted = true
			return nil
		})
		if err != nil {
			return n, fromStore("expire negotiations", err)
		}
		if reverted {
			n++
			s.statusChanged(ctx, e, model.StatusNegotiationPending, 0, systemActor, "negotiation expired")
		}
	}
	return n, nil
}

// RunNegotiationSweeper calls ExpireStaleNegotiations every interval until
// ctx is done.
func (s *LifecycleService) RunNegotiationSweeper(ctx context.Context, interval time.Duration) {
	if s.opts.negotiationTTL <= 0 || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.ExpireStaleNegotiations(ctx); err != nil {
				s.opts.log.Error().Err(err).Msg("negotiation sweep failed")
			} else if n > 0 {
				s.opts.log.Info().Int("expired", n).Msg("negotiations expired")
			}
		}
	}
}

func (s *LifecycleService) stale(last model.NegotiationEntry) bool {
	ttl := s.opts.negotiationTTL
	return ttl > 0 && !s.clock.Now().Before(last.CreatedAt.Add(ttl))
}

// requireVenueManager checks that caller manages the venue hosting the event.
func (s *LifecycleService) requireVenueManager(ctx context.Context, caller model.Caller, eventID uint64) error {
	if !caller.Is(model.RoleVenueManager) {
		return newErr(KindForbidden, "only the venue manager can do this")
	}
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return fromStore("load event", err)
	}
	v, err := s.store.GetVenue(ctx, e.VenueID)
	if err != nil {
		return fromStore("load venue", err)
	}
	if v.ManagerID != caller.ID {
		return newErr(KindForbidden, "venue is managed by someone else")
	}
	return nil
}

// negotiatorRole maps the caller to a side of the negotiation.
func (s *LifecycleService) negotiatorRole(ctx context.Context, caller model.Caller, e *model.Event) (model.ProposerRole, error) {
	switch {
	case caller.Is(model.RoleArtist) && e.ArtistID == caller.ID:
		return model.ProposerArtist, nil
	case caller.Is(model.RoleVenueManager):
		v, err := s.store.GetVenue(ctx, e.VenueID)
		if err != nil {
			return "", fromStore("load venue", err)
		}
		if v.ManagerID == caller.ID {
			return model.ProposerVenueManager, nil
		}
	}
	return "", newErr(KindForbidden, "only the event's artist or venue manager can negotiate")
}

func checkOffer(commission float64) error {
	if commission < 0 || commission > 100 {
		return newErr(KindValidation, "commission_percent must be between 0 and 100")
	}
	return nil
}

// checkPricing verifies every priced section exists in the layout.
func checkPricing(sections []model.Section, pricing map[string]uint32) error {
	for name := range pricing {
		if _, ok := model.FindSection(sections, name); !ok {
			return newErr(KindValidation, "seat_pricing names unknown section %q", name)
		}
	}
	return nil
}

func copyPricing(in map[string]uint32) map[string]uint32 {
	out := make(map[string]uint32, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
