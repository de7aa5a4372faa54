package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/repository"
)

// VenueStore persists venues and their layout templates.
type VenueStore interface {
	CreateVenue(ctx context.Context, v *model.Venue) error
	GetVenue(ctx context.Context, id uint64) (*model.Venue, error)
	ReplaceLayout(ctx context.Context, venueID uint64, sections []model.Section) error
}

// EventStore persists events.  CreateEvent must perform the venue time
// conflict check and the insert as one atomic step; UpdateEvent must run
// fn while holding the event exclusively.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
	UpdateEvent(ctx context.Context, id uint64, fn func(e *model.Event) error) (*model.Event, error)
	ListEventsByStatus(ctx context.Context, status model.EventStatus) ([]model.Event, error)
}

// InventoryStore owns the per-event seat map.  CommitBooking is all or
// nothing.
type InventoryStore interface {
	GetSeatMap(ctx context.Context, eventID uint64) ([]model.Section, error)
	CommitBooking(ctx context.Context, b *repository.BookingCommit) error
}

// TicketStore is the ticket ledger.  UpdateTicket releases the seat when
// fn cancels an active ticket.
type TicketStore interface {
	GetTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	ListTicketsByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID uint64) ([]model.Ticket, error)
	ActiveTicketForSeat(ctx context.Context, eventID uint64, section string, seatIndex int) (*model.Ticket, error)
	UpdateTicket(ctx context.Context, id uint64, fn func(t *model.Ticket) error) (*model.Ticket, error)
}

// Store bundles every store a full deployment needs.  Both the MySQL
// repositories and the memory store satisfy it.
type Store interface {
	VenueStore
	EventStore
	InventoryStore
	TicketStore
}

// Publisher sends domain messages to the broker.  Failures are logged by
// the caller and never fail the operation that produced the message.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload interface{}) error
}

// CacheInvalidator drops cached seat reads for an event.
type CacheInvalidator interface {
	InvalidateEvent(ctx context.Context, eventID uint64) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// NopPublisher discards every message.
func NopPublisher() Publisher { return nopPublisher{} }

type nopInvalidator struct{}

func (nopInvalidator) InvalidateEvent(context.Context, uint64) error { return nil }

type options struct {
	log            zerolog.Logger
	pub            Publisher
	cache          CacheInvalidator
	negotiationTTL time.Duration
	tokenCost      int
}

// Option configures a service.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPublisher sets the domain message publisher.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.pub = p
		}
	}
}

// WithCacheInvalidator sets the hook called after seat state changes.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithNegotiationTTL bounds how long a negotiation may wait for a reply.
// Zero disables the limit.
func WithNegotiationTTL(d time.Duration) Option {
	return func(o *options) { o.negotiationTTL = d }
}

// WithTokenCost sets the bcrypt cost for ticket validation tokens.
func WithTokenCost(cost int) Option {
	return func(o *options) { o.tokenCost = cost }
}

func buildOptions(opts []Option) options {
	o := options{
		log:       zerolog.Nop(),
		pub:       nopPublisher{},
		cache:     nopInvalidator{},
		tokenCost: 10,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) publish(ctx context.Context, queue string, payload interface{}) {
	if err := o.pub.Publish(ctx, queue, payload); err != nil {
		o.log.Warn().Err(err).Str("queue", queue).Msg("publish failed")
	}
}

func (o options) invalidate(ctx context.Context, eventID uint64) {
	if err := o.cache.InvalidateEvent(ctx, eventID); err != nil {
		o.log.Warn().Err(err).Uint64("event_id", eventID).Msg("cache invalidation failed")
	}
}
