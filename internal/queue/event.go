// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// Queue names.  Each payload type travels on its own durable queue.
const (
    BookingConfirmedQueue   = "booking.confirmed"
    TicketCancelledQueue    = "ticket.cancelled"
    EventStatusChangedQueue = "event.status_changed"
)

// Queues lists every queue the service publishes to.
var Queues = []string{BookingConfirmedQueue, TicketCancelledQueue, EventStatusChangedQueue}

// BookingConfirmedEvent is published when a batch of seats is committed.
// It carries enough for downstream consumers to log, notify or update
// analytics without querying the primary database.
type BookingConfirmedEvent struct {
    EventID          uint64   `json:"event_id"`
    EventTitle       string   `json:"event_title"`
    VenueID          uint64   `json:"venue_id"`
    UserID           uint64   `json:"user_id"`
    TicketIDs        []uint64 `json:"ticket_ids"`
    SeatLabels       []string `json:"seats"`
    TotalAmountCents uint64   `json:"total_amount_cents"`
    ConfirmedAt      string   `json:"confirmed_at"`
}

// TicketCancelledEvent is published when a ticket is cancelled and its
// seat returns to sale.
type TicketCancelledEvent struct {
    TicketID      uint64 `json:"ticket_id"`
    EventID       uint64 `json:"event_id"`
    UserID        uint64 `json:"user_id"`
    CancelledBy   uint64 `json:"cancelled_by"`
    SeatLabel     string `json:"seat"`
    RefundCents   uint32 `json:"refund_cents"`
    PaymentStatus string `json:"payment_status"`
    CancelledAt   string `json:"cancelled_at"`
}

// EventStatusChangedEvent is published on every lifecycle transition.
type EventStatusChangedEvent struct {
    EventID   uint64 `json:"event_id"`
    From      string `json:"from"`
    To        string `json:"to"`
    ActorID   uint64 `json:"actor_id"`
    ActorRole string `json:"actor_role"`
    Reason    string `json:"reason,omitempty"`
    ChangedAt string `json:"changed_at"`
}
