package model

import "time"

// EventStatus is the lifecycle state of an event.  Only the values below
// exist; transitions between them are governed by CanTransition.
type EventStatus string

const (
    StatusPendingApproval    EventStatus = "pending_approval"
    StatusApprovedByAdmin    EventStatus = "approved_by_admin"
    StatusNegotiationPending EventStatus = "negotiation_pending"
    StatusApproved           EventStatus = "approved"
    StatusRejected           EventStatus = "rejected"
    StatusCancelled          EventStatus = "cancelled"
    StatusCompleted          EventStatus = "completed"
)

var transitions = map[EventStatus][]EventStatus{
    StatusPendingApproval:    {StatusApprovedByAdmin, StatusRejected, StatusCancelled},
    StatusApprovedByAdmin:    {StatusNegotiationPending, StatusApproved, StatusRejected, StatusCancelled},
    StatusNegotiationPending: {StatusApproved, StatusApprovedByAdmin, StatusNegotiationPending, StatusRejected, StatusCancelled},
    StatusApproved:           {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether the lifecycle allows moving from one
// status to another.
func CanTransition(from, to EventStatus) bool {
    for _, s := range transitions[from] {
        if s == to {
            return true
        }
    }
    return false
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
    switch s {
    case StatusPendingApproval, StatusApprovedByAdmin, StatusNegotiationPending,
        StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
        return true
    }
    return false
}

// Terminal reports whether no further transition is possible.
func (s EventStatus) Terminal() bool {
    return len(transitions[s]) == 0
}

// Sellable reports whether tickets may be booked.
func (s EventStatus) Sellable() bool { return s == StatusApproved }

// BlocksVenue reports whether an event in this status reserves its time
// slot at the venue.
func (s EventStatus) BlocksVenue() bool {
    switch s {
    case StatusApproved, StatusNegotiationPending, StatusPendingApproval, StatusApprovedByAdmin:
        return true
    }
    return false
}

// BlockingStatuses lists the statuses for which BlocksVenue is true.
func BlockingStatuses() []EventStatus {
    return []EventStatus{StatusPendingApproval, StatusApprovedByAdmin, StatusNegotiationPending, StatusApproved}
}

// NegotiationEntry is one offer in an event's price/commission negotiation.
// Entries are append-only; a correction is a new entry.
type NegotiationEntry struct {
    Seq               int          `json:"seq"`
    ProposedBy        ProposerRole `json:"proposed_by"`
    ActorID           uint64       `json:"actor_id"`
    PriceCents        uint32       `json:"price_cents"`
    CommissionPercent float64      `json:"commission_percent"`
    CreatedAt         time.Time    `json:"created_at"`
}

// BookedSeat summarises one committed seat on the event record.
type BookedSeat struct {
    TicketID    uint64    `json:"ticket_id"`
    SectionName string    `json:"section_name"`
    SeatNumber  string    `json:"seat_number"`
    UserID      uint64    `json:"user_id"`
    BookedAt    time.Time `json:"booked_at"`
}

// Analytics aggregates ticket sales for an event.
type Analytics struct {
    TicketsSold  int64  `json:"tickets_sold"`
    RevenueCents uint64 `json:"revenue_cents"`
}

// Event is a performance by an artist at a venue.
//
// Fields:
//  ID                 – primary key identifier.
//  ArtistID           – user id of the owning artist.
//  VenueID            – venue hosting the event.
//  Date               – calendar date (YYYY-MM-DD, UTC) of StartsAt.
//  StartsAt, EndsAt   – half-open interval [StartsAt, EndsAt).
//  Status             – lifecycle state.
//  SeatPricing        – section name → unit price in cents.
//  NegotiationHistory – append-only offers.
//  ApprovalDate       – when the event was last approved.
//  ApprovedBy         – who approved it.
//  RejectionReason    – set once when rejected.
type Event struct {
    ID                 uint64             `json:"id"`
    ArtistID           uint64             `json:"artist_id"`
    VenueID            uint64             `json:"venue_id"`
    Title              string             `json:"title"`
    Date               string             `json:"date"`
    StartsAt           time.Time          `json:"starts_at"`
    EndsAt             time.Time          `json:"ends_at"`
    Status             EventStatus        `json:"status"`
    SeatPricing        map[string]uint32  `json:"seat_pricing"`
    NegotiationHistory []NegotiationEntry `json:"negotiation_history"`
    ApprovalDate       *time.Time         `json:"approval_date,omitempty"`
    ApprovedBy         *uint64            `json:"approved_by,omitempty"`
    RejectionReason    *string            `json:"rejection_reason,omitempty"`
    BookedSeats        []BookedSeat       `json:"booked_seats"`
    Analytics          Analytics          `json:"analytics"`
    CreatedAt          time.Time          `json:"created_at"`
    UpdatedAt          time.Time          `json:"updated_at"`
}

// DateOf formats the calendar date used for venue conflict checks.
func DateOf(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Overlaps applies the open-interval test existing.start < new.end AND
// existing.end > new.start on the same venue and date.
func (e *Event) Overlaps(other *Event) bool {
    if e.VenueID != other.VenueID || e.Date != other.Date {
        return false
    }
    return e.StartsAt.Before(other.EndsAt) && e.EndsAt.After(other.StartsAt)
}

// LastOffer returns the most recent negotiation entry, if any.
func (e *Event) LastOffer() (NegotiationEntry, bool) {
    if len(e.NegotiationHistory) == 0 {
        return NegotiationEntry{}, false
    }
    return e.NegotiationHistory[len(e.NegotiationHistory)-1], true
}

// AppendOffer adds a new entry to the negotiation history.
func (e *Event) AppendOffer(by ProposerRole, actorID uint64, price uint32, commission float64, at time.Time) {
    e.NegotiationHistory = append(e.NegotiationHistory, NegotiationEntry{
        Seq:               len(e.NegotiationHistory) + 1,
        ProposedBy:        by,
        ActorID:           actorID,
        PriceCents:        price,
        CommissionPercent: commission,
        CreatedAt:         at,
    })
}

// Clone returns a deep copy safe to hand to callers.
func (e *Event) Clone() *Event {
    c := *e
    c.SeatPricing = make(map[string]uint32, len(e.SeatPricing))
    for k, v := range e.SeatPricing {
        c.SeatPricing[k] = v
    }
    c.NegotiationHistory = append([]NegotiationEntry(nil), e.NegotiationHistory...)
    c.BookedSeats = append([]BookedSeat(nil), e.BookedSeats...)
    return &c
}

// EventUpdate carries optional field changes; nil fields are left as is.
type EventUpdate struct {
    Title       *string
    SeatPricing map[string]uint32
}
