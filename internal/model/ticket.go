package model

import "time"

// BookingStatus is the state of an issued ticket.
type BookingStatus string

const (
    BookingConfirmed BookingStatus = "confirmed"
    BookingCheckedIn BookingStatus = "checked_in"
    BookingCancelled BookingStatus = "cancelled"
)

// Active reports whether the ticket still holds its seat.
func (s BookingStatus) Active() bool {
    return s == BookingConfirmed || s == BookingCheckedIn
}

// PaymentStatus mirrors the external payment service's view of a ticket.
type PaymentStatus string

const (
    PaymentPending  PaymentStatus = "pending"
    PaymentPaid     PaymentStatus = "paid"
    PaymentRefunded PaymentStatus = "refunded"
)

// Ticket is issued by the booking engine for exactly one seat of one event.
// Only BookingStatus and PaymentStatus change after issue.
//
// Fields:
//  ID            – primary key identifier.
//  EventID       – event the seat belongs to.
//  VenueID       – venue hosting the event.
//  UserID        – attendee who booked.
//  SeatSetName   – section name.
//  SeatIndex     – linear index of the seat inside the section.
//  SeatNumber    – seat number as requested (SeatIndex + 1).
//  PriceCents    – unit price charged.
//  TokenHash     – bcrypt hash of the validation token shown at the door.
type Ticket struct {
    ID            uint64        `json:"id"`
    EventID       uint64        `json:"event_id"`
    VenueID       uint64        `json:"venue_id"`
    UserID        uint64        `json:"user_id"`
    SeatSetName   string        `json:"seat_set_name"`
    SeatIndex     int           `json:"seat_index"`
    SeatNumber    string        `json:"seat_number"`
    PriceCents    uint32        `json:"price_cents"`
    BookingStatus BookingStatus `json:"booking_status"`
    PaymentStatus PaymentStatus `json:"payment_status"`
    TokenHash     string        `json:"-"`
    CreatedAt     time.Time     `json:"created_at"`
    UpdatedAt     time.Time     `json:"updated_at"`
}
