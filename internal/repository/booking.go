package repository

import "github.com/iliyamo/live-event-booking/internal/model"

// BookingCommit is the unit written atomically by CommitBooking: every
// seat in Tickets flips from available to booked for UserID, the tickets
// are inserted, the event's booked-seat summary grows and its analytics
// are incremented.  On success the store fills in ticket IDs and
// timestamps.
type BookingCommit struct {
	EventID uint64
	VenueID uint64
	UserID  uint64
	Tickets []model.Ticket
}

// TotalCents sums the unit prices of the batch.
func (b *BookingCommit) TotalCents() uint64 {
	var total uint64
	for _, t := range b.Tickets {
		total += uint64(t.PriceCents)
	}
	return total
}
