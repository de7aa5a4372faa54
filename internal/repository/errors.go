// Package repository defines error types that are reused across multiple
// stores. These sentinel values allow higher layers such as the service
// package to distinguish between different failure scenarios without
// depending on the storage engine.
package repository

import (
	"errors"
	"fmt"
)

var (
	ErrVenueNotFound  = errors.New("venue not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrTicketNotFound = errors.New("ticket not found")
)

// ErrConflict is returned when an update cannot be performed because of
// conflicting state.
var ErrConflict = errors.New("conflict")

// ErrEventNotSellable is returned by booking commits when the event left
// the approved state before the seats could be flipped.
var ErrEventNotSellable = errors.New("event is not open for booking")

// SeatUnavailableError names the first seat of a booking batch that was
// not available when the batch was committed.
type SeatUnavailableError struct {
	SectionName string
	SeatNumber  string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %s in section %q is not available", e.SeatNumber, e.SectionName)
}

// Is lets callers test with errors.Is(err, ErrConflict).
func (e *SeatUnavailableError) Is(target error) bool { return target == ErrConflict }

// OverlapError is returned when a new event collides with an existing one
// at the same venue and date.
type OverlapError struct {
	ExistingID uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("time slot overlaps event %d", e.ExistingID)
}

func (e *OverlapError) Is(target error) bool { return target == ErrConflict }
