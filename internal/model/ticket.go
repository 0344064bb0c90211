package model

import (
	"errors"
	"fmt"
)

// Ticket reserves one seat on one trip and belongs to exactly one order.
// For every trip a seat number is sold at most once, and it must lie in
// [1, bus.NumSeats].  Tickets are ordered by seat ascending.
//
// Fields:
//
//	ID      – primary key identifier.
//	Seat    – seat number on the trip's bus.
//	TripID  – trip the seat is sold on.
//	OrderID – order owning the ticket.
type Ticket struct {
	ID      uint64 // tickets.id
	Seat    int    // tickets.seat
	TripID  uint64 // tickets.trip_id
	OrderID uint64 // tickets.order_id
}

// Validate checks the ticket's seat against the capacity of the bus
// operating its trip.
func (t Ticket) Validate(numSeats int) error {
	return ValidateSeat(t.Seat, numSeats)
}

var (
	// ErrSeatOutOfRange marks a seat number outside [1, num_seats].
	ErrSeatOutOfRange = errors.New("seat out of range")
	// ErrSeatTaken marks a seat already sold on the same trip.
	ErrSeatTaken = errors.New("seat already taken")
	// ErrBookingConflict marks an order aborted because a concurrent
	// order held the same trips.  Retrying the order may succeed.
	ErrBookingConflict = errors.New("order conflicted with a concurrent booking, please retry")
)

// SeatError describes why a seat cannot be sold.  Err is either
// ErrSeatOutOfRange or ErrSeatTaken.
type SeatError struct {
	Seat     int
	NumSeats int    // set for out-of-range failures
	TripID   uint64 // set for uniqueness failures
	Err      error
}

func (e *SeatError) Error() string {
	switch {
	case errors.Is(e.Err, ErrSeatOutOfRange):
		return fmt.Sprintf("seat must be in range [1, %d], got %d", e.NumSeats, e.Seat)
	case errors.Is(e.Err, ErrSeatTaken):
		return fmt.Sprintf("seat %d is already taken on trip %d", e.Seat, e.TripID)
	}
	return e.Err.Error()
}

func (e *SeatError) Unwrap() error { return e.Err }

// ValidateSeat fails with ErrSeatOutOfRange unless 1 <= seat <= numSeats.
func ValidateSeat(seat, numSeats int) error {
	if seat < 1 || seat > numSeats {
		return &SeatError{Seat: seat, NumSeats: numSeats, Err: ErrSeatOutOfRange}
	}
	return nil
}

// ValidateUniqueness fails with ErrSeatTaken when one of the existing
// tickets already holds seat on tripID.  Tickets of other trips are
// ignored.
func ValidateUniqueness(tripID uint64, seat int, existing []Ticket) error {
	for _, t := range existing {
		if t.TripID == tripID && t.Seat == seat {
			return &SeatError{Seat: seat, TripID: tripID, Err: ErrSeatTaken}
		}
	}
	return nil
}
