package model

import "math"

// SmallBusMaxSeats is the largest capacity still classified as a small bus.
const SmallBusMaxSeats = 25

// Column limits of the buses table.  MaxBusSeats also keeps every seat
// number within the INT tickets.seat column.
const (
	MaxBusInfoLen = 255
	MaxBusSeats   = math.MaxInt32
)

// Bus is a vehicle that trips are scheduled on.  The number of seats
// bounds the seat numbers that can be sold for any of its trips.
// Deleting a bus removes its trips (and, transitively, their tickets).
//
// Fields:
//
//	ID         – primary key identifier.
//	Info       – free-form description, usually the plate number (nullable).
//	NumSeats   – seat capacity, always positive.
//	Image      – media reference of the uploaded photo (nullable).
//	Facilities – facilities available on the bus (many-to-many).
type Bus struct {
	ID         uint64     // buses.id
	Info       *string    // buses.info (nullable)
	NumSeats   int        // buses.num_seats
	Image      *string    // buses.image (nullable)
	Facilities []Facility // bus_facilities join
}

// IsSmall reports whether the bus has at most SmallBusMaxSeats seats.
func (b Bus) IsSmall() bool { return b.NumSeats <= SmallBusMaxSeats }

// FacilityIDs returns the IDs of the attached facilities in order.
func (b Bus) FacilityIDs() []uint64 {
	ids := make([]uint64, 0, len(b.Facilities))
	for _, f := range b.Facilities {
		ids = append(ids, f.ID)
	}
	return ids
}
