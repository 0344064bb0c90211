package model

import "time"

// MaxPlaceLen is the longest source or destination, in characters.
const MaxPlaceLen = 63

// Trip is a scheduled journey on one bus between a source and a
// destination.  Trips are indexed by (source, destination) and by
// departure.  Deleting a trip removes its tickets.
//
// Fields:
//
//	ID          – primary key identifier.
//	Source      – departure location.
//	Destination – arrival location.
//	Departure   – departure timestamp (UTC).
//	BusID       – bus operating the trip.
type Trip struct {
	ID          uint64    // trips.id
	Source      string    // trips.source
	Destination string    // trips.destination
	Departure   time.Time // trips.departure
	BusID       uint64    // trips.bus_id
}

// TripAvailability is a trip joined with its bus and the number of seats
// still free.  It is produced by a single aggregated query.
type TripAvailability struct {
	Trip
	BusInfo          *string
	BusNumSeats      int
	TicketsAvailable int
}

// TripFilter narrows trip listings.  Zero values mean "no filter".
type TripFilter struct {
	Source      string
	Destination string
	Date        *time.Time // departure day, UTC
	IDs         []uint64
}
