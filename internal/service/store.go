package service

import (
	"context"

	"github.com/busstation/station/internal/model"
)

// FacilityStore persists facilities.
type FacilityStore interface {
	CreateFacility(ctx context.Context, f *model.Facility) error
	GetFacility(ctx context.Context, id uint64) (*model.Facility, error)
	ListFacilities(ctx context.Context) ([]model.Facility, error)
	UpdateFacility(ctx context.Context, f *model.Facility) error
	DeleteFacility(ctx context.Context, id uint64) error
}

// BusStore persists buses together with their facility links.  Create
// and Update replace the links with b.Facilities (only IDs are read).
// ListBuses returns buses having any of facilityIDs, each once; an empty
// slice means no filter.
type BusStore interface {
	CreateBus(ctx context.Context, b *model.Bus) error
	GetBus(ctx context.Context, id uint64) (*model.Bus, error)
	ListBuses(ctx context.Context, facilityIDs []uint64) ([]model.Bus, error)
	UpdateBus(ctx context.Context, b *model.Bus) error
	DeleteBus(ctx context.Context, id uint64) error
	SetBusImage(ctx context.Context, id uint64, image string) error
}

// TripStore persists trips.  ListTrips computes availability for every
// returned trip in one aggregated read.  TakenSeats returns the seats
// sold on a trip in ascending order.
type TripStore interface {
	CreateTrip(ctx context.Context, t *model.Trip) error
	GetTrip(ctx context.Context, id uint64) (*model.Trip, error)
	ListTrips(ctx context.Context, f model.TripFilter) ([]model.TripAvailability, error)
	UpdateTrip(ctx context.Context, t *model.Trip) error
	DeleteTrip(ctx context.Context, id uint64) error
	TakenSeats(ctx context.Context, tripID uint64) ([]int, error)
}

// OrderStore persists orders.  Orders are only written through an
// OrderTx; reads are always scoped to one user.
type OrderStore interface {
	BeginOrderTx(ctx context.Context) (OrderTx, error)
	ListOrdersByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Order, int, error)
	GetOrderForUser(ctx context.Context, orderID, userID uint64) (*model.Order, error)
}

// OrderTx is one all-or-nothing unit of order writes.  Reads made through
// it observe its own uncommitted writes.  CreateTicket returns an error
// matching model.ErrSeatTaken when the storage uniqueness constraint on
// (trip, seat) rejects the row.  Any method may return an error matching
// model.ErrBookingConflict when the store aborted the transaction in
// favour of a concurrent one.
type OrderTx interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	// LockTrips locks the given trips, in ascending ID order, until the
	// transaction ends and returns the seat count of each trip's bus.
	// Trips that do not exist are absent from the map.
	LockTrips(ctx context.Context, tripIDs []uint64) (map[uint64]int, error)
	TicketsForTrip(ctx context.Context, tripID uint64) ([]model.Ticket, error)
	CreateTicket(ctx context.Context, t *model.Ticket) error
	Commit() error
	Rollback() error
}
