// Package memstore is an in-process implementation of every store
// contract used by the services and handlers.  It backs the "memory"
// store driver for local runs and the package tests.  Foreign-key
// cascades and unique constraints of the MySQL schema are replayed
// explicitly: deleting a bus removes its trips, deleting a trip or an
// order removes their tickets, deleting a user removes their orders and
// refresh tokens, and (trip, seat) is unique across tickets.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/busstation/station/internal/model"
)

type busRow struct {
	info        *string
	numSeats    int
	image       *string
	facilityIDs []uint64
}

type tokenRow struct {
	userID    uint64
	expiresAt time.Time
	revokedAt *time.Time
}

type sequences struct {
	facility, bus, trip, order, ticket, user uint64
}

// Store holds all records in maps guarded by one RWMutex.  An order
// transaction holds the write lock from BeginOrderTx until Commit or
// Rollback, so readers never see a partially written order.
type Store struct {
	mu         sync.RWMutex
	facilities map[uint64]model.Facility
	buses      map[uint64]busRow
	trips      map[uint64]model.Trip
	orders     map[uint64]model.Order
	tickets    map[uint64]model.Ticket
	users      map[uint64]model.User
	tokens     map[string]tokenRow
	seq        sequences
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		facilities: make(map[uint64]model.Facility),
		buses:      make(map[uint64]busRow),
		trips:      make(map[uint64]model.Trip),
		orders:     make(map[uint64]model.Order),
		tickets:    make(map[uint64]model.Ticket),
		users:      make(map[uint64]model.User),
		tokens:     make(map[string]tokenRow),
		now:        time.Now,
	}
}

func next(counter *uint64) uint64 {
	*counter++
	return *counter
}

// deleteTripLocked removes a trip and its tickets.  s.mu must be held.
func (s *Store) deleteTripLocked(id uint64) {
	delete(s.trips, id)
	for tid, t := range s.tickets {
		if t.TripID == id {
			delete(s.tickets, tid)
		}
	}
}

// deleteOrderLocked removes an order and its tickets.  s.mu must be held.
func (s *Store) deleteOrderLocked(id uint64) {
	delete(s.orders, id)
	for tid, t := range s.tickets {
		if t.OrderID == id {
			delete(s.tickets, tid)
		}
	}
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
