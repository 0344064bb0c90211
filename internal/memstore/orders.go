package memstore

import (
	"context"
	"errors"
	"sort"

	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/service"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memstore: transaction has already been committed or rolled back")

// orderTx owns s.mu (write) for its whole lifetime.  Only orders, tickets
// and their sequences are written inside it, so rollback restores just
// those.
type orderTx struct {
	s       *Store
	orders  map[uint64]model.Order
	tickets map[uint64]model.Ticket
	seq     sequences
	done    bool
}

// BeginOrderTx takes the store write lock until the transaction ends.
func (s *Store) BeginOrderTx(ctx context.Context) (service.OrderTx, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	tx := &orderTx{
		s:       s,
		orders:  make(map[uint64]model.Order, len(s.orders)),
		tickets: make(map[uint64]model.Ticket, len(s.tickets)),
		seq:     s.seq,
	}
	for k, v := range s.orders {
		tx.orders[k] = v
	}
	for k, v := range s.tickets {
		tx.tickets[k] = v
	}
	return tx, nil
}

func (tx *orderTx) CreateOrder(ctx context.Context, o *model.Order) error {
	if tx.done {
		return ErrTxDone
	}
	if _, ok := tx.s.users[o.UserID]; !ok {
		return model.ErrUserNotFound
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = tx.s.now().UTC()
	}
	o.ID = next(&tx.s.seq.order)
	stored := *o
	stored.Tickets = nil
	tx.s.orders[o.ID] = stored
	return nil
}

// LockTrips returns the seat count of every known trip.  The store's
// write lock is already held for the whole transaction.
func (tx *orderTx) LockTrips(ctx context.Context, tripIDs []uint64) (map[uint64]int, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	caps := make(map[uint64]int, len(tripIDs))
	for _, id := range tripIDs {
		if n, err := tx.capacity(id); err == nil {
			caps[id] = n
		}
	}
	return caps, nil
}

func (tx *orderTx) capacity(tripID uint64) (int, error) {
	t, ok := tx.s.trips[tripID]
	if !ok {
		return 0, model.ErrTripNotFound
	}
	return tx.s.buses[t.BusID].numSeats, nil
}

func (tx *orderTx) TicketsForTrip(ctx context.Context, tripID uint64) ([]model.Ticket, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	var out []model.Ticket
	for _, t := range tx.s.tickets {
		if t.TripID == tripID {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateTicket enforces the same rules as the schema: the seat must fit
// the bus and (trip, seat) must be unique.
func (tx *orderTx) CreateTicket(ctx context.Context, t *model.Ticket) error {
	if tx.done {
		return ErrTxDone
	}
	if _, ok := tx.s.orders[t.OrderID]; !ok {
		return model.ErrOrderNotFound
	}
	numSeats, err := tx.capacity(t.TripID)
	if err != nil {
		return err
	}
	if err := t.Validate(numSeats); err != nil {
		return err
	}
	for _, other := range tx.s.tickets {
		if other.TripID == t.TripID && other.Seat == t.Seat {
			return model.ErrSeatTaken
		}
	}
	t.ID = next(&tx.s.seq.ticket)
	tx.s.tickets[t.ID] = *t
	return nil
}

func (tx *orderTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.s.mu.Unlock()
	return nil
}

func (tx *orderTx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.s.orders = tx.orders
	tx.s.tickets = tx.tickets
	tx.s.seq.order = tx.seq.order
	tx.s.seq.ticket = tx.seq.ticket
	tx.s.mu.Unlock()
	return nil
}

// ListOrdersByUser returns a page of the user's orders, newest first,
// and how many orders the user has.
func (s *Store) ListOrdersByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Order, int, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := make([]model.Order, 0, end-offset)
	for _, o := range all[offset:end] {
		o.Tickets = s.orderTicketsLocked(o.ID)
		page = append(page, o)
	}
	return page, total, nil
}

// GetOrderForUser returns model.ErrOrderNotFound for orders of other users.
func (s *Store) GetOrderForUser(ctx context.Context, orderID, userID uint64) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, model.ErrOrderNotFound
	}
	o.Tickets = s.orderTicketsLocked(o.ID)
	return &o, nil
}

func (s *Store) orderTicketsLocked(orderID uint64) []model.Ticket {
	var out []model.Ticket
	for _, t := range s.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seat != out[j].Seat {
			return out[i].Seat < out[j].Seat
		}
		return out[i].ID < out[j].ID
	})
	return out
}
