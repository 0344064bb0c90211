package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/service"
)

// OrderRepo stores orders in `orders` and their seats in `tickets`.  The
// UNIQUE (trip_id, seat) index on tickets is the final guard against
// double selling; every order is written through an orderTx.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo constructs an OrderRepo with the given DB handle.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// BeginOrderTx starts the transaction an order is written in.  It runs
// at READ COMMITTED so that, once LockTrips holds a trip, reads of that
// trip's tickets see every order committed before the lock was granted
// rather than a snapshot from the first read of the transaction.
func (r *OrderRepo) BeginOrderTx(ctx context.Context) (service.OrderTx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &orderTx{tx: tx}, nil
}

type orderTx struct {
	tx *sql.Tx
}

// conflict maps an InnoDB deadlock or lock wait timeout to
// model.ErrBookingConflict and returns other errors unchanged.
func conflict(err error) error {
	if isLockConflict(err) {
		return fmt.Errorf("%w: %v", model.ErrBookingConflict, err)
	}
	return err
}

func (o *orderTx) CreateOrder(ctx context.Context, ord *model.Order) error {
	res, err := o.tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, created_at) VALUES (?, ?)`, ord.UserID, ord.CreatedAt.UTC())
	if err != nil {
		if isMissingParent(err, "user_id") {
			return model.ErrUserNotFound
		}
		return conflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ord.ID = uint64(id)
	return nil
}

// LockTrips takes the row locks of every trip of an order in one
// statement, in ascending ID order, so two orders sharing trips queue on
// the first common trip instead of deadlocking.
func (o *orderTx) LockTrips(ctx context.Context, tripIDs []uint64) (map[uint64]int, error) {
	caps := make(map[uint64]int, len(tripIDs))
	if len(tripIDs) == 0 {
		return caps, nil
	}
	ids := slices.Clone(tripIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	rows, err := o.tx.QueryContext(ctx,
		`SELECT t.id, b.num_seats FROM trips t JOIN buses b ON b.id = t.bus_id
		 WHERE t.id IN (`+placeholders(len(ids))+`)
		 ORDER BY t.id FOR UPDATE`, uint64Args(ids)...)
	if err != nil {
		return nil, conflict(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var numSeats int
		if err := rows.Scan(&id, &numSeats); err != nil {
			return nil, err
		}
		caps[id] = numSeats
	}
	if err := rows.Err(); err != nil {
		return nil, conflict(err)
	}
	return caps, nil
}

func (o *orderTx) TicketsForTrip(ctx context.Context, tripID uint64) ([]model.Ticket, error) {
	rows, err := o.tx.QueryContext(ctx,
		`SELECT id, seat, trip_id, order_id FROM tickets WHERE trip_id = ? ORDER BY seat`, tripID)
	if err != nil {
		return nil, conflict(err)
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.Seat, &t.TripID, &t.OrderID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (o *orderTx) CreateTicket(ctx context.Context, t *model.Ticket) error {
	res, err := o.tx.ExecContext(ctx,
		`INSERT INTO tickets (seat, trip_id, order_id) VALUES (?, ?, ?)`, t.Seat, t.TripID, t.OrderID)
	if err != nil {
		switch {
		case isDuplicate(err):
			return fmt.Errorf("insert ticket: %w", model.ErrSeatTaken)
		case isMissingParent(err, "trip_id"):
			return model.ErrTripNotFound
		}
		return conflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

func (o *orderTx) Commit() error   { return conflict(o.tx.Commit()) }
func (o *orderTx) Rollback() error { return o.tx.Rollback() }

// ListOrdersByUser returns one page of the user's orders, newest first,
// with their tickets, plus the user's total number of orders.
func (r *OrderRepo) ListOrdersByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, created_at FROM orders
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Order, 0, limit)
	var ids []uint64
	for rows.Next() {
		var ord model.Order
		if err := rows.Scan(&ord.ID, &ord.UserID, &ord.CreatedAt); err != nil {
			return nil, 0, err
		}
		ord.CreatedAt = ord.CreatedAt.UTC()
		out = append(out, ord)
		ids = append(ids, ord.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return out, total, nil
	}
	byOrder, err := r.ticketsOf(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Tickets = byOrder[out[i].ID]
	}
	return out, total, nil
}

// GetOrderForUser returns model.ErrOrderNotFound when the order does not
// exist or belongs to another user.
func (r *OrderRepo) GetOrderForUser(ctx context.Context, orderID, userID uint64) (*model.Order, error) {
	var ord model.Order
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM orders WHERE id = ? AND user_id = ?`, orderID, userID).
		Scan(&ord.ID, &ord.UserID, &ord.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}
	ord.CreatedAt = ord.CreatedAt.UTC()
	byOrder, err := r.ticketsOf(ctx, []uint64{ord.ID})
	if err != nil {
		return nil, err
	}
	ord.Tickets = byOrder[ord.ID]
	return &ord, nil
}

func (r *OrderRepo) ticketsOf(ctx context.Context, orderIDs []uint64) (map[uint64][]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seat, trip_id, order_id FROM tickets
		 WHERE order_id IN (`+placeholders(len(orderIDs))+`)
		 ORDER BY order_id, seat`, uint64Args(orderIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.Ticket, len(orderIDs))
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.Seat, &t.TripID, &t.OrderID); err != nil {
			return nil, err
		}
		out[t.OrderID] = append(out[t.OrderID], t)
	}
	return out, rows.Err()
}
