package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/busstation/station/internal/model"
)

// TicketRequest is one seat asked for in an order.
type TicketRequest struct {
	Seat   int
	TripID uint64
}

// Page selects a slice of a paginated listing.  Number starts at 1.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int { return (p.Number - 1) * p.Size }

// OrderPage is one page of a user's orders.
type OrderPage struct {
	Count   int
	Results []OrderListItem
}

// OrderService creates and reads orders.  Every operation takes the
// acting user's ID explicitly; no operation can reach another user's
// orders.
type OrderService struct {
	orders OrderStore
	trips  TripStore
	logger *zap.Logger
	now    func() time.Time
}

// NewOrderService wires the service.  A nil logger disables logging.
func NewOrderService(orders OrderStore, trips TripStore, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{orders: orders, trips: trips, logger: logger, now: time.Now}
}

// Create books all requested tickets for userID in one transaction.  The
// order is only persisted if every ticket passes seat-range and seat
// uniqueness validation and is written successfully; otherwise nothing
// is kept.  Every trip of the batch is locked up front, then tickets are
// processed in the submitted order so that a seat repeated inside the
// batch fails on its second occurrence.  An order the store aborted in
// favour of a concurrent one is reported as a validation failure on
// "tickets".
func (s *OrderService) Create(ctx context.Context, userID uint64, reqs []TicketRequest) (*OrderView, error) {
	if len(reqs) == 0 {
		return nil, invalid("tickets", ErrNoTickets)
	}
	order, err := s.create(ctx, userID, reqs)
	if err != nil {
		if errors.Is(err, model.ErrBookingConflict) {
			s.logger.Info("order lost a lock conflict", zap.Uint64("user_id", userID), zap.Error(err))
			return nil, invalid("tickets", model.ErrBookingConflict)
		}
		return nil, err
	}
	s.logger.Info("order created",
		zap.Uint64("order_id", order.ID),
		zap.Uint64("user_id", userID),
		zap.Int("tickets", len(order.Tickets)),
	)
	v := orderView(*order)
	return &v, nil
}

func (s *OrderService) create(ctx context.Context, userID uint64, reqs []TicketRequest) (*model.Order, error) {
	tx, err := s.orders.BeginOrderTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	tripIDs := make([]uint64, 0, len(reqs))
	for _, req := range reqs {
		tripIDs = append(tripIDs, req.TripID)
	}
	slices.Sort(tripIDs)
	capacity, err := tx.LockTrips(ctx, slices.Compact(tripIDs))
	if err != nil {
		return nil, fmt.Errorf("lock trips: %w", err)
	}

	order := &model.Order{UserID: userID, CreatedAt: s.now().UTC()}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	for i, req := range reqs {
		field := fmt.Sprintf("tickets[%d]", i)
		numSeats, ok := capacity[req.TripID]
		if !ok {
			return nil, fmt.Errorf("%s.trip %d: %w", field, req.TripID, model.ErrTripNotFound)
		}
		ticket := model.Ticket{Seat: req.Seat, TripID: req.TripID, OrderID: order.ID}
		if err := ticket.Validate(numSeats); err != nil {
			return nil, invalid(field+".seat", err)
		}
		existing, err := tx.TicketsForTrip(ctx, req.TripID)
		if err != nil {
			return nil, fmt.Errorf("load tickets of trip %d: %w", req.TripID, err)
		}
		if err := model.ValidateUniqueness(req.TripID, req.Seat, existing); err != nil {
			return nil, invalid(field+".seat", err)
		}
		if err := tx.CreateTicket(ctx, &ticket); err != nil {
			if errors.Is(err, model.ErrSeatTaken) {
				// lost a race with a concurrent order after the pre-check
				return nil, invalid(field+".seat", &model.SeatError{Seat: req.Seat, TripID: req.TripID, Err: model.ErrSeatTaken})
			}
			return nil, fmt.Errorf("create ticket: %w", err)
		}
		order.Tickets = append(order.Tickets, ticket)
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(err, model.ErrSeatTaken) {
			return nil, invalid("tickets", err)
		}
		return nil, fmt.Errorf("commit order: %w", err)
	}
	committed = true
	return order, nil
}

// Get returns one of userID's orders.  Orders of other users are reported
// as model.ErrOrderNotFound.
func (s *OrderService) Get(ctx context.Context, userID, orderID uint64) (*OrderView, error) {
	o, err := s.orders.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	v := orderView(*o)
	return &v, nil
}

// List returns a page of userID's orders, newest first, with every ticket
// nested with its trip summary.  Trips of the whole page are loaded in a
// single read.
func (s *OrderService) List(ctx context.Context, userID uint64, page Page) (*OrderPage, error) {
	orders, total, err := s.orders.ListOrdersByUser(ctx, userID, page.Size, page.offset())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	seen := make(map[uint64]struct{})
	var tripIDs []uint64
	for _, o := range orders {
		for _, t := range o.Tickets {
			if _, ok := seen[t.TripID]; !ok {
				seen[t.TripID] = struct{}{}
				tripIDs = append(tripIDs, t.TripID)
			}
		}
	}
	trips := make(map[uint64]model.TripAvailability, len(tripIDs))
	if len(tripIDs) > 0 {
		rows, err := s.trips.ListTrips(ctx, model.TripFilter{IDs: tripIDs})
		if err != nil {
			return nil, fmt.Errorf("load order trips: %w", err)
		}
		for _, r := range rows {
			trips[r.ID] = r
		}
	}
	out := &OrderPage{Count: total, Results: make([]OrderListItem, 0, len(orders))}
	for _, o := range orders {
		out.Results = append(out.Results, orderListItem(o, trips))
	}
	return out, nil
}
