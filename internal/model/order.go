package model

import "time"

// Order is a user's batch purchase of one or more tickets.  An order and
// its tickets are written in one transaction and deleted together.
// Orders are listed newest first.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the order.
//	CreatedAt – creation timestamp, set once.
//	Tickets   – tickets bought in this order, by seat ascending.
type Order struct {
	ID        uint64    // orders.id
	UserID    uint64    // orders.user_id
	CreatedAt time.Time // orders.created_at
	Tickets   []Ticket  // tickets.order_id
}
