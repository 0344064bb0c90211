package service

import (
	"time"

	"github.com/busstation/station/internal/model"
)

// Response projections.  Each read use case has its own shape and its
// own mapping function; handlers serialise these values as they are.

// BusListItem is a bus in list responses.  Facilities are given by name.
type BusListItem struct {
	ID         uint64   `json:"id"`
	Info       *string  `json:"info"`
	NumSeats   int      `json:"num_seats"`
	IsSmall    bool     `json:"is_small"`
	Facilities []string `json:"facilities"`
	Image      *string  `json:"image"`
}

// BusDetail is a single bus with nested facilities.
type BusDetail struct {
	ID         uint64           `json:"id"`
	Info       *string          `json:"info"`
	NumSeats   int              `json:"num_seats"`
	IsSmall    bool             `json:"is_small"`
	Facilities []model.Facility `json:"facilities"`
	Image      *string          `json:"image"`
}

// TripView mirrors a stored trip; it is returned by write operations.
type TripView struct {
	ID          uint64    `json:"id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	Bus         uint64    `json:"bus"`
}

// TripListItem is a trip in list responses.
type TripListItem struct {
	ID               uint64    `json:"id"`
	Source           string    `json:"source"`
	Destination      string    `json:"destination"`
	Departure        time.Time `json:"departure"`
	BusInfo          *string   `json:"bus_info"`
	BusNumSeats      int       `json:"bus_num_seats"`
	TicketsAvailable int       `json:"tickets_available"`
}

// TripDetail is a single trip with its bus and the seats already sold.
type TripDetail struct {
	ID          uint64    `json:"id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	Bus         BusDetail `json:"bus"`
	TakenSeats  []int     `json:"taken_seats"`
}

// TicketView is a ticket as written in an order.
type TicketView struct {
	ID   uint64 `json:"id"`
	Seat int    `json:"seat"`
	Trip uint64 `json:"trip"`
}

// OrderView mirrors a created or retrieved order.
type OrderView struct {
	ID        uint64       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Tickets   []TicketView `json:"tickets"`
}

// TicketListItem is a ticket nested with its trip summary.
type TicketListItem struct {
	ID   uint64       `json:"id"`
	Seat int          `json:"seat"`
	Trip TripListItem `json:"trip"`
}

// OrderListItem is an order in list responses.
type OrderListItem struct {
	ID        uint64           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Tickets   []TicketListItem `json:"tickets"`
}

func busListItem(b model.Bus) BusListItem {
	names := make([]string, 0, len(b.Facilities))
	for _, f := range b.Facilities {
		names = append(names, f.Name)
	}
	return BusListItem{ID: b.ID, Info: b.Info, NumSeats: b.NumSeats, IsSmall: b.IsSmall(), Facilities: names, Image: b.Image}
}

func busDetail(b model.Bus) BusDetail {
	facilities := b.Facilities
	if facilities == nil {
		facilities = []model.Facility{}
	}
	return BusDetail{ID: b.ID, Info: b.Info, NumSeats: b.NumSeats, IsSmall: b.IsSmall(), Facilities: facilities, Image: b.Image}
}

func tripView(t model.Trip) TripView {
	return TripView{ID: t.ID, Source: t.Source, Destination: t.Destination, Departure: t.Departure, Bus: t.BusID}
}

func tripListItem(t model.TripAvailability) TripListItem {
	return TripListItem{
		ID:               t.ID,
		Source:           t.Source,
		Destination:      t.Destination,
		Departure:        t.Departure,
		BusInfo:          t.BusInfo,
		BusNumSeats:      t.BusNumSeats,
		TicketsAvailable: t.TicketsAvailable,
	}
}

func tripDetail(t model.Trip, b model.Bus, taken []int) TripDetail {
	if taken == nil {
		taken = []int{}
	}
	return TripDetail{
		ID:          t.ID,
		Source:      t.Source,
		Destination: t.Destination,
		Departure:   t.Departure,
		Bus:         busDetail(b),
		TakenSeats:  taken,
	}
}

func orderView(o model.Order) OrderView {
	tickets := make([]TicketView, 0, len(o.Tickets))
	for _, t := range o.Tickets {
		tickets = append(tickets, TicketView{ID: t.ID, Seat: t.Seat, Trip: t.TripID})
	}
	return OrderView{ID: o.ID, CreatedAt: o.CreatedAt, Tickets: tickets}
}

func orderListItem(o model.Order, trips map[uint64]model.TripAvailability) OrderListItem {
	tickets := make([]TicketListItem, 0, len(o.Tickets))
	for _, t := range o.Tickets {
		tickets = append(tickets, TicketListItem{ID: t.ID, Seat: t.Seat, Trip: tripListItem(trips[t.TripID])})
	}
	return OrderListItem{ID: o.ID, CreatedAt: o.CreatedAt, Tickets: tickets}
}
