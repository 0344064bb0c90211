package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/busstation/station/internal/model"
)

// TripRepo stores trips in the `trips` table.  Seat availability is never
// stored; it is computed from the tickets on every read.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo constructs a TripRepo with the given DB handle.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// CreateTrip inserts t and sets t.ID.  A missing bus yields
// model.ErrBusNotFound.
func (r *TripRepo) CreateTrip(ctx context.Context, t *model.Trip) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO trips (source, destination, departure, bus_id) VALUES (?, ?, ?, ?)`,
		t.Source, t.Destination, t.Departure.UTC(), t.BusID)
	if err != nil {
		if isMissingParent(err, "bus_id") {
			return model.ErrBusNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetTrip returns model.ErrTripNotFound when no row matches.
func (r *TripRepo) GetTrip(ctx context.Context, id uint64) (*model.Trip, error) {
	var t model.Trip
	err := r.db.QueryRowContext(ctx,
		`SELECT id, source, destination, departure, bus_id FROM trips WHERE id = ?`, id).
		Scan(&t.ID, &t.Source, &t.Destination, &t.Departure, &t.BusID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTripNotFound
		}
		return nil, err
	}
	t.Departure = t.Departure.UTC()
	return &t, nil
}

// ListTrips returns the trips matching f ordered by departure, each with
// its bus summary and the number of unsold seats.  Availability comes
// from a single grouped query over the tickets table.
func (r *TripRepo) ListTrips(ctx context.Context, f model.TripFilter) ([]model.TripAvailability, error) {
	where := []string{}
	args := []any{}
	if f.Source != "" {
		where = append(where, "LOWER(t.source) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Source)+"%")
	}
	if f.Destination != "" {
		where = append(where, "LOWER(t.destination) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Destination)+"%")
	}
	if f.Date != nil {
		y, m, d := f.Date.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		where = append(where, "t.departure >= ? AND t.departure < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	if len(f.IDs) > 0 {
		where = append(where, "t.id IN ("+placeholders(len(f.IDs))+")")
		args = append(args, uint64Args(f.IDs)...)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	q := `SELECT t.id, t.source, t.destination, t.departure, t.bus_id,
	             b.info, b.num_seats,
	             b.num_seats - COUNT(tk.id) AS tickets_available
	      FROM trips t
	      JOIN buses b ON b.id = t.bus_id
	      LEFT JOIN tickets tk ON tk.trip_id = t.id
	      WHERE ` + cond + `
	      GROUP BY t.id, t.source, t.destination, t.departure, t.bus_id, b.info, b.num_seats
	      ORDER BY t.departure ASC, t.id ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TripAvailability, 0)
	for rows.Next() {
		var a model.TripAvailability
		var info sql.NullString
		if err := rows.Scan(&a.ID, &a.Source, &a.Destination, &a.Departure, &a.BusID,
			&info, &a.BusNumSeats, &a.TicketsAvailable); err != nil {
			return nil, err
		}
		a.Departure = a.Departure.UTC()
		a.BusInfo = nullString(info)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateTrip overwrites every column of t.ID.
func (r *TripRepo) UpdateTrip(ctx context.Context, t *model.Trip) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trips SET source = ?, destination = ?, departure = ?, bus_id = ? WHERE id = ?`,
		t.Source, t.Destination, t.Departure.UTC(), t.BusID, t.ID)
	if err != nil {
		if isMissingParent(err, "bus_id") {
			return model.ErrBusNotFound
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetTrip(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTrip removes the trip; its tickets follow by cascade.
func (r *TripRepo) DeleteTrip(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrTripNotFound
	}
	return nil
}

// TakenSeats returns the sold seats of a trip in ascending order.
func (r *TripRepo) TakenSeats(ctx context.Context, tripID uint64) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seat FROM tickets WHERE trip_id = ? ORDER BY seat`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]int, 0)
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}
