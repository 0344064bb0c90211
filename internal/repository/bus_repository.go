package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/busstation/station/internal/model"
)

// BusRepo stores buses in `buses` and their facility links in
// `bus_facilities`.  A bus row and its links are always written in one
// transaction.  Deleting a bus cascades to its trips and their tickets.
type BusRepo struct {
	db *sql.DB
}

// NewBusRepo constructs a BusRepo with the given DB handle.
func NewBusRepo(db *sql.DB) *BusRepo { return &BusRepo{db: db} }

// CreateBus inserts b with its facility links and sets b.ID.  An unknown
// facility ID yields model.ErrFacilityNotFound and nothing is stored.
func (r *BusRepo) CreateBus(ctx context.Context, b *model.Bus) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO buses (info, num_seats, image) VALUES (?, ?, ?)`,
			b.Info, b.NumSeats, b.Image)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		b.ID = uint64(id)
		return replaceFacilities(ctx, tx, b.ID, b.FacilityIDs())
	})
}

// GetBus returns the bus with its facilities, or model.ErrBusNotFound.
func (r *BusRepo) GetBus(ctx context.Context, id uint64) (*model.Bus, error) {
	var b model.Bus
	var info, image sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, info, num_seats, image FROM buses WHERE id = ?`, id).
		Scan(&b.ID, &info, &b.NumSeats, &image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBusNotFound
		}
		return nil, err
	}
	b.Info = nullString(info)
	b.Image = nullString(image)
	byBus, err := r.facilitiesOf(ctx, []uint64{b.ID})
	if err != nil {
		return nil, err
	}
	b.Facilities = byBus[b.ID]
	return &b, nil
}

// ListBuses returns buses ordered by ID.  With facility IDs given, only
// buses linked to at least one of them are returned, each once.
// Facilities of all returned buses are loaded with one extra query.
func (r *BusRepo) ListBuses(ctx context.Context, facilityIDs []uint64) ([]model.Bus, error) {
	q := `SELECT b.id, b.info, b.num_seats, b.image FROM buses b`
	var args []any
	if len(facilityIDs) > 0 {
		q += ` WHERE EXISTS (SELECT 1 FROM bus_facilities bf
		                     WHERE bf.bus_id = b.id AND bf.facility_id IN (` + placeholders(len(facilityIDs)) + `))`
		args = uint64Args(facilityIDs)
	}
	q += ` ORDER BY b.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Bus, 0)
	var ids []uint64
	for rows.Next() {
		var b model.Bus
		var info, image sql.NullString
		if err := rows.Scan(&b.ID, &info, &b.NumSeats, &image); err != nil {
			return nil, err
		}
		b.Info = nullString(info)
		b.Image = nullString(image)
		out = append(out, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	byBus, err := r.facilitiesOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Facilities = byBus[out[i].ID]
	}
	return out, nil
}

// UpdateBus overwrites info and num_seats and replaces the facility
// links.  The image is only changed through SetBusImage.
func (r *BusRepo) UpdateBus(ctx context.Context, b *model.Bus) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var exists uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM buses WHERE id = ? FOR UPDATE`, b.ID).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrBusNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE buses SET info = ?, num_seats = ? WHERE id = ?`,
			b.Info, b.NumSeats, b.ID); err != nil {
			return err
		}
		return replaceFacilities(ctx, tx, b.ID, b.FacilityIDs())
	})
}

// DeleteBus removes the bus; trips and tickets follow by cascade.
func (r *BusRepo) DeleteBus(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM buses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrBusNotFound
	}
	return nil
}

// SetBusImage records the media reference of the bus photo.
func (r *BusRepo) SetBusImage(ctx context.Context, id uint64, image string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE buses SET image = ? WHERE id = ?`, image, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetBus(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *BusRepo) facilitiesOf(ctx context.Context, busIDs []uint64) (map[uint64][]model.Facility, error) {
	q := `SELECT bf.bus_id, f.id, f.name
	      FROM bus_facilities bf
	      JOIN facilities f ON f.id = bf.facility_id
	      WHERE bf.bus_id IN (` + placeholders(len(busIDs)) + `)
	      ORDER BY bf.bus_id, f.id`
	rows, err := r.db.QueryContext(ctx, q, uint64Args(busIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.Facility, len(busIDs))
	for rows.Next() {
		var busID uint64
		var f model.Facility
		if err := rows.Scan(&busID, &f.ID, &f.Name); err != nil {
			return nil, err
		}
		out[busID] = append(out[busID], f)
	}
	return out, rows.Err()
}

func replaceFacilities(ctx context.Context, tx *sql.Tx, busID uint64, facilityIDs []uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM bus_facilities WHERE bus_id = ?`, busID); err != nil {
		return err
	}
	seen := make(map[uint64]bool, len(facilityIDs))
	for _, fid := range facilityIDs {
		if seen[fid] {
			continue
		}
		seen[fid] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bus_facilities (bus_id, facility_id) VALUES (?, ?)`, busID, fid); err != nil {
			if isMissingParent(err, "facility_id") {
				return model.ErrFacilityNotFound
			}
			return err
		}
	}
	return nil
}

// withTx runs fn inside a transaction that is committed when fn returns
// nil and rolled back otherwise.
func (r *BusRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
