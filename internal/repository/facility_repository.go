package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/busstation/station/internal/model"
)

// FacilityRepo stores facilities in the `facilities` table.  Names are
// unique; the bus_facilities links of a deleted facility are removed by
// the foreign key cascade.
type FacilityRepo struct {
	db *sql.DB
}

// NewFacilityRepo constructs a FacilityRepo with the given DB handle.
func NewFacilityRepo(db *sql.DB) *FacilityRepo { return &FacilityRepo{db: db} }

// CreateFacility inserts f and sets its ID.
func (r *FacilityRepo) CreateFacility(ctx context.Context, f *model.Facility) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO facilities (name) VALUES (?)`, f.Name)
	if err != nil {
		if isDuplicate(err) {
			return model.ErrFacilityNameTaken
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	return nil
}

// GetFacility returns model.ErrFacilityNotFound when no row matches.
func (r *FacilityRepo) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	var f model.Facility
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM facilities WHERE id = ?`, id).Scan(&f.ID, &f.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrFacilityNotFound
		}
		return nil, err
	}
	return &f, nil
}

// ListFacilities returns every facility ordered by ID.
func (r *FacilityRepo) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM facilities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Facility, 0)
	for rows.Next() {
		var f model.Facility
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFacility renames the facility f.ID.
func (r *FacilityRepo) UpdateFacility(ctx context.Context, f *model.Facility) error {
	res, err := r.db.ExecContext(ctx, `UPDATE facilities SET name = ? WHERE id = ?`, f.Name, f.ID)
	if err != nil {
		if isDuplicate(err) {
			return model.ErrFacilityNameTaken
		}
		return err
	}
	return r.ensureAffected(ctx, res, f.ID)
}

// DeleteFacility removes the facility.
func (r *FacilityRepo) DeleteFacility(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM facilities WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrFacilityNotFound
	}
	return nil
}

// MySQL reports zero affected rows for an UPDATE that changes nothing,
// so existence is checked separately before reporting not found.
func (r *FacilityRepo) ensureAffected(ctx context.Context, res sql.Result, id uint64) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err := r.GetFacility(ctx, id)
	return err
}
