package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/busstation/station/internal/model"
)

// Input validation failures reported through ValidationError.
var (
	ErrRequired        = errors.New("this field is required")
	ErrNonPositiveSeat = errors.New("must be a positive integer")
	ErrTooLong         = errors.New("value is too long")
	ErrTooManySeats    = errors.New("number of seats is too large")
)

// checkLen rejects values longer than limit characters, the unit MySQL
// VARCHAR lengths are counted in.
func checkLen(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return invalid(field, fmt.Errorf("%w: at most %d characters", ErrTooLong, limit))
	}
	return nil
}

// MediaStore keeps uploaded files and returns the reference under which
// a file can later be served.
type MediaStore interface {
	SaveBusImage(ctx context.Context, busInfo, filename string, r io.Reader) (string, error)
}

// FacilityInput is the writable part of a facility.
type FacilityInput struct {
	Name string
}

// BusInput is the writable part of a bus.  For partial updates nil
// fields keep their stored value; for full writes a nil Info clears the
// description and a nil Facilities removes every facility.
type BusInput struct {
	Info       *string
	NumSeats   *int
	Facilities *[]uint64
}

// TripInput is the writable part of a trip.  For partial updates nil
// fields keep their stored value; full writes require every field.
type TripInput struct {
	Source      *string
	Destination *string
	Departure   *time.Time
	Bus         *uint64
}

// Catalog serves buses, trips and facilities: the read projections used
// by every authenticated user and the write operations reserved to staff.
type Catalog struct {
	facilities FacilityStore
	buses      BusStore
	trips      TripStore
	media      MediaStore
	logger     *zap.Logger
}

// NewCatalog wires the catalog.  A nil logger disables logging.
func NewCatalog(facilities FacilityStore, buses BusStore, trips TripStore, media MediaStore, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{facilities: facilities, buses: buses, trips: trips, media: media, logger: logger}
}

// ---- Facilities ----

// ListFacilities returns every facility ordered by ID.
func (c *Catalog) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	items, err := c.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	if items == nil {
		items = []model.Facility{}
	}
	return items, nil
}

// GetFacility returns one facility.
func (c *Catalog) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	return c.facilities.GetFacility(ctx, id)
}

// CreateFacility stores a new facility with a unique, non-empty name.
func (c *Catalog) CreateFacility(ctx context.Context, in FacilityInput) (*model.Facility, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", ErrRequired)
	}
	if err := checkLen("name", name, model.MaxFacilityNameLen); err != nil {
		return nil, err
	}
	f := &model.Facility{Name: name}
	if err := c.facilities.CreateFacility(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFacility renames a facility.
func (c *Catalog) UpdateFacility(ctx context.Context, id uint64, in FacilityInput) (*model.Facility, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", ErrRequired)
	}
	if err := checkLen("name", name, model.MaxFacilityNameLen); err != nil {
		return nil, err
	}
	f := &model.Facility{ID: id, Name: name}
	if err := c.facilities.UpdateFacility(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFacility removes a facility and its links to buses.
func (c *Catalog) DeleteFacility(ctx context.Context, id uint64) error {
	return c.facilities.DeleteFacility(ctx, id)
}

// ---- Buses ----

// ListBuses returns the buses having any of facilityIDs (all buses when
// facilityIDs is empty), each exactly once.
func (c *Catalog) ListBuses(ctx context.Context, facilityIDs []uint64) ([]BusListItem, error) {
	buses, err := c.buses.ListBuses(ctx, facilityIDs)
	if err != nil {
		return nil, fmt.Errorf("list buses: %w", err)
	}
	out := make([]BusListItem, 0, len(buses))
	for _, b := range buses {
		out = append(out, busListItem(b))
	}
	return out, nil
}

// GetBus returns one bus with its facilities.
func (c *Catalog) GetBus(ctx context.Context, id uint64) (*BusDetail, error) {
	b, err := c.buses.GetBus(ctx, id)
	if err != nil {
		return nil, err
	}
	d := busDetail(*b)
	return &d, nil
}

// CreateBus stores a new bus.
func (c *Catalog) CreateBus(ctx context.Context, in BusInput) (*BusDetail, error) {
	b := &model.Bus{}
	if err := applyBusInput(b, in, false); err != nil {
		return nil, err
	}
	if err := c.buses.CreateBus(ctx, b); err != nil {
		return nil, err
	}
	return c.GetBus(ctx, b.ID)
}

// UpdateBus overwrites (partial=false) or patches (partial=true) a bus.
func (c *Catalog) UpdateBus(ctx context.Context, id uint64, in BusInput, partial bool) (*BusDetail, error) {
	b, err := c.buses.GetBus(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyBusInput(b, in, partial); err != nil {
		return nil, err
	}
	if err := c.buses.UpdateBus(ctx, b); err != nil {
		return nil, err
	}
	return c.GetBus(ctx, id)
}

// DeleteBus removes a bus together with its trips and their tickets.
func (c *Catalog) DeleteBus(ctx context.Context, id uint64) error {
	if err := c.buses.DeleteBus(ctx, id); err != nil {
		return err
	}
	c.logger.Info("bus deleted", zap.Uint64("bus_id", id))
	return nil
}

// UploadBusImage hands the image to the media store and records the
// returned reference on the bus.
func (c *Catalog) UploadBusImage(ctx context.Context, id uint64, filename string, r io.Reader) (*BusDetail, error) {
	b, err := c.buses.GetBus(ctx, id)
	if err != nil {
		return nil, err
	}
	info := ""
	if b.Info != nil {
		info = *b.Info
	}
	ref, err := c.media.SaveBusImage(ctx, info, filename, r)
	if err != nil {
		return nil, fmt.Errorf("save bus image: %w", err)
	}
	if err := c.buses.SetBusImage(ctx, id, ref); err != nil {
		return nil, err
	}
	c.logger.Info("bus image uploaded", zap.Uint64("bus_id", id), zap.String("image", ref))
	return c.GetBus(ctx, id)
}

func applyBusInput(b *model.Bus, in BusInput, partial bool) error {
	if in.NumSeats == nil && !partial {
		return invalid("num_seats", ErrRequired)
	}
	if in.NumSeats != nil {
		if *in.NumSeats < 1 {
			return invalid("num_seats", ErrNonPositiveSeat)
		}
		if *in.NumSeats > model.MaxBusSeats {
			return invalid("num_seats", fmt.Errorf("%w: at most %d", ErrTooManySeats, model.MaxBusSeats))
		}
		b.NumSeats = *in.NumSeats
	}
	if in.Info != nil {
		if err := checkLen("info", *in.Info, model.MaxBusInfoLen); err != nil {
			return err
		}
	}
	if in.Info != nil || !partial {
		b.Info = in.Info
	}
	if in.Facilities != nil || !partial {
		b.Facilities = nil
		if in.Facilities != nil {
			for _, id := range *in.Facilities {
				b.Facilities = append(b.Facilities, model.Facility{ID: id})
			}
		}
	}
	return nil
}

// ---- Trips ----

// ListTrips returns trips matching f with the number of seats still free.
func (c *Catalog) ListTrips(ctx context.Context, f model.TripFilter) ([]TripListItem, error) {
	rows, err := c.trips.ListTrips(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	out := make([]TripListItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, tripListItem(r))
	}
	return out, nil
}

// GetTrip returns a trip with its bus, the bus facilities and the sorted
// list of seats already sold.
func (c *Catalog) GetTrip(ctx context.Context, id uint64) (*TripDetail, error) {
	t, err := c.trips.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := c.buses.GetBus(ctx, t.BusID)
	if err != nil {
		return nil, fmt.Errorf("load bus of trip %d: %w", id, err)
	}
	taken, err := c.trips.TakenSeats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load taken seats: %w", err)
	}
	d := tripDetail(*t, *b, taken)
	return &d, nil
}

// CreateTrip schedules a new trip on an existing bus.
func (c *Catalog) CreateTrip(ctx context.Context, in TripInput) (*TripView, error) {
	t := &model.Trip{}
	if err := applyTripInput(t, in, false); err != nil {
		return nil, err
	}
	if err := c.trips.CreateTrip(ctx, t); err != nil {
		return nil, err
	}
	v := tripView(*t)
	return &v, nil
}

// UpdateTrip overwrites (partial=false) or patches (partial=true) a trip.
func (c *Catalog) UpdateTrip(ctx context.Context, id uint64, in TripInput, partial bool) (*TripView, error) {
	t, err := c.trips.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyTripInput(t, in, partial); err != nil {
		return nil, err
	}
	if err := c.trips.UpdateTrip(ctx, t); err != nil {
		return nil, err
	}
	v := tripView(*t)
	return &v, nil
}

// DeleteTrip removes a trip and its tickets.
func (c *Catalog) DeleteTrip(ctx context.Context, id uint64) error {
	if err := c.trips.DeleteTrip(ctx, id); err != nil {
		return err
	}
	c.logger.Info("trip deleted", zap.Uint64("trip_id", id))
	return nil
}

func applyTripInput(t *model.Trip, in TripInput, partial bool) error {
	if !partial {
		switch {
		case in.Source == nil:
			return invalid("source", ErrRequired)
		case in.Destination == nil:
			return invalid("destination", ErrRequired)
		case in.Departure == nil:
			return invalid("departure", ErrRequired)
		case in.Bus == nil:
			return invalid("bus", ErrRequired)
		}
	}
	if in.Source != nil {
		s := strings.TrimSpace(*in.Source)
		if s == "" {
			return invalid("source", ErrRequired)
		}
		if err := checkLen("source", s, model.MaxPlaceLen); err != nil {
			return err
		}
		t.Source = s
	}
	if in.Destination != nil {
		d := strings.TrimSpace(*in.Destination)
		if d == "" {
			return invalid("destination", ErrRequired)
		}
		if err := checkLen("destination", d, model.MaxPlaceLen); err != nil {
			return err
		}
		t.Destination = d
	}
	if in.Departure != nil {
		if in.Departure.IsZero() {
			return invalid("departure", ErrRequired)
		}
		t.Departure = in.Departure.UTC()
	}
	if in.Bus != nil {
		t.BusID = *in.Bus
	}
	return nil
}
