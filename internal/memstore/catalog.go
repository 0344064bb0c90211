package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/busstation/station/internal/model"
)

// ---- Facilities ----

// CreateFacility stores f and sets its ID.  Names are unique regardless of case.
func (s *Store) CreateFacility(ctx context.Context, f *model.Facility) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.facilityNameTakenLocked(f.Name, 0) {
		return model.ErrFacilityNameTaken
	}
	f.ID = next(&s.seq.facility)
	s.facilities[f.ID] = *f
	return nil
}

// GetFacility returns model.ErrFacilityNotFound for unknown IDs.
func (s *Store) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facilities[id]
	if !ok {
		return nil, model.ErrFacilityNotFound
	}
	return &f, nil
}

// ListFacilities returns every facility ordered by ID.
func (s *Store) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Facility, 0, len(s.facilities))
	for _, f := range s.facilities {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateFacility renames the facility with f.ID.
func (s *Store) UpdateFacility(ctx context.Context, f *model.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facilities[f.ID]; !ok {
		return model.ErrFacilityNotFound
	}
	if s.facilityNameTakenLocked(f.Name, f.ID) {
		return model.ErrFacilityNameTaken
	}
	s.facilities[f.ID] = *f
	return nil
}

// DeleteFacility removes a facility and detaches it from every bus.
func (s *Store) DeleteFacility(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facilities[id]; !ok {
		return model.ErrFacilityNotFound
	}
	delete(s.facilities, id)
	for bid, b := range s.buses {
		kept := b.facilityIDs[:0:0]
		for _, fid := range b.facilityIDs {
			if fid != id {
				kept = append(kept, fid)
			}
		}
		b.facilityIDs = kept
		s.buses[bid] = b
	}
	return nil
}

// unique index on facilities.name uses a case-insensitive collation
func (s *Store) facilityNameTakenLocked(name string, except uint64) bool {
	for _, f := range s.facilities {
		if f.ID != except && strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// ---- Buses ----

// CreateBus stores b with its facility links and sets its ID.
func (s *Store) CreateBus(ctx context.Context, b *model.Bus) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, err := s.busRowLocked(b)
	if err != nil {
		return err
	}
	b.ID = next(&s.seq.bus)
	s.buses[b.ID] = row
	return nil
}

// GetBus returns the bus with its facilities or model.ErrBusNotFound.
func (s *Store) GetBus(ctx context.Context, id uint64) (*model.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.buses[id]
	if !ok {
		return nil, model.ErrBusNotFound
	}
	b := s.busLocked(id, row)
	return &b, nil
}

// ListBuses returns buses having any of facilityIDs, or every bus when it is empty.
func (s *Store) ListBuses(ctx context.Context, facilityIDs []uint64) ([]model.Bus, error) {
	want := make(map[uint64]bool, len(facilityIDs))
	for _, id := range facilityIDs {
		want[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Bus, 0, len(s.buses))
	for id, row := range s.buses {
		if len(want) > 0 && !hasAny(row.facilityIDs, want) {
			continue
		}
		out = append(out, s.busLocked(id, row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateBus replaces the stored bus and its facility links but keeps the image.
func (s *Store) UpdateBus(ctx context.Context, b *model.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.buses[b.ID]
	if !ok {
		return model.ErrBusNotFound
	}
	row, err := s.busRowLocked(b)
	if err != nil {
		return err
	}
	row.image = old.image
	s.buses[b.ID] = row
	return nil
}

// DeleteBus removes a bus with its trips and their tickets.
func (s *Store) DeleteBus(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buses[id]; !ok {
		return model.ErrBusNotFound
	}
	delete(s.buses, id)
	for tid, t := range s.trips {
		if t.BusID == id {
			s.deleteTripLocked(tid)
		}
	}
	return nil
}

// SetBusImage records the media reference of the bus photo.
func (s *Store) SetBusImage(ctx context.Context, id uint64, image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.buses[id]
	if !ok {
		return model.ErrBusNotFound
	}
	row.image = &image
	s.buses[id] = row
	return nil
}

func (s *Store) busRowLocked(b *model.Bus) (busRow, error) {
	row := busRow{info: b.Info, numSeats: b.NumSeats, image: b.Image}
	seen := make(map[uint64]bool)
	for _, fid := range b.FacilityIDs() {
		if _, ok := s.facilities[fid]; !ok {
			return busRow{}, model.ErrFacilityNotFound
		}
		if !seen[fid] {
			seen[fid] = true
			row.facilityIDs = append(row.facilityIDs, fid)
		}
	}
	sort.Slice(row.facilityIDs, func(i, j int) bool { return row.facilityIDs[i] < row.facilityIDs[j] })
	return row, nil
}

func (s *Store) busLocked(id uint64, row busRow) model.Bus {
	b := model.Bus{ID: id, Info: row.info, NumSeats: row.numSeats, Image: row.image}
	for _, fid := range row.facilityIDs {
		if f, ok := s.facilities[fid]; ok {
			b.Facilities = append(b.Facilities, f)
		}
	}
	return b
}

func hasAny(ids []uint64, want map[uint64]bool) bool {
	for _, id := range ids {
		if want[id] {
			return true
		}
	}
	return false
}

// ---- Trips ----

// CreateTrip stores t and sets its ID.  The bus must exist.
func (s *Store) CreateTrip(ctx context.Context, t *model.Trip) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buses[t.BusID]; !ok {
		return model.ErrBusNotFound
	}
	t.ID = next(&s.seq.trip)
	s.trips[t.ID] = *t
	return nil
}

// GetTrip returns model.ErrTripNotFound for unknown IDs.
func (s *Store) GetTrip(ctx context.Context, id uint64) (*model.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, model.ErrTripNotFound
	}
	return &t, nil
}

// ListTrips returns the trips matching f, earliest departure first, with
// their free seat counts.
func (s *Store) ListTrips(ctx context.Context, f model.TripFilter) ([]model.TripAvailability, error) {
	var ids map[uint64]bool
	if len(f.IDs) > 0 {
		ids = make(map[uint64]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sold := make(map[uint64]int)
	for _, t := range s.tickets {
		sold[t.TripID]++
	}
	out := make([]model.TripAvailability, 0)
	for _, t := range s.trips {
		if ids != nil && !ids[t.ID] {
			continue
		}
		if !containsFold(t.Source, f.Source) || !containsFold(t.Destination, f.Destination) {
			continue
		}
		if f.Date != nil && !sameDay(t.Departure, *f.Date) {
			continue
		}
		bus := s.buses[t.BusID]
		out = append(out, model.TripAvailability{
			Trip:             t,
			BusInfo:          bus.info,
			BusNumSeats:      bus.numSeats,
			TicketsAvailable: bus.numSeats - sold[t.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Departure.Equal(out[j].Departure) {
			return out[i].Departure.Before(out[j].Departure)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateTrip replaces the stored trip.
func (s *Store) UpdateTrip(ctx context.Context, t *model.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[t.ID]; !ok {
		return model.ErrTripNotFound
	}
	if _, ok := s.buses[t.BusID]; !ok {
		return model.ErrBusNotFound
	}
	s.trips[t.ID] = *t
	return nil
}

// DeleteTrip removes a trip and its tickets.
func (s *Store) DeleteTrip(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[id]; !ok {
		return model.ErrTripNotFound
	}
	s.deleteTripLocked(id)
	return nil
}

// TakenSeats returns the sold seats of a trip in ascending order.
func (s *Store) TakenSeats(ctx context.Context, tripID uint64) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seats := []int{}
	for _, t := range s.tickets {
		if t.TripID == tripID {
			seats = append(seats, t.Seat)
		}
	}
	sort.Ints(seats)
	return seats, nil
}

func containsFold(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
