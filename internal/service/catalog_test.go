package service_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/busstation/station/internal/memstore"
	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/service"
)

type fakeMedia struct {
	gotInfo, gotName, gotBody string
}

func (m *fakeMedia) SaveBusImage(ctx context.Context, busInfo, filename string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.gotInfo, m.gotName, m.gotBody = busInfo, filename, string(body)
	return "uploads/buses/ab-123-x.jpg", nil
}

func TestTicketsAvailableTracksBookings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	trip := e.trip(t, 4)

	for i, seats := range [][]int{{1}, {2, 3}, {4}} {
		var reqs []service.TicketRequest
		for _, s := range seats {
			reqs = append(reqs, service.TicketRequest{Seat: s, TripID: trip})
		}
		if _, err := e.orders.Create(ctx, e.userA, reqs); err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
		list, err := e.catalog.ListTrips(ctx, model.TripFilter{})
		if err != nil {
			t.Fatal(err)
		}
		detail, err := e.catalog.GetTrip(ctx, trip)
		if err != nil {
			t.Fatal(err)
		}
		want := list[0].BusNumSeats - len(detail.TakenSeats)
		if list[0].TicketsAvailable != want {
			t.Fatalf("after order %d: tickets_available = %d, want %d", i, list[0].TicketsAvailable, want)
		}
	}
	detail, _ := e.catalog.GetTrip(ctx, trip)
	if !reflect.DeepEqual(detail.TakenSeats, []int{1, 2, 3, 4}) {
		t.Fatalf("taken seats = %v", detail.TakenSeats)
	}
}

func TestGetTripWithoutTicketsHasEmptySeats(t *testing.T) {
	e := newEnv(t)
	trip := e.trip(t, 30)
	d, err := e.catalog.GetTrip(context.Background(), trip)
	if err != nil {
		t.Fatal(err)
	}
	if d.TakenSeats == nil || len(d.TakenSeats) != 0 {
		t.Fatalf("taken seats = %#v", d.TakenSeats)
	}
	if d.Bus.NumSeats != 30 || d.Bus.IsSmall {
		t.Fatalf("bus = %+v", d.Bus)
	}
}

func TestBusFacilityFilterUnion(t *testing.T) {
	st := memstore.New()
	c := service.NewCatalog(st, st, st, nil, nil)
	ctx := context.Background()

	wifi, _ := c.CreateFacility(ctx, service.FacilityInput{Name: "Wifi"})
	wc, _ := c.CreateFacility(ctx, service.FacilityInput{Name: "WC"})
	tv, _ := c.CreateFacility(ctx, service.FacilityInput{Name: "TV"})

	mk := func(ids ...uint64) uint64 {
		seats := 40
		b, err := c.CreateBus(ctx, service.BusInput{NumSeats: &seats, Facilities: &ids})
		if err != nil {
			t.Fatalf("CreateBus: %v", err)
		}
		return b.ID
	}
	b1 := mk(wifi.ID, wc.ID)
	b2 := mk(wc.ID)
	_ = mk(tv.ID)
	b4 := mk(wifi.ID)

	got, err := c.ListBuses(ctx, []uint64{wifi.ID, wc.ID})
	if err != nil {
		t.Fatal(err)
	}
	var ids []uint64
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	if !reflect.DeepEqual(ids, []uint64{b1, b2, b4}) {
		t.Fatalf("ids = %v", ids)
	}
	if !reflect.DeepEqual(got[0].Facilities, []string{"Wifi", "WC"}) {
		t.Fatalf("facility names = %v", got[0].Facilities)
	}
}

func TestBusValidationAndUpdate(t *testing.T) {
	st := memstore.New()
	c := service.NewCatalog(st, st, st, nil, nil)
	ctx := context.Background()

	var ve *service.ValidationError
	if _, err := c.CreateBus(ctx, service.BusInput{}); !errors.As(err, &ve) || ve.Field != "num_seats" {
		t.Fatalf("missing num_seats: %v", err)
	}
	zero := 0
	if _, err := c.CreateBus(ctx, service.BusInput{NumSeats: &zero}); !errors.Is(err, service.ErrNonPositiveSeat) {
		t.Fatalf("zero seats: %v", err)
	}

	seats, info := 20, "AB 1234"
	b, err := c.CreateBus(ctx, service.BusInput{Info: &info, NumSeats: &seats})
	if err != nil {
		t.Fatal(err)
	}
	if !b.IsSmall || *b.Info != info {
		t.Fatalf("created = %+v", b)
	}

	more := 26
	patched, err := c.UpdateBus(ctx, b.ID, service.BusInput{NumSeats: &more}, true)
	if err != nil {
		t.Fatal(err)
	}
	if patched.IsSmall || patched.Info == nil || *patched.Info != info {
		t.Fatalf("patched = %+v", patched)
	}
	replaced, err := c.UpdateBus(ctx, b.ID, service.BusInput{NumSeats: &more}, false)
	if err != nil {
		t.Fatal(err)
	}
	if replaced.Info != nil {
		t.Fatalf("full update kept info: %v", *replaced.Info)
	}

	if _, err := c.UpdateBus(ctx, 404, service.BusInput{NumSeats: &more}, true); !errors.Is(err, model.ErrBusNotFound) {
		t.Fatalf("missing bus: %v", err)
	}
}

func TestUploadBusImage(t *testing.T) {
	st := memstore.New()
	media := &fakeMedia{}
	c := service.NewCatalog(st, st, st, media, nil)
	ctx := context.Background()

	seats, info := 10, "AB-123"
	b, _ := c.CreateBus(ctx, service.BusInput{Info: &info, NumSeats: &seats})
	got, err := c.UploadBusImage(ctx, b.ID, "photo.jpg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Image == nil || *got.Image != "uploads/buses/ab-123-x.jpg" {
		t.Fatalf("image = %v", got.Image)
	}
	if media.gotInfo != info || media.gotName != "photo.jpg" || media.gotBody != "jpeg" {
		t.Fatalf("media saw %+v", media)
	}
	if _, err := c.UploadBusImage(ctx, 99, "x.jpg", strings.NewReader("")); !errors.Is(err, model.ErrBusNotFound) {
		t.Fatalf("missing bus: %v", err)
	}
}

func TestTripWritesAndCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	src := "Kyiv"
	if _, err := e.catalog.CreateTrip(ctx, service.TripInput{Source: &src}); !errors.Is(err, service.ErrRequired) {
		t.Fatalf("incomplete trip: %v", err)
	}
	dst, missing := "Lviv", uint64(77)
	dep := time.Date(2026, 12, 1, 9, 0, 0, 0, time.FixedZone("EET", 2*3600))
	if _, err := e.catalog.CreateTrip(ctx, service.TripInput{Source: &src, Destination: &dst, Departure: &dep, Bus: &missing}); !errors.Is(err, model.ErrBusNotFound) {
		t.Fatalf("unknown bus: %v", err)
	}

	trip := e.trip(t, 10)
	newDst := "Odesa"
	v, err := e.catalog.UpdateTrip(ctx, trip, service.TripInput{Destination: &newDst, Departure: &dep}, true)
	if err != nil {
		t.Fatal(err)
	}
	if v.Destination != "Odesa" || v.Source != "Kyiv" || v.Departure.Location() != time.UTC || v.Departure.Hour() != 7 {
		t.Fatalf("patched trip = %+v", v)
	}

	if _, err := e.orders.Create(ctx, e.userA, []service.TicketRequest{{Seat: 1, TripID: trip}}); err != nil {
		t.Fatal(err)
	}
	if err := e.catalog.DeleteTrip(ctx, trip); err != nil {
		t.Fatal(err)
	}
	if seats, _ := e.store.TakenSeats(ctx, trip); len(seats) != 0 {
		t.Fatalf("tickets survived trip delete: %v", seats)
	}
}

func TestFacilityNames(t *testing.T) {
	st := memstore.New()
	c := service.NewCatalog(st, st, st, nil, nil)
	ctx := context.Background()

	if _, err := c.CreateFacility(ctx, service.FacilityInput{Name: "  "}); !errors.Is(err, service.ErrRequired) {
		t.Fatalf("blank name: %v", err)
	}
	f, err := c.CreateFacility(ctx, service.FacilityInput{Name: " Wifi "})
	if err != nil || f.Name != "Wifi" {
		t.Fatalf("create: %+v %v", f, err)
	}
	if _, err := c.CreateFacility(ctx, service.FacilityInput{Name: "wifi"}); !errors.Is(err, model.ErrFacilityNameTaken) {
		t.Fatalf("duplicate: %v", err)
	}
	list, _ := c.ListFacilities(ctx)
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
}

func TestInputColumnLimits(t *testing.T) {
	st := memstore.New()
	c := service.NewCatalog(st, st, st, nil, nil)
	ctx := context.Background()

	field := func(err error) string {
		t.Helper()
		var ve *service.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		return ve.Field
	}

	seats := 10
	longInfo := strings.Repeat("x", model.MaxBusInfoLen+1)
	if _, err := c.CreateBus(ctx, service.BusInput{Info: &longInfo, NumSeats: &seats}); field(err) != "info" || !errors.Is(err, service.ErrTooLong) {
		t.Fatalf("long info: %v", err)
	}
	huge := model.MaxBusSeats + 1
	if _, err := c.CreateBus(ctx, service.BusInput{NumSeats: &huge}); field(err) != "num_seats" || !errors.Is(err, service.ErrTooManySeats) {
		t.Fatalf("huge bus: %v", err)
	}
	if _, err := c.CreateFacility(ctx, service.FacilityInput{Name: strings.Repeat("n", model.MaxFacilityNameLen+1)}); field(err) != "name" {
		t.Fatalf("long facility name: %v", err)
	}

	// the limit counts characters, not bytes
	info := strings.Repeat("ї", model.MaxBusInfoLen)
	bus, err := c.CreateBus(ctx, service.BusInput{Info: &info, NumSeats: &seats})
	if err != nil {
		t.Fatalf("info at the limit: %v", err)
	}

	dep := time.Date(2030, 1, 2, 8, 0, 0, 0, time.UTC)
	place, long := strings.Repeat("Львів", 12), strings.Repeat("a", model.MaxPlaceLen+1)
	trip, err := c.CreateTrip(ctx, service.TripInput{Source: &place, Destination: &place, Departure: &dep, Bus: &bus.ID})
	if err != nil {
		t.Fatalf("60 character places: %v", err)
	}
	if _, err := c.UpdateTrip(ctx, trip.ID, service.TripInput{Source: &long}, true); field(err) != "source" {
		t.Fatalf("long source: %v", err)
	}
	if _, err := c.UpdateTrip(ctx, trip.ID, service.TripInput{Destination: &long}, true); field(err) != "destination" {
		t.Fatalf("long destination: %v", err)
	}
}
