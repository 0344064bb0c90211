package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/busstation/station/internal/config"
	"github.com/busstation/station/internal/media"
	"github.com/busstation/station/internal/memstore"
	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/router"
	"github.com/busstation/station/internal/service"
	"github.com/busstation/station/internal/utils"
)

const secret = "test-secret"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type server struct {
	t     *testing.T
	e     *echo.Echo
	store *memstore.Store
	staff string
	alice string
	bob   string
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := config.Config{
		JWTSecret:      secret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
		MediaRoot:      t.TempDir(),
		MediaURL:       "/media/",
	}
	s := memstore.New()
	catalog := service.NewCatalog(s, s, s, media.NewLocalStore(cfg.MediaRoot, cfg.MediaURL), nil)
	orders := service.NewOrderService(s, s, nil)
	srv := &server{
		t:     t,
		store: s,
		e: router.New(cfg, router.Deps{
			Catalog: catalog,
			Orders:  orders,
			Users:   s,
			Tokens:  s,
		}, zap.NewNop()),
	}
	srv.staff = srv.token("staff@example.com", model.RoleStaff)
	srv.alice = srv.token("alice@example.com", model.RoleUser)
	srv.bob = srv.token("bob@example.com", model.RoleUser)
	return srv
}

// token creates a user and returns a bearer access token for them.
func (s *server) token(email, role string) string {
	s.t.Helper()
	id, err := s.store.CreateUser(context.Background(), email, "unused", role)
	if err != nil {
		s.t.Fatalf("create user: %v", err)
	}
	tok, err := utils.NewAccessToken(secret, id, role, 15)
	if err != nil {
		s.t.Fatalf("sign token: %v", err)
	}
	return tok.Token
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// must performs the request and fails unless it answers want.
func (s *server) must(want int, method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	rec := s.do(method, path, token, body)
	if rec.Code != want {
		s.t.Fatalf("%s %s = %d, want %d: %s", method, path, rec.Code, want, rec.Body.String())
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type idBody struct {
	ID uint64 `json:"id"`
}

// fixture creates a bus with numSeats seats and a trip on it.
func (s *server) fixture(numSeats int) (busID, tripID uint64) {
	s.t.Helper()
	bus := decode[idBody](s.t, s.must(http.StatusCreated, http.MethodPost, "/v1/buses", s.staff,
		map[string]any{"info": "Coach", "num_seats": numSeats}))
	trip := decode[idBody](s.t, s.must(http.StatusCreated, http.MethodPost, "/v1/trips", s.staff,
		map[string]any{"source": "Kyiv", "destination": "Lviv", "departure": "2030-05-01T10:00:00Z", "bus": bus.ID}))
	return bus.ID, trip.ID
}

func order(seats []int, trip uint64) map[string]any {
	tickets := make([]map[string]any, 0, len(seats))
	for _, seat := range seats {
		tickets = append(tickets, map[string]any{"seat": seat, "trip": trip})
	}
	return map[string]any{"tickets": tickets}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.must(http.StatusOK, http.MethodGet, "/healthz", "", nil)
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestCatalogAccess(t *testing.T) {
	s := newServer(t)
	bus := map[string]any{"num_seats": 40}

	s.must(http.StatusUnauthorized, http.MethodGet, "/v1/buses", "", nil)
	s.must(http.StatusUnauthorized, http.MethodPost, "/v1/buses", "", bus)
	s.must(http.StatusForbidden, http.MethodPost, "/v1/buses", s.alice, bus)
	s.must(http.StatusOK, http.MethodGet, "/v1/buses", s.alice, nil)
	s.must(http.StatusCreated, http.MethodPost, "/v1/buses", s.staff, bus)

	s.must(http.StatusForbidden, http.MethodPost, "/v1/facilities", s.alice, map[string]any{"name": "Wifi"})
	s.must(http.StatusForbidden, http.MethodDelete, "/v1/buses/1", s.alice, nil)
	s.must(http.StatusForbidden, http.MethodPatch, "/v1/trips/1", s.bob, map[string]any{"source": "X"})
	s.must(http.StatusOK, http.MethodGet, "/v1/trips", s.bob, nil)
	s.must(http.StatusUnauthorized, http.MethodGet, "/v1/orders", "", nil)
	s.must(http.StatusUnauthorized, http.MethodGet, "/v1/trips", "not-a-token", nil)
}

func TestOrderDuplicateSeatInBatch(t *testing.T) {
	s := newServer(t)
	_, trip := s.fixture(10)

	rec := s.must(http.StatusBadRequest, http.MethodPost, "/v1/orders", s.alice, order([]int{1, 1}, trip))
	body := decode[errorBody](t, rec)
	if _, ok := body.Fields["tickets[1].seat"]; !ok {
		t.Fatalf("fields = %v, want tickets[1].seat", body.Fields)
	}
	list := decode[struct {
		Count int `json:"count"`
	}](t, s.must(http.StatusOK, http.MethodGet, "/v1/orders", s.alice, nil))
	if list.Count != 0 {
		t.Fatalf("count = %d, failed order was kept", list.Count)
	}
}

func TestOrderSeatsUntilSoldOut(t *testing.T) {
	s := newServer(t)
	_, trip := s.fixture(2)

	s.must(http.StatusCreated, http.MethodPost, "/v1/orders", s.alice, order([]int{1}, trip))

	taken := decode[errorBody](t, s.must(http.StatusBadRequest, http.MethodPost, "/v1/orders", s.bob, order([]int{1}, trip)))
	if got := taken.Fields["tickets[0].seat"]; !strings.Contains(got, "already taken") {
		t.Fatalf("taken seat message = %q", got)
	}
	outOfRange := decode[errorBody](t, s.must(http.StatusBadRequest, http.MethodPost, "/v1/orders", s.bob, order([]int{3}, trip)))
	if got := outOfRange.Fields["tickets[0].seat"]; !strings.Contains(got, "[1, 2]") {
		t.Fatalf("out of range message = %q", got)
	}
	created := decode[struct {
		ID      uint64 `json:"id"`
		Tickets []struct {
			Seat int    `json:"seat"`
			Trip uint64 `json:"trip"`
		} `json:"tickets"`
	}](t, s.must(http.StatusCreated, http.MethodPost, "/v1/orders", s.bob, order([]int{2}, trip)))
	if len(created.Tickets) != 1 || created.Tickets[0].Seat != 2 || created.Tickets[0].Trip != trip {
		t.Fatalf("created order = %+v", created)
	}

	trips := decode[[]struct {
		ID               uint64 `json:"id"`
		TicketsAvailable int    `json:"tickets_available"`
	}](t, s.must(http.StatusOK, http.MethodGet, "/v1/trips", s.alice, nil))
	if len(trips) != 1 || trips[0].TicketsAvailable != 0 {
		t.Fatalf("trips = %+v, want one trip with no tickets left", trips)
	}
	detail := decode[struct {
		TakenSeats []int `json:"taken_seats"`
	}](t, s.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/v1/trips/%d", trip), s.alice, nil))
	if fmt.Sprint(detail.TakenSeats) != "[1 2]" {
		t.Fatalf("taken_seats = %v", detail.TakenSeats)
	}
}

func TestOrderUnknownTrip(t *testing.T) {
	s := newServer(t)
	s.must(http.StatusNotFound, http.MethodPost, "/v1/orders", s.alice, order([]int{1}, 99))
	s.must(http.StatusBadRequest, http.MethodPost, "/v1/orders", s.alice, map[string]any{"tickets": []any{}})
}

func TestOrdersAreScopedToCaller(t *testing.T) {
	s := newServer(t)
	_, trip := s.fixture(5)
	o := decode[idBody](t, s.must(http.StatusCreated, http.MethodPost, "/v1/orders", s.alice, order([]int{1, 2}, trip)))

	s.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/v1/orders/%d", o.ID), s.alice, nil)
	s.must(http.StatusNotFound, http.MethodGet, fmt.Sprintf("/v1/orders/%d", o.ID), s.bob, nil)
	s.must(http.StatusNotFound, http.MethodGet, fmt.Sprintf("/v1/orders/%d", o.ID), s.staff, nil)

	for _, tc := range []struct {
		name  string
		token string
		want  int
	}{
		{"owner", s.alice, 1},
		{"other user", s.bob, 0},
		{"staff", s.staff, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			page := decode[struct {
				Count   int `json:"count"`
				Results []struct {
					Tickets []struct {
						Seat int `json:"seat"`
						Trip struct {
							ID     uint64 `json:"id"`
							Source string `json:"source"`
						} `json:"trip"`
					} `json:"tickets"`
				} `json:"results"`
			}](t, s.must(http.StatusOK, http.MethodGet, "/v1/orders", tc.token, nil))
			if page.Count != tc.want || len(page.Results) != tc.want {
				t.Fatalf("count = %d, results = %d, want %d", page.Count, len(page.Results), tc.want)
			}
			if tc.want == 1 {
				tk := page.Results[0].Tickets
				if len(tk) != 2 || tk[0].Trip.ID != trip || tk[0].Trip.Source != "Kyiv" {
					t.Fatalf("tickets = %+v", tk)
				}
			}
		})
	}
}

type orderPage struct {
	Count    int      `json:"count"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Next     *string  `json:"next"`
	Previous *string  `json:"previous"`
	Results  []idBody `json:"results"`
}

func TestOrderPagination(t *testing.T) {
	s := newServer(t)
	_, trip := s.fixture(10)
	for seat := 1; seat <= 4; seat++ {
		s.must(http.StatusCreated, http.MethodPost, "/v1/orders", s.alice, order([]int{seat}, trip))
	}

	first := decode[orderPage](t, s.must(http.StatusOK, http.MethodGet, "/v1/orders", s.alice, nil))
	if first.Count != 4 || first.PageSize != 3 || len(first.Results) != 3 {
		t.Fatalf("first page = %+v", first)
	}
	if first.Previous != nil || first.Next == nil || !strings.Contains(*first.Next, "page=2") {
		t.Fatalf("first page links: next=%v previous=%v", first.Next, first.Previous)
	}
	if first.Results[0].ID != 4 {
		t.Fatalf("first result = %d, want newest order 4", first.Results[0].ID)
	}

	second := decode[orderPage](t, s.must(http.StatusOK, http.MethodGet, "/v1/orders?page=2", s.alice, nil))
	if len(second.Results) != 1 || second.Next != nil || second.Previous == nil {
		t.Fatalf("second page = %+v", second)
	}

	sized := decode[orderPage](t, s.must(http.StatusOK, http.MethodGet, "/v1/orders?page_size=50", s.alice, nil))
	if sized.PageSize != 20 || len(sized.Results) != 4 || sized.Next != nil {
		t.Fatalf("capped page = %+v", sized)
	}

	s.must(http.StatusNotFound, http.MethodGet, "/v1/orders?page=3", s.alice, nil)
	s.must(http.StatusBadRequest, http.MethodGet, "/v1/orders?page=abc", s.alice, nil)
}

func TestBusFacilityFilter(t *testing.T) {
	s := newServer(t)
	wifi := decode[idBody](t, s.must(http.StatusCreated, http.MethodPost, "/v1/facilities", s.staff, map[string]any{"name": "Wifi"}))
	wc := decode[idBody](t, s.must(http.StatusCreated, http.MethodPost, "/v1/facilities", s.staff, map[string]any{"name": "WC"}))
	s.must(http.StatusCreated, http.MethodPost, "/v1/buses", s.staff, map[string]any{"num_seats": 10, "facilities": []uint64{wifi.ID}})
	s.must(http.StatusCreated, http.MethodPost, "/v1/buses", s.staff, map[string]any{"num_seats": 10, "facilities": []uint64{wifi.ID, wc.ID}})
	s.must(http.StatusCreated, http.MethodPost, "/v1/buses", s.staff, map[string]any{"num_seats": 10})

	type bus struct {
		ID         uint64   `json:"id"`
		Facilities []string `json:"facilities"`
	}
	all := decode[[]bus](t, s.must(http.StatusOK, http.MethodGet, "/v1/buses", s.alice, nil))
	if len(all) != 3 {
		t.Fatalf("all buses = %+v", all)
	}
	both := decode[[]bus](t, s.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/v1/buses?facilities=%d,%d", wifi.ID, wc.ID), s.alice, nil))
	if len(both) != 2 || both[0].ID != 1 || both[1].ID != 2 {
		t.Fatalf("wifi or wc = %+v, want buses 1 and 2 once each", both)
	}
	onlyWC := decode[[]bus](t, s.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/v1/buses?facilities=%d", wc.ID), s.alice, nil))
	if len(onlyWC) != 1 || onlyWC[0].ID != 2 {
		t.Fatalf("wc = %+v", onlyWC)
	}

	body := decode[errorBody](t, s.must(http.StatusBadRequest, http.MethodGet, "/v1/buses?facilities=1,x", s.alice, nil))
	if _, ok := body.Fields["facilities"]; !ok {
		t.Fatalf("fields = %v", body.Fields)
	}
}

func TestBusWrites(t *testing.T) {
	s := newServer(t)
	body := decode[errorBody](t, s.must(http.StatusBadRequest, http.MethodPost, "/v1/buses", s.staff, map[string]any{"num_seats": 0}))
	if _, ok := body.Fields["num_seats"]; !ok {
		t.Fatalf("fields = %v", body.Fields)
	}
	s.must(http.StatusNotFound, http.MethodPost, "/v1/buses", s.staff, map[string]any{"num_seats": 4, "facilities": []uint64{42}})

	b := decode[idBody](t, s.must(http.StatusCreated, http.MethodPost, "/v1/buses", s.staff, map[string]any{"info": "Old", "num_seats": 4}))
	path := fmt.Sprintf("/v1/buses/%d", b.ID)

	type detail struct {
		Info     *string `json:"info"`
		NumSeats int     `json:"num_seats"`
		IsSmall  bool    `json:"is_small"`
	}
	patched := decode[detail](t, s.must(http.StatusOK, http.MethodPatch, path, s.staff, map[string]any{"num_seats": 20}))
	if patched.Info == nil || *patched.Info != "Old" || patched.NumSeats != 20 || !patched.IsSmall {
		t.Fatalf("patched = %+v", patched)
	}
	put := decode[detail](t, s.must(http.StatusOK, http.MethodPut, path, s.staff, map[string]any{"num_seats": 50}))
	if put.Info != nil || put.IsSmall {
		t.Fatalf("put = %+v, want info cleared and a large bus", put)
	}
	s.must(http.StatusBadRequest, http.MethodPut, path, s.staff, map[string]any{"info": "x"})

	s.must(http.StatusNoContent, http.MethodDelete, path, s.staff, nil)
	s.must(http.StatusNotFound, http.MethodGet, path, s.staff, nil)
	s.must(http.StatusBadRequest, http.MethodGet, "/v1/buses/abc", s.staff, nil)
}

func TestDeleteBusCascades(t *testing.T) {
	s := newServer(t)
	bus, trip := s.fixture(3)
	o := decode[idBody](t, s.must(http.StatusCreated, http.MethodPost, "/v1/orders", s.alice, order([]int{1}, trip)))

	s.must(http.StatusNoContent, http.MethodDelete, fmt.Sprintf("/v1/buses/%d", bus), s.staff, nil)
	s.must(http.StatusNotFound, http.MethodGet, fmt.Sprintf("/v1/trips/%d", trip), s.alice, nil)

	got := decode[struct {
		Tickets []idBody `json:"tickets"`
	}](t, s.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/v1/orders/%d", o.ID), s.alice, nil))
	if len(got.Tickets) != 0 {
		t.Fatalf("tickets = %+v, want none after the bus was removed", got.Tickets)
	}
}

func TestTripWrites(t *testing.T) {
	s := newServer(t)
	bus, trip := s.fixture(3)

	body := decode[errorBody](t, s.must(http.StatusBadRequest, http.MethodPost, "/v1/trips", s.staff,
		map[string]any{"destination": "Lviv", "departure": "2030-05-01T10:00:00Z", "bus": bus}))
	if _, ok := body.Fields["source"]; !ok {
		t.Fatalf("fields = %v", body.Fields)
	}
	s.must(http.StatusNotFound, http.MethodPost, "/v1/trips", s.staff,
		map[string]any{"source": "A", "destination": "B", "departure": "2030-05-01T10:00:00Z", "bus": 77})
	s.must(http.StatusBadRequest, http.MethodPost, "/v1/trips", s.staff,
		map[string]any{"source": "A", "destination": "B", "departure": "tomorrow", "bus": bus})

	path := fmt.Sprintf("/v1/trips/%d", trip)
	patched := decode[struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
		Departure   string `json:"departure"`
	}](t, s.must(http.StatusOK, http.MethodPatch, path, s.staff, map[string]any{"departure": "2030-05-02T12:00:00+02:00"}))
	if patched.Source != "Kyiv" || patched.Departure != "2030-05-02T10:00:00Z" {
		t.Fatalf("patched = %+v", patched)
	}
	s.must(http.StatusNoContent, http.MethodDelete, path, s.staff, nil)
	s.must(http.StatusNotFound, http.MethodDelete, path, s.staff, nil)
}

func TestTripFilters(t *testing.T) {
	s := newServer(t)
	bus, _ := s.fixture(3)
	s.must(http.StatusCreated, http.MethodPost, "/v1/trips", s.staff,
		map[string]any{"source": "Odesa", "destination": "Kyiv", "departure": "2030-05-03T08:00:00Z", "bus": bus})

	for _, tc := range []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?source=kyi", 1},
		{"?destination=KYIV", 1},
		{"?date=2030-05-01", 1},
		{"?date=2030-05-03&source=odesa", 1},
		{"?date=2031-01-01", 0},
	} {
		got := decode[[]idBody](t, s.must(http.StatusOK, http.MethodGet, "/v1/trips"+tc.query, s.alice, nil))
		if len(got) != tc.want {
			t.Errorf("trips%s = %d results, want %d", tc.query, len(got), tc.want)
		}
	}
	body := decode[errorBody](t, s.must(http.StatusBadRequest, http.MethodGet, "/v1/trips?date=05/01/2030", s.alice, nil))
	if _, ok := body.Fields["date"]; !ok {
		t.Fatalf("fields = %v", body.Fields)
	}
}

func TestFacilityWrites(t *testing.T) {
	s := newServer(t)
	f := decode[idBody](t, s.must(http.StatusCreated, http.MethodPost, "/v1/facilities", s.staff, map[string]any{"name": "Wifi"}))
	s.must(http.StatusConflict, http.MethodPost, "/v1/facilities", s.staff, map[string]any{"name": "Wifi"})
	s.must(http.StatusBadRequest, http.MethodPost, "/v1/facilities", s.staff, map[string]any{"name": "  "})

	path := fmt.Sprintf("/v1/facilities/%d", f.ID)
	renamed := decode[model.Facility](t, s.must(http.StatusOK, http.MethodPut, path, s.staff, map[string]any{"name": "Wi-Fi"}))
	if renamed.Name != "Wi-Fi" {
		t.Fatalf("renamed = %+v", renamed)
	}
	s.must(http.StatusOK, http.MethodGet, path, s.alice, nil)
	s.must(http.StatusNoContent, http.MethodDelete, path, s.staff, nil)
	s.must(http.StatusNotFound, http.MethodGet, path, s.alice, nil)
}

func upload(t *testing.T, s *server, path, token string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestUploadBusImage(t *testing.T) {
	s := newServer(t)
	bus, _ := s.fixture(3)
	path := fmt.Sprintf("/v1/buses/%d/upload-image", bus)

	if rec := upload(t, s, path, s.alice, pngHeader); rec.Code != http.StatusForbidden {
		t.Fatalf("user upload = %d, want 403", rec.Code)
	}
	rec := upload(t, s, path, s.staff, []byte("plain text, not an image"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("text upload = %d, want 400", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Fields["image"] == "" {
		t.Fatalf("fields = %v", body.Fields)
	}

	rec = upload(t, s, path, s.staff, pngHeader)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Image *string `json:"image"`
	}](t, rec)
	if got.Image == nil || !strings.HasPrefix(*got.Image, "/media/uploads/buses/coach-") {
		t.Fatalf("image = %v", got.Image)
	}
	served := s.must(http.StatusOK, http.MethodGet, *got.Image, "", nil)
	if !bytes.Equal(served.Body.Bytes(), pngHeader) {
		t.Fatalf("served image differs from upload")
	}
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)

	weak := decode[errorBody](t, s.must(http.StatusBadRequest, http.MethodPost, "/v1/auth/register", "",
		map[string]any{"email": "carol@example.com", "password": "short"}))
	if _, ok := weak.Fields["password"]; !ok {
		t.Fatalf("fields = %v", weak.Fields)
	}

	type tokens struct {
		User struct {
			ID    uint64 `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
		Refresh struct {
			Token string `json:"token"`
		} `json:"refresh"`
	}
	reg := decode[tokens](t, s.must(http.StatusCreated, http.MethodPost, "/v1/auth/register", "",
		map[string]any{"email": " Carol@Example.com ", "password": "long-enough", "role": "STAFF"}))
	if reg.User.Email != "carol@example.com" || reg.User.Role != model.RoleUser {
		t.Fatalf("registered = %+v, want a lower-cased USER", reg.User)
	}
	s.must(http.StatusConflict, http.MethodPost, "/v1/auth/register", "",
		map[string]any{"email": "carol@example.com", "password": "long-enough"})

	s.must(http.StatusUnauthorized, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "carol@example.com", "password": "wrong-password"})
	login := decode[tokens](t, s.must(http.StatusOK, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "CAROL@example.com", "password": "long-enough"}))

	me := decode[struct {
		Email string `json:"email"`
	}](t, s.must(http.StatusOK, http.MethodGet, "/v1/me", login.Access.Token, nil))
	if me.Email != "carol@example.com" {
		t.Fatalf("me = %+v", me)
	}
	s.must(http.StatusForbidden, http.MethodPost, "/v1/buses", login.Access.Token, map[string]any{"num_seats": 3})

	refreshed := decode[tokens](t, s.must(http.StatusOK, http.MethodPost, "/v1/auth/refresh", "",
		map[string]any{"refresh_token": login.Refresh.Token}))
	s.must(http.StatusUnauthorized, http.MethodPost, "/v1/auth/refresh", "",
		map[string]any{"refresh_token": login.Refresh.Token})

	s.must(http.StatusNoContent, http.MethodPost, "/v1/auth/logout", "",
		map[string]any{"refresh_token": refreshed.Refresh.Token})
	s.must(http.StatusUnauthorized, http.MethodPost, "/v1/auth/refresh", "",
		map[string]any{"refresh_token": refreshed.Refresh.Token})

	s.must(http.StatusNoContent, http.MethodPost, "/v1/auth/logout", reg.Access.Token, nil)
	s.must(http.StatusUnauthorized, http.MethodPost, "/v1/auth/refresh", "",
		map[string]any{"refresh_token": reg.Refresh.Token})
	s.must(http.StatusBadRequest, http.MethodPost, "/v1/auth/logout", "", nil)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	s := newServer(t)
	s.must(http.StatusCreated, http.MethodPost, "/v1/auth/register", "",
		map[string]any{"email": "dave@example.com", "password": "long-enough"})
	login := decode[struct {
		Refresh struct {
			Token string `json:"token"`
		} `json:"refresh"`
	}](t, s.must(http.StatusOK, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "dave@example.com", "password": "long-enough"}))

	const racers = 8
	codes := make([]int, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = s.do(http.MethodPost, "/v1/auth/refresh", "",
				map[string]any{"refresh_token": login.Refresh.Token}).Code
		}()
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusUnauthorized:
		default:
			t.Fatalf("refresh answered %d", code)
		}
	}
	if ok != 1 {
		t.Fatalf("%d concurrent refreshes succeeded, want 1 (codes %v)", ok, codes)
	}
}

func TestWritesRespectColumnLimits(t *testing.T) {
	s := newServer(t)
	bus, _ := s.fixture(10)

	long := strings.Repeat("x", 64)
	rec := s.must(http.StatusBadRequest, http.MethodPost, "/v1/trips", s.staff,
		map[string]any{"source": long, "destination": "Lviv", "departure": "2030-05-01T10:00:00Z", "bus": bus})
	if msg := decode[errorBody](t, rec).Fields["source"]; !strings.Contains(msg, "at most 63") {
		t.Fatalf("source message = %q", msg)
	}
	rec = s.must(http.StatusBadRequest, http.MethodPatch, fmt.Sprintf("/v1/buses/%d", bus), s.staff,
		map[string]any{"num_seats": 1 << 40})
	if _, ok := decode[errorBody](t, rec).Fields["num_seats"]; !ok {
		t.Fatalf("oversized bus accepted: %s", rec.Body.String())
	}
}
