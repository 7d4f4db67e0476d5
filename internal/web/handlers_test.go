package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/restrobook/internal/allocation"
	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/internaltypes"
)

type memStore struct {
	mu          sync.Mutex
	restaurants map[int64]booking.Restaurant
	slots       map[int64]booking.Slot
	order       []int64
	bookings    []booking.Booking
}

func newMemStore() *memStore {
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	m := &memStore{
		restaurants: map[int64]booking.Restaurant{1: {ID: 1, Name: "Trattoria"}},
		slots:       map[int64]booking.Slot{},
	}
	m.add(booking.Slot{ID: 10, RestaurantID: 1, Date: day, Time: "19:00:00", Inventory: allocation.Snapshot{
		{TableID: 100, Capacity: 2, Quantity: 3, Remaining: 3},
		{TableID: 101, Capacity: 4, Quantity: 2, Remaining: 2},
	}})
	m.add(booking.Slot{ID: 11, RestaurantID: 1, Date: day, Time: "21:00:00"})
	m.add(booking.Slot{ID: 12, RestaurantID: 1, Date: day.AddDate(0, 0, 1), Time: "19:00:00"})
	return m
}

func (m *memStore) add(s booking.Slot) {
	m.slots[s.ID] = s
	m.order = append(m.order, s.ID)
}

func (m *memStore) GetRestaurant(_ context.Context, id int64) (booking.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.restaurants[id]
	if !ok {
		return booking.Restaurant{}, internaltypes.ErrNotFound
	}
	return r, nil
}

func (m *memStore) GetSlot(_ context.Context, id, restaurantID int64) (booking.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || s.RestaurantID != restaurantID {
		return booking.Slot{}, internaltypes.ErrNotFound
	}
	s.Inventory = s.Inventory.Clone()
	return s, nil
}

func (m *memStore) ListSlotsByRestaurant(_ context.Context, restaurantID int64) ([]booking.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Slot
	for _, id := range m.order {
		if s := m.slots[id]; s.RestaurantID == restaurantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CommitSlotAndBooking(_ context.Context, slot booking.Slot, b *booking.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.slots[slot.ID]
	if cur.Version != slot.Version {
		return internaltypes.ErrConflict
	}
	slot.Version++
	m.slots[slot.ID] = slot
	b.ID = int64(len(m.bookings) + 1)
	m.bookings = append(m.bookings, *b)
	return nil
}

func newTestServer(limits *ClientLimiter) (*memStore, http.Handler) {
	store := newMemStore()
	srv := &Server{
		Catalog: store,
		Booker:  booking.NewCoordinator(store, booking.NewSlotLocks(), nil),
		Limits:  limits,
	}
	return store, srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(nil)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestListSlotsGroupedByDate(t *testing.T) {
	_, h := newTestServer(nil)
	rec := do(t, h, http.MethodGet, "/restaurants/1/slots", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp slotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Dates, 2)
	assert.Equal(t, "2026-10-16", resp.Dates[0].Date)
	assert.Equal(t, []slotSummary{{ID: 10, Time: "19:00:00"}, {ID: 11, Time: "21:00:00"}}, resp.Dates[0].Slots)
	assert.Equal(t, "2026-10-17", resp.Dates[1].Date)

	rec = do(t, h, http.MethodGet, "/restaurants/9/slots", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSlot(t *testing.T) {
	_, h := newTestServer(nil)

	rec := do(t, h, http.MethodGet, "/restaurants/1/slots/10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp slotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 14, resp.FreeSeats)
	assert.Len(t, resp.Tables, 2)

	tests := []struct {
		path string
		code int
	}{
		{"/restaurants/2/slots/10", http.StatusNotFound},
		{"/restaurants/1/slots/99", http.StatusNotFound},
		{"/restaurants/1/slots/abc", http.StatusBadRequest},
		{"/restaurants/0/slots/10", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.code, do(t, h, http.MethodGet, tc.path, "").Code)
		})
	}
}

func TestQuote(t *testing.T) {
	store, h := newTestServer(nil)

	rec := do(t, h, http.MethodPost, "/restaurants/1/slots/10/quote", `{"num_people":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp quoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, quoteResponse{
		NumPeople:  5,
		Seats:      6,
		Wastage:    1,
		TablesUsed: 2,
		Tables:     []selectionResponse{{Capacity: 4, Count: 1}, {Capacity: 2, Count: 1}},
	}, resp)

	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPost, "/restaurants/1/slots/10/quote", `{"num_people":15}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/restaurants/1/slots/10/quote", `{"num_people":0}`).Code)
	assert.Empty(t, store.bookings)
}

func TestBook(t *testing.T) {
	store, h := newTestServer(nil)

	rec := do(t, h, http.MethodPost, "/restaurants/1/slots/10/bookings", `{"customer_email":"guest@example.com","num_people":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp bookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Reference)
	assert.Equal(t, 4, resp.Seats)
	assert.Equal(t, []bookedTable{{TableID: 101, Capacity: 4, AllocatedQuantity: 1}}, resp.Tables)

	slot, err := store.GetSlot(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.Inventory[1].Remaining)
}

func TestBookErrors(t *testing.T) {
	_, h := newTestServer(nil)
	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"tooLarge", "/restaurants/1/slots/10/bookings", `{"customer_email":"a@b.c","num_people":20}`, http.StatusUnprocessableEntity},
		{"zeroParty", "/restaurants/1/slots/10/bookings", `{"customer_email":"a@b.c","num_people":0}`, http.StatusBadRequest},
		{"noEmail", "/restaurants/1/slots/10/bookings", `{"num_people":2}`, http.StatusBadRequest},
		{"unknownField", "/restaurants/1/slots/10/bookings", `{"customer_email":"a@b.c","num_people":2,"table":1}`, http.StatusBadRequest},
		{"badJSON", "/restaurants/1/slots/10/bookings", `{`, http.StatusBadRequest},
		{"unknownSlot", "/restaurants/1/slots/99/bookings", `{"customer_email":"a@b.c","num_people":2}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestBookRateLimited(t *testing.T) {
	_, h := newTestServer(NewClientLimiter(0.001, 1))
	body := `{"customer_email":"a@b.c","num_people":2}`

	assert.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/restaurants/1/slots/10/bookings", body).Code)
	rec := do(t, h, http.MethodPost, "/restaurants/1/slots/10/bookings", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// quotes are not limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/restaurants/1/slots/10/quote", `{"num_people":2}`).Code)
}

func TestBookClientGoneWhileSlotBusy(t *testing.T) {
	var logs bytes.Buffer
	store := newMemStore()
	locks := booking.NewSlotLocks()
	srv := &Server{
		Catalog: store,
		Booker:  booking.NewCoordinator(store, locks, nil),
		Logger:  hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Debug}),
	}
	h := srv.Routes()

	release, err := locks.Acquire(context.Background(), booking.SlotKey(10))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/restaurants/1/slots/10/bookings",
		bytes.NewBufferString(`{"customer_email":"a@b.c","num_people":2}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, statusClientClosedRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.Empty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, logs.String(), "[DEBUG] client went away")
	assert.NotContains(t, logs.String(), "[ERROR]")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", internaltypes.ErrInvalidRequest), http.StatusBadRequest},
		{internaltypes.ErrNotFound, http.StatusNotFound},
		{internaltypes.ErrConflict, http.StatusConflict},
		{internaltypes.ErrInsufficientCapacity, http.StatusUnprocessableEntity},
		{fmt.Errorf("acquire slot 1: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{fmt.Errorf("acquire slot 1: %w", context.Canceled), statusClientClosedRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
