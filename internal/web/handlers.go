package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/restrobook/internal/allocation"
	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/internaltypes"
)

type slotSummary struct {
	ID   int64  `json:"id"`
	Time string `json:"time"`
}

type daySlots struct {
	Date  string        `json:"date"`
	Slots []slotSummary `json:"slots"`
}

type slotsResponse struct {
	RestaurantID int64      `json:"restaurant_id"`
	Dates        []daySlots `json:"dates"`
}

type tableResponse struct {
	TableID           int64 `json:"table_id"`
	Capacity          int   `json:"capacity"`
	Quantity          int   `json:"quantity"`
	RemainingQuantity int   `json:"remaining_quantity"`
}

type slotResponse struct {
	ID           int64           `json:"id"`
	RestaurantID int64           `json:"restaurant_id"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	FreeSeats    int             `json:"free_seats"`
	Tables       []tableResponse `json:"tables"`
}

type partyRequest struct {
	CustomerEmail string `json:"customer_email"`
	NumPeople     int    `json:"num_people"`
}

type selectionResponse struct {
	Capacity int `json:"capacity"`
	Count    int `json:"count"`
}

type quoteResponse struct {
	NumPeople  int                 `json:"num_people"`
	Seats      int                 `json:"seats"`
	Wastage    int                 `json:"wastage"`
	TablesUsed int                 `json:"tables_used"`
	Tables     []selectionResponse `json:"tables"`
}

type bookedTable struct {
	TableID           int64 `json:"table_id"`
	Capacity          int   `json:"capacity"`
	AllocatedQuantity int   `json:"allocated_quantity"`
}

type bookingResponse struct {
	ID            int64         `json:"id"`
	Reference     string        `json:"reference"`
	CustomerEmail string        `json:"customer_email"`
	RestaurantID  int64         `json:"restaurant_id"`
	SlotID        int64         `json:"slot_id"`
	NumOfPeople   int           `json:"num_of_people"`
	Seats         int           `json:"seats"`
	Tables        []bookedTable `json:"tables"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := pathID(r, "restaurantID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.Catalog.GetRestaurant(r.Context(), restaurantID); err != nil {
		s.fail(w, r, err)
		return
	}
	slots, err := s.Catalog.ListSlotsByRestaurant(r.Context(), restaurantID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := slotsResponse{RestaurantID: restaurantID, Dates: []daySlots{}}
	for _, day := range booking.GroupByDate(slots) {
		d := daySlots{Date: day.Date.Format(time.DateOnly)}
		for _, slot := range day.Slots {
			d.Slots = append(d.Slots, slotSummary{ID: slot.ID, Time: slot.Time})
		}
		resp.Dates = append(resp.Dates, d)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	restaurantID, slotID, err := slotPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	slot, err := s.Catalog.GetSlot(r.Context(), slotID, restaurantID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := slotResponse{
		ID:           slot.ID,
		RestaurantID: slot.RestaurantID,
		Date:         slot.Date.Format(time.DateOnly),
		Time:         slot.Time,
		FreeSeats:    slot.Inventory.Seats(),
		Tables:       []tableResponse{},
	}
	for _, t := range slot.Inventory {
		resp.Tables = append(resp.Tables, tableResponse{
			TableID:           t.TableID,
			Capacity:          t.Capacity,
			Quantity:          t.Quantity,
			RemainingQuantity: t.Remaining,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	restaurantID, slotID, err := slotPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req partyRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	a, err := s.Booker.Quote(r.Context(), slotID, restaurantID, req.NumPeople)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(a))
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	restaurantID, slotID, err := slotPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req partyRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	b, err := s.Booker.Book(r.Context(), booking.BookRequest{
		SlotID:        slotID,
		RestaurantID:  restaurantID,
		CustomerEmail: req.CustomerEmail,
		PartySize:     req.NumPeople,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBookingResponse(b))
}

func newQuoteResponse(a allocation.Allocation) quoteResponse {
	resp := quoteResponse{
		NumPeople:  a.PartySize,
		Seats:      a.Seats,
		Wastage:    a.Wastage(),
		TablesUsed: a.Tables,
		Tables:     []selectionResponse{},
	}
	for _, sel := range a.Selections {
		resp.Tables = append(resp.Tables, selectionResponse{Capacity: sel.Capacity, Count: sel.Count})
	}
	return resp
}

func newBookingResponse(b booking.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID,
		Reference:     b.Reference.String(),
		CustomerEmail: b.CustomerEmail,
		RestaurantID:  b.RestaurantID,
		SlotID:        b.SlotID,
		NumOfPeople:   b.PartySize,
		Seats:         b.Seats(),
		CreatedAt:     b.CreatedAt,
	}
	for _, u := range b.Tables {
		resp.Tables = append(resp.Tables, bookedTable{TableID: u.TableID, Capacity: u.Capacity, AllocatedQuantity: u.Count})
	}
	return resp
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", internaltypes.ErrInvalidRequest, name)
	}
	return id, nil
}

func slotPath(r *http.Request) (restaurantID, slotID int64, err error) {
	if restaurantID, err = pathID(r, "restaurantID"); err != nil {
		return 0, 0, err
	}
	if slotID, err = pathID(r, "slotID"); err != nil {
		return 0, 0, err
	}
	return restaurantID, slotID, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", internaltypes.ErrInvalidRequest, err)
	}
	return nil
}

// statusClientClosedRequest is nginx's code for a client that went away
// before the response was written.
const statusClientClosedRequest = 499

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, internaltypes.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, internaltypes.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internaltypes.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, internaltypes.ErrInsufficientCapacity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == statusClientClosedRequest {
		s.Logger.Debug("client went away", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "request canceled")
		return
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
			writeError(w, status, "slot is busy, try again")
			return
		}
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
