package booking

import (
	"time"

	"github.com/google/uuid"
)

type bookingEvent struct {
	Reference     uuid.UUID    `json:"reference"`
	BookingID     int64        `json:"booking_id"`
	RestaurantID  int64        `json:"restaurant_id"`
	SlotID        int64        `json:"slot_id"`
	CustomerEmail string       `json:"customer_email"`
	NumOfPeople   int          `json:"num_of_people"`
	Tables        []eventTable `json:"tables"`
	CreatedAt     time.Time    `json:"created_at"`
}

type eventTable struct {
	TableID           int64 `json:"table_id"`
	Capacity          int   `json:"capacity"`
	AllocatedQuantity int   `json:"allocated_quantity"`
}

func newBookingEvent(b Booking) bookingEvent {
	ev := bookingEvent{
		Reference:     b.Reference,
		BookingID:     b.ID,
		RestaurantID:  b.RestaurantID,
		SlotID:        b.SlotID,
		CustomerEmail: b.CustomerEmail,
		NumOfPeople:   b.PartySize,
		CreatedAt:     b.CreatedAt,
	}
	for _, t := range b.Tables {
		ev.Tables = append(ev.Tables, eventTable{TableID: t.TableID, Capacity: t.Capacity, AllocatedQuantity: t.Count})
	}
	return ev
}
