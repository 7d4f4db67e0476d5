package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/restrobook/internal/allocation"
)

type Restaurant struct {
	ID        int64
	Name      string
	City      string
	Area      string
	Cuisine   string
	CreatedAt time.Time
}

// Slot is one bookable date+time of a restaurant. Version changes on every
// committed booking and lets storage detect a stale write.
type Slot struct {
	ID           int64
	RestaurantID int64
	Date         time.Time
	Time         string // HH:MM:SS, restaurant-local
	Version      int64
	Inventory    allocation.Snapshot
	CreatedAt    time.Time
}

type Booking struct {
	ID            int64
	Reference     uuid.UUID
	CustomerEmail string
	RestaurantID  int64
	SlotID        int64
	PartySize     int
	Tables        []allocation.Usage
	CreatedAt     time.Time
}

// Seats is the number of seats the booking holds.
func (b Booking) Seats() int {
	n := 0
	for _, t := range b.Tables {
		n += t.Capacity * t.Count
	}
	return n
}

type BookRequest struct {
	SlotID        int64
	RestaurantID  int64
	CustomerEmail string
	PartySize     int
}

// Store is the storage the coordinator runs against.
type Store interface {
	GetRestaurant(ctx context.Context, id int64) (Restaurant, error)
	// GetSlot returns internaltypes.ErrNotFound when the slot does not exist
	// or does not belong to restaurantID.
	GetSlot(ctx context.Context, id, restaurantID int64) (Slot, error)
	// CommitSlotAndBooking writes slot.Inventory and inserts b as one unit.
	// It returns internaltypes.ErrConflict when the stored slot no longer has
	// slot.Version. On success b.ID is set.
	CommitSlotAndBooking(ctx context.Context, slot Slot, b *Booking) error
}

// Locker grants exclusive access to a key. Acquire blocks until the key is
// free or ctx is done; the returned release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type Publisher interface {
	Publish(ctx context.Context, subject string, msg []byte) error
}
