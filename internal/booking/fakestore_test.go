package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/restrobook/internal/allocation"
	"github.com/example/restrobook/internal/internaltypes"
)

var errInjected = errors.New("injected failure")

// fakeStore keeps everything in memory. Commits stage the inventory write,
// then the booking write, and only publish both if neither step failed.
type fakeStore struct {
	mu          sync.Mutex
	restaurants map[int64]Restaurant
	slots       map[int64]Slot
	bookings    []Booking
	nextID      int64

	getSlotCalls int
	commitCalls  int

	// conflicts makes the next N commits report ErrConflict.
	conflicts int
	// failBeforeBookingWrite fails a commit after the inventory was staged.
	failBeforeBookingWrite bool
	// commitDelay widens the window between read and write.
	commitDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		restaurants: make(map[int64]Restaurant),
		slots:       make(map[int64]Slot),
	}
}

func (f *fakeStore) addRestaurant(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restaurants[id] = Restaurant{ID: id, Name: "r"}
}

func (f *fakeStore) addSlot(id, restaurantID int64, inv ...allocation.TableType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[id] = Slot{ID: id, RestaurantID: restaurantID, Time: "19:00:00", Inventory: allocation.Snapshot(inv)}
}

func (f *fakeStore) inventory(slotID int64) allocation.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[slotID].Inventory.Clone()
}

func (f *fakeStore) allBookings() []Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Booking(nil), f.bookings...)
}

func (f *fakeStore) calls() (getSlot, commit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getSlotCalls, f.commitCalls
}

func (f *fakeStore) GetRestaurant(_ context.Context, id int64) (Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.restaurants[id]
	if !ok {
		return Restaurant{}, internaltypes.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) GetSlot(_ context.Context, id, restaurantID int64) (Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getSlotCalls++
	s, ok := f.slots[id]
	if !ok || s.RestaurantID != restaurantID {
		return Slot{}, internaltypes.ErrNotFound
	}
	s.Inventory = s.Inventory.Clone()
	return s, nil
}

func (f *fakeStore) CommitSlotAndBooking(_ context.Context, slot Slot, b *Booking) error {
	if f.commitDelay > 0 {
		time.Sleep(f.commitDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++

	cur, ok := f.slots[slot.ID]
	if !ok {
		return internaltypes.ErrNotFound
	}
	if f.conflicts > 0 {
		f.conflicts--
		cur.Version++
		f.slots[slot.ID] = cur
		return internaltypes.ErrConflict
	}
	if cur.Version != slot.Version {
		return internaltypes.ErrConflict
	}

	staged := cur
	staged.Inventory = slot.Inventory.Clone()
	staged.Version++
	for _, t := range staged.Inventory {
		if err := t.Validate(); err != nil {
			return internaltypes.ErrConflict
		}
	}
	if f.failBeforeBookingWrite {
		return errInjected
	}

	f.nextID++
	b.ID = f.nextID
	f.slots[slot.ID] = staged
	f.bookings = append(f.bookings, *b)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	msgs     [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.msgs = append(p.msgs, msg)
	return p.err
}
