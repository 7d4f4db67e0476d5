package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/example/restrobook/internal/allocation"
	"github.com/example/restrobook/internal/internaltypes"
)

const SubjectBookingCreated = "restrobook.booking.created"

// Coordinator books tables for a slot. All read-allocate-write work on a slot
// happens while holding that slot's lock.
type Coordinator struct {
	store    Store
	locks    Locker
	events   Publisher
	logger   hclog.Logger
	now      func() time.Time
	lockWait time.Duration
}

type Option func(*Coordinator)

// WithPublisher makes the coordinator announce committed bookings.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.events = p }
}

// WithLockWait bounds how long Book waits for a busy slot.
func WithLockWait(d time.Duration) Option {
	return func(c *Coordinator) { c.lockWait = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(store Store, locks Locker, logger hclog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	c := &Coordinator{
		store:  store,
		locks:  locks,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func SlotKey(slotID int64) string {
	return "slot:" + strconv.FormatInt(slotID, 10)
}

func (c *Coordinator) Book(ctx context.Context, req BookRequest) (Booking, error) {
	if err := validate(req.PartySize); err != nil {
		return Booking{}, err
	}
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if req.CustomerEmail == "" {
		return Booking{}, fmt.Errorf("%w: customer email required", internaltypes.ErrInvalidRequest)
	}
	if err := c.resolve(ctx, req.SlotID, req.RestaurantID); err != nil {
		return Booking{}, err
	}

	lockCtx := ctx
	if c.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, c.lockWait)
		defer cancel()
	}
	release, err := c.locks.Acquire(lockCtx, SlotKey(req.SlotID))
	if err != nil {
		return Booking{}, fmt.Errorf("acquire slot %d: %w", req.SlotID, err)
	}
	defer release()

	b, err := c.bookLocked(ctx, req)
	if errors.Is(err, internaltypes.ErrConflict) {
		c.logger.Warn("commit conflict, retrying", "slot_id", req.SlotID)
		b, err = c.bookLocked(ctx, req)
	}
	if err != nil {
		return Booking{}, err
	}

	c.logger.Info("booking committed",
		"slot_id", b.SlotID, "reference", b.Reference, "party_size", b.PartySize, "seats", b.Seats())
	c.publish(ctx, b)
	return b, nil
}

// Quote runs the allocation against the slot's current inventory without
// taking the lock or writing anything.
func (c *Coordinator) Quote(ctx context.Context, slotID, restaurantID int64, partySize int) (allocation.Allocation, error) {
	if err := validate(partySize); err != nil {
		return allocation.Allocation{}, err
	}
	if _, err := c.store.GetRestaurant(ctx, restaurantID); err != nil {
		return allocation.Allocation{}, err
	}
	slot, err := c.store.GetSlot(ctx, slotID, restaurantID)
	if err != nil {
		return allocation.Allocation{}, err
	}
	return allocate(slot, partySize)
}

func (c *Coordinator) bookLocked(ctx context.Context, req BookRequest) (Booking, error) {
	slot, err := c.store.GetSlot(ctx, req.SlotID, req.RestaurantID)
	if err != nil {
		return Booking{}, err
	}
	a, err := allocate(slot, req.PartySize)
	if err != nil {
		return Booking{}, err
	}
	next, usages, err := slot.Inventory.Apply(a.Selections)
	if err != nil {
		return Booking{}, err
	}

	b := Booking{
		Reference:     uuid.New(),
		CustomerEmail: req.CustomerEmail,
		RestaurantID:  req.RestaurantID,
		SlotID:        req.SlotID,
		PartySize:     req.PartySize,
		Tables:        usages,
		CreatedAt:     c.now().UTC(),
	}
	slot.Inventory = next
	if err := c.store.CommitSlotAndBooking(ctx, slot, &b); err != nil {
		return Booking{}, fmt.Errorf("commit slot %d: %w", req.SlotID, err)
	}
	return b, nil
}

func (c *Coordinator) resolve(ctx context.Context, slotID, restaurantID int64) error {
	if _, err := c.store.GetRestaurant(ctx, restaurantID); err != nil {
		return fmt.Errorf("restaurant %d: %w", restaurantID, err)
	}
	if _, err := c.store.GetSlot(ctx, slotID, restaurantID); err != nil {
		return fmt.Errorf("slot %d: %w", slotID, err)
	}
	return nil
}

func (c *Coordinator) publish(ctx context.Context, b Booking) {
	if c.events == nil {
		return
	}
	msg, err := json.Marshal(newBookingEvent(b))
	if err != nil {
		c.logger.Error("cannot encode booking event", "reference", b.Reference, "error", err)
		return
	}
	if err := c.events.Publish(ctx, SubjectBookingCreated, msg); err != nil {
		c.logger.Error("cannot publish booking event", "reference", b.Reference, "error", err)
	}
}

func validate(partySize int) error {
	if partySize <= 0 {
		return fmt.Errorf("%w: party size must be > 0 (got %d)", internaltypes.ErrInvalidRequest, partySize)
	}
	return nil
}

func allocate(slot Slot, partySize int) (allocation.Allocation, error) {
	a, err := allocation.Allocate(partySize, slot.Inventory)
	if errors.Is(err, allocation.ErrInfeasible) {
		return allocation.Allocation{}, fmt.Errorf("%w: slot %d has %d free seats, party of %d",
			internaltypes.ErrInsufficientCapacity, slot.ID, slot.Inventory.Seats(), partySize)
	}
	return a, err
}
