package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/restrobook/internal/allocation"
	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/db"
	"github.com/example/restrobook/internal/internaltypes"
)

// Table is one table type a restaurant owns. New slots start with Quantity
// free tables of it.
type Table struct {
	ID           int64
	RestaurantID int64
	Capacity     int
	Quantity     int
	CreatedAt    time.Time
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

var _ booking.Store = (*Repo)(nil)

func (r *Repo) CreateRestaurant(ctx context.Context, rest booking.Restaurant) (booking.Restaurant, error) {
	rest.Name = strings.TrimSpace(rest.Name)
	if rest.Name == "" {
		return booking.Restaurant{}, fmt.Errorf("%w: restaurant name required", internaltypes.ErrInvalidRequest)
	}
	err := r.db.QueryRow(ctx, `
INSERT INTO restaurants(name,city,area,cuisine)
VALUES ($1,$2,$3,$4)
RETURNING id, created_at`,
		rest.Name, rest.City, rest.Area, rest.Cuisine,
	).Scan(&rest.ID, &rest.CreatedAt)
	if err != nil {
		return booking.Restaurant{}, db.WrapWriteError(err)
	}
	return rest, nil
}

func (r *Repo) GetRestaurant(ctx context.Context, id int64) (booking.Restaurant, error) {
	var rest booking.Restaurant
	err := r.db.QueryRow(ctx, `
SELECT id,name,city,area,cuisine,created_at
FROM restaurants
WHERE id=$1`, id).
		Scan(&rest.ID, &rest.Name, &rest.City, &rest.Area, &rest.Cuisine, &rest.CreatedAt)
	if err != nil {
		return booking.Restaurant{}, db.WrapNotFound(err)
	}
	return rest, nil
}

func (r *Repo) AddTable(ctx context.Context, restaurantID int64, capacity, quantity int) (Table, error) {
	if _, err := allocation.NewTableType(0, capacity, quantity, quantity); err != nil {
		return Table{}, err
	}
	t := Table{RestaurantID: restaurantID, Capacity: capacity, Quantity: quantity}
	err := r.db.QueryRow(ctx, `
INSERT INTO tables(restaurant_id,capacity,quantity)
VALUES ($1,$2,$3)
RETURNING id, created_at`, restaurantID, capacity, quantity).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Table{}, db.WrapWriteError(err)
	}
	return t, nil
}

func (r *Repo) ListTables(ctx context.Context, restaurantID int64) ([]Table, error) {
	rows, err := r.db.Query(ctx, `
SELECT id,restaurant_id,capacity,quantity,created_at
FROM tables
WHERE restaurant_id=$1
ORDER BY id`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.RestaurantID, &t.Capacity, &t.Quantity, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateSlot opens a slot and copies the restaurant's current tables into its
// inventory, all free. Later table changes do not touch existing slots.
func (r *Repo) CreateSlot(ctx context.Context, restaurantID int64, date time.Time, clock string) (booking.Slot, error) {
	clock, err := normalizeClock(clock)
	if err != nil {
		return booking.Slot{}, err
	}
	if _, err := r.GetRestaurant(ctx, restaurantID); err != nil {
		return booking.Slot{}, err
	}

	var id int64
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
INSERT INTO slots(restaurant_id,slot_date,slot_time)
VALUES ($1,$2,$3::text::time)
RETURNING id`, restaurantID, date, clock).Scan(&id); err != nil {
			return db.WrapWriteError(err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO slot_tables(slot_id,table_id,position,capacity,quantity,remaining_quantity)
SELECT $1, id, row_number() OVER (ORDER BY id), capacity, quantity, quantity
FROM tables
WHERE restaurant_id=$2`, id, restaurantID)
		return db.WrapWriteError(err)
	})
	if err != nil {
		return booking.Slot{}, err
	}
	return r.GetSlot(ctx, id, restaurantID)
}

const slotColumns = `s.id, s.restaurant_id, s.slot_date, to_char(s.slot_time, 'HH24:MI:SS'), s.version, s.created_at`

// GetSlot reads the slot and its inventory in one statement so the version
// and the remaining quantities come from the same snapshot.
func (r *Repo) GetSlot(ctx context.Context, id, restaurantID int64) (booking.Slot, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+slotColumns+`, st.table_id, st.capacity, st.quantity, st.remaining_quantity
FROM slots s
LEFT JOIN slot_tables st ON st.slot_id = s.id
WHERE s.id=$1 AND s.restaurant_id=$2
ORDER BY st.position`, id, restaurantID)
	if err != nil {
		return booking.Slot{}, err
	}
	defer rows.Close()

	var (
		slot  booking.Slot
		inv   []allocation.TableType
		found bool
	)
	for rows.Next() {
		var row slotTableRow
		if err := rows.Scan(&slot.ID, &slot.RestaurantID, &slot.Date, &slot.Time, &slot.Version, &slot.CreatedAt,
			&row.tableID, &row.capacity, &row.quantity, &row.remaining); err != nil {
			return booking.Slot{}, err
		}
		found = true
		if row.tableID == nil {
			continue
		}
		t, err := row.tableType()
		if err != nil {
			return booking.Slot{}, fmt.Errorf("slot %d inventory: %w", id, err)
		}
		inv = append(inv, t)
	}
	if err := rows.Err(); err != nil {
		return booking.Slot{}, err
	}
	if !found {
		return booking.Slot{}, internaltypes.ErrNotFound
	}
	if slot.Inventory, err = allocation.NewSnapshot(inv...); err != nil {
		return booking.Slot{}, fmt.Errorf("slot %d inventory: %w", id, err)
	}
	return slot, nil
}

// slotTableRow is one LEFT JOINed slot_tables row; all fields are nil for a
// slot without tables.
type slotTableRow struct {
	tableID                       *int64
	capacity, quantity, remaining *int
}

func (r slotTableRow) tableType() (allocation.TableType, error) {
	if r.capacity == nil || r.quantity == nil || r.remaining == nil {
		return allocation.TableType{}, fmt.Errorf("%w: table %d has missing columns", internaltypes.ErrInvalidRequest, *r.tableID)
	}
	return allocation.NewTableType(*r.tableID, *r.capacity, *r.quantity, *r.remaining)
}

// ListSlotsByRestaurant returns the restaurant's slots ordered by date and
// time, without inventory.
func (r *Repo) ListSlotsByRestaurant(ctx context.Context, restaurantID int64) ([]booking.Slot, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+slotColumns+`
FROM slots s
WHERE s.restaurant_id=$1
ORDER BY s.slot_date, s.slot_time`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Slot
	for rows.Next() {
		var s booking.Slot
		if err := rows.Scan(&s.ID, &s.RestaurantID, &s.Date, &s.Time, &s.Version, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CommitSlotAndBooking bumps the slot version, writes the new remaining
// quantities and inserts the booking in one transaction. A version that moved
// since slot was read yields internaltypes.ErrConflict and nothing is written.
func (r *Repo) CommitSlotAndBooking(ctx context.Context, slot booking.Slot, b *booking.Booking) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE slots SET version=version+1 WHERE id=$1 AND version=$2`, slot.ID, slot.Version)
		if err != nil {
			return db.WrapWriteError(err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: slot %d is no longer at version %d", internaltypes.ErrConflict, slot.ID, slot.Version)
		}

		for _, t := range slot.Inventory {
			tag, err := tx.Exec(ctx, `
UPDATE slot_tables SET remaining_quantity=$3
WHERE slot_id=$1 AND table_id=$2`, slot.ID, t.TableID, t.Remaining)
			if err != nil {
				return db.WrapWriteError(err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: table %d not in slot %d", internaltypes.ErrConflict, t.TableID, slot.ID)
			}
		}

		if err := tx.QueryRow(ctx, `
INSERT INTO bookings(reference,customer_email,restaurant_id,slot_id,num_of_people,created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`,
			b.Reference, b.CustomerEmail, b.RestaurantID, b.SlotID, b.PartySize, b.CreatedAt,
		).Scan(&b.ID); err != nil {
			return db.WrapWriteError(err)
		}

		batch := &pgx.Batch{}
		for _, u := range b.Tables {
			batch.Queue(`
INSERT INTO booking_tables(booking_id,table_id,capacity,allocated_quantity)
VALUES ($1,$2,$3,$4)`, b.ID, u.TableID, u.Capacity, u.Count)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return db.WrapWriteError(err)
		}
		return nil
	})
}

func (r *Repo) ListBookingsBySlot(ctx context.Context, slotID int64) ([]booking.Booking, error) {
	rows, err := r.db.Query(ctx, `
SELECT b.id, b.reference, b.customer_email, b.restaurant_id, b.slot_id, b.num_of_people, b.created_at,
       bt.table_id, bt.capacity, bt.allocated_quantity
FROM bookings b
JOIN booking_tables bt ON bt.booking_id = b.id
WHERE b.slot_id=$1
ORDER BY b.id, bt.capacity DESC, bt.table_id`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		var (
			b booking.Booking
			u allocation.Usage
		)
		if err := rows.Scan(&b.ID, &b.Reference, &b.CustomerEmail, &b.RestaurantID, &b.SlotID, &b.PartySize, &b.CreatedAt,
			&u.TableID, &u.Capacity, &u.Count); err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].ID == b.ID {
			out[n-1].Tables = append(out[n-1].Tables, u)
			continue
		}
		b.Tables = []allocation.Usage{u}
		out = append(out, b)
	}
	return out, rows.Err()
}

// normalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func normalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.TimeOnly), nil
		}
	}
	return "", fmt.Errorf("%w: slot time %q is not HH:MM[:SS]", internaltypes.ErrInvalidRequest, s)
}
