package allocation

import (
	"fmt"

	"github.com/example/restrobook/internal/internaltypes"
)

// TableType is a bucket of identical tables in one slot's inventory.
// Quantity is what the slot started with, Remaining is what is still free.
type TableType struct {
	TableID   int64
	Capacity  int
	Quantity  int
	Remaining int
}

func NewTableType(tableID int64, capacity, quantity, remaining int) (TableType, error) {
	t := TableType{TableID: tableID, Capacity: capacity, Quantity: quantity, Remaining: remaining}
	if err := t.Validate(); err != nil {
		return TableType{}, err
	}
	return t, nil
}

func (t TableType) Validate() error {
	if t.Capacity <= 0 {
		return fmt.Errorf("%w: table %d capacity must be > 0 (got %d)", internaltypes.ErrInvalidRequest, t.TableID, t.Capacity)
	}
	if t.Quantity < 0 {
		return fmt.Errorf("%w: table %d quantity must be >= 0 (got %d)", internaltypes.ErrInvalidRequest, t.TableID, t.Quantity)
	}
	if t.Remaining < 0 || t.Remaining > t.Quantity {
		return fmt.Errorf("%w: table %d remaining %d outside [0,%d]", internaltypes.ErrInvalidRequest, t.TableID, t.Remaining, t.Quantity)
	}
	return nil
}

// Snapshot is the table inventory of exactly one slot at one point in time.
// Methods never modify the receiver.
type Snapshot []TableType

func NewSnapshot(tables ...TableType) (Snapshot, error) {
	out := make(Snapshot, 0, len(tables))
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Seats is the number of seats still free across the snapshot.
func (s Snapshot) Seats() int {
	n := 0
	for _, t := range s {
		n += t.Capacity * t.Remaining
	}
	return n
}

func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Usage is how many tables of one table type a booking consumed.
type Usage struct {
	TableID  int64
	Capacity int
	Count    int
}

// Apply returns a copy of the snapshot with the selections taken out of it.
// A selection for a capacity shared by several entries is drawn from those
// entries in snapshot order. The returned usages list only entries that were
// actually drawn from.
func (s Snapshot) Apply(selections []Selection) (Snapshot, []Usage, error) {
	out := s.Clone()
	var usages []Usage
	for _, sel := range selections {
		need := sel.Count
		for i := range out {
			if need == 0 {
				break
			}
			if out[i].Capacity != sel.Capacity || out[i].Remaining == 0 {
				continue
			}
			take := min(need, out[i].Remaining)
			out[i].Remaining -= take
			need -= take
			usages = append(usages, Usage{TableID: out[i].TableID, Capacity: out[i].Capacity, Count: take})
		}
		if need > 0 {
			return nil, nil, fmt.Errorf("%w: %d more tables of capacity %d than available",
				internaltypes.ErrInsufficientCapacity, need, sel.Capacity)
		}
	}
	return out, usages, nil
}
