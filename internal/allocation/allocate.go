package allocation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/example/restrobook/internal/internaltypes"
)

// ErrInfeasible means the request was valid but every free table together
// still seats fewer people than the party.
var ErrInfeasible = errors.New("no combination of free tables seats the party")

// Selection is a number of tables of one capacity.
type Selection struct {
	Capacity int
	Count    int
}

type Allocation struct {
	PartySize int
	// Selections are ordered by capacity, largest first.
	Selections []Selection
	Seats      int
	Tables     int
}

func (a Allocation) Wastage() int { return a.Seats - a.PartySize }

type bucket struct {
	capacity int
	count    int
}

type state struct {
	counts []int
	tables int
}

// Allocate picks the tables that seat partySize with the least wasted seats.
// Ties are broken by fewest tables, then by preferring larger tables.
//
// Table types sharing a capacity are merged before solving. The search is a
// bounded dynamic program over seat totals up to partySize+maxCapacity-1:
// a cover that overshoots by a full table or more can always drop that table,
// so no optimum lies beyond that bound.
func Allocate(partySize int, tables []TableType) (Allocation, error) {
	if partySize <= 0 {
		return Allocation{}, fmt.Errorf("%w: party size must be > 0 (got %d)", internaltypes.ErrInvalidRequest, partySize)
	}
	buckets, err := mergeBuckets(tables)
	if err != nil {
		return Allocation{}, err
	}

	total, maxCap := 0, 0
	for _, b := range buckets {
		total += b.capacity * b.count
		maxCap = max(maxCap, b.capacity)
	}
	if total < partySize {
		return Allocation{}, ErrInfeasible
	}
	bound := min(total, partySize+maxCap-1)

	best := make([]*state, bound+1)
	best[0] = &state{counts: make([]int, len(buckets))}
	for i, b := range buckets {
		next := make([]*state, bound+1)
		for s, prev := range best {
			if prev == nil {
				continue
			}
			for n := 0; n <= b.count; n++ {
				t := s + n*b.capacity
				if t > bound {
					break
				}
				if cur := next[t]; cur != nil && !prefer(prev, i, n, cur) {
					continue
				}
				counts := make([]int, len(buckets))
				copy(counts, prev.counts)
				counts[i] = n
				next[t] = &state{counts: counts, tables: prev.tables + n}
			}
		}
		best = next
	}

	for seats := partySize; seats <= bound; seats++ {
		st := best[seats]
		if st == nil {
			continue
		}
		a := Allocation{PartySize: partySize, Seats: seats, Tables: st.tables}
		for i, n := range st.counts {
			if n > 0 {
				a.Selections = append(a.Selections, Selection{Capacity: buckets[i].capacity, Count: n})
			}
		}
		return a, nil
	}
	return Allocation{}, ErrInfeasible
}

// prefer reports whether prev extended with n tables of bucket i beats cur.
// Both reach the same seat total.
func prefer(prev *state, i, n int, cur *state) bool {
	if tables := prev.tables + n; tables != cur.tables {
		return tables < cur.tables
	}
	for j := 0; j < i; j++ {
		if prev.counts[j] != cur.counts[j] {
			return prev.counts[j] > cur.counts[j]
		}
	}
	return n > cur.counts[i]
}

// mergeBuckets sums remaining tables per capacity, largest capacity first.
func mergeBuckets(tables []TableType) ([]bucket, error) {
	byCap := make(map[int]int, len(tables))
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if t.Remaining > 0 {
			byCap[t.Capacity] += t.Remaining
		}
	}
	out := make([]bucket, 0, len(byCap))
	for c, n := range byCap {
		out = append(out, bucket{capacity: c, count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].capacity > out[j].capacity })
	return out, nil
}
