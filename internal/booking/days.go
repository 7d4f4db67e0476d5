package booking

import "time"

// Day is every slot of a restaurant that falls on one date.
type Day struct {
	Date  time.Time
	Slots []Slot
}

// GroupByDate buckets slots by calendar date, keeping the input order within
// a date and ordering dates by first appearance.
func GroupByDate(slots []Slot) []Day {
	var days []Day
	index := make(map[string]int)
	for _, s := range slots {
		key := s.Date.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, Day{Date: s.Date})
		}
		days[i].Slots = append(days[i].Slots, s)
	}
	return days
}
