package engine

import (
	"slices"

	"github.com/tartampluch/go-lunarcal/internal/calendar"
)

// OnDate returns the schedules falling on date, keeping their input order.
func OnDate(schedules []Schedule, date calendar.Date) []Schedule {
	var out []Schedule
	for _, s := range schedules {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out
}

// InRange returns the schedules whose date lies in [start, end), ordered by
// date. Same-day schedules keep their input order.
func InRange(schedules []Schedule, start, end calendar.Date) []Schedule {
	var out []Schedule
	for _, s := range schedules {
		if !s.Date.Before(start) && s.Date.Before(end) {
			out = append(out, s)
		}
	}
	sortByDate(out)
	return out
}

func sortByDate(schedules []Schedule) {
	slices.SortStableFunc(schedules, func(a, b Schedule) int {
		return a.Date.Compare(b.Date)
	})
}

// Index buckets schedules by day so per-cell lookups on a month grid cost
// O(matches) rather than a scan of the whole collection.
// It is an immutable snapshot: rebuild it after the store changes.
type Index struct {
	byDate map[calendar.Date][]Schedule
	days   []calendar.Date // sorted bucket keys
	total  int
}

// NewIndex builds an index over schedules.
func NewIndex(schedules []Schedule) *Index {
	ix := &Index{byDate: make(map[calendar.Date][]Schedule), total: len(schedules)}
	for _, s := range schedules {
		if _, ok := ix.byDate[s.Date]; !ok {
			ix.days = append(ix.days, s.Date)
		}
		ix.byDate[s.Date] = append(ix.byDate[s.Date], s)
	}
	slices.SortFunc(ix.days, calendar.Date.Compare)
	return ix
}

// OnDate is the indexed equivalent of the package-level OnDate.
func (ix *Index) OnDate(date calendar.Date) []Schedule {
	return slices.Clone(ix.byDate[date])
}

// InRange is the indexed equivalent of the package-level InRange.
func (ix *Index) InRange(start, end calendar.Date) []Schedule {
	from, _ := slices.BinarySearchFunc(ix.days, start, calendar.Date.Compare)

	var out []Schedule
	for _, d := range ix.days[from:] {
		if !d.Before(end) {
			break
		}
		out = append(out, ix.byDate[d]...)
	}
	return out
}

// Len returns the number of indexed schedules.
func (ix *Index) Len() int {
	return ix.total
}
