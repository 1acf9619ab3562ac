package calendar

import (
	"time"

	"github.com/tartampluch/go-lunarcal/internal/config"
)

// GridPolicy selects how the trailing padding of a month grid is computed.
type GridPolicy int

const (
	// FixedSixWeeks always pads to 42 cells so every month has the same height.
	FixedSixWeeks GridPolicy = iota
	// FillWeeks pads only to the end of the last week (35 or 42 cells, 28 for
	// a February that starts on the first weekday of a common year).
	FillWeeks
)

// ParseGridPolicy maps a preference value to a policy. Unknown values fall
// back to FixedSixWeeks.
func ParseGridPolicy(s string) GridPolicy {
	if s == config.GridPolicyFill {
		return FillWeeks
	}
	return FixedSixWeeks
}

// ParseWeekStart maps a preference value to the first column of the grid.
// Unknown values fall back to Sunday.
func ParseWeekStart(s string) time.Weekday {
	if s == config.WeekStartMonday {
		return time.Monday
	}
	return time.Sunday
}

// GridOptions configures BuildGrid.
type GridOptions struct {
	Policy    GridPolicy
	WeekStart time.Weekday
}

// GridCell is one day of a month grid.
type GridCell struct {
	Date           Date
	InCurrentMonth bool
	// WeekdayIndex is the column, 0..6, counted from GridOptions.WeekStart.
	WeekdayIndex int
	// LunarLabel is "<lunarMonth>.<lunarDay>".
	LunarLabel string
}

// BuildGrid returns the ordered cells of the month containing ref.
//
// Leading cells are the trailing days of the previous month needed to
// complete the first row; trailing cells come from the next month. The
// result is a pure function of (ref's month, opts).
func BuildGrid(ref Date, opts GridOptions) []GridCell {
	first := ref.FirstOfMonth()
	lead := (int(first.Weekday()) - int(opts.WeekStart) + config.DaysPerWeek) % config.DaysPerWeek
	days := first.DaysInMonth()

	total := config.GridCellsFixed
	if opts.Policy == FillWeeks {
		total = lead + days
		if rem := total % config.DaysPerWeek; rem != 0 {
			total += config.DaysPerWeek - rem
		}
	}

	cells := make([]GridCell, 0, total)
	start := first.AddDays(-lead)
	for i := 0; i < total; i++ {
		d := start.AddDays(i)
		cells = append(cells, GridCell{
			Date:           d,
			InCurrentMonth: d.SameMonth(first),
			WeekdayIndex:   i % config.DaysPerWeek,
			LunarLabel:     LunarLabel(d),
		})
	}
	return cells
}

// Weeks splits cells into rows of seven.
func Weeks(cells []GridCell) [][]GridCell {
	rows := make([][]GridCell, 0, len(cells)/config.DaysPerWeek)
	for i := 0; i+config.DaysPerWeek <= len(cells); i += config.DaysPerWeek {
		rows = append(rows, cells[i:i+config.DaysPerWeek])
	}
	return rows
}
