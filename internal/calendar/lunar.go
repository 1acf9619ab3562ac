package calendar

import (
	"fmt"
	"time"

	lunar "github.com/6tail/lunar-go/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
)

// System names the calendar in which a date's components are read.
type System int

const (
	// Gregorian is the display calendar; all schedules are stored in it.
	Gregorian System = iota
	// Lunar is the Chinese civil calendar used for labels and lunar repeats.
	Lunar
)

func (s System) String() string {
	if s == Lunar {
		return "lunar"
	}
	return "gregorian"
}

// LunarDate is a transient lunar-calendar value. It is never stored.
type LunarDate struct {
	Year  int
	Month int // 1..12
	Day   int // 1..30
	Leap  bool
}

// Label renders "<month>.<day>", the cell annotation of the month grid.
func (l LunarDate) Label() string {
	return fmt.Sprintf(config.LunarLabelFormat, l.Month, l.Day)
}

// ToLunar converts a Gregorian date into the lunar calendar.
func ToLunar(d Date) LunarDate {
	l := lunar.NewSolarFromYmd(d.Year, int(d.Month), d.Day).GetLunar()
	month := l.GetMonth()
	leap := month < 0
	if leap {
		month = -month
	}
	return LunarDate{Year: l.GetYear(), Month: month, Day: l.GetDay(), Leap: leap}
}

// LunarLabel is shorthand for ToLunar(d).Label().
func LunarLabel(d Date) string {
	return ToLunar(d).Label()
}

// FromLunar converts a lunar date back to the Gregorian calendar.
// It returns ErrDateConstruction when the lunar year has no such month
// (a leap month that only exists in some years) or the month is too short
// for the requested day.
func FromLunar(l LunarDate) (Date, error) {
	month := l.Month
	if l.Leap {
		month = -month
	}

	m := lunar.NewLunarYear(l.Year).GetMonth(month)
	if m == nil {
		return Date{}, fmt.Errorf("%w: lunar %d-%s", ErrDateConstruction, l.Year, monthCode(l))
	}
	if l.Day < 1 || l.Day > m.GetDayCount() {
		return Date{}, fmt.Errorf("%w: lunar %d-%s-%02d", ErrDateConstruction, l.Year, monthCode(l), l.Day)
	}

	s := lunar.NewLunarFromYmd(l.Year, month, l.Day).GetSolar()
	return NewDate(s.GetYear(), time.Month(s.GetMonth()), s.GetDay())
}

// Components returns (year, month, day) of d read in system s, plus whether
// the month is a lunar leap month.
func Components(d Date, s System) (year, month, day int, leap bool) {
	if s == Lunar {
		l := ToLunar(d)
		return l.Year, l.Month, l.Day, l.Leap
	}
	return d.Year, int(d.Month), d.Day, false
}

// Construct builds a Gregorian date from components read in system s.
func Construct(s System, year, month, day int, leap bool) (Date, error) {
	if s == Lunar {
		return FromLunar(LunarDate{Year: year, Month: month, Day: day, Leap: leap})
	}
	return NewDate(year, time.Month(month), day)
}

func monthCode(l LunarDate) string {
	if l.Leap {
		return fmt.Sprintf("leap%02d", l.Month)
	}
	return fmt.Sprintf("%02d", l.Month)
}
