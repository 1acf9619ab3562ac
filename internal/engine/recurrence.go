package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/teambition/rrule-go"
)

// ErrInvalidCount is returned when a repeat count falls outside
// [config.MinRepeatCount, config.MaxRepeatCount].
var ErrInvalidCount = errors.New(config.ErrInvalidCount)

func checkCount(count int) error {
	if count < config.MinRepeatCount || count > config.MaxRepeatCount {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidCount, count, config.MinRepeatCount, config.MaxRepeatCount)
	}
	return nil
}

// ExpandYearly returns up to count copies of anchor, one per year after the
// anchor's year, with (month, day) read in system.
//
// A year in which that (month, day) does not exist is skipped: Feb 29 in a
// common year, a lunar leap month the year does not have, or lunar day 30 of
// a short month. The returned dates are Gregorian and strictly increasing.
// ids may be nil, in which case NewID is used.
func ExpandYearly(anchor Schedule, system calendar.System, count int, ids IDFunc) ([]Schedule, error) {
	if err := checkCount(count); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = NewID
	}

	year, month, day, leap := calendar.Components(anchor.Date, system)
	out := make([]Schedule, 0, count)
	for i := 1; i <= count; i++ {
		d, err := calendar.Construct(system, year+i, month, day, leap)
		if err != nil {
			slog.Debug(config.MsgOccurrenceSkip,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyYear, year+i,
				config.LogKeyRule, anchor.Repeat.String(),
				config.LogKeyError, err)
			continue
		}
		out = append(out, anchor.occurrence(ids(), d))
	}
	return out, nil
}

// Expand generates the occurrences of anchor according to anchor.Repeat.
//
// Yearly rules go through ExpandYearly. Weekly and monthly rules consider the
// next count weeks or months; a monthly anchor on a day some months lack
// (the 31st) produces nothing for those months, mirroring the yearly policy.
// NoRepeat yields no occurrences and ignores count.
func Expand(anchor Schedule, count int, ids IDFunc) ([]Schedule, error) {
	switch anchor.Repeat.Kind {
	case RepeatNone:
		return nil, nil
	case RepeatYearly:
		return ExpandYearly(anchor, anchor.Repeat.System, count, ids)
	case RepeatWeekly:
		if err := checkCount(count); err != nil {
			return nil, err
		}
		return expandRule(anchor, rrule.WEEKLY, anchor.Date.AddDays(count*config.DaysPerWeek), ids)
	case RepeatMonthly:
		if err := checkCount(count); err != nil {
			return nil, err
		}
		last := anchor.Date.FirstOfMonth().AddMonths(count)
		last = last.AddDays(last.DaysInMonth() - 1)
		return expandRule(anchor, rrule.MONTHLY, last, ids)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrRepeatRule, anchor.Repeat.Kind)
	}
}

// expandRule lets rrule walk from the anchor up to and including until.
// Rule evaluation happens in UTC, which only serves as a DST-free day counter.
func expandRule(anchor Schedule, freq rrule.Frequency, until calendar.Date, ids IDFunc) ([]Schedule, error) {
	if ids == nil {
		ids = NewID
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: anchor.Date.Time(time.UTC),
		Until:   until.Time(time.UTC),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRecurrence, err)
	}

	var out []Schedule
	for _, t := range r.All() {
		d := calendar.FromTime(t)
		if !d.After(anchor.Date) {
			continue
		}
		out = append(out, anchor.occurrence(ids(), d))
	}
	return out, nil
}
