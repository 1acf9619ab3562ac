package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
)

var (
	// ErrTimeOfDay is returned for hours outside 0..23 or minutes outside 0..59.
	ErrTimeOfDay = errors.New(config.ErrTimeOfDay)
	// ErrRepeatRule is returned when a stored rule code is unknown.
	ErrRepeatRule = errors.New(config.ErrRepeatRule)
	// ErrEmptyID is returned when a schedule without identity reaches the store.
	ErrEmptyID = errors.New(config.ErrEmptyID)
)

// TimeOfDay is a wall-clock time without a date. It serializes as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay validates and returns a TimeOfDay.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %d:%d", ErrTimeOfDay, hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(config.TimeOfDayLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrTimeOfDay, s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf(config.TimeOfDayFormat, t.Hour, t.Minute)
}

// On returns the instant at which t occurs on d in loc (nil means time.Local).
func (t TimeOfDay) On(d calendar.Date, loc *time.Location) time.Time {
	midnight := d.Time(loc)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), t.Hour, t.Minute, 0, 0, midnight.Location())
}

// Before reports whether t is earlier in the day than o.
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Hour < o.Hour || (t.Hour == o.Hour && t.Minute < o.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RepeatKind enumerates the repeat modes a schedule can carry.
type RepeatKind int

const (
	RepeatNone RepeatKind = iota
	RepeatWeekly
	RepeatMonthly
	RepeatYearly
)

// RepeatRule is none | weekly | monthly | yearly(system).
// System is only meaningful for RepeatYearly.
type RepeatRule struct {
	Kind   RepeatKind
	System calendar.System
}

// Convenience rule values.
var (
	NoRepeat     = RepeatRule{Kind: RepeatNone}
	Weekly       = RepeatRule{Kind: RepeatWeekly}
	Monthly      = RepeatRule{Kind: RepeatMonthly}
	YearlySolar  = RepeatRule{Kind: RepeatYearly, System: calendar.Gregorian}
	YearlyLunar  = RepeatRule{Kind: RepeatYearly, System: calendar.Lunar}
	repeatByCode = map[string]RepeatRule{
		config.RepeatNone:        NoRepeat,
		config.RepeatWeekly:      Weekly,
		config.RepeatMonthly:     Monthly,
		config.RepeatYearlySolar: YearlySolar,
		config.RepeatYearlyLunar: YearlyLunar,
	}
)

// ParseRepeatRule maps a stored code back to a rule. The empty string is NoRepeat.
func ParseRepeatRule(code string) (RepeatRule, error) {
	if code == "" {
		return NoRepeat, nil
	}
	r, ok := repeatByCode[code]
	if !ok {
		return NoRepeat, fmt.Errorf("%w: %q", ErrRepeatRule, code)
	}
	return r, nil
}

// Repeats reports whether the rule generates occurrences.
func (r RepeatRule) Repeats() bool {
	return r.Kind != RepeatNone
}

func (r RepeatRule) String() string {
	switch r.Kind {
	case RepeatWeekly:
		return config.RepeatWeekly
	case RepeatMonthly:
		return config.RepeatMonthly
	case RepeatYearly:
		if r.System == calendar.Lunar {
			return config.RepeatYearlyLunar
		}
		return config.RepeatYearlySolar
	default:
		return config.RepeatNone
	}
}

func (r RepeatRule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RepeatRule) UnmarshalText(b []byte) error {
	parsed, err := ParseRepeatRule(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Schedule is one stored calendar entry. Occurrences generated from an
// anchor are full peers of it: nothing links them after creation.
type Schedule struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Memo         string        `json:"memo,omitempty"`
	Date         calendar.Date `json:"date"`
	Start        TimeOfDay     `json:"start"`
	End          TimeOfDay     `json:"end"`
	Repeat       RepeatRule    `json:"repeat"`
	AlertEnabled bool          `json:"alert_enabled"`
	AlertTime    TimeOfDay     `json:"alert_time"`
}

// AlertInstant is Date at AlertTime in loc.
func (s Schedule) AlertInstant(loc *time.Location) time.Time {
	return s.AlertTime.On(s.Date, loc)
}

// occurrence copies every non-date field of s under a new identity.
func (s Schedule) occurrence(id string, d calendar.Date) Schedule {
	s.ID = id
	s.Date = d
	return s
}

// IDFunc produces unique schedule identifiers.
type IDFunc func() string

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}
