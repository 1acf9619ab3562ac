package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lunarcal/internal/calendar"
)

func TestNewDate_RejectsNonExistentDays(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   time.Month
		day     int
		wantErr bool
	}{
		{"Leap day in leap year", 2028, time.February, 29, false},
		{"Leap day in common year", 2027, time.February, 29, true},
		{"April 31", 2025, time.April, 31, true},
		{"Day zero", 2025, time.May, 0, true},
		{"Regular day", 2025, time.March, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := calendar.NewDate(tt.year, tt.month, tt.day)
			if tt.wantErr {
				assert.ErrorIs(t, err, calendar.ErrDateConstruction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.day, d.Day)
		})
	}
}

// TestFromTime_IgnoresInstant verifies dates compare by calendar day, not instant.
func TestFromTime_IgnoresInstant(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	morning := time.Date(2025, 6, 1, 0, 30, 0, 0, seoul)
	evening := time.Date(2025, 6, 1, 23, 59, 0, 0, seoul)

	assert.Equal(t, calendar.FromTime(morning), calendar.FromTime(evening))
	// The same instant in UTC is still May 31st.
	assert.Equal(t, calendar.MustDate(2025, time.May, 31), calendar.FromTime(morning.UTC()))
}

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := calendar.ParseDate("2025-10-06")
	require.NoError(t, err)
	assert.Equal(t, calendar.MustDate(2025, time.October, 6), d)
	assert.Equal(t, "2025-10-06", d.String())

	_, err = calendar.ParseDate("06/10/2025")
	assert.Error(t, err)
}

func TestDate_Arithmetic(t *testing.T) {
	d := calendar.MustDate(2024, time.December, 31)

	assert.Equal(t, calendar.MustDate(2025, time.January, 1), d.AddDays(1))
	assert.Equal(t, calendar.MustDate(2024, time.December, 1), d.FirstOfMonth())
	assert.Equal(t, 31, d.DaysInMonth())
	assert.Equal(t, 29, calendar.MustDate(2024, time.February, 3).DaysInMonth())
	assert.Equal(t, time.Tuesday, d.Weekday())

	// Month navigation clamps to the end of shorter months.
	assert.Equal(t, calendar.MustDate(2025, time.February, 28), calendar.MustDate(2025, time.January, 31).AddMonths(1))
	assert.Equal(t, calendar.MustDate(2024, time.November, 30), calendar.MustDate(2025, time.January, 30).AddMonths(-2))

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(d.AddDays(-1)))
	assert.Equal(t, 0, d.Compare(calendar.MustDate(2024, time.December, 31)))
	assert.True(t, calendar.Date{}.IsZero())
}

func TestDate_TimeUsesLocation(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	tm := calendar.MustDate(2025, time.June, 1).Time(loc)

	assert.Equal(t, loc, tm.Location())
	assert.Equal(t, 0, tm.Hour())
	assert.Equal(t, 1, tm.Day())
}
