package holiday_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/tartampluch/go-lunarcal/internal/holiday"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Fetch(ctx context.Context) (holiday.Response, error) {
	args := m.Called(ctx)
	return args.Get(0).(holiday.Response), args.Error(1)
}

// MockClock is a settable clock for crossing year boundaries.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func newPrefs(t *testing.T) fyne.Preferences {
	t.Helper()
	return test.NewTempApp(t).Preferences()
}

var response2025 = holiday.Response{
	Year: 2025,
	Holidays: []holiday.Entry{
		{ID: "2025-01-01", Date: "2025-01-01", Name: "신정", IsHoliday: true},
		{ID: "2025-10-06", Date: "2025-10-06", Name: "추석 연휴", IsHoliday: true},
		{ID: "2025-10-07", Date: "2025-10-07", Name: "추석", IsHoliday: true},
	},
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestCache_RefreshPopulatesAndPersists(t *testing.T) {
	prefs := newPrefs(t)
	clock := &MockClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(response2025, nil).Once()

	c := holiday.NewCache(prefs, src, clock)
	n, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)

	name, ok := c.Lookup(calendar.MustDate(2025, time.October, 7))
	assert.True(t, ok)
	assert.Equal(t, "추석", name)
	assert.True(t, c.IsHoliday(calendar.MustDate(2025, time.January, 1)))
	assert.False(t, c.IsHoliday(calendar.MustDate(2025, time.January, 2)))
	assert.Empty(t, c.LastError())
	assert.False(t, c.Loading())

	// Persisted layout: date -> name map, RFC3339 instant, year.
	var stored map[string]string
	require.NoError(t, json.Unmarshal([]byte(prefs.String(config.PrefHolidayCache)), &stored))
	assert.Equal(t, "신정", stored["2025-01-01"])
	assert.Equal(t, 2025, prefs.Int(config.PrefHolidayLastYear))
	assert.Equal(t, "2025-03-10T09:00:00Z", prefs.String(config.PrefHolidayLastUpdate))

	src.AssertExpectations(t)
}

// TestCache_FailedRefreshKeepsPreviousData checks lookups are unchanged by a failure.
func TestCache_FailedRefreshKeepsPreviousData(t *testing.T) {
	failures := []error{
		holiday.ErrNetworkFailure,
		holiday.ErrServerError,
		holiday.ErrDecodeFailure,
		holiday.ErrInvalidConfiguration,
	}

	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			prefs := newPrefs(t)
			clock := &MockClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
			src := new(MockSource)
			src.On("Fetch", mock.Anything).Return(response2025, nil).Once()
			src.On("Fetch", mock.Anything).Return(holiday.Response{}, failure).Once()

			c := holiday.NewCache(prefs, src, clock)
			_, err := c.Refresh(context.Background())
			require.NoError(t, err)

			before := c.Entries()
			persisted := prefs.String(config.PrefHolidayCache)

			clock.Set(time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC))
			n, err := c.Refresh(context.Background())

			assert.ErrorIs(t, err, failure)
			assert.Zero(t, n)
			assert.Equal(t, before, c.Entries())
			name, ok := c.Lookup(calendar.MustDate(2025, time.October, 7))
			assert.True(t, ok)
			assert.Equal(t, "추석", name)
			assert.Equal(t, persisted, prefs.String(config.PrefHolidayCache))
			assert.Equal(t, 2025, prefs.Int(config.PrefHolidayLastYear))
			assert.Contains(t, c.LastError(), failure.Error())
		})
	}
}

func TestCache_FailedIn(t *testing.T) {
	prefs := newPrefs(t)
	clock := &MockClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(holiday.Response{}, holiday.ErrNetworkFailure).Once()
	src.On("Fetch", mock.Anything).Return(response2025, nil).Once()

	c := holiday.NewCache(prefs, src, clock)
	assert.False(t, c.FailedIn(2025))

	_, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, holiday.ErrNetworkFailure)
	assert.True(t, c.FailedIn(2025))
	assert.False(t, c.FailedIn(2026))

	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, c.FailedIn(2025))

	src.AssertExpectations(t)
}

func TestCache_MalformedDateIsDecodeFailure(t *testing.T) {
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(holiday.Response{
		Holidays: []holiday.Entry{{Date: "2025-01-01", Name: "ok"}, {Date: "01/02/2025", Name: "bad"}},
	}, nil)

	c := holiday.NewCache(newPrefs(t), src, &MockClock{now: time.Now()})
	_, err := c.Refresh(context.Background())

	assert.ErrorIs(t, err, holiday.ErrDecodeFailure)
	assert.Zero(t, c.Len(), "nothing from a rejected response may leak into the cache")
}

// TestCache_IsStaleAcrossYearBoundary checks staleness without any refresh in the new year.
func TestCache_IsStaleAcrossYearBoundary(t *testing.T) {
	clock := &MockClock{now: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)}
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(response2025, nil).Once()

	c := holiday.NewCache(newPrefs(t), src, clock)
	assert.True(t, c.IsStale(calendar.Today(clock)), "empty cache is stale")

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, c.IsStale(calendar.Today(clock)))

	clock.Set(time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC))
	assert.True(t, c.IsStale(calendar.Today(clock)))
}

func TestCache_LoadRestoresPersistedState(t *testing.T) {
	prefs := newPrefs(t)
	prefs.SetString(config.PrefHolidayCache, `{"2025-05-05":"어린이날","garbage":"x"}`)
	prefs.SetString(config.PrefHolidayLastUpdate, "2025-02-01T10:00:00Z")
	prefs.SetInt(config.PrefHolidayLastYear, 2025)

	c := holiday.NewCache(prefs, nil, &MockClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, c.Load())

	name, ok := c.Lookup(calendar.MustDate(2025, time.May, 5))
	assert.True(t, ok)
	assert.Equal(t, "어린이날", name)
	assert.Equal(t, 1, c.Len(), "unparseable keys are dropped")
	assert.False(t, c.IsStale(calendar.MustDate(2025, time.June, 1)))
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), c.LastUpdate())
}

func TestCache_LoadCorruptCache(t *testing.T) {
	prefs := newPrefs(t)
	prefs.SetString(config.PrefHolidayCache, `not json`)

	c := holiday.NewCache(prefs, nil, nil)
	err := c.Load()

	assert.Error(t, err)
	assert.Zero(t, c.Len())
}

// TestCache_SingleRefreshInFlight blocks the source and checks a second trigger is a no-op.
func TestCache_SingleRefreshInFlight(t *testing.T) {
	release := make(chan time.Time)
	src := new(MockSource)
	src.On("Fetch", mock.Anything).
		WaitUntil(release).
		Return(response2025, nil).
		Once()

	c := holiday.NewCache(newPrefs(t), src, &MockClock{now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})

	done := make(chan struct{})
	c.Subscribe(func() {
		if !c.Loading() && c.Len() > 0 {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	require.True(t, c.RefreshAsync(context.Background()))
	assert.True(t, c.Loading())
	assert.False(t, c.RefreshAsync(context.Background()), "second async trigger must not start")

	_, err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, holiday.ErrRefreshInFlight)

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not complete")
	}

	assert.Equal(t, 3, c.Len())
	src.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestCache_StartRefreshesOnlyWhenStale(t *testing.T) {
	prefs := newPrefs(t)
	prefs.SetString(config.PrefHolidayCache, `{"2025-01-01":"신정"}`)
	prefs.SetInt(config.PrefHolidayLastYear, 2025)

	src := new(MockSource)
	c := holiday.NewCache(prefs, src, &MockClock{now: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)})
	c.Start(context.Background())

	assert.False(t, c.Loading())
	assert.Equal(t, 1, c.Len())
	src.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestCache_ListHelpers(t *testing.T) {
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(holiday.Response{Holidays: []holiday.Entry{
		{Date: "2025-10-07", Name: "추석"},
		{Date: "2026-01-01", Name: "신정"},
		{Date: "2025-10-03", Name: "개천절"},
		{Date: "2025-12-25", Name: "크리스마스"},
	}}, nil)

	c := holiday.NewCache(newPrefs(t), src, &MockClock{now: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	all := c.Entries()
	require.Len(t, all, 4)
	assert.Equal(t, calendar.MustDate(2025, time.October, 3), all[0].Date, "entries are sorted by date")
	assert.Equal(t, calendar.MustDate(2026, time.January, 1), all[3].Date)

	assert.Len(t, c.YearEntries(2025), 3)
	assert.Equal(t, 2, c.CountInMonth(2025, time.October))
	assert.Zero(t, c.CountInMonth(2025, time.November))
}

func TestCache_NoSource(t *testing.T) {
	c := holiday.NewCache(newPrefs(t), nil, nil)
	_, err := c.Refresh(context.Background())

	assert.True(t, errors.Is(err, holiday.ErrInvalidConfiguration))
	assert.NotEmpty(t, c.LastError())
}
