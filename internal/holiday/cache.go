package holiday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
)

// ErrRefreshInFlight is returned by Refresh while another refresh runs.
var ErrRefreshInFlight = errors.New(config.ErrRefreshBusy)

// Settings is the key/value area the cache persists into.
// fyne.Preferences satisfies it.
type Settings interface {
	String(key string) string
	SetString(key string, value string)
	Int(key string) int
	SetInt(key string, value int)
}

// Day is a holiday resolved to a calendar date.
type Day struct {
	Date calendar.Date
	Name string
}

// snapshot is immutable once published.
type snapshot struct {
	names map[calendar.Date]string
	days  []Day // sorted by date
}

func newSnapshot(names map[calendar.Date]string) *snapshot {
	s := &snapshot{names: names, days: make([]Day, 0, len(names))}
	for d, n := range names {
		s.days = append(s.days, Day{Date: d, Name: n})
	}
	slices.SortFunc(s.days, func(a, b Day) int { return a.Date.Compare(b.Date) })
	return s
}

// Cache holds the date -> holiday name mapping.
//
// Readers see a consistent snapshot: a refresh builds a new map and swaps it
// in, it never mutates the published one. A failed refresh leaves the
// snapshot and the persisted copy untouched.
type Cache struct {
	settings Settings
	clock    calendar.Clock

	snap    atomic.Pointer[snapshot]
	loading atomic.Bool

	mu         sync.Mutex
	source     Source
	lastYear   int
	lastUpdate time.Time
	lastErr    string
	failedYear int
	listeners  []func()
}

// NewCache creates an empty cache. Call Load (or Start) before use.
func NewCache(settings Settings, source Source, clock calendar.Clock) *Cache {
	if clock == nil {
		clock = calendar.RealClock{}
	}
	c := &Cache{settings: settings, source: source, clock: clock}
	c.snap.Store(newSnapshot(map[calendar.Date]string{}))
	return c
}

// SetSource swaps the data source used by the next refresh.
func (c *Cache) SetSource(src Source) {
	c.mu.Lock()
	c.source = src
	c.mu.Unlock()
}

// Load reads the persisted cache. It never touches the network. A corrupt
// persisted map leaves the cache empty (and therefore stale).
func (c *Cache) Load() error {
	log := slog.With(config.LogKeyComponent, config.CompHoliday)

	c.mu.Lock()
	c.lastYear = c.settings.Int(config.PrefHolidayLastYear)
	if ts := c.settings.String(config.PrefHolidayLastUpdate); ts != "" {
		c.lastUpdate, _ = time.Parse(time.RFC3339, ts)
	}
	c.mu.Unlock()

	raw := c.settings.String(config.PrefHolidayCache)
	if raw == "" {
		return nil
	}

	var stored map[string]string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return fmt.Errorf("%s: %w", config.ErrHolidayCacheLoad, err)
	}

	names := make(map[calendar.Date]string, len(stored))
	for k, v := range stored {
		d, err := calendar.ParseDate(k)
		if err != nil {
			log.Debug(config.MsgSkippedDate, config.LogKeyValue, k)
			continue
		}
		names[d] = v
	}
	c.snap.Store(newSnapshot(names))
	log.Info(config.MsgHolidayLoaded, config.LogKeyCount, len(names))
	c.notify()
	return nil
}

// IsStale reports whether the cache needs a refresh: nothing cached yet, or
// the last successful refresh happened in a year before today's.
func (c *Cache) IsStale(today calendar.Date) bool {
	c.mu.Lock()
	lastYear := c.lastYear
	c.mu.Unlock()
	return lastYear < today.Year || len(c.snap.Load().names) == 0
}

// Start applies the startup policy: Load, then refresh in the background
// when stale. It returns without waiting for the network.
func (c *Cache) Start(ctx context.Context) {
	if err := c.Load(); err != nil {
		slog.Warn(config.ErrHolidayCacheLoad,
			config.LogKeyComponent, config.CompHoliday,
			config.LogKeyError, err)
	}
	c.RefreshIfStale(ctx)
}

// RefreshIfStale starts a background refresh when IsStale(today) holds.
func (c *Cache) RefreshIfStale(ctx context.Context) bool {
	today := calendar.Today(c.clock)
	if !c.IsStale(today) {
		return false
	}
	c.mu.Lock()
	lastYear := c.lastYear
	c.mu.Unlock()
	slog.Info(config.MsgHolidayStale,
		config.LogKeyComponent, config.CompHoliday,
		config.LogKeyYear, today.Year,
		config.LogKeyLastYear, lastYear)
	return c.RefreshAsync(ctx)
}

// Refresh fetches a full holiday set and replaces the cache with it.
// A second call while one is running returns ErrRefreshInFlight and does
// nothing else.
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	if !c.loading.CompareAndSwap(false, true) {
		return 0, ErrRefreshInFlight
	}
	return c.refresh(ctx)
}

// RefreshAsync runs Refresh in a new goroutine. It reports false, and starts
// nothing, when a refresh is already in flight.
func (c *Cache) RefreshAsync(ctx context.Context) bool {
	if !c.loading.CompareAndSwap(false, true) {
		slog.Debug(config.MsgHolidayBusy, config.LogKeyComponent, config.CompHoliday)
		return false
	}
	go func() { _, _ = c.refresh(ctx) }()
	return true
}

// refresh must be called with the loading flag held.
func (c *Cache) refresh(ctx context.Context) (int, error) {
	defer func() {
		c.loading.Store(false)
		c.notify()
	}()
	c.notify()

	log := slog.With(config.LogKeyComponent, config.CompHoliday)

	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if src == nil {
		return 0, c.fail(log, fmt.Errorf("%w: %s", ErrInvalidConfiguration, config.ErrNoSource))
	}

	resp, err := src.Fetch(ctx)
	if err != nil {
		return 0, c.fail(log, err)
	}

	names := make(map[calendar.Date]string, len(resp.Holidays))
	stored := make(map[string]string, len(resp.Holidays))
	for _, e := range resp.Holidays {
		d, err := calendar.ParseDate(e.Date)
		if err != nil {
			return 0, c.fail(log, fmt.Errorf("%w: %v", ErrDecodeFailure, err))
		}
		names[d] = e.Name
		stored[d.String()] = e.Name
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return 0, c.fail(log, fmt.Errorf("%s: %w", config.ErrHolidayPersist, err))
	}

	now := c.clock.Now()
	c.snap.Store(newSnapshot(names))

	c.mu.Lock()
	c.lastYear = now.Year()
	c.lastUpdate = now
	c.lastErr = ""
	c.failedYear = 0
	c.settings.SetString(config.PrefHolidayCache, string(encoded))
	c.settings.SetString(config.PrefHolidayLastUpdate, now.Format(time.RFC3339))
	c.settings.SetInt(config.PrefHolidayLastYear, now.Year())
	c.mu.Unlock()

	log.Info(config.MsgHolidayRefreshed,
		config.LogKeyCount, len(names),
		config.LogKeyYear, resp.Year)
	return len(names), nil
}

func (c *Cache) fail(log *slog.Logger, err error) error {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.failedYear = c.clock.Now().Year()
	c.mu.Unlock()
	log.Warn(config.MsgHolidayFailed, config.LogKeyError, err)
	return err
}

// Lookup returns the holiday name of d, if any.
func (c *Cache) Lookup(d calendar.Date) (string, bool) {
	name, ok := c.snap.Load().names[d]
	return name, ok
}

// IsHoliday reports whether d has a holiday entry.
func (c *Cache) IsHoliday(d calendar.Date) bool {
	_, ok := c.Lookup(d)
	return ok
}

// Entries returns every cached holiday sorted by date.
func (c *Cache) Entries() []Day {
	return slices.Clone(c.snap.Load().days)
}

// YearEntries returns the holidays of one Gregorian year, sorted by date.
func (c *Cache) YearEntries(year int) []Day {
	var out []Day
	for _, d := range c.snap.Load().days {
		if d.Date.Year == year {
			out = append(out, d)
		}
	}
	return out
}

// CountInMonth returns the number of holidays in the given month.
func (c *Cache) CountInMonth(year int, month time.Month) int {
	n := 0
	for _, d := range c.snap.Load().days {
		if d.Date.Year == year && d.Date.Month == month {
			n++
		}
	}
	return n
}

// Len returns the number of cached holidays.
func (c *Cache) Len() int {
	return len(c.snap.Load().names)
}

// Loading reports whether a refresh is in flight.
func (c *Cache) Loading() bool {
	return c.loading.Load()
}

// LastError returns the message of the last failed refresh, or "" once a
// refresh has succeeded.
func (c *Cache) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// FailedIn reports whether the latest refresh failed during year and no
// refresh has succeeded since.
func (c *Cache) FailedIn(year int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr != "" && c.failedYear == year
}

// LastUpdate returns the time of the last successful refresh.
func (c *Cache) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}

// Subscribe registers fn to run whenever the cache content or the loading
// state changes. fn runs on the goroutine that made the change.
func (c *Cache) Subscribe(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Cache) notify() {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
