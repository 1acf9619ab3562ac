package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
)

// ScheduleStore is the persistence boundary. Mutations are staged until
// Commit, which makes all of them durable or none of them.
type ScheduleStore interface {
	Create(s Schedule) error
	Update(s Schedule) error
	Delete(s Schedule) error
	Query(pred func(Schedule) bool) ([]Schedule, error)
	Commit() error
	Rollback()
}

// AlertScheduler arms one local alert per schedule ID. Arming an ID that
// already has an alert replaces it.
type AlertScheduler interface {
	Arm(id string, at time.Time, title, body string) error
	Cancel(id string)
}

// HolidayLookup resolves a date to a holiday name.
type HolidayLookup interface {
	Lookup(d calendar.Date) (string, bool)
}

// DayView is one grid cell with what falls on it.
type DayView struct {
	calendar.GridCell
	Schedules []Schedule
	Holiday   string
}

// MonthView is the grid of a month plus its per-day content.
type MonthView struct {
	Ref  calendar.Date
	Days []DayView
}

// Planner orchestrates schedule edits: expansion, commit, alerts and the
// change notification. Queries are answered from committed data only.
type Planner struct {
	Store    ScheduleStore
	Alerts   AlertScheduler // optional
	Holidays HolidayLookup  // optional
	Clock    calendar.Clock
	Location *time.Location // nil means time.Local
	IDs      IDFunc         // nil means NewID

	// FormatAlert allows the UI to inject localized alert texts.
	FormatAlert func(s Schedule) (title, body string)

	// OnChange runs after every successful commit.
	OnChange func(ctx context.Context)

	// mu serializes stage-and-commit sequences.
	mu sync.Mutex
}

// Add creates a new anchor schedule and, when its rule repeats, repeatCount
// further occurrences, all in a single commit. It returns every record saved,
// anchor first.
func (p *Planner) Add(ctx context.Context, anchor Schedule, repeatCount int) ([]Schedule, error) {
	return p.persist(ctx, anchor, repeatCount, p.Store.Create)
}

// Save updates an existing anchor and creates the requested occurrences in
// the same commit. Occurrences generated by earlier saves are untouched.
func (p *Planner) Save(ctx context.Context, anchor Schedule, repeatCount int) ([]Schedule, error) {
	if anchor.ID == "" {
		return nil, fmt.Errorf("%s: %w", config.ErrCommit, ErrEmptyID)
	}
	return p.persist(ctx, anchor, repeatCount, p.Store.Update)
}

func (p *Planner) persist(ctx context.Context, anchor Schedule, repeatCount int, stage func(Schedule) error) ([]Schedule, error) {
	saved, err := p.commit(anchor, repeatCount, stage)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, config.MsgScheduleSaved,
		config.LogKeyComponent, config.CompPlanner,
		config.LogKeyID, saved[0].ID,
		config.LogKeyRule, saved[0].Repeat.String(),
		config.LogKeyCount, len(saved))

	for _, s := range saved {
		p.syncAlert(ctx, s)
	}
	p.changed(ctx)
	return saved, nil
}

// commit expands, stages and commits anchor under p.mu. The store has a
// single staging area, so batches from concurrent callers must not overlap.
func (p *Planner) commit(anchor Schedule, repeatCount int, stage func(Schedule) error) ([]Schedule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if anchor.ID == "" {
		anchor.ID = p.newID()
	}
	occurrences, err := Expand(anchor, repeatCount, p.IDs)
	if err != nil {
		return nil, err
	}

	saved := make([]Schedule, 0, len(occurrences)+1)
	saved = append(saved, anchor)
	saved = append(saved, occurrences...)

	if err := stage(anchor); err != nil {
		p.Store.Rollback()
		return nil, fmt.Errorf("%s: %w", config.ErrCommit, err)
	}
	for _, s := range occurrences {
		if err := p.Store.Create(s); err != nil {
			p.Store.Rollback()
			return nil, fmt.Errorf("%s: %w", config.ErrCommit, err)
		}
	}
	if err := p.Store.Commit(); err != nil {
		p.Store.Rollback()
		return nil, fmt.Errorf("%s: %w", config.ErrCommit, err)
	}
	return saved, nil
}

// Delete removes s, commits and cancels its alert.
func (p *Planner) Delete(ctx context.Context, s Schedule) error {
	if err := p.deleteCommit(s); err != nil {
		return err
	}

	slog.InfoContext(ctx, config.MsgScheduleDeleted,
		config.LogKeyComponent, config.CompPlanner,
		config.LogKeyID, s.ID)

	if p.Alerts != nil {
		p.Alerts.Cancel(s.ID)
	}
	p.changed(ctx)
	return nil
}

func (p *Planner) deleteCommit(s Schedule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.Store.Delete(s); err != nil {
		p.Store.Rollback()
		return err
	}
	if err := p.Store.Commit(); err != nil {
		p.Store.Rollback()
		return fmt.Errorf("%s: %w", config.ErrCommit, err)
	}
	return nil
}

// All returns every committed schedule in date order.
func (p *Planner) All() ([]Schedule, error) {
	all, err := p.Store.Query(func(Schedule) bool { return true })
	if err != nil {
		return nil, err
	}
	sortByDate(all)
	return all, nil
}

// Day returns the schedules of [date, date+1) in date order.
func (p *Planner) Day(date calendar.Date) ([]Schedule, error) {
	return p.between(date, date.AddDays(1))
}

// Today is Day(today) according to the planner's clock.
func (p *Planner) Today() ([]Schedule, error) {
	return p.Day(calendar.Today(p.clock()))
}

func (p *Planner) between(start, end calendar.Date) ([]Schedule, error) {
	matches, err := p.Store.Query(func(s Schedule) bool {
		return !s.Date.Before(start) && s.Date.Before(end)
	})
	if err != nil {
		return nil, err
	}
	return InRange(matches, start, end), nil
}

// Month builds the grid of ref's month and attaches schedules and holiday
// names to every cell, leading and trailing days included.
func (p *Planner) Month(ref calendar.Date, opts calendar.GridOptions) (MonthView, error) {
	cells := calendar.BuildGrid(ref, opts)
	view := MonthView{Ref: ref.FirstOfMonth(), Days: make([]DayView, 0, len(cells))}
	if len(cells) == 0 {
		return view, nil
	}

	visible, err := p.between(cells[0].Date, cells[len(cells)-1].Date.AddDays(1))
	if err != nil {
		return MonthView{}, err
	}
	ix := NewIndex(visible)

	for _, c := range cells {
		day := DayView{GridCell: c, Schedules: ix.OnDate(c.Date)}
		if p.Holidays != nil {
			day.Holiday, _ = p.Holidays.Lookup(c.Date)
		}
		view.Days = append(view.Days, day)
	}
	return view, nil
}

// RearmAll re-arms the alerts of every committed schedule, e.g. at startup.
func (p *Planner) RearmAll(ctx context.Context) error {
	all, err := p.All()
	if err != nil {
		return err
	}
	for _, s := range all {
		p.syncAlert(ctx, s)
	}
	return nil
}

// syncAlert arms s's alert when enabled and in the future, cancels it otherwise.
func (p *Planner) syncAlert(ctx context.Context, s Schedule) {
	if p.Alerts == nil {
		return
	}
	at := s.AlertInstant(p.Location)
	if !s.AlertEnabled || !at.After(p.clock().Now()) {
		p.Alerts.Cancel(s.ID)
		return
	}

	title, body := p.alertText(s)
	if err := p.Alerts.Arm(s.ID, at, title, body); err != nil {
		// Already committed: log and carry on.
		slog.WarnContext(ctx, config.ErrAlertArm,
			config.LogKeyComponent, config.CompPlanner,
			config.LogKeyID, s.ID,
			config.LogKeyError, err)
	}
}

func (p *Planner) alertText(s Schedule) (string, string) {
	if p.FormatAlert != nil {
		return p.FormatAlert(s)
	}
	return s.Title, fmt.Sprintf(config.FallbackAlertBody, s.Title, s.Start)
}

func (p *Planner) changed(ctx context.Context) {
	if p.OnChange != nil {
		p.OnChange(ctx)
	}
}

func (p *Planner) newID() string {
	if p.IDs != nil {
		return p.IDs()
	}
	return NewID()
}

func (p *Planner) clock() calendar.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return calendar.RealClock{}
}
