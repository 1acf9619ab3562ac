package notify

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tartampluch/go-lunarcal/internal/calendar"
	"github.com/tartampluch/go-lunarcal/internal/config"
)

// Sender delivers a fired alert to the user.
type Sender interface {
	Send(title, body string)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(title, body string)

func (f SenderFunc) Send(title, body string) { f(title, body) }

type alert struct {
	timer *time.Timer
	at    time.Time
}

// Scheduler keeps at most one pending alert per schedule ID, each backed by
// its own timer.
type Scheduler struct {
	Sender Sender
	Clock  calendar.Clock

	mu     sync.Mutex
	alerts map[string]*alert
}

// NewScheduler creates a Scheduler delivering through sender.
func NewScheduler(sender Sender, clock calendar.Clock) *Scheduler {
	if clock == nil {
		clock = calendar.RealClock{}
	}
	return &Scheduler{Sender: sender, Clock: clock, alerts: make(map[string]*alert)}
}

// Arm schedules (title, body) for delivery at at, replacing any alert
// already armed for id. An instant that is not in the future cancels the
// previous alert and arms nothing.
func (s *Scheduler) Arm(id string, at time.Time, title, body string) error {
	if id == "" {
		return fmt.Errorf("%s: %s", config.ErrAlertArm, config.ErrEmptyID)
	}
	log := slog.With(
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyID, id,
		config.LogKeyAt, at,
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(id)

	delay := at.Sub(s.Clock.Now())
	if delay <= 0 {
		log.Debug(config.MsgAlertPast)
		return nil
	}

	a := &alert{at: at}
	a.timer = time.AfterFunc(delay, func() { s.fire(id, a, title, body) })
	s.alerts[id] = a
	log.Debug(config.MsgAlertArmed)
	return nil
}

// Cancel stops the alert armed for id, if any.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopLocked(id) {
		slog.Debug(config.MsgAlertCancelled,
			config.LogKeyComponent, config.CompNotify,
			config.LogKeyID, id)
	}
}

// CancelAll stops every pending alert.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.alerts {
		s.stopLocked(id)
	}
}

// Pending returns the IDs with an armed alert, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.alerts))
	for id := range s.alerts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// At returns the instant armed for id.
func (s *Scheduler) At(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return time.Time{}, false
	}
	return a.at, true
}

func (s *Scheduler) stopLocked(id string) bool {
	a, ok := s.alerts[id]
	if !ok {
		return false
	}
	a.timer.Stop()
	delete(s.alerts, id)
	return true
}

// fire delivers the alert unless it was replaced or cancelled meanwhile.
func (s *Scheduler) fire(id string, a *alert, title, body string) {
	s.mu.Lock()
	if s.alerts[id] != a {
		s.mu.Unlock()
		return
	}
	delete(s.alerts, id)
	sender := s.Sender
	s.mu.Unlock()

	slog.Info(config.MsgAlertFired,
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyID, id)
	if sender != nil {
		sender.Send(title, body)
	}
}
