package notify_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lunarcal/internal/notify"
)

type delivery struct{ title, body string }

// recorder collects deliveries; safe for use from timer goroutines.
type recorder struct {
	mu   sync.Mutex
	got  []delivery
	sent chan struct{}
}

func newRecorder() *recorder {
	return &recorder{sent: make(chan struct{}, 16)}
}

func (r *recorder) Send(title, body string) {
	r.mu.Lock()
	r.got = append(r.got, delivery{title, body})
	r.mu.Unlock()
	r.sent <- struct{}{}
}

func (r *recorder) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.got...)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestScheduler_FiresOnce(t *testing.T) {
	rec := newRecorder()
	s := notify.NewScheduler(rec, nil)

	require.NoError(t, s.Arm("a", time.Now().Add(20*time.Millisecond), "Dentist", "at 09:00"))
	assert.Equal(t, []string{"a"}, s.Pending())

	select {
	case <-rec.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("alert did not fire")
	}

	assert.Equal(t, []delivery{{"Dentist", "at 09:00"}}, rec.deliveries())
	assert.Empty(t, s.Pending(), "a fired alert is no longer pending")
}

// TestScheduler_ArmReplaces checks only the latest alert per ID is delivered.
func TestScheduler_ArmReplaces(t *testing.T) {
	rec := newRecorder()
	s := notify.NewScheduler(rec, nil)

	require.NoError(t, s.Arm("a", time.Now().Add(30*time.Millisecond), "old", ""))
	require.NoError(t, s.Arm("a", time.Now().Add(60*time.Millisecond), "new", ""))
	assert.Len(t, s.Pending(), 1)

	select {
	case <-rec.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("alert did not fire")
	}
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []delivery{{"new", ""}}, rec.deliveries())
}

func TestScheduler_Cancel(t *testing.T) {
	rec := newRecorder()
	s := notify.NewScheduler(rec, nil)

	require.NoError(t, s.Arm("a", time.Now().Add(30*time.Millisecond), "t", "b"))
	require.NoError(t, s.Arm("b", time.Now().Add(time.Hour), "t", "b"))
	s.Cancel("a")
	s.Cancel("unknown")

	assert.Equal(t, []string{"b"}, s.Pending())
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.deliveries())

	s.CancelAll()
	assert.Empty(t, s.Pending())
}

func TestScheduler_PastInstantIsDropped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := notify.NewScheduler(newRecorder(), fixedClock{now: now})

	require.NoError(t, s.Arm("a", now.Add(time.Hour), "t", "b"))
	require.NoError(t, s.Arm("a", now.Add(-time.Minute), "t", "b"))

	assert.Empty(t, s.Pending(), "re-arming in the past cancels the previous alert")
}

func TestScheduler_At(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := notify.NewScheduler(nil, fixedClock{now: now})
	defer s.CancelAll()

	at := now.Add(48 * time.Hour)
	require.NoError(t, s.Arm("a", at, "t", "b"))

	got, ok := s.At("a")
	assert.True(t, ok)
	assert.Equal(t, at, got)

	_, ok = s.At("missing")
	assert.False(t, ok)
}

func TestScheduler_EmptyID(t *testing.T) {
	s := notify.NewScheduler(nil, nil)
	assert.Error(t, s.Arm("", time.Now().Add(time.Hour), "t", "b"))
}

func TestSenderFunc(t *testing.T) {
	var got string
	notify.SenderFunc(func(title, body string) { got = title + "|" + body }).Send("a", "b")
	assert.Equal(t, "a|b", got)
}
