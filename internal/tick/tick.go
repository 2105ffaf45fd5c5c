// Package tick provides one-shot timers and repeating tickers whose firings
// are delivered as Bubble Tea messages. Each handle has a single owner that
// arms and cancels it; a firing from a cancelled or re-armed handle is
// recognised as stale and ignored, so a leaked tick can never act on state
// that has moved on.
package tick

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var lastID int64

func nextID() int {
	return int(atomic.AddInt64(&lastID, 1))
}

// FiredMsg is delivered when a Timer or Ticker interval elapses.
type FiredMsg struct {
	ID  int
	tag int
}

// Timer is a cancellable one-shot timer.
type Timer struct {
	id       int
	tag      int
	armed    bool
	duration time.Duration
}

// NewTimer returns an idle timer.
func NewTimer() *Timer {
	return &Timer{id: nextID()}
}

// Start arms the timer for d, cancelling any earlier arming.
func (t *Timer) Start(d time.Duration) tea.Cmd {
	t.tag++
	t.armed = true
	t.duration = d
	msg := FiredMsg{ID: t.id, tag: t.tag}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return msg
	})
}

// Stop cancels the timer. A firing already in flight is ignored.
func (t *Timer) Stop() {
	if t.armed {
		t.tag++
	}
	t.armed = false
}

// Active reports whether the timer is armed and has not fired.
func (t *Timer) Active() bool {
	return t.armed
}

// Duration returns the delay of the current or most recent arming.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Fired reports whether msg is this timer's live firing and disarms it.
func (t *Timer) Fired(msg tea.Msg) bool {
	m, ok := msg.(FiredMsg)
	if !ok || !t.armed || m.ID != t.id || m.tag != t.tag {
		return false
	}
	t.armed = false
	return true
}

// Pending returns the message the armed timer will deliver. Owners use it
// to fire a timer synchronously, mostly in tests.
func (t *Timer) Pending() (tea.Msg, bool) {
	if !t.armed {
		return nil, false
	}
	return FiredMsg{ID: t.id, tag: t.tag}, true
}

// Ticker fires repeatedly at a fixed interval until stopped.
type Ticker struct {
	timer    *Timer
	interval time.Duration
}

// NewTicker returns a stopped ticker.
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{timer: NewTimer(), interval: interval}
}

// Start begins ticking, replacing any running schedule.
func (t *Ticker) Start() tea.Cmd {
	return t.timer.Start(t.interval)
}

// Stop ends the schedule.
func (t *Ticker) Stop() {
	t.timer.Stop()
}

// Running reports whether the ticker is scheduled.
func (t *Ticker) Running() bool {
	return t.timer.Active()
}

// Interval returns the tick period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Fired reports whether msg is a live tick of this ticker. On a live tick it
// also returns the command that schedules the next one.
func (t *Ticker) Fired(msg tea.Msg) (bool, tea.Cmd) {
	if !t.timer.Fired(msg) {
		return false, nil
	}
	return true, t.timer.Start(t.interval)
}

// Pending returns the message the next tick will deliver.
func (t *Ticker) Pending() (tea.Msg, bool) {
	return t.timer.Pending()
}
