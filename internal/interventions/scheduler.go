// Package interventions serialises incoming facilitation nudges into a single
// display sequence: one current entry, a priority-ordered pending queue and a
// bounded history of resolved entries.
package interventions

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/logging"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/tick"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxQueue    = 10
	DefaultHistorySize = 50
	DefaultCooldown    = 30 * time.Second
)

// Options configures a Scheduler.
type Options struct {
	MaxQueue    int
	HistorySize int
	Cooldown    time.Duration
	Now         func() time.Time
	Log         *logrus.Entry
}

// Scheduler owns the current intervention, the pending queue and history.
// Methods run on the update loop and are not safe for concurrent use.
type Scheduler struct {
	opts Options
	log  *logrus.Entry

	current *events.InterventionWithMeta
	queue   []events.InterventionWithMeta
	history []events.InterventionWithMeta

	autoDismiss        *tick.Timer
	lastInterventionAt time.Time
}

// New returns an empty scheduler.
func New(opts Options) *Scheduler {
	if opts.MaxQueue <= 0 {
		opts.MaxQueue = DefaultMaxQueue
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	return &Scheduler{
		opts:        opts,
		log:         opts.Log.WithField("component", "interventions"),
		autoDismiss: tick.NewTimer(),
	}
}

// OnIntervention feeds an intervention received from the server.
func (s *Scheduler) OnIntervention(iv events.Intervention, _ time.Time) tea.Cmd {
	return s.Push(iv)
}

// Push schedules iv. A repeated id is ignored. With nothing on screen iv
// becomes current at once; otherwise it waits in the queue by priority and
// never interrupts the current entry.
func (s *Scheduler) Push(iv events.Intervention) tea.Cmd {
	if s.has(iv.ID) {
		s.log.WithField("id", iv.ID).Debug("duplicate intervention ignored")
		return nil
	}
	entry := events.WithMeta(iv)
	s.lastInterventionAt = s.opts.Now()

	if s.current == nil {
		return s.show(entry)
	}

	s.queue = append(s.queue, entry)
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].Priority < s.queue[j].Priority
	})
	if len(s.queue) > s.opts.MaxQueue {
		for _, dropped := range s.queue[s.opts.MaxQueue:] {
			s.log.WithFields(logrus.Fields{"id": dropped.ID, "type": dropped.Type}).Warn("queue full, dropping intervention")
		}
		s.queue = s.queue[:s.opts.MaxQueue]
	}
	return nil
}

// Acknowledge resolves the current entry as acknowledged and promotes the
// next one. It returns the resolved entry, or false when nothing is shown.
func (s *Scheduler) Acknowledge() (events.InterventionWithMeta, bool, tea.Cmd) {
	return s.resolve(true)
}

// Dismiss resolves the current entry without acknowledging it. It is used
// for explicit dismissal and for auto-dismiss.
func (s *Scheduler) Dismiss() (events.InterventionWithMeta, bool, tea.Cmd) {
	return s.resolve(false)
}

// Clear drops the current entry and queue without recording history.
func (s *Scheduler) Clear() {
	s.autoDismiss.Stop()
	s.current = nil
	s.queue = nil
}

// Update handles auto-dismiss firings.
func (s *Scheduler) Update(msg tea.Msg) tea.Cmd {
	if !s.autoDismiss.Fired(msg) {
		return nil
	}
	resolved, ok, cmd := s.Dismiss()
	if ok {
		s.log.WithField("id", resolved.ID).Debug("auto-dismissed")
	}
	return cmd
}

// Current returns the entry on screen.
func (s *Scheduler) Current() (events.InterventionWithMeta, bool) {
	if s.current == nil {
		return events.InterventionWithMeta{}, false
	}
	return *s.current, true
}

// Queue returns a copy of the pending entries in display order.
func (s *Scheduler) Queue() []events.InterventionWithMeta {
	return append([]events.InterventionWithMeta(nil), s.queue...)
}

// History returns resolved entries, oldest first.
func (s *Scheduler) History() []events.InterventionWithMeta {
	return append([]events.InterventionWithMeta(nil), s.history...)
}

// OverlayVisible reports whether an intervention should be on screen.
func (s *Scheduler) OverlayVisible() bool {
	return s.current != nil
}

// InCooldown reports whether an intervention arrived within the cooldown
// window. It is informational and never gates Push.
func (s *Scheduler) InCooldown() bool {
	if s.lastInterventionAt.IsZero() {
		return false
	}
	return s.opts.Now().Sub(s.lastInterventionAt) < s.opts.Cooldown
}

// AutoDismissPending returns the running auto-dismiss delay, or zero.
func (s *Scheduler) AutoDismissPending() time.Duration {
	if !s.autoDismiss.Active() {
		return 0
	}
	return s.autoDismiss.Duration()
}

func (s *Scheduler) has(id string) bool {
	if s.current != nil && s.current.ID == id {
		return true
	}
	for _, e := range s.queue {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (s *Scheduler) show(entry events.InterventionWithMeta) tea.Cmd {
	s.current = &entry
	s.log.WithFields(logrus.Fields{
		"id":       entry.ID,
		"type":     entry.Type,
		"priority": entry.Priority,
	}).Info("showing intervention")
	if !entry.TimerEligible() {
		s.autoDismiss.Stop()
		return nil
	}
	return s.autoDismiss.Start(entry.AutoDismissAfter)
}

func (s *Scheduler) resolve(acked bool) (events.InterventionWithMeta, bool, tea.Cmd) {
	if s.current == nil {
		return events.InterventionWithMeta{}, false, nil
	}
	s.autoDismiss.Stop()
	done := *s.current
	done.Acknowledged = acked
	s.current = nil

	s.history = append(s.history, done)
	if len(s.history) > s.opts.HistorySize {
		s.history = s.history[len(s.history)-s.opts.HistorySize:]
	}

	if len(s.queue) == 0 {
		return done, true, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return done, true, s.show(next)
}
