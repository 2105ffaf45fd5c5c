// Package metrics keeps the latest-known live metrics of a session. Each
// event kind owns its own slots; nothing is derived from another slot, and a
// slot whose event stops arriving simply goes stale.
package metrics

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/logging"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/tick"
)

// Snapshot is a point-in-time copy of every slot.
type Snapshot struct {
	SessionID string

	// session_state
	Status          events.SessionStatus
	Goal            string
	DurationMinutes int
	Members         []events.Participant

	Balance           *events.BalanceUpdate
	AIStatus          events.AIStatus
	TimeRemaining     *events.TimeRemaining
	GoalDrift         *events.GoalDrift
	Participants      map[string]events.ParticipantStatus
	FacilitatorPaused bool

	// ElapsedSeconds counts locally while the session is in progress.
	ElapsedSeconds int
	LastEventAt    time.Time
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Members = append([]events.Participant(nil), s.Members...)
	if s.Balance != nil {
		b := *s.Balance
		if b.ParticipantA != nil {
			a := *b.ParticipantA
			b.ParticipantA = &a
		}
		if b.ParticipantB != nil {
			pb := *b.ParticipantB
			b.ParticipantB = &pb
		}
		out.Balance = &b
	}
	if s.TimeRemaining != nil {
		tr := *s.TimeRemaining
		out.TimeRemaining = &tr
	}
	if s.GoalDrift != nil {
		gd := *s.GoalDrift
		out.GoalDrift = &gd
	}
	out.Participants = make(map[string]events.ParticipantStatus, len(s.Participants))
	for k, v := range s.Participants {
		out.Participants[k] = v
	}
	return out
}

// Aggregator owns the snapshot of one session.
type Aggregator struct {
	snap    Snapshot
	elapsed *tick.Ticker
	log     *logrus.Entry
}

// New returns an empty aggregator.
func New(log *logrus.Entry) *Aggregator {
	if log == nil {
		log = logging.Discard()
	}
	a := &Aggregator{
		elapsed: tick.NewTicker(time.Second),
		log:     log.WithField("component", "metrics"),
	}
	a.reset("")
	return a
}

func (a *Aggregator) reset(sessionID string) {
	a.elapsed.Stop()
	a.snap = Snapshot{
		SessionID:    sessionID,
		AIStatus:     events.AIStatus{Status: events.AIIdle},
		Participants: map[string]events.ParticipantStatus{},
	}
}

// Init resets every slot for sessionID and seeds the session slots from the
// REST record when one is available.
func (a *Aggregator) Init(sessionID string, session *client.Session) tea.Cmd {
	a.reset(sessionID)
	if session == nil {
		return nil
	}
	a.snap.Status = session.Status
	a.snap.Goal = session.Goal
	a.snap.DurationMinutes = session.DurationMinutes
	a.snap.Members = append([]events.Participant(nil), session.Participants...)
	return a.syncTicker()
}

// Teardown clears everything and stops the elapsed ticker.
func (a *Aggregator) Teardown() {
	a.reset("")
}

// Snapshot returns a copy that the caller may keep.
func (a *Aggregator) Snapshot() Snapshot {
	return a.snap.clone()
}

// Update advances the elapsed counter.
func (a *Aggregator) Update(msg tea.Msg) tea.Cmd {
	fired, next := a.elapsed.Fired(msg)
	if !fired {
		return nil
	}
	a.snap.ElapsedSeconds++
	return next
}

// Ticking reports whether the elapsed counter is running.
func (a *Aggregator) Ticking() bool {
	return a.elapsed.Running()
}

func (a *Aggregator) OnBalance(p events.BalanceUpdate, at time.Time) tea.Cmd {
	a.snap.Balance = &p
	a.stamp(at)
	return nil
}

func (a *Aggregator) OnTimeRemaining(p events.TimeRemaining, at time.Time) tea.Cmd {
	a.snap.TimeRemaining = &p
	a.stamp(at)
	return nil
}

func (a *Aggregator) OnAIStatus(p events.AIStatus, at time.Time) tea.Cmd {
	a.snap.AIStatus = p
	a.stamp(at)
	return nil
}

func (a *Aggregator) OnGoalDrift(p events.GoalDrift, at time.Time) tea.Cmd {
	a.snap.GoalDrift = &p
	a.stamp(at)
	return nil
}

func (a *Aggregator) OnParticipantStatus(p events.ParticipantStatus, at time.Time) tea.Cmd {
	a.snap.Participants[p.ParticipantID] = p
	a.stamp(at)
	return nil
}

// OnSessionState overwrites the session slots carried by p. An explicit
// aiStatus is written to the AI status slot.
func (a *Aggregator) OnSessionState(p events.SessionState, at time.Time) tea.Cmd {
	if p.Status != "" {
		a.snap.Status = p.Status
	}
	if p.Ended {
		a.snap.Status = events.SessionEnded
	}
	if p.Goal != "" {
		a.snap.Goal = p.Goal
	}
	if p.DurationMinutes != nil {
		a.snap.DurationMinutes = *p.DurationMinutes
	}
	if p.Participants != nil {
		a.snap.Members = append([]events.Participant(nil), p.Participants...)
	}
	if p.FacilitatorPaused != nil {
		a.snap.FacilitatorPaused = *p.FacilitatorPaused
	}
	if p.AIStatus != nil {
		a.snap.AIStatus = events.AIStatus{Status: *p.AIStatus}
	}
	a.stamp(at)
	return a.syncTicker()
}

// syncTicker runs the elapsed counter exactly while the session is in progress.
func (a *Aggregator) syncTicker() tea.Cmd {
	active := a.snap.Status == events.SessionInProgress
	switch {
	case active && !a.elapsed.Running():
		a.log.Debug("elapsed counter started")
		return a.elapsed.Start()
	case !active && a.elapsed.Running():
		a.log.WithField("status", a.snap.Status).Debug("elapsed counter stopped")
		a.elapsed.Stop()
	}
	return nil
}

func (a *Aggregator) stamp(at time.Time) {
	a.snap.LastEventAt = at
}
