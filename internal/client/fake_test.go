package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

type fakeSocket struct {
	mu      sync.Mutex
	frames  chan []byte
	written []json.RawMessage
	closed  bool
	code    int
	failW   bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{frames: make(chan []byte, 16)}
}

func (s *fakeSocket) ReadFrame() ([]byte, error) {
	data, ok := <-s.frames
	if !ok {
		return nil, &CloseError{Code: CloseAbnormal}
	}
	return data, nil
}

func (s *fakeSocket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failW || s.closed {
		return &CloseError{Code: CloseAbnormal, Reason: "write on closed socket"}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.written = append(s.written, data)
	return nil
}

func (s *fakeSocket) Close(code int, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.code = code
		close(s.frames)
	}
	return nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) sent() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.written...)
}

// fakeDialer hands out sockets, or the queued errors first.
type fakeDialer struct {
	mu      sync.Mutex
	errs    []error
	sockets []*fakeSocket
	urls    []string
	headers []http.Header
}

func (d *fakeDialer) Dial(_ context.Context, url string, header http.Header) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header)
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	s := newFakeSocket()
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sockets {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

func (d *fakeDialer) last() *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}

// recorder implements every handler interface.
type recorder struct {
	connects      int
	disconnects   []string
	balances      []events.BalanceUpdate
	interventions []events.Intervention
	states        []events.SessionState
	aiStatuses    []events.AIStatus
	serverErrors  []events.ServerError
	settings      []map[string]any
	stamps        []time.Time
}

func (r *recorder) OnConnect() tea.Cmd { r.connects++; return nil }
func (r *recorder) OnDisconnect(reason string) tea.Cmd {
	r.disconnects = append(r.disconnects, reason)
	return nil
}
func (r *recorder) OnBalance(p events.BalanceUpdate, at time.Time) tea.Cmd {
	r.balances = append(r.balances, p)
	r.stamps = append(r.stamps, at)
	return nil
}
func (r *recorder) OnTimeRemaining(events.TimeRemaining, time.Time) tea.Cmd { return nil }
func (r *recorder) OnSessionState(p events.SessionState, _ time.Time) tea.Cmd {
	r.states = append(r.states, p)
	return nil
}
func (r *recorder) OnIntervention(iv events.Intervention, _ time.Time) tea.Cmd {
	r.interventions = append(r.interventions, iv)
	return nil
}
func (r *recorder) OnParticipantStatus(events.ParticipantStatus, time.Time) tea.Cmd { return nil }
func (r *recorder) OnAIStatus(p events.AIStatus, _ time.Time) tea.Cmd {
	r.aiStatuses = append(r.aiStatuses, p)
	return nil
}
func (r *recorder) OnGoalDrift(events.GoalDrift, time.Time) tea.Cmd { return nil }
func (r *recorder) OnServerError(p events.ServerError, _ time.Time) tea.Cmd {
	r.serverErrors = append(r.serverErrors, p)
	return nil
}
func (r *recorder) OnSettingsUpdated(s map[string]any, _ time.Time) tea.Cmd {
	r.settings = append(r.settings, s)
	return nil
}
