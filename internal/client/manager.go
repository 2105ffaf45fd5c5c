package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/logging"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/tick"
)

// APIKeyHeader carries the API key on the websocket handshake and REST calls.
const APIKeyHeader = "x-meeting-baas-api-key"

const dialTimeout = 15 * time.Second

var (
	// ErrNotConnected is logged when a send is attempted outside the
	// connected state.
	ErrNotConnected = errors.New("not connected")
	// ErrNoSession is logged when Connect is called without a session id.
	ErrNoSession = errors.New("no session id")
	// ErrSessionNotFound is the terminal error for close code 4004.
	ErrSessionNotFound = errors.New("session not found")
)

// Messages surfaced through LastError and disconnect handlers.
const (
	msgSessionNotFound = "Session not found"
	msgGaveUp          = "Connection failed after %d attempts"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	BaseURL     string // ws:// or wss:// server root
	APIKey      string
	MaxAttempts int
	Backoff     Backoff
	Heartbeat   time.Duration
	Dialer      Dialer
	Log         *logrus.Entry
}

// Manager owns the single websocket of one live session. It is driven
// entirely from the Bubble Tea update loop: socket I/O and timers run as
// commands and report back as messages tagged with the generation of the
// socket they belong to. Every Connect, reconnect and Disconnect starts a
// new generation, so messages from a superseded socket are ignored.
type Manager struct {
	opts      Options
	sessionID string
	log       *logrus.Entry

	state    State
	lastErr  string
	attempts int
	gen      int
	sock     Socket

	reconnect *tick.Timer
	heartbeat *tick.Ticker

	handlers handlers
}

// NewManager returns a disconnected manager for sessionID.
func NewManager(sessionID string, opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if len(opts.Backoff) == 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{}
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	return &Manager{
		opts:      opts,
		sessionID: sessionID,
		log:       opts.Log.WithField("component", "connection"),
		reconnect: tick.NewTimer(),
		heartbeat: tick.NewTicker(opts.Heartbeat),
	}
}

// --- Bubble Tea messages ---

type dialedMsg struct {
	gen  int
	sock Socket
	err  error
}

type frameMsg struct {
	gen  int
	data []byte
}

type closedMsg struct {
	gen    int
	code   int
	reason string
	err    error
}

// State returns the current lifecycle state.
func (m *Manager) State() State { return m.state }

// LastError returns the most recent transport or terminal error message.
func (m *Manager) LastError() string { return m.lastErr }

// Attempts returns the consecutive failed connection count.
func (m *Manager) Attempts() int { return m.attempts }

// SessionID returns the session the manager targets.
func (m *Manager) SessionID() string { return m.sessionID }

// PendingDelay returns the delay of the scheduled reconnect, or zero.
func (m *Manager) PendingDelay() time.Duration {
	if !m.reconnect.Active() {
		return 0
	}
	return m.reconnect.Duration()
}

// EndpointURL returns the websocket URL for the current session.
func (m *Manager) EndpointURL() string {
	base := strings.TrimRight(m.opts.BaseURL, "/")
	return fmt.Sprintf("%s/sessions/%s/events", base, url.PathEscape(m.sessionID))
}

// Connect abandons any existing socket and timers, resets the attempt
// counter and dials. Without a session id it does nothing.
func (m *Manager) Connect() tea.Cmd {
	if m.sessionID == "" {
		m.log.WithError(ErrNoSession).Info("connect skipped")
		return nil
	}
	m.reconnect.Stop()
	m.heartbeat.Stop()
	m.dropSocket("reconnecting")
	m.attempts = 0
	return m.dial()
}

// Disconnect cancels pending timers, closes the socket normally and leaves
// the manager disconnected. It never schedules a reconnect.
func (m *Manager) Disconnect() tea.Cmd {
	m.reconnect.Stop()
	m.heartbeat.Stop()
	notify := m.sock != nil || m.state == StateConnecting
	m.dropSocket("client disconnect")
	m.gen++
	m.attempts = 0
	m.state = StateDisconnected
	m.log.Info("disconnected by client")
	if !notify {
		return nil
	}
	return m.notifyDisconnect("client disconnect")
}

// SetSession re-targets the manager. It disconnects from the old session and
// connects to id when id is non-empty.
func (m *Manager) SetSession(id string) tea.Cmd {
	if id == m.sessionID && m.state != StateDisconnected && m.state != StateError {
		return nil
	}
	cmd := m.Disconnect()
	m.sessionID = id
	if id == "" {
		return cmd
	}
	return tea.Batch(cmd, m.Connect())
}

// Send writes v as a JSON frame. It reports false, without error, when the
// manager is not connected or the write fails.
func (m *Manager) Send(v any) bool {
	if m.state != StateConnected || m.sock == nil {
		m.log.WithError(ErrNotConnected).Debug("dropping outbound frame")
		return false
	}
	if err := m.sock.WriteJSON(v); err != nil {
		m.log.WithError(err).Warn("write failed")
		return false
	}
	return true
}

// Acknowledge tells the server an intervention was acknowledged.
func (m *Manager) Acknowledge(interventionID string) bool {
	return m.Send(events.InterventionAck(interventionID))
}

// SendSettings asks the server to update facilitator settings.
func (m *Manager) SendSettings(settings map[string]any) bool {
	return m.Send(events.UpdateSettings(settings))
}

// Update handles the manager's own messages and ignores everything else.
func (m *Manager) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case dialedMsg:
		return m.opened(msg)

	case frameMsg:
		if msg.gen != m.gen {
			return nil
		}
		return tea.Batch(m.dispatch(msg.data), m.read(msg.gen, m.sock))

	case closedMsg:
		if msg.gen != m.gen {
			return nil
		}
		if msg.err != nil && msg.code == CloseAbnormal {
			m.lastErr = msg.err.Error()
		}
		m.log.WithFields(logrus.Fields{"code": msg.code, "reason": msg.reason}).Info("socket closed")
		return m.closed(msg.code, msg.reason)

	case tick.FiredMsg:
		if m.reconnect.Fired(msg) {
			return m.dial()
		}
		if fired, next := m.heartbeat.Fired(msg); fired {
			m.Send(events.Ping())
			return next
		}
	}
	return nil
}

func (m *Manager) dial() tea.Cmd {
	m.gen++
	m.state = StateConnecting
	gen := m.gen
	endpoint := m.EndpointURL()
	header := http.Header{}
	if m.opts.APIKey != "" {
		header.Set(APIKeyHeader, m.opts.APIKey)
	}
	dialer := m.opts.Dialer
	m.log.WithFields(logrus.Fields{"url": endpoint, "attempt": m.attempts}).Info("dialing")

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		sock, err := dialer.Dial(ctx, endpoint, header)
		return dialedMsg{gen: gen, sock: sock, err: err}
	}
}

func (m *Manager) opened(msg dialedMsg) tea.Cmd {
	if msg.gen != m.gen {
		if msg.sock != nil {
			msg.sock.Close(CloseNormal, "superseded")
		}
		return nil
	}
	if msg.err != nil {
		m.lastErr = msg.err.Error()
		code, reason := CloseCodeOf(msg.err)
		m.log.WithError(msg.err).WithField("code", code).Warn("dial failed")
		return m.closed(code, reason)
	}

	m.sock = msg.sock
	m.state = StateConnected
	m.lastErr = ""
	m.attempts = 0
	m.log.Info("connected")

	cmds := []tea.Cmd{m.heartbeat.Start(), m.read(msg.gen, msg.sock)}
	for _, h := range m.handlers.connect {
		cmds = append(cmds, h.OnConnect())
	}
	return tea.Batch(cmds...)
}

// closed applies the close policy for the current socket.
func (m *Manager) closed(code int, reason string) tea.Cmd {
	m.heartbeat.Stop()
	m.reconnect.Stop()
	m.dropSocket(reason)

	switch {
	case code == CloseNormal || m.sessionID == "":
		m.state = StateDisconnected
		m.attempts = 0
		return m.notifyDisconnect(reason)

	case code == CloseSessionNotFound:
		m.state = StateError
		m.lastErr = msgSessionNotFound
		m.log.WithError(ErrSessionNotFound).Error("session not found, not retrying")
		return m.notifyDisconnect(msgSessionNotFound)
	}

	notify := m.notifyDisconnect(reason)
	m.attempts++
	if m.attempts >= m.opts.MaxAttempts {
		m.state = StateError
		m.lastErr = fmt.Sprintf(msgGaveUp, m.attempts)
		m.log.WithField("attempts", m.attempts).Error("giving up on reconnect")
		return notify
	}
	delay := m.opts.Backoff.Delay(m.attempts)
	m.state = StateReconnecting
	m.log.WithFields(logrus.Fields{"attempt": m.attempts, "delay": delay}).Info("reconnect scheduled")
	return tea.Batch(notify, m.reconnect.Start(delay))
}

// read waits for the next frame on sock. It is re-issued after each frame.
func (m *Manager) read(gen int, sock Socket) tea.Cmd {
	if sock == nil {
		return nil
	}
	return func() tea.Msg {
		data, err := sock.ReadFrame()
		if err != nil {
			code, reason := CloseCodeOf(err)
			return closedMsg{gen: gen, code: code, reason: reason, err: err}
		}
		return frameMsg{gen: gen, data: data}
	}
}

// dropSocket closes and forgets the current socket. The close is always
// sent as normal so the server does not treat it as a failure.
func (m *Manager) dropSocket(reason string) {
	if m.sock == nil {
		return
	}
	m.sock.Close(CloseNormal, reason)
	m.sock = nil
}

func (m *Manager) notifyDisconnect(reason string) tea.Cmd {
	var cmds []tea.Cmd
	for _, h := range m.handlers.disconnect {
		cmds = append(cmds, h.OnDisconnect(reason))
	}
	return tea.Batch(cmds...)
}
