package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/config"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/interventions"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/logging"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/metrics"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/theme"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/views/dashboard"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/views/debug"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/views/overlay"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/views/status"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/views/summary"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlaySummary
)

const requestTimeout = 10 * time.Second

var errNoAPI = errors.New("no session API configured")

// Options wires the root model to its collaborators.
type Options struct {
	Config       *config.Config
	API          *client.HTTPClient // nil disables pause, resume and summary
	Dialer       client.Dialer      // nil uses a gorilla dialer
	Log          *logrus.Entry
	Hook         *debug.Hook // feeds the debug overlay when set
	SummaryStyle string      // glamour style name
}

// Model is the root Bubble Tea model. It owns one session's connection
// manager, metrics aggregator and intervention scheduler.
type Model struct {
	cfg  *config.Config
	api  *client.HTTPClient
	log  *logrus.Entry
	hook *debug.Hook

	conn    *client.Manager
	metrics *metrics.Aggregator
	sched   *interventions.Scheduler

	keys    KeyMap
	help    help.Model
	width   int
	height  int
	overlay Overlay

	// Sub-views.
	statusBar status.Model
	dashboard dashboard.Model
	debugLog  debug.Model
	summary   summary.Model

	silence  bool
	spinning bool
	notice   string
}

// New creates the root model for the session in opts.Config.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = client.WSDialer{ReadTimeout: cfg.Heartbeat.ReadTimeout}
	}

	conn := client.NewManager(cfg.Session.ID, client.Options{
		BaseURL:     cfg.Server.URL,
		APIKey:      cfg.Server.APIKey,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		Backoff:     client.Backoff(cfg.Reconnect.Delays),
		Heartbeat:   cfg.Heartbeat.Interval,
		Dialer:      dialer,
		Log:         log,
	})
	agg := metrics.New(log)
	sched := interventions.New(interventions.Options{
		MaxQueue:    cfg.Interventions.MaxQueue,
		HistorySize: cfg.Interventions.History,
		Cooldown:    cfg.Interventions.Cooldown,
		Log:         log,
	})
	conn.Handle(agg)
	conn.Handle(sched)
	conn.Handle(bridge{})

	return Model{
		cfg:       cfg,
		api:       opts.API,
		log:       log.WithField("component", "app"),
		hook:      opts.Hook,
		conn:      conn,
		metrics:   agg,
		sched:     sched,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		statusBar: status.New(),
		dashboard: dashboard.New(),
		debugLog:  debug.New(),
		summary:   summary.New(opts.SummaryStyle),
	}
}

// --- Bubble Tea messages ---

type sessionLoadedMsg struct {
	id      string
	session *client.Session
	err     error
}

type pauseResultMsg struct {
	resume bool
	res    *client.PauseResumeResponse
	err    error
}

type summaryMsg struct {
	summary *client.Summary
	err     error
}

type serverErrorMsg events.ServerError

type settingsMsg map[string]any

type connectedMsg struct{}

type disconnectedMsg struct{ reason string }

// bridge turns the connection callbacks the root model reacts to into
// messages, so their effects are applied inside Update.
type bridge struct{}

func (bridge) OnServerError(p events.ServerError, _ time.Time) tea.Cmd {
	return emit(serverErrorMsg(p))
}

func (bridge) OnSettingsUpdated(s map[string]any, _ time.Time) tea.Cmd {
	return emit(settingsMsg(s))
}

func (bridge) OnConnect() tea.Cmd { return emit(connectedMsg{}) }

func (bridge) OnDisconnect(reason string) tea.Cmd {
	return emit(disconnectedMsg{reason: reason})
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// Init loads the session record, then connects.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadSession()}
	if m.hook != nil {
		cmds = append(cmds, m.hook.Wait())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.dashboard.Width = msg.Width
		m.help.Width = msg.Width
		m.summary.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusBar, cmd = m.statusBar.Update(msg)
		cmds = append(cmds, cmd)

	case dashboard.FrameMsg:
		var cmd tea.Cmd
		m.dashboard, cmd = m.dashboard.Update(msg)
		cmds = append(cmds, cmd)

	case debug.EntryMsg:
		m.debugLog.Append(debug.Entry(msg))
		if m.hook != nil {
			cmds = append(cmds, m.hook.Wait())
		}

	case sessionLoadedMsg:
		cmds = append(cmds, m.sessionLoaded(msg))

	case pauseResultMsg:
		m.pauseResult(msg)

	case summaryMsg:
		switch {
		case client.IsNotFound(msg.err):
			m.summary.SetError(errors.New("summary not available yet"))
		case msg.err != nil:
			m.summary.SetError(msg.err)
		default:
			m.summary.SetSummary(msg.summary)
		}

	case serverErrorMsg:
		m.notice = "Server error: " + msg.Message
		if msg.Code != "" {
			m.notice += " (" + msg.Code + ")"
		}

	case settingsMsg:
		if v, ok := msg["silenceDetection"].(bool); ok {
			m.silence = v
			m.notice = "Silence detection " + onOff(v)
		}

	case connectedMsg:
		m.notice = ""

	case disconnectedMsg:
		m.log.WithField("reason", msg.reason).Debug("session socket closed")

	default:
		cmds = append(cmds,
			m.conn.Update(msg),
			m.metrics.Update(msg),
			m.sched.Update(msg),
		)
	}

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

// sync refreshes the views that mirror component state.
func (m *Model) sync() tea.Cmd {
	m.statusBar.Sync(m.conn, m.cfg.Reconnect.MaxAttempts)
	m.statusBar.Silence = m.silence
	cmds := []tea.Cmd{m.dashboard.SetSnapshot(m.metrics.Snapshot())}

	busy := m.statusBar.Busy()
	if busy && !m.spinning {
		cmds = append(cmds, m.statusBar.Tick())
	}
	m.spinning = busy
	return tea.Batch(cmds...)
}

func (m Model) loadSession() tea.Cmd {
	id := m.conn.SessionID()
	if id == "" {
		return nil
	}
	if m.api == nil {
		return emit(sessionLoadedMsg{id: id})
	}
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		s, err := api.GetSession(ctx, id)
		return sessionLoadedMsg{id: id, session: s, err: err}
	}
}

func (m *Model) sessionLoaded(msg sessionLoadedMsg) tea.Cmd {
	if msg.id != m.conn.SessionID() {
		return nil
	}
	if msg.err != nil {
		m.log.WithError(msg.err).Warn("session lookup failed, connecting anyway")
	}
	if msg.session != nil {
		m.silence = msg.session.Facilitator.SilenceDetection
	}
	return tea.Batch(m.metrics.Init(msg.id, msg.session), m.conn.Connect())
}

// pauseResult only reports the outcome. The metrics follow the server's own
// session_state push.
func (m *Model) pauseResult(msg pauseResultMsg) {
	verb := "Pause"
	if msg.resume {
		verb = "Resume"
	}
	if msg.err != nil {
		m.notice = verb + " failed: " + msg.err.Error()
		return
	}
	if msg.resume {
		m.notice = "Facilitator resumed"
	} else {
		m.notice = "Facilitator paused"
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.overlay {
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		}
		return m, nil

	case OverlaySummary:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Summary):
			m.overlay = OverlayNone
			return m, nil
		}
		var cmd tea.Cmd
		m.summary, cmd = m.summary.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Acknowledge):
		done, ok, cmd := m.sched.Acknowledge()
		if ok && !m.conn.Acknowledge(done.ID) {
			m.notice = "Acknowledged locally, server not connected"
		}
		return m, cmd

	case key.Matches(msg, m.keys.Dismiss):
		_, _, cmd := m.sched.Dismiss()
		return m, cmd

	case key.Matches(msg, m.keys.Connect):
		m.notice = ""
		return m, m.conn.Connect()

	case key.Matches(msg, m.keys.Disconnect):
		return m, m.conn.Disconnect()

	case key.Matches(msg, m.keys.Pause):
		return m, m.togglePause()

	case key.Matches(msg, m.keys.Silence):
		if m.conn.SendSettings(map[string]any{"silence_detection": !m.silence}) {
			m.notice = "Updating silence detection..."
		} else {
			m.notice = "Not connected, settings unchanged"
		}
		return m, nil

	case key.Matches(msg, m.keys.Summary):
		m.overlay = OverlaySummary
		return m, m.fetchSummary()

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	return m, nil
}

func (m Model) quit() (Model, tea.Cmd) {
	m.conn.Disconnect()
	m.metrics.Teardown()
	m.sched.Clear()
	return m, tea.Quit
}

func (m *Model) togglePause() tea.Cmd {
	id := m.conn.SessionID()
	if m.api == nil || id == "" {
		m.notice = "Pause unavailable: " + errNoAPI.Error()
		return nil
	}
	snap := m.metrics.Snapshot()
	resume := snap.Status == events.SessionPaused || snap.FacilitatorPaused
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var (
			res *client.PauseResumeResponse
			err error
		)
		if resume {
			res, err = api.ResumeSession(ctx, id)
		} else {
			res, err = api.PauseSession(ctx, id)
		}
		return pauseResultMsg{resume: resume, res: res, err: err}
	}
}

func (m *Model) fetchSummary() tea.Cmd {
	id := m.conn.SessionID()
	if m.api == nil || id == "" {
		m.summary.SetError(errNoAPI)
		return nil
	}
	m.summary.SetLoading()
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		s, err := api.GetSummary(ctx, id)
		return summaryMsg{summary: s, err: err}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDebug:
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.debugLog.View(m.width, m.height-3))
	case OverlaySummary:
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.summary.View())
	}

	sections := []string{m.statusBar.View()}
	if b := m.banner(); b != "" {
		sections = append(sections, b)
	}
	sections = append(sections, m.dashboard.View())
	if ov := overlay.FromScheduler(m.sched).View(); ov != "" {
		sections = append(sections, ov)
	}
	if m.notice != "" {
		sections = append(sections, theme.StyleDimmed.Render("  "+m.notice))
	}
	sections = append(sections, "  "+m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) banner() string {
	danger := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger)
	switch {
	case m.conn.SessionID() == "":
		return danger.Render("  NO SESSION  set session.id in the config or pass --session")
	case m.conn.State() == client.StateError:
		return danger.Render("  CONNECTION FAILED  "+m.conn.LastError()) +
			theme.StyleDimmed.Render("  press c to retry")
	}
	return ""
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
