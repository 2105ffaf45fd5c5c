package client

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

// Consumers implement the subset of handler interfaces they care about and
// register with Manager.Handle. Every method runs on the update loop and
// may return a follow-up command, typically a timer.

type BalanceHandler interface {
	OnBalance(p events.BalanceUpdate, at time.Time) tea.Cmd
}

type TimeRemainingHandler interface {
	OnTimeRemaining(p events.TimeRemaining, at time.Time) tea.Cmd
}

type SessionStateHandler interface {
	OnSessionState(p events.SessionState, at time.Time) tea.Cmd
}

// InterventionHandler receives both the intervention and escalation kinds.
type InterventionHandler interface {
	OnIntervention(iv events.Intervention, at time.Time) tea.Cmd
}

type ParticipantHandler interface {
	OnParticipantStatus(p events.ParticipantStatus, at time.Time) tea.Cmd
}

type AIStatusHandler interface {
	OnAIStatus(p events.AIStatus, at time.Time) tea.Cmd
}

type GoalDriftHandler interface {
	OnGoalDrift(p events.GoalDrift, at time.Time) tea.Cmd
}

// ServerErrorHandler receives the server's error kind as data. It has no
// effect on the connection.
type ServerErrorHandler interface {
	OnServerError(p events.ServerError, at time.Time) tea.Cmd
}

type SettingsHandler interface {
	OnSettingsUpdated(settings map[string]any, at time.Time) tea.Cmd
}

type ConnectHandler interface {
	OnConnect() tea.Cmd
}

// DisconnectHandler is told about every close the Manager acts on,
// including ones it will retry.
type DisconnectHandler interface {
	OnDisconnect(reason string) tea.Cmd
}

type handlers struct {
	balance      []BalanceHandler
	timeLeft     []TimeRemainingHandler
	sessionState []SessionStateHandler
	intervention []InterventionHandler
	participant  []ParticipantHandler
	aiStatus     []AIStatusHandler
	goalDrift    []GoalDriftHandler
	serverError  []ServerErrorHandler
	settings     []SettingsHandler
	connect      []ConnectHandler
	disconnect   []DisconnectHandler
}

// Handle registers h for every handler interface it implements and returns
// how many it matched.
func (m *Manager) Handle(h any) int {
	n := 0
	if v, ok := h.(BalanceHandler); ok {
		m.handlers.balance = append(m.handlers.balance, v)
		n++
	}
	if v, ok := h.(TimeRemainingHandler); ok {
		m.handlers.timeLeft = append(m.handlers.timeLeft, v)
		n++
	}
	if v, ok := h.(SessionStateHandler); ok {
		m.handlers.sessionState = append(m.handlers.sessionState, v)
		n++
	}
	if v, ok := h.(InterventionHandler); ok {
		m.handlers.intervention = append(m.handlers.intervention, v)
		n++
	}
	if v, ok := h.(ParticipantHandler); ok {
		m.handlers.participant = append(m.handlers.participant, v)
		n++
	}
	if v, ok := h.(AIStatusHandler); ok {
		m.handlers.aiStatus = append(m.handlers.aiStatus, v)
		n++
	}
	if v, ok := h.(GoalDriftHandler); ok {
		m.handlers.goalDrift = append(m.handlers.goalDrift, v)
		n++
	}
	if v, ok := h.(ServerErrorHandler); ok {
		m.handlers.serverError = append(m.handlers.serverError, v)
		n++
	}
	if v, ok := h.(SettingsHandler); ok {
		m.handlers.settings = append(m.handlers.settings, v)
		n++
	}
	if v, ok := h.(ConnectHandler); ok {
		m.handlers.connect = append(m.handlers.connect, v)
		n++
	}
	if v, ok := h.(DisconnectHandler); ok {
		m.handlers.disconnect = append(m.handlers.disconnect, v)
		n++
	}
	return n
}

// dispatch decodes one inbound frame and fans it out. Undecodable frames and
// unknown kinds are logged and dropped.
func (m *Manager) dispatch(data []byte) tea.Cmd {
	env, err := events.Decode(data)
	if err != nil {
		m.log.WithError(err).Warn("dropping malformed frame")
		return nil
	}
	if !events.Known(env.Kind) {
		m.log.WithField("kind", env.Kind).Warn("dropping frame of unknown kind")
		return nil
	}
	at := env.Timestamp

	var cmds []tea.Cmd
	switch env.Kind {
	case events.KindPong:
		return nil

	case events.KindBalanceUpdate:
		if p, ok := decodePayload[events.BalanceUpdate](m, env); ok {
			for _, h := range m.handlers.balance {
				cmds = append(cmds, h.OnBalance(p, at))
			}
		}

	case events.KindTimeRemaining:
		if p, ok := decodePayload[events.TimeRemaining](m, env); ok {
			for _, h := range m.handlers.timeLeft {
				cmds = append(cmds, h.OnTimeRemaining(p, at))
			}
		}

	case events.KindSessionState:
		if p, ok := decodePayload[events.SessionState](m, env); ok {
			for _, h := range m.handlers.sessionState {
				cmds = append(cmds, h.OnSessionState(p, at))
			}
		}

	case events.KindIntervention, events.KindEscalation:
		iv, ok := decodePayload[events.Intervention](m, env)
		if !ok {
			break
		}
		if env.Kind == events.KindEscalation && iv.Type == "" {
			iv.Type = events.InterventionEscalation
		}
		if iv.ID == "" {
			iv.ID = uuid.NewString()
		}
		if iv.CreatedAt.IsZero() {
			iv.CreatedAt = at
		}
		for _, h := range m.handlers.intervention {
			cmds = append(cmds, h.OnIntervention(iv, at))
		}

	case events.KindParticipantStatus:
		if p, ok := decodePayload[events.ParticipantStatus](m, env); ok {
			for _, h := range m.handlers.participant {
				cmds = append(cmds, h.OnParticipantStatus(p, at))
			}
		}

	case events.KindAIStatus:
		if p, ok := decodePayload[events.AIStatus](m, env); ok {
			for _, h := range m.handlers.aiStatus {
				cmds = append(cmds, h.OnAIStatus(p, at))
			}
		}

	case events.KindGoalDrift:
		if p, ok := decodePayload[events.GoalDrift](m, env); ok {
			for _, h := range m.handlers.goalDrift {
				cmds = append(cmds, h.OnGoalDrift(p, at))
			}
		}

	case events.KindError:
		if p, ok := decodePayload[events.ServerError](m, env); ok {
			m.log.WithField("code", p.Code).Warnf("server error: %s", p.Message)
			for _, h := range m.handlers.serverError {
				cmds = append(cmds, h.OnServerError(p, at))
			}
		}

	case events.KindSettingsUpdated:
		if p, ok := decodePayload[map[string]any](m, env); ok {
			for _, h := range m.handlers.settings {
				cmds = append(cmds, h.OnSettingsUpdated(p, at))
			}
		}
	}
	return tea.Batch(cmds...)
}

func decodePayload[T any](m *Manager, env events.Envelope) (T, bool) {
	var v T
	if err := env.Payload(&v); err != nil {
		m.log.WithError(err).WithField("kind", env.Kind).Warn("dropping frame with bad payload")
		return v, false
	}
	return v, true
}
