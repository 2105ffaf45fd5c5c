package status

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
)

func TestView(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  []string
	}{
		{
			name:  "disconnected",
			model: Model{},
			want:  []string{"Disconnected", "no session"},
		},
		{
			name:  "connected",
			model: Model{State: client.StateConnected, SessionID: "s-1", Silence: true},
			want:  []string{"Connected", "s-1", "silence detection on"},
		},
		{
			name:  "reconnecting",
			model: Model{State: client.StateReconnecting, Attempts: 2, MaxAttempts: 5, Delay: 2 * time.Second},
			want:  []string{"attempt 2/5", "retry in 2s"},
		},
		{
			name:  "error",
			model: Model{State: client.StateError, LastError: "Session not found"},
			want:  []string{"Error", "Session not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			tt.model.spinner = m.spinner
			tt.model.Width = 160
			v := tt.model.View()
			for _, w := range tt.want {
				if !strings.Contains(v, w) {
					t.Errorf("view missing %q:\n%s", w, v)
				}
			}
		})
	}
}

func TestSpinnerStopsWhenSettled(t *testing.T) {
	m := New()
	m.State = client.StateConnecting
	tick := spinner.TickMsg{ID: m.spinner.ID()}

	m, cmd := m.Update(tick)
	if cmd == nil {
		t.Fatal("spinner should keep ticking while connecting")
	}

	m.State = client.StateConnected
	if _, cmd := m.Update(spinner.TickMsg{ID: m.spinner.ID()}); cmd != nil {
		t.Error("spinner should stop once connected")
	}
}
