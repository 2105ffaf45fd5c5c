package overlay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/interventions"
)

func TestHiddenWithoutCurrent(t *testing.T) {
	m := FromScheduler(interventions.New(interventions.Options{}))
	assert.False(t, m.Visible)
	assert.Empty(t, m.View())
}

func TestViewFromScheduler(t *testing.T) {
	s := interventions.New(interventions.Options{})
	s.Push(events.Intervention{ID: "iv-1", Type: events.InterventionBalance, Modality: events.ModalityVisual,
		Message: "Bob, what do you think?", TargetParticipant: "p2"})
	s.Push(events.Intervention{ID: "iv-2", Type: events.InterventionSilence, Modality: events.ModalityVisual})

	m := FromScheduler(s)
	assert.True(t, m.Visible)
	assert.Equal(t, 1, m.QueueDepth)
	assert.True(t, m.Cooldown)
	assert.Equal(t, 10*time.Second, m.AutoDismiss)

	v := m.View()
	for _, want := range []string{"BALANCE", "Bob, what do you think?", "high", "p2", "+1 queued", "cooldown", "[a] acknowledge"} {
		assert.Contains(t, v, want)
	}
}

func TestEscalationHasNoCloseTimer(t *testing.T) {
	s := interventions.New(interventions.Options{})
	s.Push(events.Intervention{ID: "iv-1", Type: events.InterventionEscalation, Modality: events.ModalityVisual,
		Message: "Let's pause."})

	v := FromScheduler(s).View()
	assert.Contains(t, v, "critical")
	assert.NotContains(t, v, "Closes")
}
