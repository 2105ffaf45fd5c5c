package events

import (
	"encoding/json"
	"time"
)

// InterventionType names the facilitation nudge.
type InterventionType string

const (
	InterventionBalance     InterventionType = "balance"
	InterventionSilence     InterventionType = "silence"
	InterventionGoalDrift   InterventionType = "goal_drift"
	InterventionTimeWarning InterventionType = "time_warning"
	InterventionEscalation  InterventionType = "escalation"
	InterventionIcebreaker  InterventionType = "icebreaker"
)

// Modality is how an intervention is delivered.
type Modality string

const (
	ModalityVisual Modality = "visual"
	ModalityVoice  Modality = "voice"
)

// Priority orders interventions. Lower values are more urgent so that a
// plain ascending sort yields display order.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Intervention is the wire shape shared by the intervention and escalation
// kinds. Priority is derived locally and never read from the wire.
type Intervention struct {
	ID                string           `json:"id"`
	Type              InterventionType `json:"type"`
	Modality          Modality         `json:"modality"`
	Message           string           `json:"message"`
	TargetParticipant string           `json:"targetParticipant,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// UnmarshalJSON accepts the server's naive isoformat timestamps.
func (iv *Intervention) UnmarshalJSON(data []byte) error {
	type alias Intervention
	aux := struct {
		*alias
		CreatedAt string `json:"createdAt"`
	}{alias: (*alias)(iv)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	iv.CreatedAt = ParseTime(aux.CreatedAt)
	return nil
}

// Auto-dismiss durations per type. Escalation is absent: it always waits
// for an explicit resolution.
var autoDismissAfter = map[InterventionType]time.Duration{
	InterventionBalance:     10 * time.Second,
	InterventionSilence:     8 * time.Second,
	InterventionGoalDrift:   10 * time.Second,
	InterventionTimeWarning: 12 * time.Second,
	InterventionIcebreaker:  15 * time.Second,
}

const defaultAutoDismiss = 10 * time.Second

// PriorityOf maps an intervention type to its queue priority.
func PriorityOf(t InterventionType) Priority {
	switch t {
	case InterventionEscalation:
		return PriorityCritical
	case InterventionBalance, InterventionTimeWarning:
		return PriorityHigh
	case InterventionSilence, InterventionGoalDrift:
		return PriorityMedium
	case InterventionIcebreaker:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// AutoDismissOf reports whether an intervention of modality m may dismiss
// itself. Voice interventions need an explicit resolution.
func AutoDismissOf(m Modality) bool {
	return m == ModalityVisual
}

// AutoDismissDuration returns how long an intervention of type t stays on
// screen before dismissing itself. It is zero for escalation.
func AutoDismissDuration(t InterventionType) time.Duration {
	if t == InterventionEscalation {
		return 0
	}
	if d, ok := autoDismissAfter[t]; ok {
		return d
	}
	return defaultAutoDismiss
}

// InterventionWithMeta is an intervention plus its locally derived
// scheduling metadata.
type InterventionWithMeta struct {
	Intervention
	Priority         Priority
	AutoDismiss      bool
	AutoDismissAfter time.Duration
	Acknowledged     bool
}

// WithMeta derives the scheduling metadata for iv.
func WithMeta(iv Intervention) InterventionWithMeta {
	return InterventionWithMeta{
		Intervention:     iv,
		Priority:         PriorityOf(iv.Type),
		AutoDismiss:      AutoDismissOf(iv.Modality),
		AutoDismissAfter: AutoDismissDuration(iv.Type),
	}
}

// TimerEligible reports whether the entry should get an auto-dismiss timer
// when it becomes current.
func (m InterventionWithMeta) TimerEligible() bool {
	return m.AutoDismiss && m.AutoDismissAfter > 0 && m.Priority != PriorityCritical
}
