package events

// BalanceStatus classifies the talk-time split between the two participants.
type BalanceStatus string

const (
	BalanceBalanced          BalanceStatus = "balanced"
	BalanceMildImbalance     BalanceStatus = "mild_imbalance"
	BalanceSevereImbalance   BalanceStatus = "severe_imbalance"
	BalanceWaitingForSpeaker BalanceStatus = "waiting_for_speakers"
)

// ParticipantShare is one side of a balance_update.
type ParticipantShare struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Percentage float64 `json:"percentage"`
}

// BalanceUpdate is the balance_update payload. Both shares are nil while the
// server is still waiting for both participants to speak.
type BalanceUpdate struct {
	ParticipantA *ParticipantShare `json:"participantA,omitempty"`
	ParticipantB *ParticipantShare `json:"participantB,omitempty"`
	Status       BalanceStatus     `json:"status"`
}

// TimeRemaining is the time_remaining payload.
type TimeRemaining struct {
	Minutes               int     `json:"minutes"`
	Seconds               int     `json:"seconds"`
	TotalSecondsRemaining int     `json:"totalSecondsRemaining"`
	PercentComplete       float64 `json:"percentComplete"`
}

// SessionStatus mirrors the server's session lifecycle.
type SessionStatus string

const (
	SessionDraft          SessionStatus = "draft"
	SessionPendingConsent SessionStatus = "pending_consent"
	SessionReady          SessionStatus = "ready"
	SessionInProgress     SessionStatus = "in_progress"
	SessionPaused         SessionStatus = "paused"
	SessionEnded          SessionStatus = "ended"
	SessionArchived       SessionStatus = "archived"
)

// Participant is a session member as described by the server.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Consented bool   `json:"consented"`
}

// FacilitatorConfig holds the facilitator persona and behaviour switches.
type FacilitatorConfig struct {
	Persona            string `json:"persona,omitempty"`
	InterruptAuthority bool   `json:"interruptAuthority"`
	DirectInquiry      bool   `json:"directInquiry"`
	SilenceDetection   bool   `json:"silenceDetection"`
}

// SessionState is the session_state payload. Every field except Status is
// optional; pointer fields distinguish "absent" from a zero value.
type SessionState struct {
	Status            SessionStatus      `json:"status"`
	Goal              string             `json:"goal,omitempty"`
	DurationMinutes   *int               `json:"durationMinutes,omitempty"`
	Participants      []Participant      `json:"participants,omitempty"`
	FacilitatorConfig *FacilitatorConfig `json:"facilitatorConfig,omitempty"`
	BotID             string             `json:"botId,omitempty"`
	ClientID          string             `json:"clientId,omitempty"`
	FacilitatorPaused *bool              `json:"facilitatorPaused,omitempty"`
	AIStatus          *AIState           `json:"aiStatus,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	PreviousStatus    SessionStatus      `json:"previousStatus,omitempty"`
	Ended             bool               `json:"ended,omitempty"`
}

// ParticipantStatus is the participant_status payload.
type ParticipantStatus struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	IsConnected   bool   `json:"isConnected"`
	IsSpeaking    bool   `json:"isSpeaking"`
}

// AIState is the facilitator's current activity.
type AIState string

const (
	AIIdle        AIState = "idle"
	AIListening   AIState = "listening"
	AIPreparing   AIState = "preparing"
	AIIntervening AIState = "intervening"
	AIPaused      AIState = "paused"
)

// AIStatus is the ai_status payload.
type AIStatus struct {
	Status  AIState `json:"status"`
	Message string  `json:"message,omitempty"`
}

// GoalDrift is the goal_drift payload.
type GoalDrift struct {
	IsOnGoal             bool   `json:"isOnGoal"`
	DriftDurationSeconds int    `json:"driftDurationSeconds"`
	OriginalGoal         string `json:"originalGoal"`
}

// ServerError is the error payload. It is domain data for the rendering
// layer, not a transport fault.
type ServerError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}
