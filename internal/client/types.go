// Package client connects a live session view to the facilitation server:
// the websocket Manager that owns the event stream and an HTTP client for
// the session REST API.
package client

import (
	"time"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

// Session is the session record returned by GET /sessions/{id}.
type Session struct {
	ID              string                   `json:"id"`
	Title           string                   `json:"title,omitempty"`
	Goal            string                   `json:"goal"`
	PartnerName     string                   `json:"partnerName"`
	Platform        string                   `json:"platform,omitempty"`
	MeetingURL      string                   `json:"meetingUrl,omitempty"`
	DurationMinutes int                      `json:"durationMinutes"`
	Status          events.SessionStatus     `json:"status"`
	Participants    []events.Participant     `json:"participants"`
	Facilitator     events.FacilitatorConfig `json:"facilitator"`
	CreatedAt       string                   `json:"createdAt,omitempty"`
	BotID           string                   `json:"botId,omitempty"`
	ClientID        string                   `json:"clientId,omitempty"`
}

// Created parses CreatedAt; the zero time is returned when it is unset.
func (s *Session) Created() time.Time {
	return events.ParseTime(s.CreatedAt)
}

// PauseResumeResponse is returned by the pause and resume endpoints.
type PauseResumeResponse struct {
	Status events.SessionStatus `json:"status"`
}

// EndSessionResponse is returned by POST /sessions/{id}/end.
type EndSessionResponse struct {
	Status           events.SessionStatus `json:"status"`
	SummaryAvailable bool                 `json:"summaryAvailable"`
}

// TalkBalance is the final talk-time split in a summary.
type TalkBalance struct {
	ParticipantA events.ParticipantShare `json:"participantA"`
	ParticipantB events.ParticipantShare `json:"participantB"`
	Status       events.BalanceStatus    `json:"status"`
}

// Agreement is one key agreement reached during the session.
type Agreement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Summary is the post-session summary from GET /sessions/{id}/summary.
type Summary struct {
	SessionID         string      `json:"sessionId"`
	DurationMinutes   int         `json:"durationMinutes"`
	ConsensusSummary  string      `json:"consensusSummary"`
	ActionItems       []string    `json:"actionItems"`
	Balance           TalkBalance `json:"balance"`
	InterventionCount int         `json:"interventionCount"`
	KeyAgreements     []Agreement `json:"keyAgreements"`
}
