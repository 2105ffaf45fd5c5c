// Package events provides the facilitation event wire protocol: the frame
// envelope, typed payloads and the intervention taxonomy. It is a leaf
// package with no internal imports.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the kind of a websocket frame.
type Kind string

// Inbound kinds (server to client).
const (
	KindBalanceUpdate     Kind = "balance_update"
	KindTimeRemaining     Kind = "time_remaining"
	KindSessionState      Kind = "session_state"
	KindIntervention      Kind = "intervention"
	KindEscalation        Kind = "escalation"
	KindParticipantStatus Kind = "participant_status"
	KindAIStatus          Kind = "ai_status"
	KindGoalDrift         Kind = "goal_drift"
	KindError             Kind = "error"
	KindSettingsUpdated   Kind = "settings_updated"
	KindPong              Kind = "pong"
)

// Outbound kinds (client to server).
const (
	KindPing            Kind = "ping"
	KindInterventionAck Kind = "intervention_ack"
	KindUpdateSettings  Kind = "update_settings"
)

var (
	ErrEmptyKind = errors.New("frame has no type")
	ErrNoPayload = errors.New("frame has no data")
)

// Envelope is the decoded form of every inbound frame.
type Envelope struct {
	Kind      Kind            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type wireEnvelope struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Decode parses one frame. A frame without a usable timestamp is stamped with
// the receive time rather than dropped.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if w.Type == "" {
		return Envelope{}, ErrEmptyKind
	}
	ts := ParseTime(w.Timestamp)
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Envelope{Kind: w.Type, Data: w.Data, Timestamp: ts}, nil
}

// Payload decodes the envelope data into v. Object keys are accepted in
// camelCase or snake_case; when both spellings are present camelCase wins.
func (e Envelope) Payload(v any) error {
	if len(e.Data) == 0 || bytes.Equal(bytes.TrimSpace(e.Data), []byte("null")) {
		return fmt.Errorf("%s: %w", e.Kind, ErrNoPayload)
	}
	data, err := camelKeys(e.Data)
	if err != nil {
		return fmt.Errorf("%s payload: %w", e.Kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s payload: %w", e.Kind, err)
	}
	return nil
}

// UnmarshalLoose decodes a JSON document into v with the same key handling
// as Payload. The session REST API shares the wire conventions.
func UnmarshalLoose(data []byte, v any) error {
	data, err := camelKeys(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Known reports whether k is an inbound kind the client understands.
func Known(k Kind) bool {
	switch k {
	case KindBalanceUpdate, KindTimeRemaining, KindSessionState, KindIntervention,
		KindEscalation, KindParticipantStatus, KindAIStatus, KindGoalDrift,
		KindError, KindSettingsUpdated, KindPong:
		return true
	}
	return false
}

// Outbound is a client to server message.
type Outbound struct {
	Type Kind `json:"type"`
	Data any  `json:"data,omitempty"`
}

// Ping is the heartbeat frame.
func Ping() Outbound {
	return Outbound{Type: KindPing}
}

// InterventionAck tells the server the participant acknowledged an intervention.
func InterventionAck(id string) Outbound {
	return Outbound{
		Type: KindInterventionAck,
		Data: map[string]string{"intervention_id": id},
	}
}

// UpdateSettings asks the server to change facilitator settings.
func UpdateSettings(settings map[string]any) Outbound {
	return Outbound{Type: KindUpdateSettings, Data: settings}
}

// Timestamp layouts seen on the wire. The server emits naive UTC isoformat
// strings, which are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a wire timestamp, returning the zero time when s is empty
// or matches no known layout.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func camelKeys(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(rekey(v))
}

func rekey(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ck := snakeToCamel(k)
			if ck != k {
				if _, taken := t[ck]; taken {
					continue
				}
			}
			out[ck] = rekey(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = rekey(t[i])
		}
		return t
	}
	return v
}

func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
