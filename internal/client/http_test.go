package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

type sessionAPI struct {
	gets atomic.Int32

	mu     sync.Mutex
	status events.SessionStatus
}

func (a *sessionAPI) setStatus(s events.SessionStatus) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *sessionAPI) currentStatus() events.SessionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *sessionAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get(APIKeyHeader))
		if r.PathValue("id") != "s-1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Session not found"}`))
			return
		}
		a.gets.Add(1)
		w.Write([]byte(`{"id":"s-1","goal":"Plan the move","partner_name":"Bob","duration_minutes":30,"status":"` +
			string(a.currentStatus()) + `","facilitator":{"silence_detection":true}}`))
	})
	mux.HandleFunc("POST /sessions/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
		a.setStatus(events.SessionPaused)
		w.Write([]byte(`{"status":"paused"}`))
	})
	mux.HandleFunc("POST /sessions/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Session is not paused"}`))
	})
	mux.HandleFunc("POST /sessions/{id}/end", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ended","summary_available":true}`))
	})
	mux.HandleFunc("GET /sessions/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":"s-1","duration_minutes":28,"consensus_summary":"Agreed on a date.",
			"action_items":["Book the van"],"intervention_count":3,
			"balance":{"participant_a":{"id":"p1","percentage":52},"participant_b":{"id":"p2","percentage":48},"status":"balanced"},
			"key_agreements":[{"title":"Date","description":"Move in May"}]}`))
	})
	return mux
}

func newTestHTTP(t *testing.T) (*HTTPClient, *sessionAPI) {
	t.Helper()
	api := &sessionAPI{status: events.SessionInProgress}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "key-1"), api
}

func TestGetSession(t *testing.T) {
	c, api := newTestHTTP(t)
	ctx := context.Background()

	s, err := c.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Plan the move", s.Goal)
	assert.Equal(t, "Bob", s.PartnerName)
	assert.Equal(t, 30, s.DurationMinutes)
	assert.Equal(t, events.SessionInProgress, s.Status)
	assert.True(t, s.Facilitator.SilenceDetection)

	_, err = c.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.gets.Load(), "second GET is served from cache")
}

func TestMutationEvictsCache(t *testing.T) {
	c, api := newTestHTTP(t)
	ctx := context.Background()

	_, err := c.GetSession(ctx, "s-1")
	require.NoError(t, err)

	res, err := c.PauseSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, events.SessionPaused, res.Status)

	s, err := c.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, events.SessionPaused, s.Status)
	assert.EqualValues(t, 2, api.gets.Load())
}

func TestAPIErrors(t *testing.T) {
	c, _ := newTestHTTP(t)
	ctx := context.Background()

	_, err := c.GetSession(ctx, "nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Session not found")

	_, err = c.ResumeSession(ctx, "s-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Session is not paused", apiErr.Body)
	assert.False(t, IsNotFound(err))
}

func TestEndAndSummary(t *testing.T) {
	c, _ := newTestHTTP(t)
	ctx := context.Background()

	end, err := c.EndSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, events.SessionEnded, end.Status)
	assert.True(t, end.SummaryAvailable)

	sum, err := c.GetSummary(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 28, sum.DurationMinutes)
	assert.Equal(t, []string{"Book the van"}, sum.ActionItems)
	assert.Equal(t, 3, sum.InterventionCount)
	assert.InDelta(t, 52, sum.Balance.ParticipantA.Percentage, 0.001)
	require.Len(t, sum.KeyAgreements, 1)
	assert.Equal(t, "Move in May", sum.KeyAgreements[0].Description)
}

func TestUnreachableServer(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.GetSession(ctx, "s-1")
	assert.Error(t, err)
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{9, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := DefaultBackoff.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
	if got := (Backoff{}).Delay(2); got != 2*time.Second {
		t.Errorf("empty table should fall back to the default, got %v", got)
	}
	if got := (Backoff{time.Second, 3 * time.Second}).Delay(7); got != 3*time.Second {
		t.Errorf("past the table the last delay repeats, got %v", got)
	}
}
