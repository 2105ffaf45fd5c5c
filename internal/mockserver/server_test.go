package mockserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Options{APIKey: "key-1"})
	s.AddSession(client.Session{
		ID:              "s-1",
		Goal:            "Plan the move",
		DurationMinutes: 30,
		Status:          events.SessionInProgress,
		Participants:    []events.Participant{{ID: "p1", Name: "Ana"}, {ID: "p2", Name: "Bob"}},
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + id + "/events"
	header := http.Header{}
	header.Set(client.APIKeyHeader, "key-1")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) events.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := events.Decode(data)
	require.NoError(t, err)
	return env
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownSessionCloses4004(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv, "missing")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, client.CloseSessionNotFound), "got %v", err)
}

func TestRejectsBadAPIKey(t *testing.T) {
	_, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/s-1/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPingPong(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv, "s-1")

	require.NoError(t, conn.WriteJSON(events.Ping()))
	assert.Equal(t, events.KindPong, readFrame(t, conn).Kind)
}

func TestAckAndSettings(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dial(t, srv, "s-1")

	require.NoError(t, conn.WriteJSON(events.InterventionAck("iv-9")))
	waitFor(t, func() bool { return len(s.Acks("s-1")) == 1 })
	assert.Equal(t, []string{"iv-9"}, s.Acks("s-1"))

	require.NoError(t, conn.WriteJSON(events.UpdateSettings(map[string]any{"silence_detection": true})))
	env := readFrame(t, conn)
	assert.Equal(t, events.KindSettingsUpdated, env.Kind)
	sess, _ := s.Session("s-1")
	assert.True(t, sess.Facilitator.SilenceDetection)
}

func TestPublishReachesClients(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dial(t, srv, "s-1")
	waitFor(t, func() bool { return s.Clients("s-1") == 1 })

	s.Publish("s-1", events.KindAIStatus, map[string]any{"status": "listening"})
	env := readFrame(t, conn)
	assert.Equal(t, events.KindAIStatus, env.Kind)
	var st events.AIStatus
	require.NoError(t, env.Payload(&st))
	assert.Equal(t, events.AIListening, st.Status)
	assert.False(t, env.Timestamp.IsZero())
}

func TestKick(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dial(t, srv, "s-1")
	waitFor(t, func() bool { return s.Clients("s-1") == 1 })

	s.Kick("s-1", 4500)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, 4500), "got %v", err)
	waitFor(t, func() bool { return s.Clients("s-1") == 0 })
}

func TestRESTTransitions(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dial(t, srv, "s-1")
	waitFor(t, func() bool { return s.Clients("s-1") == 1 })
	api := client.NewHTTPClient(srv.URL, "key-1")
	ctx := context.Background()

	res, err := api.PauseSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, events.SessionPaused, res.Status)

	env := readFrame(t, conn)
	require.Equal(t, events.KindSessionState, env.Kind)
	var st events.SessionState
	require.NoError(t, env.Payload(&st))
	assert.Equal(t, events.SessionPaused, st.Status)
	require.NotNil(t, st.FacilitatorPaused)
	assert.True(t, *st.FacilitatorPaused)

	_, err = api.PauseSession(ctx, "s-1")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = api.ResumeSession(ctx, "s-1")
	require.NoError(t, err)

	s.SetSummary("s-1", client.Summary{SessionID: "s-1", ConsensusSummary: "Agreed."})
	end, err := api.EndSession(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, end.SummaryAvailable)

	sum, err := api.GetSummary(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Agreed.", sum.ConsensusSummary)

	_, err = api.GetSession(ctx, "nope")
	assert.True(t, client.IsNotFound(err))
}

func TestOfferAfterClose(t *testing.T) {
	c := &conn{send: make(chan []byte, 1)}
	assert.True(t, c.offer([]byte("a")))
	assert.False(t, c.offer([]byte("b")), "full buffer")

	c.close()
	c.close()
	assert.NotPanics(t, func() { assert.True(t, c.offer([]byte("c"))) })
}

func TestPublishWhileClientsChurn(t *testing.T) {
	s, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/s-1/events"
	header := http.Header{}
	header.Set(client.APIKeyHeader, "key-1")

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					s.Publish("s-1", events.KindAIStatus, map[string]any{"status": "listening"})
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, header)
		require.NoError(t, err)
		if i%2 == 0 {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		}
		conn.Close()
	}
	close(done)
	wg.Wait()

	waitFor(t, func() bool { return s.Clients("s-1") == 0 })
}
