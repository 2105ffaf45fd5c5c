// Package mockserver is a local stand-in for the facilitation server. It
// serves the session event websocket and the session REST endpoints the
// client consumes, and publishes generated or scripted events.
package mockserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/logging"
)

// wireTime matches the server's naive UTC isoformat timestamps.
const wireTime = "2006-01-02T15:04:05.000000"

const sendBuffer = 64

type frame struct {
	Type      events.Kind `json:"type"`
	Data      any         `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{ws: ws, send: make(chan []byte, sendBuffer)}
	go c.writePump()
	return c
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// offer queues msg without blocking and reports false when the buffer is
// full. Messages offered after close are discarded.
func (c *conn) offer(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type sessionEntry struct {
	session client.Session
	summary *client.Summary
	acks    []string
	conns   map[*conn]bool
}

// Options configures a Server.
type Options struct {
	// APIKey, when set, is required on every request.
	APIKey string
	Log    *logrus.Entry
}

// Server holds the mock sessions and their connected clients.
type Server struct {
	apiKey   string
	log      *logrus.Entry
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// New returns a server with no sessions.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	return &Server{
		apiKey:   opts.APIKey,
		log:      opts.Log.WithField("component", "mockserver"),
		sessions: make(map[string]*sessionEntry),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// AddSession registers (or replaces) a session.
func (s *Server) AddSession(sess client.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sess.ID]; ok {
		e.session = sess
		return
	}
	s.sessions[sess.ID] = &sessionEntry{session: sess, conns: make(map[*conn]bool)}
}

// SetSummary makes GET /sessions/{id}/summary return sum.
func (s *Server) SetSummary(id string, sum client.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.summary = &sum
	}
}

// Session returns the current record of id.
func (s *Server) Session(id string) (client.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return client.Session{}, false
	}
	return e.session, true
}

// Acks returns the intervention ids acknowledged on id's event stream.
func (s *Server) Acks(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[id]; ok {
		return append([]string(nil), e.acks...)
	}
	return nil
}

// Clients returns the number of connected event streams for id.
func (s *Server) Clients(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[id]; ok {
		return len(e.conns)
	}
	return 0
}

// Publish sends one event to every client of session id.
func (s *Server) Publish(id string, kind events.Kind, data any) {
	msg, err := json.Marshal(frame{Type: kind, Data: data, Timestamp: time.Now().UTC().Format(wireTime)})
	if err != nil {
		s.log.WithError(err).Error("marshal frame")
		return
	}
	for _, c := range s.conns(id) {
		if !c.offer(msg) {
			s.log.WithField("session_id", id).Warn("client too slow, disconnecting")
			s.drop(id, c)
		}
	}
}

// Kick closes every event stream of id with the given close code.
func (s *Server) Kick(id string, code int) {
	for _, c := range s.conns(id) {
		msg := websocket.FormatCloseMessage(code, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.drop(id, c)
	}
}

func (s *Server) conns(id string) []*conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]*conn, 0, len(e.conns))
	for c := range e.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) drop(id string, c *conn) {
	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		delete(e.conns, c)
	}
	s.mu.Unlock()
	c.close()
}

// IDs lists the registered session ids.
func (s *Server) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /sessions/{id}", s.handleGet)
	mux.HandleFunc("GET /sessions/{id}/summary", s.handleSummary)
	mux.HandleFunc("POST /sessions/{id}/pause", s.handleTransition(events.SessionInProgress, events.SessionPaused))
	mux.HandleFunc("POST /sessions/{id}/resume", s.handleTransition(events.SessionPaused, events.SessionInProgress))
	mux.HandleFunc("POST /sessions/{id}/end", s.handleEnd)
	return s.authorize(mux)
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get(client.APIKeyHeader) != s.apiKey {
			writeDetail(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade error")
		return
	}

	s.mu.Lock()
	e, ok := s.sessions[id]
	var c *conn
	if ok {
		c = newConn(ws)
		e.conns[c] = true
	}
	s.mu.Unlock()

	if !ok {
		s.log.WithField("session_id", id).Info("unknown session, closing with 4004")
		msg := websocket.FormatCloseMessage(client.CloseSessionNotFound, "Session not found")
		ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		ws.Close()
		return
	}

	s.log.WithFields(logrus.Fields{"session_id": id, "remote": r.RemoteAddr}).Info("client connected")
	go s.readLoop(id, c)
}

func (s *Server) readLoop(id string, c *conn) {
	defer func() {
		s.drop(id, c)
		s.log.WithField("session_id", id).Info("client disconnected")
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var in struct {
			Type events.Kind     `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		s.handleClientFrame(id, c, in.Type, in.Data)
	}
}

func (s *Server) handleClientFrame(id string, c *conn, kind events.Kind, data json.RawMessage) {
	switch kind {
	case events.KindPing:
		s.reply(c, events.KindPong, nil)

	case events.KindInterventionAck:
		var ack struct {
			InterventionID string `json:"intervention_id"`
		}
		if json.Unmarshal(data, &ack) != nil || ack.InterventionID == "" {
			return
		}
		s.mu.Lock()
		if e, ok := s.sessions[id]; ok {
			e.acks = append(e.acks, ack.InterventionID)
		}
		s.mu.Unlock()

	case events.KindUpdateSettings:
		var settings map[string]any
		if json.Unmarshal(data, &settings) != nil {
			return
		}
		s.mu.Lock()
		if e, ok := s.sessions[id]; ok {
			if v, ok := settings["silence_detection"].(bool); ok {
				e.session.Facilitator.SilenceDetection = v
			}
			if v, ok := settings["interrupt_authority"].(bool); ok {
				e.session.Facilitator.InterruptAuthority = v
			}
			if v, ok := settings["direct_inquiry"].(bool); ok {
				e.session.Facilitator.DirectInquiry = v
			}
		}
		s.mu.Unlock()
		s.reply(c, events.KindSettingsUpdated, settings)
	}
}

func (s *Server) reply(c *conn, kind events.Kind, data any) {
	msg, err := json.Marshal(frame{Type: kind, Data: data, Timestamp: time.Now().UTC().Format(wireTime)})
	if err != nil {
		return
	}
	c.offer(msg)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.RLock()
	e, ok := s.sessions[id]
	var sum *client.Summary
	if ok {
		sum = e.summary
	}
	s.mu.RUnlock()
	switch {
	case !ok:
		writeDetail(w, http.StatusNotFound, "Session not found")
	case sum == nil:
		writeDetail(w, http.StatusNotFound, "Summary not available yet")
	default:
		writeJSON(w, http.StatusOK, sum)
	}
}

// handleTransition moves a session from one status to another and tells the
// connected clients.
func (s *Server) handleTransition(from, to events.SessionStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.mu.Lock()
		e, ok := s.sessions[id]
		var prev events.SessionStatus
		if ok {
			prev = e.session.Status
			if prev == from {
				e.session.Status = to
			}
		}
		s.mu.Unlock()

		switch {
		case !ok:
			writeDetail(w, http.StatusNotFound, "Session not found")
			return
		case prev != from:
			writeDetail(w, http.StatusBadRequest, "Session is "+string(prev))
			return
		}

		paused := to == events.SessionPaused
		s.Publish(id, events.KindSessionState, map[string]any{
			"status":             to,
			"previous_status":    prev,
			"facilitator_paused": paused,
		})
		writeJSON(w, http.StatusOK, client.PauseResumeResponse{Status: to})
	}
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	e, ok := s.sessions[id]
	var prev events.SessionStatus
	if ok {
		prev = e.session.Status
		if prev == events.SessionInProgress || prev == events.SessionPaused {
			e.session.Status = events.SessionEnded
		}
	}
	hasSummary := ok && e.summary != nil
	s.mu.Unlock()

	switch {
	case !ok:
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	case prev != events.SessionInProgress && prev != events.SessionPaused:
		writeDetail(w, http.StatusBadRequest, "Session cannot be ended from "+string(prev))
		return
	}

	s.Publish(id, events.KindSessionState, map[string]any{
		"status":          events.SessionEnded,
		"previous_status": prev,
		"ended":           true,
		"reason":          "ended_by_user",
	})
	writeJSON(w, http.StatusOK, client.EndSessionResponse{Status: events.SessionEnded, SummaryAvailable: hasSummary})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
