package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Close codes with meaning to the Manager.
const (
	CloseNormal          = websocket.CloseNormalClosure   // 1000, no retry
	CloseAbnormal        = websocket.CloseAbnormalClosure // 1006, retry
	CloseSessionNotFound = 4004                           // terminal
)

const writeTimeout = 10 * time.Second

// MaxFrameBytes caps an inbound frame when WSDialer.ReadLimit is zero.
const MaxFrameBytes = 1 << 20

// Socket is one live websocket connection. ReadFrame blocks until a frame
// arrives or the connection ends. Close may be called more than once.
type Socket interface {
	ReadFrame() ([]byte, error)
	WriteJSON(v any) error
	Close(code int, reason string) error
}

// Dialer opens Sockets.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Socket, error)
}

// CloseError reports that a connection ended, or never opened, with a close
// code.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket closed with code %d", e.Code)
	}
	return fmt.Sprintf("websocket closed with code %d: %s", e.Code, e.Reason)
}

// CloseCodeOf maps a read or dial error to the close code the Manager acts
// on. Errors that carry no close frame (resets, timeouts, refused dials)
// map to CloseAbnormal.
func CloseCodeOf(err error) (int, string) {
	var wsErr *websocket.CloseError
	if errors.As(err, &wsErr) {
		return wsErr.Code, wsErr.Text
	}
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Reason
	}
	return CloseAbnormal, ""
}

// WSDialer dials with gorilla/websocket. ReadTimeout, when set, bounds the
// wait for each inbound frame; the server answers every heartbeat ping, so a
// silent connection past the timeout is treated as dead.
type WSDialer struct {
	Dialer      *websocket.Dialer
	ReadTimeout time.Duration
	ReadLimit   int64 // bytes per frame, MaxFrameBytes when zero
}

// Dial implements Dialer. A 404 during the handshake is reported as a
// CloseError with CloseSessionNotFound.
func (d WSDialer) Dial(ctx context.Context, url string, header http.Header) (Socket, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &CloseError{Code: CloseSessionNotFound, Reason: "session not found"}
		}
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = MaxFrameBytes
	}
	conn.SetReadLimit(limit)
	return &wsSocket{conn: conn, readTimeout: d.ReadTimeout}, nil
}

type wsSocket struct {
	conn        *websocket.Conn
	readTimeout time.Duration

	writeMu   sync.Mutex // serialises writes from the update loop and Close
	closeOnce sync.Once
}

func (s *wsSocket) ReadFrame() ([]byte, error) {
	if s.readTimeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSocket) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSocket) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
