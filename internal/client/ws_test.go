package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameServer sends each of frames as a text message to every client.
func frameServer(t *testing.T, frames ...[]byte) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSDialerReadLimit(t *testing.T) {
	small := []byte(`{"type":"pong"}`)
	big := []byte(`{"type":"pong","data":"` + strings.Repeat("x", 4096) + `"}`)
	url := frameServer(t, small, big)

	sock, err := WSDialer{ReadLimit: 1024}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer sock.Close(CloseNormal, "")

	data, err := sock.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, small, data)

	_, err = sock.ReadFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrReadLimit)
	code, _ := CloseCodeOf(err)
	assert.Equal(t, CloseAbnormal, code)
}

func TestWSDialerDefaultLimitAcceptsLargeFrames(t *testing.T) {
	frame := []byte(`{"type":"pong","data":"` + strings.Repeat("x", 64<<10) + `"}`)
	url := frameServer(t, frame)

	sock, err := WSDialer{}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer sock.Close(CloseNormal, "")

	data, err := sock.ReadFrame()
	require.NoError(t, err)
	assert.Len(t, data, len(frame))
}
