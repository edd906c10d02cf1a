// FILE: uiserver_test.go

package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUIServer(t *testing.T, state *AppState) (*UIServer, *httptest.Server) {
	t.Helper()
	ui := NewUIServer(state)
	mux := http.NewServeMux()
	ui.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return ui, srv
}

func dialUISocket(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	uri := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
	conn, _, err := websocket.DefaultDialer.Dial(uri, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) []StateMessage {
	t.Helper()
	msgs := make([]StateMessage, 8)
	for i := range msgs {
		require.NoError(t, conn.ReadJSON(&msgs[i]))
	}
	return msgs
}

func TestUIServerSendsSnapshotOnConnect(t *testing.T) {
	state := NewAppState()
	state.SetLatency(42)
	ui, srv := newTestUIServer(t, state)

	conn := dialUISocket(t, srv)

	msgs := readSnapshot(t, conn)
	types := make([]string, len(msgs))
	for i, msg := range msgs {
		types[i] = msg.Type
	}
	assert.Equal(t, []string{
		"SET_LATENCY", "SET_SERVER_TIME", "SET_CONNECT_TIME",
		"SET_CONNECTION_STATUS", "SET_FATAL_ERROR", "SET_ERROR_MSG",
		"SET_TRADE_PAIRS", "SET_SAVE_PAIRS",
	}, types)
	assert.Equal(t, float64(42), msgs[0].Payload)

	require.Eventually(t, func() bool { return ui.ClientCount() == 1 },
		time.Second, time.Millisecond)
}

func TestUIServerFlushBroadcastsDirtyScalars(t *testing.T) {
	state := NewAppState()
	ui, srv := newTestUIServer(t, state)

	conn := dialUISocket(t, srv)
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return ui.ClientCount() == 1 },
		time.Second, time.Millisecond)

	state.SetServerTime(4242)
	ui.Flush()

	var msg StateMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "SET_SERVER_TIME", msg.Type)
	assert.Equal(t, float64(4242), msg.Payload)
}

func TestUIServerDropsClosedClients(t *testing.T) {
	state := NewAppState()
	ui, srv := newTestUIServer(t, state)

	conn := dialUISocket(t, srv)
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return ui.ClientCount() == 1 },
		time.Second, time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ui.ClientCount() == 0 },
		time.Second, time.Millisecond)

	// Flushing with no clients left must not panic or block.
	state.SetLatency(1)
	ui.Flush()
}
