package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWebSocketConn records sent messages.
type mockWebSocketConn struct {
	sentMessages [][]byte
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.sentMessages = append(m.sentMessages, data)
	return nil
}

func (m *mockWebSocketConn) last(t *testing.T) SessionResponse {
	t.Helper()
	require.NotEmpty(t, m.sentMessages)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(m.sentMessages[len(m.sentMessages)-1], &resp))
	return resp
}

const (
	heightArrowMsg = `{"type":"put_arrow","id":"h","arrow":{"start":{"x":0,"y":0},"end":{"x":0,"y":100}}}`
	shadowArrowMsg = `{"type":"put_arrow","id":"s","arrow":{"start":{"x":0,"y":0},"end":{"x":100,"y":0}}}`
)

func TestServer_HandleSessionMessage(t *testing.T) {
	s := quietServer(Config{})
	live := newLiveSession()
	conn := &mockWebSocketConn{}

	send := func(msg string) SessionResponse {
		s.handleSessionMessage(conn, live, []byte(msg))
		return conn.last(t)
	}

	resp := send(heightArrowMsg)
	assert.Equal(t, "outcome", resp.Type)
	assert.Equal(t, live.id, resp.SessionID)
	require.NotNil(t, resp.Outcome)
	assert.Nil(t, resp.Outcome.Result)
	assert.Empty(t, resp.Outcome.Warnings, "automatic recompute stays silent")

	send(shadowArrowMsg)
	send(`{"type":"assign","role":"height","id":"h"}`)
	resp = send(`{"type":"assign","role":"shadow","id":"s"}`)
	require.NotNil(t, resp.Outcome.Result)
	assert.InDelta(t, 45, resp.Outcome.Result.AngleDegrees, 1e-9)
	assert.False(t, resp.Explicit)
	assert.Equal(t, []elevation.Assignment{
		{Role: elevation.RoleHeight, Shape: "h"},
		{Role: elevation.RoleShadow, Shape: "s"},
	}, resp.Assignments)

	resp = send(`{"type":"override","value":57.735026918962575}`)
	require.NotNil(t, resp.Outcome.Result)
	assert.InDelta(t, 30, resp.Outcome.Result.AngleDegrees, 1e-6)
	assert.Equal(t, elevation.HeightActual, resp.Outcome.Result.HeightSource)

	send(`{"type":"override"}`)
	resp = send(`{"type":"remove","id":"s"}`)
	assert.Nil(t, resp.Outcome.Result)

	resp = send(`{"type":"recompute"}`)
	assert.True(t, resp.Explicit)
	assert.NotEmpty(t, resp.Outcome.Warnings, "explicit recompute reports the missing shadow")

	resp = send(`{"type":"clear","role":"height"}`)
	assert.Empty(t, resp.Assignments)
}

func TestServer_HandleSessionMessage_Errors(t *testing.T) {
	s := quietServer(Config{})
	live := newLiveSession()
	conn := &mockWebSocketConn{}
	s.handleSessionMessage(conn, live, []byte(heightArrowMsg))

	tests := []struct {
		name string
		msg  string
		kind string
	}{
		{"malformed", `{"type":`, "invalid_request"},
		{"unknown type", `{"type":"launch"}`, "invalid_request"},
		{"missing arrow", `{"type":"put_arrow","id":"x"}`, "invalid_request"},
		{"missing polygon", `{"type":"put_polygon","id":"x"}`, "invalid_request"},
		{"unknown role", `{"type":"assign","role":"sky","id":"h"}`, "session"},
		{"role mismatch", `{"type":"assign","role":"ground","id":"h"}`, "session"},
		{"unknown shape", `{"type":"remove","id":"nope"}`, "session"},
		{"empty id", `{"type":"put_arrow","arrow":{"start":{"x":0,"y":0},"end":{"x":1,"y":1}}}`, "session"},
		{"bad scene", `{"type":"load","scene":{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}]}}`, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.handleSessionMessage(conn, live, []byte(tt.msg))
			resp := conn.last(t)
			assert.Equal(t, "error", resp.Type)
			assert.Equal(t, tt.kind, resp.ErrorType)
			assert.NotEmpty(t, resp.Error)
		})
	}

	// failed messages leave the session untouched
	assert.Len(t, live.sess.Arrows(), 1)
}

func TestServer_HandleSessionMessage_LoadAndExport(t *testing.T) {
	s := quietServer(Config{})
	live := newLiveSession()
	conn := &mockWebSocketConn{}

	data, err := os.ReadFile(testutil.GetScenePath(t, "sun45"))
	require.NoError(t, err)

	msg, err := json.Marshal(map[string]any{"type": "load", "scene": json.RawMessage(data)})
	require.NoError(t, err)
	s.handleSessionMessage(conn, live, msg)
	resp := conn.last(t)
	require.Equal(t, "outcome", resp.Type)
	require.NotNil(t, resp.Outcome.Result)
	assert.InDelta(t, 45, resp.Outcome.Result.AngleDegrees, 1e-9)

	s.handleSessionMessage(conn, live, []byte(`{"type":"export"}`))
	resp = conn.last(t)
	require.Equal(t, "scene", resp.Type)
	require.NotNil(t, resp.Scene)
	last := resp.Scene.Features[len(resp.Scene.Features)-1]
	assert.Equal(t, "elevation", last.Properties["kind"])
	assert.Equal(t, true, last.Properties["available"])
}

func TestServer_HandleSessionMessage_UnencodableOutcome(t *testing.T) {
	s := quietServer(Config{})
	live := newLiveSession()
	conn := &mockWebSocketConn{}

	for _, msg := range []string{
		heightArrowMsg,
		shadowArrowMsg,
		`{"type":"put_polygon","id":"g","polygon":{"points":[{"x":0,"y":0},{"x":1e200,"y":0},{"x":1e200,"y":1e200},{"x":0,"y":1e200}]}}`,
		`{"type":"assign","role":"height","id":"h"}`,
		`{"type":"assign","role":"shadow","id":"s"}`,
	} {
		s.handleSessionMessage(conn, live, []byte(msg))
	}
	before := len(conn.sentMessages)
	s.handleSessionMessage(conn, live, []byte(`{"type":"assign","role":"ground","id":"g"}`))
	require.Len(t, conn.sentMessages, before+1)

	resp := conn.last(t)
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "non_finite", resp.ErrorType)
	assert.Equal(t, live.id, resp.SessionID)
}

func TestServer_SessionWebSocket(t *testing.T) {
	srv := httptest.NewServer(quietServer(Config{CORSOrigin: "*"}).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	roundTrip := func(msg string) SessionResponse {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var out SessionResponse
		require.NoError(t, conn.ReadJSON(&out))
		return out
	}

	roundTrip(heightArrowMsg)
	roundTrip(shadowArrowMsg)
	roundTrip(`{"type":"assign","role":"height","id":"h"}`)
	out := roundTrip(`{"type":"assign","role":"shadow","id":"s"}`)
	require.NotNil(t, out.Outcome)
	require.NotNil(t, out.Outcome.Result)
	assert.InDelta(t, 45, out.Outcome.Result.AngleDegrees, 1e-9)
	assert.NotEmpty(t, out.SessionID)
}

func TestServer_CheckOrigin(t *testing.T) {
	tests := []struct {
		cors, origin string
		want         bool
	}{
		{"*", "https://anything.example", true},
		{"https://app.example", "https://app.example", true},
		{"https://app.example", "https://evil.example", false},
		{"https://app.example", "", true},
		{"https://app.example", "http://example.com", true}, // same host
	}
	for _, tt := range tests {
		s := quietServer(Config{CORSOrigin: tt.cors})
		r := httptest.NewRequest(http.MethodGet, "http://example.com/ws/session", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, s.checkOrigin(r), "cors=%s origin=%s", tt.cors, tt.origin)
	}
}
