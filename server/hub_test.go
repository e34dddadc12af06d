package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mkvert/config"
	"mkvert/exporter"
	"mkvert/model"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	s := NewServer(":0", websocket.Upgrader{}, WithClock(clock))
	return httptest.NewServer(s.Handler()), s
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, msg model.Msg) model.Msg {
	t.Helper()
	require.NoError(t, conn.WriteJSON(&msg))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var reply model.Msg
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func arpegeINI(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../conf/arpege90.ini")
	require.NoError(t, err)
	return string(data)
}

func TestHub_Build(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv, _ := newTestServer(t)
	defer srv.Close()
	conn := dial(t, srv)
	defer conn.Close()

	reply := exchange(t, conn, model.Msg{Type: model.MsgBuild, ID: "job-1", Content: arpegeINI(t)})
	require.Equal(t, model.MsgResult, reply.Type, reply.Content)
	assert.Equal(t, "job-1", reply.ID)

	table, err := exporter.Decode(strings.NewReader(reply.Content), config.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, table.GridLevels, 91)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), table.Provenance.GeneratedAt)
	assert.Empty(t, table.Provenance.Source)
}

func TestHub_Report(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv, _ := newTestServer(t)
	defer srv.Close()
	conn := dial(t, srv)
	defer conn.Close()

	reply := exchange(t, conn, model.Msg{Type: model.MsgReport, Content: arpegeINI(t)})
	require.Equal(t, model.MsgReport, reply.Type, reply.Content)
	assert.NotEmpty(t, reply.ID)
	assert.Contains(t, reply.Content, "planetary boundary layer")
}

func TestHub_Errors(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv, _ := newTestServer(t)
	defer srv.Close()
	conn := dial(t, srv)
	defer conn.Close()

	bad := strings.Replace(arpegeINI(t), "Hybridicity = -1.6", "Hybridicity = -0.5", 1)
	reply := exchange(t, conn, model.Msg{Type: model.MsgBuild, ID: "bad", Content: bad})
	assert.Equal(t, model.MsgError, reply.Type)
	assert.Equal(t, "bad", reply.ID)
	assert.True(t, strings.HasPrefix(reply.Content, "ConfigError: "), reply.Content)

	reply = exchange(t, conn, model.Msg{Type: "start"})
	assert.Equal(t, model.MsgError, reply.Type)
	assert.Contains(t, reply.Content, "unknown message type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var raw model.Msg
	require.NoError(t, conn.ReadJSON(&raw))
	assert.Equal(t, model.MsgError, raw.Type)
	assert.Contains(t, raw.Content, "malformed message")

	// the connection survives failed requests
	reply = exchange(t, conn, model.Msg{Type: model.MsgBuild, Content: arpegeINI(t)})
	assert.Equal(t, model.MsgResult, reply.Type)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv, _ := newTestServer(t)
	defer srv.Close()

	conn := dial(t, srv)
	exchange(t, conn, model.Msg{Type: model.MsgBuild, Content: arpegeINI(t)})
	exchange(t, conn, model.Msg{Type: model.MsgBuild, Content: "[dimensions]\n"})
	conn.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health["status"])

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, `mkvert_builds_total{outcome="success"} 1`)
	assert.Contains(t, out, `mkvert_builds_total{outcome="config"} 1`)
	assert.Contains(t, out, "mkvert_solver_iterations_count 1")
}
