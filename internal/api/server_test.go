package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/metrics"
	sshtest "github.com/rileyhilliard/myssh/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	d := sshtest.NewMockDialer()
	h := d.AddHost("db1", "admin", "secret")
	sshtest.WithDirs(h, []string{"/var/log"})

	cfg := config.DefaultConfig()
	cfg.SSH.KeepaliveInterval = 0
	cfg.Reconnect.BaseDelay = time.Millisecond

	m := metrics.New()
	eng := engine.New(engine.Options{Config: cfg, Dialer: d, Metrics: m})
	t.Cleanup(eng.Close)

	srv := httptest.NewServer(New(eng, m, nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, name, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/commands/"+name, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func kindOf(m map[string]interface{}) string {
	if e, ok := m["error"].(map[string]interface{}); ok {
		return e["kind"].(string)
	}
	return ""
}

func TestCommandFlow(t *testing.T) {
	srv := newTestServer(t)

	status, out := post(t, srv, engine.CmdConnect,
		`{"server_id":"db1","host":"db1","port":22,"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["success"], "%v", out)
	assert.NotEmpty(t, out["connection_id"])

	status, out = post(t, srv, engine.CmdExecute, `{"server_id":"db1","command":"echo ok"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", out["output"])

	status, out = post(t, srv, engine.CmdListDirectory, `{"server_id":"db1","path":"/var/log"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["files"], 2)

	resp, err := http.Get(srv.URL + "/api/v1/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	var sessions map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions["sessions"], 1)
	assert.Equal(t, "connected", sessions["sessions"].([]interface{})[0].(map[string]interface{})["state"])
}

func TestCommandFailureIsOK(t *testing.T) {
	srv := newTestServer(t)

	status, out := post(t, srv, engine.CmdExecute, `{"server_id":"db1","command":"uptime"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, errors.ErrNotConnected, kindOf(out))
}

func TestUnknownCommand(t *testing.T) {
	srv := newTestServer(t)

	status, out := post(t, srv, "format_disk", `{}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, errors.ErrUnknownCommand, kindOf(out))
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	status, out := post(t, srv, engine.CmdExecute, `{"server_id":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errors.ErrInvalidArgument, kindOf(out))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	post(t, srv, engine.CmdExecute, `{"server_id":"db1","command":"uptime"}`)

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	buf := new(strings.Builder)
	_, err = io.Copy(buf, mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `myssh_commands_total{command="execute_ssh_command",outcome="NOT_CONNECTED"} 1`)
	assert.Contains(t, buf.String(), `route="/api/v1/commands/{name}"`)
}

func TestListCommands(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/commands")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out["commands"], engine.CmdSystemMonitor)
	assert.Contains(t, out["commands"], engine.CmdDeleteFiles)
}
