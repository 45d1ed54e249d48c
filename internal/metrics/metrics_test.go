package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
	sshtest "github.com/rileyhilliard/myssh/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCommand(t *testing.T) {
	m := New()
	m.RecordCommand("execute_ssh_command", OutcomeOK, 10*time.Millisecond)
	m.RecordCommand("execute_ssh_command", OutcomeOK, 20*time.Millisecond)
	m.RecordCommand("execute_ssh_command", "NOT_CONNECTED", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("execute_ssh_command", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("execute_ssh_command", "NOT_CONNECTED")))
}

func TestRecordTransferAndMissing(t *testing.T) {
	m := New()
	m.RecordTransfer("upload", 100)
	m.RecordTransfer("upload", 50)
	m.RecordMissingSource("disk")

	assert.Equal(t, 150.0, testutil.ToFloat64(m.transferBytes.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sampleMissingTotal.WithLabelValues("disk")))
}

func TestWatch(t *testing.T) {
	d := sshtest.NewMockDialer()
	d.AddHost("db1", "admin", "secret")
	reg := session.New(session.Options{Dialer: d})
	defer reg.Close()

	m := New()
	m.Watch(reg)

	_, err := reg.Connect(context.Background(), session.Params{
		ServerID:   "db1",
		Host:       "db1",
		Username:   "admin",
		Credential: sshutil.PasswordCredential("secret"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("connecting", "connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues(string(session.EventConnected))))

	expected := `
# HELP myssh_sessions Registered sessions by state
# TYPE myssh_sessions gauge
myssh_sessions{state="connected"} 1
myssh_sessions{state="connecting"} 0
myssh_sessions{state="disconnected"} 0
myssh_sessions{state="failed"} 0
myssh_sessions{state="reconnecting"} 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "myssh_sessions"))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("POST", "/api/v1/commands/{name}", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `myssh_http_requests_total{method="POST",route="/api/v1/commands/{name}",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
