package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setVersion(t *testing.T, v, c, d string) {
	t.Helper()
	origVersion, origCommit, origDate := version, commit, date
	t.Cleanup(func() { SetVersionInfo(origVersion, origCommit, origDate) })
	SetVersionInfo(v, c, d)
}

func TestVersionOutput(t *testing.T) {
	setupCLI(t)
	setVersion(t, "1.2.3", "abc1234", "2025-01-08T12:00:00Z")

	r := myssh(t, "version")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "myssh v1.2.3", "should show version with v prefix")
	assert.Contains(t, r.stdout, "commit: abc1234")
	assert.Contains(t, r.stdout, "built: 2025-01-08T12:00:00Z")
	assert.Contains(t, r.stdout, "go: "+runtime.Version())
	assert.Contains(t, r.stdout, "os/arch: "+runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionOutputShort(t *testing.T) {
	setupCLI(t)
	setVersion(t, "1.2.3", "abc1234", "2025-01-08T12:00:00Z")

	r := myssh(t, "version", "--short")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "1.2.3\n", r.stdout)
}

func TestVersionJSON(t *testing.T) {
	setupCLI(t)
	setVersion(t, "1.2.3", "abc1234", "2025-01-08T12:00:00Z")

	r := myssh(t, "-o", "json", "version")
	require.Equal(t, 0, r.code, r.stderr)
	m := decode(t, r.stdout)
	assert.Equal(t, "v1.2.3", m["version"])
	assert.Equal(t, "abc1234", m["commit"])
	assert.Equal(t, runtime.GOOS, m["os"])
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.0.0", "v1.0.0"},
		{"v1.0.0", "v1.0.0"},
		{"dev", "dev"},
		{"", ""},
		{"0.4.0-beta", "v0.4.0-beta"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, formatVersion(tt.input))
		})
	}
}
