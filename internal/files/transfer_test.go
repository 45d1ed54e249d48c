package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/myssh/internal/errors"
	sshtest "github.com/rileyhilliard/myssh/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocal(t *testing.T, name, content string, perm os.FileMode) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), perm))
	require.NoError(t, os.Chmod(p, perm))
	return p
}

func TestUpload(t *testing.T) {
	f := setup(t, Options{ChunkSize: 4})
	sshtest.WithDirs(f.host, []string{"/srv"})
	local := writeLocal(t, "app.conf", "listen 8080\nworkers 4\n", 0o640)

	tr, err := f.m.Upload(context.Background(), "db1", local, "/srv/app.conf")
	require.NoError(t, err)
	assert.Equal(t, int64(22), tr.Bytes)
	assert.Equal(t, "/srv/app.conf", tr.Destination)

	data, err := f.host.FS().ReadFile("/srv/app.conf")
	require.NoError(t, err)
	assert.Equal(t, "listen 8080\nworkers 4\n", string(data))
	assert.Equal(t, os.FileMode(0o640), f.host.FS().Mode("/srv/app.conf"))
}

func TestUpload_IntoDirectory(t *testing.T) {
	f := setup(t, Options{})
	sshtest.WithDirs(f.host, []string{"/srv/releases"})
	local := writeLocal(t, "build.tar", "tarball", 0o644)

	tr, err := f.m.Upload(context.Background(), "db1", local, "/srv/releases")
	require.NoError(t, err)
	assert.Equal(t, "/srv/releases/build.tar", tr.Destination)
	assert.True(t, f.host.FS().IsFile("/srv/releases/build.tar"))
}

func TestUpload_Overwrites(t *testing.T) {
	f := setup(t, Options{})
	sshtest.WithFiles(f.host, map[string]string{"/srv/motd": "a much longer old message"})
	local := writeLocal(t, "motd", "new", 0o644)

	_, err := f.m.Upload(context.Background(), "db1", local, "/srv/motd")
	require.NoError(t, err)
	data, err := f.host.FS().ReadFile("/srv/motd")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestUpload_Errors(t *testing.T) {
	f := setup(t, Options{})
	sshtest.WithDirs(f.host, []string{"/secure"})
	f.host.FS().Deny("/secure")
	local := writeLocal(t, "a.txt", "a", 0o644)
	ctx := context.Background()

	_, err := f.m.Upload(ctx, "db1", filepath.Join(t.TempDir(), "missing"), "/tmp/x")
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))

	_, err = f.m.Upload(ctx, "db1", t.TempDir(), "/tmp/x")
	assert.True(t, errors.IsCode(err, errors.ErrInvalidArgument))

	_, err = f.m.Upload(ctx, "db1", local, "/no/such/dir/a.txt")
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))

	_, err = f.m.Upload(ctx, "db1", local, "/secure/a.txt")
	assert.True(t, errors.IsCode(err, errors.ErrPermissionDenied))

	_, err = f.m.Upload(ctx, "web9", local, "/tmp/a.txt")
	assert.True(t, errors.IsCode(err, errors.ErrNotConnected))
}

func TestUpload_Interrupted(t *testing.T) {
	f := setup(t, Options{ChunkSize: 4})
	sshtest.WithDirs(f.host, []string{"/srv"})
	f.host.InterruptTransfersAfter(10)
	local := writeLocal(t, "alpha.txt", "abcdefghijklmnopqrstuvwxy", 0o644)

	_, err := f.m.Upload(context.Background(), "db1", local, "/srv/alpha.txt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransferInterrupted))

	var te *TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, int64(10), te.BytesTransferred)
	assert.Equal(t, "/srv/alpha.txt", te.Path)

	data, err := f.host.FS().ReadFile("/srv/alpha.txt")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", string(data), "partial file is left in place")
}

func TestDownload(t *testing.T) {
	f := setup(t, Options{ChunkSize: 3})
	sshtest.WithFiles(f.host, map[string]string{"/var/log/syslog": "line one\nline two\n"})
	require.NoError(t, f.m.ChangeMode(context.Background(), "db1", "/var/log/syslog", "600"))
	dest := filepath.Join(t.TempDir(), "syslog.copy")

	tr, err := f.m.Download(context.Background(), "db1", "/var/log/syslog", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(18), tr.Bytes)
	assert.Equal(t, "/var/log/syslog", tr.Source)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDownload_IntoDirectory(t *testing.T) {
	f := setup(t, Options{})
	sshtest.WithFiles(f.host, map[string]string{"/etc/hosts": "127.0.0.1 localhost\n"})
	dir := t.TempDir()

	tr, err := f.m.Download(context.Background(), "db1", "/etc/hosts", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hosts"), tr.Destination)
	_, err = os.Stat(filepath.Join(dir, "hosts"))
	assert.NoError(t, err)
}

func TestDownload_Errors(t *testing.T) {
	f := setup(t, Options{})
	sshtest.WithDirs(f.host, []string{"/etc"})
	ctx := context.Background()
	dest := filepath.Join(t.TempDir(), "out")

	_, err := f.m.Download(ctx, "db1", "/etc/missing", dest)
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))

	_, err = f.m.Download(ctx, "db1", "/etc", dest)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidArgument))

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "nothing written locally on early failure")
}

func TestDownload_InterruptedLeavesOtherSessionsAlone(t *testing.T) {
	f := setup(t, Options{ChunkSize: 16})
	f.d.AddHost("db2", "admin", "secret")
	connect(t, f.reg, "db2")

	content := strings.Repeat("0123456789", 10)
	sshtest.WithFiles(f.host, map[string]string{"/data/dump.sql": content})
	f.host.InterruptTransfersAfter(40)
	dest := filepath.Join(t.TempDir(), "dump.sql")

	_, err := f.m.Download(context.Background(), "db1", "/data/dump.sql", dest)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransferInterrupted))

	var te *TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, int64(40), te.BytesTransferred)

	partial, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content[:40], string(partial))

	// db2 never noticed.
	entries, err := f.m.ListDirectory(context.Background(), "db2", "/")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// db1 comes back on its own and the retry completes.
	f.host.InterruptTransfersAfter(0)
	tr, err := f.m.Download(context.Background(), "db1", "/data/dump.sql", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(100), tr.Bytes)
}

func TestTransfer_Canceled(t *testing.T) {
	f := setup(t, Options{})
	sshtest.WithFiles(f.host, map[string]string{"/etc/hosts": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.m.Download(ctx, "db1", "/etc/hosts", filepath.Join(t.TempDir(), "hosts"))
	assert.True(t, errors.IsCode(err, errors.ErrCanceled))
}

func TestCopyChunks_StopsOnCancel(t *testing.T) {
	f := setup(t, Options{ChunkSize: 2})
	ctx, cancel := context.WithCancel(context.Background())

	w := &cancelAfter{n: 3, cancel: cancel}
	n, err := f.m.copyChunks(ctx, w, strings.NewReader("abcdefgh"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(6), n)
}

// cancelAfter cancels once it has seen n writes.
type cancelAfter struct {
	n      int
	seen   int
	cancel context.CancelFunc
}

func (c *cancelAfter) Write(p []byte) (int, error) {
	c.seen++
	if c.seen == c.n {
		c.cancel()
	}
	return len(p), nil
}
