package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesKeyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	r, err := New("", dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, KeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	ref, err := r.Seal("secret")
	require.NoError(t, err)

	// A second resolver reads the same key back.
	r2, err := New("", dir)
	require.NoError(t, err)
	cred, err := r2.Resolve(ref, "")
	require.NoError(t, err)
	assert.Equal(t, "secret", cred.Password())
}

func TestNew_ConfiguredKey(t *testing.T) {
	var k fernet.Key
	require.NoError(t, k.Generate())

	dir := t.TempDir()
	r, err := New(k.Encode(), dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, KeyFileName))
	assert.True(t, os.IsNotExist(err), "a configured key never writes a key file")

	ref, err := r.Seal("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, ref, "hunter2")
}

func TestNew_BadKey(t *testing.T) {
	_, err := New("not-a-key", t.TempDir())
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFileName), []byte("garbage"), 0o600))
	_, err = New("", dir)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestResolve(t *testing.T) {
	r, err := New("", t.TempDir())
	require.NoError(t, err)
	ref, err := r.Seal("pw")
	require.NoError(t, err)

	cred, err := r.Resolve(ref, "")
	require.NoError(t, err)
	assert.Equal(t, "password", cred.Method())
	assert.Equal(t, "pw", cred.Password())

	cred, err = r.Resolve(ref, "~/.ssh/id_ed25519")
	require.NoError(t, err)
	assert.Equal(t, "key", cred.Method())
	assert.Equal(t, "pw", cred.Passphrase())

	cred, err = r.Resolve("", "")
	require.NoError(t, err)
	assert.True(t, cred.IsZero())

	empty, err := r.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResolve_WrongKey(t *testing.T) {
	a, err := New("", t.TempDir())
	require.NoError(t, err)
	b, err := New("", t.TempDir())
	require.NoError(t, err)

	ref, err := a.Seal("pw")
	require.NoError(t, err)

	_, err = b.Resolve(ref, "")
	assert.True(t, errors.IsCode(err, errors.ErrAuthFailed))
	assert.False(t, strings.Contains(err.Error(), "pw"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("abc"))
	assert.Equal(t, "****6789", Mask("123456789"))
}
