package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadHostAliases(t *testing.T) {
	path := writeSSHConfig(t, `
Host warehouse
    HostName 192.168.1.100
    User admin
    Port 2222
    IdentityFile ~/.ssh/id_warehouse

Host db1
    HostName db1.internal
    User postgres

Host *
    ServerAliveInterval 60

Host web-*
    User deploy
`)

	aliases, err := ReadHostAliases(path)
	require.NoError(t, err)
	require.Len(t, aliases, 2, "wildcard patterns are skipped")

	assert.Equal(t, "db1", aliases[0].Alias, "sorted by alias")
	assert.Equal(t, "db1.internal", aliases[0].Hostname)
	assert.Equal(t, "postgres", aliases[0].User)
	assert.Zero(t, aliases[0].Port)
	assert.Empty(t, aliases[0].IdentityFile)

	wh := aliases[1]
	assert.Equal(t, "warehouse", wh.Alias)
	assert.Equal(t, "192.168.1.100", wh.Hostname)
	assert.Equal(t, 2222, wh.Port)
	assert.True(t, filepath.IsAbs(wh.IdentityFile), "tilde expanded: %s", wh.IdentityFile)
	assert.Contains(t, wh.IdentityFile, "id_warehouse")
}

func TestReadHostAliases_MissingFile(t *testing.T) {
	aliases, err := ReadHostAliases("/nonexistent/config")
	assert.NoError(t, err)
	assert.Nil(t, aliases)
}

func TestReadHostAliases_HostnameDefaultsToAlias(t *testing.T) {
	path := writeSSHConfig(t, "Host bastion\n    User ops\n")

	aliases, err := ReadHostAliases(path)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "bastion", aliases[0].Hostname)
}

func TestReadHostAliases_StopsAtMatch(t *testing.T) {
	path := writeSSHConfig(t, `
Host before-match
    HostName before.example.com

Match host *.example.com
    User matchuser

Host after-match
    HostName after.example.com
`)

	aliases, err := ReadHostAliases(path)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "before-match", aliases[0].Alias)
}

func TestReadHostAliases_DuplicatesAndSharedBlocks(t *testing.T) {
	path := writeSSHConfig(t, `
Host node1 node2
    User shared
    Port 2200

Host node1
    HostName ignored.example.com
`)

	aliases, err := ReadHostAliases(path)
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	for _, a := range aliases {
		assert.Equal(t, "shared", a.User)
		assert.Equal(t, 2200, a.Port)
	}
}

func TestHostAlias_Target(t *testing.T) {
	a := HostAlias{Alias: "db1", Hostname: "10.0.0.5", User: "admin", Port: 2222, IdentityFile: "/keys/db1"}

	target := a.Target()
	assert.Equal(t, "10.0.0.5", target.Host)
	assert.Equal(t, 2222, target.Port)
	assert.Equal(t, "admin", target.Username)
	assert.Equal(t, "/keys/db1", target.Credential.KeyPath())

	bare := HostAlias{Alias: "web", Hostname: "web"}
	assert.True(t, bare.Target().Credential.IsZero())
}
