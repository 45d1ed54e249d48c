package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "myssh.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := Open(filepath.Join(dir, "myssh.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "myssh.db"))
	assert.NoError(t, err)
}

func TestServerCRUD(t *testing.T) {
	s := openTest(t)

	srv := &Server{Host: "db1", Username: "admin", CredentialRef: "sealed"}
	require.NoError(t, s.CreateServer(srv))
	assert.Len(t, srv.ID, 36)
	assert.Equal(t, 22, srv.Port)
	assert.Equal(t, "db1", srv.Name, "name defaults to host")

	got, err := s.GetServer(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.True(t, got.HasPassword())
	assert.False(t, got.CreatedAt.IsZero())

	got.Name = "primary db"
	got.Port = 2222
	require.NoError(t, s.UpdateServer(got))

	reloaded, err := s.GetServer(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, "primary db", reloaded.Name)
	assert.Equal(t, 2222, reloaded.Port)
	assert.WithinDuration(t, got.CreatedAt, reloaded.CreatedAt, time.Second)

	require.NoError(t, s.DeleteServer(srv.ID))
	_, err = s.GetServer(srv.ID)
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))
}

func TestListServers_OrderedByName(t *testing.T) {
	s := openTest(t)
	for _, name := range []string{"web", "db", "cache"} {
		require.NoError(t, s.CreateServer(&Server{Name: name, Host: name + ".internal", Username: "ops"}))
	}

	servers, err := s.ListServers()
	require.NoError(t, err)
	require.Len(t, servers, 3)
	assert.Equal(t, "cache", servers[0].Name)
	assert.Equal(t, "db", servers[1].Name)
	assert.Equal(t, "web", servers[2].Name)
}

func TestCreateServer_Validation(t *testing.T) {
	s := openTest(t)

	tests := []struct {
		name string
		srv  Server
	}{
		{"no host", Server{Username: "admin"}},
		{"no user", Server{Host: "db1"}},
		{"bad port", Server{Host: "db1", Username: "admin", Port: 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateServer(&tt.srv)
			assert.True(t, errors.IsCode(err, errors.ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestCreateServer_DuplicateID(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.CreateServer(&Server{ID: "fixed", Host: "db1", Username: "admin"}))

	err := s.CreateServer(&Server{ID: "fixed", Host: "db2", Username: "admin"})
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyExists), "got %v", err)
}

func TestUpdateAndDelete_Missing(t *testing.T) {
	s := openTest(t)

	err := s.UpdateServer(&Server{ID: "nope", Host: "db1", Username: "admin"})
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))

	err = s.DeleteServer("nope")
	assert.True(t, errors.IsCode(err, errors.ErrPathNotFound))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	servers, err := s.ListServers()
	require.NoError(t, err)
	assert.Empty(t, servers)
}
