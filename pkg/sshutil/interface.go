package sshutil

import (
	"context"
	"io"
	"os"
)

// Target identifies one remote account to dial.
type Target struct {
	// Host is a hostname, IP, or ~/.ssh/config alias.
	Host string
	// Port defaults to 22 (or the ssh_config Port) when zero.
	Port int
	// Username overrides the ssh_config User when set.
	Username string
	// Credential selects password or key auth. The zero value falls back to
	// the SSH agent and default key files.
	Credential Credential
}

// Dialer establishes authenticated transports.
// Both SSHDialer and the mock dialer in pkg/sshutil/testing satisfy it.
type Dialer interface {
	// Dial connects and authenticates. Failures are *errors.Error with code
	// AUTH_FAILED or HOST_UNREACHABLE.
	Dial(ctx context.Context, target Target) (Transport, error)
}

// Transport is one live, authenticated, multiplexed connection to a host.
// Channels opened from it are independent; closing the transport tears all
// of them down.
type Transport interface {
	// OpenExec opens a channel that runs exactly one command. The wait for
	// the server's reply is bounded by ctx.
	OpenExec(ctx context.Context) (ExecChannel, error)

	// OpenFiles opens a file-transfer channel, bounded by ctx.
	OpenFiles(ctx context.Context) (FileChannel, error)

	// Keepalive sends a no-op request and waits for the reply. A non-nil
	// error means the connection is gone.
	Keepalive(ctx context.Context) error

	// RemoteAddr returns the resolved host:port.
	RemoteAddr() string

	// Close closes the connection.
	Close() error
}

// ExecChannel runs one remote command.
type ExecChannel interface {
	// Run executes cmd, copying its output to stdout and stderr, and returns
	// the remote exit code. A non-zero exit is not an error. When ctx is done
	// the channel is torn down and ctx.Err() is returned.
	Run(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Close releases the channel. Safe to call after Run.
	Close() error
}

// FileChannel is the subset of SFTP operations the engine needs.
// Errors for missing paths satisfy errors.Is(err, fs.ErrNotExist) and
// permission failures errors.Is(err, fs.ErrPermission).
type FileChannel interface {
	ReadDir(path string) ([]os.FileInfo, error)
	Stat(path string) (os.FileInfo, error)
	Lstat(path string) (os.FileInfo, error)

	// Open opens a remote file for reading.
	Open(path string) (io.ReadCloser, error)
	// Create creates or truncates a remote file for writing.
	Create(path string) (io.WriteCloser, error)

	Mkdir(path string) error
	// Remove removes a file or symlink.
	Remove(path string) error
	// RemoveDirectory removes an empty directory.
	RemoveDirectory(path string) error
	Rename(oldPath, newPath string) error
	Chmod(path string, mode os.FileMode) error

	Close() error
}
