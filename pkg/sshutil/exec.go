package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/ssh"
)

// signalGrace is how long a canceled command gets between SIGKILL and the
// channel being closed.
const signalGrace = 100 * time.Millisecond

// execChannel runs one command on an *ssh.Session.
type execChannel struct {
	session *ssh.Session
}

// Run starts cmd and waits for it. On cancellation the remote process is sent
// SIGKILL and the channel closed; the connection itself stays up.
func (e *execChannel) Run(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	e.session.Stdout = stdout
	e.session.Stderr = stderr

	if err := e.session.Start(cmd); err != nil {
		return -1, err
	}

	done := make(chan error, 1)
	go func() {
		done <- e.session.Wait()
	}()

	select {
	case err := <-done:
		return exitCode(err)
	case <-ctx.Done():
		_ = e.session.Signal(ssh.SIGKILL)
		select {
		case <-done:
		case <-time.After(signalGrace):
		}
		e.session.Close()
		return -1, ctx.Err()
	}
}

func (e *execChannel) Close() error {
	err := e.session.Close()
	if stderrors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// exitCode maps the result of Session.Wait to an exit code. A non-zero exit is
// reported as a code with a nil error; anything else is a channel failure. A
// channel that closes without an exit status is what a dropped connection
// looks like mid-command.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return -1, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return -1, err
}
