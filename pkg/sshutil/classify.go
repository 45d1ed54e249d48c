package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/pkg/sftp"
	"github.com/rileyhilliard/myssh/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ErrConnectionLost is returned by transports (including the test mocks) when
// the underlying connection has gone away.
var ErrConnectionLost = stderrors.New("ssh: connection lost")

// IsConnectionLoss reports whether err means the transport itself is gone, as
// opposed to a failure of the single operation (missing file, bad command).
// Callers confirm with Transport.Keepalive before demoting a session.
func IsConnectionLoss(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var openErr *ssh.OpenChannelError
	if stderrors.As(err, &openErr) {
		// The server answered; it just refused this channel.
		return false
	}

	if stderrors.Is(err, ErrConnectionLost) ||
		stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, net.ErrClosed) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, sftp.ErrSSHFxConnectionLost) ||
		stderrors.Is(err, sftp.ErrSSHFxNoConnection) {
		return true
	}

	var netErr *net.OpError
	if stderrors.As(err, &netErr) {
		return true
	}

	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection reset",
		"broken pipe",
		"use of closed network connection",
		"ssh: disconnect",
		"connection lost",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classifyHandshakeError maps a failed SSH handshake to AUTH_FAILED or
// HOST_UNREACHABLE.
func classifyHandshakeError(err error, host string, encryptedKeys []string) error {
	var hostKeyErr *HostKeyMismatchError
	if stderrors.As(err, &hostKeyErr) {
		return errors.WrapWithCode(err, errors.ErrAuthFailed,
			fmt.Sprintf("Host key verification failed for '%s'", host),
			hostKeyErr.Suggestion())
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "unable to authenticate"),
		strings.Contains(errStr, "no supported methods"):
		return errors.WrapWithCode(err, errors.ErrAuthFailed,
			fmt.Sprintf("Authentication to '%s' failed", host),
			suggestionForAuthError(encryptedKeys))
	case strings.Contains(errStr, "knownhosts: key is unknown"):
		return errors.WrapWithCode(err, errors.ErrAuthFailed,
			fmt.Sprintf("Host key for '%s' is not in known_hosts", host),
			"Connect once with ssh to accept the key, or disable strict_host_key_checking")
	}

	return errors.WrapWithCode(err, errors.ErrHostUnreachable,
		fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
		suggestionForDialError(err))
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Check the port."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	if strings.Contains(errStr, "no such host") {
		return "The hostname didn't resolve. Check for typos or DNS issues."
	}
	return "Make sure the host is reachable and SSH is listening."
}

func suggestionForAuthError(encryptedKeys []string) string {
	if len(encryptedKeys) > 0 {
		return fmt.Sprintf("Your key(s) are encrypted (%s). Supply the passphrase or add them to the agent: ssh-add",
			strings.Join(encryptedKeys, ", "))
	}
	return "Check the username and password or key."
}
