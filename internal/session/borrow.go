package session

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// OpenExec borrows the session's transport just long enough to open an exec
// channel. The lock is released before the command runs, so several channels
// can be open on one session at once.
func (r *Registry) OpenExec(ctx context.Context, serverID string) (sshutil.ExecChannel, *Session, error) {
	return borrow(ctx, r, serverID, "open a command channel", func(t sshutil.Transport) (sshutil.ExecChannel, error) {
		return t.OpenExec(ctx)
	})
}

// OpenFiles borrows the session's transport to open a file channel.
func (r *Registry) OpenFiles(ctx context.Context, serverID string) (sshutil.FileChannel, *Session, error) {
	return borrow(ctx, r, serverID, "open a file channel", func(t sshutil.Transport) (sshutil.FileChannel, error) {
		return t.OpenFiles(ctx)
	})
}

// borrow resolves serverID, waits out an in-flight reconnection, and opens
// one channel under the session lock. The open itself is bounded by ctx, and
// Disconnect never waits for it.
func borrow[C any](ctx context.Context, r *Registry, serverID, what string, open func(sshutil.Transport) (C, error)) (C, *Session, error) {
	var zero C
	for {
		s, err := r.Resolve(serverID)
		if err != nil {
			return zero, nil, err
		}
		if err := s.acquire(ctx); err != nil {
			return zero, s, ContextError(err, what)
		}

		s.mu.RLock()
		removed := s.removed
		state, t, op, lastErr := s.state, s.transport, s.reconnect, s.lastErr
		s.mu.RUnlock()
		if removed {
			s.release()
			continue
		}

		switch state {
		case StateConnected:
			ch, err := open(t)
			s.release()
			if err != nil {
				if ctx.Err() != nil {
					return zero, s, ContextError(ctx.Err(), what)
				}
				if s.isRemoved() {
					return zero, s, notConnected(serverID)
				}
				if sshutil.IsConnectionLoss(err) {
					r.ReportTransportError(s, err)
					return zero, s, TransportLost(serverID, err)
				}
				return zero, s, errors.WrapWithCode(err, errors.ErrRemoteFailure,
					fmt.Sprintf("Failed to %s on %s", what, serverID), "")
			}
			s.touch()
			return ch, s, nil

		case StateReconnecting:
			s.release()
			if err := waitReconnect(ctx, op); err != nil && ctx.Err() != nil {
				return zero, s, ContextError(ctx.Err(), what)
			}

		case StateFailed:
			s.release()
			return zero, s, sessionFailed(serverID, lastErr)

		default:
			s.release()
			return zero, s, notConnected(serverID)
		}
	}
}

// TransportLost builds the error returned to a caller whose operation died
// with the connection.
func TransportLost(serverID string, cause error) error {
	return errors.WrapWithCode(cause, errors.ErrTransportLost,
		fmt.Sprintf("Lost the connection to %s", serverID),
		"The session is reconnecting; retry the operation once it is connected again")
}
