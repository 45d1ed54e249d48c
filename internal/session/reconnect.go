package session

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// Reconnect forces re-authentication with the session's last-known
// parameters and waits for the outcome. Joins a reconnection already in
// flight instead of starting a second one.
func (r *Registry) Reconnect(ctx context.Context, serverID string) error {
	s, err := r.Resolve(serverID)
	if err != nil {
		return err
	}
	op, err := r.triggerReconnect(ctx, s, nil, "reconnect requested")
	if err != nil {
		return err
	}
	if err := waitReconnect(ctx, op); err != nil {
		if ctx.Err() != nil {
			return ContextError(ctx.Err(), "reconnect to "+serverID)
		}
		return err
	}
	return nil
}

// ReportTransportError is called by borrowers whose channel failed. When
// cause looks like connection loss it is confirmed with a keepalive request;
// on confirmed loss the session is demoted to Reconnecting and one
// background reconnection starts. Returns true when the session was demoted.
func (r *Registry) ReportTransportError(s *Session, cause error) bool {
	if s == nil || !sshutil.IsConnectionLoss(cause) {
		return false
	}

	s.mu.RLock()
	t := s.transport
	state := s.state
	s.mu.RUnlock()
	if state != StateConnected || t == nil {
		return state == StateReconnecting
	}

	pctx, cancel := context.WithTimeout(r.ctx, r.opts.ProbeTimeout)
	err := t.Keepalive(pctx)
	cancel()
	if err == nil {
		r.log.Debug("%s: channel error but transport is alive: %v", logger.Sanitize(s.ServerID), cause)
		return false
	}

	_, terr := r.triggerReconnect(r.ctx, s, t, "transport lost: "+errors.Detail(cause))
	return terr == nil
}

// triggerReconnect demotes s to Reconnecting and starts the backoff loop in
// the background. When failed is non-nil the demotion only happens if that
// transport is still the current one. Returns the in-flight operation.
func (r *Registry) triggerReconnect(ctx context.Context, s *Session, failed sshutil.Transport, reason string) (*reconnectOp, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, ContextError(err, "reconnect to "+s.ServerID)
	}
	defer s.release()

	opCtx, cancel := context.WithCancel(r.ctx)
	op := &reconnectOp{done: make(chan struct{}), cancel: cancel}

	s.mu.Lock()
	switch {
	case s.removed:
		s.mu.Unlock()
		cancel()
		return nil, notConnected(s.ServerID)
	case s.reconnect != nil:
		inflight := s.reconnect
		s.mu.Unlock()
		cancel()
		return inflight, nil
	case failed != nil && s.transport != failed:
		// Someone already replaced the broken transport.
		s.mu.Unlock()
		cancel()
		return &reconnectOp{done: closedChan()}, nil
	}
	s.reconnect = op
	s.mu.Unlock()

	if t := r.detach(s); t != nil {
		_ = t.Close()
	}
	r.setState(s, StateReconnecting, reason)
	r.log.Warn("%s: reconnecting (%s)", logger.Sanitize(s.ServerID), reason)
	r.emit(s.ServerID, EventReconnecting, reason)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runReconnect(opCtx, s, op)
	}()
	return op, nil
}

// newBackoff returns base, base*factor, ... with no jitter, stopping after
// MaxAttempts dials in total.
func (r *Registry) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.BaseDelay
	b.Multiplier = r.opts.Factor
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.MaxAttempts-1)), ctx)
}

func (r *Registry) runReconnect(ctx context.Context, s *Session, op *reconnectOp) {
	defer op.cancel()

	attempt := 0
	var t sshutil.Transport
	dial := func() error {
		attempt++
		r.log.Debug("%s: reconnect attempt %d/%d", logger.Sanitize(s.ServerID), attempt, r.opts.MaxAttempts)
		var err error
		t, err = r.dial(ctx, s.params)
		if errors.IsCode(err, errors.ErrAuthFailed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.log.Warn("%s: reconnect attempt %d failed: %s (next in %s)",
			logger.Sanitize(s.ServerID), attempt, errors.Detail(err), wait)
	}

	err := backoff.RetryNotify(dial, r.newBackoff(ctx), notify)

	_ = s.acquire(context.Background())
	defer s.release()

	s.mu.Lock()
	s.reconnect = nil
	removed := s.removed
	s.mu.Unlock()

	switch {
	case removed:
		if t != nil {
			_ = t.Close()
		}
		op.err = notConnected(s.ServerID)

	case err == nil:
		if !r.attach(s, t, fmt.Sprintf("reconnected after %d attempt(s)", attempt)) {
			op.err = notConnected(s.ServerID)
			break
		}
		r.log.Info("%s: reconnected after %d attempt(s)", logger.Sanitize(s.ServerID), attempt)
		r.emit(s.ServerID, EventReconnected, fmt.Sprintf("%d attempt(s)", attempt))

	default:
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		reason := fmt.Sprintf("gave up after %d attempt(s): %s", attempt, errors.Detail(err))
		r.setState(s, StateFailed, reason)
		r.log.Error("%s: %s", logger.Sanitize(s.ServerID), reason)
		r.emit(s.ServerID, EventReconnectFailed, reason)
		op.err = sessionFailed(s.ServerID, err)
	}
	close(op.done)
}

func sessionFailed(serverID string, cause error) error {
	return errors.WrapWithCode(cause, errors.ErrSessionFailed,
		fmt.Sprintf("Session for %q failed and needs a reconnect", serverID),
		"Run reconnect_terminal once the host is reachable, or disconnect it")
}

func waitReconnect(ctx context.Context, op *reconnectOp) error {
	if op == nil {
		return nil
	}
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
