package session

import (
	"context"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
)

// Start launches the keepalive loop. It returns immediately; the loop stops
// when ctx is done or Close is called.
func (r *Registry) Start(ctx context.Context) {
	if r.opts.KeepaliveInterval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.opts.KeepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.CheckAlive()
			}
		}
	}()
}

// CheckAlive checks every Connected session once and starts reconnection for
// the ones that do not answer.
func (r *Registry) CheckAlive() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.mu.RLock()
		t, state := s.transport, s.state
		s.mu.RUnlock()
		if state != StateConnected || t == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(r.ctx, r.opts.ProbeTimeout)
		err := t.Keepalive(ctx)
		cancel()
		if err == nil {
			continue
		}

		r.log.Warn("%s: keepalive failed: %s", logger.Sanitize(s.ServerID), errors.Detail(err))
		r.emit(s.ServerID, EventKeepaliveFailed, errors.Detail(err))
		_, _ = r.triggerReconnect(r.ctx, s, t, "keepalive failed")
	}
}
