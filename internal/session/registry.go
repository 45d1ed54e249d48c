package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// Options configures a Registry.
type Options struct {
	Dialer sshutil.Dialer
	Logger logger.Logger

	// ConnectTimeout bounds each dial, including reconnection attempts.
	ConnectTimeout time.Duration
	// KeepaliveInterval is the period of the liveness loop started by Start.
	// Zero disables it.
	KeepaliveInterval time.Duration
	// ProbeTimeout bounds a single keepalive round trip.
	ProbeTimeout time.Duration

	// Reconnection backoff: BaseDelay, BaseDelay*Factor, ... for MaxAttempts dials.
	BaseDelay   time.Duration
	Factor      float64
	MaxAttempts int
}

// OptionsFromConfig builds Options from the loaded config.
func OptionsFromConfig(cfg *config.Config, d sshutil.Dialer, log logger.Logger) Options {
	return Options{
		Dialer:            d,
		Logger:            log,
		ConnectTimeout:    cfg.SSH.ConnectTimeout,
		KeepaliveInterval: cfg.SSH.KeepaliveInterval,
		BaseDelay:         cfg.Reconnect.BaseDelay,
		Factor:            cfg.Reconnect.Factor,
		MaxAttempts:       cfg.Reconnect.MaxAttempts,
	}
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = logger.Noop()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.Factor < 1 {
		o.Factor = 2
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
}

// Registry is the single authority for connect, disconnect and lookup of
// sessions. The map lock is held only for map updates, never across dials.
type Registry struct {
	opts Options
	log  logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	cbMu      sync.RWMutex
	callbacks []StateChangeCallback
	listeners []EventListener

	// ctx scopes background work (reconnection, keepalive). Cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:     opts,
		log:      logger.With(opts.Logger, "session"),
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnStateChange registers a callback for every state transition.
func (r *Registry) OnStateChange(cb StateChangeCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// OnEvent registers a listener for lifecycle events.
func (r *Registry) OnEvent(l EventListener) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) emit(serverID string, typ EventType, details string) {
	r.cbMu.RLock()
	listeners := make([]EventListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.cbMu.RUnlock()

	ev := Event{ServerID: serverID, Type: typ, Timestamp: time.Now(), Details: details}
	for _, l := range listeners {
		l(ev)
	}
}

// setState moves s to `to`. Callers other than Disconnect hold s.lock. A
// session that Disconnect already retired stays Disconnected.
func (r *Registry) setState(s *Session, to State, reason string) {
	s.mu.Lock()
	from, changed := r.transitionLocked(s, to, reason)
	s.mu.Unlock()
	if changed {
		r.notifyTransition(s, from, to, reason)
	}
}

// transitionLocked records the state change. The caller holds s.mu.
func (r *Registry) transitionLocked(s *Session, to State, reason string) (State, bool) {
	from := s.state
	if from == to || (s.removed && from == StateDisconnected) {
		return from, false
	}
	if !CanTransition(from, to) {
		r.log.Warn("unexpected transition %s -> %s for %s", from, to, logger.Sanitize(s.ServerID))
	}
	s.state = to
	s.history.record(Transition{From: from, To: to, Timestamp: time.Now(), Reason: reason})
	return from, true
}

func (r *Registry) notifyTransition(s *Session, from, to State, reason string) {
	r.log.Debug("%s: %s -> %s (%s)", logger.Sanitize(s.ServerID), from, to, reason)

	r.cbMu.RLock()
	cbs := make([]StateChangeCallback, len(r.callbacks))
	copy(cbs, r.callbacks)
	r.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(s.ServerID, from, to)
	}
}

// attach installs a fresh transport and marks s Connected in one step, so no
// reader sees the new transport under an old state. It returns false and
// closes t when s was disconnected meanwhile. The caller must hold s.lock.
func (r *Registry) attach(s *Session, t sshutil.Transport, reason string) bool {
	now := time.Now()
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		_ = t.Close()
		return false
	}
	s.transport = t
	s.connectionID = uuid.NewString()
	s.lastErr = nil
	s.connectedAt = now
	s.lastActivity = now
	from, changed := r.transitionLocked(s, StateConnected, reason)
	s.mu.Unlock()

	if changed {
		r.notifyTransition(s, from, StateConnected, reason)
	}
	return true
}

// detach removes and returns the transport. The caller must hold s.lock.
func (r *Registry) detach(s *Session) sshutil.Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.transport
	s.transport = nil
	return t
}

func (r *Registry) lookup(serverID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[serverID]
}

// Connect returns the Connected session for p.ServerID, dialing one if needed.
// A second Connect for a live session returns the same *Session without
// dialing. A failed first connect leaves nothing registered.
func (r *Registry) Connect(ctx context.Context, p Params) (*Session, error) {
	if p.ServerID == "" {
		return nil, errors.New(errors.ErrInvalidArgument, "server id is required", "")
	}
	if p.Host == "" {
		return nil, errors.New(errors.ErrInvalidArgument, "host is required", "")
	}

	for {
		r.mu.Lock()
		s, ok := r.sessions[p.ServerID]
		if !ok {
			s = newSession(p)
			// Cannot block: the session is brand new.
			_ = s.lock.TryAcquire(1)
			r.sessions[p.ServerID] = s
			r.mu.Unlock()
			return r.dialNew(ctx, s)
		}
		r.mu.Unlock()

		if err := s.acquire(ctx); err != nil {
			return nil, ContextError(err, "connect to "+p.ServerID)
		}
		if s.isRemoved() {
			s.release()
			continue
		}

		switch s.State() {
		case StateConnected:
			s.release()
			s.touch()
			return s, nil
		case StateReconnecting:
			op := s.reconnect
			s.release()
			if err := waitReconnect(ctx, op); err != nil && ctx.Err() != nil {
				return nil, ContextError(ctx.Err(), "connect to "+p.ServerID)
			}
			continue
		default:
			// Failed: discard it and start over with the new parameters.
			s.release()
			_ = r.Disconnect(s.ServerID)
		}
	}
}

// dialNew performs the first dial of s. The caller holds s.lock.
func (r *Registry) dialNew(ctx context.Context, s *Session) (*Session, error) {
	defer s.release()

	r.setState(s, StateConnecting, "connect requested")
	r.log.Info("connecting to %s (%s@%s) with %s", logger.Sanitize(s.ServerID),
		logger.Sanitize(s.Username), logger.Sanitize(s.Host), s.params.Credential.Method())

	t, err := r.dial(ctx, s.params)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.removed = true
		s.mu.Unlock()
		r.setState(s, StateFailed, errors.Detail(err))

		r.mu.Lock()
		if r.sessions[s.ServerID] == s {
			delete(r.sessions, s.ServerID)
		}
		r.mu.Unlock()

		r.log.Warn("connect to %s failed: %s", logger.Sanitize(s.ServerID), errors.Detail(err))
		r.emit(s.ServerID, EventConnectFailed, errors.Detail(err))
		return nil, err
	}

	if !r.attach(s, t, "connected") {
		return nil, errors.New(errors.ErrNotConnected,
			fmt.Sprintf("Session for %q was disconnected while connecting", s.ServerID), "")
	}
	r.log.Info("connected to %s at %s", logger.Sanitize(s.ServerID), t.RemoteAddr())
	r.emit(s.ServerID, EventConnected, t.RemoteAddr())
	return s, nil
}

func (r *Registry) dial(ctx context.Context, p Params) (sshutil.Transport, error) {
	dctx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	defer cancel()

	t, err := r.opts.Dialer.Dial(dctx, p.target())
	if err != nil {
		if errors.Kind(err) == "" {
			err = errors.WrapWithCode(err, errors.ErrHostUnreachable,
				fmt.Sprintf("Failed to connect to %s", p.Host), "")
		}
		return nil, err
	}
	return t, nil
}

// Disconnect closes and removes the session. Absent sessions are a no-op. It
// returns without waiting for in-flight borrowers or dials.
func (r *Registry) Disconnect(serverID string) error {
	r.mu.Lock()
	s, ok := r.sessions[serverID]
	if ok {
		delete(r.sessions, serverID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	// Disconnect does not take s.lock: a borrower stuck opening a channel
	// holds it, and closing the transport is what unsticks that borrower.
	s.mu.Lock()
	s.removed = true
	op := s.reconnect
	t := s.transport
	s.transport = nil
	s.mu.Unlock()
	if op != nil {
		op.cancel()
	}

	var closeErr error
	if t != nil {
		closeErr = t.Close()
	}
	r.setState(s, StateDisconnected, "disconnect requested")
	r.log.Info("disconnected from %s", logger.Sanitize(serverID))
	r.emit(serverID, EventDisconnected, "")
	if closeErr != nil && !sshutil.IsConnectionLoss(closeErr) {
		r.log.Debug("closing transport for %s: %v", logger.Sanitize(serverID), closeErr)
	}
	return nil
}

// Resolve returns the registered session or NOT_CONNECTED.
func (r *Registry) Resolve(serverID string) (*Session, error) {
	if s := r.lookup(serverID); s != nil {
		return s, nil
	}
	return nil, notConnected(serverID)
}

func notConnected(serverID string) error {
	return errors.New(errors.ErrNotConnected,
		fmt.Sprintf("No session for server %q", serverID),
		"Connect to the server first")
}

// List returns an Info for every registered session, sorted by server id.
func (r *Registry) List() []Info {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(all))
	for _, s := range all {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ServerID < infos[j].ServerID })
	return infos
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close disconnects every session and stops background work.
func (r *Registry) Close() {
	r.cancel()

	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Disconnect(id)
	}
	r.wg.Wait()
}

// ContextError maps a context failure onto COMMAND_TIMEOUT or CANCELED.
func ContextError(err error, what string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.WrapWithCode(err, errors.ErrCommandTimeout,
			fmt.Sprintf("Timed out waiting to %s", what),
			"Increase the timeout or check the remote host's load")
	}
	return errors.WrapWithCode(err, errors.ErrCanceled,
		fmt.Sprintf("Canceled while waiting to %s", what), "")
}
