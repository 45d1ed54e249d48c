package session

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
	"golang.org/x/sync/semaphore"
)

// Params are the connection parameters remembered for reconnection.
type Params struct {
	ServerID   string
	Host       string
	Port       int
	Username   string
	Credential sshutil.Credential
}

func (p Params) target() sshutil.Target {
	return sshutil.Target{
		Host:       p.Host,
		Port:       p.Port,
		Username:   p.Username,
		Credential: p.Credential,
	}
}

// Session is one managed connection to one remote host. It is owned by a
// Registry; callers hold a *Session only as a handle and borrow its transport
// through the Registry.
//
// State writes happen while holding lock, so borrowers (which take the same
// lock) never observe a half-finished transition. Disconnect is the one
// writer that skips lock; it marks the session removed under mu instead.
type Session struct {
	ServerID string
	Host     string
	Port     int
	Username string

	// lock is the per-session exclusion lock; acquisition honors the
	// caller's context.
	lock *semaphore.Weighted

	// Fields below are written under lock and mu, and read under mu.
	mu           sync.RWMutex
	params       Params
	connectionID string
	state        State
	transport    sshutil.Transport
	lastErr      error
	lastActivity time.Time
	connectedAt  time.Time
	history      history
	removed      bool
	reconnect    *reconnectOp
}

func newSession(p Params) *Session {
	return &Session{
		ServerID: p.ServerID,
		Host:     p.Host,
		Port:     p.Port,
		Username: p.Username,
		lock:     semaphore.NewWeighted(1),
		params:   p,
		state:    StateDisconnected,
	}
}

func (s *Session) acquire(ctx context.Context) error {
	return s.lock.Acquire(ctx, 1)
}

func (s *Session) release() {
	s.lock.Release(1)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ConnectionID identifies the current transport. It changes on every
// successful (re)connection.
func (s *Session) ConnectionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionID
}

// LastError returns the most recent connection error, or nil.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Transitions returns the recent state history, oldest first.
func (s *Session) Transitions() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.list()
}

func (s *Session) isRemoved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.removed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Info is a point-in-time, serializable view of a Session.
type Info struct {
	ServerID       string    `json:"server_id"`
	ConnectionID   string    `json:"connection_id,omitempty"`
	Host           string    `json:"host"`
	Port           int       `json:"port"`
	Username       string    `json:"username"`
	State          State     `json:"state"`
	RemoteAddr     string    `json:"remote_addr,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ConnectedAt    time.Time `json:"connected_at"`
}

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		ServerID:       s.ServerID,
		ConnectionID:   s.connectionID,
		Host:           s.Host,
		Port:           s.Port,
		Username:       s.Username,
		State:          s.state,
		LastActivityAt: s.lastActivity,
		ConnectedAt:    s.connectedAt,
	}
	if s.transport != nil {
		info.RemoteAddr = s.transport.RemoteAddr()
	}
	if s.lastErr != nil {
		info.LastError = errors.Detail(s.lastErr)
	}
	return info
}

// reconnectOp is one in-flight reconnection. Borrowers wait on done.
type reconnectOp struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}
