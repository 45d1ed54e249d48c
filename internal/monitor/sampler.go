package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/exec"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/session"
	"golang.org/x/sync/errgroup"
)

// Runner executes one command on a session. *exec.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, serverID, command string, timeout time.Duration) (*exec.Result, error)
}

// Options configures a Sampler.
type Options struct {
	// Battery selects the sources per platform. Required.
	Battery Battery

	// SampleWindow is the gap between paired reads for CPU and network rates.
	SampleWindow time.Duration

	// CommandTimeout bounds each diagnostic command.
	CommandTimeout time.Duration

	// Concurrency caps the commands in flight per sample.
	Concurrency int

	Logger logger.Logger
}

// Sampler runs a platform's diagnostic battery and assembles a Snapshot.
type Sampler struct {
	reg  *session.Registry
	run  Runner
	opts Options
	log  logger.Logger
	now  func() time.Time

	mu        sync.Mutex
	platforms map[string]platformEntry
}

// platformEntry caches uname results for one connection.
type platformEntry struct {
	connectionID string
	platform     Platform
}

// NewSampler creates a Sampler.
func NewSampler(reg *session.Registry, run Runner, opts Options) *Sampler {
	if opts.SampleWindow <= 0 {
		opts.SampleWindow = 500 * time.Millisecond
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	return &Sampler{
		reg:       reg,
		run:       run,
		opts:      opts,
		log:       logger.With(opts.Logger, "monitor"),
		now:       time.Now,
		platforms: make(map[string]platformEntry),
	}
}

// output is what one source's command produced.
type output struct {
	stdout string
	err    error
}

// Sample collects one snapshot of serverID. Individual sources that fail are
// listed in Snapshot.Missing; only a session-level failure fails the call.
func (s *Sampler) Sample(ctx context.Context, serverID string) (*Snapshot, error) {
	platform, err := s.platform(ctx, serverID)
	if err != nil {
		return nil, err
	}

	sources := s.opts.Battery(platform, s.opts.SampleWindow)
	outputs := make([]output, len(sources))
	timeout := s.opts.CommandTimeout + s.opts.SampleWindow

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			res, err := s.run.Execute(gctx, serverID, src.Command, timeout)
			if err != nil {
				if fatal(err) {
					return err
				}
				outputs[i] = output{err: err}
				return nil
			}
			if res.ExitCode != 0 {
				outputs[i] = output{err: commandFailed(src, res)}
				return nil
			}
			outputs[i] = output{stdout: res.Stdout}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, session.ContextError(err, "finish sampling "+serverID)
	}

	snap := &Snapshot{Timestamp: s.now().UTC(), Platform: platform}
	for i, src := range sources {
		err := outputs[i].err
		if err == nil {
			err = src.Apply(snap, outputs[i].stdout)
		}
		if err != nil {
			snap.Missing = append(snap.Missing, SourceFailure{
				Source: src.Name,
				Kind:   errors.ErrParseFailure,
				Detail: errors.Detail(err),
			})
			s.log.Debug("%s: source %s unavailable: %s", logger.Sanitize(serverID), src.Name, errors.Detail(err))
		}
	}
	if len(snap.Missing) > 0 {
		s.log.Info("%s: partial sample, %d of %d sources missing", logger.Sanitize(serverID), len(snap.Missing), len(sources))
	}
	return snap, nil
}

// platform returns the cached platform for the session's current connection,
// running uname on a cache miss. A failed detection falls back to unknown.
func (s *Sampler) platform(ctx context.Context, serverID string) (Platform, error) {
	sess, err := s.reg.Resolve(serverID)
	if err != nil {
		return "", err
	}
	connID := sess.ConnectionID()

	s.mu.Lock()
	e, ok := s.platforms[serverID]
	s.mu.Unlock()
	if ok && e.connectionID == connID {
		return e.platform, nil
	}

	res, err := s.run.Execute(ctx, serverID, PlatformDetectCommand(), s.opts.CommandTimeout)
	if err != nil {
		if fatal(err) {
			return "", err
		}
		s.log.Warn("%s: platform detection failed: %s", logger.Sanitize(serverID), errors.Detail(err))
		return PlatformUnknown, nil
	}
	p := ParsePlatform(res.Stdout)

	s.mu.Lock()
	s.platforms[serverID] = platformEntry{connectionID: connID, platform: p}
	s.mu.Unlock()
	return p, nil
}

// Forget drops the cached platform for serverID.
func (s *Sampler) Forget(serverID string) {
	s.mu.Lock()
	delete(s.platforms, serverID)
	s.mu.Unlock()
}

// fatal reports errors that fail the whole sample rather than one source.
func fatal(err error) bool {
	switch errors.Kind(err) {
	case errors.ErrNotConnected, errors.ErrTransportLost, errors.ErrSessionFailed, errors.ErrCanceled:
		return true
	}
	return false
}

func commandFailed(src Source, res *exec.Result) error {
	if err := exec.MissingToolError(src.Command, res.Stderr, res.ExitCode); err != nil {
		return err
	}
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = "no output"
	}
	return errors.New(errors.ErrParseFailure,
		fmt.Sprintf("%s exited %d: %s", src.Name, res.ExitCode, detail), "")
}
