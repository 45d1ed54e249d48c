// Package exec runs shell commands on remote sessions.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// Result is the captured outcome of one command. A non-zero ExitCode is a
// normal result, not an error.
type Result struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	// Truncated is set when output exceeded the capture limit.
	Truncated bool `json:"truncated,omitempty"`
}

// Options configures an Executor.
type Options struct {
	DefaultTimeout time.Duration
	// MaxOutputBytes caps stdout and stderr separately. Zero means unlimited.
	MaxOutputBytes int64
	Logger         logger.Logger
}

// Executor runs commands over exec channels borrowed from a session.Registry.
// Commands are never retried.
type Executor struct {
	reg  *session.Registry
	opts Options
	log  logger.Logger
}

// New creates an Executor.
func New(reg *session.Registry, opts Options) *Executor {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	return &Executor{reg: reg, opts: opts, log: logger.With(opts.Logger, "exec")}
}

// Execute runs command on serverID and waits for it to exit or for timeout
// (DefaultTimeout when timeout <= 0). On timeout the channel is closed and
// COMMAND_TIMEOUT returned; the session stays connected. A broken transport
// yields TRANSPORT_LOST and starts background reconnection.
func (e *Executor) Execute(ctx context.Context, serverID, command string, timeout time.Duration) (*Result, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New(errors.ErrInvalidArgument, "command is empty", "")
	}
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ch, s, err := e.reg.OpenExec(cctx, serverID)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	e.log.Debug("%s: running %q", logger.Sanitize(serverID), logger.Sanitize(command))

	stdout := &limitedBuffer{limit: e.opts.MaxOutputBytes}
	stderr := &limitedBuffer{limit: e.opts.MaxOutputBytes}
	code, err := ch.Run(cctx, command, stdout, stderr)
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case cctx.Err() != nil && ctx.Err() == nil:
			e.log.Warn("%s: command timed out after %s", logger.Sanitize(serverID), timeout)
			return nil, errors.WrapWithCode(cctx.Err(), errors.ErrCommandTimeout,
				fmt.Sprintf("Command timed out after %s", timeout),
				"Raise the timeout, or run long jobs in the background (nohup ... &)")
		case ctx.Err() != nil:
			return nil, session.ContextError(ctx.Err(), "run the command")
		case sshutil.IsConnectionLoss(err):
			e.reg.ReportTransportError(s, err)
			return nil, session.TransportLost(serverID, err)
		default:
			return nil, errors.WrapWithCode(err, errors.ErrExec,
				fmt.Sprintf("Failed to run command on %s", serverID), "")
		}
	}

	return &Result{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitCode:   code,
		DurationMs: elapsed.Milliseconds(),
		Truncated:  stdout.truncated || stderr.truncated,
	}, nil
}

// limitedBuffer keeps the first limit bytes and silently drops the rest, so a
// chatty command cannot exhaust memory. Write never fails.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	room := b.limit - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
