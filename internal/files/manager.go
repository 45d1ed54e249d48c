package files

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// DefaultChunkSize matches the SFTP max packet payload.
const DefaultChunkSize = 32 * 1024

// Options configures a Manager.
type Options struct {
	ChunkSize int
	Logger    logger.Logger
}

// Manager runs file operations against a session's SFTP channel. Each call
// opens its own channel and closes it when done; cancellation closes only
// that channel.
type Manager struct {
	reg       *session.Registry
	chunkSize int
	log       logger.Logger
}

// New creates a Manager.
func New(reg *session.Registry, opts Options) *Manager {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	return &Manager{reg: reg, chunkSize: opts.ChunkSize, log: logger.With(opts.Logger, "files")}
}

// op is one file-channel borrow.
type op struct {
	m        *Manager
	ctx      context.Context
	serverID string
	fc       sshutil.FileChannel
	s        *session.Session
	stop     func() bool
}

func (m *Manager) open(ctx context.Context, serverID string) (*op, error) {
	fc, s, err := m.reg.OpenFiles(ctx, serverID)
	if err != nil {
		return nil, err
	}
	o := &op{m: m, ctx: ctx, serverID: serverID, fc: fc, s: s}
	// Closing the channel aborts whatever request is in flight on it.
	o.stop = context.AfterFunc(ctx, func() { _ = fc.Close() })
	return o, nil
}

func (o *op) close() {
	o.stop()
	_ = o.fc.Close()
}

// fail maps a remote error onto the error taxonomy. Connection loss is
// reported to the registry so the session gets demoted.
func (o *op) fail(err error, what, p string) error {
	if o.ctx.Err() != nil {
		return session.ContextError(o.ctx.Err(), what)
	}
	if sshutil.IsConnectionLoss(err) {
		o.m.reg.ReportTransportError(o.s, err)
		return session.TransportLost(o.serverID, err)
	}
	return mapFSError(err, what, p)
}

func mapFSError(err error, what, p string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.WrapWithCode(err, errors.ErrPathNotFound,
			fmt.Sprintf("%s: %s does not exist", what, p), "")
	case errors.Is(err, fs.ErrPermission):
		return errors.WrapWithCode(err, errors.ErrPermissionDenied,
			fmt.Sprintf("%s: permission denied on %s", what, p),
			"Check the file's owner and mode, or connect as a user with access")
	case errors.Is(err, fs.ErrExist):
		return errors.WrapWithCode(err, errors.ErrAlreadyExists,
			fmt.Sprintf("%s: %s already exists", what, p), "")
	}
	return errors.WrapWithCode(err, errors.ErrRemoteFailure,
		fmt.Sprintf("%s: %s", what, p), "")
}

// ListDirectory lists dir. "." and ".." come first, followed by the entries in
// the order the server returned them.
func (m *Manager) ListDirectory(ctx context.Context, serverID, dir string) ([]Entry, error) {
	dir = cleanPath(dir)
	o, err := m.open(ctx, serverID)
	if err != nil {
		return nil, err
	}
	defer o.close()

	self, err := o.fc.Stat(dir)
	if err != nil {
		return nil, o.fail(err, "list directory", dir)
	}
	if !self.IsDir() {
		return nil, errors.New(errors.ErrInvalidArgument,
			fmt.Sprintf("list directory: %s is not a directory", dir), "")
	}
	parentPath := path.Join(dir, "..")
	parent, err := o.fc.Stat(parentPath)
	if err != nil {
		// Unreadable parent still lists; reuse self.
		parent = self
	}

	infos, err := o.fc.ReadDir(dir)
	if err != nil {
		return nil, o.fail(err, "list directory", dir)
	}

	entries := make([]Entry, 0, len(infos)+2)
	entries = append(entries, newEntry(".", dir, self), newEntry("..", parentPath, parent))
	for _, fi := range infos {
		if fi.Name() == "." || fi.Name() == ".." {
			continue
		}
		entries = append(entries, newEntry(fi.Name(), path.Join(dir, fi.Name()), fi))
	}

	m.log.Debug("%s: listed %s (%d entries)", logger.Sanitize(serverID), logger.Sanitize(dir), len(infos))
	return entries, nil
}

// CreateDirectory creates one directory. The parent must exist.
func (m *Manager) CreateDirectory(ctx context.Context, serverID, p string) error {
	p = cleanPath(p)
	o, err := m.open(ctx, serverID)
	if err != nil {
		return err
	}
	defer o.close()

	if fi, err := o.fc.Lstat(p); err == nil {
		return errors.New(errors.ErrAlreadyExists,
			fmt.Sprintf("create directory: %s already exists (%s)", p, newEntry(fi.Name(), p, fi).Kind), "")
	}
	if err := o.fc.Mkdir(p); err != nil {
		return o.fail(err, "create directory", p)
	}
	m.log.Info("%s: created directory %s", logger.Sanitize(serverID), logger.Sanitize(p))
	return nil
}

// Rename moves oldPath to newPath.
func (m *Manager) Rename(ctx context.Context, serverID, oldPath, newPath string) error {
	oldPath, newPath = cleanPath(oldPath), cleanPath(newPath)
	o, err := m.open(ctx, serverID)
	if err != nil {
		return err
	}
	defer o.close()

	if _, err := o.fc.Lstat(oldPath); err != nil {
		return o.fail(err, "rename", oldPath)
	}
	if _, err := o.fc.Lstat(newPath); err == nil {
		return errors.New(errors.ErrAlreadyExists,
			fmt.Sprintf("rename: %s already exists", newPath),
			"Delete the destination first or pick another name")
	}
	if err := o.fc.Rename(oldPath, newPath); err != nil {
		return o.fail(err, "rename", oldPath)
	}
	m.log.Info("%s: renamed %s -> %s", logger.Sanitize(serverID), logger.Sanitize(oldPath), logger.Sanitize(newPath))
	return nil
}

// ChangeMode sets the permission bits of p. mode is parsed by ParseMode.
func (m *Manager) ChangeMode(ctx context.Context, serverID, p, mode string) error {
	fm, err := ParseMode(mode)
	if err != nil {
		return err
	}
	p = cleanPath(p)
	o, err := m.open(ctx, serverID)
	if err != nil {
		return err
	}
	defer o.close()

	if err := o.fc.Chmod(p, fm); err != nil {
		return o.fail(err, "change mode", p)
	}
	return nil
}

// ChangeModeMany applies mode to every path independently. An invalid mode
// fails every path with INVALID_MODE.
func (m *Manager) ChangeModeMany(ctx context.Context, serverID string, paths []string, mode string) (*BatchResult, error) {
	res := &BatchResult{}
	fm, err := ParseMode(mode)
	if err != nil {
		for _, p := range paths {
			res.add(p, failure(err))
		}
		return res, nil
	}

	o, err := m.open(ctx, serverID)
	if err != nil {
		return nil, err
	}
	defer o.close()

	for _, p := range paths {
		if err := o.fc.Chmod(cleanPath(p), fm); err != nil {
			res.add(p, failure(o.fail(err, "change mode", p)))
			continue
		}
		res.add(p, Outcome{Status: StatusOK})
	}
	m.log.Info("%s: chmod %s: %s", logger.Sanitize(serverID), mode, res.Summary("changed"))
	return res, nil
}

// DeleteMany removes every path independently; directories are removed
// recursively. One path's failure never stops the others.
func (m *Manager) DeleteMany(ctx context.Context, serverID string, paths []string) (*BatchResult, error) {
	o, err := m.open(ctx, serverID)
	if err != nil {
		return nil, err
	}
	defer o.close()

	res := &BatchResult{}
	for _, p := range paths {
		cp := cleanPath(p)
		if cp == "/" || cp == "." {
			res.add(p, failure(errors.New(errors.ErrInvalidArgument,
				fmt.Sprintf("refusing to delete %q", p), "")))
			continue
		}
		if err := o.removeAll(cp); err != nil {
			res.add(p, failure(err))
			continue
		}
		res.add(p, Outcome{Status: StatusOK})
	}
	m.log.Info("%s: delete: %s", logger.Sanitize(serverID), res.Summary("deleted"))
	return res, nil
}

// removeAll deletes p, recursing into directories. Symlinks are removed, not followed.
func (o *op) removeAll(p string) error {
	if err := o.ctx.Err(); err != nil {
		return session.ContextError(err, "delete "+p)
	}
	fi, err := o.fc.Lstat(p)
	if err != nil {
		return o.fail(err, "delete", p)
	}
	if fi.Mode()&os.ModeSymlink != 0 || !fi.IsDir() {
		if err := o.fc.Remove(p); err != nil {
			return o.fail(err, "delete", p)
		}
		return nil
	}

	children, err := o.fc.ReadDir(p)
	if err != nil {
		return o.fail(err, "delete", p)
	}
	for _, c := range children {
		if c.Name() == "." || c.Name() == ".." {
			continue
		}
		if err := o.removeAll(path.Join(p, c.Name())); err != nil {
			return err
		}
	}
	if err := o.fc.RemoveDirectory(p); err != nil {
		return o.fail(err, "delete", p)
	}
	return nil
}

func failure(err error) Outcome {
	kind := errors.Kind(err)
	if kind == "" {
		kind = errors.ErrRemoteFailure
	}
	return Outcome{Status: StatusError, Kind: kind, Detail: errors.Detail(err)}
}
