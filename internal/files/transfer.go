package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// Upload streams localPath to remotePath in ChunkSize pieces. When remotePath
// is an existing directory the file lands inside it under its own name.
func (m *Manager) Upload(ctx context.Context, serverID, localPath, remotePath string) (*Transfer, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return nil, mapFSError(err, "upload", localPath)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, mapFSError(err, "upload", localPath)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrInvalidArgument,
			fmt.Sprintf("upload: %s is a directory", localPath),
			"Upload files one at a time")
	}

	o, err := m.open(ctx, serverID)
	if err != nil {
		return nil, err
	}
	defer o.close()

	dest := cleanPath(remotePath)
	if fi, err := o.fc.Stat(dest); err == nil && fi.IsDir() {
		dest = path.Join(dest, filepath.Base(localPath))
	}

	dst, err := o.fc.Create(dest)
	if err != nil {
		return nil, o.fail(err, "upload", dest)
	}

	start := time.Now()
	n, copyErr := m.copyChunks(ctx, dst, src)
	closeErr := dst.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return nil, o.interrupted(copyErr, dest, n)
	}

	if err := o.fc.Chmod(dest, info.Mode().Perm()); err != nil {
		m.log.Warn("%s: failed to set permissions on %s: %v", logger.Sanitize(serverID), logger.Sanitize(dest), err)
	}

	m.log.Info("%s: uploaded %s -> %s (%d bytes)", logger.Sanitize(serverID),
		logger.Sanitize(localPath), logger.Sanitize(dest), n)
	return &Transfer{
		Source:      localPath,
		Destination: dest,
		Bytes:       n,
		DurationMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Download streams remotePath to localPath in ChunkSize pieces. When
// localPath is an existing directory the file lands inside it.
func (m *Manager) Download(ctx context.Context, serverID, remotePath, localPath string) (*Transfer, error) {
	remotePath = cleanPath(remotePath)
	o, err := m.open(ctx, serverID)
	if err != nil {
		return nil, err
	}
	defer o.close()

	info, err := o.fc.Stat(remotePath)
	if err != nil {
		return nil, o.fail(err, "download", remotePath)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrInvalidArgument,
			fmt.Sprintf("download: %s is a directory", remotePath),
			"Download files one at a time")
	}

	dest := localPath
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		dest = filepath.Join(dest, path.Base(remotePath))
	}

	src, err := o.fc.Open(remotePath)
	if err != nil {
		return nil, o.fail(err, "download", remotePath)
	}
	defer src.Close()

	dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, mapFSError(err, "download", dest)
	}

	start := time.Now()
	n, copyErr := m.copyChunks(ctx, dst, src)
	closeErr := dst.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return nil, o.interrupted(copyErr, remotePath, n)
	}

	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		m.log.Warn("failed to set permissions on %s: %v", logger.Sanitize(dest), err)
	}

	m.log.Info("%s: downloaded %s -> %s (%d bytes)", logger.Sanitize(serverID),
		logger.Sanitize(remotePath), logger.Sanitize(dest), n)
	return &Transfer{
		Source:      remotePath,
		Destination: dest,
		Bytes:       n,
		DurationMs:  time.Since(start).Milliseconds(),
	}, nil
}

// copyChunks copies src to dst one chunk at a time, never holding more than
// one chunk in memory, and returns the bytes written to dst.
func (m *Manager) copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, m.chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw < nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// interrupted wraps a mid-transfer failure. The partial destination is kept.
func (o *op) interrupted(err error, p string, n int64) error {
	te := &TransferError{Path: p, BytesTransferred: n, Err: err}
	if o.ctx.Err() != nil {
		return session.ContextError(te, fmt.Sprintf("finish transferring %s", p))
	}
	if sshutil.IsConnectionLoss(err) {
		o.m.reg.ReportTransportError(o.s, err)
	}
	o.m.log.Warn("%s: %v", logger.Sanitize(o.serverID), te)
	return errors.WrapWithCode(te, errors.ErrTransferInterrupted,
		fmt.Sprintf("Transfer of %s interrupted after %d bytes", p, n),
		"The partial file was left in place; retry the transfer or delete it")
}
