package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

func requireServer(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New(errors.ErrInvalidArgument, "server_id is required", "")
	}
	return nil
}

func credentialOf(password, keyPath, passphrase string) sshutil.Credential {
	if keyPath != "" {
		return sshutil.KeyCredential(keyPath, passphrase)
	}
	if password != "" {
		return sshutil.PasswordCredential(password)
	}
	return sshutil.Credential{}
}

// Connect opens (or returns the existing) session for req.ServerID.
func (e *Engine) Connect(ctx context.Context, req ConnectRequest) (*ConnectResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Host) == "" {
		return nil, errors.New(errors.ErrInvalidArgument, "host is required", "")
	}
	if req.Port < 0 || req.Port > 65535 {
		return nil, errors.Newf(errors.ErrInvalidArgument, "Port %d is out of range", req.Port)
	}

	return e.connect(ctx, session.Params{
		ServerID:   req.ServerID,
		Host:       req.Host,
		Port:       req.Port,
		Username:   req.Username,
		Credential: credentialOf(req.Password, req.KeyPath, req.Passphrase),
	})
}

func (e *Engine) connect(ctx context.Context, p session.Params) (*ConnectResponse, error) {
	s, err := e.reg.Connect(ctx, p)
	if err != nil {
		return nil, err
	}
	e.log.Info("connected %s (%s@%s, %s)", logger.Sanitize(p.ServerID),
		logger.Sanitize(p.Username), logger.Sanitize(p.Host), p.Credential.Method())
	return &ConnectResponse{
		Response:     Response{Message: fmt.Sprintf("Connected to %s", s.Host)},
		ConnectionID: s.ConnectionID(),
	}, nil
}

// Disconnect closes the session. Disconnecting an unknown server succeeds.
func (e *Engine) Disconnect(_ context.Context, req ServerRequest) (*Response, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.reg.Disconnect(req.ServerID); err != nil {
		return nil, err
	}
	e.sampler.Forget(req.ServerID)
	return &Response{Message: fmt.Sprintf("Disconnected from %s", req.ServerID)}, nil
}

// Reconnect replaces the session's transport using its remembered parameters.
func (e *Engine) Reconnect(ctx context.Context, req ServerRequest) (*Response, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.reg.Reconnect(ctx, req.ServerID); err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("Reconnected to %s", req.ServerID)}, nil
}

// Execute runs one command. A non-zero exit code is a successful response.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	res, err := e.exec.Execute(ctx, req.ServerID, req.Command, e.timeout(req.TimeoutMs))
	if err != nil {
		return nil, err
	}
	return &ExecuteResponse{
		Response:   Response{Message: fmt.Sprintf("exit status %d", res.ExitCode)},
		Output:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMs: res.DurationMs,
		Truncated:  res.Truncated,
	}, nil
}

// ListDirectory lists req.Path, including "." and "..".
func (e *Engine) ListDirectory(ctx context.Context, req PathRequest) (*ListDirectoryResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	entries, err := e.files.ListDirectory(ctx, req.ServerID, req.Path)
	if err != nil {
		return nil, err
	}
	return &ListDirectoryResponse{
		Response: Response{Message: fmt.Sprintf("%d entries", len(entries))},
		Path:     req.Path,
		Files:    entries,
	}, nil
}

// Upload copies a local file to the remote host.
func (e *Engine) Upload(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	tr, err := e.files.Upload(ctx, req.ServerID, req.LocalPath, req.RemotePath)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordTransfer("upload", tr.Bytes)
	}
	return &TransferResponse{
		Response: Response{Message: fmt.Sprintf("Uploaded %s to %s", tr.Source, tr.Destination)},
		Transfer: tr,
	}, nil
}

// Download copies a remote file to the local machine.
func (e *Engine) Download(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	tr, err := e.files.Download(ctx, req.ServerID, req.RemotePath, req.LocalPath)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordTransfer("download", tr.Bytes)
	}
	return &TransferResponse{
		Response: Response{Message: fmt.Sprintf("Downloaded %s to %s", tr.Source, tr.Destination)},
		Transfer: tr,
	}, nil
}

// CreateDirectory creates one remote directory.
func (e *Engine) CreateDirectory(ctx context.Context, req PathRequest) (*Response, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.files.CreateDirectory(ctx, req.ServerID, req.Path); err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("Created %s", req.Path)}, nil
}

// DeleteFiles removes every path independently. The call succeeds even when
// some paths fail; per-path outcomes are in Results.
func (e *Engine) DeleteFiles(ctx context.Context, req DeleteRequest) (*BatchResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	b, err := e.files.DeleteMany(ctx, req.ServerID, req.Paths)
	if err != nil {
		return nil, err
	}
	return &BatchResponse{
		Response: Response{Message: b.Summary("deleted")},
		Results:  b.Results,
	}, nil
}

// RenameFile moves OldPath to NewPath.
func (e *Engine) RenameFile(ctx context.Context, req RenameRequest) (*Response, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.files.Rename(ctx, req.ServerID, req.OldPath, req.NewPath); err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("Renamed %s to %s", req.OldPath, req.NewPath)}, nil
}

// ChangeMode applies an octal mode to Path, or to each of Paths.
func (e *Engine) ChangeMode(ctx context.Context, req ChangeModeRequest) (*BatchResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if len(req.Paths) > 0 {
		b, err := e.files.ChangeModeMany(ctx, req.ServerID, req.Paths, req.Mode)
		if err != nil {
			return nil, err
		}
		return &BatchResponse{
			Response: Response{Message: b.Summary("changed")},
			Results:  b.Results,
		}, nil
	}

	if err := e.files.ChangeMode(ctx, req.ServerID, req.Path, req.Mode); err != nil {
		return nil, err
	}
	return &BatchResponse{Response: Response{Message: fmt.Sprintf("Changed mode of %s to %s", req.Path, req.Mode)}}, nil
}

// SystemMonitor samples the host. Sources that fail are listed in Missing
// and do not fail the call.
func (e *Engine) SystemMonitor(ctx context.Context, req ServerRequest) (*MonitorResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	snap, err := e.sampler.Sample(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}
	msg := "complete sample"
	if len(snap.Missing) > 0 {
		names := make([]string, 0, len(snap.Missing))
		for _, m := range snap.Missing {
			names = append(names, m.Source)
			if e.metrics != nil {
				e.metrics.RecordMissingSource(m.Source)
			}
		}
		msg = "partial sample, missing " + strings.Join(names, ", ")
	}
	return &MonitorResponse{Response: Response{Message: msg}, Snapshot: snap}, nil
}

// ListSessions reports every registered session.
func (e *Engine) ListSessions(_ context.Context, _ struct{}) (*SessionsResponse, error) {
	infos := e.reg.List()
	return &SessionsResponse{
		Response: Response{Message: fmt.Sprintf("%d session(s)", len(infos))},
		Sessions: infos,
	}, nil
}
