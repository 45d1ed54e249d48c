package engine

import (
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/files"
	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/internal/store"
)

// Response is the envelope shared by every command result.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

func (r *Response) envelope() *Response { return r }

// ErrorInfo is the machine-readable part of a failed response. Retryable is
// set when reconnecting may cure the failure.
type ErrorInfo struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Retryable  bool   `json:"retryable"`

	// BytesTransferred is set for interrupted transfers.
	BytesTransferred *int64 `json:"bytes_transferred,omitempty"`
}

// Failure builds the failed envelope for err. Errors without a structured
// kind are reported as REMOTE_FAILURE.
func Failure(err error) *Response {
	kind := errors.Kind(err)
	if kind == "" {
		kind = errors.ErrRemoteFailure
	}
	msg := errors.Detail(err)
	info := &ErrorInfo{
		Kind:       kind,
		Message:    msg,
		Suggestion: errors.SuggestionOf(err),
		Retryable:  errors.Retryable(kind),
	}
	var te *files.TransferError
	if errors.As(err, &te) {
		n := te.BytesTransferred
		info.BytesTransferred = &n
	}
	return &Response{Success: false, Message: msg, Error: info}
}

// ServerRequest carries only the target server.
type ServerRequest struct {
	ServerID string `json:"server_id"`
}

type ConnectRequest struct {
	ServerID   string `json:"server_id"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	KeyPath    string `json:"key_path,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

type ConnectResponse struct {
	Response
	ConnectionID string `json:"connection_id,omitempty"`
}

type ExecuteRequest struct {
	ServerID string `json:"server_id"`
	Command  string `json:"command"`
	// TimeoutMs overrides exec.default_timeout when positive.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}

type ExecuteResponse struct {
	Response
	Output     string `json:"output"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Truncated  bool   `json:"truncated,omitempty"`
}

type PathRequest struct {
	ServerID string `json:"server_id"`
	Path     string `json:"path"`
}

type ListDirectoryResponse struct {
	Response
	Path  string        `json:"path"`
	Files []files.Entry `json:"files"`
}

type TransferRequest struct {
	ServerID   string `json:"server_id"`
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
}

type TransferResponse struct {
	Response
	*files.Transfer
}

type DeleteRequest struct {
	ServerID string   `json:"server_id"`
	Paths    []string `json:"paths"`
}

type BatchResponse struct {
	Response
	Results []files.PathResult `json:"results"`
}

type RenameRequest struct {
	ServerID string `json:"server_id"`
	OldPath  string `json:"old_path"`
	NewPath  string `json:"new_path"`
}

// ChangeModeRequest targets Path, or every entry of Paths when set.
type ChangeModeRequest struct {
	ServerID string   `json:"server_id"`
	Path     string   `json:"path,omitempty"`
	Paths    []string `json:"paths,omitempty"`
	Mode     string   `json:"mode"`
}

type MonitorResponse struct {
	Response
	*monitor.Snapshot
}

type SessionsResponse struct {
	Response
	Sessions []session.Info `json:"sessions"`
}

// ServerView is a profile as shown to callers. The sealed credential is
// never returned.
type ServerView struct {
	store.Server
	HasPassword bool `json:"has_password"`
}

func viewOf(s store.Server) ServerView {
	return ServerView{Server: s, HasPassword: s.HasPassword()}
}

type ServersResponse struct {
	Response
	Servers []ServerView `json:"servers"`
}

type ServerResponse struct {
	Response
	Server *ServerView `json:"server,omitempty"`
}

// SaveServerRequest creates a profile. Password is sealed before storage;
// with KeyPath set, Passphrase is sealed instead.
type SaveServerRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	KeyPath    string `json:"key_path,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

// UpdateServerRequest changes only the fields that are set.
type UpdateServerRequest struct {
	ID         string  `json:"id"`
	Name       *string `json:"name,omitempty"`
	Host       *string `json:"host,omitempty"`
	Port       *int    `json:"port,omitempty"`
	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
	KeyPath    *string `json:"key_path,omitempty"`
	Passphrase *string `json:"passphrase,omitempty"`
}

type SaveServerResponse struct {
	Response
	ID string `json:"id"`
}
