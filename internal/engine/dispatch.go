package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/metrics"
)

// Command names accepted by Dispatch.
const (
	CmdConnect         = "connect_ssh_server"
	CmdDisconnect      = "disconnect_ssh_server"
	CmdExecute         = "execute_ssh_command"
	CmdReconnect       = "reconnect_terminal"
	CmdListDirectory   = "list_remote_directory"
	CmdUpload          = "upload_file"
	CmdDownload        = "download_file"
	CmdCreateDirectory = "create_directory"
	CmdDeleteFiles     = "delete_files"
	CmdRename          = "rename_file"
	CmdChangeMode      = "change_file_mode"
	CmdSystemMonitor   = "get_system_monitor"

	CmdConnectProfile = "connect_server_profile"
	CmdListSessions   = "list_sessions"
	CmdGetServers     = "get_servers"
	CmdGetServer      = "get_server"
	CmdSaveServer     = "save_server"
	CmdUpdateServer   = "update_server"
	CmdDeleteServer   = "delete_server"
)

type enveloped interface {
	envelope() *Response
}

// handler decodes a request body and returns the bound call.
type handler func(body []byte) (func(context.Context) (enveloped, error), error)

func command[Req any, Resp enveloped](fn func(context.Context, Req) (Resp, error)) handler {
	return func(body []byte) (func(context.Context) (enveloped, error), error) {
		var req Req
		if err := decodeRequest(body, &req); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (enveloped, error) {
			resp, err := fn(ctx, req)
			if err != nil {
				return nil, err
			}
			return resp, nil
		}, nil
	}
}

func decodeRequest(body []byte, v interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.WrapWithCode(err, errors.ErrInvalidArgument, "Malformed request body",
			"Send a JSON object with snake_case fields, e.g. {\"server_id\": \"db1\"}")
	}
	return nil
}

func (e *Engine) commandTable() map[string]handler {
	return map[string]handler{
		CmdConnect:         command(e.Connect),
		CmdDisconnect:      command(e.Disconnect),
		CmdExecute:         command(e.Execute),
		CmdReconnect:       command(e.Reconnect),
		CmdListDirectory:   command(e.ListDirectory),
		CmdUpload:          command(e.Upload),
		CmdDownload:        command(e.Download),
		CmdCreateDirectory: command(e.CreateDirectory),
		CmdDeleteFiles:     command(e.DeleteFiles),
		CmdRename:          command(e.RenameFile),
		CmdChangeMode:      command(e.ChangeMode),
		CmdSystemMonitor:   command(e.SystemMonitor),

		CmdConnectProfile: command(e.ConnectProfile),
		CmdListSessions:   command(e.ListSessions),
		CmdGetServers:     command(e.GetServers),
		CmdGetServer:      command(e.GetServer),
		CmdSaveServer:     command(e.SaveServer),
		CmdUpdateServer:   command(e.UpdateServer),
		CmdDeleteServer:   command(e.DeleteServer),
	}
}

// Commands returns the accepted command names, sorted.
func (e *Engine) Commands() []string {
	names := make([]string, 0, len(e.commands))
	for name := range e.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named command with a JSON request body and returns its
// response. The returned error is non-nil only for an unknown command
// (UNKNOWN_COMMAND) or a malformed body (INVALID_ARGUMENT); failures of the
// command itself come back as a response with Success false.
func (e *Engine) Dispatch(ctx context.Context, name string, body []byte) (interface{}, error) {
	h, ok := e.commands[name]
	if !ok {
		return nil, errors.New(errors.ErrUnknownCommand,
			fmt.Sprintf("Unknown command %q", name), "GET /api/v1/commands lists the accepted commands")
	}
	call, err := h(body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := call(ctx)
	outcome := metrics.OutcomeOK

	var out interface{}
	if err != nil {
		f := Failure(err)
		outcome = f.Error.Kind
		e.log.Debug("%s failed (%s): %s", name, f.Error.Kind, f.Message)
		out = f
	} else {
		resp.envelope().Success = true
		out = resp
	}

	if e.metrics != nil {
		e.metrics.RecordCommand(name, outcome, time.Since(start))
	}
	return out, nil
}
