package engine

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/internal/store"
)

func (e *Engine) requireProfiles() error {
	if e.store == nil || e.secrets == nil {
		return errors.New(errors.ErrConfig, "Server profiles are not available",
			"Start the engine with a profile store and secret key")
	}
	return nil
}

// sealFor seals the passphrase for key profiles and the password otherwise.
func (e *Engine) sealFor(keyPath, password, passphrase string) (string, error) {
	if keyPath != "" {
		return e.secrets.Seal(passphrase)
	}
	return e.secrets.Seal(password)
}

// ConnectProfile connects using a saved profile. The session is keyed by the
// profile id.
func (e *Engine) ConnectProfile(ctx context.Context, req ServerRequest) (*ConnectResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.requireProfiles(); err != nil {
		return nil, err
	}
	srv, err := e.store.GetServer(req.ServerID)
	if err != nil {
		return nil, err
	}
	cred, err := e.secrets.Resolve(srv.CredentialRef, srv.KeyPath)
	if err != nil {
		return nil, err
	}
	return e.connect(ctx, session.Params{
		ServerID:   srv.ID,
		Host:       srv.Host,
		Port:       srv.Port,
		Username:   srv.Username,
		Credential: cred,
	})
}

// GetServers lists saved profiles.
func (e *Engine) GetServers(_ context.Context, _ struct{}) (*ServersResponse, error) {
	if err := e.requireProfiles(); err != nil {
		return nil, err
	}
	servers, err := e.store.ListServers()
	if err != nil {
		return nil, err
	}
	views := make([]ServerView, 0, len(servers))
	for _, s := range servers {
		views = append(views, viewOf(s))
	}
	return &ServersResponse{
		Response: Response{Message: fmt.Sprintf("%d server(s)", len(views))},
		Servers:  views,
	}, nil
}

// GetServer loads one saved profile.
func (e *Engine) GetServer(_ context.Context, req ServerRequest) (*ServerResponse, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.requireProfiles(); err != nil {
		return nil, err
	}
	srv, err := e.store.GetServer(req.ServerID)
	if err != nil {
		return nil, err
	}
	v := viewOf(*srv)
	return &ServerResponse{Response: Response{Message: srv.Name}, Server: &v}, nil
}

// SaveServer creates a profile, sealing its secret.
func (e *Engine) SaveServer(_ context.Context, req SaveServerRequest) (*SaveServerResponse, error) {
	if err := e.requireProfiles(); err != nil {
		return nil, err
	}
	ref, err := e.sealFor(req.KeyPath, req.Password, req.Passphrase)
	if err != nil {
		return nil, err
	}
	srv := &store.Server{
		ID:            req.ID,
		Name:          req.Name,
		Host:          req.Host,
		Port:          req.Port,
		Username:      req.Username,
		CredentialRef: ref,
		KeyPath:       req.KeyPath,
	}
	if err := e.store.CreateServer(srv); err != nil {
		return nil, err
	}
	return &SaveServerResponse{
		Response: Response{Message: fmt.Sprintf("Saved %s", srv.Name)},
		ID:       srv.ID,
	}, nil
}

// UpdateServer changes the fields set in req. Only the secret that matches
// the resulting auth method reseals the credential: the passphrase for key
// profiles, the password otherwise. Switching auth method without that
// secret clears the stored one rather than reusing it for the other role.
func (e *Engine) UpdateServer(_ context.Context, req UpdateServerRequest) (*Response, error) {
	if err := requireServer(req.ID); err != nil {
		return nil, err
	}
	if err := e.requireProfiles(); err != nil {
		return nil, err
	}
	srv, err := e.store.GetServer(req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		srv.Name = *req.Name
	}
	if req.Host != nil {
		srv.Host = *req.Host
	}
	if req.Port != nil {
		srv.Port = *req.Port
	}
	if req.Username != nil {
		srv.Username = *req.Username
	}

	wasKey := srv.KeyPath != ""
	if req.KeyPath != nil {
		srv.KeyPath = *req.KeyPath
	}
	isKey := srv.KeyPath != ""

	secret := req.Password
	if isKey {
		secret = req.Passphrase
	}
	switch {
	case secret != nil:
		ref, err := e.secrets.Seal(*secret)
		if err != nil {
			return nil, err
		}
		srv.CredentialRef = ref
	case wasKey != isKey:
		srv.CredentialRef = ""
	}

	if err := e.store.UpdateServer(srv); err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("Updated %s", srv.Name)}, nil
}

// DeleteServer removes a profile and closes its session if one is open.
func (e *Engine) DeleteServer(_ context.Context, req ServerRequest) (*Response, error) {
	if err := requireServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.requireProfiles(); err != nil {
		return nil, err
	}
	if err := e.store.DeleteServer(req.ServerID); err != nil {
		return nil, err
	}
	if err := e.reg.Disconnect(req.ServerID); err != nil {
		e.log.Warn("failed to close session of deleted server %s: %v", req.ServerID, err)
	}
	e.sampler.Forget(req.ServerID)
	return &Response{Message: fmt.Sprintf("Deleted server %s", req.ServerID)}, nil
}
