package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/store"
	"golang.org/x/term"
)

// PasswordEnv supplies a password for ad-hoc targets without prompting.
const PasswordEnv = "MYSSH_PASSWORD"

// adHocTarget is a parsed [user@]host[:port].
type adHocTarget struct {
	User string
	Host string
	Port int
}

// parseTarget parses [user@]host[:port]. IPv6 hosts need brackets when a
// port is given.
func parseTarget(s string) (adHocTarget, error) {
	var t adHocTarget
	if s == "" {
		return t, errors.New(errors.ErrInvalidArgument, "Target is empty",
			"Use a saved server name or [user@]host[:port].")
	}

	hostPort := s
	if i := strings.LastIndex(s, "@"); i >= 0 {
		t.User, hostPort = s[:i], s[i+1:]
	}

	t.Host = hostPort
	if strings.Count(hostPort, ":") == 1 || strings.HasPrefix(hostPort, "[") {
		h, p, err := net.SplitHostPort(hostPort)
		if err != nil {
			return t, errors.WrapWithCode(err, errors.ErrInvalidArgument,
				fmt.Sprintf("Can't parse target %q", s),
				"Use [user@]host[:port], e.g. admin@10.0.0.5:2222.")
		}
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return t, errors.New(errors.ErrInvalidArgument,
				fmt.Sprintf("Port %q in target %q isn't valid", p, s),
				"Ports are numbers from 1 to 65535.")
		}
		t.Host, t.Port = h, port
	}

	if t.Host == "" {
		return t, errors.New(errors.ErrInvalidArgument,
			fmt.Sprintf("Target %q has no host", s),
			"Use [user@]host[:port].")
	}
	return t, nil
}

// findProfile matches a saved server by id or name.
func findProfile(st *store.Store, ref string) (*store.Server, error) {
	servers, err := st.ListServers()
	if err != nil {
		return nil, err
	}
	for i := range servers {
		if servers[i].ID == ref || servers[i].Name == ref {
			return &servers[i], nil
		}
	}
	return nil, nil
}

// connectTarget opens a session for a saved server or an ad-hoc target and
// returns the server id the session is keyed by.
func connectTarget(ctx context.Context, a *app, ref string) (string, error) {
	srv, err := findProfile(a.store, ref)
	if err != nil {
		return "", err
	}
	if srv != nil {
		_, err := a.eng.ConnectProfile(ctx, engine.ServerRequest{ServerID: srv.ID})
		return srv.ID, err
	}

	t, err := parseTarget(ref)
	if err != nil {
		return "", err
	}
	req := engine.ConnectRequest{
		ServerID: ref,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		KeyPath:  config.ExpandTilde(targetFlags.Identity),
	}
	password, err := readPassword(targetFlags.AskPassword, fmt.Sprintf("%s's password: ", ref))
	if err != nil {
		return "", err
	}
	if req.KeyPath != "" {
		req.Passphrase = password
	} else {
		req.Password = password
	}

	_, err = a.eng.Connect(ctx, req)
	return ref, err
}

// readPassword returns $MYSSH_PASSWORD, or prompts on the terminal when ask
// is set. Empty means agent or default keys.
func readPassword(ask bool, prompt string) (string, error) {
	if p := os.Getenv(PasswordEnv); p != "" {
		return p, nil
	}
	if !ask {
		return "", nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New(errors.ErrInvalidArgument,
			"Can't prompt for a password: stdin is not a terminal",
			"Set "+PasswordEnv+" instead.")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrInvalidArgument, "Failed to read password", "")
	}
	return string(b), nil
}
