package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/pkg/sftp"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultConnectTimeout bounds TCP dial plus handshake when SSHDialer.Timeout is zero.
const DefaultConnectTimeout = 10 * time.Second

// Client wraps an SSH connection with additional metadata. It implements Transport.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

var _ Transport = (*Client)(nil)

// SSHDialer dials real SSH servers.
type SSHDialer struct {
	// Timeout bounds TCP dial plus handshake.
	Timeout time.Duration

	// StrictHostKeyChecking verifies host keys against KnownHostsPath.
	// When false, host key verification is skipped.
	StrictHostKeyChecking bool

	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath string

	// UseSSHConfig resolves HostName/Port/User/IdentityFile from ~/.ssh/config.
	UseSSHConfig bool

	// Logger receives dial diagnostics. Credentials are never passed to it.
	Logger logger.Logger
}

// NewSSHDialer returns a dialer with ssh_config resolution enabled.
func NewSSHDialer(timeout time.Duration) *SSHDialer {
	return &SSHDialer{
		Timeout:      timeout,
		UseSSHConfig: true,
		Logger:       logger.NewEnvLogger("[ssh]"),
	}
}

// Dial establishes an SSH connection to the target.
// The host can be:
//   - An SSH config alias (e.g., "myserver")
//   - A hostname (e.g., "192.168.1.100")
//   - A user@hostname (e.g., "user@192.168.1.100")
//
// Connection settings are resolved from ~/.ssh/config when enabled; explicit
// Port and Username on the target win.
func (d *SSHDialer) Dial(ctx context.Context, target Target) (Transport, error) {
	log := d.Logger
	if log == nil {
		log = logger.Noop()
	}

	settings := resolveSSHSettings(target.Host, d.UseSSHConfig)
	if target.Port > 0 {
		settings.port = strconv.Itoa(target.Port)
	}
	if target.Username != "" {
		settings.user = target.Username
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	config, err := d.buildSSHConfig(settings, target.Credential)
	if err != nil {
		var myErr *errors.Error
		if stderrors.As(err, &myErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuthFailed,
			fmt.Sprintf("Couldn't set up SSH auth for '%s'", target.Host),
			"Check the key path and passphrase, or that your agent has keys: ssh-add -l")
	}
	config.Timeout = timeout

	address := settings.address()
	log.Debug("dialing %s@%s (%s auth)", settings.user, address, target.Credential.Method())

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrHostUnreachable,
			fmt.Sprintf("Can't reach '%s' at %s", target.Host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own; bound it with a deadline and
	// tear the socket down if ctx ends first.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if !stop() {
		// ctx ended during the handshake and the socket is already closed.
		if err == nil {
			sshConn.Close()
		}
		return nil, errors.WrapWithCode(ctx.Err(), errors.ErrHostUnreachable,
			fmt.Sprintf("Connecting to '%s' was interrupted", target.Host), "")
	}
	if err != nil {
		conn.Close()
		return nil, classifyHandshakeError(err, target.Host, settings.encryptedKeys)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	return &Client{
		Client:  client,
		Host:    target.Host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// RemoteAddr returns the resolved host:port address.
func (c *Client) RemoteAddr() string {
	return c.Address
}

// OpenExec opens a session channel for one command. Opening waits for the
// server's reply, so the wait is bounded by ctx; a channel that arrives after
// ctx ends is closed.
func (c *Client) OpenExec(ctx context.Context) (ExecChannel, error) {
	session, err := openWithContext(ctx, c.Client.NewSession, (*ssh.Session).Close)
	if err != nil {
		return nil, err
	}
	return &execChannel{session: session}, nil
}

// OpenFiles starts the sftp subsystem on a new channel, bounded by ctx.
func (c *Client) OpenFiles(ctx context.Context) (FileChannel, error) {
	client, err := openWithContext(ctx, func() (*sftp.Client, error) {
		return sftp.NewClient(c.Client)
	}, (*sftp.Client).Close)
	if err != nil {
		return nil, err
	}
	return &sftpChannel{client: client}, nil
}

func openWithContext[C any](ctx context.Context, open func() (C, error), closeFn func(C) error) (C, error) {
	type result struct {
		ch  C
		err error
	}
	done := make(chan result, 1)
	go func() {
		ch, err := open()
		done <- result{ch, err}
	}()

	select {
	case res := <-done:
		return res.ch, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				_ = closeFn(res.ch)
			}
		}()
		var zero C
		return zero, fmt.Errorf("open channel: %w", ctx.Err())
	}
}

// Keepalive sends keepalive@openssh.com. This is a lightweight way to check
// connection liveness without the overhead of creating a new session.
// SendRequest can block forever on a half-open TCP connection, so the wait is
// bounded by ctx.
func (c *Client) Keepalive(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, _, err := c.Client.SendRequest("keepalive@openssh.com", true, nil)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("keepalive: %w", ctx.Err())
	}
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string // Keys that exist but are encrypted
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSSHSettings parses the host string and resolves settings from ~/.ssh/config.
func resolveSSHSettings(host string, useConfig bool) *sshSettings {
	settings := &sshSettings{
		port: "22",
		user: currentUser(),
	}

	if atIdx := strings.Index(host, "@"); atIdx != -1 {
		settings.user = host[:atIdx]
		host = host[atIdx+1:]
	}

	settings.hostname = host

	if !useConfig {
		return settings
	}

	// kevinburke/ssh_config doesn't support Match, so only the content before
	// the first Match block is parsed.
	content, _, err := preprocessSSHConfig(filepath.Join(homeDir(), ".ssh", "config"))
	if err != nil {
		return settings
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return settings
	}

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		settings.hostname = hostname
	}
	if port, _ := cfg.Get(host, "Port"); port != "" {
		settings.port = port
	}
	if user, _ := cfg.Get(host, "User"); user != "" {
		settings.user = user
	}
	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
		settings.identityFile = expandPath(identity)
	}

	return settings
}

// buildSSHConfig creates an SSH client config with authentication methods.
// An explicit password or key is used alone; otherwise the agent and default
// key files are tried, as the ssh command line client would.
func (d *SSHDialer) buildSSHConfig(settings *sshSettings, cred Credential) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	switch {
	case cred.Password() != "":
		password := cred.Password()
		authMethods = append(authMethods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}))

	case cred.KeyPath() != "":
		keyAuth, err := keyFileAuth(expandPath(cred.KeyPath()), cred.Passphrase())
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				return nil, errors.New(errors.ErrAuthFailed,
					encErr.Error(),
					"Supply the key passphrase")
			}
			return nil, errors.WrapWithCode(err, errors.ErrAuthFailed,
				fmt.Sprintf("Can't load private key %s", cred.KeyPath()),
				"Check the key path exists and is a valid private key")
		}
		authMethods = append(authMethods, keyAuth)

	default:
		tryKeyFile := func(keyPath string) {
			keyAuth, err := keyFileAuth(keyPath, "")
			if err != nil {
				var encErr *EncryptedKeyError
				if stderrors.As(err, &encErr) {
					settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
				}
				return
			}
			authMethods = append(authMethods, keyAuth)
		}

		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
		if settings.identityFile != "" {
			tryKeyFile(settings.identityFile)
		}
		for _, keyPath := range defaultKeyFiles() {
			if keyPath == settings.identityFile {
				continue
			}
			tryKeyFile(keyPath)
		}
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
		}
		return nil, errors.New(errors.ErrAuthFailed, msg,
			"Provide a password or key path, or load a key into the agent: ssh-add")
	}

	var hostKeyCallback ssh.HostKeyCallback
	if d.StrictHostKeyChecking {
		knownHostsPath := d.KnownHostsPath
		if knownHostsPath == "" {
			knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
		}
		var err error
		hostKeyCallback, err = createHostKeyCallback(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // host key checking explicitly disabled in config
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across multiple SSH connections.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
// This should be called when the application is shutting down.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase that wasn't given.
func keyFileAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || (isEncryptedPEM(key) && passphrase == "") {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// Helper functions

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the server was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		dir := filepath.Dir(knownHostsPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
