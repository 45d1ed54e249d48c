package testing

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// CommandResponse defines the scripted result of one remote command.
type CommandResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Error is returned from Run instead of an exit code.
	Error error
	// Delay blocks Run (honoring ctx) before responding.
	Delay time.Duration
	// Drop kills the transport mid-command; Run returns Error when set, or a
	// connection-lost error.
	Drop bool
}

type commandRule struct {
	exact     string
	pattern   *regexp.Regexp
	responses []CommandResponse
	served    int
}

func (r *commandRule) matches(cmd string) bool {
	if r.pattern != nil {
		return r.pattern.MatchString(cmd)
	}
	return r.exact == cmd
}

// next returns the next queued response; the last one repeats.
func (r *commandRule) next() CommandResponse {
	i := r.served
	if i >= len(r.responses) {
		i = len(r.responses) - 1
	}
	r.served++
	return r.responses[i]
}

// MockDialer is an in-memory sshutil.Dialer. Hosts must be registered with
// AddHost before they can be dialed.
type MockDialer struct {
	mu    sync.Mutex
	hosts map[string]*MockHost
}

// NewMockDialer creates a dialer with no hosts.
func NewMockDialer() *MockDialer {
	return &MockDialer{hosts: make(map[string]*MockHost)}
}

// AddHost registers a reachable host accepting one username/password pair.
// An empty password accepts any credential.
func (d *MockDialer) AddHost(name, username, password string) *MockHost {
	h := &MockHost{
		Name:     name,
		Username: username,
		password: password,
		fs:       NewMockFS(),
	}
	d.mu.Lock()
	d.hosts[name] = h
	d.mu.Unlock()
	return h
}

// Host returns a registered host, or nil.
func (d *MockDialer) Host(name string) *MockHost {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hosts[name]
}

// Dial implements sshutil.Dialer.
func (d *MockDialer) Dial(ctx context.Context, target sshutil.Target) (sshutil.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrHostUnreachable,
			fmt.Sprintf("Connection to %s was interrupted", target.Host), "")
	}

	d.mu.Lock()
	h := d.hosts[target.Host]
	d.mu.Unlock()
	if h == nil {
		return nil, errors.New(errors.ErrHostUnreachable,
			fmt.Sprintf("Can't reach %s: no such host", target.Host),
			"Check the hostname is spelled correctly")
	}
	return h.dial(ctx, target)
}

// MockHost is one simulated remote machine.
type MockHost struct {
	Name     string
	Username string
	password string

	fs *MockFS

	mu             sync.Mutex
	down           bool
	dialDelay      time.Duration
	rules          []*commandRule
	commands       []string
	transports     []*MockTransport
	dials          int
	interruptAfter int64
	stallOpens     bool
}

// FS returns the host's filesystem.
func (h *MockHost) FS() *MockFS {
	return h.fs
}

// SetDown makes new dials fail with HOST_UNREACHABLE while down is true.
func (h *MockHost) SetDown(down bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.down = down
}

// SetDialDelay makes every dial block (honoring ctx) for d.
func (h *MockHost) SetDialDelay(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dialDelay = d
}

// StallChannelOpens makes OpenExec and OpenFiles hang, the way a server that
// never answers a channel-open request does. A stalled open returns when its
// ctx ends or the transport is closed.
func (h *MockHost) StallChannelOpens(stall bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stallOpens = stall
}

// DropConnections kills every live transport to this host.
func (h *MockHost) DropConnections() {
	h.mu.Lock()
	ts := append([]*MockTransport(nil), h.transports...)
	h.mu.Unlock()
	for _, t := range ts {
		t.Drop()
	}
}

// InterruptTransfersAfter makes file reads and writes fail after n bytes
// have moved through a single open file, dropping the transport. Zero
// disables the fault.
func (h *MockHost) InterruptTransfersAfter(n int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interruptAfter = n
}

// SetCommandResponse scripts the result for an exact command string.
// Multiple responses are served in order and the last one repeats.
func (h *MockHost) SetCommandResponse(cmd string, responses ...CommandResponse) {
	h.addRule(&commandRule{exact: cmd, responses: responses})
}

// SetCommandPattern scripts the result for commands matching a regex.
func (h *MockHost) SetCommandPattern(pattern string, responses ...CommandResponse) {
	h.addRule(&commandRule{pattern: regexp.MustCompile(pattern), responses: responses})
}

func (h *MockHost) addRule(r *commandRule) {
	if len(r.responses) == 0 {
		r.responses = []CommandResponse{{}}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	// Later rules take precedence over earlier ones.
	h.rules = append([]*commandRule{r}, h.rules...)
}

// Commands returns every command run on this host, in order.
func (h *MockHost) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.commands...)
}

// Dials returns the number of successful dials.
func (h *MockHost) Dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dials
}

// LiveTransports returns the number of transports neither dropped nor closed.
func (h *MockHost) LiveTransports() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, t := range h.transports {
		if t.alive() {
			n++
		}
	}
	return n
}

func (h *MockHost) dial(ctx context.Context, target sshutil.Target) (sshutil.Transport, error) {
	h.mu.Lock()
	delay := h.dialDelay
	h.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrHostUnreachable,
				fmt.Sprintf("Connection to %s was interrupted", h.Name), "")
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.down {
		return nil, errors.New(errors.ErrHostUnreachable,
			fmt.Sprintf("Can't reach %s: connection refused", h.Name),
			"Make sure the SSH server is running on the remote host")
	}
	if target.Username != "" && h.Username != "" && target.Username != h.Username {
		return nil, errors.New(errors.ErrAuthFailed,
			fmt.Sprintf("Authentication to %s@%s was rejected", target.Username, h.Name), "")
	}
	if h.password != "" && target.Credential.Password() != h.password {
		return nil, errors.New(errors.ErrAuthFailed,
			fmt.Sprintf("Authentication to %s@%s was rejected", target.Username, h.Name), "")
	}

	port := target.Port
	if port == 0 {
		port = 22
	}
	t := &MockTransport{host: h, addr: fmt.Sprintf("%s:%d", h.Name, port), done: make(chan struct{})}
	h.transports = append(h.transports, t)
	h.dials++
	return t, nil
}

func (h *MockHost) respond(cmd string) CommandResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
	for _, r := range h.rules {
		if r.matches(cmd) {
			return r.next()
		}
	}
	return defaultResponse(cmd)
}

// defaultResponse handles a few builtins so simple tests need no scripting.
func defaultResponse(cmd string) CommandResponse {
	switch {
	case cmd == "true":
		return CommandResponse{}
	case cmd == "false":
		return CommandResponse{ExitCode: 1}
	case strings.HasPrefix(cmd, "echo "):
		return CommandResponse{Stdout: strings.Trim(strings.TrimPrefix(cmd, "echo "), `'"`) + "\n"}
	case cmd == "uname -s":
		return CommandResponse{Stdout: "Linux\n"}
	}
	name := strings.Fields(cmd)
	if len(name) == 0 {
		return CommandResponse{}
	}
	return CommandResponse{
		Stderr:   fmt.Sprintf("sh: 1: %s: not found\n", name[0]),
		ExitCode: 127,
	}
}

// MockTransport implements sshutil.Transport against a MockHost.
type MockTransport struct {
	host   *MockHost
	addr   string
	lost   atomic.Bool
	closed atomic.Bool
	once   sync.Once
	done   chan struct{}

	execOpened  atomic.Int32
	filesOpened atomic.Int32
}

// Drop simulates a network failure. Every later call fails as connection loss.
func (t *MockTransport) Drop() {
	t.lost.Store(true)
}

// Closed reports whether Close was called.
func (t *MockTransport) Closed() bool {
	return t.closed.Load()
}

// ExecChannelsOpened returns how many exec channels were opened.
func (t *MockTransport) ExecChannelsOpened() int {
	return int(t.execOpened.Load())
}

// FileChannelsOpened returns how many file channels were opened.
func (t *MockTransport) FileChannelsOpened() int {
	return int(t.filesOpened.Load())
}

func (t *MockTransport) alive() bool {
	return !t.lost.Load() && !t.closed.Load()
}

func (t *MockTransport) check() error {
	if t.closed.Load() {
		return fmt.Errorf("mock transport closed: %w", io.EOF)
	}
	if t.lost.Load() {
		return sshutil.ErrConnectionLost
	}
	return nil
}

// waitOpen blocks while the host stalls channel opens.
func (t *MockTransport) waitOpen(ctx context.Context) error {
	t.host.mu.Lock()
	stall := t.host.stallOpens
	t.host.mu.Unlock()
	if !stall {
		return t.check()
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("open channel: %w", ctx.Err())
	case <-t.done:
		return t.check()
	}
}

// OpenExec implements sshutil.Transport.
func (t *MockTransport) OpenExec(ctx context.Context) (sshutil.ExecChannel, error) {
	if err := t.waitOpen(ctx); err != nil {
		return nil, err
	}
	t.execOpened.Add(1)
	return &mockExec{t: t}, nil
}

// OpenFiles implements sshutil.Transport.
func (t *MockTransport) OpenFiles(ctx context.Context) (sshutil.FileChannel, error) {
	if err := t.waitOpen(ctx); err != nil {
		return nil, err
	}
	t.filesOpened.Add(1)
	return &mockFiles{t: t, fs: t.host.fs}, nil
}

// Keepalive implements sshutil.Transport.
func (t *MockTransport) Keepalive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.check()
}

// RemoteAddr implements sshutil.Transport.
func (t *MockTransport) RemoteAddr() string {
	return t.addr
}

// Close implements sshutil.Transport.
func (t *MockTransport) Close() error {
	t.closed.Store(true)
	t.once.Do(func() { close(t.done) })
	return nil
}

type mockExec struct {
	t *MockTransport
}

func (e *mockExec) Run(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	if err := e.t.check(); err != nil {
		return -1, err
	}
	resp := e.t.host.respond(cmd)

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	if resp.Drop {
		e.t.Drop()
		if resp.Error != nil {
			return -1, resp.Error
		}
	}
	if err := e.t.check(); err != nil {
		return -1, err
	}
	if resp.Error != nil {
		return -1, resp.Error
	}
	if stdout != nil {
		_, _ = io.WriteString(stdout, resp.Stdout)
	}
	if stderr != nil {
		_, _ = io.WriteString(stderr, resp.Stderr)
	}
	return resp.ExitCode, nil
}

func (e *mockExec) Close() error { return nil }

type mockFiles struct {
	t  *MockTransport
	fs *MockFS
}

func (f *mockFiles) ReadDir(p string) ([]os.FileInfo, error) {
	if err := f.t.check(); err != nil {
		return nil, err
	}
	return f.fs.readDir(p)
}

func (f *mockFiles) Stat(p string) (os.FileInfo, error) {
	if err := f.t.check(); err != nil {
		return nil, err
	}
	return f.fs.stat("stat", p, true)
}

func (f *mockFiles) Lstat(p string) (os.FileInfo, error) {
	if err := f.t.check(); err != nil {
		return nil, err
	}
	return f.fs.stat("lstat", p, false)
}

func (f *mockFiles) Open(p string) (io.ReadCloser, error) {
	if err := f.t.check(); err != nil {
		return nil, err
	}
	data, err := f.fs.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return &mockReader{t: f.t, data: data, limit: f.interruptAfter()}, nil
}

func (f *mockFiles) Create(p string) (io.WriteCloser, error) {
	if err := f.t.check(); err != nil {
		return nil, err
	}
	if err := f.fs.openWrite(p); err != nil {
		return nil, err
	}
	return &mockWriter{t: f.t, fs: f.fs, path: p, limit: f.interruptAfter()}, nil
}

func (f *mockFiles) interruptAfter() int64 {
	f.t.host.mu.Lock()
	defer f.t.host.mu.Unlock()
	return f.t.host.interruptAfter
}

func (f *mockFiles) Mkdir(p string) error {
	if err := f.t.check(); err != nil {
		return err
	}
	return f.fs.Mkdir(p)
}

func (f *mockFiles) Remove(p string) error {
	if err := f.t.check(); err != nil {
		return err
	}
	return f.fs.removeFile(p)
}

func (f *mockFiles) RemoveDirectory(p string) error {
	if err := f.t.check(); err != nil {
		return err
	}
	return f.fs.removeDir(p)
}

func (f *mockFiles) Rename(oldPath, newPath string) error {
	if err := f.t.check(); err != nil {
		return err
	}
	return f.fs.rename(oldPath, newPath)
}

func (f *mockFiles) Chmod(p string, mode os.FileMode) error {
	if err := f.t.check(); err != nil {
		return err
	}
	return f.fs.chmod(p, mode)
}

func (f *mockFiles) Close() error { return nil }

// mockReader serves file content, failing with connection loss once limit
// bytes have been read (when limit > 0).
type mockReader struct {
	t     *MockTransport
	data  []byte
	off   int64
	limit int64
}

func (r *mockReader) Read(p []byte) (int, error) {
	if err := r.t.check(); err != nil {
		return 0, err
	}
	if r.limit > 0 && r.off >= r.limit {
		r.t.Drop()
		return 0, sshutil.ErrConnectionLost
	}
	if r.off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	end := int64(len(r.data))
	if r.limit > 0 && end > r.limit {
		end = r.limit
	}
	n := copy(p, r.data[r.off:end])
	r.off += int64(n)
	return n, nil
}

func (r *mockReader) Close() error { return nil }

// mockWriter appends to a MockFS file, failing once limit bytes were written.
type mockWriter struct {
	t       *MockTransport
	fs      *MockFS
	path    string
	written int64
	limit   int64
}

func (w *mockWriter) Write(p []byte) (int, error) {
	if err := w.t.check(); err != nil {
		return 0, err
	}
	if w.limit > 0 && w.written+int64(len(p)) > w.limit {
		n := w.limit - w.written
		w.fs.appendData(w.path, p[:n])
		w.written += n
		w.t.Drop()
		return int(n), sshutil.ErrConnectionLost
	}
	w.fs.appendData(w.path, p)
	w.written += int64(len(p))
	return len(p), nil
}

func (w *mockWriter) Close() error {
	return w.t.check()
}

var (
	_ sshutil.Dialer      = (*MockDialer)(nil)
	_ sshutil.Transport   = (*MockTransport)(nil)
	_ sshutil.ExecChannel = (*mockExec)(nil)
	_ sshutil.FileChannel = (*mockFiles)(nil)
)
