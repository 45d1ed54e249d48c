// Package testing provides SSH mock utilities for testing.
// It simulates remote hosts with an in-memory filesystem, scripted command
// responses and switchable network failures.
package testing

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// mockNode is one filesystem entry.
type mockNode struct {
	dir     bool
	link    string // symlink target; empty for files and dirs
	data    []byte
	mode    os.FileMode
	modTime time.Time
}

// MockFS simulates an in-memory remote filesystem with POSIX-ish semantics:
// parents must exist, directories must be empty to be removed, and paths
// can be marked as permission-denied.
type MockFS struct {
	mu     sync.RWMutex
	nodes  map[string]*mockNode
	denied map[string]bool
	now    func() time.Time
}

// NewMockFS creates a filesystem containing only "/".
func NewMockFS() *MockFS {
	fs := &MockFS{
		nodes:  make(map[string]*mockNode),
		denied: make(map[string]bool),
		now:    time.Now,
	}
	fs.nodes["/"] = &mockNode{dir: true, mode: os.ModeDir | 0o755, modTime: fs.now()}
	return fs
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func pathErr(op, p string, err error) error {
	return &fs.PathError{Op: op, Path: p, Err: err}
}

// Deny makes every operation on p (and below it) fail with fs.ErrPermission.
func (m *MockFS) Deny(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[clean(p)] = true
}

func (m *MockFS) isDenied(p string) bool {
	for cur := p; ; cur = path.Dir(cur) {
		if m.denied[cur] {
			return true
		}
		if cur == "/" {
			return false
		}
	}
}

// MkdirAll creates a directory and all parent directories.
func (m *MockFS) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	var parts []string
	for cur := p; cur != "/"; cur = path.Dir(cur) {
		parts = append([]string{cur}, parts...)
	}
	for _, cur := range parts {
		if n, ok := m.nodes[cur]; ok {
			if !n.dir {
				return pathErr("mkdir", cur, fs.ErrExist)
			}
			continue
		}
		m.nodes[cur] = &mockNode{dir: true, mode: os.ModeDir | 0o755, modTime: m.now()}
	}
	return nil
}

// Mkdir creates one directory. The parent must exist.
func (m *MockFS) Mkdir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if m.isDenied(p) {
		return pathErr("mkdir", p, fs.ErrPermission)
	}
	if _, ok := m.nodes[p]; ok {
		return pathErr("mkdir", p, fs.ErrExist)
	}
	parent, ok := m.nodes[path.Dir(p)]
	if !ok || !parent.dir {
		return pathErr("mkdir", p, fs.ErrNotExist)
	}
	m.nodes[p] = &mockNode{dir: true, mode: os.ModeDir | 0o755, modTime: m.now()}
	return nil
}

// WriteFile writes content to a file, creating parent directories as needed.
func (m *MockFS) WriteFile(p string, content []byte) error {
	p = clean(p)
	if err := m.MkdirAll(path.Dir(p)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[p] = &mockNode{data: append([]byte(nil), content...), mode: 0o644, modTime: m.now()}
	return nil
}

// Symlink creates a symlink at p pointing to target.
func (m *MockFS) Symlink(target, p string) error {
	p = clean(p)
	if err := m.MkdirAll(path.Dir(p)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[p] = &mockNode{link: target, mode: os.ModeSymlink | 0o777, modTime: m.now()}
	return nil
}

// ReadFile reads the content of a file.
func (m *MockFS) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = clean(p)
	if m.isDenied(p) {
		return nil, pathErr("open", p, fs.ErrPermission)
	}
	n, ok := m.nodes[p]
	if !ok || n.dir {
		return nil, pathErr("open", p, fs.ErrNotExist)
	}
	return append([]byte(nil), n.data...), nil
}

// Remove removes a file or directory and all its contents, like `rm -rf`.
// Used by tests to set up state; the FileChannel enforces stricter rules.
func (m *MockFS) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	delete(m.nodes, p)
	prefix := p + "/"
	for k := range m.nodes {
		if strings.HasPrefix(k, prefix) {
			delete(m.nodes, k)
		}
	}
	return nil
}

// Exists returns true if the path exists.
func (m *MockFS) Exists(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[clean(p)]
	return ok
}

// IsDir returns true if the path exists and is a directory.
func (m *MockFS) IsDir(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[clean(p)]
	return ok && n.dir
}

// IsFile returns true if the path exists and is a regular file.
func (m *MockFS) IsFile(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[clean(p)]
	return ok && !n.dir && n.link == ""
}

// Mode returns the permission bits of p, or 0 if it doesn't exist.
func (m *MockFS) Mode(p string) os.FileMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.nodes[clean(p)]; ok {
		return n.mode.Perm()
	}
	return 0
}

// SetModTime overrides the modification time of p.
func (m *MockFS) SetModTime(p string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[clean(p)]; ok {
		n.modTime = t
	}
}

// The methods below back the mock FileChannel.

func (m *MockFS) stat(op, p string, follow bool) (os.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = clean(p)
	if m.isDenied(p) {
		return nil, pathErr(op, p, fs.ErrPermission)
	}
	n, ok := m.nodes[p]
	if !ok {
		return nil, pathErr(op, p, fs.ErrNotExist)
	}
	if follow && n.link != "" {
		target := n.link
		if !strings.HasPrefix(target, "/") {
			target = path.Join(path.Dir(p), target)
		}
		t, ok := m.nodes[clean(target)]
		if !ok {
			return nil, pathErr(op, p, fs.ErrNotExist)
		}
		return newFileInfo(path.Base(p), t), nil
	}
	return newFileInfo(path.Base(p), n), nil
}

func (m *MockFS) readDir(p string) ([]os.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = clean(p)
	if m.isDenied(p) {
		return nil, pathErr("readdir", p, fs.ErrPermission)
	}
	n, ok := m.nodes[p]
	if !ok {
		return nil, pathErr("readdir", p, fs.ErrNotExist)
	}
	if !n.dir {
		return nil, pathErr("readdir", p, fs.ErrInvalid)
	}

	var names []string
	for k := range m.nodes {
		if k != "/" && path.Dir(k) == p {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	infos := make([]os.FileInfo, 0, len(names))
	for _, k := range names {
		infos = append(infos, newFileInfo(path.Base(k), m.nodes[k]))
	}
	return infos, nil
}

func (m *MockFS) removeFile(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if m.isDenied(p) {
		return pathErr("remove", p, fs.ErrPermission)
	}
	n, ok := m.nodes[p]
	if !ok {
		return pathErr("remove", p, fs.ErrNotExist)
	}
	if n.dir {
		return pathErr("remove", p, fs.ErrInvalid)
	}
	delete(m.nodes, p)
	return nil
}

func (m *MockFS) removeDir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if m.isDenied(p) {
		return pathErr("rmdir", p, fs.ErrPermission)
	}
	n, ok := m.nodes[p]
	if !ok {
		return pathErr("rmdir", p, fs.ErrNotExist)
	}
	if !n.dir {
		return pathErr("rmdir", p, fs.ErrInvalid)
	}
	prefix := p + "/"
	for k := range m.nodes {
		if strings.HasPrefix(k, prefix) {
			return pathErr("rmdir", p, fs.ErrExist)
		}
	}
	delete(m.nodes, p)
	return nil
}

func (m *MockFS) rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPath, newPath = clean(oldPath), clean(newPath)
	if m.isDenied(oldPath) || m.isDenied(newPath) {
		return pathErr("rename", oldPath, fs.ErrPermission)
	}
	n, ok := m.nodes[oldPath]
	if !ok {
		return pathErr("rename", oldPath, fs.ErrNotExist)
	}
	if parent, ok := m.nodes[path.Dir(newPath)]; !ok || !parent.dir {
		return pathErr("rename", newPath, fs.ErrNotExist)
	}

	delete(m.nodes, oldPath)
	m.nodes[newPath] = n
	prefix := oldPath + "/"
	for k, child := range m.nodes {
		if strings.HasPrefix(k, prefix) {
			delete(m.nodes, k)
			m.nodes[newPath+"/"+strings.TrimPrefix(k, prefix)] = child
		}
	}
	return nil
}

func (m *MockFS) chmod(p string, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if m.isDenied(p) {
		return pathErr("chmod", p, fs.ErrPermission)
	}
	n, ok := m.nodes[p]
	if !ok {
		return pathErr("chmod", p, fs.ErrNotExist)
	}
	n.mode = n.mode.Type() | mode.Perm()
	return nil
}

// openWrite validates that p can be created and truncates it.
func (m *MockFS) openWrite(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if m.isDenied(p) {
		return pathErr("create", p, fs.ErrPermission)
	}
	parent, ok := m.nodes[path.Dir(p)]
	if !ok || !parent.dir {
		return pathErr("create", p, fs.ErrNotExist)
	}
	if n, ok := m.nodes[p]; ok && n.dir {
		return pathErr("create", p, fs.ErrInvalid)
	}
	mode := os.FileMode(0o644)
	if n, ok := m.nodes[p]; ok {
		mode = n.mode
	}
	m.nodes[p] = &mockNode{mode: mode, modTime: m.now()}
	return nil
}

func (m *MockFS) appendData(p string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[clean(p)]; ok {
		n.data = append(n.data, b...)
		n.modTime = m.now()
	}
}

// fileInfo implements os.FileInfo for mock nodes.
type fileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func newFileInfo(name string, n *mockNode) *fileInfo {
	size := int64(len(n.data))
	if n.link != "" {
		size = int64(len(n.link))
	}
	if n.dir {
		size = 4096
	}
	return &fileInfo{name: name, size: size, mode: n.mode, modTime: n.modTime}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() interface{}   { return nil }
