// Package files implements remote directory listing and file mutation over
// SFTP channels borrowed from a session.Registry.
package files

import (
	"fmt"
	"os"
	"path"
	"time"
)

// Kind is the type of a directory entry.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindSymlink   Kind = "symlink"
)

// Entry describes one file as reported by the remote filesystem. Entries are
// built fresh on every listing.
type Entry struct {
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	// Permissions is the symbolic form, e.g. "rwxr-xr-x".
	Permissions string `json:"permissions"`
	// Mode is the octal form, e.g. "0755".
	Mode string `json:"mode"`
	Path string `json:"path"`
}

func newEntry(name, p string, fi os.FileInfo) Entry {
	mode := fi.Mode()
	kind := KindFile
	switch {
	case mode&os.ModeSymlink != 0:
		kind = KindSymlink
	case mode.IsDir():
		kind = KindDirectory
	}
	return Entry{
		Name:        name,
		Kind:        kind,
		SizeBytes:   fi.Size(),
		ModifiedAt:  fi.ModTime().UTC(),
		Permissions: mode.Perm().String()[1:],
		Mode:        fmt.Sprintf("%04o", uint32(mode.Perm())),
		Path:        p,
	}
}

// Transfer summarizes a completed upload or download.
type Transfer struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Bytes       int64  `json:"bytes"`
	DurationMs  int64  `json:"duration_ms"`
}

// TransferError reports how far a transfer got before it failed. The partial
// destination is left in place. It is the Cause of a TRANSFER_INTERRUPTED
// error; retrieve it with errors.As.
type TransferError struct {
	Path             string
	BytesTransferred int64
	Err              error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %s stopped after %d bytes: %v", e.Path, e.BytesTransferred, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Status is the outcome of one path in a batch.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Outcome is a tagged per-path result. Kind is the machine error code when
// Status is StatusError.
type Outcome struct {
	Status Status `json:"status"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// PathResult pairs a requested path with its outcome.
type PathResult struct {
	Path string `json:"path"`
	Outcome
}

// BatchResult holds per-path outcomes in request order.
type BatchResult struct {
	Results []PathResult `json:"results"`
}

func (b *BatchResult) add(p string, o Outcome) {
	b.Results = append(b.Results, PathResult{Path: p, Outcome: o})
}

// Get returns the outcome for p.
func (b *BatchResult) Get(p string) (Outcome, bool) {
	for _, r := range b.Results {
		if r.Path == p {
			return r.Outcome, true
		}
	}
	return Outcome{}, false
}

// Succeeded counts ok paths.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == StatusOK {
			n++
		}
	}
	return n
}

// Failed counts failed paths.
func (b *BatchResult) Failed() int {
	return len(b.Results) - b.Succeeded()
}

// Summary is a one-line human description, e.g. "2 of 3 deleted, 1 failed".
func (b *BatchResult) Summary(verb string) string {
	if b.Failed() == 0 {
		return fmt.Sprintf("%d of %d %s", b.Succeeded(), len(b.Results), verb)
	}
	return fmt.Sprintf("%d of %d %s, %d failed", b.Succeeded(), len(b.Results), verb, b.Failed())
}

func cleanPath(p string) string {
	if p == "" {
		return "."
	}
	return path.Clean(p)
}
