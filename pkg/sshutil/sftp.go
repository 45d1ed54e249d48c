package sshutil

import (
	"io"
	"os"

	"github.com/pkg/sftp"
)

// sftpChannel adapts *sftp.Client to FileChannel.
type sftpChannel struct {
	client *sftp.Client
}

func (s *sftpChannel) ReadDir(path string) ([]os.FileInfo, error) { return s.client.ReadDir(path) }
func (s *sftpChannel) Stat(path string) (os.FileInfo, error)      { return s.client.Stat(path) }
func (s *sftpChannel) Lstat(path string) (os.FileInfo, error)     { return s.client.Lstat(path) }
func (s *sftpChannel) Mkdir(path string) error                    { return s.client.Mkdir(path) }
func (s *sftpChannel) Remove(path string) error                   { return s.client.Remove(path) }
func (s *sftpChannel) RemoveDirectory(path string) error          { return s.client.RemoveDirectory(path) }
func (s *sftpChannel) Chmod(path string, mode os.FileMode) error  { return s.client.Chmod(path, mode) }
func (s *sftpChannel) Close() error                               { return s.client.Close() }

func (s *sftpChannel) Open(path string) (io.ReadCloser, error) {
	return s.client.Open(path)
}

func (s *sftpChannel) Create(path string) (io.WriteCloser, error) {
	return s.client.Create(path)
}

// Rename prefers the posix-rename@openssh.com extension, which replaces the
// target atomically like rename(2), and falls back to the plain request.
func (s *sftpChannel) Rename(oldPath, newPath string) error {
	if _, ok := s.client.HasExtension("posix-rename@openssh.com"); ok {
		return s.client.PosixRename(oldPath, newPath)
	}
	return s.client.Rename(oldPath, newPath)
}
