package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandTilde resolves a leading ~ or ~/ against the local home directory.
// ~user is left alone.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// Expand substitutes ${HOME} and ${USER}, then resolves a leading tilde.
// Config paths (store.data_dir, ssh.known_hosts) go through it.
func Expand(s string) string {
	if strings.Contains(s, "${") {
		s = strings.NewReplacer("${HOME}", homeOr("~"), "${USER}", currentUser()).Replace(s)
	}
	return ExpandTilde(s)
}

func homeOr(fallback string) string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return fallback
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "user"
}
