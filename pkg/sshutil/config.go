package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostAlias is one concrete Host entry from an ssh_config file, with its
// HostName, User, Port and IdentityFile resolved.
type HostAlias struct {
	Alias        string
	Hostname     string
	User         string
	Port         int
	IdentityFile string
}

// DefaultSSHConfigPath is ~/.ssh/config.
func DefaultSSHConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// ReadHostAliases lists the concrete aliases in an ssh_config file, sorted by
// name. Wildcard patterns are skipped. A missing file yields
// no aliases.
func ReadHostAliases(path string) ([]HostAlias, error) {
	content, _, err := preprocessSSHConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var aliases []HostAlias
	seen := make(map[string]bool)
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			name := pattern.String()
			if strings.ContainsAny(name, "*?!") || seen[name] {
				continue
			}
			seen[name] = true
			aliases = append(aliases, resolveAlias(cfg, name))
		}
	}

	sort.Slice(aliases, func(i, j int) bool { return aliases[i].Alias < aliases[j].Alias })
	return aliases, nil
}

func resolveAlias(cfg *ssh_config.Config, name string) HostAlias {
	get := func(key string) string {
		v, _ := cfg.Get(name, key)
		return v
	}

	a := HostAlias{Alias: name, Hostname: get("HostName"), User: get("User")}
	if a.Hostname == "" {
		a.Hostname = name
	}
	if p, err := strconv.Atoi(get("Port")); err == nil {
		a.Port = p
	}
	if id := get("IdentityFile"); id != "" {
		a.IdentityFile = expandPath(id)
	}
	return a
}

// Target converts the alias into a dial target using the resolved hostname.
func (a HostAlias) Target() Target {
	t := Target{Host: a.Hostname, Port: a.Port, Username: a.User}
	if a.IdentityFile != "" {
		t.Credential = KeyCredential(a.IdentityFile, "")
	}
	return t
}
