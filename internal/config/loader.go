package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "myssh.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/myssh"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. MYSSH_SERVER_LISTEN.
	EnvPrefix = "MYSSH"
)

// Load reads config from the specified path. Environment overrides apply on top.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'myssh config init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. myssh.yaml in current directory
// 3. ~/.config/myssh/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if globalConfig := GlobalPath(); globalConfig != "" {
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// GlobalPath returns ~/.config/myssh/config.yaml, or "" when home is unknown.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault loads config from the found path, or returns defaults (with
// environment overrides) if no file exists.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}

	cfg.Store.DataDir = Expand(cfg.Store.DataDir)
	cfg.SSH.KnownHosts = Expand(cfg.SSH.KnownHosts)

	return cfg, nil
}

// setDefaults registers every key with viper. AutomaticEnv only feeds
// Unmarshal for keys viper already knows about.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("ssh.connect_timeout", d.SSH.ConnectTimeout)
	v.SetDefault("ssh.keepalive_interval", d.SSH.KeepaliveInterval)
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)
	v.SetDefault("ssh.known_hosts", d.SSH.KnownHosts)
	v.SetDefault("ssh.use_ssh_config", d.SSH.UseSSHConfig)
	v.SetDefault("reconnect.base_delay", d.Reconnect.BaseDelay)
	v.SetDefault("reconnect.factor", d.Reconnect.Factor)
	v.SetDefault("reconnect.max_attempts", d.Reconnect.MaxAttempts)
	v.SetDefault("exec.default_timeout", d.Exec.DefaultTimeout)
	v.SetDefault("exec.max_output_bytes", d.Exec.MaxOutputBytes)
	v.SetDefault("files.chunk_size", d.Files.ChunkSize)
	v.SetDefault("monitor.sample_window", d.Monitor.SampleWindow)
	v.SetDefault("monitor.command_timeout", d.Monitor.CommandTimeout)
	v.SetDefault("monitor.concurrency", d.Monitor.Concurrency)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("store.data_dir", d.Store.DataDir)
	v.SetDefault("store.database", d.Store.Database)
	v.SetDefault("secrets.key", d.Secrets.Key)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// DatabasePath resolves the sqlite file against the data dir.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Store.Database) {
		return c.Store.Database
	}
	return filepath.Join(c.Store.DataDir, c.Store.Database)
}
