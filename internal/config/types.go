package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete myssh configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	SSH       SSHConfig       `yaml:"ssh" mapstructure:"ssh"`
	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`
	Exec      ExecConfig      `yaml:"exec" mapstructure:"exec"`
	Files     FilesConfig     `yaml:"files" mapstructure:"files"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Secrets   SecretsConfig   `yaml:"secrets" mapstructure:"secrets"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SSHConfig controls how transports are dialed and kept alive.
type SSHConfig struct {
	// ConnectTimeout bounds TCP dial plus handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// KeepaliveInterval is how often connected sessions are checked. Zero disables.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval" mapstructure:"keepalive_interval"`

	// StrictHostKeyChecking rejects hosts missing from known_hosts when true.
	StrictHostKeyChecking bool `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`

	// KnownHosts is the known_hosts file. Empty means ~/.ssh/known_hosts.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`

	// UseSSHConfig resolves host aliases through ~/.ssh/config.
	UseSSHConfig bool `yaml:"use_ssh_config" mapstructure:"use_ssh_config"`
}

// ReconnectConfig is the bounded exponential backoff used after transport loss.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	Factor      float64       `yaml:"factor" mapstructure:"factor"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ExecConfig controls remote command execution.
type ExecConfig struct {
	// DefaultTimeout applies when a request carries no timeout.
	DefaultTimeout time.Duration `yaml:"default_timeout" mapstructure:"default_timeout"`

	// MaxOutputBytes caps captured stdout and stderr each. Zero means unlimited.
	MaxOutputBytes int64 `yaml:"max_output_bytes" mapstructure:"max_output_bytes"`
}

// FilesConfig controls file transfers.
type FilesConfig struct {
	// ChunkSize is the transfer buffer size in bytes.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// MonitorConfig controls the monitor sampler.
type MonitorConfig struct {
	// SampleWindow is the gap between the two reads used for CPU and network rates.
	SampleWindow time.Duration `yaml:"sample_window" mapstructure:"sample_window"`

	// CommandTimeout bounds each diagnostic command.
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`

	// Concurrency caps the diagnostic commands in flight per sample.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig controls the HTTP command surface started by `myssh serve`.
type ServerConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// StoreConfig locates the server profile database.
type StoreConfig struct {
	// DataDir holds the database and the generated secret key.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// Database is the sqlite file name, relative to DataDir unless absolute.
	Database string `yaml:"database" mapstructure:"database"`
}

// SecretsConfig configures credential sealing.
type SecretsConfig struct {
	// Key is a base64 fernet key. Empty means generate one into DataDir.
	Key string `yaml:"key" mapstructure:"key"`
}

// LogConfig selects the log backend for long-running commands.
type LogConfig struct {
	// Level: "debug", "info", "warn", or "error".
	Level string `yaml:"level" mapstructure:"level"`

	// Format: "json" or "console".
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		SSH: SSHConfig{
			ConnectTimeout:        10 * time.Second,
			KeepaliveInterval:     30 * time.Second,
			StrictHostKeyChecking: false,
			UseSSHConfig:          true,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   500 * time.Millisecond,
			Factor:      2,
			MaxAttempts: 3,
		},
		Exec: ExecConfig{
			DefaultTimeout: 60 * time.Second,
			MaxOutputBytes: 8 << 20,
		},
		Files: FilesConfig{
			ChunkSize: 32 * 1024,
		},
		Monitor: MonitorConfig{
			SampleWindow:   500 * time.Millisecond,
			CommandTimeout: 10 * time.Second,
			Concurrency:    4,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:7420",
		},
		Store: StoreConfig{
			DataDir:  "~/.local/share/myssh",
			Database: "myssh.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
