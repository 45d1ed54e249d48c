package config

import (
	"fmt"
	"net"

	"github.com/rileyhilliard/myssh/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but myssh only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade myssh to a newer release")
	}

	checks := []struct {
		section string
		err     error
	}{
		{"ssh", validateSSH(cfg.SSH)},
		{"reconnect", validateReconnect(cfg.Reconnect)},
		{"exec", validateExec(cfg.Exec)},
		{"files", validateFiles(cfg.Files)},
		{"monitor", validateMonitor(cfg.Monitor)},
		{"server", validateServer(cfg.Server)},
		{"log", validateLog(cfg.Log)},
	}
	for _, c := range checks {
		if c.err != nil {
			return errors.WrapWithCode(c.err, errors.ErrConfig, c.err.Error(),
				fmt.Sprintf("Check the '%s' section in your config.", c.section))
		}
	}
	return nil
}

func validateSSH(c SSHConfig) error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("ssh.connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.KeepaliveInterval < 0 {
		return fmt.Errorf("ssh.keepalive_interval can't be negative")
	}
	return nil
}

func validateReconnect(c ReconnectConfig) error {
	if c.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be positive, got %s", c.BaseDelay)
	}
	if c.Factor < 1 {
		return fmt.Errorf("reconnect.factor must be at least 1, got %g", c.Factor)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("reconnect.max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}

func validateExec(c ExecConfig) error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("exec.default_timeout must be positive, got %s", c.DefaultTimeout)
	}
	if c.MaxOutputBytes < 0 {
		return fmt.Errorf("exec.max_output_bytes can't be negative")
	}
	return nil
}

func validateFiles(c FilesConfig) error {
	if c.ChunkSize < 512 {
		return fmt.Errorf("files.chunk_size must be at least 512 bytes, got %d", c.ChunkSize)
	}
	return nil
}

func validateMonitor(c MonitorConfig) error {
	if c.SampleWindow < 0 {
		return fmt.Errorf("monitor.sample_window can't be negative")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("monitor.command_timeout must be positive, got %s", c.CommandTimeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("monitor.concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

func validateServer(c ServerConfig) error {
	if c.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("server.listen %q is not host:port", c.Listen)
	}
	return nil
}

func validateLog(c LogConfig) error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Level)
	}
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Format)
	}
	return nil
}
