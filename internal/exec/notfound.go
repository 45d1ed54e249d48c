package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/myssh/internal/errors"
)

// commandNotFoundPatterns are regex patterns to detect "command not found" errors
// from various shells. These require exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// dependencyNotFoundPatterns detect when a tool (like make) fails because
// a dependency command isn't available. These can have various exit codes.
var dependencyNotFoundPatterns = []*regexp.Regexp{
	// make: go: No such file or directory
	regexp.MustCompile(`(?i)make: (\S+): No such file or directory`),
	// npm: 'go' is not recognized as an internal or external command
	regexp.MustCompile(`(?i)'(\S+)' is not recognized`),
	// /bin/sh: go: not found (from scripts)
	regexp.MustCompile(`(?i)/bin/sh: (\S+): not found`),
	// env: go: No such file or directory (from #!/usr/bin/env go)
	regexp.MustCompile(`(?i)env: (\S+): No such file or directory`),
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	// Exit code 127 is the standard for command not found
	if exitCode != 127 {
		return "", false
	}

	// Try to extract the command name from stderr
	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}

	// Exit code is 127 but couldn't extract command name
	return "", true
}

// IsDependencyNotFound checks if a tool failed because a dependency command is missing.
// This catches cases like make failing because 'go' isn't installed.
// Returns the missing command name and whether it was detected.
func IsDependencyNotFound(stderr string) (string, bool) {
	for _, pattern := range dependencyNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", false
}

// MissingToolError returns an EXEC error naming the missing executable when
// the command's output shows it was not found, or nil otherwise.
func MissingToolError(cmd string, stderr string, exitCode int) error {
	// Direct command-not-found (exit 127)
	cmdName, notFound := IsCommandNotFound(stderr, exitCode)

	// A wrapper (env, make, sh) that couldn't find what it launches
	if !notFound {
		cmdName, notFound = IsDependencyNotFound(stderr)
	}
	if !notFound {
		return nil
	}

	if cmdName == "" {
		if parts := strings.Fields(cmd); len(parts) > 0 {
			cmdName = parts[0]
		} else {
			cmdName = "command"
		}
	}

	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' not found on remote", cmdName),
		fmt.Sprintf("Install '%s' on the remote host, or check it is on the PATH of non-interactive shells:\n  ssh your-host \"command -v %s\"", cmdName, cmdName))
}
