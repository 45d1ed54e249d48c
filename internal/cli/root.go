package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Global flags
var (
	cfgFile      string
	outputFormat string
	noColor      bool
	verbose      bool
)

// Loaded in PersistentPreRunE.
var (
	cfg     *config.Config
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "myssh",
	Short: "Manage many SSH servers from one place",
	Long: `myssh keeps authenticated SSH sessions to many servers and runs
commands, file operations, and health samples against them.

Targets are either a saved server (see 'myssh server add') or
[user@]host[:port]. Run 'myssh serve' to expose the same commands over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupOutput(); err != nil {
			return err
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./myssh.yaml or ~/.config/myssh/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "output format: text, json, or yaml")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// setupOutput applies --output, --no-color and --verbose.
func setupOutput() error {
	if err := parseOutputFormat(outputFormat); err != nil {
		return err
	}
	if noColor || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		ui.DisableColors()
	}
	if verbose {
		os.Setenv(logger.DebugEnv, "1")
	}
	return nil
}

// loadConfig reads and validates the config file, falling back to defaults.
func loadConfig() error {
	var err error
	cfg, cfgPath, err = config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	return config.Validate(cfg)
}

// Execute runs the root command and exits non-zero on failure. A remote
// command's own exit status is passed through.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	stderr := rootCmd.ErrOrStderr()
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	if isUnknownCommandError(err) && !machineMode() {
		fmt.Fprintln(stderr, err.Error())
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(stderr, "\nTo run %q on a server: myssh exec <target> %q\n", name, name)
		}
		fmt.Fprintln(stderr, "Run 'myssh --help' for usage.")
		return 1
	}

	if machineMode() {
		_ = writeFailure(rootCmd.OutOrStdout(), err)
		return 1
	}
	fmt.Fprint(stderr, errorText(err))
	return 1
}

// ExitError carries a remote command's non-zero exit status out of RunE.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// errorText renders err for humans. Structured errors already carry the
// ✗ prefix and suggestion.
func errorText(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Error()
	}
	return ui.Failure(err.Error()) + "\n"
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls foo out of `unknown command "foo" for "myssh"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
