package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/spf13/cobra"
)

var execTimeout time.Duration

var execCmd = &cobra.Command{
	Use:   "exec <target> <command...>",
	Short: "Run a command on a server",
	Long: `Run a shell command on a server and print its output.

stdout goes to stdout and stderr to stderr. The command's exit status becomes
myssh's exit status.

Examples:
  myssh exec db1 uptime
  myssh exec admin@10.0.0.5:2222 "df -h /"
  myssh exec web2 --timeout 5m ./deploy.sh`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execCommand(cmd, args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "command timeout (default from exec.default_timeout)")
	AddTargetFlags(execCmd, &targetFlags)
	// Everything after the target belongs to the remote command.
	execCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(execCmd)
}

func execCommand(cmd *cobra.Command, target, command string) error {
	if strings.TrimSpace(command) == "" {
		return errors.New(errors.ErrInvalidArgument,
			"What should I run?",
			"Usage: myssh exec <target> <command>  (e.g., myssh exec db1 \"ls -la\")")
	}

	return withTarget(cmd, target, func(ctx context.Context, a *app, id string) error {
		resp, err := a.eng.Execute(ctx, engine.ExecuteRequest{
			ServerID:  id,
			Command:   command,
			TimeoutMs: execTimeout.Milliseconds(),
		})
		if err != nil {
			return err
		}
		resp.Success = true

		if machineMode() {
			if err := writeMachine(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), resp.Output)
			fmt.Fprint(cmd.ErrOrStderr(), resp.Stderr)
			if resp.Truncated {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.Muted("(output truncated)"))
			}
		}

		if resp.ExitCode != 0 {
			return &ExitError{Code: resp.ExitCode}
		}
		return nil
	})
}
