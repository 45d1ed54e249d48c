package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// withTarget opens the engine, connects ref and runs fn against the
// session. Ctrl-C cancels fn's context.
func withTarget(cmd *cobra.Command, ref string, fn func(ctx context.Context, a *app, serverID string) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		id, err := connectTarget(ctx, a, ref)
		if err != nil {
			return err
		}
		return fn(ctx, a, id)
	})
}

// withApp opens the engine for commands that don't need a session.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// emit writes resp in machine mode, otherwise the human text.
func emit(cmd *cobra.Command, resp interface{}, text string) error {
	if machineMode() {
		return writeMachine(cmd.OutOrStdout(), resp)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}
