package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// historyWidth is how many CPU samples the watch sparkline keeps.
const historyWidth = 30

var (
	monitorWatch    bool
	monitorInterval time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <target>",
	Short: "Sample CPU, memory, disk and network of a server",
	Long: `Take one health sample of a server. Sources the host can't provide (a missing
tool, an unsupported platform) are listed instead of failing the sample.

With --watch, sample every --interval until interrupted (q quits) and show CPU
history. Piped or -o json/yaml output streams one document per sample.

Examples:
  myssh monitor db1
  myssh monitor db1 --watch --interval 5s
  myssh monitor db1 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if monitorWatch && monitorInterval <= 0 {
			return errors.New(errors.ErrInvalidArgument,
				"--interval must be positive", "Try --interval 2s")
		}
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			if !monitorWatch {
				resp, err := sample(ctx, a, id)
				if err != nil {
					return err
				}
				return emit(cmd, resp, ui.RenderSnapshot(resp.Snapshot))
			}
			return watch(ctx, cmd, a, id)
		})
	},
}

func sample(ctx context.Context, a *app, id string) (*engine.MonitorResponse, error) {
	resp, err := a.eng.SystemMonitor(ctx, engine.ServerRequest{ServerID: id})
	if err != nil {
		return nil, err
	}
	resp.Success = true
	return resp, nil
}

// watch samples until ctx ends. On a terminal the text view is a Bubble Tea
// program; machine mode and piped output stream one document per sample.
func watch(ctx context.Context, cmd *cobra.Command, a *app, id string) error {
	sampler := func(ctx context.Context) (*engine.MonitorResponse, error) {
		return sample(ctx, a, id)
	}
	if machineMode() || !term.IsTerminal(int(os.Stdout.Fd())) {
		return streamSamples(ctx, cmd.OutOrStdout(), sampler, monitorInterval)
	}

	p := tea.NewProgram(newWatchModel(ctx, sampler, monitorInterval),
		tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if m, ok := final.(watchModel); ok && m.fatal != nil {
		return m.fatal
	}
	return nil
}

// streamSamples writes one document per sample until ctx ends.
func streamSamples(ctx context.Context, w io.Writer, sampler sampleFunc, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := sampler(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if machineMode() {
			err = writeMachine(w, resp)
		} else {
			_, err = fmt.Fprintln(w, ui.RenderSnapshot(resp.Snapshot))
		}
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func init() {
	monitorCmd.Flags().BoolVarP(&monitorWatch, "watch", "w", false, "keep sampling until interrupted")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 2*time.Second, "time between samples with --watch")
	AddTargetFlags(monitorCmd, &targetFlags)
	rootCmd.AddCommand(monitorCmd)
}
