package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var statusCmd = &cobra.Command{
	Use:   "status [target...]",
	Short: "Check which servers accept a session",
	Long: `Connect to every target in parallel and report the resulting sessions.
With no targets, every saved server is checked. The exit status is 1 if any
target failed to connect.

Examples:
  myssh status
  myssh status db1 admin@10.0.0.7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			targets := args
			if len(targets) == 0 {
				servers, err := a.store.ListServers()
				if err != nil {
					return err
				}
				for _, s := range servers {
					targets = append(targets, s.ID)
				}
			}
			if len(targets) == 0 {
				return errors.New(errors.ErrInvalidArgument, "Nothing to check",
					"Pass targets or save servers with: myssh server add")
			}

			var (
				mu       sync.Mutex
				failures = map[string]error{}
			)
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(8)
			for _, t := range targets {
				g.Go(func() error {
					if _, err := connectTarget(gctx, a, t); err != nil {
						mu.Lock()
						failures[t] = err
						mu.Unlock()
					}
					return nil
				})
			}
			_ = g.Wait()

			resp, err := a.eng.ListSessions(ctx, struct{}{})
			if err != nil {
				return err
			}
			resp.Success = true

			out := statusResponse{SessionsResponse: resp}
			var sb strings.Builder
			sb.WriteString(ui.RenderSessions(resp.Sessions, time.Now()))
			for _, t := range targets {
				if err, ok := failures[t]; ok {
					info := engine.Failure(err).Error
					out.Failures = append(out.Failures, statusFailure{Target: t, Error: info})
					fmt.Fprintf(&sb, "%s %s\n", ui.Failure(t), ui.Muted(info.Kind+": "+info.Message))
				}
			}
			if err := emit(cmd, out, sb.String()); err != nil {
				return err
			}
			if len(failures) > 0 {
				return &ExitError{Code: 1}
			}
			return nil
		})
	},
}

func init() {
	AddTargetFlags(statusCmd, &targetFlags)
	rootCmd.AddCommand(statusCmd)
}

// statusResponse adds the targets that never got a session.
type statusResponse struct {
	*engine.SessionsResponse
	Failures []statusFailure `json:"failures,omitempty"`
}

type statusFailure struct {
	Target string            `json:"target"`
	Error  *engine.ErrorInfo `json:"error"`
}
