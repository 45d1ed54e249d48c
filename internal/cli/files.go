package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/files"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/spf13/cobra"
)

var lsAll bool

var lsCmd = &cobra.Command{
	Use:   "ls <target> [path]",
	Short: "List a remote directory",
	Long: `List a remote directory over SFTP. The path defaults to the login directory.

Examples:
  myssh ls db1 /var/log
  myssh ls db1 -a
  myssh ls db1 /etc -o json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := "."
		if len(args) == 2 {
			p = args[1]
		}
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			resp, err := a.eng.ListDirectory(ctx, engine.PathRequest{ServerID: id, Path: p})
			if err != nil {
				return err
			}
			resp.Success = true
			entries := resp.Files
			if !lsAll {
				entries = visibleEntries(entries)
			}
			return emit(cmd, resp, ui.RenderEntries(entries, time.Now()))
		})
	},
}

// visibleEntries drops "." and ".." and dotfiles, like ls without -a.
func visibleEntries(entries []files.Entry) []files.Entry {
	out := make([]files.Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.Name) > 0 && e.Name[0] == '.' {
			continue
		}
		out = append(out, e)
	}
	return out
}

var uploadCmd = &cobra.Command{
	Use:   "upload <target> <local-file> <remote-path>",
	Short: "Copy a local file to a server",
	Long: `Copy a local file to a server. When remote-path is an existing directory
the file keeps its name inside it.

Examples:
  myssh upload db1 ./backup.sql /srv/restore/
  myssh upload web2 app.tar.gz /tmp/app.tar.gz`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			resp, err := a.eng.Upload(ctx, engine.TransferRequest{ServerID: id, LocalPath: args[1], RemotePath: args[2]})
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, transferText(resp.Transfer))
		})
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <target> <remote-file> <local-path>",
	Short: "Copy a file from a server",
	Long: `Copy a remote file to the local machine. An interrupted download leaves the
partial file in place and reports how many bytes arrived.

Examples:
  myssh download db1 /var/log/syslog ./syslog`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			resp, err := a.eng.Download(ctx, engine.TransferRequest{ServerID: id, RemotePath: args[1], LocalPath: args[2]})
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, transferText(resp.Transfer))
		})
	},
}

func transferText(t *files.Transfer) string {
	elapsed := time.Duration(t.DurationMs) * time.Millisecond
	return ui.Success(fmt.Sprintf("%s → %s ", t.Source, t.Destination)) +
		ui.Muted(fmt.Sprintf("(%s in %s)", humanize.IBytes(uint64(t.Bytes)), elapsed.Round(time.Millisecond))) + "\n"
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <target> <path>",
	Short: "Create a remote directory",
	Long: `Create one remote directory. The parent must already exist.

Examples:
  myssh mkdir db1 /srv/backups`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			resp, err := a.eng.CreateDirectory(ctx, engine.PathRequest{ServerID: id, Path: args[1]})
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, ui.Success(resp.Message)+"\n")
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <target> <path...>",
	Short: "Delete remote files and directories",
	Long: `Delete remote paths. Directories are removed with their contents. Each path
is attempted independently; the exit status is 1 if any path failed.

Examples:
  myssh rm db1 /tmp/a.log /tmp/b.log
  myssh rm db1 /srv/old-release`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			resp, err := a.eng.DeleteFiles(ctx, engine.DeleteRequest{ServerID: id, Paths: args[1:]})
			if err != nil {
				return err
			}
			resp.Success = true
			return emitBatch(cmd, resp)
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <target> <old-path> <new-path>",
	Short: "Rename or move a remote path",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			resp, err := a.eng.RenameFile(ctx, engine.RenameRequest{ServerID: id, OldPath: args[1], NewPath: args[2]})
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, ui.Success(resp.Message)+"\n")
		})
	},
}

var chmodCmd = &cobra.Command{
	Use:   "chmod <target> <mode> <path...>",
	Short: "Change permissions of remote paths",
	Long: `Change permissions of one or more remote paths. The mode is octal (755,
0644) or symbolic (rwxr-xr-x).

Examples:
  myssh chmod db1 600 /home/admin/.pgpass
  myssh chmod web2 rwxr-xr-x /srv/app/bin/server /srv/app/bin/worker`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget(cmd, args[0], func(ctx context.Context, a *app, id string) error {
			req := engine.ChangeModeRequest{ServerID: id, Mode: args[1]}
			if len(args) == 3 {
				req.Path = args[2]
			} else {
				req.Paths = args[2:]
			}
			resp, err := a.eng.ChangeMode(ctx, req)
			if err != nil {
				return err
			}
			resp.Success = true
			if len(resp.Results) == 0 {
				return emit(cmd, resp, ui.Success(resp.Message)+"\n")
			}
			return emitBatch(cmd, resp)
		})
	},
}

// emitBatch prints per-path results and fails the process when any path
// failed.
func emitBatch(cmd *cobra.Command, resp *engine.BatchResponse) error {
	b := &files.BatchResult{Results: resp.Results}
	if err := emit(cmd, resp, ui.RenderBatch(b, resp.Message)); err != nil {
		return err
	}
	if b.Failed() > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}

func init() {
	lsCmd.Flags().BoolVarP(&lsAll, "all", "a", false, "include . .. and dotfiles")
	for _, c := range []*cobra.Command{lsCmd, uploadCmd, downloadCmd, mkdirCmd, rmCmd, mvCmd, chmodCmd} {
		AddTargetFlags(c, &targetFlags)
		rootCmd.AddCommand(c)
	}
}
