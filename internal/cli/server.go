package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/spf13/cobra"
)

var serverFlags struct {
	Name        string
	Host        string
	Port        int
	User        string
	Identity    string
	AskPassword bool
}

var serverCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"servers"},
	Short:   "Manage saved servers",
	Long: `Saved servers keep host, port, user and an encrypted password or key
passphrase in the local database. Commands accept a saved server's name or id
wherever they take a target.`,
}

var serverListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved servers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			resp, err := a.eng.GetServers(ctx, struct{}{})
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, serversText(resp.Servers))
		})
	},
}

func serversText(servers []engine.ServerView) string {
	if len(servers) == 0 {
		return ui.Muted("No saved servers. Add one with: myssh server add <name> [user@]host[:port]") + "\n"
	}
	t := ui.NewTable("NAME", "TARGET", "AUTH", "ID")
	for _, s := range servers {
		t.AddRow(s.Name, fmt.Sprintf("%s@%s:%d", s.Username, s.Host, s.Port), authLabel(s), ui.Muted(s.ID))
	}
	return t.Render()
}

func authLabel(s engine.ServerView) string {
	switch {
	case s.KeyPath != "" && s.HasPassword:
		return "key+passphrase"
	case s.KeyPath != "":
		return "key"
	case s.HasPassword:
		return "password"
	default:
		return "agent"
	}
}

var serverAddCmd = &cobra.Command{
	Use:   "add <name> <[user@]host[:port]>",
	Short: "Save a server",
	Long: `Save a server under a name. The password (or key passphrase with
--identity) is read from ` + PasswordEnv + ` or prompted for with --ask-password,
and stored encrypted.

Examples:
  myssh server add db1 admin@10.0.0.5 --ask-password
  myssh server add web2 deploy@web2.internal:2222 -i ~/.ssh/deploy_ed25519`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[1])
		if err != nil {
			return err
		}
		if t.User == "" {
			return errors.New(errors.ErrInvalidArgument,
				"A saved server needs a user",
				"Use user@host, e.g. myssh server add "+args[0]+" admin@"+t.Host)
		}

		secret, err := readPassword(serverFlags.AskPassword, fmt.Sprintf("%s's password: ", args[1]))
		if err != nil {
			return err
		}
		req := engine.SaveServerRequest{
			Name:     args[0],
			Host:     t.Host,
			Port:     t.Port,
			Username: t.User,
			KeyPath:  config.ExpandTilde(serverFlags.Identity),
		}
		if req.KeyPath != "" {
			req.Passphrase = secret
		} else {
			req.Password = secret
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if existing, err := findProfile(a.store, req.Name); err != nil {
				return err
			} else if existing != nil {
				return errors.New(errors.ErrAlreadyExists,
					fmt.Sprintf("A server named %q already exists", req.Name),
					"Pick another name or change it with: myssh server edit "+req.Name)
			}
			resp, err := a.eng.SaveServer(ctx, req)
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, ui.Success(resp.Message)+" "+ui.Muted(resp.ID)+"\n")
		})
	},
}

var serverShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Show a saved server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			id, err := profileID(a, args[0])
			if err != nil {
				return err
			}
			resp, err := a.eng.GetServer(ctx, engine.ServerRequest{ServerID: id})
			if err != nil {
				return err
			}
			resp.Success = true

			s := resp.Server
			var sb strings.Builder
			row := func(k, v string) { fmt.Fprintf(&sb, "%-10s %s\n", ui.Muted(k), v) }
			row("name", s.Name)
			row("id", s.ID)
			row("host", s.Host)
			row("port", strconv.Itoa(s.Port))
			row("user", s.Username)
			row("auth", authLabel(*s))
			if s.KeyPath != "" {
				row("key", s.KeyPath)
			}
			row("created", humanize.Time(s.CreatedAt))
			row("updated", humanize.Time(s.UpdatedAt))
			return emit(cmd, resp, sb.String())
		})
	},
}

var serverEditCmd = &cobra.Command{
	Use:   "edit <name|id>",
	Short: "Change a saved server",
	Long: `Change only the fields given as flags.

Examples:
  myssh server edit db1 --host 10.0.0.9
  myssh server edit db1 --ask-password`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		req := engine.UpdateServerRequest{}
		if f.Changed("name") {
			req.Name = &serverFlags.Name
		}
		if f.Changed("host") {
			req.Host = &serverFlags.Host
		}
		if f.Changed("port") {
			req.Port = &serverFlags.Port
		}
		if f.Changed("user") {
			req.Username = &serverFlags.User
		}
		if f.Changed("identity") {
			key := config.ExpandTilde(serverFlags.Identity)
			req.KeyPath = &key
		}
		if serverFlags.AskPassword {
			secret, err := readPassword(true, fmt.Sprintf("%s's new password: ", args[0]))
			if err != nil {
				return err
			}
			req.Password = &secret
			req.Passphrase = &secret
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			id, err := profileID(a, args[0])
			if err != nil {
				return err
			}
			req.ID = id
			resp, err := a.eng.UpdateServer(ctx, req)
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, ui.Success(resp.Message)+"\n")
		})
	},
}

var serverRmCmd = &cobra.Command{
	Use:     "rm <name|id>",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete a saved server",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			id, err := profileID(a, args[0])
			if err != nil {
				return err
			}
			resp, err := a.eng.DeleteServer(ctx, engine.ServerRequest{ServerID: id})
			if err != nil {
				return err
			}
			resp.Success = true
			return emit(cmd, resp, ui.Success(fmt.Sprintf("Deleted %s", args[0]))+"\n")
		})
	},
}

// profileID resolves a saved server's name or id.
func profileID(a *app, ref string) (string, error) {
	srv, err := findProfile(a.store, ref)
	if err != nil {
		return "", err
	}
	if srv == nil {
		return "", errors.New(errors.ErrPathNotFound,
			fmt.Sprintf("No saved server named %q", ref),
			"List saved servers with: myssh server list")
	}
	return srv.ID, nil
}

func init() {
	serverAddCmd.Flags().StringVarP(&serverFlags.Identity, "identity", "i", "", "private key file")
	serverAddCmd.Flags().BoolVar(&serverFlags.AskPassword, "ask-password", false, "prompt for the password or key passphrase")

	serverEditCmd.Flags().StringVar(&serverFlags.Name, "name", "", "new name")
	serverEditCmd.Flags().StringVar(&serverFlags.Host, "host", "", "new host")
	serverEditCmd.Flags().IntVar(&serverFlags.Port, "port", 22, "new port")
	serverEditCmd.Flags().StringVar(&serverFlags.User, "user", "", "new user")
	serverEditCmd.Flags().StringVarP(&serverFlags.Identity, "identity", "i", "", "new private key file")
	serverEditCmd.Flags().BoolVar(&serverFlags.AskPassword, "ask-password", false, "prompt for a new password or key passphrase")

	serverCmd.AddCommand(serverListCmd, serverAddCmd, serverShowCmd, serverEditCmd, serverRmCmd)
	rootCmd.AddCommand(serverCmd)
}
