package cli

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
	"github.com/spf13/cobra"
)

// Outcomes of importing one alias.
const (
	importSaved  = "saved"
	importExists = "exists"
	importNoUser = "no user"
)

var sshConfigFile string

type importResult struct {
	Alias  string `json:"alias"`
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

type importResponse struct {
	engine.Response
	Results []importResult `json:"results"`
}

var serverImportCmd = &cobra.Command{
	Use:   "import [alias...]",
	Short: "Save hosts from ~/.ssh/config",
	Long: `Save Host aliases from an ssh_config file as servers, using their
HostName, User, Port and IdentityFile. Aliases without a User and names that
are already saved are skipped. With no arguments every alias is imported.

Imported servers authenticate with their key file or the SSH agent; add a
password later with: myssh server edit <name> --ask-password`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ExpandTilde(sshConfigFile)
		if path == "" {
			path = sshutil.DefaultSSHConfigPath()
		}
		aliases, err := sshutil.ReadHostAliases(path)
		if err != nil {
			return err
		}
		aliases = selectAliases(aliases, args)

		return withApp(cmd, func(ctx context.Context, a *app) error {
			resp := &importResponse{Results: []importResult{}}
			saved := 0
			for _, alias := range aliases {
				r, err := importAlias(ctx, a, alias)
				if err != nil {
					return err
				}
				if r.Status == importSaved {
					saved++
				}
				resp.Results = append(resp.Results, r)
			}
			resp.Success = true
			resp.Message = fmt.Sprintf("Imported %d of %d hosts from %s", saved, len(aliases), path)
			return emit(cmd, resp, importText(resp))
		})
	},
}

// selectAliases keeps the named aliases, or all of them when names is empty.
func selectAliases(aliases []sshutil.HostAlias, names []string) []sshutil.HostAlias {
	if len(names) == 0 {
		return aliases
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []sshutil.HostAlias
	for _, a := range aliases {
		if want[a.Alias] {
			out = append(out, a)
		}
	}
	return out
}

func importAlias(ctx context.Context, a *app, alias sshutil.HostAlias) (importResult, error) {
	r := importResult{Alias: alias.Alias}
	if alias.User == "" {
		r.Status = importNoUser
		return r, nil
	}
	existing, err := findProfile(a.store, alias.Alias)
	if err != nil {
		return r, err
	}
	if existing != nil {
		r.Status, r.ID = importExists, existing.ID
		return r, nil
	}

	t := alias.Target()
	saved, err := a.eng.SaveServer(ctx, engine.SaveServerRequest{
		Name:     alias.Alias,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.Username,
		KeyPath:  t.Credential.KeyPath(),
	})
	if err != nil {
		return r, err
	}
	r.Status, r.ID = importSaved, saved.ID
	return r, nil
}

func importText(resp *importResponse) string {
	if len(resp.Results) == 0 {
		return ui.Muted("No hosts to import") + "\n"
	}
	t := ui.NewTable("ALIAS", "RESULT")
	for _, r := range resp.Results {
		status := ui.Success(r.Status)
		if r.Status != importSaved {
			status = ui.Muted("skipped: " + r.Status)
		}
		t.AddRow(r.Alias, status)
	}
	return t.Render() + resp.Message + "\n"
}

func init() {
	serverImportCmd.Flags().StringVar(&sshConfigFile, "ssh-config", "", "ssh_config file to read (default ~/.ssh/config)")
	serverCmd.AddCommand(serverImportCmd)
}
