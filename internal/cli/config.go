package cli

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/myssh/internal/config"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/secrets"
	"github.com/rileyhilliard/myssh/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and edit the config file",
	// A broken config must not stop these commands from fixing it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupOutput()
	},
}

// configTarget is --config, or the global config path.
func configTarget() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	p := config.GlobalPath()
	if p == "" {
		return "", errors.New(errors.ErrConfig, "Can't determine your home directory",
			"Pass an explicit path with --config")
	}
	return p, nil
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Long: `Write the default configuration to --config, or to
~/.config/myssh/config.yaml.

Examples:
  myssh config init
  myssh config init --config ./myssh.yaml --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := configTarget()
		if err != nil {
			return err
		}
		if err := config.WriteDefault(p, configInitForce); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't write "+p,
				"Use --force to overwrite an existing file")
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Wrote "+p))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one config value",
	Long: `Set a dotted key in the config file, keeping its comments and layout.

Examples:
  myssh config set reconnect.max_attempts 5
  myssh config set server.listen 0.0.0.0:7420`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := configTarget()
		if err != nil {
			return err
		}
		before, err := os.ReadFile(p)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't read "+p,
				"Create the file first with: myssh config init")
		}
		if err := config.SetValue(p, args[0], args[1]); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't update "+p,
				"Create the file first with: myssh config init")
		}
		// Values that leave the file unusable are rolled back.
		c, err := config.Load(p)
		if err == nil {
			err = config.Validate(c)
		}
		if err != nil {
			_ = os.WriteFile(p, before, 0o644)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Set %s = %s in %s", args[0], args[1], p)))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and MYSSH_*
environment overrides are merged. The secret key is masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		shown := *cfg
		if shown.Secrets.Key != "" {
			shown.Secrets.Key = secrets.Mask(shown.Secrets.Key)
		}
		if cfgPath != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Muted("# "+cfgPath))
		}
		b, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configSetCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
