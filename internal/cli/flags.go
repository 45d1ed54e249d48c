package cli

import "github.com/spf13/cobra"

// TargetFlags holds the credential flags shared by every command that
// connects to a server.
type TargetFlags struct {
	Identity    string
	AskPassword bool
}

// AddTargetFlags registers --identity and --ask-password on a command.
func AddTargetFlags(cmd *cobra.Command, flags *TargetFlags) {
	cmd.Flags().StringVarP(&flags.Identity, "identity", "i", "", "private key file for ad-hoc targets")
	cmd.Flags().BoolVar(&flags.AskPassword, "ask-password", false, "prompt for the password (or set "+PasswordEnv+")")
}

// targetFlags is shared by every target command; only one runs per process.
var targetFlags TargetFlags
