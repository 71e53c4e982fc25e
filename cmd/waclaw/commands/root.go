// Package commands implements the waclaw CLI's cobra command tree.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "waclaw",
		Short: "WhatsApp auto-reply relay",
		Long: `waclaw relays inbound WhatsApp and telephony messages through an
external conversational agent and dispatches the reply back to the
originating channel.

Examples:
  waclaw serve
  waclaw config init
  waclaw config validate
  waclaw chat`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newChatCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
