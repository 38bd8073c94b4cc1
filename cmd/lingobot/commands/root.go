package commands

import (
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/lingobot/core/cmd"
)

var configPath string

// Execute runs the CLI. Without a subcommand it serves.
func Execute() error {
	return newRoot().Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "lingobot",
		Short:        "Conversational translation bot for Messenger and Telegram",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config path (default $"+corecmd.DefaultConfigEnvVar+")")

	root.AddCommand(serveCmd(), migrateCmd(), versionCmd())
	return root
}
