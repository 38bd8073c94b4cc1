package commands

import (
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/lingobot/core/cmd"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and enabled transports",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	return corecmd.Run(corecmd.Options{ConfigPath: configPath})
}
