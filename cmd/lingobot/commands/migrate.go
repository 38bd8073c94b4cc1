package commands

import (
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/lingobot/core/cmd"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres session backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return corecmd.Migrate(configPath)
		},
	}
}
