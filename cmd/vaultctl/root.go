package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the vaultctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operator tooling for the vaulthub API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}
