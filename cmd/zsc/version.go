package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// zscVersion is set at build time via -ldflags; "dev" covers all other
// builds.
var zscVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the zsc version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), zscVersion)
		return nil
	},
}

func init() {
	rootCmd.Version = zscVersion
	rootCmd.AddCommand(versionCmd)
}
