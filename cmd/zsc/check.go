package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zigscript-lang/zsc/internal/driver"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Parse and type-check a .zs source file without generating WAT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := driver.Check(args[0], newConfig(), newLogger())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("ok (%s)", id))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
