package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zigscript-lang/zsc/internal/driver"
)

var buildCmd = &cobra.Command{
	Use:     "build <file>",
	Aliases: []string{"compile"},
	Short:   "Compile a .zs source file to WAT",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := driver.Compile(args[0], newConfig(), newLogger())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("wrote %s", res.OutputPath))
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output WAT file path.")
	rootCmd.AddCommand(buildCmd)
}
