// Package main is the zsc CLI: a thin cobra shell around internal/driver.
// Flag parsing, usage text, and exit-code plumbing live here; none of it
// is part of the in-scope compiler pipeline.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zigscript-lang/zsc/internal/config"
)

var (
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zsc",
	Short: "zsc compiles .zs source files to WebAssembly text (WAT)",
}

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated out for unit testing: it takes the arguments and
// output writers explicitly and returns the exit code instead of exiting.
func doMain(args []string, stdOut, stdErr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdOut)
	rootCmd.SetErr(stdErr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(stdErr, color.RedString(err.Error()))
		return 1
	}
	return 0
}

func newLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if flagVerbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}
	return logrus.NewEntry(l)
}

func newConfig() *config.CompilerConfig {
	cfg := config.NewCompilerConfig()
	if flagOutput != "" {
		cfg = cfg.WithOutputPath(flagOutput)
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging.")
}
