// Package main provides the locnorm CLI entry point.
package main

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/logger"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command tree and maps the outcome to an exit code
func execute(args []string, out, errw io.Writer) int {
	var human bool
	root := newRootCmd(&human)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errw)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}
	printError(errw, out, human, err)
	return exitCodeOf(err)
}

func newRootCmd(human *bool) *cobra.Command {
	root := &cobra.Command{
		Use:   "locnorm",
		Short: "Normalize country, state and city records",
		Long: `locnorm cleans, deduplicates and reconciles the location catalog
against the ISO 3166 reference lists.

Actions run in pipeline order: clean, unificate, load-official,
fuzzy-match, apply-matches, unset-matches. Reports are printed as JSON
unless --human is set.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return perr.Wrap(err, perr.ErrorCodeConfig, "load .env")
			}
			opt := logger.FromEnv()
			opt.Writer = os.Stderr
			logger.Init(opt)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(human, "human", false, "Use human-readable output instead of JSON")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, cmd.CommandPath())
	})

	root.AddCommand(
		newEntityCmd(countriesDef, human),
		newEntityCmd(statesDef, human),
		newEntityCmd(citiesDef, human),
		newMigrateCmd(human),
	)
	return root
}
