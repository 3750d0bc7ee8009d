package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/vmsim/arena"
	"github.com/vkngwrapper/vmsim/internal/session"
	"golang.org/x/exp/slog"
)

type rootOptions struct {
	verbose  bool
	jsonOut  bool
	logJSON  bool
	validate bool
}

func newRootCmd() *cobra.Command {
	var options rootOptions

	cmd := &cobra.Command{
		Use:   "vmsim [script]",
		Short: "Simulate a virtual memory arena",
		Long: `vmsim runs a simulated virtual memory arena driven by a small command language.
Commands are read from the script file if one is given, otherwise from standard input.

Commands:
  ALLOC_ARENA <size>
  DEALLOC_ARENA
  ALLOC_BLOCK <address> <size>
  FREE_BLOCK <address>
  READ <address> <size>
  WRITE <address> <size> <data>
  PMAP
  MPROTECT <address> <PROT_NONE | PROT_READ | PROT_WRITE | PROT_EXEC ...>

Example:
  vmsim commands.txt
  vmsim --json < commands.txt`,
		Version:       "0.1.0",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, args, options)
		},
	}

	cmd.Flags().BoolVarP(&options.verbose, "verbose", "v", false, "Log every arena operation to stderr")
	cmd.Flags().BoolVar(&options.jsonOut, "json", false, "Print PMAP output in JSON format")
	cmd.Flags().BoolVar(&options.logJSON, "log-json", false, "Write log output as JSON")
	cmd.Flags().BoolVar(&options.validate, "validate", false, "Check arena consistency after every operation")

	return cmd
}

func newLogger(w io.Writer, options rootOptions) *slog.Logger {
	level := slog.LevelWarn
	if options.verbose {
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	if options.logJSON {
		return slog.New(slog.NewJSONHandler(w, handlerOptions))
	}
	return slog.New(slog.NewTextHandler(w, handlerOptions))
}

func runSession(cmd *cobra.Command, args []string, options rootOptions) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to open script %s", args[0])
		}
		defer file.Close()
		in = file
	}

	var flags arena.CreateFlags
	if options.validate {
		flags |= arena.CreateValidateAfterOperation
	}

	logger := newLogger(cmd.ErrOrStderr(), options)
	s := session.New(logger, in, cmd.OutOrStdout(), cmd.ErrOrStderr(), session.Options{
		JSONOutput: options.jsonOut,
		ArenaFlags: flags,
	})

	return s.Run()
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
