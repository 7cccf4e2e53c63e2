package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const (
	ExitSuccess    = 0
	ExitTaskFailed = 1
	ExitError      = 2
)

type options struct {
	dir        string
	envFile    string
	debug      bool
	jsonOutput bool
}

// exitError carries a process exit status out of a command.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func execute(ctx context.Context, args []string) int {
	cmd := newRootCmd(os.Stdout, os.Stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)

	var exit *exitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exit):
		return exit.code
	default:
		return ExitError
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "checkin",
		Short:         "Replay captured check-in requests and report the result",
		Long:          "checkin replays browser-captured (HAR) request sequences for every task in the task list, keeps a cumulative successful-days counter and pushes a one-per-run report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckin(cmd.Context(), opts, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.dir, "dir", ".", "directory holding .env, tasks, captures and status")
	flags.StringVar(&opts.envFile, "env-file", "", "env file to read instead of <dir>/.env")
	flags.BoolVar(&opts.debug, "debug", false, "log full requests and responses (overrides DEBUG_MODE)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print reports as JSON instead of text")

	rootCmd.AddCommand(
		newRunCmd(opts, stdout, stderr),
		newHistoryCmd(opts, stdout, stderr),
		newVersionCmd(),
	)
	return rootCmd
}

func newRunCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every task once and report (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckin(cmd.Context(), opts, stdout, stderr)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

func runCheckin(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	app, err := wireApp(opts, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return &exitError{code: ExitError}
	}
	defer app.Close()

	code := app.run(ctx)
	if code != ExitSuccess {
		return &exitError{code: code}
	}
	return nil
}
