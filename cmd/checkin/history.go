package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"checkin/internal/config"
	"checkin/internal/history"
	"checkin/internal/logging"
)

var errHistoryDisabled = errors.New("run history is not enabled (set HISTORY_DB)")

const defaultHistoryLimit = 10

func newHistoryCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	limit := defaultHistoryLimit
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := showHistory(cmd, opts, limit, stdout); err != nil {
				fmt.Fprintf(stderr, "error: %v\n", err)
				return &exitError{code: ExitError}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of runs to show (0 for all)")
	return cmd
}

func showHistory(cmd *cobra.Command, opts *options, limit int, w io.Writer) error {
	settings, err := config.Load(viper.New(), opts.dir, opts.envFile)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings.HistoryDB == "" {
		return errHistoryDisabled
	}

	store, err := history.Open(settings.HistoryDB, logging.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(runs)
	}
	writeHistory(w, runs)
	return nil
}

func writeHistory(w io.Writer, runs []history.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	for _, run := range runs {
		outcome := "成功"
		if !run.AllSucceeded {
			outcome = "失败"
		}
		fmt.Fprintf(w, "%s  %s  %s  %d/%d  days=%d  %s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.RunID,
			outcome,
			run.Succeeded, run.Total,
			run.SuccessfulDays,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
		)
		for _, task := range run.Tasks {
			mark := "✓"
			if !task.Success {
				mark = "✗"
			}
			fmt.Fprintf(w, "    %s %s: %s\n", mark, task.Name, task.Message)
		}
	}
}
