package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/doomdumper/doomdumper/pkg/db"
	"github.com/doomdumper/doomdumper/pkg/errors"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs and their outcome",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var (
	historyLimit   int
	historyVerbose bool
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
	historyCmd.Flags().BoolVarP(&historyVerbose, "verbose", "v", false, "Show the transitions of every run")
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	if err := ensureDirectories([]string{cfg.SQLitePath}, nil); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath, clock.WallClock)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	runs, err := repo.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	printRunHeader(w)
	for _, run := range runs {
		printRun(w, run)
		if !historyVerbose {
			continue
		}
		transitions, err := repo.Transitions(cmd.Context(), run.ID)
		if err != nil {
			return errors.Wrapf(err, "failed to load transitions of %s", run.ID)
		}
		for _, t := range transitions {
			printTransition(w, t)
		}
	}
	return nil
}

func printRunHeader(w io.Writer) {
	fmt.Fprintf(w, "%-36s %-10s %-18s %-16s %s\n", "RUN", "STATUS", "STATE", "STARTED", "PATH")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------------")
}

func printRun(w io.Writer, r *db.Run) {
	state := r.FinalState
	if state == "" {
		state = "-"
	}
	path := r.Path
	if path == "" {
		path = "-"
	}
	fmt.Fprintf(w, "%-36s %-10s %-18s %-16s %s\n", r.ID, r.Status, state, ago(r.StartedAt), path)
	if r.Detail != "" {
		fmt.Fprintf(w, "%-36s %s\n", "", r.Detail)
	}
}

func printTransition(w io.Writer, t *db.Transition) {
	line := fmt.Sprintf("  %3d  %-10s %-16s -> %-16s", t.Seq, t.Phase, t.From, t.To)
	if t.PID != 0 {
		line += fmt.Sprintf(" pid=%d", t.PID)
	}
	if t.Detail != "" {
		line += " " + t.Detail
	}
	fmt.Fprintln(w, line)
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
