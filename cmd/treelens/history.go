package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/oxhq/treelens/models"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, closeJournal, err := a.openJournal()
			if err != nil {
				return err
			}
			defer closeJournal()

			runs, err := j.Runs(contextOf(cmd), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")

	cmd.AddCommand(newHistoryShowCmd(a), newHistoryPruneCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		diff   bool
	)
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run and the files it changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, closeJournal, err := a.openJournal()
			if err != nil {
				return err
			}
			defer closeJournal()

			run, err := j.Run(contextOf(cmd), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printRunDetail(cmd.OutOrStdout(), run, diff)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run as JSON")
	cmd.Flags().BoolVar(&diff, "diff", false, "Print the recorded diffs")
	return cmd
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = a.cfg.RetentionRuns
			}
			j, closeJournal, err := a.openJournal()
			if err != nil {
				return err
			}
			defer closeJournal()

			n, err := j.Prune(contextOf(cmd), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s pruned %d run(s), kept %d\n", green("✓"), n, keep)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Runs to keep (default TREELENS_DB_RETENTION_RUNS)")
	return cmd
}

func printRuns(w io.Writer, runs []models.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"ID", "Started", "Editor", "Mode", "Scanned", "Modified", "Failed", "Root"})
	for _, r := range runs {
		tbl.AppendRow(table.Row{
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Editor, mode(r.Committed),
			r.FilesScanned, r.FilesModified, r.FilesFailed, r.Root,
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d runs", len(runs))})
	fmt.Fprintln(w, tbl.Render())
}

func printRunDetail(w io.Writer, run *models.Run, diff bool) {
	fmt.Fprintf(w, "%s %s\n", bold("run"), cyan(run.ID))
	fmt.Fprintf(w, "  editor:   %s %s\n", run.Editor, string(run.Params))
	fmt.Fprintf(w, "  root:     %s\n", run.Root)
	fmt.Fprintf(w, "  mode:     %s\n", mode(run.Committed))
	fmt.Fprintf(w, "  started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.EndedAt != nil {
		fmt.Fprintf(w, "  duration: %s\n", run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  files:    %d scanned, %d modified, %d failed\n", run.FilesScanned, run.FilesModified, run.FilesFailed)

	for _, e := range run.Edits {
		state := yellow("pending")
		if e.Applied {
			state = green("applied")
		}
		fmt.Fprintf(w, "\n%s %s (%s)\n", bold(e.File), state, short(e.BaseDigest)+" -> "+short(e.AfterDigest))
		if e.BackupPath != "" {
			fmt.Fprintf(w, "  backup: %s\n", e.BackupPath)
		}
		if diff {
			fmt.Fprint(w, e.Diff)
			if !strings.HasSuffix(e.Diff, "\n") {
				fmt.Fprintln(w)
			}
		}
	}
}

func mode(committed bool) string {
	if committed {
		return "commit"
	}
	return "dry-run"
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
