package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxhq/treelens/core"
	"github.com/oxhq/treelens/internal/tree"
	"github.com/oxhq/treelens/internal/treehelper"
)

// editFlags are shared by the commands that walk a file scope.
type editFlags struct {
	scope  core.FileScope
	commit bool
	backup bool
	diff   bool
	json   bool
}

func (f *editFlags) register(cmd *cobra.Command, edits bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.scope.Root, "root", ".", "Directory to scan")
	flags.StringSliceVar(&f.scope.Include, "include", nil, "Glob patterns to include (e.g. '*.yaml', 'deploy/**/*.yml')")
	flags.StringSliceVar(&f.scope.Exclude, "exclude", nil, "Glob patterns to exclude")
	flags.IntVar(&f.scope.MaxDepth, "max-depth", 0, "Maximum directory depth (0 = unlimited)")
	flags.IntVar(&f.scope.MaxFiles, "max-files", 0, "Maximum number of files (0 = unlimited)")
	flags.BoolVar(&f.json, "json", false, "Print results as JSON")
	if edits {
		flags.BoolVar(&f.commit, "commit", false, "Write changes to disk")
		flags.BoolVar(&f.backup, "backup", false, "Keep a .bak copy of every file written (overrides TREELENS_BACKUP)")
		flags.BoolVar(&f.diff, "diff", false, "Print a unified diff of every change")
	}
}

func newAppendCmd(a *app) *cobra.Command {
	f := &editFlags{}
	cmd := &cobra.Command{
		Use:   "append PATH VALUE",
		Short: "Append VALUE to every sequence PATH selects",
		Example: `  treelens append "/components/Amplifier/*[@name='future upgrades']" NAP500 --diff
  treelens append //tags release --include 'deploy/**/*.yaml' --commit`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEdit(cmd, f, core.AppendElement{Path: args[0], Value: args[1]})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	f := &editFlags{}
	cmd := &cobra.Command{
		Use:     "set PATH VALUE",
		Short:   "Replace the text of every scalar PATH selects",
		Example: `  treelens set //image/tag 1.4.2 --root deploy --commit`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEdit(cmd, f, core.SetText{Path: args[0], Value: args[1]})
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) runEdit(cmd *cobra.Command, f *editFlags, ed core.Editor) error {
	ctx := contextOf(cmd)

	writerConfig := core.DefaultAtomicConfig()
	writerConfig.BackupOriginal = a.cfg.Backup
	if cmd.Flags().Changed("backup") {
		writerConfig.BackupOriginal = f.backup
	}
	writer := core.NewAtomicWriter(writerConfig)
	defer writer.Cleanup()

	opts := []core.RunnerOption{
		core.WithCommit(f.commit),
		core.WithWriter(writer),
		core.WithLogger(a.logger),
	}

	var journalPrune func()
	if a.cfg.Journal {
		j, closeJournal, err := a.openJournal()
		if err != nil {
			return err
		}
		defer closeJournal()
		opts = append(opts, core.WithJournal(j))
		journalPrune = func() {
			if a.cfg.RetentionRuns == 0 {
				return
			}
			if n, err := j.Prune(context.WithoutCancel(ctx), a.cfg.RetentionRuns); err != nil {
				a.logger.Warn("journal prune failed", "error", err)
			} else if n > 0 {
				a.logger.Debug("journal pruned", "runs", n)
			}
		}
	}

	res, err := core.NewRunner(a.registry, opts...).Run(ctx, f.scope, ed)
	if res == nil {
		return err
	}
	if journalPrune != nil {
		journalPrune()
	}

	out := cmd.OutOrStdout()
	if f.json {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		printRun(out, res, f.diff)
	}
	if err != nil {
		return err
	}
	return outcome(res)
}

// outcome turns a finished run into the command's error. Files without matches are
// not failures unless no file matched at all.
func outcome(res *core.RunResult) error {
	failures := 0
	for _, fr := range res.Failed() {
		if fr.Code != core.ECNoMatch {
			failures++
		}
	}
	switch {
	case failures > 0:
		return fmt.Errorf("%w: %d file(s)", errReported, failures)
	case res.TotalMatches == 0:
		return core.ErrNoMatches
	}
	return nil
}

func printRun(w io.Writer, res *core.RunResult, diff bool) {
	for _, fr := range res.Files {
		switch {
		case fr.Err != nil && fr.Code == core.ECNoMatch:
			continue
		case fr.Err != nil:
			fmt.Fprintf(w, "%s %s: %s (%s)\n", red("✗"), fr.Path, fr.Error, fr.Code)
		case fr.Modified:
			fmt.Fprintf(w, "%s %s: %d match(es), modified\n", green("✓"), fr.Path, len(fr.Matches))
			if diff {
				fmt.Fprint(w, fr.Diff)
			}
		default:
			fmt.Fprintf(w, "%s %s: %d match(es), no changes\n", yellow("•"), fr.Path, len(fr.Matches))
		}
	}

	mode := "dry run"
	if res.Committed {
		mode = "committed"
	}
	fmt.Fprintf(w, "\n%s %d file(s) scanned, %d modified, %d match(es) (%s, %s)\n",
		bold(res.Editor+":"), res.FilesScanned, res.FilesModified, res.TotalMatches, mode, res.Duration.Round(time.Millisecond))
	if res.RunID != "" {
		fmt.Fprintf(w, "run %s\n", cyan(res.RunID))
	}
}

// queryEditor records the decorated nodes PATH selects in each file.
type queryEditor struct {
	core.Query
	hits []queryHit
}

type queryHit struct {
	path  string
	nodes []tree.Node
}

func (q *queryEditor) Edit(_ context.Context, ec *core.EditContext) error {
	nodes, err := ec.Engine.Evaluate(ec.Root(), q.Path, nil)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", core.ErrNoMatches, q.Path)
	}
	q.hits = append(q.hits, queryHit{path: ec.Path, nodes: nodes})
	return nil
}

type queryFileJSON struct {
	File  string          `json:"file"`
	Nodes json.RawMessage `json:"nodes"`
}

func newQueryCmd(a *app) *cobra.Command {
	f := &editFlags{}
	var (
		tags   bool
		maxLen int
	)
	cmd := &cobra.Command{
		Use:   "query PATH",
		Short: "Print the nodes PATH selects",
		Example: `  treelens query //Amplifier/* --root hifi
  treelens query "/." --include values.yaml --tags`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)

			stringifier := treehelper.NodeAndValueStringifier(maxLen)
			if tags {
				stringifier = treehelper.NodeAndTagsStringifier
			}

			q := &queryEditor{Query: core.Query{Path: args[0]}}
			res, err := core.NewRunner(a.registry, core.WithLogger(a.logger)).Run(ctx, f.scope, q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.json {
				files := make([]queryFileJSON, 0, len(q.hits))
				for _, h := range q.hits {
					nodes, err := treehelper.MarshalNodes(h.nodes, stringifier)
					if err != nil {
						return err
					}
					files = append(files, queryFileJSON{File: relativeTo(f.scope.Root, h.path), Nodes: nodes})
				}
				if err := writeJSON(out, files); err != nil {
					return err
				}
			} else {
				for _, h := range q.hits {
					fmt.Fprintln(out, bold(relativeTo(f.scope.Root, h.path)))
					for _, n := range h.nodes {
						fmt.Fprintln(out, render(n, stringifier))
					}
				}
				for _, fr := range res.Failed() {
					if fr.Code != core.ECNoMatch {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s (%s)\n", red("✗"), fr.Path, fr.Error, fr.Code)
					}
				}
			}
			return outcome(res)
		},
	}
	f.register(cmd, false)
	cmd.Flags().BoolVar(&tags, "tags", false, "Show branch tags instead of values")
	cmd.Flags().IntVar(&maxLen, "max-len", treehelper.DefaultMaxValueLen, "Abbreviate branch values this long or longer")
	return cmd
}

func render(n tree.Node, s treehelper.NodeStringifier) string {
	if tn, ok := n.(tree.TextNode); ok {
		return treehelper.Stringify(tn, s)
	}
	return fmt.Sprint(n)
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
