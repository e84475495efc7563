package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oxhq/treelens/internal/decorate"
	"github.com/oxhq/treelens/internal/registry"
	"github.com/oxhq/treelens/models"
	"github.com/oxhq/treelens/providers"
	"github.com/oxhq/treelens/providers/base"
)

// Journal records runs and the files they change
type Journal interface {
	StartRun(ctx context.Context, run *models.Run) error
	RecordEdit(ctx context.Context, edit *models.Edit) error
	FinishRun(ctx context.Context, run *models.Run) error
}

// checker is implemented by grammars that can verify edited output beyond syntax.
type checker interface {
	Check(src []byte) error
}

// Runner applies an editor to every file of a scope
type Runner struct {
	registry   *registry.Registry
	walker     *FileWalker
	writer     *AtomicWriter
	journal    Journal
	classifier decorate.Classifier
	logger     *slog.Logger
	commit     bool
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithCommit writes modified files. Without it a run only reports diffs.
func WithCommit(commit bool) RunnerOption {
	return func(r *Runner) { r.commit = commit }
}

// WithJournal records runs in j.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) { r.journal = j }
}

// WithWriter replaces the default atomic writer.
func WithWriter(w *AtomicWriter) RunnerOption {
	return func(r *Runner) { r.writer = w }
}

// WithClassifier decorates matches with c instead of the file grammar's classifier.
func WithClassifier(c decorate.Classifier) RunnerOption {
	return func(r *Runner) { r.classifier = c }
}

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner resolving grammars through reg.
func NewRunner(reg *registry.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: reg,
		writer:   NewAtomicWriter(DefaultAtomicConfig()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.walker = NewFileWalker(func(path string) string {
		g, err := reg.ForFile(path)
		if err != nil {
			return ""
		}
		return g.Language()
	})
	return r
}

// Run applies ed to each file of scope with a known grammar, in path order. Per-file
// failures are reported in the result; cancelling ctx stops the run and returns the
// partial result with ctx's error.
func (r *Runner) Run(ctx context.Context, scope FileScope, ed Editor) (*RunResult, error) {
	started := time.Now()

	files, err := r.walker.Files(ctx, scope)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Editor: ed.Name(), Committed: r.commit}

	var run *models.Run
	if r.journal != nil {
		params, err := json.Marshal(ed)
		if err != nil {
			r.logger.Warn("journal params not encoded", "editor", ed.Name(), "error", err)
			params = nil
		}
		run = &models.Run{
			Editor:    ed.Name(),
			Root:      scope.Root,
			Params:    params,
			Committed: r.commit,
		}
		if err := r.journal.StartRun(ctx, run); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		result.RunID = run.ID
	}

	var runErr error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if f.Error != nil {
			result.Files = append(result.Files, failed(f.Path, fmt.Errorf("%w: %w", errRead, f.Error)))
			continue
		}
		if f.Language == "" {
			r.logger.Debug("skipping file without grammar", "file", f.Path)
			continue
		}

		fr := r.RunFile(ctx, f.Path, ed)
		fr.Path = relative(scope.Root, f.Path)
		result.FilesScanned++
		result.TotalMatches += len(fr.Matches)
		if fr.Modified {
			result.FilesModified++
			r.record(ctx, run, fr)
		}
		result.Files = append(result.Files, fr)
	}

	result.Duration = time.Since(started)

	if run != nil {
		run.FilesScanned = result.FilesScanned
		run.FilesModified = result.FilesModified
		run.FilesFailed = len(result.Failed())
		if err := r.journal.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			r.logger.Warn("journal finish failed", "run", run.ID, "error", err)
		}
	}

	r.logger.Info("run finished",
		"editor", result.Editor,
		"files", result.FilesScanned,
		"modified", result.FilesModified,
		"matches", result.TotalMatches,
		"committed", result.Committed,
		"duration", result.Duration)

	return result, runErr
}

// RunFile applies ed to a single file.
func (r *Runner) RunFile(ctx context.Context, path string, ed Editor) FileResult {
	g, err := r.registry.ForFile(path)
	if err != nil {
		return failed(path, fmt.Errorf("%w: %w", ErrNoGrammar, err))
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return failed(path, fmt.Errorf("%w: %w", errRead, err))
	}

	out, matches, err := r.edit(ctx, g, path, src, ed)
	fr := FileResult{Path: path, Language: g.Language(), Matches: matches}
	if err != nil {
		fr.setErr(err)
		return fr
	}

	original := string(src)
	if out == original {
		return fr
	}
	fr.Modified = true
	fr.Diff = base.Diff(filepath.Base(path), original, out)
	fr.BaseDigest = digest(src)
	fr.AfterDigest = digest([]byte(out))

	if r.commit {
		backup, err := r.writer.ReplaceFile(path, original, out)
		if err != nil {
			fr.Modified = false
			fr.setErr(err)
			return fr
		}
		fr.BackupPath = backup
	}
	r.logger.Debug("file edited", "file", path, "matches", len(matches), "committed", r.commit)
	return fr
}

// EditSource parses src with g, applies ed and returns the edited source. Edits that leave
// the document syntactically invalid fail with ErrInvalidEdit.
func (r *Runner) EditSource(ctx context.Context, g providers.Grammar, name string, src []byte, ed Editor) (string, []Match, error) {
	return r.edit(ctx, g, name, src, ed)
}

func (r *Runner) edit(ctx context.Context, g providers.Grammar, path string, src []byte, ed Editor) (string, []Match, error) {
	name := filepath.Base(path)
	doc, err := g.Parse(ctx, name, src)
	if err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", name, err)
	}

	c := r.classifier
	if c == nil {
		c = g.Classifier()
	}
	ec := NewEditContext(name, doc, c, r.logger.With("file", path))
	ec.Path = path
	if err := ed.Edit(ctx, ec); err != nil {
		return "", ec.Matches(), err
	}

	out := doc.Source()
	if out == string(src) {
		return out, ec.Matches(), nil
	}
	if res := g.Validate([]byte(out)); !res.Valid {
		return "", ec.Matches(), fmt.Errorf("%w: %s", ErrInvalidEdit, strings.Join(res.Errors, "; "))
	}
	if c, ok := g.(checker); ok {
		if err := c.Check([]byte(out)); err != nil {
			return "", ec.Matches(), fmt.Errorf("%w: %w", ErrInvalidEdit, err)
		}
	}
	return out, ec.Matches(), nil
}

func (r *Runner) record(ctx context.Context, run *models.Run, fr FileResult) {
	if run == nil {
		return
	}
	matches, err := json.Marshal(fr.Matches)
	if err != nil {
		r.logger.Warn("journal matches not encoded", "file", fr.Path, "error", err)
		matches = nil
	}
	edit := &models.Edit{
		RunID:       run.ID,
		File:        fr.Path,
		BaseDigest:  fr.BaseDigest,
		AfterDigest: fr.AfterDigest,
		Diff:        fr.Diff,
		Matches:     matches,
		Applied:     r.commit,
		BackupPath:  fr.BackupPath,
	}
	if err := r.journal.RecordEdit(ctx, edit); err != nil {
		r.logger.Warn("journal record failed", "file", fr.Path, "error", err)
	}
}

func (fr *FileResult) setErr(err error) {
	fr.Err = err
	fr.Error = err.Error()
	fr.Code = CodeOf(err)
}

func failed(path string, err error) FileResult {
	fr := FileResult{Path: path}
	fr.setErr(err)
	return fr
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func relative(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
