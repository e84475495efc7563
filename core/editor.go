package core

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/oxhq/treelens/internal/decorate"
	"github.com/oxhq/treelens/internal/pathexpr"
	"github.com/oxhq/treelens/internal/tree"
	"github.com/oxhq/treelens/internal/treehelper"
)

// Editor changes a parsed document in place
type Editor interface {
	Name() string
	Edit(ctx context.Context, ec *EditContext) error
}

// EditorFunc adapts a function to Editor
type EditorFunc func(ctx context.Context, ec *EditContext) error

func (f EditorFunc) Name() string { return "func" }

func (f EditorFunc) Edit(ctx context.Context, ec *EditContext) error { return f(ctx, ec) }

// Appender is implemented by views that can grow by one element.
type Appender interface {
	AddElement(value string) error
}

// TextSetter is implemented by views whose text can be replaced.
type TextSetter interface {
	UpdateText(s string) error
}

// EditContext is what an editor works with: the document, an engine that decorates
// matches with grammar views, and a logger. Every node the engine matches is recorded.
// File is the base name the document was parsed under; Path is the file as the runner
// found it.
type EditContext struct {
	File   string
	Path   string
	Doc    *tree.Document
	Engine pathexpr.Engine
	Logger *slog.Logger

	decorator *decorate.Engine
	matches   []Match
	seen      map[tree.ID]bool
}

// NewEditContext builds the engine for doc from the path evaluator and classifier.
func NewEditContext(file string, doc *tree.Document, c decorate.Classifier, logger *slog.Logger) *EditContext {
	if logger == nil {
		logger = slog.Default()
	}
	ec := &EditContext{
		File:   file,
		Path:   file,
		Doc:    doc,
		Logger: logger,
		seen:   make(map[tree.ID]bool),
	}
	ec.decorator = decorate.New(recorder{inner: pathexpr.New(), ec: ec}, c, decorate.WithLogger(logger))
	ec.Engine = ec.decorator
	return ec
}

// Root is the document root.
func (ec *EditContext) Root() tree.Node {
	return ec.Doc.Root()
}

// Matches returns every node matched so far, in the order first seen.
func (ec *EditContext) Matches() []Match {
	return ec.matches
}

func (ec *EditContext) record(n tree.Node) {
	ref, ok := n.(tree.Ref)
	if !ok {
		return
	}
	if ec.seen[ref.ID()] {
		return
	}
	ec.seen[ref.ID()] = true

	m := Match{
		Path: "/",
		Name: ref.Name(),
		Tags: ref.Tags(),
	}
	if p, ok := treehelper.FindPathFromAncestor(ref, isRoot); ok {
		m.Path = p
	}
	if v := ec.decorator.Decorate(ref); v != tree.Node(ref) {
		m.View = viewName(v)
	}
	start, _ := ref.Span()
	m.Line = strings.Count(ec.Doc.Source()[:start], "\n") + 1
	if len(ref.Children()) == 0 {
		m.Value = ref.Value()
	}
	ec.matches = append(ec.matches, m)
}

func isRoot(n tree.Node) bool {
	pa, ok := n.(tree.ParentAware)
	return !ok || pa.Parent() == nil
}

func viewName(v tree.Node) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// recorder passes raw matches to the EditContext before they are decorated.
type recorder struct {
	inner pathexpr.Engine
	ec    *EditContext
}

func (r recorder) Evaluate(root tree.Node, expr string, fn pathexpr.MatchFunc) ([]tree.Node, error) {
	return r.inner.Evaluate(root, expr, func(n tree.Node) error {
		r.ec.record(n)
		if fn != nil {
			return fn(n)
		}
		return nil
	})
}

// Query only records the nodes Path matches.
type Query struct {
	Path string
}

func (q Query) Name() string { return "query" }

func (q Query) Edit(_ context.Context, ec *EditContext) error {
	nodes, err := ec.Engine.Evaluate(ec.Root(), q.Path, nil)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatches, q.Path)
	}
	return nil
}

// AppendElement adds Value to every sequence Path matches.
type AppendElement struct {
	Path  string
	Value string
}

func (a AppendElement) Name() string { return "append" }

func (a AppendElement) Edit(ctx context.Context, ec *EditContext) error {
	return each(ctx, ec, a.Path, func(n tree.Node) error {
		app, ok := n.(Appender)
		if !ok {
			return unsupported(n, "append to")
		}
		return app.AddElement(a.Value)
	})
}

// SetText replaces the text of every scalar Path matches.
type SetText struct {
	Path  string
	Value string
}

func (s SetText) Name() string { return "set" }

func (s SetText) Edit(ctx context.Context, ec *EditContext) error {
	return each(ctx, ec, s.Path, func(n tree.Node) error {
		ts, ok := n.(TextSetter)
		if !ok {
			return unsupported(n, "set text of")
		}
		return ts.UpdateText(s.Value)
	})
}

func each(ctx context.Context, ec *EditContext, path string, fn func(tree.Node) error) error {
	count := 0
	_, err := ec.Engine.Evaluate(ec.Root(), path, func(n tree.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		if err := fn(n); err != nil {
			return err
		}
		ec.Logger.Debug("edited node", "file", ec.File, "node", n.Name(), "view", viewName(n))
		return nil
	})
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatches, path)
	}
	return nil
}

func unsupported(n tree.Node, verb string) error {
	return fmt.Errorf("%w: cannot %s %q (%s, tags %v)", ErrUnsupported, verb, n.Name(), viewName(n), n.Tags())
}
