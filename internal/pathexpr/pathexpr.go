// Package pathexpr defines the path-expression engine contract used to select nodes of a
// tree.Document, and ships the built-in evaluator for the single addressing scheme the
// tools understand.
//
// Expressions are "/"-separated steps evaluated from the root:
//
//	/components/Amplifier/*[@name='future upgrades']
//	//Sequence()[2]
//	/services/*/ports/..
//
// A step is a node test followed by any number of predicates. Node tests: a name (quote it
// when it contains spaces or separators), "*", "." (self), ".." (parent) and "Tag()" for
// children carrying a tag. Predicates: [@name='v'], [@value='v'], [@tag='v'] and [N]
// (1-based position among the step's candidates for one context node). "//" before a step
// searches all descendants instead of direct children. "/" alone, like "/.", selects the
// root.
package pathexpr

import (
	"errors"
	"fmt"

	"github.com/oxhq/treelens/internal/tree"
)

// ErrSyntax is matched by every error reporting a malformed expression.
var ErrSyntax = errors.New("path expression syntax error")

// SyntaxError locates a malformed expression.
type SyntaxError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d in %q", ErrSyntax, e.Msg, e.Offset, e.Expr)
}

// Is makes errors.Is(err, ErrSyntax) hold.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// MatchFunc receives each match in engine order. It may run nested queries. A non-nil
// error stops the evaluation and is returned by Evaluate unchanged.
type MatchFunc func(tree.Node) error

// Engine evaluates a path expression against root.
//
// Evaluate returns the matches in document order without duplicates. When fn is non-nil it
// is called once per match, after all matches are known, so edits made by fn do not
// change which nodes matched.
type Engine interface {
	Evaluate(root tree.Node, expr string, fn MatchFunc) ([]tree.Node, error)
}

// With evaluates expr and calls fn for every match that is a T. Other matches are skipped.
func With[T tree.Node](e Engine, root tree.Node, expr string, fn func(T) error) error {
	_, err := e.Evaluate(root, expr, func(n tree.Node) error {
		t, ok := n.(T)
		if !ok {
			return nil
		}
		return fn(t)
	})
	return err
}

// Select evaluates expr and returns the matches that are a T.
func Select[T tree.Node](e Engine, root tree.Node, expr string) ([]T, error) {
	nodes, err := e.Evaluate(root, expr, nil)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, n := range nodes {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Evaluator is the built-in Engine.
type Evaluator struct{}

// New returns the built-in evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate implements Engine.
func (ev *Evaluator) Evaluate(root tree.Node, expr string, fn MatchFunc) ([]tree.Node, error) {
	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	matches := p.Select(root)
	if fn == nil {
		return matches, nil
	}
	for _, m := range matches {
		if err := fn(m); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

var _ Engine = (*Evaluator)(nil)
