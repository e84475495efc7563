// Package decorate wraps a path-expression engine so that each match is offered to a
// grammar classifier, which may substitute a specialized view for the raw node before the
// caller sees it.
//
// Classification is repeated on every match of every evaluation. A node whose text changed
// since the last query may classify differently.
package decorate

import (
	"fmt"
	"log/slog"

	"github.com/oxhq/treelens/internal/pathexpr"
	"github.com/oxhq/treelens/internal/tree"
)

// Classifier decides which view, if any, represents a matched node.
// DecoratorFor returns nil when no view applies.
type Classifier interface {
	DecoratorFor(n tree.Node) tree.Node
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(tree.Node) tree.Node

// DecoratorFor implements Classifier.
func (f ClassifierFunc) DecoratorFor(n tree.Node) tree.Node {
	return f(n)
}

// Chain tries each classifier in order and returns the first view offered.
func Chain(cs ...Classifier) Classifier {
	return ClassifierFunc(func(n tree.Node) tree.Node {
		for _, c := range cs {
			if c == nil {
				continue
			}
			if v := c.DecoratorFor(n); v != nil {
				return v
			}
		}
		return nil
	})
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report misbehaving classifiers.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine is a pathexpr.Engine that decorates the matches of an inner engine.
type Engine struct {
	inner      pathexpr.Engine
	classifier Classifier
	log        *slog.Logger
}

// New wraps inner. A nil classifier decorates nothing.
func New(inner pathexpr.Engine, c Classifier, opts ...Option) *Engine {
	e := &Engine{
		inner:      inner,
		classifier: c,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs expr on the inner engine and returns its matches with views substituted.
// Match order and count are those of the inner engine. Errors from the inner engine and
// from fn are returned unchanged.
func (e *Engine) Evaluate(root tree.Node, expr string, fn pathexpr.MatchFunc) ([]tree.Node, error) {
	var out []tree.Node
	_, err := e.inner.Evaluate(root, expr, func(n tree.Node) error {
		d := e.Decorate(n)
		out = append(out, d)
		if fn != nil {
			return fn(d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Decorate returns the view the classifier offers for n, or n itself.
func (e *Engine) Decorate(n tree.Node) tree.Node {
	if e.classifier == nil {
		return n
	}
	if v := e.classify(n); v != nil {
		return v
	}
	return n
}

func (e *Engine) classify(n tree.Node) (v tree.Node) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("classifier panicked, passing node through",
				"node", n.Name(),
				"tags", n.Tags(),
				"panic", fmt.Sprint(r))
			v = nil
		}
	}()
	return e.classifier.DecoratorFor(n)
}

var _ pathexpr.Engine = (*Engine)(nil)
