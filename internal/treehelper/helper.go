// Package treehelper provides navigation and dumping helpers that work directly on the
// tree model, for the simple cases where a path expression is not needed.
//
// Nothing here caches: every call walks the current state of the tree.
package treehelper

import (
	"github.com/oxhq/treelens/internal/tree"
)

// HasTag reports whether tag is one of n's tags.
func HasTag(n tree.Node, tag string) bool {
	return tree.Contains(n.Tags(), tag)
}

// FindAncestor returns the nearest proper ancestor of n satisfying test, or nil.
// The walk stops at the first parent that is not itself parent-aware.
func FindAncestor(n tree.ParentAware, test func(tree.Node) bool) tree.Node {
	for cur := n; ; {
		parent := cur.Parent()
		if parent == nil {
			return nil
		}
		if test(parent) {
			return parent
		}
		next, ok := parent.(tree.ParentAware)
		if !ok {
			return nil
		}
		cur = next
	}
}

// FindAncestorWithTag returns the nearest proper ancestor of n carrying tag, or nil.
func FindAncestorWithTag(n tree.ParentAware, tag string) tree.Node {
	return FindAncestor(n, func(a tree.Node) bool {
		return HasTag(a, tag)
	})
}

// FindPathFromAncestor builds the "/"-delimited path from the nearest ancestor satisfying
// test down to n. The ancestor itself is not part of the path.
//
// Same-named siblings produce the same segment; callers that need a unique address must
// add positions themselves.
func FindPathFromAncestor(n tree.ParentAware, test func(tree.Node) bool) (string, bool) {
	path := ""
	for cur := n; ; {
		parent := cur.Parent()
		if parent == nil {
			return "", false
		}
		path = "/" + cur.Name() + path
		if test(parent) {
			return path, true
		}
		next, ok := parent.(tree.ParentAware)
		if !ok {
			return "", false
		}
		cur = next
	}
}

// FindPathFromAncestorWithTag is FindPathFromAncestor for the nearest ancestor carrying tag.
func FindPathFromAncestorWithTag(n tree.ParentAware, tag string) (string, bool) {
	return FindPathFromAncestor(n, func(a tree.Node) bool {
		return HasTag(a, tag)
	})
}
