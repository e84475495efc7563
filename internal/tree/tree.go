// Package tree defines the generic node model every other treelens package operates on.
//
// Capabilities are expressed as separate interfaces so that callers switch on a closed,
// statically known set instead of probing values for fields:
//
//   - Node: identity (name and tags)
//   - TextNode: raw backing text plus ordered children
//   - ParentAware: non-owning upward navigation
//   - Editable: in-place mutation of a node backed by a Document
//
// The package knows nothing about any grammar.
package tree

import (
	"errors"
	"slices"
	"strings"
)

// ErrNotEditable is returned when a mutation is requested on a node that is not backed by a Document.
var ErrNotEditable = errors.New("node is not editable")

// Node is the abstract identity of a node in a parse tree.
type Node interface {
	// Name is meaningful only relative to the node's parent.
	Name() string

	// Tags are semantic type markers. Order matters for display only.
	Tags() []string
}

// TextNode is a node backed by source text.
//
// When Children is non-empty, Value is a projection of the source the children span
// and never independently authoritative.
type TextNode interface {
	Node
	Value() string
	Children() []Node
}

// ParentAware nodes can navigate upward. Parent returns nil at the root.
type ParentAware interface {
	Node
	Parent() Node
}

// Editable nodes write changes back into their owning Document.
type Editable interface {
	TextNode
	ParentAware

	// Update replaces the node's text. Any children of the node are detached.
	Update(text string)

	// Insert splices text into the node at offset, relative to the node start. The offset
	// may pass the node's end over text no other node covers, such as a trailing comment;
	// the node then grows to cover it.
	Insert(offset int, text string) error

	// InsertBefore writes text immediately in front of the node, outside it.
	InsertBefore(text string) error

	// Graft registers a new child spanning [start, end) of the node's current text.
	Graft(name string, start, end int, tags ...string) (Node, error)

	// Span is the node's current byte range in the document source.
	Span() (start, end int)

	// Column is the number of bytes between the start of the node's line and the node.
	Column() int

	// LineIndent is the leading whitespace of the line the node starts on.
	LineIndent() string
}

// Tagged is a node that only exposes tags, such as a graph vertex that carries no text.
type Tagged struct {
	NodeName string
	NodeTags []string
}

func (t Tagged) Name() string { return t.NodeName }

func (t Tagged) Tags() []string { return t.NodeTags }

func (t Tagged) String() string {
	return t.NodeName + "(" + strings.Join(t.NodeTags, ",") + ")"
}

// Leaf is an in-memory TextNode for trees assembled by hand.
// It is not parent-aware and cannot be edited.
type Leaf struct {
	NodeName  string
	NodeTags  []string
	Text      string
	ChildList []Node
}

func (l *Leaf) Name() string { return l.NodeName }

func (l *Leaf) Tags() []string { return l.NodeTags }

func (l *Leaf) Value() string { return l.Text }

func (l *Leaf) Children() []Node { return l.ChildList }

// Contains reports whether tags holds tag.
func Contains(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}
