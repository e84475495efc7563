package tree

import (
	"fmt"
	"slices"
	"strings"
)

// ID indexes a node in a Document's node table.
type ID int32

// NoParent marks the root of a Document.
const NoParent ID = -1

type record struct {
	name     string
	tags     []string
	parent   ID
	children []ID
	start    int
	end      int
	detached bool
}

// Document owns a source text and the table of nodes parsed from it.
//
// Every node covers a byte span of the source; a node's value is always read from the
// current source, so edits made through any handle are visible through every other.
// Parent links are table indices, never pointers.
type Document struct {
	src   []byte
	nodes []record
}

// NewDocument creates an empty document over src. The first node added becomes the root.
func NewDocument(src string) *Document {
	return &Document{src: []byte(src)}
}

// Source returns the current document text.
func (d *Document) Source() string {
	return string(d.src)
}

// Size returns the number of nodes ever added, including detached ones.
func (d *Document) Size() int {
	return len(d.nodes)
}

// Add appends a node spanning [start, end) of the source under parent.
// Pass NoParent for the root; a document has exactly one root.
func (d *Document) Add(parent ID, name string, start, end int, tags ...string) (ID, error) {
	if start < 0 || end < start || end > len(d.src) {
		return NoParent, fmt.Errorf("span [%d,%d) outside source of length %d", start, end, len(d.src))
	}
	if parent == NoParent {
		if len(d.nodes) > 0 {
			return NoParent, fmt.Errorf("document already has a root")
		}
	} else {
		if !d.valid(parent) {
			return NoParent, fmt.Errorf("unknown parent %d", parent)
		}
		p := d.nodes[parent]
		if start < p.start || end > p.end {
			return NoParent, fmt.Errorf("span [%d,%d) outside parent span [%d,%d)", start, end, p.start, p.end)
		}
	}

	id := ID(len(d.nodes))
	d.nodes = append(d.nodes, record{
		name:   name,
		tags:   slices.Clone(tags),
		parent: parent,
		start:  start,
		end:    end,
	})
	if parent != NoParent {
		d.attach(parent, id)
	}
	return id, nil
}

// Root returns a handle on the root node. It panics on an empty document.
func (d *Document) Root() Ref {
	if len(d.nodes) == 0 {
		panic("tree: empty document has no root")
	}
	return Ref{doc: d, id: 0}
}

// Node returns a handle on the node with the given id.
func (d *Document) Node(id ID) Ref {
	return Ref{doc: d, id: id}
}

func (d *Document) valid(id ID) bool {
	return id >= 0 && int(id) < len(d.nodes) && !d.nodes[id].detached
}

// attach keeps children ordered by start offset.
func (d *Document) attach(parent, child ID) {
	kids := d.nodes[parent].children
	start := d.nodes[child].start
	at := len(kids)
	for i, k := range kids {
		if d.nodes[k].start > start {
			at = i
			break
		}
	}
	d.nodes[parent].children = slices.Insert(kids, at, child)
}

// splice replaces src[start:end) with text on behalf of node id, keeping every span consistent.
// The node and its ancestors absorb the length change, growing to reach end when it lies
// past them. Nodes after the edit shift. On an insert, zero-width descendants of id sitting
// at the insertion point stay in front of the new text, except those under after.
func (d *Document) splice(id ID, start, end int, text string, after ID) {
	delta := len(text) - (end - start)

	next := make([]byte, 0, len(d.src)+delta)
	next = append(next, d.src[:start]...)
	next = append(next, text...)
	next = append(next, d.src[end:]...)
	d.src = next

	enclosing := make(map[ID]bool)
	for cur := id; cur != NoParent; cur = d.nodes[cur].parent {
		enclosing[cur] = true
	}

	for i := range d.nodes {
		r := &d.nodes[i]
		if r.detached {
			continue
		}
		if enclosing[ID(i)] {
			r.end = max(r.end, end) + delta
			continue
		}
		if r.start < end {
			continue
		}
		if start == end && r.start == start && r.end == start &&
			d.under(ID(i), id) && (after == NoParent || !d.under(ID(i), after)) {
			continue
		}
		r.start += delta
		r.end += delta
	}
}

// under reports whether id is anc or one of its descendants.
func (d *Document) under(id, anc ID) bool {
	for cur := id; cur != NoParent; cur = d.nodes[cur].parent {
		if cur == anc {
			return true
		}
	}
	return false
}

func (d *Document) detachChildren(id ID) {
	for _, c := range d.nodes[id].children {
		d.detachChildren(c)
		d.nodes[c].detached = true
	}
	d.nodes[id].children = nil
}

// Ref is a lightweight handle on a node of a Document.
// It implements Node, TextNode, ParentAware and Editable.
type Ref struct {
	doc *Document
	id  ID
}

// ID returns the node's index in its document.
func (r Ref) ID() ID { return r.id }

// Document returns the owning document.
func (r Ref) Document() *Document { return r.doc }

// Span returns the node's byte offsets in the current source.
func (r Ref) Span() (start, end int) {
	rec := r.rec()
	return rec.start, rec.end
}

// Detached reports whether the node was dropped by an edit of one of its ancestors.
func (r Ref) Detached() bool {
	return r.rec().detached
}

func (r Ref) rec() *record {
	return &r.doc.nodes[r.id]
}

func (r Ref) Name() string {
	return r.rec().name
}

func (r Ref) Tags() []string {
	return slices.Clone(r.rec().tags)
}

func (r Ref) Value() string {
	rec := r.rec()
	if rec.detached {
		return ""
	}
	return string(r.doc.src[rec.start:rec.end])
}

func (r Ref) Children() []Node {
	kids := r.rec().children
	out := make([]Node, len(kids))
	for i, k := range kids {
		out[i] = Ref{doc: r.doc, id: k}
	}
	return out
}

func (r Ref) Parent() Node {
	rec := r.rec()
	if rec.detached || rec.parent == NoParent {
		return nil
	}
	return Ref{doc: r.doc, id: rec.parent}
}

func (r Ref) Update(text string) {
	rec := r.rec()
	if rec.detached {
		return
	}
	r.doc.detachChildren(r.id)
	r.doc.splice(r.id, rec.start, rec.end, text, NoParent)
}

func (r Ref) Insert(offset int, text string) error {
	rec := r.rec()
	if rec.detached {
		return ErrNotEditable
	}
	at := rec.start + offset
	if offset < 0 || at > len(r.doc.src) {
		return fmt.Errorf("insert offset %d outside node %q of length %d", offset, rec.name, rec.end-rec.start)
	}
	if at > rec.end {
		for i, o := range r.doc.nodes {
			if o.detached || r.doc.under(ID(i), r.id) || r.doc.under(r.id, ID(i)) {
				continue
			}
			if o.start >= rec.end && o.start < at {
				return fmt.Errorf("insert offset %d of node %q passes node %q", offset, rec.name, o.name)
			}
		}
	}
	r.doc.splice(r.id, at, at, text, NoParent)
	return nil
}

func (r Ref) InsertBefore(text string) error {
	rec := r.rec()
	if rec.detached || rec.parent == NoParent {
		return ErrNotEditable
	}
	r.doc.splice(rec.parent, rec.start, rec.start, text, r.id)
	return nil
}

func (r Ref) Graft(name string, start, end int, tags ...string) (Node, error) {
	rec := r.rec()
	if rec.detached {
		return nil, ErrNotEditable
	}
	id, err := r.doc.Add(r.id, name, rec.start+start, rec.start+end, tags...)
	if err != nil {
		return nil, err
	}
	return Ref{doc: r.doc, id: id}, nil
}

func (r Ref) Column() int {
	start := r.rec().start
	lineStart := strings.LastIndexByte(string(r.doc.src[:start]), '\n') + 1
	return start - lineStart
}

func (r Ref) LineIndent() string {
	start := r.rec().start
	lineStart := strings.LastIndexByte(string(r.doc.src[:start]), '\n') + 1
	line := r.doc.src[lineStart:]
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return string(line[:n])
}

func (r Ref) String() string {
	rec := r.rec()
	return fmt.Sprintf("%s[%d:%d]", rec.name, rec.start, rec.end)
}

var (
	_ TextNode    = Ref{}
	_ ParentAware = Ref{}
	_ Editable    = Ref{}
)
