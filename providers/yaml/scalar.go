package yaml

import (
	"strconv"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/oxhq/treelens/internal/tree"
	"github.com/oxhq/treelens/internal/treehelper"
)

// Text is implemented by every scalar view.
type Text interface {
	tree.TextNode

	// Text is the scalar's content with quoting, escapes and block folding resolved.
	Text() string

	// UpdateText rewrites the scalar so that Text returns s, keeping its style where the
	// style can represent s.
	UpdateText(s string) error
}

// QuotedValue is a double-quoted scalar.
type QuotedValue struct {
	tree.TextNode
}

// Text returns the unescaped content.
func (q QuotedValue) Text() string {
	return scalarText(q.Value())
}

// UpdateText writes s as a double-quoted scalar.
func (q QuotedValue) UpdateText(s string) error {
	ed, err := editable(q.TextNode)
	if err != nil {
		return err
	}
	ed.Update(doubleQuote(s))
	return nil
}

// RawValue is a plain or single-quoted scalar.
type RawValue struct {
	tree.TextNode
}

// Text returns the scalar's content.
func (r RawValue) Text() string {
	return scalarText(r.Value())
}

// UpdateText writes s in the scalar's current style, switching to double quotes when that
// style cannot hold s. A plain scalar stays plain when s reads back as a string or as the
// same type the scalar had, so 8080 may become 9090 but not true.
func (r RawValue) UpdateText(s string) error {
	ed, err := editable(r.TextNode)
	if err != nil {
		return err
	}
	old := r.Value()
	if old == "" && !spaceBefore(ed) {
		if err := ed.InsertBefore(" "); err != nil {
			return err
		}
	}
	switch {
	case strings.HasPrefix(old, "'") && !strings.ContainsAny(s, "\n\r"):
		ed.Update("'" + strings.ReplaceAll(s, "'", "''") + "'")
	case plainKeeps(old, s, inFlow(ed)):
		ed.Update(s)
	default:
		ed.Update(doubleQuote(s))
	}
	return nil
}

func editable(n tree.TextNode) (tree.Editable, error) {
	ed, ok := n.(tree.Editable)
	if !ok {
		return nil, tree.ErrNotEditable
	}
	return ed, nil
}

// inFlow reports whether n sits inside a flow collection.
func inFlow(n tree.ParentAware) bool {
	return treehelper.FindAncestorWithTag(n, TagFlow) != nil
}

// render formats s as a scalar for insertion, plain when possible.
func render(s string, flow bool) string {
	if plainSafe(s, flow) {
		return s
	}
	return doubleQuote(s)
}

// doubleQuote escapes s for a double-quoted scalar. Every escape strconv produces is also
// a YAML escape.
func doubleQuote(s string) string {
	return strconv.Quote(s)
}

// plainSafe reports whether s reads back unchanged, as a string, from a plain scalar.
func plainSafe(s string, flow bool) bool {
	tag, ok := plainTag(s, flow)
	return ok && tag == strTag
}

// plainKeeps reports whether s may replace the plain scalar old without quoting.
func plainKeeps(old, s string, flow bool) bool {
	tag, ok := plainTag(s, flow)
	if !ok {
		return false
	}
	if tag == strTag {
		return true
	}
	oldTag, ok := plainTag(old, flow)
	return ok && oldTag == tag
}

const strTag = "!!str"

// plainTag resolves s as a plain scalar. ok is false when s would not read back as the
// same text.
func plainTag(s string, flow bool) (tag string, ok bool) {
	if s == "" || strings.TrimSpace(s) != s {
		return "", false
	}
	if strings.ContainsAny(s, "\n\r\t") {
		return "", false
	}
	if strings.ContainsRune("-?:,[]{}#&*!|>'\"%@`", rune(s[0])) {
		if !(len(s) > 1 && strings.ContainsRune("-?:", rune(s[0])) && s[1] != ' ') {
			return "", false
		}
	}
	if strings.Contains(s, ": ") || strings.Contains(s, " #") || strings.HasSuffix(s, ":") {
		return "", false
	}
	if flow && strings.ContainsAny(s, ",[]{}") {
		return "", false
	}
	// Must read back as the same text.
	var n yamlv3.Node
	if err := yamlv3.Unmarshal([]byte(s), &n); err != nil || len(n.Content) != 1 {
		return "", false
	}
	v := n.Content[0]
	if v.Kind != yamlv3.ScalarNode || v.Value != s {
		return "", false
	}
	return v.ShortTag(), true
}

// spaceBefore reports whether the byte before n in its document is blank, or n starts
// the document.
func spaceBefore(n tree.Editable) bool {
	src, base := source(n)
	start, _ := n.Span()
	i := start - base - 1
	return i < 0 || i >= len(src) || strings.IndexByte(" \t\n", src[i]) >= 0
}

// source returns the text of n's root and the offset that text starts at.
func source(n tree.Editable) (string, int) {
	var root tree.Editable = n
	for {
		p, ok := root.Parent().(tree.Editable)
		if !ok {
			break
		}
		root = p
	}
	start, _ := root.Span()
	return root.Value(), start
}
