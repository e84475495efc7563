package yaml

import (
	"errors"
	"strings"

	"github.com/oxhq/treelens/internal/tree"
)

// ErrMalformedSequence is returned when a sequence's text does not have the shape its tags
// announce, such as a flow sequence without a closing bracket.
var ErrMalformedSequence = errors.New("malformed sequence")

// Sequence is a block or flow sequence.
type Sequence struct {
	tree.TextNode
}

// IsFlow reports whether the sequence is written in flow style.
func (s Sequence) IsFlow() bool {
	return tree.Contains(s.Tags(), TagFlow)
}

// Elements returns the element nodes in order.
func (s Sequence) Elements() []tree.Node {
	return s.Children()
}

// Values returns the text of each element. Scalars are unquoted; other elements yield
// their raw text.
func (s Sequence) Values() []string {
	var c Classifier
	elems := s.Elements()
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		switch v := c.DecoratorFor(e).(type) {
		case Text:
			out = append(out, v.Text())
		default:
			if tn, ok := e.(tree.TextNode); ok {
				out = append(out, tn.Value())
			}
		}
	}
	return out
}

// AddElement appends value as a new last element, following the sequence's style and
// indentation. The new element is part of the tree as soon as AddElement returns.
func (s Sequence) AddElement(value string) error {
	ed, err := editable(s.TextNode)
	if err != nil {
		return err
	}
	if s.IsFlow() {
		return s.addFlow(ed, value)
	}
	return s.addBlock(ed, value)
}

func (s Sequence) addBlock(ed tree.Editable, value string) error {
	start, _ := ed.Span()
	v := ed.Value()
	src, base := source(ed)
	rendered := render(value, inFlow(ed))

	elems := s.Elements()
	at := len(strings.TrimRight(v, " \t\n"))
	col := ed.Column()
	if len(elems) > 0 {
		first, ok := elems[0].(tree.Editable)
		last, ok2 := elems[len(elems)-1].(tree.Editable)
		if !ok || !ok2 {
			return tree.ErrNotEditable
		}
		fs, _ := first.Span()
		_, le := last.Span()
		at = le - start
		col = dashColumn(v, fs-start, ed.Column())
		if end := lineEnd(src, le-base); end > le-base {
			// A comment trailing the last element stays on its line.
			rest := strings.TrimSpace(src[le-base : end])
			if rest == "" || strings.HasPrefix(rest, "#") {
				at = end + base - start
			}
		}
	}

	indent := strings.Repeat(" ", col)
	var text string
	var off int
	if at > 0 && src[start-base+at-1] == '\n' {
		text = indent + "- " + rendered + "\n"
		off = at + len(indent) + 2
	} else {
		text = "\n" + indent + "- " + rendered
		off = at + 1 + len(indent) + 2
	}

	if err := ed.Insert(at, text); err != nil {
		return err
	}
	_, err := ed.Graft(ItemName, off, off+len(rendered), scalarTags(rendered)...)
	return err
}

func (s Sequence) addFlow(ed tree.Editable, value string) error {
	start, _ := ed.Span()
	v := ed.Value()
	rendered := render(value, true)

	closing := strings.LastIndexByte(v, ']')
	if closing < 0 {
		return ErrMalformedSequence
	}

	at, text, off := closing, rendered, closing
	if elems := s.Elements(); len(elems) > 0 {
		last, ok := elems[len(elems)-1].(tree.Editable)
		if !ok {
			return tree.ErrNotEditable
		}
		_, le := last.Span()
		at = le - start
		text = ", " + rendered
		off = at + 2
	}

	if err := ed.Insert(at, text); err != nil {
		return err
	}
	_, err := ed.Graft(ItemName, off, off+len(rendered), scalarTags(rendered)...)
	return err
}

// lineEnd returns the offset of the newline ending the line that holds i, or len(src).
// An i at the start of a line yields i.
func lineEnd(src string, i int) int {
	if i <= 0 || i > len(src) || src[i-1] == '\n' {
		return i
	}
	if n := strings.IndexByte(src[i:], '\n'); n >= 0 {
		return i + n
	}
	return len(src)
}

// dashColumn finds the column of the "-" introducing the element at offset elem of v.
// base is the column v starts at.
func dashColumn(v string, elem, base int) int {
	dash := strings.LastIndexByte(v[:elem], '-')
	if dash < 0 {
		return base
	}
	lineStart := strings.LastIndexByte(v[:dash], '\n') + 1
	if lineStart == 0 {
		return base + dash
	}
	return dash - lineStart
}

func scalarTags(rendered string) []string {
	if strings.HasPrefix(rendered, `"`) {
		return []string{TagScalar, TagDoubleQuoted}
	}
	return []string{TagScalar, TagPlain}
}
