package yaml

import (
	"strconv"
	"strings"

	"github.com/oxhq/treelens/internal/tree"
)

// Style is the block scalar indicator.
type Style byte

const (
	Literal Style = '|'
	Folded  Style = '>'
)

func (s Style) String() string {
	if s == Folded {
		return "folded"
	}
	return "literal"
}

// Chomping controls the trailing line breaks of a block scalar.
type Chomping byte

const (
	Clip  Chomping = 0
	Strip Chomping = '-'
	Keep  Chomping = '+'
)

func (c Chomping) String() string {
	switch c {
	case Strip:
		return "strip"
	case Keep:
		return "keep"
	}
	return "clip"
}

// BlockScalar is implemented by the six block scalar views.
type BlockScalar interface {
	Text
	Style() Style
	Chomping() Chomping
}

type blockScalar struct {
	tree.TextNode
	style    Style
	chomping Chomping
}

func newBlock(n tree.TextNode, style Style, chomping Chomping) blockScalar {
	return blockScalar{TextNode: n, style: style, chomping: chomping}
}

// FoldedBlockScalar is a ">" scalar.
type FoldedBlockScalar struct{ blockScalar }

// FoldedBlockWithStripChomping is a ">-" scalar.
type FoldedBlockWithStripChomping struct{ blockScalar }

// FoldedBlockWithKeepChomping is a ">+" scalar.
type FoldedBlockWithKeepChomping struct{ blockScalar }

// LiteralBlockScalar is a "|" scalar.
type LiteralBlockScalar struct{ blockScalar }

// LiteralBlockWithStripChomping is a "|-" scalar.
type LiteralBlockWithStripChomping struct{ blockScalar }

// LiteralBlockWithKeepChomping is a "|+" scalar.
type LiteralBlockWithKeepChomping struct{ blockScalar }

func (b blockScalar) Style() Style {
	return b.style
}

func (b blockScalar) Chomping() Chomping {
	return b.chomping
}

// Text returns the content with indentation removed, folding applied for folded scalars
// and the trailing line breaks chomped.
func (b blockScalar) Text() string {
	header, body, ok := strings.Cut(b.Value(), "\n")
	if !ok {
		return ""
	}
	lines := bodyLines(body)
	indent := b.contentIndent(header, lines)

	last := -1
	for i, l := range lines {
		lines[i] = dedent(l, indent)
		if strings.TrimSpace(lines[i]) != "" {
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	trailing := len(lines) - 1 - last

	var text string
	if b.style == Folded {
		text = fold(lines[:last+1])
	} else {
		text = strings.Join(lines[:last+1], "\n")
	}

	switch b.chomping {
	case Strip:
		return text
	case Keep:
		return text + strings.Repeat("\n", 1+trailing)
	default:
		return text + "\n"
	}
}

// UpdateText rewrites the header and content lines. The current indentation is kept.
func (b blockScalar) UpdateText(s string) error {
	ed, err := editable(b.TextNode)
	if err != nil {
		return err
	}

	v := b.Value()
	header, body, _ := strings.Cut(v, "\n")
	indent := strings.Repeat(" ", b.contentIndent(header, bodyLines(body)))
	if indent == "" {
		indent = ed.LineIndent() + "  "
	}

	trimmed := strings.TrimRight(s, "\n")
	var lines []string
	if b.style == Folded {
		lines = unfold(trimmed)
	} else {
		lines = strings.Split(trimmed, "\n")
	}
	if b.chomping == Keep {
		for i := 1; i < len(s)-len(trimmed); i++ {
			lines = append(lines, "")
		}
	}

	var out strings.Builder
	out.WriteByte(byte(b.style))
	if b.chomping != Clip {
		out.WriteByte(byte(b.chomping))
	}
	if len(lines) > 0 && strings.HasPrefix(lines[0], " ") {
		if n := len(indent) - len(ed.LineIndent()); n > 0 && n < 10 {
			out.WriteString(strconv.Itoa(n))
		}
	}
	for _, l := range lines {
		out.WriteByte('\n')
		if l != "" {
			out.WriteString(indent + l)
		}
	}
	if strings.HasSuffix(v, "\n") {
		out.WriteByte('\n')
	}

	ed.Update(out.String())
	return nil
}

// contentIndent is the indentation of the content lines: the explicit indentation
// indicator when the header has one, the first non-blank line's otherwise.
func (b blockScalar) contentIndent(header string, lines []string) int {
	for _, c := range header[1:] {
		if c == ' ' || c == '#' {
			break
		}
		if c >= '1' && c <= '9' {
			base := 0
			if pa, ok := b.TextNode.(tree.Editable); ok {
				base = len(pa.LineIndent())
			}
			return base + int(c-'0')
		}
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		return len(l) - len(strings.TrimLeft(l, " "))
	}
	return 0
}

func bodyLines(body string) []string {
	if body == "" {
		return nil
	}
	lines := strings.Split(body, "\n")
	if strings.HasSuffix(body, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func dedent(l string, indent int) string {
	if len(l) >= indent && strings.TrimSpace(l[:indent]) == "" {
		return l[indent:]
	}
	return strings.TrimLeft(l, " ")
}

// fold joins lines the way a folded scalar is read: single breaks between text lines
// become spaces, empty lines become breaks, breaks around more-indented lines are kept.
func fold(lines []string) string {
	var b strings.Builder
	seen, prevMore := false, false
	breaks := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			breaks++
			continue
		}
		more := l[0] == ' ' || l[0] == '\t'
		switch {
		case !seen:
			b.WriteString(strings.Repeat("\n", breaks))
		case breaks == 0 && !more && !prevMore:
			b.WriteByte(' ')
		case !more && !prevMore:
			b.WriteString(strings.Repeat("\n", breaks))
		default:
			b.WriteString(strings.Repeat("\n", breaks+1))
		}
		b.WriteString(l)
		seen, prevMore, breaks = true, more, 0
	}
	return b.String()
}

// unfold is the inverse of fold for text without more-indented lines.
func unfold(s string) []string {
	var out []string
	for i, seg := range strings.Split(s, "\n") {
		if i > 0 {
			out = append(out, "")
		}
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

var (
	_ BlockScalar = FoldedBlockScalar{}
	_ BlockScalar = FoldedBlockWithStripChomping{}
	_ BlockScalar = FoldedBlockWithKeepChomping{}
	_ BlockScalar = LiteralBlockScalar{}
	_ BlockScalar = LiteralBlockWithStripChomping{}
	_ BlockScalar = LiteralBlockWithKeepChomping{}
)
