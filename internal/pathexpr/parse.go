package pathexpr

import (
	"strconv"
	"strings"
	"unicode"
)

type axis int

const (
	axisChild axis = iota
	axisDescendant
)

type testKind int

const (
	testName testKind = iota
	testAny
	testSelf
	testParent
	testTag
)

type predKind int

const (
	predName predKind = iota
	predValue
	predTag
	predPosition
)

type predicate struct {
	kind  predKind
	value string
	pos   int
}

type step struct {
	axis  axis
	test  testKind
	name  string
	preds []predicate
}

// Path is a compiled expression. It is immutable and may be reused.
type Path struct {
	expr  string
	steps []step
}

// String returns the source expression.
func (p *Path) String() string {
	return p.expr
}

// Compile parses expr.
func Compile(expr string) (*Path, error) {
	ps := &parser{expr: expr}
	steps, err := ps.parse()
	if err != nil {
		return nil, err
	}
	return &Path{expr: expr, steps: steps}, nil
}

// MustCompile is Compile for expressions known to be valid. It panics on error.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	expr string
	pos  int
}

func (ps *parser) fail(msg string) error {
	return &SyntaxError{Expr: ps.expr, Offset: ps.pos, Msg: msg}
}

func (ps *parser) eof() bool {
	return ps.pos >= len(ps.expr)
}

func (ps *parser) peek() byte {
	if ps.eof() {
		return 0
	}
	return ps.expr[ps.pos]
}

func (ps *parser) skipSpace() {
	for !ps.eof() && ps.expr[ps.pos] == ' ' {
		ps.pos++
	}
}

func (ps *parser) parse() ([]step, error) {
	if strings.TrimSpace(ps.expr) == "" {
		return nil, ps.fail("empty expression")
	}
	if strings.TrimSpace(ps.expr) == "/" {
		return []step{{axis: axisChild, test: testSelf}}, nil
	}

	var steps []step
	first := true
	for {
		ps.skipSpace()
		ax := axisChild
		switch {
		case strings.HasPrefix(ps.expr[ps.pos:], "//"):
			ax = axisDescendant
			ps.pos += 2
		case ps.peek() == '/':
			ps.pos++
		case !first:
			return nil, ps.fail("expected '/'")
		}
		first = false

		st, err := ps.step(ax)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)

		ps.skipSpace()
		if ps.eof() {
			return steps, nil
		}
	}
}

func (ps *parser) step(ax axis) (step, error) {
	ps.skipSpace()
	st := step{axis: ax}

	switch c := ps.peek(); {
	case c == 0 || c == '/':
		return st, ps.fail("missing node test")
	case c == '*':
		ps.pos++
		st.test = testAny
	case c == '\'' || c == '"':
		name, err := ps.quoted()
		if err != nil {
			return st, err
		}
		st.test, st.name = testName, name
	default:
		start := ps.pos
		name := ps.bare()
		if name == "" {
			return st, ps.fail("unexpected character " + strconv.QuoteRune(rune(c)))
		}
		switch {
		case name == ".":
			st.test = testSelf
		case name == "..":
			st.test = testParent
		case strings.HasPrefix(ps.expr[ps.pos:], "()"):
			ps.pos += 2
			st.test, st.name = testTag, name
		default:
			st.test, st.name = testName, name
		}
		if st.test == testTag && !validTag(name) {
			ps.pos = start
			return st, ps.fail("invalid tag test " + strconv.Quote(name))
		}
	}

	for {
		ps.skipSpace()
		if ps.peek() != '[' {
			return st, nil
		}
		pr, err := ps.predicate()
		if err != nil {
			return st, err
		}
		st.preds = append(st.preds, pr)
	}
}

func (ps *parser) predicate() (predicate, error) {
	ps.pos++ // '['
	ps.skipSpace()

	var pr predicate
	switch c := ps.peek(); {
	case c == '@':
		ps.pos++
		switch attr := ps.bare(); attr {
		case "name":
			pr.kind = predName
		case "value":
			pr.kind = predValue
		case "tag":
			pr.kind = predTag
		default:
			return pr, ps.fail("unknown attribute " + strconv.Quote(attr))
		}
		ps.skipSpace()
		if ps.peek() != '=' {
			return pr, ps.fail("expected '='")
		}
		ps.pos++
		ps.skipSpace()
		if c := ps.peek(); c != '\'' && c != '"' {
			return pr, ps.fail("expected quoted string")
		}
		v, err := ps.quoted()
		if err != nil {
			return pr, err
		}
		pr.value = v
	case c >= '0' && c <= '9':
		start := ps.pos
		for !ps.eof() && ps.peek() >= '0' && ps.peek() <= '9' {
			ps.pos++
		}
		n, err := strconv.Atoi(ps.expr[start:ps.pos])
		if err != nil || n < 1 {
			ps.pos = start
			return pr, ps.fail("position must be a positive integer")
		}
		pr.kind, pr.pos = predPosition, n
	default:
		return pr, ps.fail("expected '@' or position")
	}

	ps.skipSpace()
	if ps.peek() != ']' {
		return pr, ps.fail("expected ']'")
	}
	ps.pos++
	return pr, nil
}

func (ps *parser) quoted() (string, error) {
	q := ps.expr[ps.pos]
	start := ps.pos
	end := strings.IndexByte(ps.expr[start+1:], q)
	if end < 0 {
		return "", ps.fail("unterminated string")
	}
	ps.pos = start + 1 + end + 1
	return ps.expr[start+1 : start+1+end], nil
}

func (ps *parser) bare() string {
	start := ps.pos
	for !ps.eof() && isNameByte(ps.expr[ps.pos]) {
		ps.pos++
	}
	return ps.expr[start:ps.pos]
}

func isNameByte(c byte) bool {
	switch c {
	case '/', '[', ']', '(', ')', '\'', '"', '=', '@', '*', ' ':
		return false
	}
	return c > ' '
}

func validTag(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return s != ""
}
