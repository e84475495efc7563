package treehelper

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/oxhq/treelens/internal/tree"
)

// DefaultMaxValueLen is the value length from which NodeAndValueStringifier abbreviates
// branch nodes to their length.
const DefaultMaxValueLen = 30

const indentStep = "  "

// NodeStringifier renders one node as a single line.
type NodeStringifier func(tree.TextNode) string

// NodeAndValueStringifier renders leaves as name:[value] and branches as name:[value] when
// the value is shorter than maxLen, name:len=N otherwise.
func NodeAndValueStringifier(maxLen int) NodeStringifier {
	return func(n tree.TextNode) string {
		v := n.Value()
		if len(n.Children()) == 0 || len(v) < maxLen {
			return fmt.Sprintf("%s:[%s]", n.Name(), v)
		}
		return fmt.Sprintf("%s:len=%d", n.Name(), len(v))
	}
}

// NodeAndTagsStringifier renders leaves as name:[value] and branches as name:[tag, tag].
func NodeAndTagsStringifier(n tree.TextNode) string {
	if len(n.Children()) == 0 {
		return fmt.Sprintf("%s:[%s]", n.Name(), n.Value())
	}
	return fmt.Sprintf("%s:[%s]", n.Name(), strings.Join(n.Tags(), ", "))
}

// Stringify dumps the subtree rooted at n, one node per line, each level indented two
// spaces deeper than its parent. A nil stringifier means
// NodeAndValueStringifier(DefaultMaxValueLen).
//
// Children whose value is empty are left out together with their whole subtree.
func Stringify(n tree.TextNode, s NodeStringifier) string {
	return strings.Join(stringifyLines(n, resolve(s), false), "\n")
}

// StringifyStrict is Stringify without the empty-value filter.
func StringifyStrict(n tree.TextNode, s NodeStringifier) string {
	return strings.Join(stringifyLines(n, resolve(s), true), "\n")
}

func resolve(s NodeStringifier) NodeStringifier {
	if s == nil {
		return NodeAndValueStringifier(DefaultMaxValueLen)
	}
	return s
}

func stringifyLines(n tree.TextNode, s NodeStringifier, strict bool) []string {
	var nested [][]string
	for _, c := range n.Children() {
		tc, ok := c.(tree.TextNode)
		if !ok {
			continue
		}
		if !strict && tc.Value() == "" {
			continue
		}
		nested = append(nested, stringifyLines(tc, s, strict))
	}

	lines := Flatten(append([][]string{{s(n)}}, nested...)...)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l == "" {
			continue
		}
		out = append(out, indentStep+l)
	}
	return out
}

// Flatten concatenates groups in order.
func Flatten[T any](groups ...[]T) []T {
	size := 0
	for _, g := range groups {
		size += len(g)
	}
	out := make([]T, 0, size)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// FlattenDeep linearizes arbitrarily nested slices and arrays, depth first.
// A value that is not a slice or array yields itself.
func FlattenDeep(v any) []any {
	var out []any
	flattenInto(reflect.ValueOf(v), &out)
	return out
}

func flattenInto(v reflect.Value, out *[]any) {
	if !v.IsValid() {
		*out = append(*out, nil)
		return
	}
	if v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			*out = append(*out, v.Interface())
			return
		}
		for i := 0; i < v.Len(); i++ {
			flattenInto(v.Index(i), out)
		}
	default:
		*out = append(*out, v.Interface())
	}
}
