package pathexpr

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/treelens/internal/tree"
)

const amplifierSrc = "components:\n" +
	"  Amplifier:\n" +
	"    future upgrades:\n" +
	"      - A\n" +
	"      - B\n" +
	"  Speaker: wood\n"

func span(t *testing.T, src, from, to string) (int, int) {
	t.Helper()
	start := strings.Index(src, from)
	require.GreaterOrEqual(t, start, 0, from)
	end := strings.Index(src, to)
	require.GreaterOrEqual(t, end, 0, to)
	return start, end + len(to)
}

func buildAmplifier(t *testing.T) *tree.Document {
	t.Helper()
	src := amplifierSrc
	doc := tree.NewDocument(src)

	add := func(parent tree.ID, name, from, to string, tags ...string) tree.ID {
		s, e := span(t, src, from, to)
		id, err := doc.Add(parent, name, s, e, tags...)
		require.NoError(t, err)
		return id
	}

	root, err := doc.Add(tree.NoParent, "amp.yaml", 0, len(src), "YamlFile", "Mapping")
	require.NoError(t, err)
	components := add(root, "components", "Amplifier:", "wood", "Mapping")
	amp := add(components, "Amplifier", "future upgrades:", "- B", "Mapping")
	seq := add(amp, "future upgrades", "- A", "- B", "Sequence")
	for _, item := range []string{"- A", "- B"} {
		s := strings.Index(src, item) + 2
		_, err := doc.Add(seq, "item", s, s+1, "Scalar", "Plain")
		require.NoError(t, err)
	}
	add(components, "Speaker", "wood", "wood", "Scalar", "Plain")
	return doc
}

func names(nodes []tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}

func values(nodes []tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.(tree.TextNode).Value()
	}
	return out
}

func TestEvaluate(t *testing.T) {
	doc := buildAmplifier(t)
	ev := New()

	tests := []struct {
		name       string
		expr       string
		wantNames  []string
		wantValues []string
	}{
		{
			name:      "root",
			expr:      "/",
			wantNames: []string{"amp.yaml"},
		},
		{
			name:      "root with spaces",
			expr:      " / ",
			wantNames: []string{"amp.yaml"},
		},
		{
			name:      "name predicate",
			expr:      "/components/Amplifier/*[@name='future upgrades']",
			wantNames: []string{"future upgrades"},
		},
		{
			name:       "quoted step without leading slash",
			expr:       "components/Amplifier/'future upgrades'/item",
			wantValues: []string{"A", "B"},
		},
		{
			name:       "descendants",
			expr:       "//item",
			wantValues: []string{"A", "B"},
		},
		{
			name:       "position",
			expr:       "//item[2]",
			wantValues: []string{"B"},
		},
		{
			name:       "tag test in document order",
			expr:       "//Scalar()",
			wantValues: []string{"A", "B", "wood"},
		},
		{
			name:      "parent steps are deduplicated",
			expr:      "//item/..",
			wantNames: []string{"future upgrades"},
		},
		{
			name:      "self",
			expr:      "/components/.",
			wantNames: []string{"components"},
		},
		{
			name:      "value predicate",
			expr:      "//*[@value='wood']",
			wantNames: []string{"Speaker"},
		},
		{
			name:      "tag predicate",
			expr:      "//*[@tag='Sequence']",
			wantNames: []string{"future upgrades"},
		},
		{
			name:       "chained predicates",
			expr:       "//*[@tag='Scalar'][2]",
			wantValues: []string{"B"},
		},
		{
			name:      "all descendants",
			expr:      "//*",
			wantNames: []string{"components", "Amplifier", "future upgrades", "item", "item", "Speaker"},
		},
		{
			name: "no match",
			expr: "/components/missing",
		},
		{
			name: "parent of root",
			expr: "/..",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(doc.Root(), tt.expr, nil)
			require.NoError(t, err)
			if tt.wantNames == nil && tt.wantValues == nil {
				assert.Empty(t, got)
				return
			}
			if tt.wantNames != nil {
				assert.Equal(t, tt.wantNames, names(got))
			}
			if tt.wantValues != nil {
				assert.Equal(t, tt.wantValues, values(got))
			}
		})
	}
}

func TestEvaluateSyntaxErrors(t *testing.T) {
	exprs := []string{
		"",
		"   ",
		"/a/",
		"//",
		"/a[",
		"/a[@foo='x']",
		"/a[@name=x]",
		"/a[@name='x'",
		"/a[0]",
		"/a[-1]",
		"/a b",
		"/'unterminated",
		"/Bad-Tag()",
		"/a]",
	}

	ev := New()
	root := tree.Tagged{NodeName: "root", NodeTags: []string{"X"}}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := ev.Evaluate(root, expr, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, expr, se.Expr)
		})
	}
}

func TestCompile(t *testing.T) {
	p, err := Compile("/a//b[@tag='T'][1]")
	require.NoError(t, err)
	assert.Equal(t, "/a//b[@tag='T'][1]", p.String())
	require.Len(t, p.steps, 2)
	assert.Equal(t, axisDescendant, p.steps[1].axis)
	assert.Len(t, p.steps[1].preds, 2)

	assert.Panics(t, func() { MustCompile("/a[") })
}

func TestEvaluateCallback(t *testing.T) {
	doc := buildAmplifier(t)
	ev := New()

	t.Run("runs in order and allows nested queries", func(t *testing.T) {
		var seen []string
		got, err := ev.Evaluate(doc.Root(), "//*[@tag='Sequence']", func(n tree.Node) error {
			items, err := ev.Evaluate(n, "item", nil)
			if err != nil {
				return err
			}
			seen = append(seen, values(items)...)
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, []string{"A", "B"}, seen)
	})

	t.Run("callback error stops evaluation", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, err := ev.Evaluate(doc.Root(), "//item", func(tree.Node) error {
			calls++
			return boom
		})
		assert.Same(t, boom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("edits in callback do not change the match set", func(t *testing.T) {
		doc := buildAmplifier(t)
		got, err := ev.Evaluate(doc.Root(), "//item", func(n tree.Node) error {
			n.(tree.Editable).Update("changed")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"changed", "changed"}, values(got))
		assert.Contains(t, doc.Source(), "- changed\n      - changed\n")
	})
}

func TestWithAndSelect(t *testing.T) {
	doc := buildAmplifier(t)
	ev := New()

	var editable []string
	err := With(ev, doc.Root(), "//Scalar()", func(n tree.Editable) error {
		editable = append(editable, n.Value())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "wood"}, editable)

	called := false
	err = With(ev, doc.Root(), "//item", func(*tree.Leaf) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "matches of another type are skipped")

	refs, err := Select[tree.Ref](ev, doc.Root(), "//item")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "B", refs[1].Value())

	_, err = Select[tree.Ref](ev, doc.Root(), "/a[")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestEvaluateOnHandBuiltTree(t *testing.T) {
	root := &tree.Leaf{
		NodeName: "root",
		Text:     "x",
		ChildList: []tree.Node{
			&tree.Leaf{NodeName: "a", NodeTags: []string{"T"}, Text: "1"},
			tree.Tagged{NodeName: "a", NodeTags: []string{"T"}},
		},
	}

	got, err := New().Evaluate(root, "/a", nil)
	require.NoError(t, err)
	assert.Len(t, got, 2, "nodes that cannot be compared are kept")

	got, err = New().Evaluate(root, "/a[@value='1']", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].(tree.TextNode).Value())
}
