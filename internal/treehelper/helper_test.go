package treehelper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/treelens/internal/tree"
)

// chain builds root -> mid -> leaf with the given tags on each level.
func chain(t *testing.T, rootTags, midTags, leafTags []string) (*tree.Document, tree.Ref) {
	t.Helper()
	src := "root mid leaf"
	doc := tree.NewDocument(src)
	root, err := doc.Add(tree.NoParent, "root", 0, len(src), rootTags...)
	require.NoError(t, err)
	mid, err := doc.Add(root, "mid", 5, len(src), midTags...)
	require.NoError(t, err)
	leaf, err := doc.Add(mid, "leaf", 9, len(src), leafTags...)
	require.NoError(t, err)
	return doc, doc.Node(leaf)
}

func TestHasTag(t *testing.T) {
	n := tree.Tagged{NodeName: "n", NodeTags: []string{"B", "A"}}

	assert.True(t, HasTag(n, "A"))
	assert.True(t, HasTag(n, "B"))
	assert.False(t, HasTag(n, "C"))
	assert.False(t, HasTag(tree.Tagged{NodeName: "empty"}, "A"))
}

func TestFindAncestorWithTag(t *testing.T) {
	t.Run("nearest qualifying ancestor wins", func(t *testing.T) {
		_, leaf := chain(t, []string{"X"}, []string{"X"}, nil)
		got := FindAncestorWithTag(leaf, "X")
		require.NotNil(t, got)
		assert.Equal(t, "mid", got.Name())
	})

	t.Run("reaches the root", func(t *testing.T) {
		_, leaf := chain(t, []string{"X"}, nil, nil)
		got := FindAncestorWithTag(leaf, "X")
		require.NotNil(t, got)
		assert.Equal(t, "root", got.Name())
	})

	t.Run("node itself is not an ancestor", func(t *testing.T) {
		_, leaf := chain(t, nil, nil, []string{"X"})
		assert.Nil(t, FindAncestorWithTag(leaf, "X"))
	})

	t.Run("root has no ancestors", func(t *testing.T) {
		doc, _ := chain(t, []string{"X"}, nil, nil)
		assert.Nil(t, FindAncestorWithTag(doc.Root(), "X"))
	})
}

func TestFindAncestorPredicate(t *testing.T) {
	_, leaf := chain(t, nil, nil, nil)
	var visited []string
	got := FindAncestor(leaf, func(n tree.Node) bool {
		visited = append(visited, n.Name())
		return false
	})
	assert.Nil(t, got)
	assert.Equal(t, []string{"mid", "root"}, visited)
}

func TestFindPathFromAncestor(t *testing.T) {
	src := "a b c d"
	doc := tree.NewDocument(src)
	root, _ := doc.Add(tree.NoParent, "root", 0, len(src), "Top")
	b, _ := doc.Add(root, "b", 2, len(src))
	c, _ := doc.Add(b, "c", 4, len(src))
	d, _ := doc.Add(c, "d", 6, len(src))

	tests := []struct {
		name     string
		from     tree.ID
		tag      string
		wantPath string
		wantOK   bool
	}{
		{name: "depth three", from: d, tag: "Top", wantPath: "/b/c/d", wantOK: true},
		{name: "depth one", from: b, tag: "Top", wantPath: "/b", wantOK: true},
		{name: "no qualifying ancestor", from: d, tag: "Missing"},
		{name: "root has no path", from: root, tag: "Top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindPathFromAncestorWithTag(doc.Node(tt.from), tt.tag)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPath, got)
		})
	}
}

func TestFindPathFromAncestorSegmentsMatchDepth(t *testing.T) {
	_, leaf := chain(t, []string{"Top"}, nil, nil)
	path, ok := FindPathFromAncestorWithTag(leaf, "Top")
	require.True(t, ok)
	assert.Equal(t, "/mid/leaf", path)
}

func TestFindPathFromAncestorKeepsSameNamedSiblingsAmbiguous(t *testing.T) {
	src := "- a\n- b"
	doc := tree.NewDocument(src)
	root, _ := doc.Add(tree.NoParent, "seq", 0, len(src), "Sequence")
	first, _ := doc.Add(root, "item", 2, 3, "Scalar")
	second, _ := doc.Add(root, "item", 6, 7, "Scalar")

	p1, ok1 := FindPathFromAncestorWithTag(doc.Node(first), "Sequence")
	p2, ok2 := FindPathFromAncestorWithTag(doc.Node(second), "Sequence")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, p1, p2)
}

// detachedParent is parent-aware but returns a parent that is not.
type detachedParent struct{ tree.Leaf }

func (detachedParent) Parent() tree.Node {
	return tree.Tagged{NodeName: "graph", NodeTags: []string{"G"}}
}

func TestAncestorWalkStopsAtNonParentAwareNode(t *testing.T) {
	n := &detachedParent{tree.Leaf{NodeName: "child"}}

	assert.Nil(t, FindAncestorWithTag(n, "Other"))
	assert.Equal(t, "graph", FindAncestorWithTag(n, "G").Name())

	_, ok := FindPathFromAncestorWithTag(n, "Other")
	assert.False(t, ok)
	path, ok := FindPathFromAncestorWithTag(n, "G")
	assert.True(t, ok)
	assert.Equal(t, "/child", path)
}

func TestStringify(t *testing.T) {
	root := &tree.Leaf{
		NodeName: "root",
		NodeTags: []string{"Mapping"},
		Text:     "name: treelens\nitems: [a, b]\nextra: value\n",
		ChildList: []tree.Node{
			&tree.Leaf{NodeName: "name", NodeTags: []string{"Scalar"}, Text: "treelens"},
			&tree.Leaf{NodeName: "empty", NodeTags: []string{"Scalar"}, Text: ""},
			&tree.Leaf{
				NodeName: "items",
				NodeTags: []string{"Sequence"},
				Text:     "[a, b]",
				ChildList: []tree.Node{
					&tree.Leaf{NodeName: "item", NodeTags: []string{"Scalar"}, Text: "a"},
					&tree.Leaf{NodeName: "item", NodeTags: []string{"Scalar"}, Text: "b"},
				},
			},
		},
	}

	t.Run("default stringifier", func(t *testing.T) {
		want := "  root:len=42\n" +
			"    name:[treelens]\n" +
			"    items:[[a, b]]\n" +
			"      item:[a]\n" +
			"      item:[b]"
		assert.Equal(t, want, Stringify(root, nil))
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, Stringify(root, nil), Stringify(root, nil))
	})

	t.Run("tags stringifier", func(t *testing.T) {
		want := "  root:[Mapping]\n" +
			"    name:[treelens]\n" +
			"    items:[Sequence]\n" +
			"      item:[a]\n" +
			"      item:[b]"
		assert.Equal(t, want, Stringify(root, NodeAndTagsStringifier))
	})

	t.Run("strict keeps empty children", func(t *testing.T) {
		got := StringifyStrict(root, NodeAndTagsStringifier)
		assert.Contains(t, got, "    empty:[]")
	})

	t.Run("empty lines are dropped", func(t *testing.T) {
		onlyLeaves := func(n tree.TextNode) string {
			if len(n.Children()) > 0 {
				return ""
			}
			return n.Name()
		}
		want := "    name\n" +
			"      item\n" +
			"      item"
		assert.Equal(t, want, Stringify(root, onlyLeaves))
	})
}

func TestNodeAndValueStringifier(t *testing.T) {
	branch := &tree.Leaf{
		NodeName:  "b",
		Text:      "0123456789",
		ChildList: []tree.Node{&tree.Leaf{NodeName: "c", Text: "0"}},
	}
	assert.Equal(t, "b:[0123456789]", NodeAndValueStringifier(11)(branch))
	assert.Equal(t, "b:len=10", NodeAndValueStringifier(10)(branch))

	leaf := &tree.Leaf{NodeName: "l", Text: "a long leaf value is never abbreviated"}
	assert.Equal(t, "l:[a long leaf value is never abbreviated]", NodeAndValueStringifier(3)(leaf))
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, Flatten([]int{1}, nil, []int{2, 3}))
	assert.Empty(t, Flatten[string]())

	nested := []any{1, []any{2, []int{3, 4}}, [2]string{"a", "b"}, []byte("raw")}
	assert.Equal(t, []any{1, 2, 3, 4, "a", "b", []byte("raw")}, FlattenDeep(nested))
	assert.Equal(t, []any{"scalar"}, FlattenDeep("scalar"))
}

func TestReplace(t *testing.T) {
	text := &tree.Leaf{NodeName: "name", NodeTags: []string{"Scalar", "Plain"}, Text: "treelens"}
	graph := tree.Tagged{NodeName: "vertex", NodeTags: []string{"A", "B"}}

	assert.Equal(t, TextNodeRecord{
		Kind:      KindTextNode,
		Name:      "name",
		Tags:      "Scalar,Plain",
		Structure: "name:[treelens]",
	}, Replace(text, nil))

	assert.Equal(t, GraphNodeRecord{
		Kind:    KindGraphNode,
		Name:    "vertex",
		Tags:    "A,B",
		Display: "vertex(A,B)",
	}, Replace(graph, nil))

	assert.Equal(t, 42, Replace(42, nil))
	assert.Equal(t, "plain", Replacer(NodeAndTagsStringifier)("plain"))
}

func TestMarshalNodes(t *testing.T) {
	nodes := []tree.Node{
		&tree.Leaf{NodeName: "name", NodeTags: []string{"Scalar"}, Text: "treelens"},
		tree.Tagged{NodeName: "vertex", NodeTags: []string{"A"}},
	}
	data, err := MarshalNodes(nodes, nil)
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "TextNode", decoded[0]["kind"])
	assert.Equal(t, "name:[treelens]", decoded[0]["structure"])
	assert.Equal(t, "GraphNode", decoded[1]["kind"])
	assert.Equal(t, "vertex(A)", decoded[1]["display"])
}
