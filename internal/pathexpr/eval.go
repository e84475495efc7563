package pathexpr

import (
	"reflect"
	"sort"

	"github.com/oxhq/treelens/internal/tree"
)

// Select evaluates the path against root and returns the matches in document order
// without duplicates.
func (p *Path) Select(root tree.Node) []tree.Node {
	order := documentOrder(root)

	ctx := []tree.Node{root}
	for _, st := range p.steps {
		var next []tree.Node
		seen := make(map[any]bool)
		for _, n := range ctx {
			for _, c := range st.filter(st.candidates(n)) {
				if k := identity(c); k != nil {
					if seen[k] {
						continue
					}
					seen[k] = true
				}
				next = append(next, c)
			}
		}
		sortByOrder(next, order)
		ctx = next
		if len(ctx) == 0 {
			break
		}
	}
	return ctx
}

func (st step) candidates(n tree.Node) []tree.Node {
	var base []tree.Node
	switch st.axis {
	case axisDescendant:
		base = descendants(n)
	default:
		switch st.test {
		case testSelf:
			return []tree.Node{n}
		case testParent:
			if p := parentOf(n); p != nil {
				return []tree.Node{p}
			}
			return nil
		}
		base = children(n)
	}

	var out []tree.Node
	for _, c := range base {
		switch st.test {
		case testAny, testSelf:
			out = append(out, c)
		case testParent:
			if p := parentOf(c); p != nil {
				out = append(out, p)
			}
		case testName:
			if c.Name() == st.name {
				out = append(out, c)
			}
		case testTag:
			if tree.Contains(c.Tags(), st.name) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (st step) filter(nodes []tree.Node) []tree.Node {
	for _, pr := range st.preds {
		var kept []tree.Node
		for i, n := range nodes {
			if pr.matches(n, i+1) {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	return nodes
}

func (pr predicate) matches(n tree.Node, pos int) bool {
	switch pr.kind {
	case predName:
		return n.Name() == pr.value
	case predValue:
		tn, ok := n.(tree.TextNode)
		return ok && tn.Value() == pr.value
	case predTag:
		return tree.Contains(n.Tags(), pr.value)
	case predPosition:
		return pos == pr.pos
	}
	return false
}

func children(n tree.Node) []tree.Node {
	tn, ok := n.(tree.TextNode)
	if !ok {
		return nil
	}
	return tn.Children()
}

func descendants(n tree.Node) []tree.Node {
	var out []tree.Node
	for _, c := range children(n) {
		out = append(out, c)
		out = append(out, descendants(c)...)
	}
	return out
}

func parentOf(n tree.Node) tree.Node {
	pa, ok := n.(tree.ParentAware)
	if !ok {
		return nil
	}
	return pa.Parent()
}

// identity returns a map key for n, or nil when n's dynamic type cannot be compared.
func identity(n tree.Node) any {
	if n == nil || !reflect.TypeOf(n).Comparable() {
		return nil
	}
	return n
}

func documentOrder(root tree.Node) map[any]int {
	order := make(map[any]int)
	i := 0
	var walk func(tree.Node)
	walk = func(n tree.Node) {
		if k := identity(n); k != nil {
			if _, ok := order[k]; !ok {
				order[k] = i
			}
		}
		i++
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(root)
	return order
}

func sortByOrder(nodes []tree.Node, order map[any]int) {
	rank := func(n tree.Node) int {
		if k := identity(n); k != nil {
			if r, ok := order[k]; ok {
				return r
			}
		}
		return len(order)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return rank(nodes[i]) < rank(nodes[j])
	})
}
