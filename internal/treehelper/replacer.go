package treehelper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oxhq/treelens/internal/tree"
)

// Record kinds produced by the serialization hook.
const (
	KindTextNode  = "TextNode"
	KindGraphNode = "GraphNode"
)

// TextNodeRecord is the interchange form of a text-bearing node.
type TextNodeRecord struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Tags      string `json:"tags"`
	Structure string `json:"structure"`
}

// GraphNodeRecord is the interchange form of a node that only carries tags.
type GraphNodeRecord struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Tags    string `json:"tags"`
	Display string `json:"display"`
}

// Replace converts tree nodes into their interchange records using s for text nodes
// (nil means the default stringifier). Any other value is returned unchanged.
func Replace(v any, s NodeStringifier) any {
	switch n := v.(type) {
	case tree.TextNode:
		return TextNodeRecord{
			Kind:      KindTextNode,
			Name:      n.Name(),
			Tags:      strings.Join(n.Tags(), ","),
			Structure: resolve(s)(n),
		}
	case tree.Node:
		return GraphNodeRecord{
			Kind:    KindGraphNode,
			Name:    n.Name(),
			Tags:    strings.Join(n.Tags(), ","),
			Display: fmt.Sprint(n),
		}
	default:
		return v
	}
}

// Replacer curries Replace over a stringifier, for use wherever values are converted
// before encoding.
func Replacer(s NodeStringifier) func(any) any {
	return func(v any) any {
		return Replace(v, s)
	}
}

// MarshalNodes encodes nodes as a JSON array of records.
func MarshalNodes(nodes []tree.Node, s NodeStringifier) ([]byte, error) {
	replace := Replacer(s)
	records := make([]any, len(nodes))
	for i, n := range nodes {
		records[i] = replace(n)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal nodes: %w", err)
	}
	return data, nil
}
