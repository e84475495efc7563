package yaml

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/oxhq/treelens/internal/tree"
)

// Tags carried by nodes of a parsed YAML document.
const (
	TagYamlFile     = "YamlFile"
	TagMapping      = "Mapping"
	TagSequence     = "Sequence"
	TagScalar       = "Scalar"
	TagAlias        = "Alias"
	TagFlow         = "Flow"
	TagPlain        = "Plain"
	TagDoubleQuoted = "DoubleQuoted"
	TagSingleQuoted = "SingleQuoted"
	TagBlock        = "Block"
	TagNull         = "Null"
)

// Node names that do not come from mapping keys.
const (
	ItemName     = "item"
	DocumentName = "document"
)

// Tree-sitter node types
const (
	nodeStream            = "stream"
	nodeDocument          = "document"
	nodeBlockNode         = "block_node"
	nodeFlowNode          = "flow_node"
	nodeBlockMapping      = "block_mapping"
	nodeBlockMappingPair  = "block_mapping_pair"
	nodeFlowMapping       = "flow_mapping"
	nodeFlowPair          = "flow_pair"
	nodeBlockSequence     = "block_sequence"
	nodeBlockSequenceItem = "block_sequence_item"
	nodeFlowSequence      = "flow_sequence"
	nodeBlockScalar       = "block_scalar"
	nodePlainScalar       = "plain_scalar"
	nodeDoubleQuoteScalar = "double_quote_scalar"
	nodeSingleQuoteScalar = "single_quote_scalar"
	nodeAlias             = "alias"
)

// tagsFor returns the tags of a content node, or nil for node types that carry no value.
func tagsFor(n *sitter.Node) []string {
	switch n.Type() {
	case nodeBlockMapping:
		return []string{TagMapping}
	case nodeFlowMapping, nodeFlowPair:
		return []string{TagMapping, TagFlow}
	case nodeBlockSequence:
		return []string{TagSequence}
	case nodeFlowSequence:
		return []string{TagSequence, TagFlow}
	case nodePlainScalar:
		return []string{TagScalar, TagPlain}
	case nodeDoubleQuoteScalar:
		return []string{TagScalar, TagDoubleQuoted}
	case nodeSingleQuoteScalar:
		return []string{TagScalar, TagSingleQuoted}
	case nodeBlockScalar:
		return []string{TagScalar, TagBlock}
	case nodeAlias:
		return []string{TagAlias}
	}
	return nil
}

// content unwraps document, block_node, flow_node and sequence item wrappers down to the
// node holding the value. Anchors, tags and comments are skipped. It returns nil when the
// wrapper holds no value.
func content(n *sitter.Node) *sitter.Node {
	for n != nil {
		if tagsFor(n) != nil {
			return n
		}
		switch n.Type() {
		case nodeDocument, nodeBlockNode, nodeFlowNode, nodeBlockSequenceItem:
		default:
			return nil
		}
		var next *sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.IsError() {
				continue
			}
			switch c.Type() {
			case "anchor", "tag", "comment":
				continue
			}
			next = c
			break
		}
		n = next
	}
	return nil
}

type builder struct {
	doc *tree.Document
	src []byte
}

func build(name string, src []byte, stream *sitter.Node) (*tree.Document, error) {
	if stream == nil || stream.Type() != nodeStream {
		return nil, fmt.Errorf("unexpected YAML root node")
	}
	b := &builder{doc: tree.NewDocument(string(src)), src: src}

	var docs []*sitter.Node
	for i := 0; i < int(stream.NamedChildCount()); i++ {
		if c := stream.NamedChild(i); c.Type() == nodeDocument {
			docs = append(docs, c)
		}
	}

	var single *sitter.Node
	if len(docs) == 1 {
		single = content(docs[0])
	}

	tags := []string{TagYamlFile}
	if single != nil {
		switch kind := tagsFor(single); kind[0] {
		case TagMapping, TagSequence:
			tags = append(tags, kind[0])
		default:
			single = nil
		}
	}

	root, err := b.doc.Add(tree.NoParent, name, 0, len(src), tags...)
	if err != nil {
		return nil, err
	}

	// A lone mapping or sequence document is flattened into the root.
	if single != nil {
		if err := b.children(root, single); err != nil {
			return nil, err
		}
		return b.doc, nil
	}

	for _, d := range docs {
		c := content(d)
		if c == nil {
			continue
		}
		if err := b.node(root, DocumentName, c); err != nil {
			return nil, err
		}
	}
	return b.doc, nil
}

func (b *builder) node(parent tree.ID, name string, n *sitter.Node) error {
	id, err := b.doc.Add(parent, name, int(n.StartByte()), int(n.EndByte()), tagsFor(n)...)
	if err != nil {
		return fmt.Errorf("%s at line %d: %w", n.Type(), n.StartPoint().Row+1, err)
	}
	return b.children(id, n)
}

// empty records a key or item that has no value, at offset at.
func (b *builder) empty(parent tree.ID, name string, at uint32) error {
	_, err := b.doc.Add(parent, name, int(at), int(at), TagScalar, TagNull)
	return err
}

func (b *builder) children(id tree.ID, n *sitter.Node) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		var err error
		switch c.Type() {
		case nodeBlockMappingPair:
			err = b.pair(id, c)
		case nodeFlowPair:
			if n.Type() == nodeFlowMapping {
				err = b.pair(id, c)
			} else {
				err = b.node(id, ItemName, c)
			}
		case nodeBlockSequenceItem, nodeFlowNode:
			if n.Type() != nodeBlockSequence && n.Type() != nodeFlowSequence {
				continue
			}
			if v := content(c); v != nil {
				err = b.node(id, ItemName, v)
			} else if n.Type() == nodeBlockSequence {
				err = b.empty(id, ItemName, c.EndByte())
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) pair(parent tree.ID, p *sitter.Node) error {
	name := ""
	if k := content(p.ChildByFieldName("key")); k != nil {
		name = scalarText(string(b.src[k.StartByte():k.EndByte()]))
	}

	v := p.ChildByFieldName("value")
	if v == nil {
		return b.empty(parent, name, p.EndByte())
	}
	c := content(v)
	if c == nil {
		return b.empty(parent, name, v.EndByte())
	}
	return b.node(parent, name, c)
}

// scalarText resolves quoting and escapes of a scalar as written in the source.
func scalarText(raw string) string {
	var n yamlv3.Node
	if err := yamlv3.Unmarshal([]byte(raw), &n); err == nil &&
		len(n.Content) == 1 && n.Content[0].Kind == yamlv3.ScalarNode {
		return n.Content[0].Value
	}
	return strings.TrimSpace(raw)
}
