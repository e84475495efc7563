package yaml

import (
	"github.com/oxhq/treelens/internal/decorate"
	"github.com/oxhq/treelens/internal/tree"
)

// Classifier presents YAML scalars and sequences as views.
//
// Only tags and the first two bytes of the value are inspected. Scalar wins over
// Sequence when a node carries both. An empty scalar is a RawValue; a sequence is a
// Sequence whatever its text.
type Classifier struct{}

// DecoratorFor implements decorate.Classifier.
func (Classifier) DecoratorFor(n tree.Node) tree.Node {
	tn, ok := n.(tree.TextNode)
	if !ok {
		return nil
	}
	v := tn.Value()

	if tree.Contains(tn.Tags(), TagScalar) {
		first := byte(0)
		if len(v) > 0 {
			first = v[0]
		}
		switch first {
		case '"':
			return QuotedValue{tn}
		case '>':
			switch chompingIndicator(v) {
			case '-':
				return FoldedBlockWithStripChomping{newBlock(tn, Folded, Strip)}
			case '+':
				return FoldedBlockWithKeepChomping{newBlock(tn, Folded, Keep)}
			default:
				return FoldedBlockScalar{newBlock(tn, Folded, Clip)}
			}
		case '|':
			switch chompingIndicator(v) {
			case '-':
				return LiteralBlockWithStripChomping{newBlock(tn, Literal, Strip)}
			case '+':
				return LiteralBlockWithKeepChomping{newBlock(tn, Literal, Keep)}
			default:
				return LiteralBlockScalar{newBlock(tn, Literal, Clip)}
			}
		default:
			return RawValue{tn}
		}
	}

	if tree.Contains(tn.Tags(), TagSequence) {
		return Sequence{tn}
	}
	return nil
}

// chompingIndicator is the second byte of v, or 0 when there is none.
func chompingIndicator(v string) byte {
	if len(v) < 2 {
		return 0
	}
	return v[1]
}

var _ decorate.Classifier = Classifier{}
