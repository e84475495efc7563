// Package yaml adds YAML support: a tree-sitter based parser producing tree.Documents and
// a classifier that presents scalar and sequence matches as editable views.
package yaml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/oxhq/treelens/internal/decorate"
	"github.com/oxhq/treelens/internal/tree"
	"github.com/oxhq/treelens/providers"
	"github.com/oxhq/treelens/providers/base"
)

// Provider is the YAML grammar.
type Provider struct {
	*base.Provider
	classifier Classifier
}

// New creates a YAML provider using base functionality with YAML-specific configuration
func New() *Provider {
	return &Provider{Provider: base.New(&Config{})}
}

// Parse builds the node tree of src. The root is named name.
func (p *Provider) Parse(ctx context.Context, name string, src []byte) (*tree.Document, error) {
	ts, err := p.ParseTree(ctx, src)
	if err != nil {
		return nil, err
	}
	defer ts.Close()

	return build(name, src, ts.RootNode())
}

// Classifier returns the YAML classifier.
func (p *Provider) Classifier() decorate.Classifier {
	return p.classifier
}

// Check decodes every document in src and reports the first YAML error.
func (p *Provider) Check(src []byte) error {
	return Check(src)
}

// Check decodes every document in src and reports the first YAML error.
func Check(src []byte) error {
	dec := yamlv3.NewDecoder(bytes.NewReader(src))
	for i := 0; ; i++ {
		var doc yamlv3.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("document %d: %w", i+1, err)
		}
	}
}

var _ providers.Grammar = (*Provider)(nil)
