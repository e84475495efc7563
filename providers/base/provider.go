package base

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pmezard/go-difflib/difflib"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/treelens/providers"
)

// LanguageConfig defines the grammar-specific metadata a provider is built from
type LanguageConfig interface {
	Language() string
	Aliases() []string
	Extensions() []string
	GetLanguage() *sitter.Language
}

// Provider provides the tree-sitter plumbing shared by grammar providers
type Provider struct {
	config LanguageConfig
	lang   *sitter.Language
	pool   sync.Pool
	cache  *ValidationCache

	borrowed atomic.Int64
	returned atomic.Int64
}

// New creates a base provider with language-specific config
func New(config LanguageConfig) *Provider {
	lang := config.GetLanguage()
	if lang == nil {
		panic(fmt.Sprintf("Failed to load %s language for tree-sitter", config.Language()))
	}

	p := &Provider{config: config, lang: lang, cache: NewValidationCache(DefaultCacheAge)}
	p.pool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(lang)
		return parser
	}
	return p
}

// Language returns language identifier
func (p *Provider) Language() string {
	return p.config.Language()
}

// Aliases returns alternative identifiers
func (p *Provider) Aliases() []string {
	return p.config.Aliases()
}

// Extensions returns supported file extensions
func (p *Provider) Extensions() []string {
	return p.config.Extensions()
}

// ParseTree parses source into a tree-sitter tree. The caller must Close it.
func (p *Provider) ParseTree(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := p.borrow()
	defer p.release(parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("failed to parse source")
	}
	return tree, nil
}

func (p *Provider) borrow() *sitter.Parser {
	p.borrowed.Add(1)
	return p.pool.Get().(*sitter.Parser)
}

func (p *Provider) release(parser *sitter.Parser) {
	parser.Reset()
	p.pool.Put(parser)
	p.returned.Add(1)
}

// Validate checks syntax. Results are cached by content.
func (p *Provider) Validate(source []byte) providers.ValidationResult {
	return p.cache.GetOrCompute(source, func() providers.ValidationResult {
		return p.validate(source)
	})
}

// CacheStats reports validation cache usage
func (p *Provider) CacheStats() map[string]int64 {
	return p.cache.Stats()
}

func (p *Provider) validate(source []byte) providers.ValidationResult {
	tree, err := p.ParseTree(context.Background(), source)
	if err != nil {
		return providers.ValidationResult{
			Valid:  false,
			Errors: []string{"Failed to parse source"},
		}
	}
	defer tree.Close()

	var errors []string
	findErrors(tree.RootNode(), &errors)

	return providers.ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// Stats reports parser pool usage
func (p *Provider) Stats() providers.Stats {
	borrowed, returned := p.borrowed.Load(), p.returned.Load()
	return providers.Stats{
		BorrowCount: borrowed,
		ReturnCount: returned,
		Active:      borrowed - returned,
	}
}

// Walk visits node and its descendants depth first. Returning false from fn skips the
// node's children.
func Walk(node *sitter.Node, fn func(*sitter.Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(i), fn)
	}
}

// Text returns the source covered by node
func Text(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// Diff creates a unified diff between two versions of the file called name
func Diff(name, original, modified string) string {
	if original == modified {
		return ""
	}

	from, to := "original", "modified"
	if name != "" {
		from, to = "a/"+name, "b/"+name
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(modified),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s\n@@ changes @@\n%d bytes -> %d bytes",
			from, to, len(original), len(modified))
	}

	return text
}

// findErrors looks for syntax errors in the tree
func findErrors(node *sitter.Node, errors *[]string) {
	Walk(node, func(n *sitter.Node) bool {
		switch {
		case n.IsError():
			*errors = append(*errors, fmt.Sprintf(
				"Syntax error at line %d, column %d",
				n.StartPoint().Row+1,
				n.StartPoint().Column+1,
			))
		case n.IsMissing():
			*errors = append(*errors, fmt.Sprintf(
				"Missing %s at line %d, column %d",
				strings.TrimSpace(n.Type()),
				n.StartPoint().Row+1,
				n.StartPoint().Column+1,
			))
		}
		return true
	})
}
