package providers

import (
	"context"

	"github.com/oxhq/treelens/internal/decorate"
	"github.com/oxhq/treelens/internal/tree"
)

// Grammar is implemented by every grammar provider.
type Grammar interface {
	// Metadata
	Language() string
	Aliases() []string
	Extensions() []string

	// Parse builds the node tree of src. name becomes the root's name.
	Parse(ctx context.Context, name string, src []byte) (*tree.Document, error)

	// Classifier offers the grammar's views for matched nodes.
	Classifier() decorate.Classifier

	// Validate reports syntax errors in src.
	Validate(src []byte) ValidationResult

	// Observability
	Stats() Stats
}

// ValidationResult from syntax check
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Stats captures parser-pool level metrics exposed by providers.
type Stats struct {
	BorrowCount int64 `json:"borrow_count"`
	ReturnCount int64 `json:"return_count"`
	Active      int64 `json:"active"`
}
