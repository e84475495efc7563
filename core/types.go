package core

import (
	"errors"
	"time"

	"github.com/oxhq/treelens/internal/pathexpr"
	"github.com/oxhq/treelens/internal/registry"
	"github.com/oxhq/treelens/internal/tree"
)

// Sentinel errors for programmatic checking.
var (
	ErrNoGrammar    = errors.New("no grammar for file")
	ErrNoMatches    = errors.New("no matches found")
	ErrUnsupported  = errors.New("match does not support the edit")
	ErrInvalidEdit  = errors.New("edit produced invalid output")
	ErrWriteRace    = errors.New("file changed on disk during operation")
	ErrInvalidScope = errors.New("invalid file scope")
)

// ErrorCode provides a machine-readable error type for JSON output.
type ErrorCode string

const (
	ECNone         ErrorCode = ""
	ECNoGrammar    ErrorCode = "ERR_NO_GRAMMAR"
	ECNoMatch      ErrorCode = "ERR_NO_MATCH"
	ECUnsupported  ErrorCode = "ERR_UNSUPPORTED_MATCH"
	ECSyntax       ErrorCode = "ERR_PATH_SYNTAX"
	ECInvalidEdit  ErrorCode = "ERR_INVALID_EDIT"
	ECWriteRace    ErrorCode = "ERR_WRITE_RACE"
	ECReadError    ErrorCode = "ERR_READ_FILE"
	ECWriteError   ErrorCode = "ERR_WRITE_FILE"
	ECInvalidScope ErrorCode = "ERR_SCOPE"
	ECNotEditable  ErrorCode = "ERR_NOT_EDITABLE"
	ECUnknown      ErrorCode = "ERR_UNKNOWN"
)

// CodeOf maps an error to its ErrorCode.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ECNone
	case errors.Is(err, ErrNoGrammar), errors.Is(err, registry.ErrUnknownGrammar):
		return ECNoGrammar
	case errors.Is(err, ErrNoMatches):
		return ECNoMatch
	case errors.Is(err, ErrUnsupported):
		return ECUnsupported
	case errors.Is(err, pathexpr.ErrSyntax):
		return ECSyntax
	case errors.Is(err, ErrInvalidEdit):
		return ECInvalidEdit
	case errors.Is(err, ErrWriteRace):
		return ECWriteRace
	case errors.Is(err, tree.ErrNotEditable):
		return ECNotEditable
	case errors.Is(err, ErrInvalidScope):
		return ECInvalidScope
	case errors.Is(err, errRead):
		return ECReadError
	case errors.Is(err, errWrite):
		return ECWriteError
	}
	return ECUnknown
}

var (
	errRead  = errors.New("read file")
	errWrite = errors.New("write file")
)

// FileScope defines which files a run visits
type FileScope struct {
	Root     string   `json:"root"`                // Directory to scan
	Include  []string `json:"include,omitempty"`   // Patterns to include (*.yaml, **/values.yml)
	Exclude  []string `json:"exclude,omitempty"`   // Patterns to exclude
	MaxDepth int      `json:"max_depth,omitempty"` // Max directory depth (0 = unlimited)
	MaxFiles int      `json:"max_files,omitempty"` // Max files to visit (0 = unlimited)
}

// Match is a matched node as reported to callers
type Match struct {
	Path  string   `json:"path"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	View  string   `json:"view,omitempty"`
	Line  int      `json:"line,omitempty"`
	Value string   `json:"value,omitempty"`
}

// FileResult is the outcome of running an editor over one file
type FileResult struct {
	Path        string    `json:"path"`
	Language    string    `json:"language,omitempty"`
	Matches     []Match   `json:"matches,omitempty"`
	Modified    bool      `json:"modified"`
	Diff        string    `json:"diff,omitempty"`
	BaseDigest  string    `json:"base_digest,omitempty"`
	AfterDigest string    `json:"after_digest,omitempty"`
	BackupPath  string    `json:"backup_path,omitempty"`
	Code        ErrorCode `json:"code,omitempty"`
	Error       string    `json:"error,omitempty"`
	Err         error     `json:"-"`
}

// RunResult summarizes a run over a file scope
type RunResult struct {
	RunID         string        `json:"run_id,omitempty"`
	Editor        string        `json:"editor"`
	Committed     bool          `json:"committed"`
	FilesScanned  int           `json:"files_scanned"`
	FilesModified int           `json:"files_modified"`
	TotalMatches  int           `json:"total_matches"`
	Duration      time.Duration `json:"duration"`
	Files         []FileResult  `json:"files"`
}

// Failed returns the files whose edit failed.
func (r *RunResult) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}
