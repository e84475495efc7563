package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// FileWalker traverses a directory tree and reports files matching a scope
type FileWalker struct {
	workers    int
	bufferSize int
	detect     func(path string) string
}

// NewFileWalker creates a walker. detect names the grammar of a file, or returns "" when
// none applies; a nil detect leaves WalkResult.Language empty.
func NewFileWalker(detect func(path string) string) *FileWalker {
	return &FileWalker{
		workers:    runtime.NumCPU(),
		bufferSize: 256,
		detect:     detect,
	}
}

// WalkResult represents a discovered file
type WalkResult struct {
	Path     string
	Info     fs.FileInfo
	Language string
	Error    error
}

// Walk streams the files of scope. The channel closes when traversal ends or ctx is done.
func (fw *FileWalker) Walk(ctx context.Context, scope FileScope) (<-chan WalkResult, error) {
	if err := fw.validateScope(scope); err != nil {
		return nil, err
	}

	results := make(chan WalkResult, fw.bufferSize)
	paths := make(chan string, fw.bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < fw.workers; i++ {
		wg.Add(1)
		go fw.worker(ctx, paths, results, &wg)
	}

	go func() {
		defer close(paths)
		processed := 0
		fw.scanDirectory(ctx, scope.Root, scope, paths, 0, &processed)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// Files returns the matching paths of scope in lexical order.
func (fw *FileWalker) Files(ctx context.Context, scope FileScope) ([]WalkResult, error) {
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}

	var files []WalkResult
	for r := range results {
		files = append(files, r)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (fw *FileWalker) worker(ctx context.Context, paths <-chan string, results chan<- WalkResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			result := fw.processFile(path)
			select {
			case <-ctx.Done():
				return
			case results <- result:
			}
		}
	}
}

// scanDirectory recursively discovers files matching the scope's patterns
func (fw *FileWalker) scanDirectory(
	ctx context.Context,
	dir string,
	scope FileScope,
	paths chan<- string,
	depth int,
	processed *int,
) {
	if scope.MaxFiles > 0 && *processed >= scope.MaxFiles {
		return
	}
	if scope.MaxDepth > 0 && depth > scope.MaxDepth {
		return
	}
	if ctx.Err() != nil {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return // Skip directories we can't read
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		full := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(scope.Root, full)
		if err != nil {
			rel = full
		}
		rel = filepath.ToSlash(rel)

		if matchAny(rel, scope.Exclude) {
			continue
		}

		if entry.IsDir() {
			fw.scanDirectory(ctx, full, scope, paths, depth+1, processed)
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		if len(scope.Include) > 0 && !matchAny(rel, scope.Include) {
			continue
		}
		if scope.MaxFiles > 0 && *processed >= scope.MaxFiles {
			return
		}
		select {
		case <-ctx.Done():
			return
		case paths <- full:
			*processed++
		}
	}
}

func (fw *FileWalker) processFile(path string) WalkResult {
	info, err := os.Stat(path)
	if err != nil {
		return WalkResult{Path: path, Error: err}
	}

	result := WalkResult{Path: path, Info: info}
	if fw.detect != nil {
		result.Language = fw.detect(path)
	}
	return result
}

// matchAny matches rel against doublestar patterns. Patterns without a separator also
// match the base name, so "*.yaml" selects YAML files at any depth.
func matchAny(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, filepath.Base(rel)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func (fw *FileWalker) validateScope(scope FileScope) error {
	if scope.Root == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidScope)
	}
	for _, p := range append(append([]string{}, scope.Include...), scope.Exclude...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return fmt.Errorf("%w: bad pattern %q", ErrInvalidScope, p)
		}
	}

	info, err := os.Stat(scope.Root)
	if err != nil {
		return fmt.Errorf("%w: cannot access %s: %v", ErrInvalidScope, scope.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidScope, scope.Root)
	}
	return nil
}
