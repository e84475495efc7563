package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/oxhq/treelens/internal/decorate"
	"github.com/oxhq/treelens/providers"
	"github.com/oxhq/treelens/providers/yaml"
)

// ErrUnknownGrammar is returned when no registered grammar matches an identifier.
var ErrUnknownGrammar = errors.New("unknown grammar")

// Registry maps grammar names, aliases and file extensions to providers.
// Grammars are registered explicitly; there is no process-wide default.
type Registry struct {
	mu         sync.RWMutex
	grammars   map[string]providers.Grammar // canonical name -> grammar
	aliases    map[string]string            // alias -> canonical name
	extensions map[string]string            // extension -> canonical name
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		grammars:   make(map[string]providers.Grammar),
		aliases:    make(map[string]string),
		extensions: make(map[string]string),
	}
}

// Builtin returns a registry holding every grammar shipped with treelens.
func Builtin() *Registry {
	r := New()
	if err := r.Register(yaml.New()); err != nil {
		panic(err)
	}
	return r
}

// Register adds a grammar. Name, alias and extension conflicts are errors and leave the
// registry unchanged.
func (r *Registry) Register(g providers.Grammar) error {
	if g == nil || reflect.ValueOf(g).Kind() == reflect.Ptr && reflect.ValueOf(g).IsNil() {
		return fmt.Errorf("grammar cannot be nil")
	}

	name := strings.ToLower(g.Language())
	if name == "" {
		return fmt.Errorf("grammar must have a non-empty language name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.grammars[name]; exists {
		return fmt.Errorf("grammar '%s' already registered", name)
	}

	aliases := make([]string, 0, len(g.Aliases()))
	for _, alias := range g.Aliases() {
		alias = strings.ToLower(alias)
		if alias == "" {
			continue
		}
		if existing, exists := r.aliases[alias]; exists {
			return fmt.Errorf("alias '%s' conflicts with existing mapping to '%s'", alias, existing)
		}
		if _, exists := r.grammars[alias]; exists {
			return fmt.Errorf("alias '%s' conflicts with a registered grammar", alias)
		}
		aliases = append(aliases, alias)
	}

	exts := make([]string, 0, len(g.Extensions()))
	for _, ext := range g.Extensions() {
		ext = normalizeExt(ext)
		if ext == "" {
			continue
		}
		if existing, exists := r.extensions[ext]; exists {
			return fmt.Errorf("extension '%s' conflicts with existing mapping to '%s'", ext, existing)
		}
		exts = append(exts, ext)
	}

	r.grammars[name] = g
	for _, alias := range aliases {
		r.aliases[alias] = name
	}
	for _, ext := range exts {
		r.extensions[ext] = name
	}
	return nil
}

// Lookup finds a grammar by language name, alias or file extension.
func (r *Registry) Lookup(id string) (providers.Grammar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if g := r.lookup(id); g != nil {
		return g, nil
	}
	return nil, fmt.Errorf("%w: '%s'", ErrUnknownGrammar, id)
}

func (r *Registry) lookup(id string) providers.Grammar {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil
	}
	if g, exists := r.grammars[id]; exists {
		return g
	}
	if canonical, exists := r.aliases[id]; exists {
		return r.grammars[canonical]
	}
	if canonical, exists := r.extensions[normalizeExt(id)]; exists {
		return r.grammars[canonical]
	}
	return nil
}

// ForFile finds the grammar for a file by its extension.
func (r *Registry) ForFile(path string) (providers.Grammar, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, fmt.Errorf("%w: file %s has no extension", ErrUnknownGrammar, path)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, exists := r.extensions[ext]
	if !exists {
		return nil, fmt.Errorf("%w: no grammar for extension '%s'", ErrUnknownGrammar, ext)
	}
	return r.grammars[canonical], nil
}

// Has reports whether id resolves to a grammar.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id) != nil
}

// Info describes a registered grammar.
type Info struct {
	Name       string          `json:"name"`
	Aliases    []string        `json:"aliases"`
	Extensions []string        `json:"extensions"`
	Stats      providers.Stats `json:"stats"`
}

// List describes every registered grammar, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.grammars))
	for _, name := range r.names() {
		g := r.grammars[name]
		infos = append(infos, Info{
			Name:       name,
			Aliases:    g.Aliases(),
			Extensions: g.Extensions(),
			Stats:      g.Stats(),
		})
	}
	return infos
}

// Extensions returns every registered file extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Unregister removes a grammar with its aliases and extensions.
func (r *Registry) Unregister(name string) error {
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.grammars[name]; !exists {
		return fmt.Errorf("%w: '%s'", ErrUnknownGrammar, name)
	}
	delete(r.grammars, name)
	for alias, canonical := range r.aliases {
		if canonical == name {
			delete(r.aliases, alias)
		}
	}
	for ext, canonical := range r.extensions {
		if canonical == name {
			delete(r.extensions, ext)
		}
	}
	return nil
}

// Classifier chains the classifiers of every registered grammar in name order. The first
// grammar offering a view for a node wins.
func (r *Registry) Classifier() decorate.Classifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cs := make([]decorate.Classifier, 0, len(r.grammars))
	for _, name := range r.names() {
		cs = append(cs, r.grammars[name].Classifier())
	}
	return decorate.Chain(cs...)
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.grammars))
	for name := range r.grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return ext
}
