package yaml

import (
	sitter "github.com/smacker/go-tree-sitter"
	tsyaml "github.com/smacker/go-tree-sitter/yaml"
)

// Config implements LanguageConfig for YAML
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "yaml"
}

// Aliases accepted by the registry
func (c *Config) Aliases() []string {
	return []string{"yml"}
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".yaml", ".yml"}
}

// GetLanguage returns tree-sitter language for YAML
func (c *Config) GetLanguage() *sitter.Language {
	return tsyaml.GetLanguage()
}
