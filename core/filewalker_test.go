package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files relative to root. Content defaults to "k: v\n".
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		if content == "" {
			content = "k: v\n"
		}
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func relPaths(root string, results []WalkResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, relative(root, r.Path))
	}
	return out
}

func byExt(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}

func TestFileWalkerFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.yaml":                "",
		"b.yml":                 "",
		"notes.txt":             "",
		"deploy/values.yaml":    "",
		"deploy/prod/app.yaml":  "",
		"vendor/lib/conf.yaml":  "",
		"deploy/prod/README.md": "",
	})

	tests := []struct {
		name  string
		scope FileScope
		want  []string
	}{
		{
			name:  "everything",
			scope: FileScope{},
			want: []string{
				"a.yaml", "b.yml", "deploy/prod/README.md", "deploy/prod/app.yaml",
				"deploy/values.yaml", "notes.txt", "vendor/lib/conf.yaml",
			},
		},
		{
			name:  "basename pattern matches at any depth",
			scope: FileScope{Include: []string{"*.yaml"}},
			want:  []string{"a.yaml", "deploy/prod/app.yaml", "deploy/values.yaml", "vendor/lib/conf.yaml"},
		},
		{
			name:  "doublestar pattern",
			scope: FileScope{Include: []string{"deploy/**/*.yaml"}},
			want:  []string{"deploy/prod/app.yaml", "deploy/values.yaml"},
		},
		{
			name:  "exclude directory",
			scope: FileScope{Include: []string{"*.{yaml,yml}"}, Exclude: []string{"vendor"}},
			want:  []string{"a.yaml", "b.yml", "deploy/prod/app.yaml", "deploy/values.yaml"},
		},
		{
			name:  "max depth",
			scope: FileScope{Include: []string{"*.yaml"}, MaxDepth: 1},
			want:  []string{"a.yaml", "deploy/values.yaml"},
		},
	}

	fw := NewFileWalker(byExt)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.scope.Root = root
			results, err := fw.Files(context.Background(), tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, relPaths(root, results))
		})
	}
}

func TestFileWalkerDetectsLanguage(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.yaml": "", "b.txt": ""})

	results, err := NewFileWalker(byExt).Files(context.Background(), FileScope{Root: root})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "yaml", results[0].Language)
	assert.Empty(t, results[1].Language)
	assert.NotNil(t, results[0].Info)

	results, err = NewFileWalker(nil).Files(context.Background(), FileScope{Root: root})
	require.NoError(t, err)
	assert.Empty(t, results[0].Language)
}

func TestFileWalkerMaxFiles(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		files[n+".yaml"] = ""
	}
	writeTree(t, root, files)

	results, err := NewFileWalker(nil).Files(context.Background(), FileScope{Root: root, MaxFiles: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFileWalkerInvalidScope(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"file.yaml": ""})
	fw := NewFileWalker(nil)

	tests := []struct {
		name  string
		scope FileScope
		msg   string
	}{
		{"missing root", FileScope{}, "root is required"},
		{"not found", FileScope{Root: filepath.Join(root, "nope")}, "cannot access"},
		{"not a directory", FileScope{Root: filepath.Join(root, "file.yaml")}, "not a directory"},
		{"bad pattern", FileScope{Root: root, Include: []string{"[a-"}}, "bad pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fw.Walk(context.Background(), tt.scope)
			require.ErrorIs(t, err, ErrInvalidScope)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, ECInvalidScope, CodeOf(err))
		})
	}
}

func TestFileWalkerCancelled(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 50; i++ {
		files[strings.Repeat("d/", i%5)+"f"+string(rune('a'+i%26))+".yaml"] = ""
	}
	writeTree(t, root, files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileWalker(nil).Files(ctx, FileScope{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
}
