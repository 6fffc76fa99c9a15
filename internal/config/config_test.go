package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "300ms", cfg.Watcher.Debounce)
	assert.Equal(t, 500, cfg.Chunking.MinChunkSize)
	assert.Equal(t, 1500, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 100, cfg.Chunking.MaxChunks)
	assert.Equal(t, 384, cfg.Embeddings.TextDimensions)
	assert.Equal(t, 512, cfg.Embeddings.ImageDimensions)
	assert.Equal(t, 20, cfg.Search.Limit)
	assert.InDelta(t, 0.6, cfg.Search.MinScore, 0.001)
	assert.Equal(t, "bktree", cfg.Filename.Backend)
	assert.Contains(t, cfg.Paths.Exclude, "node_modules")
	assert.Contains(t, cfg.Paths.Exclude, ".git")
}

func TestNewConfig_ValidatesClean(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
}

func TestLoad_FolderConfigOverridesDefaults(t *testing.T) {
	// Given: a folder with a .fileseer.yaml
	dir := t.TempDir()
	yaml := `
watcher:
  debounce: 1s
chunking:
  max_chunk_size: 2000
embeddings:
  provider: static
  text_dimensions: 256
filename:
  backend: bleve
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fileseer.yaml"), []byte(yaml), 0o644))

	// When: loading config for that folder
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: file values override defaults, unset values keep defaults
	assert.Equal(t, "1s", cfg.Watcher.Debounce)
	assert.Equal(t, 2000, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 256, cfg.Embeddings.TextDimensions)
	assert.Equal(t, "bleve", cfg.Filename.Backend)
	assert.Equal(t, 500, cfg.Chunking.MinChunkSize)
	assert.Equal(t, 512, cfg.Embeddings.ImageDimensions)
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "300ms", cfg.Watcher.Debounce)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fileseer.yaml"), []byte("watcher: [not a map"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fileseer.yaml"), []byte("embeddings:\n  provider: static\n"), 0o644))

	t.Setenv("FILESEER_EMBEDDINGS_PROVIDER", "ollama")
	t.Setenv("FILESEER_WATCH_DEBOUNCE", "750ms")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "750ms", cfg.Watcher.Debounce)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min chunk zero", func(c *Config) { c.Chunking.MinChunkSize = 0 }},
		{"max below min", func(c *Config) { c.Chunking.MaxChunkSize = 100 }},
		{"zero text dims", func(c *Config) { c.Embeddings.TextDimensions = 0 }},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"min score above 1", func(c *Config) { c.Search.MinScore = 1.5 }},
		{"zero semantic weight", func(c *Config) { c.Search.SemanticWeight = 0 }},
		{"filename weight above 1", func(c *Config) { c.Search.FilenameWeight = 1.5 }},
		{"bad filename backend", func(c *Config) { c.Filename.Backend = "trie" }},
		{"bad debounce", func(c *Config) { c.Watcher.Debounce = "soon" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDebounceDuration(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceDuration())

	cfg.Watcher.Debounce = "2s"
	assert.Equal(t, 2*time.Second, cfg.DebounceDuration())

	// Unparseable falls back to the default window
	cfg.Watcher.Debounce = "garbage"
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceDuration())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Embeddings.Provider = "static"
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, "static", loaded.Embeddings.Provider)
}
