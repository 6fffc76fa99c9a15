package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with an isolated home and data
// directory. Callers share state between invocations by passing the
// same dataDir.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", filepath.Join(dataDir, "home"))
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("FILESEER_DATA_DIR", filepath.Join(dataDir, "index"))
	t.Setenv("FILESEER_EMBEDDINGS_PROVIDER", "static")

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestRootCmd_Help(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "fileseer")
	for _, sub := range []string{"init", "index", "watch", "search", "stats", "clear", "doctor", "serve", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "frobnicate")
	require.Error(t, err)
}
