package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Headerf("Results for %q", "plan")
	w.Successf("done")

	// No ANSI escapes when the target is not a terminal
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), `Results for "plan"`)
	assert.Contains(t, buf.String(), "done")
}

func TestWriter_Result(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Result(1, "/docs/plan.md", 0.9137, "document, 2.1 KB")

	assert.Contains(t, buf.String(), " 1. /docs/plan.md")
	assert.Contains(t, buf.String(), "(0.914)")
	assert.Contains(t, buf.String(), "document, 2.1 KB")
}

func TestWriter_KV(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.KV("Indexed", 42)

	assert.Contains(t, buf.String(), "Indexed:")
	assert.Contains(t, buf.String(), "42")
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	require.NoError(t, w.JSON(map[string]int{"total": 3}))

	var parsed map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, 3, parsed["total"])
}
