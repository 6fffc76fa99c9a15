package namesearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileseer/fileseer/internal/config"
	seerrors "github.com/fileseer/fileseer/internal/errors"
)

func TestNew_BackendSelection(t *testing.T) {
	tests := []struct {
		backend string
		want    interface{}
	}{
		{"", &BKTreeIndex{}},
		{"bktree", &BKTreeIndex{}},
		{"BKTree", &BKTreeIndex{}},
		{"bleve", &BleveIndex{}},
	}
	for _, tt := range tests {
		idx, err := New(config.FilenameConfig{Backend: tt.backend}, t.TempDir())
		require.NoError(t, err, "backend %q", tt.backend)
		assert.IsType(t, tt.want, idx, "backend %q", tt.backend)
		require.NoError(t, idx.Close())
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(config.FilenameConfig{Backend: "tantivy"}, t.TempDir())
	require.Error(t, err)
	var serr *seerrors.SeerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, seerrors.ErrCodeConfigInvalid, serr.Code)
}
