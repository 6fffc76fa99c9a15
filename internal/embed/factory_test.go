package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileseer/fileseer/internal/config"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderType
		wantErr bool
	}{
		{"", ProviderAuto, false},
		{"ollama", ProviderOllama, false},
		{"static", ProviderStatic, false},
		{"openai", ProviderAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewFromConfig_Static(t *testing.T) {
	cfg := config.EmbeddingsConfig{
		Provider:        "static",
		TextDimensions:  256,
		ImageDimensions: 128,
	}

	embedders, err := NewFromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer embedders.Text.Close()
	defer embedders.Image.Close()

	assert.Equal(t, ProviderStatic, embedders.Provider)
	assert.Equal(t, 256, embedders.Text.Dimensions())
	assert.Equal(t, 128, embedders.Image.Dimensions())

	// The text embedder comes wrapped in the cache.
	_, ok := embedders.Text.(*CachedEmbedder)
	assert.True(t, ok)
}

func TestNewFromConfig_InvalidProvider(t *testing.T) {
	cfg := config.EmbeddingsConfig{Provider: "huggingface"}
	_, err := NewFromConfig(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestNewFromConfig_AutoFallsBackWithoutOllama(t *testing.T) {
	cfg := config.EmbeddingsConfig{
		// Nothing listens here, auto-detection must settle on static.
		OllamaHost: "http://127.0.0.1:1",
	}

	embedders, err := NewFromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer embedders.Text.Close()
	defer embedders.Image.Close()

	assert.Equal(t, ProviderStatic, embedders.Provider)
}
