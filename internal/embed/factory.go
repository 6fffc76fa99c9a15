package embed

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fileseer/fileseer/internal/config"
	"github.com/fileseer/fileseer/internal/errors"
)

// ProviderType selects an embedding backend.
type ProviderType string

const (
	// ProviderAuto picks ollama when the daemon is reachable, static
	// otherwise.
	ProviderAuto ProviderType = ""

	// ProviderOllama uses the Ollama HTTP API.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses the deterministic offline embedders.
	ProviderStatic ProviderType = "static"
)

// ParseProvider maps a config string to a ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	switch ProviderType(s) {
	case ProviderAuto, ProviderOllama, ProviderStatic:
		return ProviderType(s), nil
	default:
		return ProviderAuto, errors.New(errors.ErrCodeConfigInvalid,
			"unknown embeddings provider: "+s, nil).
			WithSuggestion(`use "ollama", "static", or leave empty for auto-detection`)
	}
}

// Embedders bundles the resolved backends for the two index tables.
type Embedders struct {
	Text  TextEmbedder
	Image ImageEmbedder

	// Provider is the backend actually chosen, after auto-detection.
	Provider ProviderType
}

// NewFromConfig resolves the configured provider into concrete backends.
// The text embedder is wrapped in the LRU cache. Auto-detection never
// fails: when Ollama is not reachable it falls back to static and logs
// the downgrade.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) (*Embedders, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	if provider == ProviderAuto {
		if ollamaReachable(ctx, cfg.OllamaHost) {
			provider = ProviderOllama
		} else {
			provider = ProviderStatic
			logger.Info("ollama not reachable, using static embeddings",
				"host", hostOrDefault(cfg.OllamaHost))
		}
	}

	var text TextEmbedder
	var image ImageEmbedder

	switch provider {
	case ProviderOllama:
		text, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:           cfg.OllamaHost,
			Model:          cfg.TextModel,
			Dimensions:     cfg.TextDimensions,
			RequestTimeout: cfg.RequestTimeoutDuration(),
		})
		if err != nil {
			return nil, err
		}
		image, err = NewOllamaImageEmbedder(ctx, OllamaConfig{
			Host:           cfg.OllamaHost,
			Model:          cfg.ImageModel,
			Dimensions:     cfg.ImageDimensions,
			RequestTimeout: cfg.RequestTimeoutDuration(),
		})
		if err != nil {
			// A text-only Ollama install is common; image search still
			// works through the static embedder.
			logger.Warn("ollama image model unavailable, using static image embeddings",
				"model", cfg.ImageModel, "error", err)
			image = NewStaticImageEmbedder(cfg.ImageDimensions)
		}

	case ProviderStatic:
		text = NewStaticTextEmbedder(cfg.TextDimensions)
		image = NewStaticImageEmbedder(cfg.ImageDimensions)
	}

	logger.Debug("embedders ready",
		"provider", string(provider),
		"text_model", text.ModelName(),
		"text_dims", text.Dimensions(),
		"image_model", image.ModelName(),
		"image_dims", image.Dimensions())

	return &Embedders{
		Text:     NewCachedEmbedder(text, cfg.CacheSize),
		Image:    image,
		Provider: provider,
	}, nil
}

func hostOrDefault(host string) string {
	if host == "" {
		return DefaultOllamaHost
	}
	return host
}

// ProbeOllama reports whether an Ollama daemon answers at host. An
// empty host probes the default endpoint.
func ProbeOllama(ctx context.Context, host string) bool {
	return ollamaReachable(ctx, host)
}

// ollamaReachable probes /api/tags without building a full embedder.
func ollamaReachable(ctx context.Context, host string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, ollamaConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet,
		hostOrDefault(host)+"/api/tags", nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: ollamaConnectTimeout + time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
