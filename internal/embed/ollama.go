package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fileseer/fileseer/internal/errors"
)

// OllamaConfig configures the Ollama HTTP backend.
type OllamaConfig struct {
	// Host is the Ollama API endpoint, default http://localhost:11434.
	Host string

	// Model is the embedding model name.
	Model string

	// Dimensions fixes the expected vector width. Zero auto-detects from
	// the first embedding.
	Dimensions int

	// RequestTimeout bounds a single embed call.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries after a retryable failure.
	MaxRetries int

	// SkipHealthCheck disables the startup reachability probe, for tests.
	SkipHealthCheck bool
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.Host == "" {
		c.Host = DefaultOllamaHost
	}
	if c.Model == "" {
		c.Model = DefaultTextModel
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// OllamaEmbedder generates text embeddings through Ollama's /api/embed
// endpoint. A circuit breaker trips after repeated failures so a downed
// daemon degrades the pipeline quickly instead of stalling every file on
// full timeouts.
type OllamaEmbedder struct {
	client  *ollamaClient
	config  OllamaConfig
	breaker *errors.CircuitBreaker

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ TextEmbedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to Ollama and verifies the model is usable.
// Auto-detects dimensions from a probe embedding when cfg.Dimensions is 0.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	cfg = cfg.withDefaults()
	e := &OllamaEmbedder{
		client:  newOllamaClient(cfg.Host),
		config:  cfg,
		breaker: errors.NewCircuitBreaker("ollama", 5, 30*time.Second),
		dims:    cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
		vecs, err := e.client.embed(probeCtx, cfg.Model, []string{"probe"})
		if err != nil {
			e.client.close()
			return nil, err
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			e.client.close()
			return nil, errors.New(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("model %q returned no embedding", cfg.Model), nil)
		}
		if e.dims == 0 {
			e.dims = len(vecs[0])
		} else if len(vecs[0]) != e.dims {
			e.client.close()
			return nil, errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("model %q produces %d dimensions, config expects %d",
					cfg.Model, len(vecs[0]), e.dims), nil)
		}
	}
	if e.dims == 0 {
		e.dims = DefaultTextDimensions
	}
	return e, nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.New(errors.ErrCodeEmbedderUnavailable, "ollama embedder is closed", nil)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := errors.CircuitExecute(e.breaker, func() ([][]float32, error) {
		return e.doEmbed(ctx, texts)
	})
	if err != nil && errors.IsRetryable(err) {
		vecs, err = errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() ([][]float32, error) {
			return errors.CircuitExecute(e.breaker, func() ([][]float32, error) {
				return e.doEmbed(ctx, texts)
			})
		})
	}
	if err != nil {
		return nil, err
	}

	if len(vecs) != len(texts) {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vecs)), nil)
	}
	for i, vec := range vecs {
		if len(vec) != e.dims {
			return nil, errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("embedding %d has %d dimensions, expected %d", i, len(vec), e.dims), nil)
		}
		vecs[i] = normalizeVector(vec)
	}
	return vecs, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()
	return e.client.embed(reqCtx, e.config.Model, texts)
}

func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) ModelName() string { return e.config.Model }

// Available reports whether the daemon answers /api/tags.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	return e.client.reachable(ctx)
}

// BreakerState exposes the circuit state for stats reporting.
func (e *OllamaEmbedder) BreakerState() errors.State {
	return e.breaker.State()
}

func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.close()
	return nil
}

// OllamaImageEmbedder generates image embeddings through a multimodal
// Ollama model. Text queries go through the same model so both modalities
// share one vector space.
type OllamaImageEmbedder struct {
	client  *ollamaClient
	config  OllamaConfig
	breaker *errors.CircuitBreaker

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ ImageEmbedder = (*OllamaImageEmbedder)(nil)

// NewOllamaImageEmbedder connects to Ollama using a multimodal model.
func NewOllamaImageEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaImageEmbedder, error) {
	cfg = cfg.withDefaults()
	if cfg.Model == DefaultTextModel {
		cfg.Model = DefaultImageModel
	}
	e := &OllamaImageEmbedder{
		client:  newOllamaClient(cfg.Host),
		config:  cfg,
		breaker: errors.NewCircuitBreaker("ollama-image", 5, 30*time.Second),
		dims:    cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
		vec, err := e.EmbedText(probeCtx, "probe")
		if err != nil {
			e.client.close()
			return nil, err
		}
		if e.dims == 0 {
			e.dims = len(vec)
		}
	}
	if e.dims == 0 {
		e.dims = DefaultImageDimensions
	}
	return e, nil
}

// EmbedImage embeds raw image bytes.
func (e *OllamaImageEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return e.run(ctx, func(reqCtx context.Context) ([]float32, error) {
		return e.client.embedImage(reqCtx, e.config.Model, data)
	})
}

// EmbedText projects a query string into the image vector space.
func (e *OllamaImageEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.run(ctx, func(reqCtx context.Context) ([]float32, error) {
		vecs, err := e.client.embed(reqCtx, e.config.Model, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, errors.New(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("expected 1 embedding, got %d", len(vecs)), nil)
		}
		return vecs[0], nil
	})
}

func (e *OllamaImageEmbedder) run(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.New(errors.ErrCodeEmbedderUnavailable, "ollama image embedder is closed", nil)
	}

	attempt := func() ([]float32, error) {
		reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
		defer cancel()
		return fn(reqCtx)
	}

	vec, err := errors.CircuitExecute(e.breaker, attempt)
	if err != nil && errors.IsRetryable(err) {
		vec, err = errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() ([]float32, error) {
			return errors.CircuitExecute(e.breaker, attempt)
		})
	}
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.dims == 0 {
		e.dims = len(vec)
	}
	dims := e.dims
	e.mu.Unlock()
	if len(vec) != dims {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, expected %d", len(vec), dims), nil)
	}
	return normalizeVector(vec), nil
}

func (e *OllamaImageEmbedder) Dimensions() int { return e.dims }

func (e *OllamaImageEmbedder) ModelName() string { return e.config.Model }

func (e *OllamaImageEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	return e.client.reachable(ctx)
}

func (e *OllamaImageEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.close()
	return nil
}

// ollamaClient is the shared HTTP layer for both Ollama embedders.
// No client-level timeout: every call carries a per-request context so
// deadlines stay under caller control.
type ollamaClient struct {
	host      string
	transport *http.Transport
	http      *http.Client
}

func newOllamaClient(host string) *ollamaClient {
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}
	return &ollamaClient{
		host:      strings.TrimRight(host, "/"),
		transport: transport,
		http:      &http.Client{Transport: transport},
	}
}

type ollamaEmbedRequest struct {
	Model  string   `json:"model"`
	Input  []string `json:"input"`
	Images []string `json:"images,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// embed calls /api/embed for a batch of texts.
func (c *ollamaClient) embed(ctx context.Context, model string, input []string) ([][]float32, error) {
	return c.post(ctx, ollamaEmbedRequest{Model: model, Input: input})
}

// embedImage calls /api/embed with a base64 image payload.
func (c *ollamaClient) embedImage(ctx context.Context, model string, data []byte) ([]float32, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	vecs, err := c.post(ctx, ollamaEmbedRequest{
		Model:  model,
		Input:  []string{""},
		Images: []string{encoded},
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("expected 1 embedding, got %d", len(vecs)), nil)
	}
	return vecs[0], nil
}

func (c *ollamaClient) post(ctx context.Context, payload ollamaEmbedRequest) ([][]float32, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "failed to encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "failed to create embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeEmbedTimeout,
				fmt.Sprintf("embed request to %s timed out", c.host), err)
		}
		return nil, errors.New(errors.ErrCodeEmbedderUnavailable,
			fmt.Sprintf("cannot reach ollama at %s", c.host), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "failed to read embed response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed ollamaEmbedResponse
		_ = json.Unmarshal(raw, &parsed)
		msg := parsed.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if resp.StatusCode == http.StatusNotFound || strings.Contains(msg, "not found") {
			return nil, errors.New(errors.ErrCodeModelMissing,
				fmt.Sprintf("model %q not available: %s", payload.Model, msg), nil).
				WithSuggestion(fmt.Sprintf("run: ollama pull %s", payload.Model))
		}
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, msg), nil)
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "failed to decode embed response", err)
	}
	return parsed.Embeddings, nil
}

// reachable probes /api/tags with a short timeout.
func (c *ollamaClient) reachable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, ollamaConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *ollamaClient) close() {
	c.transport.CloseIdleConnections()
}
