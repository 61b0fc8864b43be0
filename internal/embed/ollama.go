package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a multilingual embedding model that handles
	// Korean and English contract text.
	DefaultOllamaModel = "bge-m3"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string

	// Model is the embedding model to use.
	Model string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize bounds the number of texts per /api/embed request.
	BatchSize int

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// Retry controls retries of transient failures.
	Retry cerrors.RetryConfig

	// SkipHealthCheck skips model discovery and dimension detection.
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	retry := cerrors.DefaultRetryConfig()
	retry.OnlyRetryable = true
	return OllamaConfig{
		Host:      DefaultOllamaHost,
		Model:     DefaultOllamaModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Retry:     retry,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig
	model  string

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder and, unless SkipHealthCheck is set,
// verifies the model is installed and detects its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	defaults := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = defaults.Retry
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")

	e := &OllamaEmbedder{
		// No client-level timeout: each request gets its own context deadline.
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     10 * time.Second,
		}},
		config: cfg,
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}

	if cfg.SkipHealthCheck {
		return e, nil
	}

	if err := e.checkModel(ctx); err != nil {
		return nil, err
	}
	if e.dims == 0 {
		vec, err := e.Embed(ctx, "dimension probe")
		if err != nil {
			return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		e.mu.Lock()
		e.dims = len(vec)
		e.mu.Unlock()
	}

	slog.Debug("ollama_embedder_ready",
		slog.String("model", e.model),
		slog.Int("dimensions", e.Dimensions()))
	return e, nil
}

// checkModel confirms the configured model, with or without tag, is installed.
func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	var tags ollamaTagsResponse
	if err := e.do(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "cannot reach Ollama at "+e.config.Host, err).
			WithSuggestion("start Ollama or set embeddings.provider: static")
	}

	want := strings.ToLower(e.config.Model)
	for _, m := range tags.Models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == strings.Split(want, ":")[0] {
			e.model = m.Name
			return nil
		}
	}

	return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "embedding model not installed: "+e.config.Model, nil).
		WithSuggestion("run 'ollama pull " + e.config.Model + "'")
}

// Embed generates embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize chunks, retrying transient failures.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		batch := texts[start:end]

		vecs, err := cerrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
			return e.embedOnce(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}

	return results, nil
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.model, Input: texts}
	if err := e.do(ctx, http.MethodPost, "/api/embed", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("ollama returned %d embeddings for %d texts", len(resp.Embeddings), len(texts)), nil)
	}

	dims := e.Dimensions()
	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if dims != 0 && len(emb) != dims {
			return nil, cerrors.New(cerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", dims, len(emb)), nil)
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vecs[i] = normalizeVector(vec)
	}
	return vecs, nil
}

// do sends one JSON request. Transport failures and 5xx responses are
// retryable; 4xx responses are not.
func (e *OllamaEmbedder) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.config.Host+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		code := cerrors.ErrCodeEmbeddingFailed
		if resp.StatusCode < 500 {
			code = cerrors.ErrCodeInvalidInput
		}
		return cerrors.New(code, fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "failed to decode ollama response", err)
	}
	return nil
}

// Dimensions returns the embedding dimension, 0 until detected.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the resolved model name.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Available pings the tags endpoint.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	var tags ollamaTagsResponse
	return e.do(ctx, http.MethodGet, "/api/tags", nil, &tags) == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
