package embed

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings (default, offline).
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses the Ollama HTTP API.
	ProviderOllama ProviderType = "ollama"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   ProviderType
	Model      string
	Host       string
	Dimensions int
	CacheSize  int // 0 selects the default, negative disables caching
}

// NewEmbedder creates the embedder named by opts.Provider, wrapped in an LRU cache.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var embedder Embedder

	switch opts.Provider {
	case ProviderStatic, "":
		embedder = NewStaticEmbedder(opts.Dimensions)

	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Host != "" {
			cfg.Host = opts.Host
		}
		cfg.Dimensions = opts.Dimensions
		ollama, err := NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		embedder = ollama

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: %s)",
			opts.Provider, strings.Join(ValidProviders(), ", "))
	}

	if opts.CacheSize >= 0 {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}
	return embedder, nil
}

// ParseProvider converts a string to ProviderType. Unknown names are
// returned unchanged so NewEmbedder can reject them.
func ParseProvider(s string) ProviderType {
	return ProviderType(strings.ToLower(strings.TrimSpace(s)))
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderStatic), string(ProviderOllama)}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	p := string(ParseProvider(s))
	for _, v := range ValidProviders() {
		if p == v {
			return true
		}
	}
	return false
}
