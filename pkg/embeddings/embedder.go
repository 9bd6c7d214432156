// Package embeddings converts text into vectors through a remote model.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("embeddings: provider returned an empty vector")

// Embedder defines the interface for converting text into vector representations.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model names the model the vectors come from. It is stamped on every
	// chunk so vectors from different models are never mixed silently.
	Model() string
}

// BatchEmbedder is implemented by providers with a native batch endpoint.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider is "ollama", "openai" or "gemini".
	Provider string        `yaml:"provider" json:"provider"`
	URL      string        `yaml:"url" json:"url"`
	Model    string        `yaml:"model" json:"model"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// TaskType is only used by gemini (e.g. "RETRIEVAL_DOCUMENT").
	TaskType string `yaml:"task_type" json:"task_type"`
}

// DefaultConfig targets a local Ollama instance.
func DefaultConfig() Config {
	return Config{
		Provider: "ollama",
		URL:      "http://localhost:11434/api/embeddings",
		Model:    "nomic-embed-text",
		Timeout:  60 * time.Second,
	}
}

// New builds the embedder named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Timeout), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.URL, cfg.Model, cfg.APIKey, cfg.Timeout), nil
	case "gemini", "genai":
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.TaskType)
	default:
		return nil, fmt.Errorf("embeddings: unknown provider %q", cfg.Provider)
	}
}

// EmbedAll embeds texts in order, using the native batch endpoint when the
// provider has one.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b, ok := e.(BatchEmbedder); ok {
		vecs, err := b.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embeddings: batch returned %d vectors for %d inputs", len(vecs), len(texts))
		}
		return vecs, nil
	}

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
