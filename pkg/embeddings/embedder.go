// Package embeddings turns text into fixed-length vectors through a remote
// model server.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Embedder defines the interface for converting text into vector representations.
// Implementations return one vector per input text, in input order, or an error;
// they never return a partial batch.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Func adapts a plain function to the Embedder interface.
type Func func(ctx context.Context, texts []string) ([][]float64, error)

func (f Func) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return f(ctx, texts)
}

// RateLimited wraps an Embedder so that each Embed call first waits for a
// token from the limiter.
type RateLimited struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimited allows at most rps calls per second with the given burst.
// rps <= 0 disables limiting.
func NewRateLimited(next Embedder, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Embed(ctx, texts)
}

// Config selects and configures an Embedder.
type Config struct {
	Type    string        `yaml:"type"` // "ollama" or "openai"
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond caps calls to the model server; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultConfig returns a working configuration for local Ollama.
func DefaultConfig() Config {
	return Config{
		Type:    "ollama",
		URL:     "http://localhost:11434/api/embeddings",
		Model:   "nomic-embed-text",
		Timeout: 60 * time.Second,
	}
}

// New builds the Embedder described by cfg, rate limited when requested.
func New(cfg Config) (Embedder, error) {
	var e Embedder
	switch cfg.Type {
	case "ollama", "ollama_api":
		e = NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Timeout)
	case "openai", "openai_compatible":
		e = NewOpenAIEmbedder(cfg.URL, cfg.Model, cfg.APIKey, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
	if cfg.RequestsPerSecond > 0 {
		e = NewRateLimited(e, cfg.RequestsPerSecond, 1)
	}
	return e, nil
}
