// Package scorer defines the boundary to the relevance-scoring model and the
// provider implementations behind it.
//
// A Scorer computes one relevance score per (query, document) pair, batched
// over a document list. Implementations cover a local ONNX cross-encoder,
// Jina-compatible reranking APIs (Jina AI, vLLM, LocalAI), an LLM-judge
// fallback, and a deterministic mock for testing. Scores always come back in
// input order; callers own sorting and truncation.
package scorer

import (
	"context"
	"fmt"
	"time"

	"github.com/rerankd/rerankd/pkg/device"
)

// Scorer scores documents against a query.
type Scorer interface {
	// Score returns one relevance score per document, in input order.
	// Higher means more relevant.
	Score(ctx context.Context, query string, documents []string) ([]float64, error)

	// Close releases any resources held by the scorer (sessions,
	// connections).
	Close() error
}

// Provider selects a scorer implementation.
type Provider string

const (
	// ProviderONNX runs a local ONNX cross-encoder session.
	ProviderONNX Provider = "onnx"

	// ProviderJina calls a Jina-compatible reranking API.
	ProviderJina Provider = "jina"

	// ProviderLLM scores documents through an OpenAI-compatible chat model.
	ProviderLLM Provider = "llm"

	// ProviderMock uses deterministic token overlap, for tests and
	// development.
	ProviderMock Provider = "mock"
)

// Config holds configuration common to scorer providers.
type Config struct {
	Provider Provider `json:"provider"`

	// Model is the model identifier: a HuggingFace repo for the ONNX
	// provider, an API model name otherwise.
	Model string `json:"model"`

	// CacheDir is where the ONNX provider stores downloaded weights.
	CacheDir string `json:"cache_dir,omitempty"`

	// UseFP16 requests reduced-precision weights when available.
	UseFP16 bool `json:"use_fp16,omitempty"`

	// MaxLength caps the combined query+document token length.
	MaxLength int `json:"max_length,omitempty"`

	// BatchSize limits how many pairs go through the model at once.
	BatchSize int `json:"batch_size,omitempty"`

	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath string `json:"library_path,omitempty"`

	// BaseURL and APIKey configure the remote providers.
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`

	// Timeout bounds a single remote scoring call.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// New creates a scorer for the configured provider, bound to dev.
func New(cfg Config, dev device.Device) (Scorer, error) {
	switch cfg.Provider {
	case ProviderONNX, "":
		return NewONNXScorer(cfg, dev)
	case ProviderJina:
		return NewJinaScorer(cfg), nil
	case ProviderLLM:
		return NewLLMScorer(cfg), nil
	case ProviderMock:
		return NewMockScorer(), nil
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", cfg.Provider)
	}
}
