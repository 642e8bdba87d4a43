package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fabfab/booksearch/config"
)

type openAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider builds a Provider backed by the OpenAI embeddings API.
func NewOpenAIProvider(cfg config.OpenAI) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &openAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimensions,
	}, nil
}

// NewOpenAIClient is the common wiring: OpenAI provider behind the adaptive
// batching client.
func NewOpenAIClient(cfg config.OpenAI) (*Client, error) {
	provider, err := NewOpenAIProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(provider, cfg.MaxRetries), nil
}

func (p *openAIProvider) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai embeddings: %w", err)
	}

	results := make([][]float32, len(resp.Data))
	for i, datum := range resp.Data {
		if p.dimension > 0 && len(datum.Embedding) != p.dimension {
			return nil, fmt.Errorf("openai embedding dimension mismatch: expected %d, got %d", p.dimension, len(datum.Embedding))
		}
		results[i] = datum.Embedding
	}

	return results, nil
}
