package provider

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
	"github.com/spf13/viper"

	"github.com/complygraph/complygraph/pkg/errors"
)

/*
OllamaProvider runs completions and embeddings against a local Ollama daemon.
*/
type OllamaProvider struct {
	client *api.Client
	Model  string
	Embeds string
}

type OllamaProviderOption func(*OllamaProvider)

func NewOllamaProvider(options ...OllamaProviderOption) *OllamaProvider {
	prvdr := &OllamaProvider{
		Model:  viper.GetString("provider.ollama.model"),
		Embeds: viper.GetString("provider.ollama.embeddings"),
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *OllamaProvider) Complete(
	ctx context.Context, system, prompt string,
) (string, error) {
	if prvdr.client == nil {
		return "", errors.ErrGeneration.WithMessagef("ollama client not configured")
	}

	stream := false
	req := &api.ChatRequest{
		Model:  prvdr.Model,
		Stream: &stream,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	var builder strings.Builder

	respFunc := func(resp api.ChatResponse) error {
		builder.WriteString(resp.Message.Content)
		return nil
	}

	if err := prvdr.client.Chat(ctx, req, respFunc); err != nil {
		return "", errors.ErrGeneration.WithMessagef("ollama chat: %v", err)
	}

	return builder.String(), nil
}

func (prvdr *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if prvdr.client == nil {
		return nil, errors.ErrGeneration.WithMessagef("ollama client not configured")
	}

	resp, err := prvdr.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  prvdr.Embeds,
		Prompt: text,
	})

	if err != nil {
		return nil, errors.ErrGeneration.WithMessagef("ollama embeddings: %v", err)
	}

	return convertToFloat32(resp.Embedding), nil
}

func WithOllamaClient() OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			log.Error("failed to create ollama client", "error", err)
			return
		}
		prvdr.client = client
	}
}

func WithOllamaModel(model string) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.Model = model
	}
}
