package provider

import (
	"context"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/viper"

	"github.com/complygraph/complygraph/pkg/errors"
)

/*
AnthropicProvider is a provider for the Anthropic API. Anthropic does not
expose an embeddings endpoint, so Embed reports generation-unsupported and
callers fall back to their non-semantic strategies.
*/
type AnthropicProvider struct {
	client    *anthropic.Client
	Model     string
	MaxTokens int64
}

type AnthropicProviderOption func(*AnthropicProvider)

func NewAnthropicProvider(options ...AnthropicProviderOption) *AnthropicProvider {
	prvdr := &AnthropicProvider{
		Model:     viper.GetString("provider.anthropic.model"),
		MaxTokens: 2048,
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *AnthropicProvider) Complete(
	ctx context.Context, system, prompt string,
) (string, error) {
	if prvdr.client == nil {
		return "", errors.ErrGeneration.WithMessagef("anthropic client not configured")
	}

	resp, err := prvdr.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(prvdr.Model),
		MaxTokens: prvdr.MaxTokens,
		System: []anthropic.TextBlockParam{{
			Text: system,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	if err != nil {
		return "", errors.ErrGeneration.WithMessagef("anthropic completion: %v", err)
	}

	var text string

	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}

	if text == "" {
		return "", errors.ErrGeneration.WithMessagef("anthropic returned no text")
	}

	return text, nil
}

func (prvdr *AnthropicProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.ErrGeneration.WithMessagef("anthropic does not support embeddings")
}

func WithAnthropicClient() AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		client := anthropic.NewClient(
			option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
		)

		prvdr.client = &client
	}
}

func WithAnthropicModel(model string) AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		prvdr.Model = model
	}
}
