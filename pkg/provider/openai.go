package provider

import (
	"context"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/viper"

	"github.com/complygraph/complygraph/pkg/errors"
)

/*
OpenAIProvider is a provider for the OpenAI API.
*/
type OpenAIProvider struct {
	client *openai.Client
	Model  string
	Embeds string
}

type OpenAIProviderOption func(*OpenAIProvider)

func NewOpenAIProvider(options ...OpenAIProviderOption) *OpenAIProvider {
	prvdr := &OpenAIProvider{
		Model:  viper.GetString("provider.openai.model"),
		Embeds: viper.GetString("provider.openai.embeddings"),
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *OpenAIProvider) Complete(
	ctx context.Context, system, prompt string,
) (string, error) {
	if prvdr.client == nil {
		return "", errors.ErrGeneration.WithMessagef("openai client not configured")
	}

	completion, err := prvdr.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(prvdr.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage[string](system),
			openai.UserMessage[string](prompt),
		},
	})

	if err != nil {
		return "", errors.ErrGeneration.WithMessagef("openai completion: %v", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.ErrGeneration.WithMessagef("openai returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}

func (prvdr *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if prvdr.client == nil {
		return nil, errors.ErrGeneration.WithMessagef("openai client not configured")
	}

	resp, err := prvdr.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(prvdr.Embeds),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
	})

	if err != nil {
		return nil, errors.ErrGeneration.WithMessagef("openai embeddings: %v", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.ErrGeneration.WithMessagef("openai returned no embedding")
	}

	return convertToFloat32(resp.Data[0].Embedding), nil
}

func WithOpenAIClient() OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		client := openai.NewClient(
			option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
		)

		prvdr.client = &client
	}
}

func WithOpenAIModel(model string) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		prvdr.Model = model
	}
}
