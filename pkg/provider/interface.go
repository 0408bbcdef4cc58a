package provider

import (
	"context"
	"os"

	"github.com/spf13/viper"
)

/*
Interface is the only contract the engine has with a generation backend.
Complete is consumed by the Respond stage, Embed by hybrid retrieval and the
memory store's semantic candidate set. Everything else in the repository is
provider-agnostic.
*/
type Interface interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

/*
FromConfig selects a provider from the "provider.name" config key. When the
configured provider has no credentials available the disabled provider is
returned, which degrades the Respond stage instead of failing the pipeline.
*/
func FromConfig() Interface {
	switch viper.GetString("provider.name") {
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") != "" {
			return NewAnthropicProvider(WithAnthropicClient())
		}
	case "ollama":
		return NewOllamaProvider(WithOllamaClient())
	default:
		if os.Getenv("OPENAI_API_KEY") != "" {
			return NewOpenAIProvider(WithOpenAIClient())
		}
	}

	return NewDisabledProvider()
}

func convertToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
