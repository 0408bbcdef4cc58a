package provider

import (
	"context"

	"github.com/complygraph/complygraph/pkg/errors"
)

/*
DisabledProvider stands in when no backend is configured. Every call reports
a generation error, which the Respond stage translates into its fallback
answer and hybrid retrieval into its next strategy.
*/
type DisabledProvider struct{}

func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{}
}

func (prvdr *DisabledProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	return "", errors.ErrGeneration.WithMessagef("generation backend disabled")
}

func (prvdr *DisabledProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.ErrGeneration.WithMessagef("generation backend disabled")
}
