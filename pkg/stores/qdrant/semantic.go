package qdrant

import "context"

// Embedder turns text into a vector; the provider layer satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Semantic adapts the vector index into the memory store's candidate
// source: embed the query, search, hand back the matched ids.
type Semantic struct {
	client   *Client
	embedder Embedder
}

func NewSemantic(client *Client, embedder Embedder) *Semantic {
	return &Semantic{client: client, embedder: embedder}
}

func (s *Semantic) SimilarMemories(ctx context.Context, query string, limit int) ([]string, error) {
	vec, err := s.embedder.Embed(ctx, query)

	if err != nil {
		return nil, err
	}

	points, err := s.client.Search(ctx, vec, limit)

	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(points))

	for _, p := range points {
		ids = append(ids, p.ID)
	}

	return ids, nil
}
