package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client wraps a Qdrant endpoint + collection. It backs the similarity index
// used by hybrid retrieval and by the memory store's semantic candidate set.
type Client struct {
	Endpoint   string // e.g. http://localhost:6333
	Collection string // e.g. "compliance"
	httpClient *http.Client
}

// New returns a Client with sane defaults.
func New(endpoint, collection string) *Client {
	return &Client{
		Endpoint:   endpoint,
		Collection: collection,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Point is one indexed item: the graph entity id plus its payload.
type Point struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes a batch of points. Vectors must already be computed by the
// caller's embedder.
func (client *Client) Upsert(ctx context.Context, points []Point, vectors [][]float32) error {
	if len(points) != len(vectors) {
		return fmt.Errorf("qdrant: %d points but %d vectors", len(points), len(vectors))
	}

	body := map[string]any{"points": make([]map[string]any, 0, len(points))}

	for i, p := range points {
		body["points"] = append(body["points"].([]map[string]any), map[string]any{
			"id":      p.ID,
			"payload": p.Payload,
			"vector":  vectors[i],
		})
	}

	b, err := json.Marshal(body)

	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points", client.Endpoint, client.Collection),
		bytes.NewReader(b),
	)

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: upsert status %s", resp.Status)
	}

	return nil
}

// Search performs a vector search and returns scored points with payloads.
func (client *Client) Search(ctx context.Context, queryVec []float32, limit int) ([]Point, error) {
	body := map[string]any{
		"vector":       queryVec,
		"limit":        limit,
		"with_payload": true,
	}

	b, err := json.Marshal(body)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", client.Endpoint, client.Collection),
		bytes.NewReader(b),
	)

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant: search status %s", resp.Status)
	}

	var out struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(out.Result))

	for _, r := range out.Result {
		points = append(points, Point{
			ID:      fmt.Sprintf("%v", r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}

	return points, nil
}

// Delete removes a point by ID.
func (client *Client) Delete(ctx context.Context, id string) error {
	body := map[string]any{"points": []string{id}}
	b, err := json.Marshal(body)

	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/delete", client.Endpoint, client.Collection),
		bytes.NewReader(b),
	)

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: delete status %s", resp.Status)
	}

	return nil
}
