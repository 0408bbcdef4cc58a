package neo4j

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/graph"
)

// Client talks to Neo4j's transactional HTTP endpoint. It implements
// graph.Store, decoding the columns/rows envelope into keyed records so
// callers never see the wire format.
type Client struct {
	Endpoint   string
	Username   string
	Password   string
	httpClient *http.Client
}

func New(endpoint, user, pass string) *Client {
	return &Client{
		Endpoint:   endpoint,
		Username:   user,
		Password:   pass,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type txResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []any `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExecuteQuery sends a single Cypher statement with parameters and returns
// the rows keyed by their return aliases.
func (client *Client) ExecuteQuery(
	ctx context.Context, cypher string, params map[string]any, readOnly bool,
) ([]graph.Row, error) {
	payload := map[string]any{
		"statements": []map[string]any{{
			"statement":  cypher,
			"parameters": params,
		}},
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, err
	}

	endpoint := client.Endpoint + "/db/neo4j/tx/commit"

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, bytes.NewReader(b),
	)

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if readOnly {
		req.Header.Set("Access-Mode", "READ")
	}

	if client.Username != "" {
		req.SetBasicAuth(client.Username, client.Password)
	}

	resp, err := client.httpClient.Do(req)

	if err != nil {
		return nil, errors.ErrGraphQuery.WithMessagef("neo4j request failed: %v", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, errors.ErrGraphQuery.WithMessagef("neo4j: status %s", resp.Status)
	}

	var out txResponse

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	if len(out.Errors) > 0 {
		return nil, errors.ErrGraphQuery.WithMessagef(
			"neo4j: %s (%s)", out.Errors[0].Message, out.Errors[0].Code,
		)
	}

	if len(out.Results) == 0 {
		return nil, nil
	}

	result := out.Results[0]
	rows := make([]graph.Row, 0, len(result.Data))

	for _, datum := range result.Data {
		row := make(graph.Row, len(result.Columns))

		for i, col := range result.Columns {
			if i < len(datum.Row) {
				row[col] = datum.Row[i]
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// Ping verifies connectivity with a trivial statement.
func (client *Client) Ping(ctx context.Context) error {
	if _, err := client.ExecuteQuery(ctx, "RETURN 1", nil, true); err != nil {
		return fmt.Errorf("neo4j ping: %w", err)
	}
	return nil
}
