package retrieval

import (
	"context"

	"github.com/complygraph/complygraph/pkg/errors"
)

const hybridExpandQuery = `
MATCH (e)
WHERE e.id IN $ids
OPTIONAL MATCH (e)-[rel]-(neighbor)
RETURN e.id AS id, labels(e) AS labels, properties(e) AS props,
       collect(DISTINCT {type: type(rel),
                         id: neighbor.id,
                         labels: labels(neighbor),
                         props: properties(neighbor)}) AS neighbors`

// vectorStrategy is the first link of the hybrid chain: look the query up in
// the similarity index, then expand the hits one hop in the graph. Any
// failure (no index configured, embedder down, empty hits) hands over to the
// local strategy via the chain in Retrieve.
func (engine *Engine) vectorStrategy(ctx context.Context, pack *ContextPack) error {
	if engine.index == nil || engine.embedder == nil {
		return errors.ErrGeneration.WithMessagef("similarity index not configured")
	}

	vector, err := engine.embedder.Embed(ctx, pack.Params.Query)

	if err != nil {
		return err
	}

	points, err := engine.index.Search(ctx, vector, pack.Params.Limit)

	if err != nil {
		return err
	}

	if len(points) == 0 {
		return errors.ErrNotFound.WithMessagef("similarity index returned no matches")
	}

	ids := make([]string, 0, len(points))

	for _, point := range points {
		ids = append(ids, point.ID)
		pack.Sources = appendSource(pack.Sources, "vector:similarity")
	}

	rows, err := engine.store.ExecuteQuery(ctx, hybridExpandQuery, map[string]any{"ids": ids}, true)

	if err != nil {
		return err
	}

	for _, row := range rows {
		entity := nodeFromRow(row, "id", "labels", "props")
		pack.Nodes = append(pack.Nodes, entity)

		neighbors, _ := row["neighbors"].([]any)

		for _, raw := range neighbors {
			entry, ok := raw.(map[string]any)
			if !ok || entry["id"] == nil {
				continue
			}

			neighbor := nodeFromRow(entry, "id", "labels", "props")
			pack.Nodes = append(pack.Nodes, neighbor)

			relType, _ := entry["type"].(string)
			if relType == "" {
				relType = "RELATED"
			}

			pack.Relationships = append(pack.Relationships, relationship(relType, entity.ID, neighbor.ID))
		}
	}

	pack.Mode = ModeHybrid
	pack.Confidence = 0.75
	pack.Sources = appendSource(pack.Sources, "graph:expansion")

	return nil
}
