package retrieval

import (
	"context"
	"fmt"
)

const localMatchQuery = `
MATCH (req:Requirement)
WHERE any(term IN $terms WHERE toLower(req.name) CONTAINS term
      OR toLower(coalesce(req.description, '')) CONTAINS term)
  AND ($jurisdiction = '' OR EXISTS {
      MATCH (j:Jurisdiction {name: $jurisdiction})-[:ENFORCES]->(:Regulation)-[:CONTAINS]->(req)
  })
OPTIONAL MATCH (c:Control)-[:ADDRESSES]->(req)
OPTIONAL MATCH (req)-[:EVIDENCED_BY]->(e:Evidence)
RETURN req.id AS id, labels(req) AS labels, properties(req) AS props,
       collect(DISTINCT {id: c.id, labels: labels(c), props: properties(c)}) AS controls,
       collect(DISTINCT {id: e.id, labels: labels(e), props: properties(e)}) AS evidence
LIMIT $limit`

// localStrategy is direct match-and-expand: find requirements whose name or
// description mentions the query terms, then pull in their addressing
// controls and supporting evidence one hop out.
func (engine *Engine) localStrategy(ctx context.Context, pack *ContextPack) error {
	rows, err := engine.store.ExecuteQuery(ctx, localMatchQuery, map[string]any{
		"terms":        searchTerms(pack.Params.Query),
		"jurisdiction": pack.Params.Jurisdiction,
		"limit":        pack.Params.Limit,
	}, true)

	if err != nil {
		return err
	}

	pack.Mode = ModeLocal

	for _, row := range rows {
		requirement := nodeFromRow(row, "id", "labels", "props")
		pack.Nodes = append(pack.Nodes, requirement)
		pack.Sources = appendSource(pack.Sources, "graph:requirements")

		controls, _ := row["controls"].([]any)
		hasControl := false

		for _, raw := range controls {
			entry, ok := raw.(map[string]any)
			if !ok || entry["id"] == nil {
				continue
			}

			hasControl = true
			control := nodeFromRow(entry, "id", "labels", "props")
			pack.Nodes = append(pack.Nodes, control)
			pack.Relationships = append(pack.Relationships, relationship("ADDRESSES", control.ID, requirement.ID))
		}

		evidence, _ := row["evidence"].([]any)

		for _, raw := range evidence {
			entry, ok := raw.(map[string]any)
			if !ok || entry["id"] == nil {
				continue
			}

			doc := nodeFromRow(entry, "id", "labels", "props")
			pack.Nodes = append(pack.Nodes, doc)
			pack.Relationships = append(pack.Relationships, relationship("EVIDENCED_BY", requirement.ID, doc.ID))
		}

		if !hasControl {
			pack.Gaps = append(pack.Gaps, fmt.Sprintf(
				"requirement %q has no implementing control",
				requirement.Properties["name"],
			))
		}
	}

	if len(rows) > 0 {
		pack.Confidence = 0.9
	} else {
		pack.Confidence = 0.1
		pack.Gaps = append(pack.Gaps, "no requirements matched the query terms")
	}

	return nil
}
