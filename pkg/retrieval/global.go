package retrieval

import (
	"context"
	"fmt"
)

const globalMatchQuery = `
MATCH (d:Domain)-[:GOVERNED_BY]->(r:Regulation)
WHERE any(term IN $terms WHERE toLower(d.name) CONTAINS term
      OR toLower(r.name) CONTAINS term
      OR toLower(coalesce(r.code, '')) CONTAINS term)
OPTIONAL MATCH (j:Jurisdiction)-[:ENFORCES]->(r)
WITH d, collect(DISTINCT {id: r.id, labels: labels(r), props: properties(r)}) AS regulations,
     collect(DISTINCT j.name) AS jurisdictions
RETURN d.id AS id, labels(d) AS labels, properties(d) AS props,
       regulations, jurisdictions
LIMIT $limit`

// globalStrategy aggregates across domains: which regulatory domains touch
// the query, their regulations, and the union of jurisdictions covered.
// Confidence scales with the breadth of domains found.
func (engine *Engine) globalStrategy(ctx context.Context, pack *ContextPack) error {
	rows, err := engine.store.ExecuteQuery(ctx, globalMatchQuery, map[string]any{
		"terms": searchTerms(pack.Params.Query),
		"limit": pack.Params.Limit,
	}, true)

	if err != nil {
		return err
	}

	jurisdictions := map[string]bool{}

	for _, row := range rows {
		domain := nodeFromRow(row, "id", "labels", "props")
		pack.Nodes = append(pack.Nodes, domain)
		pack.Sources = appendSource(pack.Sources, "graph:domains")

		regulations, _ := row["regulations"].([]any)

		for _, raw := range regulations {
			entry, ok := raw.(map[string]any)
			if !ok || entry["id"] == nil {
				continue
			}

			regulation := nodeFromRow(entry, "id", "labels", "props")
			pack.Nodes = append(pack.Nodes, regulation)
			pack.Relationships = append(pack.Relationships, relationship("GOVERNED_BY", domain.ID, regulation.ID))
		}

		for _, j := range row.Strings("jurisdictions") {
			jurisdictions[j] = true
		}
	}

	// Breadth drives confidence here: one domain is a narrow view of a
	// cross-cutting question.
	pack.Confidence = 0.2 * float64(len(rows))
	if pack.Confidence > 0.8 {
		pack.Confidence = 0.8
	}

	if len(rows) < 2 {
		pack.Gaps = append(pack.Gaps, fmt.Sprintf(
			"only %d domain(s) matched a cross-entity query", len(rows),
		))
	}

	for j := range jurisdictions {
		pack.Sources = appendSource(pack.Sources, "jurisdiction:"+j)
	}

	return nil
}
