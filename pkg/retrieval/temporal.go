package retrieval

import (
	"context"
	"fmt"
	"time"
)

const temporalMatchQuery = `
MATCH (r:Regulation)
WHERE r.updated_at >= $cutoff
OPTIONAL MATCH (r)-[:SUPERSEDES]->(old:Regulation)
OPTIONAL MATCH (r)-[:AMENDS]->(base:Regulation)
RETURN r.id AS id, labels(r) AS labels, properties(r) AS props,
       old.id AS supersedes, base.id AS amends
ORDER BY r.updated_at DESC
LIMIT $limit`

// temporalStrategy finds entities updated after the cutoff and attaches
// their supersession and amendment links, classifying each change as a
// replacement, an amendment, or genuinely new material.
func (engine *Engine) temporalStrategy(ctx context.Context, pack *ContextPack) error {
	cutoff := pack.Params.Cutoff
	if cutoff.IsZero() {
		cutoff = time.Now().UTC().AddDate(-1, 0, 0)
	}

	rows, err := engine.store.ExecuteQuery(ctx, temporalMatchQuery, map[string]any{
		"cutoff": cutoff.Format(time.RFC3339),
		"limit":  pack.Params.Limit,
	}, true)

	if err != nil {
		return err
	}

	for _, row := range rows {
		regulation := nodeFromRow(row, "id", "labels", "props")

		changeKind := "new"

		if superseded := row.String("supersedes"); superseded != "" {
			changeKind = "replacement"
			pack.Relationships = append(pack.Relationships, relationship("SUPERSEDES", regulation.ID, superseded))
		} else if amended := row.String("amends"); amended != "" {
			changeKind = "amendment"
			pack.Relationships = append(pack.Relationships, relationship("AMENDS", regulation.ID, amended))
		}

		if regulation.Properties == nil {
			regulation.Properties = map[string]any{}
		}
		regulation.Properties["change_kind"] = changeKind

		pack.Nodes = append(pack.Nodes, regulation)
		pack.Sources = appendSource(pack.Sources, "graph:temporal")
	}

	pack.Confidence = 0.85

	if len(rows) < 5 {
		pack.Gaps = append(pack.Gaps, fmt.Sprintf(
			"only %d change(s) found since %s; temporal coverage may be thin",
			len(rows), cutoff.Format("2006-01-02"),
		))
	}

	return nil
}
