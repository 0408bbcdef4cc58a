package analytics

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/graph"
)

const convergenceQuery = `
MATCH (a:Requirement)-[:SIMILAR_RISK]-(b:Requirement)
WHERE a.risk_level IN ['high', 'critical'] AND b.risk_level IN ['high', 'critical']
  AND a.id < b.id
MATCH (ra:Regulation)-[:CONTAINS]->(a), (rb:Regulation)-[:CONTAINS]->(b)
MATCH (da:Domain)-[:GOVERNED_BY]->(ra), (db:Domain)-[:GOVERNED_BY]->(rb)
OPTIONAL MATCH (ca:Control)-[:ADDRESSES]->(a)
OPTIONAL MATCH (cb:Control)-[:ADDRESSES]->(b)
RETURN a.id AS left_id, a.name AS left_name, da.name AS left_domain,
       b.id AS right_id, b.name AS right_name, db.name AS right_domain,
       count(DISTINCT ca) AS left_controls, count(DISTINCT cb) AS right_controls`

/*
RiskConvergence finds pairs of high or critical requirements linked as
similar risks, classifying each pair as same-domain or cross-domain.
Pairs where neither side has an implementing control are flagged as
unmitigated: those are the convergence points most likely to compound.
*/
func (lib *Library) RiskConvergence(ctx context.Context) (*QueryResult, error) {
	rows, err := lib.store.ExecuteQuery(ctx, convergenceQuery, nil, true)

	if err != nil {
		log.Error("risk convergence query failed", "error", err)
		return lib.degraded(CategoryConvergence, err), err
	}

	enriched := make([]graph.Row, 0, len(rows))
	crossDomain := 0
	unmitigated := 0

	for _, row := range rows {
		classification := "same_domain"
		if row.String("left_domain") != row.String("right_domain") {
			classification = "cross_domain"
			crossDomain++
		}

		pairUnmitigated := row.Int("left_controls") == 0 && row.Int("right_controls") == 0
		if pairUnmitigated {
			unmitigated++
		}

		enriched = append(enriched, graph.Row{
			"left_id":        row.String("left_id"),
			"left_name":      row.String("left_name"),
			"left_domain":    row.String("left_domain"),
			"right_id":       row.String("right_id"),
			"right_name":     row.String("right_name"),
			"right_domain":   row.String("right_domain"),
			"classification": classification,
			"unmitigated":    pairUnmitigated,
		})
	}

	return lib.newResult(CategoryConvergence, enriched, map[string]any{
		"total_pairs":       len(enriched),
		"cross_domain":      crossDomain,
		"same_domain":       len(enriched) - crossDomain,
		"unmitigated_pairs": unmitigated,
	}), nil
}
