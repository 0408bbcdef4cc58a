package analytics

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/graph"
)

const jurisdictionQuery = `
MATCH (r:Regulation)
WHERE r.code IN $codes
OPTIONAL MATCH (j:Jurisdiction)-[:ENFORCES]->(r)
OPTIONAL MATCH (ec:EnforcementCase)-[:CITES]->(r)
WITH r.code AS regulation, r.extraterritorial AS extraterritorial,
     collect(DISTINCT j.name) AS jurisdictions,
     count(DISTINCT ec) AS cases, coalesce(sum(ec.penalty), 0) AS penalties
RETURN regulation, extraterritorial, jurisdictions, cases, penalties`

/*
CrossJurisdictionalImpact collects, for a set of regulation codes, the
jurisdictions enforcing each one along with enforcement-case statistics.
Extraterritorial regulations are expanded to global scope since they reach
businesses outside their enforcing jurisdictions.
*/
func (lib *Library) CrossJurisdictionalImpact(ctx context.Context, codes []string) (*QueryResult, error) {
	rows, err := lib.store.ExecuteQuery(ctx, jurisdictionQuery, map[string]any{"codes": codes}, true)

	if err != nil {
		log.Error("cross-jurisdictional query failed", "error", err, "codes", codes)
		return lib.degraded(CategoryJurisdiction, err), err
	}

	enriched := make([]graph.Row, 0, len(rows))
	allJurisdictions := map[string]bool{}
	totalCases := 0

	for _, row := range rows {
		jurisdictions := row.Strings("jurisdictions")
		scope := "regional"

		if extra, ok := row["extraterritorial"].(bool); ok && extra {
			scope = "global"
		}

		for _, j := range jurisdictions {
			allJurisdictions[j] = true
		}

		cases := row.Int("cases")
		totalCases += cases

		enriched = append(enriched, graph.Row{
			"regulation":    row.String("regulation"),
			"scope":         scope,
			"jurisdictions": jurisdictions,
			"cases":         cases,
			"penalties":     row.Float("penalties"),
		})
	}

	return lib.newResult(CategoryJurisdiction, enriched, map[string]any{
		"regulations_analyzed":    len(enriched),
		"distinct_jurisdictions":  len(allJurisdictions),
		"total_enforcement_cases": totalCases,
	}), nil
}
