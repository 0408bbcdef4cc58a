package analytics

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/graph"
)

const coverageQuery = `
MATCH (d:Domain)-[:GOVERNED_BY]->(r:Regulation)-[:CONTAINS]->(req:Requirement)
OPTIONAL MATCH (c:Control)-[:ADDRESSES]->(req)
WITH d.name AS domain, r.code AS regulation,
     count(DISTINCT req) AS requirements, count(DISTINCT c) AS controls
RETURN domain, regulation, requirements, controls
ORDER BY domain, regulation`

/*
Coverage computes, per domain and regulation, the ratio of implementing
controls to requirements, plus an aggregate coverage score across the whole
graph. A regulation with no requirements contributes a ratio of zero.
*/
func (lib *Library) Coverage(ctx context.Context) (*QueryResult, error) {
	rows, err := lib.store.ExecuteQuery(ctx, coverageQuery, nil, true)

	if err != nil {
		log.Error("coverage query failed", "error", err)
		return lib.degraded(CategoryCoverage, err), err
	}

	var totalRequirements, totalControls int

	enriched := make([]graph.Row, 0, len(rows))

	for _, row := range rows {
		requirements := row.Int("requirements")
		controls := row.Int("controls")

		ratio := 0.0
		if requirements > 0 {
			ratio = float64(controls) / float64(requirements)
			if ratio > 1 {
				ratio = 1
			}
		}

		totalRequirements += requirements
		totalControls += controls

		enriched = append(enriched, graph.Row{
			"domain":         row.String("domain"),
			"regulation":     row.String("regulation"),
			"requirements":   requirements,
			"controls":       controls,
			"coverage_ratio": ratio,
		})
	}

	overall := 0.0
	if totalRequirements > 0 {
		overall = float64(totalControls) / float64(totalRequirements)
		if overall > 1 {
			overall = 1
		}
	}

	return lib.newResult(CategoryCoverage, enriched, map[string]any{
		"overall_coverage":   overall,
		"total_requirements": totalRequirements,
		"total_controls":     totalControls,
	}), nil
}
