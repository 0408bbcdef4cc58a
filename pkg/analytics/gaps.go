package analytics

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/graph"
)

const gapsQuery = `
MATCH (r:Regulation)-[:CONTAINS]->(req:Requirement)
WHERE NOT (:Control)-[:ADDRESSES]->(req)
OPTIONAL MATCH (ec:EnforcementCase)-[:CITES]->(req)
WITH r.code AS regulation, req.id AS requirement, req.name AS name,
     req.risk_level AS risk_level,
     count(ec) AS violations, coalesce(sum(ec.penalty), 0) AS penalties
RETURN regulation, requirement, name, risk_level, violations, penalties`

var riskMultiplier = map[string]float64{
	"critical": 4,
	"high":     3,
	"medium":   2,
	"low":      1,
}

var riskOrder = map[string]int{
	"critical": 0,
	"high":     1,
	"medium":   2,
	"low":      3,
}

// GapSeverity combines a requirement's risk level with its historic
// enforcement record. The violation contribution is capped so a long rap
// sheet cannot outweigh risk level entirely.
func GapSeverity(riskLevel string, violations int) float64 {
	multiplier, ok := riskMultiplier[riskLevel]
	if !ok {
		multiplier = 1
	}

	boost := float64(violations) * 0.5
	if boost > 2.0 {
		boost = 2.0
	}

	return multiplier * (1 + boost)
}

// GapPriority labels a severity score.
func GapPriority(severity float64) string {
	switch {
	case severity >= 8:
		return "critical"
	case severity >= 5:
		return "high"
	default:
		return "medium"
	}
}

/*
Gaps finds requirements with zero implementing controls and scores each by
severity. Results are ordered by risk level, then violation count, then
penalty size, so the head of the list is always the most urgent exposure.
*/
func (lib *Library) Gaps(ctx context.Context) (*QueryResult, error) {
	rows, err := lib.store.ExecuteQuery(ctx, gapsQuery, nil, true)

	if err != nil {
		log.Error("gap analysis query failed", "error", err)
		return lib.degraded(CategoryGaps, err), err
	}

	enriched := make([]graph.Row, 0, len(rows))
	countByPriority := map[string]int{}

	for _, row := range rows {
		riskLevel := row.String("risk_level")
		violations := row.Int("violations")
		severity := GapSeverity(riskLevel, violations)
		priority := GapPriority(severity)
		countByPriority[priority]++

		enriched = append(enriched, graph.Row{
			"regulation":  row.String("regulation"),
			"requirement": row.String("requirement"),
			"name":        row.String("name"),
			"risk_level":  riskLevel,
			"violations":  violations,
			"penalties":   row.Float("penalties"),
			"severity":    severity,
			"priority":    priority,
		})
	}

	sort.SliceStable(enriched, func(i, j int) bool {
		ri, rj := riskOrder[enriched[i].String("risk_level")], riskOrder[enriched[j].String("risk_level")]
		if ri != rj {
			return ri < rj
		}
		if vi, vj := enriched[i].Int("violations"), enriched[j].Int("violations"); vi != vj {
			return vi > vj
		}
		return enriched[i].Float("penalties") > enriched[j].Float("penalties")
	})

	return lib.newResult(CategoryGaps, enriched, map[string]any{
		"total_gaps":        len(enriched),
		"critical_gaps":     countByPriority["critical"],
		"high_gaps":         countByPriority["high"],
		"medium_gaps":       countByPriority["medium"],
		"count_by_priority": countByPriority,
	}), nil
}
