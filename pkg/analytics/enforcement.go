package analytics

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/graph"
)

const enforcementQuery = `
MATCH (ec:EnforcementCase)
RETURN ec.violation_type AS violation_type,
       count(ec) AS cases, coalesce(sum(ec.penalty), 0) AS total_penalty
ORDER BY cases DESC`

// EnforcementRiskScore derives a bounded risk signal from case frequency and
// aggregate penalties, normalized at one million per penalty unit.
func EnforcementRiskScore(cases int, totalPenalty float64) float64 {
	score := float64(cases) * (totalPenalty / 1_000_000)
	if score > 10 {
		score = 10
	}
	return score
}

/*
EnforcementLearning groups historic enforcement cases by violation type so
the Learn stage can weight future actions by what regulators actually fine.
*/
func (lib *Library) EnforcementLearning(ctx context.Context) (*QueryResult, error) {
	rows, err := lib.store.ExecuteQuery(ctx, enforcementQuery, nil, true)

	if err != nil {
		log.Error("enforcement learning query failed", "error", err)
		return lib.degraded(CategoryEnforcement, err), err
	}

	enriched := make([]graph.Row, 0, len(rows))
	totalCases := 0

	for _, row := range rows {
		cases := row.Int("cases")
		totalPenalty := row.Float("total_penalty")
		totalCases += cases

		average := 0.0
		if cases > 0 {
			average = totalPenalty / float64(cases)
		}

		enriched = append(enriched, graph.Row{
			"violation_type":  row.String("violation_type"),
			"cases":           cases,
			"total_penalty":   totalPenalty,
			"average_penalty": average,
			"risk_score":      EnforcementRiskScore(cases, totalPenalty),
		})
	}

	return lib.newResult(CategoryEnforcement, enriched, map[string]any{
		"violation_types": len(enriched),
		"total_cases":     totalCases,
	}), nil
}
