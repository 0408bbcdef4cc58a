package analytics

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/graph"
)

const temporalQuery = `
MATCH (r:Regulation)
WHERE r.updated_at >= $cutoff
OPTIONAL MATCH (r)-[:SCHEDULES]->(rev:RiskReview)
WHERE rev.due_at >= $now
RETURN r.code AS regulation, r.name AS name,
       r.updated_at AS updated_at, r.effective_at AS effective_at,
       count(rev) AS upcoming_reviews
ORDER BY r.updated_at DESC`

/*
TemporalChanges reports regulations updated within the lookback window,
classifying each by update recency and regime age, together with the number
of risk reviews coming due.
*/
func (lib *Library) TemporalChanges(ctx context.Context, lookbackDays int) (*QueryResult, error) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -lookbackDays)

	rows, err := lib.store.ExecuteQuery(ctx, temporalQuery, map[string]any{
		"cutoff": cutoff.Format(time.RFC3339),
		"now":    now.Format(time.RFC3339),
	}, true)

	if err != nil {
		log.Error("temporal changes query failed", "error", err, "lookback_days", lookbackDays)
		return lib.degraded(CategoryTemporal, err), err
	}

	enriched := make([]graph.Row, 0, len(rows))
	upcomingReviews := 0

	for _, row := range rows {
		recency := "stable"
		if updated, parseErr := time.Parse(time.RFC3339, row.String("updated_at")); parseErr == nil {
			switch age := now.Sub(updated); {
			case age <= 30*24*time.Hour:
				recency = "recent"
			case age <= 90*24*time.Hour:
				recency = "moderate"
			}
		}

		maturity := "mature"
		if effective, parseErr := time.Parse(time.RFC3339, row.String("effective_at")); parseErr == nil {
			switch age := now.Sub(effective); {
			case age <= 365*24*time.Hour:
				maturity = "new"
			case age <= 3*365*24*time.Hour:
				maturity = "established"
			}
		}

		reviews := row.Int("upcoming_reviews")
		upcomingReviews += reviews

		enriched = append(enriched, graph.Row{
			"regulation":       row.String("regulation"),
			"name":             row.String("name"),
			"updated_at":       row.String("updated_at"),
			"recency":          recency,
			"maturity":         maturity,
			"upcoming_reviews": reviews,
		})
	}

	return lib.newResult(CategoryTemporal, enriched, map[string]any{
		"lookback_days":    lookbackDays,
		"changed":          len(enriched),
		"upcoming_reviews": upcomingReviews,
	}), nil
}
