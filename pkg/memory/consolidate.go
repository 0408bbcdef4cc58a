package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ConsolidationReport aggregates the recent memory window into the summary
// signals the orchestrator and operators care about.
type ConsolidationReport struct {
	WindowDays         int                       `json:"window_days"`
	NodesScanned       int                       `json:"nodes_scanned"`
	RiskByDomain       map[string]map[string]int `json:"risk_by_domain"`
	RegulationMentions map[string]int            `json:"regulation_mentions"`
	TrendingTags       []string                  `json:"trending_tags"`
	KnowledgeGaps      []string                  `json:"knowledge_gaps"`
	Score              float64                   `json:"score"`
	ReportID           string                    `json:"report_id"`
}

// Consolidate scans nodes created inside the window and aggregates
// per-domain risk histograms, entity mention counts, trending tags and
// under-covered entities. The report itself is stored back as a
// knowledge-graph memory so later queries can retrieve it.
func (store *Store) Consolidate(ctx context.Context, windowDays int) (*ConsolidationReport, error) {
	if windowDays <= 0 {
		windowDays = 30
	}

	now := store.now()
	cutoff := now.AddDate(0, 0, -windowDays)
	weekAgo := now.AddDate(0, 0, -7)

	report := &ConsolidationReport{
		WindowDays:         windowDays,
		RiskByDomain:       map[string]map[string]int{},
		RegulationMentions: map[string]int{},
	}

	// Whole-structure scan: exclusive section, no per-shard locking games.
	store.sweep.Lock()

	tagCounts := map[string]int{}
	kindsUsed := map[Kind]bool{}
	var importanceSum float64
	recentCount := 0

	for _, node := range store.snapshot() {
		if node.CreatedAt.Before(cutoff) {
			continue
		}

		report.NodesScanned++
		importanceSum += node.Importance
		kindsUsed[node.Kind] = true

		if node.CreatedAt.After(weekAgo) {
			recentCount++
		}

		riskLevel := ""
		for _, tag := range node.Tags {
			tagCounts[tag]++
			if strings.HasPrefix(tag, "risk:") {
				riskLevel = strings.TrimPrefix(tag, "risk:")
			}
		}

		for _, entity := range node.Entities {
			report.RegulationMentions[entity]++

			if riskLevel != "" {
				histogram, ok := report.RiskByDomain[entity]
				if !ok {
					histogram = map[string]int{}
					report.RiskByDomain[entity] = histogram
				}
				histogram[riskLevel]++
			}
		}
	}

	store.sweep.Unlock()

	report.TrendingTags = topTags(tagCounts, 5)
	report.KnowledgeGaps = coverageGaps(report.RegulationMentions)

	if report.NodesScanned > 0 {
		meanImportance := importanceSum / float64(report.NodesScanned)
		kindDiversity := float64(len(kindsUsed)) / float64(len(Kinds))
		recentFraction := float64(recentCount) / float64(report.NodesScanned)
		report.Score = 0.5*meanImportance + 0.3*kindDiversity + 0.2*recentFraction
	}

	id, err := store.StoreGraphResult(ctx, "consolidation", map[string]any{
		"window_days":         report.WindowDays,
		"nodes_scanned":       report.NodesScanned,
		"trending_tags":       report.TrendingTags,
		"knowledge_gaps":      report.KnowledgeGaps,
		"regulation_mentions": report.RegulationMentions,
		"score":               report.Score,
		"generated_at":        now.Format(time.RFC3339),
	}, clamp01(report.Score))

	if err != nil {
		log.Error("failed to store consolidation report", "error", err)
		return report, err
	}

	report.ReportID = id

	log.Info("memory consolidated",
		"window_days", windowDays,
		"scanned", report.NodesScanned,
		"score", report.Score)

	return report, nil
}

func topTags(counts map[string]int, n int) []string {
	type entry struct {
		tag   string
		count int
	}

	entries := make([]entry, 0, len(counts))
	for tag, count := range counts {
		entries = append(entries, entry{tag, count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].tag < entries[j].tag
	})

	if len(entries) > n {
		entries = entries[:n]
	}

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.tag
	}
	return out
}

// coverageGaps flags entities mentioned less than half as often as the
// average entity: thin memory about something the graph keeps raising.
func coverageGaps(mentions map[string]int) []string {
	if len(mentions) == 0 {
		return nil
	}

	total := 0
	for _, count := range mentions {
		total += count
	}
	average := float64(total) / float64(len(mentions))

	var gaps []string
	for entity, count := range mentions {
		if float64(count) < average/2 {
			gaps = append(gaps, entity)
		}
	}

	sort.Strings(gaps)
	return gaps
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
