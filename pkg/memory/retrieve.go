package memory

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/errors"
)

const recencyWindow = 30 * 24 * time.Hour

// RetrievalResult is the outcome of one contextual retrieval: copies of the
// matched nodes, the clusters they live in, the per-node fused scores, and a
// confidence equal to the mean returned score.
type RetrievalResult struct {
	Memories      []Node             `json:"memories"`
	Clusters      []string           `json:"clusters"`
	Scores        map[string]float64 `json:"scores"`
	TotalSearched int                `json:"total_searched"`
	Confidence    float64            `json:"confidence"`
}

// RetrieveContextual unions four candidate sets — entity match, tag match,
// semantic similarity and temporal recency — then scores each candidate with
// the fused relevance formula and keeps the best maxMemories at or above the
// threshold. Every returned node has its access bookkeeping bumped.
func (store *Store) RetrieveContextual(
	ctx context.Context, query string, qc QueryContext, maxMemories int, threshold float64,
) (*RetrievalResult, error) {
	if threshold < 0 || threshold > 1 {
		return nil, errors.ErrValidation.WithMessagef("relevance threshold %v outside [0,1]", threshold)
	}

	if maxMemories <= 0 {
		maxMemories = 5
	}

	queryEntities := toSet(qc.entities())
	queryTags := toSet(qc.tags(query))

	semanticIDs := map[string]bool{}

	if store.semantic != nil {
		ids, err := store.semantic.SimilarMemories(ctx, query, maxMemories*4)
		if err != nil {
			// The semantic set is optional by contract; failure just
			// shrinks the candidate union.
			log.Warn("semantic candidate lookup failed", "error", err)
		}
		for _, id := range ids {
			semanticIDs[id] = true
		}
	}

	now := store.now()

	store.sweep.RLock()

	type scored struct {
		node  *Node
		score float64
	}

	var candidates []scored
	totalSearched := 0

	for _, sh := range store.shards {
		sh.mu.RLock()
		for id, node := range sh.nodes {
			totalSearched++

			entityHit := node.hasEntity(queryEntities)
			tagHit := node.hasTag(queryTags)
			semanticHit := semanticIDs[id]
			recentHit := node.AccessCount > 0 && now.Sub(node.LastAccessed) <= recencyWindow

			if !entityHit && !tagHit && !semanticHit && !recentHit {
				continue
			}

			score := store.relevance(node, queryEntities, queryTags, now)
			if score >= threshold {
				candidates = append(candidates, scored{node: node, score: score})
			}
		}
		sh.mu.RUnlock()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].node.ID < candidates[j].node.ID
	})

	if len(candidates) > maxMemories {
		candidates = candidates[:maxMemories]
	}

	result := &RetrievalResult{
		Scores:        make(map[string]float64, len(candidates)),
		TotalSearched: totalSearched,
	}

	clusterNames := map[string]bool{}
	var scoreSum float64

	for _, candidate := range candidates {
		sh := store.shardFor(candidate.node.ID)
		sh.mu.Lock()
		candidate.node.AccessCount++
		candidate.node.LastAccessed = now
		copied := candidate.node.clone()
		sh.mu.Unlock()

		result.Memories = append(result.Memories, copied)
		result.Scores[copied.ID] = candidate.score
		scoreSum += candidate.score
		clusterNames[clusterKey(copied.Kind, copied.Tags)] = true
	}

	store.sweep.RUnlock()

	for name := range clusterNames {
		result.Clusters = append(result.Clusters, name)
	}
	sort.Strings(result.Clusters)

	if len(result.Memories) > 0 {
		result.Confidence = scoreSum / float64(len(result.Memories))
	}

	return result, nil
}

// relevance fuses five signals: entity overlap (0.4), tag overlap (0.3),
// importance (0.2), recency (0.1, linearly decaying to zero over 30 days)
// and a small bonus for frequently accessed nodes.
func (store *Store) relevance(node *Node, queryEntities, queryTags map[string]bool, now time.Time) float64 {
	score := 0.4*overlapRatio(node.Entities, queryEntities) +
		0.3*overlapRatio(node.Tags, queryTags) +
		0.2*node.Importance +
		0.1*recencyFactor(node.LastAccessed, now)

	if node.AccessCount > 2 {
		score += 0.05
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	return score
}

func overlapRatio(values []string, query map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}

	hits := 0
	for _, v := range values {
		if query[v] {
			hits++
		}
	}

	return float64(hits) / float64(len(query))
}

func recencyFactor(lastAccessed time.Time, now time.Time) float64 {
	age := now.Sub(lastAccessed)
	if age <= 0 {
		return 1
	}
	if age >= recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(recencyWindow)
}
