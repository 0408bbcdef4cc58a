package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complygraph/complygraph/pkg/errors"
)

// testClock lets tests move the store's notion of now.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*Store, *testClock) {
	clock := newTestClock()
	return NewStore(withClock(clock.Now)), clock
}

func TestStoreConversationDeduplicates(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	qc := QueryContext{Regulations: []string{"GDPR"}, Domains: []string{"data-protection"}}

	first, err := store.StoreConversation(ctx, "what are breach notification duties?", "72 hours", qc, 0.6)
	require.NoError(t, err)

	second, err := store.StoreConversation(ctx, "what are breach notification duties?", "72 hours", qc, 0.6)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Count())

	node, err := store.Get(first)
	require.NoError(t, err)
	assert.Equal(t, KindConversation, node.Kind)
	assert.Contains(t, node.Tags, "incident_response")
	assert.Contains(t, node.Entities, "GDPR")
}

func TestStoreConversationValidation(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, err := store.StoreConversation(ctx, "   ", "response", QueryContext{}, 0.5)
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = store.StoreConversation(ctx, "query", "response", QueryContext{}, 1.5)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestReStoringPreservesAccessHistory(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	id, err := store.StoreConversation(ctx, "gdpr consent rules", "summary", QueryContext{}, 0.5)
	require.NoError(t, err)

	created, err := store.Get(id)
	require.NoError(t, err)

	// Touch it through retrieval so there is history to preserve.
	result, err := store.RetrieveContextual(ctx, "gdpr consent rules", QueryContext{}, 5, 0)
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)

	clock.Advance(time.Hour)

	_, err = store.StoreConversation(ctx, "gdpr consent rules", "summary", QueryContext{}, 0.5)
	require.NoError(t, err)

	node, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, node.AccessCount)
	assert.Equal(t, created.CreatedAt, node.CreatedAt)
}

func TestRetrieveContextualScoresAndTruncates(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	qc := QueryContext{Regulations: []string{"GDPR"}}

	for i, response := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		importance := 0.3 + float64(i)*0.1
		_, err := store.StoreConversation(ctx, "gdpr question", response, qc, importance)
		require.NoError(t, err)
	}

	result, err := store.RetrieveContextual(ctx, "gdpr question", qc, 3, 0.1)
	require.NoError(t, err)

	require.Len(t, result.Memories, 3)
	assert.Equal(t, 7, result.TotalSearched)

	// Descending by score, and every returned score clears the threshold.
	for i := 1; i < len(result.Memories); i++ {
		prev := result.Scores[result.Memories[i-1].ID]
		cur := result.Scores[result.Memories[i].ID]
		assert.GreaterOrEqual(t, prev, cur)
	}

	var sum float64
	for _, node := range result.Memories {
		score := result.Scores[node.ID]
		assert.GreaterOrEqual(t, score, 0.1)
		assert.LessOrEqual(t, score, 1.0)
		sum += score
		assert.Equal(t, 1, node.AccessCount)
	}

	assert.InDelta(t, sum/3, result.Confidence, 1e-9)
}

func TestRetrieveContextualThreshold(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, err := store.StoreConversation(ctx, "unrelated chatter", "ok",
		QueryContext{Domains: []string{"catering"}}, 0.1)
	require.NoError(t, err)

	result, err := store.RetrieveContextual(ctx, "gdpr breach duties",
		QueryContext{Regulations: []string{"GDPR"}}, 5, 0.5)
	require.NoError(t, err)

	assert.Empty(t, result.Memories)
	assert.Zero(t, result.Confidence)

	_, err = store.RetrieveContextual(ctx, "x", QueryContext{}, 5, 1.2)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestPruneRules(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	// 40 days old, low importance, never accessed: removed.
	stale, err := store.StoreConversation(ctx, "stale question", "old", QueryContext{}, 0.2)
	require.NoError(t, err)

	// Protected kind, ancient: retained.
	rule, err := store.StoreRule(ctx, KindRegulatoryRule,
		map[string]any{"article": "Art. 33"}, QueryContext{Regulations: []string{"GDPR"}}, 0.3)
	require.NoError(t, err)

	// High importance, ancient: retained.
	critical, err := store.StoreConversation(ctx, "critical finding", "keep", QueryContext{}, 0.9)
	require.NoError(t, err)

	clock.Advance(35 * 24 * time.Hour)

	// 5 days old at prune time, low importance: inside the grace window.
	fresh, err := store.StoreConversation(ctx, "fresh question", "new", QueryContext{}, 0.1)
	require.NoError(t, err)

	clock.Advance(5 * 24 * time.Hour)

	report, err := store.Prune(ctx, 30, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 1, report.RemovedTotal)
	assert.Equal(t, 1, report.Removed[KindConversation])
	assert.Equal(t, 3, report.RetainedTotal)

	_, err = store.Get(stale)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	for _, id := range []string{rule, critical, fresh} {
		_, err = store.Get(id)
		assert.NoError(t, err)
	}

	// A second pass finds nothing new to remove.
	report, err = store.Prune(ctx, 30, 0.5)
	require.NoError(t, err)
	assert.Zero(t, report.RemovedTotal)
	assert.Equal(t, 3, report.RetainedTotal)
}

func TestPruneValidation(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Prune(context.Background(), 0, 0.5)
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = store.Prune(context.Background(), 30, -0.1)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestPruneRebuildsClusters(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	_, err := store.StoreConversation(ctx, "doomed exchange", "gone soon",
		QueryContext{Domains: []string{"catering"}}, 0.1)
	require.NoError(t, err)

	require.Equal(t, 1, store.ClusterCount())

	clock.Advance(60 * 24 * time.Hour)

	_, err = store.Prune(ctx, 30, 0.5)
	require.NoError(t, err)

	assert.Zero(t, store.Count())
	assert.Zero(t, store.ClusterCount())
}

func TestConsolidateReport(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	// Outside the window: ignored.
	_, err := store.StoreConversation(ctx, "ancient history", "n/a", QueryContext{}, 0.5)
	require.NoError(t, err)

	clock.Advance(90 * 24 * time.Hour)

	high := QueryContext{Domains: []string{"financial-crime"}, RiskLevel: "high"}
	amlQueries := []string{
		"aml screening gaps",
		"aml transaction monitoring",
		"aml sanction lists",
		"aml suspicious activity reports",
		"aml beneficial ownership checks",
	}
	for _, query := range amlQueries {
		_, err = store.StoreConversation(ctx, query, "answer", high, 0.8)
		require.NoError(t, err)
	}

	_, err = store.StoreConversation(ctx, "privacy retention schedule",
		"answer", QueryContext{Domains: []string{"data-protection"}, RiskLevel: "low"}, 0.4)
	require.NoError(t, err)

	before := store.Count()

	report, err := store.Consolidate(ctx, 30)
	require.NoError(t, err)

	assert.Equal(t, 6, report.NodesScanned)
	assert.GreaterOrEqual(t, report.Score, 0.0)
	assert.LessOrEqual(t, report.Score, 1.0)
	assert.NotEmpty(t, report.ReportID)

	assert.Contains(t, report.TrendingTags, "financial_crime")
	assert.Equal(t, 5, report.RiskByDomain["financial-crime"]["high"])
	assert.Contains(t, report.KnowledgeGaps, "data-protection")

	// The report itself lands in memory as a knowledge-graph result.
	assert.Equal(t, before+1, store.Count())

	stored, err := store.Get(report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, KindGraphResult, stored.Kind)
	assert.Contains(t, stored.Tags, "consolidation")
}

func TestStoreRuleRejectsWrongKind(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.StoreRule(context.Background(), KindConversation,
		map[string]any{"x": 1}, QueryContext{}, 0.5)
	assert.ErrorIs(t, err, errors.ErrValidation)
}
