package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/graph"
)

// fakeStore returns canned rows for every query, or a fixed error.
type fakeStore struct {
	rows []graph.Row
	err  error
}

func (f *fakeStore) ExecuteQuery(ctx context.Context, query string, params map[string]any, readOnly bool) ([]graph.Row, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.err }

func TestGapSeverity(t *testing.T) {
	assert.InDelta(t, 8.0, GapSeverity("critical", 2), 1e-9)
	assert.Equal(t, "critical", GapPriority(GapSeverity("critical", 2)))

	// Monotonically non-decreasing in risk level for equal violations.
	for _, violations := range []int{0, 1, 3, 10} {
		low := GapSeverity("low", violations)
		medium := GapSeverity("medium", violations)
		high := GapSeverity("high", violations)
		critical := GapSeverity("critical", violations)

		assert.Less(t, low, medium)
		assert.Less(t, medium, high)
		assert.Less(t, high, critical)
	}

	// Violation boost saturates at 2.0.
	assert.Equal(t, GapSeverity("high", 4), GapSeverity("high", 40))
}

func TestGapsOrdering(t *testing.T) {
	store := &fakeStore{rows: []graph.Row{
		{"regulation": "GDPR", "requirement": "r1", "risk_level": "medium", "violations": float64(0), "penalties": float64(0)},
		{"regulation": "GDPR", "requirement": "r2", "risk_level": "critical", "violations": float64(1), "penalties": float64(100)},
		{"regulation": "AMLD", "requirement": "r3", "risk_level": "critical", "violations": float64(3), "penalties": float64(50)},
		{"regulation": "AMLD", "requirement": "r4", "risk_level": "high", "violations": float64(5), "penalties": float64(900)},
	}}

	result, err := NewLibrary(store).Gaps(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Rows, 4)

	assert.Equal(t, "r3", result.Rows[0].String("requirement"))
	assert.Equal(t, "r2", result.Rows[1].String("requirement"))
	assert.Equal(t, "r4", result.Rows[2].String("requirement"))
	assert.Equal(t, "r1", result.Rows[3].String("requirement"))
	assert.Equal(t, 0.94, result.Confidence)
	assert.Equal(t, 4, result.Metadata["total_gaps"])
}

func TestCoverage(t *testing.T) {
	store := &fakeStore{rows: []graph.Row{
		{"domain": "privacy", "regulation": "GDPR", "requirements": float64(10), "controls": float64(5)},
		{"domain": "financial", "regulation": "MiFID", "requirements": float64(0), "controls": float64(0)},
	}}

	result, err := NewLibrary(store).Coverage(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.Rows[0].Float("coverage_ratio"), 1e-9)
	assert.InDelta(t, 0.0, result.Rows[1].Float("coverage_ratio"), 1e-9)
	assert.InDelta(t, 0.5, result.Metadata["overall_coverage"].(float64), 1e-9)
	assert.Equal(t, 0.95, result.Confidence)
}

func TestEnforcementRiskScore(t *testing.T) {
	assert.InDelta(t, 2.0, EnforcementRiskScore(2, 1_000_000), 1e-9)
	assert.Equal(t, 10.0, EnforcementRiskScore(100, 50_000_000))
	assert.Equal(t, 0.0, EnforcementRiskScore(0, 1_000_000))
}

func TestDegradedOnStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.ErrGraphQuery.WithMessagef("connection refused")}
	lib := NewLibrary(store)

	result, err := lib.Coverage(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Empty(t, result.Rows)
	assert.Equal(t, true, result.Metadata["degraded"])
	assert.Equal(t, 0.0, result.Confidence)
}

func TestConfidenceOverride(t *testing.T) {
	lib := NewLibrary(&fakeStore{}, WithConfidence(CategoryGaps, 0.5))

	result, err := lib.Gaps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestRiskConvergenceClassification(t *testing.T) {
	store := &fakeStore{rows: []graph.Row{
		{
			"left_id": "a", "left_domain": "privacy",
			"right_id": "b", "right_domain": "privacy",
			"left_controls": float64(1), "right_controls": float64(0),
		},
		{
			"left_id": "c", "left_domain": "privacy",
			"right_id": "d", "right_domain": "financial",
			"left_controls": float64(0), "right_controls": float64(0),
		},
	}}

	result, err := NewLibrary(store).RiskConvergence(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "same_domain", result.Rows[0].String("classification"))
	assert.Equal(t, "cross_domain", result.Rows[1].String("classification"))
	assert.Equal(t, false, result.Rows[0]["unmitigated"])
	assert.Equal(t, true, result.Rows[1]["unmitigated"])
	assert.Equal(t, 1, result.Metadata["unmitigated_pairs"])
}
