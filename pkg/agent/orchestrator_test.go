package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complygraph/complygraph/pkg/analytics"
	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/graph"
	"github.com/complygraph/complygraph/pkg/memory"
	"github.com/complygraph/complygraph/pkg/retrieval"
)

// scriptedGraph routes each Cypher query to canned rows by marker substring.
type scriptedGraph struct {
	err error
}

func (s *scriptedGraph) Ping(context.Context) error { return s.err }

func (s *scriptedGraph) ExecuteQuery(_ context.Context, query string, _ map[string]any, _ bool) ([]graph.Row, error) {
	if s.err != nil {
		return nil, s.err
	}

	switch {
	case strings.Contains(query, "$terms"):
		return nil, nil

	case strings.Contains(query, "NOT (:Control)-[:ADDRESSES]"):
		return []graph.Row{
			{"regulation": "GDPR", "requirement": "R1", "name": "Breach notification", "risk_level": "critical", "violations": 2, "penalties": 100000.0},
			{"regulation": "GDPR", "requirement": "R2", "name": "Records of processing", "risk_level": "medium", "violations": 4, "penalties": 0.0},
			{"regulation": "GDPR", "requirement": "R3", "name": "DPIA", "risk_level": "medium", "violations": 3, "penalties": 0.0},
			{"regulation": "GDPR", "requirement": "R4", "name": "DPO appointment", "risk_level": "low", "violations": 0, "penalties": 0.0},
			{"regulation": "GDPR", "requirement": "R5", "name": "Transfer safeguards", "risk_level": "low", "violations": 0, "penalties": 0.0},
		}, nil

	case strings.Contains(query, "count(DISTINCT req) AS requirements"):
		return []graph.Row{
			{"domain": "data-protection", "regulation": "GDPR", "requirements": 10, "controls": 5},
		}, nil

	case strings.Contains(query, "SIMILAR_RISK"):
		return nil, nil

	case strings.Contains(query, "RiskReview"):
		return nil, nil

	case strings.Contains(query, "violation_type"):
		return []graph.Row{
			{"violation_type": "late_notification", "cases": 4, "total_penalty": 2_000_000.0},
		}, nil

	default:
		return nil, nil
	}
}

type stubBackend struct {
	answer string
	err    error
}

func (b *stubBackend) Complete(context.Context, string, string) (string, error) {
	return b.answer, b.err
}

func (b *stubBackend) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.ErrGeneration.WithMessagef("no embeddings in tests")
}

type stubEvidence struct{}

func (stubEvidence) GetBusinessProfile(_ context.Context, id string) (map[string]any, error) {
	if id != "acme" {
		return nil, errors.ErrNotFound.WithMessagef("business profile %s", id)
	}
	return map[string]any{"name": "Acme Payments"}, nil
}

func (stubEvidence) CountEvidence(context.Context, string) (int, error) {
	return 12, nil
}

func newTestOrchestrator(store graph.Store, backend *stubBackend, options ...Option) *Orchestrator {
	return New(
		analytics.NewLibrary(store),
		retrieval.NewEngine(store),
		memory.NewStore(),
		backend,
		options...,
	)
}

func TestProcessFullPipeline(t *testing.T) {
	store := &scriptedGraph{}
	backend := &stubBackend{answer: "narrative compliance answer"}

	orchestrator := newTestOrchestrator(store, backend, WithEvidenceRepository(stubEvidence{}))

	response, err := orchestrator.Process(context.Background(), Request{
		Query:     "What are the breach notification requirements under GDPR?",
		ProfileID: "acme",
	})
	require.NoError(t, err)

	assert.Equal(t, "narrative compliance answer", response.Answer)
	assert.Equal(t, retrieval.ModeLocal, response.Mode)

	// 5 open gaps on 50% coverage with one critical gap: high posture.
	assert.Equal(t, PostureHigh, response.Posture)
	assert.Equal(t, 5, response.Summary.TotalGaps)
	assert.Equal(t, 1, response.Summary.CriticalGaps)
	assert.InDelta(t, 0.5, response.Summary.OverallCoverage, 1e-9)
	assert.Equal(t, "Acme Payments", response.Summary.ProfileName)
	assert.Equal(t, 12, response.Summary.EvidenceCount)

	// Actions sorted by risk level then severity.
	require.Len(t, response.Actions, 5)
	assert.Equal(t, "R1", response.Actions[0].Requirement)
	assert.Equal(t, "R2", response.Actions[1].Requirement)
	assert.Equal(t, "R3", response.Actions[2].Requirement)

	// R1: severity 8 fails the risk threshold. R2 (severity 6) and R3
	// (severity 5) are high priority, cheap enough, and get executed.
	assert.Equal(t, StatusEscalated, response.Actions[0].Status)
	assert.Equal(t, StatusExecuted, response.Actions[1].Status)
	assert.Equal(t, StatusExecuted, response.Actions[2].Status)
	assert.Equal(t, StatusPlanned, response.Actions[3].Status)
	assert.Equal(t, StatusPlanned, response.Actions[4].Status)

	assert.InDelta(t, 15000, response.Actions[0].EstimatedCost, 1e-9)
	assert.Equal(t, 30, response.Actions[0].TimelineDays)
	assert.InDelta(t, 7500, response.Actions[1].EstimatedCost, 1e-9)
	assert.Equal(t, 90, response.Actions[1].TimelineDays)

	// Five gaps in one domain trips the concentration pattern, and the two
	// executed actions yield effectiveness patterns.
	kinds := map[string]int{}
	for _, pattern := range response.Patterns {
		kinds[pattern.Kind]++
	}
	assert.Equal(t, 1, kinds["high_gap_concentration"])
	assert.Equal(t, 2, kinds["action_effectiveness"])

	assert.False(t, response.Degraded)
	assert.Greater(t, response.Confidence, 0.0)
}

func TestProcessRejectsEmptyQuery(t *testing.T) {
	orchestrator := newTestOrchestrator(&scriptedGraph{}, &stubBackend{answer: "x"})

	_, err := orchestrator.Process(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestProcessDegradesOnGraphFailure(t *testing.T) {
	store := &scriptedGraph{err: errors.ErrGraphQuery.WithMessagef("connection refused")}
	backend := &stubBackend{answer: "best effort answer"}

	orchestrator := newTestOrchestrator(store, backend)

	response, err := orchestrator.Process(context.Background(), Request{Query: "show the compliance landscape"})
	require.NoError(t, err)

	assert.True(t, response.Degraded)
	assert.NotEmpty(t, response.Errors)
	assert.Equal(t, "best effort answer", response.Answer)
	assert.Empty(t, response.Actions)
}

func TestProcessFallsBackWhenBackendFails(t *testing.T) {
	backend := &stubBackend{err: errors.ErrGeneration.WithMessagef("backend disabled")}

	orchestrator := newTestOrchestrator(&scriptedGraph{}, backend)

	response, err := orchestrator.Process(context.Background(), Request{Query: "gdpr requirement coverage"})
	require.NoError(t, err)

	assert.True(t, response.Degraded)
	assert.Equal(t, fallbackAnswer, response.Answer)
	assert.Equal(t, "generation backend unavailable", response.Note)
}

func TestProcessSkipsStagesPastDeadline(t *testing.T) {
	backend := &stubBackend{answer: "late answer"}
	orchestrator := newTestOrchestrator(&scriptedGraph{}, backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	response, err := orchestrator.Process(ctx, Request{Query: "gdpr coverage"})
	require.NoError(t, err)

	assert.True(t, response.Degraded)
	assert.Contains(t, response.Errors, StagePerceive)
	assert.Empty(t, response.Actions)
}

func TestShouldAutoExecute(t *testing.T) {
	orchestrator := newTestOrchestrator(&scriptedGraph{}, &stubBackend{})

	cases := []struct {
		name     string
		action   Action
		expected bool
	}{
		{"within all gates", Action{Severity: 6.5, EstimatedCost: 9000, Priority: "high"}, true},
		{"critical priority passes", Action{Severity: 5, EstimatedCost: 5000, Priority: "critical"}, true},
		{"severity at threshold", Action{Severity: 7.0, EstimatedCost: 9000, Priority: "high"}, false},
		{"cost at budget", Action{Severity: 6.5, EstimatedCost: 10000, Priority: "high"}, false},
		{"medium priority", Action{Severity: 2, EstimatedCost: 1000, Priority: "medium"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action := tc.action
			assert.Equal(t, tc.expected, orchestrator.shouldAutoExecute(&action))
		})
	}
}

func TestDerivePosture(t *testing.T) {
	convergence := func(pairs int) *analytics.QueryResult {
		return &analytics.QueryResult{Metadata: map[string]any{"total_pairs": pairs}}
	}

	cases := []struct {
		name     string
		state    State
		expected Posture
	}{
		{"many critical gaps", State{Summary: ComplianceSummary{CriticalGaps: 6, OverallCoverage: 0.9}}, PostureCritical},
		{"very low coverage", State{Summary: ComplianceSummary{OverallCoverage: 0.3}}, PostureCritical},
		{"heavy convergence", State{Summary: ComplianceSummary{OverallCoverage: 0.9}, Convergence: convergence(11)}, PostureCritical},
		{"some critical gaps", State{Summary: ComplianceSummary{CriticalGaps: 3, OverallCoverage: 0.9}}, PostureHigh},
		{"moderate coverage", State{Summary: ComplianceSummary{OverallCoverage: 0.65}}, PostureHigh},
		{"decent coverage", State{Summary: ComplianceSummary{OverallCoverage: 0.8}}, PostureMedium},
		{"healthy", State{Summary: ComplianceSummary{OverallCoverage: 0.95}, Convergence: convergence(0)}, PostureLow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := tc.state
			assert.Equal(t, tc.expected, derivePosture(&state))
		})
	}
}

func TestRegulationCodes(t *testing.T) {
	codes := regulationCodes(
		"How does GDPR interact with DORA? And the cat sat.",
		memory.QueryContext{Regulations: []string{"MiFID-II", "GDPR"}},
	)

	assert.Equal(t, []string{"MiFID-II", "GDPR", "DORA"}, codes)
}
