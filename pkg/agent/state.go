package agent

import (
	"time"

	"github.com/complygraph/complygraph/pkg/analytics"
	"github.com/complygraph/complygraph/pkg/memory"
	"github.com/complygraph/complygraph/pkg/retrieval"
)

// Stage names the six pipeline phases plus the terminal state.
type Stage string

const (
	StagePerceive Stage = "perceive"
	StagePlan     Stage = "plan"
	StageAct      Stage = "act"
	StageLearn    Stage = "learn"
	StageRemember Stage = "remember"
	StageRespond  Stage = "respond"
	StageDone     Stage = "done"
)

// ActionStatus tracks an action through the autonomy gate.
type ActionStatus string

const (
	StatusPlanned   ActionStatus = "planned"
	StatusExecuted  ActionStatus = "executed"
	StatusEscalated ActionStatus = "escalated"
)

// Action is one remediation step derived from a compliance gap.
type Action struct {
	ID            string       `json:"id"`
	Regulation    string       `json:"regulation"`
	Requirement   string       `json:"requirement"`
	Name          string       `json:"name"`
	RiskLevel     string       `json:"risk_level"`
	Severity      float64      `json:"severity"`
	Priority      string       `json:"priority"`
	EstimatedCost float64      `json:"estimated_cost"`
	TimelineDays  int          `json:"timeline_days"`
	Status        ActionStatus `json:"status"`
}

// Pattern is an insight detected during Learn, destined for the memory store.
type Pattern struct {
	Kind       string         `json:"kind"`
	Summary    string         `json:"summary"`
	Confidence float64        `json:"confidence"`
	Detail     map[string]any `json:"detail"`
}

// Posture is the coarse end-state risk classification.
type Posture string

const (
	PostureLow      Posture = "low"
	PostureMedium   Posture = "medium"
	PostureHigh     Posture = "high"
	PostureCritical Posture = "critical"
)

// ComplianceSummary is the posture snapshot built during Perceive.
type ComplianceSummary struct {
	OverallCoverage float64 `json:"overall_coverage"`
	TotalGaps       int     `json:"total_gaps"`
	CriticalGaps    int     `json:"critical_gaps"`
	HighGaps        int     `json:"high_gaps"`
	ProfileName     string  `json:"profile_name,omitempty"`
	EvidenceCount   int     `json:"evidence_count,omitempty"`
}

/*
State is the per-query working state threaded through the pipeline. It is
created at Perceive entry, mutated by exactly one stage at a time, and
discarded after Respond; only the memories written during Remember survive.
Stage failures land in Errors keyed by stage instead of aborting the run.
*/
type State struct {
	Query        string              `json:"query"`
	QueryContext memory.QueryContext `json:"query_context"`
	ProfileID    string              `json:"profile_id,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	Stage        Stage               `json:"stage"`
	Step         int64               `json:"step"`

	Coverage     *analytics.QueryResult `json:"coverage,omitempty"`
	Gaps         *analytics.QueryResult `json:"gaps,omitempty"`
	Jurisdiction *analytics.QueryResult `json:"jurisdiction,omitempty"`
	Convergence  *analytics.QueryResult `json:"convergence,omitempty"`
	Temporal     *analytics.QueryResult `json:"temporal,omitempty"`
	Enforcement  *analytics.QueryResult `json:"enforcement,omitempty"`

	Context *retrieval.ContextPack `json:"context,omitempty"`
	Summary ComplianceSummary      `json:"summary"`

	Actions  []Action         `json:"actions"`
	Evidence []map[string]any `json:"evidence"`
	Patterns []Pattern        `json:"patterns"`

	MemoriesAccessed []string         `json:"memories_accessed"`
	Errors           map[Stage]string `json:"errors"`
}

func newState(query string, qc memory.QueryContext, profileID string, step int64, startedAt time.Time) *State {
	return &State{
		Query:        query,
		QueryContext: qc,
		ProfileID:    profileID,
		StartedAt:    startedAt,
		Stage:        StagePerceive,
		Step:         step,
		Errors:       map[Stage]string{},
	}
}

func (s *State) fail(stage Stage, err error) {
	if err == nil {
		return
	}
	s.Errors[stage] = err.Error()
}

// Response is what a completed (possibly degraded) pipeline returns.
type Response struct {
	QueryID    string            `json:"query_id"`
	Answer     string            `json:"answer"`
	Posture    Posture           `json:"posture"`
	Confidence float64           `json:"confidence"`
	Degraded   bool              `json:"degraded"`
	Note       string            `json:"note,omitempty"`
	Summary    ComplianceSummary `json:"summary"`
	Actions    []Action          `json:"actions"`
	Patterns   []Pattern         `json:"patterns"`
	Memories   []string          `json:"memories_accessed"`
	Mode       retrieval.Mode    `json:"retrieval_mode,omitempty"`
	Errors     map[Stage]string  `json:"errors,omitempty"`
	Elapsed    time.Duration     `json:"elapsed"`
}
