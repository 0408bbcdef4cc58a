/*
Package agent runs the six-stage compliance pipeline: Perceive the graph
state, Plan remediation actions, Act within the autonomy budget, Learn
patterns from enforcement history, Remember insights, and Respond. Stages
are strictly ordered per query; failures degrade the run instead of
aborting it.
*/
package agent

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/complygraph/complygraph/pkg/analytics"
	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/memory"
	"github.com/complygraph/complygraph/pkg/metrics"
	"github.com/complygraph/complygraph/pkg/provider"
	"github.com/complygraph/complygraph/pkg/retrieval"
)

const (
	defaultRiskThreshold  = 7.0
	defaultAutonomyBudget = 10000.0
	consolidateEvery      = 10
)

// EvidenceRepository enriches the posture summary when the caller supplies a
// business profile id. It is optional; the pipeline is correct without it.
type EvidenceRepository interface {
	GetBusinessProfile(ctx context.Context, id string) (map[string]any, error)
	CountEvidence(ctx context.Context, profileID string) (int, error)
}

// Request is one query submitted to the pipeline.
type Request struct {
	Query        string              `json:"query"`
	QueryContext memory.QueryContext `json:"query_context"`
	ProfileID    string              `json:"profile_id,omitempty"`
}

// Orchestrator wires the analytic library, the retrieval engine, the memory
// store and the generation backend into one pipeline shared by all workers.
type Orchestrator struct {
	library  *analytics.Library
	engine   *retrieval.Engine
	memory   *memory.Store
	backend  provider.Interface
	evidence EvidenceRepository

	riskThreshold  float64
	autonomyBudget float64
	steps          atomic.Int64
	metrics        *metrics.Pipeline
}

type Option func(*Orchestrator)

func New(
	library *analytics.Library,
	engine *retrieval.Engine,
	store *memory.Store,
	backend provider.Interface,
	options ...Option,
) *Orchestrator {
	orchestrator := &Orchestrator{
		library:        library,
		engine:         engine,
		memory:         store,
		backend:        backend,
		riskThreshold:  defaultRiskThreshold,
		autonomyBudget: defaultAutonomyBudget,
		metrics:        metrics.NewPipeline(),
	}

	if viper.IsSet("agent.risk_threshold") {
		orchestrator.riskThreshold = viper.GetFloat64("agent.risk_threshold")
	}
	if viper.IsSet("agent.autonomy_budget") {
		orchestrator.autonomyBudget = viper.GetFloat64("agent.autonomy_budget")
	}

	for _, option := range options {
		option(orchestrator)
	}

	return orchestrator
}

// WithEvidenceRepository plugs in the optional business/evidence backend.
func WithEvidenceRepository(repo EvidenceRepository) Option {
	return func(o *Orchestrator) {
		o.evidence = repo
	}
}

// WithAutonomy overrides the Act stage gate values.
func WithAutonomy(riskThreshold, budget float64) Option {
	return func(o *Orchestrator) {
		o.riskThreshold = riskThreshold
		o.autonomyBudget = budget
	}
}

/*
Process runs the full pipeline for one query. Stage errors are collected
into the state and the run continues; only validation failures reject the
query outright. When the caller's deadline expires mid-pipeline, the
current stage finishes its issued work, remaining stages are skipped, and
Respond produces a degraded answer from whatever was accumulated.
*/
func (o *Orchestrator) Process(ctx context.Context, request Request) (*Response, error) {
	if strings.TrimSpace(request.Query) == "" {
		return nil, errors.ErrValidation.WithMessagef("query text must not be empty")
	}

	step := o.steps.Add(1)
	state := newState(request.Query, request.QueryContext, request.ProfileID, step, time.Now().UTC())

	log.Info("pipeline started", "step", step, "query", request.Query)

	stages := []struct {
		stage Stage
		run   func(context.Context, *State)
	}{
		{StagePerceive, o.perceive},
		{StagePlan, o.plan},
		{StageAct, o.act},
		{StageLearn, o.learn},
		{StageRemember, o.remember},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			state.fail(s.stage, errors.ErrGraphQuery.WithMessagef("deadline exceeded before %s: %v", s.stage, err))
			log.Warn("deadline reached, skipping to respond", "stage", s.stage, "step", step)
			break
		}

		state.Stage = s.stage
		started := time.Now()
		s.run(ctx, state)
		o.metrics.RecordStage(string(s.stage), time.Since(started))
	}

	state.Stage = StageRespond
	response := o.respond(ctx, state)
	state.Stage = StageDone

	var executed, escalated int64
	for _, action := range response.Actions {
		switch action.Status {
		case StatusExecuted:
			executed++
		case StatusEscalated:
			escalated++
		}
	}

	o.metrics.RecordRun(response.Elapsed, response.Degraded)
	o.metrics.RecordActions(executed, escalated)

	log.Info("pipeline finished",
		"step", step,
		"posture", response.Posture,
		"actions", len(response.Actions),
		"degraded", response.Degraded,
		"elapsed", response.Elapsed)

	return response, nil
}

// regulationCodes merges explicit context regulations with code-shaped
// tokens found in the query text (GDPR, MiFID-II, DORA, ...).
func regulationCodes(query string, qc memory.QueryContext) []string {
	codes := append([]string(nil), qc.Regulations...)

	for _, token := range strings.Fields(query) {
		token = strings.Trim(token, ".,;:()?!\"'")
		if len(token) < 3 {
			continue
		}

		upper := 0
		for _, r := range token {
			if r >= 'A' && r <= 'Z' {
				upper++
			}
		}

		if upper >= 2 && upper >= len(token)/2 {
			codes = append(codes, token)
		}
	}

	seen := map[string]bool{}
	out := codes[:0]
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}

	return out
}

// Metrics reports the accumulated pipeline counters.
func (o *Orchestrator) Metrics() map[string]any {
	return o.metrics.Snapshot()
}

func newQueryID() string {
	return uuid.NewString()
}
