/*
Package service is the public surface of the engine: one facade owning the
graph store, the memory store, the retrieval engine, the analytics library
and the orchestrator, plus the HTTP server exposing them.
*/
package service

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/agent"
	"github.com/complygraph/complygraph/pkg/analytics"
	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/graph"
	"github.com/complygraph/complygraph/pkg/memory"
	"github.com/complygraph/complygraph/pkg/retrieval"
)

// Engine bundles every component behind one facade. All methods are safe
// for concurrent use.
type Engine struct {
	graph        graph.Store
	memory       *memory.Store
	retrieval    *retrieval.Engine
	analytics    *analytics.Library
	orchestrator *agent.Orchestrator
}

/*
NewEngine verifies the graph connection before accepting anything; a dead
graph store at startup is fatal, per the error taxonomy, because every
analytic and retrieval path depends on it.
*/
func NewEngine(
	ctx context.Context,
	store graph.Store,
	memStore *memory.Store,
	retrievalEngine *retrieval.Engine,
	library *analytics.Library,
	orchestrator *agent.Orchestrator,
) (*Engine, error) {
	if err := store.Ping(ctx); err != nil {
		return nil, errors.ErrInitialization.WithMessagef("graph store unreachable: %v", err)
	}

	log.Info("engine initialized, graph store reachable")

	return &Engine{
		graph:        store,
		memory:       memStore,
		retrieval:    retrievalEngine,
		analytics:    library,
		orchestrator: orchestrator,
	}, nil
}

// ProcessQuery runs the full six-stage pipeline for one query.
func (engine *Engine) ProcessQuery(ctx context.Context, request agent.Request) (*agent.Response, error) {
	return engine.orchestrator.Process(ctx, request)
}

// Retrieve executes graph retrieval directly, without the pipeline.
func (engine *Engine) Retrieve(ctx context.Context, params retrieval.Params) (*retrieval.ContextPack, error) {
	return engine.retrieval.Retrieve(ctx, params)
}

// StoreMemoryRequest selects a memory kind and carries its fields.
type StoreMemoryRequest struct {
	Kind         memory.Kind         `json:"kind"`
	Query        string              `json:"query,omitempty"`
	Response     string              `json:"response,omitempty"`
	Category     string              `json:"category,omitempty"`
	Content      map[string]any      `json:"content,omitempty"`
	PatternKind  string              `json:"pattern_kind,omitempty"`
	QueryContext memory.QueryContext `json:"query_context"`
	Importance   float64             `json:"importance"`
}

// StoreMemory dispatches to the store operation matching the request kind.
func (engine *Engine) StoreMemory(ctx context.Context, request StoreMemoryRequest) (string, error) {
	switch request.Kind {
	case memory.KindConversation:
		return engine.memory.StoreConversation(
			ctx, request.Query, request.Response, request.QueryContext, request.Importance)

	case memory.KindGraphResult:
		return engine.memory.StoreGraphResult(
			ctx, request.Category, request.Content, request.Importance)

	case memory.KindTemporalPattern:
		return engine.memory.StoreTemporalPattern(
			ctx, request.Content, request.PatternKind, request.Importance)

	case memory.KindRegulatoryRule, memory.KindRegulatoryChange, memory.KindRiskAssessment:
		return engine.memory.StoreRule(
			ctx, request.Kind, request.Content, request.QueryContext, request.Importance)

	default:
		return "", errors.ErrValidation.WithMessagef("unknown memory kind %q", request.Kind)
	}
}

// RetrieveMemories runs contextual retrieval over the memory store.
func (engine *Engine) RetrieveMemories(
	ctx context.Context, query string, qc memory.QueryContext, maxMemories int, threshold float64,
) (*memory.RetrievalResult, error) {
	return engine.memory.RetrieveContextual(ctx, query, qc, maxMemories, threshold)
}

// Consolidate aggregates the recent memory window into a stored report.
func (engine *Engine) Consolidate(ctx context.Context, windowDays int) (*memory.ConsolidationReport, error) {
	return engine.memory.Consolidate(ctx, windowDays)
}

// Prune removes aged and low-value memories.
func (engine *Engine) Prune(ctx context.Context, maxAgeDays int, minImportance float64) (*memory.PruneReport, error) {
	return engine.memory.Prune(ctx, maxAgeDays, minImportance)
}

// Analytics runs one analytic category by name.
func (engine *Engine) Analytics(
	ctx context.Context, category string, codes []string, lookbackDays int,
) (*analytics.QueryResult, error) {
	if lookbackDays <= 0 {
		lookbackDays = 365
	}

	switch analytics.Category(category) {
	case analytics.CategoryCoverage:
		return engine.analytics.Coverage(ctx)
	case analytics.CategoryJurisdiction:
		return engine.analytics.CrossJurisdictionalImpact(ctx, codes)
	case analytics.CategoryConvergence:
		return engine.analytics.RiskConvergence(ctx)
	case analytics.CategoryGaps:
		return engine.analytics.Gaps(ctx)
	case analytics.CategoryTemporal:
		return engine.analytics.TemporalChanges(ctx, lookbackDays)
	case analytics.CategoryEnforcement:
		return engine.analytics.EnforcementLearning(ctx)
	default:
		return nil, errors.ErrValidation.WithMessagef("unknown analytics category %q", category)
	}
}

// Metrics reports the orchestrator's accumulated pipeline counters.
func (engine *Engine) Metrics() map[string]any {
	return engine.orchestrator.Metrics()
}

// Health is the liveness snapshot served at /health.
type Health struct {
	GraphConnected bool `json:"graph_connected"`
	MemoryCount    int  `json:"memory_count"`
	ClusterCount   int  `json:"cluster_count"`
}

func (engine *Engine) Health(ctx context.Context) Health {
	return Health{
		GraphConnected: engine.graph.Ping(ctx) == nil,
		MemoryCount:    engine.memory.Count(),
		ClusterCount:   engine.memory.ClusterCount(),
	}
}
