// Package analytics is a closed catalogue of parameterized queries computed
// against the compliance graph: coverage, cross-jurisdictional impact, risk
// convergence, gap analysis, temporal change and enforcement learning. Each
// category is a pure function of graph state plus parameters and returns the
// same QueryResult shape so the orchestrator can treat them uniformly.
package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/complygraph/complygraph/pkg/graph"
)

// Category tags a query result with the analytic family that produced it.
type Category string

const (
	CategoryCoverage     Category = "coverage"
	CategoryJurisdiction Category = "cross_jurisdictional_impact"
	CategoryConvergence  Category = "risk_convergence"
	CategoryGaps         Category = "compliance_gaps"
	CategoryTemporal     Category = "temporal_changes"
	CategoryEnforcement  Category = "enforcement_learning"
)

// QueryResult is the immutable output of one library call.
type QueryResult struct {
	Category   Category       `json:"category"`
	QueryID    string         `json:"query_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Rows       []graph.Row    `json:"rows"`
	Metadata   map[string]any `json:"metadata"`
	Confidence float64        `json:"confidence"`
}

// Library executes the analytic catalogue against a graph store. Confidence
// per category is a fixed, configurable constant rather than a function of
// the data; see the design notes in DESIGN.md.
type Library struct {
	store      graph.Store
	confidence map[Category]float64
}

type LibraryOption func(*Library)

func NewLibrary(store graph.Store, options ...LibraryOption) *Library {
	lib := &Library{
		store: store,
		confidence: map[Category]float64{
			CategoryCoverage:     0.95,
			CategoryJurisdiction: 0.92,
			CategoryConvergence:  0.88,
			CategoryGaps:         0.94,
			CategoryTemporal:     0.90,
			CategoryEnforcement:  0.87,
		},
	}

	for key, category := range map[string]Category{
		"analytics.confidence.coverage":     CategoryCoverage,
		"analytics.confidence.jurisdiction": CategoryJurisdiction,
		"analytics.confidence.convergence":  CategoryConvergence,
		"analytics.confidence.gaps":         CategoryGaps,
		"analytics.confidence.temporal":     CategoryTemporal,
		"analytics.confidence.enforcement":  CategoryEnforcement,
	} {
		if viper.IsSet(key) {
			lib.confidence[category] = viper.GetFloat64(key)
		}
	}

	for _, option := range options {
		option(lib)
	}

	return lib
}

// WithConfidence overrides the constant for one category.
func WithConfidence(category Category, confidence float64) LibraryOption {
	return func(lib *Library) {
		lib.confidence[category] = confidence
	}
}

func (lib *Library) newResult(category Category, rows []graph.Row, metadata map[string]any) *QueryResult {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &QueryResult{
		Category:   category,
		QueryID:    uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Rows:       rows,
		Metadata:   metadata,
		Confidence: lib.confidence[category],
	}
}

// degraded produces the empty result used when the underlying query failed.
// The pipeline keeps moving on these; the flag tells downstream consumers the
// category contributed nothing this round.
func (lib *Library) degraded(category Category, err error) *QueryResult {
	return &QueryResult{
		Category:  category,
		QueryID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Rows:      nil,
		Metadata: map[string]any{
			"degraded": true,
			"error":    err.Error(),
		},
		Confidence: 0,
	}
}
