// Package retrieval selects and executes graph-traversal strategies for a
// natural-language query, returning a traceable ContextPack regardless of
// which strategy produced it.
package retrieval

import (
	"time"

	"github.com/complygraph/complygraph/pkg/graph"
)

// Mode names a retrieval strategy.
type Mode string

const (
	ModeLocal    Mode = "local"
	ModeGlobal   Mode = "global"
	ModeHybrid   Mode = "hybrid"
	ModeTemporal Mode = "temporal"
)

// Params carries one retrieval request. Mode is optional; when empty the
// engine classifies the query text itself.
type Params struct {
	Query        string    `json:"query"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Mode         Mode      `json:"mode,omitempty"`
	Cutoff       time.Time `json:"cutoff,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}

// ContextPack is the immutable output of one retrieval call: everything the
// orchestrator needs to ground an answer, plus the trace of how it was found.
type ContextPack struct {
	QueryID       string               `json:"query_id"`
	Mode          Mode                 `json:"mode"`
	Nodes         []graph.Node         `json:"nodes"`
	Relationships []graph.Relationship `json:"relationships"`
	Paths         []graph.Path         `json:"paths"`
	Gaps          []string             `json:"gaps"`
	Confidence    float64              `json:"confidence"`
	Sources       []string             `json:"sources"`
	Timestamp     time.Time            `json:"timestamp"`
	Params        Params               `json:"params"`
}
