// Package memory is the multi-strategy memory store of the engine: typed
// memory nodes indexed by entity, tag and time, clustered by kind, retrieved
// with a fused relevance score, and periodically consolidated and pruned.
// Nodes are exclusively owned by the store; callers only ever see copies.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Kind classifies what a memory node holds.
type Kind string

const (
	KindConversation     Kind = "conversation"
	KindGraphResult      Kind = "knowledge_graph_result"
	KindTemporalPattern  Kind = "temporal_pattern"
	KindRegulatoryRule   Kind = "regulatory_rule"
	KindRegulatoryChange Kind = "regulatory_change"
	KindRiskAssessment   Kind = "risk_assessment"
)

// Kinds lists every memory kind, in a stable order.
var Kinds = []Kind{
	KindConversation,
	KindGraphResult,
	KindTemporalPattern,
	KindRegulatoryRule,
	KindRegulatoryChange,
	KindRiskAssessment,
}

// protectedKinds are never pruned regardless of age or importance.
var protectedKinds = map[Kind]bool{
	KindRegulatoryRule:   true,
	KindRegulatoryChange: true,
}

// Node is one stored memory. Its ID is derived from the defining content, so
// storing identical content twice overwrites instead of duplicating.
type Node struct {
	ID           string         `json:"id"`
	Kind         Kind           `json:"kind"`
	Content      map[string]any `json:"content"`
	CreatedAt    time.Time      `json:"created_at"`
	Importance   float64        `json:"importance"`
	AccessCount  int            `json:"access_count"`
	LastAccessed time.Time      `json:"last_accessed"`
	Tags         []string       `json:"tags"`
	Entities     []string       `json:"entities"`
	Confidence   float64        `json:"confidence"`
}

// contentID hashes the kind plus the defining fields. json.Marshal sorts map
// keys, which keeps the hash deterministic across runs.
func contentID(kind Kind, defining map[string]any) string {
	payload, _ := json.Marshal(defining)
	sum := sha256.Sum256(append([]byte(kind), payload...))
	return hex.EncodeToString(sum[:16])
}

// clone returns a deep-enough copy for handing outside the store. Content is
// shared structurally but callers treat packs as read-only; the mutable
// bookkeeping fields are what must never be aliased.
func (n *Node) clone() Node {
	out := *n
	out.Tags = append([]string(nil), n.Tags...)
	out.Entities = append([]string(nil), n.Entities...)
	return out
}

func (n *Node) hasEntity(entities map[string]bool) bool {
	for _, e := range n.Entities {
		if entities[e] {
			return true
		}
	}
	return false
}

func (n *Node) hasTag(tags map[string]bool) bool {
	for _, t := range n.Tags {
		if tags[t] {
			return true
		}
	}
	return false
}
