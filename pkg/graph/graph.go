// Package graph defines the narrow contract the retrieval/memory core has
// with the underlying property-graph database. Everything the analytics
// library and the retrieval engine do is expressed through Store; no driver
// or network detail leaks past this package.
package graph

import (
	"context"
	"fmt"
)

// Row is a single result record keyed by the query's return aliases.
type Row map[string]any

// Store executes parameterized queries against the graph database. readOnly
// lets pooled implementations route to replicas; mutating statements must set
// it to false.
type Store interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any, readOnly bool) ([]Row, error)
	Ping(ctx context.Context) error
}

// Node is a graph vertex as returned inside a context pack.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Relationship is a typed edge between two nodes.
type Relationship struct {
	Type       string         `json:"type"`
	StartID    string         `json:"start_id"`
	EndID      string         `json:"end_id"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Path is an ordered traversal trace.
type Path struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// String reads a string-valued column, tolerating missing keys.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Float reads a numeric column. Neo4j's HTTP endpoint hands every number
// back as float64, so that is the only concrete type besides ints we accept.
func (r Row) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Int reads an integer column.
func (r Row) Int(key string) int {
	return int(r.Float(key))
}

// Strings reads a list column of strings.
func (r Row) Strings(key string) []string {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Map reads a nested map column.
func (r Row) Map(key string) map[string]any {
	if m, ok := r[key].(map[string]any); ok {
		return m
	}
	return nil
}
