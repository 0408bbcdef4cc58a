package memory

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/graph"
)

const shardCount = 32

// SemanticSearcher is the pluggable similarity backend for contextual
// retrieval. Implementations return node IDs; a nil searcher simply
// contributes an empty candidate set.
type SemanticSearcher interface {
	SimilarMemories(ctx context.Context, query string, limit int) ([]string, error)
}

type shard struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// Store holds all memory nodes. Ordinary store/retrieve operations take a
// shared sweep lock plus a per-shard lock, so unrelated queries never
// serialize; consolidation and pruning take the sweep lock exclusively
// because they scan and rewrite the whole structure.
type Store struct {
	sweep  sync.RWMutex
	shards [shardCount]*shard

	clusterMu sync.Mutex
	clusters  map[string]*Cluster

	mirror   graph.Store
	semantic SemanticSearcher
	now      func() time.Time
}

type StoreOption func(*Store)

func NewStore(options ...StoreOption) *Store {
	store := &Store{
		clusters: make(map[string]*Cluster),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for i := range store.shards {
		store.shards[i] = &shard{nodes: make(map[string]*Node)}
	}

	for _, option := range options {
		option(store)
	}

	return store
}

// WithMirror enables best-effort durability: every stored node is written as
// a :Memory node in the graph store, and removed again on prune.
func WithMirror(mirror graph.Store) StoreOption {
	return func(store *Store) {
		store.mirror = mirror
	}
}

// WithSemanticSearcher plugs in a similarity backend for retrieval.
func WithSemanticSearcher(semantic SemanticSearcher) StoreOption {
	return func(store *Store) {
		store.semantic = semantic
	}
}

// withClock is used by tests to control time.
func withClock(now func() time.Time) StoreOption {
	return func(store *Store) {
		store.now = now
	}
}

func (store *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return store.shards[h.Sum32()%shardCount]
}

// StoreConversation records one query/response exchange. The node's identity
// is derived from the exchange itself, so replaying the same exchange
// overwrites rather than duplicates.
func (store *Store) StoreConversation(
	ctx context.Context, query, response string, qc QueryContext, importance float64,
) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.ErrValidation.WithMessagef("query text must not be empty")
	}

	if importance < 0 || importance > 1 {
		return "", errors.ErrValidation.WithMessagef("importance %v outside [0,1]", importance)
	}

	node := &Node{
		ID:   contentID(KindConversation, map[string]any{"query": query, "response": response}),
		Kind: KindConversation,
		Content: map[string]any{
			"query":    query,
			"response": response,
		},
		Importance: importance,
		Tags:       qc.tags(query),
		Entities:   qc.entities(),
		Confidence: 1,
	}

	return store.put(ctx, node)
}

// StoreGraphResult records an analytic result under the knowledge-graph
// kind. Category becomes both a tag and part of the node's identity.
func (store *Store) StoreGraphResult(
	ctx context.Context, category string, content map[string]any, importance float64,
) (string, error) {
	if importance < 0 || importance > 1 {
		return "", errors.ErrValidation.WithMessagef("importance %v outside [0,1]", importance)
	}

	var entities []string
	if regs, ok := content["regulations"].([]string); ok {
		entities = append(entities, regs...)
	}
	if domains, ok := content["domains"].([]string); ok {
		entities = append(entities, domains...)
	}

	node := &Node{
		ID:         contentID(KindGraphResult, map[string]any{"category": category, "content": content}),
		Kind:       KindGraphResult,
		Content:    content,
		Importance: importance,
		Tags:       dedupe([]string{"knowledge_graph", category}),
		Entities:   dedupe(entities),
		Confidence: 1,
	}

	return store.put(ctx, node)
}

// StoreTemporalPattern records a detected pattern with its confidence.
func (store *Store) StoreTemporalPattern(
	ctx context.Context, pattern map[string]any, patternKind string, confidence float64,
) (string, error) {
	if confidence < 0 || confidence > 1 {
		return "", errors.ErrValidation.WithMessagef("confidence %v outside [0,1]", confidence)
	}

	var entities []string
	if domain, ok := pattern["domain"].(string); ok && domain != "" {
		entities = append(entities, domain)
	}

	node := &Node{
		ID:         contentID(KindTemporalPattern, map[string]any{"pattern": pattern, "kind": patternKind}),
		Kind:       KindTemporalPattern,
		Content:    pattern,
		Importance: confidence,
		Tags:       dedupe([]string{"pattern", patternKind}),
		Entities:   entities,
		Confidence: confidence,
	}

	return store.put(ctx, node)
}

// StoreRule records a regulatory rule or change; these kinds are protected
// from pruning.
func (store *Store) StoreRule(
	ctx context.Context, kind Kind, content map[string]any, qc QueryContext, importance float64,
) (string, error) {
	if kind != KindRegulatoryRule && kind != KindRegulatoryChange && kind != KindRiskAssessment {
		return "", errors.ErrValidation.WithMessagef("kind %q is not storable via StoreRule", kind)
	}

	if importance < 0 || importance > 1 {
		return "", errors.ErrValidation.WithMessagef("importance %v outside [0,1]", importance)
	}

	node := &Node{
		ID:         contentID(kind, content),
		Kind:       kind,
		Content:    content,
		Importance: importance,
		Tags:       qc.tags(""),
		Entities:   qc.entities(),
		Confidence: 1,
	}

	return store.put(ctx, node)
}

func (store *Store) put(ctx context.Context, node *Node) (string, error) {
	node.CreatedAt = store.now()
	node.LastAccessed = node.CreatedAt

	store.sweep.RLock()

	sh := store.shardFor(node.ID)
	sh.mu.Lock()
	if existing, ok := sh.nodes[node.ID]; ok {
		// Re-storing identical content keeps the access history.
		node.AccessCount = existing.AccessCount
		node.CreatedAt = existing.CreatedAt
	}
	sh.nodes[node.ID] = node
	sh.mu.Unlock()

	store.absorbIntoCluster(node)
	store.sweep.RUnlock()

	// Durability is best effort: the mirror write happens outside every
	// lock and its failure never fails the in-memory store.
	if store.mirror != nil {
		go store.mirrorWrite(node.clone())
	}

	return node.ID, nil
}

func (store *Store) absorbIntoCluster(node *Node) {
	key := clusterKey(node.Kind, node.Tags)

	store.clusterMu.Lock()
	defer store.clusterMu.Unlock()

	cluster, ok := store.clusters[key]
	if !ok {
		cluster = &Cluster{Name: key, Kind: node.Kind, Bucket: tagBucket(node.Tags)}
		store.clusters[key] = cluster
	}

	cluster.absorb(node.ID, store.importanceOf)
}

func (store *Store) importanceOf(id string) (float64, bool) {
	sh := store.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	node, ok := sh.nodes[id]
	if !ok {
		return 0, false
	}
	return node.Importance, true
}

func (store *Store) mirrorWrite(node Node) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	content, _ := json.Marshal(node.Content)

	_, err := store.mirror.ExecuteQuery(ctx, `
MERGE (m:Memory {id: $id})
SET m.kind = $kind, m.content = $content, m.created_at = $created_at,
    m.importance = $importance, m.access_count = $access_count,
    m.last_accessed = $last_accessed, m.tags = $tags,
    m.entities = $entities, m.confidence = $confidence`,
		map[string]any{
			"id":            node.ID,
			"kind":          string(node.Kind),
			"content":       string(content),
			"created_at":    node.CreatedAt.Format(time.RFC3339),
			"importance":    node.Importance,
			"access_count":  node.AccessCount,
			"last_accessed": node.LastAccessed.Format(time.RFC3339),
			"tags":          node.Tags,
			"entities":      node.Entities,
			"confidence":    node.Confidence,
		}, false)

	if err != nil {
		log.Error("failed to mirror memory into graph store", "id", node.ID, "error", err)
	}
}

func (store *Store) mirrorDelete(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := store.mirror.ExecuteQuery(ctx,
		"MATCH (m:Memory) WHERE m.id IN $ids DETACH DELETE m",
		map[string]any{"ids": ids}, false)

	if err != nil {
		log.Error("failed to remove pruned memories from graph store", "count", len(ids), "error", err)
	}
}

// Get returns a copy of a node.
func (store *Store) Get(id string) (Node, error) {
	store.sweep.RLock()
	defer store.sweep.RUnlock()

	sh := store.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	node, ok := sh.nodes[id]
	if !ok {
		return Node{}, errors.ErrNotFound.WithMessagef("memory %s", id)
	}

	return node.clone(), nil
}

// Count reports the number of stored nodes.
func (store *Store) Count() int {
	store.sweep.RLock()
	defer store.sweep.RUnlock()

	total := 0
	for _, sh := range store.shards {
		sh.mu.RLock()
		total += len(sh.nodes)
		sh.mu.RUnlock()
	}
	return total
}

// ClusterCount reports the number of live clusters.
func (store *Store) ClusterCount() int {
	store.clusterMu.Lock()
	defer store.clusterMu.Unlock()
	return len(store.clusters)
}

// snapshot copies every node; used by the whole-structure scans.
func (store *Store) snapshot() []*Node {
	var out []*Node
	for _, sh := range store.shards {
		sh.mu.RLock()
		for _, node := range sh.nodes {
			out = append(out, node)
		}
		sh.mu.RUnlock()
	}
	return out
}
