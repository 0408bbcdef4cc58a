package retrieval

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/complygraph/complygraph/pkg/graph"
	"github.com/complygraph/complygraph/pkg/stores/qdrant"
)

// SimilarityIndex is the slice of the vector store hybrid retrieval needs.
type SimilarityIndex interface {
	Search(ctx context.Context, queryVec []float32, limit int) ([]qdrant.Point, error)
}

// Embedder turns query text into a vector for the similarity index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine classifies queries into retrieval modes and executes the matching
// traversal strategy. The similarity index and embedder are optional; when
// absent, hybrid requests fall through their strategy chain to the local
// strategy.
type Engine struct {
	store    graph.Store
	index    SimilarityIndex
	embedder Embedder
}

type EngineOption func(*Engine)

func NewEngine(store graph.Store, options ...EngineOption) *Engine {
	engine := &Engine{store: store}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// WithSimilarityIndex wires the vector index used by hybrid retrieval.
func WithSimilarityIndex(index SimilarityIndex, embedder Embedder) EngineOption {
	return func(engine *Engine) {
		engine.index = index
		engine.embedder = embedder
	}
}

type strategy func(ctx context.Context, pack *ContextPack) error

// Retrieve executes the strategy chain for the query's mode. Every mode
// returns the same ContextPack shape; a chain entry that fails hands over to
// the next entry rather than surfacing its error, so only the final
// strategy's failure reaches the caller.
func (engine *Engine) Retrieve(ctx context.Context, params Params) (*ContextPack, error) {
	mode := params.Mode
	if mode == "" {
		mode = ClassifyMode(params.Query)
	}

	if params.Limit <= 0 {
		params.Limit = 25
	}

	pack := &ContextPack{
		QueryID:   uuid.NewString(),
		Mode:      mode,
		Timestamp: time.Now().UTC(),
		Params:    params,
	}

	var chain []strategy

	switch mode {
	case ModeLocal:
		chain = []strategy{engine.localStrategy}
	case ModeGlobal:
		chain = []strategy{engine.globalStrategy}
	case ModeTemporal:
		chain = []strategy{engine.temporalStrategy}
	default:
		chain = []strategy{engine.vectorStrategy, engine.localStrategy}
	}

	var lastErr error

	for i, step := range chain {
		if lastErr = step(ctx, pack); lastErr == nil {
			return pack, nil
		}

		if i < len(chain)-1 {
			log.Warn("retrieval strategy failed, trying next in chain",
				"mode", mode, "error", lastErr)
			// Reset before handing over so a half-populated attempt
			// cannot leak into the fallback's pack.
			pack.Nodes, pack.Relationships, pack.Paths = nil, nil, nil
			pack.Gaps, pack.Sources = nil, nil
			pack.Mode = ModeLocal
		}
	}

	return nil, lastErr
}

func appendSource(sources []string, source string) []string {
	for _, existing := range sources {
		if existing == source {
			return sources
		}
	}
	return append(sources, source)
}

func nodeFromRow(row graph.Row, idKey, labelsKey, propsKey string) graph.Node {
	return graph.Node{
		ID:         row.String(idKey),
		Labels:     row.Strings(labelsKey),
		Properties: row.Map(propsKey),
	}
}

func relationship(relType, startID, endID string) graph.Relationship {
	return graph.Relationship{Type: relType, StartID: startID, EndID: endID}
}
