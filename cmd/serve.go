package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complygraph/complygraph/pkg/agent"
	"github.com/complygraph/complygraph/pkg/analytics"
	"github.com/complygraph/complygraph/pkg/memory"
	"github.com/complygraph/complygraph/pkg/provider"
	"github.com/complygraph/complygraph/pkg/retrieval"
	"github.com/complygraph/complygraph/pkg/service"
	"github.com/complygraph/complygraph/pkg/stores/neo4j"
	"github.com/complygraph/complygraph/pkg/stores/qdrant"
	"github.com/complygraph/complygraph/pkg/stores/s3"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the compliance engine HTTP API",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(cmd.Context())

			if err != nil {
				return err
			}

			addr := fmt.Sprintf("%s:%d", hostFlag, portFlag)
			log.Info("serving compliance engine", "addr", addr)

			return service.NewServer(engine).Start(addr)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
}

/*
buildEngine wires every component from configuration: the Neo4j graph
store, the optional Qdrant similarity index, the generation provider, the
memory store, the retrieval engine, the analytics library, the optional
evidence repository and the orchestrator.
*/
func buildEngine(ctx context.Context) (*service.Engine, error) {
	graphStore := neo4j.New(
		viper.GetString("neo4j.endpoint"),
		viper.GetString("neo4j.user"),
		viper.GetString("neo4j.password"),
	)

	backend := provider.FromConfig()

	memoryOptions := []memory.StoreOption{memory.WithMirror(graphStore)}
	retrievalOptions := []retrieval.EngineOption{}

	if endpoint := viper.GetString("qdrant.endpoint"); endpoint != "" {
		index := qdrant.New(endpoint, viper.GetString("qdrant.collection"))
		memoryOptions = append(memoryOptions, memory.WithSemanticSearcher(qdrant.NewSemantic(index, backend)))
		retrievalOptions = append(retrievalOptions, retrieval.WithSimilarityIndex(index, backend))
	}

	memStore := memory.NewStore(memoryOptions...)
	retrievalEngine := retrieval.NewEngine(graphStore, retrievalOptions...)
	library := analytics.NewLibrary(graphStore)

	agentOptions := []agent.Option{}

	if viper.GetString("s3.endpoint") != "" {
		conn, err := s3.NewConn()

		if err != nil {
			return nil, err
		}

		agentOptions = append(agentOptions, agent.WithEvidenceRepository(s3.NewRepository(conn)))
	}

	orchestrator := agent.New(library, retrievalEngine, memStore, backend, agentOptions...)

	return service.NewEngine(ctx, graphStore, memStore, retrievalEngine, library, orchestrator)
}

var longServe = `
Serve the compliance engine HTTP API.

Examples:
  # Serve on the default port
  complygraph serve

  # Serve on port 8080
  complygraph serve --port 8080
`
