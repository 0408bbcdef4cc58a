package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complygraph/complygraph/pkg/agent"
	"github.com/complygraph/complygraph/pkg/memory"
)

var (
	jurisdictionFlag string
	regulationsFlag  []string
	profileFlag      string

	queryCmd = &cobra.Command{
		Use:   "query [question]",
		Short: "Run one query through the full pipeline and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(cmd.Context())

			if err != nil {
				return err
			}

			request := agent.Request{
				Query:     args[0],
				ProfileID: profileFlag,
				QueryContext: memory.QueryContext{
					Regulations: regulationsFlag,
				},
			}

			if jurisdictionFlag != "" {
				request.QueryContext.Jurisdictions = []string{jurisdictionFlag}
			}

			response, err := engine.ProcessQuery(cmd.Context(), request)

			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(response, "", "  ")

			if err != nil {
				return err
			}

			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&jurisdictionFlag, "jurisdiction", "j", "", "Jurisdiction to scope retrieval to")
	queryCmd.Flags().StringSliceVarP(&regulationsFlag, "regulations", "r", nil, "Regulation codes relevant to the query")
	queryCmd.Flags().StringVar(&profileFlag, "profile", "", "Business profile id for posture enrichment")
}
