package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	windowFlag        int
	maxAgeFlag        int
	minImportanceFlag float64

	memoryCmd = &cobra.Command{
		Use:   "memory",
		Short: "Administer the memory store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	consolidateCmd = &cobra.Command{
		Use:   "consolidate",
		Short: "Aggregate the recent memory window into a stored report",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(cmd.Context())

			if err != nil {
				return err
			}

			report, err := engine.Consolidate(cmd.Context(), windowFlag)

			if err != nil {
				return err
			}

			return printJSON(report)
		},
	}

	pruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove aged and low-value memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(cmd.Context())

			if err != nil {
				return err
			}

			report, err := engine.Prune(cmd.Context(), maxAgeFlag, minImportanceFlag)

			if err != nil {
				return err
			}

			return printJSON(report)
		},
	}
)

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(consolidateCmd)
	memoryCmd.AddCommand(pruneCmd)

	consolidateCmd.Flags().IntVarP(&windowFlag, "window", "w", 30, "Window in days to consolidate")
	pruneCmd.Flags().IntVar(&maxAgeFlag, "max-age", 90, "Maximum memory age in days")
	pruneCmd.Flags().Float64Var(&minImportanceFlag, "min-importance", 0.3, "Importance floor for young memories")
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")

	if err != nil {
		return err
	}

	fmt.Println(string(out))
	return nil
}
