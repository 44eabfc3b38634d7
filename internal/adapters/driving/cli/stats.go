package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show durable index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errServiceUnavailable("retrieval")
	}

	stats, err := retrievalService.Stats(cmd.Context())
	if err != nil {
		return err
	}

	var sources []string
	if sourceLister != nil {
		if sources, err = sourceLister.Sources(cmd.Context()); err != nil {
			return fmt.Errorf("listing sources: %w", err)
		}
	}

	if statsJSON {
		data, err := json.MarshalIndent(map[string]any{
			"total_records":    stats.TotalRecords,
			"distinct_sources": stats.DistinctSources,
			"sources":          sources,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	newRenderer(cmd.OutOrStdout()).printStats(stats, sources)
	return nil
}
