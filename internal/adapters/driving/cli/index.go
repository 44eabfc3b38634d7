package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var indexManifest string

var indexCmd = &cobra.Command{
	Use:   "index [PATH...]",
	Short: "Add documents to the durable index",
	Long: `Extracts, chunks and embeds each file and stores the result in the
durable index. Indexing a file again replaces its earlier records.

Use --manifest to index every document listed in a YAML corpus manifest:

  documents:
    - path: ./handbook
      recursive: true
    - path: ./faq.md
  exclude:
    - "*.draft.md"`,
	RunE: runIndex,
}

var removeCmd = &cobra.Command{
	Use:   "remove PATH",
	Short: "Remove a document from the durable index",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	indexCmd.Flags().StringVarP(&indexManifest, "manifest", "m", "", "YAML corpus manifest")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(removeCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errServiceUnavailable("ingest")
	}

	paths := args
	if indexManifest != "" {
		manifest, err := file.LoadManifest(indexManifest)
		if err != nil {
			return domain.NewInputError(indexManifest, err.Error(), err)
		}
		listed, err := manifest.Files()
		if err != nil {
			return err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return domain.NewInputError("", "no documents given, pass paths or --manifest", nil)
	}

	r := newRenderer(cmd.OutOrStdout())
	reports, err := ingestService.IndexFiles(cmd.Context(), paths)
	for _, report := range reports {
		r.printReport(report)
	}
	return err
}

func runRemove(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errServiceUnavailable("ingest")
	}
	if err := ingestService.RemoveSource(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Removed %s\n", args[0])
	return nil
}
