package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	askAttachments []string
	askTopK        int
	askJSON        bool
	askContext     bool
)

var askCmd = &cobra.Command{
	Use:     "ask QUESTION",
	Aliases: []string{"retrieve"},
	Short:   "Retrieve cited passages for a question",
	Long: `Finds the passages most relevant to QUESTION in the durable index and in
any attached documents. Passages from attached documents are listed first.

Attached documents are indexed on first use and cached, so asking several
questions about the same file only processes it once.

Examples:
  sercha-rag ask "what is the refund policy"
  sercha-rag ask --attach contract.pdf "when does the contract end"
  sercha-rag ask --context "how do I deploy" | llm`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVarP(&askAttachments, "attach", "a", nil, "document to search alongside the index (repeatable)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "maximum number of passages (default from settings)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the retrieval as JSON")
	askCmd.Flags().BoolVar(&askContext, "context", false, "print the rendered model context instead of passages")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errServiceUnavailable("retrieval")
	}
	if askTopK < 0 {
		return domain.NewInputError("", "--top-k must not be negative", nil)
	}

	query := strings.Join(args, " ")
	retrieval, err := retrievalService.Retrieve(cmd.Context(), query, askAttachments, askTopK)
	if err != nil {
		return err
	}

	switch {
	case askJSON:
		return outputRetrievalJSON(cmd, retrieval)
	case askContext:
		text := domain.NoInformationResponse
		if contextBuilder != nil {
			text, _ = contextBuilder.BuildContext(retrieval)
		}
		cmd.Println(text)
		return nil
	default:
		newRenderer(cmd.OutOrStdout()).printRetrieval(retrieval)
		return nil
	}
}

// retrievalJSON is the --json output shape.
type retrievalJSON struct {
	RequestID string        `json:"request_id"`
	Found     bool          `json:"found"`
	Context   string        `json:"context,omitempty"`
	Passages  []passageJSON `json:"passages"`
}

type passageJSON struct {
	Marker    int     `json:"marker"`
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	Page      int     `json:"page"`
	Text      string  `json:"text"`
	Distance  float64 `json:"distance"`
	Ephemeral bool    `json:"ephemeral"`
}

func outputRetrievalJSON(cmd *cobra.Command, r *domain.Retrieval) error {
	out := retrievalJSON{
		RequestID: r.RequestID,
		Found:     !r.Empty(),
		Passages:  make([]passageJSON, len(r.Results)),
	}
	if contextBuilder != nil {
		out.Context, _ = contextBuilder.BuildContext(r)
	}
	for i, res := range r.Results {
		out.Passages[i] = passageJSON{
			Marker:    r.Citations[i].Marker,
			Title:     r.Citations[i].SourceTitle,
			Source:    res.Source,
			Page:      res.Page,
			Text:      res.Text,
			Distance:  res.Distance,
			Ephemeral: res.Ephemeral,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal retrieval: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
