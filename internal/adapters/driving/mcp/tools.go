package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query       string   `json:"query" jsonschema:"the question to find supporting passages for"`
	Attachments []string `json:"attachments,omitempty" jsonschema:"paths of local documents to search alongside the indexed corpus"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"maximum number of passages to return (default from settings)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	RequestID string           `json:"request_id"`
	Results   []PassageOutput  `json:"results"`
	Citations []CitationOutput `json:"citations"`

	// Context is the rendered model context, or the no-information
	// response when Found is false.
	Context string `json:"context,omitempty"`
	Found   bool   `json:"found"`
}

// PassageOutput represents a single retrieved chunk.
type PassageOutput struct {
	Marker    int     `json:"marker"`
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	Page      int     `json:"page"`
	Text      string  `json:"text"`
	Distance  float64 `json:"distance"`
	Ephemeral bool    `json:"ephemeral"`
}

// CitationOutput is the display reference for one passage.
type CitationOutput struct {
	Marker int    `json:"marker"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// InvalidateInput is the input schema for the invalidate_ephemeral tool.
type InvalidateInput struct {
	Path string `json:"path" jsonschema:"path of the attached document to drop from the cache"`
}

// IndexInput is the input schema for the index_document tool.
type IndexInput struct {
	Paths []string `json:"paths" jsonschema:"paths of local documents to add to the durable index"`
}

// IndexOutput reports the files written by the index_document tool.
type IndexOutput struct {
	Indexed []IndexedFile `json:"indexed"`
}

// IndexedFile summarises one indexed file.
type IndexedFile struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

// StatusOutput is returned by tools that only acknowledge an action.
type StatusOutput struct {
	Status string `json:"status"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "retrieve",
		Description: "Retrieve cited passages for a question from the indexed corpus " +
			"and from any attached documents",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "invalidate_ephemeral",
		Description: "Drop the cached index of one attached document",
	}, s.handleInvalidate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_ephemeral",
		Description: "Drop every cached attachment index",
	}, s.handleClear)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index_document",
			Description: "Add local documents to the durable index, replacing earlier versions",
		}, s.handleIndex)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	retrieval, err := s.ports.Retrieval.Retrieve(ctx, input.Query, input.Attachments, input.TopK)
	if err != nil {
		return nil, RetrieveOutput{}, toolError(err)
	}

	output := RetrieveOutput{
		RequestID: retrieval.RequestID,
		Results:   make([]PassageOutput, len(retrieval.Results)),
		Citations: make([]CitationOutput, len(retrieval.Citations)),
		Found:     !retrieval.Empty(),
	}

	for i, res := range retrieval.Results {
		output.Results[i] = PassageOutput{
			Marker:    i + 1,
			Title:     res.Title,
			Source:    res.Source,
			Page:      res.Page,
			Text:      res.Text,
			Distance:  res.Distance,
			Ephemeral: res.Ephemeral,
		}
	}
	for i, c := range retrieval.Citations {
		output.Citations[i] = CitationOutput{
			Marker: c.Marker,
			Title:  c.SourceTitle,
			Source: c.Source,
			Page:   c.Page,
		}
	}

	if s.ports.Context != nil {
		output.Context, output.Found = s.ports.Context.BuildContext(retrieval)
	}

	return nil, output, nil
}

// handleInvalidate handles the invalidate_ephemeral tool invocation.
func (s *Server) handleInvalidate(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input InvalidateInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.ports.Retrieval.InvalidateEphemeral(input.Path); err != nil {
		return nil, StatusOutput{}, toolError(err)
	}
	return nil, StatusOutput{Status: "invalidated"}, nil
}

// handleClear handles the clear_ephemeral tool invocation.
func (s *Server) handleClear(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, StatusOutput, error) {
	s.ports.Retrieval.ClearAllEphemeral()
	return nil, StatusOutput{Status: "cleared"}, nil
}

// handleIndex handles the index_document tool invocation.
func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	reports, err := s.ports.Ingest.IndexFiles(ctx, input.Paths)
	if err != nil {
		return nil, IndexOutput{}, toolError(err)
	}

	output := IndexOutput{Indexed: make([]IndexedFile, len(reports))}
	for i, r := range reports {
		output.Indexed[i] = IndexedFile{
			Source: r.Source,
			Title:  r.Title,
			Pages:  r.Pages,
			Chunks: r.Chunks,
		}
	}
	return nil, output, nil
}

// toolError marks retryable failures so clients know to try again.
// Input errors already describe themselves.
func toolError(err error) error {
	if domain.IsRetryable(err) {
		return fmt.Errorf("temporarily unavailable, retry later: %w", err)
	}
	return err
}
