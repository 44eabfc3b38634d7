package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for sercha-rag resources.
	uriScheme = "sercha-rag://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Record and source counts of the durable index",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Documents held by the durable index",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "attachments",
		Name:        "attachments",
		Description: "Attached documents whose indexes are currently cached",
		MIMEType:    "application/json",
	}, s.handleAttachmentsResource)
}

// handleStatsResource returns durable index statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Retrieval.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading index stats: %w", err)
	}

	return jsonResource(req.Params.URI, struct {
		TotalRecords    int `json:"total_records"`
		DistinctSources int `json:"distinct_sources"`
	}{stats.TotalRecords, stats.DistinctSources})
}

// handleSourcesResource lists durable sources.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Sources == nil {
		return jsonResource(req.Params.URI, []string{})
	}

	sources, err := s.ports.Sources.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	if sources == nil {
		sources = []string{}
	}
	return jsonResource(req.Params.URI, sources)
}

type attachmentOutput struct {
	Path      string    `json:"path"`
	Chunks    int       `json:"chunks"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAttachmentsResource lists the cached attachment indexes.
func (s *Server) handleAttachmentsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	entries := s.ports.Retrieval.Attachments()

	out := make([]attachmentOutput, len(entries))
	for i, e := range entries {
		out[i] = attachmentOutput{Path: e.Path, Chunks: e.Chunks, ExpiresAt: e.ExpiresAt}
	}
	return jsonResource(req.Params.URI, out)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
