// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes evidence routing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/MaherFSF/Yemenactr-sub008/internal/evidence"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

const (
	contractURI = "evidence://routing-contract"
	pagesURI    = "evidence://pages"
)

// Server wraps the MCP server with evidence routing tools.
type Server struct {
	mcp *server.MCPServer
	svc *evidence.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *evidence.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Evidence Router",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("route_artifact",
		mcp.WithDescription("Rank the pages that should surface an artifact. "+
			"Read the routing contract first via get_routing_contract or the "+
			contractURI+" resource."),
		mcp.WithString("sourceId", mcp.Required(), mcp.Description("Registry source id (e.g. SRC-01)")),
		mcp.WithString("artifactType", mcp.Required(),
			mcp.Description("Artifact type"),
			mcp.Enum("dataset", "document", "event", "project", "entity", "indicator")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("language", mcp.Description("Artifact language"), mcp.Enum("en", "ar", "both")),
		mcp.WithString("regime", mcp.Description("Regime tag")),
		mcp.WithString("years", mcp.Description("Comma-separated years")),
		mcp.WithString("artifactId", mcp.Description("Artifact id; required when persist is true")),
		mcp.WithBoolean("persist", mcp.Description("Store the routing decision")),
	), s.routeArtifact)

	s.mcp.AddTool(mcp.NewTool("get_persisted_routes",
		mcp.WithDescription("List stored routing decisions for one artifact."),
		mcp.WithString("sourceId", mcp.Required(), mcp.Description("Registry source id")),
		mcp.WithString("artifactId", mcp.Required(), mcp.Description("Artifact id")),
	), s.getPersistedRoutes)

	s.mcp.AddTool(mcp.NewTool("get_source_coverage",
		mcp.WithDescription("Declared temporal coverage of a registry source."),
		mcp.WithString("sourceId", mcp.Required(), mcp.Description("Registry source id")),
	), s.getSourceCoverage)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List every page key with English and Arabic names."),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_sources_for_page",
		mcp.WithDescription("List registry sources that feed a page."),
		mcp.WithString("pageKey", mcp.Required(), mcp.Description("Sector code or module key")),
		mcp.WithString("sectorCode", mcp.Description("Restrict to contributors of this sector")),
		mcp.WithNumber("limit", mcp.Description("Maximum sources (default 20, max 100)")),
	), s.getSourcesForPage)

	s.mcp.AddTool(mcp.NewTool("get_sector_feed_matrix",
		mcp.WithDescription("Contributing sources and statistics per sector."),
		mcp.WithString("sectorCode", mcp.Description("Single sector; all sectors when empty")),
		mcp.WithNumber("limit", mcp.Description("Maximum sources per sector (default 50, max 100)")),
	), s.getSectorFeedMatrix)

	s.mcp.AddTool(mcp.NewTool("get_page_feed_matrix",
		mcp.WithDescription("Sources and statistics per page."),
		mcp.WithString("pageKey", mcp.Description("Single page; all module pages when empty")),
		mcp.WithNumber("limit", mcp.Description("Maximum sources per page (default 50, max 100)")),
	), s.getPageFeedMatrix)

	s.mcp.AddTool(mcp.NewTool("get_matrix_stats",
		mcp.WithDescription("Registry-wide counts of mapped sources, sector coverage and tiers."),
	), s.getMatrixStats)

	s.mcp.AddTool(mcp.NewTool("export_sector_matrix",
		mcp.WithDescription("Flat CSV export of every source-to-sector edge."),
	), s.exportSectorMatrix)

	s.mcp.AddTool(mcp.NewTool("get_routing_contract",
		mcp.WithDescription("Returns the routing signals, weights and result envelope. "+
			"Call this before routing artifacts."),
	), s.getRoutingContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Routing Contract",
			mcp.WithResourceDescription("How artifacts are routed to pages and how results are enveloped."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(pagesURI, "Page Catalog",
			mcp.WithResourceDescription("Closed set of sector and module pages."),
			mcp.WithMIMEType("application/json"),
		),
		s.readPagesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func splitArg(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func yearsArg(raw string) ([]int, error) {
	var out []int
	for _, s := range splitArg(raw) {
		y, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", s)
		}
		out = append(out, y)
	}
	return out, nil
}

func (s *Server) routeArtifact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireString("sourceId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := req.RequireString("artifactType")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	years, err := yearsArg(req.GetString("years", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := models.Artifact{
		SourceID:   sourceID,
		ArtifactID: req.GetString("artifactId", ""),
		Type:       models.ArtifactType(kind),
		Tags:       splitArg(req.GetString("tags", "")),
		Language:   req.GetString("language", ""),
		Regime:     req.GetString("regime", ""),
		Years:      years,
	}
	return jsonResult(s.svc.RouteAndPersist(ctx, in, req.GetBool("persist", false)))
}

func (s *Server) getPersistedRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireString("sourceId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	artifactID, err := req.RequireString("artifactId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.PersistedRoutes(ctx, sourceID, artifactID))
}

func (s *Server) getSourceCoverage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireString("sourceId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.SourceCoverage(ctx, sourceID))
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Pages())
}

func (s *Server) getSourcesForPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageKey, err := req.RequireString("pageKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.svc.SourcesForPage(ctx, pageKey, req.GetString("sectorCode", ""), req.GetInt("limit", 0))
	return jsonResult(res)
}

func (s *Server) getSectorFeedMatrix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.SectorFeedMatrix(ctx, req.GetString("sectorCode", ""), req.GetInt("limit", 0)))
}

func (s *Server) getPageFeedMatrix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.PageFeedMatrix(ctx, req.GetString("pageKey", ""), req.GetInt("limit", 0)))
}

func (s *Server) getMatrixStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.MatrixStats(ctx))
}

func (s *Server) exportSectorMatrix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.svc.ExportSectorMatrix(ctx)
	if !res.Success {
		return jsonResult(res)
	}
	return mcp.NewToolResultText(res.Data.CSV), nil
}

func (s *Server) getRoutingContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RoutingContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     RoutingContract,
		},
	}, nil
}

func (s *Server) readPagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(s.svc.Pages(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      pagesURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
