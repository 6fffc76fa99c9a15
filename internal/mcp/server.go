// Package mcp exposes the fileseer service over the Model Context
// Protocol. The explorer frontend and AI clients drive indexing and
// search through these tools; transport is stdio JSON-RPC.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fileseer/fileseer/internal/index"
	"github.com/fileseer/fileseer/internal/search"
	"github.com/fileseer/fileseer/internal/service"
	"github.com/fileseer/fileseer/pkg/version"
)

// Server bridges MCP clients with the fileseer service.
type Server struct {
	mcp    *mcp.Server
	svc    *service.Service
	logger *slog.Logger
}

// SearchInput is the input schema of the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query, natural language or an approximate file name"`
	Mode        string   `json:"mode,omitempty" jsonschema:"search mode: semantic, filename, or combined (default combined)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results"`
	MinScore    float64  `json:"min_score,omitempty" jsonschema:"minimum semantic score, 0 to 1"`
	MaxDistance int      `json:"max_distance,omitempty" jsonschema:"maximum edit distance for filename matches"`
	Categories  []string `json:"categories,omitempty" jsonschema:"restrict filename matches to these categories, e.g. document, image"`
	CrossModal  bool     `json:"cross_modal,omitempty" jsonschema:"also match images against text queries"`
}

// SearchOutput is the output schema of the search tool.
type SearchOutput struct {
	Results   []search.Result `json:"results" jsonschema:"ranked search results"`
	ElapsedMS int64           `json:"elapsed_ms" jsonschema:"query time in milliseconds"`
}

// FolderInput names a directory for index_folder and scan_filenames.
type FolderInput struct {
	Path string `json:"path" jsonschema:"absolute path of the directory"`
}

// ScanOutput is the output schema of the scan_filenames tool.
type ScanOutput struct {
	Added  int      `json:"added" jsonschema:"number of file names registered"`
	Errors []string `json:"errors,omitempty" jsonschema:"per-file problems encountered during the walk"`
}

// ClearInput selects what clear_index drops.
type ClearInput struct {
	Filenames bool `json:"filenames,omitempty" jsonschema:"also drop the filename index"`
}

// ClearOutput reports what clear_index dropped.
type ClearOutput struct {
	Cleared string `json:"cleared" jsonschema:"which stores were emptied"`
}

// StatsOutput is the output schema of the vector_db_stats tool.
type StatsOutput struct {
	TextRows  int `json:"text_rows" jsonschema:"rows in the document table"`
	ImageRows int `json:"image_rows" jsonschema:"rows in the image table"`
	TotalRows int `json:"total_rows" jsonschema:"rows across both tables"`
}

type emptyInput struct{}

// NewServer creates the MCP server and registers every tool.
func NewServer(svc *service.Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:    svc,
		logger: logger,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "fileseer",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed files. Semantic mode matches by content meaning, filename mode by approximate name, combined blends both. Use combined unless you know which side you want.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_folder",
		Description: "Index every supported file under a directory: extract text and images, embed, and store. Unchanged files are skipped, so re-running is cheap.",
	}, s.handleIndexFolder)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the current or most recent indexing run: processed, indexed, skipped, failed counts and per-category breakdown.",
	}, s.handleIndexStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scan_filenames",
		Description: "Register file names under a directory for fuzzy name search without extracting or embedding content. Much faster than index_folder.",
	}, s.handleScanFilenames)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_index",
		Description: "Empty the vector tables and file records. Pass filenames=true to also drop the filename index.",
	}, s.handleClearIndex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "vector_db_stats",
		Description: "Report row counts of the document and image vector tables.",
	}, s.handleVectorDBStats)

	s.logger.Debug("mcp tools registered", slog.Int("count", 6))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	mode := search.ModeCombined
	if input.Mode != "" {
		mode = search.Mode(input.Mode)
	}

	resp, err := s.svc.Search(ctx, input.Query, mode, search.Options{
		Limit:       input.Limit,
		MinScore:    input.MinScore,
		MaxDistance: maxDistanceOrDefault(input.MaxDistance),
		Categories:  input.Categories,
		CrossModal:  input.CrossModal,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{
		Results:   resp.Results,
		ElapsedMS: resp.Elapsed.Milliseconds(),
	}, nil
}

// maxDistanceOrDefault maps the wire's absent zero onto the engine's
// "use configured default" sentinel. Exact matching needs max_distance
// to be sent explicitly as a negative value is not expressible in the
// schema, so zero always means default here.
func maxDistanceOrDefault(d int) int {
	if d == 0 {
		return -1
	}
	return d
}

func (s *Server) handleIndexFolder(ctx context.Context, _ *mcp.CallToolRequest, input FolderInput) (
	*mcp.CallToolResult, index.IndexingStats, error,
) {
	stats, err := s.svc.IndexFolder(ctx, input.Path)
	if err != nil {
		return nil, index.IndexingStats{}, err
	}
	return nil, stats, nil
}

func (s *Server) handleIndexStatus(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (
	*mcp.CallToolResult, index.IndexingStats, error,
) {
	return nil, s.svc.Stats(), nil
}

func (s *Server) handleScanFilenames(ctx context.Context, _ *mcp.CallToolRequest, input FolderInput) (
	*mcp.CallToolResult, ScanOutput, error,
) {
	added, errs := s.svc.ScanDirectoryForFilenames(ctx, input.Path)
	return nil, ScanOutput{Added: added, Errors: errs}, nil
}

func (s *Server) handleClearIndex(ctx context.Context, _ *mcp.CallToolRequest, input ClearInput) (
	*mcp.CallToolResult, ClearOutput, error,
) {
	if input.Filenames {
		if err := s.svc.ClearAll(ctx); err != nil {
			return nil, ClearOutput{}, err
		}
		return nil, ClearOutput{Cleared: "vectors, file records, filenames"}, nil
	}
	if err := s.svc.ClearIndex(ctx); err != nil {
		return nil, ClearOutput{}, err
	}
	return nil, ClearOutput{Cleared: "vectors, file records"}, nil
}

func (s *Server) handleVectorDBStats(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (
	*mcp.CallToolResult, StatsOutput, error,
) {
	text, image, total := s.svc.VectorDBStats()
	return nil, StatsOutput{TextRows: text, ImageRows: image, TotalRows: total}, nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp server stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}
