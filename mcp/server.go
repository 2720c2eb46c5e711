// Package mcp provides the MCP (Model Context Protocol) server for ninmem.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/ninmem-go/internal/query"
	"github.com/Benny93/ninmem-go/internal/search"
	"github.com/Benny93/ninmem-go/internal/stattree"
)

// Version is reported to clients during initialization.
var Version = "0.1.0"

// Tool and resource names.
const (
	ToolSearch = "ninmem_search"
	ToolCodes  = "ninmem_codes"
	ToolStats  = "ninmem_stats"
	ToolTree   = "ninmem_tree"

	ResourceOverview = "ninmem://overview"
)

// ErrInvalidParams is returned for missing or mistyped tool arguments.
var ErrInvalidParams = errors.New("invalid params")

// Backend answers the queries the tools expose. *query.Service implements
// it.
type Backend interface {
	Search(text string, limit int) ([]search.CodeName, error)
	Codes(codes, bbox string) ([]string, error)
	Stats(node, codes, bbox string) (*stattree.Result, error)
	Tree(code string) (*search.TreeNode, error)
	Overview() (*query.Overview, error)
}

// Server represents the MCP server.
type Server struct {
	backend Backend
	server  *mcp.Server
	logger  *slog.Logger
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server answering from backend.
func NewServer(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		backend: backend,
		logger:  logger,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "ninmem",
		Version: Version,
	}, &mcp.ServerOptions{Logger: logger})

	s.registerTools()
	s.registerResources()

	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *mcp.Server { return s.server }

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	codes := &jsonschema.Schema{Type: "string", Description: "Comma separated codes. Codes sharing a prefix are combined with OR, prefix groups with AND."}
	bbox := &jsonschema.Schema{Type: "string", Description: "Bounding box as minx,miny,maxx,maxy"}

	return []Tool{
		{
			Name:        ToolSearch,
			Description: "Free text search over codes and names. Nature area types are listed first.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search text"},
					"limit": {Type: "integer", Description: fmt.Sprintf("Maximum number of results (1-%d, default %d)", search.MaxLimit, search.DefaultLimit)},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        ToolCodes,
			Description: "List the nature areas and taxa matching grouped codes and a bounding box.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"codes": codes,
					"bbox":  bbox,
				},
			},
		},
		{
			Name:        ToolStats,
			Description: "Count taxa, nature areas and nature area size below a code and its immediate children.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node":  {Type: "string", Description: "Code to report on; the catalogue root when empty"},
					"codes": codes,
					"bbox":  bbox,
				},
			},
		},
		{
			Name:        ToolTree,
			Description: "Show a code with its parent and immediate children in the code hierarchy.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"code": {Type: "string", Description: "Code to show; the catalogue root when empty"},
				},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         ResourceOverview,
			Name:        "Graph Overview",
			Description: "Size of the loaded knowledge graph and its indexes",
			MimeType:    "text/markdown",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolSearch:
		text, err := stringArg(args, "query")
		if err != nil {
			return "", err
		}
		limit, err := intArg(args, "limit", search.DefaultLimit)
		if err != nil {
			return "", err
		}
		return s.handleSearch(text, limit)
	case ToolCodes:
		codes, bbox, err := filterArgs(args)
		if err != nil {
			return "", err
		}
		return s.handleCodes(codes, bbox)
	case ToolStats:
		node, err := stringArg(args, "node")
		if err != nil {
			return "", err
		}
		codes, bbox, err := filterArgs(args)
		if err != nil {
			return "", err
		}
		return s.handleStats(node, codes, bbox)
	case ToolTree:
		code, err := stringArg(args, "code")
		if err != nil {
			return "", err
		}
		return s.handleTree(code)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case ResourceOverview:
		return s.getOverview()
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves one client over stdin and stdout until the client
// disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context, stdin io.ReadCloser, stdout io.WriteCloser) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}
	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.IOTransport{Reader: stdin, Writer: stdout})
}

// registerTools registers tools with the MCP server.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, s.toolHandler(tool.Name))
	}
}

// registerResources registers resources with the MCP server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, s.resourceHandler(res.MimeType))
	}
}

// toolHandler adapts CallTool to the protocol. Tool failures are reported
// in the result so the client can see and correct them.
func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
			}
		}

		text, err := s.CallTool(ctx, name, args)
		if err != nil {
			s.logger.Debug("tool call failed", "tool", name, "error", err)
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
	}
}

func (s *Server) resourceHandler(mimeType string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := s.ReadResource(ctx, req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: mimeType, Text: text}},
		}, nil
	}
}

// Tool Handlers

func (s *Server) handleSearch(text string, limit int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidParams)
	}
	results, err := s.backend.Search(text, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s'", text), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", len(results), text)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s** %s\n", i+1, r.Code, formatNames(r.Names))
		if r.Parent != nil {
			fmt.Fprintf(&sb, "   Parent: %s %s\n", r.Parent.Code, formatNames(r.Parent.Names))
		}
	}
	sb.WriteString("\nNext: Use `ninmem_stats` or `ninmem_tree` on a code for the full picture.")
	return sb.String(), nil
}

func (s *Server) handleCodes(codes, bbox string) (string, error) {
	results, err := s.backend.Codes(codes, bbox)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No nature areas or taxa match", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d nature areas and taxa match:\n\n", len(results))
	sb.WriteString(strings.Join(results, ", "))
	return sb.String(), nil
}

func (s *Server) handleStats(node, codes, bbox string) (string, error) {
	r, err := s.backend.Stats(node, codes, bbox)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (%s)\n\n", r.Name, r.Code)
	if r.Parent != nil {
		fmt.Fprintf(&sb, "Parent: %s (%s)\n\n", r.Parent.Name, r.Parent.Code)
	}
	fmt.Fprintf(&sb, "- Taxa: %d\n- Nature areas: %d\n- Area: %.2f\n", r.TaxonCount, r.NatureAreaCount, r.Area)

	if len(r.Children) > 0 {
		sb.WriteString("\n| Code | Name | Taxa | Nature areas | Area |\n")
		sb.WriteString("|------|------|------|--------------|------|\n")
		for _, c := range r.Children {
			fmt.Fprintf(&sb, "| %s | %s | %d | %d | %.2f |\n", c.Code, c.Name, c.TaxonCount, c.NatureAreaCount, c.Area)
		}
	}
	return sb.String(), nil
}

func (s *Server) handleTree(code string) (string, error) {
	node, err := s.backend.Tree(code)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (%s)\n\n", node.Name, node.Code)
	if node.Parent != nil {
		fmt.Fprintf(&sb, "Parent: %s (%s)\n\n", node.Parent.Name, node.Parent.Code)
	}
	fmt.Fprintf(&sb, "### Children (%d)\n", len(node.Children))
	for _, c := range node.Children {
		marker := ""
		if c.HasChildren {
			marker = " +"
		}
		fmt.Fprintf(&sb, "- %s (%s)%s\n", c.Name, c.Code, marker)
	}
	return sb.String(), nil
}

// Resource Handlers

func (s *Server) getOverview() (string, error) {
	o, err := s.backend.Overview()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# ninmem Knowledge Graph Overview\n\n")
	fmt.Fprintf(&sb, "**Built:** %s\n", o.Built.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Vertices:** %d\n", o.Vertices)
	fmt.Fprintf(&sb, "**Edges:** %d\n", o.Edges)
	fmt.Fprintf(&sb, "**Indexed nature areas:** %d\n", o.AreaIndexSize)
	fmt.Fprintf(&sb, "**Taxon observations:** %d\n", o.Points)
	fmt.Fprintf(&sb, "**Text index entries:** %d\n", o.TextIndexSize)
	sb.WriteString("\n## Vertex Labels\n\n")
	for _, label := range o.SortedLabels() {
		fmt.Fprintf(&sb, "- %s: %d\n", label, o.Labels[label])
	}
	return sb.String(), nil
}

// Helper functions

func formatNames(names map[string]string) string {
	if nb, ok := names["nb"]; ok && nb != "" {
		if la, ok := names["la"]; ok && la != "" && la != nb {
			return fmt.Sprintf("%s (%s)", nb, la)
		}
		return nb
	}
	return names["la"]
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParams, key)
	}
	return s, nil
}

func intArg(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch n := raw.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidParams, key)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidParams, key)
	}
}

func filterArgs(args map[string]any) (codes, bbox string, err error) {
	if codes, err = stringArg(args, "codes"); err != nil {
		return "", "", err
	}
	if bbox, err = stringArg(args, "bbox"); err != nil {
		return "", "", err
	}
	return codes, bbox, nil
}
