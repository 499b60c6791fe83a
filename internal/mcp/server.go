package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
)

// SceneCodec is the part of the codec the tools need.
type SceneCodec interface {
	Encode(ctx context.Context, s domain.Scene, opts codec.SaveOptions) (codec.Payload, error)
	Decode(ctx context.Context, p codec.Payload) (domain.Scene, error)
}

// Extractor reads the document embedded in an image without applying it.
type Extractor interface {
	ExtractScene(ctx context.Context, blob codec.Blob) (domain.Document, error)
}

// FileStore reads and writes drawing files.
type FileStore interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
}

// Server is the MCP server. It exposes drawing files to AI agents through
// the same codec the desktop window uses.
type Server struct {
	mcp       *server.MCPServer
	codec     SceneCodec
	extractor Extractor
	files     FileStore
	logger    *slog.Logger
}

// Deps holds everything passed in from the command layer.
type Deps struct {
	Codec     SceneCodec
	Extractor Extractor
	Files     FileStore
	Logger    *slog.Logger
	Version   string
}

// New creates and configures the MCP server with all tools.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		codec:     deps.Codec,
		extractor: deps.Extractor,
		files:     deps.Files,
		logger:    logger,
	}

	s.mcp = server.NewMCPServer(
		"excaliview-mcp",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerDrawingTools()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
