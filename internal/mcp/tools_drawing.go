package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
	"excaliview/internal/embed"
)

func (s *Server) registerDrawingTools() {
	s.mcp.AddTool(mcp.NewTool("read_drawing",
		mcp.WithDescription("Read a drawing file (.excalidraw, .svg or .png) and summarize its elements"),
		mcp.WithString("path", mcp.Description("Path to the drawing file"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleReadDrawing)

	s.mcp.AddTool(mcp.NewTool("convert_drawing",
		mcp.WithDescription("Convert a drawing to another format. The output format follows the output extension."),
		mcp.WithString("input", mcp.Description("Source drawing path"), mcp.Required()),
		mcp.WithString("output", mcp.Description("Destination path (.excalidraw, .svg or .png)"), mcp.Required()),
		mcp.WithBoolean("export", mcp.Description("Write an image-only file without the editable scene (default false)")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace the output file if it exists (default false)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleConvertDrawing)

	s.mcp.AddTool(mcp.NewTool("extract_scene",
		mcp.WithDescription("Return the editable scene document embedded in an .svg or .png drawing"),
		mcp.WithString("path", mcp.Description("Path to the image"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleExtractScene)
}

// ── Handlers ───────────────────────────────────────────────

type elementSummary struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text,omitempty"`
}

type drawingSummary struct {
	Path       string           `json:"path"`
	Format     codec.Format     `json:"format"`
	Count      int              `json:"elementCount"`
	Background string           `json:"background,omitempty"`
	Bounds     *[4]float64      `json:"bounds,omitempty"`
	Elements   []elementSummary `json:"elements"`
}

func (s *Server) handleReadDrawing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	scene, format, err := s.decodeFile(ctx, path)
	if err != nil {
		return nil, err
	}

	sum := drawingSummary{Path: path, Format: format, Elements: []elementSummary{}}
	sum.Background, _ = scene.AppState["viewBackgroundColor"].(string)
	bounds := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, el := range scene.Elements {
		if el.Deleted() {
			continue
		}
		x0, y0, x1, y1 := el.Bounds()
		bounds = [4]float64{math.Min(bounds[0], x0), math.Min(bounds[1], y0), math.Max(bounds[2], x1), math.Max(bounds[3], y1)}
		sum.Elements = append(sum.Elements, elementSummary{
			ID:     el.ID(),
			Type:   el.Type(),
			X:      el.Float("x"),
			Y:      el.Float("y"),
			Width:  el.Float("width"),
			Height: el.Float("height"),
			Text:   el.StringField("text"),
		})
	}
	sum.Count = len(sum.Elements)
	if sum.Count > 0 {
		sum.Bounds = &bounds
	}
	return jsonResult(sum)
}

func (s *Server) handleConvertDrawing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := req.GetString("input", "")
	output := req.GetString("output", "")
	if input == "" || output == "" {
		return nil, fmt.Errorf("input and output are required")
	}
	export := req.GetBool("export", false)

	if !req.GetBool("overwrite", false) {
		if _, err := os.Stat(output); err == nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s already exists; pass overwrite=true to replace it", output)), nil
		}
	}

	n, err := Convert(ctx, s.codec, s.files, input, output, export)
	if err != nil {
		return nil, err
	}
	s.logger.Info("converted drawing", "input", input, "output", output, "export", export)
	return textResult(fmt.Sprintf("Wrote %s (%s, %d elements, %d bytes)", output, codec.FormatFromFilename(output), n.Elements, n.Bytes)), nil
}

func (s *Server) handleExtractScene(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	format := codec.FormatFromFilename(path)
	if !format.IsImage() {
		return mcp.NewToolResultError("extract_scene only reads .svg and .png files"), nil
	}
	data, err := s.files.Read(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.extractor.ExtractScene(ctx, codec.Blob{MIMEType: format.MIMEType(), Data: data})
	if errors.Is(err, embed.ErrNoScene) {
		return textResult(fmt.Sprintf("%s has no embedded scene (image-only export)", path)), nil
	}
	if err != nil {
		return nil, err
	}
	doc.Source = ""
	return jsonResult(doc)
}

func (s *Server) decodeFile(ctx context.Context, path string) (domain.Scene, codec.Format, error) {
	format := codec.FormatFromFilename(path)
	data, err := s.files.Read(path)
	if err != nil {
		return domain.Scene{}, format, err
	}
	p, err := codec.PayloadFromBytes(format, data)
	if err != nil {
		return domain.Scene{}, format, err
	}
	scene, err := s.codec.Decode(ctx, p)
	if err != nil {
		return domain.Scene{}, format, err
	}
	return scene, format, nil
}
