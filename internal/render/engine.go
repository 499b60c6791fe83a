// Package render is the export engine: it draws a scene document as SVG
// or PNG and reads embedded documents back out of those files.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
	"excaliview/internal/embed"
)

// ErrCanvasTooLarge is returned when a drawing's extent cannot be rasterized.
var ErrCanvasTooLarge = errors.New("render: canvas too large")

// Engine implements codec.Renderer and codec.Extractor.
type Engine struct {
	logger *slog.Logger
}

var (
	_ codec.Renderer  = (*Engine)(nil)
	_ codec.Extractor = (*Engine)(nil)
)

// New creates an Engine. A nil logger discards output.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{logger: logger}
}

// ExtractScene reads the document embedded in an SVG or PNG blob.
func (e *Engine) ExtractScene(_ context.Context, blob codec.Blob) (domain.Document, error) {
	var (
		raw []byte
		err error
	)
	switch blob.MIMEType {
	case codec.FormatSVG.MIMEType():
		raw, err = embed.ExtractSVG(blob.Data)
	case codec.FormatPNG.MIMEType():
		raw, err = embed.ExtractPNG(blob.Data)
	default:
		return domain.Document{}, fmt.Errorf("extract: unsupported media type %q", blob.MIMEType)
	}
	if err != nil {
		return domain.Document{}, err
	}

	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("parse embedded scene: %w", err)
	}
	if doc.Type != "" && doc.Type != domain.DocumentType {
		return domain.Document{}, fmt.Errorf("embedded document has type %q", doc.Type)
	}
	e.logger.Debug("extracted scene", "mime", blob.MIMEType, "elements", len(doc.Elements))
	return doc, nil
}

// sceneJSON is what gets embedded when EmbedScene is set.
func sceneJSON(doc domain.Document) ([]byte, error) {
	doc.Source = ""
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}
	return data, nil
}
