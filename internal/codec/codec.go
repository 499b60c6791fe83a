// Package codec converts between the live scene and the three wire formats.
package codec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"excaliview/internal/domain"
	"excaliview/internal/embed"
)

// ExportOptions is passed to the rendering engine.
type ExportOptions struct {
	// EmbedScene asks the engine to store the canonical document in the image.
	EmbedScene bool
	Padding    float64
	Scale      float64
}

// Renderer is the export capability of the whiteboard engine.
type Renderer interface {
	RenderSVG(ctx context.Context, doc domain.Document, opts ExportOptions) ([]byte, error)
	RenderPNG(ctx context.Context, doc domain.Document, opts ExportOptions) ([]byte, error)
}

// Extractor recovers the canonical document from an exported image.
type Extractor interface {
	ExtractScene(ctx context.Context, blob Blob) (domain.Document, error)
}

// SaveOptions selects the output of Encode.
type SaveOptions struct {
	Format Format
	// Export produces an image-only artifact with no recoverable scene.
	Export bool
}

// Codec is stateless; every call works only on its arguments.
type Codec struct {
	renderer  Renderer
	extractor Extractor
	padding   float64
	scale     float64
	logger    *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger. nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithExportLayout sets padding and scale used for image exports.
func WithExportLayout(padding, scale float64) Option {
	return func(c *Codec) {
		if padding >= 0 {
			c.padding = padding
		}
		if scale > 0 {
			c.scale = scale
		}
	}
}

func New(r Renderer, x Extractor, opts ...Option) *Codec {
	c := &Codec{
		renderer:  r,
		extractor: x,
		padding:   10,
		scale:     1,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode serializes a scene into the requested format.
func (c *Codec) Encode(ctx context.Context, scene domain.Scene, opts SaveOptions) (Payload, error) {
	doc := domain.NewDocument(scene)
	export := ExportOptions{EmbedScene: !opts.Export, Padding: c.padding, Scale: c.scale}

	switch opts.Format {
	case FormatJSON:
		return Payload{Format: FormatJSON, Data: &doc}, nil

	case FormatSVG:
		markup, err := c.renderer.RenderSVG(ctx, doc, export)
		if err != nil {
			return Payload{}, fmt.Errorf("render svg: %w", err)
		}
		c.logger.Debug("encoded svg", "elements", len(doc.Elements), "embed", export.EmbedScene, "bytes", len(markup))
		return Payload{Format: FormatSVG, Blob: string(markup)}, nil

	case FormatPNG:
		img, err := c.renderer.RenderPNG(ctx, doc, export)
		if err != nil {
			return Payload{}, fmt.Errorf("render png: %w", err)
		}
		c.logger.Debug("encoded png", "elements", len(doc.Elements), "embed", export.EmbedScene, "bytes", len(img))
		return Payload{Format: FormatPNG, Base64: base64.StdEncoding.EncodeToString(img)}, nil
	}
	return Payload{}, fmt.Errorf("encode: %w: %q", ErrUnknownFormat, opts.Format)
}

// Decode turns a load payload into the scene it describes.
func (c *Codec) Decode(ctx context.Context, p Payload) (domain.Scene, error) {
	switch p.Format {
	case FormatJSON:
		if p.Data == nil {
			return domain.Scene{}, fmt.Errorf("decode json: payload has no document")
		}
		doc := *p.Data
		doc.Source = ""
		return doc.Scene(), nil

	case FormatSVG:
		return c.loadFromBlob(ctx, Blob{MIMEType: FormatSVG.MIMEType(), Data: []byte(p.Blob)})

	case FormatPNG:
		data, err := decodeBase64Image(p.Base64)
		if err != nil {
			return domain.Scene{}, fmt.Errorf("decode png: %w", err)
		}
		return c.loadFromBlob(ctx, Blob{MIMEType: FormatPNG.MIMEType(), Data: data})
	}
	return domain.Scene{}, fmt.Errorf("decode: %w: %q", ErrUnknownFormat, p.Format)
}

// loadFromBlob is the one extraction path shared by every image format.
func (c *Codec) loadFromBlob(ctx context.Context, blob Blob) (domain.Scene, error) {
	doc, err := c.extractor.ExtractScene(ctx, blob)
	if errors.Is(err, embed.ErrNoScene) {
		// Image-only exports load as an empty scene.
		c.logger.Warn("image carries no scene, loading empty drawing", "mime", blob.MIMEType)
		return domain.NewDocument(domain.Scene{}).Scene(), nil
	}
	if err != nil {
		return domain.Scene{}, fmt.Errorf("extract scene from %s: %w", blob.MIMEType, err)
	}
	doc.Source = ""
	return doc.Scene(), nil
}
