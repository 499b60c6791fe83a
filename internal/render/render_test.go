package render_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"image/png"
	"io"
	"math"
	"strings"
	"testing"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
	"excaliview/internal/embed"
	"excaliview/internal/render"
)

func sampleDoc() domain.Document {
	return domain.NewDocument(domain.Scene{
		Elements: []domain.Element{
			{"id": "r1", "type": "rectangle", "x": 0.0, "y": 0.0, "width": 100.0, "height": 50.0,
				"strokeColor": "#1e1e1e", "backgroundColor": "#a5d8ff", "strokeStyle": "dashed"},
			{"id": "a1", "type": "arrow", "x": 10.0, "y": 60.0, "width": 80.0, "height": 0.0,
				"points": []any{[]any{0.0, 0.0}, []any{80.0, 0.0}}},
			{"id": "t1", "type": "text", "x": 5.0, "y": 5.0, "text": "a < b & \"c\"", "fontSize": 16.0},
			{"id": "gone", "type": "ellipse", "isDeleted": true, "x": 500.0, "y": 500.0, "width": 10.0, "height": 10.0},
		},
		AppState: domain.AppState{"viewBackgroundColor": "#ffffff"},
	})
}

func wellFormed(t *testing.T, markup []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(markup))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("svg is not well-formed XML: %v\n%s", err, markup)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// SVG
// ─────────────────────────────────────────────────────────────

func TestRenderSVG_Embedded(t *testing.T) {
	e := render.New(nil)
	doc := sampleDoc()

	out, err := e.RenderSVG(context.Background(), doc, codec.ExportOptions{EmbedScene: true, Padding: 10, Scale: 1})
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	wellFormed(t, out)
	s := string(out)
	if !strings.HasPrefix(s, "<svg") {
		t.Errorf("expected markup to start with <svg, got %q", s[:20])
	}
	if !strings.Contains(s, embed.SVGSourceTag) {
		t.Error("missing source tag")
	}
	if !strings.Contains(s, "payload-start") {
		t.Error("missing embedded payload")
	}
	if !strings.Contains(s, "a &lt; b &amp;") {
		t.Error("text content should be escaped")
	}

	got, err := e.ExtractScene(context.Background(), codec.Blob{MIMEType: "image/svg+xml", Data: out})
	if err != nil {
		t.Fatalf("ExtractScene: %v", err)
	}
	if len(got.Elements) != len(doc.Elements) {
		t.Errorf("expected %d elements back, got %d", len(doc.Elements), len(got.Elements))
	}
	if got.Elements[0].ID() != "r1" {
		t.Errorf("expected first element r1, got %q", got.Elements[0].ID())
	}
}

func TestRenderSVG_ExportOnly(t *testing.T) {
	e := render.New(nil)
	out, err := e.RenderSVG(context.Background(), sampleDoc(), codec.ExportOptions{Padding: 10, Scale: 1})
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	wellFormed(t, out)
	if !strings.Contains(string(out), "<metadata></metadata>") {
		t.Error("expected empty metadata element")
	}
	if strings.Contains(string(out), "payload-type") {
		t.Error("export-only svg must not carry a scene")
	}

	_, err = e.ExtractScene(context.Background(), codec.Blob{MIMEType: "image/svg+xml", Data: out})
	if !errors.Is(err, embed.ErrNoScene) {
		t.Errorf("expected ErrNoScene, got %v", err)
	}
}

func TestRenderSVG_Dimensions(t *testing.T) {
	e := render.New(nil)
	doc := domain.NewDocument(domain.Scene{Elements: []domain.Element{
		{"id": "r", "type": "rectangle", "x": 20.0, "y": 30.0, "width": 100.0, "height": 50.0},
	}})
	out, err := e.RenderSVG(context.Background(), doc, codec.ExportOptions{Padding: 10, Scale: 2})
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `viewBox="0 0 120 70"`) {
		t.Errorf("unexpected viewBox in %s", s)
	}
	if !strings.Contains(s, `width="240" height="140"`) {
		t.Errorf("unexpected scaled size in %s", s)
	}
	if !strings.Contains(s, `<rect x="10" y="10" width="100" height="50"`) {
		t.Errorf("rectangle should be translated by the padding: %s", s)
	}
}

func TestRenderSVG_EmptyScene(t *testing.T) {
	e := render.New(nil)
	out, err := e.RenderSVG(context.Background(), domain.NewDocument(domain.Scene{}), codec.ExportOptions{Padding: 10, Scale: 1})
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	wellFormed(t, out)
}

// ─────────────────────────────────────────────────────────────
// PNG
// ─────────────────────────────────────────────────────────────

func TestRenderPNG_Size(t *testing.T) {
	e := render.New(nil)
	doc := domain.NewDocument(domain.Scene{Elements: []domain.Element{
		{"id": "r", "type": "rectangle", "x": 0.0, "y": 0.0, "width": 100.0, "height": 50.0},
	}})
	out, err := e.RenderPNG(context.Background(), doc, codec.ExportOptions{Padding: 10, Scale: 1})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 70 {
		t.Errorf("expected 120x70, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderPNG_LargeDrawingIsDownscaled(t *testing.T) {
	e := render.New(nil)
	doc := domain.NewDocument(domain.Scene{Elements: []domain.Element{
		{"id": "huge", "type": "rectangle", "x": 0.0, "y": 0.0, "width": 100000.0, "height": 100000.0},
	}})
	out, err := e.RenderPNG(context.Background(), doc, codec.ExportOptions{Padding: 10, Scale: 1})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode png config: %v", err)
	}
	if cfg.Width > 16384 || cfg.Height > 16384 {
		t.Errorf("side over limit: %dx%d", cfg.Width, cfg.Height)
	}
	if area := cfg.Width * cfg.Height; area > (1<<25)+2*16384 {
		t.Errorf("area over limit: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width != cfg.Height {
		t.Errorf("aspect ratio changed: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderPNG_NonFiniteExtent(t *testing.T) {
	e := render.New(nil)
	doc := domain.NewDocument(domain.Scene{Elements: []domain.Element{
		{"id": "r", "type": "rectangle", "x": 0.0, "y": 0.0, "width": math.Inf(1), "height": 10.0},
	}})
	_, err := e.RenderPNG(context.Background(), doc, codec.ExportOptions{Scale: 1})
	if !errors.Is(err, render.ErrCanvasTooLarge) {
		t.Errorf("expected ErrCanvasTooLarge, got %v", err)
	}
}

func TestRenderPNG_EmbeddedRoundTrip(t *testing.T) {
	e := render.New(nil)
	doc := sampleDoc()
	out, err := e.RenderPNG(context.Background(), doc, codec.ExportOptions{EmbedScene: true, Padding: 10, Scale: 1})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("embedded png no longer decodes: %v", err)
	}
	got, err := e.ExtractScene(context.Background(), codec.Blob{MIMEType: "image/png", Data: out})
	if err != nil {
		t.Fatalf("ExtractScene: %v", err)
	}
	if len(got.Elements) != len(doc.Elements) {
		t.Errorf("expected %d elements, got %d", len(doc.Elements), len(got.Elements))
	}
	if got.AppState["viewBackgroundColor"] != "#ffffff" {
		t.Errorf("appState lost: %v", got.AppState)
	}
}

func TestRenderPNG_ExportOnly(t *testing.T) {
	e := render.New(nil)
	out, err := e.RenderPNG(context.Background(), sampleDoc(), codec.ExportOptions{Padding: 10, Scale: 1})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	_, err = e.ExtractScene(context.Background(), codec.Blob{MIMEType: "image/png", Data: out})
	if !errors.Is(err, embed.ErrNoScene) {
		t.Errorf("expected ErrNoScene, got %v", err)
	}
}

func TestRenderPNG_Cancelled(t *testing.T) {
	e := render.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.RenderPNG(ctx, sampleDoc(), codec.ExportOptions{Scale: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Extraction
// ─────────────────────────────────────────────────────────────

func TestExtractScene_UnsupportedMIME(t *testing.T) {
	e := render.New(nil)
	if _, err := e.ExtractScene(context.Background(), codec.Blob{MIMEType: "image/gif", Data: []byte("GIF89a")}); err == nil {
		t.Error("expected error for unsupported media type")
	}
}
