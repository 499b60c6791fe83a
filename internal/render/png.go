package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/gogpu/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
	"excaliview/internal/embed"
)

// glyphHeight is the cell height of the bitmap face text is rasterized with.
const glyphHeight = 13.0

// RenderPNG rasterizes the document. When EmbedScene is set the document is
// written into a tEXt chunk of the resulting image.
func (e *Engine) RenderPNG(ctx context.Context, doc domain.Document, opts codec.ExportOptions) ([]byte, error) {
	requested := newFrame(doc, opts)
	f, err := requested.fitRaster()
	if err != nil {
		return nil, err
	}
	if f.scale < requested.scale {
		e.logger.Warn("png export scale reduced to fit canvas limits", "requested", requested.scale, "scale", f.scale)
	}
	w, h := f.pixels()

	dc := gg.NewContext(w, h)
	defer dc.Close()

	if bg, ok := parseColor(f.background, 1); ok {
		dc.ClearWithColor(bg)
	} else {
		dc.Clear()
	}
	dc.Scale(f.scale, f.scale)

	for _, el := range doc.Elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if el.Deleted() {
			continue
		}
		if err := e.drawElement(dc, f, el, doc.Files); err != nil {
			return nil, fmt.Errorf("draw %s %s: %w", el.Type(), el.ID(), err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	out := buf.Bytes()

	if opts.EmbedScene {
		data, err := sceneJSON(doc)
		if err != nil {
			return nil, err
		}
		out, err = embed.InsertPNG(out, data)
		if err != nil {
			return nil, fmt.Errorf("embed scene in png: %w", err)
		}
	}
	e.logger.Debug("rendered png", "width", w, "height", h, "bytes", len(out), "embedded", opts.EmbedScene)
	return out, nil
}

func (e *Engine) drawElement(dc *gg.Context, f frame, el domain.Element, files domain.Files) error {
	s := styleOf(el)
	dc.Push()
	defer dc.Pop()

	if s.angle != 0 {
		cx, cy := center(el)
		dc.RotateAbout(s.angle, f.x(cx), f.y(cy))
	}

	x, y := f.x(el.Float("x")), f.y(el.Float("y"))
	w, h := el.Float("width"), el.Float("height")

	switch el.Type() {
	case "rectangle", "frame", "magicframe", "embeddable", "iframe":
		if el["roundness"] != nil {
			dc.DrawRoundedRectangle(math.Min(x, x+w), math.Min(y, y+h), math.Abs(w), math.Abs(h), math.Min(math.Abs(w), math.Abs(h))*0.25)
		} else {
			dc.DrawRectangle(math.Min(x, x+w), math.Min(y, y+h), math.Abs(w), math.Abs(h))
		}
		return fillAndStroke(dc, s)
	case "ellipse":
		dc.DrawEllipse(x+w/2, y+h/2, math.Abs(w/2), math.Abs(h/2))
		return fillAndStroke(dc, s)
	case "diamond":
		tracePath(dc, f, diamondPoints(el), true)
		return fillAndStroke(dc, s)
	case "line", "arrow", "freedraw":
		return drawLinear(dc, f, el, s)
	case "text":
		return e.drawText(dc, f, el, s)
	case "image":
		return e.drawImage(dc, el, files, x, y, w, h, s)
	}
	return nil
}

func fillAndStroke(dc *gg.Context, s style) error {
	if s.hasFill() {
		if c, ok := parseColor(s.fill, s.opacity); ok {
			dc.SetRGBA(c.R, c.G, c.B, c.A)
			if err := dc.FillPreserve(); err != nil {
				return err
			}
		}
	}
	return strokePath(dc, s)
}

func strokePath(dc *gg.Context, s style) error {
	c, ok := parseColor(s.stroke, s.opacity)
	if !ok {
		dc.ClearPath()
		return nil
	}
	dc.SetRGBA(c.R, c.G, c.B, c.A)
	dc.SetLineWidth(s.strokeWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	if len(s.dash) > 0 {
		dc.SetDash(s.dash...)
	} else {
		dc.ClearDash()
	}
	return dc.Stroke()
}

func tracePath(dc *gg.Context, f frame, pts [][2]float64, closed bool) {
	for i, p := range pts {
		if i == 0 {
			dc.MoveTo(f.x(p[0]), f.y(p[1]))
			continue
		}
		dc.LineTo(f.x(p[0]), f.y(p[1]))
	}
	if closed {
		dc.ClosePath()
	}
}

func drawLinear(dc *gg.Context, f frame, el domain.Element, s style) error {
	pts := absPoints(el)
	if len(pts) < 2 {
		return nil
	}
	closed := len(pts) > 2 && pts[0] == pts[len(pts)-1]
	tracePath(dc, f, pts, false)
	if closed {
		if err := fillAndStroke(dc, s); err != nil {
			return err
		}
	} else if err := strokePath(dc, s); err != nil {
		return err
	}

	start, end := heads(el)
	solid := s
	solid.dash = nil
	if end {
		a, b := arrowhead(pts[len(pts)-2], pts[len(pts)-1])
		tracePath(dc, f, [][2]float64{a, pts[len(pts)-1], b}, false)
		if err := strokePath(dc, solid); err != nil {
			return err
		}
	}
	if start {
		a, b := arrowhead(pts[1], pts[0])
		tracePath(dc, f, [][2]float64{a, pts[0], b}, false)
		if err := strokePath(dc, solid); err != nil {
			return err
		}
	}
	return nil
}

// drawText rasterizes each line with the bitmap face and scales the
// result up to the element's font size.
func (e *Engine) drawText(dc *gg.Context, f frame, el domain.Element, s style) error {
	c, ok := parseColor(s.stroke, 1)
	if !ok {
		return nil
	}
	size := fontSize(el)
	ratio := size / glyphHeight
	boxW, _ := textSize(el)
	x, y := f.x(el.Float("x")), f.y(el.Float("y"))
	face := basicfont.Face7x13
	ink := color.NRGBA{R: uint8(c.R * 255), G: uint8(c.G * 255), B: uint8(c.B * 255), A: 255}

	for i, line := range el.Lines() {
		if strings.TrimSpace(line) == "" {
			continue
		}
		adv := font.MeasureString(face, line).Ceil()
		if adv <= 0 {
			continue
		}
		img := image.NewNRGBA(image.Rect(0, 0, adv, int(glyphHeight)))
		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(ink),
			Face: face,
			Dot:  fixed.P(0, face.Ascent),
		}
		d.DrawString(line)

		lw := float64(adv) * ratio
		lx := x
		switch el.StringField("textAlign") {
		case "center":
			lx = x + (boxW-lw)/2
		case "right":
			lx = x + boxW - lw
		}
		dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
			X:         lx,
			Y:         y + float64(i)*size*lineHeight,
			DstWidth:  lw,
			DstHeight: size,
			Opacity:   s.opacity,
		})
	}
	return nil
}

func (e *Engine) drawImage(dc *gg.Context, el domain.Element, files domain.Files, x, y, w, h float64, s style) error {
	href := imageHref(el, files)
	if href == "" {
		return nil
	}
	img, err := decodeDataURL(href)
	if err != nil {
		// A broken image must not abort the whole export.
		e.logger.Warn("skipping image element", "id", el.ID(), "error", err)
		return nil
	}
	dc.DrawImageEx(gg.ImageBufFromImage(toNRGBA(img)), gg.DrawImageOptions{
		X:         x,
		Y:         y,
		DstWidth:  w,
		DstHeight: h,
		Opacity:   s.opacity,
	})
	return nil
}

func decodeDataURL(href string) (image.Image, error) {
	_, data, ok := strings.Cut(href, ";base64,")
	if !ok {
		return nil, fmt.Errorf("unsupported image reference")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// parseColor understands hex colours and "transparent". Opacity scales alpha.
func parseColor(s string, opacity float64) (gg.RGBA, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "", s == "transparent", s == "none":
		return gg.RGBA{}, false
	case strings.HasPrefix(s, "#"):
		switch len(s) {
		case 4, 5, 7, 9:
		default:
			return gg.RGBA{}, false
		}
		c := gg.Hex(s)
		c.A *= opacity
		return c, true
	}
	if c, ok := namedColors[s]; ok {
		return parseColor(c, opacity)
	}
	return gg.RGBA{}, false
}

var namedColors = map[string]string{
	"black": "#000000",
	"white": "#ffffff",
	"red":   "#ff0000",
	"green": "#008000",
	"blue":  "#0000ff",
}
