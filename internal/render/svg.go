package render

import (
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
	"excaliview/internal/embed"
)

// RenderSVG draws the document as a standalone SVG. When EmbedScene is set
// the document is stored in the metadata block so the file can be reopened.
func (e *Engine) RenderSVG(ctx context.Context, doc domain.Document, opts codec.ExportOptions) ([]byte, error) {
	f := newFrame(doc, opts)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg version="1.1" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %s %s" width="%s" height="%s">`,
		num(f.width), num(f.height), num(f.width*f.scale), num(f.height*f.scale))
	b.WriteString("\n")

	if opts.EmbedScene {
		meta, err := sceneMetadata(doc)
		if err != nil {
			return nil, err
		}
		b.WriteString(embed.SVGSourceTag)
		b.WriteString("\n")
		b.WriteString(meta)
	} else {
		b.WriteString("<metadata></metadata>")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, `<rect x="0" y="0" width="%s" height="%s" fill="%s"></rect>`,
		num(f.width), num(f.height), attr(f.background))
	b.WriteString("\n")

	for _, el := range doc.Elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if el.Deleted() {
			continue
		}
		writeSVGElement(&b, f, el, doc.Files)
	}

	b.WriteString("</svg>\n")
	e.logger.Debug("rendered svg", "elements", len(doc.Elements), "bytes", b.Len(), "embedded", opts.EmbedScene)
	return []byte(b.String()), nil
}

func sceneMetadata(doc domain.Document) (string, error) {
	data, err := sceneJSON(doc)
	if err != nil {
		return "", err
	}
	meta, err := embed.SVGMetadata(data)
	if err != nil {
		return "", fmt.Errorf("embed scene in svg: %w", err)
	}
	return meta, nil
}

func writeSVGElement(b *strings.Builder, f frame, el domain.Element, files domain.Files) {
	s := styleOf(el)
	cx, cy := center(el)

	fmt.Fprintf(b, `<g`)
	if s.angle != 0 {
		fmt.Fprintf(b, ` transform="rotate(%s %s %s)"`, num(s.angle*180/math.Pi), num(f.x(cx)), num(f.y(cy)))
	}
	if s.opacity < 1 {
		fmt.Fprintf(b, ` opacity="%s"`, num(s.opacity))
	}
	b.WriteString(">")

	x, y := f.x(el.Float("x")), f.y(el.Float("y"))
	w, h := el.Float("width"), el.Float("height")

	switch el.Type() {
	case "rectangle", "frame", "magicframe", "embeddable", "iframe":
		rx := 0.0
		if el["roundness"] != nil {
			rx = min(w, h) * 0.25
		}
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s"%s></rect>`,
			num(x), num(y), num(w), num(h), num(rx), paint(s))
		if name := el.StringField("name"); name != "" && strings.HasSuffix(el.Type(), "frame") {
			fmt.Fprintf(b, `<text x="%s" y="%s" font-family="sans-serif" font-size="14" fill="%s">%s</text>`,
				num(x), num(y-6), attr(s.stroke), text(name))
		}
	case "ellipse":
		fmt.Fprintf(b, `<ellipse cx="%s" cy="%s" rx="%s" ry="%s"%s></ellipse>`,
			num(x+w/2), num(y+h/2), num(w/2), num(h/2), paint(s))
	case "diamond":
		fmt.Fprintf(b, `<polygon points="%s"%s></polygon>`, pointList(f, diamondPoints(el)), paint(s))
	case "line", "arrow", "freedraw":
		writeSVGLinear(b, f, el, s)
	case "text":
		writeSVGText(b, f, el, s)
	case "image":
		if href := imageHref(el, files); href != "" {
			fmt.Fprintf(b, `<image x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="none" href="%s"></image>`,
				num(x), num(y), num(w), num(h), attr(href))
		}
	}
	b.WriteString("</g>\n")
}

func writeSVGLinear(b *strings.Builder, f frame, el domain.Element, s style) {
	pts := absPoints(el)
	if len(pts) < 2 {
		return
	}
	fillPaint := paint(style{stroke: s.stroke, strokeWidth: s.strokeWidth, dash: s.dash})
	closed := pts[0] == pts[len(pts)-1] && len(pts) > 2
	if closed && s.hasFill() {
		fillPaint = paint(s)
	}
	fmt.Fprintf(b, `<polyline points="%s" stroke-linecap="round" stroke-linejoin="round"%s></polyline>`,
		pointList(f, pts), fillPaint)

	start, end := heads(el)
	solid := paint(style{stroke: s.stroke, strokeWidth: s.strokeWidth})
	if end {
		a, c := arrowhead(pts[len(pts)-2], pts[len(pts)-1])
		fmt.Fprintf(b, `<polyline points="%s" stroke-linecap="round"%s></polyline>`,
			pointList(f, [][2]float64{a, pts[len(pts)-1], c}), solid)
	}
	if start {
		a, c := arrowhead(pts[1], pts[0])
		fmt.Fprintf(b, `<polyline points="%s" stroke-linecap="round"%s></polyline>`,
			pointList(f, [][2]float64{a, pts[0], c}), solid)
	}
}

func writeSVGText(b *strings.Builder, f frame, el domain.Element, s style) {
	size := fontSize(el)
	w, _ := textSize(el)
	x, y := f.x(el.Float("x")), f.y(el.Float("y"))

	anchor := "start"
	switch el.StringField("textAlign") {
	case "center":
		anchor, x = "middle", x+w/2
	case "right":
		anchor, x = "end", x+w
	}

	for i, line := range el.Lines() {
		ly := y + float64(i)*size*lineHeight + size
		fmt.Fprintf(b, `<text x="%s" y="%s" font-family="%s" font-size="%spx" fill="%s" text-anchor="%s" style="white-space: pre;" direction="ltr">%s</text>`,
			num(x), num(ly), attr(fontFamily(el)), num(size), attr(s.stroke), anchor, text(line))
	}
}

func imageHref(el domain.Element, files domain.Files) string {
	rec, ok := files[el.StringField("fileId")].(map[string]any)
	if !ok {
		return ""
	}
	href, _ := rec["dataURL"].(string)
	return href
}

func paint(s style) string {
	var b strings.Builder
	fill := "none"
	if s.hasFill() {
		fill = s.fill
	}
	fmt.Fprintf(&b, ` stroke="%s" stroke-width="%s" fill="%s"`, attr(s.stroke), num(s.strokeWidth), attr(fill))
	if len(s.dash) > 0 {
		parts := make([]string, len(s.dash))
		for i, d := range s.dash {
			parts[i] = num(d)
		}
		fmt.Fprintf(&b, ` stroke-dasharray="%s"`, strings.Join(parts, " "))
	}
	return b.String()
}

func pointList(f frame, pts [][2]float64) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = num(f.x(p[0])) + "," + num(f.y(p[1]))
	}
	return strings.Join(parts, " ")
}

// num formats a coordinate without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func text(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func attr(s string) string {
	return text(s)
}
