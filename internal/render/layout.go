package render

import (
	"math"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
)

const (
	defaultStroke     = "#1e1e1e"
	defaultBackground = "#ffffff"
	defaultFontSize   = 20.0
	lineHeight        = 1.25
	arrowheadLength   = 15.0
	arrowheadAngle    = 25 * math.Pi / 180
)

// frame maps scene coordinates onto the exported canvas.
type frame struct {
	minX, minY    float64
	width, height float64
	padding       float64
	scale         float64
	background    string
}

func newFrame(doc domain.Document, opts codec.ExportOptions) frame {
	f := frame{padding: opts.Padding, scale: opts.Scale}
	if f.scale <= 0 {
		f.scale = 1
	}
	if f.padding < 0 {
		f.padding = 0
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, el := range doc.Elements {
		x0, y0, x1, y1 := el.Bounds()
		if el.Type() == "text" {
			_, h := textSize(el)
			y1 = math.Max(y1, y0+h)
		}
		minX, minY = math.Min(minX, x0), math.Min(minY, y0)
		maxX, maxY = math.Max(maxX, x1), math.Max(maxY, y1)
	}
	if math.IsInf(minX, 1) {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	f.minX, f.minY = minX, minY
	f.width = maxX - minX + 2*f.padding
	f.height = maxY - minY + 2*f.padding
	f.background, _ = doc.AppState["viewBackgroundColor"].(string)
	if f.background == "" {
		f.background = defaultBackground
	}
	return f
}

// x and y translate scene coordinates into canvas units (before scale).
func (f frame) x(v float64) float64 { return v - f.minX + f.padding }
func (f frame) y(v float64) float64 { return v - f.minY + f.padding }

// Raster limits. A drawing larger than this is exported at a reduced scale.
const (
	maxCanvasSide   = 16384.0
	maxCanvasPixels = float64(1 << 25)
)

// fitRaster lowers the scale so the raster stays within maxCanvasSide per
// side and maxCanvasPixels in total.
func (f frame) fitRaster() (frame, error) {
	for _, v := range []float64{f.width, f.height, f.scale} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return f, ErrCanvasTooLarge
		}
	}
	if side := math.Max(f.width, f.height) * f.scale; side > maxCanvasSide {
		f.scale = maxCanvasSide / math.Max(f.width, f.height)
	}
	if area := f.width * f.scale * f.height * f.scale; area > maxCanvasPixels {
		f.scale *= math.Sqrt(maxCanvasPixels / area)
	}
	return f, nil
}

// pixels returns the raster size, at least 1x1.
func (f frame) pixels() (int, int) {
	w := int(math.Ceil(f.width * f.scale))
	h := int(math.Ceil(f.height * f.scale))
	return max(w, 1), max(h, 1)
}

// style is the subset of element properties the exporter honours.
type style struct {
	stroke      string
	fill        string
	strokeWidth float64
	opacity     float64
	dash        []float64
	angle       float64
}

func styleOf(el domain.Element) style {
	s := style{
		stroke:      el.StringField("strokeColor"),
		fill:        el.StringField("backgroundColor"),
		strokeWidth: el.FloatOr("strokeWidth", 2),
		opacity:     el.FloatOr("opacity", 100) / 100,
		angle:       el.Float("angle"),
	}
	if s.stroke == "" {
		s.stroke = defaultStroke
	}
	switch el.StringField("strokeStyle") {
	case "dashed":
		s.dash = []float64{8, 8 + s.strokeWidth}
	case "dotted":
		s.dash = []float64{1.5, 6 + s.strokeWidth}
	}
	return s
}

func (s style) hasFill() bool {
	return s.fill != "" && s.fill != "transparent"
}

// center returns the rotation pivot of an element in scene coordinates.
func center(el domain.Element) (float64, float64) {
	x0, y0, x1, y1 := el.Bounds()
	return (x0 + x1) / 2, (y0 + y1) / 2
}

// absPoints returns a linear element's points in scene coordinates.
func absPoints(el domain.Element) [][2]float64 {
	x, y := el.Float("x"), el.Float("y")
	pts := el.Points()
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{x + p[0], y + p[1]}
	}
	return out
}

// diamondPoints returns top, right, bottom, left.
func diamondPoints(el domain.Element) [][2]float64 {
	x, y := el.Float("x"), el.Float("y")
	w, h := el.Float("width"), el.Float("height")
	return [][2]float64{{x + w/2, y}, {x + w, y + h/2}, {x + w/2, y + h}, {x, y + h/2}}
}

// arrowhead returns the two barb endpoints for a head at tip coming from prev.
func arrowhead(prev, tip [2]float64) ([2]float64, [2]float64) {
	dx, dy := tip[0]-prev[0], tip[1]-prev[1]
	length := math.Hypot(dx, dy)
	size := math.Min(arrowheadLength, length/2)
	base := math.Atan2(dy, dx) + math.Pi
	a := [2]float64{tip[0] + size*math.Cos(base-arrowheadAngle), tip[1] + size*math.Sin(base-arrowheadAngle)}
	b := [2]float64{tip[0] + size*math.Cos(base+arrowheadAngle), tip[1] + size*math.Sin(base+arrowheadAngle)}
	return a, b
}

// heads reports which ends of a linear element carry an arrowhead.
// Arrows default to an end head when the field is missing.
func heads(el domain.Element) (start, end bool) {
	if el.Type() != "arrow" {
		return false, false
	}
	start = el.StringField("startArrowhead") != ""
	if v, ok := el["endArrowhead"]; ok {
		s, _ := v.(string)
		end = s != ""
	} else {
		end = true
	}
	return start, end
}

func fontSize(el domain.Element) float64 {
	return el.FloatOr("fontSize", defaultFontSize)
}

// textSize estimates the box of a text element when width/height are missing.
func textSize(el domain.Element) (float64, float64) {
	lines := el.Lines()
	size := fontSize(el)
	w := el.Float("width")
	if w == 0 {
		for _, l := range lines {
			w = math.Max(w, float64(len([]rune(l)))*size*0.6)
		}
	}
	h := el.Float("height")
	if h == 0 {
		h = float64(len(lines)) * size * lineHeight
	}
	return w, h
}

func fontFamily(el domain.Element) string {
	switch int(el.Float("fontFamily")) {
	case 2:
		return "Helvetica, sans-serif"
	case 3:
		return "Cascadia, monospace"
	}
	return "Virgil, Segoe UI Emoji"
}
