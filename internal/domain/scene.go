package domain

import (
	"math"
	"strings"
)

// Element is a single drawable record owned by the whiteboard engine.
// The host never interprets it beyond geometry lookups for export.
type Element map[string]any

// AppState holds view settings, selection, etc.
type AppState map[string]any

// Files maps file IDs to binary file records (image elements).
type Files map[string]any

// Scene is the live whiteboard content.
type Scene struct {
	Elements []Element `json:"elements"`
	AppState AppState  `json:"appState"`
	Files    Files     `json:"files,omitempty"`
}

const (
	DocumentType    = "excalidraw"
	DocumentVersion = 2
	// MIMEType identifies the canonical document inside image metadata.
	MIMEType = "application/vnd.excalidraw+json"
)

// exportedAppState lists the appState keys that survive serialization.
var exportedAppState = []string{
	"viewBackgroundColor",
	"gridSize",
	"gridStep",
	"gridModeEnabled",
	"lockedMultiSelections",
}

// Document is the canonical, JSON-serializable form of a Scene.
// Source is never written by this program; it is kept on the type so that
// documents produced elsewhere can be read and then cleared.
type Document struct {
	Type     string    `json:"type"`
	Version  int       `json:"version"`
	Source   string    `json:"source,omitempty"`
	Elements []Element `json:"elements"`
	AppState AppState  `json:"appState"`
	Files    Files     `json:"files,omitempty"`
}

// NewDocument builds the canonical document for a scene.
// Deleted elements are dropped and appState is reduced to its exported subset.
func NewDocument(s Scene) Document {
	elements := make([]Element, 0, len(s.Elements))
	for _, el := range s.Elements {
		if el.Deleted() {
			continue
		}
		elements = append(elements, el.Clone())
	}

	appState := AppState{}
	for _, k := range exportedAppState {
		if v, ok := s.AppState[k]; ok {
			appState[k] = cloneValue(v)
		}
	}

	var files Files
	if len(s.Files) > 0 {
		files = make(Files, len(s.Files))
		for k, v := range s.Files {
			files[k] = cloneValue(v)
		}
	}

	return Document{
		Type:     DocumentType,
		Version:  DocumentVersion,
		Elements: elements,
		AppState: appState,
		Files:    files,
	}
}

// Scene converts the document back into a scene, replacing nil
// collections with empty ones.
func (d Document) Scene() Scene {
	s := Scene{Elements: d.Elements, AppState: d.AppState, Files: d.Files}
	if s.Elements == nil {
		s.Elements = []Element{}
	}
	if s.AppState == nil {
		s.AppState = AppState{}
	}
	return s.Clone()
}

// Clone returns a deep copy of the scene.
func (s Scene) Clone() Scene {
	out := Scene{Elements: make([]Element, len(s.Elements))}
	for i, el := range s.Elements {
		out.Elements[i] = el.Clone()
	}
	if s.AppState != nil {
		out.AppState = AppState(cloneMap(s.AppState))
	}
	if s.Files != nil {
		out.Files = Files(cloneMap(s.Files))
	}
	return out
}

// ── Element accessors ──────────────────────────────────────

func (e Element) Clone() Element {
	if e == nil {
		return nil
	}
	return Element(cloneMap(e))
}

func (e Element) ID() string   { return e.StringField("id") }
func (e Element) Type() string { return e.StringField("type") }

// Deleted reports whether the element is a tombstone.
func (e Element) Deleted() bool {
	b, _ := e["isDeleted"].(bool)
	return b
}

func (e Element) StringField(key string) string {
	s, _ := e[key].(string)
	return s
}

// Float reads a numeric field; JSON numbers decode as float64 but
// elements built in Go may carry ints.
func (e Element) Float(key string) float64 {
	return toFloat(e[key])
}

// FloatOr is Float with a default for missing keys.
func (e Element) FloatOr(key string, def float64) float64 {
	if _, ok := e[key]; !ok {
		return def
	}
	return e.Float(key)
}

// Points returns the relative points of a linear element.
func (e Element) Points() [][2]float64 {
	raw, ok := e["points"].([]any)
	if !ok {
		return nil
	}
	pts := make([][2]float64, 0, len(raw))
	for _, p := range raw {
		pair, ok := p.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		pts = append(pts, [2]float64{toFloat(pair[0]), toFloat(pair[1])})
	}
	return pts
}

// IsLinear reports whether the element is drawn from its points.
func (e Element) IsLinear() bool {
	switch e.Type() {
	case "line", "arrow", "freedraw":
		return true
	}
	return false
}

// Bounds returns the axis-aligned box of the element, ignoring rotation.
func (e Element) Bounds() (minX, minY, maxX, maxY float64) {
	x, y := e.Float("x"), e.Float("y")
	if e.IsLinear() {
		pts := e.Points()
		if len(pts) > 0 {
			minX, minY = math.Inf(1), math.Inf(1)
			maxX, maxY = math.Inf(-1), math.Inf(-1)
			for _, p := range pts {
				minX = math.Min(minX, x+p[0])
				minY = math.Min(minY, y+p[1])
				maxX = math.Max(maxX, x+p[0])
				maxY = math.Max(maxY, y+p[1])
			}
			return
		}
	}
	w, h := e.Float("width"), e.Float("height")
	return math.Min(x, x+w), math.Min(y, y+h), math.Max(x, x+w), math.Max(y, y+h)
}

// Lines splits a text element into its display lines.
func (e Element) Lines() []string {
	return strings.Split(e.StringField("text"), "\n")
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Element:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	}
	return v
}
