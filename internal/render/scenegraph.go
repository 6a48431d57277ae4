// Package render turns a scene snapshot into a retained, render-ready graph
// and compiles it into draw commands shared by the browser canvas and the
// export backends.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

// SceneGraph is the evaluated state of a scene at one point in time.
type SceneGraph struct {
	Root       *Node
	NodesByID  map[string]*Node
	Width      float64
	Height     float64
	Background document.Background
}

type NodeKind string

const (
	KindRoot   NodeKind = "root"
	KindGroup  NodeKind = "group"
	KindShape  NodeKind = "shape"
	KindPath   NodeKind = "path"
	KindText   NodeKind = "text"
	KindImage  NodeKind = "image"
	KindQRCode NodeKind = "qrcode"
)

// Node is a resolved object: transforms composed, opacity inherited.
type Node struct {
	ID   string
	Kind NodeKind

	WorldTransform geom.Matrix2D
	LocalTransform geom.Matrix2D

	Opacity float64
	Locked  bool

	Parent   *Node
	Children []*Node

	// Clip is the zone outline the node is hard-clipped to, if any.
	Clip *Clip

	Path        []PathCommand
	Fill        string
	Stroke      string
	StrokeWidth float64
	LineCap     string
	LineJoin    string

	Text *TextRun

	// ImageSrc is the image or rendered QR source; Crop is in source pixels.
	ImageSrc    string
	ImageWidth  float64
	ImageHeight float64
	Crop        *geom.Rect

	// Box is the local box; Bounds its axis-aligned world extent.
	Box    geom.Rect
	Bounds geom.Rect
}

// TextRun is the resolved text payload of a text node.
type TextRun struct {
	Content        string  `json:"content"`
	FontFamily     string  `json:"fontFamily"`
	FontSize       float64 `json:"fontSize"`
	FontStyle      string  `json:"fontStyle,omitempty"`
	TextDecoration string  `json:"textDecoration,omitempty"`
	Align          string  `json:"align,omitempty"`
	LineHeight     float64 `json:"lineHeight,omitempty"`
	LetterSpacing  float64 `json:"letterSpacing,omitempty"`
	Width          float64 `json:"width"`
}

// Clip is a zone outline in design space.
type Clip struct {
	ZoneID    string
	Zone      document.Zone
	Transform geom.Matrix2D
	Path      []PathCommand
}

// PathCommand is one path segment. Op is M, L, C, Q or Z and Args holds the
// coordinates in order. It serializes in Canvas2D form: ["M", x, y].
type PathCommand struct {
	Op   string
	Args []float64
}

func MoveTo(x, y float64) PathCommand { return PathCommand{Op: "M", Args: []float64{x, y}} }
func LineTo(x, y float64) PathCommand { return PathCommand{Op: "L", Args: []float64{x, y}} }
func CubicTo(x1, y1, x2, y2, x, y float64) PathCommand {
	return PathCommand{Op: "C", Args: []float64{x1, y1, x2, y2, x, y}}
}
func ClosePath() PathCommand { return PathCommand{Op: "Z"} }

// Points returns the coordinate pairs of the command.
func (c PathCommand) Points() []geom.Point {
	out := make([]geom.Point, 0, len(c.Args)/2)
	for i := 0; i+1 < len(c.Args); i += 2 {
		out = append(out, geom.Point{X: c.Args[i], Y: c.Args[i+1]})
	}
	return out
}

func (c PathCommand) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(c.Args)+1)
	out = append(out, c.Op)
	for _, a := range c.Args {
		out = append(out, a)
	}
	return json.Marshal(out)
}

func (c *PathCommand) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty path command")
	}
	if err := json.Unmarshal(raw[0], &c.Op); err != nil {
		return fmt.Errorf("path command op: %w", err)
	}
	c.Args = make([]float64, len(raw)-1)
	for i, r := range raw[1:] {
		if err := json.Unmarshal(r, &c.Args[i]); err != nil {
			return fmt.Errorf("path command %s arg %d: %w", c.Op, i, err)
		}
	}
	return nil
}

// NewSceneGraph creates an empty scene graph.
func NewSceneGraph() *SceneGraph {
	return &SceneGraph{NodesByID: make(map[string]*Node)}
}

// Leaves returns renderable nodes in painter's order.
func (sg *SceneGraph) Leaves() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Kind != KindRoot && n.Kind != KindGroup {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(sg.Root)
	return out
}
