package render

import (
	"encoding/json"

	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/zone"
)

// DrawCommand is a single drawing operation. The browser executes the list
// on a Canvas2D context; the raster, SVG and PDF exporters replay it.
type DrawCommand struct {
	Op          string        `json:"op"` // background, path, text, image, save, clip, restore
	ObjectID    string        `json:"objectId,omitempty"`
	Transform   []float64     `json:"transform,omitempty"`
	Path        []PathCommand `json:"path,omitempty"`
	Fill        string        `json:"fill,omitempty"`
	Stroke      string        `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth,omitempty"`
	LineCap     string        `json:"lineCap,omitempty"`
	LineJoin    string        `json:"lineJoin,omitempty"`
	Opacity     float64       `json:"opacity,omitempty"`
	Text        *TextRun      `json:"text,omitempty"`
	ImageSrc    string        `json:"imageSrc,omitempty"`
	ImageWidth  float64       `json:"imageWidth,omitempty"`
	ImageHeight float64       `json:"imageHeight,omitempty"`
	Crop        *geom.Rect    `json:"crop,omitempty"`
	Width       float64       `json:"width,omitempty"`
	Height      float64       `json:"height,omitempty"`
}

// Matrix returns the command transform, or identity when absent.
func (c DrawCommand) Matrix() geom.Matrix2D {
	if len(c.Transform) != 6 {
		return geom.Identity()
	}
	return geom.Matrix2D(c.Transform)
}

// CompileDrawCommands generates the command buffer for the whole canvas in
// painter's order (back to front).
func CompileDrawCommands(sg *SceneGraph) []DrawCommand {
	if sg == nil || sg.Root == nil {
		return nil
	}
	return compile(sg, geom.Rect{Width: sg.Width, Height: sg.Height}, false)
}

// CompileArea generates commands for the part of the canvas inside area.
// Only top-level objects whose bounds touch area are emitted, and everything
// is translated so area's origin lands at (0,0).
func CompileArea(sg *SceneGraph, area geom.Rect) []DrawCommand {
	if sg == nil || sg.Root == nil {
		return nil
	}
	return compile(sg, area, true)
}

func compile(sg *SceneGraph, area geom.Rect, filter bool) []DrawCommand {
	view := geom.Translate(-area.X, -area.Y)

	var commands []DrawCommand
	if sg.Background.Color != "" {
		commands = append(commands, DrawCommand{
			Op:        "background",
			Transform: view.ToSlice(),
			Path:      RectPath(sg.Width, sg.Height, 0),
			Fill:      sg.Background.Color,
			Opacity:   1,
		})
	}
	if sg.Background.ImageSrc != "" {
		commands = append(commands, DrawCommand{
			Op:        "image",
			Transform: view.ToSlice(),
			ImageSrc:  sg.Background.ImageSrc,
			Opacity:   1,
			Width:     sg.Width,
			Height:    sg.Height,
		})
	}

	for _, node := range sg.Root.Children {
		if filter && !touches(node.Bounds, area) {
			continue
		}
		compileNode(node, view, &commands)
	}
	return commands
}

// compileNode recursively generates draw commands for a node and its children.
func compileNode(node *Node, view geom.Matrix2D, commands *[]DrawCommand) {
	if node == nil {
		return
	}

	if node.Clip != nil {
		*commands = append(*commands,
			DrawCommand{Op: "save"},
			DrawCommand{
				Op:        "clip",
				ObjectID:  node.Clip.ZoneID,
				Transform: view.Multiply(node.Clip.Transform).ToSlice(),
				Path:      node.Clip.Path,
			},
		)
	}

	world := view.Multiply(node.WorldTransform).ToSlice()
	switch node.Kind {
	case KindImage, KindQRCode:
		if node.ImageSrc != "" {
			*commands = append(*commands, DrawCommand{
				Op:          "image",
				ObjectID:    node.ID,
				Transform:   world,
				Opacity:     node.Opacity,
				ImageSrc:    node.ImageSrc,
				ImageWidth:  node.ImageWidth,
				ImageHeight: node.ImageHeight,
				Crop:        node.Crop,
				Width:       node.Box.Width,
				Height:      node.Box.Height,
			})
		}
	case KindText:
		if node.Text != nil && node.Text.Content != "" {
			*commands = append(*commands, DrawCommand{
				Op:        "text",
				ObjectID:  node.ID,
				Transform: world,
				Opacity:   node.Opacity,
				Fill:      node.Fill,
				Text:      node.Text,
				Width:     node.Box.Width,
				Height:    node.Box.Height,
			})
		}
	default:
		if len(node.Path) > 0 {
			*commands = append(*commands, DrawCommand{
				Op:          "path",
				ObjectID:    node.ID,
				Transform:   world,
				Path:        node.Path,
				Opacity:     node.Opacity,
				Fill:        node.Fill,
				Stroke:      node.Stroke,
				StrokeWidth: node.StrokeWidth,
				LineCap:     node.LineCap,
				LineJoin:    node.LineJoin,
			})
		}
	}

	for _, child := range node.Children {
		compileNode(child, view, commands)
	}

	if node.Clip != nil {
		*commands = append(*commands, DrawCommand{Op: "restore"})
	}
}

// touches is an intersection test with closed edges, so zero-height lines
// on the area border still count.
func touches(b, area geom.Rect) bool {
	return b.X <= area.X+area.Width && b.X+b.Width >= area.X &&
		b.Y <= area.Y+area.Height && b.Y+b.Height >= area.Y
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// HitTest returns the id of the topmost selectable object at the design-space
// point p, or "". Children of a group resolve to the group. Points outside a
// clipping zone never hit the clipped object.
func HitTest(sg *SceneGraph, p geom.Point) string {
	if sg == nil || sg.Root == nil {
		return ""
	}
	for i := len(sg.Root.Children) - 1; i >= 0; i-- {
		top := sg.Root.Children[i]
		if hitNode(top, p) {
			return top.ID
		}
	}
	return ""
}

func hitNode(node *Node, p geom.Point) bool {
	if node.Clip != nil && !zone.Contains(node.Clip.Zone, p) {
		return false
	}
	if node.Kind == KindGroup {
		for i := len(node.Children) - 1; i >= 0; i-- {
			if hitNode(node.Children[i], p) {
				return true
			}
		}
		return false
	}
	local := node.WorldTransform.Invert().Apply(p)
	return node.Box.Contains(local.X, local.Y)
}

// SelectionBounds returns the combined bounding box of the given object ids.
func SelectionBounds(sg *SceneGraph, ids []string) geom.Rect {
	if sg == nil || len(ids) == 0 {
		return geom.Rect{}
	}
	var result geom.Bounds
	for _, id := range ids {
		if node, ok := sg.NodesByID[id]; ok {
			result.Add(node.Bounds)
		}
	}
	return result.Rect()
}
