package render

import (
	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

// Build evaluates a scene snapshot into a scene graph. Hidden objects are
// skipped with their subtrees.
func Build(s *document.Scene) *SceneGraph {
	sg := NewSceneGraph()
	if s == nil {
		return sg
	}
	sg.Width, sg.Height = s.Width, s.Height
	sg.Background = s.Background

	zones := make(map[string]document.Zone, len(s.Zones))
	for _, z := range s.Zones {
		zones[z.ID] = z
	}

	root := &Node{
		ID:             s.ID,
		Kind:           KindRoot,
		WorldTransform: geom.Identity(),
		LocalTransform: geom.Identity(),
		Opacity:        1,
		Box:            s.Bounds(),
		Bounds:         s.Bounds(),
	}
	for _, id := range s.Children {
		obj, ok := s.Objects[id]
		if !ok {
			continue
		}
		if child := buildNode(s, obj, root, zones, sg); child != nil {
			root.Children = append(root.Children, child)
		}
	}
	sg.Root = root
	return sg
}

func buildNode(s *document.Scene, obj document.Object, parent *Node, zones map[string]document.Zone, sg *SceneGraph) *Node {
	if !obj.Visible {
		return nil
	}

	local := obj.Transform.Matrix()
	world := parent.WorldTransform.Multiply(local)

	node := &Node{
		ID:             obj.ID,
		LocalTransform: local,
		WorldTransform: world,
		Opacity:        parent.Opacity * obj.Opacity,
		Locked:         obj.Locked,
		Parent:         parent,
		Box:            obj.LocalBox(),
	}

	if z, ok := zones[obj.ZoneID]; ok && z.ClipContent && !clippedBy(parent, z.ID) {
		node.Clip = &Clip{ZoneID: z.ID, Zone: z, Transform: z.Matrix(), Path: ZonePath(z)}
	}

	w, h := obj.Transform.Width, obj.Transform.Height
	switch obj.Type {
	case document.ObjectTypeShape:
		node.Kind = KindShape
		if obj.Shape != nil {
			node.Path = ShapePath(obj.Shape, w, h)
			node.Fill = obj.Shape.Fill
			node.Stroke = obj.Shape.Stroke
			node.StrokeWidth = obj.Shape.StrokeWidth
		}

	case document.ObjectTypePath:
		node.Kind = KindPath
		if obj.Path != nil {
			node.Path = LinePath(obj.Path.Points, obj.Path.Tension)
			node.Stroke = obj.Path.Stroke
			node.StrokeWidth = obj.Path.StrokeWidth
			node.LineCap = obj.Path.LineCap
			node.LineJoin = obj.Path.LineJoin
		}

	case document.ObjectTypeText:
		node.Kind = KindText
		if t := obj.Text; t != nil {
			node.Fill = t.Fill
			node.Text = &TextRun{
				Content:        t.Content,
				FontFamily:     t.FontFamily,
				FontSize:       t.FontSize,
				FontStyle:      t.FontStyle,
				TextDecoration: t.TextDecoration,
				Align:          t.Align,
				LineHeight:     t.LineHeight,
				LetterSpacing:  t.LetterSpacing,
				Width:          w,
			}
		}

	case document.ObjectTypeImage:
		node.Kind = KindImage
		if img := obj.Image; img != nil {
			node.ImageSrc = img.Src
			node.ImageWidth = img.NaturalWidth
			node.ImageHeight = img.NaturalHeight
			if img.Crop != nil {
				c := *img.Crop
				node.Crop = &c
			}
		}

	case document.ObjectTypeQRCode:
		node.Kind = KindQRCode
		if qr := obj.QRCode; qr != nil {
			node.ImageSrc = qr.Src
			node.ImageWidth = float64(qr.Size)
			node.ImageHeight = float64(qr.Size)
		}

	case document.ObjectTypeGroup:
		node.Kind = KindGroup
	}

	sg.NodesByID[obj.ID] = node

	if obj.Type != document.ObjectTypeGroup {
		node.Bounds = world.TransformRect(node.Box)
		return node
	}

	var bounds geom.Bounds
	for _, childID := range obj.Children {
		childObj, ok := s.Objects[childID]
		if !ok {
			continue
		}
		if child := buildNode(s, childObj, node, zones, sg); child != nil {
			node.Children = append(node.Children, child)
			bounds.Add(child.Bounds)
		}
	}
	if bounds.Ok() {
		node.Bounds = bounds.Rect()
	} else {
		node.Bounds = world.TransformRect(node.Box)
	}
	return node
}

func clippedBy(n *Node, zoneID string) bool {
	for ; n != nil; n = n.Parent {
		if n.Clip != nil && n.Clip.ZoneID == zoneID {
			return true
		}
	}
	return false
}
