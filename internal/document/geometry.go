package document

import (
	"math"

	"github.com/luneo/canvas-engine/internal/geom"
)

// LocalBox is the object's untransformed box [0,0,Width,Height].
func (o Object) LocalBox() geom.Rect {
	return geom.Rect{Width: o.Transform.Width, Height: o.Transform.Height}
}

// Scale returns the larger absolute scale factor.
func (t Transform) Scale() float64 {
	return max(math.Abs(t.ScaleX), math.Abs(t.ScaleY))
}

// DisplaySize returns width and height after scaling.
func (t Transform) DisplaySize() (float64, float64) {
	return t.Width * math.Abs(t.ScaleX), t.Height * math.Abs(t.ScaleY)
}

// WorldMatrix returns the local-to-design-space transform of id, including
// the owning group's transform.
func (s *Scene) WorldMatrix(id string) geom.Matrix2D {
	obj, ok := s.Objects[id]
	if !ok {
		return geom.Identity()
	}
	m := obj.Transform.Matrix()
	if parent := obj.ParentID(); parent != "" {
		return s.WorldMatrix(parent).Multiply(m)
	}
	return m
}

// ObjectBounds returns the rendered axis-aligned bounds of id in design
// space. Groups with children report the union of their children.
func (s *Scene) ObjectBounds(id string) (geom.Rect, bool) {
	obj, ok := s.Objects[id]
	if !ok {
		return geom.Rect{}, false
	}
	if obj.Type == ObjectTypeGroup && len(obj.Children) > 0 {
		var out geom.Bounds
		for _, childID := range obj.Children {
			if b, ok := s.ObjectBounds(childID); ok {
				out.Add(b)
			}
		}
		return out.Rect(), true
	}
	return s.WorldMatrix(id).TransformRect(obj.LocalBox()), true
}

// Decompose splits an affine matrix without skew into a Transform keeping
// the given box size.
func Decompose(m geom.Matrix2D, width, height float64) Transform {
	sx := math.Hypot(m[0], m[1])
	t := Transform{
		X:        m[4],
		Y:        m[5],
		Width:    width,
		Height:   height,
		Rotation: math.Atan2(m[1], m[0]) * 180 / math.Pi,
		ScaleX:   sx,
		ScaleY:   1,
	}
	if sx != 0 {
		t.ScaleY = m.Determinant() / sx
	}
	return t
}
