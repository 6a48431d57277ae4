package document

import (
	"fmt"
	"slices"

	"github.com/luneo/canvas-engine/internal/geom"
)

// Patch is a typed partial update. Nil fields are left untouched; at most one
// payload patch may be set and it must match the object's type.
type Patch struct {
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Rotation  *float64 `json:"rotation,omitempty"`
	ScaleX    *float64 `json:"scaleX,omitempty"`
	ScaleY    *float64 `json:"scaleY,omitempty"`
	Opacity   *float64 `json:"opacity,omitempty"`
	Draggable *bool    `json:"draggable,omitempty"`
	Visible   *bool    `json:"visible,omitempty"`
	Locked    *bool    `json:"locked,omitempty"`
	ZoneID    *string  `json:"zoneId,omitempty"`

	Text  *TextPatch  `json:"text,omitempty"`
	Image *ImagePatch `json:"image,omitempty"`
	Shape *ShapePatch `json:"shape,omitempty"`
	Path  *PathPatch  `json:"path,omitempty"`
}

type TextPatch struct {
	Content        *string  `json:"content,omitempty"`
	FontFamily     *string  `json:"fontFamily,omitempty"`
	FontSize       *float64 `json:"fontSize,omitempty"`
	FontStyle      *string  `json:"fontStyle,omitempty"`
	TextDecoration *string  `json:"textDecoration,omitempty"`
	Align          *string  `json:"align,omitempty"`
	Fill           *string  `json:"fill,omitempty"`
	LineHeight     *float64 `json:"lineHeight,omitempty"`
	LetterSpacing  *float64 `json:"letterSpacing,omitempty"`
}

type ImagePatch struct {
	Crop      *geom.Rect `json:"crop,omitempty"`
	ClearCrop bool       `json:"clearCrop,omitempty"`
	Flagged   *bool      `json:"flagged,omitempty"`
}

type ShapePatch struct {
	Fill         *string  `json:"fill,omitempty"`
	Stroke       *string  `json:"stroke,omitempty"`
	StrokeWidth  *float64 `json:"strokeWidth,omitempty"`
	CornerRadius *float64 `json:"cornerRadius,omitempty"`
	Sides        *int     `json:"sides,omitempty"`
	NumPoints    *int     `json:"numPoints,omitempty"`
	InnerRadius  *float64 `json:"innerRadius,omitempty"`
	OuterRadius  *float64 `json:"outerRadius,omitempty"`
}

type PathPatch struct {
	Points      []geom.Point `json:"points,omitempty"`
	Stroke      *string      `json:"stroke,omitempty"`
	StrokeWidth *float64     `json:"strokeWidth,omitempty"`
	LineCap     *string      `json:"lineCap,omitempty"`
	LineJoin    *string      `json:"lineJoin,omitempty"`
	Tension     *float64     `json:"tension,omitempty"`
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// Apply merges the patch into a copy of obj and returns it. obj is not modified.
func (p Patch) Apply(obj Object) (Object, error) {
	out := obj.Clone()

	if err := p.checkPayload(out); err != nil {
		return obj, err
	}

	set(&out.Transform.X, p.X)
	set(&out.Transform.Y, p.Y)
	set(&out.Transform.Width, p.Width)
	set(&out.Transform.Height, p.Height)
	set(&out.Transform.Rotation, p.Rotation)
	set(&out.Transform.ScaleX, p.ScaleX)
	set(&out.Transform.ScaleY, p.ScaleY)
	if p.Opacity != nil {
		out.Opacity = min(1, max(0, *p.Opacity))
	}
	set(&out.Draggable, p.Draggable)
	set(&out.Visible, p.Visible)
	set(&out.Locked, p.Locked)
	set(&out.ZoneID, p.ZoneID)

	if t := p.Text; t != nil {
		set(&out.Text.Content, t.Content)
		set(&out.Text.FontFamily, t.FontFamily)
		set(&out.Text.FontSize, t.FontSize)
		set(&out.Text.FontStyle, t.FontStyle)
		set(&out.Text.TextDecoration, t.TextDecoration)
		set(&out.Text.Align, t.Align)
		set(&out.Text.Fill, t.Fill)
		set(&out.Text.LineHeight, t.LineHeight)
		set(&out.Text.LetterSpacing, t.LetterSpacing)
	}
	if i := p.Image; i != nil {
		if i.ClearCrop {
			out.Image.Crop = nil
		}
		if i.Crop != nil {
			crop := *i.Crop
			out.Image.Crop = &crop
		}
		set(&out.Image.Flagged, i.Flagged)
	}
	if s := p.Shape; s != nil {
		set(&out.Shape.Fill, s.Fill)
		set(&out.Shape.Stroke, s.Stroke)
		set(&out.Shape.StrokeWidth, s.StrokeWidth)
		set(&out.Shape.CornerRadius, s.CornerRadius)
		set(&out.Shape.Sides, s.Sides)
		set(&out.Shape.NumPoints, s.NumPoints)
		set(&out.Shape.InnerRadius, s.InnerRadius)
		set(&out.Shape.OuterRadius, s.OuterRadius)
	}
	if pp := p.Path; pp != nil {
		if pp.Points != nil {
			out.Path.Points = slices.Clone(pp.Points)
		}
		set(&out.Path.Stroke, pp.Stroke)
		set(&out.Path.StrokeWidth, pp.StrokeWidth)
		set(&out.Path.LineCap, pp.LineCap)
		set(&out.Path.LineJoin, pp.LineJoin)
		set(&out.Path.Tension, pp.Tension)
	}
	return out, nil
}

// TouchesGeometry reports whether the patch changes size, scale or rotation.
func (p Patch) TouchesGeometry() bool {
	return p.Width != nil || p.Height != nil || p.ScaleX != nil || p.ScaleY != nil || p.Rotation != nil
}

func (p Patch) checkPayload(obj Object) error {
	mismatch := func(kind ObjectType) error {
		return fmt.Errorf("%w: %s patch on %s object", ErrInvalidPatch, kind, obj.Type)
	}
	switch {
	case p.Text != nil && obj.Text == nil:
		return mismatch(ObjectTypeText)
	case p.Image != nil && obj.Image == nil:
		return mismatch(ObjectTypeImage)
	case p.Shape != nil && obj.Shape == nil:
		return mismatch(ObjectTypeShape)
	case p.Path != nil && obj.Path == nil:
		return mismatch(ObjectTypePath)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
