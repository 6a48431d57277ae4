package document

import (
	"math"

	"github.com/luneo/canvas-engine/internal/geom"
)

type ZoneShape string

const (
	ZoneRect    ZoneShape = "rect"
	ZoneCircle  ZoneShape = "circle"
	ZoneEllipse ZoneShape = "ellipse"
	ZonePolygon ZoneShape = "polygon"
)

// Zone is a merchant-defined print region. Geometry fields are read according
// to Shape: rect uses X/Y/Width/Height, circle CenterX/CenterY/Radius, ellipse
// CenterX/CenterY/RadiusX/RadiusY, polygon Points. Rotation turns the zone
// about its geometric center.
type Zone struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Shape       ZoneShape    `json:"shape"`
	X           float64      `json:"x,omitempty"`
	Y           float64      `json:"y,omitempty"`
	Width       float64      `json:"width,omitempty"`
	Height      float64      `json:"height,omitempty"`
	CenterX     float64      `json:"centerX,omitempty"`
	CenterY     float64      `json:"centerY,omitempty"`
	Radius      float64      `json:"radius,omitempty"`
	RadiusX     float64      `json:"radiusX,omitempty"`
	RadiusY     float64      `json:"radiusY,omitempty"`
	Points      []geom.Point `json:"points,omitempty"`
	Rotation    float64      `json:"rotation,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
	ClipContent bool         `json:"clipContent"`
	Visible     bool         `json:"visible"`
	Locked      bool         `json:"locked"`
}

// Constraints limit what can be placed in a zone. Zero numeric values mean
// "no limit"; a nil AllowRotation allows rotation.
type Constraints struct {
	MinWidth      float64      `json:"minWidth,omitempty"`
	MaxWidth      float64      `json:"maxWidth,omitempty"`
	MinHeight     float64      `json:"minHeight,omitempty"`
	MaxHeight     float64      `json:"maxHeight,omitempty"`
	MinScale      float64      `json:"minScale,omitempty"`
	MaxScale      float64      `json:"maxScale,omitempty"`
	AllowRotation *bool        `json:"allowRotation,omitempty"`
	MaxElements   int          `json:"maxElements,omitempty"`
	MinElements   int          `json:"minElements,omitempty"`
	Required      bool         `json:"required,omitempty"`
	AllowedTypes  []ObjectType `json:"allowedTypes,omitempty"`
	Text          *TextRules   `json:"text,omitempty"`
	Image         *ImageRules  `json:"image,omitempty"`
}

// RotationAllowed reports the effective allow-rotation flag.
func (c *Constraints) RotationAllowed() bool {
	return c == nil || c.AllowRotation == nil || *c.AllowRotation
}

type TextRules struct {
	MaxLength     int      `json:"maxLength,omitempty"`
	AllowedFonts  []string `json:"allowedFonts,omitempty"`
	MinFontSize   float64  `json:"minFontSize,omitempty"`
	MaxFontSize   float64  `json:"maxFontSize,omitempty"`
	AllowedColors []string `json:"allowedColors,omitempty"`
}

type ImageRules struct {
	MaxFileSize    int64    `json:"maxFileSize,omitempty"`
	AllowedFormats []string `json:"allowedFormats,omitempty"`
	MinWidth       float64  `json:"minWidth,omitempty"`
	MaxWidth       float64  `json:"maxWidth,omitempty"`
	MinHeight      float64  `json:"minHeight,omitempty"`
	MaxHeight      float64  `json:"maxHeight,omitempty"`
}

// Bounds returns the unrotated bounding box of the zone geometry.
func (z Zone) Bounds() geom.Rect {
	switch z.Shape {
	case ZoneCircle:
		return geom.Rect{X: z.CenterX - z.Radius, Y: z.CenterY - z.Radius, Width: 2 * z.Radius, Height: 2 * z.Radius}
	case ZoneEllipse:
		return geom.Rect{X: z.CenterX - z.RadiusX, Y: z.CenterY - z.RadiusY, Width: 2 * z.RadiusX, Height: 2 * z.RadiusY}
	case ZonePolygon:
		return geom.BoundsOf(z.Points)
	default:
		return geom.Rect{X: z.X, Y: z.Y, Width: z.Width, Height: z.Height}
	}
}

// Matrix maps zone-local (unrotated) coordinates to design space.
func (z Zone) Matrix() geom.Matrix2D {
	if math.Abs(z.Rotation) < 1e-12 {
		return geom.Identity()
	}
	cx, cy := z.Bounds().Center()
	return geom.RotateAround(z.Rotation, cx, cy)
}

// RotatedBounds returns the axis-aligned box of the rotated zone.
func (z Zone) RotatedBounds() geom.Rect {
	return z.Matrix().TransformRect(z.Bounds())
}
