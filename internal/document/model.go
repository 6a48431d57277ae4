package document

import "github.com/luneo/canvas-engine/internal/geom"

// Scene is the root aggregate of one product customization session.
// Objects live in an arena keyed by id; Children holds the top-level z-order
// (index 0 is the bottom-most).
type Scene struct {
	ID         string            `json:"id"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Background Background        `json:"background"`
	Children   []string          `json:"children"`
	Objects    map[string]Object `json:"objects"`
	Zones      []Zone            `json:"zones"`
}

type Background struct {
	Color    string `json:"color,omitempty"`
	ImageSrc string `json:"imageSrc,omitempty"`
}

type ObjectType string

const (
	ObjectTypeText   ObjectType = "text"
	ObjectTypeImage  ObjectType = "image"
	ObjectTypeShape  ObjectType = "shape"
	ObjectTypePath   ObjectType = "path"
	ObjectTypeQRCode ObjectType = "qrcode"
	ObjectTypeGroup  ObjectType = "group"
)

// Transform places an object's local box [0,0,Width,Height] in its container.
// X, Y is the top-left of the unrotated box; rotation (degrees) and scale pivot there.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
}

// Matrix returns the local-to-container transform.
func (t Transform) Matrix() geom.Matrix2D {
	return geom.FromTransform(t.X, t.Y, t.ScaleX, t.ScaleY, t.Rotation, 0, 0)
}

// Object is a CanvasObject. Exactly one payload pointer matching Type is set;
// groups carry Children instead.
type Object struct {
	ID        string     `json:"id"`
	Type      ObjectType `json:"type"`
	Parent    *string    `json:"parent"`
	Children  []string   `json:"children,omitempty"`
	Transform Transform  `json:"transform"`
	Opacity   float64    `json:"opacity"`
	Draggable bool       `json:"draggable"`
	Visible   bool       `json:"visible"`
	Locked    bool       `json:"locked"`
	ZoneID    string     `json:"zoneId,omitempty"`

	Text   *TextData   `json:"text,omitempty"`
	Image  *ImageData  `json:"image,omitempty"`
	Shape  *ShapeData  `json:"shape,omitempty"`
	Path   *PathData   `json:"path,omitempty"`
	QRCode *QRCodeData `json:"qrcode,omitempty"`
}

// ParentID returns the owning group id, or "" for top-level objects.
func (o Object) ParentID() string {
	if o.Parent == nil {
		return ""
	}
	return *o.Parent
}

type TextData struct {
	Content        string  `json:"content"`
	FontFamily     string  `json:"fontFamily"`
	FontSize       float64 `json:"fontSize"`
	FontStyle      string  `json:"fontStyle"`
	TextDecoration string  `json:"textDecoration,omitempty"`
	Align          string  `json:"align"`
	Fill           string  `json:"fill"`
	LineHeight     float64 `json:"lineHeight"`
	LetterSpacing  float64 `json:"letterSpacing,omitempty"`
}

type ImageData struct {
	Src           string     `json:"src"`
	NaturalWidth  float64    `json:"naturalWidth"`
	NaturalHeight float64    `json:"naturalHeight"`
	Crop          *geom.Rect `json:"crop,omitempty"`
	Format        string     `json:"format,omitempty"`
	FileSize      int64      `json:"fileSize,omitempty"`
	Flagged       bool       `json:"flagged,omitempty"`
}

type ShapeKind string

const (
	ShapeRect     ShapeKind = "rect"
	ShapeCircle   ShapeKind = "circle"
	ShapeEllipse  ShapeKind = "ellipse"
	ShapeTriangle ShapeKind = "triangle"
	ShapeStar     ShapeKind = "star"
	ShapePolygon  ShapeKind = "polygon"
)

// ShapeData holds shape geometry. Radii are informational; the box in
// Transform is authoritative for rendering.
type ShapeData struct {
	Kind         ShapeKind `json:"kind"`
	Fill         string    `json:"fill"`
	Stroke       string    `json:"stroke"`
	StrokeWidth  float64   `json:"strokeWidth"`
	CornerRadius float64   `json:"cornerRadius,omitempty"`
	Sides        int       `json:"sides,omitempty"`
	NumPoints    int       `json:"numPoints,omitempty"`
	InnerRadius  float64   `json:"innerRadius,omitempty"`
	OuterRadius  float64   `json:"outerRadius,omitempty"`
}

// PathData is a freehand line. Points are in the object's local space.
type PathData struct {
	Points      []geom.Point `json:"points"`
	Stroke      string       `json:"stroke"`
	StrokeWidth float64      `json:"strokeWidth"`
	LineCap     string       `json:"lineCap"`
	LineJoin    string       `json:"lineJoin"`
	Tension     float64      `json:"tension"`
}

type QRLevel string

const (
	QRLevelL QRLevel = "L"
	QRLevelM QRLevel = "M"
	QRLevelQ QRLevel = "Q"
	QRLevelH QRLevel = "H"
)

// QRCodeData keeps the encoded payload and, once generated, the rendered
// image as a data URI.
type QRCodeData struct {
	Data       string  `json:"data"`
	Size       int     `json:"size"`
	Margin     int     `json:"margin"`
	Foreground string  `json:"foreground"`
	Background string  `json:"background"`
	Level      QRLevel `json:"level"`
	Src        string  `json:"src"`
}

// NewScene creates an empty scene.
func NewScene(id string, width, height float64) *Scene {
	return &Scene{
		ID:         id,
		Width:      width,
		Height:     height,
		Background: Background{Color: "#ffffff"},
		Children:   []string{},
		Objects:    map[string]Object{},
		Zones:      []Zone{},
	}
}

// Bounds returns the design-space rectangle of the whole canvas.
func (s *Scene) Bounds() geom.Rect {
	return geom.Rect{Width: s.Width, Height: s.Height}
}
