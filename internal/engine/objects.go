package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/fonts"
	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/typeid"
	"github.com/luneo/canvas-engine/internal/zone"
)

// CloneOffset is added to the position of cloned and pasted objects.
const CloneOffset = 20

const (
	defaultFontFamily  = "Arial"
	defaultFontSize    = 30
	defaultTextFill    = "#000000"
	defaultLineHeight  = 1.2
	defaultShapeFill   = "#3b82f6"
	defaultShapeStroke = "#1e40af"
	defaultStrokeWidth = 2
)

// Placement is shared by every add operation.
type Placement struct {
	X        float64
	Y        float64
	Rotation float64
	// Zero scale means 1.
	ScaleX float64
	ScaleY float64
	// Nil opacity means fully opaque.
	Opacity *float64
	// ZoneID assigns the object to a zone. When empty the zone is located
	// from the object's bounds with the engine's containment policy.
	ZoneID string
	// Group inserts the object into an existing group instead of the root.
	Group string
}

type TextConfig struct {
	Placement
	Content        string
	FontFamily     string
	FontSize       float64
	FontStyle      string
	TextDecoration string
	Align          string
	Fill           string
	LineHeight     float64
	LetterSpacing  float64
	// Width fixes the box width; zero sizes the box to the text.
	Width float64
}

type ShapeConfig struct {
	Placement
	Kind         document.ShapeKind
	Width        float64
	Height       float64
	Fill         string
	Stroke       string
	StrokeWidth  *float64
	CornerRadius float64
	// Radius sizes circles and polygons, RadiusX/RadiusY ellipses, when
	// Width and Height are zero.
	Radius      float64
	RadiusX     float64
	RadiusY     float64
	Sides       int
	NumPoints   int
	InnerRadius float64
	OuterRadius float64
}

// LineConfig is a freehand line. Points are relative to Placement X/Y; the
// object is positioned at the top-left of their bounding box.
type LineConfig struct {
	Placement
	Points      []geom.Point
	Stroke      string
	StrokeWidth float64
	LineCap     string
	LineJoin    string
	Tension     float64
}

func newObject(kind document.ObjectType, p Placement, w, h float64) document.Object {
	id := typeid.NewObjectID()
	if kind == document.ObjectTypeGroup {
		id = typeid.NewGroupID()
	}
	opacity := 1.0
	if p.Opacity != nil {
		opacity = min(1, max(0, *p.Opacity))
	}
	return document.Object{
		ID:   id,
		Type: kind,
		Transform: document.Transform{
			X:        p.X,
			Y:        p.Y,
			Width:    w,
			Height:   h,
			Rotation: p.Rotation,
			ScaleX:   orOne(p.ScaleX),
			ScaleY:   orOne(p.ScaleY),
		},
		Opacity:   opacity,
		Draggable: true,
		Visible:   true,
	}
}

// place assigns obj to a zone and inserts it on top of its container.
func place(s *document.Scene, obj document.Object, p Placement, policy zone.Policy) error {
	if p.ZoneID != "" {
		z, ok := s.Zone(p.ZoneID)
		if !ok {
			return zone.MissingZone(p.ZoneID, obj.ID)
		}
		obj.ZoneID = z.ID
	} else {
		world := obj.Transform.Matrix()
		if p.Group != "" {
			world = s.WorldMatrix(p.Group).Multiply(world)
		}
		if z, ok := zone.Locate(s.Zones, world.TransformRect(obj.LocalBox()), policy); ok {
			obj.ZoneID = z.ID
		}
	}
	if z, ok := s.Zone(obj.ZoneID); ok && z.Locked {
		obj.Draggable = false
	}
	return s.Insert(obj, p.Group, -1)
}

func (e *Engine) addLocked(label string, obj document.Object, p Placement) (string, error) {
	err := e.commitLocked(label, func(s *document.Scene) ([]string, error) {
		if err := place(s, obj, p, e.policy); err != nil {
			return nil, err
		}
		return []string{obj.ID}, nil
	})
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}

// AddText adds a text object and returns its id.
func (e *Engine) AddText(cfg TextConfig) (string, error) {
	t := &document.TextData{
		Content:        cfg.Content,
		FontFamily:     orString(cfg.FontFamily, defaultFontFamily),
		FontSize:       orFloat(cfg.FontSize, defaultFontSize),
		FontStyle:      orString(cfg.FontStyle, "normal"),
		TextDecoration: cfg.TextDecoration,
		Align:          orString(cfg.Align, "left"),
		Fill:           orString(cfg.Fill, defaultTextFill),
		LineHeight:     orFloat(cfg.LineHeight, defaultLineHeight),
		LetterSpacing:  cfg.LetterSpacing,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	w, h := e.measureText(t)
	if cfg.Width > 0 {
		w = cfg.Width
	}
	obj := newObject(document.ObjectTypeText, cfg.Placement, w, h)
	obj.Text = t
	return e.addLocked("Add text", obj, cfg.Placement)
}

// AddShape adds a shape object and returns its id.
func (e *Engine) AddShape(cfg ShapeConfig) (string, error) {
	sd := &document.ShapeData{
		Kind:         orString(cfg.Kind, document.ShapeRect),
		Fill:         orString(cfg.Fill, defaultShapeFill),
		Stroke:       orString(cfg.Stroke, defaultShapeStroke),
		StrokeWidth:  defaultStrokeWidth,
		CornerRadius: cfg.CornerRadius,
	}
	if cfg.StrokeWidth != nil {
		sd.StrokeWidth = max(0, *cfg.StrokeWidth)
	}

	var w, h float64
	switch sd.Kind {
	case document.ShapeRect, document.ShapeTriangle:
		w, h = 100, 100
	case document.ShapeCircle:
		r := orFloat(cfg.Radius, 50)
		w, h = 2*r, 2*r
	case document.ShapeEllipse:
		w, h = 2*orFloat(cfg.RadiusX, 60), 2*orFloat(cfg.RadiusY, 40)
	case document.ShapeStar:
		sd.NumPoints = orInt(cfg.NumPoints, 5)
		sd.InnerRadius = orFloat(cfg.InnerRadius, 20)
		sd.OuterRadius = orFloat(cfg.OuterRadius, 40)
		w, h = 2*sd.OuterRadius, 2*sd.OuterRadius
	case document.ShapePolygon:
		sd.Sides = orInt(cfg.Sides, 6)
		r := orFloat(cfg.Radius, 50)
		w, h = 2*r, 2*r
	default:
		return "", fmt.Errorf("%w: unknown shape kind %q", document.ErrInvalidObject, sd.Kind)
	}
	if sd.Kind == document.ShapePolygon && sd.Sides < 3 {
		return "", fmt.Errorf("%w: polygon needs at least 3 sides", document.ErrInvalidObject)
	}
	w, h = orFloat(cfg.Width, w), orFloat(cfg.Height, h)

	obj := newObject(document.ObjectTypeShape, cfg.Placement, w, h)
	obj.Shape = sd

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked("Add shape", obj, cfg.Placement)
}

// AddDrawingLine adds a freehand line and returns its id.
func (e *Engine) AddDrawingLine(cfg LineConfig) (string, error) {
	if len(cfg.Points) < 2 {
		return "", fmt.Errorf("%w: a line needs at least two points", document.ErrInvalidObject)
	}
	b := geom.BoundsOf(cfg.Points)
	local := make([]geom.Point, len(cfg.Points))
	for i, p := range cfg.Points {
		local[i] = geom.Point{X: p.X - b.X, Y: p.Y - b.Y}
	}

	p := cfg.Placement
	p.X += b.X
	p.Y += b.Y
	obj := newObject(document.ObjectTypePath, p, b.Width, b.Height)
	obj.Path = &document.PathData{
		Points:      local,
		Stroke:      orString(cfg.Stroke, "#000000"),
		StrokeWidth: orFloat(cfg.StrokeWidth, defaultStrokeWidth),
		LineCap:     orString(cfg.LineCap, "round"),
		LineJoin:    orString(cfg.LineJoin, "round"),
		Tension:     cfg.Tension,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked("Draw line", obj, p)
}

// UpdateObject merges patch into the object. Changes to size, scale,
// rotation, zone or content are validated against the object's zone and
// rejected as a whole on any violation. Text boxes are re-measured when
// their text changes and the patch sets no size.
func (e *Engine) UpdateObject(id string, patch document.Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked("Update", func(s *document.Scene) ([]string, error) {
		obj, ok := s.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", document.ErrObjectNotFound, id)
		}
		next, err := patch.Apply(obj)
		if err != nil {
			return nil, err
		}
		if next.Text != nil && patch.Text != nil && patch.Width == nil && patch.Height == nil {
			next.Transform.Width, next.Transform.Height = e.measureText(next.Text)
		}
		s.Objects[id] = next

		if patch.TouchesGeometry() || patch.ZoneID != nil || patch.Text != nil || patch.Image != nil {
			return []string{id}, nil
		}
		return nil, nil
	})
}

// MoveObject sets the position of id.
func (e *Engine) MoveObject(id string, x, y float64) error {
	return e.UpdateObject(id, document.Patch{X: &x, Y: &y})
}

// RemoveObject destroys id and, for groups, its children. Unknown ids are
// ignored. Removing an object whose image or QR code is still loading
// abandons the load.
func (e *Engine) RemoveObject(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if _, ok := e.pending[id]; ok {
		delete(e.pending, id)
		return nil
	}
	if _, ok := e.scene.Get(id); !ok {
		return nil
	}
	return e.commitLocked("Remove", func(s *document.Scene) ([]string, error) {
		s.Remove(id)
		return nil, nil
	})
}

// CloneObject copies id and its children, offsets the copy by CloneOffset
// and inserts it directly above the original.
func (e *Engine) CloneObject(id string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var cloneID string
	err := e.commitLocked("Clone", func(s *document.Scene) ([]string, error) {
		container, idx, ok := s.IndexOf(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", document.ErrObjectNotFound, id)
		}
		root, children := copySubtree(s, id, CloneOffset)
		if err := s.Insert(root, container, idx+1); err != nil {
			return nil, err
		}
		touched := []string{root.ID}
		for _, c := range children {
			s.Objects[c.ID] = c
			touched = append(touched, c.ID)
		}
		cloneID = root.ID
		return touched, nil
	})
	return cloneID, err
}

// copySubtree deep-copies id with fresh ids. The root is offset by delta;
// children keep their group-local positions.
func copySubtree(s *document.Scene, id string, delta float64) (document.Object, []document.Object) {
	src := s.Objects[id]
	root := src.Clone()
	root.ID = typeid.NewObjectID()
	if root.Type == document.ObjectTypeGroup {
		root.ID = typeid.NewGroupID()
	}
	root.Transform.X += delta
	root.Transform.Y += delta

	var children []document.Object
	root.Children = make([]string, 0, len(src.Children))
	for _, childID := range src.Children {
		c := s.Objects[childID].Clone()
		c.ID = typeid.NewObjectID()
		c.Parent = &root.ID
		root.Children = append(root.Children, c.ID)
		children = append(children, c)
	}
	if len(root.Children) == 0 {
		root.Children = nil
	}
	return root, children
}

func (e *Engine) reorder(id, label string, target func(idx, n int) int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	container, idx, ok := e.scene.IndexOf(id)
	if !ok || idx < 0 {
		return fmt.Errorf("%w: %s", document.ErrObjectNotFound, id)
	}
	n := len(e.scene.ContainerChildren(container))
	to := max(0, min(target(idx, n), n-1))
	if to == idx {
		return nil
	}
	return e.commitLocked(label, func(s *document.Scene) ([]string, error) {
		s.Move(id, to)
		return nil, nil
	})
}

// MoveToTop makes id the topmost object of its container.
func (e *Engine) MoveToTop(id string) error {
	return e.reorder(id, "Bring to front", func(_, n int) int { return n - 1 })
}

func (e *Engine) MoveToBottom(id string) error {
	return e.reorder(id, "Send to back", func(int, int) int { return 0 })
}

func (e *Engine) MoveUp(id string) error {
	return e.reorder(id, "Bring forward", func(i, _ int) int { return i + 1 })
}

func (e *Engine) MoveDown(id string) error {
	return e.reorder(id, "Send backward", func(i, _ int) int { return i - 1 })
}

// MoveTo places id at index within its container, clamped to the valid range.
func (e *Engine) MoveTo(id string, index int) error {
	return e.reorder(id, "Reorder", func(int, int) int { return index })
}

// ToggleVisibility flips the visible flag and returns the new value.
func (e *Engine) ToggleVisibility(id string) (bool, error) {
	var visible bool
	err := e.toggle(id, "Toggle visibility", func(o *document.Object) {
		o.Visible = !o.Visible
		visible = o.Visible
	})
	return visible, err
}

// ToggleLock flips the locked flag and returns the new value. Locked
// objects are not draggable.
func (e *Engine) ToggleLock(id string) (bool, error) {
	var locked bool
	err := e.toggle(id, "Toggle lock", func(o *document.Object) {
		o.Locked = !o.Locked
		o.Draggable = !o.Locked
		locked = o.Locked
	})
	return locked, err
}

func (e *Engine) toggle(id, label string, fn func(*document.Object)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked(label, func(s *document.Scene) ([]string, error) {
		obj, ok := s.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", document.ErrObjectNotFound, id)
		}
		fn(&obj)
		s.Objects[id] = obj
		return nil, nil
	})
}

// GetObject returns a copy of the object with id.
func (e *Engine) GetObject(id string) (document.Object, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return document.Object{}, false
	}
	obj, ok := e.scene.Get(id)
	if !ok {
		return document.Object{}, false
	}
	return obj.Clone(), true
}

// GetAllObjects returns copies of the top-level objects in z-order, bottom
// first. Objects still loading are not included.
func (e *Engine) GetAllObjects() []document.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return nil
	}
	return e.scene.TopLevel()
}

// Zones returns copies of the scene's zones.
func (e *Engine) Zones() []document.Zone {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return nil
	}
	out := make([]document.Zone, len(e.scene.Zones))
	for i, z := range e.scene.Zones {
		out[i] = z.Clone()
	}
	return out
}

// measureText sizes a text box through the font provider, or estimates it
// at 0.6em per character when no provider is set or it fails.
func (e *Engine) measureText(t *document.TextData) (float64, float64) {
	lines := strings.Split(t.Content, "\n")
	longest := 0
	for _, l := range lines {
		longest = max(longest, utf8.RuneCountInString(l))
	}
	spacing := t.LetterSpacing * float64(max(longest-1, 0))

	if e.fonts != nil {
		w, h, err := e.fonts.Measure(t.Content, t.FontFamily, fonts.ParseStyle(t.FontStyle), t.FontSize, t.LineHeight)
		if err == nil {
			return w + spacing, h
		}
	}
	return float64(longest)*t.FontSize*0.6 + spacing, float64(len(lines)) * t.FontSize * t.LineHeight
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orString[S ~string](v, def S) S {
	if v == "" {
		return def
	}
	return v
}

// ZoneGuide is the editor overlay of one zone: its bounds, the safe area
// inside the margin, the bleed area and the zones it overlaps.
type ZoneGuide struct {
	ZoneID    string    `json:"zoneId"`
	Bounds    geom.Rect `json:"bounds"`
	SafeArea  geom.Rect `json:"safeArea"`
	BleedArea geom.Rect `json:"bleedArea"`
	Overlaps  []string  `json:"overlaps,omitempty"`
}

// ZoneGuides returns one guide per zone in scene order.
func (e *Engine) ZoneGuides(margin, bleed float64) ([]ZoneGuide, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	zones := e.scene.Zones
	out := make([]ZoneGuide, len(zones))
	for i, z := range zones {
		g := ZoneGuide{
			ZoneID:    z.ID,
			Bounds:    z.RotatedBounds(),
			SafeArea:  zone.SafeArea(z, margin),
			BleedArea: zone.BleedArea(z, bleed),
		}
		for j, other := range zones {
			if i != j && zone.Overlaps(z, other) {
				g.Overlaps = append(g.Overlaps, other.ID)
			}
		}
		out[i] = g
	}
	return out, nil
}
