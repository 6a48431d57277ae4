// Package viewport maps between screen pixels and design space and owns the
// zoom and pan state.
package viewport

import (
	"math"
	"sync"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

const (
	MinZoom   = 0.1
	MaxZoom   = 5.0
	WheelStep = 1.1
)

// State is a read-only copy of the viewport.
type State struct {
	Zoom         float64 `json:"zoom"`
	PanX         float64 `json:"panX"`
	PanY         float64 `json:"panY"`
	ScreenWidth  float64 `json:"screenWidth"`
	ScreenHeight float64 `json:"screenHeight"`
}

// Viewport holds zoom and pan. screen = canvas*zoom + pan.
// Pointer-drag and wheel handlers may call in from different goroutines;
// every operation is applied whole under the lock, last write wins.
type Viewport struct {
	mu          sync.Mutex
	initialized bool
	zoom        float64
	pan         geom.Point
	screenW     float64
	screenH     float64
}

// New returns an uninitialized viewport.
func New() *Viewport {
	return &Viewport{zoom: 1}
}

// Init sets the screen size and resets zoom and pan. A non-finite size is
// taken as zero.
func (v *Viewport) Init(screenW, screenH float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.initialized = true
	v.screenW, v.screenH = 0, 0
	if finite(screenW, screenH) {
		v.screenW, v.screenH = screenW, screenH
	}
	v.zoom = 1
	v.pan = geom.Point{}
}

// Resize updates the screen size without touching zoom or pan. Non-finite
// sizes are ignored.
func (v *Viewport) Resize(screenW, screenH float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return document.ErrEngineNotInitialized
	}
	if !finite(screenW, screenH) {
		return nil
	}
	v.screenW, v.screenH = screenW, screenH
	return nil
}

// Initialized reports whether Init has been called.
func (v *Viewport) Initialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.initialized
}

// State returns a copy of the current state.
func (v *Viewport) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return State{Zoom: v.zoom, PanX: v.pan.X, PanY: v.pan.Y, ScreenWidth: v.screenW, ScreenHeight: v.screenH}
}

// Matrix returns the canvas-to-screen transform.
func (v *Viewport) Matrix() geom.Matrix2D {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.matrixLocked()
}

func (v *Viewport) matrixLocked() geom.Matrix2D {
	return geom.Translate(v.pan.X, v.pan.Y).Multiply(geom.Scale(v.zoom, v.zoom))
}

// ToCanvasSpace converts a screen point to design space.
func (v *Viewport) ToCanvasSpace(p geom.Point) (geom.Point, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return geom.Point{}, document.ErrEngineNotInitialized
	}
	return v.matrixLocked().Invert().Apply(p), nil
}

// ToScreenSpace converts a design-space point to screen pixels.
func (v *Viewport) ToScreenSpace(p geom.Point) (geom.Point, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return geom.Point{}, document.ErrEngineNotInitialized
	}
	return v.matrixLocked().Apply(p), nil
}

// SetZoom clamps level to [MinZoom, MaxZoom]. With an anchor the design point
// under the anchor stays under it; without one the screen center is fixed.
// A NaN level or a non-finite anchor leaves the view unchanged.
func (v *Viewport) SetZoom(level float64, anchor *geom.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return document.ErrEngineNotInitialized
	}
	v.setZoomLocked(level, anchor)
	return nil
}

func (v *Viewport) setZoomLocked(level float64, anchor *geom.Point) {
	if math.IsNaN(level) {
		return
	}
	level = Clamp(level)
	a := geom.Point{X: v.screenW / 2, Y: v.screenH / 2}
	if anchor != nil {
		if !finite(anchor.X, anchor.Y) {
			return
		}
		a = *anchor
	}
	under := geom.Point{X: (a.X - v.pan.X) / v.zoom, Y: (a.Y - v.pan.Y) / v.zoom}
	v.zoom = level
	v.pan = geom.Point{X: a.X - under.X*level, Y: a.Y - under.Y*level}
}

// Wheel applies one wheel notch at the pointer: negative deltaY zooms in by
// WheelStep, positive zooms out. Zero is ignored.
func (v *Viewport) Wheel(deltaY float64, pointer geom.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return document.ErrEngineNotInitialized
	}
	switch {
	case deltaY < 0:
		v.setZoomLocked(v.zoom*WheelStep, &pointer)
	case deltaY > 0:
		v.setZoomLocked(v.zoom/WheelStep, &pointer)
	}
	return nil
}

// Pan shifts the view by a screen-space delta. Non-finite deltas are ignored.
func (v *Viewport) Pan(dx, dy float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return document.ErrEngineNotInitialized
	}
	if !finite(dx, dy) {
		return nil
	}
	v.pan = v.pan.Add(geom.Point{X: dx, Y: dy})
	return nil
}

// Reset restores zoom 1 and zero pan.
func (v *Viewport) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return document.ErrEngineNotInitialized
	}
	v.zoom = 1
	v.pan = geom.Point{}
	return nil
}

// FitTo zooms so r fills the screen minus padding and centers it.
func (v *Viewport) FitTo(r geom.Rect, padding float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return document.ErrEngineNotInitialized
	}
	if r.IsEmpty() || !finite(r.X, r.Y, r.Width, r.Height, padding) {
		return nil
	}
	availW := max(v.screenW-2*padding, 1)
	availH := max(v.screenH-2*padding, 1)
	v.zoom = Clamp(min(availW/r.Width, availH/r.Height))
	cx, cy := r.Center()
	v.pan = geom.Point{X: v.screenW/2 - cx*v.zoom, Y: v.screenH/2 - cy*v.zoom}
	return nil
}

// Clamp limits a zoom level to the supported range. NaN maps to 1.
func Clamp(level float64) float64 {
	if math.IsNaN(level) {
		return 1
	}
	return min(MaxZoom, max(MinZoom, level))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
