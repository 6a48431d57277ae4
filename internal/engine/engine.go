// Package engine owns the live scene of one customization session and
// exposes the editing operations the UI drives: adding and updating objects,
// selection and grouping, undo/redo, hit testing and export.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/asset"
	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/export"
	"github.com/luneo/canvas-engine/internal/fonts"
	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/history"
	"github.com/luneo/canvas-engine/internal/qr"
	"github.com/luneo/canvas-engine/internal/render"
	"github.com/luneo/canvas-engine/internal/typeid"
	"github.com/luneo/canvas-engine/internal/viewport"
	"github.com/luneo/canvas-engine/internal/zone"
)

// ImageResolver turns an image source into a decoded bitmap. Failures wrap
// document.ErrImageLoad.
type ImageResolver interface {
	Resolve(ctx context.Context, src string) (asset.Bitmap, error)
}

// QREncoder renders a QR request as PNG bytes. Failures wrap
// document.ErrQRGeneration.
type QREncoder interface {
	Encode(ctx context.Context, req qr.Request) ([]byte, error)
}

// FontProvider loads font families and measures text.
type FontProvider interface {
	Load(ctx context.Context, family, url string) error
	IsLoaded(family string) bool
	Measure(text, family string, st fonts.Style, size, lineHeight float64) (float64, float64, error)
}

// Engine is the editing core. It owns the scene, the viewport, the history
// and the selection. All methods are safe to call from several goroutines;
// image and QR loads run without holding the lock.
type Engine struct {
	mu sync.Mutex

	scene    *document.Scene
	history  *history.History[*document.Scene]
	viewport *viewport.Viewport

	// Retained scene graph, rebuilt lazily when dirty.
	sceneGraph *render.SceneGraph
	dirty      bool

	// Selection is UI state and never enters history.
	selection []string
	clipboard []clipEntry
	pastes    int

	// Async loads: ids waiting for a bitmap or QR code, tagged with the
	// generation they were started in. Reset bumps the generation.
	pending    map[string]uint64
	generation uint64

	batching   bool
	batchDirty bool

	images      ImageResolver
	qrEncoder   QREncoder
	fonts       FontProvider
	exporter    *export.Exporter
	policy      zone.Policy
	historySize int
	logger      *zap.Logger
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithImageResolver(r ImageResolver) Option {
	return func(e *Engine) { e.images = r }
}

func WithQREncoder(q QREncoder) Option {
	return func(e *Engine) { e.qrEncoder = q }
}

// WithFontProvider enables measured text boxes. Without one, text size is
// estimated from the font size.
func WithFontProvider(f FontProvider) Option {
	return func(e *Engine) { e.fonts = f }
}

// WithExporter sets the exporter used by the export operations. By default
// one is built on first export, sharing the engine's image resolver.
func WithExporter(x *export.Exporter) Option {
	return func(e *Engine) { e.exporter = x }
}

func WithHistorySize(n int) Option {
	return func(e *Engine) { e.historySize = n }
}

// WithContainmentPolicy selects how new objects are assigned to zones.
func WithContainmentPolicy(p zone.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// New creates an engine. It must be initialized before use.
func New(opts ...Option) *Engine {
	e := &Engine{
		viewport:    viewport.New(),
		pending:     make(map[string]uint64),
		images:      asset.NewResolver(),
		qrEncoder:   qr.NewEncoder(),
		policy:      zone.PolicyCenter,
		historySize: history.DefaultCapacity,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init sets up the viewport for a screen of the given size and loads s. A nil
// scene starts an empty canvas of the screen size.
func (e *Engine) Init(s *document.Scene, screenW, screenH float64) error {
	if s == nil {
		s = document.NewScene(typeid.NewSceneID(), screenW, screenH)
	}
	if err := s.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.Init(screenW, screenH)
	e.loadLocked(s)
	e.logger.Info("engine initialized",
		zap.String("scene", s.ID),
		zap.Int("objects", len(s.Objects)),
		zap.Int("zones", len(s.Zones)))
	return nil
}

// LoadScene replaces the scene and starts a fresh history with it as base.
// Pending loads of the previous scene are abandoned.
func (e *Engine) LoadScene(s *document.Scene) error {
	if s == nil {
		return fmt.Errorf("%w: nil scene", document.ErrInvalidScene)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return document.ErrEngineNotInitialized
	}
	e.loadLocked(s)
	return nil
}

// LoadJSON decodes a serialized scene and loads it.
func (e *Engine) LoadJSON(data []byte) error {
	var s document.Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", document.ErrInvalidScene, err)
	}
	if s.Objects == nil {
		s.Objects = map[string]document.Object{}
	}
	return e.LoadScene(&s)
}

// LoadSampleScene loads the built-in t-shirt design.
func (e *Engine) LoadSampleScene() error {
	return e.LoadScene(document.NewSampleScene())
}

func (e *Engine) loadLocked(s *document.Scene) {
	e.scene = s.Clone()
	e.history = history.New(e.scene, e.historySize)
	e.selection = nil
	e.clipboard = nil
	e.pastes = 0
	e.abandonLoadsLocked()
	e.dirty = true
}

// Destroy drops the scene. Pending loads resolve as abandoned and every
// operation fails until Init is called again.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene = nil
	e.history = nil
	e.selection = nil
	e.clipboard = nil
	e.sceneGraph = nil
	e.abandonLoadsLocked()
}

func (e *Engine) abandonLoadsLocked() {
	e.generation++
	clear(e.pending)
}

func (e *Engine) ready() error {
	if e.scene == nil {
		return document.ErrEngineNotInitialized
	}
	return nil
}

// Snapshot returns a deep copy of the live scene.
func (e *Engine) Snapshot() (*document.Scene, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.scene.Clone(), nil
}

// SceneJSON serializes the live scene for the persistence boundary.
func (e *Engine) SceneJSON() ([]byte, error) {
	s, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// Viewport returns the engine's viewport.
func (e *Engine) Viewport() *viewport.Viewport {
	return e.viewport
}

// FitToScreen zooms the viewport so the whole canvas is visible.
func (e *Engine) FitToScreen(padding float64) error {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return err
	}
	bounds := e.scene.Bounds()
	e.mu.Unlock()
	return e.viewport.FitTo(bounds, padding)
}

// graph returns the retained scene graph, rebuilding it if needed.
func (e *Engine) graph() *render.SceneGraph {
	if e.dirty || e.sceneGraph == nil {
		e.sceneGraph = render.Build(e.scene)
		e.dirty = false
	}
	return e.sceneGraph
}

// DrawCommands compiles the scene into design-space draw commands.
func (e *Engine) DrawCommands() ([]render.DrawCommand, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return render.CompileDrawCommands(e.graph()), nil
}

// Render returns the draw commands as JSON, or "[]" before Init.
func (e *Engine) Render() string {
	cmds, err := e.DrawCommands()
	if err != nil {
		return "[]"
	}
	result, err := render.DrawCommandsToJSON(cmds)
	if err != nil {
		e.logger.Error("encode draw commands", zap.Int("commands", len(cmds)), zap.Error(err))
	}
	return result
}

// HitTest returns the topmost object at a design-space point, or "".
func (e *Engine) HitTest(p geom.Point) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return ""
	}
	return render.HitTest(e.graph(), p)
}

// HitTestScreen maps a screen point through the viewport and hit tests it.
func (e *Engine) HitTestScreen(p geom.Point) (string, error) {
	canvas, err := e.viewport.ToCanvasSpace(p)
	if err != nil {
		return "", err
	}
	return e.HitTest(canvas), nil
}

// SelectionBounds returns the union of the selected objects' rendered
// bounds in design space.
func (e *Engine) SelectionBounds() geom.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil || len(e.selection) == 0 {
		return geom.Rect{}
	}
	return render.SelectionBounds(e.graph(), e.selection)
}

// ValidateDesign checks every zone of the live scene.
func (e *Engine) ValidateDesign() (zone.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return zone.Report{}, err
	}
	return zone.ValidateDesign(e.scene), nil
}
