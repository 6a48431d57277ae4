package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/qr"
	"github.com/luneo/canvas-engine/internal/typeid"
)

// ImageConfig adds an image. With no size the bitmap is scaled to fit half
// the canvas, never enlarged. With one side set the other keeps the aspect
// ratio.
type ImageConfig struct {
	Placement
	Src    string
	Width  float64
	Height float64
	Crop   *geom.Rect
}

type QRConfig struct {
	Placement
	Data       string
	Size       int
	Margin     *int
	Foreground string
	Background string
	Level      document.QRLevel
}

// beginLoad reserves an id for an object whose content is loading.
func (e *Engine) beginLoad(kind document.ObjectType) (string, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return "", 0, err
	}
	id := typeid.NewObjectID()
	e.pending[id] = e.generation
	e.logger.Debug("load started", zap.String("id", id), zap.String("type", string(kind)))
	return id, e.generation, nil
}

// finishLoadLocked reports whether the reserved id is still wanted. It is
// not if the object was removed or the scene replaced meanwhile.
func (e *Engine) finishLoadLocked(id string, gen uint64) error {
	g, ok := e.pending[id]
	delete(e.pending, id)
	if !ok || g != gen || gen != e.generation || e.scene == nil {
		e.logger.Warn("load result dropped", zap.String("id", id))
		return fmt.Errorf("%w: %s", document.ErrLoadAbandoned, id)
	}
	return nil
}

func (e *Engine) cancelLoad(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, id)
}

// Pending reports whether an image or QR code with id is still loading.
func (e *Engine) Pending(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[id]
	return ok
}

// Load is an image or QR code being resolved in the background. Its ID is
// reserved up front, so RemoveObject(ID) abandons the load.
type Load struct {
	ID   string
	done chan struct{}
	err  error
}

func (e *Engine) startLoad(kind document.ObjectType, run func(id string, gen uint64) error) (*Load, error) {
	id, gen, err := e.beginLoad(kind)
	if err != nil {
		return nil, err
	}
	l := &Load{ID: id, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		l.err = run(id, gen)
	}()
	return l, nil
}

// Done is closed once the load has resolved.
func (l *Load) Done() <-chan struct{} { return l.done }

// Wait blocks until the load resolves and returns the object id, or the
// error AddImage or AddQRCode would have returned.
func (l *Load) Wait(ctx context.Context) (string, error) {
	select {
	case <-l.done:
		if l.err != nil {
			return "", l.err
		}
		return l.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AddImage resolves cfg.Src and adds the image once it is decoded. Until
// then the object is not part of the scene. On failure no object is created
// and the error wraps document.ErrImageLoad.
func (e *Engine) AddImage(ctx context.Context, cfg ImageConfig) (string, error) {
	id, gen, err := e.beginLoad(document.ObjectTypeImage)
	if err != nil {
		return "", err
	}
	return e.loadImage(ctx, id, gen, cfg)
}

// StartImage is AddImage without waiting: the returned Load carries the
// reserved id while the bitmap resolves.
func (e *Engine) StartImage(ctx context.Context, cfg ImageConfig) (*Load, error) {
	return e.startLoad(document.ObjectTypeImage, func(id string, gen uint64) error {
		_, err := e.loadImage(ctx, id, gen, cfg)
		return err
	})
}

func (e *Engine) loadImage(ctx context.Context, id string, gen uint64, cfg ImageConfig) (string, error) {
	bm, err := e.images.Resolve(ctx, cfg.Src)
	if err != nil {
		e.cancelLoad(id)
		if !errors.Is(err, document.ErrImageLoad) {
			err = fmt.Errorf("%w: %w", document.ErrImageLoad, err)
		}
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.finishLoadLocked(id, gen); err != nil {
		return "", err
	}

	nw, nh := float64(bm.Width), float64(bm.Height)
	w, h := imageSize(nw, nh, cfg.Width, cfg.Height, e.scene.Width, e.scene.Height)
	obj := newObject(document.ObjectTypeImage, cfg.Placement, w, h)
	obj.ID = id
	obj.Image = &document.ImageData{
		Src:           cfg.Src,
		NaturalWidth:  nw,
		NaturalHeight: nh,
		Format:        bm.Format,
		FileSize:      bm.Size,
	}
	if cfg.Crop != nil {
		crop := *cfg.Crop
		obj.Image.Crop = &crop
	}
	return e.addLocked("Add image", obj, cfg.Placement)
}

func imageSize(nw, nh, w, h, canvasW, canvasH float64) (float64, float64) {
	switch {
	case w > 0 && h > 0:
		return w, h
	case w > 0 && nw > 0:
		return w, w * nh / nw
	case h > 0 && nh > 0:
		return h * nw / nh, h
	case nw <= 0 || nh <= 0:
		return nw, nh
	}
	scale := min(1, canvasW/2/nw, canvasH/2/nh)
	return nw * scale, nh * scale
}

// AddQRCode encodes cfg.Data and adds the QR code as an embedded image.
// Encoder failures wrap both document.ErrQREncoding and the encoder's own
// document.ErrQRGeneration.
func (e *Engine) AddQRCode(ctx context.Context, cfg QRConfig) (string, error) {
	id, gen, err := e.beginLoad(document.ObjectTypeQRCode)
	if err != nil {
		return "", err
	}
	return e.loadQRCode(ctx, id, gen, cfg)
}

// StartQRCode is AddQRCode without waiting for the encoder.
func (e *Engine) StartQRCode(ctx context.Context, cfg QRConfig) (*Load, error) {
	return e.startLoad(document.ObjectTypeQRCode, func(id string, gen uint64) error {
		_, err := e.loadQRCode(ctx, id, gen, cfg)
		return err
	})
}

func (e *Engine) loadQRCode(ctx context.Context, id string, gen uint64, cfg QRConfig) (string, error) {
	data := qrData(cfg)
	src, err := e.encodeQR(ctx, data)
	if err != nil {
		e.cancelLoad(id)
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.finishLoadLocked(id, gen); err != nil {
		return "", err
	}
	data.Src = src
	size := float64(data.Size)
	obj := newObject(document.ObjectTypeQRCode, cfg.Placement, size, size)
	obj.ID = id
	obj.QRCode = data
	return e.addLocked("Add QR code", obj, cfg.Placement)
}

// UpdateQRCode re-encodes the QR code id with new data.
func (e *Engine) UpdateQRCode(ctx context.Context, id, text string) error {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return err
	}
	obj, ok := e.scene.Get(id)
	if !ok || obj.QRCode == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: qr code %s", document.ErrObjectNotFound, id)
	}
	data := *obj.QRCode
	gen := e.generation
	e.mu.Unlock()

	data.Data = text
	src, err := e.encodeQR(ctx, &data)
	if err != nil {
		return err
	}
	data.Src = src

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation || e.scene == nil {
		return fmt.Errorf("%w: %s", document.ErrLoadAbandoned, id)
	}
	return e.commitLocked("Update QR code", func(s *document.Scene) ([]string, error) {
		obj, ok := s.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", document.ErrLoadAbandoned, id)
		}
		obj.QRCode = &data
		s.Objects[id] = obj
		return nil, nil
	})
}

func qrData(cfg QRConfig) *document.QRCodeData {
	margin := qr.DefaultMargin
	if cfg.Margin != nil {
		margin = max(0, *cfg.Margin)
	}
	level := cfg.Level
	if level == "" {
		level = document.QRLevelM
	}
	return &document.QRCodeData{
		Data:       cfg.Data,
		Size:       orInt(cfg.Size, qr.DefaultSize),
		Margin:     margin,
		Foreground: orString(cfg.Foreground, "#000000"),
		Background: orString(cfg.Background, "#ffffff"),
		Level:      document.QRLevel(strings.ToUpper(string(level))),
	}
}

func (e *Engine) encodeQR(ctx context.Context, d *document.QRCodeData) (string, error) {
	png, err := e.qrEncoder.Encode(ctx, qr.Request{
		Data:       d.Data,
		Size:       d.Size,
		Margin:     d.Margin,
		Foreground: d.Foreground,
		Background: d.Background,
		Level:      d.Level,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", document.ErrQREncoding, err)
	}
	return qr.DataURI(png), nil
}

// LoadFont makes a font family available for text objects.
func (e *Engine) LoadFont(ctx context.Context, family, url string) error {
	if e.fonts == nil {
		return fmt.Errorf("no font provider configured")
	}
	return e.fonts.Load(ctx, family, url)
}

// IsFontLoaded reports whether family can be used without fallback.
func (e *Engine) IsFontLoaded(family string) bool {
	return e.fonts != nil && e.fonts.IsLoaded(family)
}
